package handlers

import (
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"dealflow-portal/internal/cleanup"
	"dealflow-portal/internal/models"
	"dealflow-portal/internal/scheduler"
	"dealflow-portal/internal/search"
	"dealflow-portal/internal/snapshot"
)

// AdminHandler handles admin-related requests
type AdminHandler struct {
	db              *gorm.DB
	scheduler       *scheduler.Scheduler
	snapshotService *snapshot.Service
	cleanupService  *cleanup.Service
}

// NewAdminHandler creates a new admin handler. searchClient may be nil when
// Meilisearch is not configured; cleanup then skips index deletion.
func NewAdminHandler(db *gorm.DB, sched *scheduler.Scheduler, searchClient *search.SearchClient) *AdminHandler {
	return &AdminHandler{
		db:              db,
		scheduler:       sched,
		snapshotService: snapshot.NewService(db),
		cleanupService:  cleanup.NewService(db, searchClient),
	}
}

// GetStats returns system statistics
func (h *AdminHandler) GetStats(c *gin.Context) {
	stats := make(map[string]interface{})

	// Listing counts by status
	var activeCount, removedCount int64
	h.db.Model(&models.Listing{}).Where("status = ?", models.ListingStatusActive).Count(&activeCount)
	h.db.Model(&models.Listing{}).Where("status = ?", models.ListingStatusRemoved).Count(&removedCount)

	stats["listings"] = map[string]interface{}{
		"active":  activeCount,
		"removed": removedCount,
		"total":   activeCount + removedCount,
	}

	// Deal pipeline counts by stage
	type stageCount struct {
		Stage models.DealStage `json:"stage"`
		Count int64            `json:"count"`
	}
	var stageCounts []stageCount
	h.db.Model(&models.Deal{}).
		Select("stage, count(*) as count").
		Group("stage").
		Scan(&stageCounts)

	pipeline := make(map[string]int64)
	var totalDeals int64
	for _, sc := range stageCounts {
		pipeline[string(sc.Stage)] = sc.Count
		totalDeals += sc.Count
	}
	stats["deals"] = map[string]interface{}{
		"total":    totalDeals,
		"by_stage": pipeline,
	}

	// Recent scraping activity (last 24 hours)
	last24h := time.Now().AddDate(0, 0, -1)
	var recentlyFetched int64
	h.db.Model(&models.Listing{}).Where("fetched_at >= ?", last24h).Count(&recentlyFetched)
	stats["recent_activity"] = map[string]interface{}{
		"fetched_last_24h": recentlyFetched,
	}

	// Snapshot statistics
	var snapshotCount int64
	h.db.Model(&models.ListingSnapshot{}).Count(&snapshotCount)
	stats["snapshots"] = map[string]interface{}{
		"total": snapshotCount,
	}

	// Listing changes (last 7 days)
	last7days := time.Now().AddDate(0, 0, -7)
	var recentChanges int64
	h.db.Model(&models.ListingChange{}).Where("detected_at >= ?", last7days).Count(&recentChanges)
	stats["changes"] = map[string]interface{}{
		"last_7_days": recentChanges,
	}

	// Delete logs statistics
	deleteStats, err := h.cleanupService.GetDeleteStats()
	if err != nil {
		log.Printf("Failed to get delete stats: %v", err)
	} else {
		stats["deletions"] = deleteStats
	}

	c.JSON(http.StatusOK, stats)
}

// GetRecentActivity returns recently fetched listings
func (h *AdminHandler) GetRecentActivity(c *gin.Context) {
	limitStr := c.DefaultQuery("limit", "50")
	limit, _ := strconv.Atoi(limitStr)

	var listings []models.Listing
	err := h.db.Order("fetched_at DESC").Limit(limit).Find(&listings).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"listings": listings,
		"count":    len(listings),
	})
}

// TriggerScraping manually triggers the daily refresh
func (h *AdminHandler) TriggerScraping(c *gin.Context) {
	if h.scheduler == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "Scheduler not available (MySQL/GORM required)",
		})
		return
	}

	log.Println("Admin: Manual scraping trigger requested")

	// Run in goroutine to avoid blocking
	go func() {
		if err := h.scheduler.RunNow(); err != nil {
			log.Printf("Admin: Manual scraping failed: %v", err)
		} else {
			log.Println("Admin: Manual scraping completed successfully")
		}
	}()

	c.JSON(http.StatusAccepted, gin.H{
		"message": "Scraping job started",
		"status":  "running",
	})
}

// GetScrapingStatus returns the persisted scraping state, including any
// active block from the portal's protections
func (h *AdminHandler) GetScrapingStatus(c *gin.Context) {
	if h.scheduler == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "Scheduler not available (MySQL/GORM required)",
		})
		return
	}

	state, err := h.scheduler.GetScrapingState()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"can_scrape": state.CanScrape(),
		"state":      state,
	})
}

// RunCleanup executes physical deletion of old removed listings
func (h *AdminHandler) RunCleanup(c *gin.Context) {
	var req struct {
		RetentionDays    int  `json:"retention_days"`     // Days to keep (default: 90)
		MaxDeletionCount int  `json:"max_deletion_count"` // Safety limit (default: 10000)
		DryRun           bool `json:"dry_run"`            // Dry run mode (default: true)
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// Set defaults
	config := cleanup.DefaultCleanupConfig()
	if req.RetentionDays > 0 {
		config.RetentionDays = req.RetentionDays
	}
	if req.MaxDeletionCount > 0 {
		config.MaxDeletionCount = req.MaxDeletionCount
	}
	config.DryRun = req.DryRun

	log.Printf("Admin: Running cleanup (retention: %d days, max: %d, dry-run: %v)",
		config.RetentionDays, config.MaxDeletionCount, config.DryRun)

	result, err := h.cleanupService.PhysicallyDelete(config)
	if err != nil {
		log.Printf("Admin: Cleanup failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	log.Printf("Admin: Cleanup completed: %d/%d deleted (dry-run: %v)",
		result.DeletedCount, result.TargetCount, result.DryRun)

	c.JSON(http.StatusOK, result)
}

// GetDeleteLogs returns recent delete log entries
func (h *AdminHandler) GetDeleteLogs(c *gin.Context) {
	limitStr := c.DefaultQuery("limit", "100")
	limit, _ := strconv.Atoi(limitStr)

	logs, err := h.cleanupService.GetRecentDeleteLogs(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"logs":  logs,
		"count": len(logs),
	})
}

// GetListingHistory returns snapshot history for a listing
func (h *AdminHandler) GetListingHistory(c *gin.Context) {
	listingID := c.Param("id")
	limitStr := c.DefaultQuery("limit", "30")
	limit, _ := strconv.Atoi(limitStr)

	snapshots, err := h.snapshotService.GetListingHistory(listingID, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"listing_id": listingID,
		"snapshots":  snapshots,
		"count":      len(snapshots),
	})
}

// GetRecentChanges returns recent listing changes
func (h *AdminHandler) GetRecentChanges(c *gin.Context) {
	limitStr := c.DefaultQuery("limit", "100")
	limit, _ := strconv.Atoi(limitStr)

	changes, err := h.snapshotService.GetRecentChanges(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"changes": changes,
		"count":   len(changes),
	})
}

// GetSuburbStats returns active listing counts by suburb
func (h *AdminHandler) GetSuburbStats(c *gin.Context) {
	type SuburbStat struct {
		Suburb string `json:"suburb"`
		Count  int64  `json:"count"`
	}

	var stats []SuburbStat
	err := h.db.Model(&models.Listing{}).
		Select("suburb, count(*) as count").
		Where("status = ? AND suburb IS NOT NULL AND suburb != ''", models.ListingStatusActive).
		Group("suburb").
		Order("count DESC").
		Limit(20).
		Scan(&stats).Error

	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"suburb_stats": stats,
		"count":        len(stats),
	})
}

// GetPriceDistribution returns asking price distribution
func (h *AdminHandler) GetPriceDistribution(c *gin.Context) {
	type PriceRange struct {
		RangeLabel string  `json:"range_label"`
		MinPrice   float64 `json:"min_price"`
		MaxPrice   float64 `json:"max_price"`
		Count      int64   `json:"count"`
	}

	// Price bands in NZD
	ranges := []PriceRange{
		{RangeLabel: "Under $500k", MinPrice: 0, MaxPrice: 500000},
		{RangeLabel: "$500k-$700k", MinPrice: 500000, MaxPrice: 700000},
		{RangeLabel: "$700k-$900k", MinPrice: 700000, MaxPrice: 900000},
		{RangeLabel: "$900k-$1.2m", MinPrice: 900000, MaxPrice: 1200000},
		{RangeLabel: "$1.2m-$1.5m", MinPrice: 1200000, MaxPrice: 1500000},
		{RangeLabel: "Over $1.5m", MinPrice: 1500000, MaxPrice: 100000000},
	}

	for i := range ranges {
		var count int64
		h.db.Model(&models.Listing{}).
			Where("status = ? AND price >= ? AND price < ?",
				models.ListingStatusActive, ranges[i].MinPrice, ranges[i].MaxPrice).
			Count(&count)
		ranges[i].Count = count
	}

	c.JSON(http.StatusOK, gin.H{
		"price_distribution": ranges,
	})
}
