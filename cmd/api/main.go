package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"dealflow-portal/internal/analysis"
	"dealflow-portal/internal/config"
	"dealflow-portal/internal/database"
	"dealflow-portal/internal/handlers"
	"dealflow-portal/internal/models"
	"dealflow-portal/internal/ratelimit"
	"dealflow-portal/internal/scheduler"
	"dealflow-portal/internal/scraper"
	"dealflow-portal/internal/search"
	"dealflow-portal/internal/snapshot"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

var (
	db              *database.DB
	gormDB          *database.GormDB
	searchClient    *search.SearchClient
	appConfig       *config.Config
	rateLimiter     *ratelimit.RateLimiter
	appScheduler    *scheduler.Scheduler
	analysisWorker  *scheduler.AnalysisWorker
	snapshotService *snapshot.Service
)

func main() {
	// Load configuration
	configPath := getEnv("CONFIG_PATH", "/app/config/scraper_config.yaml")
	var err error
	appConfig, err = config.LoadConfig(configPath)
	if err != nil {
		log.Printf("Warning: Failed to load config from %s: %v. Using defaults.", configPath, err)
		appConfig = config.DefaultConfig()
	} else {
		log.Printf("Loaded configuration from %s", configPath)
	}

	// Initialize database based on configuration
	dbType := appConfig.Database.Type
	if dbType == "" {
		dbType = getEnv("DB_TYPE", "mysql")
	}

	if dbType == "mysql" {
		log.Println("Using MySQL with GORM")
		mysqlCfg := appConfig.Database.MySQL

		// Get port as string, handle 0 as empty
		portStr := ""
		if mysqlCfg.Port > 0 {
			portStr = fmt.Sprintf("%d", mysqlCfg.Port)
		}

		gormDB, err = database.NewGormDB(
			getEnvOrConfig(mysqlCfg.Host, "DB_HOST", "mysql"),
			getEnvOrConfig(portStr, "DB_PORT", "3306"),
			getEnvOrConfig(mysqlCfg.User, "DB_USER", "dealflow_user"),
			getEnvOrConfig(mysqlCfg.Password, "DB_PASSWORD", "dealflow_pass"),
			getEnvOrConfig(mysqlCfg.Database, "DB_NAME", "dealflow_db"),
		)
		if err != nil {
			log.Fatalf("Failed to connect to MySQL: %v", err)
		}
		defer gormDB.Close()

		// Initialize schema with GORM AutoMigrate
		if err := gormDB.InitSchema(); err != nil {
			log.Fatalf("Failed to initialize schema: %v", err)
		}
	} else {
		log.Println("Using PostgreSQL (listings only; deal pipeline requires MySQL)")
		pgCfg := appConfig.Database.Postgres

		// Get port as string, handle 0 as empty
		portStr := ""
		if pgCfg.Port > 0 {
			portStr = fmt.Sprintf("%d", pgCfg.Port)
		}

		db, err = database.NewDB(
			getEnvOrConfig(pgCfg.Host, "DB_HOST", "db"),
			getEnvOrConfig(portStr, "DB_PORT", "5432"),
			getEnvOrConfig(pgCfg.User, "DB_USER", "dealflow_user"),
			getEnvOrConfig(pgCfg.Password, "DB_PASSWORD", "dealflow_pass"),
			getEnvOrConfig(pgCfg.Database, "DB_NAME", "dealflow_db"),
		)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer db.Close()

		// Initialize schema
		if err := db.InitSchema(); err != nil {
			log.Fatalf("Failed to initialize schema: %v", err)
		}
	}

	// Initialize Meilisearch using config
	meilisearchHost := appConfig.Search.Meilisearch.Host
	if meilisearchHost == "" {
		meilisearchHost = getEnv("MEILISEARCH_HOST", "http://meilisearch:7700")
	}
	meilisearchKey := appConfig.Search.Meilisearch.APIKey
	if meilisearchKey == "" {
		meilisearchKey = getEnv("MEILISEARCH_KEY", "masterKey123")
	}

	searchClient = search.NewSearchClient(meilisearchHost, meilisearchKey)

	// Wait for Meilisearch to be ready
	time.Sleep(2 * time.Second)

	if err := searchClient.InitIndex(); err != nil {
		log.Printf("Warning: Failed to initialize search index: %v", err)
	}

	// Initialize rate limiter
	rateLimiter = ratelimit.NewRateLimiter(
		appConfig.RateLimit.RequestsPerMinute,
		appConfig.RateLimit.RequestsPerHour,
		appConfig.Scraper.MaxRequestsPerDay,
		appConfig.RateLimit.Enabled,
	)
	log.Printf("Rate limiter initialized: %d req/min, %d req/hour, %d req/day (enabled: %v)",
		appConfig.RateLimit.RequestsPerMinute,
		appConfig.RateLimit.RequestsPerHour,
		appConfig.Scraper.MaxRequestsPerDay,
		appConfig.RateLimit.Enabled,
	)

	// Initialize snapshot service (MySQL only)
	if gormDB != nil {
		sqlDB, _ := gormDB.GetDB()
		snapshotService = snapshot.NewService(sqlDB)
		log.Println("Snapshot service initialized")
	}

	// Initialize and start scheduler (MySQL only)
	if gormDB != nil {
		sqlDB, _ := gormDB.GetDB()
		appScheduler = scheduler.NewScheduler(sqlDB, appConfig)
		if err := appScheduler.Start(); err != nil {
			log.Printf("Warning: Failed to start scheduler: %v", err)
		}
		defer appScheduler.Stop()

		// Initialize and start analysis worker
		analysisClient := analysis.NewClient(appConfig.Analysis)
		analysisWorker = scheduler.NewAnalysisWorker(sqlDB, analysisClient, appConfig.Analysis.GetPollInterval())
		analysisWorker.Start()
		defer analysisWorker.Stop()
		log.Println("Analysis worker started")
	}

	// Setup Gin router
	r := gin.Default()

	// CORS configuration
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:5176"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE"},
		AllowHeaders:     []string{"Origin", "Content-Type"},
		AllowCredentials: true,
	}))

	// Routes
	r.GET("/health", healthCheck)
	r.GET("/api/listings", getListings)
	r.GET("/api/listings/:id", getListing)

	// Scraping routes with rate limiting
	r.POST("/api/scrape", rateLimitMiddleware(), scrapeURL)
	r.POST("/api/scrape/batch", rateLimitMiddleware(), scrapeBatch)
	r.POST("/api/scrape/list", rateLimitMiddleware(), scrapeListPage)
	r.POST("/api/scrape/update", rateLimitMiddleware(), scrapeAndUpdate)

	// Rate limiter stats endpoint
	r.GET("/api/ratelimit/stats", getRateLimitStats)

	// Scheduler and snapshot endpoints
	r.POST("/api/scheduler/run", triggerScheduledScraping)
	r.GET("/api/listings/:id/history", getListingHistory)
	r.GET("/api/changes/recent", getRecentChanges)

	// Analysis queue stats endpoint
	r.GET("/api/queue/stats", getQueueStats)

	r.GET("/api/search", searchListings)
	r.POST("/api/search/advanced", advancedSearchListings)
	r.GET("/api/search/facets", getSearchFacets)
	r.POST("/api/search/reindex", reindexAllListings)
	r.GET("/api/filter", filterListings)

	// Deal pipeline routes (MySQL only: deals live in GORM)
	if gormDB != nil {
		dealHandler := handlers.NewDealHandler(gormDB)

		deals := r.Group("/api/deals")
		{
			deals.POST("", dealHandler.CreateDeal)
			deals.GET("", dealHandler.ListDeals)
			deals.GET("/renovation-options", dealHandler.GetRenovationOptions)
			deals.POST("/from-listing/:listing_id", dealHandler.CreateDealFromListing)
			deals.GET("/:id", dealHandler.GetDeal)
			deals.PUT("/:id", dealHandler.UpdateDeal)
			deals.DELETE("/:id", dealHandler.DeleteDeal)
			deals.POST("/:id/stage", dealHandler.TransitionStage)
			deals.GET("/:id/history", dealHandler.GetStageHistory)
			deals.PUT("/:id/renovations", dealHandler.UpdateRenovations)
			deals.GET("/:id/valuation", dealHandler.GetValuation)
			deals.POST("/:id/analyze", dealHandler.TriggerAnalysis)
		}

		log.Println("Deal pipeline routes registered at /api/deals/*")
	} else {
		// Deals live in GORM; on the raw-SQL path answer with an explanatory
		// 503 instead of a bare 404
		r.Any("/api/deals", dealsUnavailable)
		r.Any("/api/deals/*any", dealsUnavailable)
	}

	// Admin API routes (requires authentication in production)
	if gormDB != nil {
		sqlDB, _ := gormDB.GetDB()
		adminHandler := handlers.NewAdminHandler(sqlDB, appScheduler, searchClient)

		admin := r.Group("/api/admin")
		{
			// Statistics
			admin.GET("/stats", adminHandler.GetStats)
			admin.GET("/activity", adminHandler.GetRecentActivity)
			admin.GET("/suburb-stats", adminHandler.GetSuburbStats)
			admin.GET("/price-distribution", adminHandler.GetPriceDistribution)

			// Scraping control
			admin.POST("/scraping/trigger", adminHandler.TriggerScraping)
			admin.GET("/scraping/status", adminHandler.GetScrapingStatus)

			// Cleanup operations
			admin.POST("/cleanup/run", adminHandler.RunCleanup)
			admin.GET("/cleanup/logs", adminHandler.GetDeleteLogs)

			// Listing history
			admin.GET("/listings/:id/history", adminHandler.GetListingHistory)
			admin.GET("/changes/recent", adminHandler.GetRecentChanges)
		}

		log.Println("Admin API routes registered at /api/admin/*")
	}

	port := getEnv("PORT", "8084")
	log.Printf("Server starting on port %s", port)
	if err := r.Run(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// dealsUnavailable answers deal pipeline requests on the Postgres path
func dealsUnavailable(c *gin.Context) {
	c.JSON(http.StatusServiceUnavailable, gin.H{
		"error": "Deal pipeline is not available (requires MySQL/GORM)",
	})
}

func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now(),
	})
}

func getListings(c *gin.Context) {
	// Build filters from query parameters
	filters := database.ListingFilters{
		Suburb: c.Query("suburb"),
		City:   c.Query("city"),
		SortBy: c.DefaultQuery("sort", "fetched_at"),
	}

	// Price range
	if minPriceStr := c.Query("min_price"); minPriceStr != "" {
		if minPrice, parseErr := strconv.ParseFloat(minPriceStr, 64); parseErr == nil {
			filters.MinPrice = &minPrice
		}
	}
	if maxPriceStr := c.Query("max_price"); maxPriceStr != "" {
		if maxPrice, parseErr := strconv.ParseFloat(maxPriceStr, 64); parseErr == nil {
			filters.MaxPrice = &maxPrice
		}
	}

	// Bedroom range
	if minBedsStr := c.Query("min_bedrooms"); minBedsStr != "" {
		if minBeds, parseErr := strconv.Atoi(minBedsStr); parseErr == nil {
			filters.MinBedrooms = &minBeds
		}
	}
	if maxBedsStr := c.Query("max_bedrooms"); maxBedsStr != "" {
		if maxBeds, parseErr := strconv.Atoi(maxBedsStr); parseErr == nil {
			filters.MaxBedrooms = &maxBeds
		}
	}
	if minBathsStr := c.Query("min_bathrooms"); minBathsStr != "" {
		if minBaths, parseErr := strconv.Atoi(minBathsStr); parseErr == nil {
			filters.MinBathrooms = &minBaths
		}
	}

	// Floor area range
	if minAreaStr := c.Query("min_floor_area"); minAreaStr != "" {
		if minArea, parseErr := strconv.ParseFloat(minAreaStr, 64); parseErr == nil {
			filters.MinFloorArea = &minArea
		}
	}
	if maxAreaStr := c.Query("max_floor_area"); maxAreaStr != "" {
		if maxArea, parseErr := strconv.ParseFloat(maxAreaStr, 64); parseErr == nil {
			filters.MaxFloorArea = &maxArea
		}
	}

	// Year built range
	if minYearStr := c.Query("min_year_built"); minYearStr != "" {
		if minYear, parseErr := strconv.Atoi(minYearStr); parseErr == nil {
			filters.MinYearBuilt = &minYear
		}
	}
	if maxYearStr := c.Query("max_year_built"); maxYearStr != "" {
		if maxYear, parseErr := strconv.Atoi(maxYearStr); parseErr == nil {
			filters.MaxYearBuilt = &maxYear
		}
	}

	// Multi-select filters (comma-separated)
	if propertyTypesStr := c.Query("property_types"); propertyTypesStr != "" {
		filters.PropertyTypes = strings.Split(propertyTypesStr, ",")
	}
	if excludeIDsStr := c.Query("exclude_ids"); excludeIDsStr != "" {
		filters.ExcludeIDs = strings.Split(excludeIDsStr, ",")
	}

	// Pagination parameters
	if limitStr := c.Query("limit"); limitStr != "" {
		if limit, parseErr := strconv.Atoi(limitStr); parseErr == nil && limit > 0 {
			filters.Limit = limit
		}
	}
	if offsetStr := c.Query("offset"); offsetStr != "" {
		if offset, parseErr := strconv.Atoi(offsetStr); parseErr == nil && offset >= 0 {
			filters.Offset = &offset
		}
	}

	// Always use paginated endpoint with GORM
	if gormDB != nil {
		start := time.Now()
		result, err := gormDB.GetListingsWithFiltersPaginated(filters)
		duration := time.Since(start)

		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		// Log search API performance for monitoring
		log.Printf("[Search API] duration_ms=%d total=%d limit=%d sort=%s",
			duration.Milliseconds(), result.Total, result.Limit, filters.SortBy)

		c.JSON(http.StatusOK, result)
		return
	}

	// Postgres fallback: no pagination support
	listings, err := db.GetAllListings()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, listings)
}

func getListing(c *gin.Context) {
	id := c.Param("id")
	var listing *models.Listing
	var err error

	if gormDB != nil {
		listing, err = gormDB.GetListingByID(id)
	} else {
		listing, err = db.GetListingByID(id)
	}

	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Listing not found"})
		return
	}

	// Fetch images if using GORM
	var images []models.ListingImage
	if gormDB != nil {
		images, _ = gormDB.GetListingImages(id)
	}

	c.JSON(http.StatusOK, gin.H{
		"listing": listing,
		"images":  images,
	})
}

// createScraper creates a new scraper instance with configuration
func createScraper() *scraper.Scraper {
	if appConfig == nil {
		return scraper.NewScraper("")
	}

	return scraper.NewScraperWithConfig(scraper.ScraperConfig{
		BaseURL:      appConfig.Scraper.BaseURL,
		Timeout:      appConfig.Scraper.GetTimeout(),
		MaxRetries:   appConfig.Scraper.MaxRetries,
		RetryDelay:   appConfig.Scraper.GetRetryDelay(),
		RequestDelay: appConfig.Scraper.GetRequestDelay(),
	})
}

func scrapeURL(c *gin.Context) {
	var req struct {
		URL string `json:"url" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// Scrape the listing (detail pacing is handled inside the scraper)
	s := createScraper()
	listing, err := s.ScrapeListing(req.URL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	// Save to database with images (if using GORM)
	if gormDB != nil {
		images := s.LastImages()
		err = gormDB.SaveListingWithImages(listing, images)
		if err == nil && len(images) > 0 {
			log.Printf("[images] listing_id=%s images_len=%d saved", listing.ID, len(images))
		}
	} else {
		// Postgres path doesn't support image rows
		err = db.SaveListing(listing)
	}

	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	// Index in Meilisearch
	if err := searchClient.IndexListing(listing); err != nil {
		log.Printf("Warning: Failed to index listing: %v", err)
	}

	c.JSON(http.StatusOK, listing)
}

func scrapeBatch(c *gin.Context) {
	var req struct {
		URLs []string `json:"urls" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	s := createScraper()
	var listings []models.Listing
	var errors []string

	for _, url := range req.URLs {
		listing, err := s.ScrapeListing(url)
		if err != nil {
			errors = append(errors, fmt.Sprintf("%s: %v", url, err))
			continue
		}

		if gormDB != nil {
			err = gormDB.SaveListingWithImages(listing, s.LastImages())
		} else {
			err = db.SaveListing(listing)
		}

		if err != nil {
			errors = append(errors, fmt.Sprintf("%s: %v", url, err))
			continue
		}

		listings = append(listings, *listing)
	}

	// Index all listings
	if len(listings) > 0 {
		if err := searchClient.IndexListings(listings); err != nil {
			log.Printf("Warning: Failed to index listings: %v", err)
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  len(listings),
		"failed":   len(errors),
		"errors":   errors,
		"listings": listings,
	})
}

func scrapeListPage(c *gin.Context) {
	var req struct {
		URL   string `json:"url" binding:"required"`
		Limit int    `json:"limit"` // Optional: max number of new listings to scrape
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// Default limit to 20 if not specified
	if req.Limit == 0 {
		req.Limit = 20
	}

	s := createScraper()

	// Step 1: Extract listing URLs from list page
	log.Printf("Scraping list page: %s", req.URL)
	listingURLs, err := s.ScrapeListPage(req.URL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("Failed to scrape list page: %v", err)})
		return
	}

	log.Printf("Found %d listing URLs", len(listingURLs))

	// Step 2: Check which listings already exist (differential scraping)
	existingCount := 0
	newURLs := []string{}

	for _, url := range listingURLs {
		id := database.GenerateListingID(url)

		var exists bool
		if gormDB != nil {
			var count int64
			gormDB.DB().Model(&models.Listing{}).Where("id = ?", id).Count(&count)
			exists = count > 0
		} else if _, lookupErr := db.GetListingByID(id); lookupErr == nil {
			exists = true
		}

		if exists {
			existingCount++
		} else {
			newURLs = append(newURLs, url)
		}
	}

	log.Printf("Found %d existing listings, %d new listings to scrape", existingCount, len(newURLs))

	// Apply limit to new listings only
	if len(newURLs) > req.Limit {
		newURLs = newURLs[:req.Limit]
	}

	// Step 3: Scrape new listings inline. Detail pacing is handled inside the
	// scraper, so this loop is deliberately sequential.
	var scraped []models.Listing
	var scrapeErrors []string

	for i, url := range newURLs {
		log.Printf("Scraping new listing %d/%d: %s", i+1, len(newURLs), url)

		listing, err := s.ScrapeListing(url)
		if err != nil {
			scrapeErrors = append(scrapeErrors, fmt.Sprintf("%s: %v", url, err))
			if strings.Contains(err.Error(), "circuit breaker") {
				log.Printf("🚨 Circuit breaker open, aborting list scrape")
				break
			}
			continue
		}

		if gormDB != nil {
			err = gormDB.SaveListingWithImages(listing, s.LastImages())
		} else {
			err = db.SaveListing(listing)
		}
		if err != nil {
			scrapeErrors = append(scrapeErrors, fmt.Sprintf("%s: %v", url, err))
			continue
		}

		scraped = append(scraped, *listing)
	}

	// Step 4: Index scraped listings
	if len(scraped) > 0 {
		if err := searchClient.IndexListings(scraped); err != nil {
			log.Printf("Warning: Failed to index listings: %v", err)
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"urls_found": len(listingURLs),
		"existing":   existingCount,
		"scraped":    len(scraped),
		"errors":     scrapeErrors,
		"listings":   scraped,
	})
}

func scrapeAndUpdate(c *gin.Context) {
	var req struct {
		URL   string `json:"url" binding:"required"`
		Limit int    `json:"limit"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// Default limit
	if req.Limit == 0 {
		req.Limit = 50
	}

	log.Printf("Starting differential update for: %s", req.URL)

	s := createScraper()

	// Step 1: Extract listing URLs from list page
	listingURLs, err := s.ScrapeListPage(req.URL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("Failed to scrape list page: %v", err)})
		return
	}

	log.Printf("Found %d listing URLs", len(listingURLs))

	// Apply limit
	if len(listingURLs) > req.Limit {
		listingURLs = listingURLs[:req.Limit]
	}

	// Step 2: Scrape each listing
	var scrapedListings []models.Listing
	var scrapeErrors []string
	var permanentFailures []string

	for i, url := range listingURLs {
		log.Printf("Scraping listing %d/%d: %s", i+1, len(listingURLs), url)

		listing, err := s.ScrapeListing(url)
		if err != nil {
			errMsg := err.Error()

			// Check for permanent failure (404)
			if strings.Contains(errMsg, "permanent_fail") || strings.Contains(errMsg, "404") {
				log.Printf("Permanent failure (404) for %s - not retrying", url)
				permanentFailures = append(permanentFailures, fmt.Sprintf("%s: 404 Not Found (permanent)", url))
				continue
			}

			// Other errors (WAF, timeout, etc.)
			scrapeErrors = append(scrapeErrors, fmt.Sprintf("%s: %v", url, err))
			continue
		}

		scrapedListings = append(scrapedListings, *listing)
	}

	log.Printf("Successfully scraped %d listings", len(scrapedListings))

	// Step 3: Detect differences (only for GORM/MySQL)
	if gormDB == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Differential update requires MySQL/GORM"})
		return
	}

	newIDs, removedIDs, updatedListings, err := gormDB.DetectDifferences(scrapedListings)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("Failed to detect differences: %v", err)})
		return
	}

	log.Printf("Differences detected - New: %d, Removed: %d, Updated: %d", len(newIDs), len(removedIDs), len(updatedListings))

	// Step 4: Apply changes
	var saveErrors []string

	// Mark removed listings
	if len(removedIDs) > 0 {
		if err := gormDB.MarkListingsAsRemoved(removedIDs); err != nil {
			saveErrors = append(saveErrors, fmt.Sprintf("Failed to mark listings as removed: %v", err))
		} else {
			log.Printf("Marked %d listings as removed", len(removedIDs))
		}
	}

	// Save new and updated listings, with a snapshot per save
	for _, listing := range scrapedListings {
		if err := gormDB.SaveListing(&listing); err != nil {
			saveErrors = append(saveErrors, fmt.Sprintf("%s: %v", listing.ID, err))
			continue
		}
		if snapshotService != nil {
			if err := snapshotService.CreateSnapshotWithChangeDetection(&listing); err != nil {
				log.Printf("Warning: Failed to snapshot listing %s: %v", listing.ID, err)
			}
		}
	}

	// Step 5: Update search index
	if len(scrapedListings) > 0 {
		if err := searchClient.IndexListings(scrapedListings); err != nil {
			log.Printf("Warning: Failed to index listings: %v", err)
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"scraped":           len(scrapedListings),
		"new":               len(newIDs),
		"removed":           len(removedIDs),
		"updated":           len(updatedListings),
		"scrapeErrors":      scrapeErrors,
		"permanentFailures": permanentFailures,
		"saveErrors":        saveErrors,
	})
}

func searchListings(c *gin.Context) {
	query := c.Query("q")
	limitStr := c.DefaultQuery("limit", "20")

	limit, err := strconv.ParseInt(limitStr, 10, 64)
	if err != nil {
		limit = 20
	}

	// If no query, get all from database
	if query == "" {
		var listings []models.Listing
		var err error

		if gormDB != nil {
			listings, err = gormDB.GetAllListings()
		} else {
			listings, err = db.GetAllListings()
		}

		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, listings)
		return
	}

	// Search using Meilisearch
	listings, err := searchClient.Search(query, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, listings)
}

func filterListings(c *gin.Context) {
	query := c.Query("q")
	limitStr := c.DefaultQuery("limit", "20")

	limit, err := strconv.ParseInt(limitStr, 10, 64)
	if err != nil {
		limit = 20
	}

	// Parse filter parameters
	params := search.FilterParams{
		Query: query,
		Limit: limit,
	}

	// Price range
	if minPriceStr := c.Query("min_price"); minPriceStr != "" {
		if minPrice, err := strconv.ParseFloat(minPriceStr, 64); err == nil {
			params.MinPrice = &minPrice
		}
	}
	if maxPriceStr := c.Query("max_price"); maxPriceStr != "" {
		if maxPrice, err := strconv.ParseFloat(maxPriceStr, 64); err == nil {
			params.MaxPrice = &maxPrice
		}
	}

	// Rooms
	if minBedsStr := c.Query("min_bedrooms"); minBedsStr != "" {
		if minBeds, err := strconv.Atoi(minBedsStr); err == nil {
			params.MinBedrooms = &minBeds
		}
	}
	if minBathsStr := c.Query("min_bathrooms"); minBathsStr != "" {
		if minBaths, err := strconv.Atoi(minBathsStr); err == nil {
			params.MinBathrooms = &minBaths
		}
	}

	// Suburbs and property types
	if suburbs := c.QueryArray("suburb"); len(suburbs) > 0 {
		params.Suburbs = suburbs
	}
	if propertyTypes := c.QueryArray("property_type"); len(propertyTypes) > 0 {
		params.PropertyTypes = propertyTypes
	}

	// Year built
	if minYearStr := c.Query("min_year_built"); minYearStr != "" {
		if minYear, err := strconv.Atoi(minYearStr); err == nil {
			params.MinYearBuilt = &minYear
		}
	}

	// Sort by
	if sortBy := c.Query("sort_by"); sortBy != "" {
		params.SortBy = sortBy
	}

	// If no query and no filters, get all from database
	if query == "" && params.MinPrice == nil && params.MaxPrice == nil &&
		params.MinBedrooms == nil && params.MinBathrooms == nil &&
		len(params.Suburbs) == 0 && len(params.PropertyTypes) == 0 &&
		params.MinYearBuilt == nil {
		var listings []models.Listing
		var err error

		if gormDB != nil {
			listings, err = gormDB.GetAllListings()
		} else {
			listings, err = db.GetAllListings()
		}

		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, listings)
		return
	}

	// Search with filters using Meilisearch
	listings, err := searchClient.FilterSearch(params)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, listings)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvOrConfig returns config value if set, otherwise falls back to environment variable, then default
func getEnvOrConfig(configValue, envKey, defaultValue string) string {
	if configValue != "" {
		return configValue
	}
	return getEnv(envKey, defaultValue)
}

// rateLimitMiddleware returns a Gin middleware that enforces rate limiting
func rateLimitMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rateLimiter.AllowRequest() {
			stats := rateLimiter.GetStats()
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":   "Rate limit exceeded",
				"message": "Too many requests. Please try again later.",
				"stats":   stats,
			})
			c.Abort()
			return
		}
		c.Next()
	}
}

// getRateLimitStats returns current rate limiter statistics
func getRateLimitStats(c *gin.Context) {
	stats := rateLimiter.GetStats()
	c.JSON(http.StatusOK, stats)
}

// getQueueStats returns current analysis queue statistics
func getQueueStats(c *gin.Context) {
	if analysisWorker == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "Analysis worker is not available (requires MySQL/GORM)",
		})
		return
	}

	stats := analysisWorker.GetQueueStats()
	c.JSON(http.StatusOK, stats)
}

// triggerScheduledScraping manually triggers the scheduled scraping job
func triggerScheduledScraping(c *gin.Context) {
	if appScheduler == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "Scheduler is not available (requires MySQL/GORM)",
		})
		return
	}

	// Run in background to avoid timeout
	go func() {
		if err := appScheduler.RunNow(); err != nil {
			log.Printf("Manual scraping failed: %v", err)
		}
	}()

	c.JSON(http.StatusAccepted, gin.H{
		"message": "Scheduled scraping job started in background",
		"status":  "running",
	})
}

// getListingHistory retrieves snapshot history for a listing
func getListingHistory(c *gin.Context) {
	if snapshotService == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "Snapshot service is not available (requires MySQL/GORM)",
		})
		return
	}

	listingID := c.Param("id")
	limitStr := c.DefaultQuery("limit", "30")
	limit, _ := strconv.Atoi(limitStr)

	snapshots, err := snapshotService.GetListingHistory(listingID, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"listing_id": listingID,
		"count":      len(snapshots),
		"snapshots":  snapshots,
	})
}

// getRecentChanges retrieves recent listing changes
func getRecentChanges(c *gin.Context) {
	if snapshotService == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "Snapshot service is not available (requires MySQL/GORM)",
		})
		return
	}

	limitStr := c.DefaultQuery("limit", "50")
	limit, _ := strconv.Atoi(limitStr)

	changes, err := snapshotService.GetRecentChanges(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"count":   len(changes),
		"changes": changes,
	})
}

// advancedSearchListings performs advanced search with filters and facets
func advancedSearchListings(c *gin.Context) {
	var reqBody struct {
		Query         string   `json:"query"`
		Limit         int64    `json:"limit"`
		Offset        int64    `json:"offset"`
		MinPrice      *float64 `json:"min_price"`
		MaxPrice      *float64 `json:"max_price"`
		MinBedrooms   *int     `json:"min_bedrooms"`
		MinBathrooms  *int     `json:"min_bathrooms"`
		Suburbs       []string `json:"suburbs"`
		PropertyTypes []string `json:"property_types"`
		MinYearBuilt  *int     `json:"min_year_built"`
		Sort          string   `json:"sort"` // "price_asc", "price_desc", "newest", etc.
		Facets        []string `json:"facets"`
	}

	if err := c.ShouldBindJSON(&reqBody); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// Build filter conditions
	filters := []string{}

	if reqBody.MinPrice != nil {
		filters = append(filters, fmt.Sprintf("price >= %.0f", *reqBody.MinPrice))
	}
	if reqBody.MaxPrice != nil {
		filters = append(filters, fmt.Sprintf("price <= %.0f", *reqBody.MaxPrice))
	}
	if reqBody.MinBedrooms != nil {
		filters = append(filters, fmt.Sprintf("bedrooms >= %d", *reqBody.MinBedrooms))
	}
	if reqBody.MinBathrooms != nil {
		filters = append(filters, fmt.Sprintf("bathrooms >= %d", *reqBody.MinBathrooms))
	}
	if reqBody.MinYearBuilt != nil {
		filters = append(filters, fmt.Sprintf("year_built >= %d", *reqBody.MinYearBuilt))
	}
	if len(reqBody.Suburbs) > 0 {
		suburbFilters := make([]string, len(reqBody.Suburbs))
		for i, suburb := range reqBody.Suburbs {
			suburbFilters[i] = fmt.Sprintf("suburb = '%s'", suburb)
		}
		filters = append(filters, "("+strings.Join(suburbFilters, " OR ")+")")
	}
	if len(reqBody.PropertyTypes) > 0 {
		typeFilters := make([]string, len(reqBody.PropertyTypes))
		for i, pt := range reqBody.PropertyTypes {
			typeFilters[i] = fmt.Sprintf("property_type = '%s'", pt)
		}
		filters = append(filters, "("+strings.Join(typeFilters, " OR ")+")")
	}

	// Build sort conditions
	sortConditions := []string{}
	if reqBody.Sort != "" {
		switch reqBody.Sort {
		case "price_asc":
			sortConditions = append(sortConditions, "price:asc")
		case "price_desc":
			sortConditions = append(sortConditions, "price:desc")
		case "floor_area_desc":
			sortConditions = append(sortConditions, "floor_area:desc")
		case "bedrooms_desc":
			sortConditions = append(sortConditions, "bedrooms:desc")
		case "year_built_desc":
			sortConditions = append(sortConditions, "year_built:desc")
		case "newest":
			sortConditions = append(sortConditions, "created_at:desc")
		}
	}

	// Default facets
	facets := reqBody.Facets
	if len(facets) == 0 {
		facets = []string{"suburb", "property_type"}
	}

	// Perform search
	searchReq := search.SearchRequest{
		Query:        reqBody.Query,
		Limit:        reqBody.Limit,
		Offset:       reqBody.Offset,
		Filter:       filters,
		Sort:         sortConditions,
		FacetsFilter: facets,
	}

	if searchReq.Limit == 0 {
		searchReq.Limit = 20
	}

	result, err := searchClient.AdvancedSearch(searchReq)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"hits":            result.Hits,
		"total_hits":      result.TotalHits,
		"facets":          result.Facets,
		"processing_time": result.ProcessingTime,
		"query":           reqBody.Query,
		"filters":         filters,
	})
}

// getSearchFacets retrieves facet distributions
func getSearchFacets(c *gin.Context) {
	facetsParam := c.DefaultQuery("facets", "suburb,property_type")
	facets := strings.Split(facetsParam, ",")

	facetDist, err := searchClient.GetFacets(facets)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"facets": facetDist,
	})
}

// reindexAllListings re-indexes all listings from database to Meilisearch
func reindexAllListings(c *gin.Context) {
	log.Println("[Reindex] Starting full reindex of all listings")

	// Get all listings from database
	var listings []models.Listing
	var err error

	if gormDB != nil {
		listings, err = gormDB.GetAllListings()
	} else {
		listings, err = db.GetAllListings()
	}

	if err != nil {
		log.Printf("[Reindex] Error fetching listings from database: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to fetch listings from database",
		})
		return
	}

	log.Printf("[Reindex] Found %d listings in database", len(listings))

	// Index all listings to Meilisearch
	successCount := 0
	failCount := 0

	for i, listing := range listings {
		if err := searchClient.IndexListing(&listing); err != nil {
			log.Printf("[Reindex] Error indexing listing %d (%s): %v", i+1, listing.ID, err)
			failCount++
		} else {
			successCount++
		}

		// Log progress every 100 listings
		if (i+1)%100 == 0 {
			log.Printf("[Reindex] Progress: %d/%d indexed", i+1, len(listings))
		}
	}

	log.Printf("[Reindex] Reindex complete. Success: %d, Failed: %d", successCount, failCount)

	c.JSON(http.StatusOK, gin.H{
		"message": "Reindex complete",
		"total":   len(listings),
		"indexed": successCount,
		"failed":  failCount,
	})
}
