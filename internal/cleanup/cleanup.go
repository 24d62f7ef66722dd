package cleanup

import (
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"

	"dealflow-portal/internal/models"
	"dealflow-portal/internal/search"
)

// Service handles physical deletion of old removed listings
type Service struct {
	db     *gorm.DB
	search *search.SearchClient
}

// NewService creates a new cleanup service. The search client is
// optional; pass nil to skip index cleanup.
func NewService(db *gorm.DB, searchClient *search.SearchClient) *Service {
	return &Service{db: db, search: searchClient}
}

// CleanupConfig holds configuration for cleanup operations
type CleanupConfig struct {
	RetentionDays    int  // Days to keep removed listings before physical deletion (default: 90)
	MaxDeletionCount int  // Maximum number of listings to delete in one run (safety limit)
	DryRun           bool // If true, only log what would be deleted without actually deleting
	DeleteFromSearch bool // If true, also delete from Meilisearch
}

// DefaultCleanupConfig returns default configuration
func DefaultCleanupConfig() CleanupConfig {
	return CleanupConfig{
		RetentionDays:    90,
		MaxDeletionCount: 10000,
		DryRun:           false,
		DeleteFromSearch: true,
	}
}

// CleanupResult holds the result of a cleanup operation
type CleanupResult struct {
	TargetCount     int       `json:"target_count"`     // Number of listings eligible for deletion
	DeletedCount    int       `json:"deleted_count"`    // Number of listings actually deleted
	SkippedCount    int       `json:"skipped_count"`    // Number of listings skipped
	ErrorCount      int       `json:"error_count"`      // Number of errors encountered
	DryRun          bool      `json:"dry_run"`          // Whether this was a dry run
	ExecutedAt      time.Time `json:"executed_at"`      // When the cleanup was executed
	DeletedListings []string  `json:"deleted_listings"` // IDs of deleted listings
	Errors          []string  `json:"errors,omitempty"` // Error messages
}

// FindExpiredListings finds listings that are eligible for physical deletion.
// Listings must be:
// 1. Status = 'removed'
// 2. removed_at is older than retentionDays
func (s *Service) FindExpiredListings(retentionDays int) ([]models.Listing, error) {
	var listings []models.Listing

	cutoffDate := time.Now().AddDate(0, 0, -retentionDays)

	err := s.db.Where("status = ? AND removed_at < ?",
		models.ListingStatusRemoved,
		cutoffDate,
	).Find(&listings).Error

	if err != nil {
		return nil, fmt.Errorf("failed to find expired listings: %w", err)
	}

	log.Printf("Found %d listings expired before %s", len(listings), cutoffDate.Format("2006-01-02"))
	return listings, nil
}

// PhysicallyDelete performs physical deletion of expired listings
func (s *Service) PhysicallyDelete(config CleanupConfig) (*CleanupResult, error) {
	result := &CleanupResult{
		DryRun:     config.DryRun,
		ExecutedAt: time.Now(),
	}

	expiredListings, err := s.FindExpiredListings(config.RetentionDays)
	if err != nil {
		return nil, err
	}

	result.TargetCount = len(expiredListings)

	if result.TargetCount == 0 {
		log.Println("No expired listings found for deletion")
		return result, nil
	}

	// Safety check: abort if too many listings would be deleted
	if result.TargetCount > config.MaxDeletionCount {
		return nil, fmt.Errorf("safety check failed: %d listings exceed max deletion limit of %d",
			result.TargetCount, config.MaxDeletionCount)
	}

	log.Printf("Starting cleanup: %d listings to delete (retention: %d days, dry-run: %v)",
		result.TargetCount, config.RetentionDays, config.DryRun)

	for _, listing := range expiredListings {
		if config.DryRun {
			log.Printf("[DRY-RUN] Would delete listing %s (Title: %s, RemovedAt: %s)",
				listing.ID, listing.Title, listing.RemovedAt.Format("2006-01-02"))
			result.DeletedListings = append(result.DeletedListings, listing.ID)
			result.DeletedCount++
			continue
		}

		tx := s.db.Begin()

		// 1. Create delete log entry
		deleteLog := models.DeleteLog{
			ListingID: listing.ID,
			Title:     listing.Title,
			DetailURL: listing.DetailURL,
			RemovedAt: *listing.RemovedAt,
			Reason:    models.DeleteReasonExpired,
		}

		if err := tx.Create(&deleteLog).Error; err != nil {
			tx.Rollback()
			errMsg := fmt.Sprintf("Failed to create delete log for listing %s: %v", listing.ID, err)
			log.Printf("ERROR: %s", errMsg)
			result.Errors = append(result.Errors, errMsg)
			result.ErrorCount++
			continue
		}

		// 2. Delete associated images. Snapshots and change history are
		// kept for market trend reporting.
		if err := tx.Where("listing_id = ?", listing.ID).Delete(&models.ListingImage{}).Error; err != nil {
			tx.Rollback()
			errMsg := fmt.Sprintf("Failed to delete images for listing %s: %v", listing.ID, err)
			log.Printf("ERROR: %s", errMsg)
			result.Errors = append(result.Errors, errMsg)
			result.ErrorCount++
			continue
		}

		// 3. Delete the listing record
		if err := tx.Delete(&listing).Error; err != nil {
			tx.Rollback()
			errMsg := fmt.Sprintf("Failed to delete listing %s: %v", listing.ID, err)
			log.Printf("ERROR: %s", errMsg)
			result.Errors = append(result.Errors, errMsg)
			result.ErrorCount++
			continue
		}

		if err := tx.Commit().Error; err != nil {
			errMsg := fmt.Sprintf("Failed to commit deletion for listing %s: %v", listing.ID, err)
			log.Printf("ERROR: %s", errMsg)
			result.Errors = append(result.Errors, errMsg)
			result.ErrorCount++
			continue
		}

		// 4. Remove from search index (outside the transaction, index
		// deletion failure should not roll back the DB delete)
		if config.DeleteFromSearch && s.search != nil {
			if err := s.search.DeleteListing(listing.ID); err != nil {
				log.Printf("Warning: Failed to delete listing %s from search index: %v", listing.ID, err)
			}
		}

		log.Printf("Physically deleted listing %s (Title: %s)", listing.ID, listing.Title)
		result.DeletedListings = append(result.DeletedListings, listing.ID)
		result.DeletedCount++
	}

	log.Printf("Cleanup completed: %d/%d deleted, %d errors (dry-run: %v)",
		result.DeletedCount, result.TargetCount, result.ErrorCount, config.DryRun)

	return result, nil
}

// GetDeleteStats returns statistics about deleted listings
func (s *Service) GetDeleteStats() (map[string]interface{}, error) {
	stats := make(map[string]interface{})

	var totalDeleted int64
	if err := s.db.Model(&models.DeleteLog{}).Count(&totalDeleted).Error; err != nil {
		return nil, err
	}
	stats["total_deleted"] = totalDeleted

	var reasonCounts []struct {
		Reason string
		Count  int64
	}
	if err := s.db.Model(&models.DeleteLog{}).
		Select("reason, count(*) as count").
		Group("reason").
		Scan(&reasonCounts).Error; err != nil {
		return nil, err
	}

	reasonMap := make(map[string]int64)
	for _, rc := range reasonCounts {
		reasonMap[rc.Reason] = rc.Count
	}
	stats["by_reason"] = reasonMap

	var recentDeleted int64
	thirtyDaysAgo := time.Now().AddDate(0, 0, -30)
	if err := s.db.Model(&models.DeleteLog{}).
		Where("deleted_at >= ?", thirtyDaysAgo).
		Count(&recentDeleted).Error; err != nil {
		return nil, err
	}
	stats["deleted_last_30_days"] = recentDeleted

	var currentRemoved int64
	if err := s.db.Model(&models.Listing{}).
		Where("status = ?", models.ListingStatusRemoved).
		Count(&currentRemoved).Error; err != nil {
		return nil, err
	}
	stats["currently_removed"] = currentRemoved

	expiredListings, err := s.FindExpiredListings(90)
	if err != nil {
		return nil, err
	}
	stats["expired_ready_for_deletion"] = len(expiredListings)

	return stats, nil
}

// GetRecentDeleteLogs returns recent delete log entries
func (s *Service) GetRecentDeleteLogs(limit int) ([]models.DeleteLog, error) {
	var logs []models.DeleteLog
	err := s.db.Order("deleted_at DESC").Limit(limit).Find(&logs).Error
	return logs, err
}
