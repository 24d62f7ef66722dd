package scheduler

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"gorm.io/gorm"

	"dealflow-portal/internal/config"
	"dealflow-portal/internal/models"
	"dealflow-portal/internal/scraper"
	"dealflow-portal/internal/snapshot"
)

// Scheduler handles scheduled scraping tasks
type Scheduler struct {
	cron      *cron.Cron
	db        *gorm.DB
	snapshot  *snapshot.Service
	config    *config.Config
	isRunning bool
}

// NewScheduler creates a new scheduler
func NewScheduler(db *gorm.DB, cfg *config.Config) *Scheduler {
	return &Scheduler{
		cron:     cron.New(),
		db:       db,
		snapshot: snapshot.NewService(db),
		config:   cfg,
	}
}

// Start starts the scheduler
func (s *Scheduler) Start() error {
	if !s.config.Scraper.DailyRunEnabled {
		log.Println("Scheduler: Daily run is disabled in configuration")
		return nil
	}

	cronSpec := s.parseDailyRunTime(s.config.Scraper.DailyRunTime)

	_, err := s.cron.AddFunc(cronSpec, func() {
		log.Println("Scheduler: Starting daily refresh job...")
		if err := s.runDailyRefresh(); err != nil {
			log.Printf("Scheduler: Daily refresh failed: %v", err)
		} else {
			log.Println("Scheduler: Daily refresh completed successfully")
		}
	})

	if err != nil {
		return err
	}

	s.cron.Start()
	s.isRunning = true
	log.Printf("Scheduler: Started with daily run at %s (cron: %s)", s.config.Scraper.DailyRunTime, cronSpec)

	return nil
}

// Stop stops the scheduler
func (s *Scheduler) Stop() {
	if s.isRunning {
		s.cron.Stop()
		s.isRunning = false
		log.Println("Scheduler: Stopped")
	}
}

// loadScrapingState fetches the singleton scraping state row, creating
// it on first run
func (s *Scheduler) loadScrapingState() (*models.ScrapingState, error) {
	var state models.ScrapingState
	err := s.db.First(&state).Error
	if err == gorm.ErrRecordNotFound {
		state = models.ScrapingState{LastAttempt: time.Now()}
		if err := s.db.Create(&state).Error; err != nil {
			return nil, err
		}
		return &state, nil
	}
	if err != nil {
		return nil, err
	}
	return &state, nil
}

// runDailyRefresh re-scrapes every active listing, snapshots it and
// marks delisted ones as removed
func (s *Scheduler) runDailyRefresh() error {
	state, err := s.loadScrapingState()
	if err != nil {
		return fmt.Errorf("failed to load scraping state: %w", err)
	}

	if !state.CanScrape() {
		log.Printf("Scheduler: Scraping is blocked until %v (reason: %s), skipping run", state.BlockedUntil, state.BlockedReason)
		return nil
	}

	var listings []models.Listing
	if err := s.db.Where("status = ?", models.ListingStatusActive).Find(&listings).Error; err != nil {
		return err
	}

	log.Printf("Scheduler: Found %d active listings to update", len(listings))

	sc := scraper.NewScraperWithConfig(scraper.ScraperConfig{
		BaseURL:      s.config.Scraper.BaseURL,
		Timeout:      s.config.Scraper.GetTimeout(),
		MaxRetries:   s.config.Scraper.MaxRetries,
		RetryDelay:   s.config.Scraper.GetRetryDelay(),
		RequestDelay: s.config.Scraper.GetRequestDelay(),
	})

	successCount := 0
	errorCount := 0
	changedCount := 0
	removedCount := 0

	for i, listing := range listings {
		log.Printf("Scheduler: [%d/%d] Updating listing %s", i+1, len(listings), listing.ID)

		updated, err := sc.ScrapeListing(listing.DetailURL)
		if err != nil {
			errorCount++

			// A WAF block poisons the whole run: persist the block so
			// restarts honour the cooldown
			if strings.Contains(err.Error(), "WAF") || strings.Contains(err.Error(), "circuit breaker open") {
				log.Printf("Scheduler: WAF block detected, halting refresh and entering cooldown")
				state.SetBlocked(err.Error(), 1*time.Hour)
				if saveErr := s.db.Save(state).Error; saveErr != nil {
					log.Printf("Scheduler: Failed to persist blocked state: %v", saveErr)
				}
				break
			}

			// A permanent 404 means the listing was delisted: record
			// the removal instead of retrying forever
			if strings.Contains(err.Error(), "permanent_fail") || strings.Contains(err.Error(), "404") {
				log.Printf("Scheduler: Listing %s appears delisted, marking as removed", listing.ID)
				listing.MarkAsRemoved()
				if err := s.db.Save(&listing).Error; err != nil {
					log.Printf("Scheduler: Failed to mark listing %s as removed: %v", listing.ID, err)
				} else {
					removedCount++
					if err := s.snapshot.CreateSnapshotWithChangeDetection(&listing); err != nil {
						log.Printf("Scheduler: Failed to snapshot removed listing %s: %v", listing.ID, err)
					}
				}
				continue
			}

			log.Printf("Scheduler: Failed to scrape listing %s: %v", listing.ID, err)
			if s.config.Scraper.StopOnError {
				log.Println("Scheduler: Stop on error is enabled, stopping daily refresh")
				break
			}
			continue
		}

		// Preserve original ID and created_at
		updated.ID = listing.ID
		updated.CreatedAt = listing.CreatedAt

		changes, err := s.snapshot.DetectChanges(updated)
		if err != nil {
			log.Printf("Scheduler: Failed to detect changes for listing %s: %v", listing.ID, err)
		}

		if len(changes) > 0 {
			changedCount++
			log.Printf("Scheduler: Listing %s has %d changes", listing.ID, len(changes))
		}

		if err := s.db.Save(updated).Error; err != nil {
			log.Printf("Scheduler: Failed to save listing %s: %v", listing.ID, err)
			errorCount++
			continue
		}

		if err := s.snapshot.CreateSnapshotWithChangeDetection(updated); err != nil {
			log.Printf("Scheduler: Failed to create snapshot for listing %s: %v", listing.ID, err)
		}

		successCount++
	}

	if successCount > 0 {
		state.RecordSuccess()
	} else if errorCount > 0 {
		state.RecordFailure()
	}
	if err := s.db.Save(state).Error; err != nil {
		log.Printf("Scheduler: Failed to persist scraping state: %v", err)
	}

	log.Printf("Scheduler: Daily refresh completed. Success: %d, Errors: %d, Changed: %d, Removed: %d",
		successCount, errorCount, changedCount, removedCount)

	return nil
}

// GetScrapingState returns the current scraping state for status endpoints
func (s *Scheduler) GetScrapingState() (*models.ScrapingState, error) {
	return s.loadScrapingState()
}

// RunNow immediately executes the daily refresh job (for manual trigger)
func (s *Scheduler) RunNow() error {
	log.Println("Scheduler: Manual trigger - starting refresh job...")
	return s.runDailyRefresh()
}

// parseDailyRunTime converts HH:MM format to cron specification
// Example: "02:00" -> "0 2 * * *" (run at 2:00 AM every day)
func (s *Scheduler) parseDailyRunTime(timeStr string) string {
	var hour, minute int
	n, _ := fmt.Sscanf(timeStr, "%d:%d", &hour, &minute)
	if n == 2 {
		return fmt.Sprintf("%d %d * * *", minute, hour)
	}

	log.Printf("Scheduler: Failed to parse time '%s', using default 02:00", timeStr)
	return "0 2 * * *"
}
