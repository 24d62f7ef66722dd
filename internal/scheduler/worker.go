package scheduler

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"gorm.io/gorm"

	"dealflow-portal/internal/analysis"
	"dealflow-portal/internal/database"
	"dealflow-portal/internal/models"
)

// AnalysisWorker processes analysis_jobs: it sends deal facts to the
// external analysis service and stores the resulting reports.
type AnalysisWorker struct {
	db           *gorm.DB
	gormDB       *database.GormDB
	client       *analysis.Client
	stopChan     chan struct{}
	isRunning    bool
	pollInterval time.Duration
}

// NewAnalysisWorker creates a new analysis worker
func NewAnalysisWorker(db *gorm.DB, client *analysis.Client, pollInterval time.Duration) *AnalysisWorker {
	if pollInterval <= 0 {
		pollInterval = 30 * time.Second
	}

	return &AnalysisWorker{
		db:           db,
		gormDB:       database.NewGormDBFromDB(db),
		client:       client,
		stopChan:     make(chan struct{}),
		pollInterval: pollInterval,
	}
}

// Start starts the analysis worker
func (w *AnalysisWorker) Start() {
	if w.isRunning {
		log.Println("AnalysisWorker: Already running")
		return
	}

	w.isRunning = true
	log.Printf("AnalysisWorker: Started (poll_interval=%v)", w.pollInterval)

	go w.run()
}

// Stop stops the analysis worker
func (w *AnalysisWorker) Stop() {
	if !w.isRunning {
		return
	}

	log.Println("AnalysisWorker: Stopping...")
	w.isRunning = false
	close(w.stopChan)
}

// run is the main worker loop
func (w *AnalysisWorker) run() {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopChan:
			log.Println("AnalysisWorker: Stopped")
			return
		case <-ticker.C:
			w.processNextJob()
		}
	}
}

// processNextJob picks up the next due job and processes it
func (w *AnalysisWorker) processNextJob() {
	var job models.AnalysisJob
	now := time.Now()

	// Priority 1: pending jobs first
	result := w.db.Where("status = ?", models.JobStatusPending).
		Order("priority DESC, created_at ASC").
		First(&job)

	// Priority 2: failed jobs whose retry time has passed
	if result.Error == gorm.ErrRecordNotFound {
		result = w.db.Where("status = ? AND next_retry_at IS NOT NULL AND next_retry_at <= ?", models.JobStatusFailed, now).
			Order("priority DESC, created_at ASC").
			First(&job)
	}

	if result.Error != nil {
		if result.Error != gorm.ErrRecordNotFound {
			log.Printf("AnalysisWorker: Error fetching next job: %v", result.Error)
		}
		return
	}

	w.processJob(&job)
}

// processJob runs a single analysis job
func (w *AnalysisWorker) processJob(job *models.AnalysisJob) {
	log.Printf("AnalysisWorker: Processing id=%d deal=%s kind=%s attempt=%d", job.ID, job.DealID, job.Kind, job.Attempts+1)

	job.Status = models.JobStatusProcessing
	job.Attempts++
	if err := w.db.Save(job).Error; err != nil {
		log.Printf("AnalysisWorker: Failed to update status to processing: %v", err)
		return
	}

	deal, err := w.gormDB.GetDealByID(job.DealID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			// Deal was deleted while the job was queued: nothing to analyze
			log.Printf("AnalysisWorker: Deal %s no longer exists, marking job %d as permanent_fail", job.DealID, job.ID)
			w.markPermanentFail(job, "deal deleted")
			return
		}
		w.handleJobError(job, fmt.Errorf("failed to load deal: %w", err))
		return
	}

	facts := analysis.BuildDealFacts(deal)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	report, err := w.client.Analyze(ctx, job.Kind, facts)
	if err != nil {
		w.handleJobError(job, err)
		return
	}

	saved := &models.AnalysisReport{
		DealID:  job.DealID,
		Kind:    job.Kind,
		Payload: string(report.Payload),
		Model:   report.Model,
	}
	if err := w.gormDB.SaveAnalysisReport(saved); err != nil {
		w.handleJobError(job, fmt.Errorf("failed to save report: %w", err))
		return
	}

	job.Status = models.JobStatusDone
	job.LastError = ""
	completedAt := time.Now()
	job.CompletedAt = &completedAt
	job.NextRetryAt = nil

	if err := w.db.Save(job).Error; err != nil {
		log.Printf("AnalysisWorker: Failed to mark job as done: %v", err)
	} else {
		log.Printf("AnalysisWorker: ✅ Completed id=%d deal=%s kind=%s", job.ID, job.DealID, job.Kind)
	}
}

// handleJobError schedules a retry or marks the job as failed for good
func (w *AnalysisWorker) handleJobError(job *models.AnalysisJob, err error) {
	errMsg := err.Error()
	log.Printf("AnalysisWorker: Job failed id=%d: %v", job.ID, err)

	// Requests the service rejected outright will never succeed
	if strings.Contains(errMsg, "rejected request") {
		w.markPermanentFail(job, errMsg)
		return
	}

	if job.Attempts >= models.MaxJobAttempts {
		log.Printf("AnalysisWorker: Max attempts exceeded for id=%d (%d attempts)", job.ID, job.Attempts)
		job.Status = models.JobStatusFailed
		job.LastError = fmt.Sprintf("Max attempts exceeded (%d): %s", job.Attempts, errMsg)
		completedAt := time.Now()
		job.CompletedAt = &completedAt
		job.NextRetryAt = nil
	} else {
		delay := models.NextJobRetryDelay(job.Attempts - 1) // -1 because Attempts was already incremented
		nextRetry := time.Now().Add(delay)
		job.Status = models.JobStatusFailed
		job.LastError = errMsg
		job.NextRetryAt = &nextRetry
		log.Printf("AnalysisWorker: Scheduling retry for id=%d in %v (attempt %d/%d)",
			job.ID, delay, job.Attempts, models.MaxJobAttempts)
	}

	if err := w.db.Save(job).Error; err != nil {
		log.Printf("AnalysisWorker: Failed to save retry status: %v", err)
	}
}

func (w *AnalysisWorker) markPermanentFail(job *models.AnalysisJob, reason string) {
	job.Status = models.JobStatusPermanentFail
	job.LastError = reason
	completedAt := time.Now()
	job.CompletedAt = &completedAt
	job.NextRetryAt = nil

	if err := w.db.Save(job).Error; err != nil {
		log.Printf("AnalysisWorker: Failed to save permanent_fail status: %v", err)
	}
}

// GetQueueStats returns current queue statistics
func (w *AnalysisWorker) GetQueueStats() map[string]interface{} {
	var stats struct {
		Pending       int64
		Processing    int64
		Done          int64
		Failed        int64
		PermanentFail int64
	}

	w.db.Model(&models.AnalysisJob{}).Where("status = ?", models.JobStatusPending).Count(&stats.Pending)
	w.db.Model(&models.AnalysisJob{}).Where("status = ?", models.JobStatusProcessing).Count(&stats.Processing)
	w.db.Model(&models.AnalysisJob{}).Where("status = ?", models.JobStatusDone).Count(&stats.Done)
	w.db.Model(&models.AnalysisJob{}).Where("status = ?", models.JobStatusFailed).Count(&stats.Failed)
	w.db.Model(&models.AnalysisJob{}).Where("status = ?", models.JobStatusPermanentFail).Count(&stats.PermanentFail)

	return map[string]interface{}{
		"pending":        stats.Pending,
		"processing":     stats.Processing,
		"done":           stats.Done,
		"failed":         stats.Failed,
		"permanent_fail": stats.PermanentFail,
		"is_running":     w.isRunning,
	}
}
