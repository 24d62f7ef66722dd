package models

import (
	"time"
)

// AnalysisJob queues a request to the external AI analysis service for a deal.
// Queuing keeps analysis off the request path and lets failures retry with backoff.
type AnalysisJob struct {
	ID          int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	DealID      string     `gorm:"type:varchar(32);not null;index:idx_job_lookup" json:"deal_id"`
	Kind        string     `gorm:"type:varchar(20);not null;index:idx_job_lookup" json:"kind"` // market, renovation, risk
	Status      string     `gorm:"type:varchar(20);not null;default:'pending';index:idx_job_status" json:"status"`
	Priority    int        `gorm:"default:0;index:idx_job_priority" json:"priority"` // Higher = process first
	Attempts    int        `gorm:"default:0" json:"attempts"`
	LastError   string     `gorm:"type:text" json:"last_error,omitempty"`
	NextRetryAt *time.Time `gorm:"index:idx_job_retry" json:"next_retry_at,omitempty"`
	CreatedAt   time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// TableName specifies the table name for GORM
func (AnalysisJob) TableName() string {
	return "analysis_jobs"
}

// Analysis kinds
const (
	AnalysisKindMarket     = "market"
	AnalysisKindRenovation = "renovation"
	AnalysisKindRisk       = "risk"
)

// Job status constants
const (
	JobStatusPending       = "pending"
	JobStatusProcessing    = "processing"
	JobStatusDone          = "done"
	JobStatusFailed        = "failed"
	JobStatusPermanentFail = "permanent_fail" // deal deleted or request rejected as invalid
)

// MaxJobAttempts before marking a job as permanently failed
const MaxJobAttempts = 5

// NextJobRetryDelay calculates exponential backoff for job retries
func NextJobRetryDelay(attempts int) time.Duration {
	// 5min, 15min, 1h, 4h, 12h
	delays := []time.Duration{
		5 * time.Minute,
		15 * time.Minute,
		1 * time.Hour,
		4 * time.Hour,
		12 * time.Hour,
	}

	if attempts >= len(delays) {
		return delays[len(delays)-1]
	}
	return delays[attempts]
}
