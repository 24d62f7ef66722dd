package models

import "time"

// AnalysisReport stores one AI analysis result for a deal.
// The latest report per (deal, kind) is the authoritative one; older rows are
// kept for history. Payload is the raw JSON returned by the analysis service.
type AnalysisReport struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	DealID    string    `gorm:"type:varchar(32);not null;index:idx_report_lookup" json:"deal_id"`
	Kind      string    `gorm:"type:varchar(20);not null;index:idx_report_lookup,priority:2" json:"kind"`
	Payload   string    `gorm:"type:json;not null" json:"payload"`
	Model     string    `gorm:"type:varchar(100)" json:"model,omitempty"` // which model produced it
	CreatedAt time.Time `gorm:"type:datetime;not null;autoCreateTime;index" json:"created_at"`
}

// TableName specifies the table name
func (AnalysisReport) TableName() string {
	return "analysis_reports"
}
