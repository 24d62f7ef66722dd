package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Deal represents one property moving through the acquisition pipeline
type Deal struct {
	ID        string `gorm:"type:varchar(32);primaryKey" json:"id"`
	ListingID string `gorm:"type:varchar(32);index" json:"listing_id,omitempty"`
	Title     string `gorm:"type:text;not null" json:"title"`
	Address   string `gorm:"type:text" json:"address,omitempty"`
	Notes     string `gorm:"type:text" json:"notes,omitempty"`

	// Pipeline stage
	Stage DealStage `gorm:"type:varchar(20);not null;default:'find';index" json:"stage"`

	// Money fields (NZD). Nil means unknown, not zero.
	PurchasePrice   *float64 `gorm:"type:decimal(14,2)" json:"purchase_price,omitempty"`
	TargetSalePrice *float64 `gorm:"type:decimal(14,2)" json:"target_sale_price,omitempty"`
	CurrentPrice    *float64 `gorm:"type:decimal(14,2)" json:"current_price,omitempty"`
	CurrentProfit   *float64 `gorm:"type:decimal(14,2)" json:"current_profit,omitempty"`

	// User-chosen renovation assumptions, stored as an ordered JSON list
	RenovationSelections RenovationSelections `gorm:"type:json" json:"renovation_selections,omitempty"`

	// Latest AI analysis results, attached by the persistence layer (not columns)
	MarketAnalysis     *MarketAnalysis     `gorm:"-" json:"market_analysis,omitempty"`
	RenovationAnalysis *RenovationAnalysis `gorm:"-" json:"renovation_analysis,omitempty"`
	RiskAnalysis       *RiskAnalysis       `gorm:"-" json:"risk_analysis,omitempty"`

	CreatedAt time.Time `gorm:"type:datetime;not null;autoCreateTime;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"type:datetime;not null;autoUpdateTime" json:"updated_at"`
}

// TableName specifies the table name
func (Deal) TableName() string {
	return "deals"
}

// DealStage is a step in the deal pipeline
type DealStage string

const (
	StageFind          DealStage = "find"
	StageAnalysis      DealStage = "analysis"
	StageOffer         DealStage = "offer"
	StageUnderContract DealStage = "under_contract"
	StageReno          DealStage = "reno"
	StageListed        DealStage = "listed"
	StageSold          DealStage = "sold"
	StageDead          DealStage = "dead"
)

// stageSuccessors maps each stage to the stages it may move to.
// Any stage except sold/dead may also be abandoned (dead).
var stageSuccessors = map[DealStage][]DealStage{
	StageFind:          {StageAnalysis},
	StageAnalysis:      {StageOffer},
	StageOffer:         {StageUnderContract},
	StageUnderContract: {StageReno},
	StageReno:          {StageListed},
	StageListed:        {StageSold},
	StageSold:          {},
	StageDead:          {},
}

// ValidStage reports whether s is a known pipeline stage
func ValidStage(s DealStage) bool {
	_, ok := stageSuccessors[s]
	return ok
}

// CanTransition reports whether a deal may move from one stage to another
func CanTransition(from, to DealStage) bool {
	if !ValidStage(from) || !ValidStage(to) {
		return false
	}
	if to == StageDead {
		return from != StageSold && from != StageDead
	}
	for _, next := range stageSuccessors[from] {
		if next == to {
			return true
		}
	}
	return false
}

// DealStageEvent records one pipeline transition
type DealStageEvent struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	DealID    string    `gorm:"type:varchar(32);not null;index" json:"deal_id"`
	FromStage DealStage `gorm:"type:varchar(20);not null" json:"from_stage"`
	ToStage   DealStage `gorm:"type:varchar(20);not null" json:"to_stage"`
	Note      string    `gorm:"type:text" json:"note,omitempty"`
	CreatedAt time.Time `gorm:"type:datetime;not null;autoCreateTime;index" json:"created_at"`
}

// TableName specifies the table name
func (DealStageEvent) TableName() string {
	return "deal_stage_events"
}

// RenovationOption is one renovation category's user-chosen cost/value-add assumption
type RenovationOption struct {
	Selected        bool    `json:"selected"`
	Cost            float64 `json:"cost"`
	ValueAddPercent float64 `json:"value_add_percent"`
	Description     string  `json:"description,omitempty"`
}

// RenovationEntry pairs a category key with its option. The key set is open:
// recognized keys are kitchen, bathroom, flooring, painting and add_bedroom,
// but new categories may appear without any change here.
type RenovationEntry struct {
	Key    string            `json:"key"`
	Option *RenovationOption `json:"option"`
}

// RenovationSelections is an ordered mapping of category key to option.
// A slice rather than a map so selection order survives JSON round-trips.
type RenovationSelections []RenovationEntry

// Get returns the option for a category key, or nil if absent
func (s RenovationSelections) Get(key string) *RenovationOption {
	for _, e := range s {
		if e.Key == key {
			return e.Option
		}
	}
	return nil
}

// Value implements driver.Valuer for JSON column storage
func (s RenovationSelections) Value() (driver.Value, error) {
	if s == nil {
		return nil, nil
	}
	return json.Marshal(s)
}

// Scan implements sql.Scanner for JSON column storage
func (s *RenovationSelections) Scan(value interface{}) error {
	if value == nil {
		*s = nil
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type for RenovationSelections: %T", value)
	}
	if len(data) == 0 {
		*s = nil
		return nil
	}
	return json.Unmarshal(data, s)
}

// MarketAnalysis is the AI market analysis attached to a deal
type MarketAnalysis struct {
	Analysis MarketFigures `json:"analysis"`
	Summary  string        `json:"summary,omitempty"`
}

// MarketFigures holds the numeric outputs of the market analysis
type MarketFigures struct {
	EstimatedARV    *float64 `json:"estimated_arv,omitempty"`
	MedianSalePrice *float64 `json:"median_sale_price,omitempty"`
	DaysOnMarket    *int     `json:"days_on_market,omitempty"`
}

// RenovationAnalysis is the AI renovation cost analysis attached to a deal
type RenovationAnalysis struct {
	TotalCost *float64             `json:"total_cost,omitempty"`
	Items     []RenovationCostItem `json:"items,omitempty"`
	Summary   string               `json:"summary,omitempty"`
}

// RenovationCostItem is one line of the renovation analysis
type RenovationCostItem struct {
	Category string  `json:"category"`
	Cost     float64 `json:"cost"`
	Note     string  `json:"note,omitempty"`
}

// RiskAnalysis is the AI risk analysis attached to a deal
type RiskAnalysis struct {
	RiskLevel string   `json:"risk_level,omitempty"` // low, medium, high
	Factors   []string `json:"factors,omitempty"`
	Summary   string   `json:"summary,omitempty"`
}
