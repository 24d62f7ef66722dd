package models

import "time"

// ListingSnapshot represents a daily snapshot of a listing's state
type ListingSnapshot struct {
	ID         uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	ListingID  string    `gorm:"type:varchar(32);not null;index:idx_listing_date" json:"listing_id"`
	SnapshotAt time.Time `gorm:"type:date;not null;index:idx_listing_date,priority:2;index:idx_snapshot_date" json:"snapshot_at"`

	// Listing state at snapshot time
	Price        *float64 `gorm:"type:decimal(14,2)" json:"price,omitempty"`
	Bedrooms     *int     `gorm:"type:int" json:"bedrooms,omitempty"`
	Bathrooms    *int     `gorm:"type:int" json:"bathrooms,omitempty"`
	FloorArea    *float64 `gorm:"type:decimal(10,2)" json:"floor_area,omitempty"`
	PropertyType string   `gorm:"type:varchar(30)" json:"property_type,omitempty"`
	Suburb       string   `gorm:"type:varchar(100)" json:"suburb,omitempty"`
	Address      string   `gorm:"type:text" json:"address,omitempty"`
	ImageURL     string   `gorm:"type:text" json:"image_url,omitempty"`
	Status       string   `gorm:"type:varchar(20);not null" json:"status"`

	// Change detection
	HasChanged bool   `gorm:"type:boolean;default:false" json:"has_changed"`
	ChangeNote string `gorm:"type:text" json:"change_note,omitempty"`

	CreatedAt time.Time `gorm:"type:datetime;not null;autoCreateTime" json:"created_at"`
}

// TableName specifies the table name
func (ListingSnapshot) TableName() string {
	return "listing_snapshots"
}

// ListingChange represents detected changes between snapshots.
// Price drops are the main deal-sourcing signal.
type ListingChange struct {
	ID              uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	ListingID       string    `gorm:"type:varchar(32);not null;index" json:"listing_id"`
	SnapshotID      uint      `gorm:"type:bigint;not null" json:"snapshot_id"`
	ChangeType      string    `gorm:"type:varchar(50);not null" json:"change_type"`
	OldValue        string    `gorm:"type:text" json:"old_value,omitempty"`
	NewValue        string    `gorm:"type:text" json:"new_value,omitempty"`
	ChangeMagnitude *float64  `gorm:"type:decimal(14,2)" json:"change_magnitude,omitempty"` // For price changes
	DetectedAt      time.Time `gorm:"type:datetime;not null;autoCreateTime;index" json:"detected_at"`
}

// TableName specifies the table name
func (ListingChange) TableName() string {
	return "listing_changes"
}

// ChangeType constants
const (
	ChangeTypePrice        = "price_changed"
	ChangeTypeStatus       = "status_changed"
	ChangeTypeBedrooms     = "bedrooms_changed"
	ChangeTypePropertyType = "property_type_changed"
	ChangeTypeImage        = "image_changed"
	ChangeTypeNew          = "new_listing"
	ChangeTypeRemoved      = "listing_removed"
)
