package models

import "time"

type Listing struct {
	// Identity
	ID              string `gorm:"type:varchar(32);primaryKey" json:"id"`
	Source          string `gorm:"type:varchar(50);not null;index:idx_source_lookup" json:"source"`
	SourceListingID string `gorm:"type:varchar(255);index:idx_source_lookup" json:"source_listing_id,omitempty"`
	DetailURL       string `gorm:"type:varchar(500);not null;uniqueIndex" json:"detail_url"`
	Title           string `gorm:"type:text;not null" json:"title"`
	ImageURL        string `gorm:"type:text" json:"image_url,omitempty"`

	// Filter attributes
	Price        *float64 `gorm:"type:decimal(14,2);index" json:"price,omitempty"`
	Bedrooms     *int     `gorm:"type:int;index" json:"bedrooms,omitempty"`
	Bathrooms    *int     `gorm:"type:int" json:"bathrooms,omitempty"`
	FloorArea    *float64 `gorm:"type:decimal(10,2)" json:"floor_area,omitempty"`
	LandArea     *float64 `gorm:"type:decimal(12,2)" json:"land_area,omitempty"`
	YearBuilt    *int     `gorm:"type:int" json:"year_built,omitempty"`
	PropertyType string   `gorm:"type:varchar(30);index" json:"property_type,omitempty"`
	Address      string   `gorm:"type:text" json:"address,omitempty"`
	Suburb       string   `gorm:"type:varchar(100);index" json:"suburb,omitempty"`
	City         string   `gorm:"type:varchar(100);index" json:"city,omitempty"`

	// Status (logical deletion)
	Status    ListingStatus `gorm:"type:varchar(20);not null;default:'active';index" json:"status"`
	RemovedAt *time.Time    `gorm:"type:datetime" json:"removed_at,omitempty"`

	// Timestamps
	FetchedAt time.Time `gorm:"type:datetime;not null" json:"fetched_at"`
	CreatedAt time.Time `gorm:"type:datetime;not null;autoCreateTime;index:idx_created_at,sort:desc" json:"created_at"`
	UpdatedAt time.Time `gorm:"type:datetime;not null;autoUpdateTime" json:"updated_at"`
}

// ListingStatus is the listing lifecycle status
type ListingStatus string

const (
	ListingStatusActive  ListingStatus = "active"
	ListingStatusRemoved ListingStatus = "removed"
)

// TableName specifies the table name
func (Listing) TableName() string {
	return "listings"
}

// IsActive reports whether the listing is still on the market
func (l *Listing) IsActive() bool {
	return l.Status == ListingStatusActive
}

// MarkAsRemoved logically deletes the listing
func (l *Listing) MarkAsRemoved() {
	l.Status = ListingStatusRemoved
	now := time.Now()
	l.RemovedAt = &now
}
