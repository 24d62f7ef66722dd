package database

import (
	"crypto/md5"
	"fmt"
	"net/url"
	"strings"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"dealflow-portal/internal/models"
)

type GormDB struct {
	db *gorm.DB
}

func NewGormDB(host, port, user, password, dbname string) (*GormDB, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		user, password, host, port, dbname)

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Info),
		NowFunc: func() time.Time {
			return time.Now().Local()
		},
	})
	if err != nil {
		return nil, err
	}

	// Test connection
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	if err := sqlDB.Ping(); err != nil {
		return nil, err
	}

	return &GormDB{db: db}, nil
}

// NewGormDBFromDB creates a GormDB wrapper from an existing gorm.DB instance
func NewGormDBFromDB(db *gorm.DB) *GormDB {
	return &GormDB{db: db}
}

// DB returns the underlying gorm.DB instance
func (gdb *GormDB) DB() *gorm.DB {
	return gdb.db
}

func (gdb *GormDB) Close() error {
	sqlDB, err := gdb.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// GetDB returns the underlying gorm.DB instance
func (gdb *GormDB) GetDB() (*gorm.DB, error) {
	return gdb.db, nil
}

// InitSchema creates tables using GORM AutoMigrate
func (gdb *GormDB) InitSchema() error {
	// AutoMigrate will create tables if they don't exist
	return gdb.db.AutoMigrate(
		&models.Listing{},
		&models.ListingImage{},
		&models.ListingSnapshot{},
		&models.ListingChange{},
		&models.DeleteLog{},
		&models.Deal{},
		&models.DealStageEvent{},
		&models.AnalysisJob{},
		&models.AnalysisReport{},
		&models.ScrapingState{},
	)
}

// SaveListing saves or updates a listing (upsert by detail_url)
func (gdb *GormDB) SaveListing(l *models.Listing) error {
	// Generate ID from normalized URL if not set
	if l.ID == "" {
		l.ID = GenerateListingID(l.DetailURL)
	}

	// Set FetchedAt to now if not set
	if l.FetchedAt.IsZero() {
		l.FetchedAt = time.Now()
	}

	// Set default status to active if not set
	if l.Status == "" {
		l.Status = models.ListingStatusActive
	}

	// Upsert: find existing by detail_url first
	var existing models.Listing
	result := gdb.db.Where("detail_url = ?", l.DetailURL).First(&existing)

	if result.Error == gorm.ErrRecordNotFound {
		return gdb.db.Create(l).Error
	} else if result.Error != nil {
		return result.Error
	}

	// Update existing (keep original CreatedAt, Status, and RemovedAt)
	l.CreatedAt = existing.CreatedAt
	l.ID = existing.ID
	l.Status = existing.Status
	l.RemovedAt = existing.RemovedAt
	return gdb.db.Save(l).Error
}

// SaveListingWithImages saves a listing and its images in a transaction
func (gdb *GormDB) SaveListingWithImages(l *models.Listing, imageURLs []string) error {
	if l.ID == "" {
		l.ID = GenerateListingID(l.DetailURL)
	}
	if l.FetchedAt.IsZero() {
		l.FetchedAt = time.Now()
	}
	if l.Status == "" {
		l.Status = models.ListingStatusActive
	}

	return gdb.db.Transaction(func(tx *gorm.DB) error {
		var existing models.Listing
		result := tx.Where("detail_url = ?", l.DetailURL).First(&existing)

		if result.Error == gorm.ErrRecordNotFound {
			if err := tx.Create(l).Error; err != nil {
				return err
			}
		} else if result.Error != nil {
			return result.Error
		} else {
			l.CreatedAt = existing.CreatedAt
			l.ID = existing.ID
			l.Status = existing.Status
			l.RemovedAt = existing.RemovedAt
			if err := tx.Save(l).Error; err != nil {
				return err
			}
		}

		// Important: an empty image set preserves existing rows
		// (extraction can come back empty on blocked or partial HTML)
		if len(imageURLs) == 0 {
			return nil
		}

		if err := tx.Where("listing_id = ?", l.ID).Delete(&models.ListingImage{}).Error; err != nil {
			return err
		}

		images := make([]models.ListingImage, 0, len(imageURLs))
		for i, u := range imageURLs {
			images = append(images, models.ListingImage{
				ListingID: l.ID,
				ImageURL:  u,
				SortOrder: i,
			})
		}
		return tx.Create(&images).Error
	})
}

// GetListingImages retrieves a listing's images ordered for display
func (gdb *GormDB) GetListingImages(listingID string) ([]models.ListingImage, error) {
	var images []models.ListingImage
	err := gdb.db.Where("listing_id = ?", listingID).Order("sort_order ASC").Find(&images).Error
	return images, err
}

// GetAllListings retrieves all listings, newest first
func (gdb *GormDB) GetAllListings() ([]models.Listing, error) {
	var listings []models.Listing
	err := gdb.db.Order("created_at DESC").Find(&listings).Error
	return listings, err
}

// GetActiveListings retrieves all active listings
func (gdb *GormDB) GetActiveListings() ([]models.Listing, error) {
	var listings []models.Listing
	err := gdb.db.Where("status = ?", models.ListingStatusActive).Order("created_at DESC").Find(&listings).Error
	return listings, err
}

// GetListingByID retrieves a listing by ID
func (gdb *GormDB) GetListingByID(id string) (*models.Listing, error) {
	var listing models.Listing
	err := gdb.db.Where("id = ?", id).First(&listing).Error
	if err != nil {
		return nil, err
	}
	return &listing, nil
}

// ListingFilters describes query parameters for filtered listing retrieval
type ListingFilters struct {
	Suburb        string
	City          string
	PropertyTypes []string
	MinPrice      *float64
	MaxPrice      *float64
	MinBedrooms   *int
	MaxBedrooms   *int
	MinBathrooms  *int
	MinFloorArea  *float64
	MaxFloorArea  *float64
	MinYearBuilt  *int
	MaxYearBuilt  *int
	ExcludeIDs    []string
	SortBy        string
	Limit         int
	Offset        *int
}

// ListingPage is one page of filtered listing results
type ListingPage struct {
	Listings []models.Listing `json:"listings"`
	Total    int64            `json:"total"`
	Limit    int              `json:"limit"`
	Offset   int              `json:"offset"`
}

// GetListingsWithFiltersPaginated retrieves active listings matching the
// filters with a total count for pagination
func (gdb *GormDB) GetListingsWithFiltersPaginated(filters ListingFilters) (*ListingPage, error) {
	query := gdb.db.Model(&models.Listing{}).Where("status = ?", models.ListingStatusActive)

	if filters.Suburb != "" {
		query = query.Where("suburb = ?", filters.Suburb)
	}
	if filters.City != "" {
		query = query.Where("city = ?", filters.City)
	}
	if len(filters.PropertyTypes) > 0 {
		query = query.Where("property_type IN ?", filters.PropertyTypes)
	}
	if filters.MinPrice != nil {
		query = query.Where("price >= ?", *filters.MinPrice)
	}
	if filters.MaxPrice != nil {
		query = query.Where("price <= ?", *filters.MaxPrice)
	}
	if filters.MinBedrooms != nil {
		query = query.Where("bedrooms >= ?", *filters.MinBedrooms)
	}
	if filters.MaxBedrooms != nil {
		query = query.Where("bedrooms <= ?", *filters.MaxBedrooms)
	}
	if filters.MinBathrooms != nil {
		query = query.Where("bathrooms >= ?", *filters.MinBathrooms)
	}
	if filters.MinFloorArea != nil {
		query = query.Where("floor_area >= ?", *filters.MinFloorArea)
	}
	if filters.MaxFloorArea != nil {
		query = query.Where("floor_area <= ?", *filters.MaxFloorArea)
	}
	if filters.MinYearBuilt != nil {
		query = query.Where("year_built >= ?", *filters.MinYearBuilt)
	}
	if filters.MaxYearBuilt != nil {
		query = query.Where("year_built <= ?", *filters.MaxYearBuilt)
	}
	if len(filters.ExcludeIDs) > 0 {
		query = query.Where("id NOT IN ?", filters.ExcludeIDs)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, err
	}

	query = query.Order(listingOrderClause(filters.SortBy))

	limit := filters.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := 0
	if filters.Offset != nil && *filters.Offset > 0 {
		offset = *filters.Offset
	}

	var listings []models.Listing
	if err := query.Limit(limit).Offset(offset).Find(&listings).Error; err != nil {
		return nil, err
	}

	return &ListingPage{
		Listings: listings,
		Total:    total,
		Limit:    limit,
		Offset:   offset,
	}, nil
}

// listingOrderClause maps a sort parameter to an ORDER BY clause (MySQL syntax).
// NULLs go last for ASC, first for DESC.
func listingOrderClause(sortBy string) string {
	switch sortBy {
	case "fetched_at", "fetched_at_desc":
		return "fetched_at DESC"
	case "fetched_at_asc":
		return "fetched_at ASC"
	case "price_asc":
		return "CASE WHEN price IS NULL THEN 1 ELSE 0 END, price ASC"
	case "price_desc":
		return "CASE WHEN price IS NULL THEN 1 ELSE 0 END, price DESC"
	case "floor_area_desc":
		return "CASE WHEN floor_area IS NULL THEN 1 ELSE 0 END, floor_area DESC"
	case "bedrooms_desc":
		return "CASE WHEN bedrooms IS NULL THEN 1 ELSE 0 END, bedrooms DESC"
	case "year_built_desc":
		return "CASE WHEN year_built IS NULL THEN 1 ELSE 0 END, year_built DESC"
	default:
		// Default to newest first (by fetched_at)
		return "fetched_at DESC"
	}
}

// MarkListingAsRemoved marks a listing as removed (logical deletion)
func (gdb *GormDB) MarkListingAsRemoved(id string) error {
	now := time.Now()
	return gdb.db.Model(&models.Listing{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     models.ListingStatusRemoved,
			"removed_at": &now,
		}).Error
}

// MarkListingsAsRemoved marks multiple listings as removed
func (gdb *GormDB) MarkListingsAsRemoved(ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	now := time.Now()
	return gdb.db.Model(&models.Listing{}).
		Where("id IN ?", ids).
		Updates(map[string]interface{}{
			"status":     models.ListingStatusRemoved,
			"removed_at": &now,
		}).Error
}

// DetectDifferences compares current active listings with newly scraped listings.
// Returns: new IDs, removed IDs, updated listings
func (gdb *GormDB) DetectDifferences(scraped []models.Listing) (newIDs []string, removedIDs []string, updated []models.Listing, err error) {
	active, err := gdb.GetActiveListings()
	if err != nil {
		return nil, nil, nil, err
	}

	activeMap := make(map[string]*models.Listing)
	for i := range active {
		activeMap[active[i].ID] = &active[i]
	}

	scrapedMap := make(map[string]*models.Listing)
	for i := range scraped {
		scrapedMap[scraped[i].ID] = &scraped[i]
	}

	// New listings (in scraped but not in active)
	for id := range scrapedMap {
		if _, exists := activeMap[id]; !exists {
			newIDs = append(newIDs, id)
		}
	}

	// Removed listings (in active but not in scraped)
	for id := range activeMap {
		if _, exists := scrapedMap[id]; !exists {
			removedIDs = append(removedIDs, id)
		}
	}

	// Updated listings (in both, but content changed)
	for id, scrapedListing := range scrapedMap {
		if activeListing, exists := activeMap[id]; exists {
			if hasListingChanged(activeListing, scrapedListing) {
				updated = append(updated, *scrapedListing)
			}
		}
	}

	return newIDs, removedIDs, updated, nil
}

// hasListingChanged checks if listing data has changed
func hasListingChanged(old, new *models.Listing) bool {
	if old.Title != new.Title {
		return true
	}
	if !floatPtrEqual(old.Price, new.Price) {
		return true
	}
	if old.ImageURL != new.ImageURL {
		return true
	}
	return false
}

func floatPtrEqual(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// GenerateListingID derives the stable listing ID from a detail URL
func GenerateListingID(detailURL string) string {
	return generateMD5(normalizeURL(detailURL))
}

// normalizeURL normalizes a URL for consistent ID generation
func normalizeURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}

	// Remove query parameters and fragment
	u.RawQuery = ""
	u.Fragment = ""

	// Ensure trailing slash consistency (remove it)
	u.Path = strings.TrimSuffix(u.Path, "/")

	// Force HTTPS
	u.Scheme = "https"

	return u.String()
}

// generateMD5 generates MD5 hash for a string
func generateMD5(text string) string {
	hash := md5.Sum([]byte(text))
	return fmt.Sprintf("%x", hash)
}
