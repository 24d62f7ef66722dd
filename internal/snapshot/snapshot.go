package snapshot

import (
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"

	"dealflow-portal/internal/models"
)

// Service handles listing snapshot operations
type Service struct {
	db *gorm.DB
}

// NewService creates a new snapshot service
func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

func snapshotFromListing(listing *models.Listing) *models.ListingSnapshot {
	return &models.ListingSnapshot{
		ListingID:    listing.ID,
		SnapshotAt:   time.Now().Truncate(24 * time.Hour), // date granularity, one per day
		Price:        listing.Price,
		Bedrooms:     listing.Bedrooms,
		Bathrooms:    listing.Bathrooms,
		FloorArea:    listing.FloorArea,
		PropertyType: listing.PropertyType,
		Suburb:       listing.Suburb,
		Address:      listing.Address,
		ImageURL:     listing.ImageURL,
		Status:       string(listing.Status),
	}
}

// CreateSnapshot creates or refreshes today's snapshot of a listing
func (s *Service) CreateSnapshot(listing *models.Listing) error {
	snapshot := snapshotFromListing(listing)

	var existing models.ListingSnapshot
	result := s.db.Where("listing_id = ? AND snapshot_at = ?", listing.ID, snapshot.SnapshotAt).First(&existing)

	if result.Error == gorm.ErrRecordNotFound {
		return s.db.Create(snapshot).Error
	} else if result.Error != nil {
		return result.Error
	}

	snapshot.ID = existing.ID
	return s.db.Save(snapshot).Error
}

// DiffSnapshot compares current listing state against a previous
// snapshot and returns the detected changes. Pure comparison, no I/O.
func DiffSnapshot(listing *models.Listing, last *models.ListingSnapshot) []models.ListingChange {
	now := time.Now()
	var changes []models.ListingChange

	// Price change carries the delta so big drops can be surfaced
	if !floatPtrEqual(listing.Price, last.Price) {
		oldVal := "nil"
		newVal := "nil"
		var magnitude float64

		if last.Price != nil {
			oldVal = fmt.Sprintf("%.2f", *last.Price)
		}
		if listing.Price != nil {
			newVal = fmt.Sprintf("%.2f", *listing.Price)
		}
		if last.Price != nil && listing.Price != nil {
			magnitude = *listing.Price - *last.Price
		}

		changes = append(changes, models.ListingChange{
			ListingID:       listing.ID,
			ChangeType:      models.ChangeTypePrice,
			OldValue:        oldVal,
			NewValue:        newVal,
			ChangeMagnitude: &magnitude,
			DetectedAt:      now,
		})
	}

	if string(listing.Status) != last.Status {
		changes = append(changes, models.ListingChange{
			ListingID:  listing.ID,
			ChangeType: models.ChangeTypeStatus,
			OldValue:   last.Status,
			NewValue:   string(listing.Status),
			DetectedAt: now,
		})
	}

	if !intPtrEqual(listing.Bedrooms, last.Bedrooms) {
		oldVal := "nil"
		newVal := "nil"

		if last.Bedrooms != nil {
			oldVal = fmt.Sprintf("%d", *last.Bedrooms)
		}
		if listing.Bedrooms != nil {
			newVal = fmt.Sprintf("%d", *listing.Bedrooms)
		}

		changes = append(changes, models.ListingChange{
			ListingID:  listing.ID,
			ChangeType: models.ChangeTypeBedrooms,
			OldValue:   oldVal,
			NewValue:   newVal,
			DetectedAt: now,
		})
	}

	if listing.PropertyType != last.PropertyType {
		changes = append(changes, models.ListingChange{
			ListingID:  listing.ID,
			ChangeType: models.ChangeTypePropertyType,
			OldValue:   last.PropertyType,
			NewValue:   listing.PropertyType,
			DetectedAt: now,
		})
	}

	if listing.ImageURL != last.ImageURL {
		changes = append(changes, models.ListingChange{
			ListingID:  listing.ID,
			ChangeType: models.ChangeTypeImage,
			OldValue:   last.ImageURL,
			NewValue:   listing.ImageURL,
			DetectedAt: now,
		})
	}

	return changes
}

// DetectChanges compares current listing state with the most recent
// snapshot before today
func (s *Service) DetectChanges(listing *models.Listing) ([]models.ListingChange, error) {
	var lastSnapshot models.ListingSnapshot
	today := time.Now().Truncate(24 * time.Hour)

	result := s.db.Where("listing_id = ? AND snapshot_at < ?", listing.ID, today).
		Order("snapshot_at DESC").
		First(&lastSnapshot)

	if result.Error == gorm.ErrRecordNotFound {
		// No previous snapshot, this is a new listing
		return []models.ListingChange{{
			ListingID:  listing.ID,
			ChangeType: models.ChangeTypeNew,
			NewValue:   "New listing detected",
			DetectedAt: time.Now(),
		}}, nil
	} else if result.Error != nil {
		return nil, result.Error
	}

	return DiffSnapshot(listing, &lastSnapshot), nil
}

// SaveChanges saves detected changes to the database
func (s *Service) SaveChanges(changes []models.ListingChange, snapshotID uint) error {
	if len(changes) == 0 {
		return nil
	}

	for i := range changes {
		changes[i].SnapshotID = snapshotID
	}

	return s.db.Create(&changes).Error
}

// CreateSnapshotWithChangeDetection creates a snapshot and detects changes
func (s *Service) CreateSnapshotWithChangeDetection(listing *models.Listing) error {
	changes, err := s.DetectChanges(listing)
	if err != nil {
		log.Printf("Warning: Failed to detect changes for listing %s: %v", listing.ID, err)
	}

	snapshot := snapshotFromListing(listing)
	snapshot.HasChanged = len(changes) > 0
	if len(changes) > 0 {
		snapshot.ChangeNote = fmt.Sprintf("%d changes detected", len(changes))
	}

	var existing models.ListingSnapshot
	result := s.db.Where("listing_id = ? AND snapshot_at = ?", listing.ID, snapshot.SnapshotAt).First(&existing)

	if result.Error == gorm.ErrRecordNotFound {
		if err := s.db.Create(snapshot).Error; err != nil {
			return err
		}
	} else if result.Error != nil {
		return result.Error
	} else {
		snapshot.ID = existing.ID
		if err := s.db.Save(snapshot).Error; err != nil {
			return err
		}
	}

	if len(changes) > 0 {
		if err := s.SaveChanges(changes, snapshot.ID); err != nil {
			log.Printf("Warning: Failed to save changes: %v", err)
		} else {
			log.Printf("Detected %d changes for listing %s", len(changes), listing.ID)
		}
	}

	return nil
}

// GetListingHistory retrieves snapshot history for a listing
func (s *Service) GetListingHistory(listingID string, limit int) ([]models.ListingSnapshot, error) {
	var snapshots []models.ListingSnapshot
	query := s.db.Where("listing_id = ?", listingID).Order("snapshot_at DESC")

	if limit > 0 {
		query = query.Limit(limit)
	}

	if err := query.Find(&snapshots).Error; err != nil {
		return nil, err
	}

	return snapshots, nil
}

// GetRecentChanges retrieves recent listing changes
func (s *Service) GetRecentChanges(limit int) ([]models.ListingChange, error) {
	var changes []models.ListingChange
	query := s.db.Order("detected_at DESC")

	if limit > 0 {
		query = query.Limit(limit)
	}

	if err := query.Find(&changes).Error; err != nil {
		return nil, err
	}

	return changes, nil
}

func intPtrEqual(a, b *int) bool {
	if a == nil && b == nil {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	return *a == *b
}

func floatPtrEqual(a, b *float64) bool {
	if a == nil && b == nil {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	return *a == *b
}
