package snapshot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dealflow-portal/internal/models"
)

func floatPtr(v float64) *float64 { return &v }
func intPtr(v int) *int           { return &v }

func TestDiffSnapshotNoChanges(t *testing.T) {
	listing := &models.Listing{
		ID:       "abc",
		Price:    floatPtr(689000),
		Bedrooms: intPtr(3),
		Status:   models.ListingStatusActive,
		ImageURL: "https://cdn.realhub.co.nz/a.jpg",
	}
	last := &models.ListingSnapshot{
		ListingID: "abc",
		Price:     floatPtr(689000),
		Bedrooms:  intPtr(3),
		Status:    "active",
		ImageURL:  "https://cdn.realhub.co.nz/a.jpg",
	}

	assert.Empty(t, DiffSnapshot(listing, last))
}

func TestDiffSnapshotPriceDrop(t *testing.T) {
	listing := &models.Listing{ID: "abc", Price: floatPtr(650000), Status: models.ListingStatusActive}
	last := &models.ListingSnapshot{ListingID: "abc", Price: floatPtr(689000), Status: "active"}

	changes := DiffSnapshot(listing, last)
	require.Len(t, changes, 1)
	assert.Equal(t, models.ChangeTypePrice, changes[0].ChangeType)
	assert.Equal(t, "689000.00", changes[0].OldValue)
	assert.Equal(t, "650000.00", changes[0].NewValue)
	require.NotNil(t, changes[0].ChangeMagnitude)
	assert.Equal(t, -39000.0, *changes[0].ChangeMagnitude)
}

func TestDiffSnapshotPriceAppears(t *testing.T) {
	// Listing moved from "by negotiation" to an asking price: no
	// magnitude because there is no old value to diff against
	listing := &models.Listing{ID: "abc", Price: floatPtr(700000), Status: models.ListingStatusActive}
	last := &models.ListingSnapshot{ListingID: "abc", Price: nil, Status: "active"}

	changes := DiffSnapshot(listing, last)
	require.Len(t, changes, 1)
	assert.Equal(t, "nil", changes[0].OldValue)
	assert.Equal(t, "700000.00", changes[0].NewValue)
	require.NotNil(t, changes[0].ChangeMagnitude)
	assert.Equal(t, 0.0, *changes[0].ChangeMagnitude)
}

func TestDiffSnapshotStatusChange(t *testing.T) {
	listing := &models.Listing{ID: "abc", Status: models.ListingStatusRemoved}
	last := &models.ListingSnapshot{ListingID: "abc", Status: "active"}

	changes := DiffSnapshot(listing, last)
	require.Len(t, changes, 1)
	assert.Equal(t, models.ChangeTypeStatus, changes[0].ChangeType)
	assert.Equal(t, "active", changes[0].OldValue)
	assert.Equal(t, "removed", changes[0].NewValue)
}

func TestDiffSnapshotMultipleChanges(t *testing.T) {
	listing := &models.Listing{
		ID:           "abc",
		Price:        floatPtr(650000),
		Bedrooms:     intPtr(4),
		PropertyType: "townhouse",
		Status:       models.ListingStatusActive,
	}
	last := &models.ListingSnapshot{
		ListingID:    "abc",
		Price:        floatPtr(689000),
		Bedrooms:     intPtr(3),
		PropertyType: "house",
		Status:       "active",
	}

	changes := DiffSnapshot(listing, last)
	assert.Len(t, changes, 3)

	types := make([]string, len(changes))
	for i, c := range changes {
		types[i] = c.ChangeType
	}
	assert.Contains(t, types, models.ChangeTypePrice)
	assert.Contains(t, types, models.ChangeTypeBedrooms)
	assert.Contains(t, types, models.ChangeTypePropertyType)
}

func TestPtrEqualHelpers(t *testing.T) {
	assert.True(t, floatPtrEqual(nil, nil))
	assert.True(t, floatPtrEqual(floatPtr(1), floatPtr(1)))
	assert.False(t, floatPtrEqual(floatPtr(1), nil))
	assert.False(t, floatPtrEqual(floatPtr(1), floatPtr(2)))

	assert.True(t, intPtrEqual(nil, nil))
	assert.False(t, intPtrEqual(intPtr(1), intPtr(2)))
}
