// Package valuation implements the deal valuation engines: after-repair value,
// renovation cost aggregation and offer price recommendation.
//
// Every function here is pure: no I/O, no shared state, safe for concurrent use.
// Missing input data never raises an error; each missing quantity degrades
// through a documented fallback chain down to zero or a placeholder constant.
package valuation

import "dealflow-portal/internal/models"

// Recognized renovation category keys. The selection mapping is open by design:
// unknown keys are tolerated and priced by their own option, so new categories
// can be added without touching the engines.
const (
	CategoryKitchen    = "kitchen"
	CategoryBathroom   = "bathroom"
	CategoryFlooring   = "flooring"
	CategoryPainting   = "painting"
	CategoryAddBedroom = "add_bedroom"
)

// Assumption constants shared by the engines (NZD)
const (
	// SellingCostRate is the assumed selling/holding cost reserve on the target sale price
	SellingCostRate = 0.10
	// MarginRate is the assumed profit margin reserve on the target sale price
	MarginRate = 0.15
	// RenovationSpreadRate estimates renovation cost as a share of the
	// target-sale-price / purchase-price spread when no analysis exists
	RenovationSpreadRate = 0.15
	// DefaultRenovationEstimate is the placeholder used when no better tier applies
	DefaultRenovationEstimate = 50000
)

// DefaultRenovationOptions returns the static per-category defaults used to
// seed selection controls. Callers get a fresh copy each time; the defaults
// themselves are never mutated at runtime.
func DefaultRenovationOptions() models.RenovationSelections {
	return models.RenovationSelections{
		{Key: CategoryKitchen, Option: &models.RenovationOption{
			Cost:            25000,
			ValueAddPercent: 6,
			Description:     "Full kitchen replacement with mid-range fittings",
		}},
		{Key: CategoryBathroom, Option: &models.RenovationOption{
			Cost:            15000,
			ValueAddPercent: 4,
			Description:     "Bathroom renovation including tiling and vanity",
		}},
		{Key: CategoryFlooring, Option: &models.RenovationOption{
			Cost:            8000,
			ValueAddPercent: 2,
			Description:     "New carpet and hard flooring throughout",
		}},
		{Key: CategoryPainting, Option: &models.RenovationOption{
			Cost:            6000,
			ValueAddPercent: 2,
			Description:     "Interior and exterior repaint",
		}},
		{Key: CategoryAddBedroom, Option: &models.RenovationOption{
			Cost:            40000,
			ValueAddPercent: 10,
			Description:     "Convert existing space into an additional bedroom",
		}},
	}
}
