package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func intPtr(v int) *int          { return &v }
func floatPtr(v float64) *float64 { return &v }

func TestBuildFilterExpressionEmpty(t *testing.T) {
	assert.Equal(t, "", BuildFilterExpression(FilterParams{}))
}

func TestBuildFilterExpressionPriceRange(t *testing.T) {
	expr := BuildFilterExpression(FilterParams{
		MinPrice: floatPtr(400000),
		MaxPrice: floatPtr(750000),
	})
	assert.Equal(t, "price >= 400000 AND price <= 750000", expr)
}

func TestBuildFilterExpressionRooms(t *testing.T) {
	expr := BuildFilterExpression(FilterParams{
		MinBedrooms:  intPtr(3),
		MinBathrooms: intPtr(2),
	})
	assert.Equal(t, "bedrooms >= 3 AND bathrooms >= 2", expr)
}

func TestBuildFilterExpressionSuburbsOr(t *testing.T) {
	expr := BuildFilterExpression(FilterParams{
		Suburbs: []string{"Papatoetoe", "Manurewa"},
	})
	assert.Equal(t, "(suburb = 'Papatoetoe' OR suburb = 'Manurewa')", expr)
}

func TestBuildFilterExpressionCombined(t *testing.T) {
	expr := BuildFilterExpression(FilterParams{
		MinPrice:      floatPtr(500000),
		Suburbs:       []string{"Otara"},
		PropertyTypes: []string{"house", "townhouse"},
		MinYearBuilt:  intPtr(1990),
	})
	assert.Equal(t,
		"price >= 500000 AND (suburb = 'Otara') AND (property_type = 'house' OR property_type = 'townhouse') AND year_built >= 1990",
		expr)
}

func TestCombineFilters(t *testing.T) {
	assert.Equal(t, "", CombineFilters(nil))
	assert.Equal(t, "price >= 100", CombineFilters([]string{"price >= 100"}))
	assert.Equal(t, "price >= 100 AND bedrooms >= 2", CombineFilters([]string{"price >= 100", "bedrooms >= 2"}))
}
