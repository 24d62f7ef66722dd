package search

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/meilisearch/meilisearch-go"

	"dealflow-portal/internal/models"
)

type FilterParams struct {
	Query         string
	MinPrice      *float64
	MaxPrice      *float64
	MinBedrooms   *int
	MinBathrooms  *int
	Suburbs       []string
	PropertyTypes []string
	MinYearBuilt  *int
	SortBy        string
	Limit         int64
}

// BuildFilterExpression converts filter params into a Meilisearch filter string.
// Kept separate from the HTTP call so the expression logic is testable without
// a running search server.
func BuildFilterExpression(params FilterParams) string {
	var filters []string

	// Price range filter
	if params.MinPrice != nil {
		filters = append(filters, fmt.Sprintf("price >= %.0f", *params.MinPrice))
	}
	if params.MaxPrice != nil {
		filters = append(filters, fmt.Sprintf("price <= %.0f", *params.MaxPrice))
	}

	// Bedroom/bathroom minimums
	if params.MinBedrooms != nil {
		filters = append(filters, fmt.Sprintf("bedrooms >= %d", *params.MinBedrooms))
	}
	if params.MinBathrooms != nil {
		filters = append(filters, fmt.Sprintf("bathrooms >= %d", *params.MinBathrooms))
	}

	// Suburb filter
	if len(params.Suburbs) > 0 {
		suburbFilters := make([]string, len(params.Suburbs))
		for i, suburb := range params.Suburbs {
			suburbFilters[i] = fmt.Sprintf("suburb = '%s'", suburb)
		}
		filters = append(filters, fmt.Sprintf("(%s)", strings.Join(suburbFilters, " OR ")))
	}

	// Property type filter
	if len(params.PropertyTypes) > 0 {
		typeFilters := make([]string, len(params.PropertyTypes))
		for i, pt := range params.PropertyTypes {
			typeFilters[i] = fmt.Sprintf("property_type = '%s'", pt)
		}
		filters = append(filters, fmt.Sprintf("(%s)", strings.Join(typeFilters, " OR ")))
	}

	// Year built filter
	if params.MinYearBuilt != nil {
		filters = append(filters, fmt.Sprintf("year_built >= %d", *params.MinYearBuilt))
	}

	return strings.Join(filters, " AND ")
}

// CombineFilters joins individual filter expressions with AND
func CombineFilters(filters []string) string {
	return strings.Join(filters, " AND ")
}

// FilterSearch performs advanced search with filters
func (s *SearchClient) FilterSearch(params FilterParams) ([]models.Listing, error) {
	filterStr := BuildFilterExpression(params)

	// Determine sort order
	var sort []string
	if params.SortBy != "" {
		sort = []string{params.SortBy}
	}

	// Default limit
	if params.Limit == 0 {
		params.Limit = 20
	}

	searchReq := &meilisearch.SearchRequest{
		Limit: params.Limit,
	}

	if filterStr != "" {
		searchReq.Filter = filterStr
	}

	if len(sort) > 0 {
		searchReq.Sort = sort
	}

	searchRes, err := s.client.Index(s.index).Search(params.Query, searchReq)
	if err != nil {
		return nil, err
	}

	// Convert hits to listings
	var listings []models.Listing
	for _, hit := range searchRes.Hits {
		// Convert hit to JSON then to Listing struct
		hitJSON, err := json.Marshal(hit)
		if err != nil {
			continue
		}

		var listing models.Listing
		if err := json.Unmarshal(hitJSON, &listing); err != nil {
			continue
		}

		listings = append(listings, listing)
	}

	return listings, nil
}
