package scraper

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dealflow-portal/internal/models"
)

func TestNormalizeURL(t *testing.T) {
	assert.Equal(t,
		"https://www.realhub.co.nz/property/12-totara-ave",
		normalizeURL("https://www.realhub.co.nz/property/12-totara-ave/?utm_source=email#photos"))
	assert.Equal(t,
		"https://www.realhub.co.nz/property/12-totara-ave",
		normalizeURL("http://www.realhub.co.nz/property/12-totara-ave"))
}

func TestExtractListingSlug(t *testing.T) {
	assert.Equal(t, "12-totara-ave-papatoetoe", extractListingSlug("https://www.realhub.co.nz/property/12-totara-ave-papatoetoe"))
	assert.Equal(t, "", extractListingSlug("https://www.realhub.co.nz/about"))
}

func TestGenerateListingIDStable(t *testing.T) {
	a := generateListingID("https://www.realhub.co.nz/property/12-totara-ave?page=2")
	b := generateListingID("https://www.realhub.co.nz/property/12-totara-ave/")
	assert.Equal(t, a, b)
	assert.Len(t, a, 32)
}

func TestParsePrice(t *testing.T) {
	price := ParsePrice("Asking price $689,000")
	require.NotNil(t, price)
	assert.Equal(t, 689000.0, *price)

	price = ParsePrice("$1,250,000")
	require.NotNil(t, price)
	assert.Equal(t, 1250000.0, *price)

	assert.Nil(t, ParsePrice("Price by negotiation"))
	assert.Nil(t, ParsePrice("Auction 14 September"))
	assert.Nil(t, ParsePrice(""))
}

func TestParseCounts(t *testing.T) {
	beds := parseCount("3 bedrooms, 2 bathrooms", bedroomsRe)
	require.NotNil(t, beds)
	assert.Equal(t, 3, *beds)

	baths := parseCount("3 bedrooms, 2 bathrooms", bathroomsRe)
	require.NotNil(t, baths)
	assert.Equal(t, 2, *baths)

	assert.Nil(t, parseCount("a lovely home", bedroomsRe))
}

func TestParseArea(t *testing.T) {
	floor := parseArea("120m² floor area", floorAreaRe)
	require.NotNil(t, floor)
	assert.Equal(t, 120.0, *floor)

	land := parseArea("450 sqm land", landAreaRe)
	require.NotNil(t, land)
	assert.Equal(t, 450.0, *land)
}

func TestParseYearBuilt(t *testing.T) {
	year := ParseYearBuilt("Solid weatherboard home built in 1962")
	require.NotNil(t, year)
	assert.Equal(t, 1962, *year)

	assert.Nil(t, ParseYearBuilt("built in 1492"))
	assert.Nil(t, ParseYearBuilt("recently renovated"))
}

func TestSplitSuburbCity(t *testing.T) {
	suburb, city := SplitSuburbCity("Papatoetoe, Auckland")
	assert.Equal(t, "Papatoetoe", suburb)
	assert.Equal(t, "Auckland", city)

	suburb, city = SplitSuburbCity("Hamilton")
	assert.Equal(t, "", suburb)
	assert.Equal(t, "Hamilton", city)

	suburb, city = SplitSuburbCity("Aro Valley, Te Aro, Wellington")
	assert.Equal(t, "Aro Valley", suburb)
	assert.Equal(t, "Wellington", city)
}

func TestNormalizePropertyType(t *testing.T) {
	assert.Equal(t, "house", NormalizePropertyType("Residential House"))
	assert.Equal(t, "townhouse", NormalizePropertyType("Town House"))
	assert.Equal(t, "apartment", NormalizePropertyType("Unit"))
	assert.Equal(t, "section", NormalizePropertyType("Bare Land"))
	assert.Equal(t, "villa", NormalizePropertyType(" Villa "))
}

func TestCleanTitle(t *testing.T) {
	assert.Equal(t, "12 Totara Ave, Papatoetoe", cleanTitle("12 Totara Ave, Papatoetoe | realhub.co.nz"))
	assert.Equal(t, "12 Totara Ave", cleanTitle("  12 Totara Ave - Realhub "))
}

func TestApplyJSONLD(t *testing.T) {
	html := `<html><head><script type="application/ld+json">
	{
		"@type": "House",
		"name": "12 Totara Ave",
		"address": {
			"streetAddress": "12 Totara Ave",
			"addressLocality": "Papatoetoe, Auckland"
		},
		"offers": {"price": "689000", "priceCurrency": "NZD"},
		"numberOfRooms": 3,
		"numberOfBathroomsTotal": 1,
		"floorSize": 110,
		"yearBuilt": 1962
	}
	</script></head><body></body></html>`

	listing := &models.Listing{}
	applyJSONLD(html, listing)

	assert.Equal(t, "12 Totara Ave", listing.Address)
	assert.Equal(t, "Papatoetoe", listing.Suburb)
	assert.Equal(t, "Auckland", listing.City)
	require.NotNil(t, listing.Price)
	assert.Equal(t, 689000.0, *listing.Price)
	require.NotNil(t, listing.Bedrooms)
	assert.Equal(t, 3, *listing.Bedrooms)
	require.NotNil(t, listing.FloorArea)
	assert.Equal(t, 110.0, *listing.FloorArea)
	require.NotNil(t, listing.YearBuilt)
	assert.Equal(t, 1962, *listing.YearBuilt)
}

func TestApplyJSONLDDoesNotOverwrite(t *testing.T) {
	html := `<html><head><script type="application/ld+json">
	{"@type": "House", "offers": {"price": 500000}}
	</script></head></html>`

	existing := 689000.0
	listing := &models.Listing{Price: &existing}
	applyJSONLD(html, listing)

	assert.Equal(t, 689000.0, *listing.Price)
}

func TestExtractImageURLs(t *testing.T) {
	html := `<div class="property-gallery">
		<img src="https://cdn.realhub.co.nz/a.jpg">
		<img src="https://cdn.realhub.co.nz/b.jpg">
		<img src="https://cdn.realhub.co.nz/a.jpg">
		<img data-src="https://cdn.realhub.co.nz/c.jpg">
		<img src="/relative.jpg">
	</div>`

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)

	urls := extractImageURLs(doc)
	assert.Equal(t, []string{
		"https://cdn.realhub.co.nz/a.jpg",
		"https://cdn.realhub.co.nz/b.jpg",
		"https://cdn.realhub.co.nz/c.jpg",
	}, urls)
}

func TestExtractCanonicalURL(t *testing.T) {
	html := `<html><head><link rel="canonical" href="https://www.realhub.co.nz/property/12-totara-ave"></head></html>`
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	assert.Equal(t, "https://www.realhub.co.nz/property/12-totara-ave", extractCanonicalURL(doc))
}
