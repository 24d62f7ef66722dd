package scraper

import (
	"encoding/json"
	"log"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"dealflow-portal/internal/models"
)

var (
	listingPathRe = regexp.MustCompile(`/property/([a-zA-Z0-9-]+)`)
	priceRe       = regexp.MustCompile(`\$\s*([\d,]+(?:\.\d+)?)`)
	bedroomsRe    = regexp.MustCompile(`(\d+)\s*(?:bed|bedroom)`)
	bathroomsRe   = regexp.MustCompile(`(\d+)\s*(?:bath|bathroom)`)
	floorAreaRe   = regexp.MustCompile(`([\d,]+(?:\.\d+)?)\s*(?:m2|m²|sqm)\s*(?:floor)?`)
	landAreaRe    = regexp.MustCompile(`([\d,]+(?:\.\d+)?)\s*(?:m2|m²|sqm|ha|hectares?)\s*land`)
	yearBuiltRe   = regexp.MustCompile(`(?:built|constructed)(?:\s+in)?\s+(\d{4})`)
)

// normalizeURL strips query parameters, fragments and trailing slashes
// so the same listing always normalizes to the same URL.
func normalizeURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}

	u.RawQuery = ""
	u.Fragment = ""
	u.Path = strings.TrimSuffix(u.Path, "/")
	u.Scheme = "https"

	return u.String()
}

// extractListingSlug pulls the listing slug out of a /property/<slug> URL
func extractListingSlug(listingURL string) string {
	matches := listingPathRe.FindStringSubmatch(listingURL)
	if len(matches) < 2 {
		return ""
	}
	return matches[1]
}

// extractCanonicalURL returns the canonical URL declared in the page head
func extractCanonicalURL(doc *goquery.Document) string {
	if href, exists := doc.Find("link[rel='canonical']").Attr("href"); exists {
		return strings.TrimSpace(href)
	}
	return ""
}

// cleanTitle removes portal branding suffixes from a page title
func cleanTitle(title string) string {
	title = strings.TrimSpace(title)

	for _, suffix := range []string{
		"| realhub.co.nz",
		"- realhub.co.nz",
		"| Realhub",
		"- Realhub",
		"| For Sale",
	} {
		title = strings.TrimSpace(strings.TrimSuffix(title, suffix))
	}

	return title
}

// ParsePrice extracts a dollar amount from text like "$689,000" or
// "Asking price $1,250,000". Returns nil when no amount is present,
// including "Price by negotiation" and auction listings.
func ParsePrice(text string) *float64 {
	matches := priceRe.FindStringSubmatch(text)
	if len(matches) < 2 {
		return nil
	}

	cleaned := strings.ReplaceAll(matches[1], ",", "")
	value, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return nil
	}

	return &value
}

// parseCount extracts a small integer (bedrooms, bathrooms) from text
func parseCount(text string, re *regexp.Regexp) *int {
	matches := re.FindStringSubmatch(strings.ToLower(text))
	if len(matches) < 2 {
		return nil
	}

	value, err := strconv.Atoi(matches[1])
	if err != nil {
		return nil
	}

	return &value
}

// parseArea extracts a square-metre figure from text like "120m²" or
// "450 sqm land"
func parseArea(text string, re *regexp.Regexp) *float64 {
	matches := re.FindStringSubmatch(strings.ToLower(text))
	if len(matches) < 2 {
		return nil
	}

	cleaned := strings.ReplaceAll(matches[1], ",", "")
	value, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return nil
	}

	// Hectare figures convert to square metres
	if strings.Contains(matches[0], "ha") || strings.Contains(matches[0], "hectare") {
		value *= 10000
	}

	return &value
}

// ParseYearBuilt extracts a build year from description text
func ParseYearBuilt(text string) *int {
	matches := yearBuiltRe.FindStringSubmatch(strings.ToLower(text))
	if len(matches) < 2 {
		return nil
	}

	year, err := strconv.Atoi(matches[1])
	if err != nil || year < 1800 || year > 2100 {
		return nil
	}

	return &year
}

// SplitSuburbCity splits an address tail like "Papatoetoe, Auckland"
// into suburb and city.
func SplitSuburbCity(locality string) (suburb, city string) {
	parts := strings.Split(locality, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}

	switch len(parts) {
	case 0:
		return "", ""
	case 1:
		return "", parts[0]
	default:
		return parts[0], parts[len(parts)-1]
	}
}

// NormalizePropertyType maps portal display labels to canonical types
func NormalizePropertyType(label string) string {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "house", "residential house", "home":
		return "house"
	case "townhouse", "town house":
		return "townhouse"
	case "apartment", "unit", "flat":
		return "apartment"
	case "section", "bare land", "land":
		return "section"
	case "lifestyle", "lifestyle property":
		return "lifestyle"
	default:
		return strings.ToLower(strings.TrimSpace(label))
	}
}

// jsonLDListing mirrors the schema.org structures realhub embeds in
// its detail pages. Only the fields we use are declared.
type jsonLDListing struct {
	Type    string `json:"@type"`
	Name    string `json:"name"`
	Image   any    `json:"image"`
	Address struct {
		StreetAddress   string `json:"streetAddress"`
		AddressLocality string `json:"addressLocality"`
		AddressRegion   string `json:"addressRegion"`
	} `json:"address"`
	Offers struct {
		Price    any    `json:"price"`
		Currency string `json:"priceCurrency"`
	} `json:"offers"`
	NumberOfRooms     any    `json:"numberOfRooms"`
	NumberOfBathrooms any    `json:"numberOfBathroomsTotal"`
	FloorSize         any    `json:"floorSize"`
	YearBuilt         any    `json:"yearBuilt"`
	AdditionalType    string `json:"additionalType"`
}

// applyJSONLD extracts structured data from embedded JSON-LD scripts
// and fills any listing fields it covers.
func applyJSONLD(htmlContent string, listing *models.Listing) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		return
	}

	doc.Find("script[type='application/ld+json']").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		var ld jsonLDListing
		if err := json.Unmarshal([]byte(sel.Text()), &ld); err != nil {
			return true
		}

		t := strings.ToLower(ld.Type)
		if t != "house" && t != "residence" && t != "product" && t != "realestatelisting" && t != "singlefamilyresidence" {
			return true
		}

		if listing.Address == "" && ld.Address.StreetAddress != "" {
			listing.Address = ld.Address.StreetAddress
		}
		if ld.Address.AddressLocality != "" {
			suburb, city := SplitSuburbCity(ld.Address.AddressLocality)
			if listing.Suburb == "" {
				listing.Suburb = suburb
			}
			if listing.City == "" {
				listing.City = city
			}
		}
		if listing.City == "" && ld.Address.AddressRegion != "" {
			listing.City = ld.Address.AddressRegion
		}

		if listing.Price == nil {
			if price := toFloat(ld.Offers.Price); price != nil && *price > 0 {
				listing.Price = price
			}
		}
		if listing.Bedrooms == nil {
			if rooms := toInt(ld.NumberOfRooms); rooms != nil {
				listing.Bedrooms = rooms
			}
		}
		if listing.Bathrooms == nil {
			if baths := toInt(ld.NumberOfBathrooms); baths != nil {
				listing.Bathrooms = baths
			}
		}
		if listing.FloorArea == nil {
			if area := toFloat(ld.FloorSize); area != nil && *area > 0 {
				listing.FloorArea = area
			}
		}
		if listing.YearBuilt == nil {
			if year := toInt(ld.YearBuilt); year != nil {
				listing.YearBuilt = year
			}
		}
		if listing.PropertyType == "" && ld.AdditionalType != "" {
			listing.PropertyType = NormalizePropertyType(ld.AdditionalType)
		}

		log.Printf("[JSON-LD] Applied structured data (type=%s)", ld.Type)
		return false
	})
}

// toFloat coerces JSON-LD numeric fields, which arrive as either
// numbers or strings depending on the template.
func toFloat(v any) *float64 {
	switch val := v.(type) {
	case float64:
		return &val
	case string:
		cleaned := strings.ReplaceAll(strings.TrimPrefix(strings.TrimSpace(val), "$"), ",", "")
		if f, err := strconv.ParseFloat(cleaned, 64); err == nil {
			return &f
		}
	}
	return nil
}

func toInt(v any) *int {
	switch val := v.(type) {
	case float64:
		i := int(val)
		return &i
	case string:
		if i, err := strconv.Atoi(strings.TrimSpace(val)); err == nil {
			return &i
		}
	}
	return nil
}

// extractDetailFields backfills listing fields from the rendered DOM
// when JSON-LD was missing or incomplete
func (s *Scraper) extractDetailFields(doc *goquery.Document, listing *models.Listing) {
	// Price: dedicated price element, then og:description, then anywhere
	// in the summary block
	if listing.Price == nil {
		for _, selector := range []string{".property-price", ".listing-price", "[data-price]", ".price"} {
			text := strings.TrimSpace(doc.Find(selector).First().Text())
			if price := ParsePrice(text); price != nil {
				listing.Price = price
				break
			}
		}
	}

	description, _ := doc.Find("meta[property='og:description']").Attr("content")
	summary := strings.TrimSpace(doc.Find(".property-summary, .listing-summary, .property-details").First().Text())
	combined := description + " " + summary

	if listing.Price == nil {
		listing.Price = ParsePrice(combined)
	}
	if listing.Bedrooms == nil {
		listing.Bedrooms = parseCount(combined, bedroomsRe)
	}
	if listing.Bathrooms == nil {
		listing.Bathrooms = parseCount(combined, bathroomsRe)
	}
	if listing.FloorArea == nil {
		listing.FloorArea = parseArea(combined, floorAreaRe)
	}
	if listing.LandArea == nil {
		listing.LandArea = parseArea(combined, landAreaRe)
	}
	if listing.YearBuilt == nil {
		listing.YearBuilt = ParseYearBuilt(combined)
	}

	if listing.Address == "" {
		listing.Address = strings.TrimSpace(doc.Find(".property-address, .listing-address, h1.address").First().Text())
	}
	if listing.Suburb == "" || listing.City == "" {
		locality := strings.TrimSpace(doc.Find(".property-locality, .listing-locality").First().Text())
		if locality != "" {
			suburb, city := SplitSuburbCity(locality)
			if listing.Suburb == "" {
				listing.Suburb = suburb
			}
			if listing.City == "" {
				listing.City = city
			}
		}
	}
	if listing.PropertyType == "" {
		label := strings.TrimSpace(doc.Find(".property-type, [data-property-type]").First().Text())
		if label != "" {
			listing.PropertyType = NormalizePropertyType(label)
		}
	}
}

// extractImageURLs collects gallery image URLs from the detail page
func extractImageURLs(doc *goquery.Document) []string {
	var urls []string
	seen := make(map[string]bool)

	doc.Find(".property-gallery img, .listing-gallery img, .carousel img").Each(func(_ int, sel *goquery.Selection) {
		src, exists := sel.Attr("src")
		if !exists || src == "" {
			src, exists = sel.Attr("data-src")
			if !exists || src == "" {
				return
			}
		}

		src = strings.TrimSpace(src)
		if !strings.HasPrefix(src, "http") {
			return
		}
		if !seen[src] {
			seen[src] = true
			urls = append(urls, src)
		}
	})

	return urls
}
