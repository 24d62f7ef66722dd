package main

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"dealflow-portal/internal/scraper"
)

// Standalone smoke test for the portal scraper. Run against a live search
// results page before enabling the scheduler on a new deployment:
//
//	TEST_LIST_URL=https://www.realhub.co.nz/residential/sale/auckland go run ./cmd/scrape-poc

type TestResult struct {
	TestName  string    `json:"test_name"`
	Success   bool      `json:"success"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	Details   any       `json:"details,omitempty"`
}

type SmokeResults struct {
	TestURL        string       `json:"test_url"`
	Results        []TestResult `json:"results"`
	OverallSuccess bool         `json:"overall_success"`
	ExecutedAt     time.Time    `json:"executed_at"`
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	testListURL := os.Getenv("TEST_LIST_URL")
	if testListURL == "" {
		testListURL = "https://www.realhub.co.nz/residential/sale/auckland"
		log.Printf("TEST_LIST_URL not set, using default: %s", testListURL)
	}

	results := &SmokeResults{
		TestURL:    testListURL,
		ExecutedAt: time.Now(),
	}

	log.Println("============================================")
	log.Println("Scraper smoke test starting")
	log.Println("============================================")

	s := scraper.NewScraper("")

	// Test 1: list page yields listing URLs
	listResult, listingURLs := testListPage(s, testListURL)
	results.Results = append(results.Results, listResult)

	if len(listingURLs) == 0 {
		log.Println("[ERROR] List page test produced no listing URLs, cannot proceed")
		results.OverallSuccess = false
		saveResults(results)
		os.Exit(1)
	}

	// Test 2: detail page scrapes into a usable listing
	detailResult := testDetailScrape(s, listingURLs[0])
	results.Results = append(results.Results, detailResult)

	// Test 3: scraped image URLs are externally reachable
	imageResult := testImageReference(s)
	results.Results = append(results.Results, imageResult)

	results.OverallSuccess = true
	for _, result := range results.Results {
		if !result.Success {
			results.OverallSuccess = false
			break
		}
	}

	log.Println("============================================")
	log.Println("Smoke test summary")
	log.Println("============================================")
	for i, result := range results.Results {
		status := "✅ PASS"
		if !result.Success {
			status = "❌ FAIL"
		}
		log.Printf("%d. %s: %s", i+1, result.TestName, status)
		log.Printf("   %s", result.Message)
	}

	saveResults(results)

	if !results.OverallSuccess {
		os.Exit(1)
	}
}

func testListPage(s *scraper.Scraper, listURL string) (TestResult, []string) {
	result := TestResult{
		TestName:  "List page extraction",
		Timestamp: time.Now(),
	}

	urls, err := s.ScrapeListPage(listURL)
	if err != nil {
		result.Message = fmt.Sprintf("list page scrape failed: %v", err)
		return result, nil
	}
	if len(urls) == 0 {
		result.Message = "list page scraped but no listing URLs found (selector drift?)"
		return result, nil
	}

	result.Success = true
	result.Message = fmt.Sprintf("extracted %d listing URLs", len(urls))
	result.Details = map[string]any{"listing_urls": urls[:minInt(len(urls), 5)]}
	return result, urls
}

func testDetailScrape(s *scraper.Scraper, detailURL string) TestResult {
	result := TestResult{
		TestName:  "Detail page scrape",
		Timestamp: time.Now(),
	}

	listing, err := s.ScrapeListing(detailURL)
	if err != nil {
		result.Message = fmt.Sprintf("detail scrape failed: %v", err)
		return result
	}
	if listing.Title == "" {
		result.Message = "detail scraped but title is empty"
		return result
	}

	result.Success = true
	result.Message = fmt.Sprintf("scraped %q (price set: %v, suburb: %q)",
		listing.Title, listing.Price != nil, listing.Suburb)
	result.Details = listing
	return result
}

func testImageReference(s *scraper.Scraper) TestResult {
	result := TestResult{
		TestName:  "Image external reference",
		Timestamp: time.Now(),
	}

	images := s.LastImages()
	if len(images) == 0 {
		// Some listings legitimately have no gallery
		result.Success = true
		result.Message = "no images on last scraped listing, skipping"
		return result
	}

	resp, err := http.Head(images[0])
	if err != nil {
		result.Message = fmt.Sprintf("image HEAD request failed: %v", err)
		return result
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		result.Message = fmt.Sprintf("image URL returned status %d", resp.StatusCode)
		return result
	}

	result.Success = true
	result.Message = fmt.Sprintf("image reachable (%d candidates)", len(images))
	return result
}

func saveResults(results *SmokeResults) {
	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		log.Printf("Failed to marshal results: %v", err)
		return
	}

	filename := fmt.Sprintf("smoke_results_%s.json", time.Now().Format("20060102_150405"))
	if err := os.WriteFile(filename, data, 0644); err != nil {
		log.Printf("Failed to write results file: %v", err)
		return
	}
	log.Printf("Results saved to %s", filename)
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
