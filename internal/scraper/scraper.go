package scraper

import (
	"compress/gzip"
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"log"
	"math"
	"math/rand"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/chromedp"

	"dealflow-portal/internal/models"
	"dealflow-portal/internal/ratelimit"
)

var (
	// Global rate limiter for portal list pages (search results)
	portalLimiter = ratelimit.NewPortalLimiter(
		1,                     // maxInFlight: 1 concurrent request (avoid burst)
		8000*time.Millisecond, // baseDelay: 8s base for list pages
		4000*time.Millisecond, // jitter: 0-4s (total: 8-12s)
	)

	// DetailLimiter paces every detail page fetch. Adaptive: quicker at night
	// when the portal is quiet, slower during business hours, and drops to a
	// crawl when recent fetches start failing (WAF pushback).
	DetailLimiter = ratelimit.NewAdaptiveDetailLimiter(
		ratelimit.DetailRateConfig{
			NightPerHour:   12,
			DayPerHour:     6,
			DefaultPerHour: 10,
			NightStart:     23,
			NightEnd:       6,
			DayStart:       8,
			DayEnd:         18,
		},
		ratelimit.AdaptiveConfig{}, // constructor defaults
	)

	// Global circuit breaker to detect WAF blocks
	circuitBreaker = NewCircuitBreaker(
		8,           // failureThreshold: 8 failures out of 20 requests
		1*time.Hour, // resetTimeout: wait 1 hour before retry
	)
)

type Scraper struct {
	client                *http.Client
	baseURL               string
	maxRetries            int
	retryDelay            time.Duration
	requestDelay          time.Duration
	lastRequestTime       time.Time
	lastHomepageVisit     time.Time
	homepageVisitInterval time.Duration
	lastImages            []string // Image URLs from the last detail scrape
}

type ScraperConfig struct {
	BaseURL      string
	Timeout      time.Duration
	MaxRetries   int
	RetryDelay   time.Duration
	RequestDelay time.Duration
}

func NewScraper(baseURL string) *Scraper {
	return NewScraperWithConfig(ScraperConfig{
		BaseURL:      baseURL,
		Timeout:      30 * time.Second,
		MaxRetries:   3,
		RetryDelay:   2 * time.Second,
		RequestDelay: 2 * time.Second,
	})
}

func NewScraperWithConfig(config ScraperConfig) *Scraper {
	// Cookie jar for session management
	jar, err := cookiejar.New(nil)
	if err != nil {
		log.Printf("Warning: Failed to create cookie jar: %v", err)
		jar = nil
	}

	if config.BaseURL == "" {
		config.BaseURL = "https://www.realhub.co.nz"
	}

	return &Scraper{
		client: &http.Client{
			Timeout: config.Timeout,
			Jar:     jar,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				// Follow redirects while maintaining cookies
				return nil
			},
		},
		baseURL:               strings.TrimRight(config.BaseURL, "/"),
		maxRetries:            config.MaxRetries,
		retryDelay:            config.RetryDelay,
		requestDelay:          config.RequestDelay,
		homepageVisitInterval: 30 * time.Minute,
	}
}

// LastImages returns the image URLs collected during the most recent
// detail scrape.
func (s *Scraper) LastImages() []string {
	return s.lastImages
}

// rateLimit enforces minimum delay between requests
func (s *Scraper) rateLimit() {
	if s.requestDelay == 0 {
		return
	}

	elapsed := time.Since(s.lastRequestTime)
	if elapsed < s.requestDelay {
		time.Sleep(s.requestDelay - elapsed)
	}
	s.lastRequestTime = time.Now()
}

// visitHomepageIfNeeded visits the portal homepage to establish a session.
// This helps avoid bot detection by simulating a real user browsing flow.
func (s *Scraper) visitHomepageIfNeeded() error {
	if time.Since(s.lastHomepageVisit) < s.homepageVisitInterval {
		return nil
	}

	log.Printf("[Homepage] Visiting portal homepage to establish session")

	req, err := http.NewRequest("GET", s.baseURL+"/", nil)
	if err != nil {
		return err
	}

	applyBrowserHeaders(req, "")

	resp, err := s.client.Do(req)
	if err != nil {
		log.Printf("[Homepage] Error visiting homepage: %v", err)
		return err
	}
	defer resp.Body.Close()

	s.lastHomepageVisit = time.Now()
	log.Printf("[Homepage] Successfully visited homepage (Status: %d), cookies saved", resp.StatusCode)

	// Small delay after homepage visit to appear more natural
	time.Sleep(time.Duration(2+rand.Intn(3)) * time.Second)

	return nil
}

// applyBrowserHeaders sets browser-like headers to avoid bot detection
func applyBrowserHeaders(req *http.Request, referer string) {
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36")
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8,application/signed-exchange;v=b3;q=0.7")
	req.Header.Set("Accept-Language", "en-NZ,en;q=0.9,en-US;q=0.8")
	req.Header.Set("Accept-Encoding", "gzip, deflate, br, zstd")
	req.Header.Set("DNT", "1")
	req.Header.Set("Connection", "keep-alive")
	req.Header.Set("Upgrade-Insecure-Requests", "1")
	req.Header.Set("Sec-Fetch-Site", "none")
	req.Header.Set("Sec-Fetch-Mode", "navigate")
	req.Header.Set("Sec-Fetch-User", "?1")
	req.Header.Set("Sec-Fetch-Dest", "document")
	req.Header.Set("sec-ch-ua", `"Not A(Brand";v="99", "Google Chrome";v="122", "Chromium";v="122"`)
	req.Header.Set("sec-ch-ua-mobile", "?0")
	req.Header.Set("sec-ch-ua-platform", `"Windows"`)

	if referer != "" {
		req.Header.Set("Referer", referer)
		req.Header.Set("Sec-Fetch-Site", "same-origin")
	}
}

// isWAFBlock checks if a response indicates a WAF block
func isWAFBlock(resp *http.Response) bool {
	if resp.StatusCode != 403 && resp.StatusCode != 503 {
		return false
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return false
	}

	// Replace body so it can be read again if needed
	resp.Body = io.NopCloser(strings.NewReader(string(body)))

	bodyStr := strings.ToLower(string(body))
	if strings.Contains(bodyStr, "access denied") ||
		strings.Contains(bodyStr, "verify you are human") ||
		strings.Contains(bodyStr, "cf-challenge") {
		log.Printf("[WAF] Detected WAF challenge page (status %d)", resp.StatusCode)
		return true
	}

	return false
}

// sleepHumanDetailPace simulates human browsing behavior with natural delays
func sleepHumanDetailPace() {
	// 80% normal browsing (45-120 seconds)
	// 20% deep reading (180-420 seconds)
	p := rand.Float64()
	var duration time.Duration

	if p < 0.8 {
		duration = time.Duration(45+rand.Intn(76)) * time.Second
	} else {
		duration = time.Duration(180+rand.Intn(241)) * time.Second
	}

	log.Printf("[Human Pace] Sleeping for %v to simulate human browsing", duration)
	time.Sleep(duration)
}

// sleepHumanListPace simulates human browsing behavior for list pages
func sleepHumanListPace() {
	duration := time.Duration(6+rand.Intn(10)) * time.Second
	log.Printf("[Human Pace] Sleeping for %v for list page browsing", duration)
	time.Sleep(duration)
}

// doRequestWithRetry performs HTTP request with exponential backoff retry
func (s *Scraper) doRequestWithRetry(req *http.Request) (*http.Response, error) {
	var resp *http.Response
	var err error

	// Check circuit breaker before proceeding
	if !circuitBreaker.CanProceed() {
		isOpen, failures, total := circuitBreaker.GetStatus()
		return nil, fmt.Errorf("circuit breaker open: suspected WAF block (%d/%d failures, open=%v)", failures, total, isOpen)
	}

	// Acquire global rate limiter before starting
	portalLimiter.Acquire()
	defer portalLimiter.Release()

	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		if attempt > 0 {
			// Exponential backoff: delay * 2^(attempt-1), max 60s
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * s.retryDelay
			if backoff > 60*time.Second {
				backoff = 60 * time.Second
			}
			log.Printf("Retry attempt %d/%d after %v (inFlight: %d)", attempt, s.maxRetries, backoff, portalLimiter.GetInFlight())
			time.Sleep(backoff)
		}

		resp, err = s.client.Do(req)

		if err == nil && resp.StatusCode == 200 {
			circuitBreaker.RecordSuccess()
			return resp, nil
		}

		if err != nil {
			log.Printf("Request failed (attempt %d): %v", attempt+1, err)
			circuitBreaker.RecordFailure(0)
		} else {
			log.Printf("Request failed (attempt %d): status %d (inFlight: %d)", attempt+1, resp.StatusCode, portalLimiter.GetInFlight())

			// WAF block: immediate failure, no retry
			if isWAFBlock(resp) {
				circuitBreaker.RecordFailure(resp.StatusCode)
				if resp.Body != nil {
					resp.Body.Close()
				}
				return nil, fmt.Errorf("WAF block detected: immediate retreat required")
			}

			if resp.StatusCode >= 500 || resp.StatusCode == 429 || resp.StatusCode == 403 {
				circuitBreaker.RecordFailure(resp.StatusCode)
			}

			if resp.Body != nil {
				resp.Body.Close()
			}

			// Longer backoff for server errors (500/503)
			if resp.StatusCode >= 500 && attempt < s.maxRetries {
				serverBackoff := time.Duration(math.Pow(2, float64(attempt+2))) * s.retryDelay
				if serverBackoff > 60*time.Second {
					serverBackoff = 60 * time.Second
				}
				log.Printf("Server error %d, backing off for %v", resp.StatusCode, serverBackoff)
				time.Sleep(serverBackoff)
			}
		}

		// Don't retry on client errors (4xx except 429)
		if resp != nil && resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != 429 {
			// 404: listing delisted (permanent failure, not WAF)
			if resp.StatusCode == 404 {
				log.Printf("404 Not Found (listing likely delisted): not retrying")
			}
			break
		}
	}

	if err != nil {
		return nil, fmt.Errorf("request failed after %d retries: %w", s.maxRetries, err)
	}
	// Include status code in error for caller to distinguish 404 vs WAF
	if resp != nil && resp.StatusCode == 404 {
		return nil, fmt.Errorf("permanent_fail: status code 404 (listing not found or delisted)")
	}
	return nil, fmt.Errorf("request failed after %d retries: status code %d", s.maxRetries, resp.StatusCode)
}

// ScrapeListPage scrapes a search results page and returns listing URLs
func (s *Scraper) ScrapeListPage(listURL string) ([]string, error) {
	log.Printf("[ScrapeListPage] Starting scrape of list page: %s", listURL)

	req, err := http.NewRequest("GET", listURL, nil)
	if err != nil {
		log.Printf("[ScrapeListPage] Error creating request for %s: %v", listURL, err)
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	// Browser-like headers (no referer for list page)
	applyBrowserHeaders(req, "")

	resp, err := s.doRequestWithRetry(req)
	if err != nil {
		log.Printf("[ScrapeListPage] Error fetching list page %s: %v", listURL, err)
		return nil, fmt.Errorf("failed to fetch list page: %w", err)
	}
	defer resp.Body.Close()

	// Handle gzip decompression if needed
	var reader io.Reader = resp.Body
	if resp.Header.Get("Content-Encoding") == "gzip" {
		gzipReader, err := gzip.NewReader(resp.Body)
		if err != nil {
			log.Printf("[ScrapeListPage] Error creating gzip reader: %v", err)
			return nil, fmt.Errorf("failed to create gzip reader: %w", err)
		}
		defer gzipReader.Close()
		reader = gzipReader
	}

	doc, err := goquery.NewDocumentFromReader(reader)
	if err != nil {
		log.Printf("[ScrapeListPage] Error parsing HTML from %s: %v", listURL, err)
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	var listingURLs []string
	seenURLs := make(map[string]bool)

	// Listing cards link to /property/<id>; anchors appear both on the
	// card image and the address line, so dedupe by normalized URL
	doc.Find("a[href*='/property/']").Each(func(i int, sel *goquery.Selection) {
		href, exists := sel.Attr("href")
		if !exists || href == "" {
			return
		}

		listingURL := s.absoluteURL(href)
		if extractListingSlug(listingURL) == "" {
			return
		}

		normalizedURL := normalizeURL(listingURL)
		if !seenURLs[normalizedURL] {
			seenURLs[normalizedURL] = true
			listingURLs = append(listingURLs, normalizedURL)
		}
	})

	log.Printf("[ScrapeListPage] Found %d unique listing URLs from %s", len(listingURLs), listURL)
	return listingURLs, nil
}

// absoluteURL resolves a relative href against the portal base URL
func (s *Scraper) absoluteURL(href string) string {
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	if !strings.HasPrefix(href, "/") {
		href = "/" + href
	}
	return s.baseURL + href
}

// fetchHTMLWithHeadlessBrowser uses Chrome headless browser to fetch HTML.
// This bypasses most anti-bot detection by executing JavaScript.
func (s *Scraper) fetchHTMLWithHeadlessBrowser(url string) (string, error) {
	log.Printf("[HeadlessBrowser] Fetching %s with Chrome", url)

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.ExecPath("/usr/bin/google-chrome"),
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true), // Required for systemd/Docker
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.Flag("disable-software-rasterizer", true),
		chromedp.UserAgent("Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36"),
	)

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	defer allocCancel()

	ctx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	ctx, cancel = context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	var htmlContent string
	err := chromedp.Run(ctx,
		chromedp.Navigate(url),
		chromedp.WaitVisible(`body`, chromedp.ByQuery),
		// Give client-side rendering a moment to finish
		chromedp.Sleep(3*time.Second),
		chromedp.OuterHTML(`html`, &htmlContent, chromedp.ByQuery),
	)

	if err != nil {
		log.Printf("[HeadlessBrowser] ERROR fetching %s: %v", url, err)
		return "", fmt.Errorf("chromedp error: %w", err)
	}

	log.Printf("[HeadlessBrowser] Successfully fetched HTML (%d bytes)", len(htmlContent))
	return htmlContent, nil
}

// ScrapeListing scrapes a listing detail page
func (s *Scraper) ScrapeListing(inputURL string) (*models.Listing, error) {
	return s.ScrapeListingWithReferer(inputURL, "")
}

// ScrapeListingWithReferer scrapes a listing detail page with optional referer.
// Every call goes through DetailLimiter, and the fetch outcome feeds its
// failure-rate loop, so a portal pushing back slows all detail scraping down
// regardless of which caller triggered it.
func (s *Scraper) ScrapeListingWithReferer(inputURL string, referer string) (*models.Listing, error) {
	normalizedURL := normalizeURL(inputURL)
	log.Printf("[ScrapeListing] Starting scrape of listing: %s (normalized: %s, referer: %s)", inputURL, normalizedURL, referer)

	if err := s.visitHomepageIfNeeded(); err != nil {
		log.Printf("[ScrapeListing] Warning: Failed to visit homepage: %v", err)
		// Not critical, continue anyway
	}

	DetailLimiter.Acquire("detail")
	sleepHumanDetailPace()

	htmlContent, err := s.fetchHTMLWithHeadlessBrowser(normalizedURL)
	DetailLimiter.Observe(err == nil)
	if err != nil {
		log.Printf("[ScrapeListing] Error fetching URL with headless browser %s: %v", normalizedURL, err)
		return nil, fmt.Errorf("failed to fetch URL: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		log.Printf("[ScrapeListing] Error parsing HTML from %s: %v", normalizedURL, err)
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	// Prefer the canonical URL if the page declares one
	canonicalURL := extractCanonicalURL(doc)
	if canonicalURL != "" {
		normalizedURL = normalizeURL(canonicalURL)
	}

	slug := extractListingSlug(normalizedURL)
	if slug == "" {
		// Fallback to URL hash for non-standard URLs
		hash := md5.Sum([]byte(normalizedURL))
		slug = hex.EncodeToString(hash[:])
		log.Printf("[ScrapeListing] Warning: Could not extract listing slug from %s, using URL hash", normalizedURL)
	}

	listing := &models.Listing{
		Source:          "realhub",
		SourceListingID: slug,
		DetailURL:       normalizedURL,
		FetchedAt:       time.Now(),
	}

	// Title priority: og:title -> twitter:title -> title tag -> h1
	ogTitle, ogExists := doc.Find("meta[property='og:title']").Attr("content")
	twitterTitle, twitterExists := doc.Find("meta[name='twitter:title']").Attr("content")
	titleTag := strings.TrimSpace(doc.Find("title").Text())
	h1Tag := strings.TrimSpace(doc.Find("h1").First().Text())

	if ogExists && strings.TrimSpace(ogTitle) != "" {
		listing.Title = strings.TrimSpace(ogTitle)
	} else if twitterExists && strings.TrimSpace(twitterTitle) != "" {
		listing.Title = strings.TrimSpace(twitterTitle)
	} else if titleTag != "" {
		listing.Title = titleTag
	} else if h1Tag != "" {
		listing.Title = h1Tag
	} else {
		listing.Title = "No Title"
		log.Printf("[ScrapeListing] Warning: Could not extract title from %s", normalizedURL)
	}

	listing.Title = cleanTitle(listing.Title)
	if listing.Title == "" {
		listing.Title = "No Title"
	}

	// Structured data first, DOM selectors as backfill
	applyJSONLD(htmlContent, listing)
	s.extractDetailFields(doc, listing)

	// Collect gallery images
	allImageURLs := extractImageURLs(doc)
	s.lastImages = allImageURLs

	if len(allImageURLs) > 0 {
		listing.ImageURL = allImageURLs[0]
		log.Printf("[ScrapeListing] Set primary image from %d total images", len(allImageURLs))
	} else if imageURL, exists := doc.Find("meta[property='og:image']").Attr("content"); exists {
		listing.ImageURL = strings.TrimSpace(imageURL)
		s.lastImages = []string{listing.ImageURL}
		log.Printf("[ScrapeListing] Using og:image as fallback")
	}

	// Internal ID derives from the normalized detail URL so re-scrapes
	// of the same listing always hit the same row
	listing.ID = generateListingID(normalizedURL)

	log.Printf("[ScrapeListing] Successfully scraped listing %s (ID: %s, Title: %s)", normalizedURL, listing.ID, listing.Title)
	return listing, nil
}

// generateListingID generates an MD5 hash ID from the normalized URL
func generateListingID(url string) string {
	hash := md5.Sum([]byte(normalizeURL(url)))
	return hex.EncodeToString(hash[:])
}
