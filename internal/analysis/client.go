package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math"
	"net/http"
	"time"

	"dealflow-portal/internal/config"
	"dealflow-portal/internal/models"
)

// Client calls the external analysis service that produces market,
// renovation and risk reports for a deal.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	maxRetries int
	retryDelay time.Duration
}

func NewClient(cfg config.AnalysisConfig) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.GetTimeout(),
		},
		baseURL:    cfg.ServiceURL,
		apiKey:     cfg.APIKey,
		maxRetries: cfg.MaxRetries,
		retryDelay: 2 * time.Second,
	}
}

// DealFacts is the request body sent to the analysis service. Only
// facts the service needs are included; nil fields are omitted.
type DealFacts struct {
	DealID          string   `json:"deal_id"`
	Address         string   `json:"address,omitempty"`
	Title           string   `json:"title,omitempty"`
	PurchasePrice   *float64 `json:"purchase_price,omitempty"`
	TargetSalePrice *float64 `json:"target_sale_price,omitempty"`
	CurrentPrice    *float64 `json:"current_price,omitempty"`
	Renovations     []string `json:"renovations,omitempty"`
	Notes           string   `json:"notes,omitempty"`
}

// Report is the raw response from the analysis service
type Report struct {
	Kind    string          `json:"kind"`
	Model   string          `json:"model"`
	Payload json.RawMessage `json:"payload"`
}

// Analyze requests a report of the given kind (market, renovation or
// risk) for a deal. Retries with exponential backoff on transport
// errors and 5xx responses.
func (c *Client) Analyze(ctx context.Context, kind string, facts DealFacts) (*Report, error) {
	body, err := json.Marshal(facts)
	if err != nil {
		return nil, fmt.Errorf("failed to encode deal facts: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1/analyze/%s", c.baseURL, kind)

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * c.retryDelay
			if backoff > 30*time.Second {
				backoff = 30 * time.Second
			}
			log.Printf("[Analysis] Retry attempt %d/%d after %v (kind=%s, deal=%s)", attempt, c.maxRetries, backoff, kind, facts.DealID)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		report, retryable, err := c.doAnalyze(ctx, endpoint, body)
		if err == nil {
			return report, nil
		}
		lastErr = err
		if !retryable {
			return nil, err
		}
	}

	return nil, fmt.Errorf("analysis request failed after %d retries: %w", c.maxRetries, lastErr)
}

func (c *Client) doAnalyze(ctx context.Context, endpoint string, body []byte) (*Report, bool, error) {
	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, false, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, true, fmt.Errorf("analysis request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, fmt.Errorf("failed to read response: %w", err)
	}

	switch {
	case resp.StatusCode == 200:
		// fall through to decode
	case resp.StatusCode >= 500 || resp.StatusCode == 429:
		return nil, true, fmt.Errorf("analysis service returned status %d", resp.StatusCode)
	default:
		// 4xx: the request itself is bad, retrying won't help
		return nil, false, fmt.Errorf("analysis service rejected request: status %d: %s", resp.StatusCode, truncate(string(respBody), 200))
	}

	var report Report
	if err := json.Unmarshal(respBody, &report); err != nil {
		return nil, false, fmt.Errorf("failed to decode analysis response: %w", err)
	}
	// json.RawMessage keeps a literal null as the bytes "null", so a nil
	// payload from the service still has length 4
	if len(report.Payload) == 0 || string(report.Payload) == "null" {
		return nil, false, fmt.Errorf("analysis response missing payload")
	}

	return &report, false, nil
}

// BuildDealFacts assembles the request body from a deal row
func BuildDealFacts(deal *models.Deal) DealFacts {
	facts := DealFacts{
		DealID:          deal.ID,
		Address:         deal.Address,
		Title:           deal.Title,
		PurchasePrice:   deal.PurchasePrice,
		TargetSalePrice: deal.TargetSalePrice,
		CurrentPrice:    deal.CurrentPrice,
		Notes:           deal.Notes,
	}

	for _, entry := range deal.RenovationSelections {
		if entry.Option != nil && entry.Option.Selected {
			facts.Renovations = append(facts.Renovations, entry.Key)
		}
	}

	return facts
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
