package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dealflow-portal/internal/config"
	"dealflow-portal/internal/models"
)

func newTestClient(serverURL string) *Client {
	c := NewClient(config.AnalysisConfig{
		ServiceURL:     serverURL,
		APIKey:         "test-key",
		TimeoutSeconds: 5,
		MaxRetries:     2,
	})
	c.retryDelay = 0
	return c
}

func TestAnalyzeSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/analyze/market", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var facts DealFacts
		require.NoError(t, json.NewDecoder(r.Body).Decode(&facts))
		assert.Equal(t, "deal-1", facts.DealID)

		json.NewEncoder(w).Encode(Report{
			Kind:    models.AnalysisKindMarket,
			Model:   "analyst-v2",
			Payload: json.RawMessage(`{"analysis":{"estimated_arv":600000}}`),
		})
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	report, err := client.Analyze(context.Background(), models.AnalysisKindMarket, DealFacts{DealID: "deal-1"})
	require.NoError(t, err)
	assert.Equal(t, models.AnalysisKindMarket, report.Kind)
	assert.Equal(t, "analyst-v2", report.Model)

	var payload models.MarketAnalysis
	require.NoError(t, json.Unmarshal(report.Payload, &payload))
	require.NotNil(t, payload.Analysis.EstimatedARV)
	assert.Equal(t, 600000.0, *payload.Analysis.EstimatedARV)
}

func TestAnalyzeRetriesOnServerError(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		json.NewEncoder(w).Encode(Report{
			Kind:    models.AnalysisKindRisk,
			Payload: json.RawMessage(`{"summary":"low"}`),
		})
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	report, err := client.Analyze(context.Background(), models.AnalysisKindRisk, DealFacts{DealID: "deal-1"})
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, models.AnalysisKindRisk, report.Kind)
}

func TestAnalyzeDoesNotRetryClientError(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.Analyze(context.Background(), models.AnalysisKindMarket, DealFacts{DealID: "deal-1"})
	require.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestAnalyzeGivesUpAfterRetries(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.Analyze(context.Background(), models.AnalysisKindMarket, DealFacts{DealID: "deal-1"})
	require.Error(t, err)
	assert.Equal(t, 3, attempts) // initial + 2 retries
}

func TestAnalyzeRejectsEmptyPayload(t *testing.T) {
	// A nil Payload marshals as an explicit JSON null, which json.RawMessage
	// round-trips as the non-empty bytes "null". Both that and a truly absent
	// payload must be rejected, never stored as a report.
	bodies := map[string]string{
		"null payload":   `{"kind":"market","payload":null}`,
		"absent payload": `{"kind":"market"}`,
	}

	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, body)
			}))
			defer server.Close()

			client := newTestClient(server.URL)
			_, err := client.Analyze(context.Background(), models.AnalysisKindMarket, DealFacts{DealID: "deal-1"})
			require.Error(t, err)
			assert.Contains(t, err.Error(), "missing payload")
		})
	}
}

func TestBuildDealFacts(t *testing.T) {
	purchase := 450000.0
	target := 600000.0
	deal := &models.Deal{
		ID:              "deal-1",
		Title:           "Do-up in Papatoetoe",
		Address:         "12 Totara Ave",
		PurchasePrice:   &purchase,
		TargetSalePrice: &target,
		RenovationSelections: models.RenovationSelections{
			{Key: "kitchen", Option: &models.RenovationOption{Selected: true, Cost: 25000}},
			{Key: "bathroom", Option: &models.RenovationOption{Selected: false, Cost: 15000}},
			{Key: "painting", Option: &models.RenovationOption{Selected: true, Cost: 6000}},
		},
	}

	facts := BuildDealFacts(deal)
	assert.Equal(t, "deal-1", facts.DealID)
	assert.Equal(t, []string{"kitchen", "painting"}, facts.Renovations)
	require.NotNil(t, facts.PurchasePrice)
	assert.Equal(t, 450000.0, *facts.PurchasePrice)
}
