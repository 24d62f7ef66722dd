package main

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

// On the Postgres path the deal pipeline is unavailable, and its routes must
// say so rather than 404.
func TestDealsUnavailableOnRawSQLPath(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Any("/api/deals", dealsUnavailable)
	r.Any("/api/deals/*any", dealsUnavailable)

	for _, path := range []string{"/api/deals", "/api/deals/abc123/valuation"} {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, path, nil)
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusServiceUnavailable, w.Code, path)
		assert.Contains(t, w.Body.String(), "MySQL")
	}
}
