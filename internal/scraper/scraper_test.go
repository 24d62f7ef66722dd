package scraper

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"dealflow-portal/internal/ratelimit"
)

// Detail pacing must stay on the adaptive limiter: ScrapeListingWithReferer
// feeds every fetch outcome into its failure loop, which only exists on
// AdaptiveDetailLimiter. A plain DetailLimiter here would compile for Acquire
// but silently drop the feedback.
var _ *ratelimit.AdaptiveDetailLimiter = DetailLimiter

func TestDetailLimiterFirstAcquireImmediate(t *testing.T) {
	start := time.Now()
	DetailLimiter.Acquire("test")
	assert.Less(t, time.Since(start), 2*time.Second, "first acquire must not block")

	// The feedback loop accepts observations regardless of acquire order
	DetailLimiter.Observe(true)
}
