package scraper

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCircuitBreakerStartsClosed(t *testing.T) {
	cb := NewCircuitBreaker(8, time.Hour)
	assert.True(t, cb.CanProceed())
}

func TestCircuitBreakerOpensOnConsecutiveCriticalErrors(t *testing.T) {
	cb := NewCircuitBreaker(8, time.Hour)

	cb.RecordFailure(403)
	assert.True(t, cb.CanProceed())

	cb.RecordFailure(403)
	assert.False(t, cb.CanProceed())
}

func TestCircuitBreakerSuccessResetsConsecutiveCount(t *testing.T) {
	cb := NewCircuitBreaker(8, time.Hour)

	cb.RecordFailure(500)
	cb.RecordSuccess()
	cb.RecordFailure(500)

	// Never two consecutive critical failures, still closed
	assert.True(t, cb.CanProceed())
}

func TestCircuitBreakerOpensOnFailureRate(t *testing.T) {
	cb := NewCircuitBreaker(8, time.Hour)

	// Timeouts (status 0) never trip the consecutive-critical rule, so
	// the breaker only opens once 8/20 requests have failed
	for i := 0; i < 12; i++ {
		cb.RecordSuccess()
	}
	for i := 0; i < 8; i++ {
		cb.RecordFailure(0)
	}

	assert.False(t, cb.CanProceed())
}

func TestCircuitBreakerHalfOpenAfterTimeout(t *testing.T) {
	cb := NewCircuitBreaker(8, 10*time.Millisecond)

	cb.RecordFailure(429)
	cb.RecordFailure(429)
	assert.False(t, cb.CanProceed())

	time.Sleep(20 * time.Millisecond)
	assert.True(t, cb.CanProceed())

	// Counters reset after half-open transition
	_, failures, total := cb.GetStatus()
	assert.Equal(t, 0, failures)
	assert.Equal(t, 0, total)
}
