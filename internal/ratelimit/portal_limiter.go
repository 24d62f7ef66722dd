package ratelimit

import (
	"math/rand"
	"sync"
	"time"
)

// PortalLimiter manages rate limiting for listing portal scraping
type PortalLimiter struct {
	maxInFlight     int // Maximum concurrent HTTP requests to the portal
	currentInFlight int
	mutex           sync.Mutex
	baseDelay       time.Duration // Base delay between requests
	jitter          time.Duration // Random jitter to add
	lastRequest     time.Time
}

// NewPortalLimiter creates a new rate limiter for portal scraping
func NewPortalLimiter(maxInFlight int, baseDelay, jitter time.Duration) *PortalLimiter {
	return &PortalLimiter{
		maxInFlight: maxInFlight,
		baseDelay:   baseDelay,
		jitter:      jitter,
		lastRequest: time.Now(),
	}
}

// Acquire waits until it's safe to make a request
func (pl *PortalLimiter) Acquire() {
	pl.mutex.Lock()

	// Wait for in-flight count to drop
	for pl.currentInFlight >= pl.maxInFlight {
		pl.mutex.Unlock()
		time.Sleep(100 * time.Millisecond)
		pl.mutex.Lock()
	}

	// Apply rate limiting with jitter
	elapsed := time.Since(pl.lastRequest)
	requiredDelay := pl.baseDelay
	if pl.jitter > 0 {
		requiredDelay += time.Duration(rand.Int63n(int64(pl.jitter)))
	}

	if elapsed < requiredDelay {
		time.Sleep(requiredDelay - elapsed)
	}

	pl.currentInFlight++
	pl.lastRequest = time.Now()
	pl.mutex.Unlock()
}

// Release marks a request as completed
func (pl *PortalLimiter) Release() {
	pl.mutex.Lock()
	pl.currentInFlight--
	pl.mutex.Unlock()
}

// GetInFlight returns current in-flight request count (for debugging)
func (pl *PortalLimiter) GetInFlight() int {
	pl.mutex.Lock()
	defer pl.mutex.Unlock()
	return pl.currentInFlight
}
