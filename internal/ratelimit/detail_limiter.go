package ratelimit

import (
	"log"
	"sync"
	"time"
)

// DetailLimiter paces detail-page fetches to a fixed hourly rate by
// enforcing a minimum interval between acquisitions.
type DetailLimiter struct {
	perHour     int
	interval    time.Duration
	lastAcquire time.Time
	mu          sync.Mutex
}

// NewDetailLimiter creates a limiter that allows at most perHour
// acquisitions per hour, evenly spaced.
func NewDetailLimiter(perHour int) *DetailLimiter {
	perHour = clampInt(perHour, 1, 60)
	return &DetailLimiter{
		perHour:  perHour,
		interval: time.Hour / time.Duration(perHour),
	}
}

// Acquire blocks until the next fetch slot is available. The caller
// name is only used for logging.
func (dl *DetailLimiter) Acquire(caller string) {
	dl.mu.Lock()

	now := time.Now()
	var wait time.Duration
	if !dl.lastAcquire.IsZero() {
		nextAllowed := dl.lastAcquire.Add(dl.interval)
		if now.Before(nextAllowed) {
			wait = nextAllowed.Sub(now)
		}
	}

	if wait > 0 {
		dl.mu.Unlock()
		log.Printf("[DetailLimiter] caller=%s waiting %v (rate %d/hr)", caller, wait.Round(time.Second), dl.perHour)
		time.Sleep(wait)
		dl.mu.Lock()
	}

	dl.lastAcquire = time.Now()
	dl.mu.Unlock()
}

// PerHour returns the configured hourly rate.
func (dl *DetailLimiter) PerHour() int {
	return dl.perHour
}
