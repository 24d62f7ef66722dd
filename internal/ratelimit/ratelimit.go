package ratelimit

import (
	"sync"
	"time"
)

// window is a sliding time window of request timestamps.
type window struct {
	span  time.Duration
	limit int
	times []time.Time
}

func (w *window) prune(now time.Time) {
	cutoff := now.Add(-w.span)
	kept := w.times[:0]
	for _, t := range w.times {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	w.times = kept
}

func (w *window) full() bool {
	return w.limit > 0 && len(w.times) >= w.limit
}

func (w *window) remaining() int {
	r := w.limit - len(w.times)
	if r < 0 {
		return 0
	}
	return r
}

// RateLimiter tracks and enforces request rate limits over minute, hour
// and day windows.
type RateLimiter struct {
	enabled bool
	minute  window
	hour    window
	day     window
	mu      sync.Mutex
}

// NewRateLimiter creates a new rate limiter with the given limits.
// A limit of 0 disables that window.
func NewRateLimiter(requestsPerMinute, requestsPerHour, requestsPerDay int, enabled bool) *RateLimiter {
	return &RateLimiter{
		enabled: enabled,
		minute:  window{span: time.Minute, limit: requestsPerMinute},
		hour:    window{span: time.Hour, limit: requestsPerHour},
		day:     window{span: 24 * time.Hour, limit: requestsPerDay},
	}
}

// AllowRequest checks if a request is allowed based on rate limits.
// Returns true if allowed, false if rate limit exceeded.
func (rl *RateLimiter) AllowRequest() bool {
	if !rl.enabled {
		return true
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	rl.minute.prune(now)
	rl.hour.prune(now)
	rl.day.prune(now)

	if rl.minute.full() || rl.hour.full() || rl.day.full() {
		return false
	}

	rl.minute.times = append(rl.minute.times, now)
	rl.hour.times = append(rl.hour.times, now)
	rl.day.times = append(rl.day.times, now)

	return true
}

// Stats contains rate limiter statistics
type Stats struct {
	Enabled             bool `json:"enabled"`
	RequestsLastMinute  int  `json:"requests_last_minute"`
	RequestsLastHour    int  `json:"requests_last_hour"`
	RequestsLastDay     int  `json:"requests_last_day"`
	LimitPerMinute      int  `json:"limit_per_minute"`
	LimitPerHour        int  `json:"limit_per_hour"`
	LimitPerDay         int  `json:"limit_per_day"`
	RemainingThisMinute int  `json:"remaining_this_minute"`
	RemainingThisHour   int  `json:"remaining_this_hour"`
	RemainingThisDay    int  `json:"remaining_this_day"`
}

// GetStats returns current rate limiter statistics
func (rl *RateLimiter) GetStats() Stats {
	if !rl.enabled {
		return Stats{Enabled: false}
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	rl.minute.prune(now)
	rl.hour.prune(now)
	rl.day.prune(now)

	return Stats{
		Enabled:             true,
		RequestsLastMinute:  len(rl.minute.times),
		RequestsLastHour:    len(rl.hour.times),
		RequestsLastDay:     len(rl.day.times),
		LimitPerMinute:      rl.minute.limit,
		LimitPerHour:        rl.hour.limit,
		LimitPerDay:         rl.day.limit,
		RemainingThisMinute: rl.minute.remaining(),
		RemainingThisHour:   rl.hour.remaining(),
		RemainingThisDay:    rl.day.remaining(),
	}
}

// Reset clears all tracked requests (useful for testing)
func (rl *RateLimiter) Reset() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.minute.times = nil
	rl.hour.times = nil
	rl.day.times = nil
}
