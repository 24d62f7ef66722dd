package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiterDisabled(t *testing.T) {
	rl := NewRateLimiter(1, 1, 1, false)
	for i := 0; i < 10; i++ {
		assert.True(t, rl.AllowRequest())
	}
	assert.False(t, rl.GetStats().Enabled)
}

func TestRateLimiterMinuteLimit(t *testing.T) {
	rl := NewRateLimiter(3, 0, 0, true)
	assert.True(t, rl.AllowRequest())
	assert.True(t, rl.AllowRequest())
	assert.True(t, rl.AllowRequest())
	assert.False(t, rl.AllowRequest())
}

func TestRateLimiterStats(t *testing.T) {
	rl := NewRateLimiter(5, 10, 100, true)
	rl.AllowRequest()
	rl.AllowRequest()

	stats := rl.GetStats()
	assert.True(t, stats.Enabled)
	assert.Equal(t, 2, stats.RequestsLastMinute)
	assert.Equal(t, 3, stats.RemainingThisMinute)
	assert.Equal(t, 8, stats.RemainingThisHour)
	assert.Equal(t, 98, stats.RemainingThisDay)
}

func TestRateLimiterReset(t *testing.T) {
	rl := NewRateLimiter(1, 0, 0, true)
	assert.True(t, rl.AllowRequest())
	assert.False(t, rl.AllowRequest())
	rl.Reset()
	assert.True(t, rl.AllowRequest())
}

func TestWindowPrune(t *testing.T) {
	now := time.Now()
	w := window{span: time.Minute, limit: 10, times: []time.Time{
		now.Add(-2 * time.Minute),
		now.Add(-30 * time.Second),
		now,
	}}
	w.prune(now)
	assert.Len(t, w.times, 2)
}

func TestDetailLimiterFirstAcquireImmediate(t *testing.T) {
	dl := NewDetailLimiter(60)
	start := time.Now()
	dl.Acquire("test")
	assert.Less(t, time.Since(start), 500*time.Millisecond)
	assert.Equal(t, 60, dl.PerHour())
}

func TestDetailLimiterClampsRate(t *testing.T) {
	assert.Equal(t, 1, NewDetailLimiter(0).PerHour())
	assert.Equal(t, 60, NewDetailLimiter(500).PerHour())
}

func TestInHourRange(t *testing.T) {
	// plain range
	assert.True(t, inHourRange(11, 10, 22))
	assert.False(t, inHourRange(22, 10, 22))
	// wrap past midnight
	assert.True(t, inHourRange(23, 22, 6))
	assert.True(t, inHourRange(3, 22, 6))
	assert.False(t, inHourRange(12, 22, 6))
}

func TestAdaptiveLimiterSlowModeEntry(t *testing.T) {
	l := NewAdaptiveDetailLimiter(
		DetailRateConfig{NightPerHour: 10, DayPerHour: 20, DefaultPerHour: 15},
		AdaptiveConfig{Window: 4, SlowThreshold: 0.5, SlowPerHour: 2},
	)

	l.Observe(true)
	l.Observe(false)
	l.Observe(false)

	l.mu.Lock()
	slow := time.Now().Before(l.slowUntil)
	capPerHr := l.currentCapPerHr
	l.mu.Unlock()

	assert.True(t, slow)
	assert.Equal(t, 2, capPerHr)
}

func TestAdaptiveLimiterFailureRate(t *testing.T) {
	l := NewAdaptiveDetailLimiter(DetailRateConfig{DefaultPerHour: 10}, AdaptiveConfig{Window: 4})

	l.mu.Lock()
	assert.Equal(t, 0.0, l.failureRateLocked())
	l.mu.Unlock()

	l.Observe(true)
	l.Observe(true)

	l.mu.Lock()
	assert.Equal(t, 0.0, l.failureRateLocked())
	l.mu.Unlock()
}

func TestPortalLimiterInFlight(t *testing.T) {
	pl := NewPortalLimiter(2, 0, 0)
	pl.Acquire()
	assert.Equal(t, 1, pl.GetInFlight())
	pl.Acquire()
	assert.Equal(t, 2, pl.GetInFlight())
	pl.Release()
	assert.Equal(t, 1, pl.GetInFlight())
	pl.Release()
	assert.Equal(t, 0, pl.GetInFlight())
}
