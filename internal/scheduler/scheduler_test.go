package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseDailyRunTime(t *testing.T) {
	s := &Scheduler{}

	assert.Equal(t, "0 2 * * *", s.parseDailyRunTime("02:00"))
	assert.Equal(t, "30 14 * * *", s.parseDailyRunTime("14:30"))
	assert.Equal(t, "0 0 * * *", s.parseDailyRunTime("00:00"))
}

func TestParseDailyRunTimeInvalid(t *testing.T) {
	s := &Scheduler{}

	assert.Equal(t, "0 2 * * *", s.parseDailyRunTime("not-a-time"))
	assert.Equal(t, "0 2 * * *", s.parseDailyRunTime(""))
}
