package scoring

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreaks_Empty(t *testing.T) {
	s := Streaks(nil, date(2024, 3, 10))
	assert.Equal(t, 0, s.CurrentStreak)
	assert.Equal(t, 0, s.LongestStreak)
	assert.Nil(t, s.LastLoggedDate)
}

func TestStreaks(t *testing.T) {
	today := date(2024, 3, 10)
	dates := []time.Time{
		date(2024, 3, 9), date(2024, 3, 8), date(2024, 3, 10),
		date(2024, 3, 1), date(2024, 3, 2), date(2024, 3, 3), date(2024, 3, 4),
		date(2024, 3, 4),
	}

	s := Streaks(dates, today)
	assert.Equal(t, 3, s.CurrentStreak)
	assert.Equal(t, 4, s.LongestStreak)
	require.NotNil(t, s.LastLoggedDate)
	assert.Equal(t, "2024-03-10", *s.LastLoggedDate)
}

func TestStreaks_TodayNotLoggedYet(t *testing.T) {
	dates := []time.Time{date(2024, 3, 8), date(2024, 3, 9)}
	assert.Equal(t, 2, Streaks(dates, date(2024, 3, 10)).CurrentStreak)
	assert.Equal(t, 0, Streaks(dates, date(2024, 3, 11)).CurrentStreak)
}

func TestStreaks_IgnoresClock(t *testing.T) {
	loc := time.FixedZone("UTC-5", -5*3600)
	dates := []time.Time{time.Date(2024, 3, 9, 23, 30, 0, 0, loc)}
	s := Streaks(dates, time.Date(2024, 3, 10, 8, 0, 0, 0, loc))
	assert.Equal(t, 1, s.CurrentStreak)
}

func TestStreaks_AcrossMonthBoundary(t *testing.T) {
	dates := []time.Time{date(2024, 2, 28), date(2024, 2, 29), date(2024, 3, 1)}
	s := Streaks(dates, date(2024, 3, 1))
	assert.Equal(t, 3, s.CurrentStreak)
	assert.Equal(t, 3, s.LongestStreak)
}
