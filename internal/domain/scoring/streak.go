package scoring

import (
	"sort"
	"time"
)

type Streak struct {
	CurrentStreak  int     `json:"currentStreak"`
	LongestStreak  int     `json:"longestStreak"`
	LastLoggedDate *string `json:"lastLoggedDate"`
}

// Streaks measures runs of consecutive logged calendar days. The current
// streak ends today, or yesterday while today has not been logged yet.
func Streaks(dates []time.Time, today time.Time) Streak {
	var s Streak
	if len(dates) == 0 {
		return s
	}

	days := make([]time.Time, 0, len(dates))
	seen := make(map[time.Time]bool, len(dates))
	for _, d := range dates {
		c := civil(d)
		if seen[c] {
			continue
		}
		seen[c] = true
		days = append(days, c)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	run := 0
	for i, d := range days {
		if i > 0 && days[i-1].AddDate(0, 0, 1).Equal(d) {
			run++
		} else {
			run = 1
		}
		if run > s.LongestStreak {
			s.LongestStreak = run
		}
	}

	last := days[len(days)-1].Format("2006-01-02")
	s.LastLoggedDate = &last

	check := civil(today)
	if !seen[check] {
		check = check.AddDate(0, 0, -1)
	}
	for seen[check] {
		s.CurrentStreak++
		check = check.AddDate(0, 0, -1)
	}
	return s
}
