package scoring

import "math"

// CategoryScores are the six per-category values of one day, each in [0,100].
type CategoryScores struct {
	Exercise   float64
	Nutrition  float64
	Medication float64
	Sleep      float64
	Vitals     float64
	Hydration  float64
}

// Total is the mean of the logged categories.
func (c CategoryScores) Total() float64 {
	return TotalDailyScore(&c.Exercise, &c.Nutrition, &c.Medication, &c.Sleep, &c.Vitals, &c.Hydration)
}

// TotalDailyScore averages the categories that were logged. A category counts
// as not logged when it is nil or exactly 0, so a genuine zero never drags the
// mean down. No logged category yields 0.
func TotalDailyScore(scores ...*float64) float64 {
	var sum float64
	var n int
	for _, s := range scores {
		if s == nil || *s <= 0 {
			continue
		}
		sum += *s
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// ValidScore reports whether v is an acceptable category value.
func ValidScore(v float64) bool {
	return !math.IsNaN(v) && v >= 0 && v <= 100
}

// Round2 rounds half away from zero to the two decimals scores are stored with.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Round1 rounds half away from zero to one decimal place.
func Round1(v float64) float64 {
	return math.Round(v*10) / 10
}
