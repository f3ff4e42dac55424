package scoring

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidInterval is returned for an unknown trends interval.
var ErrInvalidInterval = errors.New("interval must be one of week, month, day")

// Interval selects how trend points are grouped.
type Interval string

const (
	IntervalWeek  Interval = "week"
	IntervalMonth Interval = "month"
	IntervalDay   Interval = "day"
)

// ParseInterval defaults an empty string to week.
func ParseInterval(s string) (Interval, error) {
	switch Interval(s) {
	case "":
		return IntervalWeek, nil
	case IntervalWeek, IntervalMonth, IntervalDay:
		return Interval(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidInterval, s)
}

// KeyFunc returns the bucket key function, or nil for the day interval which
// is not bucketed.
func (i Interval) KeyFunc() func(time.Time) string {
	switch i {
	case IntervalWeek:
		return WeekKey
	case IntervalMonth:
		return MonthKey
	}
	return nil
}

// DailyPoint is one stored day as seen by the trend and stats functions.
type DailyPoint struct {
	Date           time.Time
	Scores         CategoryScores
	Total          float64
	PostSurgeryDay *int
}

// WeekKey labels the week containing t as "{year}-W{n}" with
// n = ceil((dayOfYear + jan1Weekday) / 7), Sunday = 0. This is not ISO-8601:
// weeks restart on January 1 and the labels are already shown to users, so
// swap the formula here only together with any stored keys.
func WeekKey(t time.Time) string {
	jan1 := time.Date(t.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
	n := (t.YearDay() + int(jan1.Weekday()) + 6) / 7
	return fmt.Sprintf("%d-W%d", t.Year(), n)
}

// MonthKey labels the calendar month containing t as "YYYY-MM".
func MonthKey(t time.Time) string {
	return MonthOf(t).String()
}

// Bucket is the averaged view of the days that share a key.
type Bucket struct {
	Period        string  `json:"period"`
	AvgExercise   float64 `json:"avgExercise"`
	AvgNutrition  float64 `json:"avgNutrition"`
	AvgMedication float64 `json:"avgMedication"`
	AvgSleep      float64 `json:"avgSleep"`
	AvgVitals     float64 `json:"avgVitals"`
	AvgHydration  float64 `json:"avgHydration"`
	AvgTotal      float64 `json:"avgTotal"`
	DaysLogged    int     `json:"daysLogged"`
}

type accumulator struct {
	period string
	sum    CategoryScores
	total  float64
	n      int
}

func (a *accumulator) add(p DailyPoint) {
	a.sum.Exercise += p.Scores.Exercise
	a.sum.Nutrition += p.Scores.Nutrition
	a.sum.Medication += p.Scores.Medication
	a.sum.Sleep += p.Scores.Sleep
	a.sum.Vitals += p.Scores.Vitals
	a.sum.Hydration += p.Scores.Hydration
	a.total += p.Total
	a.n++
}

func (a *accumulator) bucket() Bucket {
	n := float64(a.n)
	return Bucket{
		Period:        a.period,
		AvgExercise:   Round1(a.sum.Exercise / n),
		AvgNutrition:  Round1(a.sum.Nutrition / n),
		AvgMedication: Round1(a.sum.Medication / n),
		AvgSleep:      Round1(a.sum.Sleep / n),
		AvgVitals:     Round1(a.sum.Vitals / n),
		AvgHydration:  Round1(a.sum.Hydration / n),
		AvgTotal:      Round1(a.total / n),
		DaysLogged:    a.n,
	}
}

// BucketTrends groups points by key and averages every category over the days
// present in each bucket. Buckets come out in order of first appearance, so
// date-ascending input gives date-ascending buckets.
func BucketTrends(points []DailyPoint, key func(time.Time) string) []Bucket {
	index := make(map[string]int)
	var accs []*accumulator
	for _, p := range points {
		k := key(p.Date)
		i, ok := index[k]
		if !ok {
			i = len(accs)
			index[k] = i
			accs = append(accs, &accumulator{period: k})
		}
		accs[i].add(p)
	}

	buckets := make([]Bucket, len(accs))
	for i, a := range accs {
		buckets[i] = a.bucket()
	}
	return buckets
}

// DailyRecord is the unbucketed trend row.
type DailyRecord struct {
	Date            string  `json:"date"`
	ExerciseScore   float64 `json:"exerciseScore"`
	NutritionScore  float64 `json:"nutritionScore"`
	MedicationScore float64 `json:"medicationScore"`
	SleepScore      float64 `json:"sleepScore"`
	VitalsScore     float64 `json:"vitalsScore"`
	HydrationScore  float64 `json:"hydrationScore"`
	TotalDailyScore float64 `json:"totalDailyScore"`
	PostSurgeryDay  *int    `json:"postSurgeryDay"`
}

// DailyTrend passes points through one record per day.
func DailyTrend(points []DailyPoint) []DailyRecord {
	out := make([]DailyRecord, len(points))
	for i, p := range points {
		out[i] = DailyRecord{
			Date:            p.Date.Format("2006-01-02"),
			ExerciseScore:   p.Scores.Exercise,
			NutritionScore:  p.Scores.Nutrition,
			MedicationScore: p.Scores.Medication,
			SleepScore:      p.Scores.Sleep,
			VitalsScore:     p.Scores.Vitals,
			HydrationScore:  p.Scores.Hydration,
			TotalDailyScore: p.Total,
			PostSurgeryDay:  p.PostSurgeryDay,
		}
	}
	return out
}

// Trends dispatches on interval and returns either []Bucket or []DailyRecord.
func Trends(points []DailyPoint, interval Interval) interface{} {
	if key := interval.KeyFunc(); key != nil {
		return BucketTrends(points, key)
	}
	return DailyTrend(points)
}
