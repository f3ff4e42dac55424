package dailyscore

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/heartbeat/heartbeat/internal/domain/scoring"
)

const dateLayout = "2006-01-02"

var (
	ErrNotFound    = errors.New("daily score not found")
	ErrUnknownUser = errors.New("user not found")
)

// ValidationError reports a bad request field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func invalid(field, format string, args ...interface{}) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// Date is a calendar date serialised as YYYY-MM-DD.
type Date struct{ time.Time }

func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("date %q must be YYYY-MM-DD", s)
	}
	return Date{t}, nil
}

// DateOf keeps the calendar date of t as observed in t's location.
func DateOf(t time.Time) Date {
	return Date{time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)}
}

func (d Date) String() string { return d.Format(dateLayout) }

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("date must be a string: %w", err)
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

type UserSummary struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// DailyScore is one user's scores for one calendar date.
type DailyScore struct {
	ID              int64        `json:"id"`
	UserID          int64        `json:"userId"`
	ScoreDate       Date         `json:"scoreDate"`
	PostSurgeryDay  *int         `json:"postSurgeryDay"`
	ExerciseScore   float64      `json:"exerciseScore"`
	NutritionScore  float64      `json:"nutritionScore"`
	MedicationScore float64      `json:"medicationScore"`
	SleepScore      float64      `json:"sleepScore"`
	VitalsScore     float64      `json:"vitalsScore"`
	HydrationScore  float64      `json:"hydrationScore"`
	TotalDailyScore float64      `json:"totalDailyScore"`
	Notes           *string      `json:"notes"`
	CreatedAt       time.Time    `json:"createdAt"`
	UpdatedAt       time.Time    `json:"updatedAt"`
	User            *UserSummary `json:"user,omitempty"`
}

func (d *DailyScore) Categories() scoring.CategoryScores {
	return scoring.CategoryScores{
		Exercise:   d.ExerciseScore,
		Nutrition:  d.NutritionScore,
		Medication: d.MedicationScore,
		Sleep:      d.SleepScore,
		Vitals:     d.VitalsScore,
		Hydration:  d.HydrationScore,
	}
}

// Recompute derives TotalDailyScore from the stored categories.
func (d *DailyScore) Recompute() {
	d.TotalDailyScore = scoring.Round2(d.Categories().Total())
}

func (d *DailyScore) Point() scoring.DailyPoint {
	return scoring.DailyPoint{
		Date:           d.ScoreDate.Time,
		Scores:         d.Categories(),
		Total:          d.TotalDailyScore,
		PostSurgeryDay: d.PostSurgeryDay,
	}
}

// ScoreInput is the submit payload. Nil category pointers mean "not sent";
// on update they keep the stored value. totalDailyScore is never read.
type ScoreInput struct {
	UserID          *int64   `json:"userId"`
	ScoreDate       string   `json:"scoreDate"`
	ExerciseScore   *float64 `json:"exerciseScore"`
	NutritionScore  *float64 `json:"nutritionScore"`
	MedicationScore *float64 `json:"medicationScore"`
	SleepScore      *float64 `json:"sleepScore"`
	VitalsScore     *float64 `json:"vitalsScore"`
	HydrationScore  *float64 `json:"hydrationScore"`
	Notes           *string  `json:"notes"`
}

type categoryField struct {
	name  string
	value *float64
}

func (in *ScoreInput) categories() []categoryField {
	return []categoryField{
		{"exerciseScore", in.ExerciseScore},
		{"nutritionScore", in.NutritionScore},
		{"medicationScore", in.MedicationScore},
		{"sleepScore", in.SleepScore},
		{"vitalsScore", in.VitalsScore},
		{"hydrationScore", in.HydrationScore},
	}
}

// Validate checks the date and the category ranges and returns the parsed date.
func (in *ScoreInput) Validate() (Date, error) {
	if strings.TrimSpace(in.ScoreDate) == "" {
		return Date{}, invalid("scoreDate", "scoreDate is required")
	}
	d, err := ParseDate(in.ScoreDate)
	if err != nil {
		return Date{}, invalid("scoreDate", "scoreDate must be YYYY-MM-DD")
	}
	for _, f := range in.categories() {
		if f.value != nil && !scoring.ValidScore(*f.value) {
			return Date{}, invalid(f.name, "%s must be between 0 and 100", f.name)
		}
	}
	if in.UserID != nil && *in.UserID <= 0 {
		return Date{}, invalid("userId", "userId must be a positive integer")
	}
	return d, nil
}

// ApplyTo overwrites the fields that were sent, at stored precision, and
// recomputes the total from the rounded values.
func (in *ScoreInput) ApplyTo(d *DailyScore) {
	set := func(dst *float64, src *float64) {
		if src != nil {
			*dst = scoring.Round2(*src)
		}
	}
	set(&d.ExerciseScore, in.ExerciseScore)
	set(&d.NutritionScore, in.NutritionScore)
	set(&d.MedicationScore, in.MedicationScore)
	set(&d.SleepScore, in.SleepScore)
	set(&d.VitalsScore, in.VitalsScore)
	set(&d.HydrationScore, in.HydrationScore)
	if in.Notes != nil {
		d.Notes = in.Notes
	}
	d.Recompute()
}

// Range is an inclusive date window; nil ends are open.
type Range struct {
	From *Date
	To   *Date
}

func ParseRange(start, end string) (Range, error) {
	var r Range
	if start != "" {
		d, err := ParseDate(start)
		if err != nil {
			return Range{}, invalid("startDate", "startDate must be YYYY-MM-DD")
		}
		r.From = &d
	}
	if end != "" {
		d, err := ParseDate(end)
		if err != nil {
			return Range{}, invalid("endDate", "endDate must be YYYY-MM-DD")
		}
		r.To = &d
	}
	if r.From != nil && r.To != nil && r.To.Before(r.From.Time) {
		return Range{}, invalid("endDate", "endDate must not be before startDate")
	}
	return r, nil
}

func (r Range) key() string {
	var from, to string
	if r.From != nil {
		from = r.From.String()
	}
	if r.To != nil {
		to = r.To.String()
	}
	return from + ".." + to
}

// Filter narrows the list endpoint. A nil UserID means every user.
type Filter struct {
	UserID   *int64
	Range    Range
	MinScore *float64
	MaxScore *float64
}
