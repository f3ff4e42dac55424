package medicationlog

import (
	"fmt"
	"strings"
	"time"

	"github.com/heartbeat/heartbeat/internal/domain/scoring"
)

// Status is the state of one scheduled dose.
type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusTaken     Status = "taken"
	StatusMissed    Status = "missed"
	StatusSkipped   Status = "skipped"
)

// Log is one scheduled dose of a medication. Rows are written by the
// medication tracker and only read here.
type Log struct {
	ID             int64      `json:"id"`
	UserID         int64      `json:"userId"`
	MedicationID   int64      `json:"medicationId"`
	MedicationName string     `json:"medicationName"`
	ScheduledTime  time.Time  `json:"scheduledTime"`
	TakenTime      *time.Time `json:"takenTime"`
	Status         Status     `json:"status"`
	Notes          *string    `json:"notes"`
}

// Taken reports whether the dose counts toward adherence.
func (l *Log) Taken() bool { return l.Status == StatusTaken }

// Calendar is the heatmap payload for one month.
type Calendar struct {
	Year        int                   `json:"year"`
	Month       int                   `json:"month"`
	DaysInMonth int                   `json:"daysInMonth"`
	Cells       []scoring.HeatmapCell `json:"cells"`
}

// MedicationAdherence summarises one medication over a window.
type MedicationAdherence struct {
	MedicationID  int64            `json:"medicationId"`
	Name          string           `json:"name"`
	TakenCount    int              `json:"takenCount"`
	TotalCount    int              `json:"totalCount"`
	AdherenceRate float64          `json:"adherenceRate"`
	Level         scoring.Level    `json:"level"`
	Label         string           `json:"label"`
	Tier          scoring.Tier     `json:"tier"`
	BarColor      scoring.BarColor `json:"barColor"`
}

// Window is a half-open [From, To) interval of scheduled times. Zero ends
// are open.
type Window struct {
	From time.Time
	To   time.Time
}

// ParseWindow reads inclusive YYYY-MM-DD bounds as calendar days in loc.
func ParseWindow(start, end string, loc *time.Location) (Window, error) {
	var w Window
	if s := strings.TrimSpace(start); s != "" {
		t, err := time.ParseInLocation("2006-01-02", s, loc)
		if err != nil {
			return Window{}, fmt.Errorf("startDate must be YYYY-MM-DD")
		}
		w.From = t
	}
	if s := strings.TrimSpace(end); s != "" {
		t, err := time.ParseInLocation("2006-01-02", s, loc)
		if err != nil {
			return Window{}, fmt.Errorf("endDate must be YYYY-MM-DD")
		}
		w.To = t.AddDate(0, 0, 1)
	}
	if !w.From.IsZero() && !w.To.IsZero() && !w.To.After(w.From) {
		return Window{}, fmt.Errorf("endDate must not be before startDate")
	}
	return w, nil
}

// dailyCounts groups logs by day of month of their scheduled time in loc.
// Logs outside m are dropped.
func dailyCounts(logs []*Log, m scoring.Month, loc *time.Location) map[int]scoring.DoseCount {
	counts := make(map[int]scoring.DoseCount)
	for _, l := range logs {
		at := l.ScheduledTime.In(loc)
		if !m.Contains(at) {
			continue
		}
		c := counts[at.Day()]
		c.Total++
		if l.Taken() {
			c.Taken++
		}
		counts[at.Day()] = c
	}
	return counts
}

// perMedication keeps medications in order of first appearance.
func perMedication(logs []*Log) []MedicationAdherence {
	index := make(map[int64]int)
	out := make([]MedicationAdherence, 0)
	for _, l := range logs {
		i, ok := index[l.MedicationID]
		if !ok {
			i = len(out)
			index[l.MedicationID] = i
			out = append(out, MedicationAdherence{MedicationID: l.MedicationID, Name: l.MedicationName})
		}
		out[i].TotalCount++
		if l.Taken() {
			out[i].TakenCount++
		}
	}
	for i := range out {
		a := scoring.Classify(out[i].TakenCount, out[i].TotalCount)
		out[i].AdherenceRate = scoring.Round1(a.Rate)
		out[i].Level = a.Level
		out[i].Label = a.Label
		out[i].Tier = a.Tier
		out[i].BarColor = scoring.ComplianceColor(a.Rate)
	}
	return out
}
