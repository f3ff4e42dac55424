package scoring

// DoseCount is the number of doses taken out of those scheduled on one day.
type DoseCount struct {
	Taken int
	Total int
}

// HeatmapCell is one day of the adherence calendar. AdherenceRate is nil when
// nothing was scheduled so the UI can tell "no data" from "all missed".
type HeatmapCell struct {
	Day           int      `json:"day"`
	AdherenceRate *float64 `json:"adherenceRate"`
	TakenCount    int      `json:"takenCount"`
	TotalCount    int      `json:"totalCount"`
	Level         Level    `json:"level"`
	Tier          Tier     `json:"tier"`
}

// BuildHeatmap emits one cell per day of m, in day order.
func BuildHeatmap(m Month, counts map[int]DoseCount) []HeatmapCell {
	days := m.DaysInMonth()
	cells := make([]HeatmapCell, 0, days)
	for day := 1; day <= days; day++ {
		c := counts[day]
		a := Classify(c.Taken, c.Total)
		cell := HeatmapCell{
			Day:        day,
			TakenCount: c.Taken,
			TotalCount: c.Total,
			Level:      a.Level,
			Tier:       a.Tier,
		}
		if c.Total > 0 {
			rate := Round1(a.Rate)
			cell.AdherenceRate = &rate
		}
		cells = append(cells, cell)
	}
	return cells
}

// DailyRates turns per-day dose counts into the rate map MonthlyScore takes.
// Days with nothing scheduled are not logged days.
func DailyRates(counts map[int]DoseCount) map[int]float64 {
	rates := make(map[int]float64, len(counts))
	for day, c := range counts {
		if c.Total <= 0 {
			continue
		}
		rates[day] = Rate(c.Taken, c.Total)
	}
	return rates
}
