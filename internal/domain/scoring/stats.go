package scoring

// Averages holds rounded per-category means over a range.
type Averages struct {
	Exercise   float64 `json:"exercise"`
	Nutrition  float64 `json:"nutrition"`
	Medication float64 `json:"medication"`
	Sleep      float64 `json:"sleep"`
	Vitals     float64 `json:"vitals"`
	Hydration  float64 `json:"hydration"`
	Total      float64 `json:"total"`
}

// Distribution counts days per DistributionBand.
type Distribution struct {
	Excellent int `json:"excellent"`
	Good      int `json:"good"`
	Fair      int `json:"fair"`
	Poor      int `json:"poor"`
}

type Stats struct {
	TotalDays         int          `json:"totalDays"`
	AverageScores     Averages     `json:"averageScores"`
	ScoreDistribution Distribution `json:"scoreDistribution"`
}

// Summarize averages every stored day, zeros included, and buckets the
// totals. An empty range yields all zeros.
func Summarize(points []DailyPoint) Stats {
	var st Stats
	if len(points) == 0 {
		return st
	}

	acc := accumulator{}
	for _, p := range points {
		acc.add(p)
		switch DistributionBand(p.Total) {
		case BandExcellent:
			st.ScoreDistribution.Excellent++
		case BandGood:
			st.ScoreDistribution.Good++
		case BandFair:
			st.ScoreDistribution.Fair++
		default:
			st.ScoreDistribution.Poor++
		}
	}

	b := acc.bucket()
	st.TotalDays = acc.n
	st.AverageScores = Averages{
		Exercise:   b.AvgExercise,
		Nutrition:  b.AvgNutrition,
		Medication: b.AvgMedication,
		Sleep:      b.AvgSleep,
		Vitals:     b.AvgVitals,
		Hydration:  b.AvgHydration,
		Total:      b.AvgTotal,
	}
	return st
}
