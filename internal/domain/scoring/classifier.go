package scoring

// Level is the adherence category of one day.
type Level string

const (
	LevelNoData  Level = "no_data"
	LevelPerfect Level = "perfect"
	LevelGood    Level = "good"
	LevelFair    Level = "fair"
	LevelPartial Level = "partial"
	LevelMissed  Level = "missed"
)

// Tier is the display colour attached to a Level.
type Tier string

const (
	TierGray   Tier = "gray"
	TierGreen  Tier = "green"
	TierBlue   Tier = "blue"
	TierAmber  Tier = "amber"
	TierOrange Tier = "orange"
	TierRed    Tier = "red"
)

// Adherence is the classified outcome for a (taken, total) pair.
type Adherence struct {
	Level Level   `json:"level"`
	Label string  `json:"label"`
	Tier  Tier    `json:"tier"`
	Rate  float64 `json:"rate"`
}

type band struct {
	min       float64
	inclusive bool
	level     Level
	label     string
	tier      Tier
}

// Evaluated top to bottom; the first band whose lower bound the rate meets wins.
var adherenceBands = []band{
	{100, true, LevelPerfect, "All Taken", TierGreen},
	{75, true, LevelGood, "Mostly Taken", TierBlue},
	{50, true, LevelFair, "Fair", TierAmber},
	{0, false, LevelPartial, "Partially Taken", TierOrange},
}

// Rate returns taken/total as a percentage, or 0 when total is 0.
func Rate(taken, total int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(taken) / float64(total) * 100
}

// Classify maps dose counts to an adherence category. A day without any
// scheduled dose is no_data, which is distinct from missed.
func Classify(taken, total int) Adherence {
	if total <= 0 {
		return Adherence{Level: LevelNoData, Label: "No Data", Tier: TierGray}
	}
	return ClassifyRate(Rate(taken, total))
}

// ClassifyRate maps a percentage of doses taken to its category.
func ClassifyRate(rate float64) Adherence {
	for _, b := range adherenceBands {
		if rate > b.min || (b.inclusive && rate == b.min) {
			return Adherence{Level: b.level, Label: b.label, Tier: b.tier, Rate: rate}
		}
	}
	return Adherence{Level: LevelMissed, Label: "Missed", Tier: TierRed, Rate: rate}
}

// DailyPoints is the monthly-score contribution of one logged day.
func DailyPoints(rate float64) int {
	switch {
	case rate >= 100:
		return 3
	case rate >= 50:
		return 2
	case rate > 0:
		return 1
	}
	return 0
}

// BarColor colours an adherence progress bar.
type BarColor string

const (
	BarGreen  BarColor = "green"
	BarYellow BarColor = "yellow"
	BarRed    BarColor = "red"
)

// ComplianceColor is the bar colouring used for per-medication adherence.
// Its thresholds differ from the daily classifier on purpose.
func ComplianceColor(rate float64) BarColor {
	switch {
	case rate >= 80:
		return BarGreen
	case rate >= 50:
		return BarYellow
	}
	return BarRed
}

// Band is a score-distribution bucket for range statistics.
type Band string

const (
	BandExcellent Band = "excellent"
	BandGood      Band = "good"
	BandFair      Band = "fair"
	BandPoor      Band = "poor"
)

// DistributionBand buckets a total daily score.
func DistributionBand(score float64) Band {
	switch {
	case score >= 80:
		return BandExcellent
	case score >= 60:
		return BandGood
	case score >= 40:
		return BandFair
	}
	return BandPoor
}
