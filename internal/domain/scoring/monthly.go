package scoring

const (
	pointsPerPerfectDay = 3
	bonus30DayMonth     = 10
	bonusOtherMonth     = 7
)

// Monthly is the gamified medication score for one month.
type Monthly struct {
	Month            string `json:"month"`
	DaysInMonth      int    `json:"daysInMonth"`
	DaysLogged       int    `json:"daysLogged"`
	BaseScore        int    `json:"baseScore"`
	BonusPoints      int    `json:"bonusPoints"`
	TotalScore       int    `json:"totalScore"`
	MaxPossibleScore int    `json:"maxPossibleScore"`
	AllDaysLogged    bool   `json:"allDaysLogged"`
	IsPerfect        bool   `json:"isPerfect"`
}

// completionBonus is 10 for 30-day months and 7 for every other length.
func completionBonus(daysInMonth int) int {
	if daysInMonth == 30 {
		return bonus30DayMonth
	}
	return bonusOtherMonth
}

// MonthlyScore sums DailyPoints over the logged days of m. rates maps day of
// month to that day's adherence rate; keys outside 1..daysInMonth are ignored.
// The bonus applies only when every day of the month was logged.
func MonthlyScore(m Month, rates map[int]float64) Monthly {
	days := m.DaysInMonth()
	out := Monthly{
		Month:            m.String(),
		DaysInMonth:      days,
		MaxPossibleScore: days*pointsPerPerfectDay + completionBonus(days),
	}

	for day, rate := range rates {
		if day < 1 || day > days {
			continue
		}
		out.DaysLogged++
		out.BaseScore += DailyPoints(rate)
	}

	out.AllDaysLogged = out.DaysLogged == days
	if out.AllDaysLogged {
		out.BonusPoints = completionBonus(days)
	}
	out.TotalScore = out.BaseScore + out.BonusPoints
	out.IsPerfect = out.TotalScore == out.MaxPossibleScore
	return out
}
