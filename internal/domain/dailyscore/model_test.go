package dailyscore

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDate_JSON(t *testing.T) {
	d, err := ParseDate("2024-03-01")
	require.NoError(t, err)

	b, err := json.Marshal(d)
	require.NoError(t, err)
	assert.Equal(t, `"2024-03-01"`, string(b))

	var back Date
	require.NoError(t, json.Unmarshal(b, &back))
	assert.True(t, back.Equal(d.Time))

	assert.Error(t, json.Unmarshal([]byte(`"01/03/2024"`), &back))
	assert.Error(t, json.Unmarshal([]byte(`20240301`), &back))
}

func TestDateOf_UsesLocalCalendarDay(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*3600)
	late := time.Date(2024, 3, 1, 23, 30, 0, 0, time.UTC).In(tokyo)
	assert.Equal(t, "2024-03-02", DateOf(late).String())
}

func TestScoreInput_ApplyTo(t *testing.T) {
	note := "felt good"
	row := &DailyScore{ExerciseScore: 80, SleepScore: 40}
	in := ScoreInput{SleepScore: num(100), Notes: &note}
	in.ApplyTo(row)

	assert.Equal(t, 80.0, row.ExerciseScore)
	assert.Equal(t, 100.0, row.SleepScore)
	assert.Equal(t, 90.0, row.TotalDailyScore)
	require.NotNil(t, row.Notes)
	assert.Equal(t, note, *row.Notes)
}

func TestScoreInput_ApplyTo_AllZeroGivesZeroTotal(t *testing.T) {
	row := &DailyScore{}
	in := ScoreInput{ExerciseScore: num(0), NutritionScore: num(0)}
	in.ApplyTo(row)
	assert.Equal(t, 0.0, row.TotalDailyScore)
}

func TestScoreInput_ApplyTo_RoundsToStoredPrecision(t *testing.T) {
	row := &DailyScore{}
	in := ScoreInput{ExerciseScore: num(0.004), NutritionScore: num(80)}
	in.ApplyTo(row)
	assert.Equal(t, 0.0, row.ExerciseScore)
	assert.Equal(t, 80.0, row.TotalDailyScore, "a category that rounds to zero is not logged")

	row = &DailyScore{}
	in = ScoreInput{ExerciseScore: num(70.126), SleepScore: num(89.99)}
	in.ApplyTo(row)
	assert.Equal(t, 70.13, row.ExerciseScore)
	assert.InDelta(t, 80.06, row.TotalDailyScore, 1e-9)
}

func TestScoreInput_ValidateBounds(t *testing.T) {
	in := ScoreInput{ScoreDate: "2024-03-01", ExerciseScore: num(0), SleepScore: num(100)}
	d, err := in.Validate()
	require.NoError(t, err)
	assert.Equal(t, "2024-03-01", d.String())

	in.VitalsScore = num(100.01)
	_, err = in.Validate()
	require.Error(t, err)
	assert.Equal(t, "vitalsScore must be between 0 and 100", err.Error())
}

func TestParseRange(t *testing.T) {
	r, err := ParseRange("", "")
	require.NoError(t, err)
	assert.Nil(t, r.From)
	assert.Nil(t, r.To)
	assert.Equal(t, "..", r.key())

	r, err = ParseRange("2024-03-01", "2024-03-01")
	require.NoError(t, err)
	assert.Equal(t, "2024-03-01..2024-03-01", r.key())

	_, err = ParseRange("2024-03-02", "2024-03-01")
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "endDate", ve.Field)

	_, err = ParseRange("march", "")
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "startDate", ve.Field)
}

func TestDailyScore_Point(t *testing.T) {
	day := 12
	d := &DailyScore{ScoreDate: mustDate(t, "2024-03-01"), ExerciseScore: 70, TotalDailyScore: 70, PostSurgeryDay: &day}
	p := d.Point()
	assert.Equal(t, 70.0, p.Total)
	assert.Equal(t, 70.0, p.Scores.Exercise)
	require.NotNil(t, p.PostSurgeryDay)
	assert.Equal(t, 12, *p.PostSurgeryDay)
}
