package scoring

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildHeatmap(t *testing.T) {
	m := Month{Year: 2024, Month: time.February}
	cells := BuildHeatmap(m, map[int]DoseCount{
		1:  {Taken: 2, Total: 2},
		2:  {Taken: 0, Total: 3},
		3:  {Taken: 2, Total: 3},
		45: {Taken: 1, Total: 1},
	})

	require.Len(t, cells, 29)
	for i, c := range cells {
		assert.Equal(t, i+1, c.Day)
	}

	require.NotNil(t, cells[0].AdherenceRate)
	assert.Equal(t, 100.0, *cells[0].AdherenceRate)
	assert.Equal(t, LevelPerfect, cells[0].Level)

	require.NotNil(t, cells[1].AdherenceRate, "all-missed day has a rate of 0")
	assert.Equal(t, 0.0, *cells[1].AdherenceRate)
	assert.Equal(t, LevelMissed, cells[1].Level)
	assert.Equal(t, 3, cells[1].TotalCount)

	require.NotNil(t, cells[2].AdherenceRate)
	assert.Equal(t, 66.7, *cells[2].AdherenceRate)
	assert.Equal(t, LevelFair, cells[2].Level)

	assert.Nil(t, cells[3].AdherenceRate, "no doses scheduled means no data")
	assert.Equal(t, LevelNoData, cells[3].Level)
	assert.Equal(t, TierGray, cells[3].Tier)
}

func TestDailyRates(t *testing.T) {
	rates := DailyRates(map[int]DoseCount{
		1: {Taken: 1, Total: 2},
		2: {Taken: 0, Total: 0},
		3: {Taken: 0, Total: 1},
	})

	assert.Len(t, rates, 2)
	assert.Equal(t, 50.0, rates[1])
	assert.Equal(t, 0.0, rates[3])
	_, ok := rates[2]
	assert.False(t, ok)
}
