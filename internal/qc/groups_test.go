package qc

import (
	"math"
	"testing"

	"github.com/nvandessel/elisalab/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGroupStats_Standards(t *testing.T) {
	wells := []models.Well{
		{Type: models.WellTypeStandard, Level: 2, Concentration: 10, Signal: 1.1},
		{Type: models.WellTypeStandard, Level: 1, Concentration: 1, Signal: 0.9},
		{Type: models.WellTypeStandard, Level: 2, Concentration: 10, Signal: 0.9},
		{Type: models.WellTypeStandard, Level: 1, Concentration: 1, Signal: 1.1},
		{Type: models.WellTypeStandard, Level: 1, Concentration: 1, Signal: 1.0},
		{Type: models.WellTypeBlank, Signal: 0.05},
	}

	got := GroupStats(wells, models.WellTypeStandard)
	require.Len(t, got, 2)

	assert.Equal(t, "standard_1", got[0].Group)
	assert.Equal(t, 3, got[0].N)
	assert.InDelta(t, 1.0, got[0].Mean, 1e-12)
	assert.InDelta(t, 10.0, got[0].CV, 1e-9)

	assert.Equal(t, "standard_2", got[1].Group)
	assert.Equal(t, 2, got[1].N)
	assert.Equal(t, 10.0, got[1].Concentration)

	conc, means := StandardCurve(wells)
	assert.Equal(t, []float64{1, 10}, conc)
	assert.InDeltaSlice(t, []float64{1.0, 1.0}, means, 1e-12)
}

func TestGroupStats_Unknowns(t *testing.T) {
	wells := []models.Well{
		{Type: models.WellTypeUnknown, Unknown: 2, Signal: 0.4},
		{Type: models.WellTypeUnknown, Unknown: 1, Signal: 0.2},
	}
	got := GroupStats(wells, models.WellTypeUnknown)
	require.Len(t, got, 2)
	assert.Equal(t, "unknown_1", got[0].Group)
	assert.Equal(t, "unknown_2", got[1].Group)
	assert.Zero(t, got[0].SD)
}

func TestMaxCV(t *testing.T) {
	assert.True(t, math.IsNaN(MaxCV(nil)))
	groups := []GroupStat{{CV: 3}, {CV: math.NaN()}, {CV: 12}}
	assert.Equal(t, 12.0, MaxCV(groups))
}
