package qc

import (
	"math"
	"testing"

	"github.com/nvandessel/elisalab/internal/curvefit"
	"github.com/nvandessel/elisalab/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCV(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		want   float64
		delta  float64
	}{
		{"zero variance", []float64{1.0, 1.0, 1.0}, 0, 1e-12},
		{"ten percent", []float64{0.9, 1.0, 1.1}, 10.0, 0.5},
		{"single value", []float64{0.7}, 0, 1e-12},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, CV(tt.values), tt.delta)
		})
	}
}

func TestCV_Undefined(t *testing.T) {
	assert.True(t, math.IsNaN(CV(nil)))
	assert.True(t, math.IsNaN(CV([]float64{0, 0})))
	assert.True(t, math.IsNaN(CV([]float64{-1, -2})))
}

func TestSampleSD(t *testing.T) {
	assert.Zero(t, SampleSD([]float64{3}))
	assert.InDelta(t, 1.0, SampleSD([]float64{1, 2, 3}), 1e-12)
}

func TestDetectionLimits_Scenario(t *testing.T) {
	blanks := []float64{0.05, 0.06, 0.04, 0.05, 0.05}

	l, err := DetectionLimits(blanks, curvefit.Linear(1, 0))
	require.NoError(t, err)

	assert.InDelta(t, 0.05, l.BlankMean, 1e-12)
	assert.InDelta(t, 0.0071, l.BlankSD, 1e-4)
	assert.InDelta(t, 0.071, l.LODSignal, 1e-3)
	assert.InDelta(t, 0.121, l.LOQSignal, 1e-3)
	assert.InDelta(t, l.LODSignal, l.LODConc, 1e-12)
	assert.InDelta(t, l.LOQSignal, l.LOQConc, 1e-12)
	assert.NoError(t, l.LODErr)
	assert.NoError(t, l.LOQErr)
}

func TestDetectionLimits_OutOfRange(t *testing.T) {
	blanks := []float64{0.01, 0.02, 0.015}

	l, err := DetectionLimits(blanks, curvefit.FourPL(0.05, 2.5, 5, 1.2))
	require.NoError(t, err)
	assert.ErrorIs(t, l.LODErr, curvefit.ErrOutOfRange)
	assert.True(t, math.IsNaN(l.LODConc))
}

func TestDetectionLimits_NoBlanks(t *testing.T) {
	_, err := DetectionLimits(nil, curvefit.Linear(1, 0))
	assert.ErrorIs(t, err, ErrNoBlanks)
}

func practiceWells() []models.Well {
	return []models.Well{
		{Position: "Neg 1", Type: models.WellTypeControl, Signal: 0.10},
		{Position: "Neg 2", Type: models.WellTypeControl, Signal: 0.12},
		{Position: "Patient A", Type: models.WellTypeSample, Signal: 0.50},
		{Position: "Patient B", Type: models.WellTypeSample, Signal: 0.05},
		{Position: "Patient C", Type: models.WellTypeSample, Signal: 0.25},
	}
}

func TestCutoffClassificationScenario(t *testing.T) {
	wells := practiceWells()

	cov := ComputeCutoff(wells, []string{"Neg 1", "Neg 2"}, 2.1)
	require.True(t, cov.Defined)
	assert.InDelta(t, 0.11, cov.AvgNegative, 1e-12)
	assert.InDelta(t, 0.231, cov.Value, 1e-9)
	assert.Equal(t, 2, cov.Negatives)

	got := Classify(wells, cov, 0.10)
	require.Len(t, got, len(wells))

	want := map[string]models.Status{
		"Patient A": models.StatusPositive,
		"Patient B": models.StatusNegative,
		"Patient C": models.StatusEquivocal,
	}
	for _, c := range got {
		if s, ok := want[c.Position]; ok {
			assert.Equal(t, s, c.Status, c.Position)
		}
	}
}

func TestComputeCutoff_NoNegatives(t *testing.T) {
	wells := practiceWells()

	cov := ComputeCutoff(wells, nil, 2.1)
	assert.False(t, cov.Defined)
	assert.True(t, math.IsNaN(cov.Value))
	assert.Contains(t, cov.String(), "undefined")

	for _, c := range Classify(wells, cov, 0.10) {
		assert.Equal(t, models.StatusUnknown, c.Status)
	}
}

func TestComputeCutoff_ByGroupLabel(t *testing.T) {
	wells := []models.Well{
		{Position: "A1", Type: models.WellTypeBlank, Signal: 0.04},
		{Position: "B1", Type: models.WellTypeBlank, Signal: 0.06},
		{Position: "C1", Type: models.WellTypePositive, Signal: 2.0},
	}
	cov := ComputeCutoff(wells, []string{"blank"}, 2)
	assert.True(t, cov.Defined)
	assert.InDelta(t, 0.1, cov.Value, 1e-12)

	cov = ComputeCutoff(wells, []string{"A1"}, 2)
	assert.InDelta(t, 0.08, cov.Value, 1e-12)
}

func TestStatus_Boundaries(t *testing.T) {
	cov := Cutoff{Value: 1, Defined: true}
	assert.Equal(t, models.StatusEquivocal, Status(1.05, cov, 0.1))
	assert.Equal(t, models.StatusEquivocal, Status(0.95, cov, 0.1))
	assert.Equal(t, models.StatusPositive, Status(1.15, cov, 0.1))
	assert.Equal(t, models.StatusNegative, Status(0.85, cov, 0.1))
}

func TestSummary(t *testing.T) {
	cov := ComputeCutoff(practiceWells(), []string{"Neg 1", "Neg 2"}, 2.1)
	counts := Summary(Classify(practiceWells(), cov, 0.1))
	assert.Equal(t, 1, counts[models.StatusPositive])
	assert.Equal(t, 1, counts[models.StatusEquivocal])
	assert.Equal(t, 3, counts[models.StatusNegative])
}
