package simulation

import (
	"math"
	"testing"

	"github.com/nvandessel/elisalab/internal/qc"
)

// AssertFitConverged asserts that the standard curve was fitted.
func AssertFitConverged(t *testing.T, r Report) {
	t.Helper()
	if r.FitErr != nil {
		t.Errorf("AssertFitConverged: run %s: %s fit failed: %v", r.RunID, r.FitKind, r.FitErr)
	}
}

// AssertBackCalcWithin asserts that an unknown's back-calculated
// concentration is within maxPct percent of its true value.
func AssertBackCalcWithin(t *testing.T, r Report, unknown int, maxPct float64) {
	t.Helper()
	b, ok := findBackCalc(r, unknown)
	if !ok {
		t.Errorf("AssertBackCalcWithin: unknown %d not in report", unknown)
		return
	}
	if math.IsNaN(b.PctError) || math.Abs(b.PctError) > maxPct {
		t.Errorf("AssertBackCalcWithin: unknown %d: calc %.4g vs true %.4g (%.1f%%, flag %q), want within %.1f%%",
			unknown, b.CalcConc, b.TrueConc, b.PctError, b.Flag, maxPct)
	}
}

// AssertBackCalcRatio asserts that calc/true for an unknown lies in [lo, hi].
func AssertBackCalcRatio(t *testing.T, r Report, unknown int, lo, hi float64) {
	t.Helper()
	b, ok := findBackCalc(r, unknown)
	if !ok {
		t.Errorf("AssertBackCalcRatio: unknown %d not in report", unknown)
		return
	}
	ratio := b.CalcConc / b.TrueConc
	if math.IsNaN(ratio) || ratio < lo || ratio > hi {
		t.Errorf("AssertBackCalcRatio: unknown %d: ratio %.4f not in [%.4f, %.4f]", unknown, ratio, lo, hi)
	}
}

// AssertFlag asserts the flag carried by an unknown's back-calculation.
func AssertFlag(t *testing.T, r Report, unknown int, want string) {
	t.Helper()
	b, ok := findBackCalc(r, unknown)
	if !ok {
		t.Errorf("AssertFlag: unknown %d not in report", unknown)
		return
	}
	if b.Flag != want {
		t.Errorf("AssertFlag: unknown %d: flag %q, want %q", unknown, b.Flag, want)
	}
}

// AssertStandardCVBelow asserts that every standard level's CV is below max.
func AssertStandardCVBelow(t *testing.T, r Report, max float64) {
	t.Helper()
	if worst := qc.MaxCV(r.StandardCV); worst >= max {
		t.Errorf("AssertStandardCVBelow: worst standard CV %.2f%% >= %.2f%%", worst, max)
	}
}

func findBackCalc(r Report, unknown int) (BackCalc, bool) {
	for _, b := range r.BackCalc {
		if b.Unknown == unknown {
			return b, true
		}
	}
	return BackCalc{}, false
}
