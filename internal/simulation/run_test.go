package simulation_test

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/nvandessel/elisalab/internal/constants"
	"github.com/nvandessel/elisalab/internal/curvefit"
	"github.com/nvandessel/elisalab/internal/errinject"
	"github.com/nvandessel/elisalab/internal/generator"
	"github.com/nvandessel/elisalab/internal/models"
	"github.com/nvandessel/elisalab/internal/qc"
	"github.com/nvandessel/elisalab/internal/simulation"
)

// linearAssay is a noise-free plate on a straight-line truth, so
// back-calculation is exact up to floating-point error.
func linearAssay() generator.Config {
	return generator.Config{
		Levels:     6,
		MinConc:    0.1,
		MaxConc:    100,
		Replicates: 3,
		Background: 0.05,
		NoiseSD:    0,
		Truth:      curvefit.Linear(0.02, 0.05),
	}
}

func TestRunCleanLinear(t *testing.T) {
	r, err := simulation.Run(simulation.Scenario{
		Name:    "clean",
		Assay:   linearAssay(),
		Seed:    1,
		FitKind: curvefit.KindLinear,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	simulation.AssertFitConverged(t, r)
	simulation.AssertBackCalcWithin(t, r, 1, 0.01)
	simulation.AssertBackCalcWithin(t, r, 2, 0.01)
	simulation.AssertStandardCVBelow(t, r, 1e-6)

	if got := len(r.Flagged()); got != 0 {
		t.Errorf("flagged = %d, want 0: %+v", got, r.Flagged())
	}
	if math.Abs(r.Fit.Slope-0.02) > 1e-9 {
		t.Errorf("slope = %g, want 0.02", r.Fit.Slope)
	}
	if len(r.Curve) != 6 {
		t.Fatalf("curve points = %d, want 6", len(r.Curve))
	}
	for _, p := range r.Curve {
		if math.Abs(p.Residual) > 1e-9 {
			t.Errorf("level %d residual = %g, want ~0", p.Level, p.Residual)
		}
	}
	if !r.Positive.Pass {
		t.Errorf("positive control failed on a clean run: %+v", r.Positive)
	}
	if r.Limits == nil {
		t.Fatalf("limits missing: %s", r.LimitsError)
	}
	if len(r.Hints) == 0 {
		t.Error("expected diagnosis hints")
	}
}

func TestRunDeterministic(t *testing.T) {
	sc := simulation.Scenario{
		Assay:   simulation.DefaultAssay(),
		Seed:    42,
		FitKind: curvefit.KindLog,
	}

	a, err := simulation.Run(sc)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	b, err := simulation.Run(sc)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if a.RunID != b.RunID {
		t.Errorf("run IDs differ: %s vs %s", a.RunID, b.RunID)
	}
	for i := range a.Dataset.Wells {
		if a.Dataset.Wells[i] != b.Dataset.Wells[i] {
			t.Fatalf("well %d differs: %+v vs %+v", i, a.Dataset.Wells[i], b.Dataset.Wells[i])
		}
	}

	sc.Seed = 43
	c, err := simulation.Run(sc)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if c.RunID == a.RunID {
		t.Error("different seeds produced the same run ID")
	}
}

func TestRunWrongDilution(t *testing.T) {
	r, err := simulation.Run(simulation.Scenario{
		Assay:   linearAssay(),
		Seed:    5,
		FitKind: curvefit.KindLinear,
		Errors:  errinject.Config{WrongDilution: &errinject.WrongDilution{}},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	simulation.AssertBackCalcRatio(t, r, 1, 0.0999, 0.1001)
	simulation.AssertBackCalcWithin(t, r, 2, 0.01)
}

func TestRunWrongDilutionExtrapolates(t *testing.T) {
	assay := linearAssay()
	assay.MinConc, assay.MaxConc = 1, 2

	r, err := simulation.Run(simulation.Scenario{
		Assay:   assay,
		Seed:    9,
		FitKind: curvefit.KindLinear,
		Errors:  errinject.Config{WrongDilution: &errinject.WrongDilution{}},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	simulation.AssertFlag(t, r, 1, simulation.FlagExtrapolated)
}

func TestRunReagentFailureFailsPositiveControl(t *testing.T) {
	assay := simulation.DefaultAssay()
	assay.NoiseSD = 0

	r, err := simulation.Run(simulation.Scenario{
		Assay:   assay,
		Seed:    3,
		FitKind: curvefit.KindFourPL,
		Errors:  errinject.Config{ReagentFailure: &errinject.ReagentFailure{Scale: 0.6}},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if r.Positive.Pass {
		t.Errorf("positive control passed under reagent failure: %+v", r.Positive)
	}
	if math.Abs(r.Positive.Ratio-0.6) > 1e-9 {
		t.Errorf("positive ratio = %g, want 0.6", r.Positive.Ratio)
	}
	if len(r.ActiveErrors) != 1 || r.ActiveErrors[0] != "reagent_failure" {
		t.Errorf("active errors = %v", r.ActiveErrors)
	}
}

func TestRunBlankSubtractionRemovesContamination(t *testing.T) {
	r, err := simulation.Run(simulation.Scenario{
		Assay:         linearAssay(),
		Seed:          11,
		FitKind:       curvefit.KindLinear,
		SubtractBlank: true,
		Errors:        errinject.Config{Contamination: &errinject.Contamination{Add: 0.15}},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if math.Abs(r.BlankMean-0.20) > 1e-9 {
		t.Errorf("blank mean = %g, want 0.20", r.BlankMean)
	}
	if math.Abs(r.Fit.Intercept-0.05) > 1e-9 {
		t.Errorf("intercept = %g, want 0.05 after subtraction", r.Fit.Intercept)
	}
	simulation.AssertBackCalcWithin(t, r, 1, 0.01)
	if r.Limits == nil {
		t.Fatalf("limits missing: %s", r.LimitsError)
	}
	if math.Abs(r.Limits.BlankMean) > 1e-12 {
		t.Errorf("blank mean on curve scale = %g, want 0", r.Limits.BlankMean)
	}
}

func TestRunFitFailureIsRecorded(t *testing.T) {
	assay := linearAssay()
	assay.Levels = 3

	r, err := simulation.Run(simulation.Scenario{
		Assay:   assay,
		Seed:    2,
		FitKind: curvefit.KindFourPL,
	})
	if err != nil {
		t.Fatalf("Run returned %v, want a report", err)
	}

	if r.FitOK() {
		t.Fatal("expected fit failure with three standards")
	}
	if !errors.Is(r.FitErr, curvefit.ErrInvalidInput) {
		t.Errorf("FitErr = %v, want ErrInvalidInput", r.FitErr)
	}
	simulation.AssertFlag(t, r, 1, simulation.FlagFitFailed)
	simulation.AssertFlag(t, r, 2, simulation.FlagFitFailed)
	if r.Limits != nil || r.LimitsError == "" {
		t.Errorf("limits should be skipped, got %+v / %q", r.Limits, r.LimitsError)
	}

	data, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("marshal report with undefined values: %v", err)
	}
	if len(data) == 0 {
		t.Error("empty JSON")
	}
}

func TestRunRejectsInvalidScenario(t *testing.T) {
	bad := linearAssay()
	bad.Levels = 1

	tests := []struct {
		name string
		sc   simulation.Scenario
		want error
	}{
		{
			name: "one level",
			sc:   simulation.Scenario{Assay: bad},
			want: generator.ErrInvalidConfig,
		},
		{
			name: "outlier level out of range",
			sc: simulation.Scenario{
				Assay:  linearAssay(),
				Errors: errinject.Config{Outlier: &errinject.Outlier{Level: 99}},
			},
			want: errinject.ErrInvalidConfig,
		},
		{
			name: "unknown fit kind",
			sc:   simulation.Scenario{Assay: linearAssay(), FitKind: "cubic"},
			want: curvefit.ErrUnknownKind,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := simulation.Run(tt.sc)
			if !errors.Is(err, tt.want) {
				t.Errorf("Run() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestRunCallsUseBlanksAsNegatives(t *testing.T) {
	r, err := simulation.Run(simulation.Scenario{
		Assay:   linearAssay(),
		Seed:    4,
		FitKind: curvefit.KindLinear,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if !r.Cutoff.Defined || r.Cutoff.Negatives != 3 {
		t.Fatalf("cutoff = %+v, want defined from 3 blanks", r.Cutoff)
	}
	if got, want := len(r.Calls), 3*3; got != want {
		t.Errorf("calls = %d, want %d", got, want)
	}
	for _, c := range r.Calls {
		if c.Type == models.WellTypePositive && c.Status != models.StatusPositive {
			t.Errorf("positive control %s called %s", c.Position, c.Status)
		}
	}
}

func TestRunEquivocalMargin(t *testing.T) {
	zero, wide := 0.0, 10.0
	tests := []struct {
		name   string
		margin *float64
		want   func(qc.Classified, qc.Cutoff) models.Status
	}{
		{
			name:   "zero disables the band",
			margin: &zero,
			want: func(c qc.Classified, cut qc.Cutoff) models.Status {
				if c.Signal > cut.Value {
					return models.StatusPositive
				}
				return models.StatusNegative
			},
		},
		{
			name: "nil uses the default",
			want: func(c qc.Classified, cut qc.Cutoff) models.Status {
				return qc.Status(c.Signal, cut, constants.DefaultEquivocalMargin)
			},
		},
		{
			name:   "wide band swallows every call",
			margin: &wide,
			want: func(qc.Classified, qc.Cutoff) models.Status {
				return models.StatusEquivocal
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := simulation.Run(simulation.Scenario{
				Assay:      linearAssay(),
				Seed:       4,
				FitKind:    curvefit.KindLinear,
				Multiplier: 1.5,
				Margin:     tt.margin,
			})
			if err != nil {
				t.Fatalf("Run: %v", err)
			}
			if !r.Cutoff.Defined {
				t.Fatalf("cutoff undefined: %+v", r.Cutoff)
			}
			if len(r.Calls) == 0 {
				t.Fatal("no calls")
			}
			for _, c := range r.Calls {
				if want := tt.want(c, r.Cutoff); c.Status != want {
					t.Errorf("%s signal %.3f vs COV %.3f: status = %s, want %s",
						c.Position, c.Signal, r.Cutoff.Value, c.Status, want)
				}
			}
		})
	}
}

func TestRunRejectsNegativeMargin(t *testing.T) {
	m := -0.1
	_, err := simulation.Run(simulation.Scenario{Assay: linearAssay(), Margin: &m})
	if err == nil {
		t.Fatal("expected an error for a negative margin")
	}
}

func TestPresetsRun(t *testing.T) {
	for _, p := range simulation.Presets {
		t.Run(p.Name, func(t *testing.T) {
			_, err := simulation.Run(simulation.Scenario{
				Name:    p.Name,
				Assay:   simulation.DefaultAssay(),
				Seed:    7,
				FitKind: curvefit.KindLog,
				Errors:  p.Errors,
			})
			if err != nil {
				t.Fatalf("preset %s: %v", p.Name, err)
			}
		})
	}

	if _, ok := simulation.LookupPreset("wrong-dilution"); !ok {
		t.Error("wrong-dilution preset missing")
	}
}
