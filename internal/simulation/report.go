package simulation

import (
	"encoding/json"

	"github.com/nvandessel/elisalab/internal/curvefit"
	"github.com/nvandessel/elisalab/internal/generator"
	"github.com/nvandessel/elisalab/internal/models"
	"github.com/nvandessel/elisalab/internal/qc"
)

// Back-calculation flags.
const (
	FlagNone         = ""
	FlagOutOfRange   = "out_of_range"
	FlagExtrapolated = "extrapolated"
	FlagFitFailed    = "fit_failed"
)

// DiagnosisHints maps symptoms on the curve to the error that usually
// causes them.
var DiagnosisHints = []string{
	"High background everywhere: contamination or poor washing.",
	"All signals weak, including the positive control: reagent failure.",
	"One level unstable or high CV: pipetting error or outlier.",
	"Unknown off by about 10x: wrong dilution.",
}

// CurvePoint is one standard level on the fitted curve.
type CurvePoint struct {
	Level         int     `json:"level" yaml:"level"`
	Concentration float64 `json:"concentration" yaml:"concentration"`
	Mean          float64 `json:"mean" yaml:"mean"`
	Predicted     float64 `json:"predicted" yaml:"predicted"`
	Residual      float64 `json:"residual" yaml:"residual"`
}

// MarshalJSON writes points without a fitted curve as null.
func (c CurvePoint) MarshalJSON() ([]byte, error) {
	type alias CurvePoint
	return json.Marshal(struct {
		alias
		Predicted *float64 `json:"predicted"`
		Residual  *float64 `json:"residual"`
	}{alias(c), models.Finite(c.Predicted), models.Finite(c.Residual)})
}

// BackCalc is the back-calculated concentration of one unknown.
type BackCalc struct {
	Unknown    int     `json:"unknown" yaml:"unknown"`
	MeanSignal float64 `json:"mean_signal" yaml:"mean_signal"`
	CalcConc   float64 `json:"calc_conc" yaml:"calc_conc"`
	TrueConc   float64 `json:"true_conc" yaml:"true_conc"`

	// PctError is (calc − true) / true × 100.
	PctError float64 `json:"pct_error" yaml:"pct_error"`

	Flag string `json:"flag,omitempty" yaml:"flag,omitempty"`
}

// MarshalJSON writes failed back-calculations as null.
func (b BackCalc) MarshalJSON() ([]byte, error) {
	type alias BackCalc
	return json.Marshal(struct {
		alias
		CalcConc *float64 `json:"calc_conc"`
		PctError *float64 `json:"pct_error"`
	}{alias(b), models.Finite(b.CalcConc), models.Finite(b.PctError)})
}

// PositiveControl compares the measured positive control with its expected
// signal. A ratio under constants.PositiveControlMinRatio fails the plate.
type PositiveControl struct {
	Concentration float64 `json:"concentration" yaml:"concentration"`
	Mean          float64 `json:"mean" yaml:"mean"`
	CV            float64 `json:"cv_pct" yaml:"cv_pct"`
	Expected      float64 `json:"expected" yaml:"expected"`
	Ratio         float64 `json:"ratio" yaml:"ratio"`
	Pass          bool    `json:"pass" yaml:"pass"`
}

// MarshalJSON writes undefined statistics as null.
func (p PositiveControl) MarshalJSON() ([]byte, error) {
	type alias PositiveControl
	return json.Marshal(struct {
		alias
		CV    *float64 `json:"cv_pct"`
		Ratio *float64 `json:"ratio"`
	}{alias(p), models.Finite(p.CV), models.Finite(p.Ratio)})
}

// Report is the outcome of one simulation run.
type Report struct {
	RunID string `json:"run_id" yaml:"run_id"`
	Name  string `json:"name,omitempty" yaml:"name,omitempty"`
	Seed  uint64 `json:"seed" yaml:"seed"`

	ActiveErrors    []string `json:"active_errors" yaml:"active_errors"`
	BlankSubtracted bool     `json:"blank_subtracted" yaml:"blank_subtracted"`
	BlankMean       float64  `json:"blank_mean" yaml:"blank_mean"`

	// Dataset holds the processed plate: errors applied and, if enabled,
	// blank-subtracted.
	Dataset generator.Dataset `json:"dataset" yaml:"dataset"`

	FitKind  curvefit.Kind   `json:"fit_kind" yaml:"fit_kind"`
	Fit      curvefit.Params `json:"fit" yaml:"fit"`
	FitErr   error           `json:"-" yaml:"-"`
	FitError string          `json:"fit_error,omitempty" yaml:"fit_error,omitempty"`
	Curve    []CurvePoint    `json:"curve" yaml:"curve"`

	StandardCV []qc.GroupStat `json:"standard_cv" yaml:"standard_cv"`
	UnknownCV  []qc.GroupStat `json:"unknown_cv" yaml:"unknown_cv"`

	BackCalc []BackCalc `json:"back_calc" yaml:"back_calc"`

	Limits      *qc.Limits `json:"limits,omitempty" yaml:"limits,omitempty"`
	LimitsError string     `json:"limits_error,omitempty" yaml:"limits_error,omitempty"`

	Positive PositiveControl `json:"positive_control" yaml:"positive_control"`

	Cutoff qc.Cutoff       `json:"cutoff" yaml:"cutoff"`
	Calls  []qc.Classified `json:"calls" yaml:"calls"`

	Hints []string `json:"hints" yaml:"hints"`
}

// FitOK reports whether the standard curve was fitted.
func (r Report) FitOK() bool {
	return r.FitErr == nil
}

// Flagged returns the back-calculations that carry a flag.
func (r Report) Flagged() []BackCalc {
	var out []BackCalc
	for _, b := range r.BackCalc {
		if b.Flag != FlagNone {
			out = append(out, b)
		}
	}
	return out
}

// StandardConcentrations returns the concentration of every curve point.
func (r Report) StandardConcentrations() []float64 {
	out := make([]float64, len(r.Curve))
	for i, p := range r.Curve {
		out[i] = p.Concentration
	}
	return out
}
