// Package curvefit fits standard curves to (concentration, mean signal) pairs
// and inverts the fitted curves to back-calculate concentrations.
//
// Three model kinds are supported:
//
//	linear  signal = slope·c + intercept
//	log     signal = slope·log10(c) + intercept
//	4pl     signal = bottom + (top-bottom) / (1 + (ec50/c)^hill)
//
// Params is a tagged value: Kind selects which fields are meaningful, and
// every consumer switches over Kind exhaustively.
package curvefit

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/nvandessel/elisalab/internal/constants"
	"github.com/nvandessel/elisalab/internal/doseresponse"
)

// Kind identifies the curve model.
type Kind string

const (
	KindLinear Kind = "linear"
	KindLog    Kind = "log"
	KindFourPL Kind = "4pl"
)

// Kinds lists every supported kind in display order.
var Kinds = []Kind{KindLinear, KindLog, KindFourPL}

var (
	// ErrUnknownKind is returned for a Kind outside Kinds.
	ErrUnknownKind = errors.New("unknown fit kind")

	// ErrInvalidInput is returned for malformed fit input.
	ErrInvalidInput = errors.New("invalid fit input")

	// ErrFitFailed is returned when a fit does not converge or degenerates.
	ErrFitFailed = errors.New("fit failed")

	// ErrZeroSlope is returned when inverting a flat linear or log-linear fit.
	ErrZeroSlope = errors.New("zero slope: curve is not invertible")

	// ErrOutOfRange is returned when a signal cannot be mapped back onto the
	// fitted curve (beyond a 4PL plateau or overflowing a log-linear fit).
	ErrOutOfRange = doseresponse.ErrOutOfRange
)

// ParseKind converts a user-supplied name into a Kind. It accepts the
// canonical names plus "log-linear", "loglinear" and "four-pl".
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "linear", "lin":
		return KindLinear, nil
	case "log", "log-linear", "loglinear":
		return KindLog, nil
	case "4pl", "four-pl", "fourpl":
		return KindFourPL, nil
	}
	return "", fmt.Errorf("%w: %q (valid: linear, log, 4pl)", ErrUnknownKind, s)
}

// Valid returns true if the kind is a recognized value.
func (k Kind) Valid() bool {
	switch k {
	case KindLinear, KindLog, KindFourPL:
		return true
	}
	return false
}

// String returns the string representation of the kind.
func (k Kind) String() string {
	return string(k)
}

// Params holds fitted (or truth) curve parameters.
type Params struct {
	Kind Kind `json:"kind" yaml:"kind"`

	// Slope and Intercept are used by KindLinear and KindLog.
	Slope     float64 `json:"slope,omitempty" yaml:"slope,omitempty"`
	Intercept float64 `json:"intercept,omitempty" yaml:"intercept,omitempty"`

	// FourPL is used by KindFourPL.
	FourPL doseresponse.Params `json:"four_pl,omitempty" yaml:"four_pl,omitempty"`
}

// Linear builds linear parameters.
func Linear(slope, intercept float64) Params {
	return Params{Kind: KindLinear, Slope: slope, Intercept: intercept}
}

// LogLinear builds log-linear parameters.
func LogLinear(slope, intercept float64) Params {
	return Params{Kind: KindLog, Slope: slope, Intercept: intercept}
}

// FourPL builds 4PL parameters.
func FourPL(bottom, top, ec50, hill float64) Params {
	return Params{Kind: KindFourPL, FourPL: doseresponse.Params{Bottom: bottom, Top: top, EC50: ec50, Hill: hill}}
}

// Validate checks the parameters can be evaluated.
func (p Params) Validate() error {
	switch p.Kind {
	case KindLinear, KindLog:
		if math.IsNaN(p.Slope) || math.IsInf(p.Slope, 0) || math.IsNaN(p.Intercept) || math.IsInf(p.Intercept, 0) {
			return fmt.Errorf("%w: non-finite %s parameters", ErrInvalidInput, p.Kind)
		}
		return nil
	case KindFourPL:
		return p.FourPL.Validate()
	default:
		return fmt.Errorf("%w: %q", ErrUnknownKind, p.Kind)
	}
}

// Predict evaluates the curve at conc. Log and 4PL curves clamp conc to
// constants.MinConcentration.
func (p Params) Predict(conc float64) float64 {
	switch p.Kind {
	case KindLinear:
		return p.Slope*conc + p.Intercept
	case KindLog:
		return p.Slope*math.Log10(math.Max(conc, constants.MinConcentration)) + p.Intercept
	case KindFourPL:
		return doseresponse.Evaluate(conc, p.FourPL)
	default:
		return math.NaN()
	}
}

// PredictAll evaluates the curve at each concentration.
func (p Params) PredictAll(conc []float64) []float64 {
	out := make([]float64, len(conc))
	for i, c := range conc {
		out[i] = p.Predict(c)
	}
	return out
}

// String renders the parameters in a compact human-readable form.
func (p Params) String() string {
	switch p.Kind {
	case KindLinear:
		return fmt.Sprintf("linear{slope=%.4g, intercept=%.4g}", p.Slope, p.Intercept)
	case KindLog:
		return fmt.Sprintf("log{slope=%.4g, intercept=%.4g}", p.Slope, p.Intercept)
	case KindFourPL:
		f := p.FourPL
		return fmt.Sprintf("4pl{bottom=%.4g, top=%.4g, ec50=%.4g, hill=%.4g}", f.Bottom, f.Top, f.EC50, f.Hill)
	default:
		return fmt.Sprintf("unknown{kind=%q}", p.Kind)
	}
}
