// Package doseresponse evaluates the four-parameter logistic (4PL)
// dose-response curve and its algebraic inverse.
//
//	y = bottom + (top - bottom) / (1 + (ec50/x)^hill)
//
// With top > bottom and hill > 0 the curve increases monotonically from
// bottom (x → 0) to top (x → ∞) and passes through the midpoint at x = ec50.
// The inverse is only defined strictly between the two plateaus.
package doseresponse

import (
	"errors"
	"fmt"
	"math"

	"github.com/nvandessel/elisalab/internal/constants"
)

var (
	// ErrOutOfRange is returned when a signal lies at or beyond a plateau and
	// therefore cannot be mapped back to a concentration.
	ErrOutOfRange = errors.New("signal outside invertible range")

	// ErrInvalidParams is returned for curves that are not invertible at all.
	ErrInvalidParams = errors.New("invalid 4PL parameters")
)

// Params holds the four logistic parameters.
type Params struct {
	Bottom float64 `json:"bottom" yaml:"bottom"`
	Top    float64 `json:"top" yaml:"top"`
	EC50   float64 `json:"ec50" yaml:"ec50"`
	Hill   float64 `json:"hill" yaml:"hill"`
}

// Validate checks that p describes an increasing, invertible curve.
func (p Params) Validate() error {
	switch {
	case !(p.EC50 > 0):
		return fmt.Errorf("%w: ec50 must be positive, got %g", ErrInvalidParams, p.EC50)
	case !(p.Hill > 0):
		return fmt.Errorf("%w: hill must be positive, got %g", ErrInvalidParams, p.Hill)
	case !(p.Top > p.Bottom):
		return fmt.Errorf("%w: top (%g) must exceed bottom (%g)", ErrInvalidParams, p.Top, p.Bottom)
	}
	return nil
}

// Evaluate returns the 4PL response at conc. Concentrations below
// constants.MinConcentration are clamped so zero never reaches the division.
func Evaluate(conc float64, p Params) float64 {
	x := math.Max(conc, constants.MinConcentration)
	return p.Bottom + (p.Top-p.Bottom)/(1+math.Pow(p.EC50/x, p.Hill))
}

// Curve evaluates the 4PL at every concentration in xs.
func Curve(xs []float64, p Params) []float64 {
	out := make([]float64, len(xs))
	for i, x := range xs {
		out[i] = Evaluate(x, p)
	}
	return out
}

// Invert maps a signal back to the concentration that produces it.
//
// Signals within constants.PlateauEpsilon·|top-bottom| of either plateau are
// rejected with ErrOutOfRange: near the asymptotes the inverse explodes and a
// back-calculated value there is an extrapolation. The returned concentration
// is NaN whenever err != nil.
func Invert(signal float64, p Params) (float64, error) {
	if err := p.Validate(); err != nil {
		return math.NaN(), err
	}

	span := p.Top - p.Bottom
	eps := constants.PlateauEpsilon * span
	if math.IsNaN(signal) || signal <= p.Bottom+eps || signal >= p.Top-eps {
		return math.NaN(), fmt.Errorf("%w: %g not in (%g, %g)", ErrOutOfRange, signal, p.Bottom, p.Top)
	}

	ratio := span/(signal-p.Bottom) - 1
	conc := p.EC50 * math.Pow(ratio, -1/p.Hill)
	if math.IsNaN(conc) || math.IsInf(conc, 0) {
		return math.NaN(), fmt.Errorf("%w: %g maps to non-finite concentration", ErrOutOfRange, signal)
	}
	return conc, nil
}
