package curvefit

import (
	"fmt"
	"math"

	"github.com/nvandessel/elisalab/internal/doseresponse"
)

// Invert maps a signal back to a concentration on the fitted curve.
//
// Errors are recoverable and distinguish the failure mode: ErrZeroSlope for
// a flat linear/log fit, ErrOutOfRange for signals the curve never reaches.
// The returned concentration is NaN whenever err != nil.
func Invert(signal float64, p Params) (float64, error) {
	switch p.Kind {
	case KindLinear:
		if p.Slope == 0 {
			return math.NaN(), ErrZeroSlope
		}
		return (signal - p.Intercept) / p.Slope, nil
	case KindLog:
		if p.Slope == 0 {
			return math.NaN(), ErrZeroSlope
		}
		conc := math.Pow(10, (signal-p.Intercept)/p.Slope)
		if math.IsNaN(conc) || math.IsInf(conc, 0) {
			return math.NaN(), fmt.Errorf("%w: %g overflows log-linear fit", ErrOutOfRange, signal)
		}
		return conc, nil
	case KindFourPL:
		return doseresponse.Invert(signal, p.FourPL)
	default:
		return math.NaN(), fmt.Errorf("%w: %q", ErrUnknownKind, p.Kind)
	}
}

// InvertAll inverts each signal. Failed inversions yield NaN in the output
// and the corresponding error in errs (nil on success).
func InvertAll(signals []float64, p Params) (conc []float64, errs []error) {
	conc = make([]float64, len(signals))
	errs = make([]error, len(signals))
	for i, s := range signals {
		conc[i], errs[i] = Invert(s, p)
	}
	return conc, errs
}
