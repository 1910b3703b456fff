package curvefit

import (
	"fmt"
	"math"
	"sort"

	"github.com/nvandessel/elisalab/internal/constants"
	"github.com/nvandessel/elisalab/internal/doseresponse"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/optimize"
	"gonum.org/v1/gonum/stat"
)

// Fit fits a curve of the given kind to the standard curve and returns the
// parameters plus the predicted signal at each input concentration.
//
// A 4PL fit that does not converge within the iteration budget, or that
// collapses to a flat curve (flat or decreasing standards), returns
// ErrFitFailed.
func Fit(conc, signals []float64, kind Kind) (Params, []float64, error) {
	if err := validateInput(conc, signals, kind); err != nil {
		return Params{}, nil, err
	}

	var (
		p   Params
		err error
	)
	switch kind {
	case KindLinear:
		p, err = fitLinear(conc, signals)
	case KindLog:
		p, err = fitLogLinear(conc, signals)
	case KindFourPL:
		p, err = fitFourPL(conc, signals, defaultBudget)
	default:
		err = fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	if err != nil {
		return Params{}, nil, err
	}

	return p, p.PredictAll(conc), nil
}

// Residuals returns observed − predicted, element-wise. It is diagnostic
// only and never feeds back into fitting.
func Residuals(observed, predicted []float64) []float64 {
	n := min(len(observed), len(predicted))
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		out[i] = observed[i] - predicted[i]
	}
	return out
}

// DenseGrid returns n log-spaced concentrations spanning
// [lo/DenseGridPad, hi·DenseGridPad], used to draw a smooth fitted curve.
func DenseGrid(lo, hi float64, n int) []float64 {
	if n < 2 || !(lo > 0) || !(hi > lo) {
		return nil
	}
	return floats.LogSpan(make([]float64, n), lo/constants.DenseGridPad, hi*constants.DenseGridPad)
}

func validateInput(conc, signals []float64, kind Kind) error {
	if !kind.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	if len(conc) != len(signals) {
		return fmt.Errorf("%w: %d concentrations but %d signals", ErrInvalidInput, len(conc), len(signals))
	}
	minPoints := 2
	if kind == KindFourPL {
		minPoints = constants.MinFourPLPoints
	}
	if len(conc) < minPoints {
		return fmt.Errorf("%w: %s fit needs at least %d points, got %d", ErrInvalidInput, kind, minPoints, len(conc))
	}
	for i := range conc {
		if math.IsNaN(conc[i]) || math.IsInf(conc[i], 0) || math.IsNaN(signals[i]) || math.IsInf(signals[i], 0) {
			return fmt.Errorf("%w: non-finite value at index %d", ErrInvalidInput, i)
		}
		if kind != KindLinear && conc[i] <= 0 {
			return fmt.Errorf("%w: %s fit requires positive concentrations, got %g", ErrInvalidInput, kind, conc[i])
		}
	}
	return nil
}

func fitLinear(x, y []float64) (Params, error) {
	intercept, slope := stat.LinearRegression(x, y, nil, false)
	if math.IsNaN(slope) || math.IsInf(slope, 0) || math.IsNaN(intercept) || math.IsInf(intercept, 0) {
		return Params{}, fmt.Errorf("%w: linear regression is degenerate (constant concentrations?)", ErrFitFailed)
	}
	return Linear(slope, intercept), nil
}

func fitLogLinear(conc, y []float64) (Params, error) {
	x := make([]float64, len(conc))
	for i, c := range conc {
		x[i] = math.Log10(c)
	}
	p, err := fitLinear(x, y)
	if err != nil {
		return Params{}, err
	}
	return LogLinear(p.Slope, p.Intercept), nil
}

// budget bounds the work a 4PL fit may spend.
type budget struct {
	iterations  int
	evaluations int
}

var defaultBudget = budget{
	iterations:  constants.FitMaxIterations,
	evaluations: constants.FitMaxEvaluations,
}

// fitFourPL minimizes the sum of squared residuals with Nelder-Mead.
//
// The optimizer works on an unconstrained vector (bottom, w, u, v):
//
//	top  = bottom + exp(w)                    top > bottom
//	ec50 = max(exp(u), MinConcentration)      ec50 > 0
//	hill = MinHill + (MaxHill-MinHill)·σ(v)   hill ∈ [MinHill, MaxHill]
func fitFourPL(conc, y []float64, b budget) (Params, error) {
	lo, hi := floats.Min(y), floats.Max(y)
	if !(hi > lo) {
		return Params{}, fmt.Errorf("%w: standard signals are flat", ErrFitFailed)
	}
	x0 := encode(doseresponse.Params{
		Bottom: lo,
		Top:    math.Max(hi, lo+1e-6),
		EC50:   median(conc),
		Hill:   constants.InitialHill,
	})

	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			p := decode(x)
			var ssr float64
			for i, c := range conc {
				r := y[i] - doseresponse.Evaluate(c, p)
				ssr += r * r
			}
			if math.IsNaN(ssr) {
				return math.Inf(1)
			}
			return ssr
		},
	}

	settings := &optimize.Settings{
		MajorIterations: b.iterations,
		FuncEvaluations: b.evaluations,
		Converger: &optimize.FunctionConverge{
			Absolute:   1e-14,
			Relative:   1e-12,
			Iterations: 200,
		},
	}

	result, err := optimize.Minimize(problem, x0, settings, &optimize.NelderMead{})
	if err != nil {
		return Params{}, fmt.Errorf("%w: %v", ErrFitFailed, err)
	}
	if result == nil {
		return Params{}, fmt.Errorf("%w: optimizer returned no result", ErrFitFailed)
	}
	switch result.Status {
	case optimize.Failure, optimize.IterationLimit, optimize.FunctionEvaluationLimit, optimize.RuntimeLimit:
		return Params{}, fmt.Errorf("%w: optimizer stopped with status %v", ErrFitFailed, result.Status)
	}

	p := decode(result.X)
	if floats.HasNaN(result.X) || math.IsInf(result.F, 0) || p.Validate() != nil {
		return Params{}, fmt.Errorf("%w: non-finite 4PL parameters", ErrFitFailed)
	}
	if err := checkExplains(conc, y, p); err != nil {
		return Params{}, err
	}
	return Params{Kind: KindFourPL, FourPL: p}, nil
}

// checkExplains rejects a converged 4PL that has collapsed to a constant:
// its predictions must vary across the standards and it must explain some
// of the signal variance. Decreasing standards end up here, since the
// constrained model can only rise.
func checkExplains(conc, y []float64, p doseresponse.Params) error {
	pred := doseresponse.Curve(conc, p)
	observed := floats.Max(y) - floats.Min(y)
	if floats.Max(pred)-floats.Min(pred) < constants.MinFitSpanFraction*observed {
		return fmt.Errorf("%w: fitted curve is flat over the standards", ErrFitFailed)
	}

	mean := stat.Mean(y, nil)
	var ssr, sst float64
	for i := range y {
		r := y[i] - pred[i]
		d := y[i] - mean
		ssr += r * r
		sst += d * d
	}
	if ssr >= sst {
		return fmt.Errorf("%w: fit explains none of the signal variance (R² ≤ 0)", ErrFitFailed)
	}
	return nil
}

func encode(p doseresponse.Params) []float64 {
	q := (p.Hill - constants.MinHill) / (constants.MaxHill - constants.MinHill)
	return []float64{
		p.Bottom,
		math.Log(p.Top - p.Bottom),
		math.Log(math.Max(p.EC50, constants.MinConcentration)),
		math.Log(q / (1 - q)),
	}
}

func decode(x []float64) doseresponse.Params {
	return doseresponse.Params{
		Bottom: x[0],
		Top:    x[0] + math.Exp(x[1]),
		EC50:   math.Max(math.Exp(x[2]), constants.MinConcentration),
		Hill:   constants.MinHill + (constants.MaxHill-constants.MinHill)/(1+math.Exp(-x[3])),
	}
}

// median matches the numpy convention: the mean of the two middle values for
// even-length input.
func median(xs []float64) float64 {
	s := append([]float64(nil), xs...)
	sort.Float64s(s)
	n := len(s)
	if n%2 == 1 {
		return s[n/2]
	}
	return (s[n/2-1] + s[n/2]) / 2
}
