// Package plot renders standard curves and residuals as PNG or SVG charts.
package plot

import (
	"errors"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"strings"

	"github.com/nvandessel/elisalab/internal/constants"
	"github.com/nvandessel/elisalab/internal/curvefit"
	"github.com/nvandessel/elisalab/internal/simulation"
	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
	"gonum.org/v1/gonum/floats"
)

var (
	// ErrUnknownFormat is returned for output formats other than PNG and SVG.
	ErrUnknownFormat = errors.New("unknown chart format")

	// ErrNoData is returned when a report has too few points to draw.
	ErrNoData = errors.New("not enough data to plot")
)

// Format is a chart output encoding.
type Format string

const (
	FormatPNG Format = "png"
	FormatSVG Format = "svg"
)

// FormatFromPath picks the format from a file extension.
func FormatFromPath(path string) (Format, error) {
	switch ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), ".")); ext {
	case "png":
		return FormatPNG, nil
	case "svg":
		return FormatSVG, nil
	default:
		return "", fmt.Errorf("%w: %q (use .png or .svg)", ErrUnknownFormat, ext)
	}
}

func (f Format) provider() (chart.RendererProvider, error) {
	switch f {
	case FormatPNG:
		return chart.PNG, nil
	case FormatSVG:
		return chart.SVG, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, f)
	}
}

// pointStyle draws markers without a connecting line.
func pointStyle(col drawing.Color) chart.Style {
	return chart.Style{
		StrokeWidth: chart.Disabled,
		DotWidth:    4,
		DotColor:    col,
	}
}

// RenderCurve draws the standard level means and, when the fit succeeded,
// the fitted curve over a dense log grid. The x axis is log10(concentration).
func RenderCurve(w io.Writer, r simulation.Report, f Format) error {
	provider, err := f.provider()
	if err != nil {
		return err
	}
	if len(r.Curve) < 2 {
		return ErrNoData
	}

	xs := make([]float64, len(r.Curve))
	ys := make([]float64, len(r.Curve))
	for i, p := range r.Curve {
		xs[i] = log10(p.Concentration)
		ys[i] = p.Mean
	}

	series := []chart.Series{
		chart.ContinuousSeries{
			Name:    "Standards (mean)",
			XValues: xs,
			YValues: ys,
			Style:   pointStyle(chart.ColorBlue),
		},
	}

	if r.FitOK() {
		conc := r.StandardConcentrations()
		grid := curvefit.DenseGrid(floats.Min(conc), floats.Max(conc), constants.DenseGridPoints)
		gx := make([]float64, 0, len(grid))
		gy := make([]float64, 0, len(grid))
		for _, c := range grid {
			y := r.Fit.Predict(c)
			if math.IsNaN(y) || math.IsInf(y, 0) {
				continue
			}
			gx = append(gx, log10(c))
			gy = append(gy, y)
		}
		if len(gx) >= 2 {
			series = append(series, chart.ContinuousSeries{
				Name:    "Fit: " + strings.ToUpper(string(r.Fit.Kind)),
				XValues: gx,
				YValues: gy,
				Style:   chart.Style{StrokeColor: chart.ColorRed, StrokeWidth: 2},
			})
		}
	}

	graph := chart.Chart{
		Title:  title(r, "Standard curve"),
		XAxis:  chart.XAxis{Name: "log10(concentration)"},
		YAxis:  chart.YAxis{Name: "OD", Range: paddedRange(ys)},
		Series: series,
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}
	return graph.Render(provider, w)
}

// RenderResiduals draws observed − predicted per standard level.
func RenderResiduals(w io.Writer, r simulation.Report, f Format) error {
	provider, err := f.provider()
	if err != nil {
		return err
	}
	if !r.FitOK() {
		return fmt.Errorf("%w: curve was not fitted: %v", ErrNoData, r.FitErr)
	}
	if len(r.Curve) < 2 {
		return ErrNoData
	}

	xs := make([]float64, len(r.Curve))
	ys := make([]float64, len(r.Curve))
	for i, p := range r.Curve {
		xs[i] = log10(p.Concentration)
		ys[i] = p.Residual
	}
	zero := []float64{0, 0}
	ends := []float64{xs[0], xs[len(xs)-1]}

	graph := chart.Chart{
		Title: title(r, "Residual pattern"),
		XAxis: chart.XAxis{Name: "log10(concentration)"},
		YAxis: chart.YAxis{Name: "Residual (OD)", Range: paddedRange(append(ys, 0))},
		Series: []chart.Series{
			chart.ContinuousSeries{
				Name:    "Zero",
				XValues: ends,
				YValues: zero,
				Style:   chart.Style{StrokeColor: chart.ColorAlternateGray, StrokeWidth: 1},
			},
			chart.ContinuousSeries{
				Name:    "Residuals",
				XValues: xs,
				YValues: ys,
				Style:   pointStyle(chart.ColorBlue),
			},
		},
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}
	return graph.Render(provider, w)
}

func title(r simulation.Report, base string) string {
	if len(r.ActiveErrors) == 0 {
		return base
	}
	return fmt.Sprintf("%s (%s)", base, strings.Join(r.ActiveErrors, ", "))
}

func log10(c float64) float64 {
	return math.Log10(math.Max(c, constants.MinConcentration))
}

// paddedRange returns a y range 10% wider than the data. go-chart refuses
// to draw a zero-height range, so flat data gets a fixed half-unit pad.
func paddedRange(ys []float64) *chart.ContinuousRange {
	lo, hi := floats.Min(ys), floats.Max(ys)
	pad := (hi - lo) * 0.1
	if !(pad > 1e-9) {
		pad = math.Max(math.Abs(hi)*0.1, 0.5)
	}
	return &chart.ContinuousRange{Min: lo - pad, Max: hi + pad}
}
