// Package qc computes teaching-level assay quality statistics: replicate
// precision (CV), detection limits from blanks, and cut-off classification
// against negative controls.
//
// Undefined statistics are expected during interactive exploration, so they
// are reported as NaN or as an undefined Cutoff rather than as errors.
package qc

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/nvandessel/elisalab/internal/constants"
	"github.com/nvandessel/elisalab/internal/curvefit"
	"github.com/nvandessel/elisalab/internal/models"
	"gonum.org/v1/gonum/stat"
)

// ErrNoBlanks is returned when detection limits are requested without blanks.
var ErrNoBlanks = errors.New("no blank signals")

// SampleSD returns the Bessel-corrected standard deviation, or 0 for fewer
// than two values.
func SampleSD(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	return stat.StdDev(values, nil)
}

// CV returns the coefficient of variation in percent. It is NaN for empty
// input or a non-positive mean.
func CV(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	mean := stat.Mean(values, nil)
	if !(mean > 0) {
		return math.NaN()
	}
	return SampleSD(values) / mean * 100
}

// Limits holds detection and quantitation limits in signal and
// concentration units.
type Limits struct {
	BlankMean float64 `json:"blank_mean" yaml:"blank_mean"`
	BlankSD   float64 `json:"blank_sd" yaml:"blank_sd"`

	LODSignal float64 `json:"lod_signal" yaml:"lod_signal"`
	LOQSignal float64 `json:"loq_signal" yaml:"loq_signal"`

	// LODConc and LOQConc are NaN when the signal cannot be inverted; the
	// matching error field says why.
	LODConc float64 `json:"lod_conc" yaml:"lod_conc"`
	LOQConc float64 `json:"loq_conc" yaml:"loq_conc"`

	LODErr error `json:"-" yaml:"-"`
	LOQErr error `json:"-" yaml:"-"`
}

// DetectionLimits derives LOD = mean + 3·SD and LOQ = mean + 10·SD from the
// blank signals and converts both to concentrations through p. A limit that
// falls outside the fitted curve's invertible range is reported through
// LODErr/LOQErr, not as a failure of the whole call.
func DetectionLimits(blanks []float64, p curvefit.Params) (Limits, error) {
	if len(blanks) == 0 {
		return Limits{}, ErrNoBlanks
	}

	mean := stat.Mean(blanks, nil)
	sd := SampleSD(blanks)
	l := Limits{
		BlankMean: mean,
		BlankSD:   sd,
		LODSignal: mean + constants.LODSigmas*sd,
		LOQSignal: mean + constants.LOQSigmas*sd,
	}
	l.LODConc, l.LODErr = curvefit.Invert(l.LODSignal, p)
	l.LOQConc, l.LOQErr = curvefit.Invert(l.LOQSignal, p)
	return l, nil
}

// Cutoff is the classification threshold derived from negative controls.
type Cutoff struct {
	// Value is multiplier × AvgNegative, NaN when undefined.
	Value       float64 `json:"value" yaml:"value"`
	AvgNegative float64 `json:"avg_negative" yaml:"avg_negative"`
	Multiplier  float64 `json:"multiplier" yaml:"multiplier"`

	// Negatives is the number of wells that contributed.
	Negatives int  `json:"negatives" yaml:"negatives"`
	Defined   bool `json:"defined" yaml:"defined"`
}

// ComputeCutoff averages the signal of every well selected by negatives (a
// plate position or a group label) and scales it by multiplier. With no
// matching wells the cut-off is undefined.
func ComputeCutoff(wells []models.Well, negatives []string, multiplier float64) Cutoff {
	var signals []float64
	for _, w := range wells {
		for _, label := range negatives {
			if w.Matches(label) {
				signals = append(signals, w.Signal)
				break
			}
		}
	}

	if len(signals) == 0 {
		return Cutoff{Value: math.NaN(), AvgNegative: math.NaN(), Multiplier: multiplier}
	}
	avg := stat.Mean(signals, nil)
	return Cutoff{
		Value:       multiplier * avg,
		AvgNegative: avg,
		Multiplier:  multiplier,
		Negatives:   len(signals),
		Defined:     true,
	}
}

// Classified pairs a well with its call.
type Classified struct {
	models.Well `yaml:",inline"`
	Status models.Status `json:"status" yaml:"status"`
}

// Status classifies a single signal against cutoff ± margin.
func Status(signal float64, cutoff Cutoff, margin float64) models.Status {
	switch {
	case !cutoff.Defined || math.IsNaN(cutoff.Value):
		return models.StatusUnknown
	case signal > cutoff.Value+margin:
		return models.StatusPositive
	case signal < cutoff.Value-margin:
		return models.StatusNegative
	default:
		return models.StatusEquivocal
	}
}

// Classify labels every well. Positive above COV+margin, Negative below
// COV−margin, Equivocal in between, Unknown when the cut-off is undefined.
func Classify(wells []models.Well, cutoff Cutoff, margin float64) []Classified {
	out := make([]Classified, len(wells))
	for i, w := range wells {
		out[i] = Classified{Well: w, Status: Status(w.Signal, cutoff, margin)}
	}
	return out
}

// Summary counts wells per status.
func Summary(classified []Classified) map[models.Status]int {
	counts := make(map[models.Status]int)
	for _, c := range classified {
		counts[c.Status]++
	}
	return counts
}

// String renders the cut-off for logs and CLI output.
func (c Cutoff) String() string {
	if !c.Defined {
		return "COV undefined (no negatives selected)"
	}
	return fmt.Sprintf("COV=%.3f (%.2f × avg negative %.3f, n=%d)", c.Value, c.Multiplier, c.AvgNegative, c.Negatives)
}

// MarshalJSON writes non-finite limits as null and includes inversion
// errors as strings.
func (l Limits) MarshalJSON() ([]byte, error) {
	type alias Limits
	return json.Marshal(struct {
		alias
		LODConc  *float64 `json:"lod_conc"`
		LOQConc  *float64 `json:"loq_conc"`
		LODError string   `json:"lod_error,omitempty"`
		LOQError string   `json:"loq_error,omitempty"`
	}{
		alias:    alias(l),
		LODConc:  models.Finite(l.LODConc),
		LOQConc:  models.Finite(l.LOQConc),
		LODError: models.ErrString(l.LODErr),
		LOQError: models.ErrString(l.LOQErr),
	})
}

// MarshalJSON writes an undefined cut-off as null.
func (c Cutoff) MarshalJSON() ([]byte, error) {
	type alias Cutoff
	return json.Marshal(struct {
		alias
		Value       *float64 `json:"value"`
		AvgNegative *float64 `json:"avg_negative"`
	}{alias(c), models.Finite(c.Value), models.Finite(c.AvgNegative)})
}
