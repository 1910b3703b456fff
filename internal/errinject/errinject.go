// Package errinject applies realistic bench mistakes to a generated plate.
//
// Perturbations are independent toggles; a nil field is off. Whatever subset
// is active is applied in one fixed order, because scaling and offsets do not
// commute:
//
//	pipetting bias → reagent failure → contamination → outlier → wrong dilution
//
// Apply never mutates its input. Callers keep the raw dataset and re-apply a
// new Config whenever a toggle changes, which makes switching an error off a
// no-op by construction.
package errinject

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/nvandessel/elisalab/internal/constants"
	"github.com/nvandessel/elisalab/internal/generator"
	"github.com/nvandessel/elisalab/internal/models"
	"gonum.org/v1/gonum/stat/distuv"
)

// ErrInvalidConfig is returned for out-of-range perturbation parameters.
var ErrInvalidConfig = errors.New("invalid error-injection config")

// PipettingBias scales every replicate of one standard level.
type PipettingBias struct {
	// Level is the 1-based standard level.
	Level int `json:"level" yaml:"level"`

	// Fraction is the relative bias in [-0.5, 0.5].
	Fraction float64 `json:"fraction" yaml:"fraction"`
}

// ReagentFailure attenuates every non-blank signal.
type ReagentFailure struct {
	// Scale is the signal multiplier in (0, 1].
	Scale float64 `json:"scale" yaml:"scale"`
}

// Contamination raises every signal, blanks included.
type Contamination struct {
	Add float64 `json:"add" yaml:"add"`
}

// Outlier bumps exactly one standard well.
type Outlier struct {
	// Level is the 1-based standard level.
	Level int `json:"level" yaml:"level"`

	// Replicate is the 0-based replicate index.
	Replicate int `json:"replicate" yaml:"replicate"`

	Amount float64 `json:"amount" yaml:"amount"`
}

// WrongDilution re-measures unknown 1 as if it were diluted ten-fold too much.
type WrongDilution struct{}

// Config selects the active perturbations.
type Config struct {
	PipettingBias  *PipettingBias  `json:"pipetting_bias,omitempty" yaml:"pipetting_bias,omitempty"`
	ReagentFailure *ReagentFailure `json:"reagent_failure,omitempty" yaml:"reagent_failure,omitempty"`
	Contamination  *Contamination  `json:"contamination,omitempty" yaml:"contamination,omitempty"`
	Outlier        *Outlier        `json:"outlier,omitempty" yaml:"outlier,omitempty"`
	WrongDilution  *WrongDilution  `json:"wrong_dilution,omitempty" yaml:"wrong_dilution,omitempty"`
}

// Active returns the names of the enabled perturbations in application order.
func (c Config) Active() []string {
	var names []string
	if c.PipettingBias != nil {
		names = append(names, "pipetting_bias")
	}
	if c.ReagentFailure != nil {
		names = append(names, "reagent_failure")
	}
	if c.Contamination != nil {
		names = append(names, "contamination")
	}
	if c.Outlier != nil {
		names = append(names, "outlier")
	}
	if c.WrongDilution != nil {
		names = append(names, "wrong_dilution")
	}
	return names
}

// Validate checks every enabled perturbation against the plate dimensions.
func (c Config) Validate(levels, replicates int) error {
	if b := c.PipettingBias; b != nil {
		if b.Level < 1 || b.Level > levels {
			return fmt.Errorf("%w: pipetting level %d outside 1..%d", ErrInvalidConfig, b.Level, levels)
		}
		if !(b.Fraction >= -0.5 && b.Fraction <= 0.5) {
			return fmt.Errorf("%w: pipetting fraction %g outside [-0.5, 0.5]", ErrInvalidConfig, b.Fraction)
		}
	}
	if r := c.ReagentFailure; r != nil {
		if !(r.Scale > 0 && r.Scale <= 1) {
			return fmt.Errorf("%w: reagent scale %g outside (0, 1]", ErrInvalidConfig, r.Scale)
		}
	}
	if ct := c.Contamination; ct != nil {
		if math.IsNaN(ct.Add) || math.IsInf(ct.Add, 0) {
			return fmt.Errorf("%w: contamination offset must be finite", ErrInvalidConfig)
		}
	}
	if o := c.Outlier; o != nil {
		if o.Level < 1 || o.Level > levels {
			return fmt.Errorf("%w: outlier level %d outside 1..%d", ErrInvalidConfig, o.Level, levels)
		}
		if o.Replicate < 0 || o.Replicate >= replicates {
			return fmt.Errorf("%w: outlier replicate %d outside 0..%d", ErrInvalidConfig, o.Replicate, replicates-1)
		}
		if math.IsNaN(o.Amount) || math.IsInf(o.Amount, 0) {
			return fmt.Errorf("%w: outlier amount must be finite", ErrInvalidConfig)
		}
	}
	return nil
}

// Apply returns a copy of raw with the configured perturbations applied.
func Apply(raw generator.Dataset, cfg Config) (generator.Dataset, error) {
	if err := cfg.Validate(raw.Config.Levels, raw.Config.Replicates); err != nil {
		return generator.Dataset{}, err
	}

	out := raw.Clone()
	wells := out.Wells

	if b := cfg.PipettingBias; b != nil {
		for i := range wells {
			if wells[i].Type == models.WellTypeStandard && wells[i].Level == b.Level {
				wells[i].Signal *= 1 + b.Fraction
			}
		}
	}

	if r := cfg.ReagentFailure; r != nil {
		for i := range wells {
			if wells[i].Type != models.WellTypeBlank {
				wells[i].Signal *= r.Scale
			}
		}
	}

	if ct := cfg.Contamination; ct != nil {
		for i := range wells {
			wells[i].Signal += ct.Add
		}
	}

	if o := cfg.Outlier; o != nil {
		for i := range wells {
			w := wells[i]
			if w.Type == models.WellTypeStandard && w.Level == o.Level && w.Replicate == o.Replicate {
				wells[i].Signal += o.Amount
				break
			}
		}
	}

	if cfg.WrongDilution != nil {
		misdilute(&out)
	}

	return out, nil
}

// misdilute replaces unknown 1 with fresh measurements at a tenth of its true
// concentration. Noise comes from a dedicated PCG stream keyed on the dataset
// seed so the result is reproducible without sharing the generation stream.
func misdilute(d *generator.Dataset) {
	if len(d.UnknownConcentrations) == 0 {
		return
	}
	cfg := d.Config
	conc := math.Max(d.UnknownConcentrations[0]/constants.DilutionFactor, constants.MinConcentration)
	mean := cfg.Truth.Predict(conc) + cfg.Background
	noise := distuv.Normal{Mu: 0, Sigma: cfg.NoiseSD, Src: rand.NewPCG(d.Seed, constants.DilutionStream)}

	for i := range d.Wells {
		if d.Wells[i].Type == models.WellTypeUnknown && d.Wells[i].Unknown == 1 {
			d.Wells[i].Signal = mean + noise.Rand()
		}
	}
}
