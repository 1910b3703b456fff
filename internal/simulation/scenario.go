package simulation

import (
	"fmt"
	"log/slog"

	"github.com/nvandessel/elisalab/internal/constants"
	"github.com/nvandessel/elisalab/internal/curvefit"
	"github.com/nvandessel/elisalab/internal/errinject"
	"github.com/nvandessel/elisalab/internal/generator"
)

// Scenario defines a complete simulation experiment.
type Scenario struct {
	Name  string           `json:"name,omitempty"`
	Assay generator.Config `json:"assay"`
	Seed  uint64           `json:"seed"`

	Errors errinject.Config `json:"errors"`

	// SubtractBlank shifts every non-blank well down by the blank mean
	// after error injection, flooring at zero.
	SubtractBlank bool `json:"subtract_blank"`

	FitKind curvefit.Kind `json:"fit_kind"`

	// Negatives selects the wells averaged into the cut-off. Empty means
	// the blanks.
	Negatives  []string `json:"negatives,omitempty"`
	Multiplier float64  `json:"multiplier"`

	// Margin is the equivocal half-width. Nil means the default; zero
	// disables the equivocal band.
	Margin *float64 `json:"margin,omitempty"`

	// Logger receives run progress. Nil discards it.
	Logger *slog.Logger `json:"-"`
}

// DefaultAssay returns the plate used when nothing else is configured:
// eight standards from 0.1 to 100 in triplicate on a 4PL truth curve.
func DefaultAssay() generator.Config {
	return generator.Config{
		Levels:     8,
		MinConc:    0.1,
		MaxConc:    100,
		Replicates: 3,
		Background: 0.05,
		NoiseSD:    0.02,
		Truth:      curvefit.FourPL(0.05, 2.5, 5, 1.2),
	}
}

// withDefaults fills zero-valued QC settings.
func (sc Scenario) withDefaults() Scenario {
	if sc.FitKind == "" {
		sc.FitKind = curvefit.KindFourPL
	}
	if len(sc.Negatives) == 0 {
		sc.Negatives = []string{"blank"}
	}
	if sc.Multiplier == 0 {
		sc.Multiplier = constants.DefaultCutoffMultiplier
	}
	if sc.Margin == nil {
		m := constants.DefaultEquivocalMargin
		sc.Margin = &m
	}
	return sc
}

// Validate rejects scenarios that cannot run at all.
func (sc Scenario) Validate() error {
	if err := sc.Assay.Validate(); err != nil {
		return err
	}
	if err := sc.Errors.Validate(sc.Assay.Levels, sc.Assay.Replicates); err != nil {
		return err
	}
	if sc.FitKind != "" && !sc.FitKind.Valid() {
		return fmt.Errorf("%w: %q", curvefit.ErrUnknownKind, sc.FitKind)
	}
	if sc.Multiplier < 0 {
		return fmt.Errorf("cut-off multiplier must be non-negative, got %g", sc.Multiplier)
	}
	if sc.Margin != nil && !(*sc.Margin >= 0) {
		return fmt.Errorf("equivocal margin must be non-negative, got %g", *sc.Margin)
	}
	return nil
}

// Preset is a named troubleshooting scenario.
type Preset struct {
	Name        string           `json:"name"`
	Description string           `json:"description"`
	Errors      errinject.Config `json:"errors"`
}

// Presets lists one scenario per injectable error plus a clean baseline.
var Presets = []Preset{
	{Name: "clean", Description: "No injected errors."},
	{
		Name:        "pipetting",
		Description: "Standard level 4 over-pipetted by 25%.",
		Errors:      errinject.Config{PipettingBias: &errinject.PipettingBias{Level: 4, Fraction: 0.25}},
	},
	{
		Name:        "reagent-failure",
		Description: "Degraded conjugate, all non-blank signals at 60%.",
		Errors:      errinject.Config{ReagentFailure: &errinject.ReagentFailure{Scale: 0.6}},
	},
	{
		Name:        "contamination",
		Description: "Poor washing adds 0.15 OD to every well.",
		Errors:      errinject.Config{Contamination: &errinject.Contamination{Add: 0.15}},
	},
	{
		Name:        "outlier",
		Description: "One replicate of standard level 3 reads 0.8 OD high.",
		Errors:      errinject.Config{Outlier: &errinject.Outlier{Level: 3, Replicate: 0, Amount: 0.8}},
	},
	{
		Name:        "wrong-dilution",
		Description: "Unknown 1 diluted ten-fold too much.",
		Errors:      errinject.Config{WrongDilution: &errinject.WrongDilution{}},
	},
}

// LookupPreset finds a troubleshooting preset by name.
func LookupPreset(name string) (Preset, bool) {
	for _, p := range Presets {
		if p.Name == name {
			return p, true
		}
	}
	return Preset{}, false
}
