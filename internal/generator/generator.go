// Package generator produces synthetic ELISA plate data.
//
// A run lays out log-spaced standards, blanks, a positive control and two
// unknown samples, computes the true mean signal of each from a generative
// curve, then adds constant background and independent Gaussian noise per
// well. Each call owns a PCG source seeded from the caller's seed, so equal
// (Config, seed) pairs always produce identical datasets and concurrent runs
// never share random state.
//
// Random draws are consumed in a fixed order:
//
//  1. standards, level by level, replicate by replicate
//  2. blanks
//  3. positive control replicates
//  4. unknown concentrations (unknown 1, then unknown 2)
//  5. unknown replicates (unknown 1, then unknown 2)
package generator

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/nvandessel/elisalab/internal/constants"
	"github.com/nvandessel/elisalab/internal/curvefit"
	"github.com/nvandessel/elisalab/internal/models"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distuv"
)

// ErrInvalidConfig is returned when a Config is rejected before generation.
var ErrInvalidConfig = errors.New("invalid generator config")

// Config describes the plate layout and the generative model.
type Config struct {
	// Levels is the number of standard concentrations (≥ 2).
	Levels int `json:"levels" yaml:"levels"`

	// MinConc and MaxConc bound the standard range; 0 < MinConc < MaxConc.
	MinConc float64 `json:"min_conc" yaml:"min_conc"`
	MaxConc float64 `json:"max_conc" yaml:"max_conc"`

	// Replicates is the number of wells per group (≥ 1).
	Replicates int `json:"replicates" yaml:"replicates"`

	// Background is the constant signal added to every well.
	Background float64 `json:"background" yaml:"background"`

	// NoiseSD is the per-well Gaussian noise standard deviation.
	NoiseSD float64 `json:"noise_sd" yaml:"noise_sd"`

	// Truth is the generative curve mapping concentration to mean signal.
	Truth curvefit.Params `json:"truth" yaml:"truth"`
}

// Validate rejects configurations that cannot produce a valid dataset.
func (c Config) Validate() error {
	switch {
	case c.Levels < 2:
		return fmt.Errorf("%w: need at least 2 standard levels, got %d", ErrInvalidConfig, c.Levels)
	case c.Replicates < 1:
		return fmt.Errorf("%w: need at least 1 replicate, got %d", ErrInvalidConfig, c.Replicates)
	case c.Wells() > constants.PlateWells:
		return fmt.Errorf("%w: layout needs %d wells, a plate holds %d", ErrInvalidConfig, c.Wells(), constants.PlateWells)
	case !(c.MinConc > 0):
		return fmt.Errorf("%w: min concentration must be positive, got %g", ErrInvalidConfig, c.MinConc)
	case !(c.MinConc < c.MaxConc) || math.IsInf(c.MaxConc, 0):
		return fmt.Errorf("%w: min concentration %g must be below a finite max %g", ErrInvalidConfig, c.MinConc, c.MaxConc)
	case !(c.Background >= 0) || math.IsInf(c.Background, 0):
		return fmt.Errorf("%w: background must be finite and non-negative, got %g", ErrInvalidConfig, c.Background)
	case !(c.NoiseSD >= 0) || math.IsInf(c.NoiseSD, 0):
		return fmt.Errorf("%w: noise SD must be finite and non-negative, got %g", ErrInvalidConfig, c.NoiseSD)
	}
	if err := c.Truth.Validate(); err != nil {
		return fmt.Errorf("%w: truth model: %v", ErrInvalidConfig, err)
	}
	return nil
}

// Wells returns the number of wells the layout occupies: every standard
// level, the blanks, the positive control and each unknown in replicate.
func (c Config) Wells() int {
	return (c.Levels + 2 + constants.UnknownCount) * c.Replicates
}

// Dataset is a generated plate plus the context needed to re-derive signals.
type Dataset struct {
	Wells []models.Well `json:"wells" yaml:"wells"`

	// Concentrations holds the standard concentrations, one per level.
	Concentrations []float64 `json:"concentrations" yaml:"concentrations"`

	// UnknownConcentrations holds the true concentration of each unknown.
	UnknownConcentrations []float64 `json:"unknown_concentrations" yaml:"unknown_concentrations"`

	PositiveConcentration float64 `json:"positive_concentration" yaml:"positive_concentration"`

	Config Config `json:"config" yaml:"config"`
	Seed   uint64 `json:"seed" yaml:"seed"`
}

// Clone returns a copy of the dataset that shares no slices with d.
func (d Dataset) Clone() Dataset {
	out := d
	out.Wells = models.Clone(d.Wells)
	out.Concentrations = append([]float64(nil), d.Concentrations...)
	out.UnknownConcentrations = append([]float64(nil), d.UnknownConcentrations...)
	return out
}

// Generate builds a dataset from cfg using a fresh source seeded with seed.
func Generate(cfg Config, seed uint64) (Dataset, error) {
	if err := cfg.Validate(); err != nil {
		return Dataset{}, err
	}

	src := rand.NewPCG(seed, 0)
	noise := distuv.Normal{Mu: 0, Sigma: cfg.NoiseSD, Src: src}

	conc := LogLevels(cfg.Levels, cfg.MinConc, cfg.MaxConc)
	wells := make([]models.Well, 0, cfg.Wells())
	emit := func(w models.Well, mean float64) {
		w.Signal = mean + cfg.Background + noise.Rand()
		w.Position = PlatePosition(len(wells))
		wells = append(wells, w)
	}

	for i, c := range conc {
		mean := cfg.Truth.Predict(c)
		for r := 0; r < cfg.Replicates; r++ {
			emit(models.Well{Type: models.WellTypeStandard, Level: i + 1, Replicate: r, Concentration: c}, mean)
		}
	}

	for r := 0; r < cfg.Replicates; r++ {
		emit(models.Well{Type: models.WellTypeBlank, Replicate: r}, 0)
	}

	posConc := cfg.MaxConc * constants.PositiveControlFactor
	posMean := cfg.Truth.Predict(posConc)
	for r := 0; r < cfg.Replicates; r++ {
		emit(models.Well{Type: models.WellTypePositive, Replicate: r, Concentration: posConc}, posMean)
	}

	uniform := distuv.Uniform{Min: cfg.MinConc, Max: cfg.MaxConc, Src: src}
	unknowns := make([]float64, constants.UnknownCount)
	for u := range unknowns {
		unknowns[u] = uniform.Rand()
	}
	for u, c := range unknowns {
		mean := cfg.Truth.Predict(c)
		for r := 0; r < cfg.Replicates; r++ {
			emit(models.Well{Type: models.WellTypeUnknown, Unknown: u + 1, Replicate: r, Concentration: c}, mean)
		}
	}

	return Dataset{
		Wells:                 wells,
		Concentrations:        conc,
		UnknownConcentrations: unknowns,
		PositiveConcentration: posConc,
		Config:                cfg,
		Seed:                  seed,
	}, nil
}

// LogLevels returns n geometrically spaced concentrations from lo to hi with
// the endpoints pinned exactly. It returns nil for n < 2.
func LogLevels(n int, lo, hi float64) []float64 {
	if n < 2 {
		return nil
	}
	out := floats.LogSpan(make([]float64, n), lo, hi)
	out[0], out[n-1] = lo, hi
	return out
}

// PlatePosition maps an emission index onto a 96-well plate, filling each
// column top to bottom (A1, B1, ... H1, A2, ...). Config.Validate keeps
// generated layouts within the plate, so i stays below PlateWells there.
func PlatePosition(i int) string {
	return fmt.Sprintf("%c%d", 'A'+rune(i%constants.PlateRows), i/constants.PlateRows+1)
}
