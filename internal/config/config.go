// Package config provides unified configuration loading for elisalab.
// It supports loading from YAML files and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/nvandessel/elisalab/internal/constants"
	"github.com/nvandessel/elisalab/internal/curvefit"
	"github.com/nvandessel/elisalab/internal/errinject"
	"github.com/nvandessel/elisalab/internal/generator"
	"github.com/nvandessel/elisalab/internal/simulation"
	"gopkg.in/yaml.v3"
)

// ElisaConfig contains all elisalab configuration settings.
type ElisaConfig struct {
	// Assay describes the simulated plate.
	Assay AssayConfig `json:"assay" yaml:"assay"`

	// Truth is the generative curve behind the simulated signals.
	Truth TruthConfig `json:"truth" yaml:"truth"`

	// Fit selects the model fitted to the standard curve.
	Fit FitConfig `json:"fit" yaml:"fit"`

	// Errors lists the perturbations injected after generation.
	Errors errinject.Config `json:"errors" yaml:"errors"`

	// QC contains cut-off classification settings.
	QC QCConfig `json:"qc" yaml:"qc"`

	// Output controls how results are written.
	Output OutputConfig `json:"output" yaml:"output"`

	// Logging contains settings for operational logging.
	Logging LoggingConfig `json:"logging" yaml:"logging"`
}

// AssayConfig describes the plate layout and measurement noise.
type AssayConfig struct {
	Levels     int     `json:"levels" yaml:"levels"`
	MinConc    float64 `json:"min_conc" yaml:"min_conc"`
	MaxConc    float64 `json:"max_conc" yaml:"max_conc"`
	Replicates int     `json:"replicates" yaml:"replicates"`
	Background float64 `json:"background" yaml:"background"`
	NoiseSD    float64 `json:"noise_sd" yaml:"noise_sd"`
	Seed       uint64  `json:"seed" yaml:"seed"`

	// SubtractBlank removes the mean blank signal from every other well.
	SubtractBlank bool `json:"subtract_blank" yaml:"subtract_blank"`
}

// TruthConfig is a flat description of the generative curve. Slope and
// Intercept apply to linear and log truths; Bottom, Top, EC50 and Hill to 4PL.
type TruthConfig struct {
	Kind      string  `json:"kind" yaml:"kind"`
	Slope     float64 `json:"slope,omitempty" yaml:"slope,omitempty"`
	Intercept float64 `json:"intercept,omitempty" yaml:"intercept,omitempty"`
	Bottom    float64 `json:"bottom,omitempty" yaml:"bottom,omitempty"`
	Top       float64 `json:"top,omitempty" yaml:"top,omitempty"`
	EC50      float64 `json:"ec50,omitempty" yaml:"ec50,omitempty"`
	Hill      float64 `json:"hill,omitempty" yaml:"hill,omitempty"`
}

// Params converts the truth description into curve parameters.
func (t TruthConfig) Params() (curvefit.Params, error) {
	kind, err := curvefit.ParseKind(t.Kind)
	if err != nil {
		return curvefit.Params{}, err
	}
	switch kind {
	case curvefit.KindLinear:
		return curvefit.Linear(t.Slope, t.Intercept), nil
	case curvefit.KindLog:
		return curvefit.LogLinear(t.Slope, t.Intercept), nil
	default:
		return curvefit.FourPL(t.Bottom, t.Top, t.EC50, t.Hill), nil
	}
}

// FitConfig selects the fitted model.
type FitConfig struct {
	// Kind is "linear", "log" or "4pl".
	Kind string `json:"kind" yaml:"kind"`
}

// QCConfig configures cut-off classification.
type QCConfig struct {
	// CutoffMultiplier scales the mean negative signal into the COV.
	CutoffMultiplier float64 `json:"cutoff_multiplier" yaml:"cutoff_multiplier"`

	// EquivocalMargin is the half-width of the equivocal band.
	EquivocalMargin float64 `json:"equivocal_margin" yaml:"equivocal_margin"`

	// Negatives selects negative-control wells by position or group label.
	Negatives []string `json:"negatives,omitempty" yaml:"negatives,omitempty"`
}

// OutputConfig controls result rendering.
type OutputConfig struct {
	// Chart is a .png or .svg path for the standard-curve chart. Supports
	// ${VAR} syntax for env vars. Empty disables charts.
	Chart string `json:"chart,omitempty" yaml:"chart,omitempty"`
}

// LoggingConfig configures elisalab's logging behavior.
type LoggingConfig struct {
	// Level sets the log verbosity: "info" (default), "debug", or "trace".
	// "debug" logs fit parameters and flagged back-calculations.
	// "trace" additionally logs every MCP tool call.
	Level string `json:"level" yaml:"level"`
}

// Default returns an ElisaConfig with sensible defaults.
func Default() *ElisaConfig {
	assay := simulation.DefaultAssay()
	truth := assay.Truth.FourPL
	return &ElisaConfig{
		Assay: AssayConfig{
			Levels:     assay.Levels,
			MinConc:    assay.MinConc,
			MaxConc:    assay.MaxConc,
			Replicates: assay.Replicates,
			Background: assay.Background,
			NoiseSD:    assay.NoiseSD,
			Seed:       42,
		},
		Truth: TruthConfig{
			Kind:   string(curvefit.KindFourPL),
			Bottom: truth.Bottom,
			Top:    truth.Top,
			EC50:   truth.EC50,
			Hill:   truth.Hill,
		},
		Fit: FitConfig{
			Kind: string(curvefit.KindFourPL),
		},
		QC: QCConfig{
			CutoffMultiplier: constants.DefaultCutoffMultiplier,
			EquivocalMargin:  constants.DefaultEquivocalMargin,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Path returns the default config file location, ~/.elisalab/config.yaml.
func Path() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("locating home directory: %w", err)
	}
	return filepath.Join(homeDir, ".elisalab", "config.yaml"), nil
}

// Load loads configuration from the default locations and environment variables.
// Order: defaults -> ~/.elisalab/config.yaml -> environment variables
func Load() (*ElisaConfig, error) {
	config := Default()

	// Try to load from default config file
	if configPath, err := Path(); err == nil {
		if _, statErr := os.Stat(configPath); statErr == nil {
			fileConfig, loadErr := LoadFromFile(configPath)
			if loadErr != nil {
				return nil, fmt.Errorf("loading config file: %w", loadErr)
			}
			config = fileConfig
		}
	}

	// Apply environment variable overrides
	applyEnvOverrides(config)

	return config, nil
}

// LoadFromFile loads configuration from a specific YAML file.
func LoadFromFile(path string) (*ElisaConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	config.Output.Chart = expandEnvVars(config.Output.Chart)

	return config, nil
}

// Validate checks that the configuration is valid.
func (c *ElisaConfig) Validate() error {
	sc, err := c.ToScenario()
	if err != nil {
		return err
	}
	if err := sc.Validate(); err != nil {
		return err
	}

	if c.QC.CutoffMultiplier <= 0 {
		return fmt.Errorf("cutoff_multiplier must be positive, got %g", c.QC.CutoffMultiplier)
	}
	if c.QC.EquivocalMargin < 0 {
		return fmt.Errorf("equivocal_margin must be non-negative, got %g", c.QC.EquivocalMargin)
	}

	validLevels := map[string]bool{"info": true, "debug": true, "trace": true}
	if c.Logging.Level != "" && !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (valid: info, debug, trace, or empty for default)", c.Logging.Level)
	}

	return nil
}

// Generator converts the assay and truth sections into a generator config.
func (c *ElisaConfig) Generator() (generator.Config, error) {
	truth, err := c.Truth.Params()
	if err != nil {
		return generator.Config{}, fmt.Errorf("truth: %w", err)
	}
	return generator.Config{
		Levels:     c.Assay.Levels,
		MinConc:    c.Assay.MinConc,
		MaxConc:    c.Assay.MaxConc,
		Replicates: c.Assay.Replicates,
		Background: c.Assay.Background,
		NoiseSD:    c.Assay.NoiseSD,
		Truth:      truth,
	}, nil
}

// ToScenario converts the configuration into a simulation scenario. The
// caller attaches a logger.
func (c *ElisaConfig) ToScenario() (simulation.Scenario, error) {
	assay, err := c.Generator()
	if err != nil {
		return simulation.Scenario{}, err
	}
	kind, err := curvefit.ParseKind(c.Fit.Kind)
	if err != nil {
		return simulation.Scenario{}, fmt.Errorf("fit: %w", err)
	}
	margin := c.QC.EquivocalMargin
	return simulation.Scenario{
		Assay:         assay,
		Seed:          c.Assay.Seed,
		Errors:        c.Errors,
		SubtractBlank: c.Assay.SubtractBlank,
		FitKind:       kind,
		Negatives:     c.QC.Negatives,
		Multiplier:    c.QC.CutoffMultiplier,
		Margin:        &margin,
	}, nil
}

// applyEnvOverrides applies environment variable overrides to the config.
func applyEnvOverrides(config *ElisaConfig) {
	if v := os.Getenv("ELISA_SEED"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			config.Assay.Seed = n
		}
	}

	if v := os.Getenv("ELISA_FIT_KIND"); v != "" {
		config.Fit.Kind = v
	}

	if v := os.Getenv("ELISA_NOISE_SD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			config.Assay.NoiseSD = f
		}
	}

	if v := os.Getenv("ELISA_REPLICATES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Assay.Replicates = n
		}
	}

	if v := os.Getenv("ELISA_COV_MULTIPLIER"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			config.QC.CutoffMultiplier = f
		}
	}

	if v := os.Getenv("ELISA_EQUIVOCAL_MARGIN"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			config.QC.EquivocalMargin = f
		}
	}

	if v := os.Getenv("ELISA_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}
}

// expandEnvVars expands ${VAR} patterns in a string with environment variable values.
func expandEnvVars(s string) string {
	if !strings.Contains(s, "${") {
		return s
	}
	return os.Expand(s, os.Getenv)
}
