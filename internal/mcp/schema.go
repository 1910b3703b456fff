// Package mcp provides an MCP (Model Context Protocol) server for elisalab.
package mcp

import (
	"github.com/nvandessel/elisalab/internal/errinject"
)

// CurveParams describes a fitted or generative curve. Slope and Intercept
// apply to linear and log curves; Bottom, Top, EC50 and Hill to 4PL.
type CurveParams struct {
	Kind      string  `json:"kind" jsonschema:"Curve model: linear, log or 4pl"`
	Slope     float64 `json:"slope,omitempty" jsonschema:"Slope (linear and log)"`
	Intercept float64 `json:"intercept,omitempty" jsonschema:"Intercept (linear and log)"`
	Bottom    float64 `json:"bottom,omitempty" jsonschema:"Lower asymptote (4pl)"`
	Top       float64 `json:"top,omitempty" jsonschema:"Upper asymptote (4pl)"`
	EC50      float64 `json:"ec50,omitempty" jsonschema:"Inflection concentration (4pl)"`
	Hill      float64 `json:"hill,omitempty" jsonschema:"Hill slope (4pl)"`
}

// ElisaSimulateInput defines the input for the elisa_simulate tool.
// Omitted fields fall back to the server's configuration.
type ElisaSimulateInput struct {
	Seed          *uint64           `json:"seed,omitempty" jsonschema:"Random seed; equal seeds reproduce the same plate"`
	Levels        int               `json:"levels,omitempty" jsonschema:"Number of standard levels (at least 2)"`
	MinConc       float64           `json:"min_conc,omitempty" jsonschema:"Lowest standard concentration"`
	MaxConc       float64           `json:"max_conc,omitempty" jsonschema:"Highest standard concentration"`
	Replicates    int               `json:"replicates,omitempty" jsonschema:"Wells per standard, blank, control and unknown"`
	Background    *float64          `json:"background,omitempty" jsonschema:"Constant signal added to every well"`
	NoiseSD       *float64          `json:"noise_sd,omitempty" jsonschema:"Per-well Gaussian noise standard deviation"`
	Truth         *CurveParams      `json:"truth,omitempty" jsonschema:"Generative curve"`
	FitKind       string            `json:"fit_kind,omitempty" jsonschema:"Model fitted to the standards: linear, log or 4pl"`
	Preset        string            `json:"preset,omitempty" jsonschema:"Troubleshooting preset: clean, pipetting, reagent-failure, contamination, outlier, wrong-dilution"`
	Errors        *errinject.Config `json:"errors,omitempty" jsonschema:"Injected errors; overrides preset"`
	SubtractBlank bool              `json:"subtract_blank,omitempty" jsonschema:"Subtract the mean blank signal before fitting"`
}

// CurvePointOutput is one standard level on the fitted curve.
type CurvePointOutput struct {
	Level         int      `json:"level"`
	Concentration float64  `json:"concentration"`
	Mean          float64  `json:"mean"`
	Predicted     *float64 `json:"predicted"`
	Residual      *float64 `json:"residual"`
}

// GroupOutput summarizes one replicate group.
type GroupOutput struct {
	Group string   `json:"group"`
	N     int      `json:"n"`
	Mean  float64  `json:"mean"`
	SD    float64  `json:"sd"`
	CV    *float64 `json:"cv_pct" jsonschema:"Coefficient of variation in percent; null when undefined"`
}

// BackCalcOutput is the back-calculated concentration of one unknown.
type BackCalcOutput struct {
	Unknown    int      `json:"unknown"`
	MeanSignal float64  `json:"mean_signal"`
	CalcConc   *float64 `json:"calc_conc"`
	TrueConc   float64  `json:"true_conc"`
	PctError   *float64 `json:"pct_error"`
	Flag       string   `json:"flag,omitempty" jsonschema:"out_of_range, extrapolated or fit_failed"`
}

// LimitsOutput holds detection and quantitation limits.
type LimitsOutput struct {
	BlankMean float64  `json:"blank_mean"`
	BlankSD   float64  `json:"blank_sd"`
	LODSignal float64  `json:"lod_signal" jsonschema:"Blank mean + 3 SD"`
	LOQSignal float64  `json:"loq_signal" jsonschema:"Blank mean + 10 SD"`
	LODConc   *float64 `json:"lod_conc"`
	LOQConc   *float64 `json:"loq_conc"`
	LODError  string   `json:"lod_error,omitempty"`
	LOQError  string   `json:"loq_error,omitempty"`
}

// PositiveControlOutput reports the positive-control check.
type PositiveControlOutput struct {
	Mean     float64  `json:"mean"`
	Expected float64  `json:"expected"`
	Ratio    *float64 `json:"ratio"`
	Pass     bool     `json:"pass"`
}

// ElisaSimulateOutput defines the output for the elisa_simulate tool.
type ElisaSimulateOutput struct {
	RunID           string                `json:"run_id" jsonschema:"Deterministic identifier of this scenario"`
	Seed            uint64                `json:"seed"`
	ActiveErrors    []string              `json:"active_errors"`
	FitKind         string                `json:"fit_kind"`
	Fit             string                `json:"fit,omitempty" jsonschema:"Fitted parameters"`
	FitError        string                `json:"fit_error,omitempty"`
	Curve           []CurvePointOutput    `json:"curve"`
	StandardCV      []GroupOutput         `json:"standard_cv"`
	UnknownCV       []GroupOutput         `json:"unknown_cv"`
	BackCalc        []BackCalcOutput      `json:"back_calc"`
	Limits          *LimitsOutput         `json:"limits,omitempty"`
	PositiveControl PositiveControlOutput `json:"positive_control"`
	Hints           []string              `json:"hints"`
}

// ElisaFitInput defines the input for the elisa_fit tool.
type ElisaFitInput struct {
	Concentrations []float64 `json:"concentrations" jsonschema:"Standard concentrations"`
	Signals        []float64 `json:"signals" jsonschema:"Mean signal per standard"`
	Kind           string    `json:"kind,omitempty" jsonschema:"linear, log or 4pl (default from config)"`
}

// ElisaFitOutput defines the output for the elisa_fit tool.
type ElisaFitOutput struct {
	Params    CurveParams `json:"params"`
	Summary   string      `json:"summary"`
	Predicted []float64   `json:"predicted"`
	Residuals []float64   `json:"residuals" jsonschema:"Observed minus predicted"`
}

// ElisaInvertInput defines the input for the elisa_invert tool.
type ElisaInvertInput struct {
	Signals []float64   `json:"signals" jsonschema:"Signals to convert into concentrations"`
	Params  CurveParams `json:"params" jsonschema:"Fitted curve"`
}

// InvertResult is one inverted signal.
type InvertResult struct {
	Signal        float64  `json:"signal"`
	Concentration *float64 `json:"concentration"`
	Error         string   `json:"error,omitempty"`
}

// ElisaInvertOutput defines the output for the elisa_invert tool.
type ElisaInvertOutput struct {
	Results []InvertResult `json:"results"`
}

// ElisaCVInput defines the input for the elisa_cv tool.
type ElisaCVInput struct {
	Values []float64 `json:"values" jsonschema:"Replicate signals"`
}

// ElisaCVOutput defines the output for the elisa_cv tool.
type ElisaCVOutput struct {
	N    int      `json:"n"`
	Mean *float64 `json:"mean"`
	SD   float64  `json:"sd" jsonschema:"Sample standard deviation (n-1)"`
	CV   *float64 `json:"cv_pct" jsonschema:"CV in percent; null for empty input or non-positive mean"`
}

// ElisaDetectionLimitsInput defines the input for the elisa_detection_limits tool.
type ElisaDetectionLimitsInput struct {
	Blanks []float64   `json:"blanks" jsonschema:"Blank well signals"`
	Params CurveParams `json:"params" jsonschema:"Fitted curve used to convert limits into concentrations"`
}

// WellInput is a named well and its signal.
type WellInput struct {
	Name   string  `json:"name" jsonschema:"Well position or name"`
	Signal float64 `json:"signal" jsonschema:"Optical density"`
}

// ElisaCutoffClassifyInput defines the input for the elisa_cutoff_classify tool.
type ElisaCutoffClassifyInput struct {
	Wells      []WellInput `json:"wells" jsonschema:"Wells to classify"`
	Negatives  []string    `json:"negatives" jsonschema:"Names of the negative-control wells"`
	Multiplier float64     `json:"multiplier,omitempty" jsonschema:"Cut-off multiplier (default 2.1)"`
	Margin     *float64    `json:"margin,omitempty" jsonschema:"Equivocal half-width (default 0.10)"`
}

// CallOutput is the classification of one well.
type CallOutput struct {
	Name   string  `json:"name"`
	Signal float64 `json:"signal"`
	Status string  `json:"status" jsonschema:"Positive, Negative, Equivocal or Unknown"`
}

// ElisaCutoffClassifyOutput defines the output for the elisa_cutoff_classify tool.
type ElisaCutoffClassifyOutput struct {
	Cutoff      *float64       `json:"cutoff" jsonschema:"Cut-off value; null when no negatives matched"`
	AvgNegative *float64       `json:"avg_negative"`
	Defined     bool           `json:"defined"`
	Calls       []CallOutput   `json:"calls"`
	Summary     map[string]int `json:"summary"`
}

// ElisaPracticePlateInput defines the input for the elisa_practice_plate tool.
type ElisaPracticePlateInput struct {
	Format     string   `json:"format,omitempty" jsonschema:"indirect, sandwich, direct or competitive (default indirect)"`
	Preset     string   `json:"preset,omitempty" jsonschema:"clean, borderline, weak-positives or high-background"`
	Background *float64 `json:"background,omitempty" jsonschema:"Background OD; overrides preset"`
	LevelA     *float64 `json:"level_a,omitempty" jsonschema:"Patient A target level 0..1; overrides preset"`
	LevelB     *float64 `json:"level_b,omitempty" jsonschema:"Patient B target level 0..1; overrides preset"`
}

// ElisaPracticePlateOutput defines the output for the elisa_practice_plate tool.
type ElisaPracticePlateOutput struct {
	Format string       `json:"format"`
	Hint   string       `json:"hint"`
	Cutoff *float64     `json:"cutoff"`
	Calls  []CallOutput `json:"calls"`
}
