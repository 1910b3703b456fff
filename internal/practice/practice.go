// Package practice builds the six-well practice plate used to teach cut-off
// calculation. A deliberately simple signal model turns a background level
// and two patient "target levels" into optical densities for each ELISA
// format.
package practice

import (
	"fmt"
	"math"
	"strings"

	"github.com/nvandessel/elisalab/internal/models"
)

// Format is an ELISA assay format.
type Format string

const (
	FormatIndirect    Format = "indirect"
	FormatSandwich    Format = "sandwich"
	FormatDirect      Format = "direct"
	FormatCompetitive Format = "competitive"
)

// Formats lists every format in display order.
var Formats = []Format{FormatIndirect, FormatSandwich, FormatDirect, FormatCompetitive}

// ParseFormat converts a name into a Format.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Formats {
		if f == known {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown ELISA format %q (valid: indirect, sandwich, direct, competitive)", s)
}

// Hint is a one-line description of what the format's signal tracks.
func (f Format) Hint() string {
	switch f {
	case FormatIndirect:
		return "Signal tracks antibody amount binding to coated antigen."
	case FormatSandwich:
		return "Signal tracks antigen captured by capture and detection antibodies."
	case FormatDirect:
		return "Signal from a single labeled antibody bound to coated antigen."
	case FormatCompetitive:
		return "More antigen gives lower signal (inverse relation)."
	}
	return ""
}

const (
	// odGain converts a 0..1 target level into optical density.
	odGain = 2.4

	// maxOD is the reader's saturation ceiling.
	maxOD = 3.0
)

// OD returns the optical density of a well with the given target level.
// Competitive assays invert the level; the result is clipped to [0, 3].
func OD(f Format, background, level float64) float64 {
	if f == FormatCompetitive {
		level = 1 - level
	}
	return math.Max(0, math.Min(maxOD, background+odGain*level))
}

// Preset is a named starting point for the practice sliders.
type Preset struct {
	Name       string  `json:"name" yaml:"name"`
	Background float64 `json:"background" yaml:"background"`
	LevelA     float64 `json:"level_a" yaml:"level_a"`
	LevelB     float64 `json:"level_b" yaml:"level_b"`
}

// Presets lists the built-in presets in display order.
var Presets = []Preset{
	{Name: "clean", Background: 0.05, LevelA: 0.75, LevelB: 0.15},
	{Name: "borderline", Background: 0.08, LevelA: 0.35, LevelB: 0.25},
	{Name: "weak-positives", Background: 0.06, LevelA: 0.45, LevelB: 0.30},
	{Name: "high-background", Background: 0.18, LevelA: 0.70, LevelB: 0.30},
}

// LookupPreset finds a preset by name.
func LookupPreset(name string) (Preset, bool) {
	for _, p := range Presets {
		if p.Name == name {
			return p, true
		}
	}
	return Preset{}, false
}

// DefaultNegatives are the wells used as negative controls unless the
// student picks others.
var DefaultNegatives = []string{"Neg 1", "Neg 2"}

// Plate returns the six practice wells: Blank, Neg 1, Neg 2, Pos,
// Patient A and Patient B, with OD rounded to three decimals.
func Plate(f Format, background, levelA, levelB float64) []models.Well {
	well := func(name string, t models.WellType, od float64) models.Well {
		return models.Well{Position: name, Type: t, Signal: math.Round(od*1000) / 1000}
	}
	return []models.Well{
		well("Blank", models.WellTypeBlank, background),
		well("Neg 1", models.WellTypeControl, OD(f, background, 0)),
		well("Neg 2", models.WellTypeControl, OD(f, background, 0)),
		well("Pos", models.WellTypeControl, OD(f, background, 1)),
		well("Patient A", models.WellTypeSample, OD(f, background, levelA)),
		well("Patient B", models.WellTypeSample, OD(f, background, levelB)),
	}
}
