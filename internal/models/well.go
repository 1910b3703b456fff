package models

import (
	"fmt"
)

// WellType categorizes what a plate well contains
type WellType string

const (
	WellTypeStandard WellType = "standard" // Calibrator of known concentration
	WellTypeBlank    WellType = "blank"    // Buffer only, background signal
	WellTypePositive WellType = "positive" // Positive control above the standard range
	WellTypeUnknown  WellType = "unknown"  // Sample whose concentration is back-calculated
	WellTypeControl  WellType = "control"  // Named control on a practice plate
	WellTypeSample   WellType = "sample"   // Named patient sample on a practice plate
)

// Valid returns true if the well type is a recognized value.
func (t WellType) Valid() bool {
	switch t {
	case WellTypeStandard, WellTypeBlank, WellTypePositive, WellTypeUnknown,
		WellTypeControl, WellTypeSample:
		return true
	}
	return false
}

// Well is a single plate-reader measurement.
//
// Wells sharing a Group are replicates of each other.
type Well struct {
	// Position is the plate coordinate (e.g. "A1") or a display name for
	// practice plates (e.g. "Neg 1").
	Position string `json:"position" yaml:"position"`

	Type WellType `json:"type" yaml:"type"`

	// Level is the 1-based standard level; 0 for non-standards.
	Level int `json:"level" yaml:"level"`

	// Unknown is the 1-based unknown sample index; 0 for everything else.
	Unknown int `json:"unknown,omitempty" yaml:"unknown,omitempty"`

	// Replicate is the 0-based replicate index within the group.
	Replicate int `json:"replicate" yaml:"replicate"`

	// Concentration is the true (nominal) concentration. Students never see it
	// for unknowns; it is kept for scoring back-calculations.
	Concentration float64 `json:"concentration" yaml:"concentration"`

	// Signal is the measured response (optical density).
	Signal float64 `json:"signal" yaml:"signal"`
}

// Group returns the replicate-group label for the well, for example
// "standard_3", "unknown_1", "blank" or "positive".
func (w Well) Group() string {
	switch w.Type {
	case WellTypeStandard:
		return fmt.Sprintf("standard_%d", w.Level)
	case WellTypeUnknown:
		return fmt.Sprintf("unknown_%d", w.Unknown)
	case WellTypeControl, WellTypeSample:
		return w.Position
	default:
		return string(w.Type)
	}
}

// Matches reports whether the well is selected by label, which may be either
// its plate position or its group label.
func (w Well) Matches(label string) bool {
	return label != "" && (label == w.Position || label == w.Group())
}

// Signals extracts the signal of every well, preserving order.
func Signals(wells []Well) []float64 {
	out := make([]float64, len(wells))
	for i, w := range wells {
		out[i] = w.Signal
	}
	return out
}

// Filter returns the wells of the given type, preserving order.
func Filter(wells []Well, t WellType) []Well {
	var out []Well
	for _, w := range wells {
		if w.Type == t {
			out = append(out, w)
		}
	}
	return out
}

// Clone returns a deep copy of wells so callers can mutate freely.
func Clone(wells []Well) []Well {
	if wells == nil {
		return nil
	}
	out := make([]Well, len(wells))
	copy(out, wells)
	return out
}
