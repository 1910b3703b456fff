package models

import "math"

// Finite returns a pointer to v, or nil when v is NaN or infinite.
// encoding/json cannot represent non-finite numbers, so types holding
// undefined statistics marshal them as null through this helper.
func Finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// ErrString returns err's message, or "" for a nil error.
func ErrString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
