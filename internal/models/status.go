package models

// Status is the qualitative call for a well compared against a cut-off value.
type Status string

const (
	// StatusPositive means the signal is above the cut-off plus the equivocal margin.
	StatusPositive Status = "Positive"

	// StatusNegative means the signal is below the cut-off minus the equivocal margin.
	StatusNegative Status = "Negative"

	// StatusEquivocal means the signal falls inside the dead band around the cut-off.
	StatusEquivocal Status = "Equivocal"

	// StatusUnknown means no cut-off could be computed (no negatives selected).
	StatusUnknown Status = "Unknown"
)

// String returns the string representation of the status.
func (s Status) String() string {
	return string(s)
}
