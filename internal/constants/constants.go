// Package constants provides named constants used throughout the elisalab codebase.
// This centralizes magic numbers for better maintainability and documentation.
package constants

// Numeric guards
const (
	// MinConcentration is the floor applied to concentrations before they are
	// divided into or passed to a logarithm.
	MinConcentration = 1e-12

	// PlateauEpsilon is the relative margin, as a fraction of |top-bottom|,
	// inside which a 4PL curve is treated as flat and cannot be inverted.
	PlateauEpsilon = 1e-9
)

// Cut-off and classification defaults
const (
	// DefaultCutoffMultiplier scales the mean negative-control signal into the
	// cut-off value (COV).
	DefaultCutoffMultiplier = 2.1

	// DefaultEquivocalMargin is the half-width of the equivocal band around the
	// COV, in signal units.
	DefaultEquivocalMargin = 0.10
)

// Detection limit multipliers applied to the blank standard deviation.
const (
	LODSigmas = 3.0
	LOQSigmas = 10.0
)

// 4PL fit bounds and budget
const (
	// MinHill and MaxHill bound the Hill slope during 4PL fitting.
	MinHill = 0.01
	MaxHill = 5.0

	// InitialHill is the starting Hill slope for the optimizer.
	InitialHill = 1.0

	// FitMaxIterations caps optimizer major iterations.
	FitMaxIterations = 5000

	// FitMaxEvaluations caps objective evaluations.
	FitMaxEvaluations = 20000

	// MinFourPLPoints is the smallest standard curve a 4PL fit accepts.
	MinFourPLPoints = 4

	// MinFitSpanFraction is the smallest spread of fitted predictions, as a
	// fraction of the observed signal range, for a 4PL fit to count.
	MinFitSpanFraction = 1e-3
)

// Generator layout
const (
	// PositiveControlFactor places the positive control above the top standard.
	PositiveControlFactor = 1.2

	// PositiveControlMinRatio is the smallest ratio of measured to expected
	// positive-control signal that still counts as a working assay.
	PositiveControlMinRatio = 0.8

	// UnknownCount is the number of unknown samples per generated plate.
	UnknownCount = 2

	// PlateRows is the number of rows on a 96-well plate (A..H).
	PlateRows = 8

	// PlateColumns is the number of columns on a 96-well plate (1..12).
	PlateColumns = 12

	// PlateWells is the largest layout a generated plate may occupy.
	PlateWells = PlateRows * PlateColumns

	// DilutionFactor is the mistaken dilution applied by the wrong-dilution error.
	DilutionFactor = 10.0

	// DilutionStream selects the PCG stream used for re-sampled dilution noise,
	// keeping it independent of the generation stream.
	DilutionStream = 0xd11e7e
)

// Plotting
const (
	// DenseGridPoints is the number of points in a rendered fitted curve.
	DenseGridPoints = 200

	// DenseGridPad widens the plotted range by this factor on each side.
	DenseGridPad = 1.5
)
