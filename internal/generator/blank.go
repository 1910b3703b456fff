package generator

import (
	"math"

	"github.com/nvandessel/elisalab/internal/models"
	"gonum.org/v1/gonum/stat"
)

// BlankMean returns the mean blank signal and whether any blanks exist.
func BlankMean(wells []models.Well) (float64, bool) {
	blanks := models.Signals(models.Filter(wells, models.WellTypeBlank))
	if len(blanks) == 0 {
		return 0, false
	}
	return stat.Mean(blanks, nil), true
}

// SubtractBlank returns a copy of d with the mean blank signal subtracted from
// every non-blank well, floored at zero. Blank wells keep their raw signal so
// detection limits can still be derived from them.
func SubtractBlank(d Dataset) Dataset {
	out := d.Clone()
	mu, ok := BlankMean(out.Wells)
	if !ok {
		return out
	}
	for i := range out.Wells {
		if out.Wells[i].Type == models.WellTypeBlank {
			continue
		}
		out.Wells[i].Signal = math.Max(out.Wells[i].Signal-mu, 0)
	}
	return out
}
