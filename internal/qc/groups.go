package qc

import (
	"encoding/json"
	"math"
	"sort"

	"github.com/nvandessel/elisalab/internal/models"
	"gonum.org/v1/gonum/stat"
)

// GroupStat summarizes one replicate group.
type GroupStat struct {
	Group         string  `json:"group" yaml:"group"`
	Level         int     `json:"level,omitempty" yaml:"level,omitempty"`
	Unknown       int     `json:"unknown,omitempty" yaml:"unknown,omitempty"`
	Concentration float64 `json:"concentration" yaml:"concentration"`
	N             int     `json:"n" yaml:"n"`
	Mean          float64 `json:"mean" yaml:"mean"`
	SD            float64 `json:"sd" yaml:"sd"`
	CV            float64 `json:"cv_pct" yaml:"cv_pct"`
}

// GroupStats summarizes the wells of type t per replicate group. Standards
// are ordered by level and unknowns by index; other types by group label.
func GroupStats(wells []models.Well, t models.WellType) []GroupStat {
	byGroup := make(map[string][]models.Well)
	var order []string
	for _, w := range models.Filter(wells, t) {
		g := w.Group()
		if _, ok := byGroup[g]; !ok {
			order = append(order, g)
		}
		byGroup[g] = append(byGroup[g], w)
	}

	stats := make([]GroupStat, 0, len(order))
	for _, g := range order {
		members := byGroup[g]
		signals := models.Signals(members)
		conc := make([]float64, len(members))
		for i, w := range members {
			conc[i] = w.Concentration
		}
		stats = append(stats, GroupStat{
			Group:         g,
			Level:         members[0].Level,
			Unknown:       members[0].Unknown,
			Concentration: stat.Mean(conc, nil),
			N:             len(members),
			Mean:          stat.Mean(signals, nil),
			SD:            SampleSD(signals),
			CV:            CV(signals),
		})
	}

	sort.SliceStable(stats, func(i, j int) bool {
		a, b := stats[i], stats[j]
		if a.Level != b.Level {
			return a.Level < b.Level
		}
		if a.Unknown != b.Unknown {
			return a.Unknown < b.Unknown
		}
		return a.Group < b.Group
	})
	return stats
}

// StandardCurve returns (concentration, mean signal) per standard level,
// ordered by level, ready for curvefit.Fit.
func StandardCurve(wells []models.Well) (conc, means []float64) {
	for _, g := range GroupStats(wells, models.WellTypeStandard) {
		conc = append(conc, g.Concentration)
		means = append(means, g.Mean)
	}
	return conc, means
}

// MaxCV returns the largest defined CV among groups, or NaN if none is defined.
func MaxCV(groups []GroupStat) float64 {
	worst := math.NaN()
	for _, g := range groups {
		if math.IsNaN(g.CV) {
			continue
		}
		if math.IsNaN(worst) || g.CV > worst {
			worst = g.CV
		}
	}
	return worst
}

// MarshalJSON writes an undefined CV as null.
func (g GroupStat) MarshalJSON() ([]byte, error) {
	type alias GroupStat
	return json.Marshal(struct {
		alias
		CV *float64 `json:"cv_pct"`
	}{alias(g), models.Finite(g.CV)})
}
