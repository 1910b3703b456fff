package errinject

import (
	"math"
	"testing"

	"github.com/nvandessel/elisalab/internal/curvefit"
	"github.com/nvandessel/elisalab/internal/generator"
	"github.com/nvandessel/elisalab/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rawDataset(t *testing.T) generator.Dataset {
	t.Helper()
	d, err := generator.Generate(generator.Config{
		Levels:     5,
		MinConc:    0.1,
		MaxConc:    100,
		Replicates: 3,
		Background: 0.05,
		NoiseSD:    0.02,
		Truth:      curvefit.FourPL(0.05, 2.5, 5, 1.2),
	}, 42)
	require.NoError(t, err)
	return d
}

func TestApply_EmptyConfigIsIdentity(t *testing.T) {
	raw := rawDataset(t)
	out, err := Apply(raw, Config{})
	require.NoError(t, err)
	assert.Equal(t, raw, out)
}

func TestApply_DoesNotMutateInput(t *testing.T) {
	raw := rawDataset(t)
	before := raw.Clone()

	_, err := Apply(raw, Config{
		ReagentFailure: &ReagentFailure{Scale: 0.5},
		Contamination:  &Contamination{Add: 0.2},
		WrongDilution:  &WrongDilution{},
	})
	require.NoError(t, err)
	assert.Equal(t, before, raw)
}

func TestApply_ReagentThenContamination(t *testing.T) {
	raw := rawDataset(t)

	out, err := Apply(raw, Config{
		ReagentFailure: &ReagentFailure{Scale: 0.6},
		Contamination:  &Contamination{Add: 0.15},
	})
	require.NoError(t, err)

	for i, w := range out.Wells {
		orig := raw.Wells[i].Signal
		if w.Type == models.WellTypeBlank {
			assert.InDelta(t, orig*1.0+0.15, w.Signal, 1e-12, "blank %s", w.Position)
		} else {
			assert.InDelta(t, orig*0.6+0.15, w.Signal, 1e-12, "%s %s", w.Group(), w.Position)
		}
	}
}

func TestApply_PipettingBias(t *testing.T) {
	raw := rawDataset(t)
	out, err := Apply(raw, Config{PipettingBias: &PipettingBias{Level: 2, Fraction: 0.2}})
	require.NoError(t, err)

	for i, w := range out.Wells {
		want := raw.Wells[i].Signal
		if w.Type == models.WellTypeStandard && w.Level == 2 {
			want *= 1.2
		}
		assert.InDelta(t, want, w.Signal, 1e-12)
	}
}

func TestApply_Outlier(t *testing.T) {
	raw := rawDataset(t)
	out, err := Apply(raw, Config{Outlier: &Outlier{Level: 3, Replicate: 1, Amount: 1.0}})
	require.NoError(t, err)

	changed := 0
	for i, w := range out.Wells {
		if w.Signal != raw.Wells[i].Signal {
			changed++
			assert.Equal(t, models.WellTypeStandard, w.Type)
			assert.Equal(t, 3, w.Level)
			assert.Equal(t, 1, w.Replicate)
			assert.InDelta(t, raw.Wells[i].Signal+1.0, w.Signal, 1e-12)
		}
	}
	assert.Equal(t, 1, changed)
}

func TestApply_WrongDilution(t *testing.T) {
	raw := rawDataset(t)
	out, err := Apply(raw, Config{WrongDilution: &WrongDilution{}})
	require.NoError(t, err)

	cfg := raw.Config
	diluted := cfg.Truth.Predict(raw.UnknownConcentrations[0]/10) + cfg.Background
	for i, w := range out.Wells {
		switch {
		case w.Type == models.WellTypeUnknown && w.Unknown == 1:
			assert.InDelta(t, diluted, w.Signal, 5*cfg.NoiseSD)
		default:
			assert.Equal(t, raw.Wells[i].Signal, w.Signal)
		}
	}

	again, err := Apply(raw, Config{WrongDilution: &WrongDilution{}})
	require.NoError(t, err)
	assert.Equal(t, out, again, "re-sampled noise is reproducible")
}

func TestApply_AllComposeInOrder(t *testing.T) {
	raw := rawDataset(t)
	cfg := Config{
		PipettingBias:  &PipettingBias{Level: 1, Fraction: -0.3},
		ReagentFailure: &ReagentFailure{Scale: 0.5},
		Contamination:  &Contamination{Add: 0.1},
		Outlier:        &Outlier{Level: 1, Replicate: 0, Amount: 0.7},
	}
	out, err := Apply(raw, cfg)
	require.NoError(t, err)

	for i, w := range out.Wells {
		orig := raw.Wells[i].Signal
		var want float64
		switch {
		case w.Type == models.WellTypeBlank:
			want = orig + 0.1
		case w.Type == models.WellTypeStandard && w.Level == 1:
			want = orig*0.7*0.5 + 0.1
			if w.Replicate == 0 {
				want += 0.7
			}
		default:
			want = orig*0.5 + 0.1
		}
		assert.InDelta(t, want, w.Signal, 1e-12, "%s", w.Position)
	}

	assert.Equal(t, []string{"pipetting_bias", "reagent_failure", "contamination", "outlier"}, cfg.Active())
}

func TestApply_InvalidConfig(t *testing.T) {
	raw := rawDataset(t)
	tests := []struct {
		name string
		cfg  Config
	}{
		{"bias level zero", Config{PipettingBias: &PipettingBias{Level: 0, Fraction: 0.1}}},
		{"bias level too high", Config{PipettingBias: &PipettingBias{Level: 6, Fraction: 0.1}}},
		{"bias fraction too large", Config{PipettingBias: &PipettingBias{Level: 1, Fraction: 0.6}}},
		{"zero reagent scale", Config{ReagentFailure: &ReagentFailure{Scale: 0}}},
		{"reagent scale above one", Config{ReagentFailure: &ReagentFailure{Scale: 1.2}}},
		{"outlier replicate out of range", Config{Outlier: &Outlier{Level: 1, Replicate: 3, Amount: 1}}},
		{"outlier level out of range", Config{Outlier: &Outlier{Level: 9, Replicate: 0, Amount: 1}}},
		{"NaN bias fraction", Config{PipettingBias: &PipettingBias{Level: 1, Fraction: math.NaN()}}},
		{"NaN reagent scale", Config{ReagentFailure: &ReagentFailure{Scale: math.NaN()}}},
		{"infinite contamination", Config{Contamination: &Contamination{Add: math.Inf(1)}}},
		{"NaN outlier amount", Config{Outlier: &Outlier{Level: 1, Replicate: 0, Amount: math.NaN()}}},
		{"infinite outlier amount", Config{Outlier: &Outlier{Level: 1, Replicate: 0, Amount: math.Inf(-1)}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Apply(raw, tt.cfg)
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}
