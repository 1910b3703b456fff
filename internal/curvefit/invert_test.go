package curvefit

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInvert(t *testing.T) {
	tests := []struct {
		name    string
		signal  float64
		params  Params
		want    float64
		wantErr error
	}{
		{"linear", 2.5, Linear(2, 0.5), 1.0, nil},
		{"linear negative slope", 0.5, Linear(-1, 1.5), 1.0, nil},
		{"linear zero slope", 1, Linear(0, 1), 0, ErrZeroSlope},
		{"log", 2, LogLinear(1, 0), 100, nil},
		{"log zero slope", 2, LogLinear(0, 0), 0, ErrZeroSlope},
		{"log overflow", 1e6, LogLinear(1e-3, 0), 0, ErrOutOfRange},
		{"4pl midpoint", 1.0, FourPL(0, 2, 7, 1.3), 7, nil},
		{"4pl above top", 2.1, FourPL(0, 2, 7, 1.3), 0, ErrOutOfRange},
		{"4pl at bottom", 0, FourPL(0, 2, 7, 1.3), 0, ErrOutOfRange},
		{"unknown kind", 1, Params{Kind: "cubic"}, 0, ErrUnknownKind},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Invert(tt.signal, tt.params)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.True(t, math.IsNaN(got))
				return
			}
			require.NoError(t, err)
			assert.InEpsilon(t, tt.want, got, 1e-9)
		})
	}
}

func TestInvertAll(t *testing.T) {
	p := FourPL(0, 2, 7, 1.3)
	conc, errs := InvertAll([]float64{1.0, 5.0}, p)
	require.Len(t, conc, 2)
	require.Len(t, errs, 2)
	assert.NoError(t, errs[0])
	assert.InEpsilon(t, 7.0, conc[0], 1e-9)
	assert.ErrorIs(t, errs[1], ErrOutOfRange)
	assert.True(t, math.IsNaN(conc[1]))
}

func TestPredictInvertRoundTrip(t *testing.T) {
	for _, p := range []Params{Linear(0.8, 0.1), LogLinear(0.6, 0.9), FourPL(0.05, 2.5, 5, 1.2)} {
		t.Run(p.Kind.String(), func(t *testing.T) {
			for _, c := range []float64{0.5, 2, 8, 40} {
				got, err := Invert(p.Predict(c), p)
				require.NoError(t, err)
				assert.InEpsilon(t, c, got, 1e-6)
			}
		})
	}
}

func TestParamsString(t *testing.T) {
	assert.Contains(t, Linear(1, 2).String(), "linear")
	assert.Contains(t, FourPL(0, 1, 2, 1).String(), "ec50=2")
}
