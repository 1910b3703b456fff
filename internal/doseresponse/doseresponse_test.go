package doseresponse

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluate(t *testing.T) {
	p := Params{Bottom: 0.05, Top: 2.5, EC50: 5, Hill: 1.2}

	t.Run("midpoint at ec50", func(t *testing.T) {
		assert.InDelta(t, (p.Bottom+p.Top)/2, Evaluate(p.EC50, p), 1e-12)
	})

	t.Run("zero concentration clamps to bottom", func(t *testing.T) {
		got := Evaluate(0, p)
		assert.False(t, math.IsNaN(got))
		assert.InDelta(t, p.Bottom, got, 1e-9)
	})

	t.Run("negative concentration clamps", func(t *testing.T) {
		assert.Equal(t, Evaluate(0, p), Evaluate(-3, p))
	})

	t.Run("monotonic increasing", func(t *testing.T) {
		prev := Evaluate(0.001, p)
		for _, x := range []float64{0.01, 0.1, 1, 10, 100, 1000} {
			cur := Evaluate(x, p)
			assert.Greater(t, cur, prev, "x=%g", x)
			prev = cur
		}
	})

	t.Run("approaches top", func(t *testing.T) {
		assert.InDelta(t, p.Top, Evaluate(1e9, p), 1e-6)
	})
}

func TestCurve(t *testing.T) {
	p := Params{Bottom: 0, Top: 1, EC50: 1, Hill: 1}
	got := Curve([]float64{1, 3}, p)
	require.Len(t, got, 2)
	assert.InDelta(t, 0.5, got[0], 1e-12)
	assert.InDelta(t, 0.75, got[1], 1e-12)
}

func TestInvert_RoundTrip(t *testing.T) {
	cases := []struct {
		name string
		p    Params
	}{
		{"typical assay", Params{Bottom: 0.05, Top: 2.5, EC50: 5, Hill: 1.2}},
		{"shallow", Params{Bottom: 0.1, Top: 1.8, EC50: 40, Hill: 0.5}},
		{"steep", Params{Bottom: 0, Top: 3, EC50: 0.2, Hill: 3.5}},
		{"negative bottom", Params{Bottom: -0.2, Top: 0.9, EC50: 12, Hill: 1}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			for _, factor := range []float64{0.05, 0.3, 1, 3, 20} {
				x := tc.p.EC50 * factor
				y := Evaluate(x, tc.p)
				got, err := Invert(y, tc.p)
				require.NoError(t, err, "x=%g", x)
				assert.InEpsilon(t, x, got, 1e-6, "x=%g", x)
			}
		})
	}
}

func TestInvert_OutOfRange(t *testing.T) {
	p := Params{Bottom: 0.05, Top: 2.5, EC50: 5, Hill: 1.2}

	for _, signal := range []float64{p.Bottom, p.Top, 0, 3, -1, math.NaN()} {
		got, err := Invert(signal, p)
		assert.ErrorIs(t, err, ErrOutOfRange, "signal=%g", signal)
		assert.True(t, math.IsNaN(got))
	}
}

func TestInvert_InvalidParams(t *testing.T) {
	tests := []struct {
		name string
		p    Params
	}{
		{"zero ec50", Params{Bottom: 0, Top: 1, EC50: 0, Hill: 1}},
		{"zero hill", Params{Bottom: 0, Top: 1, EC50: 1, Hill: 0}},
		{"flat", Params{Bottom: 1, Top: 1, EC50: 1, Hill: 1}},
		{"inverted plateaus", Params{Bottom: 2, Top: 1, EC50: 1, Hill: 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Invert(0.5, tt.p)
			assert.ErrorIs(t, err, ErrInvalidParams)
		})
	}
}
