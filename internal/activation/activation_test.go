package activation

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestApply_KnownValues(t *testing.T) {
	a := mat.NewDense(1, 3, []float64{-1, 0, 2})

	tests := []struct {
		name     string
		f        Function
		expected []float64
	}{
		{"Logistic", Logistic, []float64{1 / (1 + math.E), 0.5, 1 / (1 + math.Exp(-2))}},
		{"Tanh", Tanh, []float64{math.Tanh(-1), 0, math.Tanh(2)}},
		{"ScaledTanh", ScaledTanh, []float64{1.7159 * math.Tanh(-2.0/3.0), 0, 1.7159 * math.Tanh(4.0/3.0)}},
		{"Rectifier", Rectifier, []float64{0, 0, 2}},
		{"Linear", Linear, []float64{-1, 0, 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			y := mat.NewDense(1, 3, nil)
			Apply(tt.f, a, y)
			for j, exp := range tt.expected {
				assert.InDelta(t, exp, y.At(0, j), 1e-12, "index %d", j)
			}
		})
	}
}

func TestApply_SoftmaxRowsSumToOne(t *testing.T) {
	a := mat.NewDense(2, 3, []float64{1, 2, 3, 1000, 1000, 1000})
	y := mat.NewDense(2, 3, nil)
	Apply(Softmax, a, y)

	for n := 0; n < 2; n++ {
		row := y.RawRowView(n)
		assert.InDelta(t, 1.0, row[0]+row[1]+row[2], 1e-12)
	}
	assert.InDelta(t, 1.0/3.0, y.At(1, 0), 1e-12)
	assert.Greater(t, y.At(0, 2), y.At(0, 1))
}

// TestDerivative_MatchesFiniteDifference checks f'(a) computed from y against
// a centered difference of f.
func TestDerivative_MatchesFiniteDifference(t *testing.T) {
	points := []float64{-1.3, -0.2, 0.4, 1.7}
	eps := 1e-6

	for _, f := range []Function{Logistic, Tanh, ScaledTanh, Rectifier, Linear} {
		t.Run(f.String(), func(t *testing.T) {
			a := mat.NewDense(1, len(points), points)
			y := mat.NewDense(1, len(points), nil)
			yd := mat.NewDense(1, len(points), nil)
			Apply(f, a, y)
			Derivative(f, y, yd)

			plus := mat.NewDense(1, len(points), nil)
			minus := mat.NewDense(1, len(points), nil)
			shifted := mat.NewDense(1, len(points), nil)
			shifted.Apply(func(_, _ int, v float64) float64 { return v + eps }, a)
			Apply(f, shifted, plus)
			shifted.Apply(func(_, _ int, v float64) float64 { return v - eps }, a)
			Apply(f, shifted, minus)

			for j := range points {
				estimate := (plus.At(0, j) - minus.At(0, j)) / (2 * eps)
				assert.InDelta(t, estimate, yd.At(0, j), 1e-6, "point %v", points[j])
			}
		})
	}
}

func TestParse(t *testing.T) {
	for f, name := range names {
		parsed, err := Parse(name)
		require.NoError(t, err)
		assert.Equal(t, f, parsed)
	}

	parsed, err := Parse(" TANH ")
	require.NoError(t, err)
	assert.Equal(t, Tanh, parsed)

	_, err = Parse("gelu")
	assert.Error(t, err)
}
