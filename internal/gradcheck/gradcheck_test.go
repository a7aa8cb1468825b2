package gradcheck

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/mat"
)

// quadratic is E(p) = Σ c[i] p[i]² + sin(p[0]).
type quadratic struct {
	p, c []float64
}

func (q *quadratic) Dimension() int               { return len(q.p) }
func (q *quadratic) CurrentParameters() []float64 { return append([]float64(nil), q.p...) }
func (q *quadratic) SetParameters(p []float64)    { copy(q.p, p) }
func (q *quadratic) Error() float64 {
	e := math.Sin(q.p[0])
	for i, v := range q.p {
		e += q.c[i] * v * v
	}
	return e
}

func (q *quadratic) gradient() []float64 {
	g := make([]float64, len(q.p))
	for i, v := range q.p {
		g[i] = 2 * q.c[i] * v
	}
	g[0] += math.Cos(q.p[0])
	return g
}

func TestParameterGradient(t *testing.T) {
	q := &quadratic{p: []float64{0.3, -1.5, 2, 40}, c: []float64{1, 0.5, -2, 0.01}}
	before := q.CurrentParameters()

	est := ParameterGradient(q, DefaultSettings())
	assert.InDeltaSlice(t, q.gradient(), est, 1e-6)
	assert.Equal(t, before, q.p, "parameters must be restored")

	rel := ParameterGradient(q, Settings{Step: 1e-6, Relative: true})
	assert.InDeltaSlice(t, q.gradient(), rel, 1e-5)
	assert.Less(t, Compare(q.gradient(), est), 1e-6)
}

func TestParameterDerivative(t *testing.T) {
	q := &quadratic{p: []float64{1, 2}, c: []float64{1, 3}}
	assert.InDelta(t, 12.0, ParameterDerivative(q, 1, DefaultSettings()), 1e-6)
	assert.Equal(t, []float64{1, 2}, q.p)

	assert.Panics(t, func() { ParameterDerivative(q, 2, DefaultSettings()) })
	assert.Panics(t, func() { ParameterDerivative(q, -1, DefaultSettings()) })
}

// product is L(x, t) = (Π x - t)² / 2.
type product struct{}

func (product) InputError(x, t *mat.Dense) float64 {
	p := 1.0
	for _, v := range x.RawRowView(0) {
		p *= v
	}
	d := p - t.At(0, 0)
	return d * d / 2
}

func TestInputGradient(t *testing.T) {
	x := []float64{0.5, -2, 3}
	target := []float64{1}

	got := InputGradient(x, target, product{}, DefaultSettings())

	p := x[0] * x[1] * x[2]
	want := []float64{
		(p - 1) * x[1] * x[2],
		(p - 1) * x[0] * x[2],
		(p - 1) * x[0] * x[1],
	}
	assert.InDeltaSlice(t, want, got, 1e-6)
	assert.Equal(t, []float64{0.5, -2, 3}, x, "input must not be modified")
}

func TestCompare(t *testing.T) {
	assert.Equal(t, 0.0, Compare(nil, nil))
	assert.InDelta(t, 0.5, Compare([]float64{1, 2, 3}, []float64{1, 2.5, 2.9}), 1e-12)
	assert.Panics(t, func() { Compare([]float64{1}, []float64{1, 2}) })
}
