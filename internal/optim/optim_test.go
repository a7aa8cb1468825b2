package optim_test

import (
	"math/rand/v2"
	"testing"

	"github.com/born-ml/backprop/internal/activation"
	"github.com/born-ml/backprop/internal/dataset"
	"github.com/born-ml/backprop/internal/net"
	"github.com/born-ml/backprop/internal/optim"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// linear is E(p) = g·p with a constant gradient.
type linear struct {
	p, g       []float64
	iterations int
}

func (l *linear) Dimension() int               { return len(l.p) }
func (l *linear) CurrentParameters() []float64 { return append([]float64(nil), l.p...) }
func (l *linear) SetParameters(p []float64)    { copy(l.p, p) }
func (l *linear) Error() float64               { return floats.Dot(l.g, l.p) }
func (l *linear) Gradient() []float64          { return append([]float64(nil), l.g...) }
func (l *linear) Examples() int                { return 1 }
func (l *linear) FinishedIteration()           { l.iterations++ }

// quadratic is E(p) = ½ Σ p².
type quadratic struct {
	p []float64
}

func (q *quadratic) Dimension() int               { return len(q.p) }
func (q *quadratic) CurrentParameters() []float64 { return append([]float64(nil), q.p...) }
func (q *quadratic) SetParameters(p []float64)    { copy(q.p, p) }
func (q *quadratic) Error() float64               { return floats.Dot(q.p, q.p) / 2 }
func (q *quadratic) Gradient() []float64          { return append([]float64(nil), q.p...) }
func (q *quadratic) Examples() int                { return 1 }
func (q *quadratic) FinishedIteration()           {}

// TestSGD_SimpleUpdate tests SGD without momentum.
func TestSGD_SimpleUpdate(t *testing.T) {
	f := &linear{p: []float64{2.0}, g: []float64{1.0}}
	sgd := optim.NewMBSGD(f, optim.MBSGDConfig{LR: 0.1})

	sgd.Step()

	// Expected: x_new = x_old - lr * grad = 2.0 - 0.1 * 1.0 = 1.9
	assert.InDelta(t, 1.9, f.p[0], 1e-12)
	assert.Equal(t, 1, f.iterations)
	assert.Equal(t, 0.1, sgd.GetLR())
}

// TestSGD_WithMomentum tests SGD with momentum.
func TestSGD_WithMomentum(t *testing.T) {
	f := &linear{p: []float64{1.0}, g: []float64{1.0}}
	sgd := optim.NewMBSGD(f, optim.MBSGDConfig{LR: 0.1, Momentum: 0.9})

	// v_1 = 0.9 * 0 + 1.0 = 1.0
	// x_1 = 1.0 - 0.1 * 1.0 = 0.9
	sgd.Step()
	assert.InDelta(t, 0.9, f.p[0], 1e-12)

	// v_2 = 0.9 * 1.0 + 1.0 = 1.9
	// x_2 = 0.9 - 0.1 * 1.9 = 0.71
	sgd.Step()
	assert.InDelta(t, 0.71, f.p[0], 1e-12)
}

func TestSGD_SetLR(t *testing.T) {
	sgd := optim.NewMBSGD(&quadratic{p: []float64{1}}, optim.MBSGDConfig{})
	assert.Equal(t, 0.01, sgd.GetLR())
	sgd.SetLR(0.5)
	assert.Equal(t, 0.5, sgd.GetLR())
}

func TestSGD_Converges(t *testing.T) {
	q := &quadratic{p: []float64{3, -2, 1}}
	sgd := optim.NewMBSGD(q, optim.MBSGDConfig{
		LR:       0.1,
		Momentum: 0.5,
		Stop:     optim.StopCriteria{MaximalIterations: 200},
	})
	sgd.Optimize()
	assert.Equal(t, 200, sgd.Iteration())
	assert.InDeltaSlice(t, []float64{0, 0, 0}, q.p, 1e-6)
}

// TestAdam_FirstStep checks that the first bias-corrected step has size lr.
func TestAdam_FirstStep(t *testing.T) {
	f := &linear{p: []float64{1.0, 1.0}, g: []float64{1.0, -4.0}}
	adam := optim.NewAdam(f, optim.AdamConfig{LR: 0.1})

	adam.Step()

	assert.InDelta(t, 0.9, f.p[0], 1e-6)
	assert.InDelta(t, 1.1, f.p[1], 1e-6)
	assert.Equal(t, 1, adam.GetTimestep())
}

func TestAdam_Defaults(t *testing.T) {
	adam := optim.NewAdam(&quadratic{p: []float64{1}}, optim.AdamConfig{})
	assert.Equal(t, 0.001, adam.GetLR())
	adam.SetLR(0.01)
	assert.Equal(t, 0.01, adam.GetLR())
	assert.Equal(t, 0, adam.GetTimestep())
}

func TestAdam_Converges(t *testing.T) {
	q := &quadratic{p: []float64{3, -2, 1}}
	adam := optim.NewAdam(q, optim.AdamConfig{
		LR:   0.05,
		Stop: optim.StopCriteria{MaximalIterations: 1000},
	})
	adam.Optimize()
	assert.InDeltaSlice(t, []float64{0, 0, 0}, q.p, 1e-2)
}

func TestStopCriteria(t *testing.T) {
	f := &linear{p: []float64{0}, g: []float64{1}}
	sgd := optim.NewMBSGD(f, optim.MBSGDConfig{Stop: optim.StopCriteria{MaximalIterations: 3}})
	assert.True(t, sgd.Step())
	assert.True(t, sgd.Step())
	assert.False(t, sgd.Step())
	assert.Equal(t, 3, f.iterations)

	// Error of the quadratic falls below 1e-3 long before 1000 iterations.
	q := &quadratic{p: []float64{1}}
	sgd = optim.NewMBSGD(q, optim.MBSGDConfig{LR: 0.5, Stop: optim.StopCriteria{MinimalValue: 1e-3}})
	sgd.Optimize()
	assert.LessOrEqual(t, q.Error(), 1e-3)
	assert.Less(t, sgd.Iteration(), 10)

	// Without criteria an optimizer stops after the default iteration count.
	f = &linear{p: []float64{0}, g: []float64{1}}
	optim.NewAdam(f, optim.AdamConfig{}).Optimize()
	assert.Equal(t, optim.DefaultMaximalIterations, f.iterations)
}

// regressionNet builds a small tanh net on y = sin-like targets.
func regressionNet(t *testing.T) *net.Net {
	t.Helper()
	rng := rand.New(rand.NewPCG(1, 2))
	x := mat.NewDense(20, 2, nil)
	y := mat.NewDense(20, 1, nil)
	for i := 0; i < 20; i++ {
		a, b := 2*rng.Float64()-1, 2*rng.Float64()-1
		x.SetRow(i, []float64{a, b})
		y.Set(i, 0, a*b)
	}
	ds, err := dataset.NewDirectStorage(x, y)
	require.NoError(t, err)

	n := net.New(net.WithSeed(3))
	require.NoError(t, n.InputLayer(2))
	require.NoError(t, n.FullyConnectedLayer(8, activation.Tanh, 0.5))
	require.NoError(t, n.OutputLayer(1, activation.Linear, 0.5))
	require.NoError(t, n.TrainingSet(ds))
	return n
}

func TestMBSGD_TrainsNet(t *testing.T) {
	n := regressionNet(t)
	before := n.Error()

	sgd := optim.NewMBSGD(n, optim.MBSGDConfig{
		LR:        0.02,
		Momentum:  0.5,
		BatchSize: 5,
		Stop:      optim.StopCriteria{MaximalIterations: 200},
		Rand:      rand.New(rand.NewPCG(4, 5)),
	})
	sgd.Optimize()

	assert.Less(t, n.Error(), before/2)
	assert.Equal(t, 200, n.Iterations())
}

func TestAdam_TrainsNet(t *testing.T) {
	n := regressionNet(t)
	before := n.Error()

	adam := optim.NewAdam(n, optim.AdamConfig{
		LR:        0.01,
		BatchSize: 4,
		Stop:      optim.StopCriteria{MaximalIterations: 200},
		Rand:      rand.New(rand.NewPCG(6, 7)),
	})
	adam.Optimize()

	assert.Less(t, n.Error(), before/2)
	// Five mini-batches per iteration.
	assert.Equal(t, 5*200, adam.GetTimestep())
}
