package net

import (
	"math/rand/v2"
	"testing"

	"github.com/born-ml/backprop/internal/activation"
	"github.com/born-ml/backprop/internal/dataset"
	"github.com/born-ml/backprop/internal/gradcheck"
	"github.com/born-ml/backprop/internal/layer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func randomSet(t *testing.T, rng *rand.Rand, samples, inputs, outputs int) *dataset.DirectStorage {
	t.Helper()
	x := uniform(rng, samples, inputs)
	y := uniform(rng, samples, outputs)
	ds, err := dataset.NewDirectStorage(x, y)
	require.NoError(t, err)
	return ds
}

func mlp(t *testing.T, seed int64, opts ...Option) *Net {
	t.Helper()
	n := New(append([]Option{WithSeed(seed)}, opts...)...)
	require.NoError(t, n.InputLayer(3))
	require.NoError(t, n.FullyConnectedLayer(5, activation.Tanh, 0.5))
	require.NoError(t, n.OutputLayer(2, activation.Linear, 0.5))
	return n
}

func TestNet_StateMachine(t *testing.T) {
	n := New(WithSeed(1))
	assert.Equal(t, 0, n.Layers())
	assert.ErrorIs(t, n.FullyConnectedLayer(2, activation.Tanh, 0.1), ErrEmpty)
	assert.ErrorIs(t, n.TrainingSet(randomSet(t, rand.New(rand.NewPCG(1, 2)), 2, 3, 2)), ErrEmpty)
	assert.Panics(t, func() { n.Predict(mat.NewDense(1, 3, nil)) })

	require.NoError(t, n.InputLayer(3))
	assert.ErrorIs(t, n.InputLayer(3), ErrShapeMismatch)
	require.NoError(t, n.FullyConnectedLayer(2, activation.Tanh, 0.1))
	assert.False(t, n.Finalized())
	assert.Panics(t, func() { n.Error() })
	assert.Panics(t, func() { n.Gradient() })

	rng := rand.New(rand.NewPCG(3, 4))
	assert.ErrorIs(t, n.TrainingSet(randomSet(t, rng, 2, 4, 2)), ErrShapeMismatch)
	assert.ErrorIs(t, n.TrainingSet(randomSet(t, rng, 2, 3, 1)), ErrShapeMismatch)
	require.NoError(t, n.TrainingSet(randomSet(t, rng, 2, 3, 2)))
	assert.True(t, n.Finalized())
	assert.Equal(t, 2, n.Examples())

	assert.ErrorIs(t, n.FullyConnectedLayer(2, activation.Tanh, 0.1), ErrFinalized)
	assert.ErrorIs(t, n.InputLayer(3), ErrFinalized)
	fc, err := layer.NewFullyConnected(layer.Shape(2), layer.FullyConnectedConfig{Units: 1})
	require.NoError(t, err)
	assert.ErrorIs(t, n.Add(fc), ErrFinalized)
}

func TestNet_AddShapeMismatch(t *testing.T) {
	n := New(WithSeed(1))
	require.NoError(t, n.InputLayer(1, 4, 4))

	fc, err := layer.NewFullyConnected(layer.Shape(15), layer.FullyConnectedConfig{Units: 2})
	require.NoError(t, err)
	assert.ErrorIs(t, n.Add(fc), ErrShapeMismatch)
	assert.Equal(t, 1, n.Layers())

	assert.ErrorIs(t, n.MaxPoolingLayer(3, 3), layer.ErrIndivisiblePooling)
	assert.ErrorIs(t, n.CompressedLayer(2, 2, activation.Tanh, "wavelet", 0.1), layer.ErrUnknownCompression)
}

func TestNet_OutputInfoChain(t *testing.T) {
	n := New(WithSeed(1))
	require.NoError(t, n.InputLayer(1, 6, 6))
	require.NoError(t, n.ConvolutionalLayer(4, 3, 3, activation.Tanh, 0.5))
	assert.Equal(t, []int{4, 4, 4}, n.OutputInfo().Dimensions)
	require.NoError(t, n.MaxPoolingLayer(2, 2))
	assert.Equal(t, []int{4, 2, 2}, n.OutputInfo().Dimensions)
	require.NoError(t, n.DropoutLayer(0.5))
	assert.Equal(t, []int{4, 2, 2}, n.OutputInfo().Dimensions)
	require.NoError(t, n.OutputLayer(3, activation.Softmax, 0.5))
	assert.Equal(t, []int{3}, n.OutputInfo().Dimensions)
	assert.Equal(t, CrossEntropy, n.ErrorFunction())

	// 4 kernels of 3x3 + 4 biases, dense 16*3 + 3.
	assert.Equal(t, 4*9+4+16*3+3, n.Dimension())
}

func TestNet_Seeded(t *testing.T) {
	a := mlp(t, 7)
	b := mlp(t, 7)
	c := mlp(t, 8)
	assert.Equal(t, a.CurrentParameters(), b.CurrentParameters())
	assert.NotEqual(t, a.CurrentParameters(), c.CurrentParameters())
}

func TestNet_ParameterRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewPCG(5, 6))
	n := mlp(t, 1)
	require.NoError(t, n.TrainingSet(randomSet(t, rng, 4, 3, 2)))

	before := n.Error()
	gradient := n.Gradient()
	n.SetParameters(n.CurrentParameters())
	assert.Equal(t, before, n.Error())
	assert.Equal(t, gradient, n.Gradient())

	p := make([]float64, n.Dimension())
	for i := range p {
		p[i] = rng.NormFloat64()
	}
	n.SetParameters(p)
	assert.Equal(t, p, n.CurrentParameters())
	assert.Panics(t, func() { n.SetParameters(p[1:]) })
}

func TestNet_ForwardMatchesError(t *testing.T) {
	rng := rand.New(rand.NewPCG(9, 9))
	n := mlp(t, 2)
	ds := randomSet(t, rng, 5, 3, 2)
	require.NoError(t, n.TrainingSet(ds))

	y, loss := n.Forward(dataset.Indices(5), false)
	assert.InDelta(t, n.Error(), loss, 1e-12)
	r, c := y.Dims()
	assert.Equal(t, 5, r)
	assert.Equal(t, 2, c)

	x, _ := dataset.Batch(ds, dataset.Indices(5))
	assert.True(t, mat.EqualApprox(y, n.Predict(x), 1e-12))

	// Loss is summed over samples.
	_, l0 := n.Forward([]int{0, 1}, false)
	_, l1 := n.Forward([]int{2, 3, 4}, false)
	assert.InDelta(t, loss, l0+l1, 1e-12)
}

func TestNet_GradientCheck(t *testing.T) {
	rng := rand.New(rand.NewPCG(11, 12))
	n := mlp(t, 3, WithRegularization(layer.Regularization{L1: 0.01, L2: 0.1}))
	require.NoError(t, n.TrainingSet(randomSet(t, rng, 4, 3, 2)))

	est := gradcheck.ParameterGradient(n, gradcheck.DefaultSettings())
	assert.Less(t, gradcheck.Compare(n.Gradient(), est), 1e-6)

	loss, g := n.ErrorGradient(dataset.Indices(4))
	assert.InDelta(t, n.Error(), loss, 1e-12)
	assert.Equal(t, n.Gradient(), g)
}

func TestNet_CrossEntropyGradientCheck(t *testing.T) {
	rng := rand.New(rand.NewPCG(13, 14))
	n := New(WithSeed(4))
	require.NoError(t, n.InputLayer(4))
	require.NoError(t, n.FullyConnectedLayer(6, activation.Logistic, 0.5))
	require.NoError(t, n.OutputLayer(3, activation.Softmax, 0.5))

	x := uniform(rng, 3, 4)
	y := mat.NewDense(3, 3, []float64{1, 0, 0, 0, 0, 1, 0, 1, 0})
	ds, err := dataset.NewDirectStorage(x, y)
	require.NoError(t, err)
	require.NoError(t, n.TrainingSet(ds))

	est := gradcheck.ParameterGradient(n, gradcheck.DefaultSettings())
	assert.Less(t, gradcheck.Compare(n.Gradient(), est), 1e-6)
}

func TestNet_SoftmaxPairing(t *testing.T) {
	tests := []struct {
		name  string
		opts  []Option
		build func(n *Net) error
		valid bool
	}{
		{"cross entropy without softmax", []Option{WithErrorFunction(CrossEntropy)}, func(n *Net) error {
			return n.OutputLayer(2, activation.Logistic, 0.5)
		}, false},
		{"hidden softmax", nil, func(n *Net) error {
			if err := n.FullyConnectedLayer(4, activation.Softmax, 0.5); err != nil {
				return err
			}
			return n.OutputLayer(2, activation.Linear, 0.5)
		}, false},
		{"softmax with sse", nil, func(n *Net) error {
			return n.FullyConnectedLayer(2, activation.Softmax, 0.5)
		}, false},
		{"softmax output", nil, func(n *Net) error {
			return n.OutputLayer(2, activation.Softmax, 0.5)
		}, true},
		{"softmax with explicit cross entropy", []Option{WithErrorFunction(CrossEntropy)}, func(n *Net) error {
			return n.FullyConnectedLayer(2, activation.Softmax, 0.5)
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := New(append([]Option{WithSeed(1)}, tt.opts...)...)
			require.NoError(t, n.InputLayer(3))
			require.NoError(t, tt.build(n))

			err := n.TrainingSet(randomSet(t, rand.New(rand.NewPCG(1, 1)), 2, 3, 2))
			if tt.valid {
				require.NoError(t, err)
				assert.True(t, n.Finalized())
				return
			}
			assert.ErrorIs(t, err, layer.ErrInvalidConfig)
			assert.False(t, n.Finalized())
		})
	}
}

func TestNet_SetErrorFunction(t *testing.T) {
	n := New(WithSeed(1))
	require.NoError(t, n.InputLayer(3))
	require.NoError(t, n.OutputLayer(2, activation.Softmax, 0.5))
	require.NoError(t, n.SetErrorFunction(SSE))
	require.NoError(t, n.SetErrorFunction(CrossEntropy))
	require.NoError(t, n.TrainingSet(randomSet(t, rand.New(rand.NewPCG(2, 2)), 2, 3, 2)))

	assert.ErrorIs(t, n.SetErrorFunction(SSE), layer.ErrInvalidConfig)
	assert.Equal(t, CrossEntropy, n.ErrorFunction())
}

func dropoutNet(t *testing.T, opts ...Option) *Net {
	t.Helper()
	n := New(append([]Option{WithSeed(6)}, opts...)...)
	require.NoError(t, n.InputLayer(4))
	require.NoError(t, n.FullyConnectedLayer(6, activation.Tanh, 0.5))
	require.NoError(t, n.DropoutLayer(0.5))
	require.NoError(t, n.OutputLayer(2, activation.Linear, 0.5))
	require.NoError(t, n.TrainingSet(randomSet(t, rand.New(rand.NewPCG(15, 16)), 3, 4, 2)))
	return n
}

func TestNet_DropoutGradientCheck(t *testing.T) {
	n := dropoutNet(t)

	g := n.Gradient()
	assert.Equal(t, g, n.Gradient())
	est := gradcheck.ParameterGradient(n, gradcheck.DefaultSettings())
	assert.Less(t, gradcheck.Compare(g, est), 1e-6)

	// Training forward passes still sample masks on request.
	a, _ := n.Forward(dataset.Indices(3), true)
	b, _ := n.Forward(dataset.Indices(3), true)
	assert.False(t, mat.Equal(a, b))
}

func TestNet_WithDropout(t *testing.T) {
	n := dropoutNet(t, WithDropout(true))
	assert.NotEqual(t, n.Gradient(), n.Gradient())
}

// chain builds the multilayer net used to check backpropagation through
// every kind of layer.
func chain(t *testing.T) *Net {
	t.Helper()
	n := New(WithSeed(42))
	require.NoError(t, n.InputLayer(1, 6, 6))
	require.NoError(t, n.ConvolutionalLayer(4, 3, 3, activation.Tanh, 0.5))
	require.NoError(t, n.LocalResponseNormalizationLayer(2, 3, 0.01, 0.75))
	require.NoError(t, n.SubsamplingLayer(2, 2, activation.Tanh, 0.5))
	require.NoError(t, n.FullyConnectedLayer(10, activation.Tanh, 0.5))
	require.NoError(t, n.ExtremeLayer(10, activation.Tanh, 0.05))
	require.NoError(t, n.OutputLayer(3, activation.Linear, 0.5))
	return n
}

func TestNet_ChainGradientCheck(t *testing.T) {
	rng := rand.New(rand.NewPCG(21, 22))
	n := chain(t)
	ds := randomSet(t, rng, 2, 36, 3)
	require.NoError(t, n.TrainingSet(ds))

	est := gradcheck.ParameterGradient(n, gradcheck.DefaultSettings())
	assert.Less(t, gradcheck.Compare(n.Gradient(), est), 1e-4)

	x := mat.NewDense(1, 36, ds.Instance(0))
	target := mat.NewDense(1, 3, ds.Target(0))
	analytic := n.InputGradient(x, target)
	estimate := gradcheck.InputGradient(ds.Instance(0), ds.Target(0), n, gradcheck.DefaultSettings())
	assert.Less(t, gradcheck.Compare(analytic.RawRowView(0), estimate), 1e-4)
}

func TestNet_IterationHook(t *testing.T) {
	var seen []int
	n := mlp(t, 1, WithIterationHook(func(i int) { seen = append(seen, i) }))
	n.FinishedIteration()
	n.FinishedIteration()
	assert.Equal(t, []int{1, 2}, seen)
	assert.Equal(t, 2, n.Iterations())
}

func TestLayerAdapter(t *testing.T) {
	rng := rand.New(rand.NewPCG(31, 32))
	fc, err := layer.NewFullyConnected(layer.Shape(3), layer.FullyConnectedConfig{
		Units:      2,
		Bias:       true,
		Activation: activation.Tanh,
		StdDev:     0.5,
	})
	require.NoError(t, err)

	a, err := NewLayerAdapter(fc, rng)
	require.NoError(t, err)
	assert.Equal(t, 8, a.Dimension())
	assert.Equal(t, 1, a.Examples())

	est := gradcheck.ParameterGradient(a, gradcheck.DefaultSettings())
	assert.Less(t, gradcheck.Compare(a.Gradient(), est), 1e-8)

	in := gradcheck.InputGradient(a.Input().RawRowView(0), a.Target().RawRowView(0), a, gradcheck.DefaultSettings())
	assert.Less(t, gradcheck.Compare(a.InputGradient().RawRowView(0), in), 1e-8)

	assert.Panics(t, func() { a.TrainingSet(mat.NewDense(1, 2, nil), mat.NewDense(1, 2, nil)) })
}
