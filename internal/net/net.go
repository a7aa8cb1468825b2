// Package net chains layers into a feedforward network trained by
// backpropagation.
//
// A Net moves through three states:
//   - empty: no layers
//   - building: layers are appended with Add or the builder shorthands
//   - finalized: a training set is bound and no more layers can be added
//
// Error, Gradient and ErrorGradient evaluate the bound training set and are
// only valid in the finalized state. Unless WithDropout is given they use
// inference behavior, so Gradient is the derivative of Error. Together with Dimension,
// CurrentParameters, SetParameters, Examples and FinishedIteration they make a
// Net usable by the optimizers in package optim.
package net

import (
	"fmt"
	"math/rand/v2"

	"github.com/born-ml/backprop/internal/activation"
	"github.com/born-ml/backprop/internal/dataset"
	"github.com/born-ml/backprop/internal/layer"
	"gonum.org/v1/gonum/mat"
)

type state int

const (
	stateEmpty state = iota
	stateBuilding
	stateFinalized
)

// Option configures a Net.
type Option func(*Net)

// WithSeed seeds the net's random generator, making initialization and
// dropout masks reproducible.
func WithSeed(seed int64) Option {
	return func(n *Net) {
		n.rng = rand.New(rand.NewPCG(uint64(seed), uint64(seed)>>1|1))
	}
}

// WithRand makes the net draw from rng.
func WithRand(rng *rand.Rand) Option {
	return func(n *Net) {
		n.rng = rng
	}
}

// WithRegularization sets the regularization applied to layers created by
// the builder shorthands.
func WithRegularization(r layer.Regularization) Option {
	return func(n *Net) {
		n.regularization = r
	}
}

// WithErrorFunction selects the loss. The default is SSE.
func WithErrorFunction(f ErrorFunction) Option {
	return func(n *Net) {
		n.errorFunction = f
	}
}

// WithDropout makes ErrorGradient and Gradient run dropout layers with
// training behavior, sampling a new mask on every call. It is off by default.
func WithDropout(enabled bool) Option {
	return func(n *Net) {
		n.dropout = enabled
	}
}

// WithIterationHook registers fn to be called by FinishedIteration with the
// number of finished iterations.
func WithIterationHook(fn func(iteration int)) Option {
	return func(n *Net) {
		n.onIteration = fn
	}
}

// Net is an ordered chain of layers.
//
// Example:
//
//	n := net.New(net.WithSeed(1))
//	_ = n.InputLayer(2)
//	_ = n.FullyConnectedLayer(8, activation.Tanh, 0.5)
//	_ = n.OutputLayer(1, activation.Linear, 0.5)
//	_ = n.TrainingSet(ds)
//	loss, grad := n.ErrorGradient([]int{0, 1})
type Net struct {
	layers []layer.Layer
	infos  []layer.OutputInfo
	reg    *layer.Registry
	rng    *rand.Rand

	regularization layer.Regularization
	errorFunction  ErrorFunction
	dropout        bool

	ds          dataset.DataSet
	state       state
	iterations  int
	onIteration func(int)
}

// New creates an empty net.
func New(opts ...Option) *Net {
	n := &Net{reg: layer.NewRegistry()}
	for _, opt := range opts {
		opt(n)
	}
	if n.rng == nil {
		n.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return n
}

// Add appends l, which must have been constructed for the net's current
// output shape, and initializes its parameters.
func (n *Net) Add(l layer.Layer) error {
	if n.state == stateFinalized {
		return fmt.Errorf("net: add layer %d: %w", len(n.layers), ErrFinalized)
	}
	if n.state == stateBuilding {
		if want := n.OutputInfo(); !l.InputInfo().Equal(want) {
			return fmt.Errorf("net: add layer %d: %w: got %v, want %v",
				len(n.layers), ErrShapeMismatch, l.InputInfo(), want)
		}
	}
	n.reg.SetOwner(len(n.layers))
	info, err := l.Initialize(n.reg, n.rng)
	if err != nil {
		return fmt.Errorf("net: add layer %d: %w", len(n.layers), err)
	}
	n.layers = append(n.layers, l)
	n.infos = append(n.infos, info)
	n.state = stateBuilding
	return nil
}

// Layers returns the number of layers.
func (n *Net) Layers() int { return len(n.layers) }

// Layer returns layer i.
func (n *Net) Layer(i int) layer.Layer { return n.layers[i] }

// OutputInfo returns the output shape of the last layer.
func (n *Net) OutputInfo() layer.OutputInfo {
	if len(n.infos) == 0 {
		return layer.OutputInfo{}
	}
	return n.infos[len(n.infos)-1]
}

// Registry returns the parameter arena of the net.
func (n *Net) Registry() *layer.Registry { return n.reg }

// ErrorFunction returns the loss in use.
func (n *Net) ErrorFunction() ErrorFunction { return n.errorFunction }

// SetErrorFunction selects the loss. On a finalized net f must match the
// output layer as TrainingSet requires.
func (n *Net) SetErrorFunction(f ErrorFunction) error {
	prev := n.errorFunction
	n.errorFunction = f
	if n.state == stateFinalized {
		if err := n.checkOutput(); err != nil {
			n.errorFunction = prev
			return fmt.Errorf("net: error function: %w", err)
		}
	}
	return nil
}

// Finalized reports whether a training set is bound.
func (n *Net) Finalized() bool { return n.state == stateFinalized }

// TrainingSet binds ds and finalizes the net. A finalized net accepts a new
// training set of the same dimensions.
//
// Softmax is only supported as the activation of the last layer, and only
// together with CrossEntropy; any other use of either returns
// layer.ErrInvalidConfig.
func (n *Net) TrainingSet(ds dataset.DataSet) error {
	if n.state == stateEmpty {
		return fmt.Errorf("net: training set: %w", ErrEmpty)
	}
	if err := n.checkOutput(); err != nil {
		return fmt.Errorf("net: training set: %w", err)
	}
	if ds.Samples() == 0 {
		return fmt.Errorf("net: training set: %w: no samples", ErrEmpty)
	}
	if in := n.layers[0].InputInfo().Outputs(); ds.Inputs() != in {
		return fmt.Errorf("net: training set: %w: %d inputs, net expects %d", ErrShapeMismatch, ds.Inputs(), in)
	}
	if out := n.OutputInfo().Outputs(); ds.Outputs() != out {
		return fmt.Errorf("net: training set: %w: %d targets, net produces %d", ErrShapeMismatch, ds.Outputs(), out)
	}
	n.ds = ds
	n.state = stateFinalized
	return nil
}

// Predict runs an inference forward pass over x [N, inputs].
func (n *Net) Predict(x *mat.Dense) *mat.Dense {
	n.requireLayers("Net.Predict")
	return mat.DenseCopyOf(n.propagate(x, false, nil))
}

// Forward runs a forward pass over the samples at indices and returns the
// output batch with the loss plus regularization penalty.
func (n *Net) Forward(indices []int, training bool) (*mat.Dense, float64) {
	n.requireFinalized("Net.Forward")
	x, t := dataset.Batch(n.ds, indices)
	var penalty float64
	y := n.propagate(x, training, &penalty)
	return mat.DenseCopyOf(y), n.errorFunction.Loss(y, t) + penalty
}

// ErrorGradient runs a forward pass and a full backward pass over the samples
// at indices. It returns the loss plus penalty and the gradient in parameter
// order. Dropout layers sample masks only when the net was created
// WithDropout(true).
func (n *Net) ErrorGradient(indices []int) (float64, []float64) {
	n.requireFinalized("Net.ErrorGradient")
	x, t := dataset.Batch(n.ds, indices)
	var penalty float64
	y := n.propagate(x, n.dropout, &penalty)
	loss := n.errorFunction.Loss(y, t) + penalty
	n.backpropagate(n.errorFunction.Signal(y, t), false)
	return loss, n.reg.Gradient(nil)
}

// InputGradient returns ∂loss/∂x [N, inputs] for the batch x with targets t.
func (n *Net) InputGradient(x, t *mat.Dense) *mat.Dense {
	n.requireLayers("Net.InputGradient")
	y := n.propagate(x, false, nil)
	e := n.backpropagate(n.errorFunction.Signal(y, t), true)
	return mat.DenseCopyOf(e)
}

// InputError returns the loss of the batch x with targets t.
func (n *Net) InputError(x, t *mat.Dense) float64 {
	n.requireLayers("Net.InputError")
	y := n.propagate(x, false, nil)
	return n.errorFunction.Loss(y, t)
}

// Dimension returns the number of trainable parameters.
func (n *Net) Dimension() int { return n.reg.Dimension() }

// CurrentParameters returns a copy of all parameters in layer order.
func (n *Net) CurrentParameters() []float64 { return n.reg.Parameters(nil) }

// SetParameters overwrites all parameters and lets every layer refresh its
// derived state.
func (n *Net) SetParameters(p []float64) {
	n.reg.SetParameters(p)
	for _, l := range n.layers {
		l.UpdatedParameters()
	}
}

// Error returns the loss plus penalty over the whole training set with
// inference behavior.
func (n *Net) Error() float64 {
	n.requireFinalized("Net.Error")
	_, loss := n.Forward(dataset.Indices(n.ds.Samples()), false)
	return loss
}

// Gradient returns the gradient over the whole training set.
func (n *Net) Gradient() []float64 {
	n.requireFinalized("Net.Gradient")
	_, g := n.ErrorGradient(dataset.Indices(n.ds.Samples()))
	return g
}

// Examples returns the number of training samples.
func (n *Net) Examples() int {
	if n.ds == nil {
		return 0
	}
	return n.ds.Samples()
}

// FinishedIteration counts an optimizer iteration.
func (n *Net) FinishedIteration() {
	n.iterations++
	if n.onIteration != nil {
		n.onIteration(n.iterations)
	}
}

// Iterations returns the number of finished iterations.
func (n *Net) Iterations() int { return n.iterations }

// checkOutput verifies that softmax appears only in the last layer and that
// it is used exactly when the loss is cross entropy.
func (n *Net) checkOutput() error {
	last := len(n.layers) - 1
	for i, l := range n.layers[:last] {
		if isSoftmax(l) {
			return fmt.Errorf("%w: softmax activation in hidden layer %d", layer.ErrInvalidConfig, i)
		}
	}
	softmax := isSoftmax(n.layers[last])
	switch {
	case softmax && n.errorFunction != CrossEntropy:
		return fmt.Errorf("%w: softmax output requires cross entropy, got %s", layer.ErrInvalidConfig, n.errorFunction)
	case !softmax && n.errorFunction == CrossEntropy:
		return fmt.Errorf("%w: cross entropy requires a softmax output", layer.ErrInvalidConfig)
	}
	return nil
}

func isSoftmax(l layer.Layer) bool {
	a, ok := l.(layer.Activated)
	return ok && a.Activation() == activation.Softmax
}

func (n *Net) propagate(x *mat.Dense, training bool, penalty *float64) *mat.Dense {
	y := x
	for _, l := range n.layers {
		y = l.Forward(y, training, penalty)
	}
	return y
}

// backpropagate runs Backward from the last layer to the first. The first
// layer only computes an input error signal when toInput is set.
func (n *Net) backpropagate(signal *mat.Dense, toInput bool) *mat.Dense {
	e := signal
	for i := len(n.layers) - 1; i >= 0; i-- {
		e = n.layers[i].Backward(e, i > 0 || toInput)
	}
	return e
}

func (n *Net) requireLayers(method string) {
	if len(n.layers) == 0 {
		panic(method + ": " + ErrEmpty.Error())
	}
}

func (n *Net) requireFinalized(method string) {
	if n.state != stateFinalized {
		panic(method + ": " + ErrNotFinalized.Error())
	}
}
