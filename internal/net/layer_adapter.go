package net

import (
	"fmt"
	"math/rand/v2"

	"github.com/born-ml/backprop/internal/layer"
	"gonum.org/v1/gonum/mat"
)

// LayerAdapter exposes a single layer with a sum-of-squares loss as an
// optimizable function, so its parameter and input gradients can be checked
// in isolation.
//
// Both Error and Gradient run the layer in inference mode.
type LayerAdapter struct {
	layer layer.Layer
	reg   *layer.Registry
	out   layer.OutputInfo
	x, t  *mat.Dense
}

// NewLayerAdapter initializes l from rng and binds one random sample with
// inputs and targets drawn uniformly from [-1, 1).
func NewLayerAdapter(l layer.Layer, rng *rand.Rand) (*LayerAdapter, error) {
	reg := layer.NewRegistry()
	out, err := l.Initialize(reg, rng)
	if err != nil {
		return nil, fmt.Errorf("net: layer adapter: %w", err)
	}
	a := &LayerAdapter{layer: l, reg: reg, out: out}
	a.x = uniform(rng, 1, l.InputInfo().Outputs())
	a.t = uniform(rng, 1, out.Outputs())
	return a, nil
}

func uniform(rng *rand.Rand, r, c int) *mat.Dense {
	data := make([]float64, r*c)
	for i := range data {
		data[i] = 2*rng.Float64() - 1
	}
	return mat.NewDense(r, c, data)
}

// Layer returns the wrapped layer.
func (a *LayerAdapter) Layer() layer.Layer { return a.layer }

// Registry returns the registry holding the layer's parameters.
func (a *LayerAdapter) Registry() *layer.Registry { return a.reg }

// OutputInfo returns the layer's output shape.
func (a *LayerAdapter) OutputInfo() layer.OutputInfo { return a.out }

// TrainingSet replaces the bound batch.
func (a *LayerAdapter) TrainingSet(x, t *mat.Dense) {
	if _, c := x.Dims(); c != a.layer.InputInfo().Outputs() {
		panic(fmt.Sprintf("LayerAdapter.TrainingSet: expected %d inputs, got %d", a.layer.InputInfo().Outputs(), c))
	}
	if _, c := t.Dims(); c != a.out.Outputs() {
		panic(fmt.Sprintf("LayerAdapter.TrainingSet: expected %d targets, got %d", a.out.Outputs(), c))
	}
	a.x, a.t = x, t
}

// Input returns the bound input batch.
func (a *LayerAdapter) Input() *mat.Dense { return a.x }

// Target returns the bound target batch.
func (a *LayerAdapter) Target() *mat.Dense { return a.t }

// Dimension returns the number of registered parameters.
func (a *LayerAdapter) Dimension() int { return a.reg.Dimension() }

// CurrentParameters returns a copy of the layer's parameters.
func (a *LayerAdapter) CurrentParameters() []float64 { return a.reg.Parameters(nil) }

// SetParameters overwrites the parameters and refreshes the layer.
func (a *LayerAdapter) SetParameters(p []float64) {
	a.reg.SetParameters(p)
	a.layer.UpdatedParameters()
}

// Error returns ½ Σ (y - t)² plus the regularization penalty.
func (a *LayerAdapter) Error() float64 {
	var penalty float64
	y := a.layer.Forward(a.x, false, &penalty)
	return SSE.Loss(y, a.t) + penalty
}

// Gradient returns the analytic gradient of Error.
func (a *LayerAdapter) Gradient() []float64 {
	y := a.layer.Forward(a.x, false, nil)
	a.layer.Backward(SSE.Signal(y, a.t), false)
	return a.reg.Gradient(nil)
}

// InputGradient returns ∂Error/∂x for the bound batch.
func (a *LayerAdapter) InputGradient() *mat.Dense {
	y := a.layer.Forward(a.x, false, nil)
	return mat.DenseCopyOf(a.layer.Backward(SSE.Signal(y, a.t), true))
}

// InputError returns the sum-of-squares loss of the batch x with targets t.
func (a *LayerAdapter) InputError(x, t *mat.Dense) float64 {
	y := a.layer.Forward(x, false, nil)
	return SSE.Loss(y, t)
}

// Examples returns the number of bound samples.
func (a *LayerAdapter) Examples() int {
	r, _ := a.x.Dims()
	return r
}

// FinishedIteration does nothing.
func (a *LayerAdapter) FinishedIteration() {}
