package layer

import (
	"fmt"
	"math/rand/v2"

	"github.com/born-ml/backprop/internal/activation"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// FullyConnectedConfig configures a FullyConnected layer.
type FullyConnectedConfig struct {
	Units          int                 // Number of output units
	Bias           bool                // Whether to add a bias per unit
	Activation     activation.Function // Elementwise activation
	StdDev         float64             // Std-dev of the initial weights (default: 0.05)
	Regularization Regularization
}

// FullyConnected is a dense layer.
//
// Performs: y = f(x @ W.T + b)
// where:
//   - x has shape [batch_size, inputs]
//   - W has shape [units, inputs]
//   - b has shape [units]
//
// Parameters are registered as W row-major by unit, followed by b.
//
// Example:
//
//	fc, err := layer.NewFullyConnected(layer.Shape(3), layer.FullyConnectedConfig{
//	    Units:      2,
//	    Activation: activation.Tanh,
//	})
type FullyConnected struct {
	info   OutputInfo
	inputs int
	cfg    FullyConnectedConfig
	frozen bool // weights are neither registered nor trained

	params, grads []float64
	w, wd         *mat.Dense // [units, inputs] views over params/grads
	b, bd         []float64

	x                   *mat.Dense
	a, y, yd, deltas, e *mat.Dense
	pass                pass
}

// NewFullyConnected creates a dense layer for inputs of shape in.
func NewFullyConnected(in OutputInfo, cfg FullyConnectedConfig) (*FullyConnected, error) {
	if in.Outputs() <= 0 {
		return nil, fmt.Errorf("fully connected: %w: empty input shape", ErrInvalidConfig)
	}
	if cfg.Units <= 0 {
		return nil, fmt.Errorf("fully connected: %w: units=%d", ErrInvalidConfig, cfg.Units)
	}
	cfg.StdDev = stdDevOrDefault(cfg.StdDev)
	return &FullyConnected{info: in, inputs: in.Outputs(), cfg: cfg}, nil
}

// Initialize allocates W and b, registers them and samples them from
// N(0, StdDev²).
func (l *FullyConnected) Initialize(reg *Registry, rng *rand.Rand) (OutputInfo, error) {
	units := l.cfg.Units
	n := units * l.inputs
	if l.cfg.Bias {
		n += units
	}
	l.params = make([]float64, n)
	l.grads = make([]float64, n)
	l.w = mat.NewDense(units, l.inputs, l.params[:units*l.inputs])
	l.wd = mat.NewDense(units, l.inputs, l.grads[:units*l.inputs])
	if l.cfg.Bias {
		l.b = l.params[units*l.inputs:]
		l.bd = l.grads[units*l.inputs:]
	}
	if !l.frozen && reg != nil {
		reg.Register(l.params, l.grads)
	}

	fillNormal(rng, l.params, l.cfg.StdDev)
	l.UpdatedParameters()
	return Shape(units), nil
}

// UpdatedParameters applies the max-squared-norm projection to W.
func (l *FullyConnected) UpdatedParameters() {
	l.cfg.Regularization.project(l.w)
}

// Forward computes f(x @ W.T + b).
func (l *FullyConnected) Forward(x *mat.Dense, _ bool, penalty *float64) *mat.Dense {
	rows := checkInput("FullyConnected.Forward", x, l.inputs)
	l.x = x
	l.a = ensure(l.a, rows, l.cfg.Units)
	l.a.Mul(x, l.w.T())
	if l.cfg.Bias {
		for n := 0; n < rows; n++ {
			floats.Add(l.a.RawRowView(n), l.b)
		}
	}
	l.y = ensure(l.y, rows, l.cfg.Units)
	activation.Apply(l.cfg.Activation, l.a, l.y)

	if penalty != nil && !l.frozen {
		*penalty += l.cfg.Regularization.penalty(l.weights())
	}
	l.pass.forwarded(rows)
	return l.y
}

// Backward computes Wd = delta.T @ x, bd = colsum(delta) and, when
// requested, the previous layer's error delta @ W.
func (l *FullyConnected) Backward(ein *mat.Dense, backpropToPrevious bool) *mat.Dense {
	l.pass.check("FullyConnected.Backward", ein)
	rows := l.pass.rows

	l.yd = ensure(l.yd, rows, l.cfg.Units)
	activation.Derivative(l.cfg.Activation, l.y, l.yd)
	l.deltas = ensure(l.deltas, rows, l.cfg.Units)
	l.deltas.MulElem(l.yd, ein)

	if !l.frozen {
		l.wd.Mul(l.deltas.T(), l.x)
		if l.cfg.Bias {
			columnSums(l.bd, l.deltas)
		}
		l.cfg.Regularization.addGradient(l.weights(), l.grads[:l.cfg.Units*l.inputs])
	}

	if backpropToPrevious {
		l.e = ensure(l.e, rows, l.inputs)
		l.e.Mul(l.deltas, l.w)
	}
	return l.e
}

// Output returns the latest activations.
func (l *FullyConnected) Output() *mat.Dense { return l.y }

// Parameters returns W row-major followed by b.
func (l *FullyConnected) Parameters() []float64 {
	return append([]float64(nil), l.params...)
}

// InputInfo returns the input shape.
func (l *FullyConnected) InputInfo() OutputInfo { return l.info }

// Activation returns the activation function of the layer.
func (l *FullyConnected) Activation() activation.Function { return l.cfg.Activation }

// Weights returns the weight matrix view [units, inputs].
func (l *FullyConnected) Weights() *mat.Dense { return l.w }

func (l *FullyConnected) weights() []float64 {
	return l.params[:l.cfg.Units*l.inputs]
}

// columnSums overwrites dst with the column sums of m.
func columnSums(dst []float64, m *mat.Dense) {
	for i := range dst {
		dst[i] = 0
	}
	rows, _ := m.Dims()
	for n := 0; n < rows; n++ {
		floats.Add(dst, m.RawRowView(n))
	}
}

// ExtremeConfig configures an Extreme layer.
type ExtremeConfig struct {
	Units      int
	Bias       bool
	Activation activation.Function
	StdDev     float64 // Std-dev of the fixed random weights (default: 0.05)
}

// Extreme is a dense layer with fixed random weights, as used by extreme
// learning machines. Its weights are sampled once by Initialize and never
// registered, so it exposes no trainable parameters but still propagates
// error signals to the previous layer.
type Extreme struct {
	FullyConnected
}

// NewExtreme creates a fixed random projection layer.
func NewExtreme(in OutputInfo, cfg ExtremeConfig) (*Extreme, error) {
	fc, err := NewFullyConnected(in, FullyConnectedConfig{
		Units:      cfg.Units,
		Bias:       cfg.Bias,
		Activation: cfg.Activation,
		StdDev:     cfg.StdDev,
	})
	if err != nil {
		return nil, fmt.Errorf("extreme: %w", err)
	}
	fc.frozen = true
	return &Extreme{FullyConnected: *fc}, nil
}

// Parameters returns nil; the random weights are not trainable.
func (l *Extreme) Parameters() []float64 { return nil }
