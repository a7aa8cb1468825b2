package layer

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/born-ml/backprop/internal/activation"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Compression methods for the basis of a Compressed layer.
const (
	CompressionGaussian = "gaussian" // Φ ~ N(0, 1)
	CompressionSparse   = "sparse"   // Achlioptas sparse random projection
	CompressionAverage  = "average"  // Φ = 1/inputs
	CompressionDCT      = "dct"      // DCT-II basis functions
)

// CompressedConfig configures a Compressed layer.
type CompressedConfig struct {
	Units          int                 // Number of output units
	Basis          int                 // Number of basis functions M per unit
	Bias           bool                // Whether to add a bias per unit
	Activation     activation.Function // Elementwise activation
	Compression    string              // Basis generation method (default: gaussian)
	StdDev         float64             // Std-dev of the initial coefficients (default: 0.05)
	Regularization Regularization
}

// Compressed is a dense layer whose weight matrix is represented in a fixed
// low-dimensional basis:
//
//	W = α @ Φ
//
// where α [units, M] are the trainable coefficients and Φ [M, inputs] is
// generated once by Initialize. Only α (and b) are registered.
type Compressed struct {
	info   OutputInfo
	inputs int
	cfg    CompressedConfig

	params, grads   []float64
	alpha, alphad   *mat.Dense // [units, M] views over params/grads
	b, bd           []float64
	phi             *mat.Dense // [M, inputs]
	w, wd           *mat.Dense // [units, inputs], derived
	x               *mat.Dense
	a, y, yd, delta *mat.Dense
	e               *mat.Dense
	pass            pass
}

// NewCompressed creates a compressed dense layer for inputs of shape in.
func NewCompressed(in OutputInfo, cfg CompressedConfig) (*Compressed, error) {
	if in.Outputs() <= 0 || cfg.Units <= 0 || cfg.Basis <= 0 {
		return nil, fmt.Errorf("compressed: %w: inputs=%d units=%d basis=%d",
			ErrInvalidConfig, in.Outputs(), cfg.Units, cfg.Basis)
	}
	if cfg.Compression == "" {
		cfg.Compression = CompressionGaussian
	}
	switch cfg.Compression {
	case CompressionGaussian, CompressionSparse, CompressionAverage, CompressionDCT:
	default:
		return nil, fmt.Errorf("compressed: %w: %q", ErrUnknownCompression, cfg.Compression)
	}
	cfg.StdDev = stdDevOrDefault(cfg.StdDev)
	return &Compressed{info: in, inputs: in.Outputs(), cfg: cfg}, nil
}

// Initialize generates Φ, registers α and b and samples them.
func (l *Compressed) Initialize(reg *Registry, rng *rand.Rand) (OutputInfo, error) {
	units, m := l.cfg.Units, l.cfg.Basis
	n := units * m
	if l.cfg.Bias {
		n += units
	}
	l.params = make([]float64, n)
	l.grads = make([]float64, n)
	l.alpha = mat.NewDense(units, m, l.params[:units*m])
	l.alphad = mat.NewDense(units, m, l.grads[:units*m])
	if l.cfg.Bias {
		l.b = l.params[units*m:]
		l.bd = l.grads[units*m:]
	}
	if reg != nil {
		reg.Register(l.params, l.grads)
	}

	l.phi = compressionMatrix(l.cfg.Compression, m, l.inputs, rng)
	l.w = mat.NewDense(units, l.inputs, nil)
	l.wd = mat.NewDense(units, l.inputs, nil)

	fillNormal(rng, l.params, l.cfg.StdDev)
	l.UpdatedParameters()
	return Shape(units), nil
}

// UpdatedParameters projects α and recomputes W = α @ Φ.
func (l *Compressed) UpdatedParameters() {
	l.cfg.Regularization.project(l.alpha)
	l.w.Mul(l.alpha, l.phi)
}

// Forward computes f(x @ W.T + b).
func (l *Compressed) Forward(x *mat.Dense, _ bool, penalty *float64) *mat.Dense {
	rows := checkInput("Compressed.Forward", x, l.inputs)
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

	if penalty != nil {
		*penalty += l.cfg.Regularization.penalty(l.coefficients())
	}
	l.pass.forwarded(rows)
	return l.y
}

// Backward computes αd = (delta.T @ x) @ Φ.T and bd = colsum(delta).
func (l *Compressed) Backward(ein *mat.Dense, backpropToPrevious bool) *mat.Dense {
	l.pass.check("Compressed.Backward", ein)
	rows := l.pass.rows

	l.yd = ensure(l.yd, rows, l.cfg.Units)
	activation.Derivative(l.cfg.Activation, l.y, l.yd)
	l.delta = ensure(l.delta, rows, l.cfg.Units)
	l.delta.MulElem(l.yd, ein)

	l.wd.Mul(l.delta.T(), l.x)
	l.alphad.Mul(l.wd, l.phi.T())
	if l.cfg.Bias {
		columnSums(l.bd, l.delta)
	}
	l.cfg.Regularization.addGradient(l.coefficients(), l.grads[:l.cfg.Units*l.cfg.Basis])

	if backpropToPrevious {
		l.e = ensure(l.e, rows, l.inputs)
		l.e.Mul(l.delta, l.w)
	}
	return l.e
}

// Output returns the latest activations.
func (l *Compressed) Output() *mat.Dense { return l.y }

// Parameters returns α row-major followed by b.
func (l *Compressed) Parameters() []float64 {
	return append([]float64(nil), l.params...)
}

// InputInfo returns the input shape.
func (l *Compressed) InputInfo() OutputInfo { return l.info }

// Activation returns the activation function of the layer.
func (l *Compressed) Activation() activation.Function { return l.cfg.Activation }

// Basis returns the compression matrix Φ [M, inputs].
func (l *Compressed) Basis() *mat.Dense { return l.phi }

func (l *Compressed) coefficients() []float64 {
	return l.params[:l.cfg.Units*l.cfg.Basis]
}

// compressionMatrix generates the basis Φ [m, inputs].
func compressionMatrix(method string, m, inputs int, rng *rand.Rand) *mat.Dense {
	phi := mat.NewDense(m, inputs, nil)
	switch method {
	case CompressionGaussian:
		phi.Apply(func(_, _ int, _ float64) float64 {
			return rng.NormFloat64()
		}, phi)
	case CompressionSparse:
		scale := math.Sqrt(3)
		phi.Apply(func(_, _ int, _ float64) float64 {
			r := rng.Float64()
			switch {
			case r < 1.0/6.0:
				return scale
			case r < 2.0/6.0:
				return -scale
			default:
				return 0
			}
		}, phi)
	case CompressionAverage:
		phi.Apply(func(_, _ int, _ float64) float64 {
			return 1 / float64(inputs)
		}, phi)
	case CompressionDCT:
		phi.Apply(func(k, i int, _ float64) float64 {
			return math.Cos(math.Pi * float64(k) * (float64(i) + 0.5) / float64(inputs))
		}, phi)
	}
	return phi
}
