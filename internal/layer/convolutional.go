package layer

import (
	"fmt"
	"math/rand/v2"

	"github.com/born-ml/backprop/internal/activation"
	"gonum.org/v1/gonum/mat"
)

// ConvolutionalConfig configures a Convolutional layer.
type ConvolutionalConfig struct {
	FeatureMaps    int                 // Number of output feature maps
	KernelRows     int                 // Kernel height
	KernelCols     int                 // Kernel width
	StrideRows     int                 // Vertical stride (default: 1)
	StrideCols     int                 // Horizontal stride (default: 1)
	Bias           bool                // Whether to add a bias per output map
	Activation     activation.Function // Elementwise activation
	StdDev         float64             // Std-dev of the initial weights (default: 0.05)
	Regularization Regularization
}

// Convolutional is a 2D convolutional layer (valid cross-correlation, no
// padding).
//
// Input shape:  [in_maps, rows, cols]
// Weight shape: [out_maps, in_maps, kernel_rows, kernel_cols]
// Output shape: [out_maps, out_rows, out_cols]
//
// Where:
//
//	out_rows = (rows - kernel_rows) / stride_rows + 1
//	out_cols = (cols - kernel_cols) / stride_cols + 1
//
// Parameters are registered as the weights in the order above, followed by
// one bias per output map.
type Convolutional struct {
	info OutputInfo
	cfg  ConvolutionalConfig

	inMaps, inRows, inCols int
	outRows, outCols       int

	params, grads []float64
	w, wd         []float64
	b, bd         []float64
	rowsView      *mat.Dense // [out_maps, in_maps*kr*kc] view over w

	x                   *mat.Dense
	a, y, yd, deltas, e *mat.Dense
	pass                pass
}

// NewConvolutional creates a convolutional layer for inputs of shape in.
func NewConvolutional(in OutputInfo, cfg ConvolutionalConfig) (*Convolutional, error) {
	maps, rows, cols, err := in.spatial()
	if err != nil {
		return nil, fmt.Errorf("convolutional: %w", err)
	}
	if cfg.StrideRows == 0 {
		cfg.StrideRows = 1
	}
	if cfg.StrideCols == 0 {
		cfg.StrideCols = 1
	}
	if cfg.FeatureMaps <= 0 || cfg.KernelRows <= 0 || cfg.KernelCols <= 0 ||
		cfg.StrideRows < 0 || cfg.StrideCols < 0 {
		return nil, fmt.Errorf("convolutional: %w: maps=%d kernel=%dx%d stride=%dx%d", ErrInvalidConfig,
			cfg.FeatureMaps, cfg.KernelRows, cfg.KernelCols, cfg.StrideRows, cfg.StrideCols)
	}
	if cfg.KernelRows > rows || cfg.KernelCols > cols {
		return nil, fmt.Errorf("convolutional: %w: kernel %dx%d exceeds input %dx%d",
			ErrInvalidConfig, cfg.KernelRows, cfg.KernelCols, rows, cols)
	}
	cfg.StdDev = stdDevOrDefault(cfg.StdDev)
	return &Convolutional{
		info:    in,
		cfg:     cfg,
		inMaps:  maps,
		inRows:  rows,
		inCols:  cols,
		outRows: (rows-cfg.KernelRows)/cfg.StrideRows + 1,
		outCols: (cols-cfg.KernelCols)/cfg.StrideCols + 1,
	}, nil
}

// Initialize allocates and registers the kernels and biases.
func (l *Convolutional) Initialize(reg *Registry, rng *rand.Rand) (OutputInfo, error) {
	nw := l.cfg.FeatureMaps * l.inMaps * l.cfg.KernelRows * l.cfg.KernelCols
	n := nw
	if l.cfg.Bias {
		n += l.cfg.FeatureMaps
	}
	l.params = make([]float64, n)
	l.grads = make([]float64, n)
	l.w, l.wd = l.params[:nw], l.grads[:nw]
	if l.cfg.Bias {
		l.b, l.bd = l.params[nw:], l.grads[nw:]
	}
	l.rowsView = mat.NewDense(l.cfg.FeatureMaps, nw/l.cfg.FeatureMaps, l.w)
	if reg != nil {
		reg.Register(l.params, l.grads)
	}

	fillNormal(rng, l.params, l.cfg.StdDev)
	l.UpdatedParameters()
	return Shape(l.cfg.FeatureMaps, l.outRows, l.outCols), nil
}

// UpdatedParameters caps the squared norm of each output map's kernels.
func (l *Convolutional) UpdatedParameters() {
	l.cfg.Regularization.project(l.rowsView)
}

func (l *Convolutional) outputs() int {
	return l.cfg.FeatureMaps * l.outRows * l.outCols
}

// weightIndex returns the position of W[fmo, fmi, kr, kc].
func (l *Convolutional) weightIndex(fmo, fmi, kr, kc int) int {
	return ((fmo*l.inMaps+fmi)*l.cfg.KernelRows+kr)*l.cfg.KernelCols + kc
}

// inputIndex returns the input position read by output (r, c) at kernel
// offset (kr, kc) of map fmi.
func (l *Convolutional) inputIndex(fmi, r, c, kr, kc int) int {
	return (fmi*l.inRows+r*l.cfg.StrideRows+kr)*l.inCols + c*l.cfg.StrideCols + kc
}

// Forward correlates every input map with its kernels.
func (l *Convolutional) Forward(x *mat.Dense, _ bool, penalty *float64) *mat.Dense {
	rows := checkInput("Convolutional.Forward", x, l.info.Outputs())
	l.x = x
	l.a = ensure(l.a, rows, l.outputs())

	for n := 0; n < rows; n++ {
		in := x.RawRowView(n)
		out := l.a.RawRowView(n)
		for fmo := 0; fmo < l.cfg.FeatureMaps; fmo++ {
			var bias float64
			if l.cfg.Bias {
				bias = l.b[fmo]
			}
			for r := 0; r < l.outRows; r++ {
				for c := 0; c < l.outCols; c++ {
					sum := bias
					for fmi := 0; fmi < l.inMaps; fmi++ {
						for kr := 0; kr < l.cfg.KernelRows; kr++ {
							for kc := 0; kc < l.cfg.KernelCols; kc++ {
								sum += l.w[l.weightIndex(fmo, fmi, kr, kc)] * in[l.inputIndex(fmi, r, c, kr, kc)]
							}
						}
					}
					out[(fmo*l.outRows+r)*l.outCols+c] = sum
				}
			}
		}
	}

	l.y = ensure(l.y, rows, l.outputs())
	activation.Apply(l.cfg.Activation, l.a, l.y)
	if penalty != nil {
		*penalty += l.cfg.Regularization.penalty(l.w)
	}
	l.pass.forwarded(rows)
	return l.y
}

// Backward accumulates kernel gradients and back-correlates the deltas.
func (l *Convolutional) Backward(ein *mat.Dense, backpropToPrevious bool) *mat.Dense {
	l.pass.check("Convolutional.Backward", ein)
	rows := l.pass.rows

	l.yd = ensure(l.yd, rows, l.outputs())
	activation.Derivative(l.cfg.Activation, l.y, l.yd)
	l.deltas = ensure(l.deltas, rows, l.outputs())
	l.deltas.MulElem(l.yd, ein)

	for i := range l.grads {
		l.grads[i] = 0
	}
	if backpropToPrevious {
		l.e = ensure(l.e, rows, l.info.Outputs())
		l.e.Zero()
	}

	for n := 0; n < rows; n++ {
		in := l.x.RawRowView(n)
		delta := l.deltas.RawRowView(n)
		var prev []float64
		if backpropToPrevious {
			prev = l.e.RawRowView(n)
		}
		for fmo := 0; fmo < l.cfg.FeatureMaps; fmo++ {
			for r := 0; r < l.outRows; r++ {
				for c := 0; c < l.outCols; c++ {
					d := delta[(fmo*l.outRows+r)*l.outCols+c]
					if l.cfg.Bias {
						l.bd[fmo] += d
					}
					for fmi := 0; fmi < l.inMaps; fmi++ {
						for kr := 0; kr < l.cfg.KernelRows; kr++ {
							for kc := 0; kc < l.cfg.KernelCols; kc++ {
								wi := l.weightIndex(fmo, fmi, kr, kc)
								xi := l.inputIndex(fmi, r, c, kr, kc)
								l.wd[wi] += d * in[xi]
								if prev != nil {
									prev[xi] += d * l.w[wi]
								}
							}
						}
					}
				}
			}
		}
	}

	l.cfg.Regularization.addGradient(l.w, l.wd)
	return l.e
}

// Output returns the latest activations.
func (l *Convolutional) Output() *mat.Dense { return l.y }

// Parameters returns the kernels followed by the biases.
func (l *Convolutional) Parameters() []float64 {
	return append([]float64(nil), l.params...)
}

// InputInfo returns the input shape.
func (l *Convolutional) InputInfo() OutputInfo { return l.info }

// Activation returns the activation function of the layer.
func (l *Convolutional) Activation() activation.Function { return l.cfg.Activation }
