package layer

import (
	"fmt"
	"math/rand/v2"

	"github.com/born-ml/backprop/internal/activation"
	"gonum.org/v1/gonum/mat"
)

// SubsamplingConfig configures a Subsampling layer.
type SubsamplingConfig struct {
	KernelRows     int                 // Window height; must divide the input rows
	KernelCols     int                 // Window width; must divide the input cols
	Bias           bool                // Whether to add a bias per output position
	Activation     activation.Function // Elementwise activation
	StdDev         float64             // Std-dev of the initial weights (default: 0.05)
	Regularization Regularization
}

// Subsampling sums every non-overlapping window of each feature map and
// scales the sum by a learned weight per output position:
//
//	a[m, r, c] = W[m, r, c] * Σ window(m, r, c) + b[m, r, c]
//
// Output shape: [maps, rows / kernel_rows, cols / kernel_cols].
// Parameters are registered as W followed by b, both in output order.
type Subsampling struct {
	info OutputInfo
	cfg  SubsamplingConfig

	maps, inRows, inCols int
	outRows, outCols     int

	params, grads []float64
	w, wd         []float64
	b, bd         []float64
	rowsView      *mat.Dense // [maps, out_rows*out_cols] view over w

	x                   *mat.Dense
	sums                *mat.Dense // window sums of the latest forward pass
	a, y, yd, deltas, e *mat.Dense
	pass                pass
}

// NewSubsampling creates a subsampling layer for inputs of shape in.
func NewSubsampling(in OutputInfo, cfg SubsamplingConfig) (*Subsampling, error) {
	maps, rows, cols, err := poolingGeometry("subsampling", in, cfg.KernelRows, cfg.KernelCols)
	if err != nil {
		return nil, err
	}
	cfg.StdDev = stdDevOrDefault(cfg.StdDev)
	return &Subsampling{
		info:    in,
		cfg:     cfg,
		maps:    maps,
		inRows:  rows,
		inCols:  cols,
		outRows: rows / cfg.KernelRows,
		outCols: cols / cfg.KernelCols,
	}, nil
}

// poolingGeometry validates a non-overlapping window over in.
func poolingGeometry(name string, in OutputInfo, kr, kc int) (maps, rows, cols int, err error) {
	maps, rows, cols, err = in.spatial()
	if err != nil {
		return 0, 0, 0, fmt.Errorf("%s: %w", name, err)
	}
	if kr <= 0 || kc <= 0 {
		return 0, 0, 0, fmt.Errorf("%s: %w: window %dx%d", name, ErrInvalidConfig, kr, kc)
	}
	if rows%kr != 0 || cols%kc != 0 {
		return 0, 0, 0, fmt.Errorf("%s: %w: input %dx%d, window %dx%d",
			name, ErrIndivisiblePooling, rows, cols, kr, kc)
	}
	return maps, rows, cols, nil
}

// Initialize allocates and registers the per-position weights and biases.
func (l *Subsampling) Initialize(reg *Registry, rng *rand.Rand) (OutputInfo, error) {
	nw := l.outputs()
	n := nw
	if l.cfg.Bias {
		n += nw
	}
	l.params = make([]float64, n)
	l.grads = make([]float64, n)
	l.w, l.wd = l.params[:nw], l.grads[:nw]
	if l.cfg.Bias {
		l.b, l.bd = l.params[nw:], l.grads[nw:]
	}
	l.rowsView = mat.NewDense(l.maps, l.outRows*l.outCols, l.w)
	if reg != nil {
		reg.Register(l.params, l.grads)
	}

	fillNormal(rng, l.params, l.cfg.StdDev)
	l.UpdatedParameters()
	return Shape(l.maps, l.outRows, l.outCols), nil
}

// UpdatedParameters caps the squared norm of each map's weights.
func (l *Subsampling) UpdatedParameters() {
	l.cfg.Regularization.project(l.rowsView)
}

func (l *Subsampling) outputs() int {
	return l.maps * l.outRows * l.outCols
}

// forEachWindow calls fn with the output index and every input index of its
// window.
func forEachWindow(maps, inRows, inCols, kr, kc int, fn func(o, i int)) {
	outRows, outCols := inRows/kr, inCols/kc
	for m := 0; m < maps; m++ {
		for r := 0; r < outRows; r++ {
			for c := 0; c < outCols; c++ {
				o := (m*outRows+r)*outCols + c
				for wr := 0; wr < kr; wr++ {
					for wc := 0; wc < kc; wc++ {
						fn(o, (m*inRows+r*kr+wr)*inCols+c*kc+wc)
					}
				}
			}
		}
	}
}

// Forward sums each window and applies the position weight.
func (l *Subsampling) Forward(x *mat.Dense, _ bool, penalty *float64) *mat.Dense {
	rows := checkInput("Subsampling.Forward", x, l.info.Outputs())
	l.x = x
	l.sums = ensure(l.sums, rows, l.outputs())
	l.sums.Zero()
	l.a = ensure(l.a, rows, l.outputs())

	for n := 0; n < rows; n++ {
		in := x.RawRowView(n)
		sums := l.sums.RawRowView(n)
		forEachWindow(l.maps, l.inRows, l.inCols, l.cfg.KernelRows, l.cfg.KernelCols, func(o, i int) {
			sums[o] += in[i]
		})
		out := l.a.RawRowView(n)
		for o, s := range sums {
			out[o] = l.w[o] * s
			if l.cfg.Bias {
				out[o] += l.b[o]
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

// Backward distributes each delta uniformly over its window.
func (l *Subsampling) Backward(ein *mat.Dense, backpropToPrevious bool) *mat.Dense {
	l.pass.check("Subsampling.Backward", ein)
	rows := l.pass.rows

	l.yd = ensure(l.yd, rows, l.outputs())
	activation.Derivative(l.cfg.Activation, l.y, l.yd)
	l.deltas = ensure(l.deltas, rows, l.outputs())
	l.deltas.MulElem(l.yd, ein)

	for i := range l.grads {
		l.grads[i] = 0
	}
	for n := 0; n < rows; n++ {
		delta := l.deltas.RawRowView(n)
		sums := l.sums.RawRowView(n)
		for o, d := range delta {
			l.wd[o] += d * sums[o]
			if l.cfg.Bias {
				l.bd[o] += d
			}
		}
	}
	l.cfg.Regularization.addGradient(l.w, l.wd)

	if backpropToPrevious {
		l.e = ensure(l.e, rows, l.info.Outputs())
		for n := 0; n < rows; n++ {
			delta := l.deltas.RawRowView(n)
			prev := l.e.RawRowView(n)
			forEachWindow(l.maps, l.inRows, l.inCols, l.cfg.KernelRows, l.cfg.KernelCols, func(o, i int) {
				prev[i] = delta[o] * l.w[o]
			})
		}
	}
	return l.e
}

// Output returns the latest activations.
func (l *Subsampling) Output() *mat.Dense { return l.y }

// Parameters returns the weights followed by the biases.
func (l *Subsampling) Parameters() []float64 {
	return append([]float64(nil), l.params...)
}

// InputInfo returns the input shape.
func (l *Subsampling) InputInfo() OutputInfo { return l.info }

// Activation returns the activation function of the layer.
func (l *Subsampling) Activation() activation.Function { return l.cfg.Activation }
