package layer

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
)

// MaxPoolingConfig configures a MaxPooling layer.
type MaxPoolingConfig struct {
	KernelRows int // Window height; must divide the input rows
	KernelCols int // Window width; must divide the input cols
}

// MaxPooling selects the maximum of every non-overlapping window of each
// feature map. It has no parameters and no activation function.
//
// The position of each maximum is remembered so that Backward routes every
// error signal to the input that produced the output.
type MaxPooling struct {
	info OutputInfo
	cfg  MaxPoolingConfig

	maps, inRows, inCols int
	outRows, outCols     int

	y, e   *mat.Dense
	argmax []int // [N * outputs] input index of each selected maximum
	pass   pass
}

// NewMaxPooling creates a max-pooling layer for inputs of shape in.
func NewMaxPooling(in OutputInfo, cfg MaxPoolingConfig) (*MaxPooling, error) {
	maps, rows, cols, err := poolingGeometry("max pooling", in, cfg.KernelRows, cfg.KernelCols)
	if err != nil {
		return nil, err
	}
	return &MaxPooling{
		info:    in,
		cfg:     cfg,
		maps:    maps,
		inRows:  rows,
		inCols:  cols,
		outRows: rows / cfg.KernelRows,
		outCols: cols / cfg.KernelCols,
	}, nil
}

// Initialize returns the pooled shape.
func (l *MaxPooling) Initialize(_ *Registry, _ *rand.Rand) (OutputInfo, error) {
	return Shape(l.maps, l.outRows, l.outCols), nil
}

func (l *MaxPooling) outputs() int {
	return l.maps * l.outRows * l.outCols
}

// Forward selects the maximum of each window.
func (l *MaxPooling) Forward(x *mat.Dense, _ bool, _ *float64) *mat.Dense {
	rows := checkInput("MaxPooling.Forward", x, l.info.Outputs())
	outputs := l.outputs()
	l.y = ensure(l.y, rows, outputs)
	if cap(l.argmax) < rows*outputs {
		l.argmax = make([]int, rows*outputs)
	}
	l.argmax = l.argmax[:rows*outputs]

	for n := 0; n < rows; n++ {
		in := x.RawRowView(n)
		out := l.y.RawRowView(n)
		memo := l.argmax[n*outputs : (n+1)*outputs]
		// The first element of each window seeds its maximum; NaN windows
		// select that element.
		for o := range memo {
			memo[o] = -1
		}
		forEachWindow(l.maps, l.inRows, l.inCols, l.cfg.KernelRows, l.cfg.KernelCols, func(o, i int) {
			if memo[o] < 0 || in[i] > out[o] {
				out[o] = in[i]
				memo[o] = i
			}
		})
	}
	l.pass.forwarded(rows)
	return l.y
}

// Backward routes each error signal to the position of its maximum.
func (l *MaxPooling) Backward(ein *mat.Dense, backpropToPrevious bool) *mat.Dense {
	l.pass.check("MaxPooling.Backward", ein)
	if !backpropToPrevious {
		return l.e
	}
	rows := l.pass.rows
	outputs := l.outputs()
	l.e = ensure(l.e, rows, l.info.Outputs())
	l.e.Zero()
	for n := 0; n < rows; n++ {
		signal := ein.RawRowView(n)
		prev := l.e.RawRowView(n)
		memo := l.argmax[n*outputs : (n+1)*outputs]
		for o, i := range memo {
			prev[i] += signal[o]
		}
	}
	return l.e
}

// UpdatedParameters does nothing.
func (l *MaxPooling) UpdatedParameters() {}

// Output returns the latest pooled batch.
func (l *MaxPooling) Output() *mat.Dense { return l.y }

// Parameters returns nil.
func (l *MaxPooling) Parameters() []float64 { return nil }

// InputInfo returns the input shape.
func (l *MaxPooling) InputInfo() OutputInfo { return l.info }
