package layer

import (
	"fmt"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
)

// Input is the first layer of a net. It declares the input shape and passes
// its input through unchanged.
type Input struct {
	info OutputInfo
	y    *mat.Dense
	e    *mat.Dense
	pass pass
}

// NewInput creates an input layer with the given dimensions, e.g.
// NewInput(1, 28, 28) for single-channel images or NewInput(784).
func NewInput(dims ...int) (*Input, error) {
	if len(dims) == 0 {
		return nil, fmt.Errorf("input: %w: no dimensions", ErrInvalidConfig)
	}
	for _, d := range dims {
		if d <= 0 {
			return nil, fmt.Errorf("input: %w: dimensions %v", ErrInvalidConfig, dims)
		}
	}
	return &Input{info: Shape(dims...)}, nil
}

// Initialize returns the input shape; an input layer has no parameters.
func (l *Input) Initialize(_ *Registry, _ *rand.Rand) (OutputInfo, error) {
	return l.info, nil
}

// Forward copies x into the layer output.
func (l *Input) Forward(x *mat.Dense, _ bool, _ *float64) *mat.Dense {
	rows := checkInput("Input.Forward", x, l.info.Outputs())
	l.y = ensure(l.y, rows, l.info.Outputs())
	l.y.Copy(x)
	l.pass.forwarded(rows)
	return l.y
}

// Backward returns a copy of ein when backpropToPrevious is set.
func (l *Input) Backward(ein *mat.Dense, backpropToPrevious bool) *mat.Dense {
	l.pass.check("Input.Backward", ein)
	if backpropToPrevious {
		rows, cols := ein.Dims()
		l.e = ensure(l.e, rows, cols)
		l.e.Copy(ein)
	}
	return l.e
}

// UpdatedParameters does nothing.
func (l *Input) UpdatedParameters() {}

// Output returns the latest output.
func (l *Input) Output() *mat.Dense { return l.y }

// Parameters returns nil.
func (l *Input) Parameters() []float64 { return nil }

// InputInfo returns the declared input shape.
func (l *Input) InputInfo() OutputInfo { return l.info }
