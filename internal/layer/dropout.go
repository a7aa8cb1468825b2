package layer

import (
	"fmt"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
)

// DropoutConfig configures a Dropout layer.
type DropoutConfig struct {
	DropProbability float64 // Probability p of suppressing a unit, in [0, 1)
}

// Dropout suppresses units at random during training.
//
// In training mode every unit is zeroed independently with probability p and
// surviving units pass through unscaled. In inference mode every unit is
// scaled by (1 - p) instead, so the expected activation matches training.
// Scaling happens at inference, not during training.
//
// The generator passed to Initialize is retained and drives the masks.
type Dropout struct {
	info OutputInfo
	cfg  DropoutConfig
	rng  *rand.Rand

	mask *mat.Dense // multiplier applied by the latest forward pass
	y, e *mat.Dense
	pass pass
}

// NewDropout creates a dropout layer for inputs of shape in.
func NewDropout(in OutputInfo, cfg DropoutConfig) (*Dropout, error) {
	if in.Outputs() <= 0 {
		return nil, fmt.Errorf("dropout: %w: empty input shape", ErrInvalidConfig)
	}
	if cfg.DropProbability < 0 || cfg.DropProbability >= 1 {
		return nil, fmt.Errorf("dropout: %w: drop probability %g not in [0, 1)", ErrInvalidConfig, cfg.DropProbability)
	}
	return &Dropout{info: in, cfg: cfg}, nil
}

// Initialize keeps rng for sampling masks and returns the input shape.
func (l *Dropout) Initialize(_ *Registry, rng *rand.Rand) (OutputInfo, error) {
	if rng == nil {
		return OutputInfo{}, fmt.Errorf("dropout: %w: nil random generator", ErrInvalidConfig)
	}
	l.rng = rng
	return Shape(l.info.Dimensions...), nil
}

// Forward masks (training) or scales (inference) the input.
func (l *Dropout) Forward(x *mat.Dense, training bool, _ *float64) *mat.Dense {
	rows := checkInput("Dropout.Forward", x, l.info.Outputs())
	if l.rng == nil {
		panic("Dropout.Forward: called before Initialize")
	}
	cols := l.info.Outputs()
	l.mask = ensure(l.mask, rows, cols)
	p := l.cfg.DropProbability
	if training {
		l.mask.Apply(func(_, _ int, _ float64) float64 {
			if l.rng.Float64() < p {
				return 0
			}
			return 1
		}, l.mask)
	} else {
		l.mask.Apply(func(_, _ int, _ float64) float64 {
			return 1 - p
		}, l.mask)
	}
	l.y = ensure(l.y, rows, cols)
	l.y.MulElem(x, l.mask)
	l.pass.forwarded(rows)
	return l.y
}

// Backward multiplies the error signal by the latest mask.
func (l *Dropout) Backward(ein *mat.Dense, backpropToPrevious bool) *mat.Dense {
	l.pass.check("Dropout.Backward", ein)
	if backpropToPrevious {
		rows, cols := ein.Dims()
		l.e = ensure(l.e, rows, cols)
		l.e.MulElem(ein, l.mask)
	}
	return l.e
}

// UpdatedParameters does nothing.
func (l *Dropout) UpdatedParameters() {}

// Output returns the latest output.
func (l *Dropout) Output() *mat.Dense { return l.y }

// Parameters returns nil.
func (l *Dropout) Parameters() []float64 { return nil }

// InputInfo returns the input shape.
func (l *Dropout) InputInfo() OutputInfo { return l.info }
