package layer

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/born-ml/backprop/internal/activation"
	"gonum.org/v1/gonum/mat"
)

// IntrinsicPlasticityConfig configures an IntrinsicPlasticity layer.
type IntrinsicPlasticityConfig struct {
	TargetMean float64 // Desired mean activation μ in (0, 1)
	StdDev     float64 // Std-dev of the initial biases (default: 0.05)
}

// IntrinsicPlasticity applies a logistic unit with its own slope and bias to
// every input:
//
//	y[i] = logistic(s[i] * x[i] + b[i])
//
// Slopes start at 1. Besides ordinary gradients, Adapt moves s and b with the
// unsupervised intrinsic plasticity rule, which drives each unit towards an
// exponential output distribution with mean TargetMean. Parameters are
// registered as s followed by b.
type IntrinsicPlasticity struct {
	info  OutputInfo
	units int
	cfg   IntrinsicPlasticityConfig

	params, grads []float64
	s, sd         []float64
	b, bd         []float64

	x                   *mat.Dense
	a, y, yd, deltas, e *mat.Dense
	pass                pass
}

// NewIntrinsicPlasticity creates an intrinsic plasticity layer.
func NewIntrinsicPlasticity(in OutputInfo, cfg IntrinsicPlasticityConfig) (*IntrinsicPlasticity, error) {
	if in.Outputs() <= 0 {
		return nil, fmt.Errorf("intrinsic plasticity: %w: empty input shape", ErrInvalidConfig)
	}
	if cfg.TargetMean <= 0 || cfg.TargetMean >= 1 {
		return nil, fmt.Errorf("intrinsic plasticity: %w: target mean %g not in (0, 1)", ErrInvalidConfig, cfg.TargetMean)
	}
	cfg.StdDev = stdDevOrDefault(cfg.StdDev)
	return &IntrinsicPlasticity{info: in, units: in.Outputs(), cfg: cfg}, nil
}

// Initialize registers s and b, sets s = 1 and samples b.
func (l *IntrinsicPlasticity) Initialize(reg *Registry, rng *rand.Rand) (OutputInfo, error) {
	l.params = make([]float64, 2*l.units)
	l.grads = make([]float64, 2*l.units)
	l.s, l.b = l.params[:l.units], l.params[l.units:]
	l.sd, l.bd = l.grads[:l.units], l.grads[l.units:]
	if reg != nil {
		reg.Register(l.params, l.grads)
	}
	for i := range l.s {
		l.s[i] = 1
	}
	fillNormal(rng, l.b, l.cfg.StdDev)
	return Shape(l.info.Dimensions...), nil
}

// UpdatedParameters does nothing.
func (l *IntrinsicPlasticity) UpdatedParameters() {}

// Forward computes logistic(s * x + b) elementwise.
func (l *IntrinsicPlasticity) Forward(x *mat.Dense, _ bool, _ *float64) *mat.Dense {
	rows := checkInput("IntrinsicPlasticity.Forward", x, l.units)
	l.x = x
	l.a = ensure(l.a, rows, l.units)
	l.a.Apply(func(_, j int, v float64) float64 {
		return l.s[j]*v + l.b[j]
	}, x)
	l.y = ensure(l.y, rows, l.units)
	activation.Apply(activation.Logistic, l.a, l.y)
	l.pass.forwarded(rows)
	return l.y
}

// Backward computes sd = Σ delta * x, bd = Σ delta and e = delta * s.
func (l *IntrinsicPlasticity) Backward(ein *mat.Dense, backpropToPrevious bool) *mat.Dense {
	l.pass.check("IntrinsicPlasticity.Backward", ein)
	rows := l.pass.rows

	l.yd = ensure(l.yd, rows, l.units)
	activation.Derivative(activation.Logistic, l.y, l.yd)
	l.deltas = ensure(l.deltas, rows, l.units)
	l.deltas.MulElem(l.yd, ein)

	for i := range l.grads {
		l.grads[i] = 0
	}
	for n := 0; n < rows; n++ {
		in := l.x.RawRowView(n)
		for j, d := range l.deltas.RawRowView(n) {
			l.sd[j] += d * in[j]
			l.bd[j] += d
		}
	}

	if backpropToPrevious {
		l.e = ensure(l.e, rows, l.units)
		l.e.Apply(func(_, j int, v float64) float64 {
			return v * l.s[j]
		}, l.deltas)
	}
	return l.e
}

// Adapt performs one batch step of the intrinsic plasticity rule on x and
// returns the mean activation before the step.
//
//	Δb = η (1 - (2 + 1/μ) y + y²/μ)
//	Δs = η / s + Δb x
func (l *IntrinsicPlasticity) Adapt(x *mat.Dense, learningRate float64) float64 {
	rows := checkInput("IntrinsicPlasticity.Adapt", x, l.units)
	mu := l.cfg.TargetMean
	ds := make([]float64, l.units)
	db := make([]float64, l.units)
	var mean float64
	for n := 0; n < rows; n++ {
		in := x.RawRowView(n)
		for j, v := range in {
			y := 1 / (1 + math.Exp(-(l.s[j]*v + l.b[j])))
			mean += y
			g := 1 - (2+1/mu)*y + y*y/mu
			db[j] += g
			ds[j] += 1/l.s[j] + g*v
		}
	}
	scale := learningRate / float64(rows)
	for j := range l.s {
		l.s[j] += scale * ds[j]
		l.b[j] += scale * db[j]
	}
	return mean / float64(rows*l.units)
}

// Output returns the latest activations.
func (l *IntrinsicPlasticity) Output() *mat.Dense { return l.y }

// Parameters returns s followed by b.
func (l *IntrinsicPlasticity) Parameters() []float64 {
	return append([]float64(nil), l.params...)
}

// InputInfo returns the input shape.
func (l *IntrinsicPlasticity) InputInfo() OutputInfo { return l.info }

// Activation returns activation.Logistic.
func (l *IntrinsicPlasticity) Activation() activation.Function { return activation.Logistic }
