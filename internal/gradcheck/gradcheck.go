// Package gradcheck estimates gradients by central finite differences, for
// verifying analytic backpropagation.
package gradcheck

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// DefaultStep is the finite-difference step used when Settings.Step is 0.
const DefaultStep = 1e-5

// Settings control the finite-difference evaluations.
type Settings struct {
	Step     float64 // Difference step (default: 1e-5)
	Relative bool    // Scale the step by max(1, |p|)
}

// DefaultSettings returns an absolute step of 1e-5.
func DefaultSettings() Settings {
	return Settings{Step: DefaultStep}
}

func (s Settings) step(p float64) float64 {
	h := s.Step
	if h == 0 {
		h = DefaultStep
	}
	if s.Relative {
		h *= math.Max(1, math.Abs(p))
	}
	return h
}

// Function is a scalar function of a parameter vector.
type Function interface {
	Dimension() int
	CurrentParameters() []float64
	SetParameters(p []float64)
	Error() float64
}

// InputDifferentiable is a loss of an input batch and its targets.
type InputDifferentiable interface {
	InputError(x, t *mat.Dense) float64
}

// ParameterGradient estimates ∂Error/∂p for every parameter. The parameters
// of f are unchanged on return.
func ParameterGradient(f Function, s Settings) []float64 {
	p := f.CurrentParameters()
	g := make([]float64, len(p))
	for i := range g {
		g[i] = derivative(f, p, i, s)
	}
	return g
}

// ParameterDerivative estimates ∂Error/∂p[i].
func ParameterDerivative(f Function, i int, s Settings) float64 {
	if i < 0 || i >= f.Dimension() {
		panic(fmt.Sprintf("gradcheck.ParameterDerivative: index %d out of range [0, %d)", i, f.Dimension()))
	}
	return derivative(f, f.CurrentParameters(), i, s)
}

func derivative(f Function, p []float64, i int, s Settings) float64 {
	orig := p[i]
	defer func() {
		p[i] = orig
		f.SetParameters(p)
	}()
	return fd.Derivative(func(v float64) float64 {
		p[i] = v
		f.SetParameters(p)
		return f.Error()
	}, orig, &fd.Settings{Formula: fd.Central, Step: s.step(orig)})
}

// InputGradient estimates ∂loss/∂x for the single sample x with targets t.
func InputGradient(x, t []float64, f InputDifferentiable, s Settings) []float64 {
	shifted := append([]float64(nil), x...)
	in := mat.NewDense(1, len(shifted), shifted)
	target := mat.NewDense(1, len(t), append([]float64(nil), t...))
	g := make([]float64, len(x))
	for i := range g {
		g[i] = fd.Derivative(func(v float64) float64 {
			shifted[i] = v
			return f.InputError(in, target)
		}, x[i], &fd.Settings{Formula: fd.Central, Step: s.step(x[i])})
		shifted[i] = x[i]
	}
	return g
}

// Compare returns the maximum absolute deviation between two gradients.
func Compare(analytic, estimate []float64) float64 {
	if len(analytic) != len(estimate) {
		panic(fmt.Sprintf("gradcheck.Compare: lengths %d and %d differ", len(analytic), len(estimate)))
	}
	if len(analytic) == 0 {
		return 0
	}
	diff := make([]float64, len(analytic))
	floats.SubTo(diff, analytic, estimate)
	return floats.Norm(diff, math.Inf(1))
}
