// Package activation implements the elementwise activation functions used by
// the layers of a net.
//
// Every function is applied to a batch of pre-activations a with shape
// [batch_size, units] and writes the activations into y. Derivatives are
// computed from the cached activations y (not from a), which is what the
// backward pass of every layer has at hand.
package activation

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// Function selects an activation function.
type Function int

const (
	// Logistic is the sigmoid 1 / (1 + exp(-a)).
	Logistic Function = iota
	// Tanh is the hyperbolic tangent.
	Tanh
	// ScaledTanh is 1.7159 * tanh(2a/3).
	ScaledTanh
	// Rectifier is max(0, a).
	Rectifier
	// Linear is the identity.
	Linear
	// Softmax normalizes each row to a probability distribution. Its
	// derivative is reported as 1 so that it must be paired with the
	// cross-entropy error function.
	Softmax
)

const (
	scaledTanhOuter = 1.7159
	scaledTanhInner = 2.0 / 3.0
)

var names = map[Function]string{
	Logistic:   "logistic",
	Tanh:       "tanh",
	ScaledTanh: "scaled_tanh",
	Rectifier:  "rectifier",
	Linear:     "linear",
	Softmax:    "softmax",
}

// String returns the lower-case name of the function.
func (f Function) String() string {
	if name, ok := names[f]; ok {
		return name
	}
	return fmt.Sprintf("Function(%d)", int(f))
}

// Parse returns the function with the given name (case-insensitive).
func Parse(name string) (Function, error) {
	lower := strings.ToLower(strings.TrimSpace(name))
	for f, n := range names {
		if n == lower {
			return f, nil
		}
	}
	return 0, fmt.Errorf("activation: unknown function %q", name)
}

// Apply computes y = f(a). Both matrices must have the same shape.
func Apply(f Function, a, y *mat.Dense) {
	switch f {
	case Logistic:
		y.Apply(func(_, _ int, v float64) float64 {
			return logistic(v)
		}, a)
	case Tanh:
		y.Apply(func(_, _ int, v float64) float64 {
			return math.Tanh(v)
		}, a)
	case ScaledTanh:
		y.Apply(func(_, _ int, v float64) float64 {
			return scaledTanhOuter * math.Tanh(scaledTanhInner*v)
		}, a)
	case Rectifier:
		y.Apply(func(_, _ int, v float64) float64 {
			return math.Max(0, v)
		}, a)
	case Linear:
		y.Copy(a)
	case Softmax:
		softmax(a, y)
	default:
		panic(fmt.Sprintf("activation.Apply: unsupported function %v", f))
	}
}

// Derivative computes yd = f'(a) expressed through the activations y.
func Derivative(f Function, y, yd *mat.Dense) {
	switch f {
	case Logistic:
		yd.Apply(func(_, _ int, v float64) float64 {
			return v * (1 - v)
		}, y)
	case Tanh:
		yd.Apply(func(_, _ int, v float64) float64 {
			return 1 - v*v
		}, y)
	case ScaledTanh:
		yd.Apply(func(_, _ int, v float64) float64 {
			t := v / scaledTanhOuter
			return scaledTanhInner * scaledTanhOuter * (1 - t*t)
		}, y)
	case Rectifier:
		yd.Apply(func(_, _ int, v float64) float64 {
			if v > 0 {
				return 1
			}
			return 0
		}, y)
	case Linear, Softmax:
		yd.Apply(func(_, _ int, _ float64) float64 {
			return 1
		}, y)
	default:
		panic(fmt.Sprintf("activation.Derivative: unsupported function %v", f))
	}
}

func logistic(v float64) float64 {
	if v < -45 {
		return 0
	}
	if v > 45 {
		return 1
	}
	return 1 / (1 + math.Exp(-v))
}

// softmax normalizes every row, shifting by the row maximum for stability.
func softmax(a, y *mat.Dense) {
	rows, _ := a.Dims()
	for n := 0; n < rows; n++ {
		in := a.RawRowView(n)
		out := y.RawRowView(n)
		maxVal := math.Inf(-1)
		for _, v := range in {
			maxVal = math.Max(maxVal, v)
		}
		var sum float64
		for j, v := range in {
			out[j] = math.Exp(v - maxVal)
			sum += out[j]
		}
		for j := range out {
			out[j] /= sum
		}
	}
}
