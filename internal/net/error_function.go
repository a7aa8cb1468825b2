package net

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// ErrorFunction combines a net's output and its targets into a scalar loss.
type ErrorFunction int

const (
	// SSE is half the sum of squared errors, ½ Σ (y - t)².
	SSE ErrorFunction = iota
	// CrossEntropy is -Σ t ln y, meant for softmax outputs.
	CrossEntropy
)

// String returns the name of the error function.
func (f ErrorFunction) String() string {
	switch f {
	case SSE:
		return "sse"
	case CrossEntropy:
		return "cross_entropy"
	default:
		return fmt.Sprintf("ErrorFunction(%d)", int(f))
	}
}

// minProbability keeps ln y finite for saturated softmax outputs.
const minProbability = 1e-300

// Loss returns the summed loss over all rows of y and t.
func (f ErrorFunction) Loss(y, t *mat.Dense) float64 {
	rows, cols := y.Dims()
	var loss float64
	for n := 0; n < rows; n++ {
		out := y.RawRowView(n)
		target := t.RawRowView(n)
		for j := 0; j < cols; j++ {
			switch f {
			case CrossEntropy:
				loss -= target[j] * math.Log(math.Max(out[j], minProbability))
			default:
				d := out[j] - target[j]
				loss += d * d / 2
			}
		}
	}
	return loss
}

// Signal returns the error signal at the output, ∂loss/∂y for SSE and
// ∂loss/∂a for softmax with cross entropy. Both are y - t.
func (f ErrorFunction) Signal(y, t *mat.Dense) *mat.Dense {
	var e mat.Dense
	e.Sub(y, t)
	return &e
}
