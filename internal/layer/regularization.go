package layer

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Regularization configures the weight penalties of a layer.
//
// The penalty added to the error is L1·Σ|w| + L2·Σw²/2. The matching
// gradient contributions are L1·sign(w) and L2·w, where sign(0) = 0.
// MaxSquaredWeightNorm caps the squared L2 norm of every weight row; it is
// enforced by UpdatedParameters, not during forward or backward passes.
// Biases are never regularized.
type Regularization struct {
	L1                   float64
	L2                   float64
	MaxSquaredWeightNorm float64
}

// penalty returns the regularization error of the weights w.
func (r Regularization) penalty(w []float64) float64 {
	var e float64
	if r.L1 > 0 {
		e += r.L1 * floats.Norm(w, 1)
	}
	if r.L2 > 0 {
		e += r.L2 * floats.Dot(w, w) / 2
	}
	return e
}

// addGradient adds the penalty gradient of w to wd.
func (r Regularization) addGradient(w, wd []float64) {
	if r.L1 > 0 {
		for i, v := range w {
			switch {
			case v > 0:
				wd[i] += r.L1
			case v < 0:
				wd[i] -= r.L1
			}
		}
	}
	if r.L2 > 0 {
		floats.AddScaled(wd, r.L2, w)
	}
}

// project rescales every row of w whose squared norm exceeds the cap.
func (r Regularization) project(w *mat.Dense) {
	if r.MaxSquaredWeightNorm <= 0 || w == nil {
		return
	}
	rows, _ := w.Dims()
	for j := 0; j < rows; j++ {
		row := w.RawRowView(j)
		squaredNorm := floats.Dot(row, row)
		if squaredNorm > r.MaxSquaredWeightNorm {
			floats.Scale(math.Sqrt(r.MaxSquaredWeightNorm/squaredNorm), row)
		}
	}
}
