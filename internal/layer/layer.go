// Package layer implements the layer primitives of a backpropagation net.
//
// This package provides:
//   - Layer interface: the contract shared by every layer variant
//   - OutputInfo: shape descriptor threaded from one layer to the next
//   - Registry: arena of parameter/gradient blocks aggregated by a net
//   - Regularization: L1/L2 penalties and max-squared-norm projection
//   - Variants: Input, FullyConnected, Compressed, Extreme, Convolutional,
//     Subsampling, MaxPooling, LocalResponseNormalization, Dropout, SigmaPi,
//     IntrinsicPlasticity
//
// All batches are gonum matrices with one sample per row. A layer owns its
// parameters as one contiguous []float64 block; the weight matrices a layer
// computes with are views over that block, so writes through the Registry are
// seen by the layer without copying.
package layer

import (
	"fmt"
	"math/rand/v2"

	"github.com/born-ml/backprop/internal/activation"
	"gonum.org/v1/gonum/mat"
)

// Layer is the contract every layer variant implements.
//
// A layer is used in three phases:
//   - Initialize: allocate and register parameters, return the output shape
//   - Forward: compute the output batch for an input batch
//   - Backward: compute parameter gradients and the error signal of the
//     previous layer from the error signal of this layer's output
//
// Backward is only valid immediately after a Forward call with the same batch
// size. Violating this is a programming error and panics.
type Layer interface {
	// Initialize allocates parameter storage, registers it with reg and fills
	// it from rng. The returned shape does not depend on rng; calling
	// Initialize again re-samples the parameters.
	Initialize(reg *Registry, rng *rand.Rand) (OutputInfo, error)

	// Forward propagates the batch x [N, inputs] and returns [N, outputs].
	//
	// training selects train-time behavior (dropout masks). When penalty is
	// not nil, the regularization penalty of the current parameters is added
	// to it. The returned matrix is owned by the layer and valid until the
	// next Forward call.
	Forward(x *mat.Dense, training bool, penalty *float64) *mat.Dense

	// Backward propagates the error signal ein [N, outputs], overwriting the
	// parameter gradients. When backpropToPrevious is true it returns the
	// error signal [N, inputs] for the previous layer; otherwise the returned
	// matrix is stale and must not be used.
	Backward(ein *mat.Dense, backpropToPrevious bool) *mat.Dense

	// UpdatedParameters is called after the parameters were written from
	// outside (by an optimizer or a net). It applies the max-squared-norm
	// projection and refreshes derived state.
	UpdatedParameters()

	// Output returns the output of the latest Forward call.
	Output() *mat.Dense

	// Parameters returns a copy of the parameters in registration order.
	Parameters() []float64

	// InputInfo returns the input shape the layer was constructed for.
	InputInfo() OutputInfo
}

// Activated is implemented by layers that pass their pre-activations through
// an activation function.
type Activated interface {
	Activation() activation.Function
}

// OutputInfo describes the shape of a layer's output, e.g. [maps, rows, cols]
// or [units].
type OutputInfo struct {
	Dimensions []int
}

// Shape creates an OutputInfo from dimension sizes.
func Shape(dims ...int) OutputInfo {
	return OutputInfo{Dimensions: append([]int(nil), dims...)}
}

// Outputs returns the number of scalar outputs (product of dimensions).
func (o OutputInfo) Outputs() int {
	if len(o.Dimensions) == 0 {
		return 0
	}
	n := 1
	for _, d := range o.Dimensions {
		n *= d
	}
	return n
}

// Equal reports whether both descriptors have identical dimensions.
func (o OutputInfo) Equal(other OutputInfo) bool {
	if len(o.Dimensions) != len(other.Dimensions) {
		return false
	}
	for i, d := range o.Dimensions {
		if other.Dimensions[i] != d {
			return false
		}
	}
	return true
}

// String returns a compact representation such as "2x4x4".
func (o OutputInfo) String() string {
	if len(o.Dimensions) == 0 {
		return "[]"
	}
	s := fmt.Sprint(o.Dimensions[0])
	for _, d := range o.Dimensions[1:] {
		s += fmt.Sprintf("x%d", d)
	}
	return s
}

// spatial interprets a shape as feature maps of rows x cols.
//
// A 3D shape is [maps, rows, cols], a 2D shape is a single map [rows, cols]
// and a 1D shape is [maps] of 1x1.
func (o OutputInfo) spatial() (maps, rows, cols int, err error) {
	switch len(o.Dimensions) {
	case 1:
		return o.Dimensions[0], 1, 1, nil
	case 2:
		return 1, o.Dimensions[0], o.Dimensions[1], nil
	case 3:
		return o.Dimensions[0], o.Dimensions[1], o.Dimensions[2], nil
	default:
		return 0, 0, 0, fmt.Errorf("%w: expected 1 to 3 dimensions, got %v", ErrInvalidConfig, o)
	}
}

// ensure returns m when it already has shape r x c, otherwise a new matrix.
func ensure(m *mat.Dense, r, c int) *mat.Dense {
	if m != nil {
		if mr, mc := m.Dims(); mr == r && mc == c {
			return m
		}
	}
	return mat.NewDense(r, c, nil)
}

// pass is the ready-for-backward tag of a layer.
type pass struct {
	ready bool
	rows  int
}

func (p *pass) forwarded(rows int) {
	p.ready = true
	p.rows = rows
}

// check panics unless a forward pass with the same batch size preceded.
func (p *pass) check(method string, ein *mat.Dense) {
	if !p.ready {
		panic(method + ": called before Forward")
	}
	if rows, _ := ein.Dims(); rows != p.rows {
		panic(fmt.Sprintf("%s: batch size %d does not match forward batch size %d", method, rows, p.rows))
	}
}

// checkInput panics when x does not have the expected number of columns.
func checkInput(method string, x *mat.Dense, inputs int) int {
	rows, cols := x.Dims()
	if cols != inputs {
		panic(fmt.Sprintf("%s: expected input with %d features, got %d", method, inputs, cols))
	}
	return rows
}

// fillNormal fills dst with samples of N(0, stdDev²).
func fillNormal(rng *rand.Rand, dst []float64, stdDev float64) {
	for i := range dst {
		dst[i] = rng.NormFloat64() * stdDev
	}
}

const defaultStdDev = 0.05

func stdDevOrDefault(s float64) float64 {
	if s == 0 {
		return defaultStdDev
	}
	return s
}
