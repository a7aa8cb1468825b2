// Package dataset defines the data source consumed by nets and provides an
// in-memory implementation.
package dataset

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// ErrDimensionMismatch is returned when inputs and targets disagree.
var ErrDimensionMismatch = errors.New("dataset: dimension mismatch")

// DataSet gives indexed access to training samples.
//
// Implementations are queried on demand; a net keeps a reference and never
// copies the whole set.
type DataSet interface {
	// Samples returns the number of samples.
	Samples() int
	// Inputs returns the dimension of an input vector.
	Inputs() int
	// Outputs returns the dimension of a target vector.
	Outputs() int
	// Instance returns the input vector of sample i.
	Instance(i int) []float64
	// Target returns the target vector of sample i.
	Target(i int) []float64
}

// DirectStorage is a DataSet backed by two matrices with one sample per row.
//
// Example:
//
//	x := mat.NewDense(4, 2, []float64{0, 0, 0, 1, 1, 0, 1, 1})
//	t := mat.NewDense(4, 1, []float64{0, 1, 1, 0})
//	ds, err := dataset.NewDirectStorage(x, t)
type DirectStorage struct {
	x, t *mat.Dense
}

// NewDirectStorage wraps x [samples, inputs] and t [samples, outputs]
// without copying them.
func NewDirectStorage(x, t *mat.Dense) (*DirectStorage, error) {
	if x == nil || t == nil {
		return nil, fmt.Errorf("%w: nil matrix", ErrDimensionMismatch)
	}
	xr, _ := x.Dims()
	tr, _ := t.Dims()
	if xr != tr {
		return nil, fmt.Errorf("%w: %d inputs but %d targets", ErrDimensionMismatch, xr, tr)
	}
	return &DirectStorage{x: x, t: t}, nil
}

// Samples returns the number of rows.
func (d *DirectStorage) Samples() int {
	r, _ := d.x.Dims()
	return r
}

// Inputs returns the number of input columns.
func (d *DirectStorage) Inputs() int {
	_, c := d.x.Dims()
	return c
}

// Outputs returns the number of target columns.
func (d *DirectStorage) Outputs() int {
	_, c := d.t.Dims()
	return c
}

// Instance returns a copy of row i of the inputs.
func (d *DirectStorage) Instance(i int) []float64 {
	return mat.Row(nil, i, d.x)
}

// Target returns a copy of row i of the targets.
func (d *DirectStorage) Target(i int) []float64 {
	return mat.Row(nil, i, d.t)
}

// Batch assembles the samples at indices into an input and a target matrix.
func Batch(ds DataSet, indices []int) (x, t *mat.Dense) {
	if len(indices) == 0 {
		panic("dataset.Batch: empty index list")
	}
	x = mat.NewDense(len(indices), ds.Inputs(), nil)
	t = mat.NewDense(len(indices), ds.Outputs(), nil)
	for row, i := range indices {
		if i < 0 || i >= ds.Samples() {
			panic(fmt.Sprintf("dataset.Batch: sample %d out of range [0, %d)", i, ds.Samples()))
		}
		x.SetRow(row, ds.Instance(i))
		t.SetRow(row, ds.Target(i))
	}
	return x, t
}

// Indices returns 0 .. n-1.
func Indices(n int) []int {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	return idx
}
