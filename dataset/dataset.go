// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package dataset provides the training data source of a net.
package dataset

import (
	"github.com/born-ml/backprop/internal/dataset"
	"gonum.org/v1/gonum/mat"
)

// DataSet gives indexed access to training samples.
type DataSet = dataset.DataSet

// DirectStorage is a DataSet backed by two matrices.
type DirectStorage = dataset.DirectStorage

// ErrDimensionMismatch is returned when inputs and targets disagree.
var ErrDimensionMismatch = dataset.ErrDimensionMismatch

// NewDirectStorage wraps x [samples, inputs] and t [samples, outputs].
//
// Example:
//
//	x := mat.NewDense(4, 2, []float64{0, 0, 0, 1, 1, 0, 1, 1})
//	t := mat.NewDense(4, 1, []float64{0, 1, 1, 0})
//	ds, err := dataset.NewDirectStorage(x, t)
func NewDirectStorage(x, t *mat.Dense) (*DirectStorage, error) {
	return dataset.NewDirectStorage(x, t)
}

// Batch assembles the samples at indices into matrices.
func Batch(ds DataSet, indices []int) (x, t *mat.Dense) {
	return dataset.Batch(ds, indices)
}

// Indices returns 0 .. n-1.
func Indices(n int) []int {
	return dataset.Indices(n)
}
