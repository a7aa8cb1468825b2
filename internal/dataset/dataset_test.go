package dataset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestDirectStorage(t *testing.T) {
	x := mat.NewDense(3, 2, []float64{1, 2, 3, 4, 5, 6})
	y := mat.NewDense(3, 1, []float64{7, 8, 9})

	ds, err := NewDirectStorage(x, y)
	require.NoError(t, err)

	assert.Equal(t, 3, ds.Samples())
	assert.Equal(t, 2, ds.Inputs())
	assert.Equal(t, 1, ds.Outputs())
	assert.Equal(t, []float64{3, 4}, ds.Instance(1))
	assert.Equal(t, []float64{9}, ds.Target(2))

	// Returned rows are copies.
	ds.Instance(0)[0] = 100
	assert.Equal(t, 1.0, x.At(0, 0))
}

func TestDirectStorage_Mismatch(t *testing.T) {
	_, err := NewDirectStorage(mat.NewDense(3, 2, nil), mat.NewDense(2, 1, nil))
	assert.ErrorIs(t, err, ErrDimensionMismatch)

	_, err = NewDirectStorage(nil, mat.NewDense(2, 1, nil))
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestBatch(t *testing.T) {
	x := mat.NewDense(3, 2, []float64{1, 2, 3, 4, 5, 6})
	y := mat.NewDense(3, 1, []float64{7, 8, 9})
	ds, err := NewDirectStorage(x, y)
	require.NoError(t, err)

	bx, bt := Batch(ds, []int{2, 0})
	assert.Equal(t, []float64{5, 6}, bx.RawRowView(0))
	assert.Equal(t, []float64{1, 2}, bx.RawRowView(1))
	assert.Equal(t, []float64{9}, bt.RawRowView(0))
	assert.Equal(t, []float64{7}, bt.RawRowView(1))

	assert.Panics(t, func() { Batch(ds, []int{3}) })
	assert.Equal(t, []int{0, 1, 2}, Indices(3))
}
