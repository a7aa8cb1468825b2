package main

import (
	"testing"

	"github.com/born-ml/backprop/dataset"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestValidateSamples(t *testing.T) {
	assert.Error(t, validateSamples(0))
	assert.Error(t, validateSamples(-3))
	assert.NoError(t, validateSamples(1))
}

func TestBuildChain(t *testing.T) {
	n, err := buildChain(1)
	require.NoError(t, err)
	assert.Equal(t, []int{3}, n.OutputInfo().Dimensions)

	ds, err := dataset.NewDirectStorage(mat.NewDense(1, 36, nil), mat.NewDense(1, 3, nil))
	require.NoError(t, err)
	require.NoError(t, n.TrainingSet(ds))
	assert.Len(t, n.Gradient(), n.Dimension())
}
