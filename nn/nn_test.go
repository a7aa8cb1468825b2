// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package nn_test

import (
	"testing"

	"github.com/born-ml/backprop/dataset"
	"github.com/born-ml/backprop/gradcheck"
	"github.com/born-ml/backprop/nn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

// TestLayerInterface verifies that every layer type implements Layer.
func TestLayerInterface(t *testing.T) {
	in := nn.Shape(2, 4, 4)
	tests := []struct {
		name  string
		build func() (nn.Layer, error)
		out   []int
	}{
		{"FullyConnected", func() (nn.Layer, error) {
			return nn.NewFullyConnected(in, nn.FullyConnectedConfig{Units: 3, Bias: true})
		}, []int{3}},
		{"Compressed", func() (nn.Layer, error) {
			return nn.NewCompressed(in, nn.CompressedConfig{Units: 3, Basis: 2, Compression: nn.CompressionDCT})
		}, []int{3}},
		{"Extreme", func() (nn.Layer, error) {
			return nn.NewExtreme(in, nn.ExtremeConfig{Units: 5})
		}, []int{5}},
		{"Convolutional", func() (nn.Layer, error) {
			return nn.NewConvolutional(in, nn.ConvolutionalConfig{FeatureMaps: 3, KernelRows: 2, KernelCols: 2})
		}, []int{3, 3, 3}},
		{"Subsampling", func() (nn.Layer, error) {
			return nn.NewSubsampling(in, nn.SubsamplingConfig{KernelRows: 2, KernelCols: 2})
		}, []int{2, 2, 2}},
		{"MaxPooling", func() (nn.Layer, error) {
			return nn.NewMaxPooling(in, nn.MaxPoolingConfig{KernelRows: 4, KernelCols: 2})
		}, []int{2, 1, 2}},
		{"LocalResponseNormalization", func() (nn.Layer, error) {
			return nn.NewLocalResponseNormalization(in, nn.LocalResponseNormalizationConfig{K: 1, N: 2, Alpha: 1e-4, Beta: 0.75})
		}, []int{2, 4, 4}},
		{"Dropout", func() (nn.Layer, error) {
			return nn.NewDropout(in, nn.DropoutConfig{DropProbability: 0.2})
		}, []int{2, 4, 4}},
		{"SigmaPi", func() (nn.Layer, error) {
			return nn.NewSigmaPi(in, nn.SigmaPiConfig{Nodes: []nn.NodeGroup{nn.SecondOrderNodes(2, nil)}})
		}, []int{2}},
		{"IntrinsicPlasticity", func() (nn.Layer, error) {
			return nn.NewIntrinsicPlasticity(in, nn.IntrinsicPlasticityConfig{TargetMean: 0.2})
		}, []int{2, 4, 4}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := tt.build()
			require.NoError(t, err)

			n := nn.New(nn.WithSeed(1))
			require.NoError(t, n.InputLayer(2, 4, 4))
			require.NoError(t, n.Add(l))
			assert.Equal(t, tt.out, n.OutputInfo().Dimensions)

			y := n.Predict(mat.NewDense(2, 32, nil))
			rows, cols := y.Dims()
			assert.Equal(t, 2, rows)
			assert.Equal(t, nn.Shape(tt.out...).Outputs(), cols)
		})
	}
}

func TestNet_EndToEnd(t *testing.T) {
	n := nn.New(nn.WithSeed(5), nn.WithRegularization(nn.Regularization{L2: 0.01}))
	require.NoError(t, n.InputLayer(2))
	require.NoError(t, n.SigmaPiLayer(nn.Tanh, 0.5, nn.SecondOrderNodes(3, nil)))
	require.NoError(t, n.IntrinsicPlasticityLayer(0.3, 0.1))
	require.NoError(t, n.OutputLayer(2, nn.Softmax, 0.5))
	assert.Equal(t, nn.CrossEntropy, n.ErrorFunction())

	x := mat.NewDense(4, 2, []float64{0, 0, 0, 1, 1, 0, 1, 1})
	y := mat.NewDense(4, 2, []float64{1, 0, 0, 1, 0, 1, 1, 0})
	ds, err := dataset.NewDirectStorage(x, y)
	require.NoError(t, err)
	require.NoError(t, n.TrainingSet(ds))

	est := gradcheck.ParameterGradient(n, gradcheck.DefaultSettings())
	assert.Less(t, gradcheck.Compare(n.Gradient(), est), 1e-6)

	assert.ErrorIs(t, n.DropoutLayer(0.5), nn.ErrFinalized)
}
