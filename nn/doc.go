// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package nn provides the layers of a backpropagation net and the net that
// chains them.
//
// # Overview
//
// This package contains:
//   - Layers: Input, FullyConnected, Compressed, Extreme, Convolutional,
//     Subsampling, MaxPooling, LocalResponseNormalization, Dropout, SigmaPi,
//     IntrinsicPlasticity
//   - Activations: Logistic, Tanh, ScaledTanh, Rectifier, Linear, Softmax
//   - Error functions: SSE, CrossEntropy
//   - Net: the layer chain with forward, backward and parameter access
//   - Regularization: L1, L2 and max-squared-norm weight constraints
//
// # Basic Usage
//
//	import (
//	    "github.com/born-ml/backprop/dataset"
//	    "github.com/born-ml/backprop/nn"
//	)
//
//	func main() {
//	    net := nn.New(nn.WithSeed(1))
//	    _ = net.InputLayer(1, 6, 6)
//	    _ = net.ConvolutionalLayer(4, 3, 3, nn.Tanh, 0.5)
//	    _ = net.SubsamplingLayer(2, 2, nn.Tanh, 0.5)
//	    _ = net.OutputLayer(3, nn.Softmax, 0.5)
//
//	    ds, _ := dataset.NewDirectStorage(x, t)
//	    _ = net.TrainingSet(ds)
//
//	    loss, grad := net.ErrorGradient([]int{0, 1, 2})
//	}
//
// # Layers
//
// Every layer is constructed for the output shape of the previous one and
// appended with Add, or built in one call with a shorthand:
//
//	fc, err := nn.NewFullyConnected(net.OutputInfo(), nn.FullyConnectedConfig{
//	    Units:      10,
//	    Bias:       true,
//	    Activation: nn.Tanh,
//	})
//	err = net.Add(fc)
//
// # Parameters
//
// A net exposes all trainable parameters as one flat vector in layer order.
// Within a layer, weights come first in row-major order, followed by biases.
//
//	p := net.CurrentParameters()
//	net.SetParameters(p)
package nn
