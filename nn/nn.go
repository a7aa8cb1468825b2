// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package nn

import (
	"github.com/born-ml/backprop/internal/activation"
	"github.com/born-ml/backprop/internal/layer"
	"github.com/born-ml/backprop/internal/net"
)

// Net

// Net is an ordered chain of layers trained by backpropagation.
type Net = net.Net

// Option configures a Net.
type Option = net.Option

// New creates an empty net.
//
// Example:
//
//	n := nn.New(nn.WithSeed(42), nn.WithRegularization(nn.Regularization{L2: 1e-4}))
func New(opts ...Option) *Net {
	return net.New(opts...)
}

// Net options.
var (
	WithSeed           = net.WithSeed
	WithRand           = net.WithRand
	WithRegularization = net.WithRegularization
	WithErrorFunction  = net.WithErrorFunction
	WithDropout        = net.WithDropout
	WithIterationHook  = net.WithIterationHook
)

// LayerAdapter wraps a single layer as an optimizable function.
type LayerAdapter = net.LayerAdapter

// NewLayerAdapter initializes l and binds a random sample.
var NewLayerAdapter = net.NewLayerAdapter

// ErrorFunction selects the loss of a net.
type ErrorFunction = net.ErrorFunction

// Error functions.
const (
	SSE          = net.SSE
	CrossEntropy = net.CrossEntropy
)

// Activations

// Activation is an elementwise (or row-wise, for Softmax) activation.
type Activation = activation.Function

// Activation functions.
const (
	Logistic   = activation.Logistic
	Tanh       = activation.Tanh
	ScaledTanh = activation.ScaledTanh
	Rectifier  = activation.Rectifier
	Linear     = activation.Linear
	Softmax    = activation.Softmax
)

// ParseActivation returns the activation with the given name.
func ParseActivation(name string) (Activation, error) {
	return activation.Parse(name)
}

// Layers

// Layer is the contract every layer implements.
type Layer = layer.Layer

// Activated is implemented by layers with an activation function.
type Activated = layer.Activated

// OutputInfo describes the shape of a layer's output.
type OutputInfo = layer.OutputInfo

// Shape creates an OutputInfo.
func Shape(dims ...int) OutputInfo {
	return layer.Shape(dims...)
}

// Registry is the flat parameter view of a net.
type Registry = layer.Registry

// Segment locates one layer's parameters inside a Registry.
type Segment = layer.Segment

// Regularization configures weight penalties and constraints.
type Regularization = layer.Regularization

// Layer types and configurations.
type (
	Input                            = layer.Input
	FullyConnected                   = layer.FullyConnected
	FullyConnectedConfig             = layer.FullyConnectedConfig
	Compressed                       = layer.Compressed
	CompressedConfig                 = layer.CompressedConfig
	Extreme                          = layer.Extreme
	ExtremeConfig                    = layer.ExtremeConfig
	Convolutional                    = layer.Convolutional
	ConvolutionalConfig              = layer.ConvolutionalConfig
	Subsampling                      = layer.Subsampling
	SubsamplingConfig                = layer.SubsamplingConfig
	MaxPooling                       = layer.MaxPooling
	MaxPoolingConfig                 = layer.MaxPoolingConfig
	LocalResponseNormalization       = layer.LocalResponseNormalization
	LocalResponseNormalizationConfig = layer.LocalResponseNormalizationConfig
	Dropout                          = layer.Dropout
	DropoutConfig                    = layer.DropoutConfig
	SigmaPi                          = layer.SigmaPi
	SigmaPiConfig                    = layer.SigmaPiConfig
	NodeGroup                        = layer.NodeGroup
	Constraint                       = layer.Constraint
	IntrinsicPlasticity              = layer.IntrinsicPlasticity
	IntrinsicPlasticityConfig        = layer.IntrinsicPlasticityConfig
)

// Layer constructors.
var (
	NewInput                      = layer.NewInput
	NewFullyConnected             = layer.NewFullyConnected
	NewCompressed                 = layer.NewCompressed
	NewExtreme                    = layer.NewExtreme
	NewConvolutional              = layer.NewConvolutional
	NewSubsampling                = layer.NewSubsampling
	NewMaxPooling                 = layer.NewMaxPooling
	NewLocalResponseNormalization = layer.NewLocalResponseNormalization
	NewDropout                    = layer.NewDropout
	NewSigmaPi                    = layer.NewSigmaPi
	NewIntrinsicPlasticity        = layer.NewIntrinsicPlasticity
	SecondOrderNodes              = layer.SecondOrderNodes
	ThirdOrderNodes               = layer.ThirdOrderNodes
)

// Compression methods of a Compressed layer.
const (
	CompressionGaussian = layer.CompressionGaussian
	CompressionSparse   = layer.CompressionSparse
	CompressionAverage  = layer.CompressionAverage
	CompressionDCT      = layer.CompressionDCT
)

// Errors

// Configuration errors. Test with errors.Is.
var (
	ErrInvalidConfig      = layer.ErrInvalidConfig
	ErrIndivisiblePooling = layer.ErrIndivisiblePooling
	ErrUnknownCompression = layer.ErrUnknownCompression
	ErrShapeMismatch      = net.ErrShapeMismatch
	ErrFinalized          = net.ErrFinalized
	ErrNotFinalized       = net.ErrNotFinalized
	ErrEmpty              = net.ErrEmpty
)
