package net

import (
	"fmt"

	"github.com/born-ml/backprop/internal/activation"
	"github.com/born-ml/backprop/internal/layer"
)

// Builder shorthands. Each one constructs a layer for the net's current
// output shape, with bias and the net's regularization where the layer
// supports them, and appends it with Add.

// InputLayer appends an input layer of the given shape. It must be the first
// layer.
func (n *Net) InputLayer(dims ...int) error {
	if n.state == stateFinalized {
		return fmt.Errorf("net: input layer: %w", ErrFinalized)
	}
	if n.state != stateEmpty {
		return fmt.Errorf("net: input layer: %w: input layer must come first", ErrShapeMismatch)
	}
	l, err := layer.NewInput(dims...)
	if err != nil {
		return fmt.Errorf("net: input layer: %w", err)
	}
	return n.Add(l)
}

// FullyConnectedLayer appends a dense layer.
func (n *Net) FullyConnectedLayer(units int, act activation.Function, stdDev float64) error {
	in, err := n.input("fully connected layer")
	if err != nil {
		return err
	}
	l, err := layer.NewFullyConnected(in, layer.FullyConnectedConfig{
		Units:          units,
		Bias:           true,
		Activation:     act,
		StdDev:         stdDev,
		Regularization: n.regularization,
	})
	if err != nil {
		return fmt.Errorf("net: fully connected layer: %w", err)
	}
	return n.Add(l)
}

// CompressedLayer appends a dense layer whose weights are expanded from
// basis coefficients per unit.
func (n *Net) CompressedLayer(units, basis int, act activation.Function, compression string, stdDev float64) error {
	in, err := n.input("compressed layer")
	if err != nil {
		return err
	}
	l, err := layer.NewCompressed(in, layer.CompressedConfig{
		Units:          units,
		Basis:          basis,
		Bias:           true,
		Activation:     act,
		Compression:    compression,
		StdDev:         stdDev,
		Regularization: n.regularization,
	})
	if err != nil {
		return fmt.Errorf("net: compressed layer: %w", err)
	}
	return n.Add(l)
}

// ExtremeLayer appends a dense layer with fixed random weights.
func (n *Net) ExtremeLayer(units int, act activation.Function, stdDev float64) error {
	in, err := n.input("extreme layer")
	if err != nil {
		return err
	}
	l, err := layer.NewExtreme(in, layer.ExtremeConfig{
		Units:      units,
		Bias:       true,
		Activation: act,
		StdDev:     stdDev,
	})
	if err != nil {
		return fmt.Errorf("net: extreme layer: %w", err)
	}
	return n.Add(l)
}

// ConvolutionalLayer appends a convolution with unit stride.
func (n *Net) ConvolutionalLayer(featureMaps, kernelRows, kernelCols int, act activation.Function, stdDev float64) error {
	in, err := n.input("convolutional layer")
	if err != nil {
		return err
	}
	l, err := layer.NewConvolutional(in, layer.ConvolutionalConfig{
		FeatureMaps:    featureMaps,
		KernelRows:     kernelRows,
		KernelCols:     kernelCols,
		Bias:           true,
		Activation:     act,
		StdDev:         stdDev,
		Regularization: n.regularization,
	})
	if err != nil {
		return fmt.Errorf("net: convolutional layer: %w", err)
	}
	return n.Add(l)
}

// SubsamplingLayer appends a learned sum-pooling layer.
func (n *Net) SubsamplingLayer(kernelRows, kernelCols int, act activation.Function, stdDev float64) error {
	in, err := n.input("subsampling layer")
	if err != nil {
		return err
	}
	l, err := layer.NewSubsampling(in, layer.SubsamplingConfig{
		KernelRows:     kernelRows,
		KernelCols:     kernelCols,
		Bias:           true,
		Activation:     act,
		StdDev:         stdDev,
		Regularization: n.regularization,
	})
	if err != nil {
		return fmt.Errorf("net: subsampling layer: %w", err)
	}
	return n.Add(l)
}

// MaxPoolingLayer appends a max-pooling layer.
func (n *Net) MaxPoolingLayer(kernelRows, kernelCols int) error {
	in, err := n.input("max pooling layer")
	if err != nil {
		return err
	}
	l, err := layer.NewMaxPooling(in, layer.MaxPoolingConfig{KernelRows: kernelRows, KernelCols: kernelCols})
	if err != nil {
		return fmt.Errorf("net: max pooling layer: %w", err)
	}
	return n.Add(l)
}

// LocalResponseNormalizationLayer appends a cross-map normalization layer.
func (n *Net) LocalResponseNormalizationLayer(k float64, size int, alpha, beta float64) error {
	in, err := n.input("local response normalization layer")
	if err != nil {
		return err
	}
	l, err := layer.NewLocalResponseNormalization(in, layer.LocalResponseNormalizationConfig{
		K:     k,
		N:     size,
		Alpha: alpha,
		Beta:  beta,
	})
	if err != nil {
		return fmt.Errorf("net: local response normalization layer: %w", err)
	}
	return n.Add(l)
}

// DropoutLayer appends a dropout layer.
func (n *Net) DropoutLayer(dropProbability float64) error {
	in, err := n.input("dropout layer")
	if err != nil {
		return err
	}
	l, err := layer.NewDropout(in, layer.DropoutConfig{DropProbability: dropProbability})
	if err != nil {
		return fmt.Errorf("net: dropout layer: %w", err)
	}
	return n.Add(l)
}

// SigmaPiLayer appends a higher-order layer with the given node groups.
func (n *Net) SigmaPiLayer(act activation.Function, stdDev float64, nodes ...layer.NodeGroup) error {
	in, err := n.input("sigma-pi layer")
	if err != nil {
		return err
	}
	l, err := layer.NewSigmaPi(in, layer.SigmaPiConfig{
		Bias:           true,
		Activation:     act,
		StdDev:         stdDev,
		Regularization: n.regularization,
		Nodes:          nodes,
	})
	if err != nil {
		return fmt.Errorf("net: sigma-pi layer: %w", err)
	}
	return n.Add(l)
}

// IntrinsicPlasticityLayer appends an intrinsic plasticity layer.
func (n *Net) IntrinsicPlasticityLayer(targetMean, stdDev float64) error {
	in, err := n.input("intrinsic plasticity layer")
	if err != nil {
		return err
	}
	l, err := layer.NewIntrinsicPlasticity(in, layer.IntrinsicPlasticityConfig{TargetMean: targetMean, StdDev: stdDev})
	if err != nil {
		return fmt.Errorf("net: intrinsic plasticity layer: %w", err)
	}
	return n.Add(l)
}

// OutputLayer appends the final dense layer. A softmax output switches the
// net to cross entropy.
func (n *Net) OutputLayer(units int, act activation.Function, stdDev float64) error {
	if err := n.FullyConnectedLayer(units, act, stdDev); err != nil {
		return err
	}
	if act == activation.Softmax {
		n.errorFunction = CrossEntropy
	}
	return nil
}

func (n *Net) input(name string) (layer.OutputInfo, error) {
	if n.state == stateEmpty {
		return layer.OutputInfo{}, fmt.Errorf("net: %s: %w", name, ErrEmpty)
	}
	if n.state == stateFinalized {
		return layer.OutputInfo{}, fmt.Errorf("net: %s: %w", name, ErrFinalized)
	}
	return n.OutputInfo(), nil
}
