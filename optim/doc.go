// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package optim provides optimization algorithms for training neural networks.
//
// # Overview
//
// This package contains:
//   - MBSGD: mini-batch Stochastic Gradient Descent with momentum
//   - Adam: Adaptive Moment Estimation with bias correction
//   - Optimizer interface for custom optimizers
//   - Optimizable: the contract a net implements to be trained
//
// # Basic Usage
//
//	import (
//	    "github.com/born-ml/backprop/nn"
//	    "github.com/born-ml/backprop/optim"
//	)
//
//	func main() {
//	    net := nn.New(nn.WithSeed(1))
//	    // ... add layers and a training set
//
//	    optimizer := optim.NewAdam(net, optim.AdamConfig{
//	        LR:        0.001,
//	        BatchSize: 16,
//	        Stop:      optim.StopCriteria{MaximalIterations: 100},
//	    })
//	    optimizer.Optimize()
//	}
//
// # Training Loop Pattern
//
// Step performs one pass over the training set and reports whether the stop
// criteria allow another one:
//
//	for optimizer.Step() {
//	    fmt.Println(net.Error())
//	}
//
// # Custom Functions
//
// Anything implementing Optimizable can be optimized. Implementing
// BatchOptimizable as well enables shuffled mini-batches:
//
//	type Optimizable interface {
//	    Dimension() int
//	    CurrentParameters() []float64
//	    SetParameters(p []float64)
//	    Error() float64
//	    Gradient() []float64
//	    Examples() int
//	    FinishedIteration()
//	}
package optim
