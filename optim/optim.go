// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package optim

import (
	"github.com/born-ml/backprop/internal/optim"
)

// Optimizer interface defines the common interface for all optimizers.
type Optimizer = optim.Optimizer

// Optimizable is a differentiable function of a parameter vector.
type Optimizable = optim.Optimizable

// BatchOptimizable is an Optimizable with mini-batch access.
type BatchOptimizable = optim.BatchOptimizable

// StopCriteria decide when an optimizer stops.
type StopCriteria = optim.StopCriteria

// DefaultMaximalIterations bounds optimizers configured without a stop
// criterion.
const DefaultMaximalIterations = optim.DefaultMaximalIterations

// MBSGD (mini-batch Stochastic Gradient Descent)

// MBSGD represents the mini-batch SGD optimizer with optional momentum.
type MBSGD = optim.MBSGD

// MBSGDConfig contains configuration for MBSGD optimizer.
type MBSGDConfig = optim.MBSGDConfig

// NewMBSGD creates a new MBSGD optimizer.
//
// Example:
//
//	optimizer := optim.NewMBSGD(net, optim.MBSGDConfig{
//	    LR:        0.01,
//	    Momentum:  0.9,
//	    BatchSize: 32,
//	})
func NewMBSGD(opt Optimizable, config MBSGDConfig) *MBSGD {
	return optim.NewMBSGD(opt, config)
}

// Adam (Adaptive Moment Estimation)

// Adam represents the Adam optimizer.
type Adam = optim.Adam

// AdamConfig contains configuration for Adam optimizer.
type AdamConfig = optim.AdamConfig

// NewAdam creates a new Adam optimizer.
//
// Example:
//
//	optimizer := optim.NewAdam(net, optim.AdamConfig{
//	    LR:    0.001,
//	    Betas: [2]float64{0.9, 0.999},
//	    Eps:   1e-8,
//	})
func NewAdam(opt Optimizable, config AdamConfig) *Adam {
	return optim.NewAdam(opt, config)
}
