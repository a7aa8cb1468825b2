// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package gradcheck verifies analytic gradients against central finite
// differences.
//
// Example:
//
//	est := gradcheck.ParameterGradient(net, gradcheck.DefaultSettings())
//	if gradcheck.Compare(net.Gradient(), est) > 1e-4 {
//	    // backpropagation is wrong
//	}
package gradcheck

import (
	"github.com/born-ml/backprop/internal/gradcheck"
	"gonum.org/v1/gonum/mat"
)

// Settings control the finite-difference evaluations.
type Settings = gradcheck.Settings

// Function is a scalar function of a parameter vector.
type Function = gradcheck.Function

// InputDifferentiable is a loss of an input batch and its targets.
type InputDifferentiable = gradcheck.InputDifferentiable

// DefaultStep is the default difference step.
const DefaultStep = gradcheck.DefaultStep

// DefaultSettings returns an absolute step of 1e-5.
func DefaultSettings() Settings {
	return gradcheck.DefaultSettings()
}

// ParameterGradient estimates the gradient of f's error for all parameters.
func ParameterGradient(f Function, s Settings) []float64 {
	return gradcheck.ParameterGradient(f, s)
}

// ParameterDerivative estimates the derivative for parameter i.
func ParameterDerivative(f Function, i int, s Settings) float64 {
	return gradcheck.ParameterDerivative(f, i, s)
}

// InputGradient estimates the gradient of f's loss for the input x.
func InputGradient(x, t []float64, f InputDifferentiable, s Settings) []float64 {
	return gradcheck.InputGradient(x, t, f, s)
}

// Compare returns the maximum absolute deviation between two gradients.
func Compare(analytic, estimate []float64) float64 {
	return gradcheck.Compare(analytic, estimate)
}

// CompareRows compares the first row of an analytic input gradient with an
// estimate.
func CompareRows(analytic *mat.Dense, estimate []float64) float64 {
	return gradcheck.Compare(analytic.RawRowView(0), estimate)
}
