// Package optim implements optimization algorithms for training neural networks.
//
// This package provides:
//   - Optimizable: the contract of a function that can be trained
//   - BatchOptimizable: optional mini-batch access to the error and gradient
//   - Optimizer interface: Base interface for all optimizers
//   - MBSGD: mini-batch stochastic gradient descent with momentum
//   - Adam: Adaptive Moment Estimation
//   - StopCriteria: when an optimizer stops iterating
//
// Example usage:
//
//	n := net.New(net.WithSeed(1))
//	// ... add layers, bind a training set
//
//	opt := optim.NewMBSGD(n, optim.MBSGDConfig{
//	    LR:        0.01,
//	    Momentum:  0.9,
//	    BatchSize: 16,
//	    Stop:      optim.StopCriteria{MaximalIterations: 100},
//	})
//	opt.Optimize()
package optim

import "math/rand/v2"

// Optimizable is a differentiable function of a parameter vector, usually a
// net bound to a training set.
type Optimizable interface {
	// Dimension returns the number of parameters.
	Dimension() int
	// CurrentParameters returns a copy of the parameters.
	CurrentParameters() []float64
	// SetParameters overwrites the parameters.
	SetParameters(p []float64)
	// Error returns the value to minimize.
	Error() float64
	// Gradient returns the gradient of Error.
	Gradient() []float64
	// Examples returns the number of training samples.
	Examples() int
	// FinishedIteration is called after every optimizer iteration.
	FinishedIteration()
}

// BatchOptimizable is an Optimizable whose error is a sum over samples that
// can be evaluated on a subset.
type BatchOptimizable interface {
	Optimizable
	// ErrorGradient returns the error and gradient over the samples at indices.
	ErrorGradient(indices []int) (float64, []float64)
}

// Optimizer is the base interface for all optimization algorithms.
type Optimizer interface {
	// Step performs one iteration (one pass over all mini-batches) and reports
	// whether the optimizer should continue.
	Step() bool

	// Optimize iterates until the stop criteria are reached.
	Optimize()

	// GetLR returns the current learning rate.
	GetLR() float64
}

// DefaultMaximalIterations bounds optimizers configured without any stop
// criterion.
const DefaultMaximalIterations = 1000

// StopCriteria decide when an optimizer stops. Zero fields are disabled.
type StopCriteria struct {
	MaximalIterations int     // Stop after this many iterations
	MinimalValue      float64 // Stop once the error drops to or below this value
}

func (s StopCriteria) withDefaults() StopCriteria {
	if s.MaximalIterations <= 0 && s.MinimalValue <= 0 {
		s.MaximalIterations = DefaultMaximalIterations
	}
	return s
}

// reached reports whether iteration (1-based) stops the optimizer. errorFn is
// only evaluated when a minimal value is configured.
func (s StopCriteria) reached(iteration int, errorFn func() float64) bool {
	if s.MaximalIterations > 0 && iteration >= s.MaximalIterations {
		return true
	}
	return s.MinimalValue > 0 && errorFn() <= s.MinimalValue
}

func optimize(o Optimizer) {
	for o.Step() {
	}
}

// batches splits a shuffled permutation of n samples into batches of size
// (the last one may be smaller).
func batches(rng *rand.Rand, indices []int, size int) [][]int {
	if rng != nil {
		rng.Shuffle(len(indices), func(i, j int) { indices[i], indices[j] = indices[j], indices[i] })
	} else {
		rand.Shuffle(len(indices), func(i, j int) { indices[i], indices[j] = indices[j], indices[i] })
	}
	var out [][]int
	for start := 0; start < len(indices); start += size {
		out = append(out, indices[start:min(start+size, len(indices))])
	}
	return out
}

// gradientSteps calls update with the parameters and one gradient per
// mini-batch, writing the parameters back after each update. Without mini-batch
// access the full gradient is used.
func gradientSteps(opt Optimizable, rng *rand.Rand, batchSize int, indices []int, update func(p, g []float64)) {
	bo, ok := opt.(BatchOptimizable)
	if !ok || batchSize <= 0 || opt.Examples() == 0 {
		p := opt.CurrentParameters()
		update(p, opt.Gradient())
		opt.SetParameters(p)
		return
	}
	for _, batch := range batches(rng, indices, batchSize) {
		_, g := bo.ErrorGradient(batch)
		p := opt.CurrentParameters()
		update(p, g)
		opt.SetParameters(p)
	}
}

func sampleIndices(indices []int, n int) []int {
	if len(indices) != n {
		indices = make([]int, n)
		for i := range indices {
			indices[i] = i
		}
	}
	return indices
}
