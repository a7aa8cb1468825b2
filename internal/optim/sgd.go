package optim

import "math/rand/v2"

// MBSGD implements mini-batch Stochastic Gradient Descent with optional
// momentum.
//
// Update rule without momentum:
//
//	param = param - lr * gradient
//
// Update rule with momentum:
//
//	velocity = momentum * velocity + gradient
//	param = param - lr * velocity
//
// Every Step visits all training samples once in shuffled mini-batches when
// the function implements BatchOptimizable, and performs a single full-batch
// update otherwise. Gradients are sums over the batch, so the learning rate
// should shrink as the batch size grows.
//
// Example:
//
//	sgd := optim.NewMBSGD(n, optim.MBSGDConfig{
//	    LR:        0.01,
//	    Momentum:  0.9,
//	    BatchSize: 10,
//	})
//	for sgd.Step() {
//	}
type MBSGD struct {
	opt       Optimizable
	lr        float64
	momentum  float64
	batchSize int
	stop      StopCriteria
	rng       *rand.Rand

	velocity  []float64
	indices   []int
	iteration int
}

// MBSGDConfig holds configuration for the MBSGD optimizer.
type MBSGDConfig struct {
	LR        float64      // Learning rate (default: 0.01)
	Momentum  float64      // Momentum factor (default: 0.0, range: [0, 1))
	BatchSize int          // Samples per update (default: 10)
	Stop      StopCriteria // Default: 1000 iterations
	Rand      *rand.Rand   // Shuffles mini-batches (default: global source)
}

// NewMBSGD creates a new MBSGD optimizer for opt.
func NewMBSGD(opt Optimizable, config MBSGDConfig) *MBSGD {
	// Set defaults
	if config.LR == 0 {
		config.LR = 0.01
	}
	if config.BatchSize == 0 {
		config.BatchSize = 10
	}

	return &MBSGD{
		opt:       opt,
		lr:        config.LR,
		momentum:  config.Momentum,
		batchSize: config.BatchSize,
		stop:      config.Stop.withDefaults(),
		rng:       config.Rand,
		velocity:  make([]float64, opt.Dimension()),
	}
}

// Step performs one pass over the training set.
func (s *MBSGD) Step() bool {
	s.indices = sampleIndices(s.indices, s.opt.Examples())
	gradientSteps(s.opt, s.rng, s.batchSize, s.indices, s.update)
	s.iteration++
	s.opt.FinishedIteration()
	return !s.stop.reached(s.iteration, s.opt.Error)
}

func (s *MBSGD) update(p, g []float64) {
	if s.momentum == 0 {
		// Simple SGD: param -= lr * grad
		for i := range p {
			p[i] -= s.lr * g[i]
		}
		return
	}
	for i := range p {
		s.velocity[i] = s.momentum*s.velocity[i] + g[i]
		p[i] -= s.lr * s.velocity[i]
	}
}

// Optimize steps until the stop criteria are reached.
func (s *MBSGD) Optimize() { optimize(s) }

// GetLR returns the current learning rate.
func (s *MBSGD) GetLR() float64 {
	return s.lr
}

// SetLR updates the learning rate.
//
// Useful for learning rate scheduling during training.
func (s *MBSGD) SetLR(lr float64) {
	s.lr = lr
}

// Iteration returns the number of finished steps.
func (s *MBSGD) Iteration() int {
	return s.iteration
}
