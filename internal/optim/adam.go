package optim

import (
	"math"
	"math/rand/v2"
)

// Adam implements the Adam (Adaptive Moment Estimation) optimizer.
//
// Adam combines ideas from RMSprop and momentum:
//   - Maintains exponential moving averages of gradients (first moment)
//   - Maintains exponential moving averages of squared gradients (second moment)
//   - Applies bias correction to compensate for initialization at zero
//
// Update rule:
//
//	m_t = beta1 * m_{t-1} + (1-beta1) * gradient       // First moment
//	v_t = beta2 * v_{t-1} + (1-beta2) * gradient²      // Second moment
//	m_hat = m_t / (1 - beta1^t)                        // Bias correction
//	v_hat = v_t / (1 - beta2^t)                        // Bias correction
//	param = param - lr * m_hat / (sqrt(v_hat) + eps)  // Parameter update
//
// The timestep t counts updates, i.e. mini-batches, not iterations.
//
// Reference: "Adam: A Method for Stochastic Optimization" (Kingma & Ba, 2014)
//
// Example:
//
//	adam := optim.NewAdam(n, optim.AdamConfig{
//	    LR:    0.001,
//	    Betas: [2]float64{0.9, 0.999},
//	    Stop:  optim.StopCriteria{MaximalIterations: 200},
//	})
//	adam.Optimize()
type Adam struct {
	opt       Optimizable
	lr        float64
	beta1     float64
	beta2     float64
	eps       float64
	batchSize int
	stop      StopCriteria
	rng       *rand.Rand

	t         int       // Timestep for bias correction
	m         []float64 // First moment estimates
	v         []float64 // Second moment estimates
	indices   []int
	iteration int
}

// AdamConfig holds configuration for Adam optimizer.
type AdamConfig struct {
	LR        float64      // Learning rate (default: 0.001)
	Betas     [2]float64   // Coefficients for computing running averages (default: [0.9, 0.999])
	Eps       float64      // Term for numerical stability (default: 1e-8)
	BatchSize int          // Samples per update (default: 0, full batch)
	Stop      StopCriteria // Default: 1000 iterations
	Rand      *rand.Rand   // Shuffles mini-batches (default: global source)
}

// NewAdam creates a new Adam optimizer for opt.
//
// Default hyperparameters:
//   - LR: 0.001
//   - Beta1: 0.9
//   - Beta2: 0.999
//   - Eps: 1e-8
func NewAdam(opt Optimizable, config AdamConfig) *Adam {
	// Set defaults
	if config.LR == 0 {
		config.LR = 0.001
	}
	if config.Betas[0] == 0 {
		config.Betas[0] = 0.9
	}
	if config.Betas[1] == 0 {
		config.Betas[1] = 0.999
	}
	if config.Eps == 0 {
		config.Eps = 1e-8
	}

	return &Adam{
		opt:       opt,
		lr:        config.LR,
		beta1:     config.Betas[0],
		beta2:     config.Betas[1],
		eps:       config.Eps,
		batchSize: config.BatchSize,
		stop:      config.Stop.withDefaults(),
		rng:       config.Rand,
		m:         make([]float64, opt.Dimension()),
		v:         make([]float64, opt.Dimension()),
	}
}

// Step performs one pass over the training set.
func (a *Adam) Step() bool {
	a.indices = sampleIndices(a.indices, a.opt.Examples())
	gradientSteps(a.opt, a.rng, a.batchSize, a.indices, a.update)
	a.iteration++
	a.opt.FinishedIteration()
	return !a.stop.reached(a.iteration, a.opt.Error)
}

// update performs one Adam update of p with gradient g.
func (a *Adam) update(p, g []float64) {
	a.t++
	biasCorrection1 := 1 - math.Pow(a.beta1, float64(a.t))
	biasCorrection2 := 1 - math.Pow(a.beta2, float64(a.t))

	for i := range p {
		a.m[i] = a.beta1*a.m[i] + (1-a.beta1)*g[i]
		a.v[i] = a.beta2*a.v[i] + (1-a.beta2)*g[i]*g[i]
		mHat := a.m[i] / biasCorrection1
		vHat := a.v[i] / biasCorrection2
		p[i] -= a.lr * mHat / (math.Sqrt(vHat) + a.eps)
	}
}

// Optimize steps until the stop criteria are reached.
func (a *Adam) Optimize() { optimize(a) }

// GetLR returns the current learning rate.
func (a *Adam) GetLR() float64 {
	return a.lr
}

// SetLR updates the learning rate.
//
// Useful for learning rate scheduling during training.
func (a *Adam) SetLR(lr float64) {
	a.lr = lr
}

// GetTimestep returns the current timestep.
//
// Useful for monitoring optimizer state.
func (a *Adam) GetTimestep() int {
	return a.t
}

// Iteration returns the number of finished steps.
func (a *Adam) Iteration() int {
	return a.iteration
}
