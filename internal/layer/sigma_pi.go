package layer

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/born-ml/backprop/internal/activation"
	"gonum.org/v1/gonum/mat"
)

// Constraint decides how the higher-order terms of a SigmaPi node share
// weights. It receives the input indices of one term (in increasing order);
// terms for which it returns the same value share a single weight, and terms
// for which it returns NaN are left out.
//
// A typical constraint is the distance of two pixels, which makes second
// order features translation invariant.
type Constraint func(indices ...int) float64

// NodeGroup declares Count output units of the given order.
type NodeGroup struct {
	Order      int        // Number of inputs multiplied per term (2 or 3)
	Count      int        // Number of units
	Constraint Constraint // Weight sharing; nil gives every term its own weight
}

// SecondOrderNodes declares count units summing products of input pairs.
func SecondOrderNodes(count int, c Constraint) NodeGroup {
	return NodeGroup{Order: 2, Count: count, Constraint: c}
}

// ThirdOrderNodes declares count units summing products of input triples.
func ThirdOrderNodes(count int, c Constraint) NodeGroup {
	return NodeGroup{Order: 3, Count: count, Constraint: c}
}

// SigmaPiConfig configures a SigmaPi layer.
type SigmaPiConfig struct {
	Bias           bool
	Activation     activation.Function
	StdDev         float64 // Std-dev of the initial weights (default: 0.05)
	Regularization Regularization
	Nodes          []NodeGroup
}

// SigmaPi is a higher-order layer. Each unit j computes
//
//	a[j] = Σ_terms w[j, key(term)] * Π_{i ∈ term} x[i] + b[j]
//
// where the terms are all index combinations of the group's order. Parameters
// are registered unit by unit (weights of all units first), followed by one
// bias per unit.
type SigmaPi struct {
	info   OutputInfo
	inputs int
	cfg    SigmaPiConfig

	groups     []sigmaPiGroup
	units      int
	unitGroup  []int // group of each unit
	unitOffset []int // offset of each unit's weights in w

	params, grads []float64
	w, wd         []float64
	b, bd         []float64

	x                   *mat.Dense
	a, y, yd, deltas, e *mat.Dense
	pass                pass
}

type sigmaPiTerm struct {
	indices []int
	weight  int // weight index local to the unit
}

type sigmaPiGroup struct {
	terms   []sigmaPiTerm
	weights int // distinct weights per unit
	count   int
	first   int // index of the group's first unit
}

// NewSigmaPi creates a sigma-pi layer for inputs of shape in.
func NewSigmaPi(in OutputInfo, cfg SigmaPiConfig) (*SigmaPi, error) {
	inputs := in.Outputs()
	if inputs <= 0 {
		return nil, fmt.Errorf("sigma-pi: %w: empty input shape", ErrInvalidConfig)
	}
	if len(cfg.Nodes) == 0 {
		return nil, fmt.Errorf("sigma-pi: %w: no node groups", ErrInvalidConfig)
	}
	cfg.StdDev = stdDevOrDefault(cfg.StdDev)

	l := &SigmaPi{info: in, inputs: inputs, cfg: cfg}
	nw := 0
	for _, node := range cfg.Nodes {
		if node.Order < 2 || node.Order > 3 || node.Order > inputs || node.Count <= 0 {
			return nil, fmt.Errorf("sigma-pi: %w: order=%d count=%d inputs=%d",
				ErrInvalidConfig, node.Order, node.Count, inputs)
		}
		group := buildSigmaPiGroup(node, inputs)
		if len(group.terms) == 0 {
			return nil, fmt.Errorf("sigma-pi: %w: constraint excludes every term", ErrInvalidConfig)
		}
		group.first = l.units
		for j := 0; j < node.Count; j++ {
			l.unitGroup = append(l.unitGroup, len(l.groups))
			l.unitOffset = append(l.unitOffset, nw)
			nw += group.weights
		}
		l.units += node.Count
		l.groups = append(l.groups, group)
	}
	return l, nil
}

// buildSigmaPiGroup enumerates all index combinations and assigns weights.
func buildSigmaPiGroup(node NodeGroup, inputs int) sigmaPiGroup {
	var group sigmaPiGroup
	group.count = node.Count
	keys := make(map[float64]int)

	indices := make([]int, node.Order)
	var enumerate func(pos, start int)
	enumerate = func(pos, start int) {
		if pos == node.Order {
			t := sigmaPiTerm{indices: append([]int(nil), indices...)}
			if node.Constraint == nil {
				t.weight = group.weights
				group.weights++
			} else {
				v := node.Constraint(t.indices...)
				if math.IsNaN(v) {
					return
				}
				key := math.Round(v * 1e9)
				w, ok := keys[key]
				if !ok {
					w = group.weights
					keys[key] = w
					group.weights++
				}
				t.weight = w
			}
			group.terms = append(group.terms, t)
			return
		}
		for i := start; i < inputs; i++ {
			indices[pos] = i
			enumerate(pos+1, i+1)
		}
	}
	enumerate(0, 0)
	return group
}

// Initialize allocates and registers the weights and biases.
func (l *SigmaPi) Initialize(reg *Registry, rng *rand.Rand) (OutputInfo, error) {
	nw := 0
	for _, g := range l.groups {
		nw += g.weights * g.count
	}
	n := nw
	if l.cfg.Bias {
		n += l.units
	}
	l.params = make([]float64, n)
	l.grads = make([]float64, n)
	l.w, l.wd = l.params[:nw], l.grads[:nw]
	if l.cfg.Bias {
		l.b, l.bd = l.params[nw:], l.grads[nw:]
	}
	if reg != nil {
		reg.Register(l.params, l.grads)
	}

	fillNormal(rng, l.params, l.cfg.StdDev)
	l.UpdatedParameters()
	return Shape(l.units), nil
}

// UpdatedParameters caps the squared norm of each unit's weights.
func (l *SigmaPi) UpdatedParameters() {
	if l.cfg.Regularization.MaxSquaredWeightNorm <= 0 {
		return
	}
	for j := 0; j < l.units; j++ {
		g := l.groups[l.unitGroup[j]]
		unit := l.w[l.unitOffset[j] : l.unitOffset[j]+g.weights]
		l.cfg.Regularization.project(mat.NewDense(1, len(unit), unit))
	}
}

func product(in []float64, indices []int, skip int) float64 {
	p := 1.0
	for k, i := range indices {
		if k != skip {
			p *= in[i]
		}
	}
	return p
}

// Forward sums the weighted products of every unit.
func (l *SigmaPi) Forward(x *mat.Dense, _ bool, penalty *float64) *mat.Dense {
	rows := checkInput("SigmaPi.Forward", x, l.inputs)
	l.x = x
	l.a = ensure(l.a, rows, l.units)

	for n := 0; n < rows; n++ {
		in := x.RawRowView(n)
		out := l.a.RawRowView(n)
		for j := range out {
			out[j] = 0
			if l.cfg.Bias {
				out[j] = l.b[j]
			}
		}
		for _, g := range l.groups {
			for _, t := range g.terms {
				p := product(in, t.indices, -1)
				for j := g.first; j < g.first+g.count; j++ {
					out[j] += l.w[l.unitOffset[j]+t.weight] * p
				}
			}
		}
	}

	l.y = ensure(l.y, rows, l.units)
	activation.Apply(l.cfg.Activation, l.a, l.y)
	if penalty != nil {
		*penalty += l.cfg.Regularization.penalty(l.w)
	}
	l.pass.forwarded(rows)
	return l.y
}

// Backward accumulates the gradient of every shared weight and, when
// requested, the derivative of each product with respect to its factors.
func (l *SigmaPi) Backward(ein *mat.Dense, backpropToPrevious bool) *mat.Dense {
	l.pass.check("SigmaPi.Backward", ein)
	rows := l.pass.rows

	l.yd = ensure(l.yd, rows, l.units)
	activation.Derivative(l.cfg.Activation, l.y, l.yd)
	l.deltas = ensure(l.deltas, rows, l.units)
	l.deltas.MulElem(l.yd, ein)

	for i := range l.grads {
		l.grads[i] = 0
	}
	if backpropToPrevious {
		l.e = ensure(l.e, rows, l.inputs)
		l.e.Zero()
	}

	for n := 0; n < rows; n++ {
		in := l.x.RawRowView(n)
		delta := l.deltas.RawRowView(n)
		for j, d := range delta {
			if l.cfg.Bias {
				l.bd[j] += d
			}
		}
		var prev []float64
		if backpropToPrevious {
			prev = l.e.RawRowView(n)
		}
		for _, g := range l.groups {
			for _, t := range g.terms {
				p := product(in, t.indices, -1)
				var signal float64
				for j := g.first; j < g.first+g.count; j++ {
					wi := l.unitOffset[j] + t.weight
					l.wd[wi] += delta[j] * p
					signal += delta[j] * l.w[wi]
				}
				if prev != nil {
					for k, i := range t.indices {
						prev[i] += signal * product(in, t.indices, k)
					}
				}
			}
		}
	}

	l.cfg.Regularization.addGradient(l.w, l.wd)
	return l.e
}

// Output returns the latest activations.
func (l *SigmaPi) Output() *mat.Dense { return l.y }

// Parameters returns the unit weights followed by the biases.
func (l *SigmaPi) Parameters() []float64 {
	return append([]float64(nil), l.params...)
}

// InputInfo returns the input shape.
func (l *SigmaPi) InputInfo() OutputInfo { return l.info }

// Activation returns the activation function of the layer.
func (l *SigmaPi) Activation() activation.Function { return l.cfg.Activation }

// Weights returns the number of distinct weights per unit of each group.
func (l *SigmaPi) Weights() []int {
	counts := make([]int, len(l.groups))
	for i, g := range l.groups {
		counts[i] = g.weights
	}
	return counts
}
