package layer

import (
	"fmt"
	"sort"
)

// Segment locates one layer's parameter block inside the flat parameter
// vector of a Registry.
type Segment struct {
	Layer  int // Index of the owning layer
	Offset int // Position of the first parameter in the flat vector
	Length int // Number of parameters
}

// Registry is the arena through which a net sees every layer's parameters
// and gradients as one flat vector.
//
// Layers register their own blocks during Initialize; the registry keeps
// references, never copies, so reads and writes go straight to layer storage
// through (layer, offset, length) descriptors.
//
// Example:
//
//	reg := layer.NewRegistry()
//	reg.SetOwner(0)
//	info, err := fc.Initialize(reg, rng)
//	p := reg.Parameters(nil) // copy of all parameters
//	reg.SetParameters(p)     // write back through the arena
type Registry struct {
	owner    int
	size     int
	segments []Segment
	params   [][]float64
	grads    [][]float64
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// SetOwner sets the layer index recorded for subsequent registrations.
func (r *Registry) SetOwner(layer int) {
	r.owner = layer
}

// Register appends a parameter block and its gradient block.
//
// Both slices must have the same length; empty blocks are ignored.
func (r *Registry) Register(params, grads []float64) {
	if len(params) != len(grads) {
		panic(fmt.Sprintf("Registry.Register: %d parameters but %d gradients", len(params), len(grads)))
	}
	if len(params) == 0 {
		return
	}
	r.segments = append(r.segments, Segment{Layer: r.owner, Offset: r.size, Length: len(params)})
	r.params = append(r.params, params)
	r.grads = append(r.grads, grads)
	r.size += len(params)
}

// Dimension returns the total number of registered parameters.
func (r *Registry) Dimension() int {
	return r.size
}

// Segments returns the registered segment descriptors in registration order.
func (r *Registry) Segments() []Segment {
	return append([]Segment(nil), r.segments...)
}

// Parameters gathers all parameters into dst, allocating when dst is too small.
func (r *Registry) Parameters(dst []float64) []float64 {
	return gather(dst, r.params, r.size)
}

// Gradient gathers all gradients into dst, allocating when dst is too small.
func (r *Registry) Gradient(dst []float64) []float64 {
	return gather(dst, r.grads, r.size)
}

// SetParameters writes p into the registered parameter blocks.
func (r *Registry) SetParameters(p []float64) {
	if len(p) != r.size {
		panic(fmt.Sprintf("Registry.SetParameters: expected %d parameters, got %d", r.size, len(p)))
	}
	for i, seg := range r.segments {
		copy(r.params[i], p[seg.Offset:seg.Offset+seg.Length])
	}
}

// At returns the parameter at flat index i.
func (r *Registry) At(i int) float64 {
	s, j := r.locate(i)
	return r.params[s][j]
}

// Set writes the parameter at flat index i.
func (r *Registry) Set(i int, v float64) {
	s, j := r.locate(i)
	r.params[s][j] = v
}

// GradientAt returns the gradient at flat index i.
func (r *Registry) GradientAt(i int) float64 {
	s, j := r.locate(i)
	return r.grads[s][j]
}

// Fill sets every registered parameter to v.
func (r *Registry) Fill(v float64) {
	for _, block := range r.params {
		for i := range block {
			block[i] = v
		}
	}
}

func (r *Registry) locate(i int) (segment, offset int) {
	if i < 0 || i >= r.size {
		panic(fmt.Sprintf("Registry: index %d out of range [0, %d)", i, r.size))
	}
	s := sort.Search(len(r.segments), func(k int) bool {
		return r.segments[k].Offset+r.segments[k].Length > i
	})
	return s, i - r.segments[s].Offset
}

func gather(dst []float64, blocks [][]float64, size int) []float64 {
	if cap(dst) < size {
		dst = make([]float64, size)
	}
	dst = dst[:size]
	offset := 0
	for _, block := range blocks {
		offset += copy(dst[offset:], block)
	}
	return dst
}
