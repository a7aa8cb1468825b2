package layer

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
)

// LocalResponseNormalizationConfig configures a LocalResponseNormalization
// layer.
type LocalResponseNormalizationConfig struct {
	K     float64 // Additive offset of the denominator; must be positive
	N     int     // Number of neighboring feature maps in the window
	Alpha float64 // Scale of the squared sum
	Beta  float64 // Exponent of the denominator
}

// LocalResponseNormalization normalizes every activation by the activity of
// neighboring feature maps at the same spatial position:
//
//	y[m] = x[m] / (K + Alpha * Σ_{j ∈ window(m)} x[j]²)^Beta
//
// where window(m) covers maps m-N/2 .. m+N/2, clipped at the borders. The
// layer has no parameters and preserves the input shape.
type LocalResponseNormalization struct {
	info OutputInfo
	cfg  LocalResponseNormalizationConfig

	maps, positions int

	x    *mat.Dense
	den  *mat.Dense // denominators of the latest forward pass
	y, e *mat.Dense
	pass pass
}

// NewLocalResponseNormalization creates a normalization layer for inputs of
// shape in.
func NewLocalResponseNormalization(in OutputInfo, cfg LocalResponseNormalizationConfig) (*LocalResponseNormalization, error) {
	maps, rows, cols, err := in.spatial()
	if err != nil {
		return nil, fmt.Errorf("local response normalization: %w", err)
	}
	// K > 0 keeps the denominator positive for all-zero windows.
	if cfg.N <= 0 || cfg.K <= 0 || cfg.Alpha < 0 || cfg.Beta < 0 {
		return nil, fmt.Errorf("local response normalization: %w: k=%g n=%d alpha=%g beta=%g",
			ErrInvalidConfig, cfg.K, cfg.N, cfg.Alpha, cfg.Beta)
	}
	return &LocalResponseNormalization{
		info:      in,
		cfg:       cfg,
		maps:      maps,
		positions: rows * cols,
	}, nil
}

// Initialize returns the unchanged input shape.
func (l *LocalResponseNormalization) Initialize(_ *Registry, _ *rand.Rand) (OutputInfo, error) {
	return Shape(l.info.Dimensions...), nil
}

// window returns the first and last map normalizing map m.
func (l *LocalResponseNormalization) window(m int) (from, to int) {
	return max(0, m-l.cfg.N/2), min(l.maps-1, m+l.cfg.N/2)
}

// Forward normalizes across feature maps.
func (l *LocalResponseNormalization) Forward(x *mat.Dense, _ bool, _ *float64) *mat.Dense {
	rows := checkInput("LocalResponseNormalization.Forward", x, l.info.Outputs())
	l.x = x
	l.den = ensure(l.den, rows, l.info.Outputs())
	l.y = ensure(l.y, rows, l.info.Outputs())

	for n := 0; n < rows; n++ {
		in := x.RawRowView(n)
		den := l.den.RawRowView(n)
		out := l.y.RawRowView(n)
		for p := 0; p < l.positions; p++ {
			for m := 0; m < l.maps; m++ {
				from, to := l.window(m)
				var sq float64
				for j := from; j <= to; j++ {
					v := in[j*l.positions+p]
					sq += v * v
				}
				i := m*l.positions + p
				den[i] = l.cfg.K + l.cfg.Alpha*sq
				out[i] = in[i] * math.Pow(den[i], -l.cfg.Beta)
			}
		}
	}
	l.pass.forwarded(rows)
	return l.y
}

// Backward computes
//
//	e[m] = ein[m] d[m]^-β - 2αβ x[m] Σ_{i: m ∈ window(i)} ein[i] x[i] d[i]^(-β-1)
//
// The window relation is symmetric, so the sum runs over window(m).
func (l *LocalResponseNormalization) Backward(ein *mat.Dense, backpropToPrevious bool) *mat.Dense {
	l.pass.check("LocalResponseNormalization.Backward", ein)
	if !backpropToPrevious {
		return l.e
	}
	rows := l.pass.rows
	l.e = ensure(l.e, rows, l.info.Outputs())
	beta := l.cfg.Beta

	for n := 0; n < rows; n++ {
		in := l.x.RawRowView(n)
		den := l.den.RawRowView(n)
		signal := ein.RawRowView(n)
		prev := l.e.RawRowView(n)
		for p := 0; p < l.positions; p++ {
			for m := 0; m < l.maps; m++ {
				i := m*l.positions + p
				from, to := l.window(m)
				var cross float64
				for j := from; j <= to; j++ {
					k := j*l.positions + p
					cross += signal[k] * in[k] * math.Pow(den[k], -beta-1)
				}
				prev[i] = signal[i]*math.Pow(den[i], -beta) - 2*l.cfg.Alpha*beta*in[i]*cross
			}
		}
	}
	return l.e
}

// UpdatedParameters does nothing.
func (l *LocalResponseNormalization) UpdatedParameters() {}

// Output returns the latest normalized batch.
func (l *LocalResponseNormalization) Output() *mat.Dense { return l.y }

// Parameters returns nil.
func (l *LocalResponseNormalization) Parameters() []float64 { return nil }

// InputInfo returns the input shape.
func (l *LocalResponseNormalization) InputInfo() OutputInfo { return l.info }
