package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand/v2"
	"os"

	"github.com/born-ml/backprop/dataset"
	"github.com/born-ml/backprop/gradcheck"
	"github.com/born-ml/backprop/nn"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// buildChain creates a net with one layer of every trainable kind between a
// single-map 6x6 input and three linear outputs.
func buildChain(seed int64) (*nn.Net, error) {
	n := nn.New(nn.WithSeed(seed))
	steps := []func() error{
		func() error { return n.InputLayer(1, 6, 6) },
		func() error { return n.ConvolutionalLayer(4, 3, 3, nn.Tanh, 0.5) },
		func() error { return n.LocalResponseNormalizationLayer(2, 3, 0.01, 0.75) },
		func() error { return n.SubsamplingLayer(2, 2, nn.Tanh, 0.5) },
		func() error { return n.FullyConnectedLayer(10, nn.Tanh, 0.5) },
		func() error { return n.ExtremeLayer(10, nn.Tanh, 0.05) },
		func() error { return n.OutputLayer(3, nn.Linear, 0.5) },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return nil, err
		}
	}
	return n, nil
}

// validateSamples rejects sample counts that cannot form a data set.
func validateSamples(samples int) error {
	if samples < 1 {
		return fmt.Errorf("-samples %d: need at least one sample", samples)
	}
	return nil
}

func runGradcheck(args []string) {
	fs := flag.NewFlagSet("gradcheck", flag.ExitOnError)
	seed := fs.Int64("seed", 1, "Random seed for parameters and data")
	tol := fs.Float64("tol", 1e-4, "Maximal absolute deviation")
	samples := fs.Int("samples", 2, "Number of random samples")
	_ = fs.Parse(args)
	if err := validateSamples(*samples); err != nil {
		log.Fatalf("Invalid flags: %v", err)
	}

	n, err := buildChain(*seed)
	if err != nil {
		log.Fatalf("Failed to build net: %v", err)
	}

	rng := rand.New(rand.NewPCG(uint64(*seed), 0))
	x := mat.NewDense(*samples, 36, nil)
	t := mat.NewDense(*samples, 3, nil)
	x.Apply(func(_, _ int, _ float64) float64 { return 2*rng.Float64() - 1 }, x)
	t.Apply(func(_, _ int, _ float64) float64 { return 2*rng.Float64() - 1 }, t)
	ds, err := dataset.NewDirectStorage(x, t)
	if err != nil {
		log.Fatalf("Failed to create data set: %v", err)
	}
	if err := n.TrainingSet(ds); err != nil {
		log.Fatalf("Failed to bind data set: %v", err)
	}

	fmt.Printf("Net: %d layers, %d parameters, %d samples\n", n.Layers(), n.Dimension(), *samples)

	analytic := n.Gradient()
	estimate := gradcheck.ParameterGradient(n, gradcheck.DefaultSettings())
	worst := 0.0
	for _, seg := range n.Registry().Segments() {
		a := analytic[seg.Offset : seg.Offset+seg.Length]
		e := estimate[seg.Offset : seg.Offset+seg.Length]
		dev := gradcheck.Compare(a, e)
		worst = max(worst, dev)
		fmt.Printf("  layer %d: %4d parameters, |g| = %.3e, max deviation %.3e\n",
			seg.Layer, seg.Length, floats.Norm(a, 2), dev)
	}

	x0 := mat.NewDense(1, 36, ds.Instance(0))
	t0 := mat.NewDense(1, 3, ds.Target(0))
	inDev := gradcheck.CompareRows(n.InputGradient(x0, t0),
		gradcheck.InputGradient(ds.Instance(0), ds.Target(0), n, gradcheck.DefaultSettings()))
	worst = max(worst, inDev)
	fmt.Printf("  input:   max deviation %.3e\n", inDev)

	if worst > *tol {
		fmt.Printf("FAIL: deviation %.3e exceeds %.1e\n", worst, *tol)
		os.Exit(1)
	}
	fmt.Printf("OK: deviation %.3e within %.1e\n", worst, *tol)
}
