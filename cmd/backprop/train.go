package main

import (
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand/v2"

	"github.com/born-ml/backprop/dataset"
	"github.com/born-ml/backprop/nn"
	"github.com/born-ml/backprop/optim"
	"gonum.org/v1/gonum/mat"
)

// regressionData samples y = sin(πa)·b on [-1, 1]².
func regressionData(rng *rand.Rand, samples int) (*mat.Dense, *mat.Dense) {
	x := mat.NewDense(samples, 2, nil)
	y := mat.NewDense(samples, 1, nil)
	for i := 0; i < samples; i++ {
		a, b := 2*rng.Float64()-1, 2*rng.Float64()-1
		x.SetRow(i, []float64{a, b})
		y.Set(i, 0, math.Sin(math.Pi*a)*b)
	}
	return x, y
}

func runTrain(args []string) {
	fs := flag.NewFlagSet("train", flag.ExitOnError)
	optimizer := fs.String("optimizer", "adam", "Optimizer: sgd or adam")
	iterations := fs.Int("iterations", 200, "Number of passes over the training set")
	seed := fs.Int64("seed", 1, "Random seed")
	samples := fs.Int("samples", 200, "Number of training samples")
	batchSize := fs.Int("batch", 20, "Mini-batch size")
	lr := fs.Float64("lr", 0, "Learning rate (0 = optimizer default)")
	hidden := fs.Int("hidden", 16, "Hidden units")
	_ = fs.Parse(args)
	if err := validateSamples(*samples); err != nil {
		log.Fatalf("Invalid flags: %v", err)
	}

	rng := rand.New(rand.NewPCG(uint64(*seed), 1))
	x, y := regressionData(rng, *samples)
	ds, err := dataset.NewDirectStorage(x, y)
	if err != nil {
		log.Fatalf("Failed to create data set: %v", err)
	}

	var n *nn.Net
	report := func(iteration int) {
		if iteration%10 == 0 || iteration == *iterations {
			fmt.Printf("Iteration %4d: error %.6f\n", iteration, n.Error()/float64(*samples))
		}
	}
	n = nn.New(nn.WithSeed(*seed), nn.WithIterationHook(report))
	if err := n.InputLayer(2); err != nil {
		log.Fatalf("Failed to build net: %v", err)
	}
	if err := n.FullyConnectedLayer(*hidden, nn.Tanh, 0.5); err != nil {
		log.Fatalf("Failed to build net: %v", err)
	}
	if err := n.OutputLayer(1, nn.Linear, 0.5); err != nil {
		log.Fatalf("Failed to build net: %v", err)
	}
	if err := n.TrainingSet(ds); err != nil {
		log.Fatalf("Failed to bind data set: %v", err)
	}

	stop := optim.StopCriteria{MaximalIterations: *iterations}
	var opt optim.Optimizer
	switch *optimizer {
	case "sgd":
		opt = optim.NewMBSGD(n, optim.MBSGDConfig{
			LR:        *lr,
			Momentum:  0.5,
			BatchSize: *batchSize,
			Stop:      stop,
			Rand:      rng,
		})
	case "adam":
		opt = optim.NewAdam(n, optim.AdamConfig{
			LR:        *lr,
			BatchSize: *batchSize,
			Stop:      stop,
			Rand:      rng,
		})
	default:
		log.Fatalf("Unknown optimizer %q (want sgd or adam)", *optimizer)
	}

	fmt.Printf("Training %d parameters on %d samples with %s (lr %g)\n",
		n.Dimension(), *samples, *optimizer, opt.GetLR())
	fmt.Printf("Initial error %.6f\n", n.Error()/float64(*samples))
	opt.Optimize()
	fmt.Printf("Final error %.6f after %d iterations\n", n.Error()/float64(*samples), n.Iterations())
}
