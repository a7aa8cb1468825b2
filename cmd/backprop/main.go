// Package main provides the backprop CLI.
package main

import (
	"fmt"
	"os"
)

const version = "v0.1.0-dev"

func main() {
	if len(os.Args) < 2 {
		usage()
		return
	}

	switch os.Args[1] {
	case "version":
		fmt.Printf("backprop %s\n", version)
	case "gradcheck":
		runGradcheck(os.Args[2:])
	case "train":
		runTrain(os.Args[2:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", os.Args[1])
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Println("backprop - layer-chain backpropagation engine")
	fmt.Printf("Version: %s\n\n", version)
	fmt.Println("Commands:")
	fmt.Println("  version      Show version")
	fmt.Println("  gradcheck    Compare backpropagated gradients with finite differences")
	fmt.Println("  train        Fit a small synthetic regression")
}
