package net

import "errors"

// Errors returned while building or training a net.
var (
	ErrShapeMismatch = errors.New("layer input shape does not match the net's output shape")
	ErrFinalized     = errors.New("net is finalized")
	ErrNotFinalized  = errors.New("net has no training set")
	ErrEmpty         = errors.New("net or training set is empty")
)
