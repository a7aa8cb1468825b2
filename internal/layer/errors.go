package layer

import "errors"

// Configuration errors returned by constructors and Initialize.
var (
	ErrInvalidConfig      = errors.New("invalid layer configuration")
	ErrIndivisiblePooling = errors.New("input size is not divisible by the pooling window")
	ErrUnknownCompression = errors.New("unknown compression method")
)
