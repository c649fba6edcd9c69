package content

import "errors"

// Sentinel errors for catalog and dataset operations.
var (
	ErrNotFound     = errors.New("bias not found")
	ErrInvalidBias  = errors.New("invalid bias")
	ErrDuplicateID  = errors.New("duplicate bias id")
	ErrReadOnly     = errors.New("core bias is read-only")
	ErrEmptyDataset = errors.New("dataset contains no biases")
)
