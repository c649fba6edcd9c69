package progress

import "errors"

// Sentinel errors for store operations.
var (
	ErrNotFound     = errors.New("key not found")
	ErrInvalidKey   = errors.New("invalid key")
	ErrInvalidDate  = errors.New("invalid date")
	ErrStoreClosed  = errors.New("store closed")
	ErrInvalidInput = errors.New("invalid input")
)
