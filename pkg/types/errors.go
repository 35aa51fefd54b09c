package types

import "errors"

// Domain errors shared across the index, store, and cache layers.
var (
	// ErrDimensionMismatch indicates a vector whose length does not match
	// the configured embedding dimension.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrNotFound indicates the requested item does not exist.
	ErrNotFound = errors.New("item not found")

	// ErrItemInvalid indicates an item that fails basic validation.
	ErrItemInvalid = errors.New("invalid item")
)
