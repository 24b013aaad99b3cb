package store

import "errors"

// Common store errors returned by all implementations.
var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("entity not found")

	// ErrInvalidEntity is returned when an entity fails a database
	// constraint, for example a foreign key to a missing row.
	ErrInvalidEntity = errors.New("invalid entity")
)
