package repository

import "errors"

var (
	// ErrNotFound is returned when no record matches the given filter.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when a write collides with a unique constraint.
	ErrDuplicate = errors.New("record already exists")
)
