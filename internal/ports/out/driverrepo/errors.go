package driverrepo

import "errors"

var (
	// ErrNotFound indicates no driver resolves to the given canonical id.
	ErrNotFound = errors.New("driver not found")

	// ErrAlreadyExists indicates a driver already exists with the canonical id.
	ErrAlreadyExists = errors.New("driver already exists")
)
