package reportrepo

import "errors"

var (
	// ErrNotFound indicates no report exists for the trip id.
	ErrNotFound = errors.New("field report not found")

	// ErrAlreadyExists indicates a report with the same trip id is already
	// stored. Callers treat this as "created concurrently, retry as edit".
	ErrAlreadyExists = errors.New("field report already exists")
)
