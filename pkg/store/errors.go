package store

import "errors"

var (
	// ErrNotFound is returned when the referenced entity does not exist.
	ErrNotFound = errors.New("not_found")

	// ErrNotManual is returned when a mutation targets a discovered
	// service or a dependency whose endpoints are not both manual.
	ErrNotManual = errors.New("not_manual")

	// ErrExists is returned when a create collides with an existing id.
	ErrExists = errors.New("already_exists")
)
