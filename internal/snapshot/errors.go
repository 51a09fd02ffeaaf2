package snapshot

import "errors"

var (
	// ErrInvalidSnapshot is returned when a document's hardware-type key
	// does not match the engine, or when two documents cannot be
	// compared.
	ErrInvalidSnapshot = errors.New("snapshot: invalid snapshot document")

	// ErrNoSnapshot is returned when apply, save or compare is called
	// while no document is held.
	ErrNoSnapshot = errors.New("snapshot: no snapshot held")

	// ErrEmptyFilename is returned when save or load is called without a
	// filename. This is a configuration error and fails fast.
	ErrEmptyFilename = errors.New("snapshot: filename cannot be empty")

	// ErrNotFound is returned when a named snapshot file does not exist.
	ErrNotFound = errors.New("snapshot: snapshot file not found")
)
