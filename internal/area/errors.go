package area

import "errors"

var (
	// ErrUnknownArea is returned when an area name is not in the sequence.
	ErrUnknownArea = errors.New("area: unknown area")

	// ErrInvalidSequence is returned when the configured sequence is malformed.
	ErrInvalidSequence = errors.New("area: invalid sequence")
)
