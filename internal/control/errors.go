package control

import "errors"

// Sentinel errors for control point operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrReadOnly is returned when a put targets a read-only point.
	// The stored value is unchanged; callers log this at warning level.
	ErrReadOnly = errors.New("control: point is read-only")

	// ErrInvalidValue is returned when a put payload does not match the
	// point's kind (wrong type, out-of-range binary, malformed waveform).
	ErrInvalidValue = errors.New("control: invalid value for point kind")

	// ErrUnknownState is returned when a state name is not in the point's
	// state map, or a readback integer has no mapped name.
	ErrUnknownState = errors.New("control: unknown state")

	// ErrNotStatistical is returned when a statistics operation targets a
	// point without an attached window.
	ErrNotStatistical = errors.New("control: point has no statistics window")

	// ErrInvalidCapacity is returned when a window capacity is not positive.
	ErrInvalidCapacity = errors.New("control: window capacity must be positive")

	// ErrInvalidSpec is returned when a point spec fails parse-and-validate.
	ErrInvalidSpec = errors.New("control: invalid point spec")

	// ErrGetFailed is returned when a channel read fails.
	ErrGetFailed = errors.New("control: get failed")

	// ErrPutFailed is returned when a channel write fails.
	ErrPutFailed = errors.New("control: put failed")
)
