package device

import "errors"

var (
	// ErrDeviceNotFound is returned when a device name or alias does not
	// resolve in the registry.
	ErrDeviceNotFound = errors.New("device: device not found")

	// ErrPointNotFound is returned when a statistics or point operation
	// names a control point the device does not own.
	ErrPointNotFound = errors.New("device: control point not found")

	// ErrDuplicateName is returned when a device name is already taken in
	// the registry, as a name or as an alias.
	ErrDuplicateName = errors.New("device: duplicate device name")

	// ErrDuplicateAlias is returned when a device alias collides with an
	// existing name or alias in the registry.
	ErrDuplicateAlias = errors.New("device: duplicate device alias")

	// ErrInvalidDefinition is returned when a device definition file fails
	// validation.
	ErrInvalidDefinition = errors.New("device: invalid device definition")

	// ErrCaptureFailed wraps a control point read failure during snapshot
	// capture. The whole device entry is discarded when capture fails.
	ErrCaptureFailed = errors.New("device: snapshot capture failed")
)
