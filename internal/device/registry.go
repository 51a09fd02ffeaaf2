package device

import (
	"errors"
	"fmt"
	"sort"

	"github.com/arclight-systems/machine-core/internal/area"
)

// Registry holds devices keyed by unique, case-sensitive name, with
// aliases resolving to the same device.
//
// Registration is fail-fast: a duplicate name or alias, or an area not in
// the configured sequence, rejects the device. Lookups after load are
// read-only, so no locking is needed once loading is done.
type Registry struct {
	devices map[string]*Device
	aliases map[string]string
	areas   *area.Sequence
	logger  Logger
}

// NewRegistry creates an empty registry ordered by the given area
// sequence.
func NewRegistry(areas *area.Sequence) (*Registry, error) {
	if areas == nil {
		return nil, fmt.Errorf("%w: registry needs an area sequence", area.ErrInvalidSequence)
	}
	return &Registry{
		devices: make(map[string]*Device),
		aliases: make(map[string]string),
		areas:   areas,
		logger:  noopLogger{},
	}, nil
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	if logger != nil {
		r.logger = logger
	}
}

// Areas returns the area sequence the registry orders by.
func (r *Registry) Areas() *area.Sequence { return r.areas }

// Add registers a device. Duplicate names or aliases, and areas missing
// from the sequence, are invariant violations and fail fast.
func (r *Registry) Add(d *Device) error {
	if d == nil {
		return fmt.Errorf("%w: nil device", ErrInvalidDefinition)
	}
	props := d.Properties()

	if !r.areas.Contains(props.Area) {
		return fmt.Errorf("device %q: %w: %q", props.Name, area.ErrUnknownArea, props.Area)
	}
	if _, taken := r.devices[props.Name]; taken {
		return fmt.Errorf("%w: %q", ErrDuplicateName, props.Name)
	}
	if owner, taken := r.aliases[props.Name]; taken {
		return fmt.Errorf("%w: %q is an alias of %q", ErrDuplicateName, props.Name, owner)
	}
	for _, alias := range props.Aliases {
		if _, taken := r.devices[alias]; taken {
			return fmt.Errorf("%w: %q is already a device name", ErrDuplicateAlias, alias)
		}
		if owner, taken := r.aliases[alias]; taken {
			return fmt.Errorf("%w: %q is already an alias of %q", ErrDuplicateAlias, alias, owner)
		}
	}

	r.devices[props.Name] = d
	for _, alias := range props.Aliases {
		r.aliases[alias] = props.Name
	}

	r.logger.Debug("device registered",
		"name", props.Name, "hardware_type", props.HardwareType, "area", props.Area)
	return nil
}

// Resolve looks a device up by name or alias.
func (r *Registry) Resolve(nameOrAlias string) (*Device, error) {
	if d, ok := r.devices[nameOrAlias]; ok {
		return d, nil
	}
	if name, ok := r.aliases[nameOrAlias]; ok {
		return r.devices[name], nil
	}
	return nil, fmt.Errorf("%w: %q", ErrDeviceNotFound, nameOrAlias)
}

// All returns every device ordered by area rank then position.
func (r *Registry) All() []*Device {
	devices := make([]*Device, 0, len(r.devices))
	for _, d := range r.devices {
		devices = append(devices, d)
	}
	r.sortDevices(devices)
	return devices
}

// ByArea returns the devices in one area, ordered by position. An area
// missing from the sequence fails fast.
func (r *Registry) ByArea(name string) ([]*Device, error) {
	if !r.areas.Contains(name) {
		return nil, fmt.Errorf("%w: %q", area.ErrUnknownArea, name)
	}

	var devices []*Device
	for _, d := range r.devices {
		if d.Properties().Area == name {
			devices = append(devices, d)
		}
	}
	r.sortDevices(devices)
	return devices, nil
}

// BySubtype returns the devices with the given subtype, in registry
// order.
func (r *Registry) BySubtype(subtype string) []*Device {
	var devices []*Device
	for _, d := range r.devices {
		if d.Properties().Subtype == subtype {
			devices = append(devices, d)
		}
	}
	r.sortDevices(devices)
	return devices
}

// Len returns the number of registered devices.
func (r *Registry) Len() int { return len(r.devices) }

// sortDevices orders in place by area rank then position then name.
// Areas are validated at Add, so Rank cannot fail here.
func (r *Registry) sortDevices(devices []*Device) {
	sort.Slice(devices, func(i, j int) bool {
		less, err := devices[i].Properties().Less(devices[j].Properties(), r.areas)
		if err != nil {
			return devices[i].Name() < devices[j].Name()
		}
		return less
	})
}

// targets resolves an explicit device-name subset, or returns every
// device when names is empty. Unresolvable names fail fast.
func (r *Registry) targets(names []string) ([]*Device, error) {
	if len(names) == 0 {
		return r.All(), nil
	}
	devices := make([]*Device, 0, len(names))
	for _, name := range names {
		d, err := r.Resolve(name)
		if err != nil {
			return nil, err
		}
		devices = append(devices, d)
	}
	return devices, nil
}

// StartBuffering begins sample collection for the named point across the
// fleet. With no device names every device is swept and devices lacking
// the point are skipped; an explicitly named device lacking the point
// produces a warning.
func (r *Registry) StartBuffering(point string, names ...string) ([]Warning, error) {
	return r.sweepBuffers(point, names, func(d *Device) error {
		return d.StartBuffering(point)
	})
}

// StopBuffering stops sample collection for the named point across the
// fleet. Buffered samples remain until cleared.
func (r *Registry) StopBuffering(point string, names ...string) ([]Warning, error) {
	return r.sweepBuffers(point, names, func(d *Device) error {
		return d.StopBuffering(point)
	})
}

// ClearBuffers drops buffered samples for the named point across the
// fleet.
func (r *Registry) ClearBuffers(point string, names ...string) ([]Warning, error) {
	return r.sweepBuffers(point, names, func(d *Device) error {
		return d.ClearBuffer(point)
	})
}

// SetBufferSize resizes the named point's window across the fleet,
// keeping the most recent samples when shrinking.
func (r *Registry) SetBufferSize(point string, capacity int, names ...string) ([]Warning, error) {
	return r.sweepBuffers(point, names, func(d *Device) error {
		return d.ResizeBuffer(point, capacity)
	})
}

// sweepBuffers runs op against each target device, collecting per-device
// failures as warnings.
func (r *Registry) sweepBuffers(point string, names []string, op func(*Device) error) ([]Warning, error) {
	explicit := len(names) > 0
	devices, err := r.targets(names)
	if err != nil {
		return nil, err
	}

	var warnings []Warning
	for _, d := range devices {
		err := op(d)
		if err == nil {
			continue
		}
		if !explicit && errors.Is(err, ErrPointNotFound) {
			continue
		}
		warnings = append(warnings, Warning{
			Device:  d.Name(),
			Point:   point,
			Message: err.Error(),
		})
		r.logger.Warn("fleet buffer operation failed",
			"device", d.Name(), "point", point, "error", err)
	}
	return warnings, nil
}
