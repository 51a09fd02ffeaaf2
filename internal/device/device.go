package device

import (
	"context"
	"fmt"

	"github.com/arclight-systems/machine-core/internal/control"
)

// Logger defines the logging interface used by this package.
// This allows different logging implementations to be used.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// PointState is one captured control point inside a snapshot entry.
// Buffer and Timestamps are parallel sequences, attached only when the
// point was buffering at capture time.
type PointState struct {
	Value      any       `yaml:"value"`
	Buffer     []float64 `yaml:"buffer,omitempty"`
	Timestamps []float64 `yaml:"timestamps,omitempty"`
}

// Entry is one device's snapshot: point name to captured state, plus any
// additional-information fields in the same shape.
type Entry map[string]PointState

// Warning is a non-fatal failure collected during a batch operation.
// Batch operations degrade gracefully; warnings carry what was skipped.
type Warning struct {
	Device  string
	Point   string
	Message string
}

func (w Warning) String() string {
	if w.Point == "" {
		return fmt.Sprintf("device %q: %s", w.Device, w.Message)
	}
	return fmt.Sprintf("device %q point %q: %s", w.Device, w.Point, w.Message)
}

// Device aggregates a set of control points plus immutable Properties.
//
// The statistical point table is built once at construction, so buffering
// and window queries are plain map lookups.
type Device struct {
	props       Properties
	points      map[string]*control.Point
	statistical map[string]*control.Point
	additional  map[string]any
	logger      Logger
}

// New builds a device from validated properties and constructed points.
// The additional map carries caller-supplied snapshot fields; it may be
// nil.
func New(props Properties, points map[string]*control.Point, additional map[string]any) (*Device, error) {
	if err := props.Validate(); err != nil {
		return nil, err
	}
	if len(points) == 0 {
		return nil, fmt.Errorf("%w: device %q has no control points", ErrInvalidDefinition, props.Name)
	}

	d := &Device{
		props:       props,
		points:      make(map[string]*control.Point, len(points)),
		statistical: make(map[string]*control.Point),
		additional:  additional,
		logger:      noopLogger{},
	}
	for name, p := range points {
		if p == nil {
			return nil, fmt.Errorf("%w: device %q: nil point %q", ErrInvalidDefinition, props.Name, name)
		}
		d.points[name] = p
		if p.Kind() == control.KindStatistical {
			d.statistical[name] = p
		}
	}
	return d, nil
}

// SetLogger sets the logger for the device.
func (d *Device) SetLogger(logger Logger) {
	if logger != nil {
		d.logger = logger
	}
}

// Properties returns the device's immutable metadata.
func (d *Device) Properties() Properties { return d.props }

// Name returns the unique device name.
func (d *Device) Name() string { return d.props.Name }

// HardwareType returns the device's hardware-type tag.
func (d *Device) HardwareType() string { return d.props.HardwareType }

// Equal reports device identity per Properties.Equal.
func (d *Device) Equal(other *Device) bool {
	if other == nil {
		return false
	}
	return d.props.Equal(other.props)
}

// Point returns the named control point.
func (d *Device) Point(name string) (*control.Point, error) {
	p, ok := d.points[name]
	if !ok {
		return nil, fmt.Errorf("%w: device %q has no point %q", ErrPointNotFound, d.props.Name, name)
	}
	return p, nil
}

// PointNames returns the names of all control points, unordered.
func (d *Device) PointNames() []string {
	names := make([]string, 0, len(d.points))
	for name := range d.points {
		names = append(names, name)
	}
	return names
}

// CaptureSnapshot reads every snapshot-relevant point into one entry.
//
// State points record their symbolic name. Points buffering at capture
// time additionally attach the window's values and timestamps. A failed
// read aborts the capture and returns ErrCaptureFailed; the caller
// excludes the device from the merged document. Additional-information
// fields merge after the points; a field colliding with a point name is
// skipped with a warning.
func (d *Device) CaptureSnapshot(ctx context.Context) (Entry, []Warning, error) {
	entry := make(Entry)
	var warnings []Warning

	for name, p := range d.points {
		if !p.SnapshotRelevant() {
			continue
		}

		value, _, err := p.Get(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: device %q point %q: %w", ErrCaptureFailed, d.props.Name, name, err)
		}

		state := PointState{Value: value}
		if p.IsBuffering() {
			if w, err := p.Window(); err == nil {
				state.Buffer = w.Values()
				state.Timestamps = w.Timestamps()
			}
		}
		entry[name] = state
	}

	for field, value := range d.additional {
		if _, taken := entry[field]; taken {
			warnings = append(warnings, Warning{
				Device:  d.props.Name,
				Point:   field,
				Message: "additional snapshot field collides with a point name, skipped",
			})
			d.logger.Warn("additional snapshot field collides with point name",
				"device", d.props.Name, "field", field)
			continue
		}
		entry[field] = PointState{Value: value}
	}

	return entry, warnings, nil
}

// ApplySnapshot puts the stored value of every settable point present in
// the entry. Entries for points that are missing or not settable are
// silently ignored; a captured value is not necessarily restorable.
// Individual put failures become warnings and the remaining puts proceed.
func (d *Device) ApplySnapshot(ctx context.Context, entry Entry) []Warning {
	var warnings []Warning

	for name, state := range entry {
		p, ok := d.points[name]
		if !ok || !p.Settable() {
			continue
		}

		if err := p.Put(ctx, state.Value); err != nil {
			warnings = append(warnings, Warning{
				Device:  d.props.Name,
				Point:   name,
				Message: err.Error(),
			})
			d.logger.Warn("snapshot put failed",
				"device", d.props.Name, "point", name, "error", err)
		}
	}

	return warnings
}

// statisticalPoint resolves a name against the table built at
// construction.
func (d *Device) statisticalPoint(name string) (*control.Point, error) {
	p, ok := d.statistical[name]
	if !ok {
		if _, exists := d.points[name]; exists {
			return nil, fmt.Errorf("%w: device %q point %q", control.ErrNotStatistical, d.props.Name, name)
		}
		return nil, fmt.Errorf("%w: device %q has no point %q", ErrPointNotFound, d.props.Name, name)
	}
	return p, nil
}

// StartBuffering begins collecting samples for the named statistical
// point.
func (d *Device) StartBuffering(name string) error {
	p, err := d.statisticalPoint(name)
	if err != nil {
		return err
	}
	return p.StartBuffering()
}

// StopBuffering stops sample collection for the named point. Buffered
// samples remain until cleared.
func (d *Device) StopBuffering(name string) error {
	p, err := d.statisticalPoint(name)
	if err != nil {
		return err
	}
	return p.StopBuffering()
}

// ClearBuffer drops the named point's buffered samples.
func (d *Device) ClearBuffer(name string) error {
	p, err := d.statisticalPoint(name)
	if err != nil {
		return err
	}
	w, err := p.Window()
	if err != nil {
		return err
	}
	w.Clear()
	return nil
}

// ResizeBuffer rebuilds the named point's window at the new capacity,
// keeping the most recent samples when shrinking.
func (d *Device) ResizeBuffer(name string, capacity int) error {
	p, err := d.statisticalPoint(name)
	if err != nil {
		return err
	}
	w, err := p.Window()
	if err != nil {
		return err
	}
	return w.Resize(capacity)
}

// IsBufferFull reports whether the named point's window is at capacity.
func (d *Device) IsBufferFull(name string) (bool, error) {
	p, err := d.statisticalPoint(name)
	if err != nil {
		return false, err
	}
	w, err := p.Window()
	if err != nil {
		return false, err
	}
	return w.IsFull(), nil
}

// IsBuffering reports whether the named point is collecting samples.
func (d *Device) IsBuffering(name string) (bool, error) {
	p, err := d.statisticalPoint(name)
	if err != nil {
		return false, err
	}
	return p.IsBuffering(), nil
}

// Window returns the named point's statistics window.
func (d *Device) Window(name string) (*control.Window, error) {
	p, err := d.statisticalPoint(name)
	if err != nil {
		return nil, err
	}
	return p.Window()
}

// StatisticalPointNames returns the names of the device's statistical
// points, unordered.
func (d *Device) StatisticalPointNames() []string {
	names := make([]string, 0, len(d.statistical))
	for name := range d.statistical {
		names = append(names, name)
	}
	return names
}
