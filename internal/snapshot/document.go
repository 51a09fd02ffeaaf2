package snapshot

import (
	"fmt"
	"reflect"

	"github.com/arclight-systems/machine-core/internal/device"
)

// DeviceEntries maps device name to that device's captured entry.
type DeviceEntries map[string]device.Entry

// Document is one fleet snapshot: a single hardware-type key over the
// per-device entries.
type Document map[string]DeviceEntries

// HardwareType returns the document's single top-level key.
func (d Document) HardwareType() (string, error) {
	if len(d) != 1 {
		return "", fmt.Errorf("%w: expected exactly one hardware-type key, got %d", ErrInvalidSnapshot, len(d))
	}
	for key := range d {
		return key, nil
	}
	return "", ErrInvalidSnapshot
}

// Devices returns the entries under the given hardware type, or nil.
func (d Document) Devices(hardwareType string) DeviceEntries {
	return d[hardwareType]
}

// Copy returns a deep copy of the document so held state cannot be
// mutated through a getter.
func (d Document) Copy() Document {
	if d == nil {
		return nil
	}
	out := make(Document, len(d))
	for hwtype, entries := range d {
		copied := make(DeviceEntries, len(entries))
		for name, entry := range entries {
			entryCopy := make(device.Entry, len(entry))
			for point, state := range entry {
				stateCopy := device.PointState{Value: state.Value}
				if state.Buffer != nil {
					stateCopy.Buffer = append([]float64(nil), state.Buffer...)
				}
				if state.Timestamps != nil {
					stateCopy.Timestamps = append([]float64(nil), state.Timestamps...)
				}
				entryCopy[point] = stateCopy
			}
			copied[name] = entryCopy
		}
		out[hwtype] = copied
	}
	return out
}

// DiffEntry is one differing point: the value in the first document and
// the value in the second.
type DiffEntry struct {
	Current any `yaml:"current"`
	Diff    any `yaml:"diff"`
}

// DeviceDiff is the difference for one device. When the device is absent
// from the second document, Missing is set and Entry carries the first
// document's full entry; otherwise Points holds the differing points.
type DeviceDiff struct {
	Missing bool                 `yaml:"missing,omitempty"`
	Entry   device.Entry         `yaml:"entry,omitempty"`
	Points  map[string]DiffEntry `yaml:"points,omitempty"`
}

// DiffResult maps device name to its difference. Devices identical in
// both documents do not appear.
type DiffResult map[string]DeviceDiff

// Diff compares two documents carrying the given hardware type.
//
// It walks the FIRST document's device keys only: devices present only
// in the second document are never reported. A device missing from the
// second document contributes its full entry; otherwise each point's
// value is compared and mismatches produce {current, diff} pairs.
func Diff(hardwareType string, a, b Document) (DiffResult, error) {
	if a == nil || b == nil {
		return nil, fmt.Errorf("%w: two documents are required", ErrInvalidSnapshot)
	}
	entriesA, ok := a[hardwareType]
	if !ok {
		return nil, fmt.Errorf("%w: first document is not a %q snapshot", ErrInvalidSnapshot, hardwareType)
	}
	entriesB, ok := b[hardwareType]
	if !ok {
		return nil, fmt.Errorf("%w: second document is not a %q snapshot", ErrInvalidSnapshot, hardwareType)
	}

	result := make(DiffResult)
	for name, entryA := range entriesA {
		entryB, ok := entriesB[name]
		if !ok {
			result[name] = DeviceDiff{Missing: true, Entry: entryA}
			continue
		}

		points := diffEntries(entryA, entryB)
		if len(points) > 0 {
			result[name] = DeviceDiff{Points: points}
		}
	}
	return result, nil
}

// diffEntries walks the first entry's point keys, comparing values.
// A point absent from the second entry diffs against nil.
func diffEntries(a, b device.Entry) map[string]DiffEntry {
	var points map[string]DiffEntry
	for name, stateA := range a {
		stateB, ok := b[name]
		if ok && valueEqual(stateA.Value, stateB.Value) {
			continue
		}
		if points == nil {
			points = make(map[string]DiffEntry)
		}
		if !ok {
			points[name] = DiffEntry{Current: stateA.Value, Diff: nil}
			continue
		}
		points[name] = DiffEntry{Current: stateA.Value, Diff: stateB.Value}
	}
	return points
}

// valueEqual compares point values across the type drift a YAML
// round-trip introduces: captured float64s may come back as ints, and
// waveforms come back as []any.
func valueEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == b
	}

	if fa, ok := asFloat(a); ok {
		fb, ok := asFloat(b)
		return ok && fa == fb
	}

	if sa, ok := asFloatSlice(a); ok {
		sb, ok := asFloatSlice(b)
		if !ok || len(sa) != len(sb) {
			return false
		}
		for i := range sa {
			if sa[i] != sb[i] {
				return false
			}
		}
		return true
	}

	return reflect.DeepEqual(a, b)
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func asFloatSlice(v any) ([]float64, bool) {
	switch s := v.(type) {
	case []float64:
		return s, true
	case []any:
		out := make([]float64, len(s))
		for i, item := range s {
			f, ok := asFloat(item)
			if !ok {
				return nil, false
			}
			out[i] = f
		}
		return out, true
	}
	return nil, false
}
