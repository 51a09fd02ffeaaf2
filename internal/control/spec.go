package control

import (
	"fmt"
	"strings"
	"time"
)

// defaultBufferSize is the window capacity used when a statistical point
// spec omits buffer_size.
const defaultBufferSize = 10

// virtualAddressPrefix is prepended to point addresses when the machine
// runs in virtual mode, steering traffic at the simulated hardware.
const virtualAddressPrefix = "VM-"

// Spec is the YAML shape of one control point inside a device definition.
//
// Parse-and-validate happens once, in Build: a Spec either becomes a fully
// typed Point or a structured error. There is no coercion after that.
type Spec struct {
	Address     string         `yaml:"address"`
	Kind        string         `yaml:"kind"`
	Description string         `yaml:"description,omitempty"`
	Units       string         `yaml:"units,omitempty"`
	ReadOnly    *bool          `yaml:"read_only,omitempty"`
	Timeout     float64        `yaml:"timeout,omitempty"`
	AutoBuffer  bool           `yaml:"auto_buffer,omitempty"`
	BufferSize  int            `yaml:"buffer_size,omitempty"`
	States      map[string]int `yaml:"states,omitempty"`
	Settable    bool           `yaml:"settable,omitempty"`
	Gettable    *bool          `yaml:"gettable,omitempty"`
}

// BuildOptions carries construction-time settings that are not part of the
// point spec itself. Virtual mode is per-instance configuration, never
// shared mutable state.
type BuildOptions struct {
	// Virtual prefixes the address for the simulated machine and lifts
	// the read-only flag so virtual points can be driven freely.
	Virtual bool

	// Recorder receives buffered samples when the point is buffering.
	Recorder SampleRecorder
}

// Build parses and validates a Spec into a typed Point.
//
// The dialer supplies the transport for the (possibly virtual-prefixed)
// address. Validation failures wrap ErrInvalidSpec and name the field.
func Build(name string, spec Spec, dialer Dialer, opts BuildOptions) (*Point, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("%w: point name cannot be empty", ErrInvalidSpec)
	}
	if strings.TrimSpace(spec.Address) == "" {
		return nil, fmt.Errorf("%w: point %q has no address", ErrInvalidSpec, name)
	}

	kind, err := parseKind(spec.Kind)
	if err != nil {
		return nil, fmt.Errorf("%w: point %q: %v", ErrInvalidSpec, name, err)
	}

	if kind == KindState && len(spec.States) == 0 {
		return nil, fmt.Errorf("%w: state point %q has no states map", ErrInvalidSpec, name)
	}
	if kind != KindState && len(spec.States) > 0 {
		return nil, fmt.Errorf("%w: point %q: states map only valid for state kind", ErrInvalidSpec, name)
	}
	if spec.Timeout < 0 {
		return nil, fmt.Errorf("%w: point %q: negative timeout", ErrInvalidSpec, name)
	}
	if spec.BufferSize < 0 {
		return nil, fmt.Errorf("%w: point %q: negative buffer_size", ErrInvalidSpec, name)
	}

	// Readbacks default to read-only; writes must be opted into.
	readOnly := true
	if spec.ReadOnly != nil {
		readOnly = *spec.ReadOnly
	}
	if opts.Virtual {
		readOnly = false
	}

	gettable := true
	if spec.Gettable != nil {
		gettable = *spec.Gettable
	}

	address := spec.Address
	if opts.Virtual {
		address = virtualAddressPrefix + address
	}

	channel, err := dialer.Dial(address)
	if err != nil {
		return nil, fmt.Errorf("%w: point %q: dialing %q: %v", ErrInvalidSpec, name, address, err)
	}

	p := &Point{
		name:        name,
		description: spec.Description,
		address:     address,
		kind:        kind,
		units:       spec.Units,
		readOnly:    readOnly,
		virtual:     opts.Virtual,
		settable:    spec.Settable,
		gettable:    gettable,
		timeout:     time.Duration(spec.Timeout * float64(time.Second)),
		channel:     channel,
		recorder:    opts.Recorder,
	}

	if kind == KindState {
		p.states = make(map[string]int, len(spec.States))
		p.stateNames = make(map[int]string, len(spec.States))
		for stateName, value := range spec.States {
			if strings.TrimSpace(stateName) == "" {
				return nil, fmt.Errorf("%w: state point %q has an empty state name", ErrInvalidSpec, name)
			}
			if prev, dup := p.stateNames[value]; dup {
				return nil, fmt.Errorf("%w: state point %q: states %q and %q share value %d",
					ErrInvalidSpec, name, prev, stateName, value)
			}
			p.states[stateName] = value
			p.stateNames[value] = stateName
		}
	}

	if kind == KindStatistical {
		capacity := spec.BufferSize
		if capacity == 0 {
			capacity = defaultBufferSize
		}
		window, err := NewWindow(capacity)
		if err != nil {
			return nil, fmt.Errorf("%w: point %q: %v", ErrInvalidSpec, name, err)
		}
		p.window = window

		if spec.AutoBuffer {
			if err := p.StartBuffering(); err != nil {
				return nil, fmt.Errorf("%w: point %q: auto buffer: %v", ErrInvalidSpec, name, err)
			}
		}
	}

	return p, nil
}

// parseKind maps the YAML kind tag onto a Kind.
func parseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "scalar":
		return KindScalar, nil
	case "binary":
		return KindBinary, nil
	case "string":
		return KindString, nil
	case "state":
		return KindState, nil
	case "waveform":
		return KindWaveform, nil
	case "statistical":
		return KindStatistical, nil
	default:
		return 0, fmt.Errorf("unknown kind %q", s)
	}
}
