package control

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Kind tags the payload variant of a control point.
type Kind int

const (
	KindScalar Kind = iota
	KindBinary
	KindString
	KindState
	KindWaveform
	KindStatistical
)

// String returns the YAML tag for the kind.
func (k Kind) String() string {
	switch k {
	case KindScalar:
		return "scalar"
	case KindBinary:
		return "binary"
	case KindString:
		return "string"
	case KindState:
		return "state"
	case KindWaveform:
		return "waveform"
	case KindStatistical:
		return "statistical"
	default:
		return "unknown"
	}
}

// Point is one named, typed, remotely addressable value.
//
// A Point is built once from a Spec and is immutable in shape afterwards:
// kind, state map and window capacity never change (the window contents
// do). The channel collaborator performs all transport work.
type Point struct {
	name        string
	description string
	address     string
	kind        Kind
	units       string
	readOnly    bool
	virtual     bool
	settable    bool
	gettable    bool
	timeout     time.Duration

	states     map[string]int
	stateNames map[int]string

	channel  Channel
	window   *Window
	recorder SampleRecorder

	mu        sync.Mutex
	lastValue any
	lastTime  time.Time
	buffering bool
	subID     SubscriptionID
}

// Name returns the point's handle within its device.
func (p *Point) Name() string { return p.name }

// Description returns the optional human-readable description.
func (p *Point) Description() string { return p.description }

// Address returns the transport address (virtual-prefixed when applicable).
func (p *Point) Address() string { return p.address }

// Kind returns the payload variant tag.
func (p *Point) Kind() Kind { return p.kind }

// Units returns the engineering units for scalar kinds.
func (p *Point) Units() string { return p.units }

// ReadOnly reports whether puts are rejected.
func (p *Point) ReadOnly() bool { return p.readOnly }

// Virtual reports whether the point addresses the simulated machine.
func (p *Point) Virtual() bool { return p.virtual }

// Settable reports whether the point participates in snapshot apply.
func (p *Point) Settable() bool { return p.settable }

// Gettable reports whether the point participates in snapshot capture.
func (p *Point) Gettable() bool { return p.gettable }

// SnapshotRelevant reports whether the point appears in snapshots at all.
func (p *Point) SnapshotRelevant() bool { return p.settable || p.gettable }

// Connected reports the channel's transport state.
func (p *Point) Connected() bool { return p.channel.Connected() }

// Timeout returns the per-operation deadline: the spec's own timeout when
// set, otherwise the channel default.
func (p *Point) Timeout() time.Duration {
	if p.timeout > 0 {
		return p.timeout
	}
	return p.channel.Timeout()
}

// LastValue returns the most recent known value and its timestamp.
// ok is false before the first successful read or subscription update.
func (p *Point) LastValue() (value any, timestamp time.Time, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastValue, p.lastTime, p.lastValue != nil
}

// Get reads the current value through the channel and normalizes it per
// the point's kind. State kinds return the symbolic name, never the raw
// integer.
func (p *Point) Get(ctx context.Context) (any, time.Time, error) {
	ctx, cancel := context.WithTimeout(ctx, p.Timeout())
	defer cancel()

	raw, ts, err := p.channel.Get(ctx)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("%w: point %q: %w", ErrGetFailed, p.name, err)
	}

	value, err := p.normalize(raw)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("point %q: %w", p.name, err)
	}

	p.mu.Lock()
	p.lastValue = value
	p.lastTime = ts
	p.mu.Unlock()

	return value, ts, nil
}

// Put validates the value against the point's kind and writes it through
// the channel. Read-only points reject the put with ErrReadOnly and the
// stored value is unchanged; callers surface this as a warning.
func (p *Point) Put(ctx context.Context, value any) error {
	if p.readOnly {
		return fmt.Errorf("%w: point %q", ErrReadOnly, p.name)
	}

	wire, err := p.toWire(value)
	if err != nil {
		return fmt.Errorf("point %q: %w", p.name, err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.Timeout())
	defer cancel()

	if err := p.channel.Put(ctx, wire); err != nil {
		return fmt.Errorf("%w: point %q: %w", ErrPutFailed, p.name, err)
	}
	return nil
}

// normalize converts a raw channel value into this kind's canonical form.
func (p *Point) normalize(raw any) (any, error) {
	switch p.kind {
	case KindScalar, KindStatistical:
		f, ok := toFloat(raw)
		if !ok {
			return nil, fmt.Errorf("%w: expected numeric, got %T", ErrInvalidValue, raw)
		}
		return f, nil

	case KindBinary:
		switch v := raw.(type) {
		case bool:
			if v {
				return 1, nil
			}
			return 0, nil
		default:
			f, ok := toFloat(raw)
			if !ok || (f != 0 && f != 1) {
				return nil, fmt.Errorf("%w: expected 0/1/bool, got %v", ErrInvalidValue, raw)
			}
			return int(f), nil
		}

	case KindString:
		s, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("%w: expected string, got %T", ErrInvalidValue, raw)
		}
		return s, nil

	case KindState:
		f, ok := toFloat(raw)
		if !ok {
			return nil, fmt.Errorf("%w: expected state integer, got %T", ErrInvalidValue, raw)
		}
		name, ok := p.stateNames[int(f)]
		if !ok {
			return nil, fmt.Errorf("%w: no name for value %d", ErrUnknownState, int(f))
		}
		return name, nil

	case KindWaveform:
		wf, ok := toFloatSlice(raw)
		if !ok {
			return nil, fmt.Errorf("%w: expected numeric array, got %T", ErrInvalidValue, raw)
		}
		return wf, nil
	}
	return nil, fmt.Errorf("%w: unhandled kind %v", ErrInvalidValue, p.kind)
}

// toWire validates a caller-supplied value and converts it to the form the
// channel expects. State kinds accept symbolic names only.
func (p *Point) toWire(value any) (any, error) {
	switch p.kind {
	case KindScalar, KindStatistical:
		f, ok := toFloat(value)
		if !ok {
			return nil, fmt.Errorf("%w: expected numeric, got %T", ErrInvalidValue, value)
		}
		return f, nil

	case KindBinary:
		switch v := value.(type) {
		case bool:
			if v {
				return 1, nil
			}
			return 0, nil
		default:
			f, ok := toFloat(value)
			if !ok || (f != 0 && f != 1) {
				return nil, fmt.Errorf("%w: expected 0/1/bool, got %v", ErrInvalidValue, value)
			}
			return int(f), nil
		}

	case KindString:
		s, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("%w: expected string, got %T", ErrInvalidValue, value)
		}
		return s, nil

	case KindState:
		name, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("%w: state puts take a symbolic name, got %T", ErrInvalidValue, value)
		}
		raw, ok := p.states[name]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownState, name)
		}
		return raw, nil

	case KindWaveform:
		wf, ok := toFloatSlice(value)
		if !ok {
			return nil, fmt.Errorf("%w: expected numeric array, got %T", ErrInvalidValue, value)
		}
		return wf, nil
	}
	return nil, fmt.Errorf("%w: unhandled kind %v", ErrInvalidValue, p.kind)
}

// StateNames returns the symbolic names of a state point, or nil for
// other kinds.
func (p *Point) StateNames() []string {
	if p.states == nil {
		return nil
	}
	names := make([]string, 0, len(p.states))
	for name := range p.states {
		names = append(names, name)
	}
	return names
}

// Window returns the attached statistics window, or an error for
// non-statistical kinds.
func (p *Point) Window() (*Window, error) {
	if p.window == nil {
		return nil, fmt.Errorf("%w: point %q", ErrNotStatistical, p.name)
	}
	return p.window, nil
}

// IsBuffering reports whether a subscription is feeding the window.
func (p *Point) IsBuffering() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.buffering
}

// StartBuffering clears the window and registers an update subscription.
// Idempotent on an already buffering point.
func (p *Point) StartBuffering() error {
	if p.window == nil {
		return fmt.Errorf("%w: point %q", ErrNotStatistical, p.name)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.buffering {
		return nil
	}

	p.window.Clear()
	id, err := p.channel.Subscribe(p.onSample)
	if err != nil {
		return fmt.Errorf("point %q: subscribe: %w", p.name, err)
	}
	p.subID = id
	p.buffering = true
	return nil
}

// StopBuffering deregisters the subscription. Buffered samples remain
// until explicitly cleared.
func (p *Point) StopBuffering() error {
	if p.window == nil {
		return fmt.Errorf("%w: point %q", ErrNotStatistical, p.name)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.buffering {
		return nil
	}

	if err := p.channel.Unsubscribe(p.subID); err != nil {
		return fmt.Errorf("point %q: unsubscribe: %w", p.name, err)
	}
	p.subID = ""
	p.buffering = false
	return nil
}

// onSample handles one asynchronous update from the subscription.
func (p *Point) onSample(value float64, timestamp time.Time) {
	p.window.Update(value, timestamp)

	p.mu.Lock()
	p.lastValue = value
	p.lastTime = timestamp
	p.mu.Unlock()

	if p.recorder != nil {
		p.recorder(p.name, value, timestamp)
	}
}

// toFloat converts the numeric types seen on channels and in YAML.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	default:
		return 0, false
	}
}

// toFloatSlice converts waveform payloads, including []any from YAML.
func toFloatSlice(v any) ([]float64, bool) {
	switch arr := v.(type) {
	case []float64:
		return append([]float64(nil), arr...), true
	case []int:
		out := make([]float64, len(arr))
		for i, n := range arr {
			out[i] = float64(n)
		}
		return out, true
	case []any:
		out := make([]float64, len(arr))
		for i, e := range arr {
			f, ok := toFloat(e)
			if !ok {
				return nil, false
			}
			out[i] = f
		}
		return out, true
	default:
		return nil, false
	}
}
