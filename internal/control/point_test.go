package control

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

// fakeChannel is an in-memory Channel for unit tests.
type fakeChannel struct {
	mu        sync.Mutex
	value     any
	ts        time.Time
	getErr    error
	putErr    error
	puts      []any
	subs      map[SubscriptionID]UpdateFunc
	nextSub   int
	connected bool
	timeout   time.Duration
}

func newFakeChannel(value any) *fakeChannel {
	return &fakeChannel{
		value:     value,
		ts:        time.Unix(1700000000, 0),
		subs:      make(map[SubscriptionID]UpdateFunc),
		connected: true,
		timeout:   500 * time.Millisecond,
	}
}

func (f *fakeChannel) Get(_ context.Context) (any, time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, time.Time{}, f.getErr
	}
	return f.value, f.ts, nil
}

func (f *fakeChannel) Put(_ context.Context, value any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.putErr != nil {
		return f.putErr
	}
	f.puts = append(f.puts, value)
	f.value = value
	return nil
}

func (f *fakeChannel) Subscribe(fn UpdateFunc) (SubscriptionID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextSub++
	id := SubscriptionID(fmt.Sprintf("sub-%d", f.nextSub))
	f.subs[id] = fn
	return id, nil
}

func (f *fakeChannel) Unsubscribe(id SubscriptionID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.subs[id]; !ok {
		return errors.New("unknown subscription")
	}
	delete(f.subs, id)
	return nil
}

func (f *fakeChannel) Connected() bool        { return f.connected }
func (f *fakeChannel) Timeout() time.Duration { return f.timeout }

// push delivers an update to every subscriber, as hardware would.
func (f *fakeChannel) push(value float64, ts time.Time) {
	f.mu.Lock()
	fns := make([]UpdateFunc, 0, len(f.subs))
	for _, fn := range f.subs {
		fns = append(fns, fn)
	}
	f.mu.Unlock()
	for _, fn := range fns {
		fn(value, ts)
	}
}

func (f *fakeChannel) putCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.puts)
}

// fakeDialer hands out prepared channels keyed by address.
type fakeDialer struct {
	channels map[string]*fakeChannel
	dialErr  error
}

func (d *fakeDialer) Dial(address string) (Channel, error) {
	if d.dialErr != nil {
		return nil, d.dialErr
	}
	if ch, ok := d.channels[address]; ok {
		return ch, nil
	}
	ch := newFakeChannel(0.0)
	if d.channels == nil {
		d.channels = make(map[string]*fakeChannel)
	}
	d.channels[address] = ch
	return ch, nil
}

func boolPtr(b bool) *bool { return &b }

func buildTestPoint(t *testing.T, name string, spec Spec, ch *fakeChannel) *Point {
	t.Helper()

	dialer := &fakeDialer{channels: map[string]*fakeChannel{spec.Address: ch}}
	p, err := Build(name, spec, dialer, BuildOptions{})
	if err != nil {
		t.Fatalf("Build(%q) error = %v", name, err)
	}
	return p
}

func TestBuildValidation(t *testing.T) {
	tests := []struct {
		name string
		spec Spec
	}{
		{name: "missing address", spec: Spec{Kind: "scalar"}},
		{name: "unknown kind", spec: Spec{Address: "A:B", Kind: "matrix"}},
		{name: "state without states map", spec: Spec{Address: "A:B", Kind: "state"}},
		{
			name: "states map on scalar",
			spec: Spec{Address: "A:B", Kind: "scalar", States: map[string]int{"ON": 1}},
		},
		{
			name: "duplicate state values",
			spec: Spec{Address: "A:B", Kind: "state", States: map[string]int{"ON": 1, "OFF": 1}},
		},
		{name: "negative timeout", spec: Spec{Address: "A:B", Kind: "scalar", Timeout: -1}},
		{name: "negative buffer size", spec: Spec{Address: "A:B", Kind: "statistical", BufferSize: -2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Build("test-point", tt.spec, &fakeDialer{}, BuildOptions{})
			if !errors.Is(err, ErrInvalidSpec) {
				t.Errorf("Build() error = %v, want ErrInvalidSpec", err)
			}
		})
	}
}

func TestBuildEmptyName(t *testing.T) {
	_, err := Build(" ", Spec{Address: "A:B", Kind: "scalar"}, &fakeDialer{}, BuildOptions{})
	if !errors.Is(err, ErrInvalidSpec) {
		t.Errorf("Build() error = %v, want ErrInvalidSpec", err)
	}
}

func TestBuildDefaults(t *testing.T) {
	p := buildTestPoint(t, "current", Spec{Address: "MAG:Q1:CUR", Kind: "scalar"}, newFakeChannel(0.0))

	if !p.ReadOnly() {
		t.Error("ReadOnly() = false, want true by default")
	}
	if !p.Gettable() {
		t.Error("Gettable() = false, want true by default")
	}
	if p.Settable() {
		t.Error("Settable() = true, want false by default")
	}
}

func TestBuildVirtualMode(t *testing.T) {
	dialer := &fakeDialer{}
	p, err := Build("current", Spec{
		Address:  "MAG:Q1:CUR",
		Kind:     "scalar",
		ReadOnly: boolPtr(true),
	}, dialer, BuildOptions{Virtual: true})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	if p.Address() != "VM-MAG:Q1:CUR" {
		t.Errorf("Address() = %q, want virtual prefix", p.Address())
	}
	if p.ReadOnly() {
		t.Error("ReadOnly() = true, want lifted in virtual mode")
	}
	if !p.Virtual() {
		t.Error("Virtual() = false, want true")
	}
}

func TestGetScalar(t *testing.T) {
	ch := newFakeChannel(4.2)
	p := buildTestPoint(t, "current", Spec{Address: "MAG:Q1:CUR", Kind: "scalar"}, ch)

	value, ts, err := p.Get(context.Background())
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if value != 4.2 {
		t.Errorf("Get() value = %v, want 4.2", value)
	}
	if !ts.Equal(time.Unix(1700000000, 0)) {
		t.Errorf("Get() timestamp = %v, want fake channel timestamp", ts)
	}

	last, _, ok := p.LastValue()
	if !ok || last != 4.2 {
		t.Errorf("LastValue() = %v, %v; want 4.2, true", last, ok)
	}
}

func TestGetScalarIntCoercion(t *testing.T) {
	ch := newFakeChannel(7)
	p := buildTestPoint(t, "current", Spec{Address: "MAG:Q1:CUR", Kind: "scalar"}, ch)

	value, _, err := p.Get(context.Background())
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if value != 7.0 {
		t.Errorf("Get() value = %v (%T), want float64 7", value, value)
	}
}

func TestGetStateReturnsName(t *testing.T) {
	ch := newFakeChannel(2)
	p := buildTestPoint(t, "status", Spec{
		Address: "MAG:Q1:STA",
		Kind:    "state",
		States:  map[string]int{"OFF": 0, "RAMPING": 1, "ON": 2},
	}, ch)

	value, _, err := p.Get(context.Background())
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if value != "ON" {
		t.Errorf("Get() value = %v, want symbolic name ON", value)
	}
}

func TestGetStateUnknownValue(t *testing.T) {
	ch := newFakeChannel(9)
	p := buildTestPoint(t, "status", Spec{
		Address: "MAG:Q1:STA",
		Kind:    "state",
		States:  map[string]int{"OFF": 0, "ON": 1},
	}, ch)

	_, _, err := p.Get(context.Background())
	if !errors.Is(err, ErrUnknownState) {
		t.Errorf("Get() error = %v, want ErrUnknownState", err)
	}
}

func TestGetChannelFailure(t *testing.T) {
	ch := newFakeChannel(0.0)
	ch.getErr = errors.New("timeout")
	p := buildTestPoint(t, "current", Spec{Address: "MAG:Q1:CUR", Kind: "scalar"}, ch)

	_, _, err := p.Get(context.Background())
	if !errors.Is(err, ErrGetFailed) {
		t.Errorf("Get() error = %v, want ErrGetFailed", err)
	}
}

func TestPutReadOnlyRejected(t *testing.T) {
	ch := newFakeChannel(1.0)
	p := buildTestPoint(t, "current", Spec{Address: "MAG:Q1:CUR", Kind: "scalar"}, ch)

	err := p.Put(context.Background(), 5.0)
	if !errors.Is(err, ErrReadOnly) {
		t.Fatalf("Put() error = %v, want ErrReadOnly", err)
	}
	if ch.putCount() != 0 {
		t.Error("Put() on read-only point reached the channel")
	}
}

func TestPutScalar(t *testing.T) {
	ch := newFakeChannel(1.0)
	p := buildTestPoint(t, "current_sp", Spec{
		Address:  "MAG:Q1:SETI",
		Kind:     "scalar",
		ReadOnly: boolPtr(false),
		Settable: true,
	}, ch)

	if err := p.Put(context.Background(), 5.0); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if ch.putCount() != 1 || ch.puts[0] != 5.0 {
		t.Errorf("channel puts = %v, want [5]", ch.puts)
	}
}

func TestPutStateByName(t *testing.T) {
	ch := newFakeChannel(0)
	p := buildTestPoint(t, "mode", Spec{
		Address:  "MAG:Q1:MODE",
		Kind:     "state",
		ReadOnly: boolPtr(false),
		States:   map[string]int{"OFF": 0, "ON": 1},
	}, ch)

	if err := p.Put(context.Background(), "ON"); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if ch.puts[0] != 1 {
		t.Errorf("wire value = %v, want 1", ch.puts[0])
	}
}

func TestPutStateUnknownName(t *testing.T) {
	ch := newFakeChannel(0)
	p := buildTestPoint(t, "mode", Spec{
		Address:  "MAG:Q1:MODE",
		Kind:     "state",
		ReadOnly: boolPtr(false),
		States:   map[string]int{"OFF": 0, "ON": 1},
	}, ch)

	err := p.Put(context.Background(), "STANDBY")
	if !errors.Is(err, ErrUnknownState) {
		t.Errorf("Put() error = %v, want ErrUnknownState", err)
	}
	if ch.putCount() != 0 {
		t.Error("invalid state name reached the channel")
	}
}

func TestPutStateRejectsRawInteger(t *testing.T) {
	ch := newFakeChannel(0)
	p := buildTestPoint(t, "mode", Spec{
		Address:  "MAG:Q1:MODE",
		Kind:     "state",
		ReadOnly: boolPtr(false),
		States:   map[string]int{"OFF": 0, "ON": 1},
	}, ch)

	err := p.Put(context.Background(), 1)
	if !errors.Is(err, ErrInvalidValue) {
		t.Errorf("Put() error = %v, want ErrInvalidValue for raw integer", err)
	}
}

func TestPutBinaryValidation(t *testing.T) {
	ch := newFakeChannel(0)
	p := buildTestPoint(t, "enable", Spec{
		Address:  "MAG:Q1:EN",
		Kind:     "binary",
		ReadOnly: boolPtr(false),
	}, ch)

	if err := p.Put(context.Background(), true); err != nil {
		t.Fatalf("Put(true) error = %v", err)
	}
	if ch.puts[0] != 1 {
		t.Errorf("wire value = %v, want 1", ch.puts[0])
	}

	if err := p.Put(context.Background(), 0); err != nil {
		t.Fatalf("Put(0) error = %v", err)
	}

	if err := p.Put(context.Background(), 2); !errors.Is(err, ErrInvalidValue) {
		t.Errorf("Put(2) error = %v, want ErrInvalidValue", err)
	}
}

func TestPutWaveform(t *testing.T) {
	ch := newFakeChannel([]float64{0, 0})
	p := buildTestPoint(t, "profile", Spec{
		Address:  "BPM:03:WAVE",
		Kind:     "waveform",
		ReadOnly: boolPtr(false),
	}, ch)

	if err := p.Put(context.Background(), []float64{1.0, 2.0}); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if err := p.Put(context.Background(), "not-a-waveform"); !errors.Is(err, ErrInvalidValue) {
		t.Errorf("Put() error = %v, want ErrInvalidValue", err)
	}
}

func TestPutChannelFailure(t *testing.T) {
	ch := newFakeChannel(0.0)
	ch.putErr = errors.New("broker down")
	p := buildTestPoint(t, "current_sp", Spec{
		Address:  "MAG:Q1:SETI",
		Kind:     "scalar",
		ReadOnly: boolPtr(false),
	}, ch)

	err := p.Put(context.Background(), 1.0)
	if !errors.Is(err, ErrPutFailed) {
		t.Errorf("Put() error = %v, want ErrPutFailed", err)
	}
}

func TestBufferingLifecycle(t *testing.T) {
	ch := newFakeChannel(0.0)
	p := buildTestPoint(t, "current_rb", Spec{
		Address:    "MAG:Q1:RBV",
		Kind:       "statistical",
		BufferSize: 5,
	}, ch)

	if p.IsBuffering() {
		t.Error("IsBuffering() = true before StartBuffering")
	}

	if err := p.StartBuffering(); err != nil {
		t.Fatalf("StartBuffering() error = %v", err)
	}
	if !p.IsBuffering() {
		t.Error("IsBuffering() = false after StartBuffering")
	}

	// Idempotent start keeps the existing subscription.
	if err := p.StartBuffering(); err != nil {
		t.Fatalf("second StartBuffering() error = %v", err)
	}
	if len(ch.subs) != 1 {
		t.Errorf("subscriptions = %d, want 1", len(ch.subs))
	}

	base := time.Unix(1700000000, 0)
	ch.push(1.0, base)
	ch.push(2.0, base.Add(time.Second))

	w, err := p.Window()
	if err != nil {
		t.Fatalf("Window() error = %v", err)
	}
	if w.Len() != 2 {
		t.Errorf("window Len() = %d, want 2", w.Len())
	}

	last, _, ok := p.LastValue()
	if !ok || last != 2.0 {
		t.Errorf("LastValue() = %v, want 2.0 from subscription", last)
	}

	if err := p.StopBuffering(); err != nil {
		t.Fatalf("StopBuffering() error = %v", err)
	}
	if p.IsBuffering() {
		t.Error("IsBuffering() = true after StopBuffering")
	}

	// Samples remain until explicitly cleared.
	if w.Len() != 2 {
		t.Errorf("window Len() = %d after stop, want 2", w.Len())
	}

	// Further pushes are not recorded.
	ch.push(3.0, base.Add(2*time.Second))
	if w.Len() != 2 {
		t.Errorf("window Len() = %d after stop and push, want 2", w.Len())
	}
}

func TestStartBufferingClearsWindow(t *testing.T) {
	ch := newFakeChannel(0.0)
	p := buildTestPoint(t, "current_rb", Spec{
		Address:    "MAG:Q1:RBV",
		Kind:       "statistical",
		BufferSize: 5,
	}, ch)

	if err := p.StartBuffering(); err != nil {
		t.Fatalf("StartBuffering() error = %v", err)
	}
	ch.push(1.0, time.Unix(1700000000, 0))
	if err := p.StopBuffering(); err != nil {
		t.Fatalf("StopBuffering() error = %v", err)
	}

	if err := p.StartBuffering(); err != nil {
		t.Fatalf("restart error = %v", err)
	}

	w, _ := p.Window()
	if w.Len() != 0 {
		t.Errorf("window Len() = %d after restart, want 0 (cleared)", w.Len())
	}
}

func TestBufferingOnNonStatistical(t *testing.T) {
	ch := newFakeChannel(0.0)
	p := buildTestPoint(t, "current", Spec{Address: "MAG:Q1:CUR", Kind: "scalar"}, ch)

	if err := p.StartBuffering(); !errors.Is(err, ErrNotStatistical) {
		t.Errorf("StartBuffering() error = %v, want ErrNotStatistical", err)
	}
	if err := p.StopBuffering(); !errors.Is(err, ErrNotStatistical) {
		t.Errorf("StopBuffering() error = %v, want ErrNotStatistical", err)
	}
	if _, err := p.Window(); !errors.Is(err, ErrNotStatistical) {
		t.Errorf("Window() error = %v, want ErrNotStatistical", err)
	}
}

func TestAutoBuffer(t *testing.T) {
	ch := newFakeChannel(0.0)
	dialer := &fakeDialer{channels: map[string]*fakeChannel{"MAG:Q1:RBV": ch}}

	p, err := Build("current_rb", Spec{
		Address:    "MAG:Q1:RBV",
		Kind:       "statistical",
		AutoBuffer: true,
	}, dialer, BuildOptions{})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	if !p.IsBuffering() {
		t.Error("IsBuffering() = false, want true with auto_buffer")
	}
}

func TestSampleRecorderInvoked(t *testing.T) {
	ch := newFakeChannel(0.0)
	dialer := &fakeDialer{channels: map[string]*fakeChannel{"MAG:Q1:RBV": ch}}

	var mu sync.Mutex
	var recorded []float64
	recorder := func(point string, value float64, _ time.Time) {
		mu.Lock()
		defer mu.Unlock()
		if point != "current_rb" {
			t.Errorf("recorder point = %q, want current_rb", point)
		}
		recorded = append(recorded, value)
	}

	p, err := Build("current_rb", Spec{
		Address:    "MAG:Q1:RBV",
		Kind:       "statistical",
		BufferSize: 5,
	}, dialer, BuildOptions{Recorder: recorder})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if err := p.StartBuffering(); err != nil {
		t.Fatalf("StartBuffering() error = %v", err)
	}

	ch.push(4.2, time.Unix(1700000000, 0))

	mu.Lock()
	defer mu.Unlock()
	if len(recorded) != 1 || recorded[0] != 4.2 {
		t.Errorf("recorded = %v, want [4.2]", recorded)
	}
}

func TestPointTimeout(t *testing.T) {
	ch := newFakeChannel(0.0)

	withOwn := buildTestPoint(t, "a", Spec{Address: "A:1", Kind: "scalar", Timeout: 2.5}, ch)
	if got := withOwn.Timeout(); got != 2500*time.Millisecond {
		t.Errorf("Timeout() = %v, want 2.5s from spec", got)
	}

	withDefault := buildTestPoint(t, "b", Spec{Address: "A:1", Kind: "scalar"}, ch)
	if got := withDefault.Timeout(); got != ch.timeout {
		t.Errorf("Timeout() = %v, want channel default %v", got, ch.timeout)
	}
}

func TestKindString(t *testing.T) {
	tests := []struct {
		kind Kind
		want string
	}{
		{KindScalar, "scalar"},
		{KindBinary, "binary"},
		{KindString, "string"},
		{KindState, "state"},
		{KindWaveform, "waveform"},
		{KindStatistical, "statistical"},
	}
	for _, tt := range tests {
		if got := tt.kind.String(); got != tt.want {
			t.Errorf("Kind(%d).String() = %q, want %q", tt.kind, got, tt.want)
		}
	}
}
