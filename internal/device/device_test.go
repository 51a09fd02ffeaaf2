package device

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/arclight-systems/machine-core/internal/control"
)

// stubChannel is an in-memory control.Channel for device tests.
type stubChannel struct {
	mu      sync.Mutex
	value   any
	getErr  error
	putErr  error
	puts    []any
	subs    map[control.SubscriptionID]control.UpdateFunc
	nextSub int
}

func newStubChannel(value any) *stubChannel {
	return &stubChannel{
		value: value,
		subs:  make(map[control.SubscriptionID]control.UpdateFunc),
	}
}

func (s *stubChannel) Get(_ context.Context) (any, time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, time.Time{}, s.getErr
	}
	return s.value, time.Unix(1700000000, 0), nil
}

func (s *stubChannel) Put(_ context.Context, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.putErr != nil {
		return s.putErr
	}
	s.puts = append(s.puts, value)
	s.value = value
	return nil
}

func (s *stubChannel) Subscribe(fn control.UpdateFunc) (control.SubscriptionID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSub++
	id := control.SubscriptionID(fmt.Sprintf("sub-%d", s.nextSub))
	s.subs[id] = fn
	return id, nil
}

func (s *stubChannel) Unsubscribe(id control.SubscriptionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.subs, id)
	return nil
}

func (s *stubChannel) Connected() bool        { return true }
func (s *stubChannel) Timeout() time.Duration { return 500 * time.Millisecond }

func (s *stubChannel) push(value float64, ts time.Time) {
	s.mu.Lock()
	fns := make([]control.UpdateFunc, 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.mu.Unlock()
	for _, fn := range fns {
		fn(value, ts)
	}
}

func (s *stubChannel) putCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.puts)
}

// stubDialer hands out prepared stub channels keyed by address.
type stubDialer struct {
	channels map[string]*stubChannel
}

func (d *stubDialer) Dial(address string) (control.Channel, error) {
	if ch, ok := d.channels[address]; ok {
		return ch, nil
	}
	if d.channels == nil {
		d.channels = make(map[string]*stubChannel)
	}
	ch := newStubChannel(0.0)
	d.channels[address] = ch
	return ch, nil
}

func falseValue() *bool {
	v := false
	return &v
}

func buildPoint(t *testing.T, name string, spec control.Spec, ch *stubChannel) *control.Point {
	t.Helper()

	dialer := &stubDialer{channels: map[string]*stubChannel{spec.Address: ch}}
	p, err := control.Build(name, spec, dialer, control.BuildOptions{})
	if err != nil {
		t.Fatalf("control.Build(%q) error = %v", name, err)
	}
	return p
}

// magnetChannels holds one stub channel per point of the test magnet.
type magnetChannels struct {
	current   *stubChannel
	currentSP *stubChannel
	status    *stubChannel
	readback  *stubChannel
}

// newTestMagnet builds a device with one point of each relevant shape:
// a read-only scalar, a settable scalar, a state point, and a
// statistical readback.
func newTestMagnet(t *testing.T, additional map[string]any) (*Device, *magnetChannels) {
	t.Helper()

	chans := &magnetChannels{
		current:   newStubChannel(4.2),
		currentSP: newStubChannel(4.0),
		status:    newStubChannel(1),
		readback:  newStubChannel(4.19),
	}

	points := map[string]*control.Point{
		"current": buildPoint(t, "current", control.Spec{
			Address: "MAG:Q1:CUR", Kind: "scalar",
		}, chans.current),
		"current_sp": buildPoint(t, "current_sp", control.Spec{
			Address: "MAG:Q1:SETI", Kind: "scalar",
			ReadOnly: falseValue(), Settable: true,
		}, chans.currentSP),
		"status": buildPoint(t, "status", control.Spec{
			Address: "MAG:Q1:STA", Kind: "state",
			States: map[string]int{"OFF": 0, "ON": 1},
		}, chans.status),
		"readback": buildPoint(t, "readback", control.Spec{
			Address: "MAG:Q1:RBV", Kind: "statistical", BufferSize: 5,
		}, chans.readback),
	}

	d, err := New(Properties{
		Name:         "QUAD-01",
		Aliases:      []string{"Q1"},
		HardwareType: "magnet",
		Position:     1.5,
		Area:         "injector",
		Subtype:      "quadrupole",
	}, points, additional)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return d, chans
}

func TestNewValidation(t *testing.T) {
	ch := newStubChannel(0.0)
	point := buildPoint(t, "current", control.Spec{Address: "A:1", Kind: "scalar"}, ch)
	points := map[string]*control.Point{"current": point}

	if _, err := New(Properties{HardwareType: "magnet", Area: "injector"}, points, nil); !errors.Is(err, ErrInvalidDefinition) {
		t.Errorf("New() with empty name error = %v, want ErrInvalidDefinition", err)
	}

	props := Properties{Name: "QUAD-01", HardwareType: "magnet", Area: "injector"}
	if _, err := New(props, nil, nil); !errors.Is(err, ErrInvalidDefinition) {
		t.Errorf("New() with no points error = %v, want ErrInvalidDefinition", err)
	}
	if _, err := New(props, map[string]*control.Point{"x": nil}, nil); !errors.Is(err, ErrInvalidDefinition) {
		t.Errorf("New() with nil point error = %v, want ErrInvalidDefinition", err)
	}
}

func TestDeviceEqual(t *testing.T) {
	a, _ := newTestMagnet(t, nil)
	b, _ := newTestMagnet(t, nil)

	if !a.Equal(b) {
		t.Error("Equal() = false for same name and position")
	}
	if a.Equal(nil) {
		t.Error("Equal(nil) = true")
	}
}

func TestCaptureSnapshot(t *testing.T) {
	d, _ := newTestMagnet(t, nil)

	entry, warnings, err := d.CaptureSnapshot(context.Background())
	if err != nil {
		t.Fatalf("CaptureSnapshot() error = %v", err)
	}
	if len(warnings) != 0 {
		t.Errorf("warnings = %v, want none", warnings)
	}

	if len(entry) != 4 {
		t.Fatalf("entry has %d points, want 4: %v", len(entry), entry)
	}
	if entry["current"].Value != 4.2 {
		t.Errorf("current = %v, want 4.2", entry["current"].Value)
	}
	if entry["current_sp"].Value != 4.0 {
		t.Errorf("current_sp = %v, want 4.0", entry["current_sp"].Value)
	}
	if entry["status"].Value != "ON" {
		t.Errorf("status = %v, want symbolic name ON", entry["status"].Value)
	}
	if entry["readback"].Buffer != nil {
		t.Errorf("readback buffer = %v, want none while not buffering", entry["readback"].Buffer)
	}
}

func TestCaptureSnapshotBufferingPoint(t *testing.T) {
	d, chans := newTestMagnet(t, nil)

	if err := d.StartBuffering("readback"); err != nil {
		t.Fatalf("StartBuffering() error = %v", err)
	}
	base := time.Unix(1700000000, 0)
	chans.readback.push(4.1, base)
	chans.readback.push(4.2, base.Add(time.Second))

	entry, _, err := d.CaptureSnapshot(context.Background())
	if err != nil {
		t.Fatalf("CaptureSnapshot() error = %v", err)
	}

	state := entry["readback"]
	if len(state.Buffer) != 2 || len(state.Timestamps) != 2 {
		t.Fatalf("buffer/timestamps lengths = %d/%d, want 2/2", len(state.Buffer), len(state.Timestamps))
	}
	if state.Buffer[0] != 4.1 || state.Buffer[1] != 4.2 {
		t.Errorf("buffer = %v, want [4.1 4.2]", state.Buffer)
	}
	if state.Timestamps[0] >= state.Timestamps[1] {
		t.Errorf("timestamps = %v, want ascending", state.Timestamps)
	}
}

func TestCaptureSnapshotAdditionalInfo(t *testing.T) {
	d, _ := newTestMagnet(t, map[string]any{
		"manufacturer": "Danfysik",
		"current":      "collides with a point",
	})

	entry, warnings, err := d.CaptureSnapshot(context.Background())
	if err != nil {
		t.Fatalf("CaptureSnapshot() error = %v", err)
	}

	if entry["manufacturer"].Value != "Danfysik" {
		t.Errorf("manufacturer = %v, want Danfysik", entry["manufacturer"].Value)
	}
	if entry["current"].Value != 4.2 {
		t.Errorf("current = %v, want point value 4.2 (additional field skipped)", entry["current"].Value)
	}
	if len(warnings) != 1 {
		t.Fatalf("warnings = %v, want exactly one collision warning", warnings)
	}
	if warnings[0].Point != "current" {
		t.Errorf("warning point = %q, want current", warnings[0].Point)
	}
}

func TestCaptureSnapshotExcludesIrrelevantPoints(t *testing.T) {
	internal := buildPoint(t, "raw_adc", control.Spec{
		Address: "MAG:Q1:ADC", Kind: "scalar", Gettable: falseValue(),
	}, newStubChannel(123.0))
	visible := buildPoint(t, "current", control.Spec{
		Address: "MAG:Q1:CUR", Kind: "scalar",
	}, newStubChannel(4.2))

	d, err := New(Properties{
		Name: "QUAD-01", HardwareType: "magnet", Area: "injector",
	}, map[string]*control.Point{"raw_adc": internal, "current": visible}, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	entry, _, err := d.CaptureSnapshot(context.Background())
	if err != nil {
		t.Fatalf("CaptureSnapshot() error = %v", err)
	}
	if _, ok := entry["raw_adc"]; ok {
		t.Error("entry contains raw_adc, want excluded (neither settable nor gettable)")
	}
	if _, ok := entry["current"]; !ok {
		t.Error("entry missing current")
	}
}

func TestCaptureSnapshotFailure(t *testing.T) {
	d, chans := newTestMagnet(t, nil)
	chans.current.getErr = errors.New("timeout")

	_, _, err := d.CaptureSnapshot(context.Background())
	if !errors.Is(err, ErrCaptureFailed) {
		t.Errorf("CaptureSnapshot() error = %v, want ErrCaptureFailed", err)
	}
}

func TestApplySnapshotSettableOnly(t *testing.T) {
	d, chans := newTestMagnet(t, nil)

	entry := Entry{
		"current":    {Value: 9.9},
		"current_sp": {Value: 5.5},
		"status":     {Value: "OFF"},
		"unknown":    {Value: 1.0},
	}

	warnings := d.ApplySnapshot(context.Background(), entry)
	if len(warnings) != 0 {
		t.Errorf("warnings = %v, want none", warnings)
	}

	if chans.currentSP.putCount() != 1 || chans.currentSP.puts[0] != 5.5 {
		t.Errorf("current_sp puts = %v, want [5.5]", chans.currentSP.puts)
	}
	if chans.current.putCount() != 0 {
		t.Error("read-only current received a put")
	}
	if chans.status.putCount() != 0 {
		t.Error("non-settable status received a put")
	}
}

func TestApplySnapshotPutFailureContinues(t *testing.T) {
	spA := newStubChannel(0.0)
	spA.putErr = errors.New("disconnected")
	spB := newStubChannel(0.0)

	pointA := buildPoint(t, "sp_a", control.Spec{
		Address: "D:1:A", Kind: "scalar", ReadOnly: falseValue(), Settable: true,
	}, spA)
	pointB := buildPoint(t, "sp_b", control.Spec{
		Address: "D:1:B", Kind: "scalar", ReadOnly: falseValue(), Settable: true,
	}, spB)

	d, err := New(Properties{
		Name: "DEV-01", HardwareType: "magnet", Area: "injector",
	}, map[string]*control.Point{"sp_a": pointA, "sp_b": pointB}, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	warnings := d.ApplySnapshot(context.Background(), Entry{
		"sp_a": {Value: 1.0},
		"sp_b": {Value: 2.0},
	})

	if len(warnings) != 1 {
		t.Fatalf("warnings = %v, want one for sp_a", warnings)
	}
	if warnings[0].Point != "sp_a" {
		t.Errorf("warning point = %q, want sp_a", warnings[0].Point)
	}
	if spB.putCount() != 1 {
		t.Error("healthy point sp_b was not written after sp_a failed")
	}
}

func TestStatisticsDelegation(t *testing.T) {
	d, chans := newTestMagnet(t, nil)

	if err := d.StartBuffering("nope"); !errors.Is(err, ErrPointNotFound) {
		t.Errorf("StartBuffering(unknown) error = %v, want ErrPointNotFound", err)
	}
	if err := d.StartBuffering("current"); !errors.Is(err, control.ErrNotStatistical) {
		t.Errorf("StartBuffering(scalar) error = %v, want ErrNotStatistical", err)
	}

	if err := d.StartBuffering("readback"); err != nil {
		t.Fatalf("StartBuffering() error = %v", err)
	}
	buffering, err := d.IsBuffering("readback")
	if err != nil || !buffering {
		t.Errorf("IsBuffering() = %v, %v; want true, nil", buffering, err)
	}

	base := time.Unix(1700000000, 0)
	for i := 0; i < 5; i++ {
		chans.readback.push(float64(i), base.Add(time.Duration(i)*time.Second))
	}

	full, err := d.IsBufferFull("readback")
	if err != nil || !full {
		t.Errorf("IsBufferFull() = %v, %v; want true, nil", full, err)
	}

	if err := d.ResizeBuffer("readback", 3); err != nil {
		t.Fatalf("ResizeBuffer() error = %v", err)
	}
	w, err := d.Window("readback")
	if err != nil {
		t.Fatalf("Window() error = %v", err)
	}
	if w.Len() != 3 {
		t.Errorf("window Len() = %d after shrink, want 3", w.Len())
	}
	if got := w.Values(); got[0] != 2.0 {
		t.Errorf("oldest surviving value = %v, want 2 (most recent kept)", got[0])
	}

	if err := d.ClearBuffer("readback"); err != nil {
		t.Fatalf("ClearBuffer() error = %v", err)
	}
	if w.Len() != 0 {
		t.Errorf("window Len() = %d after clear, want 0", w.Len())
	}

	if err := d.StopBuffering("readback"); err != nil {
		t.Fatalf("StopBuffering() error = %v", err)
	}

	names := d.StatisticalPointNames()
	if len(names) != 1 || names[0] != "readback" {
		t.Errorf("StatisticalPointNames() = %v, want [readback]", names)
	}
}
