package control

import (
	"math"
	"sort"
	"sync"
	"time"
)

// minAggregateSamples is the window length at which mean, stdev, median
// and mode are first computed. Below this the aggregates stay unset.
const minAggregateSamples = 3

// Sample is one buffered reading. Timestamps are epoch seconds so they
// survive a YAML round-trip as plain numbers.
type Sample struct {
	Timestamp float64
	Value     float64
}

// Window is a fixed-capacity ring of samples with running aggregates.
//
// Samples are ordered oldest-first and the oldest is evicted on overflow.
// Min and max are tracked by ABSOLUTE magnitude, not signed value, and are
// not recomputed on eviction: they cover everything seen since the last
// Clear. This matches the behaviour the machine physics tooling has always
// relied on.
//
// Update is safe to call from asynchronous subscription callbacks.
type Window struct {
	mu       sync.Mutex
	capacity int
	samples  []Sample

	min, max    float64
	hasExtremes bool

	mean, stdev, median, mode float64
	hasAggregates             bool
}

// NewWindow creates a window with the given capacity.
func NewWindow(capacity int) (*Window, error) {
	if capacity <= 0 {
		return nil, ErrInvalidCapacity
	}
	return &Window{
		capacity: capacity,
		min:      math.MaxFloat64,
		max:      math.SmallestNonzeroFloat64,
	}, nil
}

// Update appends one sample, evicting the oldest if the window is full,
// and refreshes the running aggregates.
func (w *Window) Update(value float64, timestamp time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.samples = append(w.samples, Sample{
		Timestamp: float64(timestamp.UnixNano()) / float64(time.Second),
		Value:     value,
	})
	if len(w.samples) > w.capacity {
		w.samples = w.samples[1:]
	}

	if math.Abs(value) > math.Abs(w.max) {
		w.max = value
	}
	if math.Abs(value) < math.Abs(w.min) {
		w.min = value
	}
	w.hasExtremes = true

	if len(w.samples) >= minAggregateSamples {
		w.recomputeAggregates()
		w.hasAggregates = true
	}
}

// recomputeAggregates rebuilds mean, stdev, median and mode over the full
// current window. Callers hold w.mu.
func (w *Window) recomputeAggregates() {
	n := len(w.samples)
	values := make([]float64, n)
	for i, s := range w.samples {
		values[i] = s.Value
	}

	var sum float64
	for _, v := range values {
		sum += v
	}
	w.mean = sum / float64(n)

	var sq float64
	for _, v := range values {
		d := v - w.mean
		sq += d * d
	}
	w.stdev = math.Sqrt(sq / float64(n-1))

	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	if n%2 == 1 {
		w.median = sorted[n/2]
	} else {
		w.median = (sorted[n/2-1] + sorted[n/2]) / 2
	}

	// Mode: most frequent value, first-encountered wins ties.
	counts := make(map[float64]int, n)
	first := make(map[float64]int, n)
	for i, v := range values {
		counts[v]++
		if _, seen := first[v]; !seen {
			first[v] = i
		}
	}
	bestCount, bestFirst := 0, 0
	for _, v := range values {
		c := counts[v]
		f := first[v]
		if c > bestCount || (c == bestCount && f < bestFirst) {
			bestCount = c
			bestFirst = f
			w.mode = v
		}
	}
}

// Len returns the current number of buffered samples.
func (w *Window) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.samples)
}

// Capacity returns the window capacity.
func (w *Window) Capacity() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.capacity
}

// IsFull reports whether the sample count equals the capacity.
func (w *Window) IsFull() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.samples) == w.capacity
}

// Clear drops all buffered samples. Aggregates keep their last computed
// values until new samples arrive.
func (w *Window) Clear() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.samples = nil
}

// Resize rebuilds the window with a new capacity, retaining the most
// recent samples when shrinking.
func (w *Window) Resize(capacity int) error {
	if capacity <= 0 {
		return ErrInvalidCapacity
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if capacity < len(w.samples) {
		w.samples = append([]Sample(nil), w.samples[len(w.samples)-capacity:]...)
	}
	w.capacity = capacity
	return nil
}

// Samples returns a copy of the buffered samples, oldest first.
func (w *Window) Samples() []Sample {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]Sample(nil), w.samples...)
}

// Values returns the buffered values, oldest first.
func (w *Window) Values() []float64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]float64, len(w.samples))
	for i, s := range w.samples {
		out[i] = s.Value
	}
	return out
}

// Timestamps returns the buffered sample timestamps as epoch seconds,
// oldest first, parallel to Values.
func (w *Window) Timestamps() []float64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]float64, len(w.samples))
	for i, s := range w.samples {
		out[i] = s.Timestamp
	}
	return out
}

// Min returns the minimum-by-magnitude value seen since the last Clear.
// ok is false before the first sample.
func (w *Window) Min() (v float64, ok bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.min, w.hasExtremes
}

// Max returns the maximum-by-magnitude value seen since the last Clear.
// ok is false before the first sample.
func (w *Window) Max() (v float64, ok bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.max, w.hasExtremes
}

// Mean returns the last computed mean. ok is false until the window has
// reached three samples at least once.
func (w *Window) Mean() (v float64, ok bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.mean, w.hasAggregates
}

// Stdev returns the last computed sample standard deviation.
func (w *Window) Stdev() (v float64, ok bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stdev, w.hasAggregates
}

// Median returns the last computed median.
func (w *Window) Median() (v float64, ok bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.median, w.hasAggregates
}

// Mode returns the last computed mode (first-encountered wins ties).
func (w *Window) Mode() (v float64, ok bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.mode, w.hasAggregates
}
