package control

import (
	"context"
	"time"
)

// SubscriptionID identifies an active value subscription on a Channel.
type SubscriptionID string

// UpdateFunc receives asynchronous value updates from a subscription.
//
// Callbacks are invoked from the channel's own goroutines and must not
// block; the statistics window append is O(window) and bounded.
type UpdateFunc func(value float64, timestamp time.Time)

// Channel is the transport contract for one remotely addressable value.
//
// Implementations front the actual control network (the MQTT channel in
// internal/bridges/mqttbus, or a fake in tests). All operations may fail;
// failures are reported to the caller, never fatal.
type Channel interface {
	// Get reads the current value and its source timestamp.
	Get(ctx context.Context) (value any, timestamp time.Time, err error)

	// Put writes a new value toward the hardware.
	Put(ctx context.Context, value any) error

	// Subscribe registers a callback for asynchronous numeric updates.
	Subscribe(fn UpdateFunc) (SubscriptionID, error)

	// Unsubscribe removes a previously registered callback.
	Unsubscribe(id SubscriptionID) error

	// Connected reports whether the underlying transport is live.
	Connected() bool

	// Timeout is the per-operation deadline this channel enforces.
	Timeout() time.Duration
}

// Dialer creates Channels for point addresses. The lattice loader uses a
// Dialer so device construction stays independent of the transport.
type Dialer interface {
	Dial(address string) (Channel, error)
}

// SampleRecorder receives every buffered sample for external recording
// (the InfluxDB recorder in production). A nil recorder drops samples.
type SampleRecorder func(point string, value float64, timestamp time.Time)
