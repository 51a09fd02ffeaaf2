package mqttbus

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/arclight-systems/machine-core/internal/control"
	"github.com/arclight-systems/machine-core/internal/infrastructure/mqtt"
)

// defaultTimeout bounds point operations when no timeout is configured.
const defaultTimeout = 500 * time.Millisecond

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

// Dialer builds control channels over the MQTT bus. One dialer serves a
// whole lattice; each dialed address gets its own topic pair.
type Dialer struct {
	client  *mqtt.Client
	qos     byte
	timeout time.Duration
	logger  Logger
}

// NewDialer creates a dialer over a connected client. A zero timeout
// falls back to the package default.
func NewDialer(client *mqtt.Client, qos byte, timeout time.Duration) *Dialer {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Dialer{
		client:  client,
		qos:     qos,
		timeout: timeout,
		logger:  noopLogger{},
	}
}

// SetLogger sets the logger for the dialer and the channels it creates.
func (d *Dialer) SetLogger(logger Logger) {
	if logger != nil {
		d.logger = logger
	}
}

// Dial subscribes to the address's retained state topic and returns a
// channel for it. Addresses follow <hwtype>/<device>/<point>; the
// virtual "VM-" prefix lands on the hardware-type segment and routes to
// the simulated machine.
func (d *Dialer) Dial(address string) (control.Channel, error) {
	hwtype, device, point, err := parseAddress(address)
	if err != nil {
		return nil, err
	}

	topics := d.client.Topics()
	ch := &Channel{
		client:     d.client,
		stateTopic: topics.PointState(hwtype, device, point),
		setTopic:   topics.PointSet(hwtype, device, point),
		qos:        d.qos,
		timeout:    d.timeout,
		ready:      make(chan struct{}),
		subs:       make(map[control.SubscriptionID]control.UpdateFunc),
		logger:     d.logger,
	}

	if err := d.client.Subscribe(ch.stateTopic, d.qos, ch.handleMessage); err != nil {
		return nil, fmt.Errorf("subscribing to %q: %w", ch.stateTopic, err)
	}

	d.logger.Debug("point channel dialed", "address", address, "state_topic", ch.stateTopic)
	return ch, nil
}

// parseAddress splits <hwtype>/<device>/<point> into its segments.
func parseAddress(address string) (hwtype, device, point string, err error) {
	parts := strings.Split(address, "/")
	if len(parts) != 3 {
		return "", "", "", fmt.Errorf("%w: %q", ErrInvalidAddress, address)
	}
	for _, part := range parts {
		if strings.TrimSpace(part) == "" {
			return "", "", "", fmt.Errorf("%w: %q has an empty segment", ErrInvalidAddress, address)
		}
	}
	return parts[0], parts[1], parts[2], nil
}

// Channel is one point's connection to the bus: reads come from the
// retained state topic, writes go to the set topic.
//
// The broker retains the last state message per topic, so a freshly
// dialed channel receives its current value as soon as the subscription
// settles. Get blocks until that first value or the context deadline.
type Channel struct {
	client     *mqtt.Client
	stateTopic string
	setTopic   string
	qos        byte
	timeout    time.Duration
	logger     Logger

	mu       sync.Mutex
	last     any
	lastTime time.Time
	hasValue bool
	ready    chan struct{}
	subs     map[control.SubscriptionID]control.UpdateFunc
}

// handleMessage decodes one state update, stores it as the last known
// value and fans numeric samples out to subscribers.
func (ch *Channel) handleMessage(_ string, data []byte) error {
	value, ts, err := decodePayload(data)
	if err != nil {
		ch.logger.Warn("dropping malformed state message",
			"topic", ch.stateTopic, "error", err)
		return err
	}
	if ts.IsZero() {
		ts = time.Now()
	}

	ch.mu.Lock()
	ch.last = value
	ch.lastTime = ts
	if !ch.hasValue {
		ch.hasValue = true
		close(ch.ready)
	}
	fns := make([]control.UpdateFunc, 0, len(ch.subs))
	for _, fn := range ch.subs {
		fns = append(fns, fn)
	}
	ch.mu.Unlock()

	if sample, ok := asFloat(value); ok {
		for _, fn := range fns {
			fn(sample, ts)
		}
	}
	return nil
}

// Get returns the last state delivered on the point's topic, waiting
// for the first (retained) message when the channel is freshly dialed.
func (ch *Channel) Get(ctx context.Context) (any, time.Time, error) {
	ch.mu.Lock()
	if ch.hasValue {
		value, ts := ch.last, ch.lastTime
		ch.mu.Unlock()
		return value, ts, nil
	}
	ready := ch.ready
	ch.mu.Unlock()

	select {
	case <-ready:
		ch.mu.Lock()
		value, ts := ch.last, ch.lastTime
		ch.mu.Unlock()
		return value, ts, nil
	case <-ctx.Done():
		return nil, time.Time{}, fmt.Errorf("%w: %q: %v", ErrNoValue, ch.stateTopic, ctx.Err())
	}
}

// Put publishes the value to the point's set topic. Set messages are
// not retained; commands are consumed, not state.
func (ch *Channel) Put(_ context.Context, value any) error {
	data, err := encodePayload(value, time.Now())
	if err != nil {
		return err
	}
	if err := ch.client.Publish(ch.setTopic, data, ch.qos, false); err != nil {
		return fmt.Errorf("publishing to %q: %w", ch.setTopic, err)
	}
	return nil
}

// Subscribe registers an update callback for numeric state samples.
func (ch *Channel) Subscribe(fn control.UpdateFunc) (control.SubscriptionID, error) {
	id := control.SubscriptionID(uuid.NewString())

	ch.mu.Lock()
	ch.subs[id] = fn
	ch.mu.Unlock()
	return id, nil
}

// Unsubscribe removes a previously registered callback.
func (ch *Channel) Unsubscribe(id control.SubscriptionID) error {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	if _, ok := ch.subs[id]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownSubscription, id)
	}
	delete(ch.subs, id)
	return nil
}

// Connected reports whether the underlying bus client is connected.
func (ch *Channel) Connected() bool {
	return ch.client.IsConnected()
}

// Timeout returns the per-operation timeout for this channel.
func (ch *Channel) Timeout() time.Duration {
	return ch.timeout
}
