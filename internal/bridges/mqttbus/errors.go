package mqttbus

import "errors"

var (
	// ErrInvalidAddress is returned when a point address does not match
	// the <hwtype>/<device>/<point> scheme.
	ErrInvalidAddress = errors.New("mqttbus: invalid point address")

	// ErrInvalidPayload is returned when a bus message cannot be decoded.
	ErrInvalidPayload = errors.New("mqttbus: invalid payload")

	// ErrNoValue is returned when a get times out before the first state
	// update arrives on the point's topic.
	ErrNoValue = errors.New("mqttbus: no value received")

	// ErrUnknownSubscription is returned when unsubscribing an unknown
	// handle.
	ErrUnknownSubscription = errors.New("mqttbus: unknown subscription")
)
