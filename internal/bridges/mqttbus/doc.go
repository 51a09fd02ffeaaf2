// Package mqttbus adapts the MQTT control bus to the control.Channel
// contract.
//
// Each point address <hwtype>/<device>/<point> maps to a topic pair:
// retained state messages on {prefix}/state/... carry readback values,
// and commands published to {prefix}/set/... carry setpoints. Because
// state topics are retained, a freshly dialed channel learns its
// current value from the broker without polling hardware.
//
// Payloads are JSON objects with a value and an optional epoch-seconds
// timestamp. Numeric state updates additionally fan out to statistics
// subscriptions.
package mqttbus
