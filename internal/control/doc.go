// Package control models individual control points: named, typed values
// addressable on the machine's control network.
//
// # Kinds
//
// A point is one of six payload variants: scalar, binary, string, state,
// waveform, or statistical. The kind is fixed at construction by a
// parse-and-validate step (Build) that turns a YAML Spec into a typed
// Point or a structured error. State kinds carry a closed map of symbolic
// names to integers and always present the name, never the raw value.
//
// # Transport
//
// Points never talk to the network directly. The Channel interface
// (get/put/subscribe with a per-operation timeout) is implemented by the
// MQTT adapter in internal/bridges/mqttbus and by fakes in tests. A put
// against a read-only point is rejected before it reaches the channel.
//
// # Statistics
//
// Statistical points own a Window: a fixed-capacity ring of samples fed
// by an asynchronous subscription while buffering is active. Min and max
// track by absolute magnitude; mean, stdev, median and mode are computed
// once the window holds three samples. See Window for the exact
// semantics, which follow the established machine physics behaviour.
package control
