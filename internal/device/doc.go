// Package device models the machine's hardware units and their registry.
//
// A Device aggregates a set of control points plus immutable Properties
// (name, aliases, hardware type, position, area, subtype). Devices order
// by area rank then position and compare equal on name and position.
//
// # Registry
//
// The Registry resolves devices by name or alias, with fail-fast
// registration: duplicate names or aliases and unknown areas reject the
// device at load time. It also carries fleet-level buffering sweeps over
// the statistical points of many devices at once.
//
// # Lattice
//
// Devices are defined in per-device YAML files laid out as
// <lattice>/<HardwareType>/<NAME>.yaml. The Loader parses and validates
// each definition, dials every point through the configured transport,
// and registers the result.
//
// # Snapshots
//
// CaptureSnapshot and ApplySnapshot produce and consume one device's
// slice of a fleet snapshot document. Capture reads every settable or
// gettable point; apply writes only the settable ones. Batch failures
// are collected as Warnings, never raised mid-batch.
package device
