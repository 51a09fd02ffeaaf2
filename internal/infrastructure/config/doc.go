// Package config loads and validates machine-core configuration.
//
// Configuration comes from a single YAML file with three layers of
// precedence: hardcoded defaults, file values, then MACHINECORE_*
// environment variable overrides. The loaded Config is immutable by
// convention; packages receive the sections they need at construction.
//
// The machine section is the authoritative source for the machine area
// sequence and the hardware-type/subtype catalogue used by the device
// registry and snapshot engine.
package config
