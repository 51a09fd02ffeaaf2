// Package snapshot captures, persists, compares and restores the state
// of a device fleet, one hardware type per engine.
//
// # Lifecycle
//
// An Engine starts Empty. Update, Set or Load holds a document in
// memory; Apply writes it back to the fleet and marks the engine
// Applied only when every targeted device was found in the document.
// Any new document returns the engine to Held.
//
// # Fan-out
//
// Update and Apply run one worker per device and wait for all of them.
// Per-device failures are collected as warnings, never errors, so a
// single unreachable device cannot abort a fleet operation.
//
// # Persistence
//
// Documents are saved as YAML at <root>/<hardware-type>/<name>.yaml,
// with a comment and an ISO-8601 created timestamp injected at the top
// level. An optional SQLite catalog indexes every save for listing.
//
// # Diffing
//
// Diff walks the first document's device keys only. Devices present
// only in the second document are not reported; this asymmetry is
// deliberate and covered by tests.
package snapshot
