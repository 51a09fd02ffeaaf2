package snapshot

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/arclight-systems/machine-core/internal/device"
)

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

// State is the engine's document lifecycle state.
type State int

const (
	// StateEmpty means no document is held.
	StateEmpty State = iota
	// StateHeld means a document is in memory but not applied.
	StateHeld
	// StateApplied means the held document was applied to every targeted
	// device.
	StateApplied
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateHeld:
		return "held"
	case StateApplied:
		return "applied"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Engine coordinates whole-fleet capture, apply, diff and persistence
// for one hardware type.
//
// Capture and apply fan out one worker per device and block until every
// worker completes. Per-device failures never abort the batch; they are
// collected as warnings. Each worker is bounded by its points'
// per-operation timeouts, so the batch is bounded by the slowest
// surviving worker.
type Engine struct {
	hardwareType string
	registry     *device.Registry
	store        *Store
	catalog      *Catalog
	logger       Logger

	mu          sync.Mutex
	doc         Document
	applied     bool
	lastApplied time.Time

	now func() time.Time
}

// NewEngine creates an engine scoped to one hardware type. The store is
// required for save/load; the catalog is optional.
func NewEngine(hardwareType string, registry *device.Registry, store *Store) (*Engine, error) {
	if strings.TrimSpace(hardwareType) == "" {
		return nil, fmt.Errorf("%w: hardware type cannot be empty", ErrInvalidSnapshot)
	}
	if registry == nil {
		return nil, fmt.Errorf("%w: registry is required", ErrInvalidSnapshot)
	}
	if store == nil {
		return nil, fmt.Errorf("%w: store is required", ErrInvalidSnapshot)
	}
	return &Engine{
		hardwareType: hardwareType,
		registry:     registry,
		store:        store,
		logger:       noopLogger{},
		now:          time.Now,
	}, nil
}

// SetLogger sets the logger for the engine.
func (e *Engine) SetLogger(logger Logger) {
	if logger != nil {
		e.logger = logger
	}
}

// SetCatalog attaches a snapshot catalog; every save is recorded in it.
func (e *Engine) SetCatalog(catalog *Catalog) {
	e.catalog = catalog
}

// HardwareType returns the hardware type this engine is scoped to.
func (e *Engine) HardwareType() string { return e.hardwareType }

// State reports the engine's document lifecycle state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.doc == nil {
		return StateEmpty
	}
	if e.applied {
		return StateApplied
	}
	return StateHeld
}

// Document returns a deep copy of the held document, or nil when empty.
func (e *Engine) Document() Document {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.doc.Copy()
}

// Applied reports whether the held document has been applied.
func (e *Engine) Applied() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.applied
}

// LastApplied returns the time of the last successful apply.
func (e *Engine) LastApplied() (time.Time, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastApplied, !e.lastApplied.IsZero()
}

// devices returns the registry devices carrying the engine's hardware
// type, in registry order.
func (e *Engine) devices() []*device.Device {
	var out []*device.Device
	for _, d := range e.registry.All() {
		if d.HardwareType() == e.hardwareType {
			out = append(out, d)
		}
	}
	return out
}

// Set holds the given document. The top-level key must match the
// engine's hardware type; anything else is rejected. Setting a new
// document always clears the applied flag.
func (e *Engine) Set(doc Document) error {
	if _, ok := doc[e.hardwareType]; !ok {
		return fmt.Errorf("%w: expected a %q snapshot", ErrInvalidSnapshot, e.hardwareType)
	}
	if len(doc) != 1 {
		return fmt.Errorf("%w: document mixes hardware types", ErrInvalidSnapshot)
	}

	e.mu.Lock()
	e.doc = doc
	e.applied = false
	e.mu.Unlock()
	return nil
}

// Update captures a fresh snapshot of every device concurrently, one
// worker per device, and holds the merged document.
//
// A device whose capture fails is excluded from the document with a
// warning; the batch never aborts. The join barrier means Update returns
// only after every worker has finished.
func (e *Engine) Update(ctx context.Context) ([]device.Warning, error) {
	devices := e.devices()
	entries := make(DeviceEntries, len(devices))

	var (
		mu       sync.Mutex
		warnings []device.Warning
	)

	g, ctx := errgroup.WithContext(ctx)
	for _, d := range devices {
		d := d
		g.Go(func() error {
			entry, entryWarnings, err := d.CaptureSnapshot(ctx)

			mu.Lock()
			defer mu.Unlock()
			warnings = append(warnings, entryWarnings...)
			if err != nil {
				warnings = append(warnings, device.Warning{
					Device:  d.Name(),
					Message: err.Error(),
				})
				e.logger.Warn("device capture failed, excluding from snapshot",
					"device", d.Name(), "error", err)
				return nil
			}
			entries[d.Name()] = entry
			return nil
		})
	}
	// Workers never return errors; Wait is the join barrier.
	_ = g.Wait() //nolint:errcheck

	if err := e.Set(Document{e.hardwareType: entries}); err != nil {
		return warnings, err
	}

	e.logger.Info("snapshot updated",
		"hardware_type", e.hardwareType, "devices", len(entries), "warnings", len(warnings))
	return warnings, nil
}

// Apply writes the held document back to the fleet, one worker per
// device not named in exclude.
//
// A device missing from the document is skipped with a warning and the
// engine stays Held. Only when every targeted device was found does the
// engine mark Applied and record the apply time. Individual put failures
// inside a device are warnings, not errors, and do not block Applied.
func (e *Engine) Apply(ctx context.Context, exclude ...string) ([]device.Warning, error) {
	e.mu.Lock()
	doc := e.doc
	e.mu.Unlock()
	if doc == nil {
		return nil, fmt.Errorf("%w: update, set or load one first", ErrNoSnapshot)
	}
	entries := doc[e.hardwareType]

	excluded := make(map[string]struct{}, len(exclude))
	for _, name := range exclude {
		excluded[name] = struct{}{}
	}

	var (
		mu         sync.Mutex
		warnings   []device.Warning
		allPresent = true
	)

	g, ctx := errgroup.WithContext(ctx)
	for _, d := range e.devices() {
		d := d
		if _, skip := excluded[d.Name()]; skip {
			continue
		}

		entry, ok := entries[d.Name()]
		if !ok {
			mu.Lock()
			allPresent = false
			warnings = append(warnings, device.Warning{
				Device:  d.Name(),
				Message: "device not found in snapshot settings",
			})
			mu.Unlock()
			e.logger.Warn("device missing from snapshot", "device", d.Name())
			continue
		}

		g.Go(func() error {
			applyWarnings := d.ApplySnapshot(ctx, entry)

			mu.Lock()
			warnings = append(warnings, applyWarnings...)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck

	if allPresent {
		e.mu.Lock()
		e.applied = true
		e.lastApplied = e.now()
		e.mu.Unlock()
	}

	e.logger.Info("snapshot applied",
		"hardware_type", e.hardwareType, "applied", allPresent, "warnings", len(warnings))
	return warnings, nil
}

// Save persists the held document under the engine's hardware-type
// directory and records it in the catalog when one is attached. Returns
// the resolved file path.
func (e *Engine) Save(ctx context.Context, filename, comment string) (string, error) {
	e.mu.Lock()
	doc := e.doc
	e.mu.Unlock()
	if doc == nil {
		return "", fmt.Errorf("%w: nothing to save", ErrNoSnapshot)
	}

	path, err := e.store.Save(e.hardwareType, filename, comment, doc)
	if err != nil {
		return "", err
	}

	if e.catalog != nil {
		record := Record{
			HardwareType: e.hardwareType,
			Filename:     filename,
			Path:         path,
			Comment:      comment,
			DeviceCount:  len(doc[e.hardwareType]),
		}
		if err := e.catalog.Record(ctx, record); err != nil {
			e.logger.Error("recording snapshot in catalog failed",
				"path", path, "error", err)
		}
	}

	return path, nil
}

// Load reads a saved snapshot into the engine. The document is held, not
// applied; call Apply explicitly to write it back to the fleet.
func (e *Engine) Load(filename string) error {
	doc, _, err := e.store.Load(e.hardwareType, filename)
	if err != nil {
		return err
	}
	return e.Set(doc)
}

// Diff compares two documents under this engine's hardware type. See
// the package-level Diff for the walk semantics.
func (e *Engine) Diff(a, b Document) (DiffResult, error) {
	return Diff(e.hardwareType, a, b)
}

// CompareWithCurrent captures a fresh snapshot of the fleet and diffs
// the held document against it, without disturbing the held document.
func (e *Engine) CompareWithCurrent(ctx context.Context) (DiffResult, []device.Warning, error) {
	e.mu.Lock()
	held := e.doc
	e.mu.Unlock()
	if held == nil {
		return nil, nil, fmt.Errorf("%w: nothing to compare against", ErrNoSnapshot)
	}

	scratch, err := NewEngine(e.hardwareType, e.registry, e.store)
	if err != nil {
		return nil, nil, err
	}
	warnings, err := scratch.Update(ctx)
	if err != nil {
		return nil, warnings, err
	}

	diff, err := Diff(e.hardwareType, held, scratch.Document())
	return diff, warnings, err
}

// CompareFiles loads two saved snapshots and diffs them.
func (e *Engine) CompareFiles(first, second string) (DiffResult, error) {
	a, _, err := e.store.Load(e.hardwareType, first)
	if err != nil {
		return nil, err
	}
	b, _, err := e.store.Load(e.hardwareType, second)
	if err != nil {
		return nil, err
	}
	return Diff(e.hardwareType, a, b)
}
