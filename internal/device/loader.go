package device

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/arclight-systems/machine-core/internal/area"
	"github.com/arclight-systems/machine-core/internal/control"
)

// Definition is the YAML shape of one device definition file in the
// lattice tree.
//
// Files live at <lattice>/<HardwareType>/<NAME>.yaml; the hardware_type
// field may be omitted, in which case the directory name is used.
type Definition struct {
	Name         string                  `yaml:"name"`
	Aliases      []string                `yaml:"aliases,omitempty"`
	HardwareType string                  `yaml:"hardware_type,omitempty"`
	MachineArea  string                  `yaml:"machine_area"`
	Position     float64                 `yaml:"position"`
	Subtype      string                  `yaml:"subtype,omitempty"`
	Points       map[string]control.Spec `yaml:"points"`
	Additional   map[string]any          `yaml:"additional_information,omitempty"`
}

// Loader builds devices from lattice definition files, dialing each
// point through the given transport.
type Loader struct {
	dialer      control.Dialer
	opts        control.BuildOptions
	recorderFor func(hardwareType, device string) control.SampleRecorder
	logger      Logger
}

// NewLoader creates a loader. The build options apply to every point of
// every loaded device, so virtual mode is decided once per loader.
func NewLoader(dialer control.Dialer, opts control.BuildOptions) *Loader {
	return &Loader{
		dialer: dialer,
		opts:   opts,
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the loader.
func (l *Loader) SetLogger(logger Logger) {
	if logger != nil {
		l.logger = logger
	}
}

// SetRecorderFactory installs a per-device sample recorder factory.
// Statistical points of each built device stream their buffered samples
// to the recorder the factory returns for that device.
func (l *Loader) SetRecorderFactory(f func(hardwareType, device string) control.SampleRecorder) {
	l.recorderFor = f
}

// LoadLattice walks every hardware-type directory under the lattice root
// and returns a populated registry. Any invalid definition, duplicate
// name or alias, or unknown area fails the whole load.
func (l *Loader) LoadLattice(dir string, areas *area.Sequence) (*Registry, error) {
	registry, err := NewRegistry(areas)
	if err != nil {
		return nil, err
	}
	registry.SetLogger(l.logger)

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading lattice directory %q: %w", dir, err)
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if err := l.LoadHardwareType(dir, entry.Name(), registry); err != nil {
			return nil, err
		}
	}

	l.logger.Info("lattice loaded", "dir", dir, "devices", registry.Len())
	return registry, nil
}

// LoadHardwareType loads one hardware-type subtree into an existing
// registry.
func (l *Loader) LoadHardwareType(dir, hardwareType string, registry *Registry) error {
	typeDir := filepath.Join(dir, hardwareType)
	files, err := os.ReadDir(typeDir)
	if err != nil {
		return fmt.Errorf("reading hardware type directory %q: %w", typeDir, err)
	}

	for _, file := range files {
		if file.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(file.Name()))
		if ext != ".yaml" && ext != ".yml" {
			continue
		}

		path := filepath.Join(typeDir, file.Name())
		def, err := ParseDefinition(path)
		if err != nil {
			return err
		}

		if def.HardwareType == "" {
			def.HardwareType = hardwareType
		} else if def.HardwareType != hardwareType {
			return fmt.Errorf("%w: %q declares hardware type %q but lives under %q",
				ErrInvalidDefinition, path, def.HardwareType, hardwareType)
		}

		d, err := l.Build(def)
		if err != nil {
			return fmt.Errorf("building device from %q: %w", path, err)
		}
		if err := registry.Add(d); err != nil {
			return fmt.Errorf("registering device from %q: %w", path, err)
		}
	}

	return nil
}

// ParseDefinition reads and strictly decodes one definition file.
// Unknown YAML fields are rejected so typos fail at load, not silently.
func ParseDefinition(path string) (Definition, error) {
	data, err := os.ReadFile(path) //nolint:gosec // lattice paths come from config
	if err != nil {
		return Definition{}, fmt.Errorf("reading definition %q: %w", path, err)
	}

	var def Definition
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&def); err != nil {
		return Definition{}, fmt.Errorf("%w: parsing %q: %v", ErrInvalidDefinition, path, err)
	}
	return def, nil
}

// Build constructs a device from a parsed definition.
func (l *Loader) Build(def Definition) (*Device, error) {
	props := Properties{
		Name:         def.Name,
		Aliases:      def.Aliases,
		HardwareType: def.HardwareType,
		Position:     def.Position,
		Area:         def.MachineArea,
		Subtype:      def.Subtype,
	}
	if err := props.Validate(); err != nil {
		return nil, err
	}

	opts := l.opts
	if l.recorderFor != nil {
		opts.Recorder = l.recorderFor(def.HardwareType, def.Name)
	}

	points := make(map[string]*control.Point, len(def.Points))
	for name, spec := range def.Points {
		p, err := control.Build(name, spec, l.dialer, opts)
		if err != nil {
			return nil, fmt.Errorf("device %q: %w", def.Name, err)
		}
		points[name] = p
	}

	return New(props, points, def.Additional)
}
