package snapshot

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultExtension = ".yaml"

	dirPermissions  = 0750
	filePermissions = 0600
)

// Meta is the bookkeeping injected into every saved snapshot file
// alongside the document itself.
type Meta struct {
	Comment string
	Created time.Time
}

// Store persists snapshot documents as YAML files, one directory per
// hardware type under the snapshot root.
type Store struct {
	root   string
	logger Logger
	now    func() time.Time
}

// NewStore creates a store rooted at the given directory. Hardware-type
// subdirectories are created on first save.
func NewStore(root string) (*Store, error) {
	if strings.TrimSpace(root) == "" {
		return nil, fmt.Errorf("%w: snapshot root cannot be empty", ErrEmptyFilename)
	}
	return &Store{
		root:   root,
		logger: noopLogger{},
		now:    time.Now,
	}, nil
}

// SetLogger sets the logger for the store.
func (s *Store) SetLogger(logger Logger) {
	if logger != nil {
		s.logger = logger
	}
}

// Root returns the snapshot root directory.
func (s *Store) Root() string { return s.root }

// Path resolves a snapshot filename inside a hardware type's directory,
// normalizing the extension to .yaml when the caller omits one. An empty
// filename is a configuration error.
func (s *Store) Path(hardwareType, filename string) (string, error) {
	if strings.TrimSpace(filename) == "" {
		return "", fmt.Errorf("%w: hardware type %q", ErrEmptyFilename, hardwareType)
	}

	ext := filepath.Ext(filename)
	if ext != ".yaml" && ext != ".yml" {
		filename = strings.TrimSuffix(filename, ext) + defaultExtension
	}
	return filepath.Join(s.root, hardwareType, filename), nil
}

// Save writes the document plus comment and created timestamp
// (ISO-8601) to <root>/<hardware-type>/<filename>, creating the
// directory if needed. Returns the resolved file path.
func (s *Store) Save(hardwareType, filename, comment string, doc Document) (string, error) {
	path, err := s.Path(hardwareType, filename)
	if err != nil {
		return "", err
	}
	if _, ok := doc[hardwareType]; !ok {
		return "", fmt.Errorf("%w: document is not a %q snapshot", ErrInvalidSnapshot, hardwareType)
	}

	if err := os.MkdirAll(filepath.Dir(path), dirPermissions); err != nil {
		return "", fmt.Errorf("creating snapshot directory: %w", err)
	}

	output := map[string]any{
		hardwareType: doc[hardwareType],
		"comment":    comment,
		"created":    s.now().UTC().Format(time.RFC3339),
	}
	data, err := yaml.Marshal(output)
	if err != nil {
		return "", fmt.Errorf("encoding snapshot: %w", err)
	}

	if err := os.WriteFile(path, data, filePermissions); err != nil {
		return "", fmt.Errorf("writing snapshot %q: %w", path, err)
	}

	s.logger.Info("snapshot saved",
		"hardware_type", hardwareType, "path", path, "devices", len(doc[hardwareType]))
	return path, nil
}

// Load reads a saved snapshot, separating the document from the injected
// comment and created fields.
func (s *Store) Load(hardwareType, filename string) (Document, Meta, error) {
	path, err := s.Path(hardwareType, filename)
	if err != nil {
		return nil, Meta{}, err
	}

	data, err := os.ReadFile(path) //nolint:gosec // paths resolve under the snapshot root
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, Meta{}, fmt.Errorf("%w: %q", ErrNotFound, path)
		}
		return nil, Meta{}, fmt.Errorf("reading snapshot %q: %w", path, err)
	}

	var raw map[string]yaml.Node
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, Meta{}, fmt.Errorf("%w: parsing %q: %v", ErrInvalidSnapshot, path, err)
	}

	var meta Meta
	doc := make(Document)
	for key, node := range raw {
		switch key {
		case "comment":
			if err := node.Decode(&meta.Comment); err != nil {
				return nil, Meta{}, fmt.Errorf("%w: %q has a malformed comment: %v", ErrInvalidSnapshot, path, err)
			}
		case "created":
			var created string
			if err := node.Decode(&created); err != nil {
				return nil, Meta{}, fmt.Errorf("%w: %q has a malformed created field: %v", ErrInvalidSnapshot, path, err)
			}
			if ts, err := time.Parse(time.RFC3339, created); err == nil {
				meta.Created = ts
			}
		default:
			var entries DeviceEntries
			if err := node.Decode(&entries); err != nil {
				return nil, Meta{}, fmt.Errorf("%w: %q has malformed entries under %q: %v", ErrInvalidSnapshot, path, key, err)
			}
			doc[key] = entries
		}
	}

	if _, ok := doc[hardwareType]; !ok {
		return nil, Meta{}, fmt.Errorf("%w: %q is not a %q snapshot", ErrInvalidSnapshot, path, hardwareType)
	}
	return doc, meta, nil
}

// List returns the snapshot filenames saved for one hardware type,
// sorted by name. A missing directory is just an empty list.
func (s *Store) List(hardwareType string) ([]string, error) {
	dir := filepath.Join(s.root, hardwareType)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading snapshot directory %q: %w", dir, err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := filepath.Ext(entry.Name())
		if ext == ".yaml" || ext == ".yml" {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}
