package device

import (
	"fmt"
	"strings"

	"github.com/arclight-systems/machine-core/internal/area"
)

// Properties is the immutable metadata of a device. Construct it once,
// from a definition file or by hand in tests, and never mutate it.
type Properties struct {
	// Name is the unique, case-sensitive device name.
	Name string

	// Aliases are alternative lookup names. Case-sensitive, unique
	// within a registry alongside every name.
	Aliases []string

	// HardwareType classifies devices sharing a point schema. It scopes
	// snapshot documents and the on-disk lattice layout.
	HardwareType string

	// Position is the scalar ordering key within an area, typically a
	// distance along the machine.
	Position float64

	// Area names the machine area the device sits in. Must appear in the
	// configured area sequence.
	Area string

	// Subtype is an optional finer classification within a hardware type.
	Subtype string
}

// Validate checks the fields that do not need registry context.
func (p Properties) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: device name cannot be empty", ErrInvalidDefinition)
	}
	if strings.TrimSpace(p.HardwareType) == "" {
		return fmt.Errorf("%w: device %q has no hardware type", ErrInvalidDefinition, p.Name)
	}
	if strings.TrimSpace(p.Area) == "" {
		return fmt.Errorf("%w: device %q has no area", ErrInvalidDefinition, p.Name)
	}
	for _, alias := range p.Aliases {
		if strings.TrimSpace(alias) == "" {
			return fmt.Errorf("%w: device %q has an empty alias", ErrInvalidDefinition, p.Name)
		}
	}
	return nil
}

// Equal reports device identity: name and position both match. Aliases,
// area and subtype do not participate.
func (p Properties) Equal(other Properties) bool {
	return p.Name == other.Name && p.Position == other.Position
}

// Less orders devices by area rank in the given sequence, then by
// position ascending. Name breaks exact position ties so the order is
// total. Errors if either area is not in the sequence.
func (p Properties) Less(other Properties, seq *area.Sequence) (bool, error) {
	rank, err := seq.Rank(p.Area)
	if err != nil {
		return false, fmt.Errorf("device %q: %w", p.Name, err)
	}
	otherRank, err := seq.Rank(other.Area)
	if err != nil {
		return false, fmt.Errorf("device %q: %w", other.Name, err)
	}

	if rank != otherRank {
		return rank < otherRank, nil
	}
	if p.Position != other.Position {
		return p.Position < other.Position, nil
	}
	return p.Name < other.Name, nil
}
