package area

import (
	"fmt"
	"strings"
)

// Sequence is the fixed, ordered list of machine areas.
//
// The order is significant: it defines the rank used to sort devices along
// the machine, before position breaks ties within an area. The sequence is
// loaded once from configuration and never mutated afterwards.
type Sequence struct {
	names []string
	rank  map[string]int
}

// NewSequence builds a Sequence from an ordered list of area names.
// Names are case-sensitive. Empty or duplicate names are invariant
// violations and fail fast.
func NewSequence(names []string) (*Sequence, error) {
	if len(names) == 0 {
		return nil, fmt.Errorf("%w: sequence cannot be empty", ErrInvalidSequence)
	}

	rank := make(map[string]int, len(names))
	for i, name := range names {
		if strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("%w: area name at index %d is empty", ErrInvalidSequence, i)
		}
		if _, exists := rank[name]; exists {
			return nil, fmt.Errorf("%w: duplicate area %q", ErrInvalidSequence, name)
		}
		rank[name] = i
	}

	return &Sequence{
		names: append([]string(nil), names...),
		rank:  rank,
	}, nil
}

// Rank returns the position of the area within the sequence.
// Unknown areas return ErrUnknownArea.
func (s *Sequence) Rank(name string) (int, error) {
	r, ok := s.rank[name]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownArea, name)
	}
	return r, nil
}

// Contains reports whether the area is part of the sequence.
func (s *Sequence) Contains(name string) bool {
	_, ok := s.rank[name]
	return ok
}

// Names returns the areas in machine order.
func (s *Sequence) Names() []string {
	return append([]string(nil), s.names...)
}

// Len returns the number of areas in the sequence.
func (s *Sequence) Len() int {
	return len(s.names)
}
