package area

import (
	"errors"
	"testing"
)

func testSequence(t *testing.T) *Sequence {
	t.Helper()

	seq, err := NewSequence([]string{"injector", "linac", "spectrometer"})
	if err != nil {
		t.Fatalf("NewSequence() error = %v", err)
	}
	return seq
}

func TestNewSequence(t *testing.T) {
	tests := []struct {
		name    string
		names   []string
		wantErr bool
	}{
		{name: "valid", names: []string{"injector", "linac"}, wantErr: false},
		{name: "single area", names: []string{"injector"}, wantErr: false},
		{name: "empty", names: nil, wantErr: true},
		{name: "duplicate", names: []string{"injector", "injector"}, wantErr: true},
		{name: "blank name", names: []string{"injector", " "}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSequence(tt.names)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewSequence() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidSequence) {
				t.Errorf("error = %v, want ErrInvalidSequence", err)
			}
		})
	}
}

func TestRank(t *testing.T) {
	seq := testSequence(t)

	tests := []struct {
		area string
		want int
	}{
		{"injector", 0},
		{"linac", 1},
		{"spectrometer", 2},
	}

	for _, tt := range tests {
		t.Run(tt.area, func(t *testing.T) {
			got, err := seq.Rank(tt.area)
			if err != nil {
				t.Fatalf("Rank(%q) error = %v", tt.area, err)
			}
			if got != tt.want {
				t.Errorf("Rank(%q) = %d, want %d", tt.area, got, tt.want)
			}
		})
	}
}

func TestRankUnknownArea(t *testing.T) {
	seq := testSequence(t)

	_, err := seq.Rank("storage-ring")
	if !errors.Is(err, ErrUnknownArea) {
		t.Errorf("Rank() error = %v, want ErrUnknownArea", err)
	}
}

func TestRankCaseSensitive(t *testing.T) {
	seq := testSequence(t)

	_, err := seq.Rank("Linac")
	if !errors.Is(err, ErrUnknownArea) {
		t.Errorf("Rank() error = %v, want ErrUnknownArea for wrong case", err)
	}
}

func TestContains(t *testing.T) {
	seq := testSequence(t)

	if !seq.Contains("linac") {
		t.Error("Contains(linac) = false, want true")
	}
	if seq.Contains("storage-ring") {
		t.Error("Contains(storage-ring) = true, want false")
	}
}

func TestNamesCopy(t *testing.T) {
	seq := testSequence(t)

	names := seq.Names()
	names[0] = "mutated"

	if got, _ := seq.Rank("injector"); got != 0 {
		t.Error("mutating Names() result should not affect the sequence")
	}
	if seq.Names()[0] != "injector" {
		t.Error("sequence names were mutated through Names()")
	}
}

func TestLen(t *testing.T) {
	seq := testSequence(t)
	if seq.Len() != 3 {
		t.Errorf("Len() = %d, want 3", seq.Len())
	}
}
