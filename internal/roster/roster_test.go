package roster

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name  string
		input string
		ids   []string
	}{
		{"api json", `{"rostros":[{"id":"a","encoding":[0.1,0.2]},{"id":"b","encoding":[1,2]}]}`, []string{"a", "b"}},
		{"bare json list", `[{"id":"a","encoding":[0.5]}]`, []string{"a"}},
		{"yaml", "rostros:\n  - id: x\n    encoding: [1, 2, 3]\n", []string{"x"}},
		{"yaml list", "- id: y\n  encoding:\n    - 0.25\n", []string{"y"}},
		{"empty document", "", []string{}},
		{"empty rostros", `{"rostros":[]}`, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entries, err := Decode([]byte(tt.input))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if entries == nil {
				t.Fatal("expected non-nil entries")
			}
			if len(entries) != len(tt.ids) {
				t.Fatalf("expected %d entries, got %d", len(tt.ids), len(entries))
			}
			for i, id := range tt.ids {
				if entries[i].ID != id {
					t.Errorf("entry %d: expected id %s, got %s", i, id, entries[i].ID)
				}
				if len(entries[i].Encoding) == 0 {
					t.Errorf("entry %d: expected encoding", i)
				}
			}
		})
	}
}

func TestDecode_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"scalar", `"just a string"`},
		{"missing id", `[{"encoding":[1]}]`},
		{"missing encoding", `[{"id":"a"}]`},
		{"wrong type", `{"rostros":"nope"}`},
		{"broken syntax", `{"rostros": [`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Decode([]byte(tt.input)); !errors.Is(err, ErrInvalidRoster) {
				t.Errorf("expected ErrInvalidRoster, got %v", err)
			}
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roster.yaml")
	if err := os.WriteFile(path, []byte("- id: a\n  encoding: [1, 2]\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	entries, err := LoadFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 1 || entries[0].Encoding[1] != 2 {
		t.Errorf("unexpected entries %+v", entries)
	}

	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestStatic(t *testing.T) {
	s := Static{{ID: "a", Encoding: []float32{1}}}
	entries, err := s.Roster(context.Background(), "anything")
	if err != nil || len(entries) != 1 {
		t.Errorf("unexpected result %v, %v", entries, err)
	}
}
