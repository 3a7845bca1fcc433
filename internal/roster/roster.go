// Package roster supplies the candidate identities a recognition request is
// compared against: either fetched from the attendance API or decoded from a
// document supplied by the caller.
package roster

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/kozaktomas/facerec/internal/facematch"
	"gopkg.in/yaml.v3"
)

var (
	// ErrGroupNotFound is returned when the attendance API does not know the group.
	ErrGroupNotFound = errors.New("roster group not found")
	// ErrUnavailable is returned when the attendance API cannot be reached or fails.
	ErrUnavailable = errors.New("roster service unavailable")
	// ErrInvalidRoster is returned for malformed roster documents.
	ErrInvalidRoster = errors.New("invalid roster")
)

// Provider returns the roster of a group (an enrollment, a class, ...).
type Provider interface {
	Roster(ctx context.Context, group string) ([]facematch.Entry, error)
}

// document is the attendance API payload; "rostros" holds the candidates.
type document struct {
	Rostros []facematch.Entry `yaml:"rostros" json:"rostros"`
}

// Decode parses a roster document. Both the attendance API shape
// ({"rostros": [...]}) and a bare list of entries are accepted, in JSON or YAML.
func Decode(data []byte) ([]facematch.Entry, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRoster, err)
	}
	if len(node.Content) == 0 {
		return []facematch.Entry{}, nil
	}

	var entries []facematch.Entry
	switch root := node.Content[0]; root.Kind {
	case yaml.SequenceNode:
		if err := root.Decode(&entries); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidRoster, err)
		}
	case yaml.MappingNode:
		var doc document
		if err := root.Decode(&doc); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidRoster, err)
		}
		entries = doc.Rostros
	default:
		return nil, fmt.Errorf("%w: expected a list or an object with \"rostros\"", ErrInvalidRoster)
	}

	if err := validate(entries); err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []facematch.Entry{}
	}
	return entries, nil
}

// LoadFile reads and decodes a roster document from disk.
func LoadFile(path string) ([]facematch.Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading roster file: %w", err)
	}
	return Decode(data)
}

func validate(entries []facematch.Entry) error {
	for i, e := range entries {
		if e.ID == "" {
			return fmt.Errorf("%w: entry %d has no id", ErrInvalidRoster, i)
		}
		if len(e.Encoding) == 0 {
			return fmt.Errorf("%w: entry %q has no encoding", ErrInvalidRoster, e.ID)
		}
	}
	return nil
}

// Static is a fixed roster, used by the CLI and in tests.
type Static []facematch.Entry

// Roster returns the fixed entries regardless of group.
func (s Static) Roster(context.Context, string) ([]facematch.Entry, error) {
	return s, nil
}
