// Package facematch compares query face embeddings against a roster of known
// identities and reports every pair closer than the configured tolerance.
package facematch

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// DefaultTolerance is the euclidean distance under which two face embeddings
// are considered the same person.
const DefaultTolerance = 0.6

// Entry is a roster candidate: an identity and its reference embedding.
type Entry struct {
	ID       string    `json:"id" yaml:"id"`
	Encoding []float32 `json:"encoding" yaml:"encoding"`
}

// UnmarshalJSON accepts the id as a JSON string or number, the attendance
// API sends either depending on the backing table.
func (e *Entry) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID       json.RawMessage `json:"id"`
		Encoding []float32       `json:"encoding"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	id, err := decodeID(raw.ID)
	if err != nil {
		return err
	}
	e.ID = id
	e.Encoding = raw.Encoding
	return nil
}

func decodeID(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return "", err
	}
	switch id := v.(type) {
	case string:
		return id, nil
	case json.Number:
		return id.String(), nil
	default:
		return "", fmt.Errorf("entry id must be a string or a number, got %s", raw)
	}
}

// Face is a single (query, candidate) pair that matched.
type Face struct {
	Query int     `json:"query"` // index of the query face in the uploaded image
	ID    string  `json:"id"`
	Dist  float64 `json:"dist"`
}

// Result is the response shape of a recognition request.
type Result struct {
	Count int    `json:"count"` // number of faces found in the upload, matched or not
	Faces []Face `json:"faces"`
}
