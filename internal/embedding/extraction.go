// Package embedding talks to the face embedding server and classifies its
// answers for callers that need exactly one face.
package embedding

import (
	"context"
	"errors"
)

// Outcome classifies a single-face extraction.
type Outcome int

const (
	OutcomeOK          Outcome = iota // exactly one face
	OutcomeNoFace                     // no face detected
	OutcomeAmbiguous                  // more than one face detected
	OutcomeDecodeError                // bytes are not a decodable picture
)

func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeNoFace:
		return "no face"
	case OutcomeAmbiguous:
		return "ambiguous"
	case OutcomeDecodeError:
		return "decode error"
	default:
		return "unknown"
	}
}

// Extraction is the tagged result of ExtractSingle. Embedding is set only
// for OutcomeOK; Faces holds the number of detected faces; Cause carries the
// decoder error for OutcomeDecodeError.
type Extraction struct {
	Outcome   Outcome
	Embedding []float32
	Faces     int
	Cause     error
}

// ExtractSingle runs ex and classifies the result for enrollment, where an
// image must contain exactly one face. The returned error is reserved for
// failures that say nothing about the image itself (server down, context
// cancelled); those must not be mistaken for a verdict on the picture.
func ExtractSingle(ctx context.Context, ex Extractor, image []byte) (Extraction, error) {
	embeddings, err := ex.Extract(ctx, image)
	if err != nil {
		if errors.Is(err, ErrDecode) {
			return Extraction{Outcome: OutcomeDecodeError, Cause: err}, nil
		}
		return Extraction{}, err
	}

	switch len(embeddings) {
	case 0:
		return Extraction{Outcome: OutcomeNoFace}, nil
	case 1:
		return Extraction{Outcome: OutcomeOK, Embedding: embeddings[0], Faces: 1}, nil
	default:
		return Extraction{Outcome: OutcomeAmbiguous, Faces: len(embeddings)}, nil
	}
}
