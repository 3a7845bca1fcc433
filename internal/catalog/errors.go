package catalog

import (
	"errors"
	"fmt"

	"github.com/kozaktomas/facerec/internal/embedding"
	"github.com/kozaktomas/facerec/internal/imageutil"
	"github.com/kozaktomas/facerec/internal/store"
)

// Error taxonomy shared by the catalog, the store and the web layer.
// Store and image errors are re-exported so callers need a single import
// to classify any failure with errors.Is.
var (
	ErrInvalidImage      = imageutil.ErrInvalidImage
	ErrNotFound          = store.ErrNotFound
	ErrIO                = store.ErrIO
	ErrInvalidIdentifier = store.ErrInvalidIdentifier

	ErrNoFaceFound       = errors.New("could not find any face in the given image")
	ErrAmbiguousFace     = errors.New("found more than one face in the given image")
	ErrMissingParameter  = errors.New("missing parameter")
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

// extractionError maps a non-OK extraction to its taxonomy error.
func extractionError(x embedding.Extraction) error {
	switch x.Outcome {
	case embedding.OutcomeOK:
		return nil
	case embedding.OutcomeNoFace:
		return ErrNoFaceFound
	case embedding.OutcomeAmbiguous:
		return fmt.Errorf("%w (%d faces)", ErrAmbiguousFace, x.Faces)
	case embedding.OutcomeDecodeError:
		return fmt.Errorf("%w: %v", ErrInvalidImage, x.Cause)
	default:
		return fmt.Errorf("unknown extraction outcome %d", x.Outcome)
	}
}
