package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/kozaktomas/facerec/internal/catalog"
	"github.com/kozaktomas/facerec/internal/embedding"
	"github.com/kozaktomas/facerec/internal/imageutil"
	"github.com/kozaktomas/facerec/internal/roster"
)

const (
	// uploadField is the multipart field carrying the picture.
	uploadField = "file"

	// multipartMemory is the part of a multipart form kept in memory, the rest spills to disk.
	multipartMemory = 8 << 20

	errInternal = "internal error"
)

// sanitizeForLog removes newlines and carriage returns to prevent log injection.
func sanitizeForLog(s string) string {
	return strings.NewReplacer("\n", "", "\r", "").Replace(s)
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// statusForError maps the error taxonomy onto an HTTP status code.
func statusForError(err error) int {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, catalog.ErrMissingParameter),
		errors.Is(err, catalog.ErrInvalidImage),
		errors.Is(err, catalog.ErrInvalidIdentifier),
		errors.Is(err, catalog.ErrNoFaceFound),
		errors.Is(err, catalog.ErrAmbiguousFace),
		errors.Is(err, catalog.ErrDimensionMismatch),
		errors.Is(err, roster.ErrInvalidRoster):
		return http.StatusBadRequest
	case errors.Is(err, catalog.ErrNotFound),
		errors.Is(err, roster.ErrGroupNotFound):
		return http.StatusNotFound
	case errors.Is(err, embedding.ErrUnavailable),
		errors.Is(err, roster.ErrUnavailable):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// respondFailure writes err with the status chosen by statusForError.
// Server-side failures are logged and their details kept out of the response.
func respondFailure(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	status := statusForError(err)
	if status >= http.StatusInternalServerError {
		logger.Error("request failed",
			"method", r.Method,
			"path", sanitizeForLog(r.URL.Path),
			"status", status,
			"error", err)
	}
	if status == http.StatusInternalServerError {
		respondError(w, status, errInternal)
		return
	}
	respondError(w, status, err.Error())
}

// readUpload returns the bytes of the multipart picture upload. The body is
// capped at maxBytes and the file name must carry a supported picture extension.
func readUpload(w http.ResponseWriter, r *http.Request, maxBytes int64) ([]byte, error) {
	if maxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, err
		}
		if errors.Is(err, http.ErrNotMultipart) {
			return nil, fmt.Errorf("%w: %s", catalog.ErrMissingParameter, uploadField)
		}
		return nil, fmt.Errorf("parsing multipart form: %w", catalog.ErrInvalidImage)
	}

	file, header, err := r.FormFile(uploadField)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, fmt.Errorf("%w: %s", catalog.ErrMissingParameter, uploadField)
		}
		return nil, fmt.Errorf("reading upload: %w", err)
	}
	defer file.Close()

	if header.Filename == "" {
		return nil, fmt.Errorf("%w: empty file name", catalog.ErrInvalidImage)
	}
	if !imageutil.IsPicture(header.Filename) {
		return nil, fmt.Errorf("%w: unsupported extension of %q, expected one of %s",
			catalog.ErrInvalidImage, header.Filename, strings.Join(imageutil.Extensions, ", "))
	}

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("reading upload: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty file", catalog.ErrInvalidImage)
	}
	return data, nil
}

// HealthHandler reports liveness and the catalog size.
type HealthHandler struct {
	manager *catalog.Manager
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(m *catalog.Manager) *HealthHandler {
	return &HealthHandler{manager: m}
}

// Check handles GET /health.
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"faces":  h.manager.Catalog().Len(),
		"dim":    h.manager.Catalog().Dim(),
	})
}
