package handlers

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/kozaktomas/facerec/internal/catalog"
	"github.com/kozaktomas/facerec/internal/facematch"
	"github.com/kozaktomas/facerec/internal/roster"
)

// maxCandidates bounds k on /candidates.
const maxCandidates = 100

// RecognizeHandler matches uploaded pictures against rosters or the catalog.
type RecognizeHandler struct {
	manager   *catalog.Manager
	rosters   roster.Provider
	maxUpload int64
	logger    *slog.Logger
}

// NewRecognizeHandler creates a new recognition handler.
func NewRecognizeHandler(m *catalog.Manager, rosters roster.Provider, maxUpload int64, logger *slog.Logger) *RecognizeHandler {
	return &RecognizeHandler{
		manager:   m,
		rosters:   rosters,
		maxUpload: maxUpload,
		logger:    logger,
	}
}

// Recognize handles POST /. The roster is either fetched for the group in
// ?matricula_id= or supplied inline as the JSON form field "roster".
func (h *RecognizeHandler) Recognize(w http.ResponseWriter, r *http.Request) {
	image, err := readUpload(w, r, h.maxUpload)
	if err != nil {
		respondFailure(w, r, h.logger, err)
		return
	}

	entries, err := h.resolveRoster(r)
	if err != nil {
		respondFailure(w, r, h.logger, err)
		return
	}

	result, err := h.manager.Recognize(r.Context(), image, entries)
	if err != nil {
		respondFailure(w, r, h.logger, err)
		return
	}

	h.logger.Debug("recognition done", "faces", result.Count, "matches", len(result.Faces), "roster", len(entries))
	respondJSON(w, http.StatusOK, result)
}

// resolveRoster must run after the multipart form has been parsed.
func (h *RecognizeHandler) resolveRoster(r *http.Request) ([]facematch.Entry, error) {
	if inline := r.FormValue("roster"); inline != "" {
		entries, err := roster.Decode([]byte(inline))
		if err != nil {
			return nil, fmt.Errorf("roster field: %w", err)
		}
		return entries, nil
	}

	group := r.URL.Query().Get("matricula_id")
	if group == "" {
		return nil, fmt.Errorf("%w: matricula_id", catalog.ErrMissingParameter)
	}
	if h.rosters == nil {
		return nil, fmt.Errorf("fetching roster %q: %w", sanitizeForLog(group), roster.ErrUnavailable)
	}
	entries, err := h.rosters.Roster(r.Context(), group)
	if err != nil {
		return nil, fmt.Errorf("fetching roster %q: %w", sanitizeForLog(group), err)
	}
	return entries, nil
}

// Identify handles POST /identify, matching against the enrolled catalog.
func (h *RecognizeHandler) Identify(w http.ResponseWriter, r *http.Request) {
	image, err := readUpload(w, r, h.maxUpload)
	if err != nil {
		respondFailure(w, r, h.logger, err)
		return
	}

	result, err := h.manager.Identify(r.Context(), image)
	if err != nil {
		respondFailure(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// Candidates handles POST /candidates?k=N and lists the nearest enrolled
// identities of every face regardless of tolerance.
func (h *RecognizeHandler) Candidates(w http.ResponseWriter, r *http.Request) {
	k := catalog.DefaultCandidates
	if s := r.URL.Query().Get("k"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 || n > maxCandidates {
			respondError(w, http.StatusBadRequest, fmt.Sprintf("k must be between 1 and %d", maxCandidates))
			return
		}
		k = n
	}

	image, err := readUpload(w, r, h.maxUpload)
	if err != nil {
		respondFailure(w, r, h.logger, err)
		return
	}

	result, err := h.manager.Candidates(r.Context(), image, k)
	if err != nil {
		respondFailure(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// Encode handles POST /encoding and returns the embedding of the single face in the upload.
func (h *RecognizeHandler) Encode(w http.ResponseWriter, r *http.Request) {
	image, err := readUpload(w, r, h.maxUpload)
	if err != nil {
		respondFailure(w, r, h.logger, err)
		return
	}

	enc, err := h.manager.Encode(r.Context(), image)
	if err != nil {
		respondFailure(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string][]float32{"encoding": enc})
}
