package handlers

import (
	"log/slog"
	"net/http"

	"github.com/kozaktomas/facerec/internal/catalog"
)

// FacesHandler manages the enrolled identities.
type FacesHandler struct {
	manager   *catalog.Manager
	maxUpload int64
	logger    *slog.Logger
}

// NewFacesHandler creates a new faces handler.
func NewFacesHandler(m *catalog.Manager, maxUpload int64, logger *slog.Logger) *FacesHandler {
	return &FacesHandler{
		manager:   m,
		maxUpload: maxUpload,
		logger:    logger,
	}
}

// List handles GET /faces and returns the enrolled ids.
func (h *FacesHandler) List(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.manager.List())
}

// Add handles POST /faces?id=X, enrolling or replacing the identity.
func (h *FacesHandler) Add(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		respondError(w, http.StatusBadRequest, "missing parameter: id")
		return
	}

	image, err := readUpload(w, r, h.maxUpload)
	if err != nil {
		respondFailure(w, r, h.logger, err)
		return
	}

	ids, err := h.manager.Add(r.Context(), id, image)
	if err != nil {
		respondFailure(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, ids)
}

// Remove handles DELETE /faces?id=X.
func (h *FacesHandler) Remove(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		respondError(w, http.StatusBadRequest, "missing parameter: id")
		return
	}

	ids, err := h.manager.Remove(id)
	if err != nil {
		respondFailure(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, ids)
}
