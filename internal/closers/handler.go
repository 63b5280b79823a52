package closers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/leadops-platform/pkg/logging"
)

// Handler serves the admin closer endpoints.
type Handler struct {
	service *Service
	logger  *logging.Logger
}

func NewHandler(service *Service, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{service: service, logger: logger}
}

// List handles GET /api/admin/closers
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	closers, err := h.service.ListWithStats(r.Context())
	if err != nil {
		h.logger.Error("failed to list closers", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list closers")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"closers": closers})
}

// Create handles POST /api/admin/closers
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	c, err := h.service.Create(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, err, "failed to create closer")
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

// Approve handles PUT /api/admin/closers/{id}/approve
func (h *Handler) Approve(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, h.service.Approve)
}

// Activate handles PUT /api/admin/closers/{id}/activate
func (h *Handler) Activate(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, h.service.Activate)
}

// Deactivate handles PUT /api/admin/closers/{id}/deactivate
func (h *Handler) Deactivate(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, h.service.Deactivate)
}

func (h *Handler) respond(w http.ResponseWriter, r *http.Request, action func(ctx context.Context, id string) (*Closer, error)) {
	c, err := action(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, err, "failed to update closer")
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// Delete handles DELETE /api/admin/closers/{id}
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	deleted, unassigned, err := h.service.Delete(r.Context(), id)
	if errors.Is(err, ErrRosterBusy) {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		h.logger.Error("failed to delete closer", "error", err, "closer_id", id)
		writeError(w, http.StatusInternalServerError, "failed to delete closer")
		return
	}
	status := http.StatusOK
	if !deleted {
		status = http.StatusNotFound
	}
	writeJSON(w, status, map[string]any{"deleted": deleted, "unassignedCount": unassigned})
}

func (h *Handler) writeServiceError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, ErrCloserNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrInvalidName), errors.Is(err, ErrInvalidEmail):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.Error(fallback, "error", err)
		writeError(w, http.StatusInternalServerError, fallback)
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
