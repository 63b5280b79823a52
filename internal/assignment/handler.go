package assignment

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/leadops-platform/internal/appointments"
	"github.com/wolfman30/leadops-platform/internal/closers"
	"github.com/wolfman30/leadops-platform/pkg/logging"
)

// Handler serves the admin assignment endpoints.
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

type assignRequest struct {
	CloserID string `json:"closerId"`
}

// Assign handles PUT /api/admin/appointments/{id}/assign
func (h *Handler) Assign(w http.ResponseWriter, r *http.Request) {
	var req assignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	assigned, err := h.service.Assign(r.Context(), chi.URLParam(r, "id"), req.CloserID)
	if err != nil {
		h.writeServiceError(w, err, "failed to assign appointment")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"assigned": assigned})
}

// AutoAssign handles POST /api/admin/auto-assign-appointments
func (h *Handler) AutoAssign(w http.ResponseWriter, r *http.Request) {
	count, err := h.service.AutoAssignAll(r.Context())
	if err != nil {
		h.writeServiceError(w, err, "failed to auto-assign appointments")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"assignedCount": count})
}

func (h *Handler) writeServiceError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, appointments.ErrAppointmentNotFound), errors.Is(err, closers.ErrCloserNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, closers.ErrCloserNotEligible), errors.Is(err, ErrBatchInProgress):
		writeError(w, http.StatusConflict, err.Error())
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
