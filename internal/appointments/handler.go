package appointments

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/leadops-platform/internal/http/middleware"
	"github.com/wolfman30/leadops-platform/pkg/logging"
)

// Handler serves the admin appointment endpoints and the closer portal.
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

// List handles GET /api/admin/appointments
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	filter := ListFilter{
		CloserID: r.URL.Query().Get("closerId"),
		Type:     Type(r.URL.Query().Get("type")),
	}
	appts, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("failed to list appointments", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list appointments")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"appointments": appts})
}

// Create handles POST /api/admin/appointments
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	appt, err := h.service.Create(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, err, "failed to create appointment")
		return
	}
	writeJSON(w, http.StatusCreated, appt)
}

// Get handles GET /api/admin/appointments/{id}
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	appt, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, err, "failed to load appointment")
		return
	}
	writeJSON(w, http.StatusOK, appt)
}

// Delete handles DELETE /api/admin/appointments/{id}. Deleting an appointment
// that is already gone answers 404 with deleted=false.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	deleted, err := h.service.Delete(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to delete appointment", "error", err, "appointment_id", id)
		writeError(w, http.StatusInternalServerError, "failed to delete appointment")
		return
	}
	status := http.StatusOK
	if !deleted {
		status = http.StatusNotFound
	}
	writeJSON(w, status, map[string]bool{"deleted": deleted})
}

// UpdateOutcome handles PUT /api/admin/appointments/{id}/outcome
func (h *Handler) UpdateOutcome(w http.ResponseWriter, r *http.Request) {
	var req OutcomeUpdate
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	appt, err := h.service.UpdateOutcome(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		h.writeServiceError(w, err, "failed to update outcome")
		return
	}
	writeJSON(w, http.StatusOK, appt)
}

// CloserList handles GET /api/closer/appointments
func (h *Handler) CloserList(w http.ResponseWriter, r *http.Request) {
	closerID, ok := middleware.CloserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "closer identity required")
		return
	}
	appts, err := h.service.List(r.Context(), ListFilter{CloserID: closerID})
	if err != nil {
		h.logger.Error("failed to list closer appointments", "error", err, "closer_id", closerID)
		writeError(w, http.StatusInternalServerError, "failed to list appointments")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"appointments": appts})
}

// CloserUpdateOutcome handles PUT /api/closer/appointments/{id}/outcome
func (h *Handler) CloserUpdateOutcome(w http.ResponseWriter, r *http.Request) {
	closerID, ok := middleware.CloserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "closer identity required")
		return
	}
	var req OutcomeUpdate
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	appt, err := h.service.UpdateOutcomeForCloser(r.Context(), closerID, chi.URLParam(r, "id"), req)
	if err != nil {
		h.writeServiceError(w, err, "failed to update outcome")
		return
	}
	writeJSON(w, http.StatusOK, appt)
}

// CloserStats handles GET /api/closer/stats
func (h *Handler) CloserStats(w http.ResponseWriter, r *http.Request) {
	closerID, ok := middleware.CloserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "closer identity required")
		return
	}
	stats, err := h.service.CloserStats(r.Context(), closerID)
	if err != nil {
		h.logger.Error("failed to compute closer stats", "error", err, "closer_id", closerID)
		writeError(w, http.StatusInternalServerError, "failed to load stats")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) writeServiceError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case IsValidationError(err):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.Error(fallback, "error", err)
		writeError(w, http.StatusInternalServerError, fallback)
	}
}

// IsValidationError reports whether err is caused by bad client input.
func IsValidationError(err error) bool {
	for _, target := range []error{
		ErrInvalidOutcome, ErrInvalidSaleValue, ErrInvalidRecordingLink,
		ErrInvalidName, ErrMissingContact, ErrMissingSchedule,
		ErrInvalidStatus, ErrInvalidType, ErrInvalidDuration,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
