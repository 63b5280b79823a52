package affiliates

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/wolfman30/leadops-platform/pkg/logging"
)

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

// List handles GET /api/admin/affiliates
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.Summaries(r.Context())
	if err != nil {
		h.logger.Error("failed to list affiliates", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list affiliates")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"affiliates": list})
}

// Create handles POST /api/admin/affiliates
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	a, err := h.service.Create(r.Context(), req)
	switch {
	case err == nil:
		writeJSON(w, http.StatusCreated, a)
	case errors.Is(err, ErrDuplicateCode):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, ErrInvalidCode), errors.Is(err, ErrInvalidName), errors.Is(err, ErrInvalidRate):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.Error("failed to create affiliate", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create affiliate")
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
