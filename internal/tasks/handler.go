package tasks

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/leadops-platform/pkg/logging"
)

type Handler struct {
	store  Store
	logger *logging.Logger
}

func NewHandler(store Store, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{store: store, logger: logger}
}

// List handles GET /api/admin/tasks?priority=high,medium&completed=false
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	var filter Filter
	if raw := r.URL.Query().Get("priority"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			p := Priority(strings.ToLower(strings.TrimSpace(part)))
			if !p.Valid() {
				writeError(w, http.StatusBadRequest, ErrInvalidPriority.Error())
				return
			}
			filter.Priorities = append(filter.Priorities, p)
		}
	}
	if raw := r.URL.Query().Get("completed"); raw != "" {
		completed, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "completed must be true or false")
			return
		}
		filter.Completed = &completed
	}

	list, err := h.store.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("failed to list tasks", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list tasks")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tasks": list})
}

// Create handles POST /api/admin/tasks
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var t Task
	if err := json.NewDecoder(r.Body).Decode(&t); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	t.ID = ""
	if err := t.normalize(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.store.Create(r.Context(), &t); err != nil {
		h.logger.Error("failed to create task", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create task")
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

type updateRequest struct {
	Title       *string    `json:"title"`
	Description *string    `json:"description"`
	LeadEmail   *string    `json:"leadEmail"`
	Priority    *Priority  `json:"priority"`
	DueDate     *time.Time `json:"dueDate"`
	ClearDue    bool       `json:"clearDueDate"`
	Completed   *bool      `json:"completed"`
	Tags        *[]string  `json:"tags"`
}

// Update handles PUT /api/admin/tasks/{id}; omitted fields keep their values.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	var req updateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	t, err := h.store.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeStoreError(w, err, "failed to load task")
		return
	}

	if req.Title != nil {
		t.Title = *req.Title
	}
	if req.Description != nil {
		t.Description = *req.Description
	}
	if req.LeadEmail != nil {
		t.LeadEmail = *req.LeadEmail
	}
	if req.Priority != nil {
		t.Priority = *req.Priority
	}
	if req.DueDate != nil {
		t.DueDate = req.DueDate
	}
	if req.ClearDue {
		t.DueDate = nil
	}
	if req.Completed != nil {
		t.Completed = *req.Completed
	}
	if req.Tags != nil {
		t.Tags = *req.Tags
	}
	if err := t.normalize(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.store.Update(r.Context(), t); err != nil {
		h.writeStoreError(w, err, "failed to update task")
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// Delete handles DELETE /api/admin/tasks/{id}
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.store.Delete(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeStoreError(w, err, "failed to delete task")
		return
	}
	status := http.StatusOK
	if !deleted {
		status = http.StatusNotFound
	}
	writeJSON(w, status, map[string]bool{"deleted": deleted})
}

func (h *Handler) writeStoreError(w http.ResponseWriter, err error, fallback string) {
	if errors.Is(err, ErrTaskNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	h.logger.Error(fallback, "error", err)
	writeError(w, http.StatusInternalServerError, fallback)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
