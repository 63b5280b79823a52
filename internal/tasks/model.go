package tasks

import (
	"errors"
	"strings"
	"time"
)

var (
	ErrTaskNotFound    = errors.New("task not found")
	ErrInvalidTitle    = errors.New("task title is required")
	ErrInvalidPriority = errors.New("priority must be low, medium or high")
)

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

func (p Priority) Valid() bool {
	return p == PriorityLow || p == PriorityMedium || p == PriorityHigh
}

// Task is an admin to-do, optionally tied to a lead by email.
type Task struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	LeadEmail   string     `json:"leadEmail,omitempty"`
	Priority    Priority   `json:"priority"`
	DueDate     *time.Time `json:"dueDate"`
	Completed   bool       `json:"completed"`
	Tags        []string   `json:"tags"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// Filter narrows List. Empty Priorities and nil Completed match everything.
type Filter struct {
	Priorities []Priority
	Completed  *bool
}

func (f Filter) matches(t Task) bool {
	if f.Completed != nil && t.Completed != *f.Completed {
		return false
	}
	if len(f.Priorities) == 0 {
		return true
	}
	for _, p := range f.Priorities {
		if t.Priority == p {
			return true
		}
	}
	return false
}

// normalize trims fields and applies the medium priority default.
func (t *Task) normalize() error {
	t.Title = strings.TrimSpace(t.Title)
	t.LeadEmail = strings.ToLower(strings.TrimSpace(t.LeadEmail))
	if t.Priority == "" {
		t.Priority = PriorityMedium
	}
	if t.Tags == nil {
		t.Tags = []string{}
	}
	if t.Title == "" {
		return ErrInvalidTitle
	}
	if !t.Priority.Valid() {
		return ErrInvalidPriority
	}
	return nil
}
