package appointments

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ListFilter narrows List results. Zero values match everything.
type ListFilter struct {
	CloserID string
	Type     Type
}

func (f ListFilter) matches(a *Appointment) bool {
	if f.CloserID != "" && !a.AssignedTo(f.CloserID) {
		return false
	}
	if f.Type != "" && a.Type != f.Type {
		return false
	}
	return true
}

// Assignment pairs an appointment with the closer it was given to.
type Assignment struct {
	AppointmentID string `json:"appointmentId"`
	CloserID      string `json:"closerId"`
}

// Planner decides assignments for the unassigned appointments of a batch.
// Targets arrive in store order.
type Planner func(targets []Appointment) []Assignment

// Mutation edits an appointment inside a repository critical section.
// Returning an error aborts the write.
type Mutation func(a *Appointment) error

// Repository defines the interface for appointment storage
type Repository interface {
	Create(ctx context.Context, a *Appointment) error
	Get(ctx context.Context, id string) (*Appointment, error)
	List(ctx context.Context, filter ListFilter) ([]Appointment, error)
	// Delete removes the appointment and reports whether it existed.
	Delete(ctx context.Context, id string) (bool, error)
	// Assign sets (or overwrites) the closer of one appointment.
	Assign(ctx context.Context, id, closerID string) error
	// AssignBatch plans and applies assignments for every assignable appointment atomically.
	AssignBatch(ctx context.Context, plan Planner) ([]Assignment, error)
	// UnassignCloser clears the closer reference on all of the closer's appointments.
	UnassignCloser(ctx context.Context, closerID string) (int, error)
	// Update applies mutate while holding the appointment exclusively.
	Update(ctx context.Context, id string, mutate Mutation) (*Appointment, error)
}

// InMemoryRepository keeps appointments in process memory, in insertion order.
type InMemoryRepository struct {
	mu    sync.RWMutex
	order []string
	items map[string]*Appointment
	now   func() time.Time
}

// NewInMemoryRepository creates a new in-memory repository
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		items: make(map[string]*Appointment),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Create stores a copy of a, assigning an id and timestamps when missing.
func (r *InMemoryRepository) Create(ctx context.Context, a *Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	now := r.now()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = now

	stored := a.Clone()
	if _, exists := r.items[a.ID]; !exists {
		r.order = append(r.order, a.ID)
	}
	r.items[a.ID] = &stored
	return nil
}

// Get retrieves an appointment by ID
func (r *InMemoryRepository) Get(ctx context.Context, id string) (*Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.items[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	out := a.Clone()
	return &out, nil
}

// List returns matching appointments in insertion order.
func (r *InMemoryRepository) List(ctx context.Context, filter ListFilter) ([]Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Appointment, 0, len(r.order))
	for _, id := range r.order {
		a := r.items[id]
		if filter.matches(a) {
			out = append(out, a.Clone())
		}
	}
	return out, nil
}

func (r *InMemoryRepository) Delete(ctx context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.items[id]; !ok {
		return false, nil
	}
	delete(r.items, id)
	for i, existing := range r.order {
		if existing == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true, nil
}

func (r *InMemoryRepository) Assign(ctx context.Context, id, closerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.items[id]
	if !ok {
		return ErrAppointmentNotFound
	}
	closer := closerID
	a.CloserID = &closer
	a.UpdatedAt = r.now()
	return nil
}

func (r *InMemoryRepository) AssignBatch(ctx context.Context, plan Planner) ([]Assignment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var targets []Appointment
	for _, id := range r.order {
		if a := r.items[id]; a.Assignable() {
			targets = append(targets, a.Clone())
		}
	}
	if len(targets) == 0 {
		return nil, nil
	}

	now := r.now()
	var applied []Assignment
	for _, as := range plan(targets) {
		a, ok := r.items[as.AppointmentID]
		if !ok || !a.Assignable() || as.CloserID == "" {
			continue
		}
		closer := as.CloserID
		a.CloserID = &closer
		a.UpdatedAt = now
		applied = append(applied, as)
	}
	return applied, nil
}

func (r *InMemoryRepository) UnassignCloser(ctx context.Context, closerID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	count := 0
	for _, a := range r.items {
		if a.AssignedTo(closerID) {
			a.CloserID = nil
			a.UpdatedAt = now
			count++
		}
	}
	return count, nil
}

func (r *InMemoryRepository) Update(ctx context.Context, id string, mutate Mutation) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.items[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	working := a.Clone()
	if err := mutate(&working); err != nil {
		return nil, err
	}
	working.ID = id
	r.items[id] = &working
	out := working.Clone()
	return &out, nil
}

var _ Repository = (*InMemoryRepository)(nil)
