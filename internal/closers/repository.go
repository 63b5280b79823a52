package closers

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Flag selects which closer flag SetFlag changes.
type Flag string

const (
	FlagActive   Flag = "is_active"
	FlagApproved Flag = "is_approved"
)

// Repository defines closer storage.
type Repository interface {
	Create(ctx context.Context, c *Closer) error
	Get(ctx context.Context, id string) (*Closer, error)
	// List returns closers in creation order.
	List(ctx context.Context) ([]Closer, error)
	SetFlag(ctx context.Context, id string, flag Flag, value bool) (*Closer, error)
	Delete(ctx context.Context, id string) (bool, error)
}

// InMemoryRepository keeps closers in process memory.
type InMemoryRepository struct {
	mu    sync.RWMutex
	order []string
	items map[string]*Closer
	now   func() time.Time
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		items: make(map[string]*Closer),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (r *InMemoryRepository) Create(ctx context.Context, c *Closer) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	now := r.now()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	stored := *c
	if _, exists := r.items[c.ID]; !exists {
		r.order = append(r.order, c.ID)
	}
	r.items[c.ID] = &stored
	return nil
}

func (r *InMemoryRepository) Get(ctx context.Context, id string) (*Closer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.items[id]
	if !ok {
		return nil, ErrCloserNotFound
	}
	out := *c
	return &out, nil
}

func (r *InMemoryRepository) List(ctx context.Context) ([]Closer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Closer, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, *r.items[id])
	}
	return out, nil
}

func (r *InMemoryRepository) SetFlag(ctx context.Context, id string, flag Flag, value bool) (*Closer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.items[id]
	if !ok {
		return nil, ErrCloserNotFound
	}
	switch flag {
	case FlagActive:
		c.IsActive = value
	case FlagApproved:
		c.IsApproved = value
	}
	c.UpdatedAt = r.now()
	out := *c
	return &out, nil
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

var _ Repository = (*InMemoryRepository)(nil)
