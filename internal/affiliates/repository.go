package affiliates

import (
	"context"
	"sync"
	"time"
)

type Repository interface {
	Create(ctx context.Context, a *Affiliate) error
	Get(ctx context.Context, code string) (*Affiliate, error)
	List(ctx context.Context) ([]Affiliate, error)
}

// InMemoryRepository keeps affiliates keyed by code.
type InMemoryRepository struct {
	mu    sync.RWMutex
	order []string
	items map[string]Affiliate
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{items: make(map[string]Affiliate)}
}

func (r *InMemoryRepository) Create(ctx context.Context, a *Affiliate) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.items[a.Code]; exists {
		return ErrDuplicateCode
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	r.items[a.Code] = *a
	r.order = append(r.order, a.Code)
	return nil
}

func (r *InMemoryRepository) Get(ctx context.Context, code string) (*Affiliate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.items[code]
	if !ok {
		return nil, ErrAffiliateNotFound
	}
	return &a, nil
}

func (r *InMemoryRepository) List(ctx context.Context) ([]Affiliate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Affiliate, 0, len(r.order))
	for _, code := range r.order {
		out = append(out, r.items[code])
	}
	return out, nil
}

var _ Repository = (*InMemoryRepository)(nil)
