package tasks

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

type Store interface {
	List(ctx context.Context, filter Filter) ([]Task, error)
	Get(ctx context.Context, id string) (*Task, error)
	Create(ctx context.Context, t *Task) error
	Update(ctx context.Context, t *Task) error
	Delete(ctx context.Context, id string) (bool, error)
}

const taskColumns = `id, title, description, lead_email, priority, due_date, completed, tags, created_at, updated_at`

// Repository is the database/sql task store.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTask(row scanner) (Task, error) {
	var (
		t       Task
		leadRaw sql.NullString
		due     sql.NullTime
	)
	err := row.Scan(&t.ID, &t.Title, &t.Description, &leadRaw, &t.Priority, &due,
		&t.Completed, pq.Array(&t.Tags), &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return Task{}, err
	}
	t.LeadEmail = leadRaw.String
	if due.Valid {
		d := due.Time
		t.DueDate = &d
	}
	if t.Tags == nil {
		t.Tags = []string{}
	}
	return t, nil
}

// List orders open tasks first, then by due date.
func (r *Repository) List(ctx context.Context, filter Filter) ([]Task, error) {
	query := `SELECT ` + taskColumns + ` FROM admin_tasks WHERE 1=1`
	var args []any
	if len(filter.Priorities) > 0 {
		values := make([]string, len(filter.Priorities))
		for i, p := range filter.Priorities {
			values[i] = string(p)
		}
		args = append(args, pq.Array(values))
		query += ` AND priority = ANY($` + strconv.Itoa(len(args)) + `)`
	}
	if filter.Completed != nil {
		args = append(args, *filter.Completed)
		query += ` AND completed = $` + strconv.Itoa(len(args))
	}
	query += ` ORDER BY completed, due_date NULLS LAST, created_at`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("tasks: list failed: %w", err)
	}
	defer rows.Close()

	out := []Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("tasks: scan failed: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *Repository) Get(ctx context.Context, id string) (*Task, error) {
	t, err := scanTask(r.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM admin_tasks WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTaskNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("tasks: select failed: %w", err)
	}
	return &t, nil
}

func (r *Repository) Create(ctx context.Context, t *Task) error {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO admin_tasks (id, title, description, lead_email, priority, due_date, completed, tags)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at`,
		t.ID, t.Title, t.Description, nullString(t.LeadEmail), string(t.Priority), t.DueDate, t.Completed, pq.Array(t.Tags),
	).Scan(&t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("tasks: insert failed: %w", err)
	}
	return nil
}

func (r *Repository) Update(ctx context.Context, t *Task) error {
	err := r.db.QueryRowContext(ctx, `
		UPDATE admin_tasks SET title = $2, description = $3, lead_email = $4, priority = $5,
		    due_date = $6, completed = $7, tags = $8, updated_at = now()
		WHERE id = $1
		RETURNING created_at, updated_at`,
		t.ID, t.Title, t.Description, nullString(t.LeadEmail), string(t.Priority), t.DueDate, t.Completed, pq.Array(t.Tags),
	).Scan(&t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrTaskNotFound
	}
	if err != nil {
		return fmt.Errorf("tasks: update failed: %w", err)
	}
	return nil
}

func (r *Repository) Delete(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM admin_tasks WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("tasks: delete failed: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("tasks: delete rows affected: %w", err)
	}
	return n > 0, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// InMemoryStore is used when no database is configured.
type InMemoryStore struct {
	mu    sync.RWMutex
	items map[string]Task
	now   func() time.Time
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		items: make(map[string]Task),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (s *InMemoryStore) List(ctx context.Context, filter Filter) ([]Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []Task{}
	for _, t := range s.items {
		if filter.matches(t) {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Completed != b.Completed {
			return !a.Completed
		}
		switch {
		case a.DueDate != nil && b.DueDate != nil && !a.DueDate.Equal(*b.DueDate):
			return a.DueDate.Before(*b.DueDate)
		case a.DueDate != nil && b.DueDate == nil:
			return true
		case a.DueDate == nil && b.DueDate != nil:
			return false
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})
	return out, nil
}

func (s *InMemoryStore) Get(ctx context.Context, id string) (*Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.items[id]
	if !ok {
		return nil, ErrTaskNotFound
	}
	return &t, nil
}

func (s *InMemoryStore) Create(ctx context.Context, t *Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	now := s.now()
	t.CreatedAt, t.UpdatedAt = now, now
	s.items[t.ID] = *t
	return nil
}

func (s *InMemoryStore) Update(ctx context.Context, t *Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.items[t.ID]
	if !ok {
		return ErrTaskNotFound
	}
	t.CreatedAt = existing.CreatedAt
	t.UpdatedAt = s.now()
	s.items[t.ID] = *t
	return nil
}

func (s *InMemoryStore) Delete(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[id]; !ok {
		return false, nil
	}
	delete(s.items, id)
	return true, nil
}

var (
	_ Store = (*Repository)(nil)
	_ Store = (*InMemoryStore)(nil)
)
