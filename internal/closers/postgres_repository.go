package closers

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type pgxDB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const closerColumns = `id, name, email, phone, calendly_link, is_active, is_approved, created_at, updated_at`

// PostgresRepository stores closers in Postgres.
type PostgresRepository struct {
	db pgxDB
}

func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	if pool == nil {
		panic("closers: pgx pool required")
	}
	return &PostgresRepository{db: pool}
}

// NewPostgresRepositoryWithDB allows injecting a mock database for testing.
func NewPostgresRepositoryWithDB(db pgxDB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, c *Closer) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	query := `
		INSERT INTO closers (id, name, email, phone, calendly_link, is_active, is_approved)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`
	if err := r.db.QueryRow(ctx, query,
		c.ID, c.Name, c.Email, c.Phone, c.CalendlyLink, c.IsActive, c.IsApproved,
	).Scan(&c.CreatedAt, &c.UpdatedAt); err != nil {
		return fmt.Errorf("closers: insert failed: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (*Closer, error) {
	c, err := scanCloser(r.db.QueryRow(ctx, `SELECT `+closerColumns+` FROM closers WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCloserNotFound
		}
		return nil, fmt.Errorf("closers: select failed: %w", err)
	}
	return c, nil
}

func (r *PostgresRepository) List(ctx context.Context) ([]Closer, error) {
	rows, err := r.db.Query(ctx, `SELECT `+closerColumns+` FROM closers ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("closers: list failed: %w", err)
	}
	defer rows.Close()

	var out []Closer
	for rows.Next() {
		c, err := scanCloser(rows)
		if err != nil {
			return nil, fmt.Errorf("closers: scan failed: %w", err)
		}
		out = append(out, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("closers: rows: %w", err)
	}
	return out, nil
}

func (r *PostgresRepository) SetFlag(ctx context.Context, id string, flag Flag, value bool) (*Closer, error) {
	var column string
	switch flag {
	case FlagActive:
		column = "is_active"
	case FlagApproved:
		column = "is_approved"
	default:
		return nil, fmt.Errorf("closers: unknown flag %q", flag)
	}
	query := `UPDATE closers SET ` + column + ` = $1, updated_at = now() WHERE id = $2 RETURNING ` + closerColumns
	c, err := scanCloser(r.db.QueryRow(ctx, query, value, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCloserNotFound
		}
		return nil, fmt.Errorf("closers: update %s failed: %w", column, err)
	}
	return c, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) (bool, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM closers WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("closers: delete failed: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func scanCloser(row pgx.Row) (*Closer, error) {
	var c Closer
	if err := row.Scan(
		&c.ID, &c.Name, &c.Email, &c.Phone, &c.CalendlyLink,
		&c.IsActive, &c.IsApproved, &c.CreatedAt, &c.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &c, nil
}

var _ Repository = (*PostgresRepository)(nil)
