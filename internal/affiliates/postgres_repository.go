package affiliates

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type pgxDB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const affiliateColumns = `code, name, email, commission_rate, is_active, created_at`

// PostgresRepository stores affiliates in Postgres.
type PostgresRepository struct {
	db pgxDB
}

func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	if pool == nil {
		panic("affiliates: pgx pool required")
	}
	return &PostgresRepository{db: pool}
}

// NewPostgresRepositoryWithDB allows injecting a mock database for testing.
func NewPostgresRepositoryWithDB(db pgxDB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, a *Affiliate) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO affiliates (code, name, email, commission_rate, is_active)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`, a.Code, a.Name, a.Email, a.CommissionRate, a.IsActive).Scan(&a.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateCode
		}
		return fmt.Errorf("affiliates: insert failed: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, code string) (*Affiliate, error) {
	var a Affiliate
	err := r.db.QueryRow(ctx, `SELECT `+affiliateColumns+` FROM affiliates WHERE code = $1`, code).
		Scan(&a.Code, &a.Name, &a.Email, &a.CommissionRate, &a.IsActive, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAffiliateNotFound
		}
		return nil, fmt.Errorf("affiliates: select failed: %w", err)
	}
	return &a, nil
}

func (r *PostgresRepository) List(ctx context.Context) ([]Affiliate, error) {
	rows, err := r.db.Query(ctx, `SELECT `+affiliateColumns+` FROM affiliates ORDER BY created_at, code`)
	if err != nil {
		return nil, fmt.Errorf("affiliates: list failed: %w", err)
	}
	defer rows.Close()

	var out []Affiliate
	for rows.Next() {
		var a Affiliate
		if err := rows.Scan(&a.Code, &a.Name, &a.Email, &a.CommissionRate, &a.IsActive, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("affiliates: scan failed: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

var _ Repository = (*PostgresRepository)(nil)
