package appointments

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// pgxDB is the subset of pgxpool.Pool used by PostgresRepository.
type pgxDB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// recordingColumns maps each outcome to its dedicated recording link column.
var recordingColumns = []struct {
	outcome Outcome
	column  string
}{
	{OutcomeConverted, "recording_link_converted"},
	{OutcomeNotInterested, "recording_link_not_interested"},
	{OutcomeNeedsFollowUp, "recording_link_needs_follow_up"},
	{OutcomeWrongNumber, "recording_link_wrong_number"},
	{OutcomeNoAnswer, "recording_link_no_answer"},
	{OutcomeCallbackRequested, "recording_link_callback_requested"},
	{OutcomeRescheduled, "recording_link_rescheduled"},
}

var selectColumns = func() string {
	cols := []string{
		"id", "type", "customer_name", "customer_email", "customer_phone",
		"scheduled_at", "duration_minutes", "status", "outcome", "notes",
		"sale_value", "commission_amount", "affiliate_code", "closer_id",
	}
	for _, rc := range recordingColumns {
		cols = append(cols, rc.column)
	}
	cols = append(cols, "created_at", "updated_at")
	return strings.Join(cols, ", ")
}()

// PostgresRepository stores appointments in the relational database.
type PostgresRepository struct {
	db pgxDB
}

// NewPostgresRepository initializes a repo backed by pgxpool.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	if pool == nil {
		panic("appointments: pgx pool required")
	}
	return &PostgresRepository{db: pool}
}

// NewPostgresRepositoryWithDB allows injecting a mock database for testing.
func NewPostgresRepositoryWithDB(db pgxDB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, a *Appointment) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	query := `
		INSERT INTO appointments (id, type, customer_name, customer_email, customer_phone,
			scheduled_at, duration_minutes, status, notes, affiliate_code, closer_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at, updated_at
	`
	if err := r.db.QueryRow(ctx, query,
		a.ID,
		string(a.Type),
		a.CustomerName,
		a.CustomerEmail,
		a.CustomerPhone,
		a.ScheduledAt,
		a.Duration,
		string(a.Status),
		a.Notes,
		a.AffiliateCode,
		a.CloserID,
	).Scan(&a.CreatedAt, &a.UpdatedAt); err != nil {
		return fmt.Errorf("appointments: insert failed: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (*Appointment, error) {
	query := `SELECT ` + selectColumns + ` FROM appointments WHERE id = $1`
	a, err := scanAppointment(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, fmt.Errorf("appointments: select failed: %w", err)
	}
	return a, nil
}

func (r *PostgresRepository) List(ctx context.Context, filter ListFilter) ([]Appointment, error) {
	query := `SELECT ` + selectColumns + ` FROM appointments WHERE 1=1`
	var args []any
	if filter.CloserID != "" {
		args = append(args, filter.CloserID)
		query += ` AND closer_id = $` + strconv.Itoa(len(args))
	}
	if filter.Type != "" {
		args = append(args, string(filter.Type))
		query += ` AND type = $` + strconv.Itoa(len(args))
	}
	query += ` ORDER BY created_at, id`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("appointments: list failed: %w", err)
	}
	defer rows.Close()
	return collect(rows)
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) (bool, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM appointments WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("appointments: delete failed: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *PostgresRepository) Assign(ctx context.Context, id, closerID string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE appointments SET closer_id = $1, updated_at = now() WHERE id = $2`,
		closerID, id,
	)
	if err != nil {
		return fmt.Errorf("appointments: assign failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAppointmentNotFound
	}
	return nil
}

// AssignBatch locks every assignable row, plans, and writes inside one transaction.
// Rows locked by a concurrent writer are skipped and left for the next batch.
func (r *PostgresRepository) AssignBatch(ctx context.Context, plan Planner) ([]Assignment, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("appointments: begin batch: %w", err)
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, `SELECT `+selectColumns+` FROM appointments
		WHERE closer_id IS NULL AND type <> 'quiz_session'
		ORDER BY created_at, id
		FOR UPDATE SKIP LOCKED`)
	if err != nil {
		return nil, fmt.Errorf("appointments: select unassigned: %w", err)
	}
	targets, err := collect(rows)
	rows.Close()
	if err != nil {
		return nil, err
	}
	if len(targets) == 0 {
		return nil, nil
	}

	var applied []Assignment
	for _, as := range plan(targets) {
		if as.CloserID == "" {
			continue
		}
		tag, err := tx.Exec(ctx,
			`UPDATE appointments SET closer_id = $1, updated_at = now() WHERE id = $2 AND closer_id IS NULL`,
			as.CloserID, as.AppointmentID,
		)
		if err != nil {
			return nil, fmt.Errorf("appointments: batch assign %s: %w", as.AppointmentID, err)
		}
		if tag.RowsAffected() == 1 {
			applied = append(applied, as)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("appointments: commit batch: %w", err)
	}
	return applied, nil
}

func (r *PostgresRepository) UnassignCloser(ctx context.Context, closerID string) (int, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE appointments SET closer_id = NULL, updated_at = now() WHERE closer_id = $1`,
		closerID,
	)
	if err != nil {
		return 0, fmt.Errorf("appointments: unassign closer: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// Update reads the row FOR UPDATE, applies mutate and writes the mutable columns back.
func (r *PostgresRepository) Update(ctx context.Context, id string, mutate Mutation) (*Appointment, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("appointments: begin update: %w", err)
	}
	defer tx.Rollback(ctx)

	a, err := scanAppointment(tx.QueryRow(ctx, `SELECT `+selectColumns+` FROM appointments WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, fmt.Errorf("appointments: lock row: %w", err)
	}
	if err := mutate(a); err != nil {
		return nil, err
	}

	sets := []string{"status = $2", "outcome = $3", "notes = $4", "sale_value = $5", "commission_amount = $6", "closer_id = $7"}
	var outcome *string
	if a.Outcome != nil {
		o := string(*a.Outcome)
		outcome = &o
	}
	args := []any{id, string(a.Status), outcome, a.Notes, a.SaleValue, a.CommissionAmount, a.CloserID}
	for _, rc := range recordingColumns {
		args = append(args, optionalText(a.RecordingLinks[rc.outcome]))
		sets = append(sets, rc.column+" = $"+strconv.Itoa(len(args)))
	}
	query := `UPDATE appointments SET ` + strings.Join(sets, ", ") + `, updated_at = now() WHERE id = $1 RETURNING updated_at`
	if err := tx.QueryRow(ctx, query, args...).Scan(&a.UpdatedAt); err != nil {
		return nil, fmt.Errorf("appointments: write update: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("appointments: commit update: %w", err)
	}
	return a, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAppointment(row rowScanner) (*Appointment, error) {
	var (
		a                 Appointment
		kind, status      string
		outcome           pgtype.Text
		affiliate, closer pgtype.Text
		links             = make([]pgtype.Text, len(recordingColumns))
	)
	dest := []any{
		&a.ID, &kind, &a.CustomerName, &a.CustomerEmail, &a.CustomerPhone,
		&a.ScheduledAt, &a.Duration, &status, &outcome, &a.Notes,
		&a.SaleValue, &a.CommissionAmount, &affiliate, &closer,
	}
	for i := range links {
		dest = append(dest, &links[i])
	}
	dest = append(dest, &a.CreatedAt, &a.UpdatedAt)

	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	a.Type = Type(kind)
	a.Status = Status(status)
	if outcome.Valid {
		o := Outcome(outcome.String)
		a.Outcome = &o
	}
	a.AffiliateCode = textPtr(affiliate)
	a.CloserID = textPtr(closer)
	a.RecordingLinks = make(map[Outcome]string)
	for i, rc := range recordingColumns {
		if links[i].Valid && links[i].String != "" {
			a.RecordingLinks[rc.outcome] = links[i].String
		}
	}
	return &a, nil
}

func collect(rows pgx.Rows) ([]Appointment, error) {
	out := []Appointment{}
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, fmt.Errorf("appointments: scan failed: %w", err)
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

func textPtr(t pgtype.Text) *string {
	if !t.Valid {
		return nil
	}
	s := t.String
	return &s
}

func optionalText(s string) pgtype.Text {
	return pgtype.Text{String: s, Valid: s != ""}
}

var _ Repository = (*PostgresRepository)(nil)
