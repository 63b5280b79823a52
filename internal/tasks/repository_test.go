package tasks

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var taskCols = []string{"id", "title", "description", "lead_email", "priority", "due_date", "completed", "tags", "created_at", "updated_at"}

func TestRepositoryListWithPriorityFilter(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	due := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	now := time.Now().UTC()
	mock.ExpectQuery(`FROM admin_tasks WHERE 1=1 AND priority = ANY\(\$1\) AND completed = \$2 ORDER BY completed`).
		WithArgs(sqlmock.AnyArg(), false).
		WillReturnRows(sqlmock.NewRows(taskCols).
			AddRow("t-1", "Call back Dana", "", "dana@example.com", "high", due, false, "{follow-up,vip}", now, now).
			AddRow("t-2", "Review payouts", "monthly", nil, "medium", nil, false, nil, now, now))

	open := false
	list, err := NewRepository(db).List(context.Background(), Filter{
		Priorities: []Priority{PriorityHigh, PriorityMedium},
		Completed:  &open,
	})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, PriorityHigh, list[0].Priority)
	assert.Equal(t, "dana@example.com", list[0].LeadEmail)
	assert.Equal(t, []string{"follow-up", "vip"}, list[0].Tags)
	require.NotNil(t, list[0].DueDate)
	assert.True(t, due.Equal(*list[0].DueDate))
	assert.Nil(t, list[1].DueDate)
	assert.Equal(t, []string{}, list[1].Tags)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryGetNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`FROM admin_tasks WHERE id = \$1`).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(taskCols))

	_, err = NewRepository(db).Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrTaskNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryCreate(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now().UTC()
	mock.ExpectQuery("INSERT INTO admin_tasks").
		WithArgs(sqlmock.AnyArg(), "Call back Dana", "", sqlmock.AnyArg(), "high", sqlmock.AnyArg(), false, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))

	task := &Task{Title: "Call back Dana", Priority: PriorityHigh, Tags: []string{"vip"}}
	require.NoError(t, NewRepository(db).Create(context.Background(), task))
	assert.NotEmpty(t, task.ID)
	assert.Equal(t, now, task.CreatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryUpdateAndDelete(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("UPDATE admin_tasks SET").
		WithArgs("t-9", "x", "", sqlmock.AnyArg(), "low", sqlmock.AnyArg(), true, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}))
	mock.ExpectExec(`DELETE FROM admin_tasks WHERE id = \$1`).
		WithArgs("t-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM admin_tasks WHERE id = \$1`).
		WithArgs("t-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	repo := NewRepository(db)
	err = repo.Update(context.Background(), &Task{ID: "t-9", Title: "x", Priority: PriorityLow, Completed: true})
	assert.ErrorIs(t, err, ErrTaskNotFound)

	deleted, err := repo.Delete(context.Background(), "t-1")
	require.NoError(t, err)
	assert.True(t, deleted)
	deleted, err = repo.Delete(context.Background(), "t-1")
	require.NoError(t, err)
	assert.False(t, deleted)
	require.NoError(t, mock.ExpectationsWereMet())
}
