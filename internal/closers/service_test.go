package closers

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/leadops-platform/internal/appointments"
	"github.com/wolfman30/leadops-platform/pkg/logging"
)

type stubRosterLock struct {
	busy     bool
	released int
}

func (l *stubRosterLock) TryLock(context.Context) (func(), bool, error) {
	if l.busy {
		return nil, false, nil
	}
	return func() { l.released++ }, true, nil
}

type fixture struct {
	svc      *Service
	repo     *InMemoryRepository
	appts    *appointments.Service
	apptRepo *appointments.InMemoryRepository
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	apptRepo := appointments.NewInMemoryRepository()
	appts := appointments.NewService(apptRepo, logging.Discard())
	repo := NewInMemoryRepository()
	return fixture{
		svc:      NewService(repo, appts, logging.Discard()),
		repo:     repo,
		appts:    appts,
		apptRepo: apptRepo,
	}
}

func (f fixture) appointment(t *testing.T, closerID string) *appointments.Appointment {
	t.Helper()
	a, err := f.appts.Create(context.Background(), appointments.CreateRequest{
		CustomerName:  "Lead",
		CustomerPhone: "+15550001111",
		ScheduledAt:   time.Date(2025, 3, 3, 15, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	if closerID != "" {
		require.NoError(t, f.apptRepo.Assign(context.Background(), a.ID, closerID))
	}
	return a
}

func TestServiceLifecycle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	c, err := f.svc.Create(ctx, CreateRequest{Name: "Sam", Email: "sam@example.com"})
	require.NoError(t, err)
	assert.True(t, c.IsActive)
	assert.False(t, c.IsApproved)
	assert.False(t, c.Eligible())

	c, err = f.svc.Approve(ctx, c.ID)
	require.NoError(t, err)
	assert.True(t, c.Eligible())

	c, err = f.svc.Deactivate(ctx, c.ID)
	require.NoError(t, err)
	assert.False(t, c.Eligible())

	eligible, err := f.svc.Eligible(ctx)
	require.NoError(t, err)
	assert.Empty(t, eligible)

	c, err = f.svc.Activate(ctx, c.ID)
	require.NoError(t, err)
	assert.True(t, c.Eligible())

	_, err = f.svc.Approve(ctx, "missing")
	assert.ErrorIs(t, err, ErrCloserNotFound)
}

func TestServiceDeleteUnassignsAppointments(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	c, err := f.svc.Create(ctx, CreateRequest{Name: "Sam", Email: "sam@example.com", IsApproved: true})
	require.NoError(t, err)

	a1 := f.appointment(t, c.ID)
	a2 := f.appointment(t, c.ID)
	other := f.appointment(t, "closer-other")

	deleted, unassigned, err := f.svc.Delete(ctx, c.ID)
	require.NoError(t, err)
	assert.True(t, deleted)
	assert.Equal(t, 2, unassigned)

	for _, id := range []string{a1.ID, a2.ID} {
		got, err := f.appts.Get(ctx, id)
		require.NoError(t, err, "appointments survive their closer")
		assert.Nil(t, got.CloserID)
	}
	got, err := f.appts.Get(ctx, other.ID)
	require.NoError(t, err)
	assert.Equal(t, "closer-other", *got.CloserID)

	deleted, unassigned, err = f.svc.Delete(ctx, c.ID)
	require.NoError(t, err)
	assert.False(t, deleted)
	assert.Zero(t, unassigned)
}

func TestServiceDeleteWaitsOutAutoAssign(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	lock := &stubRosterLock{busy: true}
	f.svc.WithRosterLock(lock)

	c, err := f.svc.Create(ctx, CreateRequest{Name: "Sam", Email: "sam@example.com", IsApproved: true})
	require.NoError(t, err)
	a := f.appointment(t, c.ID)

	_, _, err = f.svc.Delete(ctx, c.ID)
	assert.ErrorIs(t, err, ErrRosterBusy)
	_, err = f.svc.Get(ctx, c.ID)
	require.NoError(t, err, "closer kept while the batch runs")
	got, err := f.appts.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, c.ID, *got.CloserID)

	lock.busy = false
	deleted, unassigned, err := f.svc.Delete(ctx, c.ID)
	require.NoError(t, err)
	assert.True(t, deleted)
	assert.Equal(t, 1, unassigned)
	assert.Equal(t, 1, lock.released)

	// Missing closers answer without touching the lock.
	lock.busy = true
	deleted, _, err = f.svc.Delete(ctx, c.ID)
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestServiceListWithStats(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	busy, err := f.svc.Create(ctx, CreateRequest{Name: "Busy", Email: "busy@example.com", IsApproved: true})
	require.NoError(t, err)
	idle, err := f.svc.Create(ctx, CreateRequest{Name: "Idle", Email: "idle@example.com", IsApproved: true})
	require.NoError(t, err)

	won := f.appointment(t, busy.ID)
	f.appointment(t, busy.ID)
	_, err = f.appts.UpdateOutcome(ctx, won.ID, appointments.OutcomeUpdate{Outcome: "converted", SaleValue: json.RawMessage(`1200`)})
	require.NoError(t, err)

	list, err := f.svc.ListWithStats(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)

	assert.Equal(t, busy.ID, list[0].ID)
	assert.Equal(t, 2, list[0].TotalCalls)
	assert.Equal(t, 1, list[0].TotalConversions)
	assert.Equal(t, "1200.00", list[0].TotalRevenue)
	assert.InDelta(t, 0.5, list[0].ConversionRate, 1e-9)

	assert.Equal(t, idle.ID, list[1].ID)
	assert.Zero(t, list[1].TotalCalls)
	assert.Zero(t, list[1].ConversionRate)
	assert.Equal(t, "0.00", list[1].TotalRevenue)
}
