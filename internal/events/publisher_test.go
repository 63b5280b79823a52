package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/wolfman30/leadops-platform/pkg/logging"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type recordingHandler struct {
	mu      sync.Mutex
	entries []OutboxEntry
	err     error
}

func (h *recordingHandler) Handle(_ context.Context, entry OutboxEntry) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = append(h.entries, entry)
	return h.err
}

func (h *recordingHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries)
}

func TestInlinePublisherDeliversImmediately(t *testing.T) {
	handler := &recordingHandler{}
	pub := NewInlinePublisher(handler, logging.Discard())

	err := pub.Publish(context.Background(), TypeAppointmentAssigned, AppointmentAssignedV1{AppointmentID: "a-1", CloserID: "c-1", Source: SourceManual})
	require.NoError(t, err)

	require.Len(t, handler.entries, 1)
	assert.Equal(t, TypeAppointmentAssigned, handler.entries[0].Type)

	var evt AppointmentAssignedV1
	require.NoError(t, json.Unmarshal(handler.entries[0].Payload, &evt))
	assert.Equal(t, "c-1", evt.CloserID)
	assert.Equal(t, SourceManual, evt.Source)
}

func TestInlinePublisherSwallowsHandlerErrors(t *testing.T) {
	handler := &recordingHandler{err: errors.New("smtp down")}
	pub := NewInlinePublisher(handler, logging.Discard())

	assert.NoError(t, pub.Publish(context.Background(), TypeOutcomeRecorded, OutcomeRecordedV1{}))
	assert.Equal(t, 1, handler.count())
}

type fakePending struct {
	mu        sync.Mutex
	pending   []OutboxEntry
	delivered []uuid.UUID
}

func (f *fakePending) FetchPending(_ context.Context, limit int32) ([]OutboxEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := f.pending
	if int32(len(out)) > limit {
		out = out[:limit]
	}
	return append([]OutboxEntry(nil), out...), nil
}

func (f *fakePending) MarkDelivered(_ context.Context, id uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, e := range f.pending {
		if e.ID == id {
			f.pending = append(f.pending[:i], f.pending[i+1:]...)
			f.delivered = append(f.delivered, id)
			return true, nil
		}
	}
	return false, nil
}

func (f *fakePending) deliveredCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.delivered)
}

func TestDelivererDrainsAndStops(t *testing.T) {
	store := &fakePending{pending: []OutboxEntry{
		{ID: uuid.New(), Type: TypeAppointmentAssigned, Payload: []byte(`{}`)},
		{ID: uuid.New(), Type: TypeOutcomeRecorded, Payload: []byte(`{}`)},
	}}
	handler := &recordingHandler{}
	d := newDeliverer(handler, logging.Discard()).WithInterval(5 * time.Millisecond)
	d.store = store

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		d.Start(ctx)
	}()

	require.Eventually(t, func() bool { return store.deliveredCount() == 2 }, time.Second, 5*time.Millisecond)
	cancel()
	<-done

	assert.Equal(t, 2, handler.count())
}

func TestDelivererKeepsFailedEntries(t *testing.T) {
	store := &fakePending{pending: []OutboxEntry{{ID: uuid.New(), Type: TypeOutcomeRecorded}}}
	handler := &recordingHandler{err: errors.New("boom")}
	d := newDeliverer(handler, logging.Discard())
	d.store = store

	d.drain(context.Background())

	assert.Equal(t, 1, handler.count())
	assert.Equal(t, 0, store.deliveredCount())
}

func TestDelivererWithoutStoreReturns(t *testing.T) {
	d := NewDeliverer(nil, &recordingHandler{}, logging.Discard())
	d.Start(context.Background())
}
