package notify

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/leadops-platform/internal/appointments"
	"github.com/wolfman30/leadops-platform/internal/closers"
	"github.com/wolfman30/leadops-platform/internal/events"
	"github.com/wolfman30/leadops-platform/pkg/logging"
)

type recordingSender struct {
	mu   sync.Mutex
	sent []EmailMessage
	err  error
}

func (r *recordingSender) Send(_ context.Context, msg EmailMessage) error {
	if r.err != nil {
		return r.err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, msg)
	return nil
}

type closerMap map[string]closers.Closer

func (m closerMap) Get(_ context.Context, id string) (*closers.Closer, error) {
	c, ok := m[id]
	if !ok {
		return nil, closers.ErrCloserNotFound
	}
	return &c, nil
}

type fixedStats appointments.CloserStats

func (f fixedStats) CloserStats(context.Context, string) (appointments.CloserStats, error) {
	return appointments.CloserStats(f), nil
}

type memoryProcessed struct {
	seen map[string]bool
}

func (m *memoryProcessed) AlreadyProcessed(_ context.Context, consumer, eventID string) (bool, error) {
	return m.seen[consumer+"/"+eventID], nil
}

func (m *memoryProcessed) MarkProcessed(_ context.Context, consumer, eventID string) (bool, error) {
	key := consumer + "/" + eventID
	if m.seen[key] {
		return false, nil
	}
	m.seen[key] = true
	return true, nil
}

var dana = closers.Closer{ID: "c-1", Name: "Dana Reyes", Email: "dana@example.com", CalendlyLink: "https://calendly.com/dana"}

func entry(t *testing.T, eventType string, payload any) events.OutboxEntry {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	return events.OutboxEntry{ID: uuid.New(), Type: eventType, Payload: data, CreatedAt: time.Now()}
}

func outcomeEvent(outcome appointments.Outcome) events.OutcomeRecordedV1 {
	return events.OutcomeRecordedV1{
		EventID:       uuid.NewString(),
		AppointmentID: "a-1",
		CloserID:      dana.ID,
		Outcome:       string(outcome),
		CustomerName:  "Sam Patel",
		CustomerEmail: "sam@example.com",
	}
}

func TestHandleOutcomeTemplates(t *testing.T) {
	cases := []struct {
		outcome appointments.Outcome
		subject string
	}{
		{appointments.OutcomeConverted, "Welcome to Acme"},
		{appointments.OutcomeNeedsFollowUp, "Following up on your call with Acme"},
		{appointments.OutcomeCallbackRequested, "Following up on your call with Acme"},
		{appointments.OutcomeRescheduled, "Your call has been rescheduled"},
		{appointments.OutcomeNotInterested, ""},
		{appointments.OutcomeWrongNumber, ""},
		{appointments.OutcomeNoAnswer, ""},
	}
	for _, tc := range cases {
		t.Run(string(tc.outcome), func(t *testing.T) {
			sender := &recordingSender{}
			svc := NewService(sender, closerMap{dana.ID: dana}, "Acme", logging.Discard())

			require.NoError(t, svc.Handle(context.Background(), entry(t, events.TypeOutcomeRecorded, outcomeEvent(tc.outcome))))

			if tc.subject == "" {
				assert.Empty(t, sender.sent)
				return
			}
			require.Len(t, sender.sent, 1)
			msg := sender.sent[0]
			assert.Equal(t, tc.subject, msg.Subject)
			assert.Equal(t, "sam@example.com", msg.To)
			assert.Contains(t, msg.Body, "Hi Sam,")
			assert.Contains(t, msg.Body, "Dana Reyes will be your point of contact.")
			assert.Equal(t, "outcome_"+string(tc.outcome), msg.Category)
			assert.Equal(t, "dana@example.com", msg.ReplyTo)
			assert.NotEmpty(t, msg.EventID)
		})
	}
}

func TestFollowUpIncludesBookingLink(t *testing.T) {
	sender := &recordingSender{}
	svc := NewService(sender, closerMap{dana.ID: dana}, "Acme", logging.Discard())

	require.NoError(t, svc.NotifyOutcome(context.Background(), outcomeEvent(appointments.OutcomeNeedsFollowUp)))
	require.Len(t, sender.sent, 1)
	assert.Contains(t, sender.sent[0].Body, "https://calendly.com/dana")
}

func TestOutcomeWithoutCustomerEmailIsSkipped(t *testing.T) {
	sender := &recordingSender{}
	svc := NewService(sender, nil, "Acme", logging.Discard())

	evt := outcomeEvent(appointments.OutcomeConverted)
	evt.CustomerEmail = ""
	require.NoError(t, svc.NotifyOutcome(context.Background(), evt))
	assert.Empty(t, sender.sent)
}

func TestOutcomeUnknownCloserStillEmails(t *testing.T) {
	sender := &recordingSender{}
	svc := NewService(sender, closerMap{}, "Acme", logging.Discard())

	require.NoError(t, svc.NotifyOutcome(context.Background(), outcomeEvent(appointments.OutcomeConverted)))
	require.Len(t, sender.sent, 1)
	assert.NotContains(t, sender.sent[0].Body, "point of contact")
	assert.Empty(t, sender.sent[0].ReplyTo, "no closer to reply to")
}

func TestHandleAssignmentEmailsCloser(t *testing.T) {
	sender := &recordingSender{}
	stats := fixedStats{CloserID: dana.ID, TotalCalls: 4, TotalConversions: 1, TotalRevenue: decimal.RequireFromString("1500"), ConversionRate: 0.25}
	svc := NewService(sender, closerMap{dana.ID: dana}, "Acme", logging.Discard()).WithStats(stats)

	evt := events.AppointmentAssignedV1{
		EventID:       uuid.NewString(),
		AppointmentID: "a-1",
		CloserID:      dana.ID,
		Source:        events.SourceAuto,
		CustomerName:  "Sam Patel",
		CustomerPhone: "+15550100",
		ScheduledAt:   time.Date(2025, 3, 10, 15, 0, 0, 0, time.UTC),
	}
	require.NoError(t, svc.Handle(context.Background(), entry(t, events.TypeAppointmentAssigned, evt)))

	require.Len(t, sender.sent, 1)
	msg := sender.sent[0]
	assert.Equal(t, "dana@example.com", msg.To)
	assert.Equal(t, "New appointment: Sam Patel on Mar 10", msg.Subject)
	assert.Contains(t, msg.Body, "Phone: +15550100")
	assert.Contains(t, msg.Body, "Assigned by: auto-assign")
	assert.Contains(t, msg.Body, "4 calls, 1 conversions (25%), $1500.00 revenue")
	assert.Equal(t, CategoryAssignment, msg.Category)
	assert.Equal(t, evt.EventID, msg.EventID)
	assert.Empty(t, msg.ReplyTo, "customer has no email")
}

func TestAssignmentUnknownCloserIsSkipped(t *testing.T) {
	sender := &recordingSender{}
	svc := NewService(sender, closerMap{}, "Acme", logging.Discard())

	require.NoError(t, svc.NotifyAssignment(context.Background(), events.AppointmentAssignedV1{CloserID: "ghost"}))
	assert.Empty(t, sender.sent)
}

func TestHandleDedupesRedelivery(t *testing.T) {
	sender := &recordingSender{}
	processed := &memoryProcessed{seen: map[string]bool{}}
	svc := NewService(sender, closerMap{dana.ID: dana}, "Acme", logging.Discard()).WithProcessedStore(processed)

	e := entry(t, events.TypeOutcomeRecorded, outcomeEvent(appointments.OutcomeConverted))
	require.NoError(t, svc.Handle(context.Background(), e))
	require.NoError(t, svc.Handle(context.Background(), e))
	assert.Len(t, sender.sent, 1)
}

func TestHandleSendFailureIsRetryable(t *testing.T) {
	sender := &recordingSender{err: errors.New("smtp down")}
	processed := &memoryProcessed{seen: map[string]bool{}}
	svc := NewService(sender, nil, "Acme", logging.Discard()).WithProcessedStore(processed)

	e := entry(t, events.TypeOutcomeRecorded, outcomeEvent(appointments.OutcomeConverted))
	require.Error(t, svc.Handle(context.Background(), e))
	assert.Empty(t, processed.seen, "failed sends must not be marked processed")

	sender.err = nil
	require.NoError(t, svc.Handle(context.Background(), e))
	assert.Len(t, sender.sent, 1)
}

func TestHandleIgnoresUnknownTypesAndRejectsBadPayloads(t *testing.T) {
	svc := NewService(&recordingSender{}, nil, "", logging.Discard())

	assert.NoError(t, svc.Handle(context.Background(), events.OutboxEntry{Type: "lead.created.v1"}))
	err := svc.Handle(context.Background(), events.OutboxEntry{Type: events.TypeOutcomeRecorded, Payload: []byte("{")})
	assert.Error(t, err)
}
