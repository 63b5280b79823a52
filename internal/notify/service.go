package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/wolfman30/leadops-platform/internal/appointments"
	"github.com/wolfman30/leadops-platform/internal/closers"
	"github.com/wolfman30/leadops-platform/internal/events"
	"github.com/wolfman30/leadops-platform/pkg/logging"
)

// consumerName identifies this handler in processed_events.
const consumerName = "notify"

// CloserLookup resolves the closer attached to an event.
type CloserLookup interface {
	Get(ctx context.Context, id string) (*closers.Closer, error)
}

// StatsSource supplies the closer aggregates quoted in assignment emails.
type StatsSource interface {
	CloserStats(ctx context.Context, closerID string) (appointments.CloserStats, error)
}

// ProcessedStore dedupes redelivered outbox events.
type ProcessedStore interface {
	AlreadyProcessed(ctx context.Context, consumer, eventID string) (bool, error)
	MarkProcessed(ctx context.Context, consumer, eventID string) (bool, error)
}

// Service turns appointment events into customer and closer emails. It is the
// outbox DeliveryHandler.
type Service struct {
	email     EmailSender
	closers   CloserLookup
	stats     StatsSource
	processed ProcessedStore
	brand     string
	logger    *logging.Logger
}

func NewService(email EmailSender, lookup CloserLookup, brand string, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	if brand == "" {
		brand = defaultFromName
	}
	return &Service{email: email, closers: lookup, brand: brand, logger: logger}
}

func (s *Service) WithStats(stats StatsSource) *Service {
	s.stats = stats
	return s
}

func (s *Service) WithProcessedStore(store ProcessedStore) *Service {
	s.processed = store
	return s
}

// Handle implements events.DeliveryHandler. Unknown event types are ignored.
func (s *Service) Handle(ctx context.Context, entry events.OutboxEntry) error {
	switch entry.Type {
	case events.TypeOutcomeRecorded:
		var evt events.OutcomeRecordedV1
		if err := json.Unmarshal(entry.Payload, &evt); err != nil {
			return fmt.Errorf("notify: decode outcome event: %w", err)
		}
		return s.once(ctx, evt.EventID, func() error { return s.NotifyOutcome(ctx, evt) })
	case events.TypeAppointmentAssigned:
		var evt events.AppointmentAssignedV1
		if err := json.Unmarshal(entry.Payload, &evt); err != nil {
			return fmt.Errorf("notify: decode assignment event: %w", err)
		}
		return s.once(ctx, evt.EventID, func() error { return s.NotifyAssignment(ctx, evt) })
	default:
		s.logger.Debug("notify: ignoring event", "type", entry.Type, "event_id", entry.ID)
		return nil
	}
}

// once runs send unless eventID was already handled. The event is marked only
// after a successful send so a failed delivery is retried.
func (s *Service) once(ctx context.Context, eventID string, send func() error) error {
	if s.processed == nil || eventID == "" {
		return send()
	}
	done, err := s.processed.AlreadyProcessed(ctx, consumerName, eventID)
	if err != nil {
		return err
	}
	if done {
		s.logger.Debug("notify: event already processed", "event_id", eventID)
		return nil
	}
	if err := send(); err != nil {
		return err
	}
	if _, err := s.processed.MarkProcessed(ctx, consumerName, eventID); err != nil {
		s.logger.Warn("notify: failed to mark event processed", "error", err, "event_id", eventID)
	}
	return nil
}

// NotifyOutcome emails the customer when the outcome has a template.
func (s *Service) NotifyOutcome(ctx context.Context, evt events.OutcomeRecordedV1) error {
	tmpl, ok := customerTemplates[appointments.Outcome(evt.Outcome)]
	if !ok {
		return nil
	}
	if evt.CustomerEmail == "" {
		s.logger.Debug("notify: no customer email on appointment", "appointment_id", evt.AppointmentID, "outcome", evt.Outcome)
		return nil
	}
	if s.email == nil {
		return nil
	}

	closer := s.closer(ctx, evt.CloserID)
	msg := tmpl(s.brand, evt, closer)
	msg.Category = outcomeCategory(evt.Outcome)
	msg.EventID = evt.EventID
	if closer != nil && closer.Email != "" {
		msg.ReplyTo, msg.ReplyToName = closer.Email, closer.Name
	}
	if err := s.email.Send(ctx, msg); err != nil {
		s.logger.Error("notify: failed to send outcome email", "error", err, "appointment_id", evt.AppointmentID, "outcome", evt.Outcome)
		return fmt.Errorf("notify: outcome email: %w", err)
	}
	s.logger.Info("notify: outcome email sent", "appointment_id", evt.AppointmentID, "outcome", evt.Outcome)
	return nil
}

// NotifyAssignment emails the closer who received the appointment.
func (s *Service) NotifyAssignment(ctx context.Context, evt events.AppointmentAssignedV1) error {
	if s.email == nil {
		return nil
	}
	closer := s.closer(ctx, evt.CloserID)
	if closer == nil || closer.Email == "" {
		s.logger.Warn("notify: assigned closer has no email", "closer_id", evt.CloserID, "appointment_id", evt.AppointmentID)
		return nil
	}

	var stats *appointments.CloserStats
	if s.stats != nil {
		st, err := s.stats.CloserStats(ctx, closer.ID)
		if err != nil {
			s.logger.Warn("notify: closer stats unavailable", "error", err, "closer_id", closer.ID)
		} else {
			stats = &st
		}
	}

	msg := assignmentEmail(s.brand, evt, *closer, stats)
	msg.Category = CategoryAssignment
	msg.EventID = evt.EventID
	if evt.CustomerEmail != "" {
		msg.ReplyTo, msg.ReplyToName = evt.CustomerEmail, evt.CustomerName
	}
	if err := s.email.Send(ctx, msg); err != nil {
		s.logger.Error("notify: failed to send assignment email", "error", err, "closer_id", closer.ID)
		return fmt.Errorf("notify: assignment email: %w", err)
	}
	s.logger.Info("notify: assignment email sent", "closer_id", closer.ID, "appointment_id", evt.AppointmentID, "source", evt.Source)
	return nil
}

func (s *Service) closer(ctx context.Context, id string) *closers.Closer {
	if id == "" || s.closers == nil {
		return nil
	}
	c, err := s.closers.Get(ctx, id)
	if err != nil {
		if !errors.Is(err, closers.ErrCloserNotFound) {
			s.logger.Warn("notify: closer lookup failed", "error", err, "closer_id", id)
		}
		return nil
	}
	return c
}

var _ events.DeliveryHandler = (*Service)(nil)
