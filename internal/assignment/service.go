package assignment

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/leadops-platform/internal/appointments"
	"github.com/wolfman30/leadops-platform/internal/closers"
	"github.com/wolfman30/leadops-platform/internal/events"
	"github.com/wolfman30/leadops-platform/internal/observability/metrics"
	"github.com/wolfman30/leadops-platform/pkg/logging"
)

var tracer = otel.Tracer("leadops.internal.assignment")

// Service assigns appointments to closers, one at a time or in round-robin batches.
type Service struct {
	appointments *appointments.Service
	closers      *closers.Service
	lock         BatchLock
	publisher    events.Publisher
	metrics      *metrics.LeadOpsMetrics
	logger       *logging.Logger
	now          func() time.Time
}

func NewService(appts *appointments.Service, cs *closers.Service, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	s := &Service{
		appointments: appts,
		closers:      cs,
		publisher:    events.NopPublisher{},
		logger:       logger,
		now:          func() time.Time { return time.Now().UTC() },
	}
	return s.WithLock(&LocalLock{})
}

// WithLock sets the batch lock and shares it with closer deletion, so a closer
// cannot disappear between loading the roster and writing the batch.
func (s *Service) WithLock(lock BatchLock) *Service {
	if lock == nil {
		return s
	}
	s.lock = lock
	if s.closers != nil {
		s.closers.WithRosterLock(lock)
	}
	return s
}

func (s *Service) WithPublisher(p events.Publisher) *Service {
	if p != nil {
		s.publisher = p
	}
	return s
}

func (s *Service) WithMetrics(m *metrics.LeadOpsMetrics) *Service {
	s.metrics = m
	return s
}

// AutoAssignAll distributes every unassigned, non-quiz appointment across the
// eligible closers and returns how many were assigned. The batch is applied
// atomically; a concurrent run gets ErrBatchInProgress.
func (s *Service) AutoAssignAll(ctx context.Context) (int, error) {
	ctx, span := tracer.Start(ctx, "assignment.auto_assign_all")
	defer span.End()
	start := time.Now()

	release, ok, err := s.lock.TryLock(ctx)
	if err != nil {
		span.RecordError(err)
		return 0, err
	}
	if !ok {
		return 0, ErrBatchInProgress
	}
	defer release()

	pool, err := s.closers.List(ctx)
	if err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("assignment: load closers: %w", err)
	}
	eligible := closers.Eligible(pool)
	span.SetAttributes(attribute.Int("leadops.eligible_closers", len(eligible)))
	if len(eligible) == 0 {
		s.logger.Warn("auto-assign skipped: no eligible closers", "closers", len(pool))
		s.metrics.ObserveAutoAssign(0, time.Since(start).Seconds())
		return 0, nil
	}

	planner := RoundRobin(eligible)
	targets := make(map[string]appointments.Appointment)
	applied, err := s.appointments.Repository().AssignBatch(ctx, func(batch []appointments.Appointment) []appointments.Assignment {
		for _, a := range batch {
			targets[a.ID] = a
		}
		return planner(batch)
	})
	if err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("assignment: auto-assign batch: %w", err)
	}

	touched := make([]string, 0, len(eligible))
	seen := make(map[string]bool, len(eligible))
	for _, as := range applied {
		if !seen[as.CloserID] {
			seen[as.CloserID] = true
			touched = append(touched, as.CloserID)
		}
		s.publishAssigned(ctx, targets[as.AppointmentID], as.CloserID, events.SourceAuto)
	}
	s.appointments.InvalidateStats(ctx, touched...)

	s.metrics.ObserveAssignments(events.SourceAuto, len(applied))
	s.metrics.ObserveAutoAssign(len(applied), time.Since(start).Seconds())
	span.SetAttributes(attribute.Int("leadops.assigned", len(applied)))
	s.logger.Info("auto-assign completed",
		"assigned", len(applied),
		"eligible_closers", len(eligible),
	)
	return len(applied), nil
}

// Assign gives one appointment to closerID, replacing any previous closer.
// An empty closerID is a no-op and reports false.
func (s *Service) Assign(ctx context.Context, appointmentID, closerID string) (bool, error) {
	if closerID == "" {
		return false, nil
	}
	ctx, span := tracer.Start(ctx, "assignment.assign")
	defer span.End()
	span.SetAttributes(
		attribute.String("leadops.appointment_id", appointmentID),
		attribute.String("leadops.closer_id", closerID),
	)

	appt, err := s.appointments.Get(ctx, appointmentID)
	if err != nil {
		return false, err
	}
	closer, err := s.closers.Get(ctx, closerID)
	if err != nil {
		return false, err
	}
	if !closer.Eligible() {
		return false, closers.ErrCloserNotEligible
	}

	if err := s.appointments.Repository().Assign(ctx, appointmentID, closerID); err != nil {
		span.RecordError(err)
		return false, err
	}

	invalidate := []string{closerID}
	if appt.CloserID != nil && *appt.CloserID != closerID {
		invalidate = append(invalidate, *appt.CloserID)
	}
	s.appointments.InvalidateStats(ctx, invalidate...)
	s.metrics.ObserveAssignments(events.SourceManual, 1)
	s.publishAssigned(ctx, *appt, closerID, events.SourceManual)

	s.logger.Info("appointment assigned", "appointment_id", appointmentID, "closer_id", closerID)
	return true, nil
}

func (s *Service) publishAssigned(ctx context.Context, a appointments.Appointment, closerID, source string) {
	event := events.AppointmentAssignedV1{
		EventID:       uuid.New().String(),
		AppointmentID: a.ID,
		CloserID:      closerID,
		Source:        source,
		CustomerName:  a.CustomerName,
		CustomerEmail: a.CustomerEmail,
		CustomerPhone: a.CustomerPhone,
		ScheduledAt:   a.ScheduledAt,
		OccurredAt:    s.now(),
	}
	if err := s.publisher.Publish(ctx, events.TypeAppointmentAssigned, event); err != nil {
		s.logger.Error("failed to publish assignment event", "error", err, "appointment_id", a.ID)
	}
}
