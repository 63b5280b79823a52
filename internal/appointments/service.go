package appointments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/leadops-platform/internal/events"
	"github.com/wolfman30/leadops-platform/internal/observability/metrics"
	"github.com/wolfman30/leadops-platform/pkg/logging"
)

var tracer = otel.Tracer("leadops.internal.appointments")

// AffiliateRates resolves the commission rate for an affiliate code.
type AffiliateRates interface {
	CommissionRate(ctx context.Context, code string) (decimal.Decimal, bool, error)
}

// Actor labels who recorded an outcome.
const (
	ActorAdmin  = "admin"
	ActorCloser = "closer"
)

// Service owns appointment writes that carry side effects: outcome recording,
// deletion and stats memoization.
type Service struct {
	repo      Repository
	logger    *logging.Logger
	rates     AffiliateRates
	publisher events.Publisher
	cache     StatsCache
	metrics   *metrics.LeadOpsMetrics
	now       func() time.Time
}

func NewService(repo Repository, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		repo:      repo,
		logger:    logger,
		publisher: events.NopPublisher{},
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) WithAffiliateRates(rates AffiliateRates) *Service {
	s.rates = rates
	return s
}

func (s *Service) WithPublisher(p events.Publisher) *Service {
	if p != nil {
		s.publisher = p
	}
	return s
}

func (s *Service) WithStatsCache(cache StatsCache) *Service {
	s.cache = cache
	return s
}

func (s *Service) WithMetrics(m *metrics.LeadOpsMetrics) *Service {
	s.metrics = m
	return s
}

// Repository exposes the underlying store for collaborators that share it.
func (s *Service) Repository() Repository {
	return s.repo
}

func (s *Service) Create(ctx context.Context, req CreateRequest) (*Appointment, error) {
	if err := req.Normalize(); err != nil {
		return nil, err
	}
	now := s.now()
	a := &Appointment{
		ID:            uuid.New().String(),
		Type:          req.Type,
		CustomerName:  req.CustomerName,
		CustomerEmail: req.CustomerEmail,
		CustomerPhone: req.CustomerPhone,
		ScheduledAt:   req.ScheduledAt.UTC(),
		Duration:      req.Duration,
		Status:        req.Status,
		Notes:         req.Notes,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if req.AffiliateCode != "" {
		code := req.AffiliateCode
		a.AffiliateCode = &code
	}
	if err := s.repo.Create(ctx, a); err != nil {
		return nil, fmt.Errorf("appointments: create: %w", err)
	}
	s.logger.Info("appointment created", "appointment_id", a.ID, "type", a.Type)
	return a, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Appointment, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, filter ListFilter) ([]Appointment, error) {
	return s.repo.List(ctx, filter)
}

// Delete removes an appointment. A missing appointment is reported as
// (false, nil) so repeated deletes are harmless.
func (s *Service) Delete(ctx context.Context, id string) (bool, error) {
	existing, err := s.repo.Get(ctx, id)
	if errors.Is(err, ErrAppointmentNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("appointments: delete lookup: %w", err)
	}
	deleted, err := s.repo.Delete(ctx, id)
	if err != nil {
		return false, fmt.Errorf("appointments: delete: %w", err)
	}
	if deleted && existing.CloserID != nil {
		s.InvalidateStats(ctx, *existing.CloserID)
	}
	return deleted, nil
}

// UpdateOutcome records a call result from the admin console.
func (s *Service) UpdateOutcome(ctx context.Context, id string, update OutcomeUpdate) (*Appointment, error) {
	return s.recordOutcome(ctx, id, "", update)
}

// UpdateOutcomeForCloser records a call result on behalf of closerID. Appointments
// assigned to someone else are reported as not found.
func (s *Service) UpdateOutcomeForCloser(ctx context.Context, closerID, id string, update OutcomeUpdate) (*Appointment, error) {
	if closerID == "" {
		return nil, ErrAppointmentNotFound
	}
	return s.recordOutcome(ctx, id, closerID, update)
}

func (s *Service) recordOutcome(ctx context.Context, id, closerID string, update OutcomeUpdate) (*Appointment, error) {
	ctx, span := tracer.Start(ctx, "appointments.record_outcome")
	defer span.End()
	span.SetAttributes(
		attribute.String("leadops.appointment_id", id),
		attribute.String("leadops.outcome", update.Outcome),
	)

	change, err := update.validate()
	if err != nil {
		return nil, err
	}

	updated, previousCloser, err := s.applyOutcome(ctx, id, closerID, change)
	if err != nil {
		if !errors.Is(err, ErrAppointmentNotFound) {
			span.RecordError(err)
			err = fmt.Errorf("appointments: record outcome: %w", err)
		}
		return nil, err
	}

	s.InvalidateStats(ctx, previousCloser)
	actor := ActorAdmin
	if closerID != "" {
		actor = ActorCloser
	}
	sale := 0.0
	if updated.SaleValue.Valid {
		sale = updated.SaleValue.Decimal.InexactFloat64()
	}
	s.metrics.ObserveOutcome(string(change.outcome), actor, sale)
	s.publishOutcome(ctx, updated)

	s.logger.Info("appointment outcome recorded",
		"appointment_id", updated.ID,
		"outcome", change.outcome,
		"status", updated.Status,
		"actor", actor,
	)
	return updated, nil
}

// maxRateAttempts bounds retries when the affiliate code changes between the
// rate lookup and the locked write.
const maxRateAttempts = 3

// errAffiliateChanged aborts a locked write whose commission rate was resolved
// for a different affiliate code.
var errAffiliateChanged = errors.New("affiliate code changed during outcome update")

// applyOutcome resolves the commission rate before the repository locks the
// row, so the lookup never needs a second connection while the lock is held.
func (s *Service) applyOutcome(ctx context.Context, id, closerID string, change outcomeChange) (*Appointment, string, error) {
	for attempt := 1; ; attempt++ {
		current, err := s.repo.Get(ctx, id)
		if err != nil {
			return nil, "", err
		}
		if closerID != "" && !current.AssignedTo(closerID) {
			return nil, "", ErrAppointmentNotFound
		}
		code := affiliateCode(current)
		rate, err := s.commissionRate(ctx, code, change.outcome)
		if err != nil {
			return nil, "", err
		}

		var previousCloser string
		updated, err := s.repo.Update(ctx, id, func(a *Appointment) error {
			if closerID != "" && !a.AssignedTo(closerID) {
				return ErrAppointmentNotFound
			}
			if change.outcome == OutcomeConverted && affiliateCode(a) != code {
				return errAffiliateChanged
			}
			if a.CloserID != nil {
				previousCloser = *a.CloserID
			}
			change.apply(a, rate, s.now())
			return nil
		})
		if errors.Is(err, errAffiliateChanged) && attempt < maxRateAttempts {
			continue
		}
		return updated, previousCloser, err
	}
}

func affiliateCode(a *Appointment) string {
	if a.AffiliateCode == nil {
		return ""
	}
	return *a.AffiliateCode
}

// commissionRate returns nil when no commission applies.
func (s *Service) commissionRate(ctx context.Context, code string, outcome Outcome) (*decimal.Decimal, error) {
	if outcome != OutcomeConverted || code == "" || s.rates == nil {
		return nil, nil
	}
	rate, ok, err := s.rates.CommissionRate(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("affiliate rate lookup: %w", err)
	}
	if !ok {
		return nil, nil
	}
	return &rate, nil
}

func (s *Service) publishOutcome(ctx context.Context, a *Appointment) {
	event := events.OutcomeRecordedV1{
		EventID:       uuid.New().String(),
		AppointmentID: a.ID,
		CustomerName:  a.CustomerName,
		CustomerEmail: a.CustomerEmail,
		RecordingLink: a.RecordingLink(),
		OccurredAt:    s.now(),
	}
	if a.Outcome != nil {
		event.Outcome = string(*a.Outcome)
	}
	if a.CloserID != nil {
		event.CloserID = *a.CloserID
	}
	if a.AffiliateCode != nil {
		event.AffiliateCode = *a.AffiliateCode
	}
	if a.SaleValue.Valid {
		event.SaleValue = a.SaleValue.Decimal.StringFixed(2)
	}
	if a.CommissionAmount.Valid {
		event.CommissionAmount = a.CommissionAmount.Decimal.StringFixed(2)
	}
	if err := s.publisher.Publish(ctx, events.TypeOutcomeRecorded, event); err != nil {
		s.logger.Error("failed to publish outcome event", "error", err, "appointment_id", a.ID)
	}
}

// CloserStats returns the aggregates for one closer, memoized when a cache is configured.
// A fill is only stored if no write invalidated the closer while it was computed.
func (s *Service) CloserStats(ctx context.Context, closerID string) (CloserStats, error) {
	fill := s.cache != nil
	var generation int64
	if fill {
		cached, ok, err := s.cache.Get(ctx, closerID)
		if err != nil {
			s.logger.Warn("stats cache read failed", "error", err, "closer_id", closerID)
		} else if ok {
			return *cached, nil
		}
		if generation, err = s.cache.Generation(ctx, closerID); err != nil {
			s.logger.Warn("stats cache generation read failed", "error", err, "closer_id", closerID)
			fill = false
		}
	}

	appts, err := s.repo.List(ctx, ListFilter{CloserID: closerID})
	if err != nil {
		return CloserStats{}, fmt.Errorf("appointments: closer stats: %w", err)
	}
	stats := ComputeCloserStats(closerID, appts)

	if fill {
		stored, err := s.cache.Set(ctx, stats, generation)
		if err != nil {
			s.logger.Warn("stats cache write failed", "error", err, "closer_id", closerID)
		} else if !stored {
			s.logger.Debug("stats cache fill skipped after concurrent write", "closer_id", closerID)
		}
	}
	return stats, nil
}

// StatsByCloser aggregates every closer from a single listing.
func (s *Service) StatsByCloser(ctx context.Context) (map[string]CloserStats, error) {
	appts, err := s.repo.List(ctx, ListFilter{})
	if err != nil {
		return nil, fmt.Errorf("appointments: stats by closer: %w", err)
	}
	return StatsByCloser(appts), nil
}

// InvalidateStats drops memoized stats. Failures are logged only.
func (s *Service) InvalidateStats(ctx context.Context, closerIDs ...string) {
	if s.cache == nil || len(closerIDs) == 0 {
		return
	}
	if err := s.cache.Invalidate(ctx, closerIDs...); err != nil {
		s.logger.Warn("stats cache invalidate failed", "error", err, "closer_ids", closerIDs)
	}
}
