package closers

import (
	"context"
	"errors"
	"fmt"

	"github.com/wolfman30/leadops-platform/internal/appointments"
	"github.com/wolfman30/leadops-platform/pkg/logging"
)

// RosterLock is held by an auto-assign batch while it plans against the
// closer list; deletions take it too so a batch never assigns a removed closer.
type RosterLock interface {
	TryLock(ctx context.Context) (release func(), ok bool, err error)
}

// Service manages the closer lifecycle. Stats come from the appointment set.
type Service struct {
	repo         Repository
	appointments *appointments.Service
	roster       RosterLock
	logger       *logging.Logger
}

func NewService(repo Repository, appts *appointments.Service, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{repo: repo, appointments: appts, logger: logger}
}

func (s *Service) WithRosterLock(lock RosterLock) *Service {
	s.roster = lock
	return s
}

func (s *Service) Create(ctx context.Context, req CreateRequest) (*Closer, error) {
	if err := req.Normalize(); err != nil {
		return nil, err
	}
	c := &Closer{
		Name:         req.Name,
		Email:        req.Email,
		Phone:        req.Phone,
		CalendlyLink: req.CalendlyLink,
		IsActive:     true,
		IsApproved:   req.IsApproved,
	}
	if err := s.repo.Create(ctx, c); err != nil {
		return nil, fmt.Errorf("closers: create: %w", err)
	}
	s.logger.Info("closer created", "closer_id", c.ID, "approved", c.IsApproved)
	return c, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Closer, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context) ([]Closer, error) {
	return s.repo.List(ctx)
}

// ListWithStats returns every closer with aggregates derived from one appointment scan.
func (s *Service) ListWithStats(ctx context.Context) ([]WithStats, error) {
	cs, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("closers: list: %w", err)
	}
	stats, err := s.appointments.StatsByCloser(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]WithStats, 0, len(cs))
	for _, c := range cs {
		st, ok := stats[c.ID]
		if !ok {
			st = appointments.ComputeCloserStats(c.ID, nil)
		}
		out = append(out, withStats(c, st))
	}
	return out, nil
}

// Eligible returns the active and approved closers in store order.
func (s *Service) Eligible(ctx context.Context) ([]Closer, error) {
	cs, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("closers: list: %w", err)
	}
	return Eligible(cs), nil
}

func (s *Service) Approve(ctx context.Context, id string) (*Closer, error) {
	return s.setFlag(ctx, id, FlagApproved, true)
}

func (s *Service) Activate(ctx context.Context, id string) (*Closer, error) {
	return s.setFlag(ctx, id, FlagActive, true)
}

func (s *Service) Deactivate(ctx context.Context, id string) (*Closer, error) {
	return s.setFlag(ctx, id, FlagActive, false)
}

func (s *Service) setFlag(ctx context.Context, id string, flag Flag, value bool) (*Closer, error) {
	c, err := s.repo.SetFlag(ctx, id, flag, value)
	if err != nil {
		return nil, err
	}
	s.logger.Info("closer updated", "closer_id", id, "flag", flag, "value", value)
	return c, nil
}

// Delete removes a closer after clearing it from its appointments. It reports
// whether the closer existed and how many appointments were unassigned.
func (s *Service) Delete(ctx context.Context, id string) (bool, int, error) {
	if _, err := s.repo.Get(ctx, id); err != nil {
		if errors.Is(err, ErrCloserNotFound) {
			return false, 0, nil
		}
		return false, 0, err
	}
	if s.roster != nil {
		release, ok, err := s.roster.TryLock(ctx)
		if err != nil {
			return false, 0, fmt.Errorf("closers: roster lock: %w", err)
		}
		if !ok {
			return false, 0, ErrRosterBusy
		}
		defer release()
	}
	unassigned, err := s.appointments.Repository().UnassignCloser(ctx, id)
	if err != nil {
		return false, 0, fmt.Errorf("closers: unassign appointments: %w", err)
	}
	deleted, err := s.repo.Delete(ctx, id)
	if err != nil {
		return false, unassigned, fmt.Errorf("closers: delete: %w", err)
	}
	s.appointments.InvalidateStats(ctx, id)
	s.logger.Info("closer deleted", "closer_id", id, "unassigned", unassigned)
	return deleted, unassigned, nil
}
