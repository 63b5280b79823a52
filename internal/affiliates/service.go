package affiliates

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/wolfman30/leadops-platform/internal/appointments"
	"github.com/wolfman30/leadops-platform/pkg/logging"
)

// Service manages affiliates and supplies commission rates to outcome recording.
type Service struct {
	repo         Repository
	appointments *appointments.Service
	logger       *logging.Logger
}

func NewService(repo Repository, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{repo: repo, logger: logger}
}

// WithAppointments enables per-affiliate totals in Summaries.
func (s *Service) WithAppointments(appts *appointments.Service) *Service {
	s.appointments = appts
	return s
}

func (s *Service) Create(ctx context.Context, req CreateRequest) (*Affiliate, error) {
	if err := req.Normalize(); err != nil {
		return nil, err
	}
	a := &Affiliate{
		Code:           req.Code,
		Name:           req.Name,
		Email:          req.Email,
		CommissionRate: req.CommissionRate,
		IsActive:       true,
	}
	if err := s.repo.Create(ctx, a); err != nil {
		return nil, err
	}
	s.logger.Info("affiliate created", "code", a.Code, "rate", a.CommissionRate.String())
	return a, nil
}

// CommissionRate returns the rate for an active affiliate. Unknown or inactive
// codes report ok=false.
func (s *Service) CommissionRate(ctx context.Context, code string) (decimal.Decimal, bool, error) {
	a, err := s.repo.Get(ctx, NormalizeCode(code))
	if errors.Is(err, ErrAffiliateNotFound) {
		return decimal.Zero, false, nil
	}
	if err != nil {
		return decimal.Zero, false, err
	}
	if !a.IsActive {
		return decimal.Zero, false, nil
	}
	return a.CommissionRate, true, nil
}

// Summaries lists affiliates with referral and commission totals.
func (s *Service) Summaries(ctx context.Context) ([]Summary, error) {
	list, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	totals := map[string]*Summary{}
	out := make([]Summary, len(list))
	for i, a := range list {
		out[i] = Summary{Affiliate: a, Revenue: decimal.Zero, CommissionTotal: decimal.Zero}
		totals[a.Code] = &out[i]
	}
	if s.appointments == nil || len(list) == 0 {
		return out, nil
	}

	appts, err := s.appointments.List(ctx, appointments.ListFilter{})
	if err != nil {
		return nil, fmt.Errorf("affiliates: list appointments: %w", err)
	}
	for _, appt := range appts {
		if appt.AffiliateCode == nil {
			continue
		}
		sum, ok := totals[NormalizeCode(*appt.AffiliateCode)]
		if !ok {
			continue
		}
		sum.Referrals++
		if !appt.Converted() {
			continue
		}
		sum.Conversions++
		if appt.SaleValue.Valid {
			sum.Revenue = sum.Revenue.Add(appt.SaleValue.Decimal)
		}
		if appt.CommissionAmount.Valid {
			sum.CommissionTotal = sum.CommissionTotal.Add(appt.CommissionAmount.Decimal)
		}
	}
	return out, nil
}

var _ appointments.AffiliateRates = (*Service)(nil)
