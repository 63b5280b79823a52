package affiliates

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrAffiliateNotFound = errors.New("affiliate not found")
	ErrDuplicateCode     = errors.New("affiliate code already exists")
	ErrInvalidCode       = errors.New("affiliate code is required")
	ErrInvalidName       = errors.New("affiliate name is required")
	// ErrInvalidRate is returned when the commission rate is outside [0, 1].
	ErrInvalidRate = errors.New("commission rate must be between 0 and 1")
)

// Affiliate refers leads and earns a commission on converted sales.
type Affiliate struct {
	Code           string          `json:"code"`
	Name           string          `json:"name"`
	Email          string          `json:"email"`
	CommissionRate decimal.Decimal `json:"commissionRate"`
	IsActive       bool            `json:"isActive"`
	CreatedAt      time.Time       `json:"createdAt"`
}

// Summary is an affiliate with totals derived from its attributed appointments.
type Summary struct {
	Affiliate
	Referrals       int             `json:"referrals"`
	Conversions     int             `json:"conversions"`
	Revenue         decimal.Decimal `json:"revenue"`
	CommissionTotal decimal.Decimal `json:"commissionTotal"`
}

type CreateRequest struct {
	Code           string          `json:"code"`
	Name           string          `json:"name"`
	Email          string          `json:"email"`
	CommissionRate decimal.Decimal `json:"commissionRate"`
}

// NormalizeCode upper-cases and trims a referral code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func (r *CreateRequest) Normalize() error {
	r.Code = NormalizeCode(r.Code)
	r.Name = strings.TrimSpace(r.Name)
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	if r.Code == "" {
		return ErrInvalidCode
	}
	if r.Name == "" {
		return ErrInvalidName
	}
	if r.CommissionRate.IsNegative() || r.CommissionRate.GreaterThan(decimal.NewFromInt(1)) {
		return ErrInvalidRate
	}
	return nil
}
