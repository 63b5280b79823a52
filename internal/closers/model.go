package closers

import (
	"net/mail"
	"strings"
	"time"

	"github.com/wolfman30/leadops-platform/internal/appointments"
)

// Closer is a sales rep who works booked appointments.
type Closer struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Phone        string    `json:"phone"`
	CalendlyLink string    `json:"calendlyLink"`
	IsActive     bool      `json:"isActive"`
	IsApproved   bool      `json:"isApproved"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Eligible reports whether the closer may receive new appointments.
func (c Closer) Eligible() bool {
	return c.IsActive && c.IsApproved
}

// WithStats is the admin list view of a closer.
type WithStats struct {
	Closer
	TotalCalls       int     `json:"totalCalls"`
	TotalConversions int     `json:"totalConversions"`
	TotalRevenue     string  `json:"totalRevenue"`
	ConversionRate   float64 `json:"conversionRate"`
}

func withStats(c Closer, stats appointments.CloserStats) WithStats {
	return WithStats{
		Closer:           c,
		TotalCalls:       stats.TotalCalls,
		TotalConversions: stats.TotalConversions,
		TotalRevenue:     stats.TotalRevenue.StringFixed(2),
		ConversionRate:   stats.ConversionRate,
	}
}

// Eligible filters cs down to active and approved closers, preserving order.
func Eligible(cs []Closer) []Closer {
	out := make([]Closer, 0, len(cs))
	for _, c := range cs {
		if c.Eligible() {
			out = append(out, c)
		}
	}
	return out
}

// CreateRequest is the admin body for registering a closer. New closers start
// active and wait for approval unless IsApproved is set.
type CreateRequest struct {
	Name         string `json:"name"`
	Email        string `json:"email"`
	Phone        string `json:"phone"`
	CalendlyLink string `json:"calendlyLink"`
	IsApproved   bool   `json:"isApproved"`
}

func (r *CreateRequest) Normalize() error {
	r.Name = strings.TrimSpace(r.Name)
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	r.Phone = strings.TrimSpace(r.Phone)
	r.CalendlyLink = strings.TrimSpace(r.CalendlyLink)
	if r.Name == "" {
		return ErrInvalidName
	}
	if r.Email == "" {
		return ErrInvalidEmail
	}
	if _, err := mail.ParseAddress(r.Email); err != nil {
		return ErrInvalidEmail
	}
	return nil
}
