package appointments

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Type separates booked calls from quiz-funnel sessions surfaced in the same list.
type Type string

const (
	TypeAppointment Type = "appointment"
	TypeQuizSession Type = "quiz_session"
)

// Status is the scheduling state of an appointment.
type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusConfirmed Status = "confirmed"
	StatusCompleted Status = "completed"
	StatusNoShow    Status = "no_show"
	StatusCancelled Status = "cancelled"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusScheduled, StatusConfirmed, StatusCompleted, StatusNoShow, StatusCancelled:
		return true
	}
	return false
}

// Outcome is the classification of a finished sales call.
type Outcome string

const (
	OutcomeConverted         Outcome = "converted"
	OutcomeNotInterested     Outcome = "not_interested"
	OutcomeNeedsFollowUp     Outcome = "needs_follow_up"
	OutcomeWrongNumber       Outcome = "wrong_number"
	OutcomeNoAnswer          Outcome = "no_answer"
	OutcomeCallbackRequested Outcome = "callback_requested"
	OutcomeRescheduled       Outcome = "rescheduled"
)

// Outcomes lists every outcome in display order.
var Outcomes = []Outcome{
	OutcomeConverted,
	OutcomeNotInterested,
	OutcomeNeedsFollowUp,
	OutcomeWrongNumber,
	OutcomeNoAnswer,
	OutcomeCallbackRequested,
	OutcomeRescheduled,
}

// Valid reports whether o is one of the known outcomes.
func (o Outcome) Valid() bool {
	for _, known := range Outcomes {
		if o == known {
			return true
		}
	}
	return false
}

// ParseOutcome normalizes and validates an outcome string.
func ParseOutcome(raw string) (Outcome, error) {
	o := Outcome(strings.ToLower(strings.TrimSpace(raw)))
	if !o.Valid() {
		return "", ErrInvalidOutcome
	}
	return o, nil
}

// StatusForOutcome returns the status an appointment moves to once the outcome is recorded.
func StatusForOutcome(o Outcome) Status {
	if o == OutcomeNoAnswer {
		return StatusNoShow
	}
	return StatusCompleted
}

// Appointment is a booked call (or quiz session) that may be worked by a closer.
type Appointment struct {
	ID               string              `json:"id"`
	Type             Type                `json:"type"`
	CustomerName     string              `json:"customerName"`
	CustomerEmail    string              `json:"customerEmail"`
	CustomerPhone    string              `json:"customerPhone"`
	ScheduledAt      time.Time           `json:"scheduledAt"`
	Duration         int                 `json:"duration"`
	Status           Status              `json:"status"`
	Outcome          *Outcome            `json:"outcome"`
	Notes            string              `json:"notes"`
	SaleValue        decimal.NullDecimal `json:"saleValue"`
	CommissionAmount decimal.NullDecimal `json:"commissionAmount"`
	AffiliateCode    *string             `json:"affiliateCode"`
	CloserID         *string             `json:"closerId"`
	// RecordingLinks keeps the latest link recorded under each outcome.
	RecordingLinks map[Outcome]string `json:"recordingLinks"`
	CreatedAt      time.Time          `json:"createdAt"`
	UpdatedAt      time.Time          `json:"updatedAt"`
}

// RecordingLink returns the link stored for the current outcome, or "" when
// there is no outcome or that slot is unset.
func (a *Appointment) RecordingLink() string {
	if a.Outcome == nil {
		return ""
	}
	return a.RecordingLinks[*a.Outcome]
}

// Assignable reports whether the appointment is a target for auto-assign.
func (a *Appointment) Assignable() bool {
	return a.CloserID == nil && a.Type != TypeQuizSession
}

// AssignedTo reports whether closerID owns the appointment.
func (a *Appointment) AssignedTo(closerID string) bool {
	return a.CloserID != nil && *a.CloserID == closerID
}

// Converted reports whether the current outcome is a sale.
func (a *Appointment) Converted() bool {
	return a.Outcome != nil && *a.Outcome == OutcomeConverted
}

// Clone returns a deep copy so stored values cannot be mutated through returned ones.
func (a Appointment) Clone() Appointment {
	out := a
	if a.Outcome != nil {
		o := *a.Outcome
		out.Outcome = &o
	}
	if a.AffiliateCode != nil {
		code := *a.AffiliateCode
		out.AffiliateCode = &code
	}
	if a.CloserID != nil {
		id := *a.CloserID
		out.CloserID = &id
	}
	if a.RecordingLinks != nil {
		out.RecordingLinks = make(map[Outcome]string, len(a.RecordingLinks))
		for k, v := range a.RecordingLinks {
			out.RecordingLinks[k] = v
		}
	}
	return out
}

// MarshalJSON adds the derived recordingLink field.
func (a Appointment) MarshalJSON() ([]byte, error) {
	type alias Appointment
	var link *string
	if current := a.RecordingLink(); current != "" {
		link = &current
	}
	links := a.RecordingLinks
	if links == nil {
		links = map[Outcome]string{}
	}
	return json.Marshal(struct {
		alias
		RecordingLinks map[Outcome]string `json:"recordingLinks"`
		RecordingLink  *string            `json:"recordingLink"`
	}{
		alias:          alias(a),
		RecordingLinks: links,
		RecordingLink:  link,
	})
}

// CreateRequest is the body for creating an appointment from the admin console.
type CreateRequest struct {
	Type          Type      `json:"type"`
	CustomerName  string    `json:"customerName"`
	CustomerEmail string    `json:"customerEmail"`
	CustomerPhone string    `json:"customerPhone"`
	ScheduledAt   time.Time `json:"scheduledAt"`
	Duration      int       `json:"duration"`
	Status        Status    `json:"status"`
	Notes         string    `json:"notes"`
	AffiliateCode string    `json:"affiliateCode"`
}

// Normalize fills defaults and validates the request.
func (r *CreateRequest) Normalize() error {
	r.CustomerName = strings.TrimSpace(r.CustomerName)
	r.CustomerEmail = strings.ToLower(strings.TrimSpace(r.CustomerEmail))
	r.CustomerPhone = strings.TrimSpace(r.CustomerPhone)
	r.AffiliateCode = strings.TrimSpace(r.AffiliateCode)
	if r.Type == "" {
		r.Type = TypeAppointment
	}
	if r.Status == "" {
		r.Status = StatusScheduled
	}
	if r.Duration == 0 {
		r.Duration = 30
	}

	if r.CustomerName == "" {
		return ErrInvalidName
	}
	if r.CustomerEmail == "" && r.CustomerPhone == "" {
		return ErrMissingContact
	}
	if r.ScheduledAt.IsZero() {
		return ErrMissingSchedule
	}
	if r.Type != TypeAppointment && r.Type != TypeQuizSession {
		return ErrInvalidType
	}
	if !r.Status.Valid() {
		return ErrInvalidStatus
	}
	if r.Duration < 0 {
		return ErrInvalidDuration
	}
	return nil
}
