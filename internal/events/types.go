package events

import "time"

// Event type names stored in the outbox.
const (
	TypeAppointmentAssigned = "appointment.assigned.v1"
	TypeOutcomeRecorded     = "appointment.outcome_recorded.v1"
)

// Assignment sources.
const (
	SourceManual = "manual"
	SourceAuto   = "auto"
)

type AppointmentAssignedV1 struct {
	EventID       string    `json:"event_id"`
	AppointmentID string    `json:"appointment_id"`
	CloserID      string    `json:"closer_id"`
	Source        string    `json:"source"`
	CustomerName  string    `json:"customer_name"`
	CustomerEmail string    `json:"customer_email,omitempty"`
	CustomerPhone string    `json:"customer_phone,omitempty"`
	ScheduledAt   time.Time `json:"scheduled_at"`
	OccurredAt    time.Time `json:"occurred_at"`
}

type OutcomeRecordedV1 struct {
	EventID          string    `json:"event_id"`
	AppointmentID    string    `json:"appointment_id"`
	CloserID         string    `json:"closer_id,omitempty"`
	Outcome          string    `json:"outcome"`
	CustomerName     string    `json:"customer_name"`
	CustomerEmail    string    `json:"customer_email,omitempty"`
	SaleValue        string    `json:"sale_value,omitempty"`
	AffiliateCode    string    `json:"affiliate_code,omitempty"`
	CommissionAmount string    `json:"commission_amount,omitempty"`
	RecordingLink    string    `json:"recording_link,omitempty"`
	OccurredAt       time.Time `json:"occurred_at"`
}
