package appointments

import "errors"

var (
	// ErrAppointmentNotFound is returned when an appointment id does not exist
	// (or is not visible to the calling closer).
	ErrAppointmentNotFound = errors.New("appointment not found")

	// ErrInvalidOutcome is returned when the outcome is missing or not a known value.
	ErrInvalidOutcome = errors.New("outcome must be one of converted, not_interested, needs_follow_up, wrong_number, no_answer, callback_requested, rescheduled")

	// ErrInvalidSaleValue is returned when the sale value is not a non-negative
	// amount in whole cents below 10,000,000,000.
	ErrInvalidSaleValue = errors.New("sale value must be a non-negative amount in whole cents below 10000000000")

	// ErrInvalidRecordingLink is returned when the recording link is not an absolute http(s) URL.
	ErrInvalidRecordingLink = errors.New("recording link must be an absolute http(s) URL")

	ErrInvalidName     = errors.New("customer name is required")
	ErrMissingContact  = errors.New("either customer email or phone is required")
	ErrMissingSchedule = errors.New("scheduledAt is required")
	ErrInvalidStatus   = errors.New("invalid status")
	ErrInvalidType     = errors.New("invalid appointment type")
	ErrInvalidDuration = errors.New("duration must be positive")
)
