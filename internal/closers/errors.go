package closers

import "errors"

var (
	// ErrCloserNotFound is returned when a closer id does not exist.
	ErrCloserNotFound = errors.New("closer not found")
	// ErrCloserNotEligible is returned when a closer is inactive or unapproved.
	ErrCloserNotEligible = errors.New("closer is not active and approved")

	// ErrRosterBusy is returned when a closer is deleted while an auto-assign batch runs.
	ErrRosterBusy = errors.New("auto-assign in progress, retry the deletion")

	ErrInvalidName  = errors.New("closer name is required")
	ErrInvalidEmail = errors.New("closer email is required")
)
