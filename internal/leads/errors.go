package leads

import "errors"

var (
	// ErrDuplicateRequest is returned when an identical email+source
	// submission arrives inside the cooldown window.
	ErrDuplicateRequest = errors.New("duplicate submission within cooldown window")

	// ErrLeadNotFound is returned when a lead is not found
	ErrLeadNotFound = errors.New("lead not found")

	// ErrInvalidStatus is returned when an admin requests an unknown status.
	ErrInvalidStatus = errors.New("invalid lead status")
)
