package errs

import "errors"

var (
	ErrTicketNotFound = errors.New("ticket not found")
	ErrClientNotFound = errors.New("client not found")

	// ErrValidation marks missing required fields and out-of-enum values.
	ErrValidation = errors.New("validation failed")

	// ErrNotConfigured is returned by the outbound sender when no provider credentials were supplied.
	ErrNotConfigured = errors.New("messaging provider not configured")
	ErrDelivery      = errors.New("message delivery failed")
)
