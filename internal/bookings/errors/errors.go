package errors

import "errors"

var (
	ErrNotFound = errors.New("booking not found")

	ErrInvalidID = errors.New("invalid booking ID format")

	// ErrPaymentSettled is returned when a payment action targets a booking
	// whose payment is no longer pending.
	ErrPaymentSettled = errors.New("booking payment already settled")

	// ErrStatusChanged is returned when a status transition loses a race
	// with a concurrent change.
	ErrStatusChanged = errors.New("booking status changed concurrently")

	ErrUnsupportedField = errors.New("field cannot be used for lookups")
)
