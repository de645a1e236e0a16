package model

import (
	"fmt"
	"slices"
	"strings"
)

type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingAccepted  BookingStatus = "accepted"
	BookingDeclined  BookingStatus = "declined"
	BookingCompleted BookingStatus = "completed"
)

// Declined and completed are terminal.
var bookingTransitions = map[BookingStatus][]BookingStatus{
	BookingPending:   {BookingAccepted, BookingDeclined},
	BookingAccepted:  {BookingCompleted},
	BookingDeclined:  {},
	BookingCompleted: {},
}

func (s BookingStatus) IsValid() bool {
	_, ok := bookingTransitions[s]
	return ok
}

func (s BookingStatus) CanTransitionTo(target BookingStatus) bool {
	return slices.Contains(bookingTransitions[s], target)
}

func (s BookingStatus) IsTerminal() bool {
	return len(bookingTransitions[s]) == 0
}

// AllowedTransitions returns a copy of the statuses reachable from s.
func (s BookingStatus) AllowedTransitions() []BookingStatus {
	return slices.Clone(bookingTransitions[s])
}

func (s BookingStatus) String() string {
	return string(s)
}

func BookingStatuses() []BookingStatus {
	return []BookingStatus{BookingPending, BookingAccepted, BookingDeclined, BookingCompleted}
}

func ParseBookingStatus(s string) (BookingStatus, error) {
	status := BookingStatus(strings.ToLower(strings.TrimSpace(s)))
	if !status.IsValid() {
		return "", fmt.Errorf("invalid booking status: %s", s)
	}
	return status, nil
}

func (s PaymentStatus) IsValid() bool {
	switch s {
	case PaymentPending, PaymentPaid, PaymentFailed:
		return true
	}
	return false
}

// IsSettled reports whether a provider result has already been recorded.
func (s PaymentStatus) IsSettled() bool {
	return s == PaymentPaid || s == PaymentFailed
}

func (m PaymentMethod) IsValid() bool {
	switch m {
	case PaymentMpesa, PaymentCard, PaymentOnService:
		return true
	}
	return false
}
