package notifications

import (
	"time"

	"geranium/pkg/model"

	"github.com/google/uuid"
)

type Kind string

const (
	KindBookingReceived  Kind = "booking_received"
	KindNewBookingAlert  Kind = "new_booking_alert"
	KindPaymentConfirmed Kind = "payment_confirmed"
	KindStatusChanged    Kind = "status_changed"
	KindInvoice          Kind = "invoice"
)

func (k Kind) IsValid() bool {
	switch k {
	case KindBookingReceived, KindNewBookingAlert, KindPaymentConfirmed, KindStatusChanged, KindInvoice:
		return true
	}
	return false
}

// Notification is one outbound email request. It carries a snapshot of the
// booking taken when the triggering change happened.
type Notification struct {
	ID        string         `json:"id"`
	Kind      Kind           `json:"kind"`
	Booking   *model.Booking `json:"booking"`
	CreatedAt time.Time      `json:"createdAt"`
}

func New(kind Kind, booking *model.Booking) Notification {
	return Notification{
		ID:        uuid.NewString(),
		Kind:      kind,
		Booking:   booking.Clone(),
		CreatedAt: time.Now().UTC(),
	}
}

// Submitter accepts notifications without blocking the caller.
type Submitter interface {
	Submit(n Notification)
}

// SubmitterFunc adapts a function to Submitter.
type SubmitterFunc func(n Notification)

func (f SubmitterFunc) Submit(n Notification) {
	f(n)
}

// StatusNotification maps a booking status to the email it triggers, if any.
func StatusNotification(status model.BookingStatus) (Kind, bool) {
	switch status {
	case model.BookingAccepted, model.BookingDeclined:
		return KindStatusChanged, true
	case model.BookingCompleted:
		return KindInvoice, true
	}
	return "", false
}
