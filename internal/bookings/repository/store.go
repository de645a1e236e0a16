package repository

import (
	"context"

	"geranium/pkg/model"
)

const CollectionName = "bookings"

// Predicate selects bookings in List. A nil predicate matches everything.
type Predicate func(*model.Booking) bool

// BookingStore is the single storage contract for bookings. Payment and
// booking status only change through ApplyPaymentResult and
// TransitionStatus, both of which compare-and-swap on the current value.
type BookingStore interface {
	Create(ctx context.Context, booking *model.Booking) (string, error)
	Get(ctx context.Context, id string) (*model.Booking, error)
	Update(ctx context.Context, id string, patch model.BookingPatch) (*model.Booking, error)
	List(ctx context.Context, pred Predicate) ([]*model.Booking, error)
	FindByField(ctx context.Context, field, value string) ([]*model.Booking, error)

	// ApplyPaymentResult writes result only while paymentStatus is pending.
	// applied is false when the payment had already settled.
	ApplyPaymentResult(ctx context.Context, id string, result model.PaymentResult) (applied bool, err error)

	// TransitionStatus writes change.To only while bookingStatus equals
	// change.From, returning ErrStatusChanged otherwise.
	TransitionStatus(ctx context.Context, id string, change model.StatusChange) error

	Ping(ctx context.Context) error
}

func matches(pred Predicate, b *model.Booking) bool {
	return pred == nil || pred(b)
}
