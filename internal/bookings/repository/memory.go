package repository

import (
	"context"
	"fmt"
	"sync"

	bookingserrors "geranium/internal/bookings/errors"
	"geranium/pkg/model"

	"github.com/google/uuid"
)

type memoryBookingStore struct {
	mu       sync.RWMutex
	bookings map[string]*model.Booking
}

// NewMemoryBookingStore returns a process-local store for development and
// tests. Records are copied in and out so callers never share state.
func NewMemoryBookingStore() BookingStore {
	return &memoryBookingStore{bookings: make(map[string]*model.Booking)}
}

func (s *memoryBookingStore) Create(_ context.Context, booking *model.Booking) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.NewString()
	stored := booking.Clone()
	stored.ID = id
	s.bookings[id] = stored
	booking.ID = id
	return id, nil
}

func (s *memoryBookingStore) Get(_ context.Context, id string) (*model.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.bookings[id]
	if !ok {
		return nil, bookingserrors.ErrNotFound
	}
	return b.Clone(), nil
}

func (s *memoryBookingStore) Update(_ context.Context, id string, patch model.BookingPatch) (*model.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.bookings[id]
	if !ok {
		return nil, bookingserrors.ErrNotFound
	}
	patch.Apply(b)
	return b.Clone(), nil
}

func (s *memoryBookingStore) List(_ context.Context, pred Predicate) ([]*model.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*model.Booking, 0, len(s.bookings))
	for _, b := range s.bookings {
		if matches(pred, b) {
			result = append(result, b.Clone())
		}
	}
	model.SortNewestFirst(result)
	return result, nil
}

func (s *memoryBookingStore) FindByField(ctx context.Context, field, value string) ([]*model.Booking, error) {
	if _, ok := (&model.Booking{}).FieldValue(field); !ok {
		return nil, fmt.Errorf("%w: %s", bookingserrors.ErrUnsupportedField, field)
	}
	return s.List(ctx, func(b *model.Booking) bool {
		v, _ := b.FieldValue(field)
		return v == value
	})
}

func (s *memoryBookingStore) ApplyPaymentResult(_ context.Context, id string, result model.PaymentResult) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.bookings[id]
	if !ok {
		return false, bookingserrors.ErrNotFound
	}
	if b.PaymentStatus != model.PaymentPending {
		return false, nil
	}
	result.Apply(b)
	return true, nil
}

func (s *memoryBookingStore) TransitionStatus(_ context.Context, id string, change model.StatusChange) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.bookings[id]
	if !ok {
		return bookingserrors.ErrNotFound
	}
	if b.BookingStatus != change.From {
		return bookingserrors.ErrStatusChanged
	}
	change.Apply(b)
	return nil
}

func (s *memoryBookingStore) Ping(context.Context) error {
	return nil
}
