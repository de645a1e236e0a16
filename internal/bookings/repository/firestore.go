package repository

import (
	"context"
	"errors"
	"fmt"

	bookingserrors "geranium/internal/bookings/errors"
	"geranium/pkg/model"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type firestoreBookingStore struct {
	client     *firestore.Client
	collection *firestore.CollectionRef
}

func NewFirestoreBookingStore(client *firestore.Client) BookingStore {
	return &firestoreBookingStore{client: client, collection: client.Collection(CollectionName)}
}

func isNotFound(err error) bool {
	return status.Code(err) == codes.NotFound
}

func decodeSnapshot(snap *firestore.DocumentSnapshot) (*model.Booking, error) {
	var b model.Booking
	if err := snap.DataTo(&b); err != nil {
		return nil, fmt.Errorf("failed to decode booking %s: %w", snap.Ref.ID, err)
	}
	b.ID = snap.Ref.ID
	return &b, nil
}

func toUpdates(fields map[string]any) []firestore.Update {
	updates := make([]firestore.Update, 0, len(fields))
	for path, value := range fields {
		updates = append(updates, firestore.Update{Path: path, Value: value})
	}
	return updates
}

func (r *firestoreBookingStore) Create(ctx context.Context, booking *model.Booking) (string, error) {
	ref, _, err := r.collection.Add(ctx, booking)
	if err != nil {
		return "", fmt.Errorf("failed to create booking: %w", err)
	}
	booking.ID = ref.ID
	return ref.ID, nil
}

func (r *firestoreBookingStore) Get(ctx context.Context, id string) (*model.Booking, error) {
	if id == "" {
		return nil, bookingserrors.ErrInvalidID
	}
	snap, err := r.collection.Doc(id).Get(ctx)
	if err != nil {
		if isNotFound(err) {
			return nil, bookingserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find booking: %w", err)
	}
	return decodeSnapshot(snap)
}

func (r *firestoreBookingStore) Update(ctx context.Context, id string, patch model.BookingPatch) (*model.Booking, error) {
	if id == "" {
		return nil, bookingserrors.ErrInvalidID
	}
	if _, err := r.collection.Doc(id).Update(ctx, toUpdates(patch.Fields())); err != nil {
		if isNotFound(err) {
			return nil, bookingserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to update booking: %w", err)
	}
	return r.Get(ctx, id)
}

func (r *firestoreBookingStore) List(ctx context.Context, pred Predicate) ([]*model.Booking, error) {
	q := r.collection.OrderBy(model.FieldCreatedAt, firestore.Desc)
	return r.collect(ctx, q.Documents(ctx), pred)
}

func (r *firestoreBookingStore) FindByField(ctx context.Context, field, value string) ([]*model.Booking, error) {
	if _, ok := (&model.Booking{}).FieldValue(field); !ok {
		return nil, fmt.Errorf("%w: %s", bookingserrors.ErrUnsupportedField, field)
	}
	if field == model.FieldID {
		b, err := r.Get(ctx, value)
		if errors.Is(err, bookingserrors.ErrNotFound) || errors.Is(err, bookingserrors.ErrInvalidID) {
			return []*model.Booking{}, nil
		}
		if err != nil {
			return nil, err
		}
		return []*model.Booking{b}, nil
	}
	bookings, err := r.collect(ctx, r.collection.Where(field, "==", value).Documents(ctx), nil)
	if err != nil {
		return nil, err
	}
	model.SortNewestFirst(bookings)
	return bookings, nil
}

func (r *firestoreBookingStore) collect(ctx context.Context, it *firestore.DocumentIterator, pred Predicate) ([]*model.Booking, error) {
	defer it.Stop()

	bookings := make([]*model.Booking, 0)
	for {
		snap, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to iterate bookings: %w", err)
		}
		b, err := decodeSnapshot(snap)
		if err != nil {
			return nil, err
		}
		if matches(pred, b) {
			bookings = append(bookings, b)
		}
	}
	return bookings, nil
}

func (r *firestoreBookingStore) ApplyPaymentResult(ctx context.Context, id string, result model.PaymentResult) (bool, error) {
	if id == "" {
		return false, bookingserrors.ErrInvalidID
	}
	ref := r.collection.Doc(id)
	applied := false
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		applied = false
		snap, err := tx.Get(ref)
		if err != nil {
			return err
		}
		current, err := snap.DataAt(model.FieldPaymentStatus)
		if err != nil {
			return err
		}
		if current != string(model.PaymentPending) {
			return nil
		}
		applied = true
		return tx.Update(ref, toUpdates(result.Fields()))
	})
	if err != nil {
		if isNotFound(err) {
			return false, bookingserrors.ErrNotFound
		}
		return false, fmt.Errorf("failed to apply payment result: %w", err)
	}
	return applied, nil
}

func (r *firestoreBookingStore) TransitionStatus(ctx context.Context, id string, change model.StatusChange) error {
	if id == "" {
		return bookingserrors.ErrInvalidID
	}
	ref := r.collection.Doc(id)
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil {
			return err
		}
		current, err := snap.DataAt(model.FieldBookingStatus)
		if err != nil {
			return err
		}
		if current != string(change.From) {
			return bookingserrors.ErrStatusChanged
		}
		return tx.Update(ref, toUpdates(change.Fields()))
	})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, bookingserrors.ErrStatusChanged):
		return err
	case isNotFound(err):
		return bookingserrors.ErrNotFound
	default:
		return fmt.Errorf("failed to transition booking status: %w", err)
	}
}

func (r *firestoreBookingStore) Ping(ctx context.Context) error {
	it := r.collection.Limit(1).Documents(ctx)
	defer it.Stop()
	if _, err := it.Next(); err != nil && !errors.Is(err, iterator.Done) {
		return err
	}
	return nil
}
