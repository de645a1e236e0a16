package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	bookingserrors "geranium/internal/bookings/errors"
	"geranium/pkg/config"
	"geranium/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type mongoBookingStore struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoBookingStore(cfg *config.Config) BookingStore {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoBookingStore{
		cfg:        cfg,
		collection: db.Collection(CollectionName),
	}
}

// withTimeout bounds ctx by timeout unless the caller's deadline is sooner.
func (r *mongoBookingStore) withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < timeout {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

func objectID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("%w: %s", bookingserrors.ErrInvalidID, id)
	}
	return oid, nil
}

func (r *mongoBookingStore) Create(ctx context.Context, booking *model.Booking) (string, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	doc := booking.Clone()
	doc.ID = ""
	result, err := r.collection.InsertOne(ctx, doc)
	if err != nil {
		return "", fmt.Errorf("failed to create booking: %w", err)
	}

	oid, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return "", fmt.Errorf("unexpected inserted id type %T", result.InsertedID)
	}
	booking.ID = oid.Hex()
	return booking.ID, nil
}

func (r *mongoBookingStore) Get(ctx context.Context, id string) (*model.Booking, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}

	var booking model.Booking
	if err := r.collection.FindOne(ctx, bson.M{"_id": oid}).Decode(&booking); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, bookingserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find booking: %w", err)
	}
	return &booking, nil
}

func (r *mongoBookingStore) Update(ctx context.Context, id string, patch model.BookingPatch) (*model.Booking, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var booking model.Booking
	err = r.collection.FindOneAndUpdate(ctx, bson.M{"_id": oid}, bson.M{"$set": patch.Fields()}, opts).Decode(&booking)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, bookingserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to update booking: %w", err)
	}
	return &booking, nil
}

func (r *mongoBookingStore) List(ctx context.Context, pred Predicate) ([]*model.Booking, error) {
	return r.find(ctx, bson.M{}, pred)
}

func (r *mongoBookingStore) FindByField(ctx context.Context, field, value string) ([]*model.Booking, error) {
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
	return r.find(ctx, bson.M{field: value}, nil)
}

func (r *mongoBookingStore) find(ctx context.Context, filter bson.M, pred Predicate) ([]*model.Booking, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: model.FieldCreatedAt, Value: -1}})
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find bookings: %w", err)
	}
	defer cursor.Close(ctx)

	bookings := make([]*model.Booking, 0)
	for cursor.Next(ctx) {
		var b model.Booking
		if err := cursor.Decode(&b); err != nil {
			return nil, fmt.Errorf("failed to decode booking: %w", err)
		}
		if matches(pred, &b) {
			bookings = append(bookings, &b)
		}
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate bookings: %w", err)
	}
	return bookings, nil
}

func (r *mongoBookingStore) ApplyPaymentResult(ctx context.Context, id string, result model.PaymentResult) (bool, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	oid, err := objectID(id)
	if err != nil {
		return false, err
	}

	filter := bson.M{"_id": oid, model.FieldPaymentStatus: string(model.PaymentPending)}
	res, err := r.collection.UpdateOne(ctx, filter, bson.M{"$set": result.Fields()})
	if err != nil {
		return false, fmt.Errorf("failed to apply payment result: %w", err)
	}
	if res.MatchedCount == 1 {
		return true, nil
	}
	return false, r.exists(ctx, oid)
}

func (r *mongoBookingStore) TransitionStatus(ctx context.Context, id string, change model.StatusChange) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	oid, err := objectID(id)
	if err != nil {
		return err
	}

	filter := bson.M{"_id": oid, model.FieldBookingStatus: string(change.From)}
	res, err := r.collection.UpdateOne(ctx, filter, bson.M{"$set": change.Fields()})
	if err != nil {
		return fmt.Errorf("failed to transition booking status: %w", err)
	}
	if res.MatchedCount == 1 {
		return nil
	}
	if err := r.exists(ctx, oid); err != nil {
		return err
	}
	return bookingserrors.ErrStatusChanged
}

// exists distinguishes a missing booking from a failed compare-and-swap.
func (r *mongoBookingStore) exists(ctx context.Context, oid primitive.ObjectID) error {
	n, err := r.collection.CountDocuments(ctx, bson.M{"_id": oid}, options.Count().SetLimit(1))
	if err != nil {
		return fmt.Errorf("failed to check booking: %w", err)
	}
	if n == 0 {
		return bookingserrors.ErrNotFound
	}
	return nil
}

func (r *mongoBookingStore) Ping(ctx context.Context) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()
	return r.collection.Database().Client().Ping(ctx, nil)
}
