package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"geranium/internal/bookings/repository"
	"geranium/internal/migrations/mongo/validators"
	"geranium/pkg/logger"
	"geranium/pkg/model"
)

// Provider correlation ids are only set once a payment starts, so their
// indexes are sparse.
var BookingsIndexes = []mongo.IndexModel{
	{
		Keys:    bson.D{{Key: model.FieldPaymentIntentID, Value: 1}},
		Options: options.Index().SetSparse(true).SetName("paymentIntentId_1"),
	},
	{
		Keys:    bson.D{{Key: model.FieldMpesaCheckoutRequestID, Value: 1}},
		Options: options.Index().SetSparse(true).SetName("mpesaCheckoutRequestId_1"),
	},
	{Keys: bson.D{{Key: model.FieldEmail, Value: 1}}},
	{Keys: bson.D{{Key: model.FieldBookingStatus, Value: 1}}},
	{Keys: bson.D{{Key: model.FieldCreatedAt, Value: -1}}},
	{Keys: bson.D{
		{Key: model.FieldPaymentMethod, Value: 1},
		{Key: model.FieldPaymentStatus, Value: 1},
		{Key: model.FieldUpdatedAt, Value: 1},
	}},
}

type collectionDef struct {
	Indexes   []mongo.IndexModel
	Validator bson.M
}

func RunMigration(ctx context.Context, db *mongo.Database, log *logger.Logger) error {
	log.Info("Running Mongo migrations", "database", db.Name())

	collections := map[string]collectionDef{
		repository.CollectionName: {
			Indexes:   BookingsIndexes,
			Validator: validators.BookingValidator,
		},
	}

	for name, def := range collections {
		if err := ensureCollection(ctx, db, name, def.Validator, log); err != nil {
			return fmt.Errorf("failed to ensure collection %s: %w", name, err)
		}
		if err := ensureIndexes(ctx, db, name, def.Indexes, log); err != nil {
			return fmt.Errorf("failed to ensure indexes for %s: %w", name, err)
		}
	}

	log.Info("All migrations applied")
	return nil
}

func ensureCollection(ctx context.Context, db *mongo.Database, name string, validator bson.M, log *logger.Logger) error {
	existing, err := db.ListCollectionNames(ctx, bson.D{{Key: "name", Value: name}})
	if err != nil {
		return err
	}

	if len(existing) == 0 {
		log.Info("Creating collection", "collection", name)
		opts := options.CreateCollection().SetValidator(validator)
		if err := db.CreateCollection(ctx, name, opts); err != nil {
			return fmt.Errorf("failed creating %s: %w", name, err)
		}
		return nil
	}

	log.Info("Collection exists, updating validator", "collection", name)
	command := bson.D{
		{Key: "collMod", Value: name},
		{Key: "validator", Value: validator},
	}
	if err := db.RunCommand(ctx, command).Err(); err != nil {
		log.Warn("Failed updating validator", "collection", name, "error", err)
	}
	return nil
}

func ensureIndexes(ctx context.Context, db *mongo.Database, name string, models []mongo.IndexModel, log *logger.Logger) error {
	coll := db.Collection(name)
	created, err := coll.Indexes().CreateMany(ctx, models)
	if err != nil {
		return err
	}
	log.Info("Ensured indexes", "collection", name, "indexes", created)
	return nil
}
