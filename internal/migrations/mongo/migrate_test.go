package mongo

import (
	"testing"

	"geranium/internal/migrations/mongo/validators"
	"geranium/pkg/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

func TestBookingsIndexes(t *testing.T) {
	leading := map[string]any{}
	for _, idx := range BookingsIndexes {
		keys, ok := idx.Keys.(bson.D)
		require.True(t, ok)
		require.NotEmpty(t, keys)
		leading[keys[0].Key] = keys[0].Value
	}

	for _, field := range []string{
		model.FieldPaymentIntentID,
		model.FieldMpesaCheckoutRequestID,
		model.FieldEmail,
		model.FieldBookingStatus,
		model.FieldCreatedAt,
		model.FieldPaymentMethod,
	} {
		assert.Contains(t, leading, field)
	}
	assert.Equal(t, -1, leading[model.FieldCreatedAt], "newest first")
}

func TestBookingValidator_MatchesModel(t *testing.T) {
	schema, ok := validators.BookingValidator["$jsonSchema"].(bson.M)
	require.True(t, ok)
	props := schema["properties"].(bson.M)

	enum := func(field string) []string {
		return props[field].(bson.M)["enum"].([]string)
	}

	assert.ElementsMatch(t, []string{
		string(model.ServiceSeats), string(model.ServiceMattress), string(model.ServiceBedFrame),
	}, enum("serviceType"))
	assert.ElementsMatch(t, []string{
		string(model.PaymentMpesa), string(model.PaymentCard), string(model.PaymentOnService),
	}, enum(model.FieldPaymentMethod))
	assert.Len(t, enum(model.FieldPaymentStatus), 3)
	assert.Len(t, enum(model.FieldBookingStatus), 4)

	required := schema["required"].([]string)
	for _, field := range []string{model.FieldPaymentStatus, model.FieldBookingStatus, model.FieldCreatedAt} {
		assert.Contains(t, required, field)
	}
}
