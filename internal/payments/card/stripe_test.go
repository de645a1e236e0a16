package card

import (
	"context"
	"errors"
	"testing"
	"time"

	"geranium/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
)

const succeededEvent = `{
	"id": "evt_1",
	"object": "event",
	"type": "payment_intent.succeeded",
	"data": {"object": {"id": "pi_1", "object": "payment_intent", "metadata": {"bookingId": "b1", "customerName": "Achieng"}}}
}`

type mockIntents struct {
	createFunc func(ctx context.Context, params *stripe.PaymentIntentCreateParams) (*stripe.PaymentIntent, error)
}

func (m *mockIntents) Create(ctx context.Context, params *stripe.PaymentIntentCreateParams) (*stripe.PaymentIntent, error) {
	return m.createFunc(ctx, params)
}

func TestParseEvent_Unsigned(t *testing.T) {
	g := NewStripeGateway("sk_test_x", "", logger.Discard())

	event, err := g.ParseEvent([]byte(succeededEvent), "")
	require.NoError(t, err)
	assert.Equal(t, EventIntentSucceeded, event.Type)
	assert.Equal(t, "pi_1", event.PaymentIntentID)
	assert.Equal(t, "b1", event.BookingID)

	_, err = g.ParseEvent([]byte(`{not json`), "")
	assert.True(t, errors.Is(err, ErrInvalidEvent))
}

func TestParseEvent_Signed(t *testing.T) {
	const secret = "whsec_test"
	g := NewStripeGateway("sk_test_x", secret, logger.Discard())

	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   []byte(succeededEvent),
		Secret:    secret,
		Timestamp: time.Now(),
	})

	event, err := g.ParseEvent(signed.Payload, signed.Header)
	require.NoError(t, err)
	assert.Equal(t, "pi_1", event.PaymentIntentID)

	_, err = g.ParseEvent(signed.Payload, "t=1,v1=deadbeef")
	assert.True(t, errors.Is(err, ErrInvalidEvent))
}

func TestParseEvent_OtherTypes(t *testing.T) {
	g := NewStripeGateway("sk_test_x", "", logger.Discard())

	event, err := g.ParseEvent([]byte(`{"id":"evt_2","type":"charge.refunded","data":{"object":{"id":"ch_1"}}}`), "")
	require.NoError(t, err)
	assert.Equal(t, "charge.refunded", event.Type)
	assert.Empty(t, event.PaymentIntentID)
}

func TestCreateIntent_Params(t *testing.T) {
	var got *stripe.PaymentIntentCreateParams
	g := &stripeGateway{
		intents: &mockIntents{createFunc: func(_ context.Context, p *stripe.PaymentIntentCreateParams) (*stripe.PaymentIntent, error) {
			got = p
			return &stripe.PaymentIntent{ID: "pi_9", ClientSecret: "pi_9_secret"}, nil
		}},
		log: logger.Discard(),
	}

	intent, err := g.CreateIntent(context.Background(), IntentParams{
		Amount:        140000,
		CustomerEmail: "a@b.co",
		CustomerName:  "Achieng",
		BookingID:     "b1",
	})
	require.NoError(t, err)
	assert.Equal(t, "pi_9_secret", intent.ClientSecret)
	assert.Equal(t, int64(140000), *got.Amount)
	assert.Equal(t, DefaultCurrency, *got.Currency)
	assert.Equal(t, "a@b.co", *got.ReceiptEmail)
	assert.Equal(t, "b1", got.Metadata["bookingId"])
	assert.Equal(t, "Achieng", got.Metadata["customerName"])
	assert.True(t, *got.AutomaticPaymentMethods.Enabled)
}
