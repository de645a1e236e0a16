package card

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"geranium/pkg/logger"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
)

const (
	DefaultCurrency = "kes"

	EventIntentSucceeded = string(stripe.EventTypePaymentIntentSucceeded)
	EventIntentFailed    = string(stripe.EventTypePaymentIntentPaymentFailed)

	metadataCustomerName = "customerName"
	metadataBookingID    = "bookingId"
)

// ErrInvalidEvent marks a webhook payload that failed verification or
// could not be decoded.
var ErrInvalidEvent = errors.New("invalid webhook event")

type IntentParams struct {
	Amount        int64 // minor units
	Currency      string
	CustomerEmail string
	CustomerName  string
	BookingID     string
}

type Intent struct {
	ID           string
	ClientSecret string
}

// Event is the part of a payment_intent.* webhook the service acts on.
type Event struct {
	ID              string
	Type            string
	PaymentIntentID string
	BookingID       string
	FailureMessage  string
}

type Gateway interface {
	CreateIntent(ctx context.Context, params IntentParams) (*Intent, error)
	ParseEvent(payload []byte, signature string) (*Event, error)
}

type intentCreator interface {
	Create(ctx context.Context, params *stripe.PaymentIntentCreateParams) (*stripe.PaymentIntent, error)
}

type stripeGateway struct {
	intents       intentCreator
	webhookSecret string
	log           *logger.Logger
}

// NewStripeGateway verifies webhook signatures when webhookSecret is set.
// Without it events are decoded unsigned, which is only meant for local
// development.
func NewStripeGateway(secretKey, webhookSecret string, log *logger.Logger) Gateway {
	sc := stripe.NewClient(secretKey)
	return &stripeGateway{
		intents:       sc.V1PaymentIntents,
		webhookSecret: webhookSecret,
		log:           log,
	}
}

func (g *stripeGateway) CreateIntent(ctx context.Context, p IntentParams) (*Intent, error) {
	currency := p.Currency
	if currency == "" {
		currency = DefaultCurrency
	}

	params := &stripe.PaymentIntentCreateParams{
		Amount:   stripe.Int64(p.Amount),
		Currency: stripe.String(currency),
		Metadata: map[string]string{metadataCustomerName: p.CustomerName},
		AutomaticPaymentMethods: &stripe.PaymentIntentCreateAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	if p.CustomerEmail != "" {
		params.ReceiptEmail = stripe.String(p.CustomerEmail)
	}
	if p.BookingID != "" {
		params.Metadata[metadataBookingID] = p.BookingID
	}

	pi, err := g.intents.Create(ctx, params)
	if err != nil {
		return nil, err
	}

	g.log.Info("Payment intent created",
		"payment_intent_id", pi.ID,
		"amount", p.Amount,
		"currency", currency,
		"booking_id", p.BookingID,
	)
	return &Intent{ID: pi.ID, ClientSecret: pi.ClientSecret}, nil
}

func (g *stripeGateway) ParseEvent(payload []byte, signature string) (*Event, error) {
	var event stripe.Event
	if g.webhookSecret != "" {
		verified, err := webhook.ConstructEventWithOptions(payload, signature, g.webhookSecret, webhook.ConstructEventOptions{
			IgnoreAPIVersionMismatch: true,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
		}
		event = verified
	} else {
		g.log.Warn("Stripe webhook secret not configured, accepting unsigned event")
		if err := json.Unmarshal(payload, &event); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
		}
	}

	return toEvent(event)
}

func toEvent(event stripe.Event) (*Event, error) {
	out := &Event{ID: event.ID, Type: string(event.Type)}
	if out.Type != EventIntentSucceeded && out.Type != EventIntentFailed {
		return out, nil
	}
	if event.Data == nil {
		return nil, fmt.Errorf("%w: missing data", ErrInvalidEvent)
	}

	var pi stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}
	out.PaymentIntentID = pi.ID
	out.BookingID = pi.Metadata[metadataBookingID]
	if pi.LastPaymentError != nil {
		out.FailureMessage = pi.LastPaymentError.Msg
	}
	return out, nil
}

