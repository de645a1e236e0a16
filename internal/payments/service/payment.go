package service

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	bookingserrors "geranium/internal/bookings/errors"
	"geranium/internal/bookings/repository"
	"geranium/internal/notifications"
	"geranium/internal/payments/card"
	"geranium/internal/payments/mpesa"
	"geranium/pkg/config"
	apperrors "geranium/pkg/errors"
	"geranium/pkg/model"
	"geranium/pkg/sanitizer"
)

// MinCardAmount is Stripe's minimum charge in minor units.
const MinCardAmount = 50

const pushDescription = "Geranium Seat Cleaning"

type CardIntentRequest struct {
	Amount        float64 `json:"amount"`
	Currency      string  `json:"currency"`
	CustomerEmail string  `json:"customerEmail"`
	CustomerName  string  `json:"customerName"`
	BookingID     string  `json:"bookingId"`
}

type PushRequest struct {
	BookingID string   `json:"bookingId"`
	Phone     string   `json:"phone"`
	Amount    *float64 `json:"amount,omitempty"`
}

// ReconcileReport summarises one pass over stale M-Pesa payments.
type ReconcileReport struct {
	Checked int
	Failed  int
	Pending int
	Errors  int
}

// MpesaGateway is the subset of the Daraja client the service uses.
type MpesaGateway interface {
	InitiatePush(ctx context.Context, req mpesa.PushRequest) (*mpesa.PushResponse, error)
	Query(ctx context.Context, checkoutRequestID string) (*mpesa.QueryResponse, error)
}

type PaymentService interface {
	CreateCardIntent(ctx context.Context, req *CardIntentRequest) (*card.Intent, error)
	HandleStripeWebhook(ctx context.Context, payload []byte, signature string) error
	InitiatePush(ctx context.Context, req *PushRequest) (*mpesa.PushResponse, error)
	HandleMpesaCallback(ctx context.Context, body []byte)
	QueryPush(ctx context.Context, checkoutRequestID string) (*mpesa.QueryResponse, error)
	ReconcilePending(ctx context.Context) (ReconcileReport, error)
}

type paymentService struct {
	store    repository.BookingStore
	cards    card.Gateway
	mpesa    MpesaGateway
	notifier notifications.Submitter
	cfg      *config.Config
	now      func() time.Time
}

// NewPaymentService accepts nil gateways for providers that are not
// configured. Their operations then report the provider as unavailable.
func NewPaymentService(
	store repository.BookingStore,
	cards card.Gateway,
	mpesaGateway MpesaGateway,
	notifier notifications.Submitter,
	cfg *config.Config,
) PaymentService {
	return &paymentService{
		store:    store,
		cards:    cards,
		mpesa:    mpesaGateway,
		notifier: notifier,
		cfg:      cfg,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *paymentService) CreateCardIntent(ctx context.Context, req *CardIntentRequest) (*card.Intent, error) {
	if req == nil || req.Amount < MinCardAmount {
		return nil, apperrors.InvalidInput("Invalid amount")
	}
	if s.cards == nil {
		return nil, apperrors.Unavailable("Stripe")
	}

	var booking *model.Booking
	if id := strings.TrimSpace(req.BookingID); id != "" {
		b, err := s.store.Get(ctx, id)
		if err != nil {
			return nil, s.mapRepositoryError(err, id)
		}
		if b.PaymentStatus.IsSettled() {
			return nil, apperrors.Conflict("Booking payment already settled")
		}
		booking = b
	}

	currency := strings.ToLower(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = s.cfg.StripeCurrency
	}

	intent, err := s.cards.CreateIntent(ctx, card.IntentParams{
		Amount:        int64(math.Round(req.Amount)),
		Currency:      currency,
		CustomerEmail: sanitizer.NormalizeEmail(req.CustomerEmail),
		CustomerName:  sanitizer.TrimAndNormalize(req.CustomerName),
		BookingID:     strings.TrimSpace(req.BookingID),
	})
	if err != nil {
		s.cfg.Log.Error("Failed to create payment intent", "error", err)
		return nil, apperrors.Upstream("Stripe", err)
	}

	if booking != nil {
		patch := model.BookingPatch{PaymentIntentID: &intent.ID, UpdatedAt: s.now()}
		if _, err := s.store.Update(ctx, booking.ID, patch); err != nil {
			return nil, s.mapRepositoryError(err, booking.ID)
		}
	}
	return intent, nil
}

// HandleStripeWebhook returns an error only for payloads that fail
// verification (wrapping card.ErrInvalidEvent). Once an event is accepted,
// lookup and store failures are logged and the delivery is acknowledged.
func (s *paymentService) HandleStripeWebhook(ctx context.Context, payload []byte, signature string) error {
	if s.cards == nil {
		s.cfg.Log.Error("Stripe webhook received but Stripe is not configured", "body_size", len(payload))
		return nil
	}

	event, err := s.cards.ParseEvent(payload, signature)
	if err != nil {
		s.cfg.Log.Warn("Rejected Stripe webhook", "error", err)
		return err
	}

	var result model.PaymentResult
	switch event.Type {
	case card.EventIntentSucceeded:
		result = model.PaymentResult{Status: model.PaymentPaid, At: s.now()}
	case card.EventIntentFailed:
		result = model.PaymentResult{Status: model.PaymentFailed, At: s.now()}
	default:
		s.cfg.Log.Debug("Ignoring Stripe event", "event_id", event.ID, "type", event.Type)
		return nil
	}

	log := s.cfg.Log.With(
		"event_id", event.ID,
		"event_type", event.Type,
		"payment_intent_id", event.PaymentIntentID,
	)

	booking, err := s.bookingForIntent(ctx, event)
	if err != nil {
		log.Error("Failed to look up booking for Stripe event", "error", err)
		return nil
	}
	if booking == nil {
		log.Warn("No booking for payment intent")
		return nil
	}

	applied, err := s.store.ApplyPaymentResult(ctx, booking.ID, result)
	if err != nil {
		log.Error("Failed to record Stripe result", "booking_id", booking.ID, "error", err)
		return nil
	}

	s.logPaymentResult(booking.ID, result, applied, "payment_intent_id", event.PaymentIntentID, "failure", event.FailureMessage)
	s.confirm(booking, result, applied)
	return nil
}

func (s *paymentService) bookingForIntent(ctx context.Context, event *card.Event) (*model.Booking, error) {
	if event.PaymentIntentID != "" {
		matches, err := s.store.FindByField(ctx, model.FieldPaymentIntentID, event.PaymentIntentID)
		if err != nil {
			return nil, s.mapRepositoryError(err, event.PaymentIntentID)
		}
		if len(matches) > 0 {
			return matches[0], nil
		}
	}

	// Intents created before the booking existed only carry the id in metadata.
	if event.BookingID == "" {
		return nil, nil
	}
	booking, err := s.store.Get(ctx, event.BookingID)
	if errors.Is(err, bookingserrors.ErrNotFound) || errors.Is(err, bookingserrors.ErrInvalidID) {
		return nil, nil
	}
	if err != nil {
		return nil, s.mapRepositoryError(err, event.BookingID)
	}
	return booking, nil
}

func (s *paymentService) InitiatePush(ctx context.Context, req *PushRequest) (*mpesa.PushResponse, error) {
	if req == nil || strings.TrimSpace(req.BookingID) == "" || strings.TrimSpace(req.Phone) == "" {
		return nil, apperrors.InvalidInput("bookingId and phone are required")
	}
	if !sanitizer.IsValidPhone(req.Phone) {
		return nil, apperrors.Validation("Invalid phone number", map[string]any{
			"phone": "must be a valid Kenyan mobile number",
		})
	}
	if s.mpesa == nil {
		return nil, apperrors.Unavailable("M-Pesa")
	}

	id := strings.TrimSpace(req.BookingID)
	booking, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, s.mapRepositoryError(err, id)
	}
	if booking.PaymentStatus.IsSettled() {
		return nil, apperrors.Conflict("Booking payment already settled").WithDetails(map[string]any{
			"paymentStatus": booking.PaymentStatus,
		})
	}

	amount := booking.Total
	if req.Amount != nil {
		amount = *req.Amount
	}
	if amount <= 0 {
		return nil, apperrors.InvalidInput("Invalid amount")
	}

	if booking.MpesaCheckoutRequestID != "" {
		s.cfg.Log.Warn("Replacing outstanding M-Pesa checkout, callbacks for it will be ignored",
			"booking_id", booking.ID,
			"previous_checkout_request_id", booking.MpesaCheckoutRequestID,
		)
	}

	resp, err := s.mpesa.InitiatePush(ctx, mpesa.PushRequest{
		Phone:       req.Phone,
		Amount:      amount,
		BookingID:   booking.ID,
		Description: pushDescription,
	})
	if err != nil {
		s.cfg.Log.Error("M-Pesa STK push failed", "booking_id", booking.ID, "error", err)
		return nil, apperrors.Upstream("M-Pesa", err)
	}

	patch := model.BookingPatch{
		MpesaCheckoutRequestID: &resp.CheckoutRequestID,
		MpesaMerchantRequestID: &resp.MerchantRequestID,
		UpdatedAt:              s.now(),
	}
	if _, err := s.store.Update(ctx, booking.ID, patch); err != nil {
		return nil, s.mapRepositoryError(err, booking.ID)
	}
	return resp, nil
}

// HandleMpesaCallback never fails: Daraja retries any non-success answer,
// and a retried callback cannot fix a payload this service rejected.
func (s *paymentService) HandleMpesaCallback(ctx context.Context, body []byte) {
	cb, ok := mpesa.ParseCallback(body)
	if !ok {
		s.cfg.Log.Warn("M-Pesa callback without stkCallback", "body_size", len(body))
		return
	}

	log := s.cfg.Log.With(
		"checkout_request_id", cb.CheckoutRequestID,
		"result_code", cb.ResultCode,
	)
	if cb.CheckoutRequestID == "" {
		log.Warn("M-Pesa callback without CheckoutRequestID")
		return
	}

	matches, err := s.store.FindByField(ctx, model.FieldMpesaCheckoutRequestID, cb.CheckoutRequestID)
	if err != nil {
		log.Error("Failed to look up booking for M-Pesa callback", "error", err)
		return
	}
	if len(matches) == 0 {
		log.Warn("No booking for M-Pesa callback")
		return
	}
	booking := matches[0]

	result, ok := cb.Result(s.now())
	if !ok {
		log.Error("Successful M-Pesa callback missing receipt metadata, booking left pending",
			"booking_id", booking.ID,
			"missing", strings.Join(cb.MissingReceiptFields(), ","),
		)
		return
	}

	applied, err := s.store.ApplyPaymentResult(ctx, booking.ID, result)
	if err != nil {
		log.Error("Failed to record M-Pesa result", "booking_id", booking.ID, "error", err)
		return
	}

	s.logPaymentResult(booking.ID, result, applied, "checkout_request_id", cb.CheckoutRequestID, "receipt", result.ReceiptNumber)
	s.confirm(booking, result, applied)
}

func (s *paymentService) QueryPush(ctx context.Context, checkoutRequestID string) (*mpesa.QueryResponse, error) {
	checkoutRequestID = strings.TrimSpace(checkoutRequestID)
	if checkoutRequestID == "" {
		return nil, apperrors.InvalidInput("checkoutRequestId is required")
	}
	if s.mpesa == nil {
		return nil, apperrors.Unavailable("M-Pesa")
	}

	q, err := s.mpesa.Query(ctx, checkoutRequestID)
	if err != nil {
		return nil, apperrors.Upstream("M-Pesa", err)
	}

	if _, err := s.applyQueryResult(ctx, q, checkoutRequestID); err != nil {
		return nil, err
	}
	return q, nil
}

func (s *paymentService) applyQueryResult(ctx context.Context, q *mpesa.QueryResponse, checkoutRequestID string) (bool, error) {
	result, ok := mpesa.QueryResult(q, s.now())
	if !ok {
		return false, nil
	}

	matches, err := s.store.FindByField(ctx, model.FieldMpesaCheckoutRequestID, checkoutRequestID)
	if err != nil {
		return false, s.mapRepositoryError(err, checkoutRequestID)
	}
	if len(matches) == 0 {
		return false, nil
	}

	booking := matches[0]
	applied, err := s.store.ApplyPaymentResult(ctx, booking.ID, result)
	if err != nil {
		return false, s.mapRepositoryError(err, booking.ID)
	}
	s.logPaymentResult(booking.ID, result, applied, "checkout_request_id", checkoutRequestID, "source", "query")
	return applied, nil
}

// ReconcilePending queries Daraja for M-Pesa payments that have been
// pending longer than ReconcileAfter.
func (s *paymentService) ReconcilePending(ctx context.Context) (ReconcileReport, error) {
	var report ReconcileReport
	if s.mpesa == nil {
		return report, nil
	}

	cutoff := s.now().Add(-s.cfg.ReconcileAfter)
	stale, err := s.store.List(ctx, func(b *model.Booking) bool {
		return b.PaymentMethod == model.PaymentMpesa &&
			b.PaymentStatus == model.PaymentPending &&
			b.MpesaCheckoutRequestID != "" &&
			b.UpdatedAt.Before(cutoff)
	})
	if err != nil {
		return report, s.mapRepositoryError(err, "")
	}

	for _, booking := range stale {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		report.Checked++

		q, err := s.mpesa.Query(ctx, booking.MpesaCheckoutRequestID)
		if err != nil {
			var apiErr *mpesa.APIError
			if errors.As(err, &apiErr) && mpesa.IsStillProcessing(apiErr) {
				report.Pending++
				continue
			}
			report.Errors++
			s.cfg.Log.Warn("M-Pesa reconcile query failed", "booking_id", booking.ID, "error", err)
			continue
		}

		applied, err := s.applyQueryResult(ctx, q, booking.MpesaCheckoutRequestID)
		switch {
		case err != nil:
			report.Errors++
		case applied:
			report.Failed++
		default:
			report.Pending++
		}
	}
	return report, nil
}

func (s *paymentService) confirm(booking *model.Booking, result model.PaymentResult, applied bool) {
	if !applied || result.Status != model.PaymentPaid {
		return
	}
	updated := booking.Clone()
	result.Apply(updated)
	s.notifier.Submit(notifications.New(notifications.KindPaymentConfirmed, updated))
}

func (s *paymentService) logPaymentResult(id string, result model.PaymentResult, applied bool, attrs ...any) {
	args := append([]any{"booking_id", id, "status", result.Status}, attrs...)
	if !applied {
		s.cfg.Log.Info("Payment already settled, result ignored", args...)
		return
	}
	s.cfg.Log.Info("Payment result recorded", args...)
}

func (s *paymentService) mapRepositoryError(err error, id string) error {
	switch {
	case errors.Is(err, bookingserrors.ErrNotFound), errors.Is(err, bookingserrors.ErrInvalidID):
		return apperrors.NotFoundWithID("Booking", id)
	case errors.Is(err, bookingserrors.ErrPaymentSettled):
		return apperrors.Conflict("Booking payment already settled")
	default:
		s.cfg.Log.Error("Booking store failure", "id", id, "error", err)
		return apperrors.Internal("Failed to access booking", err)
	}
}
