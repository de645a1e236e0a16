package handler

import (
	"errors"
	"io"
	"net/http"

	"geranium/internal/payments/card"
	"geranium/internal/payments/mpesa"
	"geranium/internal/payments/service"
	apperrors "geranium/pkg/errors"
	httputil "geranium/pkg/http"
	"geranium/pkg/logger"

	"github.com/julienschmidt/httprouter"
)

const stripeSignatureHeader = "Stripe-Signature"

type PaymentHandler struct {
	service service.PaymentService
	log     *logger.Logger
}

type CreateIntentResponse struct {
	ClientSecret    string `json:"clientSecret"`
	PaymentIntentID string `json:"paymentIntentId"`
}

type PushResponse struct {
	Success           bool   `json:"success"`
	CheckoutRequestID string `json:"checkoutRequestId"`
	MerchantRequestID string `json:"merchantRequestId"`
	CustomerMessage   string `json:"customerMessage,omitempty"`
}

// CallbackAck is the only answer Daraja ever gets.
type CallbackAck struct {
	ResultCode int    `json:"ResultCode"`
	ResultDesc string `json:"ResultDesc"`
}

type WebhookAck struct {
	Received bool `json:"received"`
}

type WebhookError struct {
	Error string `json:"error"`
}

func NewPaymentHandler(service service.PaymentService, log *logger.Logger) *PaymentHandler {
	return &PaymentHandler{service: service, log: log}
}

func (h *PaymentHandler) CreateIntent(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req service.CardIntentRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(w, "CreateIntent", err)
		return
	}

	intent, err := h.service.CreateCardIntent(r.Context(), &req)
	if err != nil {
		h.writeError(w, "CreateIntent", err)
		return
	}

	resp := CreateIntentResponse{ClientSecret: intent.ClientSecret, PaymentIntentID: intent.ID}
	if err := httputil.WriteSuccess(w, resp); err != nil {
		h.log.Error("failed to write success response", "handler", "CreateIntent", "operation", "WriteSuccess", "error", err)
	}
}

func (h *PaymentHandler) StripeWebhook(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		h.writeError(w, "StripeWebhook", apperrors.InvalidInput("Failed to read request body"))
		return
	}

	err = h.service.HandleStripeWebhook(r.Context(), payload, r.Header.Get(stripeSignatureHeader))
	if errors.Is(err, card.ErrInvalidEvent) {
		if writeErr := httputil.WriteJSON(w, http.StatusBadRequest, WebhookError{Error: "Webhook error: " + err.Error()}); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "StripeWebhook", "operation", "WriteJSON", "error", writeErr)
		}
		return
	}
	if err != nil {
		h.log.Error("Stripe webhook processing failed, acknowledging", "error", err)
	}

	if err := httputil.WriteSuccess(w, WebhookAck{Received: true}); err != nil {
		h.log.Error("failed to write success response", "handler", "StripeWebhook", "operation", "WriteSuccess", "error", err)
	}
}

func (h *PaymentHandler) StkPush(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req service.PushRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(w, "StkPush", err)
		return
	}

	resp, err := h.service.InitiatePush(r.Context(), &req)
	if err != nil {
		h.writeError(w, "StkPush", err)
		return
	}

	out := PushResponse{
		Success:           true,
		CheckoutRequestID: resp.CheckoutRequestID,
		MerchantRequestID: resp.MerchantRequestID,
		CustomerMessage:   resp.CustomerMessage,
	}
	if err := httputil.WriteSuccess(w, out); err != nil {
		h.log.Error("failed to write success response", "handler", "StkPush", "operation", "WriteSuccess", "error", err)
	}
}

func (h *PaymentHandler) MpesaCallback(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.log.Warn("Failed to read M-Pesa callback body", "error", err)
	} else {
		h.service.HandleMpesaCallback(r.Context(), body)
	}

	if err := httputil.WriteSuccess(w, CallbackAck{ResultCode: 0, ResultDesc: "Accepted"}); err != nil {
		h.log.Error("failed to write success response", "handler", "MpesaCallback", "operation", "WriteSuccess", "error", err)
	}
}

func (h *PaymentHandler) Query(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	resp, err := h.service.QueryPush(r.Context(), ps.ByName("checkoutRequestId"))
	if err != nil {
		h.writeError(w, "Query", err)
		return
	}

	if err := httputil.WriteSuccess(w, resp); err != nil {
		h.log.Error("failed to write success response", "handler", "Query", "operation", "WriteSuccess", "error", err)
	}
}

func (h *PaymentHandler) writeError(w http.ResponseWriter, handler string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
	}
}

func (h *PaymentHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/payments/stripe/create-intent", h.CreateIntent)
	router.POST("/api/payments/stripe/webhook", h.StripeWebhook)
	router.POST("/api/payments/mpesa/stk-push", h.StkPush)
	router.POST(mpesa.CallbackPath, h.MpesaCallback)
	router.GET("/api/payments/mpesa/query/:checkoutRequestId", h.Query)
}
