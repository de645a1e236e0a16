package handler

import (
	"net/http"

	"geranium/internal/bookings/service"
	httputil "geranium/pkg/http"
	"geranium/pkg/logger"
	"geranium/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type BookingHandler struct {
	service      service.BookingService
	requireAdmin func(httprouter.Handle) httprouter.Handle
	log          *logger.Logger
}

type CreateBookingResponse struct {
	BookingID string         `json:"bookingId"`
	Booking   *model.Booking `json:"booking"`
}

type PaymentStatusResponse struct {
	Status  model.PaymentStatus `json:"status"`
	Booking *model.Booking      `json:"booking"`
}

type BookingsResponse struct {
	Bookings []*model.Booking `json:"bookings"`
}

type BookingResponse struct {
	Booking *model.Booking `json:"booking"`
}

// NewBookingHandler wires the public booking routes. requireAdmin guards
// the admin-only list and edit routes.
func NewBookingHandler(
	service service.BookingService,
	requireAdmin func(httprouter.Handle) httprouter.Handle,
	log *logger.Logger,
) *BookingHandler {
	return &BookingHandler{
		service:      service,
		requireAdmin: requireAdmin,
		log:          log,
	}
}

func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req model.BookingRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(w, "Create", err)
		return
	}

	booking, err := h.service.Create(r.Context(), &req)
	if err != nil {
		h.writeError(w, "Create", err)
		return
	}

	if err := httputil.WriteCreated(w, CreateBookingResponse{BookingID: booking.ID, Booking: booking}); err != nil {
		h.log.Error("failed to write created response", "handler", "Create", "operation", "WriteCreated", "error", err)
	}
}

func (h *BookingHandler) PaymentStatus(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	booking, err := h.service.GetByID(r.Context(), ps.ByName("id"))
	if err != nil {
		h.writeError(w, "PaymentStatus", err)
		return
	}

	if err := httputil.WriteSuccess(w, PaymentStatusResponse{Status: booking.PaymentStatus, Booking: booking}); err != nil {
		h.log.Error("failed to write success response", "handler", "PaymentStatus", "operation", "WriteSuccess", "error", err)
	}
}

func (h *BookingHandler) GetAll(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	bookings, err := h.service.GetAll(r.Context())
	if err != nil {
		h.writeError(w, "GetAll", err)
		return
	}

	if err := httputil.WriteSuccess(w, BookingsResponse{Bookings: bookings}); err != nil {
		h.log.Error("failed to write success response", "handler", "GetAll", "operation", "WriteSuccess", "error", err)
	}
}

func (h *BookingHandler) Update(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var update model.BookingUpdate
	if err := httputil.DecodeJSON(r, &update); err != nil {
		h.writeError(w, "Update", err)
		return
	}

	booking, err := h.service.Update(r.Context(), ps.ByName("id"), &update)
	if err != nil {
		h.writeError(w, "Update", err)
		return
	}

	if err := httputil.WriteSuccess(w, BookingResponse{Booking: booking}); err != nil {
		h.log.Error("failed to write success response", "handler", "Update", "operation", "WriteSuccess", "error", err)
	}
}

func (h *BookingHandler) writeError(w http.ResponseWriter, handler string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
	}
}

func (h *BookingHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/bookings", h.Create)
	router.GET("/api/bookings/:id/payment-status", h.PaymentStatus)
	router.GET("/api/bookings", h.requireAdmin(h.GetAll))
	router.PATCH("/api/bookings/:id", h.requireAdmin(h.Update))
}
