package handler

import (
	"net/http"

	"geranium/internal/admin/auth"
	"geranium/internal/admin/service"
	httputil "geranium/pkg/http"
	"geranium/pkg/logger"
	"geranium/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type AdminHandler struct {
	service service.AdminService
	auth    *auth.Authenticator
	log     *logger.Logger
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token   string `json:"token"`
	Message string `json:"message"`
}

type ClientsResponse struct {
	Clients []model.Client `json:"clients"`
}

type BookingResponse struct {
	Booking *model.Booking `json:"booking"`
}

func NewAdminHandler(service service.AdminService, authenticator *auth.Authenticator, log *logger.Logger) *AdminHandler {
	return &AdminHandler{
		service: service,
		auth:    authenticator,
		log:     log,
	}
}

func (h *AdminHandler) Login(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req LoginRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(w, "Login", err)
		return
	}

	token, err := h.auth.Login(req.Email, req.Password)
	if err != nil {
		h.writeError(w, "Login", err)
		return
	}

	if err := httputil.WriteSuccess(w, LoginResponse{Token: token, Message: "Login successful"}); err != nil {
		h.log.Error("failed to write success response", "handler", "Login", "operation", "WriteSuccess", "error", err)
	}
}

func (h *AdminHandler) ListBookings(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	query := r.URL.Query()
	page, limit := httputil.ExtractPageLimit(r)

	result, err := h.service.ListBookings(r.Context(), service.BookingFilter{
		Status: query.Get("status"),
		From:   query.Get("from"),
		To:     query.Get("to"),
		Search: query.Get("search"),
		Page:   page,
		Limit:  limit,
	})
	if err != nil {
		h.writeError(w, "ListBookings", err)
		return
	}

	if err := httputil.WriteSuccess(w, result); err != nil {
		h.log.Error("failed to write success response", "handler", "ListBookings", "operation", "WriteSuccess", "error", err)
	}
}

func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	stats, err := h.service.Stats(r.Context())
	if err != nil {
		h.writeError(w, "Stats", err)
		return
	}

	if err := httputil.WriteSuccess(w, stats); err != nil {
		h.log.Error("failed to write success response", "handler", "Stats", "operation", "WriteSuccess", "error", err)
	}
}

func (h *AdminHandler) Clients(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	clients, err := h.service.Clients(r.Context())
	if err != nil {
		h.writeError(w, "Clients", err)
		return
	}

	if err := httputil.WriteSuccess(w, ClientsResponse{Clients: clients}); err != nil {
		h.log.Error("failed to write success response", "handler", "Clients", "operation", "WriteSuccess", "error", err)
	}
}

func (h *AdminHandler) ChangeStatus(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var update model.StatusUpdate
	if err := httputil.DecodeJSON(r, &update); err != nil {
		h.writeError(w, "ChangeStatus", err)
		return
	}

	booking, err := h.service.ChangeStatus(r.Context(), ps.ByName("id"), &update)
	if err != nil {
		h.writeError(w, "ChangeStatus", err)
		return
	}

	if err := httputil.WriteSuccess(w, BookingResponse{Booking: booking}); err != nil {
		h.log.Error("failed to write success response", "handler", "ChangeStatus", "operation", "WriteSuccess", "error", err)
	}
}

func (h *AdminHandler) writeError(w http.ResponseWriter, handler string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
	}
}

func (h *AdminHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/admin/login", h.Login)
	router.GET("/api/admin/bookings", h.auth.RequireAdmin(h.ListBookings))
	router.GET("/api/admin/stats", h.auth.RequireAdmin(h.Stats))
	router.GET("/api/admin/clients", h.auth.RequireAdmin(h.Clients))
	router.PATCH("/api/admin/bookings/:id/status", h.auth.RequireAdmin(h.ChangeStatus))
}
