package service

import (
	"context"
	"errors"
	"strings"
	"time"

	bookingserrors "geranium/internal/bookings/errors"
	"geranium/internal/bookings/repository"
	"geranium/internal/bookings/validator"
	"geranium/internal/notifications"
	"geranium/pkg/config"
	apperrors "geranium/pkg/errors"
	"geranium/pkg/model"
	"geranium/pkg/sanitizer"
)

const dateLayout = "2006-01-02"

type BookingService interface {
	Create(ctx context.Context, req *model.BookingRequest) (*model.Booking, error)
	GetByID(ctx context.Context, id string) (*model.Booking, error)
	GetAll(ctx context.Context) ([]*model.Booking, error)
	Update(ctx context.Context, id string, update *model.BookingUpdate) (*model.Booking, error)
	ChangeStatus(ctx context.Context, id string, status string, adminNotes *string) (*model.Booking, error)
}

type bookingService struct {
	store     repository.BookingStore
	validator *validator.BookingValidator
	notifier  notifications.Submitter
	cfg       *config.Config
	now       func() time.Time
}

func NewBookingService(
	store repository.BookingStore,
	validator *validator.BookingValidator,
	notifier notifications.Submitter,
	cfg *config.Config,
) BookingService {
	return &bookingService{
		store:     store,
		validator: validator,
		notifier:  notifier,
		cfg:       cfg,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *bookingService) Create(ctx context.Context, req *model.BookingRequest) (*model.Booking, error) {
	if req == nil {
		return nil, apperrors.InvalidInput("Booking data is required")
	}

	booking, err := s.fromRequest(req)
	if err != nil {
		return nil, err
	}
	if err := s.validate(booking); err != nil {
		return nil, err
	}

	total, ok := model.Quote(booking.ServiceType, booking.SeatType, booking.SeatCount)
	if !ok {
		return nil, apperrors.Validation("Unable to price booking", map[string]any{
			"seatType":  booking.SeatType,
			"seatCount": booking.SeatCount,
		})
	}
	if req.Total != nil && model.RoundAmount(*req.Total) != total {
		s.cfg.Log.Warn("Ignoring client-submitted total",
			"submitted", *req.Total,
			"computed", total,
			"service_type", booking.ServiceType,
		)
	}
	booking.Total = total

	if _, err := s.store.Create(ctx, booking); err != nil {
		s.cfg.Log.Error("Failed to create booking", "error", err)
		return nil, apperrors.Internal("Failed to create booking", err)
	}

	s.cfg.Log.Info("Booking created",
		"id", booking.ID,
		"service_type", booking.ServiceType,
		"seat_count", booking.SeatCount,
		"total", booking.Total,
		"payment_method", booking.PaymentMethod,
	)

	s.notifier.Submit(notifications.New(notifications.KindBookingReceived, booking))
	s.notifier.Submit(notifications.New(notifications.KindNewBookingAlert, booking))

	return booking, nil
}

func (s *bookingService) fromRequest(req *model.BookingRequest) (*model.Booking, error) {
	now := s.now()

	serviceType := model.ServiceType(strings.ToLower(strings.TrimSpace(req.ServiceType)))
	if serviceType == "" {
		serviceType = model.ServiceSeats
	}
	paymentMethod := model.PaymentMethod(strings.ToLower(strings.TrimSpace(req.PaymentMethod)))
	if paymentMethod == "" {
		paymentMethod = model.PaymentOnService
	}
	county := sanitizer.NormalizeArea(req.County)
	if county == "" {
		county = model.DefaultCounty
	}

	booking := &model.Booking{
		Name:            sanitizer.NormalizeName(req.Name),
		Email:           sanitizer.NormalizeEmail(req.Email),
		Phone:           sanitizer.NormalizePhone(req.Phone),
		County:          county,
		Area:            sanitizer.NormalizeArea(req.Area),
		Address:         sanitizer.NormalizeText(req.Address),
		ServiceType:     serviceType,
		SeatType:        sanitizer.TrimAndNormalize(req.SeatType),
		SeatCount:       req.SeatCount,
		TimeSlot:        strings.TrimSpace(req.TimeSlot),
		Notes:           sanitizer.NormalizeText(req.Notes),
		PaymentMethod:   paymentMethod,
		PaymentStatus:   model.PaymentPending,
		PaymentIntentID: strings.TrimSpace(req.PaymentIntentID),
		BookingStatus:   model.BookingPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if date := strings.TrimSpace(req.Date); date != "" {
		parsed, err := parseBookingDate(date)
		if err != nil {
			return nil, apperrors.Validation("Invalid booking date", map[string]any{
				model.FieldDate: "date must be formatted as YYYY-MM-DD",
			})
		}
		booking.Date = &parsed
	}

	return booking, nil
}

// parseBookingDate accepts a calendar date or a full RFC 3339 timestamp.
func parseBookingDate(s string) (time.Time, error) {
	if t, err := time.Parse(dateLayout, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
}

func (s *bookingService) validate(booking *model.Booking) error {
	if err := s.validator.Validate(booking); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return apperrors.Validation("Invalid booking data", validationErrs.Details())
		}
		return apperrors.Validation(err.Error(), nil)
	}
	return nil
}

func (s *bookingService) GetByID(ctx context.Context, id string) (*model.Booking, error) {
	booking, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, s.mapRepositoryError(err, id)
	}
	return booking, nil
}

func (s *bookingService) GetAll(ctx context.Context) ([]*model.Booking, error) {
	bookings, err := s.store.List(ctx, nil)
	if err != nil {
		s.cfg.Log.Error("Failed to list bookings", "error", err)
		return nil, apperrors.Internal("Failed to retrieve bookings", err)
	}
	model.SortNewestFirst(bookings)
	return bookings, nil
}

func (s *bookingService) Update(ctx context.Context, id string, update *model.BookingUpdate) (*model.Booking, error) {
	if update == nil {
		return nil, apperrors.InvalidInput("No updatable fields provided")
	}
	if update.PaymentStatus != nil {
		return nil, apperrors.Validation("paymentStatus is set by payment providers only", map[string]any{
			model.FieldPaymentStatus: "read-only",
		})
	}
	adminNotes := update.ResolvedNotes()
	if update.BookingStatus != nil {
		return s.ChangeStatus(ctx, id, *update.BookingStatus, adminNotes)
	}
	if adminNotes == nil {
		return nil, apperrors.InvalidInput("No updatable fields provided")
	}

	notes := sanitizer.NormalizeText(*adminNotes)
	booking, err := s.store.Update(ctx, id, model.BookingPatch{AdminNotes: &notes, UpdatedAt: s.now()})
	if err != nil {
		return nil, s.mapRepositoryError(err, id)
	}

	s.cfg.Log.Info("Booking notes updated", "id", id)
	return booking, nil
}

// ChangeStatus moves a booking along the admin workflow. Only the edges
// pending->accepted, pending->declined and accepted->completed exist.
func (s *bookingService) ChangeStatus(ctx context.Context, id string, status string, adminNotes *string) (*model.Booking, error) {
	target, err := model.ParseBookingStatus(status)
	if err != nil {
		return nil, apperrors.Validation("Invalid booking status", map[string]any{
			"status":  status,
			"allowed": model.BookingStatuses(),
		})
	}

	current, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, s.mapRepositoryError(err, id)
	}

	if !current.BookingStatus.CanTransitionTo(target) {
		return nil, apperrors.Conflict("Booking status transition not allowed").WithDetails(map[string]any{
			"currentStatus":   current.BookingStatus,
			"requestedStatus": target,
			"allowed":         current.BookingStatus.AllowedTransitions(),
		})
	}

	change := model.StatusChange{From: current.BookingStatus, To: target, At: s.now()}
	if adminNotes != nil {
		notes := sanitizer.NormalizeText(*adminNotes)
		change.AdminNotes = &notes
	}
	if err := s.store.TransitionStatus(ctx, id, change); err != nil {
		return nil, s.mapRepositoryError(err, id)
	}

	change.Apply(current)
	s.cfg.Log.Info("Booking status changed",
		"id", id,
		"from", change.From,
		"to", change.To,
	)

	if kind, ok := notifications.StatusNotification(target); ok {
		s.notifier.Submit(notifications.New(kind, current))
	}
	return current, nil
}

func (s *bookingService) mapRepositoryError(err error, id string) error {
	switch {
	case errors.Is(err, bookingserrors.ErrNotFound), errors.Is(err, bookingserrors.ErrInvalidID):
		return apperrors.NotFoundWithID("Booking", id)
	case errors.Is(err, bookingserrors.ErrStatusChanged):
		return apperrors.Conflict("Booking status was changed by another request")
	case errors.Is(err, bookingserrors.ErrPaymentSettled):
		return apperrors.Conflict("Booking payment already settled")
	default:
		s.cfg.Log.Error("Booking store failure", "id", id, "error", err)
		return apperrors.Internal("Failed to access booking", err)
	}
}
