package service

import (
	"context"
	"strings"
	"time"

	"geranium/internal/bookings/repository"
	bookingservice "geranium/internal/bookings/service"
	"geranium/pkg/config"
	apperrors "geranium/pkg/errors"
	httputil "geranium/pkg/http"
	"geranium/pkg/model"
)

const filterDateLayout = "2006-01-02"

// BookingFilter holds the admin listing query. Empty fields do not filter.
type BookingFilter struct {
	Status string
	From   string
	To     string
	Search string
	Page   int
	Limit  int
}

type BookingPage struct {
	Bookings   []*model.Booking    `json:"bookings"`
	Stats      model.FilteredStats `json:"stats"`
	Pagination httputil.Pagination `json:"pagination"`
}

type AdminService interface {
	ListBookings(ctx context.Context, filter BookingFilter) (*BookingPage, error)
	Stats(ctx context.Context) (model.DashboardStats, error)
	Clients(ctx context.Context) ([]model.Client, error)
	ChangeStatus(ctx context.Context, id string, update *model.StatusUpdate) (*model.Booking, error)
}

type adminService struct {
	store    repository.BookingStore
	bookings bookingservice.BookingService
	cfg      *config.Config
	now      func() time.Time
}

func NewAdminService(store repository.BookingStore, bookings bookingservice.BookingService, cfg *config.Config) AdminService {
	return &adminService{
		store:    store,
		bookings: bookings,
		cfg:      cfg,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *adminService) ListBookings(ctx context.Context, filter BookingFilter) (*BookingPage, error) {
	pred, err := buildPredicate(filter)
	if err != nil {
		return nil, err
	}

	matched, err := s.store.List(ctx, pred)
	if err != nil {
		s.cfg.Log.Error("Failed to list bookings", "error", err)
		return nil, apperrors.Internal("Failed to list bookings", err)
	}

	page := httputil.NormalizePage(filter.Page)
	limit := httputil.NormalizePageLimit(filter.Limit)
	total := len(matched)

	window := []*model.Booking{}
	if offset := (page - 1) * limit; offset < total {
		window = matched[offset:min(offset+limit, total)]
	}

	return &BookingPage{
		Bookings: window,
		Stats:    model.ComputeFilteredStats(matched),
		Pagination: httputil.Pagination{
			Page:  page,
			Limit: limit,
			Total: int64(total),
			Pages: httputil.PageCount(int64(total), limit),
		},
	}, nil
}

func (s *adminService) Stats(ctx context.Context) (model.DashboardStats, error) {
	all, err := s.store.List(ctx, nil)
	if err != nil {
		s.cfg.Log.Error("Failed to load bookings for stats", "error", err)
		return model.DashboardStats{}, apperrors.Internal("Failed to compute stats", err)
	}
	return model.ComputeDashboardStats(all, s.now()), nil
}

func (s *adminService) Clients(ctx context.Context) ([]model.Client, error) {
	all, err := s.store.List(ctx, nil)
	if err != nil {
		s.cfg.Log.Error("Failed to load bookings for clients", "error", err)
		return nil, apperrors.Internal("Failed to list clients", err)
	}
	return model.GroupClients(all), nil
}

func (s *adminService) ChangeStatus(ctx context.Context, id string, update *model.StatusUpdate) (*model.Booking, error) {
	if update == nil {
		return nil, apperrors.InvalidInput("Status is required")
	}
	return s.bookings.ChangeStatus(ctx, id, update.Status, update.AdminNotes)
}

func buildPredicate(filter BookingFilter) (repository.Predicate, error) {
	var checks []repository.Predicate

	if status := strings.TrimSpace(filter.Status); status != "" && !strings.EqualFold(status, "all") {
		want, err := model.ParseBookingStatus(status)
		if err != nil {
			return nil, apperrors.Validation("Invalid status filter", map[string]any{"status": status})
		}
		checks = append(checks, func(b *model.Booking) bool { return b.BookingStatus == want })
	}

	if from, ok := parseFilterDate(filter.From); ok {
		checks = append(checks, func(b *model.Booking) bool {
			return b.Date != nil && !b.Date.Before(from)
		})
	}
	if to, ok := parseFilterDate(filter.To); ok {
		checks = append(checks, func(b *model.Booking) bool {
			return b.Date != nil && !b.Date.After(to)
		})
	}

	if q := strings.ToLower(strings.TrimSpace(filter.Search)); q != "" {
		checks = append(checks, func(b *model.Booking) bool {
			return strings.Contains(strings.ToLower(b.Name), q) ||
				strings.Contains(strings.ToLower(b.Email), q) ||
				strings.Contains(b.Phone, q) ||
				strings.Contains(strings.ToLower(b.Area), q)
		})
	}

	if len(checks) == 0 {
		return nil, nil
	}
	return func(b *model.Booking) bool {
		for _, check := range checks {
			if !check(b) {
				return false
			}
		}
		return true
	}, nil
}

// parseFilterDate accepts YYYY-MM-DD or RFC 3339. Anything else is ignored.
func parseFilterDate(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(filterDateLayout, value); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, true
	}
	return time.Time{}, false
}
