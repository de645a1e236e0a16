package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	bookingserrors "geranium/internal/bookings/errors"
	"geranium/internal/bookings/repository"
	"geranium/internal/bookings/validator"
	"geranium/internal/notifications"
	"geranium/pkg/config"
	apperrors "geranium/pkg/errors"
	"geranium/pkg/logger"
	"geranium/pkg/model"
)

// ────────────────────────────────────────────────
// Test doubles
// ────────────────────────────────────────────────

type recordingNotifier struct {
	mu   sync.Mutex
	sent []notifications.Notification
}

func (n *recordingNotifier) Submit(msg notifications.Notification) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, msg)
}

func (n *recordingNotifier) kinds() []notifications.Kind {
	n.mu.Lock()
	defer n.mu.Unlock()
	kinds := make([]notifications.Kind, 0, len(n.sent))
	for _, msg := range n.sent {
		kinds = append(kinds, msg.Kind)
	}
	return kinds
}

// mockStore wraps a memory store and lets tests override single operations.
type mockStore struct {
	repository.BookingStore
	getFunc        func(ctx context.Context, id string) (*model.Booking, error)
	transitionFunc func(ctx context.Context, id string, change model.StatusChange) error
}

func (m *mockStore) Get(ctx context.Context, id string) (*model.Booking, error) {
	if m.getFunc != nil {
		return m.getFunc(ctx, id)
	}
	return m.BookingStore.Get(ctx, id)
}

func (m *mockStore) TransitionStatus(ctx context.Context, id string, change model.StatusChange) error {
	if m.transitionFunc != nil {
		return m.transitionFunc(ctx, id, change)
	}
	return m.BookingStore.TransitionStatus(ctx, id, change)
}

func newTestService(store repository.BookingStore) (*bookingService, *recordingNotifier) {
	log := logger.Discard()
	cfg := &config.Config{Log: log}
	notifier := &recordingNotifier{}
	svc := NewBookingService(store, validator.NewBookingValidator(log), notifier, cfg).(*bookingService)
	svc.now = func() time.Time { return time.Date(2025, 3, 10, 8, 30, 0, 0, time.UTC) }
	return svc, notifier
}

func validRequest() *model.BookingRequest {
	return &model.BookingRequest{
		Name:          "  Wanjiru   Kamau ",
		Email:         " Wanjiru@Example.COM ",
		Phone:         "0712 345 678",
		Area:          "Kilimani",
		SeatType:      "Car Seats",
		SeatCount:     2,
		Date:          "2025-03-12",
		TimeSlot:      "10:00 AM",
		PaymentMethod: "mpesa",
	}
}

func appCode(err error) string {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// ────────────────────────────────────────────────
// Create
// ────────────────────────────────────────────────

func TestCreate_NormalizesAndPrices(t *testing.T) {
	svc, notifier := newTestService(repository.NewMemoryBookingStore())

	submitted := 99.0
	req := validRequest()
	req.Total = &submitted

	booking, err := svc.Create(context.Background(), req)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if booking.Total != 1400 {
		t.Errorf("total = %v, want 1400", booking.Total)
	}
	if booking.Email != "wanjiru@example.com" || booking.Phone != "254712345678" || booking.Name != "Wanjiru Kamau" {
		t.Errorf("normalization failed: %+v", booking)
	}
	if booking.ServiceType != model.ServiceSeats || booking.County != model.DefaultCounty {
		t.Errorf("defaults not applied: %s %s", booking.ServiceType, booking.County)
	}
	if booking.PaymentStatus != model.PaymentPending || booking.BookingStatus != model.BookingPending {
		t.Errorf("initial statuses = %s/%s", booking.PaymentStatus, booking.BookingStatus)
	}
	if booking.Date == nil || booking.Date.Format(dateLayout) != "2025-03-12" {
		t.Errorf("date = %v", booking.Date)
	}

	kinds := notifier.kinds()
	if len(kinds) != 2 || kinds[0] != notifications.KindBookingReceived || kinds[1] != notifications.KindNewBookingAlert {
		t.Errorf("notifications = %v", kinds)
	}
}

func TestCreate_DefaultsToPayOnService(t *testing.T) {
	svc, _ := newTestService(repository.NewMemoryBookingStore())

	req := validRequest()
	req.PaymentMethod = ""
	req.ServiceType = "mattress"
	req.SeatType = "King"
	req.SeatCount = 1

	booking, err := svc.Create(context.Background(), req)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if booking.PaymentMethod != model.PaymentOnService || booking.Total != 2500 {
		t.Errorf("got %s %v", booking.PaymentMethod, booking.Total)
	}
}

func TestCreate_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*model.BookingRequest)
		field  string
	}{
		{"missing name", func(r *model.BookingRequest) { r.Name = " " }, "name"},
		{"bad email", func(r *model.BookingRequest) { r.Email = "not-an-email" }, "email"},
		{"bad phone", func(r *model.BookingRequest) { r.Phone = "12345" }, "phone"},
		{"missing area", func(r *model.BookingRequest) { r.Area = "" }, "area"},
		{"zero seats", func(r *model.BookingRequest) { r.SeatCount = 0 }, "seatCount"},
		{"eleven seats", func(r *model.BookingRequest) { r.SeatCount = 11 }, "seatCount"},
		{"unknown slot", func(r *model.BookingRequest) { r.TimeSlot = "6:00 PM" }, "timeSlot"},
		{"sunday", func(r *model.BookingRequest) { r.Date = "2025-03-09" }, "date"},
		{"garbled date", func(r *model.BookingRequest) { r.Date = "next tuesday" }, "date"},
		{"unknown service", func(r *model.BookingRequest) { r.ServiceType = "carpet" }, "serviceType"},
		{"unknown mattress", func(r *model.BookingRequest) { r.ServiceType = "mattress"; r.SeatType = "Queen" }, "seatType"},
		{"bad payment method", func(r *model.BookingRequest) { r.PaymentMethod = "cash" }, "paymentMethod"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := repository.NewMemoryBookingStore()
			svc, notifier := newTestService(store)

			req := validRequest()
			tt.mutate(req)
			_, err := svc.Create(context.Background(), req)

			appErr := apperrors.AsAppError(err)
			if appErr.Code != apperrors.CodeValidation {
				t.Fatalf("error = %v, want validation error", err)
			}
			if _, ok := appErr.Details[tt.field]; !ok {
				t.Errorf("details %v missing %s", appErr.Details, tt.field)
			}
			if len(notifier.kinds()) != 0 {
				t.Error("rejected bookings must not notify")
			}
			if all, _ := store.List(context.Background(), nil); len(all) != 0 {
				t.Error("rejected booking was stored")
			}
		})
	}
}

// ────────────────────────────────────────────────
// Status workflow
// ────────────────────────────────────────────────

func TestChangeStatus_EnforcesGraph(t *testing.T) {
	tests := []struct {
		name     string
		path     []model.BookingStatus
		wantCode string
	}{
		{"pending to accepted", []model.BookingStatus{model.BookingAccepted}, ""},
		{"pending to declined", []model.BookingStatus{model.BookingDeclined}, ""},
		{"accepted to completed", []model.BookingStatus{model.BookingAccepted, model.BookingCompleted}, ""},
		{"pending to completed", []model.BookingStatus{model.BookingCompleted}, apperrors.CodeConflict},
		{"declined to accepted", []model.BookingStatus{model.BookingDeclined, model.BookingAccepted}, apperrors.CodeConflict},
		{"completed to pending", []model.BookingStatus{model.BookingAccepted, model.BookingCompleted, model.BookingPending}, apperrors.CodeConflict},
		{"accepted to accepted", []model.BookingStatus{model.BookingAccepted, model.BookingAccepted}, apperrors.CodeConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := newTestService(repository.NewMemoryBookingStore())
			booking, err := svc.Create(context.Background(), validRequest())
			if err != nil {
				t.Fatal(err)
			}

			var lastErr error
			for _, step := range tt.path {
				_, lastErr = svc.ChangeStatus(context.Background(), booking.ID, string(step), nil)
			}
			if got := appCode(lastErr); got != tt.wantCode {
				t.Errorf("final step error = %v, want code %q", lastErr, tt.wantCode)
			}
		})
	}
}

func TestChangeStatus_Notifications(t *testing.T) {
	svc, notifier := newTestService(repository.NewMemoryBookingStore())
	booking, _ := svc.Create(context.Background(), validRequest())

	notes := "Bring the wet vacuum"
	updated, err := svc.ChangeStatus(context.Background(), booking.ID, "Accepted", &notes)
	if err != nil {
		t.Fatal(err)
	}
	if updated.AdminNotes != notes || updated.BookingStatus != model.BookingAccepted {
		t.Errorf("updated = %+v", updated)
	}
	if _, err := svc.ChangeStatus(context.Background(), booking.ID, "completed", nil); err != nil {
		t.Fatal(err)
	}

	want := []notifications.Kind{
		notifications.KindBookingReceived,
		notifications.KindNewBookingAlert,
		notifications.KindStatusChanged,
		notifications.KindInvoice,
	}
	got := notifier.kinds()
	if len(got) != len(want) {
		t.Fatalf("notifications = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("notification %d = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestChangeStatus_Errors(t *testing.T) {
	base := repository.NewMemoryBookingStore()
	store := &mockStore{BookingStore: base}
	svc, _ := newTestService(store)
	booking, _ := svc.Create(context.Background(), validRequest())

	if _, err := svc.ChangeStatus(context.Background(), booking.ID, "archived", nil); appCode(err) != apperrors.CodeValidation {
		t.Errorf("unknown status error = %v", err)
	}
	if _, err := svc.ChangeStatus(context.Background(), "missing", "accepted", nil); appCode(err) != apperrors.CodeNotFound {
		t.Errorf("missing booking error = %v", err)
	}

	store.transitionFunc = func(ctx context.Context, id string, change model.StatusChange) error {
		return bookingserrors.ErrStatusChanged
	}
	if _, err := svc.ChangeStatus(context.Background(), booking.ID, "accepted", nil); appCode(err) != apperrors.CodeConflict {
		t.Errorf("lost race error = %v", err)
	}

	store.getFunc = func(ctx context.Context, id string) (*model.Booking, error) {
		return nil, errors.New("connection reset")
	}
	if _, err := svc.ChangeStatus(context.Background(), booking.ID, "accepted", nil); appCode(err) != apperrors.CodeInternal {
		t.Errorf("store failure error = %v", err)
	}
}

func TestUpdate(t *testing.T) {
	svc, _ := newTestService(repository.NewMemoryBookingStore())
	booking, _ := svc.Create(context.Background(), validRequest())
	ctx := context.Background()

	paid := "paid"
	if _, err := svc.Update(ctx, booking.ID, &model.BookingUpdate{PaymentStatus: &paid}); appCode(err) != apperrors.CodeValidation {
		t.Errorf("paymentStatus edit error = %v", err)
	}
	if _, err := svc.Update(ctx, booking.ID, &model.BookingUpdate{}); appCode(err) != apperrors.CodeInvalidInput {
		t.Errorf("empty edit error = %v", err)
	}

	notes := "  gate code 1234 "
	updated, err := svc.Update(ctx, booking.ID, &model.BookingUpdate{AdminNotes: &notes})
	if err != nil {
		t.Fatal(err)
	}
	if updated.AdminNotes != "gate code 1234" || updated.PaymentStatus != model.PaymentPending {
		t.Errorf("updated = %+v", updated)
	}

	legacy := "call on arrival"
	updated, err = svc.Update(ctx, booking.ID, &model.BookingUpdate{Notes: &legacy})
	if err != nil || updated.AdminNotes != "call on arrival" {
		t.Errorf("notes alias edit = %+v, %v", updated, err)
	}

	accepted := "accepted"
	updated, err = svc.Update(ctx, booking.ID, &model.BookingUpdate{BookingStatus: &accepted})
	if err != nil || updated.BookingStatus != model.BookingAccepted {
		t.Errorf("status edit = %+v, %v", updated, err)
	}
}
