package model

import (
	"encoding/json"
	"testing"
	"time"
)

func TestBookingStatus_Transitions(t *testing.T) {
	all := BookingStatuses()
	allowed := map[[2]BookingStatus]bool{
		{BookingPending, BookingAccepted}:   true,
		{BookingPending, BookingDeclined}:   true,
		{BookingAccepted, BookingCompleted}: true,
	}

	for _, from := range all {
		for _, to := range all {
			want := allowed[[2]BookingStatus{from, to}]
			if got := from.CanTransitionTo(to); got != want {
				t.Errorf("%s -> %s: got %v, want %v", from, to, got, want)
			}
		}
	}
}

func TestBookingStatus_Terminal(t *testing.T) {
	tests := []struct {
		status   BookingStatus
		terminal bool
	}{
		{BookingPending, false},
		{BookingAccepted, false},
		{BookingDeclined, true},
		{BookingCompleted, true},
		{BookingStatus("archived"), true},
	}
	for _, tt := range tests {
		if got := tt.status.IsTerminal(); got != tt.terminal {
			t.Errorf("%s.IsTerminal() = %v", tt.status, got)
		}
	}
}

func TestParseBookingStatus(t *testing.T) {
	if s, err := ParseBookingStatus(" Accepted "); err != nil || s != BookingAccepted {
		t.Errorf("got %q, %v", s, err)
	}
	if _, err := ParseBookingStatus("cancelled"); err == nil {
		t.Error("unknown status should fail")
	}
}

func TestQuote(t *testing.T) {
	tests := []struct {
		name     string
		service  ServiceType
		itemType string
		count    int
		want     float64
		ok       bool
	}{
		{"two seats", ServiceSeats, "Car Seats", 2, 1400, true},
		{"ten seats", ServiceSeats, "Mixed", 10, 7000, true},
		{"single mattress", ServiceMattress, "Single", 1, 1500, true},
		{"labelled king", ServiceMattress, "Mattress (King)", 2, 5000, true},
		{"double mattress", ServiceMattress, "double", 1, 2000, true},
		{"unknown mattress size", ServiceMattress, "Queen", 1, 0, false},
		{"bed frames", ServiceBedFrame, "Wooden", 3, 2400, true},
		{"zero count", ServiceSeats, "Car Seats", 0, 0, false},
		{"too many", ServiceSeats, "Car Seats", 11, 0, false},
		{"unknown service", ServiceType("carpet"), "x", 1, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Quote(tt.service, tt.itemType, tt.count)
			if ok != tt.ok || got != tt.want {
				t.Errorf("Quote = %v, %v; want %v, %v", got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestTimeSlotsAndServiceDays(t *testing.T) {
	if len(TimeSlots) != 9 || !IsTimeSlot("8:00 AM") || !IsTimeSlot("4:00 PM") {
		t.Fatal("expected nine slots from 8:00 AM to 4:00 PM")
	}
	if IsTimeSlot("5:00 PM") || IsTimeSlot("08:00") {
		t.Error("unexpected slot accepted")
	}

	sunday := time.Date(2025, 3, 9, 0, 0, 0, 0, time.UTC)
	if IsServiceDay(sunday) {
		t.Error("Sunday should be closed")
	}
	if !IsServiceDay(sunday.AddDate(0, 0, 1)) {
		t.Error("Monday should be open")
	}
}

func TestRevenue_OnlyPaidRoundedToCents(t *testing.T) {
	bookings := []*Booking{
		{Total: 700, PaymentStatus: PaymentPaid},
		{Total: 1400.50, PaymentStatus: PaymentPaid},
		{Total: 0, PaymentStatus: PaymentPending},
		{Total: 2500, PaymentStatus: PaymentFailed},
	}
	if got := Revenue(bookings); got != 2100.50 {
		t.Errorf("Revenue = %v, want 2100.50", got)
	}
	if got := SumAmounts(0.1, 0.2); got != 0.3 {
		t.Errorf("SumAmounts drifted: %v", got)
	}
}

func TestComputeDashboardStats(t *testing.T) {
	now := time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC)
	lastMonth := now.AddDate(0, -1, 0)

	bookings := []*Booking{
		{SeatCount: 2, Total: 1400, PaymentStatus: PaymentPaid, BookingStatus: BookingAccepted, CreatedAt: now},
		{SeatCount: 1, Total: 1500, PaymentStatus: PaymentPaid, BookingStatus: BookingCompleted, CreatedAt: lastMonth},
		{SeatCount: 3, Total: 2100, PaymentStatus: PaymentPending, BookingStatus: BookingPending, CreatedAt: now},
		{SeatCount: 1, Total: 700, PaymentStatus: PaymentFailed, BookingStatus: BookingDeclined, CreatedAt: now},
	}

	stats := ComputeDashboardStats(bookings, now)
	want := DashboardStats{
		Total: 4, ThisMonth: 3,
		Pending: 1, Accepted: 1, Completed: 1, Declined: 1,
		TotalRevenue: 2900, MonthRevenue: 1400, TotalSeats: 7,
	}
	if stats != want {
		t.Errorf("stats = %+v\nwant  %+v", stats, want)
	}
}

func TestGroupClients(t *testing.T) {
	t0 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	bookings := []*Booking{
		{Email: "a@x.co", Name: "Old Name", Phone: "254700000001", Total: 700, CreatedAt: t0},
		{Email: "b@x.co", Name: "Bea", Total: 1500, CreatedAt: t0.Add(time.Hour)},
		{Email: "a@x.co", Name: "New Name", Phone: "254700000002", Total: 1400, CreatedAt: t0.Add(2 * time.Hour)},
	}

	clients := GroupClients(bookings)
	if len(clients) != 2 {
		t.Fatalf("got %d clients", len(clients))
	}
	first := clients[0]
	if first.Email != "a@x.co" || first.Bookings != 2 || first.TotalSpent != 2100 || first.Name != "New Name" {
		t.Errorf("unexpected first client %+v", first)
	}
	if !first.LastBooking.Equal(t0.Add(2 * time.Hour)) {
		t.Errorf("lastBooking = %v", first.LastBooking)
	}
}

func TestPaymentResult_FieldsAndApply(t *testing.T) {
	code := 0
	at := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	result := PaymentResult{
		Status:          PaymentPaid,
		ResultCode:      &code,
		ResultDesc:      "The service request is processed successfully.",
		ReceiptNumber:   "NLJ7RT61SV",
		Amount:          1400,
		TransactionDate: "20250310090000",
		At:              at,
	}

	fields := result.Fields()
	for _, key := range []string{FieldPaymentStatus, FieldMpesaResultCode, FieldMpesaReceiptNumber, FieldMpesaAmount, FieldMpesaTransactionDate, FieldUpdatedAt} {
		if _, ok := fields[key]; !ok {
			t.Errorf("missing field %s", key)
		}
	}

	b := &Booking{PaymentStatus: PaymentPending}
	result.Apply(b)
	if b.PaymentStatus != PaymentPaid || b.MpesaReceiptNumber != "NLJ7RT61SV" || *b.MpesaResultCode != 0 || !b.UpdatedAt.Equal(at) {
		t.Errorf("apply produced %+v", b)
	}
}

func TestBookingPatch_NeverTouchesStatuses(t *testing.T) {
	notes := "call before arrival"
	patch := BookingPatch{AdminNotes: &notes, UpdatedAt: time.Now()}

	fields := patch.Fields()
	if _, ok := fields[FieldPaymentStatus]; ok {
		t.Error("patch must not carry paymentStatus")
	}
	if _, ok := fields[FieldBookingStatus]; ok {
		t.Error("patch must not carry bookingStatus")
	}

	b := &Booking{PaymentStatus: PaymentPending, BookingStatus: BookingPending}
	patch.Apply(b)
	if b.AdminNotes != notes || b.PaymentStatus != PaymentPending || b.BookingStatus != BookingPending {
		t.Errorf("apply produced %+v", b)
	}
	if (BookingPatch{}).IsEmpty() != true || patch.IsEmpty() {
		t.Error("IsEmpty mismatch")
	}
}

func TestReferenceAndClone(t *testing.T) {
	b := &Booking{ID: "abcdef1234567890"}
	if got := b.Reference(); got != "34567890" {
		t.Errorf("Reference = %q", got)
	}
	if got := ShortReference("k9xq2w", 6); got != "K9XQ2W" {
		t.Errorf("ShortReference = %q", got)
	}

	d := time.Now()
	b.Date = &d
	c := b.Clone()
	*c.Date = d.Add(time.Hour)
	if !b.Date.Equal(d) {
		t.Error("Clone must copy the date pointer")
	}
}

func TestFieldValue(t *testing.T) {
	b := &Booking{MpesaCheckoutRequestID: "ws_CO_1", PaymentIntentID: "pi_1"}
	if v, ok := b.FieldValue(FieldMpesaCheckoutRequestID); !ok || v != "ws_CO_1" {
		t.Errorf("got %q %v", v, ok)
	}
	if _, ok := b.FieldValue("total"); ok {
		t.Error("total is not a lookup field")
	}
}

func TestBookingUpdate_NotesAlias(t *testing.T) {
	tests := []struct {
		body string
		want string
	}{
		{`{"notes":"gate code 1234"}`, "gate code 1234"},
		{`{"adminNotes":"call first"}`, "call first"},
		{`{"adminNotes":"call first","notes":"ignored"}`, "call first"},
	}
	for _, tt := range tests {
		var u BookingUpdate
		if err := json.Unmarshal([]byte(tt.body), &u); err != nil {
			t.Fatal(err)
		}
		got := u.ResolvedNotes()
		if got == nil || *got != tt.want {
			t.Errorf("%s: notes = %v, want %q", tt.body, got, tt.want)
		}
	}

	var empty BookingUpdate
	if empty.ResolvedNotes() != nil {
		t.Error("empty update resolved notes")
	}
}
