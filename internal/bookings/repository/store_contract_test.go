package repository

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	bookingserrors "geranium/internal/bookings/errors"
	"geranium/pkg/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// storeContract is the behaviour every BookingStore backend shares.
// absentID must be well formed for the backend but match no booking.
// duplicates is the number of concurrent deliveries of the same result.
type storeContract struct {
	store      BookingStore
	absentID   string
	duplicates int
}

func (c storeContract) run(t *testing.T) {
	t.Run("create and get", c.createAndGet)
	t.Run("find by correlation id", c.findByCorrelationID)
	t.Run("payment result applies once", c.paymentResultAppliesOnce)
	t.Run("status transition compare and swap", c.transitionStatus)
	t.Run("list newest first", c.listNewestFirst)
	t.Run("ping", func(t *testing.T) {
		assert.NoError(t, c.store.Ping(context.Background()))
	})
}

// uniqueBooking gets a per-run email so shared backends never see
// another run's records.
func uniqueBooking(createdAt time.Time) *model.Booking {
	b := newPendingBooking()
	b.Email = "wanjiru+" + uuid.NewString() + "@example.com"
	b.CreatedAt = createdAt.UTC().Truncate(time.Millisecond)
	b.UpdatedAt = b.CreatedAt
	return b
}

func (c storeContract) create(t *testing.T, b *model.Booking) string {
	t.Helper()
	id, err := c.store.Create(context.Background(), b)
	require.NoError(t, err)
	require.NotEmpty(t, id)
	return id
}

func (c storeContract) createAndGet(t *testing.T) {
	ctx := context.Background()
	b := uniqueBooking(time.Now())
	id := c.create(t, b)
	assert.Equal(t, id, b.ID)

	got, err := c.store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id, got.ID)
	assert.Equal(t, b.Email, got.Email)
	assert.Equal(t, model.PaymentPending, got.PaymentStatus)
	assert.Equal(t, model.BookingPending, got.BookingStatus)
	assert.True(t, b.CreatedAt.Equal(got.CreatedAt))

	_, err = c.store.Get(ctx, c.absentID)
	assert.True(t, errors.Is(err, bookingserrors.ErrNotFound), "Get(absent) error = %v", err)
}

func (c storeContract) findByCorrelationID(t *testing.T) {
	ctx := context.Background()
	id := c.create(t, uniqueBooking(time.Now()))
	other := c.create(t, uniqueBooking(time.Now()))

	checkout := "ws_CO_" + uuid.NewString()
	updated, err := c.store.Update(ctx, id, model.BookingPatch{MpesaCheckoutRequestID: &checkout, UpdatedAt: time.Now().UTC()})
	require.NoError(t, err)
	assert.Equal(t, checkout, updated.MpesaCheckoutRequestID)

	matches, err := c.store.FindByField(ctx, model.FieldMpesaCheckoutRequestID, checkout)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, id, matches[0].ID)
	assert.NotEqual(t, other, matches[0].ID)

	matches, err = c.store.FindByField(ctx, model.FieldMpesaCheckoutRequestID, "ws_CO_"+uuid.NewString())
	require.NoError(t, err)
	assert.Empty(t, matches)

	_, err = c.store.Update(ctx, c.absentID, model.BookingPatch{MpesaCheckoutRequestID: &checkout, UpdatedAt: time.Now().UTC()})
	assert.True(t, errors.Is(err, bookingserrors.ErrNotFound), "Update(absent) error = %v", err)
}

func (c storeContract) paymentResultAppliesOnce(t *testing.T) {
	ctx := context.Background()
	id := c.create(t, uniqueBooking(time.Now()))

	code := 0
	paid := model.PaymentResult{
		Status:          model.PaymentPaid,
		ResultCode:      &code,
		ResultDesc:      "The service request is processed successfully.",
		ReceiptNumber:   "NLJ7RT61SV",
		Amount:          1400,
		TransactionDate: "20250310083500",
		At:              time.Now().UTC(),
	}

	var applied int32
	var wg sync.WaitGroup
	errs := make(chan error, c.duplicates)
	for i := 0; i < c.duplicates; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := c.store.ApplyPaymentResult(ctx, id, paid)
			if err != nil {
				errs <- err
				return
			}
			if ok {
				atomic.AddInt32(&applied, 1)
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("ApplyPaymentResult() error = %v", err)
	}
	assert.Equal(t, int32(1), applied, "duplicate deliveries apply once")

	ok, err := c.store.ApplyPaymentResult(ctx, id, paid)
	require.NoError(t, err)
	assert.False(t, ok, "a redelivered result is not applied again")

	ok, err = c.store.ApplyPaymentResult(ctx, id, model.PaymentResult{Status: model.PaymentFailed, At: time.Now().UTC()})
	require.NoError(t, err)
	assert.False(t, ok, "a settled payment never flips")

	stored, err := c.store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentPaid, stored.PaymentStatus)
	assert.Equal(t, "NLJ7RT61SV", stored.MpesaReceiptNumber)
	assert.Equal(t, 1400.0, stored.MpesaAmount)

	_, err = c.store.ApplyPaymentResult(ctx, c.absentID, paid)
	assert.True(t, errors.Is(err, bookingserrors.ErrNotFound), "ApplyPaymentResult(absent) error = %v", err)
}

func (c storeContract) transitionStatus(t *testing.T) {
	ctx := context.Background()
	id := c.create(t, uniqueBooking(time.Now()))
	notes := "gate code 1234"

	accept := model.StatusChange{From: model.BookingPending, To: model.BookingAccepted, AdminNotes: &notes, At: time.Now().UTC()}
	require.NoError(t, c.store.TransitionStatus(ctx, id, accept))

	err := c.store.TransitionStatus(ctx, id, model.StatusChange{From: model.BookingPending, To: model.BookingDeclined, At: time.Now().UTC()})
	assert.True(t, errors.Is(err, bookingserrors.ErrStatusChanged), "stale transition error = %v", err)

	stored, err := c.store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.BookingAccepted, stored.BookingStatus)
	assert.Equal(t, notes, stored.AdminNotes)

	err = c.store.TransitionStatus(ctx, c.absentID, accept)
	assert.True(t, errors.Is(err, bookingserrors.ErrNotFound), "TransitionStatus(absent) error = %v", err)
}

func (c storeContract) listNewestFirst(t *testing.T) {
	ctx := context.Background()
	base := time.Now().Add(-time.Hour)
	older := uniqueBooking(base)
	newer := uniqueBooking(base.Add(time.Minute))
	newer.Email = older.Email
	c.create(t, older)
	c.create(t, newer)

	got, err := c.store.List(ctx, func(b *model.Booking) bool { return b.Email == older.Email })
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, newer.ID, got[0].ID)
	assert.Equal(t, older.ID, got[1].ID)
}

func TestMemoryStore_Contract(t *testing.T) {
	storeContract{store: NewMemoryBookingStore(), absentID: "missing", duplicates: 16}.run(t)
}
