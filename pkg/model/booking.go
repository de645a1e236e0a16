package model

import (
	"strings"
	"time"
)

type ServiceType string

const (
	ServiceSeats    ServiceType = "seats"
	ServiceMattress ServiceType = "mattress"
	ServiceBedFrame ServiceType = "bedframe"
)

type PaymentMethod string

const (
	PaymentMpesa        PaymentMethod = "mpesa"
	PaymentCard         PaymentMethod = "card"
	PaymentOnService    PaymentMethod = "pay_on_service"
	DefaultCounty                     = "Nairobi"
	BookingReferenceLen               = 8
)

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
	PaymentFailed  PaymentStatus = "failed"
)

// Document field names. Every store uses the same layout so that
// FindByField and patches address fields identically.
const (
	FieldID                     = "id"
	FieldName                   = "name"
	FieldEmail                  = "email"
	FieldPhone                  = "phone"
	FieldArea                   = "area"
	FieldDate                   = "date"
	FieldPaymentMethod          = "paymentMethod"
	FieldPaymentStatus          = "paymentStatus"
	FieldPaymentIntentID        = "paymentIntentId"
	FieldMpesaCheckoutRequestID = "mpesaCheckoutRequestId"
	FieldMpesaMerchantRequestID = "mpesaMerchantRequestId"
	FieldMpesaResultCode        = "mpesaResultCode"
	FieldMpesaResultDesc        = "mpesaResultDesc"
	FieldMpesaReceiptNumber     = "mpesaReceiptNumber"
	FieldMpesaAmount            = "mpesaAmount"
	FieldMpesaTransactionDate   = "mpesaTransactionDate"
	FieldBookingStatus          = "bookingStatus"
	FieldAdminNotes             = "adminNotes"
	FieldCreatedAt              = "createdAt"
	FieldUpdatedAt              = "updatedAt"
)

type Booking struct {
	ID string `json:"id" bson:"_id,omitempty" firestore:"-"`

	Name    string `json:"name" bson:"name" firestore:"name" validate:"required,min=2,max=100"`
	Email   string `json:"email" bson:"email" firestore:"email" validate:"required,email,max=254"`
	Phone   string `json:"phone" bson:"phone" firestore:"phone" validate:"required,ke_phone"`
	County  string `json:"county" bson:"county" firestore:"county" validate:"max=60"`
	Area    string `json:"area" bson:"area" firestore:"area" validate:"required,max=100"`
	Address string `json:"address" bson:"address" firestore:"address" validate:"max=200"`

	ServiceType ServiceType `json:"serviceType" bson:"serviceType" firestore:"serviceType" validate:"required,service_type"`
	SeatType    string      `json:"seatType" bson:"seatType" firestore:"seatType" validate:"required,max=60"`
	SeatCount   int         `json:"seatCount" bson:"seatCount" firestore:"seatCount" validate:"min=1,max=10"`
	Total       float64     `json:"total" bson:"total" firestore:"total" validate:"gte=0"`

	Date     *time.Time `json:"date" bson:"date" firestore:"date"`
	TimeSlot string     `json:"timeSlot" bson:"timeSlot" firestore:"timeSlot" validate:"omitempty,time_slot"`
	Notes    string     `json:"notes" bson:"notes" firestore:"notes" validate:"max=1000"`

	PaymentMethod   PaymentMethod `json:"paymentMethod" bson:"paymentMethod" firestore:"paymentMethod" validate:"required,oneof=mpesa card pay_on_service"`
	PaymentStatus   PaymentStatus `json:"paymentStatus" bson:"paymentStatus" firestore:"paymentStatus" validate:"required,oneof=pending paid failed"`
	PaymentIntentID string        `json:"paymentIntentId,omitempty" bson:"paymentIntentId,omitempty" firestore:"paymentIntentId,omitempty"`

	MpesaCheckoutRequestID string  `json:"mpesaCheckoutRequestId,omitempty" bson:"mpesaCheckoutRequestId,omitempty" firestore:"mpesaCheckoutRequestId,omitempty"`
	MpesaMerchantRequestID string  `json:"mpesaMerchantRequestId,omitempty" bson:"mpesaMerchantRequestId,omitempty" firestore:"mpesaMerchantRequestId,omitempty"`
	MpesaResultCode        *int    `json:"mpesaResultCode,omitempty" bson:"mpesaResultCode,omitempty" firestore:"mpesaResultCode,omitempty"`
	MpesaResultDesc        string  `json:"mpesaResultDesc,omitempty" bson:"mpesaResultDesc,omitempty" firestore:"mpesaResultDesc,omitempty"`
	MpesaReceiptNumber     string  `json:"mpesaReceiptNumber,omitempty" bson:"mpesaReceiptNumber,omitempty" firestore:"mpesaReceiptNumber,omitempty"`
	MpesaAmount            float64 `json:"mpesaAmount,omitempty" bson:"mpesaAmount,omitempty" firestore:"mpesaAmount,omitempty"`
	MpesaTransactionDate   string  `json:"mpesaTransactionDate,omitempty" bson:"mpesaTransactionDate,omitempty" firestore:"mpesaTransactionDate,omitempty"`

	BookingStatus BookingStatus `json:"bookingStatus" bson:"bookingStatus" firestore:"bookingStatus" validate:"required,oneof=pending accepted declined completed"`
	AdminNotes    string        `json:"adminNotes,omitempty" bson:"adminNotes,omitempty" firestore:"adminNotes,omitempty"`

	CreatedAt time.Time `json:"createdAt" bson:"createdAt" firestore:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updatedAt" firestore:"updatedAt"`
}

// BookingRequest is the public booking submission. Totals and statuses are
// never taken from it.
type BookingRequest struct {
	Name            string   `json:"name"`
	Email           string   `json:"email"`
	Phone           string   `json:"phone"`
	County          string   `json:"county"`
	Area            string   `json:"area"`
	Address         string   `json:"address"`
	ServiceType     string   `json:"serviceType"`
	SeatType        string   `json:"seatType"`
	SeatCount       int      `json:"seatCount"`
	Date            string   `json:"date"`
	TimeSlot        string   `json:"timeSlot"`
	Notes           string   `json:"notes"`
	PaymentMethod   string   `json:"paymentMethod"`
	PaymentIntentID string   `json:"paymentIntentId"`
	Total           *float64 `json:"total,omitempty"`
}

// Reference is the short customer-facing booking reference.
func (b *Booking) Reference() string {
	return ShortReference(b.ID, BookingReferenceLen)
}

// ShortReference returns the last n characters of id, upper-cased.
func ShortReference(id string, n int) string {
	if len(id) > n {
		id = id[len(id)-n:]
	}
	return strings.ToUpper(id)
}

func (b *Booking) Clone() *Booking {
	if b == nil {
		return nil
	}
	c := *b
	if b.Date != nil {
		d := *b.Date
		c.Date = &d
	}
	if b.MpesaResultCode != nil {
		code := *b.MpesaResultCode
		c.MpesaResultCode = &code
	}
	return &c
}

// FieldValue returns the string form of a lookup field. The boolean is
// false for fields that cannot be used for equality lookups.
func (b *Booking) FieldValue(field string) (string, bool) {
	switch field {
	case FieldID:
		return b.ID, true
	case FieldName:
		return b.Name, true
	case FieldEmail:
		return b.Email, true
	case FieldPhone:
		return b.Phone, true
	case FieldArea:
		return b.Area, true
	case FieldPaymentMethod:
		return string(b.PaymentMethod), true
	case FieldPaymentStatus:
		return string(b.PaymentStatus), true
	case FieldPaymentIntentID:
		return b.PaymentIntentID, true
	case FieldMpesaCheckoutRequestID:
		return b.MpesaCheckoutRequestID, true
	case FieldMpesaMerchantRequestID:
		return b.MpesaMerchantRequestID, true
	case FieldMpesaReceiptNumber:
		return b.MpesaReceiptNumber, true
	case FieldBookingStatus:
		return string(b.BookingStatus), true
	}
	return "", false
}

// BookingPatch carries the free-form updates a booking accepts. Payment and
// booking status are deliberately absent: they only change through the
// store's compare-and-swap operations.
type BookingPatch struct {
	PaymentIntentID        *string
	MpesaCheckoutRequestID *string
	MpesaMerchantRequestID *string
	AdminNotes             *string
	UpdatedAt              time.Time
}

func (p BookingPatch) IsEmpty() bool {
	return p.PaymentIntentID == nil && p.MpesaCheckoutRequestID == nil &&
		p.MpesaMerchantRequestID == nil && p.AdminNotes == nil
}

func (p BookingPatch) Fields() map[string]any {
	fields := map[string]any{FieldUpdatedAt: p.UpdatedAt}
	if p.PaymentIntentID != nil {
		fields[FieldPaymentIntentID] = *p.PaymentIntentID
	}
	if p.MpesaCheckoutRequestID != nil {
		fields[FieldMpesaCheckoutRequestID] = *p.MpesaCheckoutRequestID
	}
	if p.MpesaMerchantRequestID != nil {
		fields[FieldMpesaMerchantRequestID] = *p.MpesaMerchantRequestID
	}
	if p.AdminNotes != nil {
		fields[FieldAdminNotes] = *p.AdminNotes
	}
	return fields
}

func (p BookingPatch) Apply(b *Booking) {
	if p.PaymentIntentID != nil {
		b.PaymentIntentID = *p.PaymentIntentID
	}
	if p.MpesaCheckoutRequestID != nil {
		b.MpesaCheckoutRequestID = *p.MpesaCheckoutRequestID
	}
	if p.MpesaMerchantRequestID != nil {
		b.MpesaMerchantRequestID = *p.MpesaMerchantRequestID
	}
	if p.AdminNotes != nil {
		b.AdminNotes = *p.AdminNotes
	}
	b.UpdatedAt = p.UpdatedAt
}

// PaymentResult is the outcome reported by a payment provider. It is only
// written while the booking's payment is still pending.
type PaymentResult struct {
	Status          PaymentStatus
	ResultCode      *int
	ResultDesc      string
	ReceiptNumber   string
	Amount          float64
	TransactionDate string
	At              time.Time
}

func (p PaymentResult) Fields() map[string]any {
	fields := map[string]any{
		FieldPaymentStatus: string(p.Status),
		FieldUpdatedAt:     p.At,
	}
	if p.ResultCode != nil {
		fields[FieldMpesaResultCode] = *p.ResultCode
	}
	if p.ResultDesc != "" {
		fields[FieldMpesaResultDesc] = p.ResultDesc
	}
	if p.ReceiptNumber != "" {
		fields[FieldMpesaReceiptNumber] = p.ReceiptNumber
	}
	if p.Amount != 0 {
		fields[FieldMpesaAmount] = p.Amount
	}
	if p.TransactionDate != "" {
		fields[FieldMpesaTransactionDate] = p.TransactionDate
	}
	return fields
}

func (p PaymentResult) Apply(b *Booking) {
	b.PaymentStatus = p.Status
	if p.ResultCode != nil {
		code := *p.ResultCode
		b.MpesaResultCode = &code
	}
	if p.ResultDesc != "" {
		b.MpesaResultDesc = p.ResultDesc
	}
	if p.ReceiptNumber != "" {
		b.MpesaReceiptNumber = p.ReceiptNumber
	}
	if p.Amount != 0 {
		b.MpesaAmount = p.Amount
	}
	if p.TransactionDate != "" {
		b.MpesaTransactionDate = p.TransactionDate
	}
	b.UpdatedAt = p.At
}

// StatusChange is an admin-driven booking status transition.
type StatusChange struct {
	From       BookingStatus
	To         BookingStatus
	AdminNotes *string
	At         time.Time
}

func (c StatusChange) Fields() map[string]any {
	fields := map[string]any{
		FieldBookingStatus: string(c.To),
		FieldUpdatedAt:     c.At,
	}
	if c.AdminNotes != nil {
		fields[FieldAdminNotes] = *c.AdminNotes
	}
	return fields
}

func (c StatusChange) Apply(b *Booking) {
	b.BookingStatus = c.To
	if c.AdminNotes != nil {
		b.AdminNotes = *c.AdminNotes
	}
	b.UpdatedAt = c.At
}

// BookingUpdate is the admin edit body. PaymentStatus is decoded only so
// that attempts to set it can be rejected. Older admin clients send the
// notes under "notes".
type BookingUpdate struct {
	BookingStatus *string `json:"bookingStatus,omitempty"`
	AdminNotes    *string `json:"adminNotes,omitempty"`
	Notes         *string `json:"notes,omitempty"`
	PaymentStatus *string `json:"paymentStatus,omitempty"`
}

// ResolvedNotes returns the admin notes from either key, adminNotes first.
func (u *BookingUpdate) ResolvedNotes() *string {
	if u.AdminNotes != nil {
		return u.AdminNotes
	}
	return u.Notes
}

// StatusUpdate is the body of the admin status endpoint.
type StatusUpdate struct {
	Status     string  `json:"status"`
	AdminNotes *string `json:"adminNotes,omitempty"`
}
