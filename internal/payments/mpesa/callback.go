package mpesa

import (
	"fmt"
	"time"

	"geranium/pkg/model"

	"github.com/tidwall/gjson"
)

const ResultCodeSuccess = 0

// Callback is the parsed Body.stkCallback payload.
type Callback struct {
	MerchantRequestID string
	CheckoutRequestID string
	ResultCode        int
	ResultDesc        string
	ReceiptNumber     string
	Amount            float64
	TransactionDate   string
	PhoneNumber       string
}

// ParseCallback extracts the STK callback. ok is false when the payload
// carries no stkCallback or no ResultCode. Metadata values arrive as
// numbers or strings.
func ParseCallback(body []byte) (*Callback, bool) {
	cb := gjson.GetBytes(body, "Body.stkCallback")
	if !cb.Exists() || !cb.IsObject() {
		return nil, false
	}
	if code := cb.Get("ResultCode"); !code.Exists() || code.Type == gjson.Null {
		return nil, false
	}

	out := &Callback{
		MerchantRequestID: cb.Get("MerchantRequestID").String(),
		CheckoutRequestID: cb.Get("CheckoutRequestID").String(),
		ResultCode:        int(cb.Get("ResultCode").Int()),
		ResultDesc:        cb.Get("ResultDesc").String(),
	}

	cb.Get("CallbackMetadata.Item").ForEach(func(_, item gjson.Result) bool {
		value := item.Get("Value")
		switch item.Get("Name").String() {
		case "MpesaReceiptNumber":
			out.ReceiptNumber = value.String()
		case "Amount":
			out.Amount = value.Float()
		case "TransactionDate":
			out.TransactionDate = value.String()
		case "PhoneNumber":
			out.PhoneNumber = value.String()
		}
		return true
	})

	return out, true
}

func (c *Callback) Succeeded() bool {
	return c.ResultCode == ResultCodeSuccess
}

// MissingReceiptFields lists the receipt metadata a successful callback
// failed to provide.
func (c *Callback) MissingReceiptFields() []string {
	var missing []string
	if c.ReceiptNumber == "" {
		missing = append(missing, "MpesaReceiptNumber")
	}
	if c.Amount <= 0 {
		missing = append(missing, "Amount")
	}
	if c.TransactionDate == "" {
		missing = append(missing, "TransactionDate")
	}
	return missing
}

// Result converts the callback into a payment result. ok is false for a
// success without complete receipt metadata: such a callback settles
// nothing and the booking stays pending for the next delivery or the
// reconciler.
func (c *Callback) Result(at time.Time) (model.PaymentResult, bool) {
	code := c.ResultCode
	result := model.PaymentResult{
		ResultCode: &code,
		ResultDesc: c.ResultDesc,
		At:         at,
	}

	if !c.Succeeded() {
		result.Status = model.PaymentFailed
		return result, true
	}

	if len(c.MissingReceiptFields()) > 0 {
		return model.PaymentResult{}, false
	}

	result.Status = model.PaymentPaid
	result.ReceiptNumber = c.ReceiptNumber
	result.Amount = c.Amount
	result.TransactionDate = c.TransactionDate
	return result, true
}

// QueryResult converts a definitive non-zero query result into a failed
// payment. Successful queries carry no receipt, so they are left to the
// callback.
func QueryResult(q *QueryResponse, at time.Time) (model.PaymentResult, bool) {
	if !q.Settled() || q.ResultCode == "0" {
		return model.PaymentResult{}, false
	}
	result := model.PaymentResult{
		Status:     model.PaymentFailed,
		ResultDesc: q.ResultDesc,
		At:         at,
	}
	var code int
	if _, err := fmt.Sscanf(q.ResultCode, "%d", &code); err == nil {
		result.ResultCode = &code
	}
	return result, true
}
