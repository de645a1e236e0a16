package client

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"geranium/pkg/model"
)

var ErrPaymentTimeout = errors.New("payment still pending after polling")

type BookingClient struct {
	httpClient *HttpClient
}

func NewBookingClient(baseUrl string) *BookingClient {
	return &BookingClient{
		httpClient: NewHttpClient(baseUrl, defaultHTTPTimeout),
	}
}

type CreateBookingResponse struct {
	BookingID string         `json:"bookingId"`
	Booking   *model.Booking `json:"booking"`
}

type PaymentStatusResponse struct {
	Status  model.PaymentStatus `json:"status"`
	Booking *model.Booking      `json:"booking"`
}

func (c *BookingClient) Create(ctx context.Context, req *model.BookingRequest) (*CreateBookingResponse, error) {
	resp, err := c.httpClient.POST(ctx, "/api/bookings", req)
	if err != nil {
		return nil, err
	}
	if !resp.IsSuccess() {
		return nil, fmt.Errorf("create booking: %s", GetErrorMessage(resp))
	}

	var out CreateBookingResponse
	if err := resp.DecodeJSON(&out); err != nil {
		return nil, fmt.Errorf("could not decode booking:\n%s\n%w", resp.ToString(), err)
	}
	return &out, nil
}

func (c *BookingClient) PaymentStatus(ctx context.Context, id string) (*PaymentStatusResponse, error) {
	resp, err := c.httpClient.GET(ctx, "/api/bookings/"+url.PathEscape(id)+"/payment-status")
	if err != nil {
		return nil, err
	}
	if !resp.IsSuccess() {
		return nil, fmt.Errorf("payment status: %s", GetErrorMessage(resp))
	}

	var out PaymentStatusResponse
	if err := resp.DecodeJSON(&out); err != nil {
		return nil, fmt.Errorf("could not decode payment status:\n%s\n%w", resp.ToString(), err)
	}
	return &out, nil
}

// WaitForPayment polls the payment status until it leaves pending or the
// attempts run out. Transient request errors count as an attempt.
func (c *BookingClient) WaitForPayment(ctx context.Context, id string, attempts int, interval time.Duration) (model.PaymentStatus, error) {
	last := model.PaymentPending
	var lastErr error

	for i := 0; i < attempts; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return last, ctx.Err()
			case <-time.After(interval):
			}
		}

		status, err := c.PaymentStatus(ctx, id)
		if err != nil {
			lastErr = err
			continue
		}
		last = status.Status
		if last != model.PaymentPending {
			return last, nil
		}
	}

	if lastErr != nil {
		return last, fmt.Errorf("%w: %v", ErrPaymentTimeout, lastErr)
	}
	return last, ErrPaymentTimeout
}
