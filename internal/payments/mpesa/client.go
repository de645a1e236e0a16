package mpesa

import (
	"context"
	"encoding/base64"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"geranium/pkg/client"
	"geranium/pkg/logger"
	"geranium/pkg/model"
	"geranium/pkg/sanitizer"

	"github.com/tidwall/gjson"
)

const (
	SandboxBaseURL    = "https://sandbox.safaricom.co.ke"
	ProductionBaseURL = "https://api.safaricom.co.ke"

	CallbackPath = "/api/payments/mpesa/callback"

	tokenPath = "/oauth/v1/generate?grant_type=client_credentials"
	pushPath  = "/mpesa/stkpush/v1/processrequest"
	queryPath = "/mpesa/stkpushquery/v1/query"

	transactionType    = "CustomerPayBillOnline"
	defaultDescription = "Geranium Cleaning Payment"
	accountRefPrefix   = "GCS-"
	accountRefLen      = 6
	timestampLayout    = "20060102150405"

	// Tokens are refreshed this long before Daraja expires them.
	tokenExpiryMargin = time.Minute
	defaultTokenTTL   = 55 * time.Minute
)

// Kenya has no daylight saving, so a fixed zone avoids depending on tzdata.
var nairobi = time.FixedZone("EAT", 3*60*60)

func BaseURL(env string) string {
	if env == "production" {
		return ProductionBaseURL
	}
	return SandboxBaseURL
}

type Config struct {
	BaseURL        string
	ConsumerKey    string
	ConsumerSecret string
	Shortcode      string
	Passkey        string
	CallbackURL    string
	Timeout        time.Duration
}

// APIError is a rejection reported by Daraja.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("M-Pesa error %s: %s", e.Code, e.Message)
	}
	return "M-Pesa error: " + e.Message
}

type PushRequest struct {
	Phone       string
	Amount      float64
	BookingID   string
	Description string
}

type PushResponse struct {
	MerchantRequestID   string `json:"merchantRequestId"`
	CheckoutRequestID   string `json:"checkoutRequestId"`
	ResponseCode        string `json:"responseCode"`
	ResponseDescription string `json:"responseDescription"`
	CustomerMessage     string `json:"customerMessage,omitempty"`
}

// QueryResponse mirrors Daraja's STK query payload.
type QueryResponse struct {
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResultCode          string `json:"ResultCode"`
	ResultDesc          string `json:"ResultDesc"`
}

// Settled reports whether the query carries a final result.
func (q *QueryResponse) Settled() bool {
	return q.ResultCode != ""
}

type Client struct {
	http   *client.HttpClient
	cfg    Config
	tokens TokenCache
	log    *logger.Logger
	now    func() time.Time
}

func NewClient(cfg Config, tokens TokenCache, log *logger.Logger) *Client {
	if tokens == nil {
		tokens = NewMemoryTokenCache()
	}
	return &Client{
		http:   client.NewHttpClient(cfg.BaseURL, cfg.Timeout),
		cfg:    cfg,
		tokens: tokens,
		log:    log,
		now:    time.Now,
	}
}

// Timestamp formats t as Daraja expects, in Nairobi time.
func Timestamp(t time.Time) string {
	return t.In(nairobi).Format(timestampLayout)
}

// Password is base64(shortcode + passkey + timestamp).
func Password(shortcode, passkey, timestamp string) string {
	return base64.StdEncoding.EncodeToString([]byte(shortcode + passkey + timestamp))
}

// AccountReference is the reference shown on the customer's handset.
func AccountReference(bookingID string) string {
	return accountRefPrefix + model.ShortReference(bookingID, accountRefLen)
}

func (c *Client) accessToken(ctx context.Context) (string, error) {
	if token, ok := c.tokens.Get(ctx); ok {
		return token, nil
	}
	if c.cfg.ConsumerKey == "" || c.cfg.ConsumerSecret == "" {
		return "", &APIError{Message: "M-Pesa credentials not configured"}
	}

	credentials := base64.StdEncoding.EncodeToString([]byte(c.cfg.ConsumerKey + ":" + c.cfg.ConsumerSecret))
	resp, err := c.http.GETWithHeaders(ctx, tokenPath, map[string]string{
		"Authorization": "Basic " + credentials,
	})
	if err != nil {
		return "", fmt.Errorf("M-Pesa token request failed: %w", err)
	}
	if !resp.IsSuccess() {
		return "", apiError(resp)
	}

	token := gjson.GetBytes(resp.Body, "access_token").String()
	if token == "" {
		return "", &APIError{StatusCode: resp.StatusCode, Message: "token response missing access_token"}
	}

	ttl := defaultTokenTTL
	if secs, err := strconv.Atoi(gjson.GetBytes(resp.Body, "expires_in").String()); err == nil && secs > 0 {
		ttl = time.Duration(secs)*time.Second - tokenExpiryMargin
	}
	if ttl > 0 {
		c.tokens.Set(ctx, token, ttl)
	}
	return token, nil
}

func (c *Client) InitiatePush(ctx context.Context, req PushRequest) (*PushResponse, error) {
	token, err := c.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	timestamp := Timestamp(c.now())
	phone := sanitizer.NormalizePhone(req.Phone)
	description := req.Description
	if description == "" {
		description = defaultDescription
	}

	payload := map[string]any{
		"BusinessShortCode": c.cfg.Shortcode,
		"Password":          Password(c.cfg.Shortcode, c.cfg.Passkey, timestamp),
		"Timestamp":         timestamp,
		"TransactionType":   transactionType,
		"Amount":            int64(math.Ceil(req.Amount)),
		"PartyA":            phone,
		"PartyB":            c.cfg.Shortcode,
		"PhoneNumber":       phone,
		"CallBackURL":       c.cfg.CallbackURL,
		"AccountReference":  AccountReference(req.BookingID),
		"TransactionDesc":   description,
	}

	resp, err := c.http.POSTWithHeaders(ctx, pushPath, payload, bearer(token))
	if err != nil {
		return nil, fmt.Errorf("M-Pesa STK push failed: %w", err)
	}
	if !resp.IsSuccess() {
		return nil, apiError(resp)
	}

	body := gjson.ParseBytes(resp.Body)
	out := &PushResponse{
		MerchantRequestID:   body.Get("MerchantRequestID").String(),
		CheckoutRequestID:   body.Get("CheckoutRequestID").String(),
		ResponseCode:        body.Get("ResponseCode").String(),
		ResponseDescription: body.Get("ResponseDescription").String(),
		CustomerMessage:     body.Get("CustomerMessage").String(),
	}
	if out.ResponseCode != "0" || out.CheckoutRequestID == "" {
		return nil, &APIError{StatusCode: resp.StatusCode, Code: out.ResponseCode, Message: out.ResponseDescription}
	}

	c.log.Info("M-Pesa STK push sent",
		"booking_id", req.BookingID,
		"checkout_request_id", out.CheckoutRequestID,
		"amount", payload["Amount"],
	)
	return out, nil
}

func (c *Client) Query(ctx context.Context, checkoutRequestID string) (*QueryResponse, error) {
	token, err := c.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	timestamp := Timestamp(c.now())
	payload := map[string]string{
		"BusinessShortCode": c.cfg.Shortcode,
		"Password":          Password(c.cfg.Shortcode, c.cfg.Passkey, timestamp),
		"Timestamp":         timestamp,
		"CheckoutRequestID": checkoutRequestID,
	}

	resp, err := c.http.POSTWithHeaders(ctx, queryPath, payload, bearer(token))
	if err != nil {
		return nil, fmt.Errorf("M-Pesa STK query failed: %w", err)
	}
	if !resp.IsSuccess() {
		return nil, apiError(resp)
	}

	body := gjson.ParseBytes(resp.Body)
	return &QueryResponse{
		ResponseCode:        body.Get("ResponseCode").String(),
		ResponseDescription: body.Get("ResponseDescription").String(),
		MerchantRequestID:   body.Get("MerchantRequestID").String(),
		CheckoutRequestID:   body.Get("CheckoutRequestID").String(),
		ResultCode:          body.Get("ResultCode").String(),
		ResultDesc:          body.Get("ResultDesc").String(),
	}, nil
}

func bearer(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

func apiError(resp *client.Response) *APIError {
	body := gjson.ParseBytes(resp.Body)
	e := &APIError{
		StatusCode: resp.StatusCode,
		Code:       body.Get("errorCode").String(),
		Message:    body.Get("errorMessage").String(),
	}
	if e.Message == "" {
		e.Message = http.StatusText(resp.StatusCode)
	}
	return e
}

// stillProcessingCode is returned by the query endpoint while the customer
// has not yet answered the push prompt.
const stillProcessingCode = "500.001.1001"

func IsStillProcessing(err *APIError) bool {
	return err.Code == stillProcessingCode
}
