package mpesa

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"geranium/pkg/logger"
	"geranium/pkg/model"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

type fakeDaraja struct {
	server      *httptest.Server
	tokenCalls  int32
	lastPush    []byte
	lastQuery   []byte
	pushStatus  int
	pushBody    string
	queryStatus int
	queryBody   string
}

func newFakeDaraja(t *testing.T) *fakeDaraja {
	t.Helper()
	d := &fakeDaraja{
		pushStatus: http.StatusOK,
		pushBody: `{"MerchantRequestID":"29115-34620561-1","CheckoutRequestID":"ws_CO_191220191020363925",
			"ResponseCode":"0","ResponseDescription":"Success. Request accepted for processing",
			"CustomerMessage":"Success. Request accepted for processing"}`,
		queryStatus: http.StatusOK,
		queryBody: `{"ResponseCode":"0","ResponseDescription":"The service request has been accepted successsfully",
			"MerchantRequestID":"29115-34620561-1","CheckoutRequestID":"ws_CO_191220191020363925",
			"ResultCode":"1032","ResultDesc":"Request cancelled by user"}`,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/v1/generate", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&d.tokenCalls, 1)
		want := "Basic " + base64.StdEncoding.EncodeToString([]byte("key:secret"))
		if r.Header.Get("Authorization") != want || r.URL.Query().Get("grant_type") != "client_credentials" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, `{"errorCode":"401.002.01","errorMessage":"Error Occurred - Invalid Access Token"}`)
			return
		}
		_, _ = io.WriteString(w, `{"access_token":"tok-123","expires_in":"3599"}`)
	})
	mux.HandleFunc("/mpesa/stkpush/v1/processrequest", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok-123" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		d.lastPush, _ = io.ReadAll(r.Body)
		w.WriteHeader(d.pushStatus)
		_, _ = io.WriteString(w, d.pushBody)
	})
	mux.HandleFunc("/mpesa/stkpushquery/v1/query", func(w http.ResponseWriter, r *http.Request) {
		d.lastQuery, _ = io.ReadAll(r.Body)
		w.WriteHeader(d.queryStatus)
		_, _ = io.WriteString(w, d.queryBody)
	})

	d.server = httptest.NewServer(mux)
	t.Cleanup(d.server.Close)
	return d
}

func newTestClient(d *fakeDaraja) *Client {
	c := NewClient(Config{
		BaseURL:        d.server.URL,
		ConsumerKey:    "key",
		ConsumerSecret: "secret",
		Shortcode:      "174379",
		Passkey:        "passkey",
		CallbackURL:    "https://api.geranium.test" + CallbackPath,
		Timeout:        time.Second,
	}, nil, logger.Discard())
	c.now = func() time.Time { return time.Date(2025, 3, 10, 6, 4, 5, 0, time.UTC) }
	return c
}

func TestTimestampAndPassword(t *testing.T) {
	ts := Timestamp(time.Date(2025, 3, 10, 22, 30, 0, 0, time.UTC))
	assert.Equal(t, "20250311013000", ts, "Nairobi is UTC+3")

	want := base64.StdEncoding.EncodeToString([]byte("174379passkey20250311013000"))
	assert.Equal(t, want, Password("174379", "passkey", ts))
}

func TestAccountReference(t *testing.T) {
	assert.Equal(t, "GCS-E4F5A6", AccountReference("65f1c2d3e4f5a6"))
	assert.Equal(t, "GCS-AB12", AccountReference("ab12"))
	assert.Equal(t, ProductionBaseURL, BaseURL("production"))
	assert.Equal(t, SandboxBaseURL, BaseURL("sandbox"))
	assert.Equal(t, SandboxBaseURL, BaseURL(""))
}

func TestClient_InitiatePush(t *testing.T) {
	d := newFakeDaraja(t)
	c := newTestClient(d)

	resp, err := c.InitiatePush(context.Background(), PushRequest{
		Phone:     "0712 345 678",
		Amount:    1400.2,
		BookingID: "65f1c2d3e4f5a6",
	})
	require.NoError(t, err)
	assert.Equal(t, "ws_CO_191220191020363925", resp.CheckoutRequestID)
	assert.Equal(t, "29115-34620561-1", resp.MerchantRequestID)

	body := gjson.ParseBytes(d.lastPush)
	assert.Equal(t, "174379", body.Get("BusinessShortCode").String())
	assert.Equal(t, "20250310090405", body.Get("Timestamp").String())
	assert.Equal(t, Password("174379", "passkey", "20250310090405"), body.Get("Password").String())
	assert.Equal(t, "CustomerPayBillOnline", body.Get("TransactionType").String())
	assert.Equal(t, int64(1401), body.Get("Amount").Int(), "amount is rounded up")
	assert.Equal(t, "254712345678", body.Get("PartyA").String())
	assert.Equal(t, "254712345678", body.Get("PhoneNumber").String())
	assert.Equal(t, "174379", body.Get("PartyB").String())
	assert.Equal(t, "https://api.geranium.test/api/payments/mpesa/callback", body.Get("CallBackURL").String())
	assert.Equal(t, "GCS-E4F5A6", body.Get("AccountReference").String())
	assert.Equal(t, "Geranium Cleaning Payment", body.Get("TransactionDesc").String())
}

func TestClient_TokenIsCached(t *testing.T) {
	d := newFakeDaraja(t)
	c := newTestClient(d)

	for i := 0; i < 3; i++ {
		_, err := c.InitiatePush(context.Background(), PushRequest{Phone: "0712345678", Amount: 700, BookingID: "b1"})
		require.NoError(t, err)
	}
	_, err := c.Query(context.Background(), "ws_CO_1")
	require.NoError(t, err)

	assert.Equal(t, int32(1), atomic.LoadInt32(&d.tokenCalls))
}

func TestClient_APIError(t *testing.T) {
	d := newFakeDaraja(t)
	d.pushStatus = http.StatusBadRequest
	d.pushBody = `{"requestId":"1-2","errorCode":"400.002.02","errorMessage":"Bad Request - Invalid PhoneNumber"}`
	c := newTestClient(d)

	_, err := c.InitiatePush(context.Background(), PushRequest{Phone: "0712345678", Amount: 700, BookingID: "b1"})
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "400.002.02", apiErr.Code)
	assert.Equal(t, "Bad Request - Invalid PhoneNumber", apiErr.Message)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
}

func TestClient_RejectedPush(t *testing.T) {
	d := newFakeDaraja(t)
	d.pushBody = `{"ResponseCode":"1","ResponseDescription":"Rejected"}`
	c := newTestClient(d)

	_, err := c.InitiatePush(context.Background(), PushRequest{Phone: "0712345678", Amount: 700, BookingID: "b1"})
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "1", apiErr.Code)
}

func TestClient_MissingCredentials(t *testing.T) {
	d := newFakeDaraja(t)
	c := NewClient(Config{BaseURL: d.server.URL}, nil, logger.Discard())

	_, err := c.Query(context.Background(), "ws_CO_1")
	require.Error(t, err)
	assert.Equal(t, int32(0), atomic.LoadInt32(&d.tokenCalls))
}

func TestClient_Query(t *testing.T) {
	d := newFakeDaraja(t)
	c := newTestClient(d)

	q, err := c.Query(context.Background(), "ws_CO_191220191020363925")
	require.NoError(t, err)
	assert.Equal(t, "1032", q.ResultCode)
	assert.True(t, q.Settled())
	assert.Equal(t, "ws_CO_191220191020363925", gjson.GetBytes(d.lastQuery, "CheckoutRequestID").String())

	d.queryStatus = http.StatusInternalServerError
	d.queryBody = `{"errorCode":"500.001.1001","errorMessage":"The transaction is being processed"}`
	_, err = c.Query(context.Background(), "ws_CO_191220191020363925")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.True(t, IsStillProcessing(apiErr))
}

const successCallback = `{"Body":{"stkCallback":{
	"MerchantRequestID":"29115-34620561-1",
	"CheckoutRequestID":"ws_CO_191220191020363925",
	"ResultCode":0,
	"ResultDesc":"The service request is processed successfully.",
	"CallbackMetadata":{"Item":[
		{"Name":"Amount","Value":1400.00},
		{"Name":"MpesaReceiptNumber","Value":"NLJ7RT61SV"},
		{"Name":"Balance"},
		{"Name":"TransactionDate","Value":20191219102115},
		{"Name":"PhoneNumber","Value":254708374149}
	]}}}}`

func TestParseCallback_Success(t *testing.T) {
	cb, ok := ParseCallback([]byte(successCallback))
	require.True(t, ok)
	assert.True(t, cb.Succeeded())
	assert.Equal(t, "NLJ7RT61SV", cb.ReceiptNumber)
	assert.Equal(t, 1400.0, cb.Amount)
	assert.Equal(t, "20191219102115", cb.TransactionDate)
	assert.Equal(t, "254708374149", cb.PhoneNumber)

	at := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	result, ok := cb.Result(at)
	require.True(t, ok)
	assert.Equal(t, model.PaymentPaid, result.Status)
	assert.Equal(t, "NLJ7RT61SV", result.ReceiptNumber)
	require.NotNil(t, result.ResultCode)
	assert.Equal(t, 0, *result.ResultCode)
}

func TestParseCallback_StringValues(t *testing.T) {
	body := `{"Body":{"stkCallback":{"CheckoutRequestID":"ws_1","ResultCode":"0","ResultDesc":"ok",
		"CallbackMetadata":{"Item":[
			{"Name":"Amount","Value":"700"},
			{"Name":"MpesaReceiptNumber","Value":"QWE123"},
			{"Name":"TransactionDate","Value":"20250310090000"}
		]}}}}`
	cb, ok := ParseCallback([]byte(body))
	require.True(t, ok)
	assert.True(t, cb.Succeeded())
	assert.Equal(t, 700.0, cb.Amount)
	result, ok := cb.Result(time.Now())
	require.True(t, ok)
	assert.Equal(t, model.PaymentPaid, result.Status)
}

func TestParseCallback_Failure(t *testing.T) {
	body := `{"Body":{"stkCallback":{"CheckoutRequestID":"ws_1","ResultCode":1032,"ResultDesc":"Request cancelled by user"}}}`
	cb, ok := ParseCallback([]byte(body))
	require.True(t, ok)

	result, ok := cb.Result(time.Now())
	require.True(t, ok)
	assert.Equal(t, model.PaymentFailed, result.Status)
	assert.Equal(t, 1032, *result.ResultCode)
	assert.Equal(t, "Request cancelled by user", result.ResultDesc)
	assert.Empty(t, result.ReceiptNumber)
}

func TestParseCallback_SuccessWithoutReceiptSettlesNothing(t *testing.T) {
	body := `{"Body":{"stkCallback":{"CheckoutRequestID":"ws_1","ResultCode":0,"ResultDesc":"ok",
		"CallbackMetadata":{"Item":[{"Name":"Amount","Value":700}]}}}}`
	cb, ok := ParseCallback([]byte(body))
	require.True(t, ok)
	assert.Equal(t, []string{"MpesaReceiptNumber", "TransactionDate"}, cb.MissingReceiptFields())

	_, ok = cb.Result(time.Now())
	assert.False(t, ok)
}

func TestParseCallback_Malformed(t *testing.T) {
	for _, body := range []string{``, `not json`, `{}`, `{"Body":{}}`, `{"Body":{"stkCallback":"x"}}`,
		`{"Body":{"stkCallback":{"CheckoutRequestID":"ws_CO_1"}}}`,
		`{"Body":{"stkCallback":{"CheckoutRequestID":"ws_CO_1","ResultCode":null}}}`,
	} {
		_, ok := ParseCallback([]byte(body))
		assert.False(t, ok, body)
	}
}

func TestQueryResult(t *testing.T) {
	at := time.Now()

	_, ok := QueryResult(&QueryResponse{ResponseCode: "0"}, at)
	assert.False(t, ok, "no result yet")

	_, ok = QueryResult(&QueryResponse{ResultCode: "0"}, at)
	assert.False(t, ok, "success is left to the callback")

	result, ok := QueryResult(&QueryResponse{ResultCode: "1032", ResultDesc: "Request cancelled by user"}, at)
	require.True(t, ok)
	assert.Equal(t, model.PaymentFailed, result.Status)
	assert.Equal(t, 1032, *result.ResultCode)
}

func TestMemoryTokenCache_Expires(t *testing.T) {
	cache := NewMemoryTokenCache().(*memoryTokenCache)
	now := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return now }
	ctx := context.Background()

	_, ok := cache.Get(ctx)
	assert.False(t, ok)

	cache.Set(ctx, "tok", time.Minute)
	got, ok := cache.Get(ctx)
	assert.True(t, ok)
	assert.Equal(t, "tok", got)

	now = now.Add(time.Minute)
	_, ok = cache.Get(ctx)
	assert.False(t, ok)
}

func TestRedisTokenCache(t *testing.T) {
	db, mock := redismock.NewClientMock()
	cache := NewRedisTokenCache(db, logger.Discard())
	ctx := context.Background()

	mock.ExpectGet(tokenCacheKey).RedisNil()
	_, ok := cache.Get(ctx)
	assert.False(t, ok)

	mock.ExpectSet(tokenCacheKey, "tok-123", 58*time.Minute).SetVal("OK")
	cache.Set(ctx, "tok-123", 58*time.Minute)

	mock.ExpectGet(tokenCacheKey).SetVal("tok-123")
	got, ok := cache.Get(ctx)
	assert.True(t, ok)
	assert.Equal(t, "tok-123", got)

	assert.NoError(t, mock.ExpectationsWereMet())
}
