package http

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	apperrors "geranium/pkg/errors"
)

func TestExtractPageLimit(t *testing.T) {
	tests := []struct {
		name      string
		query     string
		wantPage  int
		wantLimit int
	}{
		{"defaults", "", 1, DefaultPageLimit},
		{"explicit", "?page=3&limit=10", 3, 10},
		{"limit capped", "?limit=500", 1, MaxPageLimit},
		{"negative page", "?page=-2&limit=5", 1, 5},
		{"garbage ignored", "?page=abc&limit=xyz", 1, DefaultPageLimit},
		{"zero limit", "?limit=0", 1, DefaultPageLimit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/admin/bookings"+tt.query, nil)
			page, limit := ExtractPageLimit(req)
			if page != tt.wantPage || limit != tt.wantLimit {
				t.Errorf("got page=%d limit=%d, want page=%d limit=%d", page, limit, tt.wantPage, tt.wantLimit)
			}
		})
	}
}

func TestPageCount(t *testing.T) {
	tests := []struct {
		total int64
		limit int
		want  int
	}{
		{25, 10, 3},
		{20, 10, 2},
		{0, 10, 0},
		{1, 100, 1},
		{5, 0, 0},
	}
	for _, tt := range tests {
		if got := PageCount(tt.total, tt.limit); got != tt.want {
			t.Errorf("PageCount(%d, %d) = %d, want %d", tt.total, tt.limit, got, tt.want)
		}
	}
}

func TestDecodeJSON(t *testing.T) {
	var dst struct {
		Name string `json:"name"`
	}

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"Wanja"}`))
	if err := DecodeJSON(req, &dst); err != nil || dst.Name != "Wanja" {
		t.Fatalf("decode failed: %v %+v", err, dst)
	}

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{bad`))
	if err := DecodeJSON(req, &dst); !apperrors.HasCode(err, apperrors.CodeInvalidInput) {
		t.Errorf("malformed body should be invalid input, got %v", err)
	}

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(""))
	if err := DecodeJSON(req, &dst); !apperrors.HasCode(err, apperrors.CodeInvalidInput) {
		t.Errorf("empty body should be invalid input, got %v", err)
	}
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.7:5123"
	if got := ClientIP(req); got != "10.0.0.7" {
		t.Errorf("remote addr: got %q", got)
	}

	req.Header.Set("X-Forwarded-For", "41.90.1.2, 10.0.0.1")
	if got := ClientIP(req); got != "41.90.1.2" {
		t.Errorf("forwarded: got %q", got)
	}
}

func TestWriteError_RendersAppError(t *testing.T) {
	w := httptest.NewRecorder()
	_ = WriteError(w, apperrors.NotFoundWithID("Booking", "x1"))

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"code":"NOT_FOUND"`) {
		t.Errorf("body = %s", w.Body.String())
	}
}
