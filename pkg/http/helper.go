package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	apperrors "geranium/pkg/errors"
)

const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

// ExtractPageLimit reads page and limit from the query string. Invalid or
// out of range values are clamped rather than rejected.
func ExtractPageLimit(r *http.Request) (int, int) {
	query := r.URL.Query()

	page := 1
	if s := strings.TrimSpace(query.Get("page")); s != "" {
		if v, err := strconv.Atoi(s); err == nil {
			page = v
		}
	}

	limit := 0
	if s := strings.TrimSpace(query.Get("limit")); s != "" {
		if v, err := strconv.Atoi(s); err == nil {
			limit = v
		}
	}

	return NormalizePage(page), NormalizePageLimit(limit)
}

func NormalizePage(page int) int {
	return max(1, page)
}

func NormalizePageLimit(limit int) int {
	if limit <= 0 {
		return DefaultPageLimit
	}
	return min(limit, MaxPageLimit)
}

// PageCount returns ceil(total/limit).
func PageCount(total int64, limit int) int {
	if limit <= 0 || total <= 0 {
		return 0
	}
	return int((total + int64(limit) - 1) / int64(limit))
}

// DecodeJSON decodes the request body into dst, mapping malformed or empty
// bodies to an invalid input error.
func DecodeJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return apperrors.InvalidInput("Invalid request body")
	}
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return apperrors.New(apperrors.CodeBadRequest, "Request body too large", http.StatusRequestEntityTooLarge)
		}
		if errors.Is(err, io.EOF) {
			return apperrors.InvalidInput("Request body is empty")
		}
		return apperrors.InvalidInput("Invalid request body")
	}
	return nil
}

// ClientIP prefers the first X-Forwarded-For hop, then X-Real-IP, then the
// remote address without its port.
func ClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	addr := r.RemoteAddr
	if i := strings.LastIndex(addr, ":"); i > 0 {
		return strings.Trim(addr[:i], "[]")
	}
	return addr
}
