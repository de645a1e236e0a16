package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	apperrors "geranium/pkg/errors"
	httputil "geranium/pkg/http"
	"geranium/pkg/logger"
	"geranium/pkg/sanitizer"

	"github.com/golang-jwt/jwt/v5"
	"github.com/julienschmidt/httprouter"
	"golang.org/x/crypto/bcrypt"
)

const bearerPrefix = "Bearer "

var ErrInvalidToken = errors.New("invalid token")

type Claims struct {
	Email   string `json:"email"`
	IsAdmin bool   `json:"isAdmin"`
	jwt.RegisteredClaims
}

type claimsKey struct{}

func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(claimsKey{}).(*Claims)
	return c, ok
}

// Authenticator checks the single admin account and issues HS256 tokens.
type Authenticator struct {
	email        []byte
	passwordHash []byte
	secret       []byte
	ttl          time.Duration
	log          *logger.Logger
	now          func() time.Time
}

// NewAuthenticator hashes the configured password once so that logins only
// ever compare against the bcrypt hash.
func NewAuthenticator(email, password, secret string, ttl time.Duration, log *logger.Logger) (*Authenticator, error) {
	if secret == "" {
		return nil, errors.New("jwt secret is required")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash admin password: %w", err)
	}
	return &Authenticator{
		email:        []byte(sanitizer.NormalizeEmail(email)),
		passwordHash: hash,
		secret:       []byte(secret),
		ttl:          ttl,
		log:          log,
		now:          time.Now,
	}, nil
}

// Login returns a signed token for valid credentials.
func (a *Authenticator) Login(email, password string) (string, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return "", apperrors.InvalidInput("Email and password required")
	}

	emailOK := subtle.ConstantTimeCompare([]byte(sanitizer.NormalizeEmail(email)), a.email) == 1
	passwordOK := bcrypt.CompareHashAndPassword(a.passwordHash, []byte(password)) == nil
	if !emailOK || !passwordOK {
		a.log.Warn("Admin login rejected", "email", sanitizer.NormalizeEmail(email))
		return "", apperrors.Unauthorized("Invalid credentials")
	}

	token, err := a.Issue(string(a.email))
	if err != nil {
		return "", apperrors.Internal("Failed to issue token", err)
	}
	a.log.Info("Admin logged in", "email", string(a.email))
	return token, nil
}

func (a *Authenticator) Issue(email string) (string, error) {
	now := a.now()
	claims := Claims{
		Email:   email,
		IsAdmin: true,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

func (a *Authenticator) Verify(tokenStr string) (*Claims, error) {
	t, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(*jwt.Token) (any, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(a.now))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	c, ok := t.Claims.(*Claims)
	if !ok || !t.Valid {
		return nil, ErrInvalidToken
	}
	return c, nil
}

// RequireAdmin rejects requests without a valid admin bearer token.
func (a *Authenticator) RequireAdmin(next httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, bearerPrefix) {
			a.reject(w, apperrors.Unauthorized("Unauthorized"))
			return
		}

		claims, err := a.Verify(strings.TrimPrefix(header, bearerPrefix))
		if err != nil {
			a.reject(w, apperrors.Unauthorized("Invalid or expired token"))
			return
		}
		if !claims.IsAdmin {
			a.reject(w, apperrors.Forbidden("Forbidden"))
			return
		}

		next(w, r.WithContext(context.WithValue(r.Context(), claimsKey{}, claims)), ps)
	}
}

func (a *Authenticator) reject(w http.ResponseWriter, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		a.log.Error("failed to write error response", "handler", "RequireAdmin", "operation", "WriteError", "error", writeErr)
	}
}
