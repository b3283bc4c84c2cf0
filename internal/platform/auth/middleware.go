package auth

import (
	"net/http"
	"strings"
)

// ErrorWriter renders an authentication failure. status is 401 or 403.
type ErrorWriter func(w http.ResponseWriter, status int, err error)

// Middleware provides HTTP middleware for bearer-token validation.
type Middleware struct {
	Config  Config
	// Scope, when set, must be present in the token's claims.
	Scope   string
	OnError ErrorWriter
}

// NewMiddleware constructs a middleware. A nil onError falls back to http.Error.
func NewMiddleware(cfg Config, onError ErrorWriter) Middleware {
	return Middleware{Config: cfg, OnError: onError}
}

// RequireScope returns a copy of m that rejects tokens lacking scope with 403.
func (m Middleware) RequireScope(scope string) Middleware {
	m.Scope = scope
	return m
}

// Wrap wraps an http.Handler with authentication.
func (m Middleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := ParseRequest(r, m.Config)
		if err != nil {
			m.fail(w, http.StatusUnauthorized, err)
			return
		}
		if m.Scope != "" && !claims.HasScope(m.Scope) {
			m.fail(w, http.StatusForbidden, ErrInsufficientScope)
			return
		}
		ctx := WithClaims(r.Context(), claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m Middleware) fail(w http.ResponseWriter, status int, err error) {
	if m.OnError != nil {
		m.OnError(w, status, err)
		return
	}
	http.Error(w, err.Error(), status)
}

// ParseRequest extracts and validates the bearer token on r.
func ParseRequest(r *http.Request, cfg Config) (*Claims, error) {
	token, err := BearerToken(r)
	if err != nil {
		return nil, err
	}
	return Parse(token, cfg)
}

// BearerToken returns the token from the Authorization header.
func BearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", ErrMissingToken
	}
	const prefix = "bearer "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", ErrInvalidToken
	}
	token := strings.TrimSpace(header[len(prefix):])
	if token == "" {
		return "", ErrInvalidToken
	}
	return token, nil
}
