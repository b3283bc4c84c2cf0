package auth

import (
	"context"

	authlib "example.com/mergington/internal/platform/auth"
)

const (
	// ScopeActivitiesAdmin grants access to the /admin endpoints.
	ScopeActivitiesAdmin = "activities:admin"
	// HeaderUserID carries the caller's user id for allow-list admin access.
	HeaderUserID = "X-User-ID"
)

type (
	Claims = authlib.Claims
	Config = authlib.Config
)

// WithClaims stores the admin identity in ctx.
func WithClaims(ctx context.Context, claims *Claims) context.Context {
	return authlib.WithClaims(ctx, claims)
}

// FromContext returns the admin identity attached by AdminGate, whether it
// came from the allow-list or a bearer token.
func FromContext(ctx context.Context) (*Claims, bool) {
	return authlib.FromContext(ctx)
}
