package auth

import (
	"errors"
	"net/http"
	"strings"

	authlib "example.com/mergington/internal/platform/auth"
)

// ErrAdminRequired is reported when a caller presents no admin credential.
var ErrAdminRequired = errors.New("admin credentials required")

// ErrNotAdmin is reported when the X-User-ID caller is not on the allow-list.
var ErrNotAdmin = errors.New("admin access required")

// AdminGate authorizes admin requests by X-User-ID allow-list or by a bearer
// token carrying ScopeActivitiesAdmin.
type AdminGate struct {
	allowed map[string]struct{}
	bearer  *authlib.Middleware
	onError authlib.ErrorWriter
}

// NewAdminGate builds a gate. An empty Config.Secret disables bearer tokens.
func NewAdminGate(adminIDs []string, cfg Config, onError authlib.ErrorWriter) AdminGate {
	allowed := make(map[string]struct{}, len(adminIDs))
	for _, id := range adminIDs {
		if id = strings.TrimSpace(id); id != "" {
			allowed[id] = struct{}{}
		}
	}
	gate := AdminGate{allowed: allowed, onError: onError}
	if cfg.Secret != "" {
		mw := authlib.NewMiddleware(cfg, onError).RequireScope(ScopeActivitiesAdmin)
		gate.bearer = &mw
	}
	return gate
}

// Wrap attaches the gate to an http.Handler.
func (g AdminGate) Wrap(next http.Handler) http.Handler {
	var viaToken http.Handler
	if g.bearer != nil {
		viaToken = g.bearer.Wrap(next)
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := strings.TrimSpace(r.Header.Get(HeaderUserID)); id != "" {
			if _, ok := g.allowed[id]; !ok {
				g.fail(w, http.StatusForbidden, ErrNotAdmin)
				return
			}
			claims := &Claims{Subject: id, Scopes: map[string]struct{}{ScopeActivitiesAdmin: {}}}
			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
			return
		}

		if r.Header.Get("Authorization") == "" {
			g.fail(w, http.StatusUnauthorized, ErrAdminRequired)
			return
		}
		if viaToken == nil {
			g.fail(w, http.StatusUnauthorized, authlib.ErrInvalidToken)
			return
		}
		viaToken.ServeHTTP(w, r)
	})
}

func (g AdminGate) fail(w http.ResponseWriter, status int, err error) {
	if g.onError != nil {
		g.onError(w, status, err)
		return
	}
	http.Error(w, err.Error(), status)
}
