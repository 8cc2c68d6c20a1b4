// Package middleware provides the HTTP middleware chain: session checks,
// CORS, access logging and request metrics.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/jonathan/application-tracker/internal/types"
)

// ContextKey is a typed key for context values to avoid collisions.
type ContextKey string

// userKey is the context key for storing the authenticated identity.
const userKey ContextKey = "user"

// SessionCookie is the cookie carrying the session token.
const SessionCookie = "token"

// Authenticator resolves a session token to an identity.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*types.User, error)
}

// ErrorWriter renders a failed authentication.
type ErrorWriter func(w http.ResponseWriter, r *http.Request, err error)

// RequireSession resolves the caller once per request and stores the identity
// in the request context. The token comes from the session cookie, falling
// back to an Authorization: Bearer header.
func RequireSession(guard Authenticator, onError ErrorWriter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := guard.Authenticate(r.Context(), TokenFromRequest(r))
			if err != nil {
				onError(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

// TokenFromRequest returns the session token, or "" when none was sent.
func TokenFromRequest(r *http.Request) string {
	if c, err := r.Cookie(SessionCookie); err == nil && c.Value != "" {
		return c.Value
	}

	parts := strings.Fields(r.Header.Get("Authorization"))
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return parts[1]
	}
	return ""
}

// WithUser returns a copy of ctx carrying user.
func WithUser(ctx context.Context, user *types.User) context.Context {
	return context.WithValue(ctx, userKey, user)
}

// UserFromContext returns the identity stored by RequireSession.
func UserFromContext(ctx context.Context) (*types.User, bool) {
	user, ok := ctx.Value(userKey).(*types.User)
	return user, ok && user != nil
}
