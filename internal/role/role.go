// Package role carries the caller's household role on the request context.
package role

import (
	"context"
	"net/http"
	"strings"
)

// Role selects what a caller may do for a household.
type Role string

const (
	Nanny  Role = "nanny"
	Parent Role = "parent"
)

// Parse maps a raw value to a Role. Anything unrecognised is Nanny.
func Parse(raw string) Role {
	if strings.EqualFold(strings.TrimSpace(raw), string(Parent)) {
		return Parent
	}
	return Nanny
}

type contextKey string

const roleKey contextKey = "nanny-tracker-role"

// WithRole stores the role on the context.
func WithRole(ctx context.Context, r Role) context.Context {
	return context.WithValue(ctx, roleKey, r)
}

// FromContext retrieves the role stored by WithRole, defaulting to Nanny.
func FromContext(ctx context.Context) Role {
	if r, ok := ctx.Value(roleKey).(Role); ok {
		return r
	}
	return Nanny
}

// Middleware reads the role query parameter into the request context.
type Middleware struct{}

// Wrap attaches role selection to an http.Handler.
func (Middleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := WithRole(r.Context(), Parse(r.URL.Query().Get("role")))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
