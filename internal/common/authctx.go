package common

import (
	"context"
	"net/http"
	"strings"
)

type ctxKey int

const (
	userIDKey ctxKey = iota
	userSlotKey
)

// WithUserSlot reserves a place on ctx that WithUserID fills in below it, so
// outer middleware can tell whose request it was once the handler returns.
func WithUserSlot(ctx context.Context) context.Context {
	if _, ok := ctx.Value(userSlotKey).(*string); ok {
		return ctx
	}
	return context.WithValue(ctx, userSlotKey, new(string))
}

// WithUserID stores the authenticated user id on ctx.
func WithUserID(ctx context.Context, id string) context.Context {
	if slot, ok := ctx.Value(userSlotKey).(*string); ok {
		*slot = id
	}
	return context.WithValue(ctx, userIDKey, id)
}

// UserID extracts the authenticated user id from ctx.
func UserID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey).(string)
	return id, ok
}

// ServedUser returns the user id recorded anywhere beneath the slot.
func ServedUser(ctx context.Context) (string, bool) {
	if id, ok := UserID(ctx); ok {
		return id, true
	}
	if slot, ok := ctx.Value(userSlotKey).(*string); ok && *slot != "" {
		return *slot, true
	}
	return "", false
}

// RequireUserID returns the authenticated user or writes a 401 and reports false.
func RequireUserID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, ok := UserID(r.Context())
	if !ok || strings.TrimSpace(id) == "" {
		JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return "", false
	}
	return id, true
}
