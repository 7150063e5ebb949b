package obs

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
)

type routeOverrideKey struct{}

// WithRoutePattern pins the route label for requests served outside the chi router.
func WithRoutePattern(ctx context.Context, pattern string) context.Context {
	return context.WithValue(ctx, routeOverrideKey{}, pattern)
}

// RoutePattern returns the label a request is reported under. chi fills its
// route context while routing, so this is only complete once the handler has
// returned.
func RoutePattern(r *http.Request, fallback string) string {
	ctx := r.Context()
	if v, ok := ctx.Value(routeOverrideKey{}).(string); ok && v != "" {
		return v
	}
	if rc := chi.RouteContext(ctx); rc != nil {
		if pattern := rc.RoutePattern(); pattern != "" && pattern != "/*" {
			return pattern
		}
	}
	return fallback
}
