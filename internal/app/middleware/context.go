// Package middleware carries the bridge's HTTP cross-cutting concerns:
// request identity, logging and authorisation.
package middleware

import (
	"context"
	"net/http"

	"github.com/xregistry/bridge/internal/core/domain"
)

type contextKey string

const requestContextKey contextKey = "bridge.requestContext"

// WithRequestContext mints a RequestContext for every inbound request from
// the caller's correlation headers, minting identifiers for whatever is
// missing, and stashes it in the request context.
func WithRequestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rctx := domain.NewRequestContext(
			r.Header.Get("x-correlation-id"),
			r.Header.Get("traceparent"),
		)

		ctx := context.WithValue(r.Context(), requestContextKey, rctx)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetRequestContext returns the request's RequestContext, minting a fresh
// one if the middleware never ran (tests, mostly).
func GetRequestContext(r *http.Request) *domain.RequestContext {
	if rctx, ok := r.Context().Value(requestContextKey).(*domain.RequestContext); ok {
		return rctx
	}
	return domain.NewRequestContext("", "")
}
