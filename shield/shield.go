// CLAUDE:SUMMARY HTTP middleware for the annotation API — security headers, body limits, request logging, rate limiting.
// Package shield provides reusable HTTP middleware for the annotation
// daemon's API surface. It consolidates security headers, body limits,
// request logging, and rate limiting into a single importable package.
//
// Usage:
//
//	r := chi.NewRouter()
//	for _, mw := range shield.APIStack(logger) {
//	    r.Use(mw)
//	}
//
// Or compose by hand:
//
//	r.Use(shield.SecurityHeaders(shield.DefaultHeaders()))
//	r.Use(shield.MaxJSONBody(1 << 20))
//	r.Use(shield.RequestLogger(logger))
package shield

import (
	"context"
	"log/slog"
	"net/http"
)

type contextKey string

// LoggerKey is the context key for the per-request structured logger.
const LoggerKey contextKey = "shield_logger"

// GetLogger retrieves the per-request logger from the context.
// Returns slog.Default() if no logger was set.
func GetLogger(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(LoggerKey).(*slog.Logger); ok {
		return l
	}
	return slog.Default()
}

// APIStack returns the standard middleware stack for the annotation API.
// Middleware is ordered: SecurityHeaders → MaxJSONBody → RequestLogger.
// Rate limiting is not part of the default stack; the daemon usually binds
// to loopback. Add NewRateLimiter(...).Middleware when exposing it wider.
func APIStack(logger *slog.Logger) []func(http.Handler) http.Handler {
	return []func(http.Handler) http.Handler{
		SecurityHeaders(DefaultHeaders()),
		MaxJSONBody(1 << 20),
		RequestLogger(logger),
	}
}
