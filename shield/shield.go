// Package shield provides the HTTP middleware in front of the quiz agent:
// security headers, body limits, request tracing and per-IP rate limiting.
//
// Usage:
//
//	r := chi.NewRouter()
//	for _, mw := range shield.DefaultAPIStack(64 << 10) {
//	    r.Use(mw)
//	}
//	r.With(shield.NewRateLimiter(shield.RateLimitConfig{}).Middleware).Post("/quiz", h)
package shield

import "net/http"

type contextKey string

// LoggerKey is the context key for the per-request structured logger.
const LoggerKey contextKey = "shield_logger"

// DefaultAPIStack returns the middleware applied to every route, ordered
// SecurityHeaders → MaxBody → TraceID. Rate limiting is left to the routes
// that need it.
func DefaultAPIStack(maxBody int64) []func(http.Handler) http.Handler {
	return []func(http.Handler) http.Handler{
		SecurityHeaders(APIHeaders()),
		MaxBody(maxBody),
		TraceID,
	}
}
