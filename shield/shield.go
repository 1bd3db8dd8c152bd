// Package shield provides the HTTP middleware of the dailydrop admin API.
//
// Usage:
//
//	r := chi.NewRouter()
//	for _, mw := range shield.AdminStack(logger) {
//	    r.Use(mw)
//	}
//	r.With(shield.RequireBearer(token)).Post("/runs", trigger)
package shield

import (
	"log/slog"
	"net/http"
)

type contextKey string

// LoggerKey is the context key for the per-request structured logger.
const LoggerKey contextKey = "shield_logger"

// AdminStack returns the middleware stack of the admin API, outermost first:
// HeadToGet, SecurityHeaders, RequestLog.
func AdminStack(logger *slog.Logger) []func(http.Handler) http.Handler {
	return []func(http.Handler) http.Handler{
		HeadToGet,
		SecurityHeaders(DefaultHeaders()),
		RequestLog(logger),
	}
}

// HeadToGet serves HEAD requests with the GET handler; net/http drops the body.
func HeadToGet(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			r.Method = http.MethodGet
		}
		next.ServeHTTP(w, r)
	})
}
