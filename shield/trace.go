package shield

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/hazyhaar/dailydrop/idgen"
)

// NewRequestID generates request ids: "req_" + UUIDv7.
var NewRequestID = idgen.Prefixed("req_", idgen.Default)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// RequestLog assigns each request an id, exposes it as X-Request-ID, stores
// a per-request logger carrying the id in the context and logs the outcome
// once the handler returns. A nil logger means slog.Default().
func RequestLog(logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := NewRequestID()
			w.Header().Set("X-Request-ID", id)

			l := logger.With("request_id", id, "method", r.Method, "path", r.URL.Path)
			ctx := context.WithValue(r.Context(), LoggerKey, l)

			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			start := time.Now()
			next.ServeHTTP(rec, r.WithContext(ctx))

			l.Info("shield: request", "status", rec.status,
				"duration_ms", time.Since(start).Milliseconds(), "remote_addr", r.RemoteAddr)
		})
	}
}

// GetLogger retrieves the per-request logger, or slog.Default().
func GetLogger(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(LoggerKey).(*slog.Logger); ok {
		return l
	}
	return slog.Default()
}
