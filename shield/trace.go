package shield

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/hazyhaar/quizagent/idgen"
	"github.com/hazyhaar/quizagent/kit"
)

var newTraceID = idgen.NanoID(16)

// TraceID assigns each request a trace ID, echoes it in X-Trace-ID and
// attaches a per-request logger. An incoming X-Trace-ID is reused so that
// callers can correlate their logs with ours.
func TraceID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID := r.Header.Get("X-Trace-ID")
		if traceID == "" || len(traceID) > 64 {
			traceID = newTraceID()
		}

		ctx := kit.WithTraceID(r.Context(), traceID)
		ctx = kit.WithRemoteAddr(ctx, ExtractIP(r))
		w.Header().Set("X-Trace-ID", traceID)

		logger := slog.Default().With(
			"trace_id", traceID,
			"method", r.Method,
			"path", r.URL.Path,
			"remote_addr", r.RemoteAddr,
		)
		ctx = context.WithValue(ctx, LoggerKey, logger)
		logger.Debug("request")

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetLogger retrieves the per-request logger from the context.
// Returns slog.Default() if no logger was set.
func GetLogger(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(LoggerKey).(*slog.Logger); ok {
		return l
	}
	return slog.Default()
}
