package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/vitalvas/signgate/internal/logger"
)

// AccessLog returns a middleware that logs one line per request at Debug,
// or at Warn for server errors.
func AccessLog(log *logger.Logger) Func {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := newStatusRecorder(w)

			next.ServeHTTP(rec, r)

			args := []any{
				"request_id", RequestIDFromContext(r.Context()),
				"method", r.Method,
				"route", routePattern(r),
				"status", rec.Status(),
				"bytes", rec.bytes,
				"duration", time.Since(start),
				"remote", r.RemoteAddr,
			}

			if rec.Status() >= http.StatusInternalServerError {
				log.Warn("request served", args...)
				return
			}

			log.Debug("request served", args...)
		})
	}
}

// routePattern returns the matched chi route pattern, which keeps label
// cardinality bounded, or "unmatched".
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}

	return "unmatched"
}
