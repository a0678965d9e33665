package middleware

import (
	"errors"
	"net/http"
	"time"
)

// ErrInvalidTimeout is returned when TimeoutConfig.Duration is not greater
// than zero.
var ErrInvalidTimeout = errors.New("timeout: duration must be greater than zero")

// TimeoutConfig configures the Timeout middleware.
type TimeoutConfig struct {
	// Duration is the maximum time a handler may run. Required.
	Duration time.Duration

	// Body is written with a 503 when the handler times out.
	Body string

	// ContentType is set on the timeout response when Body is not empty.
	// Responses of handlers that finish in time are left as they wrote them.
	ContentType string
}

// Timeout returns a middleware that bounds handler execution with
// http.TimeoutHandler. The handler's context is cancelled on timeout.
//
// It returns ErrInvalidTimeout if Duration is not greater than zero.
func Timeout(cfg TimeoutConfig) (Func, error) {
	if cfg.Duration <= 0 {
		return nil, ErrInvalidTimeout
	}

	duration := cfg.Duration
	body := cfg.Body
	contentType := cfg.ContentType

	return func(next http.Handler) http.Handler {
		timeoutHandler := http.TimeoutHandler(next, duration, body)
		if contentType == "" || body == "" {
			return timeoutHandler
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Taken before TimeoutHandler starts its own timer, so it never
			// falls after the real deadline.
			tw := &timeoutContentTypeWriter{
				ResponseWriter: w,
				contentType:    contentType,
				deadline:       time.Now().Add(duration),
			}

			timeoutHandler.ServeHTTP(tw, r)
		})
	}, nil
}

// timeoutContentTypeWriter labels the 503 that http.TimeoutHandler writes
// once the deadline has passed. Handlers that complete in time keep their
// own headers.
type timeoutContentTypeWriter struct {
	http.ResponseWriter
	contentType string
	deadline    time.Time
}

func (w *timeoutContentTypeWriter) WriteHeader(code int) {
	if code == http.StatusServiceUnavailable && !time.Now().Before(w.deadline) && w.Header().Get("Content-Type") == "" {
		w.Header().Set("Content-Type", w.contentType)
	}

	w.ResponseWriter.WriteHeader(code)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (w *timeoutContentTypeWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
