package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

// DefaultRequestIDHeader carries the request ID in both directions.
const DefaultRequestIDHeader = "X-Request-ID"

// maxIncomingRequestID bounds trusted IDs so clients cannot bloat logs.
const maxIncomingRequestID = 128

type requestIDKey struct{}

// RequestIDFromContext returns the request ID stored by RequestID, or an
// empty string.
func RequestIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		return id
	}

	return ""
}

// RequestIDConfig configures the RequestID middleware.
type RequestIDConfig struct {
	// HeaderName overrides the header used to propagate the request ID.
	// Defaults to DefaultRequestIDHeader.
	HeaderName string

	// GenerateFunc returns a new unique ID. Defaults to GenerateUUIDv7.
	GenerateFunc func(r *http.Request) string

	// TrustIncoming reuses a non-empty incoming ID of reasonable length
	// instead of generating one.
	TrustIncoming bool
}

// RequestID returns a middleware that assigns every request an ID, stores
// it in the request context and echoes it in the response header.
func RequestID(cfg RequestIDConfig) Func {
	headerName := cfg.HeaderName
	if headerName == "" {
		headerName = DefaultRequestIDHeader
	}

	generate := cfg.GenerateFunc
	if generate == nil {
		generate = GenerateUUIDv7
	}

	trustIncoming := cfg.TrustIncoming

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := ""
			if trustIncoming {
				if incoming := r.Header.Get(headerName); len(incoming) <= maxIncomingRequestID {
					id = incoming
				}
			}

			if id == "" {
				id = generate(r)
			}

			r.Header.Set(headerName, id)
			w.Header().Set(headerName, id)

			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
		})
	}
}

// GenerateUUIDv4 returns a new random UUID string.
func GenerateUUIDv4(_ *http.Request) string {
	return uuid.New().String()
}

// GenerateUUIDv7 returns a new time-ordered UUID string, falling back to v4
// if the clock source fails.
func GenerateUUIDv7(r *http.Request) string {
	id, err := uuid.NewV7()
	if err != nil {
		return GenerateUUIDv4(r)
	}

	return id.String()
}
