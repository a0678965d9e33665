package querysig

import (
	"net/http"
	"time"
)

// MiddlewareConfig configures the server-side authentication middleware.
type MiddlewareConfig struct {
	// Gate configures how requests are authenticated.
	Gate GateConfig

	// OnReject is called when authentication fails. When nil, an empty
	// response with the rejection's suggested status code is sent.
	OnReject func(w http.ResponseWriter, r *http.Request, err error)

	// OnVerdict, when set, is called for every request with the verdict
	// (nil for authenticated) and the time spent reaching it, before the
	// request is passed on or rejected.
	OnVerdict func(r *http.Request, err error, elapsed time.Duration)
}

// Middleware returns a middleware that only passes authenticated requests
// to the next handler.
//
// It returns ErrNoVerifier if cfg.Gate.Verifier is nil.
func Middleware(cfg MiddlewareConfig) (func(http.Handler) http.Handler, error) {
	gate, err := NewGate(cfg.Gate)
	if err != nil {
		return nil, err
	}

	onReject := cfg.OnReject
	if onReject == nil {
		onReject = defaultOnReject
	}

	onVerdict := cfg.OnVerdict

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			err := gate.Authenticate(r)

			if onVerdict != nil {
				onVerdict(r, err, time.Since(start))
			}

			if err != nil {
				onReject(w, r, err)
				return
			}

			next.ServeHTTP(w, r)
		})
	}, nil
}

// defaultOnReject writes the suggested status code with no body.
func defaultOnReject(w http.ResponseWriter, _ *http.Request, err error) {
	w.WriteHeader(StatusCode(err))
}
