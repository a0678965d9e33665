package middleware

import (
	"net/http"
	"runtime/debug"
)

// RecoveryConfig configures the Recovery middleware.
type RecoveryConfig struct {
	// LogFunc is called with the request, the recovered value and the stack
	// when a handler panics.
	LogFunc func(r *http.Request, recovered any, stack []byte)

	// OnPanic writes the response after a panic. When nil, a plain 500 is
	// written.
	OnPanic func(w http.ResponseWriter, r *http.Request)
}

// Recovery returns a middleware that turns handler panics into a 500
// response. http.ErrAbortHandler is re-panicked so the server can abort the
// connection as intended.
func Recovery(cfg RecoveryConfig) Func {
	onPanic := cfg.OnPanic
	if onPanic == nil {
		onPanic = func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				recovered := recover()
				if recovered == nil {
					return
				}

				if recovered == http.ErrAbortHandler {
					panic(recovered)
				}

				if cfg.LogFunc != nil {
					cfg.LogFunc(r, recovered, debug.Stack())
				}

				onPanic(w, r)
			}()

			next.ServeHTTP(w, r)
		})
	}
}
