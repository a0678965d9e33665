package middleware

import (
	"net/http"
	"time"
)

// HTTPObserver records served requests.
type HTTPObserver interface {
	ObserveHTTP(method, route string, status int, elapsed time.Duration)
}

// Metrics returns a middleware that reports every request to obs, labelled
// by chi route pattern.
func Metrics(obs HTTPObserver) Func {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := newStatusRecorder(w)

			next.ServeHTTP(rec, r)

			obs.ObserveHTTP(r.Method, routePattern(r), rec.Status(), time.Since(start))
		})
	}
}
