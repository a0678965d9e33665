// Package middleware provides the HTTP middleware stack used by the signgate
// API router: request IDs, panic recovery, access logging, security
// headers, CORS, per-route metrics and handler timeouts.
//
// Every constructor returns a Func, which plugs directly into chi's Use.
package middleware

import "net/http"

// Func is the standard net/http middleware signature.
type Func = func(http.Handler) http.Handler
