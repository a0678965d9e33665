package middleware

import (
	"errors"
	"net/http"
	"slices"
	"strconv"
	"strings"
)

// ErrInvalidOriginPattern is returned for an origin pattern with more than
// one wildcard.
var ErrInvalidOriginPattern = errors.New("cors: origin pattern contains multiple wildcards")

// CORSConfig configures the CORS middleware.
type CORSConfig struct {
	// AllowedOrigins lists exact origins, "*" for any origin, or subdomain
	// patterns such as "https://*.example.com".
	AllowedOrigins []string

	// AllowedMethods defaults to GET and OPTIONS.
	AllowedMethods []string

	// AllowedHeaders lists request headers browsers may send. The signature
	// header must be listed for signed calls to pass preflight.
	AllowedHeaders []string

	// ExposeHeaders lists response headers readable by client code.
	ExposeHeaders []string

	// MaxAge is the preflight cache lifetime in seconds. Zero omits it.
	MaxAge int
}

type originPattern struct {
	prefix string
	suffix string
}

// CORS returns a middleware implementing the CORS protocol for the
// configured origins. Preflight requests from allowed origins are answered
// with 204 and never reach the next handler. Requests from other origins
// pass through without CORS headers.
func CORS(cfg CORSConfig) (Func, error) {
	var exact []string
	var patterns []originPattern

	for _, o := range cfg.AllowedOrigins {
		lower := strings.ToLower(o)

		if lower != "*" && strings.Contains(lower, "*") {
			prefix, suffix, _ := strings.Cut(lower, "*")
			if strings.Contains(suffix, "*") {
				return nil, ErrInvalidOriginPattern
			}

			patterns = append(patterns, originPattern{prefix: prefix, suffix: suffix})
			continue
		}

		exact = append(exact, lower)
	}

	anyOrigin := slices.Contains(exact, "*")

	methods := cfg.AllowedMethods
	if len(methods) == 0 {
		methods = []string{http.MethodGet, http.MethodOptions}
	}

	allowMethods := strings.Join(methods, ",")
	allowHeaders := strings.Join(cfg.AllowedHeaders, ",")
	exposeHeaders := strings.Join(cfg.ExposeHeaders, ",")

	var maxAge string
	if cfg.MaxAge > 0 {
		maxAge = strconv.Itoa(cfg.MaxAge)
	}

	allowed := func(origin string) bool {
		if anyOrigin || slices.Contains(exact, origin) {
			return true
		}

		for _, p := range patterns {
			// The wildcard must match at least one character.
			if len(origin) > len(p.prefix)+len(p.suffix) &&
				strings.HasPrefix(origin, p.prefix) &&
				strings.HasSuffix(origin, p.suffix) {
				return true
			}
		}

		return false
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if !anyOrigin {
				w.Header().Add("Vary", "Origin")
			}

			if origin == "" || !allowed(strings.ToLower(origin)) {
				next.ServeHTTP(w, r)
				return
			}

			h := w.Header()
			if anyOrigin {
				h.Set("Access-Control-Allow-Origin", "*")
			} else {
				h.Set("Access-Control-Allow-Origin", origin)
			}

			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				h.Set("Access-Control-Allow-Methods", allowMethods)

				if allowHeaders != "" {
					h.Set("Access-Control-Allow-Headers", allowHeaders)
				}

				if maxAge != "" {
					h.Set("Access-Control-Max-Age", maxAge)
				}

				h.Add("Vary", "Access-Control-Request-Method")
				h.Add("Vary", "Access-Control-Request-Headers")
				w.WriteHeader(http.StatusNoContent)

				return
			}

			if exposeHeaders != "" {
				h.Set("Access-Control-Expose-Headers", exposeHeaders)
			}

			next.ServeHTTP(w, r)
		})
	}, nil
}
