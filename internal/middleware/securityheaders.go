package middleware

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrInvalidFrameOption is returned when SecurityHeadersConfig.FrameOption
// is not "DENY", "SAMEORIGIN" or empty.
var ErrInvalidFrameOption = errors.New("security headers: frame option must be DENY, SAMEORIGIN, or empty")

// SecurityHeadersConfig configures the SecurityHeaders middleware. The zero
// value is suitable for a JSON API.
type SecurityHeadersConfig struct {
	// FrameOption sets X-Frame-Options. Defaults to "DENY".
	FrameOption string

	// ReferrerPolicy sets Referrer-Policy. Defaults to "no-referrer".
	ReferrerPolicy string

	// HSTSMaxAge, in seconds, enables Strict-Transport-Security when positive.
	HSTSMaxAge int

	// DisableNoStore skips Cache-Control: no-store. Signed responses are
	// per-caller and must not be cached by default.
	DisableNoStore bool
}

// SecurityHeaders returns a middleware that sets security response headers
// before calling the next handler.
//
// It returns ErrInvalidFrameOption for an unknown FrameOption.
func SecurityHeaders(cfg SecurityHeadersConfig) (Func, error) {
	frameOption := cfg.FrameOption
	switch frameOption {
	case "":
		frameOption = "DENY"
	case "DENY", "SAMEORIGIN":
	default:
		return nil, ErrInvalidFrameOption
	}

	referrerPolicy := cfg.ReferrerPolicy
	if referrerPolicy == "" {
		referrerPolicy = "no-referrer"
	}

	var hsts string
	if cfg.HSTSMaxAge > 0 {
		hsts = fmt.Sprintf("max-age=%d; includeSubDomains", cfg.HSTSMaxAge)
	}

	noStore := !cfg.DisableNoStore

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", frameOption)
			h.Set("Referrer-Policy", referrerPolicy)

			if hsts != "" {
				h.Set("Strict-Transport-Security", hsts)
			}

			if noStore {
				h.Set("Cache-Control", "no-store")
			}

			next.ServeHTTP(w, r)
		})
	}, nil
}
