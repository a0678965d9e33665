package querysig

import (
	"encoding/base64"
	"errors"
	"net/http"
	"time"
)

// DefaultHeader is the request header carrying the base64 signature.
const DefaultHeader = "signature"

// GateConfig configures request authentication.
type GateConfig struct {
	// Verifier checks signatures against the configured public key.
	// Required.
	Verifier Verifier

	// Header overrides the signature header name. Defaults to DefaultHeader.
	Header string

	// Now returns the current server time. Defaults to time.Now.
	Now func() time.Time
}

// Gate authenticates signed requests. It holds no per-request state and is
// safe for concurrent use.
type Gate struct {
	verifier Verifier
	header   string
	now      func() time.Time
}

// NewGate creates a Gate.
//
// It returns ErrNoVerifier if cfg.Verifier is nil.
func NewGate(cfg GateConfig) (*Gate, error) {
	if cfg.Verifier == nil {
		return nil, ErrNoVerifier
	}

	header := cfg.Header
	if header == "" {
		header = DefaultHeader
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Gate{
		verifier: cfg.Verifier,
		header:   header,
		now:      now,
	}, nil
}

// Authenticate checks the signature and freshness claim of r. It returns nil
// when the request is authenticated and a *Rejection otherwise.
func (g *Gate) Authenticate(r *http.Request) error {
	rawQuery := ""
	if r.URL != nil {
		rawQuery = r.URL.RawQuery
	}

	return g.Check(r.Header.Get(g.header), rawQuery, g.now())
}

// Check runs the authentication pipeline on already extracted request
// metadata:
//
//	signature header -> raw query -> canonical message -> signature
//	-> recvWindow/timestamp -> freshness
//
// The first failing step decides the rejection. A verifier whose key could
// not be loaded yields an ErrInvalidKey error that is not a *Rejection: the
// request is not at fault and the server must treat it as an internal error.
func (g *Gate) Check(signature, rawQuery string, now time.Time) error {
	if signature == "" {
		return reject(ReasonInvalidSignature, "", ErrMissingSignature)
	}

	message, err := CanonicalMessage(rawQuery)
	if err != nil {
		return reject(ReasonInvalidSignature, "", err)
	}

	if err := VerifyEncoded(g.verifier, message, signature); err != nil {
		if errors.Is(err, ErrInvalidKey) {
			return err
		}

		return reject(ReasonInvalidSignature, "", err)
	}

	recvWindow, timestamp, err := FreshnessParams(rawQuery)
	if err != nil {
		return err
	}

	return CheckFreshness(recvWindow, timestamp, UnixMilli(now))
}

// VerifyEncoded decodes a standard base64 signature and verifies it over
// message. Decode failures are indistinguishable from a mismatch.
func VerifyEncoded(v Verifier, message []byte, encoded string) error {
	signature, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return ErrInvalidSignature
	}

	return v.Verify(message, signature)
}
