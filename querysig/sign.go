package querysig

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// SignConfig configures client-side request signing.
type SignConfig struct {
	// Signer produces the signature. Required.
	Signer Signer

	// Header overrides the signature header name. Defaults to DefaultHeader.
	Header string

	// RecvWindow, when positive, makes SignRequest append recvWindow and
	// timestamp parameters that are not already present in the query.
	RecvWindow time.Duration

	// Now returns the time used for the timestamp parameter. Defaults to
	// time.Now.
	Now func() time.Time
}

// SignQuery signs the canonical message of rawQuery and returns the base64
// value to send in the signature header.
func SignQuery(s Signer, rawQuery string) (string, error) {
	if s == nil {
		return "", ErrNoSigner
	}

	message, err := CanonicalMessage(rawQuery)
	if err != nil {
		return "", err
	}

	signature, err := s.Sign(message)
	if err != nil {
		return "", fmt.Errorf("querysig: sign: %w", err)
	}

	return base64.StdEncoding.EncodeToString(signature), nil
}

// SignRequest adds the signature header to r, stamping the freshness
// parameters first when cfg.RecvWindow is set. The query is signed as it
// will appear on the wire, so it must not be modified afterwards.
func SignRequest(r *http.Request, cfg SignConfig) error {
	if cfg.Signer == nil {
		return ErrNoSigner
	}

	if cfg.RecvWindow > 0 {
		now := time.Now
		if cfg.Now != nil {
			now = cfg.Now
		}

		stamped, err := StampQuery(r.URL.RawQuery, cfg.RecvWindow, now())
		if err != nil {
			return err
		}

		r.URL.RawQuery = stamped
	}

	signature, err := SignQuery(cfg.Signer, r.URL.RawQuery)
	if err != nil {
		return err
	}

	header := cfg.Header
	if header == "" {
		header = DefaultHeader
	}

	r.Header.Set(header, signature)

	return nil
}

// StampQuery appends recvWindow and timestamp to rawQuery unless they are
// already present. Existing parameters keep their order and encoding.
//
// It returns an ErrInvalidRecvWindow rejection if recvWindow exceeds
// MaxRecvWindow.
func StampQuery(rawQuery string, recvWindow time.Duration, now time.Time) (string, error) {
	window := uint64(recvWindow.Milliseconds())
	if window > MaxRecvWindow {
		return "", reject(ReasonInvalidRecvWindow, ParamRecvWindow,
			fmt.Errorf("%d > %d", window, MaxRecvWindow))
	}

	values, _ := url.ParseQuery(rawQuery)

	stamped := rawQuery
	appendParam := func(name, value string) {
		if values.Has(name) {
			return
		}

		if stamped != "" {
			stamped += "&"
		}

		stamped += name + "=" + value
	}

	appendParam(ParamRecvWindow, strconv.FormatUint(window, 10))
	appendParam(ParamTimestamp, strconv.FormatUint(UnixMilli(now), 10))

	return stamped, nil
}
