package querysig

import "net/http"

// Transport is an http.RoundTripper that signs the query of every outgoing
// request.
type Transport struct {
	base   http.RoundTripper
	config SignConfig
}

// NewTransport creates a signing Transport that delegates to base after
// signing each request. When base is nil, a clone of http.DefaultTransport
// is used.
func NewTransport(base http.RoundTripper, cfg SignConfig) *Transport {
	if base == nil {
		base = http.DefaultTransport.(*http.Transport).Clone()
	}

	return &Transport{
		base:   base,
		config: cfg,
	}
}

// RoundTrip signs a clone of req and delegates it to the base transport.
// The caller's request, including its URL, is left untouched.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())

	if err := SignRequest(clone, t.config); err != nil {
		if req.Body != nil {
			_ = req.Body.Close()
		}

		return nil, err
	}

	return t.base.RoundTrip(clone)
}
