// Package querysig implements exchange-style signed query authentication.
//
// A client signs the literal query string of a request with an RSA private
// key (RSASSA-PKCS1-v1_5 over SHA-256) and sends the base64 signature in a
// request header. The query carries a millisecond timestamp and a recvWindow
// bounding how long the request stays valid. The server checks both.
//
// # Canonical Message
//
// The signed bytes are the raw query percent-decoded exactly once. Order is
// preserved and nothing is sorted, re-escaped or filtered:
//
//	GET /v1/task/completion?task=%5B%22stake%22%5D&recvWindow=5000&timestamp=1499827319559
//	signed: task=["stake"]&recvWindow=5000&timestamp=1499827319559
//
// # Verifying Requests
//
// Load the public key once at startup and build a Gate or a middleware:
//
//	key, err := querysig.ParsePublicKey(os.Getenv("RSA_PUBLIC_KEY_BASE64"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	verifier, err := querysig.NewVerifier(key)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	mw, err := querysig.Middleware(querysig.MiddlewareConfig{
//	    Gate: querysig.GateConfig{Verifier: verifier},
//	})
//
// Rejections are *Rejection values. Use ReasonOf or errors.Is with
// ErrInvalidSignature, ErrInvalidArgument, ErrInvalidRecvWindow and
// ErrInvalidTimestamp to classify them.
//
// # Freshness
//
// A request is fresh when recvWindow <= 10000 and
// serverTime-3000 < timestamp < serverTime+recvWindow. There is no nonce
// cache: a captured request can be replayed until it leaves the window.
//
// # Client Transport
//
// NewTransport signs every outgoing request, appending recvWindow and
// timestamp when they are missing:
//
//	client := &http.Client{
//	    Transport: querysig.NewTransport(nil, querysig.SignConfig{
//	        Signer:     signer,
//	        RecvWindow: 5 * time.Second,
//	    }),
//	}
package querysig
