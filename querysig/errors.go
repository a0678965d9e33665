package querysig

import "errors"

// Key material errors.
var (
	// ErrInvalidKey is returned when key material cannot be decoded, is not
	// an RSA key, or is smaller than the minimum supported size.
	ErrInvalidKey = errors.New("querysig: invalid key material")
)

// Rejection reasons. Every rejected request unwraps to exactly one of these.
var (
	// ErrInvalidSignature is returned when the signature header is missing,
	// cannot be decoded, or does not verify against the canonical message.
	ErrInvalidSignature = errors.New("querysig: invalid signature")

	// ErrInvalidArgument is returned when recvWindow or timestamp is missing
	// or is not an unsigned decimal integer.
	ErrInvalidArgument = errors.New("querysig: invalid argument")

	// ErrInvalidRecvWindow is returned when recvWindow exceeds MaxRecvWindow.
	ErrInvalidRecvWindow = errors.New("querysig: recvWindow exceeds maximum")

	// ErrInvalidTimestamp is returned when timestamp falls outside the
	// accepted window around server time.
	ErrInvalidTimestamp = errors.New("querysig: timestamp outside accepted window")
)

// Request shape errors. They are carried as causes of an ErrInvalidSignature
// or ErrInvalidArgument rejection.
var (
	// ErrMissingSignature is returned when the signature header is absent or empty.
	ErrMissingSignature = errors.New("querysig: signature header missing")

	// ErrNoQuery is returned when the request has no query component.
	ErrNoQuery = errors.New("querysig: request has no query")

	// ErrMalformedQuery is returned when the raw query contains an invalid
	// percent escape.
	ErrMalformedQuery = errors.New("querysig: malformed query encoding")

	// ErrMissingParam is returned when a required freshness parameter is absent.
	ErrMissingParam = errors.New("querysig: required parameter missing")

	// ErrMalformedParam is returned when a freshness parameter is repeated or
	// does not parse as an unsigned integer.
	ErrMalformedParam = errors.New("querysig: malformed parameter")
)

// Configuration errors.
var (
	// ErrNoVerifier is returned when GateConfig has no Verifier configured.
	ErrNoVerifier = errors.New("querysig: verifier must not be nil")

	// ErrNoSigner is returned when SignConfig has no Signer configured.
	ErrNoSigner = errors.New("querysig: signer must not be nil")
)
