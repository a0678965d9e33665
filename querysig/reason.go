package querysig

import (
	"errors"
	"net/http"
)

// Reason classifies why a request was rejected.
type Reason int

// Rejection reasons, one per sentinel error.
const (
	ReasonInvalidSignature Reason = iota + 1
	ReasonInvalidArgument
	ReasonInvalidRecvWindow
	ReasonInvalidTimestamp
)

// String returns the snake_case name used in logs and metric labels.
func (r Reason) String() string {
	switch r {
	case ReasonInvalidSignature:
		return "invalid_signature"
	case ReasonInvalidArgument:
		return "invalid_argument"
	case ReasonInvalidRecvWindow:
		return "invalid_recv_window"
	case ReasonInvalidTimestamp:
		return "invalid_timestamp"
	default:
		return "unknown"
	}
}

// Err returns the sentinel error for the reason.
func (r Reason) Err() error {
	switch r {
	case ReasonInvalidSignature:
		return ErrInvalidSignature
	case ReasonInvalidArgument:
		return ErrInvalidArgument
	case ReasonInvalidRecvWindow:
		return ErrInvalidRecvWindow
	case ReasonInvalidTimestamp:
		return ErrInvalidTimestamp
	default:
		return nil
	}
}

// StatusCode returns the HTTP status suggested for the reason: 401 for
// signature failures, 400 for everything the caller can fix by resending.
func (r Reason) StatusCode() int {
	switch r {
	case ReasonInvalidSignature:
		return http.StatusUnauthorized
	case ReasonInvalidArgument, ReasonInvalidRecvWindow, ReasonInvalidTimestamp:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Rejection is the error returned by Gate for a request that did not
// authenticate. It never carries key material or message content.
type Rejection struct {
	// Reason is the rejection class.
	Reason Reason

	// Field names the offending query parameter. Set for
	// ReasonInvalidArgument and the freshness reasons.
	Field string

	cause error
}

func reject(reason Reason, field string, cause error) *Rejection {
	return &Rejection{Reason: reason, Field: field, cause: cause}
}

// Error implements error.
func (e *Rejection) Error() string {
	msg := e.Reason.Err().Error()
	if e.Field != "" {
		msg += ": " + e.Field
	}

	if e.cause != nil && e.cause != e.Reason.Err() {
		msg += ": " + e.cause.Error()
	}

	return msg
}

// Unwrap exposes both the reason sentinel and the underlying cause to
// errors.Is.
func (e *Rejection) Unwrap() []error {
	errs := []error{e.Reason.Err()}
	if e.cause != nil {
		errs = append(errs, e.cause)
	}

	return errs
}

// SuggestedResponseCode returns the HTTP status for the rejection.
func (e *Rejection) SuggestedResponseCode() int {
	return e.Reason.StatusCode()
}

// ReasonOf extracts the rejection reason from err. It reports false when err
// is not a *Rejection.
func ReasonOf(err error) (Reason, bool) {
	var rej *Rejection
	if errors.As(err, &rej) {
		return rej.Reason, true
	}

	return 0, false
}

// StatusCode returns the HTTP status for err: the rejection's suggested code,
// or 500 for any other non-nil error.
func StatusCode(err error) int {
	if err == nil {
		return http.StatusOK
	}

	if reason, ok := ReasonOf(err); ok {
		return reason.StatusCode()
	}

	return http.StatusInternalServerError
}
