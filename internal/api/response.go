// Package api defines the JSON envelope returned by every signgate endpoint.
package api

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/vitalvas/signgate/querysig"
)

// Code is the envelope result code.
type Code string

// Result codes. Each rejection reason has its own code.
const (
	CodeSuccess           Code = "000000"
	CodeTooManyRequests   Code = "000001"
	CodeSystemBusy        Code = "000002"
	CodeInvalidSignature  Code = "000003"
	CodeInvalidRecvWindow Code = "000004"
	CodeInvalidTimestamp  Code = "000005"
	CodeInvalidArgument   Code = "000006"
	CodeNotFound          Code = "000007"
	CodeMethodNotAllowed  Code = "000008"
)

const successMessage = "success"

// Response is the envelope written for every request.
type Response struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data"`
}

// Error is an error that renders as an envelope with a specific HTTP status.
type Error struct {
	Status  int
	Code    Code
	Message string

	cause error
}

// NewError creates an Error.
func NewError(status int, code Code, message string) *Error {
	return &Error{Status: status, Code: code, Message: message}
}

// Wrap attaches cause for logging. The cause is never sent to clients.
func (e *Error) Wrap(cause error) *Error {
	out := *e
	out.cause = cause

	return &out
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s %s: %v", e.Code, e.Message, e.cause)
	}

	return fmt.Sprintf("%s %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// InvalidArgument returns a 400 InvalidArgument error with a formatted message.
func InvalidArgument(format string, args ...any) *Error {
	return NewError(http.StatusBadRequest, CodeInvalidArgument, "invalid argument: "+fmt.Sprintf(format, args...))
}

// Predefined errors.
var (
	ErrNotFound         = NewError(http.StatusNotFound, CodeNotFound, "not found")
	ErrMethodNotAllowed = NewError(http.StatusMethodNotAllowed, CodeMethodNotAllowed, "method not allowed")
	ErrSystemBusy       = NewError(http.StatusServiceUnavailable, CodeSystemBusy, "system busy")
	ErrInternal         = NewError(http.StatusInternalServerError, CodeSystemBusy, "internal server error")
	ErrTimeout          = NewError(http.StatusServiceUnavailable, CodeSystemBusy, "request timed out")
)

// FromRejection maps an authentication rejection to its envelope error.
// Errors that are not rejections map to ErrInternal.
func FromRejection(err error) *Error {
	var rej *querysig.Rejection
	if !errors.As(err, &rej) {
		return ErrInternal.Wrap(err)
	}

	var out *Error

	switch rej.Reason {
	case querysig.ReasonInvalidSignature:
		out = NewError(http.StatusUnauthorized, CodeInvalidSignature, "invalid signature")
	case querysig.ReasonInvalidRecvWindow:
		out = NewError(http.StatusBadRequest, CodeInvalidRecvWindow,
			fmt.Sprintf("invalid recvWindow: recvWindow should be less than or equal to %d", querysig.MaxRecvWindow))
	case querysig.ReasonInvalidTimestamp:
		out = NewError(http.StatusBadRequest, CodeInvalidTimestamp,
			fmt.Sprintf("timestamp should be between serverTime - %d and serverTime + recvWindow", querysig.Grace))
	case querysig.ReasonInvalidArgument:
		out = InvalidArgument("%s should be of type unsigned long", rej.Field)
	default:
		return ErrInternal.Wrap(err)
	}

	return out.Wrap(err)
}

// ResponseJSON encodes v as JSON and writes it with the given status code.
// If encoding fails, a plain 500 is written instead.
func ResponseJSON(w http.ResponseWriter, status int, v any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

// WriteSuccess writes a 200 envelope carrying data.
func WriteSuccess(w http.ResponseWriter, data any) {
	ResponseJSON(w, http.StatusOK, Response{Code: CodeSuccess, Message: successMessage, Data: data})
}

// WriteError writes the envelope for err. An *Error anywhere in the chain
// decides status and code; anything else is written as ErrInternal.
func WriteError(w http.ResponseWriter, err error) {
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		apiErr = ErrInternal
	}

	ResponseJSON(w, apiErr.Status, Response{Code: apiErr.Code, Message: apiErr.Message})
}
