// Package apperr defines the structured errors returned by the reset engine
// and the command surface.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Code is a machine-readable error kind.
type Code string

const (
	// CodeRateLimited means the outbound request budget is exhausted.
	CodeRateLimited Code = "RATE_LIMITED"
	// CodeTimeout means a remote call exceeded its deadline.
	CodeTimeout Code = "TIMEOUT"
	// CodeNetwork is any transport failure other than a timeout.
	CodeNetwork Code = "NETWORK"
	// CodeAPI means the remote returned a non-success status.
	CodeAPI Code = "API_ERROR"
	// CodeParse means a response body was present but not usable.
	CodeParse Code = "PARSE_ERROR"
	// CodeNoAccounts means the operation needs at least one enabled account.
	CodeNoAccounts Code = "NO_ACCOUNTS"
	// CodeDuplicateCredential means the API key is already registered.
	CodeDuplicateCredential Code = "DUPLICATE_CREDENTIAL"
	// CodeNotFound means the referenced entity does not exist.
	CodeNotFound Code = "NOT_FOUND"
	// CodeInvalidInput means a command argument failed validation.
	CodeInvalidInput Code = "INVALID_INPUT"
	// CodeCanceled means the caller gave up before the request finished.
	CodeCanceled Code = "CANCELED"
	// CodeInternal is used for errors that carry no code of their own.
	CodeInternal Code = "INTERNAL"
)

// Error is a coded error with a human message.
type Error struct {
	Code    Code
	Message string
	// Status is the remote HTTP status for API errors, zero otherwise.
	Status int
	// RemoteCode is the code from the remote envelope, if it sent one.
	RemoteCode string
	Err        error
}

func (e *Error) Error() string {
	msg := e.Message
	if e.RemoteCode != "" {
		msg += " (remote code " + e.RemoteCode + ")"
	}
	if e.Err != nil && e.Err.Error() != e.Message {
		return fmt.Sprintf("%s: %s: %v", e.Code, msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error with the same code.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return t.Code == e.Code
	}
	return false
}

// New creates an error with the given code and message.
func New(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(code Code, err error, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Err: err}
}

// CodeOf returns the code carried by err, or CodeInternal.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// RemoteCodeOf returns the remote envelope code carried by err, if any.
func RemoteCodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.RemoteCode
	}
	return ""
}

// MessageOf returns the human message carried by err.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}

// HTTPStatus maps an error to the status used by the control API.
func HTTPStatus(err error) int {
	switch CodeOf(err) {
	case CodeNotFound:
		return http.StatusNotFound
	case CodeInvalidInput:
		return http.StatusUnprocessableEntity
	case CodeDuplicateCredential:
		return http.StatusConflict
	case CodeNoAccounts:
		return http.StatusPreconditionFailed
	case CodeRateLimited:
		return http.StatusTooManyRequests
	case CodeTimeout:
		return http.StatusGatewayTimeout
	case CodeCanceled:
		return http.StatusRequestTimeout
	case CodeNetwork, CodeAPI, CodeParse:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
