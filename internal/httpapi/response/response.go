// Package response builds the JSON envelopes returned by the control API.
package response

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator"

	"github.com/j-veylop/credit-reset-dashboard/internal/apperr"
)

const (
	// StatusOK is the envelope status of a successful response.
	StatusOK = "OK"
	// StatusError is the envelope status of a failed response.
	StatusError = "Error"
)

// OKResponse wraps a successful payload.
type OKResponse struct {
	Data   any    `json:"data,omitempty"`
	Status string `json:"status"`
}

// ErrorBody carries the machine code and human message of a failure.
type ErrorBody struct {
	Code       apperr.Code `json:"code"`
	Message    string      `json:"message"`
	RemoteCode string      `json:"remoteCode,omitempty"`
}

// ErrorResponse wraps a failure.
type ErrorResponse struct {
	Status string    `json:"status"`
	Error  ErrorBody `json:"error"`
}

// OK returns a successful envelope without data.
func OK() OKResponse {
	return OKResponse{Status: StatusOK}
}

// OKWithData returns a successful envelope around data.
func OKWithData(data any) OKResponse {
	return OKResponse{Status: StatusOK, Data: data}
}

// Error returns a failure envelope with an explicit code.
func Error(code apperr.Code, msg string) ErrorResponse {
	return ErrorResponse{
		Status: StatusError,
		Error:  ErrorBody{Code: code, Message: msg},
	}
}

// FromError converts any error into a failure envelope.
func FromError(err error) ErrorResponse {
	resp := Error(apperr.CodeOf(err), apperr.MessageOf(err))
	resp.Error.RemoteCode = apperr.RemoteCodeOf(err)
	return resp
}

// ValidationError formats validator failures as one INVALID_INPUT message.
func ValidationError(errs validator.ValidationErrors) ErrorResponse {
	var msgs []string

	for _, err := range errs {
		switch err.ActualTag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("field %s is a required field", err.Field()))
		case "min":
			msgs = append(msgs, fmt.Sprintf("field %s must be at least %s", err.Field(), err.Param()))
		case "max":
			msgs = append(msgs, fmt.Sprintf("field %s must be at most %s", err.Field(), err.Param()))
		case "hhmm":
			msgs = append(msgs, fmt.Sprintf("field %s must be a time in format HH:MM", err.Field()))
		case "timezone":
			msgs = append(msgs, fmt.Sprintf("field %s must be an IANA timezone", err.Field()))
		default:
			msgs = append(msgs, fmt.Sprintf("field %s is not valid", err.Field()))
		}
	}

	return Error(apperr.CodeInvalidInput, strings.Join(msgs, ", "))
}
