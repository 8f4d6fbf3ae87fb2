// Package dErrors defines the domain error vocabulary shared by services,
// handlers, and stores. Services translate infrastructure sentinels into
// coded errors here; the HTTP layer translates codes into status responses.
package dErrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code classifies a domain error for transport mapping and assertions.
type Code string

// Error codes. The string values appear verbatim in JSON error envelopes.
const (
	CodeBadRequest         Code = "bad_request"
	CodeConflict           Code = "conflict"
	CodeForbidden          Code = "forbidden"
	CodeInternal           Code = "internal_error"
	CodeInvalidInput       Code = "invalid_input"
	CodeInvalidRequest     Code = "invalid_request"
	CodeInvariantViolation Code = "invariant_violation"
	CodeNotFound           Code = "not_found"
	CodeTimeout            Code = "timeout"
	CodeUnauthorized       Code = "unauthorized"
	CodeValidation         Code = "validation_error"
)

// GatewayError is the concrete domain error type. It carries a code for
// transport mapping, a human-readable description, and an optional cause.
type GatewayError struct {
	Code        Code
	Description string
	Err         error
}

// Error implements the error interface.
func (e GatewayError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Description, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// Unwrap exposes the cause for errors.Is/As chains.
func (e GatewayError) Unwrap() error {
	return e.Err
}

// New creates a domain error with the given code and description.
func New(code Code, description string) error {
	return GatewayError{Code: code, Description: description}
}

// Wrap annotates an underlying error with a domain code and description.
// The cause stays reachable through errors.Is/As.
func Wrap(err error, code Code, description string) error {
	return GatewayError{Code: code, Description: description, Err: err}
}

// HasCode reports whether any error in the chain carries the given code.
func HasCode(err error, code Code) bool {
	var gw GatewayError
	if errors.As(err, &gw) {
		return gw.Code == code
	}
	return false
}

// Is is an alias of HasCode kept for readability at assertion sites.
func Is(err error, code Code) bool {
	return HasCode(err, code)
}

// CodeOf returns the code of the outermost domain error in the chain,
// or CodeInternal when the error carries no code.
func CodeOf(err error) Code {
	var gw GatewayError
	if errors.As(err, &gw) {
		return gw.Code
	}
	return CodeInternal
}

// DescriptionOf returns the description of the outermost domain error,
// or an empty string when the error carries none.
func DescriptionOf(err error) string {
	var gw GatewayError
	if errors.As(err, &gw) {
		return gw.Description
	}
	return ""
}

// ToHTTPStatus maps a domain error code to an HTTP status code.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeBadRequest, CodeInvalidInput, CodeInvalidRequest, CodeValidation:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict:
		return http.StatusConflict
	case CodeTimeout:
		return http.StatusGatewayTimeout
	case CodeInternal, CodeInvariantViolation:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
