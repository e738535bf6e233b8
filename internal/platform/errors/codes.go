// Package errors provides structured monitor errors with localized user messages.
package errors

import "net/http"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Ingestion errors
	CodeValidation Code = "VALIDATION"

	// Registry and dispatch errors
	CodeUnknownInterval    Code = "UNKNOWN_INTERVAL"
	CodeUnknownRequestKind Code = "UNKNOWN_REQUEST_KIND"
	CodeInvalidRuleConfig  Code = "INVALID_RULE_CONFIG"

	// Statistics errors
	CodeUndefinedReference Code = "UNDEFINED_REFERENCE"

	// Storage errors
	CodeNotFound Code = "NOT_FOUND"
	CodeConflict Code = "CONFLICT"
)

// HTTPStatus maps domain codes to HTTP status codes for the push endpoint.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeValidation,
		CodeUnknownInterval,
		CodeUnknownRequestKind:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict:
		return http.StatusConflict
	case CodeUndefinedReference:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
