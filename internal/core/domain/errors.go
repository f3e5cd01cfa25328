// Package domain provides the canonical types shared by the restkit pipeline.
package domain

import (
	"fmt"
	"net/http"
	"strings"
)

// Error codes used by the envelope builder.
const (
	CodeSuccess        = "success"
	CodeFormValidation = "error.form.validation"
	CodeInternal       = "error.internal"
	CodeTimeout        = "error.timeout"
	CodeHTTPPrefix     = "error.http."
)

// Fixed messages for error kinds that do not carry their own.
const (
	MessageFormValidation = "Not all fields are filled in correctly."
	MessageInternal       = "An internal error occurred."
	MessageTimeout        = "The request took too long to complete."
)

// FieldError describes a single invalid field.
type FieldError struct {
	Field   string `json:"field" msgpack:"field"`
	Code    string `json:"code" msgpack:"code"`
	Message string `json:"message" msgpack:"message"`
}

// Error is a structured application error. It carries a stable machine
// readable code, a human readable message, a suggested HTTP status and an
// optional ordered set of field errors.
type Error struct {
	// Code is the stable identifier clients branch on (e.g. "error.user.exists").
	Code string

	// Message is safe to show to API clients.
	Message string

	// StatusCode is the suggested HTTP status code. Zero means 400.
	StatusCode int

	// Fields holds field level details, in order.
	Fields []FieldError

	// Cause is the underlying error, if any. It is never exposed to clients.
	Cause error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// HTTPStatusCode returns the HTTP status code for this error.
func (e *Error) HTTPStatusCode() int {
	if e.StatusCode != 0 {
		return e.StatusCode
	}
	return http.StatusBadRequest
}

// NewError creates a new structured error.
func NewError(code, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// WithStatusCode sets a specific HTTP status code.
func (e *Error) WithStatusCode(code int) *Error {
	e.StatusCode = code
	return e
}

// WithField appends a field error.
func (e *Error) WithField(field, code, message string) *Error {
	e.Fields = append(e.Fields, FieldError{Field: field, Code: code, Message: message})
	return e
}

// WithCause records the underlying error.
func (e *Error) WithCause(err error) *Error {
	e.Cause = err
	return e
}

// FormValidationError reports that a submitted form (request body) failed
// validation. It always maps to CodeFormValidation.
type FormValidationError struct {
	Form   string
	Fields []FieldError
}

// NewFormValidationError creates a validation error for the named form.
func NewFormValidationError(form string, fields ...FieldError) *FormValidationError {
	return &FormValidationError{Form: form, Fields: fields}
}

// Add appends a field error and returns the receiver.
func (e *FormValidationError) Add(field, code, message string) *FormValidationError {
	e.Fields = append(e.Fields, FieldError{Field: field, Code: code, Message: message})
	return e
}

// HasErrors reports whether any field failed.
func (e *FormValidationError) HasErrors() bool {
	return len(e.Fields) > 0
}

func (e *FormValidationError) Error() string {
	if e.Form == "" {
		return fmt.Sprintf("form validation failed with %d field error(s)", len(e.Fields))
	}
	return fmt.Sprintf("form %q validation failed with %d field error(s)", e.Form, len(e.Fields))
}

// ToEnvelope returns the canonical envelope for the validation failure.
// The errors slice is never nil so an empty form still reports "errors": [].
func (e *FormValidationError) ToEnvelope() *Envelope {
	fields := make([]FieldError, len(e.Fields))
	copy(fields, e.Fields)
	return &Envelope{
		StatusCode: http.StatusBadRequest,
		Code:       CodeFormValidation,
		Message:    MessageFormValidation,
		Errors:     fields,
	}
}

// HTTPError is a status-only error, e.g. "not found" raised by a handler.
type HTTPError struct {
	StatusCode int
	Cause      error
}

// NewHTTPError creates an HTTPError for the given status code.
func NewHTTPError(status int) *HTTPError {
	return &HTTPError{StatusCode: status}
}

func (e *HTTPError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("http %d: %v", e.StatusCode, e.Cause)
	}
	return fmt.Sprintf("http %d: %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// Unwrap returns the cause.
func (e *HTTPError) Unwrap() error {
	return e.Cause
}

// Code returns the stable envelope code for the status, e.g.
// "error.http.not_found".
func (e *HTTPError) Code() string {
	text := http.StatusText(e.StatusCode)
	if text == "" {
		return fmt.Sprintf("%s%d", CodeHTTPPrefix, e.StatusCode)
	}
	text = strings.ToLower(text)
	text = strings.NewReplacer(" ", "_", "-", "_", "'", "").Replace(text)
	return CodeHTTPPrefix + text
}

// Message returns the status text.
func (e *HTTPError) Message() string {
	if text := http.StatusText(e.StatusCode); text != "" {
		return text
	}
	return "HTTP error"
}

// Convenience constructors for common HTTP errors

// ErrNotFound creates a not found error.
func ErrNotFound() *HTTPError {
	return NewHTTPError(http.StatusNotFound)
}

// ErrMethodNotAllowed creates a method not allowed error.
func ErrMethodNotAllowed() *HTTPError {
	return NewHTTPError(http.StatusMethodNotAllowed)
}

// ErrConflict creates a conflict error.
func ErrConflict() *HTTPError {
	return NewHTTPError(http.StatusConflict)
}
