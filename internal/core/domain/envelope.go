package domain

import (
	"encoding/json"
	"net/http"
)

// Envelope is the canonical REST response body.
//
// For terminal responses exactly one of Data and Errors is set. Errors is a
// non-nil slice for error envelopes, even when it holds no field errors.
type Envelope struct {
	StatusCode int
	Code       string
	Message    string
	Data       any
	Errors     []FieldError
}

// IsError reports whether the envelope describes a failure.
func (e *Envelope) IsError() bool {
	return e.Errors != nil
}

// Success wraps data into a success envelope with status 200.
func Success(data any) *Envelope {
	return &Envelope{
		StatusCode: http.StatusOK,
		Code:       CodeSuccess,
		Data:       data,
	}
}

// Failure creates an error envelope. A nil fields slice is replaced by an
// empty one.
func Failure(status int, code, message string, fields []FieldError) *Envelope {
	errs := make([]FieldError, len(fields))
	copy(errs, fields)
	return &Envelope{
		StatusCode: status,
		Code:       code,
		Message:    message,
		Errors:     errs,
	}
}

// wireEnvelope fixes field names and order for every serializer.
type wireEnvelope struct {
	StatusCode int           `json:"statusCode" msgpack:"statusCode"`
	Code       string        `json:"code" msgpack:"code"`
	Message    string        `json:"message" msgpack:"message"`
	Data       any           `json:"data,omitempty" msgpack:"data,omitempty"`
	Errors     *[]FieldError `json:"errors,omitempty" msgpack:"errors,omitempty"`
}

// Wire returns the serializable form of the envelope. Errors is a pointer so
// that an empty (non-nil) slice survives omitempty.
func (e *Envelope) Wire() any {
	w := wireEnvelope{
		StatusCode: e.StatusCode,
		Code:       e.Code,
		Message:    e.Message,
	}
	if e.Errors != nil {
		errs := e.Errors
		w.Errors = &errs
	} else {
		w.Data = e.Data
	}
	return w
}

// MarshalJSON implements json.Marshaler.
func (e *Envelope) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.Wire())
}
