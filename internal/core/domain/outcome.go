package domain

import (
	"fmt"
	"net/http"
)

// OutcomeKind tags the variant held by an Outcome.
type OutcomeKind int

const (
	// OutcomeResult is a value returned by a controller.
	OutcomeResult OutcomeKind = iota + 1
	// OutcomeError is an error returned (or panicked) by a controller.
	OutcomeError
	// OutcomeResponse is a response the controller already produced.
	OutcomeResponse
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeResult:
		return "result"
	case OutcomeError:
		return "error"
	case OutcomeResponse:
		return "response"
	default:
		return fmt.Sprintf("OutcomeKind(%d)", int(k))
	}
}

// Outcome is produced exactly once per (sub-)request and consumed by the
// envelope builder. Only the field matching Kind is meaningful.
type Outcome struct {
	Kind     OutcomeKind
	Value    any
	Err      error
	Response *Response
}

// ResultOutcome wraps a controller return value.
func ResultOutcome(v any) Outcome {
	return Outcome{Kind: OutcomeResult, Value: v}
}

// ErrorOutcome wraps a controller error.
func ErrorOutcome(err error) Outcome {
	return Outcome{Kind: OutcomeError, Err: err}
}

// ResponseOutcome wraps an already built response.
func ResponseOutcome(resp *Response) Outcome {
	return Outcome{Kind: OutcomeResponse, Response: resp}
}

// StatusCoder is implemented by controller results that choose their own
// HTTP status.
type StatusCoder interface {
	StatusCode() int
}

// Result lets a controller return data with an explicit status, e.g. 201.
type Result struct {
	Status int
	Data   any
}

// StatusCode implements StatusCoder.
func (r Result) StatusCode() int {
	return r.Status
}

// Created returns a 201 result.
func Created(data any) Result {
	return Result{Status: http.StatusCreated, Data: data}
}
