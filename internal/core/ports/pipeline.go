// Package ports defines the core interfaces of the interception pipeline.
package ports

import (
	"net/http"

	"github.com/tjfontaine/restkit/internal/core/domain"
)

// RequestMatcher decides whether the pipeline applies to a request.
// Implementations must be pure: the pipeline evaluates them at every
// interception point of the same request.
type RequestMatcher interface {
	Matches(r *http.Request, t domain.RequestType) bool
}

// RequestTransformer normalizes an in-scope request before dispatch.
// It must be idempotent. Errors are fatal for the request.
type RequestTransformer interface {
	Transform(r *http.Request) (*http.Request, error)
}

// EnvelopeBuilder maps an outcome to an envelope. It returns false when
// the outcome passes through untouched.
type EnvelopeBuilder interface {
	Build(o domain.Outcome) (*domain.Envelope, bool)
}

// ResponseTransformer builds and finalizes REST responses.
type ResponseTransformer interface {
	// CreateResponse converts a controller outcome into a response.
	CreateResponse(o domain.Outcome) *domain.Response

	// TransformEarly negotiates the representation. It runs once per
	// response; a second call returns the response unchanged.
	TransformEarly(r *http.Request, resp *domain.Response) (*domain.Response, error)

	// TransformLate finalizes the response in place. It must run after
	// TransformEarly.
	TransformLate(r *http.Request, resp *domain.Response) error
}
