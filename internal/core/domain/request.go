package domain

import (
	"context"
	"net/http"
)

// RequestType distinguishes top level requests from nested dispatch.
type RequestType int

const (
	// MainRequest is a request received from a client.
	MainRequest RequestType = iota + 1
	// SubRequest is a request dispatched from inside another request.
	SubRequest
)

func (t RequestType) String() string {
	if t == SubRequest {
		return "sub"
	}
	return "main"
}

// Format is a response representation.
type Format string

const (
	FormatJSON    Format = "json"
	FormatMsgpack Format = "msgpack"
	FormatXML     Format = "xml"
)

type formatKey struct{}
type bodyKey struct{}
type transformedKey struct{}

// WithFormat returns a copy of r carrying the negotiated response format.
func WithFormat(r *http.Request, f Format) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), formatKey{}, f))
}

// FormatFrom returns the negotiated format, if any.
func FormatFrom(ctx context.Context) (Format, bool) {
	f, ok := ctx.Value(formatKey{}).(Format)
	return f, ok
}

// WithBody returns a copy of r carrying the decoded request body.
func WithBody(r *http.Request, body map[string]any) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), bodyKey{}, body))
}

// BodyFrom returns the decoded request body. It is nil when the request had
// no JSON body.
func BodyFrom(ctx context.Context) map[string]any {
	body, _ := ctx.Value(bodyKey{}).(map[string]any)
	return body
}

// MarkTransformed returns a copy of r flagged as normalized.
func MarkTransformed(r *http.Request) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), transformedKey{}, true))
}

// IsTransformed reports whether r was already normalized.
func IsTransformed(r *http.Request) bool {
	v, _ := r.Context().Value(transformedKey{}).(bool)
	return v
}
