package domain

import "net/http"

// Response is the buffered response that flows through the response phases
// before it is written to the client.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte

	// Envelope is the content to serialize. It is nil for responses that
	// pass through untouched.
	Envelope *Envelope

	early bool
	late  bool
}

// NewResponse creates an empty response with the given status.
func NewResponse(status int) *Response {
	return &Response{
		StatusCode: status,
		Header:     make(http.Header),
	}
}

// EnvelopeResponse creates a response carrying env as content.
func EnvelopeResponse(env *Envelope) *Response {
	resp := NewResponse(env.StatusCode)
	resp.Envelope = env
	return resp
}

// IsEarlyTransformed reports whether content negotiation already ran.
func (r *Response) IsEarlyTransformed() bool {
	return r.early
}

// MarkEarlyTransformed records that content negotiation ran.
func (r *Response) MarkEarlyTransformed() {
	r.early = true
}

// IsLateTransformed reports whether finalization already ran.
func (r *Response) IsLateTransformed() bool {
	return r.late
}

// MarkLateTransformed records that finalization ran.
func (r *Response) MarkLateTransformed() {
	r.late = true
}

// WriteTo copies the response to w.
func (r *Response) WriteTo(w http.ResponseWriter) error {
	dst := w.Header()
	for k, v := range r.Header {
		dst[k] = v
	}
	w.WriteHeader(r.StatusCode)
	if len(r.Body) == 0 {
		return nil
	}
	_, err := w.Write(r.Body)
	return err
}
