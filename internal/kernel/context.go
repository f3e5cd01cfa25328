package kernel

import (
	"net/http"

	"github.com/tjfontaine/restkit/internal/core/domain"
)

// Context is the per-request interception state. The kernel creates one for
// every main and sub-request; it is never shared between requests.
type Context struct {
	// Request is the current request. Listeners replace it to pass a
	// normalized request on to the controller.
	Request *http.Request

	// RequestType tells main requests from nested dispatch.
	RequestType domain.RequestType

	// Outcome is set once the controller finished (or a request listener
	// failed). It is the zero value during the request phase.
	Outcome domain.Outcome

	// Response is the in-flight response. Setting it during the request,
	// exception or view phase stops that phase.
	Response *domain.Response
}

// SetResponse replaces the in-flight response.
func (c *Context) SetResponse(resp *domain.Response) {
	c.Response = resp
}

// HasResponse reports whether a response was set.
func (c *Context) HasResponse() bool {
	return c.Response != nil
}

// Err returns the error of an exception outcome.
func (c *Context) Err() error {
	if c.Outcome.Kind != domain.OutcomeError {
		return nil
	}
	return c.Outcome.Err
}

// Result returns the controller value of a view outcome.
func (c *Context) Result() any {
	if c.Outcome.Kind != domain.OutcomeResult {
		return nil
	}
	return c.Outcome.Value
}
