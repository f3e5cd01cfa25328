package pipeline

import (
	"fmt"
	"log/slog"

	"github.com/tjfontaine/restkit/internal/core/domain"
	"github.com/tjfontaine/restkit/internal/core/ports"
	"github.com/tjfontaine/restkit/internal/kernel"
)

// Coordinator guards the transformers with the matcher at every
// interception point. It holds only immutable collaborators.
type Coordinator struct {
	matcher  ports.RequestMatcher
	request  ports.RequestTransformer
	response ports.ResponseTransformer
	logger   *slog.Logger
}

// New creates a Coordinator.
func New(m ports.RequestMatcher, req ports.RequestTransformer, resp ports.ResponseTransformer, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		matcher:  m,
		request:  req,
		response: resp,
		logger:   logger,
	}
}

// Listeners returns the kernel listener list with app listeners placed
// between the pipeline's front and back listeners.
func (c *Coordinator) Listeners(app ...kernel.Listener) []kernel.Listener {
	out := make([]kernel.Listener, 0, len(app)+2)
	out = append(out, front{c})
	out = append(out, app...)
	out = append(out, back{c})
	return out
}

func (c *Coordinator) matches(ic *kernel.Context) bool {
	return c.matcher.Matches(ic.Request, ic.RequestType)
}

// OnRequest normalizes the request before dispatch.
func (c *Coordinator) OnRequest(ic *kernel.Context) error {
	if !c.matches(ic) {
		return nil
	}
	r, err := c.request.Transform(ic.Request)
	if err != nil {
		return fmt.Errorf("transform request: %w", err)
	}
	ic.Request = r
	return nil
}

// OnException converts the error into an envelope response.
func (c *Coordinator) OnException(ic *kernel.Context) error {
	if !c.matches(ic) {
		return nil
	}
	c.logger.Debug("converting error to envelope",
		slog.String("path", ic.Request.URL.Path),
		slog.String("error", ic.Err().Error()))
	ic.SetResponse(c.response.CreateResponse(domain.ErrorOutcome(ic.Err())))
	return nil
}

// OnView converts the controller result into an envelope response.
func (c *Coordinator) OnView(ic *kernel.Context) error {
	if !c.matches(ic) {
		return nil
	}
	ic.SetResponse(c.response.CreateResponse(domain.ResultOutcome(ic.Result())))
	return nil
}

// OnResponseEarly negotiates the response representation.
func (c *Coordinator) OnResponseEarly(ic *kernel.Context) error {
	if !c.matches(ic) {
		return nil
	}
	resp, err := c.response.TransformEarly(ic.Request, ic.Response)
	if err != nil {
		return fmt.Errorf("early response transform: %w", err)
	}
	ic.SetResponse(resp)
	return nil
}

// OnResponseLate finalizes the response in place.
func (c *Coordinator) OnResponseLate(ic *kernel.Context) error {
	if !c.matches(ic) {
		return nil
	}
	if err := c.response.TransformLate(ic.Request, ic.Response); err != nil {
		return fmt.Errorf("late response transform: %w", err)
	}
	return nil
}

// front handles every point except the late response one.
type front struct {
	c *Coordinator
}

func (f front) OnRequest(ic *kernel.Context) error   { return f.c.OnRequest(ic) }
func (f front) OnException(ic *kernel.Context) error { return f.c.OnException(ic) }
func (f front) OnView(ic *kernel.Context) error      { return f.c.OnView(ic) }
func (f front) OnResponse(ic *kernel.Context) error  { return f.c.OnResponseEarly(ic) }

// back handles the late response point only.
type back struct {
	c *Coordinator
}

func (b back) OnResponse(ic *kernel.Context) error { return b.c.OnResponseLate(ic) }
