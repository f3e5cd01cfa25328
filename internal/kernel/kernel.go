// Package kernel provides the per-request lifecycle the REST pipeline hooks
// into.
//
// Every main or sub-request goes through the same ordered phases:
//
//	request → controller → exception | view → response
//
// Listeners are registered once, as an explicit ordered list, and called in
// that order for each phase. Errors returned by exception, view and response
// listeners are not recovered: they end the dispatch and reach ServeHTTP,
// which answers a bare 500.
package kernel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tjfontaine/restkit/internal/core/domain"
	"github.com/tjfontaine/restkit/internal/metrics"
)

const tracerName = "github.com/tjfontaine/restkit/internal/kernel"

type kernelKey struct{}

// Kernel dispatches requests through the listener chain. It holds no
// per-request state and is safe for concurrent use.
type Kernel struct {
	handler http.Handler
	chain   *chain
	logger  *slog.Logger
	tracer  trace.Tracer
	metrics *metrics.Metrics
}

// Option configures a Kernel.
type Option func(*Kernel)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(k *Kernel) {
		k.logger = logger
	}
}

// WithMetrics records dispatch durations.
func WithMetrics(m *metrics.Metrics) Option {
	return func(k *Kernel) {
		k.metrics = m
	}
}

// WithTracerProvider sets the tracer provider. Defaults to the global one.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(k *Kernel) {
		k.tracer = tp.Tracer(tracerName)
	}
}

// New creates a Kernel serving handler with the given ordered listeners.
func New(handler http.Handler, listeners []Listener, opts ...Option) (*Kernel, error) {
	if handler == nil {
		return nil, errors.New("kernel: nil handler")
	}
	c, err := newChain(listeners)
	if err != nil {
		return nil, fmt.Errorf("kernel: %w", err)
	}

	k := &Kernel{
		handler: handler,
		chain:   c,
		logger:  slog.Default(),
		tracer:  otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(k)
	}
	return k, nil
}

// FromContext returns the Kernel dispatching the current request.
func FromContext(ctx context.Context) (*Kernel, bool) {
	k, ok := ctx.Value(kernelKey{}).(*Kernel)
	return k, ok
}

// ServeHTTP dispatches r as a main request and writes the response.
func (k *Kernel) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	resp, err := k.Handle(r, domain.MainRequest)
	if err != nil {
		k.logger.Error("request dispatch failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	if err := resp.WriteTo(w); err != nil {
		k.logger.Debug("failed to write response", slog.String("error", err.Error()))
	}
}

// SubRequest dispatches r from inside the request parent. The sub-request
// gets a fresh context: it shares cancellation and the trace span with the
// parent but none of its request-scoped values.
func (k *Kernel) SubRequest(parent context.Context, r *http.Request) (*domain.Response, error) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	stop := context.AfterFunc(parent, cancel)
	defer stop()

	ctx = trace.ContextWithSpan(ctx, trace.SpanFromContext(parent))
	return k.Handle(r.WithContext(ctx), domain.SubRequest)
}

// Handle runs r through all phases and returns the final response.
func (k *Kernel) Handle(r *http.Request, t domain.RequestType) (*domain.Response, error) {
	start := time.Now()
	defer func() {
		k.metrics.ObserveDispatch(t, time.Since(start))
	}()

	ctx, span := k.tracer.Start(r.Context(), "kernel.dispatch",
		trace.WithAttributes(
			attribute.String("restkit.request_type", t.String()),
			attribute.String("http.request.method", r.Method),
			attribute.String("url.path", r.URL.Path),
		))
	defer span.End()

	ctx = context.WithValue(ctx, kernelKey{}, k)
	c := &Context{
		Request:     r.WithContext(ctx),
		RequestType: t,
	}

	resp, err := k.dispatch(c)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
	return resp, nil
}

func (k *Kernel) dispatch(c *Context) (*domain.Response, error) {
	for _, l := range k.chain.request {
		if err := l.OnRequest(c); err != nil {
			return k.handleError(c, err)
		}
		if c.HasResponse() {
			return k.filterResponse(c)
		}
	}

	c.Outcome = run(k.handler, c.Request)

	switch c.Outcome.Kind {
	case domain.OutcomeError:
		return k.handleError(c, c.Outcome.Err)
	case domain.OutcomeResponse:
		c.SetResponse(c.Outcome.Response)
		return k.filterResponse(c)
	default:
		return k.handleView(c)
	}
}

func (k *Kernel) handleError(c *Context, err error) (*domain.Response, error) {
	c.Outcome = domain.ErrorOutcome(err)
	c.Response = nil

	for _, l := range k.chain.exception {
		if lerr := l.OnException(c); lerr != nil {
			return nil, fmt.Errorf("exception listener: %w", lerr)
		}
		if c.HasResponse() {
			return k.filterResponse(c)
		}
	}

	var panicErr *PanicError
	if errors.As(err, &panicErr) {
		k.logger.Error("controller panicked",
			slog.Any("panic", panicErr.Value),
			slog.String("stack", string(panicErr.Stack)))
	}
	c.SetResponse(fallbackResponse(err))
	return k.filterResponse(c)
}

func (k *Kernel) handleView(c *Context) (*domain.Response, error) {
	for _, l := range k.chain.view {
		if err := l.OnView(c); err != nil {
			return nil, fmt.Errorf("view listener: %w", err)
		}
		if c.HasResponse() {
			return k.filterResponse(c)
		}
	}

	k.logger.Error("controller returned a value no listener converted",
		slog.String("path", c.Request.URL.Path),
		slog.String("type", fmt.Sprintf("%T", c.Outcome.Value)))
	c.SetResponse(textResponse(http.StatusInternalServerError))
	return k.filterResponse(c)
}

func (k *Kernel) filterResponse(c *Context) (*domain.Response, error) {
	for _, l := range k.chain.response {
		if err := l.OnResponse(c); err != nil {
			return nil, fmt.Errorf("response listener: %w", err)
		}
	}
	if c.Response == nil {
		return nil, errors.New("response listener cleared the response")
	}
	return c.Response, nil
}

// fallbackResponse is what the bare kernel answers for an unhandled error.
func fallbackResponse(err error) *domain.Response {
	var httpErr *domain.HTTPError
	if errors.As(err, &httpErr) {
		return textResponse(httpErr.StatusCode)
	}
	return textResponse(http.StatusInternalServerError)
}

func textResponse(status int) *domain.Response {
	resp := domain.NewResponse(status)
	resp.Header.Set("Content-Type", "text/plain; charset=utf-8")
	resp.Header.Set("X-Content-Type-Options", "nosniff")
	resp.Body = []byte(http.StatusText(status) + "\n")
	return resp
}
