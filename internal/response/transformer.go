// Package response turns controller outcomes into finalized REST responses.
//
// Finalization happens in two ordered phases:
//   - early: content negotiation, the envelope is encoded in the request format
//   - late: wrapping and headers, applied in place to the encoded response
package response

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/grafana/regexp"

	"github.com/tjfontaine/restkit/internal/core/domain"
	"github.com/tjfontaine/restkit/internal/core/ports"
	"github.com/tjfontaine/restkit/internal/envelope"
	"github.com/tjfontaine/restkit/internal/metrics"
	"github.com/tjfontaine/restkit/internal/pkg/codec"
)

const (
	// HeaderForceStatusOK makes the HTTP status 200 while the envelope keeps
	// the real status.
	HeaderForceStatusOK = "X-Force-Status-Code-200"
	// HeaderStatusCode carries the real status when it was forced to 200.
	HeaderStatusCode = "X-Status-Code"
	// HeaderCode carries the envelope code.
	HeaderCode = "X-Api-Code"
	// CallbackParameter names the JSONP callback query parameter.
	CallbackParameter = "callback"
)

// ErrNotEarlyTransformed is returned when the late phase runs before the
// early phase.
var ErrNotEarlyTransformed = errors.New("response: late transform before early transform")

var callbackPattern = regexp.MustCompile(`^[a-zA-Z_$][\w$]*(\.[a-zA-Z_$][\w$]*)*$`)

// Transformer implements ports.ResponseTransformer. It is stateless apart
// from its immutable collaborators.
type Transformer struct {
	builder       ports.EnvelopeBuilder
	codecs        *codec.Registry
	defaultFormat domain.Format
	metrics       *metrics.Metrics
	logger        *slog.Logger
}

// Option configures a Transformer.
type Option func(*Transformer)

// WithCodecs sets the codec registry.
func WithCodecs(r *codec.Registry) Option {
	return func(t *Transformer) {
		t.codecs = r
	}
}

// WithDefaultFormat sets the format used when the request carries none.
func WithDefaultFormat(f domain.Format) Option {
	return func(t *Transformer) {
		t.defaultFormat = f
	}
}

// WithMetrics records finalized envelopes.
func WithMetrics(m *metrics.Metrics) Option {
	return func(t *Transformer) {
		t.metrics = m
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Transformer) {
		t.logger = logger
	}
}

// NewTransformer creates a Transformer around an envelope builder.
func NewTransformer(builder ports.EnvelopeBuilder, opts ...Option) *Transformer {
	t := &Transformer{
		builder:       builder,
		codecs:        codec.Default(),
		defaultFormat: domain.FormatJSON,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// CreateResponse implements ports.ResponseTransformer.
func (t *Transformer) CreateResponse(o domain.Outcome) *domain.Response {
	env, ok := t.builder.Build(o)
	if !ok {
		if o.Response != nil {
			return o.Response
		}
		return domain.NewResponse(http.StatusNoContent)
	}
	return domain.EnvelopeResponse(env)
}

// TransformEarly implements ports.ResponseTransformer.
func (t *Transformer) TransformEarly(r *http.Request, resp *domain.Response) (*domain.Response, error) {
	if resp.IsEarlyTransformed() {
		return resp, nil
	}
	resp.MarkEarlyTransformed()

	env := resp.Envelope
	if env == nil {
		return resp, nil
	}
	resp.StatusCode = env.StatusCode

	if bodyless(env.StatusCode) {
		resp.Body = nil
		resp.Header.Del("Content-Type")
	} else {
		c, err := t.codecs.Lookup(t.format(r))
		if err != nil {
			return nil, err
		}
		body, err := c.Encode(env)
		if err != nil {
			t.logger.Error("failed to encode envelope, sending fallback",
				slog.String("code", env.Code),
				slog.String("error", err.Error()))
			env = envelope.Fallback()
			resp.Envelope = env
			resp.StatusCode = env.StatusCode
			if body, err = c.Encode(env); err != nil {
				return nil, fmt.Errorf("encode fallback envelope: %w", err)
			}
		}
		resp.Body = body
		resp.Header.Set("Content-Type", c.ContentType())
	}

	if r.Header.Get(HeaderForceStatusOK) != "" {
		forceStatusOK(resp)
	}
	return resp, nil
}

// TransformLate implements ports.ResponseTransformer.
func (t *Transformer) TransformLate(r *http.Request, resp *domain.Response) error {
	if resp.IsLateTransformed() {
		return nil
	}
	if !resp.IsEarlyTransformed() {
		return ErrNotEarlyTransformed
	}
	resp.MarkLateTransformed()

	env := resp.Envelope
	if env == nil {
		return nil
	}

	if t.format(r) == domain.FormatJSON && len(resp.Body) > 0 {
		if cb := r.URL.Query().Get(CallbackParameter); cb != "" {
			if callbackPattern.MatchString(cb) {
				wrapCallback(resp, cb)
			} else {
				t.logger.Warn("ignoring invalid jsonp callback", slog.String("callback", cb))
			}
		}
	}

	resp.Header.Set(HeaderCode, env.Code)
	if !bodyless(resp.StatusCode) {
		resp.Header.Set("Content-Length", strconv.Itoa(len(resp.Body)))
	}
	t.metrics.ObserveEnvelope(env)
	return nil
}

func (t *Transformer) format(r *http.Request) domain.Format {
	if f, ok := domain.FormatFrom(r.Context()); ok {
		return f
	}
	return t.defaultFormat
}

// wrapCallback turns a JSON body into a JSONP script. Script tags cannot
// read the status, so it is forced to 200.
func wrapCallback(resp *domain.Response, callback string) {
	body := make([]byte, 0, len(resp.Body)+len(callback)+8)
	body = append(body, "/**/"...)
	body = append(body, callback...)
	body = append(body, '(')
	body = append(body, resp.Body...)
	body = append(body, ");"...)
	resp.Body = body
	resp.Header.Set("Content-Type", "application/javascript")
	forceStatusOK(resp)
}

func forceStatusOK(resp *domain.Response) {
	if resp.StatusCode == http.StatusOK {
		return
	}
	resp.Header.Set(HeaderStatusCode, strconv.Itoa(resp.StatusCode))
	resp.StatusCode = http.StatusOK
}

func bodyless(status int) bool {
	return status == http.StatusNoContent || status == http.StatusNotModified || (status >= 100 && status < 200)
}

var _ ports.ResponseTransformer = (*Transformer)(nil)
