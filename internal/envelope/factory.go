// Package envelope maps controller outcomes to REST envelopes.
package envelope

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/tjfontaine/restkit/internal/core/domain"
	"github.com/tjfontaine/restkit/internal/core/ports"
)

// Classifier maps a recognized error kind to an envelope. It returns false
// when the error is not of its kind.
type Classifier func(err error) (*domain.Envelope, bool)

// DefaultClassifiers is the closed set of recognized error kinds, in
// priority order.
func DefaultClassifiers() []Classifier {
	return []Classifier{
		FormValidation,
		Structured,
		HTTPStatus,
		Timeout,
	}
}

// FormValidation recognizes *domain.FormValidationError.
func FormValidation(err error) (*domain.Envelope, bool) {
	var formErr *domain.FormValidationError
	if !errors.As(err, &formErr) {
		return nil, false
	}
	return formErr.ToEnvelope(), true
}

// Structured recognizes *domain.Error.
func Structured(err error) (*domain.Envelope, bool) {
	var appErr *domain.Error
	if !errors.As(err, &appErr) {
		return nil, false
	}
	return domain.Failure(appErr.HTTPStatusCode(), appErr.Code, appErr.Message, appErr.Fields), true
}

// HTTPStatus recognizes *domain.HTTPError.
func HTTPStatus(err error) (*domain.Envelope, bool) {
	var httpErr *domain.HTTPError
	if !errors.As(err, &httpErr) {
		return nil, false
	}
	return domain.Failure(httpErr.StatusCode, httpErr.Code(), httpErr.Message(), nil), true
}

// Timeout recognizes expired request deadlines.
func Timeout(err error) (*domain.Envelope, bool) {
	if !errors.Is(err, context.DeadlineExceeded) {
		return nil, false
	}
	return domain.Failure(http.StatusGatewayTimeout, domain.CodeTimeout, domain.MessageTimeout, nil), true
}

// Fallback is the envelope for unrecognized errors. It never exposes the
// error text.
func Fallback() *domain.Envelope {
	return domain.Failure(http.StatusInternalServerError, domain.CodeInternal, domain.MessageInternal, nil)
}

// Factory builds envelopes from outcomes. It holds only immutable
// configuration and is safe for concurrent use.
type Factory struct {
	classifiers []Classifier
	logger      *slog.Logger
}

// Option configures a Factory.
type Option func(*Factory)

// WithClassifiers replaces the classifier table.
func WithClassifiers(c ...Classifier) Option {
	return func(f *Factory) {
		f.classifiers = c
	}
}

// WithExtraClassifiers appends classifiers after the defaults.
func WithExtraClassifiers(c ...Classifier) Option {
	return func(f *Factory) {
		f.classifiers = append(f.classifiers, c...)
	}
}

// WithLogger sets the logger used to report unrecognized errors.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Factory) {
		f.logger = logger
	}
}

// NewFactory creates a Factory with the default classifiers.
func NewFactory(opts ...Option) *Factory {
	f := &Factory{
		classifiers: DefaultClassifiers(),
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Build implements ports.EnvelopeBuilder.
func (f *Factory) Build(o domain.Outcome) (*domain.Envelope, bool) {
	switch o.Kind {
	case domain.OutcomeResponse:
		return nil, false
	case domain.OutcomeError:
		return f.fromError(o.Err), true
	case domain.OutcomeResult:
		return fromResult(o.Value), true
	default:
		return Fallback(), true
	}
}

func fromResult(v any) *domain.Envelope {
	if r, ok := v.(*domain.Result); ok {
		if r == nil {
			v = nil
		} else {
			v = *r
		}
	}

	status := http.StatusOK
	data := v
	if r, ok := v.(domain.Result); ok {
		data = r.Data
	}
	if sc, ok := v.(domain.StatusCoder); ok && sc.StatusCode() != 0 {
		status = sc.StatusCode()
	}
	// Without data there is nothing to put in the envelope.
	if data == nil {
		status = http.StatusNoContent
	}

	env := domain.Success(data)
	env.StatusCode = status
	return env
}

func (f *Factory) fromError(err error) (env *domain.Envelope) {
	if err == nil {
		return Fallback()
	}
	defer func() {
		if rec := recover(); rec != nil {
			f.logger.Error("error classifier panicked",
				slog.Any("panic", rec),
				slog.String("error", err.Error()))
			env = Fallback()
		}
	}()

	for _, classify := range f.classifiers {
		if env, ok := classify(err); ok && env != nil {
			return env
		}
	}

	f.logger.Warn("unrecognized error mapped to fallback envelope", slog.String("error", err.Error()))
	return Fallback()
}

var _ ports.EnvelopeBuilder = (*Factory)(nil)
