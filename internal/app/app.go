// Package app assembles the REST pipeline and the demo application from
// configuration.
package app

import (
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/tjfontaine/restkit/internal/config"
	"github.com/tjfontaine/restkit/internal/core/domain"
	"github.com/tjfontaine/restkit/internal/demo"
	"github.com/tjfontaine/restkit/internal/envelope"
	"github.com/tjfontaine/restkit/internal/kernel"
	"github.com/tjfontaine/restkit/internal/matcher"
	"github.com/tjfontaine/restkit/internal/metrics"
	"github.com/tjfontaine/restkit/internal/pipeline"
	"github.com/tjfontaine/restkit/internal/request"
	"github.com/tjfontaine/restkit/internal/response"
)

// Deps are the collaborators that survive a config reload.
type Deps struct {
	Logger         *slog.Logger
	Metrics        *metrics.Metrics
	TracerProvider trace.TracerProvider
	Store          *demo.Store
}

// Build wires the pipeline described by cfg around the demo routes and
// returns the kernel serving them.
func Build(cfg *config.Config, deps Deps) (*kernel.Kernel, error) {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.TracerProvider == nil {
		deps.TracerProvider = otel.GetTracerProvider()
	}
	if deps.Store == nil {
		deps.Store = demo.NewStore()
	}

	m, err := matcher.New(matcher.Config{
		Prefixes:    cfg.Matcher.Prefixes,
		Whitelist:   cfg.Matcher.Whitelist,
		Blacklist:   cfg.Matcher.Blacklist,
		Header:      cfg.Matcher.Header,
		SubRequests: cfg.Matcher.SubRequests,
	})
	if err != nil {
		return nil, fmt.Errorf("build matcher: %w", err)
	}

	formats := make([]domain.Format, len(cfg.Request.Formats))
	for i, f := range cfg.Request.Formats {
		formats[i] = domain.Format(f)
	}
	req, err := request.NewTransformer(request.Options{
		Formats:       formats,
		DefaultFormat: domain.Format(cfg.Request.DefaultFormat),
		MaxBodyBytes:  cfg.Request.MaxBodyBytes,
	})
	if err != nil {
		return nil, fmt.Errorf("build request transformer: %w", err)
	}

	factory := envelope.NewFactory(envelope.WithLogger(deps.Logger))
	resp := response.NewTransformer(factory,
		response.WithDefaultFormat(domain.Format(cfg.Request.DefaultFormat)),
		response.WithMetrics(deps.Metrics),
		response.WithLogger(deps.Logger),
	)

	coordinator := pipeline.New(m, req, resp, deps.Logger)
	handler := demo.NewHandler(deps.Store).Router()

	k, err := kernel.New(handler, coordinator.Listeners(),
		kernel.WithLogger(deps.Logger),
		kernel.WithMetrics(deps.Metrics),
		kernel.WithTracerProvider(deps.TracerProvider),
	)
	if err != nil {
		return nil, fmt.Errorf("build kernel: %w", err)
	}
	return k, nil
}

