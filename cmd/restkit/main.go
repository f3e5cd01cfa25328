package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/tjfontaine/restkit/internal/app"
	"github.com/tjfontaine/restkit/internal/config"
	"github.com/tjfontaine/restkit/internal/demo"
	"github.com/tjfontaine/restkit/internal/metrics"
	"github.com/tjfontaine/restkit/internal/server"
	"github.com/tjfontaine/restkit/internal/telemetry"
)

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	level := new(slog.LevelVar)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	path := os.Getenv("RESTKIT_CONFIG")
	if path == "" {
		path = config.DefaultPath
	}
	watcher, err := config.NewWatcher(path, logger)
	if err != nil {
		log.Fatalf("Failed to create config watcher: %v", err)
	}
	cfg, err := watcher.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	setLevel(level, cfg)

	tp, shutdown, err := telemetry.InitTracer(telemetry.Options{
		ServiceName: cfg.Tracing.ServiceName,
		Enabled:     cfg.Tracing.Enabled,
	}, logger)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			logger.Error("failed to shutdown tracer", slog.String("error", err.Error()))
		}
	}()

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
	}

	deps := app.Deps{
		Logger:         logger,
		Metrics:        m,
		TracerProvider: tp,
		Store: demo.NewStore(
			demo.User{Name: "Ada Lovelace", Email: "ada@example.com"},
			demo.User{Name: "Alan Turing", Email: "alan@example.com"},
		),
	}

	k, err := app.Build(cfg, deps)
	if err != nil {
		log.Fatalf("Failed to build pipeline: %v", err)
	}
	handler := server.NewSwapHandler(k)

	srv := server.New(server.Options{
		Port:            cfg.Server.Port,
		Timeout:         cfg.Server.Timeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		ServiceName:     cfg.Tracing.ServiceName,
	}, logger)
	if m != nil {
		srv.Router.Handle(cfg.Metrics.Path, m.Handler())
	}
	srv.Router.Mount("/", handler)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Server, port and telemetry settings need a restart; everything the
	// pipeline reads is applied on the fly.
	err = watcher.Watch(ctx, func(next *config.Config) {
		k, err := app.Build(next, deps)
		if err != nil {
			logger.Error("config reload rejected", slog.String("error", err.Error()))
			return
		}
		setLevel(level, next)
		handler.Store(k)
		logger.Info("pipeline rebuilt from config")
	})
	if err != nil {
		logger.Warn("config hot-reload unavailable", slog.String("error", err.Error()))
	}

	if err := srv.Run(ctx); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}

func setLevel(level *slog.LevelVar, cfg *config.Config) {
	if l, err := cfg.Log.SlogLevel(); err == nil {
		level.Set(l)
	}
}
