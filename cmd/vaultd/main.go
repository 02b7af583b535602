package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"vaultchain/config"
	"vaultchain/core"
	"vaultchain/gateway/middleware"
	"vaultchain/gateway/routes"
	"vaultchain/observability/logging"
	telemetry "vaultchain/observability/otel"
	"vaultchain/storage"
)

const (
	envName         = "VAULT_ENV"
	otlpHeadersEnv  = "OTEL_EXPORTER_OTLP_HEADERS"
	shutdownTimeout = 10 * time.Second
	clockSyncPeriod = time.Second
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "vaultd: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configFile := flag.String("config", "./vault.toml", "Path to the configuration file")
	logLevel := flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(*logLevel)); err != nil {
		return fmt.Errorf("parse log level: %w", err)
	}
	env := cfg.Observability.Environment
	if override := strings.TrimSpace(os.Getenv(envName)); override != "" {
		env = override
	}

	logging.Allow(cfg.Observability.LogAllowlist...)
	logger, logCloser := logging.SetupWithOptions(logging.Options{
		Service:    cfg.Observability.ServiceName,
		Env:        env,
		Level:      level,
		File:       cfg.Observability.LogFile,
		MaxSizeMB:  cfg.Observability.LogMaxSizeMB,
		MaxBackups: cfg.Observability.LogMaxBackups,
	})
	defer logCloser.Close()

	shutdownTelemetry, err := telemetry.Init(context.Background(), telemetry.Config{
		ServiceName: cfg.Observability.ServiceName,
		Environment: env,
		Endpoint:    cfg.Observability.OTLPEndpoint,
		Insecure:    cfg.Observability.OTLPInsecure,
		Headers:     telemetry.ParseHeaders(os.Getenv(otlpHeadersEnv)),
		Metrics:     cfg.Observability.TracingEnabled,
		Traces:      cfg.Observability.TracingEnabled,
		SampleRatio: cfg.Observability.TraceSampleRatio,
	})
	if err != nil {
		return fmt.Errorf("initialise telemetry: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTelemetry(ctx); err != nil {
			logger.Warn("telemetry shutdown failed", slog.Any("error", err))
		}
	}()

	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("open data dir %s: %w", cfg.DataDir, err)
	}
	defer db.Close()

	node, err := core.NewNode(cfg, db,
		core.WithLogger(logger),
		core.WithMetrics(cfg.Observability.MetricsEnabled))
	if err != nil {
		return fmt.Errorf("build node: %w", err)
	}
	info := node.Info()
	logger.Info("vault node ready",
		slog.String("vault", info.Vault.Hex()),
		slog.String("strategy", info.Strategy.Hex()),
		slog.String("want", info.Want.Symbol),
		slog.Uint64("height", info.Height))

	obs := middleware.NewObservability(middleware.ObservabilityConfig{
		ServiceName: cfg.Observability.ServiceName,
		LogRequests: level <= slog.LevelDebug,
		Enabled:     cfg.Observability.MetricsEnabled || cfg.Observability.TracingEnabled,
	}, logger)
	limit := middleware.RateLimit{RatePerSecond: cfg.Gateway.RateLimitPerSecond, Burst: cfg.Gateway.RateLimitBurst}
	router, err := routes.New(routes.Config{
		Node:              node,
		Logger:            logger,
		Observability:     obs,
		AllowClockControl: cfg.Gateway.AllowClockControl,
		RateLimiter: middleware.NewRateLimiter(map[string]middleware.RateLimit{
			routes.ReadLimitKey:  {RatePerSecond: limit.RatePerSecond * 4, Burst: limit.Burst * 4},
			routes.WriteLimitKey: limit,
		}, logger),
	})
	if err != nil {
		return fmt.Errorf("configure routes: %w", err)
	}
	handler := http.Handler(router)
	if cfg.Observability.TracingEnabled {
		handler = otelhttp.NewHandler(router, cfg.Observability.ServiceName)
	}

	server := &http.Server{
		Addr:         cfg.Gateway.ListenAddress,
		Handler:      handler,
		ReadTimeout:  time.Duration(cfg.Gateway.ReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(cfg.Gateway.WriteTimeoutSeconds) * time.Second,
		IdleTimeout:  time.Duration(cfg.Gateway.IdleTimeoutSeconds) * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if !cfg.Gateway.AllowClockControl {
		go syncClock(ctx, node)
	} else {
		logger.Warn("clock control enabled; block time only advances through /v1/clock/advance")
	}

	listener, err := net.Listen("tcp", cfg.Gateway.ListenAddress)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	serveErr := make(chan error, 1)
	go func() {
		logger.Info("gateway listening", slog.String("address", listener.Addr().String()))
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
	}
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("graceful shutdown failed", slog.Any("error", err))
	}
	return nil
}

// syncClock advances block time with the wall clock.
func syncClock(ctx context.Context, node *core.Node) {
	ticker := time.NewTicker(clockSyncPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			node.SyncClock(uint64(now.Unix()))
		}
	}
}
