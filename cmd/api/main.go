// Package main is the entry point for the PerfPulse API server.
//
// It loads configuration, connects the database pool, wires the analytics
// engines (aggregator, series builder, trend analyzer, report composer) onto
// the HTTP chassis, and serves until interrupted. Graceful shutdown is
// handled via OS signal interception (SIGINT, SIGTERM).
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/go-chi/chi/v5"

	"perfpulse/internal/analytics"
	"perfpulse/internal/api/handlers"
	"perfpulse/internal/cache"
	"perfpulse/internal/config"
	"perfpulse/internal/core"
	"perfpulse/internal/db"
	"perfpulse/internal/external"
	"perfpulse/internal/metrics"
	"perfpulse/internal/types"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger(cfg)
	logger.Info("perfpulse API starting",
		"environment", cfg.Environment,
		"version", cfg.Build.Version,
		"commit", cfg.Build.Commit,
		"port", cfg.Server.Port,
	)

	ctx := context.Background()

	pool, err := db.NewPool(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()

	// Repositories share the pool.
	records := db.NewRecordRepository(pool)
	snapshots := db.NewSnapshotRepository(pool)
	reports := db.NewReportRepository(pool)
	memberships := db.NewMembershipRepository(pool)

	clock := types.RealClock{}
	snapshotCache := cache.NewSnapshotCache(clock)

	telemetry := newTelemetry(ctx, cfg, logger)
	var computeTelemetry analytics.Telemetry
	var reportTelemetry analytics.ReportTelemetry
	if telemetry != nil {
		computeTelemetry = telemetry
		reportTelemetry = telemetry
	}

	scopes := analytics.NewScopeResolver(memberships)
	aggregator := analytics.NewAggregator(records, snapshots, snapshotCache, scopes, computeTelemetry, logger, clock)
	seriesBuilder := analytics.NewSeriesBuilder(aggregator, clock)
	trendAnalyzer := analytics.NewTrendAnalyzer()
	composer := analytics.NewComposer(aggregator, seriesBuilder, trendAnalyzer, reports, reportTelemetry, logger, clock)

	srv, err := core.NewServer(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	if telemetry != nil {
		srv.Metrics = telemetry
	}
	srv.HealthProbes = []core.HealthProbe{
		core.HealthProbeFunc{ProbeName: "database", Fn: pool.Ping},
	}

	var scorer handlers.SentimentScorer
	if cfg.Sentiment.Enabled() {
		scorer = external.NewSentimentClient(cfg.Sentiment, logger)
	}

	analyticsHandler := handlers.NewAnalyticsHandler(aggregator, seriesBuilder, trendAnalyzer, logger, clock)
	reportHandler := handlers.NewReportHandler(composer, reports, logger)
	feedbackHandler := handlers.NewFeedbackHandler(records, scorer, logger, clock)
	srv.V1RouteRegistrars = append(srv.V1RouteRegistrars,
		func(r chi.Router) { analyticsHandler.RegisterRoutes(r) },
		func(r chi.Router) { reportHandler.RegisterRoutes(r) },
		func(r chi.Router) { feedbackHandler.RegisterRoutes(r) },
	)

	srv.MountRoutes()

	return runHTTPServer(srv, cfg, logger)
}

// newTelemetry builds the CloudWatch telemetry publisher. An empty metrics
// namespace disables emission; client construction failures are logged and
// degrade to no telemetry rather than failing startup.
func newTelemetry(ctx context.Context, cfg *config.Config, logger *slog.Logger) *metrics.CloudWatchTelemetry {
	if cfg.AWS.MetricsNamespace == "" {
		return nil
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
	if err != nil {
		logger.Warn("failed to load AWS configuration; telemetry disabled", "error", err)
		return nil
	}

	client := cloudwatch.NewFromConfig(awsCfg, func(o *cloudwatch.Options) {
		if cfg.AWS.EndpointURL != "" {
			o.BaseEndpoint = aws.String(cfg.AWS.EndpointURL)
		}
	})

	return metrics.NewCloudWatchTelemetry(client, cfg.AWS.MetricsNamespace, logger)
}

// runHTTPServer serves until a shutdown signal or listener error, then drains
// in-flight requests within the configured shutdown timeout.
func runHTTPServer(srv *core.Server, cfg *config.Config, logger *slog.Logger) error {
	addr := ":" + cfg.Server.Port

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	logger.Info("server stopped cleanly")
	return nil
}

// newLogger creates the process-wide structured logger. Local development
// gets human-readable text output; deployed environments get JSON.
func newLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}

	var handler slog.Handler
	if cfg.IsLocal() {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	logger := slog.New(handler).With("service", cfg.Service)
	slog.SetDefault(logger)
	return logger
}
