package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	httpadapter "github.com/couchcryptid/health-data-etl-service/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/health-data-etl-service/internal/adapter/kafka"
	"github.com/couchcryptid/health-data-etl-service/internal/adapter/sqlite"
	"github.com/couchcryptid/health-data-etl-service/internal/adapter/who"
	"github.com/couchcryptid/health-data-etl-service/internal/config"
	"github.com/couchcryptid/health-data-etl-service/internal/observability"
	"github.com/couchcryptid/health-data-etl-service/internal/pipeline"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	repo, err := sqlite.New(cfg.DBPath, metrics, logger)
	if err != nil {
		logger.Error("failed to open repository", "path", cfg.DBPath, "error", err)
		os.Exit(1)
	}

	source := who.NewClient(cfg.WHOBaseURL, cfg.WHOTimeout, metrics, logger)

	// Fact events are feature-flagged via KAFKA_ENABLED.
	var publisher pipeline.Publisher
	var writer *kafkaadapter.Writer
	if cfg.KafkaEnabled {
		writer = kafkaadapter.NewWriter(cfg, logger)
		publisher = writer
		logger.Info("fact event publishing enabled", "topic", cfg.KafkaFactsTopic, "brokers", cfg.KafkaBrokers)
	} else {
		logger.Info("fact event publishing disabled")
	}

	p := pipeline.New(source, repo, publisher, logger, metrics)

	srv := httpadapter.NewServer(cfg.HTTPAddr, p, p, repo, cfg.Indicators, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Run an initial ingestion so a freshly started service has data before
	// the first /ingest request arrives.
	go func() {
		if _, err := p.Run(ctx, cfg.Indicators); err != nil {
			logger.Error("initial ingestion failed", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}
	if err := repo.Close(); err != nil {
		logger.Error("repository close error", "error", err)
	}

	logger.Info("shutdown complete")
}
