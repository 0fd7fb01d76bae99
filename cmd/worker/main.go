// Package main provides the entry point for the insight engine worker service.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"quizinsight/internal/config"
	"quizinsight/internal/di"
	"quizinsight/internal/handlers"
	"quizinsight/internal/observability"
	"quizinsight/internal/version"
	"quizinsight/internal/worker"

	"github.com/gin-gonic/gin"
)

// fatalIfErr logs the error with context and panics with a consistent message
func fatalIfErr(ctx context.Context, logger *observability.Logger, msg string, err error, fields map[string]interface{}) {
	logger.Error(ctx, msg, err, fields)
	panic(msg + ": " + err.Error())
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.NewConfig()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}
	cfg.OpenTelemetry.ServiceVersion = version.Version

	tp, mp, logger, err := observability.SetupObservability(&cfg.OpenTelemetry, handlers.ServiceName, observability.ParseLevel(cfg.Server.LogLevel))
	if err != nil {
		panic("Failed to initialize observability: " + err.Error())
	}
	defer observability.Shutdown(context.WithoutCancel(ctx), tp, mp, logger)

	logger.Info(ctx, "Starting insight worker service", map[string]interface{}{
		"port":         cfg.Server.WorkerPort,
		"logLevel":     cfg.Server.LogLevel,
		"debug":        cfg.Server.Debug,
		"catalog_mode": cfg.Engine.Catalog.Mode,
		"ranking_mode": cfg.Engine.Ranking.Mode,
		"version":      version.Version,
	})

	container := di.NewServiceContainer(cfg, logger)
	if err := container.Initialize(ctx); err != nil {
		fatalIfErr(ctx, logger, "Failed to initialize services", err, nil)
	}
	defer func() {
		if err := container.Shutdown(context.WithoutCancel(ctx)); err != nil {
			logger.Warn(ctx, "Warning: failed to shut down services", map[string]interface{}{"error": err.Error()})
		}
	}()

	classifier, err := container.GetClassifier()
	if err != nil {
		fatalIfErr(ctx, logger, "Failed to resolve classifier", err, nil)
	}
	aggregator, err := container.GetDashboardAggregator()
	if err != nil {
		fatalIfErr(ctx, logger, "Failed to resolve dashboard aggregator", err, nil)
	}
	workerService, err := container.GetWorkerService()
	if err != nil {
		fatalIfErr(ctx, logger, "Failed to resolve worker service", err, nil)
	}

	instance := os.Getenv("WORKER_INSTANCE")
	workerInstance := worker.NewWorker(classifier, aggregator, workerService, instance, cfg, logger)
	go workerInstance.Start(ctx)

	gin.SetMode(gin.ReleaseMode)
	if cfg.Server.Debug {
		gin.SetMode(gin.DebugMode)
	}
	adminHandler := handlers.NewWorkerAdminHandlerWithLogger(workerInstance, workerService, logger)
	router := handlers.NewWorkerRouter(cfg, adminHandler, logger)

	srv := &http.Server{
		Addr:              ":" + cfg.Server.WorkerPort,
		Handler:           router,
		ReadHeaderTimeout: config.DefaultHTTPTimeout,
	}

	go func() {
		logger.Info(ctx, "Worker HTTP server listening", map[string]interface{}{"addr": srv.Addr})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fatalIfErr(ctx, logger, "Worker HTTP server failed", err, map[string]interface{}{"addr": srv.Addr})
		}
	}()

	<-ctx.Done()
	logger.Info(context.WithoutCancel(ctx), "Shutting down worker service", nil)

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), config.WorkerShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error(shutdownCtx, "Worker HTTP server shutdown failed", err)
	}
	if err := workerInstance.Shutdown(shutdownCtx); err != nil {
		logger.Error(shutdownCtx, "Worker shutdown failed", err)
	}
	logger.Info(shutdownCtx, "Worker service stopped", nil)
}
