// Package main provides a CLI tool that runs a single worker cycle and exits,
// for cron-driven deployments that do not keep the worker service running.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"quizinsight/internal/config"
	"quizinsight/internal/di"
	"quizinsight/internal/observability"
	"quizinsight/internal/worker"
)

func main() {
	ctx := context.Background()
	var (
		instance   = flag.String("instance", "cli", "worker instance name recorded in worker_status")
		batchSize  = flag.Int("batch", 0, "override classifier batch size (optional)")
		maxBatches = flag.Int("max-batches", 0, "override batches per run (optional)")
		timeout    = flag.Duration("timeout", 10*time.Minute, "abort the run after this long")
		help       = flag.Bool("help", false, "Show help message")
	)
	flag.Parse()

	if *help {
		printUsage()
		return
	}

	cfg, err := config.NewConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	applyOverrides(cfg, *batchSize, *maxBatches)

	tp, mp, logger, err := observability.SetupObservability(&cfg.OpenTelemetry, "quizinsight-cli-worker", observability.ParseLevel(cfg.Server.LogLevel))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize observability: %v\n", err)
		os.Exit(1)
	}
	defer observability.Shutdown(ctx, tp, mp, logger)

	if code := run(ctx, cfg, logger, *instance, *timeout); code != 0 {
		observability.Shutdown(ctx, tp, mp, logger)
		os.Exit(code)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *observability.Logger, instance string, timeout time.Duration) int {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	container := di.NewServiceContainer(cfg, logger, di.WithoutMigrations())
	if err := container.Initialize(ctx); err != nil {
		logger.Error(ctx, "Failed to initialize services", err)
		return 1
	}
	defer func() {
		if err := container.Shutdown(context.WithoutCancel(ctx)); err != nil {
			logger.Warn(ctx, "Warning: failed to shut down services", map[string]interface{}{"error": err.Error()})
		}
	}()

	classifier, err := container.GetClassifier()
	if err != nil {
		logger.Error(ctx, "Failed to resolve classifier", err)
		return 1
	}
	aggregator, err := container.GetDashboardAggregator()
	if err != nil {
		logger.Error(ctx, "Failed to resolve dashboard aggregator", err)
		return 1
	}
	workerService, err := container.GetWorkerService()
	if err != nil {
		logger.Error(ctx, "Failed to resolve worker service", err)
		return 1
	}

	w := worker.NewWorker(classifier, aggregator, workerService, instance, cfg, logger)
	record := w.RunOnce(ctx)

	out, _ := json.MarshalIndent(record, "", "  ")
	fmt.Println(string(out))

	if record.Status == worker.RunStatusFailure {
		return 2
	}
	return 0
}

func applyOverrides(cfg *config.Config, batchSize, maxBatches int) {
	if batchSize > 0 {
		cfg.Engine.Classifier.BatchSize = batchSize
	}
	if maxBatches > 0 {
		cfg.Engine.Worker.MaxBatchesPerRun = maxBatches
	}
}

func printUsage() {
	fmt.Println("Usage: cli-worker [flags]")
	fmt.Println("")
	fmt.Println("Runs one classification and dashboard recompute cycle, prints the run record and exits.")
	fmt.Println("Exit status is 2 when the run recorded a failure.")
	fmt.Println("")
	flag.PrintDefaults()
}
