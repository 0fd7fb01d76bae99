// Package main provides the admin CLI of the insight engine.
package main

import (
	"context"
	"fmt"
	"os"

	"quizinsight/cmd/adm/commands"
	"quizinsight/internal/config"
	"quizinsight/internal/observability"

	"go.uber.org/zap/zapcore"
)

func main() {
	ctx := context.Background()

	// Fall back to a config file next to the binary or in the working directory
	if os.Getenv(config.ConfigFileEnv) == "" {
		for _, path := range []string{"config.yaml", "../config.yaml", "../../config.yaml"} {
			if _, err := os.Stat(path); err == nil {
				if err := os.Setenv(config.ConfigFileEnv, path); err != nil {
					fmt.Fprintf(os.Stderr, "Failed to set %s: %v\n", config.ConfigFileEnv, err)
					os.Exit(1)
				}
				break
			}
		}
	}

	cfg, err := config.NewConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Disable all OpenTelemetry export for the admin CLI to avoid connection errors
	cfg.OpenTelemetry.EnableTracing = false
	cfg.OpenTelemetry.EnableMetrics = false
	cfg.OpenTelemetry.EnableLogging = false

	tp, mp, logger, err := observability.SetupObservability(&cfg.OpenTelemetry, "quizinsight-adm", zapcore.ErrorLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize observability: %v\n", err)
		os.Exit(1)
	}

	env := commands.NewEnv(cfg, logger)
	rootCmd := commands.NewRootCommand(env)

	err = rootCmd.ExecuteContext(ctx)
	env.Close(ctx)
	observability.Shutdown(ctx, tp, mp, logger)
	if err != nil {
		os.Exit(1)
	}
}
