// Package main provides a small CLI utility to reset the engine's database to a
// clean state. It is intended for local development and testing only and will
// permanently delete all data when run.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"quizinsight/internal/config"
	"quizinsight/internal/database"
	"quizinsight/internal/observability"
	contextutils "quizinsight/internal/utils"

	"go.uber.org/zap/zapcore"
)

// fatalIfErr logs the error with context and exits
func fatalIfErr(ctx context.Context, logger *observability.Logger, msg string, err error, fields map[string]interface{}) {
	logger.Error(ctx, msg, err, fields)
	os.Exit(1)
}

func main() {
	ctx := context.Background()
	yes := flag.Bool("yes", false, "skip the confirmation prompt")
	flag.Parse()

	cfg, err := config.NewConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	tp, mp, logger, err := observability.SetupObservability(&cfg.OpenTelemetry, "reset-db", zapcore.InfoLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize observability: %v\n", err)
		os.Exit(1)
	}
	defer observability.Shutdown(ctx, tp, mp, logger)

	fmt.Println("DATABASE RESET UTILITY")
	fmt.Println("======================")
	fmt.Println("This will PERMANENTLY DELETE ALL DATA in the database:")
	fmt.Println("- users, quizzes and attempt history")
	fmt.Println("- mistake records and weak points")
	fmt.Println("- dashboards, placement results and worker status")
	fmt.Println("")

	if cfg.Database.URL == "" {
		fatalIfErr(ctx, logger, "Database URL is empty", nil, map[string]interface{}{"service": "reset-db"})
	}
	fmt.Printf("URL: %s\n\n", contextutils.MaskDatabaseURL(cfg.Database.URL))

	if !*yes && !confirmReset(os.Stdin, os.Stdout) {
		fmt.Println("Reset cancelled.")
		return
	}

	dbManager := database.NewManager(logger)

	// Connecting applies pending migrations, so the schema is current before it is emptied
	db, err := dbManager.InitDBWithConfig(ctx, cfg.Database)
	if err != nil {
		fatalIfErr(ctx, logger, "Failed to connect to database", err, map[string]interface{}{"db_url": contextutils.MaskDatabaseURL(cfg.Database.URL)})
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Warn(ctx, "Warning: failed to close database connection", map[string]interface{}{"error": err.Error()})
		}
	}()

	logger.Info(ctx, "Resetting all engine data", map[string]interface{}{"service": "reset-db"})
	if err := database.ResetAllData(ctx, db); err != nil {
		fatalIfErr(ctx, logger, "Failed to reset database", err, map[string]interface{}{"service": "reset-db"})
	}

	fmt.Println("Database is now empty and ready to use.")
}

func confirmReset(in io.Reader, out io.Writer) bool {
	reader := bufio.NewReader(in)

	for {
		fmt.Fprint(out, "Are you sure you want to reset the database? (type 'yes' to confirm): ")
		response, err := reader.ReadString('\n')
		if err != nil && response == "" {
			return false
		}

		switch strings.TrimSpace(strings.ToLower(response)) {
		case "yes":
			return true
		case "no", "":
			return false
		default:
			fmt.Fprintln(out, "Please type 'yes' to confirm or 'no' to cancel.")
		}
	}
}
