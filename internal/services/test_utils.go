//go:build integration

package services

import (
	"context"
	"database/sql"
	"os"
	"testing"

	"quizinsight/internal/database"
	"quizinsight/internal/observability"

	"github.com/stretchr/testify/require"
)

// SharedTestDBSetup provides a migrated, emptied database for each integration test
func SharedTestDBSetup(t *testing.T) *sql.DB {
	t.Helper()

	if os.Getenv("TEST_DATABASE_URL") == "" {
		t.Fatal("TEST_DATABASE_URL environment variable must be set for integration tests")
	}

	logger := observability.NewNopLogger()
	db, err := database.NewManager(logger).InitDBWithConfig(context.Background(), database.DefaultDatabaseConfig())
	require.NoError(t, err)

	cleanupDatabase(t, db)
	t.Cleanup(func() {
		_ = db.Close()
	})
	return db
}

func cleanupDatabase(t *testing.T, db *sql.DB) {
	t.Helper()

	require.NoError(t, database.ResetAllData(context.Background(), db))
}

func insertTestUser(t *testing.T, db *sql.DB, username string) int {
	t.Helper()

	var id int
	err := db.QueryRowContext(context.Background(),
		`INSERT INTO users (username) VALUES ($1) RETURNING id`, username).Scan(&id)
	require.NoError(t, err)
	return id
}

func insertTestQuiz(t *testing.T, db *sql.DB, kind, topic, tense string) int {
	t.Helper()

	var id int
	err := db.QueryRowContext(context.Background(), `
		INSERT INTO quizzes (kind, topic, tense, difficulty) VALUES ($1, NULLIF($2, ''), NULLIF($3, ''), 'beginner')
		RETURNING id
	`, kind, topic, tense).Scan(&id)
	require.NoError(t, err)
	return id
}
