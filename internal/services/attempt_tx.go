package services

import (
	"context"
	"database/sql"

	"quizinsight/internal/database"
	"quizinsight/internal/observability"
	"quizinsight/internal/serviceinterfaces"
)

// sqlExecutor is the query surface shared by *sql.DB and *sql.Tx
type sqlExecutor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// SQLAttemptTransactor binds the mistake and history repositories to one Postgres transaction
type SQLAttemptTransactor struct {
	db     *sql.DB
	logger *observability.Logger
}

var _ serviceinterfaces.AttemptTransactor = (*SQLAttemptTransactor)(nil)

// NewSQLAttemptTransactor creates an SQLAttemptTransactor over db
func NewSQLAttemptTransactor(db *sql.DB, logger *observability.Logger) *SQLAttemptTransactor {
	return &SQLAttemptTransactor{db: db, logger: logger}
}

// InTx commits both repositories' writes if fn succeeds and rolls all of them back otherwise
func (t *SQLAttemptTransactor) InTx(ctx context.Context, fn func(ctx context.Context, mistakes serviceinterfaces.MistakeRepository, history serviceinterfaces.AttemptHistory) error) (err error) {
	ctx, span := observability.TraceDatabaseFunction(ctx, "attempt_transaction")
	defer observability.FinishSpan(span, &err)

	return database.WithTx(ctx, t.db, nil, func(tx *sql.Tx) error {
		return fn(ctx,
			&MistakeRepository{db: tx, logger: t.logger},
			&AttemptHistoryStore{db: tx, logger: t.logger},
		)
	})
}
