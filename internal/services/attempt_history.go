package services

import (
	"context"
	"database/sql"
	"time"

	"quizinsight/internal/models"
	"quizinsight/internal/observability"
	"quizinsight/internal/serviceinterfaces"
	contextutils "quizinsight/internal/utils"

	"go.opentelemetry.io/otel/attribute"
)

// AttemptHistoryStore is the quiz_attempts table viewed as an append-only log
type AttemptHistoryStore struct {
	db     sqlExecutor
	logger *observability.Logger
}

var _ serviceinterfaces.AttemptHistory = (*AttemptHistoryStore)(nil)

// NewAttemptHistoryStore creates an AttemptHistoryStore over db
func NewAttemptHistoryStore(db *sql.DB, logger *observability.Logger) *AttemptHistoryStore {
	return &AttemptHistoryStore{db: db, logger: logger}
}

// Append stores one attempt and fills in its id
func (s *AttemptHistoryStore) Append(ctx context.Context, attempt *models.Attempt) (err error) {
	ctx, span := observability.TraceDatabaseFunction(ctx, "append_attempt",
		observability.AttributeUserID(attempt.UserID), observability.AttributeQuizID(attempt.QuizID))
	defer observability.FinishSpan(span, &err)

	err = s.db.QueryRowContext(ctx, `
		INSERT INTO quiz_attempts (user_id, quiz_id, was_correct, attempted_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, attempt.UserID, attempt.QuizID, attempt.WasCorrect, attempt.AttemptedAt).Scan(&attempt.ID)
	if err != nil {
		return contextutils.WrapErrorf(err, "failed to append attempt for user %d quiz %d", attempt.UserID, attempt.QuizID)
	}
	return nil
}

// ListByUser returns the user's attempts oldest first
func (s *AttemptHistoryStore) ListByUser(ctx context.Context, userID int) (result0 []models.Attempt, err error) {
	ctx, span := observability.TraceDatabaseFunction(ctx, "list_attempts", observability.AttributeUserID(userID))
	defer observability.FinishSpan(span, &err)

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, quiz_id, was_correct, attempted_at
		FROM quiz_attempts
		WHERE user_id = $1
		ORDER BY attempted_at, id
	`, userID)
	if err != nil {
		return nil, contextutils.WrapErrorf(err, "failed to list attempts for user %d", userID)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			s.logger.Error(ctx, "Failed to close rows", closeErr)
		}
	}()

	var attempts []models.Attempt
	for rows.Next() {
		var a models.Attempt
		if err := rows.Scan(&a.ID, &a.UserID, &a.QuizID, &a.WasCorrect, &a.AttemptedAt); err != nil {
			return nil, contextutils.WrapError(err, "failed to scan attempt")
		}
		attempts = append(attempts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, contextutils.WrapError(err, "error iterating attempts")
	}

	span.SetAttributes(attribute.Int("attempts.count", len(attempts)))
	return attempts, nil
}

// UsersActiveSince returns the users who answered anything at or after since
func (s *AttemptHistoryStore) UsersActiveSince(ctx context.Context, since time.Time) (result0 []int, err error) {
	ctx, span := observability.TraceDatabaseFunction(ctx, "users_active_since",
		attribute.String("since", since.UTC().Format(time.RFC3339)))
	defer observability.FinishSpan(span, &err)

	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT user_id FROM quiz_attempts WHERE attempted_at >= $1 ORDER BY user_id
	`, since)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to list active users")
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			s.logger.Error(ctx, "Failed to close rows", closeErr)
		}
	}()

	var users []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, contextutils.WrapError(err, "failed to scan user id")
		}
		users = append(users, id)
	}
	if err := rows.Err(); err != nil {
		return nil, contextutils.WrapError(err, "error iterating active users")
	}
	return users, nil
}
