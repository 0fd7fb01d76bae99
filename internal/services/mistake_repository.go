package services

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"time"

	"quizinsight/internal/database"
	"quizinsight/internal/models"
	"quizinsight/internal/observability"
	"quizinsight/internal/serviceinterfaces"
	contextutils "quizinsight/internal/utils"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

const mistakeColumns = `id, user_id, quiz_id, user_weak_point_id, times_attempted, times_wrong,
	last_attempted_at, is_analyzed, user_answer, version, created_at`

// MistakeRepository is the Postgres implementation of serviceinterfaces.MistakeRepository
type MistakeRepository struct {
	db     sqlExecutor
	logger *observability.Logger
}

var _ serviceinterfaces.MistakeRepository = (*MistakeRepository)(nil)

// NewMistakeRepository creates a MistakeRepository over db
func NewMistakeRepository(db *sql.DB, logger *observability.Logger) *MistakeRepository {
	return &MistakeRepository{db: db, logger: logger}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanMistake(row rowScanner) (*models.MistakeRecord, error) {
	var (
		rec         models.MistakeRecord
		weakPointID sql.NullInt64
		answer      sql.NullString
	)
	if err := row.Scan(&rec.ID, &rec.UserID, &rec.QuizID, &weakPointID, &rec.TimesAttempted, &rec.TimesWrong,
		&rec.LastAttemptedAt, &rec.IsAnalyzed, &answer, &rec.Version, &rec.CreatedAt); err != nil {
		return nil, err
	}
	if weakPointID.Valid {
		id := int(weakPointID.Int64)
		rec.UserWeakPointID = &id
	}
	if answer.Valid {
		rec.UserAnswer = &answer.String
	}
	return &rec, nil
}

// Get returns the record for (userID, quizID)
func (r *MistakeRepository) Get(ctx context.Context, userID, quizID int) (result0 *models.MistakeRecord, err error) {
	ctx, span := observability.TraceDatabaseFunction(ctx, "get_mistake_record",
		observability.AttributeUserID(userID), observability.AttributeQuizID(quizID))
	defer observability.FinishSpan(span, &err)

	rec, err := scanMistake(r.db.QueryRowContext(ctx, `
		SELECT `+mistakeColumns+`
		FROM mistake_records WHERE user_id = $1 AND quiz_id = $2
	`, userID, quizID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, contextutils.NotFoundf("mistake record for user %d quiz %d", userID, quizID)
	}
	if err != nil {
		return nil, contextutils.WrapErrorf(err, "failed to get mistake record for user %d quiz %d", userID, quizID)
	}
	return rec, nil
}

// Create inserts a first-wrong-answer record; losing the insert race yields CONFLICT
func (r *MistakeRepository) Create(ctx context.Context, record *models.MistakeRecord) (result0 *models.MistakeRecord, err error) {
	ctx, span := observability.TraceDatabaseFunction(ctx, "create_mistake_record",
		observability.AttributeUserID(record.UserID), observability.AttributeQuizID(record.QuizID))
	defer observability.FinishSpan(span, &err)

	rec, err := scanMistake(r.db.QueryRowContext(ctx, `
		INSERT INTO mistake_records (
			user_id, quiz_id, times_attempted, times_wrong, last_attempted_at,
			is_analyzed, user_answer, version
		) VALUES ($1, $2, $3, $4, $5, FALSE, $6, 1)
		ON CONFLICT (user_id, quiz_id) DO NOTHING
		RETURNING `+mistakeColumns,
		record.UserID, record.QuizID, record.TimesAttempted, record.TimesWrong,
		record.LastAttemptedAt, record.UserAnswer))
	switch {
	case errors.Is(err, sql.ErrNoRows), database.IsUniqueViolation(err):
		return nil, contextutils.WrapErrorf(contextutils.ErrConflict,
			"mistake record for user %d quiz %d was created concurrently", record.UserID, record.QuizID)
	case err != nil:
		return nil, contextutils.WrapErrorf(err, "failed to create mistake record for user %d quiz %d", record.UserID, record.QuizID)
	}
	return rec, nil
}

// AmendIfVersion applies one attempt to the record if its version is still expectedVersion
func (r *MistakeRepository) AmendIfVersion(ctx context.Context, id, expectedVersion int, wrong bool, answer string, at time.Time) (result0 *models.MistakeRecord, err error) {
	ctx, span := observability.TraceDatabaseFunction(ctx, "amend_mistake_record",
		observability.AttributeMistakeID(id),
		attribute.Int("mistake.expected_version", expectedVersion),
		attribute.Bool("attempt.wrong", wrong),
	)
	defer observability.FinishSpan(span, &err)

	wrongIncrement := 0
	if wrong {
		wrongIncrement = 1
	}

	rec, err := scanMistake(r.db.QueryRowContext(ctx, `
		UPDATE mistake_records SET
			times_attempted = times_attempted + 1,
			times_wrong = times_wrong + $3,
			last_attempted_at = GREATEST(last_attempted_at, $4),
			user_answer = $5,
			is_analyzed = FALSE,
			claim_token = NULL,
			claimed_at = NULL,
			version = version + 1
		WHERE id = $1 AND version = $2
		RETURNING `+mistakeColumns,
		id, expectedVersion, wrongIncrement, at, answer))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, contextutils.WrapErrorf(contextutils.ErrConflict,
			"mistake record %d changed since version %d", id, expectedVersion)
	}
	if err != nil {
		return nil, contextutils.WrapErrorf(err, "failed to amend mistake record %d", id)
	}
	return rec, nil
}

// ClaimPending claims up to limit unanalyzed records whose claim is absent or older than lease
func (r *MistakeRepository) ClaimPending(ctx context.Context, limit int, token uuid.UUID, now time.Time, lease time.Duration) (result0 []models.MistakeRecord, err error) {
	ctx, span := observability.TraceDatabaseFunction(ctx, "claim_pending_mistakes",
		observability.AttributeBatchSize(limit),
		attribute.String("claim.token", token.String()),
	)
	defer observability.FinishSpan(span, &err)

	rows, err := r.db.QueryContext(ctx, `
		UPDATE mistake_records m SET claim_token = $2, claimed_at = $3
		FROM (
			SELECT id FROM mistake_records
			WHERE is_analyzed = FALSE
			  AND (claim_token IS NULL OR claimed_at < $4)
			ORDER BY last_attempted_at, id
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		) pending
		WHERE m.id = pending.id
		RETURNING m.id, m.user_id, m.quiz_id, m.user_weak_point_id, m.times_attempted, m.times_wrong,
			m.last_attempted_at, m.is_analyzed, m.user_answer, m.version, m.created_at
	`, limit, token, now, now.Add(-lease))
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to claim pending mistake records")
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			r.logger.Error(ctx, "Failed to close rows", closeErr)
		}
	}()

	var claimed []models.MistakeRecord
	for rows.Next() {
		rec, err := scanMistake(rows)
		if err != nil {
			return nil, contextutils.WrapError(err, "failed to scan claimed mistake record")
		}
		claimed = append(claimed, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, contextutils.WrapError(err, "error iterating claimed mistake records")
	}

	// RETURNING does not preserve the subquery order
	sort.Slice(claimed, func(i, j int) bool {
		if !claimed[i].LastAttemptedAt.Equal(claimed[j].LastAttemptedAt) {
			return claimed[i].LastAttemptedAt.Before(claimed[j].LastAttemptedAt)
		}
		return claimed[i].ID < claimed[j].ID
	})

	span.SetAttributes(attribute.Int("claim.count", len(claimed)))
	return claimed, nil
}

// MarkAnalyzed links a claimed record to its weak point if neither the claim nor the version moved
func (r *MistakeRepository) MarkAnalyzed(ctx context.Context, id, version int, token uuid.UUID, weakPointID int) (result0 bool, err error) {
	ctx, span := observability.TraceDatabaseFunction(ctx, "mark_mistake_analyzed",
		observability.AttributeMistakeID(id),
		attribute.Int("weak_point.id", weakPointID),
	)
	defer observability.FinishSpan(span, &err)

	res, err := r.db.ExecContext(ctx, `
		UPDATE mistake_records SET
			user_weak_point_id = $4,
			is_analyzed = TRUE,
			claim_token = NULL,
			claimed_at = NULL
		WHERE id = $1 AND version = $2 AND claim_token = $3
	`, id, version, token, weakPointID)
	if err != nil {
		return false, contextutils.WrapErrorf(err, "failed to mark mistake record %d analyzed", id)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, contextutils.WrapError(err, "failed to read rows affected")
	}
	return affected == 1, nil
}

// ReleaseClaim drops this worker's claim on a record
func (r *MistakeRepository) ReleaseClaim(ctx context.Context, id int, token uuid.UUID) (err error) {
	ctx, span := observability.TraceDatabaseFunction(ctx, "release_mistake_claim", observability.AttributeMistakeID(id))
	defer observability.FinishSpan(span, &err)

	_, err = r.db.ExecContext(ctx, `
		UPDATE mistake_records SET claim_token = NULL, claimed_at = NULL
		WHERE id = $1 AND claim_token = $2
	`, id, token)
	if err != nil {
		return contextutils.WrapErrorf(err, "failed to release claim on mistake record %d", id)
	}
	return nil
}

// ListByUser returns every mistake record of a user ordered by id
func (r *MistakeRepository) ListByUser(ctx context.Context, userID int) (result0 []models.MistakeRecord, err error) {
	ctx, span := observability.TraceDatabaseFunction(ctx, "list_mistake_records", observability.AttributeUserID(userID))
	defer observability.FinishSpan(span, &err)

	rows, err := r.db.QueryContext(ctx, `
		SELECT `+mistakeColumns+`
		FROM mistake_records WHERE user_id = $1 ORDER BY id
	`, userID)
	if err != nil {
		return nil, contextutils.WrapErrorf(err, "failed to list mistake records for user %d", userID)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			r.logger.Error(ctx, "Failed to close rows", closeErr)
		}
	}()

	var records []models.MistakeRecord
	for rows.Next() {
		rec, err := scanMistake(rows)
		if err != nil {
			return nil, contextutils.WrapError(err, "failed to scan mistake record")
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, contextutils.WrapError(err, "error iterating mistake records")
	}
	return records, nil
}

// CountPending returns the number of unanalyzed records
func (r *MistakeRepository) CountPending(ctx context.Context) (result0 int, err error) {
	ctx, span := observability.TraceDatabaseFunction(ctx, "count_pending_mistakes")
	defer observability.FinishSpan(span, &err)

	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM mistake_records WHERE is_analyzed = FALSE`).Scan(&n); err != nil {
		return 0, contextutils.WrapError(err, "failed to count pending mistake records")
	}
	return n, nil
}
