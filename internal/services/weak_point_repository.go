package services

import (
	"context"
	"database/sql"

	"quizinsight/internal/models"
	"quizinsight/internal/observability"
	"quizinsight/internal/serviceinterfaces"
	contextutils "quizinsight/internal/utils"
)

// WeakPointRepository is the Postgres implementation of serviceinterfaces.WeakPointRepository
type WeakPointRepository struct {
	db     *sql.DB
	logger *observability.Logger
}

var _ serviceinterfaces.WeakPointRepository = (*WeakPointRepository)(nil)

// NewWeakPointRepository creates a WeakPointRepository over db
func NewWeakPointRepository(db *sql.DB, logger *observability.Logger) *WeakPointRepository {
	return &WeakPointRepository{db: db, logger: logger}
}

// FindOrCreate returns the (userID, categoryKey) weak point, inserting it if absent.
// The no-op DO UPDATE makes RETURNING yield the existing row on conflict.
func (r *WeakPointRepository) FindOrCreate(ctx context.Context, userID int, categoryKey string, kind models.ContentKind, label string) (result0 *models.WeakPoint, err error) {
	ctx, span := observability.TraceDatabaseFunction(ctx, "find_or_create_weak_point",
		observability.AttributeUserID(userID), observability.AttributeCategoryKey(categoryKey))
	defer observability.FinishSpan(span, &err)

	var (
		wp         models.WeakPoint
		storedKind string
	)
	err = r.db.QueryRowContext(ctx, `
		INSERT INTO user_weak_points (user_id, category_key, kind, label, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		ON CONFLICT (user_id, category_key) DO UPDATE SET updated_at = user_weak_points.updated_at
		RETURNING id, user_id, category_key, kind, label, created_at, updated_at
	`, userID, categoryKey, string(kind), label).Scan(
		&wp.ID, &wp.UserID, &wp.CategoryKey, &storedKind, &wp.Label, &wp.CreatedAt, &wp.UpdatedAt,
	)
	if err != nil {
		return nil, contextutils.WrapErrorf(err, "failed to find or create weak point %q for user %d", categoryKey, userID)
	}
	wp.Kind = models.ParseContentKind(storedKind)
	return &wp, nil
}

// ListByUser returns the user's weak points, most wrong answers first
func (r *WeakPointRepository) ListByUser(ctx context.Context, userID int) (result0 []models.WeakPointSummary, err error) {
	ctx, span := observability.TraceDatabaseFunction(ctx, "list_weak_points", observability.AttributeUserID(userID))
	defer observability.FinishSpan(span, &err)

	rows, err := r.db.QueryContext(ctx, `
		SELECT wp.id, wp.user_id, wp.category_key, wp.kind, wp.label, wp.created_at, wp.updated_at,
			COUNT(m.id) AS mistake_count,
			COALESCE(SUM(m.times_wrong), 0) AS wrong_count
		FROM user_weak_points wp
		LEFT JOIN mistake_records m ON m.user_weak_point_id = wp.id
		WHERE wp.user_id = $1
		GROUP BY wp.id
		ORDER BY wrong_count DESC, wp.category_key
	`, userID)
	if err != nil {
		return nil, contextutils.WrapErrorf(err, "failed to list weak points for user %d", userID)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			r.logger.Error(ctx, "Failed to close rows", closeErr)
		}
	}()

	var summaries []models.WeakPointSummary
	for rows.Next() {
		var (
			s    models.WeakPointSummary
			kind string
		)
		if err := rows.Scan(&s.ID, &s.UserID, &s.CategoryKey, &kind, &s.Label, &s.CreatedAt, &s.UpdatedAt,
			&s.MistakeCount, &s.WrongCount); err != nil {
			return nil, contextutils.WrapError(err, "failed to scan weak point")
		}
		s.Kind = models.ParseContentKind(kind)
		summaries = append(summaries, s)
	}
	if err := rows.Err(); err != nil {
		return nil, contextutils.WrapError(err, "error iterating weak points")
	}
	return summaries, nil
}
