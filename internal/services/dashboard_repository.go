package services

import (
	"context"
	"database/sql"
	"errors"

	"quizinsight/internal/models"
	"quizinsight/internal/observability"
	"quizinsight/internal/serviceinterfaces"
	contextutils "quizinsight/internal/utils"
)

// DashboardRepository is the Postgres implementation of serviceinterfaces.DashboardRepository
type DashboardRepository struct {
	db     *sql.DB
	logger *observability.Logger
}

var _ serviceinterfaces.DashboardRepository = (*DashboardRepository)(nil)

// NewDashboardRepository creates a DashboardRepository over db
func NewDashboardRepository(db *sql.DB, logger *observability.Logger) *DashboardRepository {
	return &DashboardRepository{db: db, logger: logger}
}

// Save upserts the whole stats row in a single statement so readers never see a partial update
func (r *DashboardRepository) Save(ctx context.Context, stats *models.DashboardStats) (err error) {
	ctx, span := observability.TraceDatabaseFunction(ctx, "save_dashboard_stats", observability.AttributeUserID(stats.UserID))
	defer observability.FinishSpan(span, &err)

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO dashboard_stats (
			user_id, total_quizzes, total_questions, total_correct_answers, total_wrong_answers,
			accuracy_rate, current_streak, total_points, current_rank, tier, inconsistent, as_of, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW())
		ON CONFLICT (user_id) DO UPDATE SET
			total_quizzes = EXCLUDED.total_quizzes,
			total_questions = EXCLUDED.total_questions,
			total_correct_answers = EXCLUDED.total_correct_answers,
			total_wrong_answers = EXCLUDED.total_wrong_answers,
			accuracy_rate = EXCLUDED.accuracy_rate,
			current_streak = EXCLUDED.current_streak,
			total_points = EXCLUDED.total_points,
			current_rank = EXCLUDED.current_rank,
			tier = EXCLUDED.tier,
			inconsistent = EXCLUDED.inconsistent,
			as_of = EXCLUDED.as_of,
			updated_at = EXCLUDED.updated_at
	`, stats.UserID, stats.TotalQuizzes, stats.TotalQuestions, stats.TotalCorrectAnswers, stats.TotalWrongAnswers,
		stats.AccuracyRate, stats.CurrentStreak, stats.TotalPoints, stats.CurrentRank, stats.Tier.String(),
		stats.Inconsistent, stats.AsOf)
	if err != nil {
		return contextutils.WrapErrorf(err, "failed to save dashboard stats for user %d", stats.UserID)
	}
	return nil
}

// Get returns the stored stats of a user
func (r *DashboardRepository) Get(ctx context.Context, userID int) (result0 *models.DashboardStats, err error) {
	ctx, span := observability.TraceDatabaseFunction(ctx, "get_dashboard_stats", observability.AttributeUserID(userID))
	defer observability.FinishSpan(span, &err)

	var (
		stats models.DashboardStats
		tier  string
		asOf  sql.NullTime
	)
	err = r.db.QueryRowContext(ctx, `
		SELECT user_id, total_quizzes, total_questions, total_correct_answers, total_wrong_answers,
			accuracy_rate, current_streak, total_points, current_rank, tier, inconsistent, as_of
		FROM dashboard_stats WHERE user_id = $1
	`, userID).Scan(&stats.UserID, &stats.TotalQuizzes, &stats.TotalQuestions, &stats.TotalCorrectAnswers,
		&stats.TotalWrongAnswers, &stats.AccuracyRate, &stats.CurrentStreak, &stats.TotalPoints,
		&stats.CurrentRank, &tier, &stats.Inconsistent, &asOf)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, contextutils.NotFoundf("dashboard stats for user %d", userID)
	}
	if err != nil {
		return nil, contextutils.WrapErrorf(err, "failed to get dashboard stats for user %d", userID)
	}

	if stats.Tier, err = models.ParseDifficultyTier(tier); err != nil {
		return nil, contextutils.WrapErrorf(contextutils.ErrInconsistency, "dashboard stats for user %d: %v", userID, err)
	}
	if asOf.Valid {
		t := asOf.Time
		stats.AsOf = &t
	}
	return &stats, nil
}
