package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"quizinsight/internal/models"
	"quizinsight/internal/observability"
	"quizinsight/internal/serviceinterfaces"
	contextutils "quizinsight/internal/utils"

	"go.opentelemetry.io/otel/attribute"
)

// PlacementResultRepository is the Postgres implementation of serviceinterfaces.PlacementResultRepository
type PlacementResultRepository struct {
	db     *sql.DB
	logger *observability.Logger
}

var _ serviceinterfaces.PlacementResultRepository = (*PlacementResultRepository)(nil)

// NewPlacementResultRepository creates a PlacementResultRepository over db
func NewPlacementResultRepository(db *sql.DB, logger *observability.Logger) *PlacementResultRepository {
	return &PlacementResultRepository{db: db, logger: logger}
}

// Save stores a scored report. Scoring the same submission again only refreshes scored_at.
func (r *PlacementResultRepository) Save(ctx context.Context, userID int, report *models.ScoreReport) (err error) {
	ctx, span := observability.TraceDatabaseFunction(ctx, "save_placement_result",
		observability.AttributeUserID(userID),
		attribute.String("report.id", report.ID.String()),
		observability.AttributeTier(report.Tier),
	)
	defer observability.FinishSpan(span, &err)

	body, err := json.Marshal(report)
	if err != nil {
		return contextutils.WrapError(err, "failed to encode placement report")
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO placement_results (user_id, report_id, title, correct, total, ratio, tier, report, scored_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
		ON CONFLICT (user_id, report_id) DO UPDATE SET scored_at = NOW()
	`, userID, report.ID, report.Title, report.Correct, report.Total, report.Ratio, report.Tier.String(), body)
	if err != nil {
		return contextutils.WrapErrorf(err, "failed to save placement result for user %d", userID)
	}
	return nil
}

// LatestTier returns the tier of the newest placement result, or TierUnplaced
func (r *PlacementResultRepository) LatestTier(ctx context.Context, userID int) (result0 models.DifficultyTier, err error) {
	ctx, span := observability.TraceDatabaseFunction(ctx, "latest_placement_tier", observability.AttributeUserID(userID))
	defer observability.FinishSpan(span, &err)

	var tier string
	err = r.db.QueryRowContext(ctx, `
		SELECT tier FROM placement_results
		WHERE user_id = $1
		ORDER BY scored_at DESC, report_id
		LIMIT 1
	`, userID).Scan(&tier)
	if errors.Is(err, sql.ErrNoRows) {
		return models.TierUnplaced, nil
	}
	if err != nil {
		return models.TierUnplaced, contextutils.WrapErrorf(err, "failed to get latest placement tier for user %d", userID)
	}

	parsed, err := models.ParseDifficultyTier(tier)
	if err != nil {
		return models.TierUnplaced, contextutils.WrapErrorf(contextutils.ErrInconsistency, "placement result for user %d: %v", userID, err)
	}
	return parsed, nil
}
