package services

import (
	"context"

	"quizinsight/internal/models"
	"quizinsight/internal/observability"
	"quizinsight/internal/serviceinterfaces"
	contextutils "quizinsight/internal/utils"

	"go.opentelemetry.io/otel/attribute"
)

// PlacementServiceInterface scores placement tests and keeps each user's results
type PlacementServiceInterface interface {
	Score(set *models.PlacementQuizSetImport, submitted map[int]string) (*models.ScoreReport, error)
	ScoreForUser(ctx context.Context, userID int, set *models.PlacementQuizSetImport, submitted map[int]string) (*models.ScoreReport, error)
	LatestTier(ctx context.Context, userID int) (models.DifficultyTier, error)
}

// PlacementService pairs the pure scorer with result persistence
type PlacementService struct {
	scorer  *PlacementScorer
	users   serviceinterfaces.UserDirectory
	results serviceinterfaces.PlacementResultRepository
	metrics *observability.EngineMetrics
	logger  *observability.Logger
}

var _ PlacementServiceInterface = (*PlacementService)(nil)

// NewPlacementService creates a PlacementService
func NewPlacementService(
	scorer *PlacementScorer,
	users serviceinterfaces.UserDirectory,
	results serviceinterfaces.PlacementResultRepository,
	metrics *observability.EngineMetrics,
	logger *observability.Logger,
) *PlacementService {
	return &PlacementService{
		scorer:  scorer,
		users:   users,
		results: results,
		metrics: metrics,
		logger:  logger,
	}
}

// Score scores without storing anything
func (s *PlacementService) Score(set *models.PlacementQuizSetImport, submitted map[int]string) (*models.ScoreReport, error) {
	return s.scorer.Score(set, submitted)
}

// ScoreForUser scores the submission and stores the report as the user's latest placement
func (s *PlacementService) ScoreForUser(ctx context.Context, userID int, set *models.PlacementQuizSetImport, submitted map[int]string) (result0 *models.ScoreReport, err error) {
	ctx, span := observability.TracePlacementFunction(ctx, "score_for_user",
		observability.AttributeUserID(userID),
		attribute.Int("placement.submitted", len(submitted)),
	)
	defer observability.FinishSpan(span, &err)

	exists, err := s.users.UserExists(ctx, userID)
	if err != nil {
		return nil, contextutils.WrapErrorf(err, "failed to look up user %d", userID)
	}
	if !exists {
		return nil, contextutils.NotFoundf("user %d", userID)
	}

	report, err := s.scorer.Score(set, submitted)
	if err != nil {
		return nil, err
	}

	if err := s.results.Save(ctx, userID, report); err != nil {
		return nil, err
	}

	span.SetAttributes(observability.AttributeTier(report.Tier), attribute.Float64("placement.ratio", report.Ratio))
	s.metrics.PlacementScored(ctx, report.Tier.String())
	s.logger.Debug(ctx, "Placement scored", map[string]interface{}{
		"user_id":   userID,
		"report_id": report.ID.String(),
		"correct":   report.Correct,
		"total":     report.Total,
		"tier":      report.Tier.String(),
	})
	return report, nil
}

// LatestTier returns the tier of the user's newest placement, or TierUnplaced
func (s *PlacementService) LatestTier(ctx context.Context, userID int) (models.DifficultyTier, error) {
	return s.results.LatestTier(ctx, userID)
}
