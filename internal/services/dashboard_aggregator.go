package services

import (
	"context"
	"time"

	"quizinsight/internal/config"
	"quizinsight/internal/models"
	"quizinsight/internal/observability"
	"quizinsight/internal/serviceinterfaces"
	contextutils "quizinsight/internal/utils"

	"go.opentelemetry.io/otel/attribute"
)

// Inconsistency kinds reported by the aggregator
const (
	InconsistencyWrongExceedsAttempted = "times_wrong_exceeds_attempted"
	InconsistencyNegativeCorrect       = "negative_correct_answers"
)

// Inconsistency describes stored data that contradicted itself and was clamped
type Inconsistency struct {
	Kind     string
	Detail   map[string]interface{}
	Original int
	Clamped  int
}

// DashboardAggregatorInterface recomputes per-user dashboard statistics
type DashboardAggregatorInterface interface {
	Recompute(ctx context.Context, userID int) (*models.DashboardStats, error)
	RecomputeActiveSince(ctx context.Context, since time.Time) (int, error)
	Get(ctx context.Context, userID int) (*models.DashboardStats, error)
}

// DashboardAggregator derives DashboardStats from attempt history and mistake records
type DashboardAggregator struct {
	users      serviceinterfaces.UserDirectory
	history    serviceinterfaces.AttemptHistory
	mistakes   serviceinterfaces.MistakeRepository
	ranking    serviceinterfaces.Ranking
	placements serviceinterfaces.PlacementResultRepository
	dashboards serviceinterfaces.DashboardRepository
	points     config.PointsConfig
	metrics    *observability.EngineMetrics
	logger     *observability.Logger
}

var _ DashboardAggregatorInterface = (*DashboardAggregator)(nil)

// NewDashboardAggregator creates a DashboardAggregator
func NewDashboardAggregator(
	users serviceinterfaces.UserDirectory,
	history serviceinterfaces.AttemptHistory,
	mistakes serviceinterfaces.MistakeRepository,
	ranking serviceinterfaces.Ranking,
	placements serviceinterfaces.PlacementResultRepository,
	dashboards serviceinterfaces.DashboardRepository,
	points config.PointsConfig,
	metrics *observability.EngineMetrics,
	logger *observability.Logger,
) *DashboardAggregator {
	return &DashboardAggregator{
		users:      users,
		history:    history,
		mistakes:   mistakes,
		ranking:    ranking,
		placements: placements,
		dashboards: dashboards,
		points:     points,
		metrics:    metrics,
		logger:     logger,
	}
}

// Recompute rebuilds and stores the user's dashboard. Contradictory stored counters are
// clamped, logged and flagged on the result; they never fail the operation.
func (s *DashboardAggregator) Recompute(ctx context.Context, userID int) (result0 *models.DashboardStats, err error) {
	ctx, span := observability.TraceDashboardFunction(ctx, "recompute", observability.AttributeUserID(userID))
	defer observability.FinishSpan(span, &err)

	exists, err := s.users.UserExists(ctx, userID)
	if err != nil {
		return nil, contextutils.WrapErrorf(err, "failed to look up user %d", userID)
	}
	if !exists {
		return nil, contextutils.NotFoundf("user %d", userID)
	}

	attempts, err := s.history.ListByUser(ctx, userID)
	if err != nil {
		return nil, contextutils.WrapErrorf(err, "failed to load attempt history for user %d", userID)
	}
	records, err := s.mistakes.ListByUser(ctx, userID)
	if err != nil {
		return nil, contextutils.WrapErrorf(err, "failed to load mistake records for user %d", userID)
	}

	stats, problems := AggregateStats(userID, attempts, records, s.points)
	for _, p := range problems {
		fields := map[string]interface{}{
			"user_id":  userID,
			"kind":     p.Kind,
			"original": p.Original,
			"clamped":  p.Clamped,
			"code":     string(contextutils.ErrorCodeInconsistency),
		}
		for k, v := range p.Detail {
			fields[k] = v
		}
		s.logger.Warn(ctx, "Clamped inconsistent dashboard input", fields)
		s.metrics.InconsistencyDetected(ctx, p.Kind)
	}

	rank, err := s.ranking.RankFor(ctx, userID, stats.TotalPoints)
	if err != nil {
		return nil, contextutils.WrapErrorf(err, "failed to rank user %d", userID)
	}
	stats.CurrentRank = rank

	tier, err := s.placements.LatestTier(ctx, userID)
	if err != nil {
		return nil, contextutils.WrapErrorf(err, "failed to load placement tier for user %d", userID)
	}
	stats.Tier = tier

	if err := s.dashboards.Save(ctx, stats); err != nil {
		return nil, err
	}

	span.SetAttributes(
		attribute.Int("dashboard.total_questions", stats.TotalQuestions),
		attribute.Int("dashboard.total_points", stats.TotalPoints),
		attribute.Bool("dashboard.inconsistent", stats.Inconsistent),
	)
	s.metrics.DashboardRecomputed(ctx)
	s.logger.Debug(ctx, "Dashboard recomputed", map[string]interface{}{
		"user_id":        userID,
		"total_points":   stats.TotalPoints,
		"current_rank":   stats.CurrentRank,
		"current_streak": stats.CurrentStreak,
	})
	return stats, nil
}

// RecomputeActiveSince recomputes every user with an attempt at or after since.
// Failures are logged per user; the first one is returned after all users were tried.
func (s *DashboardAggregator) RecomputeActiveSince(ctx context.Context, since time.Time) (result0 int, err error) {
	ctx, span := observability.TraceDashboardFunction(ctx, "recompute_active_since")
	defer observability.FinishSpan(span, &err)

	users, err := s.history.UsersActiveSince(ctx, since)
	if err != nil {
		return 0, err
	}

	var firstErr error
	done := 0
	for _, userID := range users {
		if ctx.Err() != nil {
			return done, contextutils.WrapErrorf(contextutils.ErrTimeout, "recompute cancelled: %v", ctx.Err())
		}
		if _, err := s.Recompute(ctx, userID); err != nil {
			s.logger.Error(ctx, "Failed to recompute dashboard", err, map[string]interface{}{"user_id": userID})
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		done++
	}

	span.SetAttributes(attribute.Int("dashboard.users", len(users)), attribute.Int("dashboard.recomputed", done))
	return done, firstErr
}

// Get returns the stored stats without recomputing them
func (s *DashboardAggregator) Get(ctx context.Context, userID int) (*models.DashboardStats, error) {
	return s.dashboards.Get(ctx, userID)
}

// AggregateStats computes everything except rank and tier from the raw inputs.
// It does no I/O; the returned inconsistencies describe the clamping it applied.
func AggregateStats(userID int, attempts []models.Attempt, records []models.MistakeRecord, points config.PointsConfig) (*models.DashboardStats, []Inconsistency) {
	history := sortAttempts(attempts)
	stats := &models.DashboardStats{
		UserID:         userID,
		TotalQuestions: len(history),
	}
	var problems []Inconsistency

	quizzes := make(map[int]struct{}, len(history))
	for _, a := range history {
		quizzes[a.QuizID] = struct{}{}
	}
	stats.TotalQuizzes = len(quizzes)

	for _, r := range records {
		wrong := r.TimesWrong
		if wrong > r.TimesAttempted {
			problems = append(problems, Inconsistency{
				Kind:     InconsistencyWrongExceedsAttempted,
				Detail:   map[string]interface{}{"mistake_id": r.ID, "quiz_id": r.QuizID},
				Original: wrong,
				Clamped:  r.TimesAttempted,
			})
			wrong = r.TimesAttempted
		}
		if wrong < 0 {
			wrong = 0
		}
		stats.TotalWrongAnswers += wrong
	}

	correct := stats.TotalQuestions - stats.TotalWrongAnswers
	if correct < 0 {
		problems = append(problems, Inconsistency{
			Kind:     InconsistencyNegativeCorrect,
			Detail:   map[string]interface{}{"total_questions": stats.TotalQuestions, "total_wrong": stats.TotalWrongAnswers},
			Original: correct,
			Clamped:  0,
		})
		correct = 0
	}
	stats.TotalCorrectAnswers = correct

	if stats.TotalQuestions > 0 {
		stats.AccuracyRate = 100 * float64(stats.TotalCorrectAnswers) / float64(stats.TotalQuestions)
	}

	stats.CurrentStreak = CurrentStreak(history)
	stats.TotalPoints = TotalPoints(history, points)
	if n := len(history); n > 0 {
		asOf := history[n-1].AttemptedAt
		stats.AsOf = &asOf
	}
	stats.Inconsistent = len(problems) > 0
	return stats, problems
}
