package services

import (
	"context"
	"time"

	"quizinsight/internal/config"
	"quizinsight/internal/models"
	"quizinsight/internal/observability"
	"quizinsight/internal/serviceinterfaces"
	contextutils "quizinsight/internal/utils"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

// WeakPointClassifierInterface defines the batch classification of mistake records
type WeakPointClassifierInterface interface {
	ClassifyPending(ctx context.Context, batchSize int) (int, error)
	WeakPointsForUser(ctx context.Context, userID int) ([]models.WeakPointSummary, error)
	CountPending(ctx context.Context) (int, error)
}

// WeakPointClassifier links unanalyzed mistake records to per-user weak points
type WeakPointClassifier struct {
	mistakes   serviceinterfaces.MistakeRepository
	weakPoints serviceinterfaces.WeakPointRepository
	catalog    serviceinterfaces.QuizCatalog
	rules      []CategoryRule
	cfg        config.ClassifierConfig
	metrics    *observability.EngineMetrics
	logger     *observability.Logger
	now        func() time.Time
}

var _ WeakPointClassifierInterface = (*WeakPointClassifier)(nil)

// NewWeakPointClassifier creates a classifier using DefaultCategoryRules
func NewWeakPointClassifier(
	mistakes serviceinterfaces.MistakeRepository,
	weakPoints serviceinterfaces.WeakPointRepository,
	catalog serviceinterfaces.QuizCatalog,
	cfg config.ClassifierConfig,
	metrics *observability.EngineMetrics,
	logger *observability.Logger,
) *WeakPointClassifier {
	return &WeakPointClassifier{
		mistakes:   mistakes,
		weakPoints: weakPoints,
		catalog:    catalog,
		rules:      DefaultCategoryRules(),
		cfg:        cfg,
		metrics:    metrics,
		logger:     logger,
		now:        time.Now,
	}
}

// ClassifyPending claims up to batchSize unanalyzed records, oldest last attempt first,
// and links each to its weak point. It returns the number of records analyzed.
// Records that fail or were amended while claimed stay pending for a later run.
func (s *WeakPointClassifier) ClassifyPending(ctx context.Context, batchSize int) (result0 int, err error) {
	ctx, span := observability.TraceClassifierFunction(ctx, "classify_pending", observability.AttributeBatchSize(batchSize))
	defer observability.FinishSpan(span, &err)

	if batchSize <= 0 {
		return 0, contextutils.InvalidInputf("batch size must be positive, got %d", batchSize)
	}

	token := uuid.New()
	claimed, err := s.mistakes.ClaimPending(ctx, batchSize, token, s.now(), s.cfg.ClaimLease)
	if err != nil {
		return 0, contextutils.WrapError(err, "failed to claim pending mistake records")
	}

	analyzed, failed, skipped := 0, 0, 0
	for i := range claimed {
		rec := &claimed[i]
		if ctx.Err() != nil {
			s.releaseAll(ctx, claimed[i:], token)
			return analyzed, contextutils.WrapErrorf(contextutils.ErrTimeout, "classification cancelled after %d records: %v", analyzed, ctx.Err())
		}

		done, err := s.classifyOne(ctx, rec, token)
		switch {
		case err != nil:
			failed++
			s.logger.Warn(ctx, "Failed to classify mistake record", map[string]interface{}{
				"mistake_id": rec.ID,
				"quiz_id":    rec.QuizID,
				"error":      err.Error(),
			})
			s.releaseAll(ctx, claimed[i:i+1], token)
		case done:
			analyzed++
		default:
			skipped++
		}
	}

	span.SetAttributes(
		attribute.Int("classifier.claimed", len(claimed)),
		attribute.Int("classifier.analyzed", analyzed),
		attribute.Int("classifier.failed", failed),
		attribute.Int("classifier.skipped", skipped),
	)
	s.metrics.MistakesAnalyzed(ctx, analyzed)
	s.logger.Debug(ctx, "Classified pending mistake records", map[string]interface{}{
		"claimed":  len(claimed),
		"analyzed": analyzed,
		"failed":   failed,
		"skipped":  skipped,
	})
	return analyzed, nil
}

// classifyOne reports false without error when the record moved on since it was claimed
func (s *WeakPointClassifier) classifyOne(ctx context.Context, rec *models.MistakeRecord, token uuid.UUID) (bool, error) {
	cat, err := s.categoryFor(ctx, rec.QuizID)
	if err != nil {
		return false, err
	}

	wp, err := s.weakPoints.FindOrCreate(ctx, rec.UserID, cat.Key, cat.Kind, cat.Label)
	if err != nil {
		return false, err
	}

	ok, err := s.mistakes.MarkAnalyzed(ctx, rec.ID, rec.Version, token, wp.ID)
	if err != nil {
		return false, err
	}
	if !ok {
		s.logger.Debug(ctx, "Mistake record changed while claimed", map[string]interface{}{
			"mistake_id": rec.ID,
			"version":    rec.Version,
		})
	}
	return ok, nil
}

func (s *WeakPointClassifier) categoryFor(ctx context.Context, quizID int) (Category, error) {
	meta, err := s.catalog.GetQuizMetadata(ctx, quizID)
	if contextutils.IsError(err, contextutils.ErrRecordNotFound) {
		return UnclassifiedCategory, nil
	}
	if err != nil {
		return Category{}, err
	}
	cat, _ := RunCategoryRules(s.rules, meta)
	return cat, nil
}

// releaseAll gives claims back even when ctx is already cancelled
func (s *WeakPointClassifier) releaseAll(ctx context.Context, records []models.MistakeRecord, token uuid.UUID) {
	releaseCtx := context.WithoutCancel(ctx)
	for _, rec := range records {
		if err := s.mistakes.ReleaseClaim(releaseCtx, rec.ID, token); err != nil {
			s.logger.Error(releaseCtx, "Failed to release mistake claim", err, map[string]interface{}{"mistake_id": rec.ID})
		}
	}
}

// WeakPointsForUser lists the user's weak points, most wrong answers first
func (s *WeakPointClassifier) WeakPointsForUser(ctx context.Context, userID int) (result0 []models.WeakPointSummary, err error) {
	ctx, span := observability.TraceClassifierFunction(ctx, "weak_points_for_user", observability.AttributeUserID(userID))
	defer observability.FinishSpan(span, &err)

	return s.weakPoints.ListByUser(ctx, userID)
}

// CountPending returns the size of the classification queue
func (s *WeakPointClassifier) CountPending(ctx context.Context) (int, error) {
	return s.mistakes.CountPending(ctx)
}
