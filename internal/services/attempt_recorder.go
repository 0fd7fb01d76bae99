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

// Outcomes reported to the attempts metric
const (
	attemptOutcomeCreated = "created"
	attemptOutcomeAmended = "amended"
	attemptOutcomeSkipped = "skipped"
)

// AttemptRecorderInterface defines how a single answer updates the user's mistake records
type AttemptRecorderInterface interface {
	RecordAttempt(ctx context.Context, userID, quizID int, submittedAnswer string, isCorrect bool) (*models.MistakeRecord, error)
	// RecordAttemptAt is RecordAttempt with the attempt time supplied by the caller.
	RecordAttemptAt(ctx context.Context, userID, quizID int, submittedAnswer string, isCorrect bool, at time.Time) (*models.MistakeRecord, error)
}

// AttemptRecorder creates and amends mistake records with optimistic concurrency
type AttemptRecorder struct {
	users    serviceinterfaces.UserDirectory
	catalog  serviceinterfaces.QuizCatalog
	mistakes serviceinterfaces.MistakeRepository
	cfg      config.EngineConfig
	metrics  *observability.EngineMetrics
	logger   *observability.Logger
	now      func() time.Time
}

var _ AttemptRecorderInterface = (*AttemptRecorder)(nil)

// NewAttemptRecorder creates an AttemptRecorder
func NewAttemptRecorder(
	users serviceinterfaces.UserDirectory,
	catalog serviceinterfaces.QuizCatalog,
	mistakes serviceinterfaces.MistakeRepository,
	cfg config.EngineConfig,
	metrics *observability.EngineMetrics,
	logger *observability.Logger,
) *AttemptRecorder {
	return &AttemptRecorder{
		users:    users,
		catalog:  catalog,
		mistakes: mistakes,
		cfg:      cfg,
		metrics:  metrics,
		logger:   logger,
		now:      time.Now,
	}
}

// RecordAttempt records an answer given now
func (s *AttemptRecorder) RecordAttempt(ctx context.Context, userID, quizID int, submittedAnswer string, isCorrect bool) (*models.MistakeRecord, error) {
	return s.RecordAttemptAt(ctx, userID, quizID, submittedAnswer, isCorrect, s.now())
}

// RecordAttemptAt applies one answer to the (user, quiz) mistake record.
// A correct answer with no existing record is a no-op and returns (nil, nil).
// Lost races are retried up to MaxConflictRetries times before CONFLICT is returned.
func (s *AttemptRecorder) RecordAttemptAt(ctx context.Context, userID, quizID int, submittedAnswer string, isCorrect bool, at time.Time) (result0 *models.MistakeRecord, err error) {
	ctx, span := observability.TraceRecorderFunction(ctx, "record_attempt",
		observability.AttributeUserID(userID),
		observability.AttributeQuizID(quizID),
		attribute.Bool("attempt.is_correct", isCorrect),
	)
	defer observability.FinishSpan(span, &err)

	if err := s.checkReferences(ctx, userID, quizID); err != nil {
		return nil, err
	}

	tries := s.cfg.MaxConflictRetries + 1
	var lastErr error
	for try := 1; try <= tries; try++ {
		rec, outcome, err := s.applyOnce(ctx, userID, quizID, submittedAnswer, isCorrect, at)
		if err == nil {
			span.SetAttributes(attribute.String("attempt.outcome", outcome), attribute.Int("attempt.tries", try))
			s.metrics.AttemptRecorded(ctx, outcome)
			s.logger.Debug(ctx, "Attempt recorded", map[string]interface{}{
				"user_id": userID,
				"quiz_id": quizID,
				"outcome": outcome,
				"tries":   try,
			})
			return rec, nil
		}
		if !contextutils.IsError(err, contextutils.ErrConflict) {
			return nil, err
		}

		lastErr = err
		s.metrics.ConflictHit(ctx)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, contextutils.WrapErrorf(contextutils.ErrTimeout, "recording attempt cancelled: %v", ctxErr)
		}
	}

	s.logger.Warn(ctx, "Giving up on attempt after repeated conflicts", map[string]interface{}{
		"user_id": userID,
		"quiz_id": quizID,
		"tries":   tries,
	})
	return nil, contextutils.WrapErrorf(lastErr, "failed to record attempt for user %d quiz %d after %d tries", userID, quizID, tries)
}

// withMistakes returns a copy of the recorder writing through mistakes
func (s *AttemptRecorder) withMistakes(mistakes serviceinterfaces.MistakeRepository) *AttemptRecorder {
	cp := *s
	cp.mistakes = mistakes
	return &cp
}

func (s *AttemptRecorder) checkReferences(ctx context.Context, userID, quizID int) error {
	exists, err := s.users.UserExists(ctx, userID)
	if err != nil {
		return contextutils.WrapErrorf(err, "failed to look up user %d", userID)
	}
	if !exists {
		return contextutils.NotFoundf("user %d", userID)
	}

	if _, err := s.catalog.GetQuizMetadata(ctx, quizID); err != nil {
		return contextutils.WrapErrorf(err, "failed to look up quiz %d", quizID)
	}
	return nil
}

func (s *AttemptRecorder) applyOnce(ctx context.Context, userID, quizID int, answer string, isCorrect bool, at time.Time) (*models.MistakeRecord, string, error) {
	existing, err := s.mistakes.Get(ctx, userID, quizID)
	switch {
	case err == nil:
		rec, err := s.mistakes.AmendIfVersion(ctx, existing.ID, existing.Version, !isCorrect, answer, at)
		if err != nil {
			return nil, "", err
		}
		return rec, attemptOutcomeAmended, nil

	case contextutils.IsError(err, contextutils.ErrRecordNotFound):
		if isCorrect {
			return nil, attemptOutcomeSkipped, nil
		}
		rec, err := s.mistakes.Create(ctx, &models.MistakeRecord{
			UserID:          userID,
			QuizID:          quizID,
			TimesAttempted:  1,
			TimesWrong:      1,
			LastAttemptedAt: at,
			UserAnswer:      &answer,
		})
		if err != nil {
			return nil, "", err
		}
		return rec, attemptOutcomeCreated, nil

	default:
		return nil, "", err
	}
}
