package services

import (
	"context"
	"time"

	"quizinsight/internal/models"
	"quizinsight/internal/observability"
	"quizinsight/internal/serviceinterfaces"
	contextutils "quizinsight/internal/utils"
)

// AnswerIngestor takes a submitted answer through the recorder and into the attempt history
type AnswerIngestor struct {
	recorder *AttemptRecorder
	tx       serviceinterfaces.AttemptTransactor
	logger   *observability.Logger
	now      func() time.Time
}

// NewAnswerIngestor creates an AnswerIngestor. The recorder's own mistake repository is
// replaced by the transaction-bound one on every Submit.
func NewAnswerIngestor(recorder *AttemptRecorder, tx serviceinterfaces.AttemptTransactor, logger *observability.Logger) *AnswerIngestor {
	return &AnswerIngestor{
		recorder: recorder,
		tx:       tx,
		logger:   logger,
		now:      time.Now,
	}
}

// Submit records the answer and appends it to the history with the same timestamp, in one
// transaction. If either write fails neither is kept, so retrying the answer counts it once.
// Reference checks happen in the recorder, so unknown users and quizzes never reach the history.
func (i *AnswerIngestor) Submit(ctx context.Context, userID, quizID int, submittedAnswer string, isCorrect bool) (result0 *models.MistakeRecord, err error) {
	ctx, span := observability.TraceRecorderFunction(ctx, "submit_answer",
		observability.AttributeUserID(userID), observability.AttributeQuizID(quizID))
	defer observability.FinishSpan(span, &err)

	at := i.now().UTC()
	var rec *models.MistakeRecord
	err = i.tx.InTx(ctx, func(ctx context.Context, mistakes serviceinterfaces.MistakeRepository, history serviceinterfaces.AttemptHistory) error {
		var recErr error
		rec, recErr = i.recorder.withMistakes(mistakes).RecordAttemptAt(ctx, userID, quizID, submittedAnswer, isCorrect, at)
		if recErr != nil {
			return recErr
		}

		if appendErr := history.Append(ctx, &models.Attempt{
			UserID:      userID,
			QuizID:      quizID,
			WasCorrect:  isCorrect,
			AttemptedAt: at,
		}); appendErr != nil {
			return contextutils.WrapError(appendErr, "failed to append attempt to history")
		}
		return nil
	})
	if err != nil {
		if !contextutils.IsError(err, contextutils.ErrRecordNotFound) {
			i.logger.Warn(ctx, "Answer rolled back", map[string]interface{}{
				"user_id": userID,
				"quiz_id": quizID,
				"error":   err.Error(),
			})
		}
		return nil, err
	}
	return rec, nil
}
