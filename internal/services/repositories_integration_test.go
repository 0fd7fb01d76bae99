//go:build integration

package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"quizinsight/internal/config"
	"quizinsight/internal/models"
	"quizinsight/internal/observability"
	"quizinsight/internal/serviceinterfaces"
	contextutils "quizinsight/internal/utils"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMistakeRepository_Integration(t *testing.T) {
	db := SharedTestDBSetup(t)
	logger := observability.NewNopLogger()
	repo := NewMistakeRepository(db, logger)
	ctx := context.Background()

	userID := insertTestUser(t, db, "alice")
	quizID := insertTestQuiz(t, db, "grammar", "", "past simple")
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	answer := "goed"

	_, err := repo.Get(ctx, userID, quizID)
	assert.True(t, contextutils.IsError(err, contextutils.ErrRecordNotFound))

	rec, err := repo.Create(ctx, &models.MistakeRecord{
		UserID: userID, QuizID: quizID, TimesAttempted: 1, TimesWrong: 1, LastAttemptedAt: at, UserAnswer: &answer,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, rec.Version)
	assert.False(t, rec.IsAnalyzed)

	_, err = repo.Create(ctx, &models.MistakeRecord{UserID: userID, QuizID: quizID, TimesAttempted: 1, TimesWrong: 1, LastAttemptedAt: at})
	assert.True(t, contextutils.IsError(err, contextutils.ErrConflict))

	t.Run("claim, mark analyzed, amend", func(t *testing.T) {
		token := uuid.New()
		claimed, err := repo.ClaimPending(ctx, 10, token, at, time.Minute)
		require.NoError(t, err)
		require.Len(t, claimed, 1)

		// a second claimant sees nothing while the lease holds
		other, err := repo.ClaimPending(ctx, 10, uuid.New(), at.Add(30*time.Second), time.Minute)
		require.NoError(t, err)
		assert.Empty(t, other)

		wpRepo := NewWeakPointRepository(db, logger)
		wp, err := wpRepo.FindOrCreate(ctx, userID, "grammar:tense:past-simple", models.KindGrammar, "Tense: past simple")
		require.NoError(t, err)

		ok, err := repo.MarkAnalyzed(ctx, rec.ID, rec.Version, uuid.New(), wp.ID)
		require.NoError(t, err)
		assert.False(t, ok, "foreign token must not finalize")

		ok, err = repo.MarkAnalyzed(ctx, rec.ID, rec.Version, token, wp.ID)
		require.NoError(t, err)
		assert.True(t, ok)

		pending, err := repo.CountPending(ctx)
		require.NoError(t, err)
		assert.Zero(t, pending)

		amended, err := repo.AmendIfVersion(ctx, rec.ID, rec.Version, false, "went", at.Add(time.Hour))
		require.NoError(t, err)
		assert.Equal(t, 2, amended.Version)
		assert.Equal(t, 2, amended.TimesAttempted)
		assert.Equal(t, 1, amended.TimesWrong)
		assert.False(t, amended.IsAnalyzed)
		require.NotNil(t, amended.UserWeakPointID)
		assert.Equal(t, wp.ID, *amended.UserWeakPointID)

		_, err = repo.AmendIfVersion(ctx, rec.ID, rec.Version, true, "stale", at)
		assert.True(t, contextutils.IsError(err, contextutils.ErrConflict))
	})

	t.Run("expired lease can be reclaimed", func(t *testing.T) {
		first, err := repo.ClaimPending(ctx, 10, uuid.New(), at, time.Minute)
		require.NoError(t, err)
		require.Len(t, first, 1)

		again, err := repo.ClaimPending(ctx, 10, uuid.New(), at.Add(2*time.Minute), time.Minute)
		require.NoError(t, err)
		assert.Len(t, again, 1)
	})
}

func TestWeakPointRepository_FindOrCreateIsAtomic(t *testing.T) {
	db := SharedTestDBSetup(t)
	repo := NewWeakPointRepository(db, observability.NewNopLogger())
	userID := insertTestUser(t, db, "bob")

	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		ids = map[int]bool{}
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			wp, err := repo.FindOrCreate(context.Background(), userID, "vocabulary:topic:travel", models.KindVocabulary, "Vocabulary: travel")
			if assert.NoError(t, err) {
				mu.Lock()
				ids[wp.ID] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Len(t, ids, 1)

	summaries, err := repo.ListByUser(context.Background(), userID)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Zero(t, summaries[0].MistakeCount)
}

func TestEngine_EndToEndIntegration(t *testing.T) {
	db := SharedTestDBSetup(t)
	logger := observability.NewNopLogger()
	metrics := observability.NewNoopEngineMetrics()
	cfg := config.DefaultEngineConfig()
	ctx := context.Background()

	users := NewSQLUserDirectory(db)
	catalog := NewSQLQuizCatalog(db, logger)
	mistakes := NewMistakeRepository(db, logger)
	history := NewAttemptHistoryStore(db, logger)
	placements := NewPlacementResultRepository(db, logger)

	recorder := NewAttemptRecorder(users, catalog, mistakes, cfg, metrics, logger)
	ingestor := NewAnswerIngestor(recorder, NewSQLAttemptTransactor(db, logger), logger)
	classifier := NewWeakPointClassifier(mistakes, NewWeakPointRepository(db, logger), catalog, cfg.Classifier, metrics, logger)
	aggregator := NewDashboardAggregator(users, history, mistakes, NewSQLRanking(db), placements,
		NewDashboardRepository(db, logger), cfg.Points, metrics, logger)

	alice := insertTestUser(t, db, "alice")
	bob := insertTestUser(t, db, "bob")
	tenseQuiz := insertTestQuiz(t, db, "grammar", "", "past simple")
	travelQuiz := insertTestQuiz(t, db, "vocabulary", "travel", "")

	for _, step := range []struct {
		user, quiz int
		correct    bool
	}{
		{alice, tenseQuiz, false},
		{alice, tenseQuiz, true},
		{alice, travelQuiz, true},
		{alice, travelQuiz, false},
		{bob, travelQuiz, true},
	} {
		_, err := ingestor.Submit(ctx, step.user, step.quiz, "x", step.correct)
		require.NoError(t, err)
	}

	n, err := classifier.ClassifyPending(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	n, err = classifier.ClassifyPending(ctx, 10)
	require.NoError(t, err)
	assert.Zero(t, n)

	points, err := classifier.WeakPointsForUser(ctx, alice)
	require.NoError(t, err)
	assert.Len(t, points, 2)

	scorer, err := NewPlacementScorer(cfg.Placement)
	require.NoError(t, err)
	placement := NewPlacementService(scorer, users, placements, metrics, logger)
	set := &models.PlacementQuizSetImport{Questions: []models.PlacementQuestion{abQuestion(1, 0, "A")}}
	_, err = placement.ScoreForUser(ctx, alice, set, map[int]string{0: "B"})
	require.NoError(t, err)

	bobStats, err := aggregator.Recompute(ctx, bob)
	require.NoError(t, err)
	assert.Equal(t, 10, bobStats.TotalPoints)
	assert.Equal(t, 1, bobStats.CurrentRank)

	stats, err := aggregator.Recompute(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, 4, stats.TotalQuestions)
	assert.Equal(t, 2, stats.TotalQuizzes)
	assert.Equal(t, 2, stats.TotalWrongAnswers)
	assert.Equal(t, 2, stats.TotalCorrectAnswers)
	assert.InDelta(t, 50.0, stats.AccuracyRate, 1e-9)
	assert.Zero(t, stats.CurrentStreak)
	assert.Equal(t, 21, stats.TotalPoints)
	assert.Equal(t, 1, stats.CurrentRank)
	assert.Equal(t, models.TierBeginner, stats.Tier)

	again, err := aggregator.Recompute(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, stats.TotalPoints, again.TotalPoints)
	assert.True(t, stats.AsOf.Equal(*again.AsOf))

	stored, err := aggregator.Get(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, stats.TotalPoints, stored.TotalPoints)
	assert.Equal(t, models.TierBeginner, stored.Tier)
}

func TestWorkerService_StatusIntegration(t *testing.T) {
	db := SharedTestDBSetup(t)
	svc := NewWorkerServiceWithLogger(db, observability.NewNopLogger())
	ctx := context.Background()

	_, err := svc.GetWorkerStatus(ctx, "w1")
	assert.True(t, contextutils.IsError(err, contextutils.ErrRecordNotFound))

	healthy, err := svc.IsWorkerHealthy(ctx, "w1")
	require.NoError(t, err)
	assert.False(t, healthy)

	activity := "classifying"
	require.NoError(t, svc.UpdateWorkerStatus(ctx, &models.WorkerStatus{
		WorkerInstance: "w1", IsRunning: true, CurrentActivity: &activity, TotalAnalyzed: 5, TotalRuns: 1,
	}))
	require.NoError(t, svc.UpdateHeartbeat(ctx, "w1"))

	status, err := svc.GetWorkerStatus(ctx, "w1")
	require.NoError(t, err)
	assert.True(t, status.IsRunning)
	assert.Equal(t, 5, status.TotalAnalyzed)
	require.NotNil(t, status.CurrentActivity)
	assert.Equal(t, activity, *status.CurrentActivity)

	healthy, err = svc.IsWorkerHealthy(ctx, "w1")
	require.NoError(t, err)
	assert.True(t, healthy)

	all, err := svc.GetAllWorkerStatuses(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestSQLAttemptTransactor_RollsBackBothWrites(t *testing.T) {
	db := SharedTestDBSetup(t)
	logger := observability.NewNopLogger()
	ctx := context.Background()
	tx := NewSQLAttemptTransactor(db, logger)

	userID := insertTestUser(t, db, "alice")
	quizID := insertTestQuiz(t, db, "grammar", "", "past simple")
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	err := tx.InTx(ctx, func(ctx context.Context, mistakes serviceinterfaces.MistakeRepository, history serviceinterfaces.AttemptHistory) error {
		_, err := mistakes.Create(ctx, &models.MistakeRecord{
			UserID: userID, QuizID: quizID, TimesAttempted: 1, TimesWrong: 1, LastAttemptedAt: at,
		})
		require.NoError(t, err)
		require.NoError(t, history.Append(ctx, &models.Attempt{UserID: userID, QuizID: quizID, AttemptedAt: at}))
		return contextutils.ErrServiceUnavailable
	})
	assert.True(t, contextutils.IsError(err, contextutils.ErrServiceUnavailable))

	_, err = NewMistakeRepository(db, logger).Get(ctx, userID, quizID)
	assert.True(t, contextutils.IsError(err, contextutils.ErrRecordNotFound))
	attempts, err := NewAttemptHistoryStore(db, logger).ListByUser(ctx, userID)
	require.NoError(t, err)
	assert.Empty(t, attempts)

	err = tx.InTx(ctx, func(ctx context.Context, mistakes serviceinterfaces.MistakeRepository, history serviceinterfaces.AttemptHistory) error {
		return history.Append(ctx, &models.Attempt{UserID: userID, QuizID: quizID, WasCorrect: true, AttemptedAt: at})
	})
	require.NoError(t, err)
	attempts, err = NewAttemptHistoryStore(db, logger).ListByUser(ctx, userID)
	require.NoError(t, err)
	assert.Len(t, attempts, 1)
}
