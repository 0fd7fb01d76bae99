package serviceinterfaces

import (
	"context"
	"time"

	"quizinsight/internal/models"

	"github.com/google/uuid"
)

// MistakeRepository persists mistake records with optimistic concurrency
type MistakeRepository interface {
	// Get returns the record for (userID, quizID), or RECORD_NOT_FOUND.
	Get(ctx context.Context, userID, quizID int) (*models.MistakeRecord, error)
	// Create inserts a first-wrong-answer record. A concurrent insert of the same pair yields CONFLICT.
	Create(ctx context.Context, record *models.MistakeRecord) (*models.MistakeRecord, error)
	// AmendIfVersion applies one attempt if the stored version still equals expectedVersion.
	// A stale version yields CONFLICT. The update clears any classifier claim.
	AmendIfVersion(ctx context.Context, id, expectedVersion int, wrong bool, answer string, at time.Time) (*models.MistakeRecord, error)
	// ClaimPending exclusively claims up to limit unanalyzed records, oldest last attempt first.
	ClaimPending(ctx context.Context, limit int, token uuid.UUID, now time.Time, lease time.Duration) ([]models.MistakeRecord, error)
	// MarkAnalyzed links and finalizes a claimed record. It reports false when the
	// claim was lost or the record was amended since it was claimed.
	MarkAnalyzed(ctx context.Context, id, version int, token uuid.UUID, weakPointID int) (bool, error)
	// ReleaseClaim drops a claim without analyzing the record.
	ReleaseClaim(ctx context.Context, id int, token uuid.UUID) error
	ListByUser(ctx context.Context, userID int) ([]models.MistakeRecord, error)
	CountPending(ctx context.Context) (int, error)
}

// AttemptTransactor runs a unit of work over the mistake records and the attempt history.
// When fn returns an error nothing it wrote through the given repositories is kept.
type AttemptTransactor interface {
	InTx(ctx context.Context, fn func(ctx context.Context, mistakes MistakeRepository, history AttemptHistory) error) error
}

// WeakPointRepository persists weak points
type WeakPointRepository interface {
	// FindOrCreate atomically returns the weak point for (userID, categoryKey), creating it if absent.
	FindOrCreate(ctx context.Context, userID int, categoryKey string, kind models.ContentKind, label string) (*models.WeakPoint, error)
	ListByUser(ctx context.Context, userID int) ([]models.WeakPointSummary, error)
}

// DashboardRepository persists dashboard statistics
type DashboardRepository interface {
	// Save writes the full stats row in one statement.
	Save(ctx context.Context, stats *models.DashboardStats) error
	Get(ctx context.Context, userID int) (*models.DashboardStats, error)
}

// PlacementResultRepository persists scored placement tests
type PlacementResultRepository interface {
	Save(ctx context.Context, userID int, report *models.ScoreReport) error
	// LatestTier returns the tier of the user's newest placement result, or TierUnplaced.
	LatestTier(ctx context.Context, userID int) (models.DifficultyTier, error)
}

// WorkerStatusRepository persists worker heartbeats and run counters
type WorkerStatusRepository interface {
	UpdateWorkerStatus(ctx context.Context, status *models.WorkerStatus) error
	GetWorkerStatus(ctx context.Context, instance string) (*models.WorkerStatus, error)
	UpdateHeartbeat(ctx context.Context, instance string) error
}
