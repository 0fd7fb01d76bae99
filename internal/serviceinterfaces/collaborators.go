// Package serviceinterfaces declares the collaborators the engine depends on but does not own.
package serviceinterfaces

import (
	"context"
	"time"

	"quizinsight/internal/models"
)

// QuizCatalog resolves quiz metadata. Unknown quizzes return a RECORD_NOT_FOUND error.
type QuizCatalog interface {
	GetQuizMetadata(ctx context.Context, quizID int) (*models.QuizMetadata, error)
}

// UserDirectory answers whether a user exists
type UserDirectory interface {
	UserExists(ctx context.Context, userID int) (bool, error)
}

// AttemptHistory is the append-only log of every answer a user has submitted
type AttemptHistory interface {
	Append(ctx context.Context, attempt *models.Attempt) error
	// ListByUser returns the user's attempts oldest first, ties broken by id.
	ListByUser(ctx context.Context, userID int) ([]models.Attempt, error)
	// UsersActiveSince returns the distinct users with an attempt at or after since.
	UsersActiveSince(ctx context.Context, since time.Time) ([]int, error)
}

// Ranking maps a user's points to a leaderboard position (1 is best)
type Ranking interface {
	RankFor(ctx context.Context, userID, points int) (int, error)
}
