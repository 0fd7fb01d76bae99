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

// SQLQuizCatalog reads quiz metadata from the shared quizzes table
type SQLQuizCatalog struct {
	db     *sql.DB
	logger *observability.Logger
}

var _ serviceinterfaces.QuizCatalog = (*SQLQuizCatalog)(nil)

// NewSQLQuizCatalog creates a catalog over db
func NewSQLQuizCatalog(db *sql.DB, logger *observability.Logger) *SQLQuizCatalog {
	return &SQLQuizCatalog{db: db, logger: logger}
}

// GetQuizMetadata returns the kind, topic, tense and difficulty of a quiz
func (c *SQLQuizCatalog) GetQuizMetadata(ctx context.Context, quizID int) (result0 *models.QuizMetadata, err error) {
	ctx, span := observability.TraceDatabaseFunction(ctx, "get_quiz_metadata", observability.AttributeQuizID(quizID))
	defer observability.FinishSpan(span, &err)

	var (
		kind                     string
		topic, tense, difficulty sql.NullString
	)
	err = c.db.QueryRowContext(ctx, `
		SELECT kind, topic, tense, difficulty FROM quizzes WHERE id = $1
	`, quizID).Scan(&kind, &topic, &tense, &difficulty)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, contextutils.NotFoundf("quiz %d", quizID)
	}
	if err != nil {
		return nil, contextutils.WrapErrorf(err, "failed to get metadata for quiz %d", quizID)
	}

	meta := &models.QuizMetadata{
		QuizID: quizID,
		Kind:   models.ParseContentKind(kind),
		Topic:  topic.String,
		Tense:  tense.String,
	}
	if tier, parseErr := models.ParseDifficultyTier(difficulty.String); parseErr == nil {
		meta.Difficulty = tier
	} else {
		c.logger.Warn(ctx, "Quiz has unknown difficulty", map[string]interface{}{
			"quiz_id":    quizID,
			"difficulty": difficulty.String,
		})
	}
	return meta, nil
}

// SQLUserDirectory answers user existence from the shared users table
type SQLUserDirectory struct {
	db *sql.DB
}

var _ serviceinterfaces.UserDirectory = (*SQLUserDirectory)(nil)

// NewSQLUserDirectory creates a directory over db
func NewSQLUserDirectory(db *sql.DB) *SQLUserDirectory {
	return &SQLUserDirectory{db: db}
}

// UserExists reports whether a user with the id exists
func (d *SQLUserDirectory) UserExists(ctx context.Context, userID int) (result0 bool, err error) {
	ctx, span := observability.TraceDatabaseFunction(ctx, "user_exists", observability.AttributeUserID(userID))
	defer observability.FinishSpan(span, &err)

	var exists bool
	if err := d.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)`, userID).Scan(&exists); err != nil {
		return false, contextutils.WrapErrorf(err, "failed to check user %d", userID)
	}
	return exists, nil
}
