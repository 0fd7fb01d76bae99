package services

import (
	"context"
	"database/sql"

	"quizinsight/internal/observability"
	"quizinsight/internal/serviceinterfaces"
	contextutils "quizinsight/internal/utils"

	"go.opentelemetry.io/otel/attribute"
)

// SQLRanking ranks users by the total points stored in dashboard_stats
type SQLRanking struct {
	db *sql.DB
}

var _ serviceinterfaces.Ranking = (*SQLRanking)(nil)

// NewSQLRanking creates a ranking over db
func NewSQLRanking(db *sql.DB) *SQLRanking {
	return &SQLRanking{db: db}
}

// RankFor returns 1 plus the number of other users with strictly more points.
// Users with equal points share a rank.
func (r *SQLRanking) RankFor(ctx context.Context, userID, points int) (result0 int, err error) {
	ctx, span := observability.TraceDatabaseFunction(ctx, "rank_for",
		observability.AttributeUserID(userID), attribute.Int("points", points))
	defer observability.FinishSpan(span, &err)

	var ahead int
	err = r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM dashboard_stats WHERE total_points > $1 AND user_id <> $2
	`, points, userID).Scan(&ahead)
	if err != nil {
		return 0, contextutils.WrapErrorf(err, "failed to rank user %d", userID)
	}
	return ahead + 1, nil
}
