package models

import "time"

// DashboardStats is the per-user summary shown on the progress dashboard
type DashboardStats struct {
	UserID              int            `json:"user_id"`
	TotalQuizzes        int            `json:"total_quizzes"`
	TotalQuestions      int            `json:"total_questions"`
	TotalCorrectAnswers int            `json:"total_correct_answers"`
	TotalWrongAnswers   int            `json:"total_wrong_answers"`
	AccuracyRate        float64        `json:"accuracy_rate"`
	CurrentStreak       int            `json:"current_streak"`
	TotalPoints         int            `json:"total_points"`
	CurrentRank         int            `json:"current_rank"`
	Tier                DifficultyTier `json:"tier"`
	// Inconsistent is set when stored aggregates contradicted each other and were clamped.
	Inconsistent bool `json:"inconsistent"`
	// AsOf is the time of the newest attempt the stats were computed from.
	AsOf *time.Time `json:"as_of,omitempty"`
}
