// Package models defines data structures used throughout the insight engine.
package models

import (
	"strings"
	"time"
)

// ContentKind is the broad family of content a quiz exercises
type ContentKind string

const (
	// KindGrammar covers tense, conjugation and sentence-structure quizzes
	KindGrammar ContentKind = "grammar"
	// KindVocabulary covers word meaning and usage quizzes
	KindVocabulary ContentKind = "vocabulary"
	// KindUnclassified is used when the catalog has no usable metadata
	KindUnclassified ContentKind = "unclassified"
)

// ParseContentKind maps a stored kind to the enum; unknown values are unclassified
func ParseContentKind(s string) ContentKind {
	switch ContentKind(strings.ToLower(strings.TrimSpace(s))) {
	case KindGrammar:
		return KindGrammar
	case KindVocabulary:
		return KindVocabulary
	default:
		return KindUnclassified
	}
}

// QuizMetadata is the catalog view of a quiz the classifier needs
type QuizMetadata struct {
	QuizID     int            `json:"quiz_id"`
	Kind       ContentKind    `json:"kind"`
	Topic      string         `json:"topic,omitempty"`
	Tense      string         `json:"tense,omitempty"`
	Difficulty DifficultyTier `json:"difficulty"`
}

// Attempt is one row of the append-only attempt history
type Attempt struct {
	ID          int64     `json:"id"`
	UserID      int       `json:"user_id"`
	QuizID      int       `json:"quiz_id"`
	WasCorrect  bool      `json:"was_correct"`
	AttemptedAt time.Time `json:"attempted_at"`
}

// MistakeRecord tracks a user's wrong answers on one quiz. It is created on the first
// wrong answer, amended on every later attempt of the same quiz, and never deleted.
type MistakeRecord struct {
	ID              int       `json:"id"`
	UserID          int       `json:"user_id"`
	QuizID          int       `json:"quiz_id"`
	UserWeakPointID *int      `json:"user_weak_point_id,omitempty"`
	TimesAttempted  int       `json:"times_attempted"`
	TimesWrong      int       `json:"times_wrong"`
	LastAttemptedAt time.Time `json:"last_attempted_at"`
	IsAnalyzed      bool      `json:"is_analyzed"`
	UserAnswer      *string   `json:"user_answer,omitempty"`
	Version         int       `json:"version"`
	CreatedAt       time.Time `json:"created_at"`
}

// WeakPoint is a per-user category of repeated mistakes
type WeakPoint struct {
	ID          int         `json:"id"`
	UserID      int         `json:"user_id"`
	CategoryKey string      `json:"category_key"`
	Kind        ContentKind `json:"kind"`
	Label       string      `json:"label"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// WeakPointSummary is a weak point with the number of wrong answers linked to it
type WeakPointSummary struct {
	WeakPoint
	MistakeCount int `json:"mistake_count"`
	WrongCount   int `json:"wrong_count"`
}

// WorkerStatus is the persisted heartbeat and counters of a worker instance
type WorkerStatus struct {
	WorkerInstance  string     `json:"worker_instance"`
	IsRunning       bool       `json:"is_running"`
	IsPaused        bool       `json:"is_paused"`
	CurrentActivity *string    `json:"current_activity"`
	LastHeartbeat   *time.Time `json:"last_heartbeat"`
	LastRunStart    *time.Time `json:"last_run_start"`
	LastRunFinish   *time.Time `json:"last_run_finish"`
	LastRunError    *string    `json:"last_run_error"`
	TotalAnalyzed   int        `json:"total_analyzed"`
	TotalRecomputed int        `json:"total_recomputed"`
	TotalRuns       int        `json:"total_runs"`
	UpdatedAt       time.Time  `json:"updated_at"`
}
