package models

import "github.com/google/uuid"

// Choice is one labelled option of a placement question
type Choice struct {
	Label string `json:"label" yaml:"label" validate:"required"`
	Text  string `json:"text" yaml:"text"`
}

// PlacementQuestion is one multiple-choice question of a placement test
type PlacementQuestion struct {
	Part          int      `json:"part" yaml:"part" validate:"gte=1"`
	GlobalIndex   int      `json:"globalIndex" yaml:"globalIndex" validate:"gte=0"`
	Prompt        string   `json:"prompt" yaml:"prompt"`
	Choices       []Choice `json:"choices" yaml:"choices" validate:"required,min=1,dive"`
	CorrectAnswer string   `json:"correctAnswer" yaml:"correctAnswer" validate:"required"`
}

// PlacementQuizSetImport is a complete placement test as authored and imported
type PlacementQuizSetImport struct {
	Title     string              `json:"title" yaml:"title"`
	Questions []PlacementQuestion `json:"questions" yaml:"questions" validate:"required,min=1,dive"`
}

// PartScore is the score of one part of a placement test
type PartScore struct {
	Part    int     `json:"part"`
	Correct int     `json:"correct"`
	Total   int     `json:"total"`
	Ratio   float64 `json:"ratio"`
}

// QuestionResult is the outcome of one question in a scored placement test
type QuestionResult struct {
	GlobalIndex int     `json:"global_index"`
	Part        int     `json:"part"`
	Submitted   *string `json:"submitted,omitempty"`
	Correct     bool    `json:"correct"`
}

// ScoreReport is the full result of scoring a placement test
type ScoreReport struct {
	ID         uuid.UUID        `json:"id"`
	Title      string           `json:"title"`
	Parts      []PartScore      `json:"parts"`
	Correct    int              `json:"correct"`
	Total      int              `json:"total"`
	Unanswered int              `json:"unanswered"`
	Ratio      float64          `json:"ratio"`
	Tier       DifficultyTier   `json:"tier"`
	Questions  []QuestionResult `json:"questions"`
}
