package services

import (
	"testing"

	"quizinsight/internal/config"
	"quizinsight/internal/models"
	contextutils "quizinsight/internal/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func abQuestion(part, index int, correct string) models.PlacementQuestion {
	return models.PlacementQuestion{
		Part:        part,
		GlobalIndex: index,
		Prompt:      "pick one",
		Choices: []models.Choice{
			{Label: "A", Text: "first"},
			{Label: "B", Text: "second"},
			{Label: "C", Text: "third"},
		},
		CorrectAnswer: correct,
	}
}

func newTestScorer(t *testing.T) *PlacementScorer {
	t.Helper()
	s, err := NewPlacementScorer(config.DefaultEngineConfig().Placement)
	require.NoError(t, err)
	return s
}

func TestPlacementScorer_Score(t *testing.T) {
	s := newTestScorer(t)
	set := &models.PlacementQuizSetImport{
		Title:     "two questions",
		Questions: []models.PlacementQuestion{abQuestion(1, 0, "A"), abQuestion(1, 1, "B")},
	}

	report, err := s.Score(set, map[int]string{0: "A", 1: "C"})
	require.NoError(t, err)

	assert.Equal(t, 1, report.Correct)
	assert.Equal(t, 2, report.Total)
	assert.InDelta(t, 0.5, report.Ratio, 1e-9)
	assert.Equal(t, models.TierIntermediate, report.Tier)
	assert.Zero(t, report.Unanswered)
	require.Len(t, report.Parts, 1)
	assert.Equal(t, models.PartScore{Part: 1, Correct: 1, Total: 2, Ratio: 0.5}, report.Parts[0])
}

func TestPlacementScorer_PartsUnansweredAndUnknownKeys(t *testing.T) {
	s := newTestScorer(t)
	set := &models.PlacementQuizSetImport{
		Questions: []models.PlacementQuestion{
			abQuestion(2, 5, "A"),
			abQuestion(1, 0, "B"),
			abQuestion(2, 7, "C"),
			abQuestion(1, 3, "A"),
		},
	}

	report, err := s.Score(set, map[int]string{0: "B", 3: "a", 5: "A", 42: "A"})
	require.NoError(t, err)

	assert.Equal(t, 2, report.Correct)
	assert.Equal(t, 4, report.Total)
	assert.Equal(t, 1, report.Unanswered)
	require.Len(t, report.Parts, 2)
	assert.Equal(t, 1, report.Parts[0].Part)
	assert.Equal(t, 2, report.Parts[1].Part)
	assert.Equal(t, 1, report.Parts[0].Correct)
	assert.Equal(t, 1, report.Parts[1].Correct)

	var indexes []int
	for _, q := range report.Questions {
		indexes = append(indexes, q.GlobalIndex)
	}
	assert.Equal(t, []int{0, 3, 5, 7}, indexes)
	assert.False(t, report.Questions[1].Correct, "label matching is case-sensitive")
	assert.Nil(t, report.Questions[3].Submitted)
}

func TestPlacementScorer_Tiers(t *testing.T) {
	s := newTestScorer(t)
	tests := []struct {
		ratio float64
		want  models.DifficultyTier
	}{
		{0, models.TierBeginner},
		{0.39, models.TierBeginner},
		{0.40, models.TierIntermediate},
		{0.75, models.TierIntermediate},
		{0.76, models.TierAdvanced},
		{1, models.TierAdvanced},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, s.TierFor(tt.ratio), "ratio %v", tt.ratio)
	}
}

func TestPlacementScorer_Deterministic(t *testing.T) {
	s := newTestScorer(t)
	set := &models.PlacementQuizSetImport{
		Title:     "det",
		Questions: []models.PlacementQuestion{abQuestion(1, 0, "A"), abQuestion(1, 1, "B")},
	}

	first, err := s.Score(set, map[int]string{0: "A", 1: "B"})
	require.NoError(t, err)
	second, err := s.Score(set, map[int]string{1: "B", 0: "A", 99: "ignored"})
	require.NoError(t, err)
	assert.Equal(t, first, second)

	other, err := s.Score(set, map[int]string{0: "A", 1: "C"})
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, other.ID)
}

func TestPlacementScorer_RejectsMalformedSets(t *testing.T) {
	s := newTestScorer(t)
	tests := []struct {
		name string
		set  *models.PlacementQuizSetImport
	}{
		{name: "nil set"},
		{name: "no questions", set: &models.PlacementQuizSetImport{}},
		{name: "duplicate global index", set: &models.PlacementQuizSetImport{
			Questions: []models.PlacementQuestion{abQuestion(1, 0, "A"), abQuestion(2, 0, "A")},
		}},
		{name: "index not increasing within part", set: &models.PlacementQuizSetImport{
			Questions: []models.PlacementQuestion{abQuestion(1, 4, "A"), abQuestion(2, 1, "A"), abQuestion(1, 2, "A")},
		}},
		{name: "correct answer not a choice", set: &models.PlacementQuizSetImport{
			Questions: []models.PlacementQuestion{abQuestion(1, 0, "D")},
		}},
		{name: "part zero", set: &models.PlacementQuizSetImport{
			Questions: []models.PlacementQuestion{abQuestion(0, 0, "A")},
		}},
		{name: "no choices", set: &models.PlacementQuizSetImport{
			Questions: []models.PlacementQuestion{{Part: 1, GlobalIndex: 0, CorrectAnswer: "A"}},
		}},
		{name: "duplicate labels", set: &models.PlacementQuizSetImport{
			Questions: []models.PlacementQuestion{{
				Part: 1, GlobalIndex: 0, CorrectAnswer: "A",
				Choices: []models.Choice{{Label: "A"}, {Label: "A"}},
			}},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report, err := s.Score(tt.set, map[int]string{0: "A"})
			assert.Nil(t, report)
			assert.True(t, contextutils.IsError(err, contextutils.ErrMalformedImport), "got %v", err)
		})
	}
}

func TestNewPlacementScorer_RejectsInvertedThresholds(t *testing.T) {
	_, err := NewPlacementScorer(config.PlacementConfig{IntermediateFrom: 0.8, AdvancedAbove: 0.5})
	assert.Error(t, err)
}
