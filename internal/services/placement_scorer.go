package services

import (
	"encoding/json"
	"sort"

	"quizinsight/internal/config"
	"quizinsight/internal/models"
	contextutils "quizinsight/internal/utils"

	"github.com/google/uuid"
)

// placementReportNamespace seeds the name-based UUIDs of score reports
var placementReportNamespace = uuid.NewSHA1(uuid.NameSpaceOID, []byte("quizinsight.placement.report"))

// PlacementScorer scores placement tests. It performs no I/O and is safe for concurrent use.
type PlacementScorer struct {
	cfg config.PlacementConfig
}

// NewPlacementScorer creates a scorer, rejecting thresholds that are out of order
func NewPlacementScorer(cfg config.PlacementConfig) (*PlacementScorer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, contextutils.WrapError(err, "invalid placement thresholds")
	}
	return &PlacementScorer{cfg: cfg}, nil
}

// Score grades submitted answers (global index to choice label) against set.
// Unknown indexes in submitted are ignored and missing ones count as unanswered.
// Identical inputs produce identical reports, including the report ID.
func (s *PlacementScorer) Score(set *models.PlacementQuizSetImport, submitted map[int]string) (*models.ScoreReport, error) {
	if err := ValidatePlacementSet(set); err != nil {
		return nil, err
	}

	report := &models.ScoreReport{
		Title:     set.Title,
		Questions: make([]models.QuestionResult, 0, len(set.Questions)),
	}
	parts := make(map[int]*models.PartScore)

	for _, q := range set.Questions {
		result := models.QuestionResult{GlobalIndex: q.GlobalIndex, Part: q.Part}
		if answer, ok := submitted[q.GlobalIndex]; ok {
			a := answer
			result.Submitted = &a
			result.Correct = answer == q.CorrectAnswer
		} else {
			report.Unanswered++
		}

		part, ok := parts[q.Part]
		if !ok {
			part = &models.PartScore{Part: q.Part}
			parts[q.Part] = part
		}
		part.Total++
		report.Total++
		if result.Correct {
			part.Correct++
			report.Correct++
		}
		report.Questions = append(report.Questions, result)
	}

	report.Parts = make([]models.PartScore, 0, len(parts))
	for _, p := range parts {
		p.Ratio = float64(p.Correct) / float64(p.Total)
		report.Parts = append(report.Parts, *p)
	}
	sort.Slice(report.Parts, func(i, j int) bool { return report.Parts[i].Part < report.Parts[j].Part })
	sort.Slice(report.Questions, func(i, j int) bool {
		return report.Questions[i].GlobalIndex < report.Questions[j].GlobalIndex
	})

	report.Ratio = float64(report.Correct) / float64(report.Total)
	report.Tier = s.TierFor(report.Ratio)

	id, err := reportID(set, report.Questions)
	if err != nil {
		return nil, err
	}
	report.ID = id
	return report, nil
}

// TierFor maps an overall ratio onto a tier using the configured thresholds
func (s *PlacementScorer) TierFor(ratio float64) models.DifficultyTier {
	switch {
	case ratio < s.cfg.IntermediateFrom:
		return models.TierBeginner
	case ratio > s.cfg.AdvancedAbove:
		return models.TierAdvanced
	default:
		return models.TierIntermediate
	}
}

// reportID hashes the set together with the answers that were actually scored
func reportID(set *models.PlacementQuizSetImport, results []models.QuestionResult) (uuid.UUID, error) {
	payload, err := json.Marshal(struct {
		Set     *models.PlacementQuizSetImport `json:"set"`
		Answers []models.QuestionResult        `json:"answers"`
	}{set, results})
	if err != nil {
		return uuid.Nil, contextutils.WrapError(err, "failed to encode placement submission")
	}
	return uuid.NewSHA1(placementReportNamespace, payload), nil
}

// ValidatePlacementSet checks the structural rules of a placement quiz set:
// at least one question, each with a part of at least 1 and at least one choice,
// unique choice labels, a correct answer naming one of them, global indexes unique
// across the set and strictly increasing within each part.
func ValidatePlacementSet(set *models.PlacementQuizSetImport) error {
	if set == nil {
		return contextutils.MalformedImportf("placement set is missing")
	}
	if err := contextutils.ValidateStruct(set); err != nil {
		return contextutils.MalformedImportf("%v", err)
	}

	seenIndex := make(map[int]int, len(set.Questions))
	lastInPart := make(map[int]int)
	for pos, q := range set.Questions {
		if prev, dup := seenIndex[q.GlobalIndex]; dup {
			return contextutils.MalformedImportf("questions %d and %d share global index %d", prev, pos, q.GlobalIndex)
		}
		seenIndex[q.GlobalIndex] = pos

		if last, ok := lastInPart[q.Part]; ok && q.GlobalIndex <= last {
			return contextutils.MalformedImportf("global index %d does not increase after %d in part %d", q.GlobalIndex, last, q.Part)
		}
		lastInPart[q.Part] = q.GlobalIndex

		labels := make(map[string]struct{}, len(q.Choices))
		for _, c := range q.Choices {
			if _, dup := labels[c.Label]; dup {
				return contextutils.MalformedImportf("question %d repeats choice label %q", q.GlobalIndex, c.Label)
			}
			labels[c.Label] = struct{}{}
		}
		if _, ok := labels[q.CorrectAnswer]; !ok {
			return contextutils.MalformedImportf("question %d: correct answer %q is not a choice label", q.GlobalIndex, q.CorrectAnswer)
		}
	}
	return nil
}
