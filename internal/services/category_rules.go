package services

import (
	"fmt"
	"strings"

	"quizinsight/internal/models"
)

// Category is the weak-point bucket a mistake falls into
type Category struct {
	Key   string
	Kind  models.ContentKind
	Label string
}

// UnclassifiedCategory collects mistakes on quizzes the catalog cannot describe
var UnclassifiedCategory = Category{
	Key:   string(models.KindUnclassified),
	Kind:  models.KindUnclassified,
	Label: "Unclassified",
}

// CategoryRule derives a category from quiz metadata, or reports that it does not apply
type CategoryRule interface {
	Name() string
	Categorize(meta *models.QuizMetadata) (Category, bool)
}

// DefaultCategoryRules returns the rules in priority order; for grammar quizzes tense beats topic.
func DefaultCategoryRules() []CategoryRule {
	return []CategoryRule{
		TenseRule{},
		TopicRule{},
		KindRule{},
	}
}

// RunCategoryRules returns the first matching category and the name of the rule
// that produced it. With no match it returns UnclassifiedCategory.
func RunCategoryRules(rules []CategoryRule, meta *models.QuizMetadata) (Category, string) {
	if meta == nil {
		return UnclassifiedCategory, ""
	}
	for _, r := range rules {
		if cat, ok := r.Categorize(meta); ok {
			return cat, r.Name()
		}
	}
	return UnclassifiedCategory, ""
}

// TenseRule buckets grammar quizzes by tense
type TenseRule struct{}

// Name implements CategoryRule
func (TenseRule) Name() string { return "tense" }

// Categorize implements CategoryRule
func (TenseRule) Categorize(meta *models.QuizMetadata) (Category, bool) {
	tense := normalizeKey(meta.Tense)
	if meta.Kind != models.KindGrammar || tense == "" {
		return Category{}, false
	}
	return Category{
		Key:   "grammar:tense:" + tense,
		Kind:  models.KindGrammar,
		Label: fmt.Sprintf("Tense: %s", strings.TrimSpace(meta.Tense)),
	}, true
}

// TopicRule buckets classified quizzes by topic
type TopicRule struct{}

// Name implements CategoryRule
func (TopicRule) Name() string { return "topic" }

// Categorize implements CategoryRule
func (TopicRule) Categorize(meta *models.QuizMetadata) (Category, bool) {
	topic := normalizeKey(meta.Topic)
	if topic == "" || meta.Kind == models.KindUnclassified {
		return Category{}, false
	}
	return Category{
		Key:   fmt.Sprintf("%s:topic:%s", meta.Kind, topic),
		Kind:  meta.Kind,
		Label: kindTitle(meta.Kind) + ": " + strings.TrimSpace(meta.Topic),
	}, true
}

// KindRule buckets by content kind when nothing more specific is known
type KindRule struct{}

// Name implements CategoryRule
func (KindRule) Name() string { return "kind" }

// Categorize implements CategoryRule
func (KindRule) Categorize(meta *models.QuizMetadata) (Category, bool) {
	switch meta.Kind {
	case models.KindGrammar, models.KindVocabulary:
		return Category{
			Key:   string(meta.Kind) + ":general",
			Kind:  meta.Kind,
			Label: kindTitle(meta.Kind) + ": general",
		}, true
	case models.KindUnclassified:
		return Category{}, false
	default:
		return Category{}, false
	}
}

func kindTitle(kind models.ContentKind) string {
	switch kind {
	case models.KindGrammar:
		return "Grammar"
	case models.KindVocabulary:
		return "Vocabulary"
	case models.KindUnclassified:
		return UnclassifiedCategory.Label
	default:
		return string(kind)
	}
}

// normalizeKey lowercases and dash-joins the words of s
func normalizeKey(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), "-")
}
