package models

import (
	"fmt"
	"strings"
)

// DifficultyTier is the recommended starting level derived from a placement test
type DifficultyTier string

const (
	// TierUnplaced is the zero value for users without a placement result
	TierUnplaced DifficultyTier = ""
	// TierBeginner is recommended below the intermediate threshold
	TierBeginner DifficultyTier = "beginner"
	// TierIntermediate is recommended between the thresholds, inclusive
	TierIntermediate DifficultyTier = "intermediate"
	// TierAdvanced is recommended above the advanced threshold
	TierAdvanced DifficultyTier = "advanced"
)

const unplacedName = "unplaced"

// String returns the stored name of the tier
func (t DifficultyTier) String() string {
	switch t {
	case TierBeginner, TierIntermediate, TierAdvanced:
		return string(t)
	case TierUnplaced:
		return unplacedName
	default:
		return string(t)
	}
}

// Valid reports whether t is one of the declared tiers
func (t DifficultyTier) Valid() bool {
	switch t {
	case TierUnplaced, TierBeginner, TierIntermediate, TierAdvanced:
		return true
	default:
		return false
	}
}

// ParseDifficultyTier parses a stored tier name. Empty and "unplaced" map to TierUnplaced.
func ParseDifficultyTier(s string) (DifficultyTier, error) {
	switch v := strings.ToLower(strings.TrimSpace(s)); v {
	case "", unplacedName:
		return TierUnplaced, nil
	case string(TierBeginner), string(TierIntermediate), string(TierAdvanced):
		return DifficultyTier(v), nil
	default:
		return TierUnplaced, fmt.Errorf("unknown difficulty tier %q", s)
	}
}

// MarshalText encodes the tier by name so the zero value reads "unplaced"
func (t DifficultyTier) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText decodes a tier name
func (t *DifficultyTier) UnmarshalText(text []byte) error {
	parsed, err := ParseDifficultyTier(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
