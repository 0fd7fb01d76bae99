package services

import (
	"math"
	"sort"

	"quizinsight/internal/config"
	"quizinsight/internal/models"
)

// TotalPoints scores attempts ordered oldest first. Each correct answer earns
// PointsPerCorrect, plus a streak bonus once it extends a run of correct answers.
func TotalPoints(attempts []models.Attempt, cfg config.PointsConfig) int {
	total, run := 0, 0
	for _, a := range attempts {
		if !a.WasCorrect {
			run = 0
			continue
		}
		run++
		total += cfg.PointsPerCorrect + streakBonus(run, cfg)
	}
	return total
}

// streakBonus is floor(PointsPerCorrect * StreakMultiplier * min(run-1, StreakBonusCap))
func streakBonus(run int, cfg config.PointsConfig) int {
	extra := run - 1
	if extra > cfg.StreakBonusCap {
		extra = cfg.StreakBonusCap
	}
	if extra <= 0 {
		return 0
	}
	// keeps products like 2.9999999999999996 from flooring one short
	return int(math.Floor(float64(cfg.PointsPerCorrect)*cfg.StreakMultiplier*float64(extra) + 1e-9))
}

// CurrentStreak counts correct answers from the newest attempt back to the first wrong one
func CurrentStreak(attempts []models.Attempt) int {
	streak := 0
	for i := len(attempts) - 1; i >= 0; i-- {
		if !attempts[i].WasCorrect {
			break
		}
		streak++
	}
	return streak
}

// sortAttempts returns a copy of attempts ordered oldest first, ties broken by id
func sortAttempts(attempts []models.Attempt) []models.Attempt {
	sorted := make([]models.Attempt, len(attempts))
	copy(sorted, attempts)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].AttemptedAt.Equal(sorted[j].AttemptedAt) {
			return sorted[i].AttemptedAt.Before(sorted[j].AttemptedAt)
		}
		return sorted[i].ID < sorted[j].ID
	})
	return sorted
}
