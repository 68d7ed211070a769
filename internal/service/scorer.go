package service

import (
	"math"

	"github.com/prepview/prepview-backend/internal/model"
)

// Score converts a pass count into a 0–100 score. Zero test cases yield a
// score of 0 — no tests means no credit, never NaN.
func Score(passed, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(100 * float64(passed) / float64(total)))
}

// CountPassed returns how many outcomes passed. A crashed test case
// (execution error) simply counts as not passed.
func CountPassed(outcomes []model.TestOutcome) int {
	passed := 0
	for _, o := range outcomes {
		if o.Passed {
			passed++
		}
	}
	return passed
}

// ScoreOutcomes scores one submission's outcome set.
func ScoreOutcomes(outcomes []model.TestOutcome) int {
	return Score(CountPassed(outcomes), len(outcomes))
}
