package service

import (
	"testing"

	"github.com/prepview/prepview-backend/internal/model"
)

func TestScore(t *testing.T) {
	cases := []struct {
		name   string
		passed int
		total  int
		want   int
	}{
		{"no test cases", 0, 0, 0},
		{"all passed", 4, 4, 100},
		{"none passed", 0, 5, 0},
		{"three quarters", 3, 4, 75},
		{"one third rounds down", 1, 3, 33},
		{"two thirds rounds up", 2, 3, 67},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Score(tc.passed, tc.total); got != tc.want {
				t.Errorf("Score(%d, %d) = %d, want %d", tc.passed, tc.total, got, tc.want)
			}
		})
	}
}

func TestScoreOutcomes(t *testing.T) {
	outcomes := []model.TestOutcome{
		{Index: 0, Passed: true, Actual: "42"},
		{Index: 1, Passed: false, Actual: "41"},
		{Index: 2, Passed: false, Error: "execution timeout"},
		{Index: 3, Passed: true, Actual: "ok"},
	}

	if got := CountPassed(outcomes); got != 2 {
		t.Errorf("CountPassed = %d, want 2", got)
	}
	if got := ScoreOutcomes(outcomes); got != 50 {
		t.Errorf("ScoreOutcomes = %d, want 50", got)
	}
	if got := ScoreOutcomes(nil); got != 0 {
		t.Errorf("ScoreOutcomes(nil) = %d, want 0", got)
	}
}
