package model

import "time"

// SubmissionState enumerates the lifecycle of a coding task's submission.
// It only advances not_submitted → running → submitted; a resubmission
// resets a submitted task back to running before overwriting its outcomes.
type SubmissionState string

const (
	SubmissionNotSubmitted SubmissionState = "not_submitted"
	SubmissionRunning      SubmissionState = "running"
	SubmissionSubmitted    SubmissionState = "submitted"
)

// TestCase is one input/expected-output pair for a coding task.
type TestCase struct {
	Input          string `json:"input"`
	ExpectedOutput string `json:"expected_output"`
}

// TestOutcome is the result of running submitted code against one test case.
type TestOutcome struct {
	Index  int    `json:"index"`
	Passed bool   `json:"passed"`
	Actual string `json:"actual"`
	Error  string `json:"error,omitempty"`
}

// CodingTask is one live-coding exercise inside a session. Tasks are
// traversed in a fixed order; outcomes are replaced wholesale on resubmit.
type CodingTask struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Language    string          `json:"language"`
	StarterCode string          `json:"starter_code"`
	TestCases   []TestCase      `json:"test_cases"`
	Code        string          `json:"code,omitempty"`
	State       SubmissionState `json:"state"`
	Outcomes    []TestOutcome   `json:"outcomes,omitempty"`
	Score       int             `json:"score"`
	SubmittedAt *time.Time      `json:"submitted_at,omitempty"`
}
