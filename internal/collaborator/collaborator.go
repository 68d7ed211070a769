// Package collaborator defines the narrow contracts this service depends on
// for document parsing, question/task generation, speech transcription,
// answer evaluation, and sandboxed code execution, together with HTTP
// clients for each. The engines themselves live outside this repository.
package collaborator

import (
	"context"
	"errors"
	"io"

	"github.com/prepview/prepview-backend/internal/model"
)

// Sentinel errors surfaced by collaborator clients. Callers translate these
// into operation-level failures; they never corrupt session state.
var (
	ErrUnreachable       = errors.New("collaborator unreachable")
	ErrExecutionTimeout  = errors.New("execution timeout")
	ErrRuntime           = errors.New("runtime error")
	ErrUnsupportedFormat = errors.New("unsupported document format")
	ErrParse             = errors.New("document parse error")
)

// Summarizer condenses an uploaded document (job description or resume)
// into a short summary string.
type Summarizer interface {
	Summarize(ctx context.Context, r io.Reader, filename, kind string) (string, error)
}

// QuestionProvider generates the ordered spoken-interview question list,
// seeded with the two document summaries.
type QuestionProvider interface {
	GenerateQuestions(ctx context.Context, jdSummary, resumeSummary string) ([]model.Question, error)
}

// TaskProvider generates the ordered coding-task list for a session.
type TaskProvider interface {
	GenerateTasks(ctx context.Context, jdSummary string) ([]*model.CodingTask, error)
}

// Transcriber converts an audio recording into a transcript.
type Transcriber interface {
	Transcribe(ctx context.Context, audio io.Reader, filename string) (string, error)
}

// Evaluation is the opaque scoring payload returned by the answer evaluator.
type Evaluation struct {
	Score      int      `json:"score"`
	Feedback   string   `json:"feedback"`
	Strengths  []string `json:"strengths"`
	Weaknesses []string `json:"weaknesses"`
}

// AnswerEvaluator scores one transcript against its question.
type AnswerEvaluator interface {
	Evaluate(ctx context.Context, question model.Question, transcript string) (*Evaluation, error)
}

// RunOutput is the result of a non-scored trial execution.
type RunOutput struct {
	Stdout string `json:"stdout"`
	Stderr string `json:"stderr"`
}

// Sandbox executes untrusted candidate code in isolation.
//
// RunTests produces one TestOutcome per test case; a crashed or timed-out
// individual test case is reported as a failed outcome, not as an error, so
// partial credit stays possible. Errors are reserved for the sandbox itself
// being unreachable.
type Sandbox interface {
	Run(ctx context.Context, code, language, stdin string) (*RunOutput, error)
	RunTests(ctx context.Context, code, language string, cases []model.TestCase) ([]model.TestOutcome, error)
}
