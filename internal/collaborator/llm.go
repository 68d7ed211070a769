package collaborator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/prepview/prepview-backend/internal/model"
	"github.com/rs/zerolog"
)

// LLMClient talks to the LLM inference service that generates interview
// questions, coding tasks, and answer evaluations. It implements
// QuestionProvider, TaskProvider, and AnswerEvaluator.
type LLMClient struct {
	baseURL string
	http    *http.Client
	log     zerolog.Logger
}

// NewLLMClient creates an LLMClient for the given base URL. Generation can
// be slow, so the client carries a generous timeout.
func NewLLMClient(baseURL string, log zerolog.Logger) *LLMClient {
	return &LLMClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 60 * time.Second},
		log:     log.With().Str("component", "llm_client").Logger(),
	}
}

// GenerateQuestions asks the LLM service for the ordered interview
// question list, seeded with both document summaries.
func (c *LLMClient) GenerateQuestions(ctx context.Context, jdSummary, resumeSummary string) ([]model.Question, error) {
	payload := map[string]string{
		"jd_summary":     jdSummary,
		"resume_summary": resumeSummary,
	}

	var out struct {
		Questions []model.Question `json:"questions"`
	}
	if err := c.post(ctx, "/api/v1/questions", payload, &out); err != nil {
		return nil, err
	}
	return out.Questions, nil
}

// GenerateTasks asks the LLM service for the ordered coding-task list.
func (c *LLMClient) GenerateTasks(ctx context.Context, jdSummary string) ([]*model.CodingTask, error) {
	payload := map[string]string{"jd_summary": jdSummary}

	var out struct {
		Tasks []*model.CodingTask `json:"tasks"`
	}
	if err := c.post(ctx, "/api/v1/coding-tasks", payload, &out); err != nil {
		return nil, err
	}
	for _, t := range out.Tasks {
		t.State = model.SubmissionNotSubmitted
	}
	return out.Tasks, nil
}

// Evaluate scores one transcript against its question.
func (c *LLMClient) Evaluate(ctx context.Context, question model.Question, transcript string) (*Evaluation, error) {
	payload := map[string]string{
		"question":      question.Text,
		"question_type": question.Type,
		"transcript":    transcript,
	}

	var out Evaluation
	if err := c.post(ctx, "/api/v1/evaluate", payload, &out); err != nil {
		return nil, err
	}
	if out.Score < 0 {
		out.Score = 0
	}
	if out.Score > 100 {
		out.Score = 100
	}
	return &out, nil
}

func (c *LLMClient) post(ctx context.Context, path string, payload, out interface{}) error {
	body, _ := json.Marshal(payload)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %s returned %d", ErrUnreachable, path, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}
