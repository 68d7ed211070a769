package collaborator

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/prepview/prepview-backend/internal/model"
	"github.com/rs/zerolog"
)

// Judge0 submission status IDs. 1 and 2 mean the submission is still being
// processed; 3 means it ran and produced output.
const (
	statusInQueue    = 1
	statusProcessing = 2
	statusAccepted   = 3
)

const (
	pollInterval = 1 * time.Second
	maxPolls     = 30
)

// languageIDs maps language names to Judge0 language IDs.
var languageIDs = map[string]int{
	"python":     71,
	"javascript": 63,
	"java":       62,
	"cpp":        54,
	"c":          50,
	"go":         60,
	"rust":       73,
	"typescript": 74,
}

// SandboxClient talks to a Judge0-compatible execution service.
type SandboxClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
	log     zerolog.Logger
}

// NewSandboxClient creates a SandboxClient for the given base URL.
func NewSandboxClient(baseURL, apiKey string, log zerolog.Logger) *SandboxClient {
	return &SandboxClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 10 * time.Second},
		log:     log.With().Str("component", "sandbox_client").Logger(),
	}
}

type submissionRequest struct {
	SourceCode    string  `json:"source_code"`
	LanguageID    int     `json:"language_id"`
	Stdin         string  `json:"stdin"`
	CPUTimeLimit  float64 `json:"cpu_time_limit"`
	WallTimeLimit float64 `json:"wall_time_limit"`
	MemoryLimit   int     `json:"memory_limit"`
}

type submissionStatus struct {
	ID          int    `json:"id"`
	Description string `json:"description"`
}

type submissionResult struct {
	Status        submissionStatus `json:"status"`
	Stdout        string           `json:"stdout"`
	Stderr        string           `json:"stderr"`
	CompileOutput string           `json:"compile_output"`
	Token         string           `json:"token"`
}

// Run executes code once with the given stdin and returns its output.
func (c *SandboxClient) Run(ctx context.Context, code, language, stdin string) (*RunOutput, error) {
	langID, ok := languageIDs[strings.ToLower(language)]
	if !ok {
		return nil, fmt.Errorf("%w: unsupported language %q", ErrRuntime, language)
	}

	res, err := c.execute(ctx, code, langID, stdin)
	if err != nil {
		return nil, err
	}

	return &RunOutput{Stdout: res.Stdout, Stderr: c.errorOutput(res)}, nil
}

// RunTests executes code against every test case and reports one outcome
// per case. Comparison is exact string equality after trimming trailing
// whitespace, which the sandbox normalizes.
func (c *SandboxClient) RunTests(ctx context.Context, code, language string, cases []model.TestCase) ([]model.TestOutcome, error) {
	langID, ok := languageIDs[strings.ToLower(language)]
	if !ok {
		return nil, fmt.Errorf("%w: unsupported language %q", ErrRuntime, language)
	}

	outcomes := make([]model.TestOutcome, 0, len(cases))
	for i, tc := range cases {
		outcome := model.TestOutcome{Index: i}

		res, err := c.execute(ctx, code, langID, tc.Input)
		switch {
		case errors.Is(err, ErrExecutionTimeout):
			// A single timed-out case is a failed case, not an aborted
			// submission. Partial credit stays possible.
			outcome.Error = "execution timeout"
		case err != nil:
			// Transport failures abort the whole submission; the caller
			// reports a failed submit and leaves the task untouched.
			return nil, err
		case res.Status.ID == statusAccepted:
			actual := strings.TrimRight(res.Stdout, " \t\r\n")
			outcome.Actual = actual
			outcome.Passed = actual == strings.TrimRight(tc.ExpectedOutput, " \t\r\n")
		default:
			// Runtime/compile error on one case counts as a failed case.
			outcome.Actual = strings.TrimRight(res.Stdout, " \t\r\n")
			outcome.Error = c.errorOutput(res)
		}
		outcomes = append(outcomes, outcome)
	}

	return outcomes, nil
}

// execute submits one run and polls until it leaves the processing states
// or the poll budget is exhausted.
func (c *SandboxClient) execute(ctx context.Context, code string, langID int, stdin string) (*submissionResult, error) {
	token, err := c.submit(ctx, code, langID, stdin)
	if err != nil {
		return nil, err
	}

	for attempt := 0; attempt < maxPolls; attempt++ {
		res, err := c.fetchResult(ctx, token)
		if err != nil {
			return nil, err
		}
		if res.Status.ID != statusInQueue && res.Status.ID != statusProcessing {
			return res, nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", ErrExecutionTimeout, ctx.Err())
		case <-time.After(pollInterval):
		}
	}

	return nil, ErrExecutionTimeout
}

func (c *SandboxClient) submit(ctx context.Context, code string, langID int, stdin string) (string, error) {
	payload := submissionRequest{
		SourceCode:    base64.StdEncoding.EncodeToString([]byte(code)),
		LanguageID:    langID,
		Stdin:         base64.StdEncoding.EncodeToString([]byte(stdin)),
		CPUTimeLimit:  2,
		WallTimeLimit: 5,
		MemoryLimit:   128000,
	}

	body, _ := json.Marshal(payload)
	url := c.baseURL + "/submissions?base64_encoded=true&wait=false"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build submit request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("%w: submit returned %d", ErrUnreachable, resp.StatusCode)
	}

	var out struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode submit response: %w", err)
	}
	if out.Token == "" {
		return "", fmt.Errorf("%w: no token in submit response", ErrUnreachable)
	}
	return out.Token, nil
}

func (c *SandboxClient) fetchResult(ctx context.Context, token string) (*submissionResult, error) {
	url := fmt.Sprintf("%s/submissions/%s?base64_encoded=true", c.baseURL, token)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build result request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: result fetch returned %d", ErrUnreachable, resp.StatusCode)
	}

	var res submissionResult
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return nil, fmt.Errorf("decode result: %w", err)
	}

	res.Stdout = decodeB64(res.Stdout)
	res.Stderr = decodeB64(res.Stderr)
	res.CompileOutput = decodeB64(res.CompileOutput)
	return &res, nil
}

func (c *SandboxClient) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-Auth-Token", c.apiKey)
	}
}

// errorOutput picks the most useful error text from a finished submission.
func (c *SandboxClient) errorOutput(res *submissionResult) string {
	if res.Stderr != "" {
		return res.Stderr
	}
	if res.CompileOutput != "" {
		return res.CompileOutput
	}
	if res.Status.ID != statusAccepted {
		return res.Status.Description
	}
	return ""
}

// decodeB64 decodes a base64 field, falling back to the raw value if the
// sandbox returned plain text.
func decodeB64(s string) string {
	if s == "" {
		return ""
	}
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return s
	}
	return string(raw)
}
