package collaborator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// ParserClient talks to the document parsing/summarization service.
type ParserClient struct {
	baseURL string
	http    *http.Client
	log     zerolog.Logger
}

// NewParserClient creates a ParserClient for the given base URL.
func NewParserClient(baseURL string, log zerolog.Logger) *ParserClient {
	return &ParserClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 60 * time.Second},
		log:     log.With().Str("component", "parser_client").Logger(),
	}
}

// Summarize uploads one document and returns its summary. kind is either
// "jd" or "resume" and selects the summarization prompt server-side.
func (c *ParserClient) Summarize(ctx context.Context, r io.Reader, filename, kind string) (string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	if err := mw.WriteField("kind", kind); err != nil {
		return "", fmt.Errorf("build multipart: %w", err)
	}
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return "", fmt.Errorf("build multipart: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return "", fmt.Errorf("copy document: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("close multipart: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/summarize", &buf)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnsupportedMediaType:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, filename)
	case http.StatusUnprocessableEntity:
		return "", fmt.Errorf("%w: %s", ErrParse, filename)
	default:
		return "", fmt.Errorf("%w: summarize returned %d", ErrUnreachable, resp.StatusCode)
	}

	var out struct {
		Summary string `json:"summary"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode summary: %w", err)
	}

	return strings.TrimSpace(out.Summary), nil
}
