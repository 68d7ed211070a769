package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/prepview/prepview-backend/internal/collaborator"
	"github.com/prepview/prepview-backend/internal/config"
	"github.com/prepview/prepview-backend/internal/model"
	"github.com/rs/zerolog"
)

var (
	// ErrUnsupportedFile rejects uploads outside the allowed document types.
	ErrUnsupportedFile = errors.New("unsupported file type")

	// ErrFileTooLarge rejects uploads over the configured size limit.
	ErrFileTooLarge = errors.New("file too large")
)

// allowedDocumentExt maps accepted upload extensions to their MIME types.
var allowedDocumentExt = map[string]string{
	".pdf":  "application/pdf",
	".txt":  "text/plain",
	".md":   "text/markdown",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
}

// DocumentService stores uploaded job descriptions and resumes and attaches
// their summaries to the owning session.
type DocumentService struct {
	cfg        *config.Config
	summarizer collaborator.Summarizer
	sessions   *SessionService
	log        zerolog.Logger
}

// NewDocumentService creates a DocumentService.
func NewDocumentService(cfg *config.Config, summarizer collaborator.Summarizer, sessions *SessionService, log zerolog.Logger) *DocumentService {
	return &DocumentService{
		cfg:        cfg,
		summarizer: summarizer,
		sessions:   sessions,
		log:        log.With().Str("component", "document_service").Logger(),
	}
}

// Ingest validates and stores one uploaded document, summarizes it, and
// attaches the summary to the session. kind is "jd" or "resume". The stored
// file keeps only its extension; the name is replaced with a fresh UUID.
func (s *DocumentService) Ingest(ctx context.Context, sessionID uuid.UUID, kind string, file io.Reader, filename string, size int64) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if _, ok := allowedDocumentExt[ext]; !ok {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFile, ext)
	}
	if size > s.cfg.MaxUploadBytes {
		return "", fmt.Errorf("%w: %d bytes", ErrFileTooLarge, size)
	}

	// Reject the upload before any slow work if the session is unknown or
	// past the created phase.
	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return "", err
	}
	if sess.Phase != model.PhaseCreated {
		return "", ErrPhaseClosed
	}

	path, err := s.store(sessionID, kind, ext, file)
	if err != nil {
		return "", err
	}

	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("reopen stored document: %w", err)
	}
	defer f.Close()

	summary, err := s.summarizer.Summarize(ctx, f, filename, kind)
	if err != nil {
		return "", err
	}

	if err := s.sessions.AttachSummary(sessionID, kind, summary); err != nil {
		return "", err
	}

	s.log.Info().
		Str("session_id", sessionID.String()).
		Str("kind", kind).
		Str("stored_as", filepath.Base(path)).
		Msg("Document ingested")
	return summary, nil
}

func (s *DocumentService) store(sessionID uuid.UUID, kind, ext string, file io.Reader) (string, error) {
	dir := filepath.Join(s.cfg.UploadDir, sessionID.String())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("%s_%s%s", kind, uuid.NewString(), ext))
	dst, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create document file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, io.LimitReader(file, s.cfg.MaxUploadBytes+1)); err != nil {
		return "", fmt.Errorf("write document file: %w", err)
	}
	return path, nil
}
