package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prepview/prepview-backend/internal/collaborator"
	"github.com/prepview/prepview-backend/internal/model"
	"github.com/prepview/prepview-backend/internal/repository"
	"github.com/prepview/prepview-backend/internal/response"
	"github.com/prepview/prepview-backend/internal/service"
	"github.com/prepview/prepview-backend/internal/validator"
	"github.com/rs/zerolog"
)

// SessionHandler exposes the session lifecycle over REST.
type SessionHandler struct {
	sessions *service.SessionService
	repo     *repository.SessionRepository
	log      zerolog.Logger
}

// NewSessionHandler creates a SessionHandler. repo may be nil when no
// database is attached; report reads then serve from memory only.
func NewSessionHandler(sessions *service.SessionService, repo *repository.SessionRepository, log zerolog.Logger) *SessionHandler {
	return &SessionHandler{
		sessions: sessions,
		repo:     repo,
		log:      log.With().Str("component", "session_handler").Logger(),
	}
}

// failFromServiceError maps service-layer sentinels onto the API error set.
func failFromServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
	case errors.Is(err, service.ErrTaskNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrTaskNotFound)
	case errors.Is(err, service.ErrAlreadyCompleted):
		response.Fail(c, http.StatusConflict, response.ErrSessionCompleted)
	case errors.Is(err, service.ErrPhaseClosed):
		response.Fail(c, http.StatusConflict, response.ErrPhaseClosed)
	case errors.Is(err, service.ErrPrecondition):
		response.Fail(c, http.StatusConflict, response.ErrPreconditionFailed)
	case errors.Is(err, service.ErrResubmitNotAllowed):
		response.Fail(c, http.StatusConflict, response.ErrResubmitNotAllowed)
	case errors.Is(err, service.ErrBusy):
		response.Fail(c, http.StatusConflict, response.ErrChannelBusy)
	case errors.Is(err, collaborator.ErrUnreachable):
		response.Fail(c, http.StatusBadGateway, response.ErrCollaboratorFailure)
	default:
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}

func parseSessionID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return uuid.Nil, false
	}
	return id, true
}

// CreateSession godoc
// POST /api/v1/sessions
func (h *SessionHandler) CreateSession(c *gin.Context) {
	var req model.CreateSessionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	sess := h.sessions.Create(req)
	response.Success(c, http.StatusCreated, sess)
}

// GetSession godoc
// GET /api/v1/sessions/:id
func (h *SessionHandler) GetSession(c *gin.Context) {
	id, ok := parseSessionID(c)
	if !ok {
		return
	}

	sess, err := h.sessions.Get(id)
	if err != nil {
		failFromServiceError(c, err)
		return
	}
	response.Success(c, http.StatusOK, sess)
}

// StartInterview godoc
// POST /api/v1/sessions/:id/interview
func (h *SessionHandler) StartInterview(c *gin.Context) {
	id, ok := parseSessionID(c)
	if !ok {
		return
	}

	sess, err := h.sessions.StartInterview(c.Request.Context(), id)
	if err != nil {
		failFromServiceError(c, err)
		return
	}
	response.Success(c, http.StatusOK, sess)
}

// SubmitAnswer godoc
// POST /api/v1/sessions/:id/answers
// Multipart form: question_id field plus an "audio" file.
func (h *SessionHandler) SubmitAnswer(c *gin.Context) {
	id, ok := parseSessionID(c)
	if !ok {
		return
	}

	questionID := c.PostForm("question_id")
	if questionID == "" {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation,
			map[string]string{"question_id": "question_id is required"})
		return
	}

	fileHeader, err := c.FormFile("audio")
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrFileRequired)
		return
	}
	audio, err := fileHeader.Open()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to open uploaded audio")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	defer audio.Close()

	record, err := h.sessions.SubmitAnswer(c.Request.Context(), id, questionID, audio, fileHeader.Filename)
	if err != nil {
		failFromServiceError(c, err)
		return
	}
	response.Success(c, http.StatusOK, record)
}

// StartCoding godoc
// POST /api/v1/sessions/:id/coding
func (h *SessionHandler) StartCoding(c *gin.Context) {
	id, ok := parseSessionID(c)
	if !ok {
		return
	}

	// The body is optional; absent means no skip.
	var req model.StartCodingRequest
	if c.Request.ContentLength > 0 {
		if fields := validator.Bind(c, &req); fields != nil {
			response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
			return
		}
	}

	sess, err := h.sessions.StartCoding(c.Request.Context(), id, req.SkipRemaining)
	if err != nil {
		failFromServiceError(c, err)
		return
	}
	response.Success(c, http.StatusOK, sess)
}

// CompleteSession godoc
// POST /api/v1/sessions/:id/complete
// Completing twice is not an error: the second call returns the same report.
func (h *SessionHandler) CompleteSession(c *gin.Context) {
	id, ok := parseSessionID(c)
	if !ok {
		return
	}

	report, err := h.sessions.Complete(id)
	if errors.Is(err, service.ErrAlreadyCompleted) {
		response.Success(c, http.StatusOK, report)
		return
	}
	if err != nil {
		failFromServiceError(c, err)
		return
	}
	response.Success(c, http.StatusOK, report)
}

// GetReport godoc
// GET /api/v1/sessions/:id/report
// Sessions evicted from memory after the retention window fall back to the
// persisted copy.
func (h *SessionHandler) GetReport(c *gin.Context) {
	id, ok := parseSessionID(c)
	if !ok {
		return
	}

	report, err := h.sessions.GetReport(id)
	if err == nil {
		response.Success(c, http.StatusOK, report)
		return
	}
	if errors.Is(err, service.ErrPrecondition) {
		response.Fail(c, http.StatusConflict, response.ErrReportNotReady)
		return
	}
	if errors.Is(err, service.ErrNotFound) && h.repo != nil {
		stored, repoErr := h.repo.GetReport(c.Request.Context(), id)
		if repoErr == nil {
			response.Success(c, http.StatusOK, stored)
			return
		}
		if !errors.Is(repoErr, repository.ErrNoRows) {
			h.log.Error().Err(repoErr).Str("session_id", id.String()).Msg("Report fallback query failed")
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
			return
		}
	}
	failFromServiceError(c, err)
}
