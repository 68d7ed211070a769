package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prepview/prepview-backend/internal/collaborator"
	"github.com/prepview/prepview-backend/internal/response"
	"github.com/prepview/prepview-backend/internal/service"
	"github.com/rs/zerolog"
)

// DocumentHandler exposes the job-description and resume upload endpoints.
type DocumentHandler struct {
	documents *service.DocumentService
	log       zerolog.Logger
}

// NewDocumentHandler creates a DocumentHandler.
func NewDocumentHandler(documents *service.DocumentService, log zerolog.Logger) *DocumentHandler {
	return &DocumentHandler{
		documents: documents,
		log:       log.With().Str("component", "document_handler").Logger(),
	}
}

// UploadDocument godoc
// POST /api/v1/sessions/:id/documents/:kind
// kind is "jd" or "resume". The file is stored, summarized, and the summary
// attached to the session.
func (h *DocumentHandler) UploadDocument(c *gin.Context) {
	id, ok := parseSessionID(c)
	if !ok {
		return
	}

	kind := c.Param("kind")
	if kind != "jd" && kind != "resume" {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation,
			map[string]string{"kind": "kind must be jd or resume"})
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrFileRequired)
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to open uploaded document")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	defer file.Close()

	summary, err := h.documents.Ingest(c.Request.Context(), id, kind, file, fileHeader.Filename, fileHeader.Size)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUnsupportedFile), errors.Is(err, collaborator.ErrUnsupportedFormat):
			response.Fail(c, http.StatusUnsupportedMediaType, response.ErrUnsupportedFile)
		case errors.Is(err, service.ErrFileTooLarge):
			response.Fail(c, http.StatusRequestEntityTooLarge, response.ErrFileTooLarge)
		case errors.Is(err, collaborator.ErrParse):
			response.Fail(c, http.StatusUnprocessableEntity, response.ErrDocumentParse)
		default:
			failFromServiceError(c, err)
		}
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"kind":    kind,
		"summary": summary,
	})
}
