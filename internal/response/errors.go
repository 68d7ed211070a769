package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound     ErrCode = "NOT_FOUND"
	ErrTaskNotFound ErrCode = "TASK_NOT_FOUND"

	// ─── Session lifecycle ─────────────────────────────────────────────
	ErrPreconditionFailed  ErrCode = "PRECONDITION_FAILED"
	ErrPhaseClosed         ErrCode = "PHASE_CLOSED"
	ErrSessionCompleted    ErrCode = "SESSION_ALREADY_COMPLETED"
	ErrReportNotReady      ErrCode = "REPORT_NOT_READY"
	ErrResubmitNotAllowed  ErrCode = "RESUBMIT_NOT_ALLOWED"
	ErrChannelBusy         ErrCode = "CHANNEL_BUSY"
	ErrCollaboratorFailure ErrCode = "COLLABORATOR_UNAVAILABLE"

	// ─── Documents ─────────────────────────────────────────────────────
	ErrFileRequired    ErrCode = "FILE_REQUIRED"
	ErrUnsupportedFile ErrCode = "UNSUPPORTED_FILE_TYPE"
	ErrFileTooLarge    ErrCode = "FILE_TOO_LARGE"
	ErrDocumentParse   ErrCode = "DOCUMENT_PARSE_ERROR"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Validation failed. Please check your input."
	case ErrInvalidID:
		return "Invalid ID format."
	case ErrInvalidPayload:
		return "Invalid request payload."

	// ─── Resources ─────────────────────────────────────────────────────
	case ErrNotFound:
		return "Session not found."
	case ErrTaskNotFound:
		return "Coding task not found."

	// ─── Session lifecycle ─────────────────────────────────────────────
	case ErrPreconditionFailed:
		return "The session is not ready for this transition."
	case ErrPhaseClosed:
		return "This operation is not valid in the session's current phase."
	case ErrSessionCompleted:
		return "The session has already been completed."
	case ErrReportNotReady:
		return "The report is only available after the session completes."
	case ErrResubmitNotAllowed:
		return "This task has already been submitted."
	case ErrChannelBusy:
		return "Another request is already in progress on this channel."
	case ErrCollaboratorFailure:
		return "A required external service is unavailable. Please try again."

	// ─── Documents ─────────────────────────────────────────────────────
	case ErrFileRequired:
		return "A file upload is required."
	case ErrUnsupportedFile:
		return "Unsupported file type."
	case ErrFileTooLarge:
		return "File size exceeds the limit."
	case ErrDocumentParse:
		return "The document could not be parsed."

	// ─── Rate Limiting ─────────────────────────────────────────────────
	case ErrRateLimitExceeded:
		return "Too many requests. Please try again later."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrInternal:
		return "An internal server error occurred."
	default:
		return "An unexpected error occurred."
	}
}
