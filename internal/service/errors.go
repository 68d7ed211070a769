package service

import "errors"

// Sentinel errors for the session lifecycle and the live-coding channel.
// Handlers translate these into response codes; none of them leaves a
// session or task in a partially-mutated state.
var (
	// ErrNotFound means the session id is unknown (or already evicted).
	ErrNotFound = errors.New("session not found")

	// ErrPrecondition means a phase transition was attempted before its
	// inputs were ready. The caller may retry after satisfying it.
	ErrPrecondition = errors.New("transition precondition not met")

	// ErrAlreadyCompleted marks the idempotent second completion: the
	// cached report is still returned alongside it.
	ErrAlreadyCompleted = errors.New("session already completed")

	// ErrBusy rejects a second run/submit while one is pending on the
	// same channel. Fail-fast, never queued.
	ErrBusy = errors.New("a request is already pending on this channel")

	// ErrPhaseClosed means the operation is not valid in the session's
	// current phase (e.g. answering after the interview round ended).
	ErrPhaseClosed = errors.New("operation not valid in current phase")

	// ErrResubmitNotAllowed rejects a submission on an already-submitted
	// task when resubmission is disabled by configuration.
	ErrResubmitNotAllowed = errors.New("task already submitted")

	// ErrTaskNotFound means the coding task id is unknown in this session.
	ErrTaskNotFound = errors.New("coding task not found")
)
