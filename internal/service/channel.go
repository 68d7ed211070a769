package service

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/prepview/prepview-backend/internal/collaborator"
	"github.com/prepview/prepview-backend/internal/config"
	"github.com/prepview/prepview-backend/internal/model"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// workingCopyTTL bounds how long an editor buffer survives in Redis after
// the last edit.
const workingCopyTTL = 24 * time.Hour

// SubmitOutcome is the committed result of one scored submission.
type SubmitOutcome struct {
	Task   *model.CodingTask
	Passed int
	Total  int
}

// CodingChannel is the per-connection request handler behind one live-coding
// websocket. Edits are fire-and-ack; run and submit are single-flight: a
// second request while one is pending fails fast with ErrBusy and does not
// disturb the pending one.
type CodingChannel struct {
	sessionID uuid.UUID
	sessions  *SessionService
	sandbox   collaborator.Sandbox
	rdb       *redis.Client
	log       zerolog.Logger

	busy     atomic.Bool
	revision atomic.Int64
}

// NewCodingChannel creates the channel for one websocket connection. rdb may
// be nil, in which case working copies live only in session memory.
func NewCodingChannel(sessionID uuid.UUID, sessions *SessionService, sandbox collaborator.Sandbox, rdb *redis.Client, log zerolog.Logger) *CodingChannel {
	return &CodingChannel{
		sessionID: sessionID,
		sessions:  sessions,
		sandbox:   sandbox,
		rdb:       rdb,
		log:       log.With().Str("component", "coding_channel").Str("session_id", sessionID.String()).Logger(),
	}
}

// SessionID returns the session this channel is bound to.
func (c *CodingChannel) SessionID() uuid.UUID {
	return c.sessionID
}

// Edit records the latest editor buffer and mirrors it to Redis so a dropped
// connection can recover its working copy. Returns the channel-local revision
// for the acknowledgement.
func (c *CodingChannel) Edit(ctx context.Context, taskID, code string) (int64, error) {
	if err := c.sessions.UpdateWorkingCopy(c.sessionID, taskID, code); err != nil {
		return 0, err
	}
	rev := c.revision.Add(1)

	if c.rdb != nil {
		key := config.CacheKey.TaskWorkingCopyKey(c.sessionID.String(), taskID)
		if err := c.rdb.Set(ctx, key, code, workingCopyTTL).Err(); err != nil {
			c.log.Debug().Err(err).Str("task_id", taskID).Msg("Working copy mirror failed")
		}
	}
	return rev, nil
}

// Run executes the code against a single ad-hoc stdin without scoring and
// without touching submission state. An empty language falls back to the
// task's language.
func (c *CodingChannel) Run(ctx context.Context, taskID, code, language, stdin string) (*collaborator.RunOutput, error) {
	if !c.busy.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}
	defer c.busy.Store(false)

	task, err := c.sessions.Task(c.sessionID, taskID)
	if err != nil {
		return nil, err
	}
	if language == "" {
		language = task.Language
	}
	return c.sandbox.Run(ctx, code, language, stdin)
}

// Submit runs the code against the task's full test case list and commits the
// outcome. A failed or interrupted run commits nothing: the task stays in
// running and a later submission (possibly over a new connection) starts
// clean. When the commit leaves every task submitted the session completes
// itself.
func (c *CodingChannel) Submit(ctx context.Context, taskID, code, language string) (*SubmitOutcome, error) {
	if !c.busy.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}
	defer c.busy.Store(false)

	task, err := c.sessions.BeginSubmission(c.sessionID, taskID, code)
	if err != nil {
		return nil, err
	}
	if language == "" {
		language = task.Language
	}

	outcomes, err := c.sandbox.RunTests(ctx, code, language, task.TestCases)
	if err != nil {
		c.log.Warn().Err(err).Str("task_id", taskID).Msg("Submission run failed, task left running")
		return nil, err
	}

	committed, allSubmitted, err := c.sessions.CompleteSubmission(c.sessionID, taskID, outcomes)
	if err != nil {
		return nil, err
	}

	if allSubmitted {
		if _, err := c.sessions.Complete(c.sessionID); err != nil && !errors.Is(err, ErrAlreadyCompleted) {
			c.log.Error().Err(err).Msg("Auto-completion failed")
		}
	}

	return &SubmitOutcome{
		Task:   committed,
		Passed: CountPassed(committed.Outcomes),
		Total:  len(committed.Outcomes),
	}, nil
}
