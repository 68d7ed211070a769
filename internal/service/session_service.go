package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prepview/prepview-backend/internal/collaborator"
	"github.com/prepview/prepview-backend/internal/config"
	"github.com/prepview/prepview-backend/internal/model"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// sessionEntry wraps one live session with its locks.
//
// transitionMu serializes phase transitions: at most one is in flight per
// session, and a transition's collaborator calls happen while holding it but
// NOT while holding stateMu, so reads stay cheap during slow generation.
// stateMu guards the session value itself; every read takes a consistent
// snapshot under it.
type sessionEntry struct {
	transitionMu sync.Mutex
	stateMu      sync.RWMutex
	session      *model.Session
	report       *model.Report
	evictTimer   *time.Timer
}

// SessionService owns the session lifecycle state machine
// (created → interviewing → coding → completed) and the in-memory store of
// live sessions. Completed sessions are handed to the persistence queue and
// evicted after the retention window.
type SessionService struct {
	cfg       *config.Config
	questions collaborator.QuestionProvider
	tasks     collaborator.TaskProvider
	stt       collaborator.Transcriber
	evaluator collaborator.AnswerEvaluator
	compiler  *ReportCompiler
	proctor   *ProctorService
	rdb       *redis.Client
	log       zerolog.Logger

	mu       sync.RWMutex
	sessions map[uuid.UUID]*sessionEntry

	// now is swappable in tests.
	now func() time.Time
}

// NewSessionService creates a SessionService. rdb may be nil (tests); in
// that case completed reports are kept in memory only.
func NewSessionService(
	cfg *config.Config,
	questions collaborator.QuestionProvider,
	tasks collaborator.TaskProvider,
	stt collaborator.Transcriber,
	evaluator collaborator.AnswerEvaluator,
	compiler *ReportCompiler,
	proctor *ProctorService,
	rdb *redis.Client,
	log zerolog.Logger,
) *SessionService {
	return &SessionService{
		cfg:       cfg,
		questions: questions,
		tasks:     tasks,
		stt:       stt,
		evaluator: evaluator,
		compiler:  compiler,
		proctor:   proctor,
		rdb:       rdb,
		log:       log.With().Str("component", "session_service").Logger(),
		sessions:  make(map[uuid.UUID]*sessionEntry),
		now:       time.Now,
	}
}

// Create registers a new session in the created phase. Summaries may arrive
// inline here or later through the document upload endpoints.
func (s *SessionService) Create(req model.CreateSessionRequest) *model.Session {
	sess := &model.Session{
		ID:            uuid.New(),
		Phase:         model.PhaseCreated,
		JDSummary:     req.JDSummary,
		ResumeSummary: req.ResumeSummary,
		Questions:     []model.Question{},
		Answers:       []model.SpokenAnswerRecord{},
		Tasks:         []*model.CodingTask{},
		CreatedAt:     s.now(),
	}

	s.mu.Lock()
	s.sessions[sess.ID] = &sessionEntry{session: sess}
	s.mu.Unlock()

	s.log.Info().Str("session_id", sess.ID.String()).Msg("Session created")
	return cloneSession(sess)
}

// Get returns a consistent snapshot of one session.
func (s *SessionService) Get(id uuid.UUID) (*model.Session, error) {
	entry, err := s.entry(id)
	if err != nil {
		return nil, err
	}
	entry.stateMu.RLock()
	defer entry.stateMu.RUnlock()
	return cloneSession(entry.session), nil
}

// AttachSummary stores a document summary on a created session. Summaries
// are frozen once the interview starts.
func (s *SessionService) AttachSummary(id uuid.UUID, kind, summary string) error {
	entry, err := s.entry(id)
	if err != nil {
		return err
	}

	entry.stateMu.Lock()
	defer entry.stateMu.Unlock()

	if entry.session.Phase != model.PhaseCreated {
		return ErrPhaseClosed
	}
	switch kind {
	case "jd":
		entry.session.JDSummary = summary
	case "resume":
		entry.session.ResumeSummary = summary
	default:
		return fmt.Errorf("unknown document kind %q", kind)
	}
	return nil
}

// StartInterview moves created → interviewing, generating the question list.
// Both document summaries must be attached first. The session stays in
// created if generation fails.
func (s *SessionService) StartInterview(ctx context.Context, id uuid.UUID) (*model.Session, error) {
	entry, err := s.entry(id)
	if err != nil {
		return nil, err
	}

	entry.transitionMu.Lock()
	defer entry.transitionMu.Unlock()

	entry.stateMu.RLock()
	phase := entry.session.Phase
	jd, resume := entry.session.JDSummary, entry.session.ResumeSummary
	entry.stateMu.RUnlock()

	if phase == model.PhaseCompleted {
		return nil, ErrAlreadyCompleted
	}
	if phase != model.PhaseCreated {
		return nil, ErrPhaseClosed
	}
	if jd == "" {
		return nil, fmt.Errorf("%w: job description summary missing", ErrPrecondition)
	}
	if resume == "" {
		return nil, fmt.Errorf("%w: resume summary missing", ErrPrecondition)
	}

	questions, err := s.questions.GenerateQuestions(ctx, jd, resume)
	if err != nil {
		return nil, fmt.Errorf("generate questions: %w", err)
	}

	entry.stateMu.Lock()
	entry.session.Phase = model.PhaseInterviewing
	entry.session.Questions = questions
	snap := cloneSession(entry.session)
	entry.stateMu.Unlock()

	s.log.Info().
		Str("session_id", id.String()).
		Int("question_count", len(questions)).
		Msg("Interview started")
	return snap, nil
}

// SubmitAnswer transcribes and evaluates one spoken answer. The transcription
// and evaluation calls run without holding the state lock; the phase is
// re-checked before the record is committed so a session that moved on in
// the meantime rejects the late answer instead of mutating a closed round.
func (s *SessionService) SubmitAnswer(ctx context.Context, id uuid.UUID, questionID string, audio io.Reader, filename string) (*model.SpokenAnswerRecord, error) {
	entry, err := s.entry(id)
	if err != nil {
		return nil, err
	}

	entry.stateMu.RLock()
	if entry.session.Phase != model.PhaseInterviewing {
		entry.stateMu.RUnlock()
		return nil, ErrPhaseClosed
	}
	var question *model.Question
	for i := range entry.session.Questions {
		if entry.session.Questions[i].ID == questionID {
			q := entry.session.Questions[i]
			question = &q
			break
		}
	}
	if question == nil {
		entry.stateMu.RUnlock()
		return nil, fmt.Errorf("%w: unknown question %q", ErrPrecondition, questionID)
	}
	for _, a := range entry.session.Answers {
		if a.QuestionID == questionID {
			entry.stateMu.RUnlock()
			return nil, fmt.Errorf("%w: question %q already answered", ErrPrecondition, questionID)
		}
	}
	entry.stateMu.RUnlock()

	transcript, err := s.stt.Transcribe(ctx, audio, filename)
	if err != nil {
		return nil, fmt.Errorf("transcribe answer: %w", err)
	}
	eval, err := s.evaluator.Evaluate(ctx, *question, transcript)
	if err != nil {
		return nil, fmt.Errorf("evaluate answer: %w", err)
	}

	record := model.SpokenAnswerRecord{
		QuestionID: questionID,
		Transcript: transcript,
		Score:      eval.Score,
		Feedback:   eval.Feedback,
		Strengths:  eval.Strengths,
		Weaknesses: eval.Weaknesses,
		AnsweredAt: s.now(),
	}

	entry.stateMu.Lock()
	defer entry.stateMu.Unlock()
	if entry.session.Phase != model.PhaseInterviewing {
		return nil, ErrPhaseClosed
	}
	for _, a := range entry.session.Answers {
		if a.QuestionID == questionID {
			return nil, fmt.Errorf("%w: question %q already answered", ErrPrecondition, questionID)
		}
	}
	entry.session.Answers = append(entry.session.Answers, record)

	return &record, nil
}

// StartCoding moves interviewing → coding, generating the coding task list.
// With REQUIRE_ALL_ANSWERS set, unanswered questions block the transition
// unless the request carries the explicit skip signal.
func (s *SessionService) StartCoding(ctx context.Context, id uuid.UUID, skipRemaining bool) (*model.Session, error) {
	entry, err := s.entry(id)
	if err != nil {
		return nil, err
	}

	entry.transitionMu.Lock()
	defer entry.transitionMu.Unlock()

	entry.stateMu.RLock()
	phase := entry.session.Phase
	jd := entry.session.JDSummary
	answered := len(entry.session.Answers)
	total := len(entry.session.Questions)
	entry.stateMu.RUnlock()

	if phase == model.PhaseCompleted {
		return nil, ErrAlreadyCompleted
	}
	if phase != model.PhaseInterviewing {
		return nil, ErrPhaseClosed
	}
	if s.cfg.RequireAllAnswers && !skipRemaining && answered < total {
		return nil, fmt.Errorf("%w: %d of %d questions answered", ErrPrecondition, answered, total)
	}

	tasks, err := s.tasks.GenerateTasks(ctx, jd)
	if err != nil {
		return nil, fmt.Errorf("generate coding tasks: %w", err)
	}

	entry.stateMu.Lock()
	entry.session.Phase = model.PhaseCoding
	entry.session.Tasks = tasks
	snap := cloneSession(entry.session)
	entry.stateMu.Unlock()

	s.log.Info().
		Str("session_id", id.String()).
		Int("task_count", len(tasks)).
		Msg("Coding round started")
	return snap, nil
}

// Complete moves coding → completed and compiles the report exactly once.
// It doubles as the explicit end-of-round signal, so not every task has to
// be submitted. A second call returns the cached report with
// ErrAlreadyCompleted; the report never recomputes.
func (s *SessionService) Complete(id uuid.UUID) (*model.Report, error) {
	entry, err := s.entry(id)
	if err != nil {
		return nil, err
	}

	entry.transitionMu.Lock()
	defer entry.transitionMu.Unlock()

	entry.stateMu.RLock()
	phase := entry.session.Phase
	cached := entry.report
	entry.stateMu.RUnlock()

	if phase == model.PhaseCompleted {
		return cached, ErrAlreadyCompleted
	}
	if phase != model.PhaseCoding {
		return nil, fmt.Errorf("%w: coding round not started", ErrPrecondition)
	}

	entry.stateMu.Lock()
	entry.session.Phase = model.PhaseCompleted
	// Snapshot the proctor log under the same lock that flips the phase;
	// every event accepted before completion lands in the summary.
	events := s.proctor.Events(id)
	report := s.compiler.Compile(entry.session, events, s.now())
	entry.report = report
	entry.stateMu.Unlock()

	entry.evictTimer = time.AfterFunc(s.cfg.SessionRetention, func() {
		s.evict(id)
	})

	go s.persistReport(report)

	s.log.Info().
		Str("session_id", id.String()).
		Float64("overall_score", report.OverallScore).
		Msg("Session completed")
	return report, nil
}

// GetReport returns the compiled report of a completed session.
func (s *SessionService) GetReport(id uuid.UUID) (*model.Report, error) {
	entry, err := s.entry(id)
	if err != nil {
		return nil, err
	}
	entry.stateMu.RLock()
	defer entry.stateMu.RUnlock()
	if entry.session.Phase != model.PhaseCompleted {
		return nil, fmt.Errorf("%w: session not completed", ErrPrecondition)
	}
	return entry.report, nil
}

// Task returns a snapshot of one coding task.
func (s *SessionService) Task(id uuid.UUID, taskID string) (*model.CodingTask, error) {
	entry, err := s.entry(id)
	if err != nil {
		return nil, err
	}
	entry.stateMu.RLock()
	defer entry.stateMu.RUnlock()
	t := findTask(entry.session, taskID)
	if t == nil {
		return nil, ErrTaskNotFound
	}
	return cloneTask(t), nil
}

// UpdateWorkingCopy records the latest editor buffer for a task. Only valid
// during the coding phase.
func (s *SessionService) UpdateWorkingCopy(id uuid.UUID, taskID, code string) error {
	entry, err := s.entry(id)
	if err != nil {
		return err
	}
	entry.stateMu.Lock()
	defer entry.stateMu.Unlock()
	if entry.session.Phase != model.PhaseCoding {
		return ErrPhaseClosed
	}
	t := findTask(entry.session, taskID)
	if t == nil {
		return ErrTaskNotFound
	}
	t.Code = code
	return nil
}

// BeginSubmission marks a task as running and returns the snapshot the
// channel needs for execution. A task stuck in running (a previous channel
// closed mid-submission) may be submitted again; a finished task may only
// be resubmitted when ALLOW_RESUBMIT is on, and its previous outcomes are
// then discarded wholesale when the new result commits.
func (s *SessionService) BeginSubmission(id uuid.UUID, taskID, code string) (*model.CodingTask, error) {
	entry, err := s.entry(id)
	if err != nil {
		return nil, err
	}

	entry.stateMu.Lock()
	defer entry.stateMu.Unlock()

	if entry.session.Phase != model.PhaseCoding {
		return nil, ErrPhaseClosed
	}
	t := findTask(entry.session, taskID)
	if t == nil {
		return nil, ErrTaskNotFound
	}
	if t.State == model.SubmissionSubmitted && !s.cfg.AllowResubmit {
		return nil, ErrResubmitNotAllowed
	}

	t.State = model.SubmissionRunning
	t.Code = code
	return cloneTask(t), nil
}

// CompleteSubmission commits a finished test run: outcomes are replaced
// wholesale, the score recomputed, and the task marked submitted. It returns
// whether every task in the session is now submitted, which the channel uses
// to auto-complete the session. If the session completed while the run was
// in flight the result is discarded.
func (s *SessionService) CompleteSubmission(id uuid.UUID, taskID string, outcomes []model.TestOutcome) (*model.CodingTask, bool, error) {
	entry, err := s.entry(id)
	if err != nil {
		return nil, false, err
	}

	entry.stateMu.Lock()
	defer entry.stateMu.Unlock()

	if entry.session.Phase != model.PhaseCoding {
		return nil, false, ErrPhaseClosed
	}
	t := findTask(entry.session, taskID)
	if t == nil {
		return nil, false, ErrTaskNotFound
	}

	now := s.now()
	t.Outcomes = outcomes
	t.Score = ScoreOutcomes(outcomes)
	t.State = model.SubmissionSubmitted
	t.SubmittedAt = &now

	all := true
	for _, task := range entry.session.Tasks {
		if task.State != model.SubmissionSubmitted {
			all = false
			break
		}
	}
	return cloneTask(t), all, nil
}

func (s *SessionService) entry(id uuid.UUID) (*sessionEntry, error) {
	s.mu.RLock()
	entry, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return entry, nil
}

func (s *SessionService) evict(id uuid.UUID) {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
	s.proctor.Evict(id)
	s.log.Info().Str("session_id", id.String()).Msg("Session evicted after retention window")
}

// persistedReport is the queue entry consumed by the report worker. TaskIDs
// lets the worker clear the Redis working-copy buffers once the report row
// is durable.
type persistedReport struct {
	SessionID    string        `json:"session_id"`
	OverallScore float64       `json:"overall_score"`
	Report       *model.Report `json:"report"`
	TaskIDs      []string      `json:"task_ids"`
	CompletedAt  int64         `json:"completed_at"`
}

func (s *SessionService) persistReport(report *model.Report) {
	if s.rdb == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
	defer cancel()

	taskIDs := make([]string, 0, len(report.Tasks))
	for _, t := range report.Tasks {
		taskIDs = append(taskIDs, t.ID)
	}

	raw, err := json.Marshal(persistedReport{
		SessionID:    report.SessionID.String(),
		OverallScore: report.OverallScore,
		Report:       report,
		TaskIDs:      taskIDs,
		CompletedAt:  report.CompletedAt.Unix(),
	})
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to marshal report for persistence")
		return
	}
	if err := s.rdb.RPush(ctx, config.WorkerKey.PersistReportsQueue, raw).Err(); err != nil {
		s.log.Error().Err(err).Str("session_id", report.SessionID.String()).Msg("Failed to enqueue report")
	}
}

func findTask(sess *model.Session, taskID string) *model.CodingTask {
	for _, t := range sess.Tasks {
		if t.ID == taskID {
			return t
		}
	}
	return nil
}

func cloneSession(s *model.Session) *model.Session {
	out := *s
	out.Questions = append([]model.Question(nil), s.Questions...)
	out.Answers = append([]model.SpokenAnswerRecord(nil), s.Answers...)
	out.Tasks = make([]*model.CodingTask, len(s.Tasks))
	for i, t := range s.Tasks {
		out.Tasks[i] = cloneTask(t)
	}
	return &out
}

func cloneTask(t *model.CodingTask) *model.CodingTask {
	out := *t
	out.TestCases = append([]model.TestCase(nil), t.TestCases...)
	out.Outcomes = append([]model.TestOutcome(nil), t.Outcomes...)
	return &out
}
