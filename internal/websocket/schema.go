package websocket

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionCodeEdit   Action = "code_edit"
	ActionRunCode    Action = "run_code"
	ActionSubmitCode Action = "submit_code"
	ActionPing       Action = "ping"
)

// RequestEnvelope is used to peek at the action before full parsing.
type RequestEnvelope struct {
	Action Action `json:"action"`
}

// CodeEditRequest carries the latest editor buffer for one task. Cursor and
// Timestamp are advisory client-side hints and do not affect the stored copy.
type CodeEditRequest struct {
	Action    Action `json:"action"`
	TaskID    string `json:"task_id"`
	Code      string `json:"code"`
	Cursor    int    `json:"cursor,omitempty"`
	Timestamp int64  `json:"timestamp,omitempty"`
}

// RunCodeRequest asks for a trial execution against an ad-hoc stdin.
// It is never scored. Language defaults to the task's language.
type RunCodeRequest struct {
	Action   Action `json:"action"`
	TaskID   string `json:"task_id"`
	Code     string `json:"code"`
	Language string `json:"language,omitempty"`
	Stdin    string `json:"stdin"`
}

// SubmitCodeRequest asks for a scored run against the task's test cases.
type SubmitCodeRequest struct {
	Action   Action `json:"action"`
	TaskID   string `json:"task_id"`
	Code     string `json:"code"`
	Language string `json:"language,omitempty"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventError        Event = "error"
	EventEditAck      Event = "edit_ack"
	EventRunResult    Event = "run_result"
	EventSubmitResult Event = "submit_result"
	EventProctorAlert Event = "proctor_alert"
	EventPong         Event = "pong"
)

type EditAckResponse struct {
	Event    Event  `json:"event"`
	TaskID   string `json:"task_id"`
	Revision int64  `json:"revision"`
}

// RunResultResponse answers one run_code request. Failures (sandbox down,
// execution timeout, busy channel) come back on this same kind with
// Success false so the client can correlate them with the request.
type RunResultResponse struct {
	Event   Event  `json:"event"`
	TaskID  string `json:"task_id"`
	Success bool   `json:"success"`
	Stdout  string `json:"stdout"`
	Stderr  string `json:"stderr"`
	Error   string `json:"error,omitempty"`
}

// TestOutcomeView is one per-test-case result inside a submit_result.
type TestOutcomeView struct {
	Index  int    `json:"index"`
	Passed bool   `json:"passed"`
	Actual string `json:"actual"`
	Error  string `json:"error,omitempty"`
}

// SubmitResultResponse answers one submit_code request. A failed submission
// reports Success false with the error and leaves the task unscored.
type SubmitResultResponse struct {
	Event            Event             `json:"event"`
	TaskID           string            `json:"task_id"`
	Success          bool              `json:"success"`
	Score            int               `json:"score"`
	Passed           int               `json:"passed"`
	Total            int               `json:"total"`
	Outcomes         []TestOutcomeView `json:"outcomes,omitempty"`
	Error            string            `json:"error,omitempty"`
	SessionCompleted bool              `json:"session_completed"`
}

// ProctorAlertResponse is pushed server-side when the aggregator emits an
// alert while this channel is open. Message is displayable as-is.
type ProctorAlertResponse struct {
	Event    Event  `json:"event"`
	Message  string `json:"message"`
	Kind     string `json:"kind"`
	Severity string `json:"severity"`
	Detail   string `json:"detail,omitempty"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
