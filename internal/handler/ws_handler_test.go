package handler

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prepview/prepview-backend/internal/collaborator"
	"github.com/prepview/prepview-backend/internal/config"
	"github.com/prepview/prepview-backend/internal/model"
	"github.com/prepview/prepview-backend/internal/service"
	ws "github.com/prepview/prepview-backend/internal/websocket"
	"github.com/rs/zerolog"
)

type stubQuestions struct{}

func (stubQuestions) GenerateQuestions(_ context.Context, _, _ string) ([]model.Question, error) {
	return []model.Question{{ID: "q1", Text: "Walk me through a recent project.", Type: "behavioral"}}, nil
}

type stubTasks struct{}

func (stubTasks) GenerateTasks(_ context.Context, _ string) ([]*model.CodingTask, error) {
	return []*model.CodingTask{{
		ID: "t1", Title: "Sum two numbers", Language: "python",
		TestCases: []model.TestCase{{Input: "1 2", ExpectedOutput: "3"}},
		State:     model.SubmissionNotSubmitted,
	}}, nil
}

type stubSandbox struct {
	runOut   *collaborator.RunOutput
	runErr   error
	outcomes []model.TestOutcome
	testsErr error
}

func (s *stubSandbox) Run(_ context.Context, _, _, _ string) (*collaborator.RunOutput, error) {
	return s.runOut, s.runErr
}

func (s *stubSandbox) RunTests(_ context.Context, _, _ string, _ []model.TestCase) ([]model.TestOutcome, error) {
	return s.outcomes, s.testsErr
}

// newCodingStreamServer stands up the websocket route around a session that
// is already in the coding phase.
func newCodingStreamServer(t *testing.T, sandbox collaborator.Sandbox) (*httptest.Server, uuid.UUID) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		SpokenWeight:     0.5,
		CodingWeight:     0.5,
		AllowResubmit:    true,
		SessionRetention: time.Hour,
	}
	proctor := service.NewProctorService(nil, zerolog.Nop())
	compiler := service.NewReportCompiler(service.WeightedMean{Spoken: 0.5, Coding: 0.5})
	sessions := service.NewSessionService(cfg, stubQuestions{}, stubTasks{}, nil, nil, compiler, proctor, nil, zerolog.Nop())

	ctx := context.Background()
	sess := sessions.Create(model.CreateSessionRequest{JDSummary: "jd", ResumeSummary: "cv"})
	if _, err := sessions.StartInterview(ctx, sess.ID); err != nil {
		t.Fatalf("StartInterview: %v", err)
	}
	if _, err := sessions.StartCoding(ctx, sess.ID, false); err != nil {
		t.Fatalf("StartCoding: %v", err)
	}

	h := NewWSHandler(nil, sessions, sandbox, proctor, zerolog.Nop(), nil)
	r := gin.New()
	r.GET("/ws/v1/sessions/:id/coding", h.CodingStream)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, sess.ID
}

func dialCodingStream(t *testing.T, srv *httptest.Server, id uuid.UUID) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/v1/sessions/" + id.String() + "/coding"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func sendMessage(t *testing.T, conn *websocket.Conn, v interface{}) {
	t.Helper()
	if err := conn.WriteJSON(v); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func readMessage(t *testing.T, conn *websocket.Conn, v interface{}) {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := conn.ReadJSON(v); err != nil {
		t.Fatalf("read: %v", err)
	}
}

func TestCodingStreamRunResult(t *testing.T) {
	srv, id := newCodingStreamServer(t, &stubSandbox{runOut: &collaborator.RunOutput{Stdout: "3\n"}})
	conn := dialCodingStream(t, srv, id)

	sendMessage(t, conn, ws.RunCodeRequest{Action: ws.ActionRunCode, TaskID: "t1", Code: "print(1+2)"})

	var res ws.RunResultResponse
	readMessage(t, conn, &res)
	if res.Event != ws.EventRunResult || !res.Success {
		t.Fatalf("run reply = %+v, want successful run_result", res)
	}
	if res.Stdout != "3\n" || res.Error != "" {
		t.Errorf("run output = %+v", res)
	}
}

func TestCodingStreamRunFailureIsCorrelated(t *testing.T) {
	srv, id := newCodingStreamServer(t, &stubSandbox{runErr: collaborator.ErrUnreachable})
	conn := dialCodingStream(t, srv, id)

	sendMessage(t, conn, ws.RunCodeRequest{Action: ws.ActionRunCode, TaskID: "t1", Code: "code"})

	// The failure comes back as a run_result, not a bare error event, so the
	// client can tie it to its pending request.
	var res ws.RunResultResponse
	readMessage(t, conn, &res)
	if res.Event != ws.EventRunResult {
		t.Fatalf("failure event = %q, want run_result", res.Event)
	}
	if res.Success || res.Error == "" || res.TaskID != "t1" {
		t.Errorf("failed run = %+v, want success=false with error", res)
	}
}

func TestCodingStreamSubmitFailureIsCorrelated(t *testing.T) {
	srv, id := newCodingStreamServer(t, &stubSandbox{testsErr: collaborator.ErrUnreachable})
	conn := dialCodingStream(t, srv, id)

	sendMessage(t, conn, ws.SubmitCodeRequest{Action: ws.ActionSubmitCode, TaskID: "t1", Code: "code"})

	var res ws.SubmitResultResponse
	readMessage(t, conn, &res)
	if res.Event != ws.EventSubmitResult {
		t.Fatalf("failure event = %q, want submit_result", res.Event)
	}
	if res.Success || res.Error == "" || res.Score != 0 {
		t.Errorf("failed submit = %+v, want success=false with error", res)
	}
}

func TestCodingStreamSubmitResult(t *testing.T) {
	srv, id := newCodingStreamServer(t, &stubSandbox{
		outcomes: []model.TestOutcome{{Index: 0, Passed: true, Actual: "3"}},
	})
	conn := dialCodingStream(t, srv, id)

	sendMessage(t, conn, ws.SubmitCodeRequest{Action: ws.ActionSubmitCode, TaskID: "t1", Code: "print(1+2)"})

	var res ws.SubmitResultResponse
	readMessage(t, conn, &res)
	if res.Event != ws.EventSubmitResult || !res.Success {
		t.Fatalf("submit reply = %+v, want successful submit_result", res)
	}
	if res.Score != 100 || res.Passed != 1 || res.Total != 1 || len(res.Outcomes) != 1 {
		t.Errorf("submit result = %+v", res)
	}
	// The only task is submitted, so the session completes itself.
	if !res.SessionCompleted {
		t.Error("SessionCompleted = false, want true after the last task")
	}
}
