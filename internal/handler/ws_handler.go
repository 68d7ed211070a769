package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prepview/prepview-backend/internal/collaborator"
	"github.com/prepview/prepview-backend/internal/model"
	"github.com/prepview/prepview-backend/internal/service"
	ws "github.com/prepview/prepview-backend/internal/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler handles the live-coding WebSocket channel.
type WSHandler struct {
	rdb      *redis.Client
	sessions *service.SessionService
	sandbox  collaborator.Sandbox
	proctor  *service.ProctorService
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(rdb *redis.Client, sessions *service.SessionService, sandbox collaborator.Sandbox, proctor *service.ProctorService, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		rdb:      rdb,
		sessions: sessions,
		sandbox:  sandbox,
		proctor:  proctor,
		log:      log.With().Str("component", "ws_handler").Logger(),
		upgrader: buildUpgrader(allowedOrigins),
	}
}

// wsConn serializes writes to one connection. Run and submit answer from
// their own goroutines, so writes must not interleave.
type wsConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (w *wsConn) writeTyped(v interface{}) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return ws.WriteTyped(w.conn, v)
}

func (w *wsConn) writeError(msg string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	ws.WriteError(w.conn, msg)
}

// CodingStream godoc
// WS /ws/v1/sessions/:id/coding
// Upgrades to WebSocket for live edits, trial runs, and scored submissions.
func (h *WSHandler) CodingStream(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session ID"})
		return
	}

	sess, err := h.sessions.Get(sessionID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	if sess.Phase != model.PhaseCoding {
		c.JSON(http.StatusConflict, gin.H{"error": "session is not in the coding phase"})
		return
	}

	rawConn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer rawConn.Close()

	conn := &wsConn{conn: rawConn}
	channel := service.NewCodingChannel(sessionID, h.sessions, h.sandbox, h.rdb, h.log)

	// connCtx is cancelled when the read loop exits, aborting any in-flight
	// run or submit. An aborted submission commits nothing.
	connCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Alerts emitted while this channel is open are pushed to the client.
	unsubscribe := h.proctor.Subscribe(sessionID, func(e model.ProctorEvent) {
		conn.writeTyped(ws.ProctorAlertResponse{
			Event:    ws.EventProctorAlert,
			Message:  e.Message(),
			Kind:     string(e.Kind),
			Severity: string(e.Severity),
			Detail:   e.Detail,
		})
	})
	defer unsubscribe()

	wsLog := h.log.With().Str("session_id", sessionID.String()).Logger()
	wsLog.Info().Msg("Candidate connected to coding channel")

	for {
		var raw json.RawMessage
		if err := ws.ReadJSON(rawConn, &raw); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			break
		}

		var env ws.RequestEnvelope
		if err := json.Unmarshal(raw, &env); err != nil {
			conn.writeError("malformed message")
			continue
		}

		switch env.Action {
		case ws.ActionPing:
			conn.writeTyped(ws.PongResponse{Event: ws.EventPong})
		case ws.ActionCodeEdit:
			h.handleEdit(connCtx, conn, channel, raw)
		case ws.ActionRunCode:
			var req ws.RunCodeRequest
			if err := json.Unmarshal(raw, &req); err != nil || req.TaskID == "" {
				conn.writeError("task_id is required")
				continue
			}
			// Run in a goroutine so a queued sandbox call does not stall the
			// read loop; concurrent requests are rejected as busy, and that
			// rejection must stay observable while one is pending.
			go h.handleRun(connCtx, conn, channel, wsLog, &req)
		case ws.ActionSubmitCode:
			var req ws.SubmitCodeRequest
			if err := json.Unmarshal(raw, &req); err != nil || req.TaskID == "" {
				conn.writeError("task_id is required")
				continue
			}
			go h.handleSubmit(connCtx, conn, channel, wsLog, &req)
		default:
			wsLog.Warn().Str("action", string(env.Action)).Msg("Unknown action")
			conn.writeError("unknown action: " + string(env.Action))
		}
	}
}

// handleEdit acknowledges an editor buffer update. Edits are cheap and stay
// on the read loop.
func (h *WSHandler) handleEdit(ctx context.Context, conn *wsConn, channel *service.CodingChannel, raw []byte) {
	var req ws.CodeEditRequest
	if err := json.Unmarshal(raw, &req); err != nil || req.TaskID == "" {
		conn.writeError("task_id is required")
		return
	}

	rev, err := channel.Edit(ctx, req.TaskID, req.Code)
	if err != nil {
		conn.writeError(err.Error())
		return
	}
	conn.writeTyped(ws.EditAckResponse{
		Event:    ws.EventEditAck,
		TaskID:   req.TaskID,
		Revision: rev,
	})
}

func (h *WSHandler) handleRun(ctx context.Context, conn *wsConn, channel *service.CodingChannel, wsLog zerolog.Logger, req *ws.RunCodeRequest) {
	out, err := channel.Run(ctx, req.TaskID, req.Code, req.Language, req.Stdin)
	if err != nil {
		wsLog.Debug().Err(err).Str("task_id", req.TaskID).Msg("Run failed")
		conn.writeTyped(ws.RunResultResponse{
			Event:  ws.EventRunResult,
			TaskID: req.TaskID,
			Error:  err.Error(),
		})
		return
	}
	conn.writeTyped(ws.RunResultResponse{
		Event:   ws.EventRunResult,
		TaskID:  req.TaskID,
		Success: true,
		Stdout:  out.Stdout,
		Stderr:  out.Stderr,
	})
}

func (h *WSHandler) handleSubmit(ctx context.Context, conn *wsConn, channel *service.CodingChannel, wsLog zerolog.Logger, req *ws.SubmitCodeRequest) {
	result, err := channel.Submit(ctx, req.TaskID, req.Code, req.Language)
	if err != nil {
		wsLog.Warn().Err(err).Str("task_id", req.TaskID).Msg("Submit failed")
		conn.writeTyped(ws.SubmitResultResponse{
			Event:  ws.EventSubmitResult,
			TaskID: req.TaskID,
			Error:  err.Error(),
		})
		return
	}

	outcomes := make([]ws.TestOutcomeView, len(result.Task.Outcomes))
	for i, o := range result.Task.Outcomes {
		outcomes[i] = ws.TestOutcomeView{
			Index:  o.Index,
			Passed: o.Passed,
			Actual: o.Actual,
			Error:  o.Error,
		}
	}

	sess, _ := h.sessions.Get(channel.SessionID())
	completed := sess != nil && sess.Phase == model.PhaseCompleted

	wsLog.Info().
		Str("task_id", req.TaskID).
		Int("score", result.Task.Score).
		Int("passed", result.Passed).
		Int("total", result.Total).
		Msg("Submission graded")

	conn.writeTyped(ws.SubmitResultResponse{
		Event:            ws.EventSubmitResult,
		TaskID:           req.TaskID,
		Success:          true,
		Score:            result.Task.Score,
		Passed:           result.Passed,
		Total:            result.Total,
		Outcomes:         outcomes,
		SessionCompleted: completed,
	})
}
