package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prepview/prepview-backend/internal/config"
	"github.com/prepview/prepview-backend/internal/model"
	"github.com/prepview/prepview-backend/internal/response"
	"github.com/prepview/prepview-backend/internal/service"
	"github.com/prepview/prepview-backend/internal/validator"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const keepAliveInterval = 30 * time.Second

// ProctorHandler ingests raw integrity signals and serves the live alert
// streams.
type ProctorHandler struct {
	rdb      *redis.Client
	sessions *service.SessionService
	proctor  *service.ProctorService
	log      zerolog.Logger
}

// NewProctorHandler creates a ProctorHandler.
func NewProctorHandler(rdb *redis.Client, sessions *service.SessionService, proctor *service.ProctorService, log zerolog.Logger) *ProctorHandler {
	return &ProctorHandler{
		rdb:      rdb,
		sessions: sessions,
		proctor:  proctor,
		log:      log.With().Str("component", "proctor_handler").Logger(),
	}
}

// IngestEvent godoc
// POST /api/v1/sessions/:id/proctor-events
// The client detection loop posts raw signals every couple of seconds; the
// aggregator decides which of them become alerts. Suppressed signals still
// return 200 so the loop never treats back-off as failure.
func (h *ProctorHandler) IngestEvent(c *gin.Context) {
	id, ok := parseSessionID(c)
	if !ok {
		return
	}

	var req model.ProctorEventRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	sess, err := h.sessions.Get(id)
	if err != nil {
		failFromServiceError(c, err)
		return
	}
	if sess.Phase == model.PhaseCompleted {
		response.Fail(c, http.StatusConflict, response.ErrSessionCompleted)
		return
	}

	event, emitted := h.proctor.Ingest(id, req.Kind, req.Severity, req.Detail)
	if !emitted {
		response.Success(c, http.StatusOK, gin.H{"emitted": false})
		return
	}
	response.Success(c, http.StatusOK, gin.H{"emitted": true, "event": event})
}

// RecentEvents godoc
// GET /api/v1/sessions/:id/proctor-events
// Returns the bounded trailing window, not the full log.
func (h *ProctorHandler) RecentEvents(c *gin.Context) {
	id, ok := parseSessionID(c)
	if !ok {
		return
	}

	if _, err := h.sessions.Get(id); err != nil {
		failFromServiceError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"events": h.proctor.Recent(id)})
}

// MonitorSSE godoc
// GET /api/v1/sessions/:id/monitor
// Streams emitted alerts over SSE via the Redis pub/sub fan-out, so a
// reviewer can watch a session live from another process.
func (h *ProctorHandler) MonitorSSE(c *gin.Context) {
	id, ok := parseSessionID(c)
	if !ok {
		return
	}

	sess, err := h.sessions.Get(id)
	if err != nil {
		failFromServiceError(c, err)
		return
	}

	reqCtx := c.Request.Context()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	// Initial snapshot: phase plus the recent alert window.
	c.SSEvent("message", gin.H{
		"type": "snapshot",
		"data": gin.H{
			"session_id": id.String(),
			"phase":      sess.Phase,
			"events":     h.proctor.Recent(id),
		},
	})
	c.Writer.Flush()

	channelName := config.CacheKey.SessionMonitorChannel(id.String())
	pubsub := h.rdb.Subscribe(reqCtx, channelName)
	defer pubsub.Close()

	ch := pubsub.Channel()

	keepAliveTicker := time.NewTicker(keepAliveInterval)
	defer keepAliveTicker.Stop()

	h.log.Info().Str("session_id", id.String()).Msg("Monitor attached to live SSE")

	pingPayload, _ := json.Marshal(map[string]string{"type": "ping"})

	for {
		select {
		case <-reqCtx.Done():
			h.log.Info().Str("session_id", id.String()).Msg("Monitor disconnected from live SSE")
			return

		case msg := <-ch:
			// Forward raw JSON directly, no deserialization needed.
			c.Writer.Write([]byte("data: "))
			c.Writer.Write([]byte(msg.Payload))
			c.Writer.Write([]byte("\n\n"))
			c.Writer.Flush()

		case <-keepAliveTicker.C:
			c.Writer.Write([]byte("data: "))
			c.Writer.Write(pingPayload)
			c.Writer.Write([]byte("\n\n"))
			c.Writer.Flush()
		}
	}
}
