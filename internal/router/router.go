package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prepview/prepview-backend/internal/config"
	"github.com/prepview/prepview-backend/internal/handler"
	"github.com/prepview/prepview-backend/internal/middleware"
	"github.com/prepview/prepview-backend/internal/response"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Session  *handler.SessionHandler
	Document *handler.DocumentHandler
	Proctor  *handler.ProctorHandler
	WS       *handler.WSHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(handlers *Handlers, cfg *config.Config) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	// Session creation and document uploads trigger LLM/parser calls, so
	// they get a tighter per-IP budget than the rest of the API.
	createLimiter := middleware.NewRateLimiter(10, time.Minute)
	// The detection loop posts every ~2s; allow headroom above that.
	ingestLimiter := middleware.NewRateLimiter(120, time.Minute)

	// ─── Sessions ──────────────────────────────────────────────────────
	sessions := router.Group("/api/v1/sessions")
	{
		sessions.POST("", createLimiter.Middleware(), handlers.Session.CreateSession)
		sessions.GET("/:id", handlers.Session.GetSession)

		sessions.POST("/:id/documents/:kind", createLimiter.Middleware(), handlers.Document.UploadDocument)

		sessions.POST("/:id/interview", handlers.Session.StartInterview)
		sessions.POST("/:id/answers", handlers.Session.SubmitAnswer)
		sessions.POST("/:id/coding", handlers.Session.StartCoding)
		sessions.POST("/:id/complete", handlers.Session.CompleteSession)
		sessions.GET("/:id/report", handlers.Session.GetReport)

		sessions.POST("/:id/proctor-events", ingestLimiter.Middleware(), handlers.Proctor.IngestEvent)
		sessions.GET("/:id/proctor-events", handlers.Proctor.RecentEvents)
		sessions.GET("/:id/monitor", handlers.Proctor.MonitorSSE)
	}

	// ─── WebSocket ─────────────────────────────────────────────────────
	ws := router.Group("/ws/v1")
	{
		ws.GET("/sessions/:id/coding", handlers.WS.CodingStream)
	}

	return router
}
