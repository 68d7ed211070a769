package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prepview/prepview-backend/internal/collaborator"
	"github.com/prepview/prepview-backend/internal/config"
	"github.com/prepview/prepview-backend/internal/database"
	"github.com/prepview/prepview-backend/internal/handler"
	"github.com/prepview/prepview-backend/internal/logger"
	"github.com/prepview/prepview-backend/internal/repository"
	"github.com/prepview/prepview-backend/internal/router"
	"github.com/prepview/prepview-backend/internal/service"
	"github.com/prepview/prepview-backend/internal/validator"
	"github.com/prepview/prepview-backend/internal/worker"
	"github.com/rs/zerolog"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("log_level", cfg.LogLevel).
		Msg("Starting PrepView Backend")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	// ─── Connect to Redis ──────────────────────────────────────────────
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	// ─── Initialize Collaborator Clients ───────────────────────────────
	sandbox := collaborator.NewSandboxClient(cfg.SandboxURL, cfg.SandboxAPIKey, log)
	llm := collaborator.NewLLMClient(cfg.LLMServiceURL, log)
	stt := collaborator.NewSTTClient(cfg.STTServiceURL, log)
	parser := collaborator.NewParserClient(cfg.ParserServiceURL, log)

	// ─── Initialize Repositories ───────────────────────────────────────
	sessionRepo := repository.NewSessionRepository(pool)

	// ─── Initialize Services ──────────────────────────────────────────
	proctorService := service.NewProctorService(rdb, log)
	compiler := service.NewReportCompiler(service.WeightedMean{
		Spoken: cfg.SpokenWeight,
		Coding: cfg.CodingWeight,
	})
	sessionService := service.NewSessionService(cfg, llm, llm, stt, llm, compiler, proctorService, rdb, log)
	documentService := service.NewDocumentService(cfg, parser, sessionService, log)

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Session:  handler.NewSessionHandler(sessionService, sessionRepo, log),
		Document: handler.NewDocumentHandler(documentService, log),
		Proctor:  handler.NewProctorHandler(rdb, sessionService, proctorService, log),
		WS:       handler.NewWSHandler(rdb, sessionService, sandbox, proctorService, log, cfg.AllowedOrigins),
	}

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())

	proctorWorker := worker.NewProctorWorker(pool, rdb, log)
	reportWorker := worker.NewReportWorker(sessionRepo, rdb, log)

	go proctorWorker.Start(workerCtx)
	go reportWorker.Start(workerCtx)

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(handlers, cfg)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: r,
	}

	// ─── Start Server in Goroutine ─────────────────────────────────────
	go func() {
		log.Info().Str("addr", ":"+cfg.ServerPort).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	// 1. Stop accepting new HTTP requests (5s timeout).
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Stop background workers and wait for queues to drain.
	workerCancel()
	time.Sleep(2 * time.Second) // Allow workers to drain.

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
