package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/prepview/prepview-backend/internal/config"
	"github.com/prepview/prepview-backend/internal/repository"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	ReportBatchSize    = 50
	ReportBatchTimeout = 2 * time.Second
	ReportPollTimeout  = 1 * time.Second
)

// ReportWorker drains the completion queue into Postgres. Once a report row
// lands, the session survives memory eviction and the working-copy buffers
// in Redis are no longer needed.
type ReportWorker struct {
	repo *repository.SessionRepository
	rdb  *redis.Client
	log  zerolog.Logger
}

func NewReportWorker(repo *repository.SessionRepository, rdb *redis.Client, log zerolog.Logger) *ReportWorker {
	return &ReportWorker{
		repo: repo,
		rdb:  rdb,
		log:  log.With().Str("component", "report_worker").Logger(),
	}
}

type reportPayload struct {
	SessionID    string          `json:"session_id"`
	OverallScore float64         `json:"overall_score"`
	Report       json.RawMessage `json:"report"`
	TaskIDs      []string        `json:"task_ids"`
	CompletedAt  int64           `json:"completed_at"`
}

// ----------------------------------------------------------------
// Worker loop with batching
// ----------------------------------------------------------------

func (w *ReportWorker) Start(ctx context.Context) {
	w.log.Info().Msg("ReportWorker started")

	batch := make([]*reportPayload, 0, ReportBatchSize)
	lastFlush := time.Now()

	for {
		// Should flush?
		if len(batch) > 0 &&
			(len(batch) >= ReportBatchSize || time.Since(lastFlush) >= ReportBatchTimeout) {

			w.flushSafe(ctx, batch)
			batch = batch[:0]
			lastFlush = time.Now()
		}

		select {
		case <-ctx.Done():
			w.log.Info().Msg("Shutdown requested. Flushing remaining batch...")
			w.flushSafe(context.Background(), batch)
			return

		default:
			item, err := w.rdb.BLPop(ctx, ReportPollTimeout, config.WorkerKey.PersistReportsQueue).Result()
			if err != nil {
				if err != redis.Nil && ctx.Err() == nil {
					w.log.Error().Err(err).Msg("BLPop error")
				}
				continue
			}

			if len(item) < 2 {
				continue
			}

			var p reportPayload
			if err := json.Unmarshal([]byte(item[1]), &p); err != nil {
				w.log.Error().Err(err).Msg("Invalid JSON payload")
				continue
			}

			batch = append(batch, &p)
		}
	}
}

// ----------------------------------------------------------------
// Batch upsert wrapper
// ----------------------------------------------------------------

func (w *ReportWorker) flushSafe(ctx context.Context, batch []*reportPayload) {
	if len(batch) == 0 {
		return
	}

	if err := w.bulkUpsert(ctx, batch); err != nil {
		w.log.Warn().Err(err).Msg("bulk report upsert failed, using fallback")

		for _, p := range batch {
			if err := w.persistSingle(ctx, p); err != nil {
				w.log.Error().Err(err).Str("session_id", p.SessionID).Msg("persistSingle failed, requeueing")
				raw, _ := json.Marshal(p)
				w.rdb.RPush(ctx, config.WorkerKey.PersistReportsQueue, raw)
			}
		}
		return
	}

	// Reports are durable now; drop the leftover working-copy buffers.
	w.bulkClearWorkingCopies(ctx, batch)
}

func (w *ReportWorker) bulkUpsert(ctx context.Context, batch []*reportPayload) error {
	n := len(batch)

	ids := make([]uuid.UUID, 0, n)
	scores := make([]float64, 0, n)
	reports := make([]string, 0, n)
	completedAts := make([]time.Time, 0, n)

	for _, p := range batch {
		id, err := uuid.Parse(p.SessionID)
		if err != nil {
			return err
		}
		ids = append(ids, id)
		scores = append(scores, p.OverallScore)
		reports = append(reports, string(p.Report))
		completedAts = append(completedAts, time.Unix(p.CompletedAt, 0))
	}

	return w.repo.BulkUpsert(ctx, ids, scores, reports, completedAts)
}

// ----------------------------------------------------------------
// Bulk Redis DEL for clearing working copies
// ----------------------------------------------------------------

func (w *ReportWorker) bulkClearWorkingCopies(ctx context.Context, batch []*reportPayload) {
	pipe := w.rdb.Pipeline()

	for _, p := range batch {
		for _, taskID := range p.TaskIDs {
			pipe.Del(ctx, config.CacheKey.TaskWorkingCopyKey(p.SessionID, taskID))
		}
	}

	_, _ = pipe.Exec(ctx)
}

// ----------------------------------------------------------------
// Fallback single upsert
// ----------------------------------------------------------------

func (w *ReportWorker) persistSingle(ctx context.Context, p *reportPayload) error {
	id, err := uuid.Parse(p.SessionID)
	if err != nil {
		return err
	}
	return w.repo.Upsert(ctx, id, p.OverallScore, p.Report, time.Unix(p.CompletedAt, 0))
}
