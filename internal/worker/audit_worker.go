package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/skillcore/skillcore-backend/internal/config"
	"github.com/skillcore/skillcore-backend/internal/event"
	"github.com/skillcore/skillcore-backend/internal/model"
	"github.com/skillcore/skillcore-backend/internal/repository"
)

const (
	AuditBatchSize    = 50
	AuditBatchTimeout = 2 * time.Second
	AuditPollTimeout  = 1 * time.Second // Must be >= 1s to satisfy Redis
)

// AuditWorker persists audit.record events in bulk. The trail is
// append-only and writes are fire-and-forget from the API's point of
// view, so the worker retries hard before giving a row up: COPY first,
// row-by-row on failure, requeue what still fails.
type AuditWorker struct {
	auditRepo   *repository.AuditRepository
	rdb         *redis.Client
	maxAttempts int
	log         zerolog.Logger
}

func NewAuditWorker(auditRepo *repository.AuditRepository, rdb *redis.Client, cfg *config.Config, log zerolog.Logger) *AuditWorker {
	return &AuditWorker{
		auditRepo:   auditRepo,
		rdb:         rdb,
		maxAttempts: cfg.EventMaxAttempts,
		log:         log.With().Str("component", "audit_worker").Logger(),
	}
}

// auditItem keeps the envelope next to the built row so failed inserts
// can requeue with the attempt count intact.
type auditItem struct {
	env *event.Envelope
	row *model.AuditEvent
}

func (w *AuditWorker) Start(ctx context.Context) {
	w.log.Info().Msg("AuditWorker started")

	buffer := make([]*auditItem, 0, AuditBatchSize)
	lastFlushTime := time.Now()

	for {
		if len(buffer) > 0 {
			if len(buffer) >= AuditBatchSize || time.Since(lastFlushTime) >= AuditBatchTimeout {
				w.flushSafe(ctx, buffer)
				buffer = buffer[:0] // Clear buffer, keep capacity
				lastFlushTime = time.Now()
			}
		}

		select {
		case <-ctx.Done():
			w.shutdown(buffer)
			return
		default:
			// Continue
		}

		result, err := w.rdb.BLPop(ctx, AuditPollTimeout, config.QueueKey.Audit).Result()
		if err != nil {
			if err == redis.Nil {
				continue // Queue empty, loop back to check flush timer
			}
			if ctx.Err() != nil {
				return
			}
			w.log.Error().Err(err).Msg("Redis connection error, sleeping 3s")
			time.Sleep(3 * time.Second)
			continue
		}

		if len(result) < 2 {
			continue
		}

		item, ok := w.decode(ctx, result[1])
		if !ok {
			continue
		}
		buffer = append(buffer, item)
	}
}

// decode parses one queue entry. Malformed entries go straight to the
// dead letter list since no retry can fix them.
func (w *AuditWorker) decode(ctx context.Context, raw string) (*auditItem, bool) {
	var env event.Envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		w.log.Error().Err(err).Msg("Malformed event moved to dead letter list")
		w.rdb.RPush(ctx, config.QueueKey.DeadKey(config.QueueKey.Audit), raw)
		return nil, false
	}
	env.Attempt++

	var payload event.AuditRecordPayload
	if err := env.Decode(&payload); err != nil {
		w.log.Error().Err(err).Str("event_id", env.ID.String()).Msg("Undecodable payload moved to dead letter list")
		w.rdb.RPush(ctx, config.QueueKey.DeadKey(config.QueueKey.Audit), raw)
		return nil, false
	}

	return &auditItem{
		env: &env,
		row: &model.AuditEvent{
			DistrictID: env.DistrictID,
			SchoolID:   env.SchoolID,
			ActorKind:  payload.ActorKind,
			ActorID:    payload.ActorID,
			Action:     payload.Action,
			EntityType: payload.EntityType,
			EntityID:   payload.EntityID,
			Detail:     payload.Detail,
			OccurredAt: env.OccurredAt,
		},
	}, true
}

// flushSafe attempts bulk insert, then fallback insert, then requeue.
func (w *AuditWorker) flushSafe(ctx context.Context, batch []*auditItem) {
	rows := make([]*model.AuditEvent, 0, len(batch))
	for _, item := range batch {
		rows = append(rows, item.row)
	}

	if err := w.auditRepo.BulkInsert(ctx, rows); err != nil {
		w.log.Warn().Err(err).Int("count", len(batch)).Msg("Bulk insert failed, attempting row-by-row recovery")
		w.fallbackInsert(ctx, batch)
	}
}

func (w *AuditWorker) fallbackInsert(ctx context.Context, batch []*auditItem) {
	requeueList := make([]*auditItem, 0)

	for _, item := range batch {
		if err := w.auditRepo.Insert(ctx, item.row); err == nil {
			continue
		} else if item.env.Attempt >= w.maxAttempts {
			w.log.Error().Err(err).Str("event_id", item.env.ID.String()).Int("attempts", item.env.Attempt).
				Msg("Audit event exhausted attempts, moving to dead letter list")
			data, _ := json.Marshal(item.env)
			w.rdb.RPush(ctx, config.QueueKey.DeadKey(config.QueueKey.Audit), data)
		} else {
			w.log.Error().Err(err).Str("event_id", item.env.ID.String()).Msg("Insert failed, requeueing")
			requeueList = append(requeueList, item)
		}
	}

	if len(requeueList) > 0 {
		w.requeue(ctx, requeueList)
	}
}

func (w *AuditWorker) requeue(ctx context.Context, items []*auditItem) {
	// Use a pipeline to push everything back quickly
	pipe := w.rdb.Pipeline()
	for _, item := range items {
		data, _ := json.Marshal(item.env)
		pipe.RPush(ctx, config.QueueKey.Audit, data)
	}
	_, err := pipe.Exec(ctx)
	if err != nil {
		w.log.Error().Err(err).Msg("CRITICAL: Failed to requeue items to Redis. Data loss occurred.")
	} else {
		w.log.Info().Int("count", len(items)).Msg("Requeued failed items back to Redis")
		// Sleep a bit to avoid thrashing if the DB is down hard
		time.Sleep(2 * time.Second)
	}
}

func (w *AuditWorker) shutdown(buffer []*auditItem) {
	w.log.Info().Msg("Worker stopping, flushing remaining buffer...")

	// Give it 5 seconds to flush to DB
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if len(buffer) > 0 {
		w.flushSafe(shutdownCtx, buffer)
	}
}
