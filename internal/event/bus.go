package event

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/skillcore/skillcore-backend/internal/config"
	"github.com/skillcore/skillcore-backend/internal/model"
)

// maxRetryDelay caps the exponential backoff no matter how high the
// attempt counter climbs.
const maxRetryDelay = 15 * time.Minute

// RetryDelay returns the wait before the given attempt is retried:
// base doubled for every prior attempt, capped at maxRetryDelay.
func RetryDelay(base time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	delay := base
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= maxRetryDelay {
			return maxRetryDelay
		}
	}

	if delay > maxRetryDelay {
		return maxRetryDelay
	}
	return delay
}

// Publisher pushes envelopes onto Redis list queues and mirrors them to
// the school's pub/sub feed so live monitors see traffic as it happens.
type Publisher struct {
	redis *redis.Client
	log   zerolog.Logger
}

func NewPublisher(redisClient *redis.Client, log zerolog.Logger) *Publisher {
	return &Publisher{
		redis: redisClient,
		log:   log.With().Str("component", "event_publisher").Logger(),
	}
}

// Publish enqueues the envelope on queue and broadcasts it to the
// school feed channel. The broadcast is best effort; queue placement
// is the delivery guarantee.
func (p *Publisher) Publish(ctx context.Context, queue string, env *Envelope) error {
	raw, err := json.Marshal(env)
	if err != nil {
		return err
	}

	if err := p.redis.RPush(ctx, queue, raw).Err(); err != nil {
		return err
	}

	if env.SchoolID > 0 {
		channel := config.CacheKey.SchoolFeedChannel(env.SchoolID)
		if err := p.redis.Publish(ctx, channel, raw).Err(); err != nil {
			p.log.Warn().Err(err).Str("channel", channel).Msg("Feed broadcast failed")
		}
	}

	return nil
}

// Broadcast mirrors a feed-only envelope to the school channel without
// queueing it. Used for events no worker consumes.
func (p *Publisher) Broadcast(ctx context.Context, env *Envelope) error {
	raw, err := json.Marshal(env)
	if err != nil {
		return err
	}

	if env.SchoolID <= 0 {
		return nil
	}

	return p.redis.Publish(ctx, config.CacheKey.SchoolFeedChannel(env.SchoolID), raw).Err()
}

// Audit enqueues an audit trail record. Best effort: a Redis outage
// must never fail the request that triggered the audit entry.
func (p *Publisher) Audit(ctx context.Context, scope model.TenantScope, actorKind string, actorID int, action, entityType, entityID string, detail any) {
	var rawDetail json.RawMessage
	if detail != nil {
		if b, err := json.Marshal(detail); err == nil {
			rawDetail = b
		}
	}

	env, err := NewEnvelope(TypeAuditRecord, scope, AuditRecordPayload{
		ActorKind:  actorKind,
		ActorID:    actorID,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Detail:     rawDetail,
	})
	if err != nil {
		p.log.Warn().Err(err).Str("action", action).Msg("Failed to build audit event")
		return
	}

	raw, err := json.Marshal(env)
	if err != nil {
		p.log.Warn().Err(err).Str("action", action).Msg("Failed to encode audit event")
		return
	}

	if err := p.redis.RPush(ctx, config.QueueKey.Audit, raw).Err(); err != nil {
		p.log.Warn().Err(err).Str("action", action).Msg("Failed to enqueue audit event")
	}
}

// Handler processes one envelope. Returning a non-nil error schedules
// a retry (or dead-letters the envelope once attempts are exhausted).
type Handler func(ctx context.Context, env *Envelope) error

// DeadHook runs when an envelope is moved to the dead letter list,
// after the final failed attempt.
type DeadHook func(ctx context.Context, env *Envelope, cause error)

// Consumer runs blocking-pop loops against one queue. Multiple
// consumers on the same queue compete for items, which is how worker
// concurrency and horizontal replicas both scale out.
type Consumer struct {
	redis       *redis.Client
	log         zerolog.Logger
	queue       string
	maxAttempts int
	retryBase   time.Duration

	// OnDead, when set, observes envelopes entering the dead letter
	// list. It must not block for long.
	OnDead DeadHook
}

func NewConsumer(redisClient *redis.Client, log zerolog.Logger, queue string, maxAttempts int, retryBase time.Duration) *Consumer {
	return &Consumer{
		redis:       redisClient,
		log:         log.With().Str("component", "event_consumer").Str("queue", queue).Logger(),
		queue:       queue,
		maxAttempts: maxAttempts,
		retryBase:   retryBase,
	}
}

// Run consumes the queue until ctx is cancelled. Malformed payloads go
// straight to the dead letter list; handler failures go through the
// retry schedule first.
func (c *Consumer) Run(ctx context.Context, handle Handler) {
	c.log.Info().Msg("Consumer started")

	for {
		select {
		case <-ctx.Done():
			c.log.Info().Msg("Consumer stopped")
			return
		default:
		}

		result, err := c.redis.BLPop(ctx, 1*time.Second, c.queue).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if ctx.Err() != nil {
				c.log.Info().Msg("Consumer stopped")
				return
			}
			c.log.Error().Err(err).Msg("Queue pop failed")
			time.Sleep(time.Second)
			continue
		}

		if len(result) < 2 {
			continue
		}

		var env Envelope
		if err := json.Unmarshal([]byte(result[1]), &env); err != nil {
			c.log.Error().Err(err).Msg("Malformed event moved to dead letter list")
			c.redis.RPush(ctx, config.QueueKey.DeadKey(c.queue), result[1])
			continue
		}

		env.Attempt++
		if err := handle(ctx, &env); err != nil {
			c.Fail(ctx, &env, err)
		}
	}
}

// RunRetryPump moves due retry entries back onto the queue once per
// second until ctx is cancelled. Safe to run on every replica: ZRem
// arbitrates so each entry is requeued exactly once.
func (c *Consumer) RunRetryPump(ctx context.Context) {
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.pumpDue(ctx)
		}
	}
}

func (c *Consumer) pumpDue(ctx context.Context) {
	retryKey := config.QueueKey.RetryKey(c.queue)
	now := strconv.FormatInt(time.Now().UnixMilli(), 10)

	members, err := c.redis.ZRangeByScore(ctx, retryKey, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   now,
		Count: 100,
	}).Result()
	if err != nil || len(members) == 0 {
		return
	}

	for _, member := range members {
		removed, err := c.redis.ZRem(ctx, retryKey, member).Result()
		if err != nil || removed == 0 {
			continue
		}
		if err := c.redis.RPush(ctx, c.queue, member).Err(); err != nil {
			c.log.Error().Err(err).Msg("Failed to requeue retry entry")
		}
	}
}

// Fail sends an envelope through the retry schedule, dead-lettering it
// once its attempts are spent. Run calls this for handler errors;
// batch-style workers call it directly for items that fail a flush.
func (c *Consumer) Fail(ctx context.Context, env *Envelope, cause error) {
	raw, err := json.Marshal(env)
	if err != nil {
		c.log.Error().Err(err).Str("event_id", env.ID.String()).Msg("Failed to encode envelope for retry")
		return
	}

	if env.Attempt >= c.maxAttempts {
		c.log.Error().
			Err(cause).
			Str("event_id", env.ID.String()).
			Str("event_type", env.Type).
			Int("attempts", env.Attempt).
			Msg("Event exhausted retries, moved to dead letter list")

		if err := c.redis.RPush(ctx, config.QueueKey.DeadKey(c.queue), raw).Err(); err != nil {
			c.log.Error().Err(err).Str("event_id", env.ID.String()).Msg("Failed to dead letter event")
		}
		if c.OnDead != nil {
			c.OnDead(ctx, env, cause)
		}
		return
	}

	delay := RetryDelay(c.retryBase, env.Attempt)
	score := float64(time.Now().Add(delay).UnixMilli())

	c.log.Warn().
		Err(cause).
		Str("event_id", env.ID.String()).
		Str("event_type", env.Type).
		Int("attempt", env.Attempt).
		Dur("retry_in", delay).
		Msg("Event handler failed, retry scheduled")

	if err := c.redis.ZAdd(ctx, config.QueueKey.RetryKey(c.queue), redis.Z{
		Score:  score,
		Member: raw,
	}).Err(); err != nil {
		c.log.Error().Err(err).Str("event_id", env.ID.String()).Msg("Failed to schedule retry")
	}
}
