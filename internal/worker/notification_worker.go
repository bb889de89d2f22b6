package worker

import (
	"context"
	"errors"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/skillcore/skillcore-backend/internal/config"
	"github.com/skillcore/skillcore-backend/internal/event"
	"github.com/skillcore/skillcore-backend/internal/service"
)

// NotificationWorker drains the notifications queue. Fan-out events
// (messages, announcements, plans, alerts) expand into per-guardian
// per-channel rows, each of which comes back through the same queue as
// a notification.dispatch to be delivered. Delivery runs across a pool
// of goroutines since provider calls dominate the latency.
type NotificationWorker struct {
	notificationService *service.NotificationService
	consumer            *event.Consumer
	concurrency         int
	log                 zerolog.Logger
}

func NewNotificationWorker(
	notificationService *service.NotificationService,
	rdb *redis.Client,
	cfg *config.Config,
	log zerolog.Logger,
) *NotificationWorker {
	w := &NotificationWorker{
		notificationService: notificationService,
		consumer:            event.NewConsumer(rdb, log, config.QueueKey.Notifications, cfg.EventMaxAttempts, cfg.EventRetryBase),
		concurrency:         cfg.WorkerConcurrency,
		log:                 log.With().Str("component", "notification_worker").Logger(),
	}
	w.consumer.OnDead = w.recordDead
	return w
}

func (w *NotificationWorker) Start(ctx context.Context) {
	w.log.Info().Int("concurrency", w.concurrency).Msg("NotificationWorker started")
	go w.consumer.RunRetryPump(ctx)

	var wg sync.WaitGroup
	for i := 0; i < w.concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.consumer.Run(ctx, w.handle)
		}()
	}
	wg.Wait()
}

func (w *NotificationWorker) handle(ctx context.Context, env *event.Envelope) error {
	if env.Type == event.TypeNotificationDispatch {
		var payload event.NotificationDispatchPayload
		if err := env.Decode(&payload); err != nil {
			return err
		}
		return w.notificationService.Deliver(ctx, payload.NotificationID, env.Attempt)
	}

	err := w.notificationService.ExpandEnvelope(ctx, env)
	if errors.Is(err, service.ErrUnknownEventType) {
		// Retrying cannot make the type known, so drop it here.
		w.log.Warn().Str("type", env.Type).Str("event_id", env.ID.String()).Msg("Unhandled event type on notifications queue")
		return nil
	}
	return err
}

// recordDead keeps the notification row honest when its dispatch event
// exhausts the retry schedule.
func (w *NotificationWorker) recordDead(ctx context.Context, env *event.Envelope, cause error) {
	if env.Type != event.TypeNotificationDispatch {
		return
	}
	var payload event.NotificationDispatchPayload
	if err := env.Decode(&payload); err != nil {
		w.log.Error().Err(err).Str("event_id", env.ID.String()).Msg("Dead dispatch event had undecodable payload")
		return
	}
	w.notificationService.MarkDead(ctx, payload.NotificationID, env.Attempt, cause.Error())
}
