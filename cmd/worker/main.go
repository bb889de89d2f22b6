package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/skillcore/skillcore-backend/internal/config"
	"github.com/skillcore/skillcore-backend/internal/database"
	"github.com/skillcore/skillcore-backend/internal/event"
	"github.com/skillcore/skillcore-backend/internal/logger"
	"github.com/skillcore/skillcore-backend/internal/model"
	"github.com/skillcore/skillcore-backend/internal/notify"
	"github.com/skillcore/skillcore-backend/internal/repository"
	"github.com/skillcore/skillcore-backend/internal/service"
	"github.com/skillcore/skillcore-backend/internal/worker"
)

// Standalone event-worker replica. Runs all four queue consumers
// against the shared Redis queues; scale by running more replicas.
// The API server should then start with WORKERS_ENABLED=false.
func main() {
	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Int("concurrency", cfg.WorkerConcurrency).
		Int("max_attempts", cfg.EventMaxAttempts).
		Msg("Starting SkillCore event workers")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	studentRepo := repository.NewStudentRepository(pool)
	guardianRepo := repository.NewGuardianRepository(pool)
	staffRepo := repository.NewStaffRepository(pool)
	sectionRepo := repository.NewSectionRepository(pool)
	enrollmentRepo := repository.NewEnrollmentRepository(pool)
	gradeRepo := repository.NewGradeRepository(pool)
	conversationRepo := repository.NewConversationRepository(pool)
	announcementRepo := repository.NewAnnouncementRepository(pool)
	interventionRepo := repository.NewInterventionRepository(pool)
	notificationRepo := repository.NewNotificationRepository(pool)
	auditRepo := repository.NewAuditRepository(pool)
	settingRepo := repository.NewSettingRepository(pool)
	attendanceRepo := repository.NewAttendanceRepository(pool)

	publisher := event.NewPublisher(rdb, log)

	dispatcher := notify.NewDispatcher(log)
	dispatcher.Register(model.ChannelEmail, notify.NewEmailProvider(cfg, log))
	dispatcher.Register(model.ChannelSMS, notify.NewSMSProvider(cfg, log))
	dispatcher.Register(model.ChannelPush, notify.NewPushProvider(cfg, log))

	settingService := service.NewSettingService(settingRepo, log)
	attendanceService := service.NewAttendanceService(sectionRepo, attendanceRepo, enrollmentRepo, publisher, log)
	interventionService := service.NewInterventionService(interventionRepo, studentRepo, publisher, log)
	notificationService := service.NewNotificationService(notificationRepo, guardianRepo, studentRepo, staffRepo, conversationRepo, announcementRepo, dispatcher, publisher, log)

	recalcWorker := worker.NewRecalcWorker(gradeRepo, enrollmentRepo, sectionRepo, studentRepo, settingService, publisher, rdb, cfg, log)
	interventionWorker := worker.NewInterventionWorker(interventionService, attendanceService, settingService, sectionRepo, studentRepo, publisher, rdb, cfg, log)
	notificationWorker := worker.NewNotificationWorker(notificationService, rdb, cfg, log)
	auditWorker := worker.NewAuditWorker(auditRepo, rdb, cfg, log)

	workerCtx, workerCancel := context.WithCancel(context.Background())

	var wg sync.WaitGroup
	for _, start := range []func(context.Context){
		recalcWorker.Start,
		interventionWorker.Start,
		notificationWorker.Start,
		auditWorker.Start,
	} {
		wg.Add(1)
		go func(run func(context.Context)) {
			defer wg.Done()
			run(workerCtx)
		}(start)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down workers...")
	workerCancel()

	// Bounded drain: workers exit their poll loops on ctx.Done.
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		log.Warn().Msg("Worker drain timed out")
	}

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
