package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/skillcore/skillcore-backend/internal/config"
	"github.com/skillcore/skillcore-backend/internal/database"
	"github.com/skillcore/skillcore-backend/internal/event"
	"github.com/skillcore/skillcore-backend/internal/handler"
	"github.com/skillcore/skillcore-backend/internal/logger"
	"github.com/skillcore/skillcore-backend/internal/model"
	"github.com/skillcore/skillcore-backend/internal/notify"
	"github.com/skillcore/skillcore-backend/internal/repository"
	"github.com/skillcore/skillcore-backend/internal/router"
	"github.com/skillcore/skillcore-backend/internal/service"
	"github.com/skillcore/skillcore-backend/internal/validator"
	"github.com/skillcore/skillcore-backend/internal/worker"
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
		Bool("workers", cfg.WorkersEnabled).
		Msg("Starting SkillCore Backend")

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

	// ─── Initialize Repositories ───────────────────────────────────────
	districtRepo := repository.NewDistrictRepository(pool)
	schoolRepo := repository.NewSchoolRepository(pool)
	roleRepo := repository.NewRoleRepository(pool)
	staffRepo := repository.NewStaffRepository(pool)
	studentRepo := repository.NewStudentRepository(pool)
	guardianRepo := repository.NewGuardianRepository(pool)
	sectionRepo := repository.NewSectionRepository(pool)
	enrollmentRepo := repository.NewEnrollmentRepository(pool)
	assignmentRepo := repository.NewAssignmentRepository(pool)
	gradeRepo := repository.NewGradeRepository(pool)
	attendanceRepo := repository.NewAttendanceRepository(pool)
	conversationRepo := repository.NewConversationRepository(pool)
	announcementRepo := repository.NewAnnouncementRepository(pool)
	interventionRepo := repository.NewInterventionRepository(pool)
	notificationRepo := repository.NewNotificationRepository(pool)
	auditRepo := repository.NewAuditRepository(pool)
	settingRepo := repository.NewSettingRepository(pool)
	dashboardRepo := repository.NewDashboardRepository(pool)

	// ─── Event Publisher and Notification Channels ─────────────────────
	publisher := event.NewPublisher(rdb, log)

	dispatcher := notify.NewDispatcher(log)
	dispatcher.Register(model.ChannelEmail, notify.NewEmailProvider(cfg, log))
	dispatcher.Register(model.ChannelSMS, notify.NewSMSProvider(cfg, log))
	dispatcher.Register(model.ChannelPush, notify.NewPushProvider(cfg, log))

	// ─── Initialize Services ──────────────────────────────────────────
	authService := service.NewAuthService(cfg, rdb)
	schoolService := service.NewSchoolService(schoolRepo, districtRepo)
	roleService := service.NewRoleService(roleRepo)
	staffService := service.NewStaffService(staffRepo, roleRepo, schoolRepo, authService, log)
	studentService := service.NewStudentService(studentRepo, log)
	guardianService := service.NewGuardianService(guardianRepo, studentRepo, authService, dispatcher, cfg, log)
	sectionService := service.NewSectionService(sectionRepo, enrollmentRepo, studentRepo, staffRepo, publisher, rdb, cfg.SectionCacheTTL, log)
	gradebookService := service.NewGradebookService(sectionRepo, assignmentRepo, gradeRepo, enrollmentRepo, publisher, rdb, cfg.SectionCacheTTL, log)
	attendanceService := service.NewAttendanceService(sectionRepo, attendanceRepo, enrollmentRepo, publisher, log)
	messagingService := service.NewMessagingService(conversationRepo, guardianRepo, studentRepo, staffRepo, publisher, rdb, log)
	announcementService := service.NewAnnouncementService(announcementRepo, sectionRepo, publisher, log)
	interventionService := service.NewInterventionService(interventionRepo, studentRepo, publisher, log)
	notificationService := service.NewNotificationService(notificationRepo, guardianRepo, studentRepo, staffRepo, conversationRepo, announcementRepo, dispatcher, publisher, log)
	settingService := service.NewSettingService(settingRepo, log)
	mediaService := service.NewMediaService(cfg)
	dashboardService := service.NewDashboardService(dashboardRepo, interventionRepo)
	auditService := service.NewAuditService(auditRepo)

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Auth:         handler.NewAuthHandler(authService, staffService, guardianService, publisher),
		School:       handler.NewSchoolHandler(schoolService, publisher),
		Student:      handler.NewStudentHandler(studentService, guardianService, gradebookService, publisher),
		Guardian:     handler.NewGuardianHandler(guardianService, publisher),
		Portal:       handler.NewPortalHandler(guardianService, gradebookService, attendanceService, interventionService, announcementService, notificationService, publisher),
		Section:      handler.NewSectionHandler(sectionService, publisher),
		Gradebook:    handler.NewGradebookHandler(gradebookService, sectionService, publisher),
		Attendance:   handler.NewAttendanceHandler(attendanceService, studentService, publisher),
		Messaging:    handler.NewMessagingHandler(messagingService, publisher, rdb, log, cfg.AllowedOrigins),
		Announcement: handler.NewAnnouncementHandler(announcementService, publisher),
		Intervention: handler.NewInterventionHandler(interventionService, publisher),
		Notification: handler.NewNotificationHandler(notificationService, publisher),
		Staff:        handler.NewStaffHandler(staffService, publisher),
		Role:         handler.NewRoleHandler(roleService, publisher),
		Setting:      handler.NewSettingHandler(settingService, publisher),
		Media:        handler.NewMediaHandler(mediaService),
		Dashboard:    handler.NewDashboardHandler(dashboardService),
		Monitor:      handler.NewMonitorHandler(rdb, dashboardService, log),
		Audit:        handler.NewAuditHandler(auditService),
	}

	// ─── Start Background Workers ─────────────────────────────────────
	// Disabled when dedicated worker replicas (cmd/worker) own the queues.
	workerCtx, workerCancel := context.WithCancel(context.Background())

	if cfg.WorkersEnabled {
		recalcWorker := worker.NewRecalcWorker(gradeRepo, enrollmentRepo, sectionRepo, studentRepo, settingService, publisher, rdb, cfg, log)
		interventionWorker := worker.NewInterventionWorker(interventionService, attendanceService, settingService, sectionRepo, studentRepo, publisher, rdb, cfg, log)
		notificationWorker := worker.NewNotificationWorker(notificationService, rdb, cfg, log)
		auditWorker := worker.NewAuditWorker(auditRepo, rdb, cfg, log)

		go recalcWorker.Start(workerCtx)
		go interventionWorker.Start(workerCtx)
		go notificationWorker.Start(workerCtx)
		go auditWorker.Start(workerCtx)
	}

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(authService, staffRepo, handlers, cfg)

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
