package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/skillcore/skillcore-backend/internal/config"
	"github.com/skillcore/skillcore-backend/internal/handler"
	"github.com/skillcore/skillcore-backend/internal/middleware"
	"github.com/skillcore/skillcore-backend/internal/model"
	"github.com/skillcore/skillcore-backend/internal/repository"
	"github.com/skillcore/skillcore-backend/internal/response"
	"github.com/skillcore/skillcore-backend/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Auth         *handler.AuthHandler
	School       *handler.SchoolHandler
	Student      *handler.StudentHandler
	Guardian     *handler.GuardianHandler
	Portal       *handler.PortalHandler
	Section      *handler.SectionHandler
	Gradebook    *handler.GradebookHandler
	Attendance   *handler.AttendanceHandler
	Messaging    *handler.MessagingHandler
	Announcement *handler.AnnouncementHandler
	Intervention *handler.InterventionHandler
	Notification *handler.NotificationHandler
	Staff        *handler.StaffHandler
	Role         *handler.RoleHandler
	Setting      *handler.SettingHandler
	Media        *handler.MediaHandler
	Dashboard    *handler.DashboardHandler
	Monitor      *handler.MonitorHandler
	Audit        *handler.AuditHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	authService *service.AuthService,
	staffRepo *repository.StaffRepository,
	handlers *Handlers,
	cfg *config.Config,
) *gin.Engine {
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

	// Apply brotli middleware globally.
	router.Use(middleware.Brotli())

	// Serve uploaded attachments statically with aggressive caching (1 year).
	uploadsGroup := router.Group("/uploads")
	uploadsGroup.Use(middleware.CacheControl(31536000))
	{
		uploadsGroup.Static("/", cfg.UploadDir)
	}

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	// Rate limiter for auth routes (30 requests per minute per IP).
	authLimiter := middleware.NewRateLimiter(30, time.Minute)

	// ─── 1. Auth Group (Public, Rate Limited) ──────────────────────────
	auth := router.Group("/api/v1/auth")
	auth.Use(authLimiter.Middleware())
	{
		auth.POST("/staff/login", handlers.Auth.StaffLogin)
		auth.POST("/guardian/login", handlers.Auth.GuardianLogin)
		auth.POST("/guardian/activate", handlers.Auth.GuardianActivate)

		// Authenticated profile routes
		auth.GET("/staff/me", middleware.RequireStaffJWT(authService), handlers.Auth.StaffProfile)
		auth.GET("/guardian/me", middleware.RequireGuardianJWT(authService), handlers.Auth.GuardianProfile)
	}

	// ─── 2. Guardian Portal Group (Guardian JWT) ───────────────────────
	guardianAPI := router.Group("/api/v1/guardian")
	guardianAPI.Use(middleware.RequireGuardianJWT(authService))
	{
		guardianAPI.GET("/children", handlers.Portal.ListChildren)
		guardianAPI.GET("/children/:id/grades", handlers.Portal.ChildGrades)
		guardianAPI.GET("/children/:id/sections/:section_id/work", handlers.Portal.ChildWork)
		guardianAPI.GET("/children/:id/attendance", handlers.Portal.ChildAttendance)
		guardianAPI.GET("/children/:id/interventions", handlers.Portal.ChildInterventions)

		guardianAPI.GET("/announcements", handlers.Portal.ListAnnouncements)
		guardianAPI.GET("/notifications", handlers.Portal.ListNotifications)
		guardianAPI.PUT("/preferences", handlers.Portal.UpdatePreferences)

		guardianAPI.POST("/conversations", handlers.Messaging.CreateGuardianConversation)
		guardianAPI.GET("/conversations", handlers.Messaging.ListConversations)
		guardianAPI.GET("/conversations/:id", handlers.Messaging.GetConversation)
		guardianAPI.GET("/conversations/:id/messages", handlers.Messaging.ListMessages)
		guardianAPI.POST("/conversations/:id/messages", handlers.Messaging.SendMessage)
		guardianAPI.POST("/conversations/:id/read", handlers.Messaging.MarkRead)
		guardianAPI.POST("/media/upload", handlers.Media.UploadAttachment)
	}

	// ─── 3. WebSocket Group (token query auth) ─────────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(middleware.RequireWSAuth(authService))
	{
		ws.GET("/conversations/:id/stream", handlers.Messaging.ConversationStream)
	}

	// ─── 4. Staff Group (JWT + RBAC) ───────────────────────────────────
	staffAPI := router.Group("/api/v1/staff")
	staffAPI.Use(
		middleware.RequireStaffJWT(authService),
		middleware.CheckStaffActive(staffRepo),
	)
	{
		// District and schools
		staffAPI.GET("/district",
			middleware.RequirePermission(model.PermissionSchoolsManage),
			handlers.School.GetDistrict,
		)
		staffAPI.GET("/schools",
			middleware.RequirePermission(model.PermissionSchoolsManage),
			handlers.School.ListSchools,
		)
		staffAPI.GET("/schools/:id",
			middleware.RequirePermission(model.PermissionSchoolsManage),
			handlers.School.GetSchool,
		)
		staffAPI.POST("/schools",
			middleware.RequirePermission(model.PermissionSchoolsManage),
			handlers.School.CreateSchool,
		)
		staffAPI.PUT("/schools/:id",
			middleware.RequirePermission(model.PermissionSchoolsManage),
			handlers.School.UpdateSchool,
		)

		// Students
		staffAPI.GET("/students",
			middleware.RequirePermission(model.PermissionStudentsRead),
			handlers.Student.ListStudents,
		)
		staffAPI.GET("/students/export",
			middleware.RequirePermission(model.PermissionStudentsRead),
			handlers.Student.ExportRoster,
		)
		staffAPI.POST("/students/import",
			middleware.RequirePermission(model.PermissionStudentsImport),
			handlers.Student.ImportRoster,
		)
		staffAPI.GET("/students/:id",
			middleware.RequirePermission(model.PermissionStudentsRead),
			handlers.Student.GetStudent,
		)
		staffAPI.POST("/students",
			middleware.RequirePermission(model.PermissionStudentsWrite),
			handlers.Student.CreateStudent,
		)
		staffAPI.PUT("/students/:id",
			middleware.RequirePermission(model.PermissionStudentsWrite),
			handlers.Student.UpdateStudent,
		)
		staffAPI.DELETE("/students/:id",
			middleware.RequirePermission(model.PermissionStudentsWrite),
			handlers.Student.DeleteStudent,
		)
		staffAPI.POST("/students/:id/restore",
			middleware.RequirePermission(model.PermissionStudentsWrite),
			handlers.Student.RestoreStudent,
		)
		staffAPI.GET("/students/:id/guardians",
			middleware.RequirePermission(model.PermissionGuardiansRead),
			handlers.Student.ListStudentGuardians,
		)
		staffAPI.GET("/students/:id/grades",
			middleware.RequirePermission(model.PermissionGradebookRead),
			handlers.Student.GetStudentGrades,
		)
		staffAPI.GET("/students/:id/attendance",
			middleware.RequirePermission(model.PermissionAttendanceRead),
			handlers.Attendance.StudentAttendance,
		)
		staffAPI.GET("/students/:id/interventions",
			middleware.RequirePermission(model.PermissionInterventionsRead),
			handlers.Intervention.ListStudentInterventions,
		)

		// Guardians
		staffAPI.GET("/guardians",
			middleware.RequirePermission(model.PermissionGuardiansRead),
			handlers.Guardian.ListGuardians,
		)
		staffAPI.GET("/guardians/:id",
			middleware.RequirePermission(model.PermissionGuardiansRead),
			handlers.Guardian.GetGuardian,
		)
		staffAPI.POST("/guardians",
			middleware.RequirePermission(model.PermissionGuardiansWrite),
			handlers.Guardian.CreateGuardian,
		)
		staffAPI.POST("/guardians/:id/reinvite",
			middleware.RequirePermission(model.PermissionGuardiansWrite),
			handlers.Guardian.ReinviteGuardian,
		)
		staffAPI.POST("/guardians/:id/links",
			middleware.RequirePermission(model.PermissionGuardiansWrite),
			handlers.Guardian.LinkStudent,
		)
		staffAPI.DELETE("/guardians/:id/links/:student_id",
			middleware.RequirePermission(model.PermissionGuardiansWrite),
			handlers.Guardian.UnlinkStudent,
		)

		// Sections and enrollment
		staffAPI.GET("/sections",
			middleware.RequirePermission(model.PermissionSectionsRead),
			handlers.Section.ListSections,
		)
		staffAPI.GET("/sections/:id",
			middleware.RequirePermission(model.PermissionSectionsRead),
			handlers.Section.GetSection,
		)
		staffAPI.POST("/sections",
			middleware.RequirePermission(model.PermissionSectionsWrite),
			handlers.Section.CreateSection,
		)
		staffAPI.PUT("/sections/:id",
			middleware.RequirePermission(model.PermissionSectionsWrite),
			handlers.Section.UpdateSection,
		)
		staffAPI.DELETE("/sections/:id",
			middleware.RequirePermission(model.PermissionSectionsWrite),
			handlers.Section.DeleteSection,
		)
		staffAPI.GET("/sections/:id/roster",
			middleware.RequirePermission(model.PermissionSectionsRead),
			handlers.Section.ListRoster,
		)
		staffAPI.GET("/sections/:id/roster/export",
			middleware.RequirePermission(model.PermissionSectionsRead),
			handlers.Section.ExportRoster,
		)
		staffAPI.POST("/sections/:id/roster",
			middleware.RequirePermission(model.PermissionSectionsWrite),
			handlers.Section.EnrollStudent,
		)
		staffAPI.DELETE("/sections/:id/roster/:student_id",
			middleware.RequirePermission(model.PermissionSectionsWrite),
			handlers.Section.UnenrollStudent,
		)

		// Gradebook: categories, assignments, grades, grid
		staffAPI.GET("/sections/:id/categories",
			middleware.RequirePermission(model.PermissionGradebookRead),
			handlers.Gradebook.ListCategories,
		)
		staffAPI.POST("/sections/:id/categories",
			middleware.RequirePermission(model.PermissionGradebookWrite),
			handlers.Gradebook.CreateCategory,
		)
		staffAPI.PUT("/sections/:id/categories/:category_id",
			middleware.RequirePermission(model.PermissionGradebookWrite),
			handlers.Gradebook.UpdateCategory,
		)
		staffAPI.DELETE("/sections/:id/categories/:category_id",
			middleware.RequirePermission(model.PermissionGradebookWrite),
			handlers.Gradebook.DeleteCategory,
		)
		staffAPI.GET("/sections/:id/assignments",
			middleware.RequirePermission(model.PermissionGradebookRead),
			handlers.Gradebook.ListAssignments,
		)
		staffAPI.GET("/sections/:id/assignments/:assignment_id",
			middleware.RequirePermission(model.PermissionGradebookRead),
			handlers.Gradebook.GetAssignment,
		)
		staffAPI.POST("/sections/:id/assignments",
			middleware.RequirePermission(model.PermissionGradebookWrite),
			handlers.Gradebook.CreateAssignment,
		)
		staffAPI.PUT("/sections/:id/assignments/:assignment_id",
			middleware.RequirePermission(model.PermissionGradebookWrite),
			handlers.Gradebook.UpdateAssignment,
		)
		staffAPI.DELETE("/sections/:id/assignments/:assignment_id",
			middleware.RequirePermission(model.PermissionGradebookWrite),
			handlers.Gradebook.DeleteAssignment,
		)
		staffAPI.GET("/sections/:id/assignments/:assignment_id/grades",
			middleware.RequirePermission(model.PermissionGradebookRead),
			handlers.Gradebook.ListGrades,
		)
		staffAPI.PUT("/sections/:id/assignments/:assignment_id/grades",
			middleware.RequirePermission(model.PermissionGradebookWrite),
			handlers.Gradebook.UpsertGrade,
		)
		staffAPI.POST("/sections/:id/assignments/:assignment_id/grades/bulk",
			middleware.RequirePermission(model.PermissionGradebookWrite),
			handlers.Gradebook.BulkUpsertGrades,
		)
		staffAPI.GET("/sections/:id/standings",
			middleware.RequirePermission(model.PermissionGradebookRead),
			handlers.Gradebook.ListStandings,
		)
		staffAPI.GET("/sections/:id/gradebook",
			middleware.RequirePermission(model.PermissionGradebookRead),
			handlers.Gradebook.GetGrid,
		)
		staffAPI.GET("/sections/:id/gradebook/export",
			middleware.RequirePermission(model.PermissionGradebookRead),
			handlers.Gradebook.ExportGrid,
		)

		// Attendance
		staffAPI.POST("/sections/:id/attendance",
			middleware.RequirePermission(model.PermissionAttendanceWrite),
			handlers.Attendance.RecordAttendance,
		)
		staffAPI.GET("/sections/:id/attendance",
			middleware.RequirePermission(model.PermissionAttendanceRead),
			handlers.Attendance.ListSectionAttendance,
		)
		staffAPI.GET("/attendance/summary",
			middleware.RequirePermission(model.PermissionAttendanceRead),
			handlers.Attendance.SchoolDailySummary,
		)

		// Messaging
		staffAPI.POST("/conversations",
			middleware.RequirePermission(model.PermissionMessagesSend),
			handlers.Messaging.CreateConversation,
		)
		staffAPI.GET("/conversations", handlers.Messaging.ListConversations)
		staffAPI.GET("/conversations/:id", handlers.Messaging.GetConversation)
		staffAPI.GET("/conversations/:id/messages", handlers.Messaging.ListMessages)
		staffAPI.POST("/conversations/:id/messages",
			middleware.RequirePermission(model.PermissionMessagesSend),
			handlers.Messaging.SendMessage,
		)
		staffAPI.POST("/conversations/:id/read", handlers.Messaging.MarkRead)

		// Announcements
		staffAPI.GET("/announcements", handlers.Announcement.ListAnnouncements)
		staffAPI.GET("/announcements/:id", handlers.Announcement.GetAnnouncement)
		staffAPI.POST("/announcements",
			middleware.RequirePermission(model.PermissionAnnouncementsWrite),
			handlers.Announcement.CreateAnnouncement,
		)
		staffAPI.PUT("/announcements/:id",
			middleware.RequirePermission(model.PermissionAnnouncementsWrite),
			handlers.Announcement.UpdateAnnouncement,
		)
		staffAPI.POST("/announcements/:id/publish",
			middleware.RequirePermission(model.PermissionAnnouncementsWrite),
			handlers.Announcement.PublishAnnouncement,
		)
		staffAPI.DELETE("/announcements/:id",
			middleware.RequirePermission(model.PermissionAnnouncementsWrite),
			handlers.Announcement.DeleteAnnouncement,
		)

		// Interventions (MTSS)
		staffAPI.GET("/interventions",
			middleware.RequirePermission(model.PermissionInterventionsRead),
			handlers.Intervention.ListInterventions,
		)
		staffAPI.GET("/interventions/:id",
			middleware.RequirePermission(model.PermissionInterventionsRead),
			handlers.Intervention.GetIntervention,
		)
		staffAPI.POST("/interventions",
			middleware.RequirePermission(model.PermissionInterventionsWrite),
			handlers.Intervention.CreateIntervention,
		)
		staffAPI.PUT("/interventions/:id",
			middleware.RequirePermission(model.PermissionInterventionsWrite),
			handlers.Intervention.UpdateIntervention,
		)
		staffAPI.GET("/interventions/:id/notes",
			middleware.RequirePermission(model.PermissionInterventionsRead),
			handlers.Intervention.ListInterventionNotes,
		)
		staffAPI.POST("/interventions/:id/notes",
			middleware.RequirePermission(model.PermissionInterventionsWrite),
			handlers.Intervention.AddInterventionNote,
		)

		// Notification log
		staffAPI.GET("/notifications",
			middleware.RequirePermission(model.PermissionNotificationsRead),
			handlers.Notification.ListNotifications,
		)
		staffAPI.GET("/notifications/:id",
			middleware.RequirePermission(model.PermissionNotificationsRead),
			handlers.Notification.GetNotification,
		)
		staffAPI.POST("/notifications/:id/retry",
			middleware.RequirePermission(model.PermissionNotificationsRetry),
			handlers.Notification.RetryNotification,
		)

		// Staff account management
		staffAPI.GET("/staff",
			middleware.RequirePermission(model.PermissionStaffRead),
			handlers.Staff.ListStaff,
		)
		staffAPI.GET("/staff/:id",
			middleware.RequirePermission(model.PermissionStaffRead),
			handlers.Staff.GetStaff,
		)
		staffAPI.POST("/staff",
			middleware.RequirePermission(model.PermissionStaffWrite),
			handlers.Staff.CreateStaff,
		)
		staffAPI.PUT("/staff/:id",
			middleware.RequirePermission(model.PermissionStaffWrite),
			handlers.Staff.UpdateStaff,
		)
		staffAPI.POST("/staff/:id/reset-password",
			middleware.RequirePermission(model.PermissionStaffWrite),
			handlers.Staff.ResetStaffPassword,
		)
		staffAPI.DELETE("/staff/:id",
			middleware.RequirePermission(model.PermissionStaffWrite),
			handlers.Staff.DeleteStaff,
		)

		// Roles
		staffAPI.GET("/roles",
			middleware.RequirePermission(model.PermissionRolesRead),
			handlers.Role.ListRoles,
		)
		staffAPI.GET("/roles/:id",
			middleware.RequirePermission(model.PermissionRolesRead),
			handlers.Role.GetRole,
		)
		staffAPI.POST("/roles",
			middleware.RequirePermission(model.PermissionRolesWrite),
			handlers.Role.CreateRole,
		)
		staffAPI.PUT("/roles/:id",
			middleware.RequirePermission(model.PermissionRolesWrite),
			handlers.Role.UpdateRole,
		)
		staffAPI.DELETE("/roles/:id",
			middleware.RequirePermission(model.PermissionRolesWrite),
			handlers.Role.DeleteRole,
		)
		staffAPI.GET("/permissions",
			middleware.RequirePermission(model.PermissionRolesRead),
			handlers.Role.ListPermissions,
		)

		// App settings
		settingsGroup := staffAPI.Group("/settings")
		{
			settingsGroup.GET("", middleware.RequirePermission(model.PermissionSettingsRead), handlers.Setting.GetAllSettings)
			settingsGroup.PUT("", middleware.RequirePermission(model.PermissionSettingsWrite), handlers.Setting.UpdateSettings)
		}

		// Attachment upload
		staffAPI.POST("/media/upload",
			middleware.RequirePermission(model.PermissionMediaUpload),
			handlers.Media.UploadAttachment,
		)

		// Dashboard (open to all staff)
		staffAPI.GET("/dashboard", handlers.Dashboard.GetDashboard)

		// Live event feed (permission enforced inside the handler so it
		// can respond before the SSE stream starts)
		staffAPI.GET("/events/stream", handlers.Monitor.SchoolEventStream)

		// Audit trail
		staffAPI.GET("/audit",
			middleware.RequirePermission(model.PermissionAuditRead),
			handlers.Audit.ListAuditEvents,
		)
	}

	return router
}
