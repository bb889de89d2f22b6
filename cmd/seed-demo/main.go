package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/skillcore/skillcore-backend/internal/config"
	"github.com/skillcore/skillcore-backend/internal/database"
	"github.com/skillcore/skillcore-backend/internal/event"
	"github.com/skillcore/skillcore-backend/internal/logger"
	"github.com/skillcore/skillcore-backend/internal/model"
	"github.com/skillcore/skillcore-backend/internal/repository"
)

// Seeds a complete demo district: school, roles, staff, students with
// linked guardians, sections with categories and assignments, grades,
// and two weeks of attendance. Every account uses the password below.
const demoPassword = "skillcore-demo"

func main() {
	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
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
	settingRepo := repository.NewSettingRepository(pool)
	publisher := event.NewPublisher(rdb, log)

	rng := rand.New(rand.NewSource(42)) // Deterministic demo data.

	hash, err := bcrypt.GenerateFromPassword([]byte(demoPassword), cfg.BcryptCost)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to hash demo password")
	}
	passwordHash := string(hash)

	fmt.Println("=== Seeding SkillCore demo district ===")

	// ─── District and school ───────────────────────────────────────────
	district, err := districtRepo.GetByCode(ctx, "LAKESIDE")
	if errors.Is(err, pgx.ErrNoRows) {
		district = &model.District{Name: "Lakeside Unified School District", Code: "LAKESIDE"}
		if err := districtRepo.Create(ctx, district); err != nil {
			log.Fatal().Err(err).Msg("Failed to create district")
		}
	} else if err != nil {
		log.Fatal().Err(err).Msg("Failed to look up district")
	} else {
		fmt.Println("Demo district already exists; continuing adds nothing.")
		return
	}
	scope := model.TenantScope{DistrictID: district.ID}

	school := &model.School{DistrictID: district.ID, Name: "Lakeside Middle School", Code: "LMS", Timezone: "America/Chicago"}
	if err := schoolRepo.Create(ctx, school); err != nil {
		log.Fatal().Err(err).Msg("Failed to create school")
	}
	scope.SchoolID = school.ID
	fmt.Printf("District %d / school %d\n", district.ID, school.ID)

	// ─── Roles ─────────────────────────────────────────────────────────
	adminRoleID := mustRole(ctx, log, roleRepo, district.ID, "District Admin", model.AllPermissions)
	teacherRoleID := mustRole(ctx, log, roleRepo, district.ID, "Teacher", []model.Permission{
		model.PermissionStudentsRead,
		model.PermissionGuardiansRead,
		model.PermissionSectionsRead,
		model.PermissionSectionsWrite,
		model.PermissionGradebookRead,
		model.PermissionGradebookWrite,
		model.PermissionAttendanceRead,
		model.PermissionAttendanceWrite,
		model.PermissionMessagesSend,
		model.PermissionAnnouncementsWrite,
		model.PermissionInterventionsRead,
		model.PermissionMediaUpload,
	})
	counselorRoleID := mustRole(ctx, log, roleRepo, district.ID, "Counselor", []model.Permission{
		model.PermissionStudentsRead,
		model.PermissionGuardiansRead,
		model.PermissionSectionsRead,
		model.PermissionGradebookRead,
		model.PermissionAttendanceRead,
		model.PermissionMessagesSend,
		model.PermissionInterventionsRead,
		model.PermissionInterventionsWrite,
		model.PermissionNotificationsRead,
	})

	// ─── Staff ─────────────────────────────────────────────────────────
	seedStaff(ctx, log, staffRepo, district.ID, school.ID, adminRoleID, "principal@lakeside.demo", "Dana", "Whitfield", "Principal", passwordHash)
	teacherA := seedStaff(ctx, log, staffRepo, district.ID, school.ID, teacherRoleID, "m.alvarez@lakeside.demo", "Maria", "Alvarez", "Math Teacher", passwordHash)
	teacherB := seedStaff(ctx, log, staffRepo, district.ID, school.ID, teacherRoleID, "j.okafor@lakeside.demo", "James", "Okafor", "Science Teacher", passwordHash)
	seedStaff(ctx, log, staffRepo, district.ID, school.ID, counselorRoleID, "p.nguyen@lakeside.demo", "Phuong", "Nguyen", "School Counselor", passwordHash)

	// ─── Students and guardians ────────────────────────────────────────
	firstNames := []string{
		"Olivia", "Liam", "Emma", "Noah", "Ava", "Ethan", "Sophia", "Mason",
		"Isabella", "Logan", "Mia", "Lucas", "Charlotte", "Jackson", "Amelia",
		"Aiden", "Harper", "Carter", "Evelyn", "Jayden", "Abigail", "Dylan",
		"Emily", "Luke",
	}
	lastNames := []string{
		"Reid", "Castillo", "Okafor", "Brennan", "Ito", "Kowalski", "Marsh",
		"Delgado", "Fontaine", "Aliyev", "Thompson", "Barnes", "Singh",
		"Moreau", "Petrov", "Whitaker", "Nakamura", "OConnell", "Vargas",
		"Lindqvist", "Hassan", "Boyd", "Torres", "Kim",
	}

	students := make([]*model.Student, 0, len(firstNames))
	for i, first := range firstNames {
		last := lastNames[i]
		s := &model.Student{
			DistrictID:    district.ID,
			SchoolID:      school.ID,
			StudentNumber: fmt.Sprintf("LMS%04d", 1000+i),
			FirstName:     first,
			LastName:      last,
			GradeLevel:    7,
			HasIEP:        i%8 == 3,
			Has504:        i%8 == 6,
		}
		if err := studentRepo.Create(ctx, s); err != nil {
			log.Fatal().Err(err).Str("student", first).Msg("Failed to create student")
		}
		students = append(students, s)

		g := &model.Guardian{
			DistrictID: district.ID,
			Email:      fmt.Sprintf("parent.%s%d@example.com", last, i),
			FirstName:  "Alex",
			LastName:   last,
			Phone:      fmt.Sprintf("+1555010%04d", i),
		}
		if err := guardianRepo.Create(ctx, g); err != nil {
			log.Fatal().Err(err).Str("guardian", g.Email).Msg("Failed to create guardian")
		}
		// Mark activated so demo logins work immediately.
		if err := guardianRepo.Activate(ctx, g.ID, passwordHash); err != nil {
			log.Fatal().Err(err).Msg("Failed to activate guardian")
		}
		if err := guardianRepo.LinkStudent(ctx, g.ID, s.ID, "Parent"); err != nil {
			log.Fatal().Err(err).Msg("Failed to link guardian")
		}
	}
	fmt.Printf("Created %d students with guardians\n", len(students))

	// ─── Sections, categories, assignments ─────────────────────────────
	type sectionSpec struct {
		course  string
		period  string
		room    string
		teacher int
	}
	specs := []sectionSpec{
		{"Algebra I", "2", "204", teacherA},
		{"Pre-Algebra", "5", "204", teacherA},
		{"Life Science", "3", "117", teacherB},
	}

	for _, sp := range specs {
		section := &model.Section{
			DistrictID: district.ID,
			SchoolID:   school.ID,
			TeacherID:  sp.teacher,
			CourseName: sp.course,
			Period:     sp.period,
			Term:       "2026-FALL",
			RoomNumber: sp.room,
		}
		if err := sectionRepo.Create(ctx, section); err != nil {
			log.Fatal().Err(err).Str("course", sp.course).Msg("Failed to create section")
		}

		categories := map[string]*model.GradeCategory{
			"Homework": {SectionID: section.ID, Name: "Homework", Weight: 0.3},
			"Quizzes":  {SectionID: section.ID, Name: "Quizzes", Weight: 0.3},
			"Exams":    {SectionID: section.ID, Name: "Exams", Weight: 0.4},
		}
		for _, cat := range categories {
			if err := sectionRepo.CreateCategory(ctx, cat); err != nil {
				log.Fatal().Err(err).Msg("Failed to create category")
			}
		}

		// Enroll two thirds of the roster in each section.
		var roster []*model.Student
		for i, s := range students {
			if (i+len(sp.course))%3 == 0 {
				continue
			}
			if _, err := enrollmentRepo.Enroll(ctx, section.ID, s.ID); err != nil {
				log.Fatal().Err(err).Msg("Failed to enroll student")
			}
			roster = append(roster, s)
		}

		// Published, graded work spread over the past month.
		assignments := []struct {
			title    string
			category string
			max      float64
			daysAgo  int
		}{
			{"Problem Set 1", "Homework", 20, 24},
			{"Problem Set 2", "Homework", 20, 17},
			{"Quiz 1", "Quizzes", 50, 14},
			{"Problem Set 3", "Homework", 20, 10},
			{"Quiz 2", "Quizzes", 50, 7},
			{"Unit 1 Exam", "Exams", 100, 3},
		}
		for _, as := range assignments {
			due := time.Now().UTC().AddDate(0, 0, -as.daysAgo)
			a := &model.Assignment{
				SectionID:  section.ID,
				CategoryID: categories[as.category].ID,
				Title:      as.title,
				MaxPoints:  as.max,
				DueDate:    &due,
				Published:  true,
			}
			if err := assignmentRepo.Create(ctx, a); err != nil {
				log.Fatal().Err(err).Msg("Failed to create assignment")
			}

			for _, s := range roster {
				// A spread of strong to struggling students, with the
				// occasional missing or excused entry.
				quality := 0.55 + 0.45*float64(s.ID%10)/10
				score := as.max * (quality - 0.15*rng.Float64())
				if score > as.max {
					score = as.max
				}
				grade := &model.Grade{
					AssignmentID: a.ID,
					StudentID:    s.ID,
					Score:        &score,
					Late:         rng.Intn(12) == 0,
					GradedBy:     &sp.teacher,
				}
				switch rng.Intn(20) {
				case 0:
					grade.Score = nil // Not turned in.
				case 1:
					grade.Score = nil
					grade.Excused = true
				}
				if err := gradeRepo.Upsert(ctx, grade); err != nil {
					log.Fatal().Err(err).Msg("Failed to seed grade")
				}
			}

			// Queue the recalculation so averages fill in as soon as the
			// workers run.
			ids := make([]int, 0, len(roster))
			for _, s := range roster {
				ids = append(ids, s.ID)
			}
			env, err := event.NewEnvelope(event.TypeGradeUpdated, scope, event.GradeUpdatedPayload{
				SectionID:    section.ID,
				AssignmentID: a.ID,
				StudentIDs:   ids,
			})
			if err == nil {
				_ = publisher.Publish(ctx, config.QueueKey.GradeRecalc, env)
			}
		}

		// Two weeks of attendance, weekdays only.
		for day := 14; day >= 1; day-- {
			date := time.Now().UTC().AddDate(0, 0, -day)
			if wd := date.Weekday(); wd == time.Saturday || wd == time.Sunday {
				continue
			}
			records := make([]model.AttendanceRecord, 0, len(roster))
			for _, s := range roster {
				status := model.AttendancePresent
				switch rng.Intn(15) {
				case 0:
					status = model.AttendanceAbsent
				case 1:
					status = model.AttendanceLate
				case 2:
					status = model.AttendanceExcused
				}
				records = append(records, model.AttendanceRecord{
					SectionID:  section.ID,
					StudentID:  s.ID,
					Date:       date,
					Status:     status,
					RecordedBy: sp.teacher,
				})
			}
			if err := attendanceRepo.UpsertBatch(ctx, records); err != nil {
				log.Fatal().Err(err).Msg("Failed to seed attendance")
			}
		}

		fmt.Printf("Section %q: %d students, %d assignments\n", sp.course, len(roster), len(assignments))
	}

	// ─── Settings ──────────────────────────────────────────────────────
	defaults := map[string]string{
		model.SettingGradeCutoffA:        "90",
		model.SettingGradeCutoffB:        "80",
		model.SettingGradeCutoffC:        "70",
		model.SettingGradeCutoffD:        "60",
		model.SettingAbsenceStreakLimit:  "3",
		model.SettingGradeFloorThreshold: "70",
		model.SettingLowGradeNotifyBelow: "70",
	}
	for key, value := range defaults {
		if err := settingRepo.Upsert(ctx, district.ID, key, value); err != nil {
			log.Fatal().Err(err).Str("key", key).Msg("Failed to seed setting")
		}
	}

	fmt.Println("\nDone. Demo logins (password: " + demoPassword + "):")
	fmt.Println("  staff:    principal@lakeside.demo, m.alvarez@lakeside.demo")
	fmt.Println("  guardian: parent.Reid0@example.com")
	fmt.Println("Run the server (or cmd/worker) to let the recalc queue fill in averages.")
}

// mustRole creates a role with the given permission codes, exiting on
// any failure.
func mustRole(ctx context.Context, log zerolog.Logger, roleRepo *repository.RoleRepository, districtID int, name string, perms []model.Permission) int {
	id, err := roleRepo.Create(ctx, districtID, name)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create role " + name)
	}
	codes := make([]string, 0, len(perms))
	for _, p := range perms {
		codes = append(codes, string(p))
	}
	if err := roleRepo.AssignPermissions(ctx, id, codes); err != nil {
		log.Fatal().Err(err).Msg("Failed to grant permissions to " + name)
	}
	return id
}

func seedStaff(ctx context.Context, log zerolog.Logger, staffRepo *repository.StaffRepository, districtID, schoolID, roleID int, email, first, last, title, passwordHash string) int {
	s := &model.Staff{
		DistrictID:   districtID,
		SchoolID:     schoolID,
		RoleID:       roleID,
		Email:        email,
		PasswordHash: passwordHash,
		FirstName:    first,
		LastName:     last,
		Title:        title,
		IsActive:     true,
	}
	if err := staffRepo.Create(ctx, s); err != nil {
		log.Fatal().Err(err).Str("email", email).Msg("Failed to create staff")
	}
	fmt.Printf("Staff: %s (%s)\n", email, title)
	return s.ID
}
