package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/jackc/pgx/v5"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/term"

	"github.com/skillcore/skillcore-backend/internal/config"
	"github.com/skillcore/skillcore-backend/internal/database"
	"github.com/skillcore/skillcore-backend/internal/logger"
	"github.com/skillcore/skillcore-backend/internal/model"
	"github.com/skillcore/skillcore-backend/internal/repository"
)

// Bootstraps a fresh deployment: district, first school, a District
// Admin role holding every permission, and the admin account itself.
// Re-running against an existing district reuses what is already there,
// so the command is safe to repeat after a partial run.
func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)

	ctx := context.Background()

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	districtRepo := repository.NewDistrictRepository(pool)
	schoolRepo := repository.NewSchoolRepository(pool)
	roleRepo := repository.NewRoleRepository(pool)
	staffRepo := repository.NewStaffRepository(pool)

	// ─── CLI Input ─────────────────────────────────────────────────────
	reader := bufio.NewReader(os.Stdin)

	fmt.Println("=== SkillCore District Bootstrap ===")

	districtName := prompt(reader, "District Name: ")
	if districtName == "" {
		fmt.Println("Error: District name is required")
		return
	}

	districtCode := prompt(reader, "District Code (short, unique): ")
	if districtCode == "" {
		fmt.Println("Error: District code is required")
		return
	}

	schoolName := prompt(reader, "First School Name: ")
	if schoolName == "" {
		fmt.Println("Error: School name is required")
		return
	}

	schoolCode := prompt(reader, "School Code: ")
	if schoolCode == "" {
		fmt.Println("Error: School code is required")
		return
	}

	adminName := prompt(reader, "Admin Full Name: ")
	first, last := splitName(adminName)
	if first == "" {
		fmt.Println("Error: Admin name is required")
		return
	}

	adminEmail := prompt(reader, "Admin Email: ")
	if adminEmail == "" {
		fmt.Println("Error: Admin email is required")
		return
	}

	fmt.Print("Admin Password: ")
	bytePassword, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		fmt.Println("\nError reading password")
		return
	}
	password := string(bytePassword)
	fmt.Println() // Newline after password input
	if len(password) < 8 {
		fmt.Println("Error: Password must be at least 8 characters")
		return
	}

	// ─── District ──────────────────────────────────────────────────────
	district, err := districtRepo.GetByCode(ctx, districtCode)
	switch {
	case err == nil:
		fmt.Printf("District %q already exists (ID %d), reusing it\n", district.Code, district.ID)
	case errors.Is(err, pgx.ErrNoRows):
		district = &model.District{Name: districtName, Code: districtCode}
		if err := districtRepo.Create(ctx, district); err != nil {
			log.Fatal().Err(err).Msg("Failed to create district")
		}
		fmt.Printf("Created district %q with ID %d\n", district.Code, district.ID)
	default:
		log.Fatal().Err(err).Msg("Failed to look up district")
	}

	// ─── School ────────────────────────────────────────────────────────
	schoolID := 0
	schools, err := schoolRepo.ListByDistrict(ctx, district.ID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to list schools")
	}
	for _, s := range schools {
		if s.Code == schoolCode {
			schoolID = s.ID
			fmt.Printf("School %q already exists (ID %d), reusing it\n", s.Code, s.ID)
			break
		}
	}
	if schoolID == 0 {
		school := &model.School{DistrictID: district.ID, Name: schoolName, Code: schoolCode, Timezone: "America/New_York"}
		if err := schoolRepo.Create(ctx, school); err != nil {
			log.Fatal().Err(err).Msg("Failed to create school")
		}
		schoolID = school.ID
		fmt.Printf("Created school %q with ID %d\n", school.Code, school.ID)
	}

	// ─── District Admin role with every permission ─────────────────────
	roleID := 0
	roles, err := roleRepo.ListByDistrict(ctx, district.ID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to list roles")
	}
	for _, r := range roles {
		if r.Name == "District Admin" {
			roleID = r.ID
			break
		}
	}
	if roleID == 0 {
		roleID, err = roleRepo.Create(ctx, district.ID, "District Admin")
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create admin role")
		}
	}

	// Grant the full permission set. Clearing first makes a repeat run
	// converge on the current catalog instead of appending duplicates.
	if err := roleRepo.ClearPermissions(ctx, roleID); err != nil {
		log.Fatal().Err(err).Msg("Failed to reset role permissions")
	}
	codes := make([]string, 0, len(model.AllPermissions))
	for _, p := range model.AllPermissions {
		codes = append(codes, string(p))
	}
	if err := roleRepo.AssignPermissions(ctx, roleID, codes); err != nil {
		log.Fatal().Err(err).Msg("Failed to assign permissions")
	}

	// ─── Admin account ─────────────────────────────────────────────────
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), cfg.BcryptCost)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to hash password")
	}

	admin := &model.Staff{
		DistrictID:   district.ID,
		SchoolID:     schoolID,
		RoleID:       roleID,
		Email:        adminEmail,
		PasswordHash: string(hashedPassword),
		FirstName:    first,
		LastName:     last,
		Title:        "District Administrator",
	}
	if err := staffRepo.Create(ctx, admin); err != nil {
		if errors.Is(err, repository.ErrDuplicateStaffEmail) {
			fmt.Printf("Admin %s already exists, leaving the account untouched\n", adminEmail)
			return
		}
		log.Fatal().Err(err).Msg("Failed to create admin")
	}

	fmt.Printf("\nSuccess! Admin '%s %s' (%s) created with ID: %d\n", admin.FirstName, admin.LastName, admin.Email, admin.ID)
}

func prompt(reader *bufio.Reader, label string) string {
	fmt.Print(label)
	line, _ := reader.ReadString('\n')
	return strings.TrimSpace(line)
}

// splitName breaks a full name into first and last at the final space.
func splitName(full string) (string, string) {
	full = strings.TrimSpace(full)
	if full == "" {
		return "", ""
	}
	idx := strings.LastIndex(full, " ")
	if idx < 0 {
		return full, full
	}
	return full[:idx], full[idx+1:]
}
