package repository

import (
	"context"
	"errors"
	"strconv"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/skillcore/skillcore-backend/internal/model"
)

var (
	ErrDuplicateGuardianEmail = errors.New("guardian with this email already exists")
	ErrDuplicateGuardianLink  = errors.New("guardian is already linked to this student")
)

// GuardianRepository handles guardian accounts and their student links.
type GuardianRepository struct {
	pool *pgxpool.Pool
}

// NewGuardianRepository creates a new GuardianRepository.
func NewGuardianRepository(pool *pgxpool.Pool) *GuardianRepository {
	return &GuardianRepository{pool: pool}
}

const guardianColumns = `id, district_id, email, password_hash, first_name, last_name, phone,
	notify_email, notify_sms, notify_push, push_token, is_activated, last_login_at, created_at, updated_at`

func scanGuardian(row interface{ Scan(dest ...any) error }, g *model.Guardian) error {
	return row.Scan(&g.ID, &g.DistrictID, &g.Email, &g.PasswordHash, &g.FirstName, &g.LastName, &g.Phone,
		&g.NotifyEmail, &g.NotifySMS, &g.NotifyPush, &g.PushToken, &g.IsActivated, &g.LastLoginAt, &g.CreatedAt, &g.UpdatedAt)
}

// GetByID retrieves a guardian by ID within a district.
func (r *GuardianRepository) GetByID(ctx context.Context, districtID, id int) (*model.Guardian, error) {
	g := &model.Guardian{}
	err := scanGuardian(r.pool.QueryRow(ctx,
		`SELECT `+guardianColumns+` FROM guardians WHERE district_id = $1 AND id = $2`,
		districtID, id,
	), g)
	if err != nil {
		return nil, err
	}
	return g, nil
}

// GetByEmail retrieves a guardian by their unique email address.
func (r *GuardianRepository) GetByEmail(ctx context.Context, email string) (*model.Guardian, error) {
	g := &model.Guardian{}
	err := scanGuardian(r.pool.QueryRow(ctx,
		`SELECT `+guardianColumns+` FROM guardians WHERE email = $1`, email,
	), g)
	if err != nil {
		return nil, err
	}
	return g, nil
}

// ListPaginated retrieves guardians in a district with an optional
// name/email search, for staff-side account management.
func (r *GuardianRepository) ListPaginated(ctx context.Context, districtID int, search string, limit, offset int) ([]model.Guardian, int, error) {
	where := ` WHERE district_id = $1`
	args := []any{districtID}

	if search != "" {
		args = append(args, "%"+search+"%")
		idx := strconv.Itoa(len(args))
		where += ` AND (first_name ILIKE $` + idx + ` OR last_name ILIKE $` + idx + ` OR email ILIKE $` + idx + `)`
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM guardians`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + guardianColumns + ` FROM guardians` + where +
		` ORDER BY last_name, first_name LIMIT $` + strconv.Itoa(len(args)+1) + ` OFFSET $` + strconv.Itoa(len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var guardians []model.Guardian
	for rows.Next() {
		var g model.Guardian
		if err := scanGuardian(rows, &g); err != nil {
			return nil, 0, err
		}
		guardians = append(guardians, g)
	}
	return guardians, total, rows.Err()
}

// Create inserts a new, not yet activated guardian account.
func (r *GuardianRepository) Create(ctx context.Context, g *model.Guardian) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO guardians (district_id, email, first_name, last_name, phone)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, notify_email, notify_sms, notify_push, is_activated, created_at, updated_at`,
		g.DistrictID, g.Email, g.FirstName, g.LastName, g.Phone,
	).Scan(&g.ID, &g.NotifyEmail, &g.NotifySMS, &g.NotifyPush, &g.IsActivated, &g.CreatedAt, &g.UpdatedAt)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateGuardianEmail
		}
		return err
	}
	return nil
}

// Activate sets the password and flips the account to activated.
func (r *GuardianRepository) Activate(ctx context.Context, id int, passwordHash string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE guardians SET password_hash = $1, is_activated = TRUE, updated_at = CURRENT_TIMESTAMP
		 WHERE id = $2`,
		passwordHash, id,
	)
	return err
}

// UpdatePrefs updates notification channel preferences and contact info.
func (r *GuardianRepository) UpdatePrefs(ctx context.Context, g *model.Guardian) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE guardians
		 SET notify_email = $1, notify_sms = $2, notify_push = $3, phone = $4, push_token = $5, updated_at = CURRENT_TIMESTAMP
		 WHERE id = $6`,
		g.NotifyEmail, g.NotifySMS, g.NotifyPush, g.Phone, g.PushToken, g.ID,
	)
	return err
}

// TouchLastLogin stamps a successful login.
func (r *GuardianRepository) TouchLastLogin(ctx context.Context, id int) error {
	_, err := r.pool.Exec(ctx, `UPDATE guardians SET last_login_at = CURRENT_TIMESTAMP WHERE id = $1`, id)
	return err
}

// LinkStudent ties a guardian to a student with a relationship label.
func (r *GuardianRepository) LinkStudent(ctx context.Context, guardianID, studentID int, relationship string) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO guardian_students (guardian_id, student_id, relationship) VALUES ($1, $2, $3)`,
		guardianID, studentID, relationship,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateGuardianLink
		}
		return err
	}
	return nil
}

// UnlinkStudent removes a guardian-student link.
func (r *GuardianRepository) UnlinkStudent(ctx context.Context, guardianID, studentID int) error {
	_, err := r.pool.Exec(ctx,
		`DELETE FROM guardian_students WHERE guardian_id = $1 AND student_id = $2`,
		guardianID, studentID,
	)
	return err
}

// IsLinked reports whether the guardian is linked to the student. This
// is the scoping check behind every guardian portal read.
func (r *GuardianRepository) IsLinked(ctx context.Context, guardianID, studentID int) (bool, error) {
	var linked bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM guardian_students WHERE guardian_id = $1 AND student_id = $2)`,
		guardianID, studentID,
	).Scan(&linked)
	return linked, err
}

// ListByStudent retrieves all guardians linked to a student.
func (r *GuardianRepository) ListByStudent(ctx context.Context, studentID int) ([]model.Guardian, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT g.id, g.district_id, g.email, g.password_hash, g.first_name, g.last_name, g.phone,
		        g.notify_email, g.notify_sms, g.notify_push, g.push_token, g.is_activated, g.last_login_at, g.created_at, g.updated_at
		 FROM guardians g
		 JOIN guardian_students gs ON gs.guardian_id = g.id
		 WHERE gs.student_id = $1
		 ORDER BY g.last_name, g.first_name`, studentID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var guardians []model.Guardian
	for rows.Next() {
		var g model.Guardian
		if err := scanGuardian(rows, &g); err != nil {
			return nil, err
		}
		guardians = append(guardians, g)
	}
	return guardians, rows.Err()
}

// ListChildren retrieves the active students linked to a guardian.
func (r *GuardianRepository) ListChildren(ctx context.Context, guardianID int) ([]model.Student, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT s.id, s.district_id, s.school_id, s.student_number, s.first_name, s.last_name,
		        s.grade_level, s.date_of_birth, s.has_iep, s.has_504, s.deleted_at, s.created_at, s.updated_at
		 FROM students s
		 JOIN guardian_students gs ON gs.student_id = s.id
		 WHERE gs.guardian_id = $1 AND s.deleted_at IS NULL
		 ORDER BY s.first_name`, guardianID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var students []model.Student
	for rows.Next() {
		var s model.Student
		if err := scanStudent(rows, &s); err != nil {
			return nil, err
		}
		students = append(students, s)
	}
	return students, rows.Err()
}

// ListForSchool retrieves distinct activated guardians linked to any
// active student of the school, for school-wide fan-out.
func (r *GuardianRepository) ListForSchool(ctx context.Context, scope model.TenantScope) ([]model.Guardian, error) {
	return r.listDistinct(ctx,
		`SELECT DISTINCT ON (g.id) `+guardianPrefixedColumns+`
		 FROM guardians g
		 JOIN guardian_students gs ON gs.guardian_id = g.id
		 JOIN students s ON s.id = gs.student_id
		 WHERE s.district_id = $1 AND s.school_id = $2 AND s.deleted_at IS NULL AND g.is_activated
		 ORDER BY g.id`,
		scope.DistrictID, scope.SchoolID)
}

// ListForSection retrieves distinct activated guardians of students
// enrolled in the section, for section-scoped fan-out.
func (r *GuardianRepository) ListForSection(ctx context.Context, sectionID int) ([]model.Guardian, error) {
	return r.listDistinct(ctx,
		`SELECT DISTINCT ON (g.id) `+guardianPrefixedColumns+`
		 FROM guardians g
		 JOIN guardian_students gs ON gs.guardian_id = g.id
		 JOIN enrollments e ON e.student_id = gs.student_id
		 JOIN students s ON s.id = gs.student_id
		 WHERE e.section_id = $1 AND s.deleted_at IS NULL AND g.is_activated
		 ORDER BY g.id`,
		sectionID)
}

const guardianPrefixedColumns = `g.id, g.district_id, g.email, g.password_hash, g.first_name, g.last_name, g.phone,
	g.notify_email, g.notify_sms, g.notify_push, g.push_token, g.is_activated, g.last_login_at, g.created_at, g.updated_at`

func (r *GuardianRepository) listDistinct(ctx context.Context, query string, args ...any) ([]model.Guardian, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var guardians []model.Guardian
	for rows.Next() {
		var g model.Guardian
		if err := scanGuardian(rows, &g); err != nil {
			return nil, err
		}
		guardians = append(guardians, g)
	}
	return guardians, rows.Err()
}
