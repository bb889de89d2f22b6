package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/skillcore/skillcore-backend/internal/model"
)

var ErrAlreadyPublished = errors.New("announcement is already published")

// AnnouncementRepository handles announcement data access.
type AnnouncementRepository struct {
	pool *pgxpool.Pool
}

// NewAnnouncementRepository creates a new AnnouncementRepository.
func NewAnnouncementRepository(pool *pgxpool.Pool) *AnnouncementRepository {
	return &AnnouncementRepository{pool: pool}
}

const announcementColumns = `a.id, a.district_id, a.school_id, a.section_id, a.author_id,
	CONCAT(st.first_name, ' ', st.last_name), a.title, a.body, a.published, a.published_at, a.created_at, a.updated_at`

func scanAnnouncement(row interface{ Scan(dest ...any) error }, a *model.Announcement) error {
	return row.Scan(&a.ID, &a.DistrictID, &a.SchoolID, &a.SectionID, &a.AuthorID,
		&a.AuthorName, &a.Title, &a.Body, &a.Published, &a.PublishedAt, &a.CreatedAt, &a.UpdatedAt)
}

// GetByID retrieves an announcement by ID within a school.
func (r *AnnouncementRepository) GetByID(ctx context.Context, scope model.TenantScope, id uuid.UUID) (*model.Announcement, error) {
	a := &model.Announcement{}
	err := scanAnnouncement(r.pool.QueryRow(ctx,
		`SELECT `+announcementColumns+`
		 FROM announcements a
		 JOIN staff st ON a.author_id = st.id
		 WHERE a.district_id = $1 AND a.school_id = $2 AND a.id = $3`,
		scope.DistrictID, scope.SchoolID, id,
	), a)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// ListBySchool retrieves a school's announcements newest first,
// optionally including unpublished drafts.
func (r *AnnouncementRepository) ListBySchool(ctx context.Context, scope model.TenantScope, includeDrafts bool, limit, offset int) ([]model.Announcement, int, error) {
	where := ` WHERE a.district_id = $1 AND a.school_id = $2`
	if !includeDrafts {
		where += ` AND a.published`
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM announcements a`+where, scope.DistrictID, scope.SchoolID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+announcementColumns+`
		 FROM announcements a
		 JOIN staff st ON a.author_id = st.id`+where+`
		 ORDER BY COALESCE(a.published_at, a.created_at) DESC
		 LIMIT $3 OFFSET $4`, scope.DistrictID, scope.SchoolID, limit, offset,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var announcements []model.Announcement
	for rows.Next() {
		var a model.Announcement
		if err := scanAnnouncement(rows, &a); err != nil {
			return nil, 0, err
		}
		announcements = append(announcements, a)
	}
	return announcements, total, rows.Err()
}

// ListForGuardian retrieves published announcements visible to a
// guardian: school-wide ones for their children's schools plus
// section-scoped ones for sections their children are enrolled in.
func (r *AnnouncementRepository) ListForGuardian(ctx context.Context, guardianID, limit, offset int) ([]model.Announcement, int, error) {
	where := `
		 WHERE a.published
		   AND (
		     (a.section_id IS NULL AND a.school_id IN (
		        SELECT DISTINCT s.school_id FROM students s
		        JOIN guardian_students gs ON gs.student_id = s.id
		        WHERE gs.guardian_id = $1 AND s.deleted_at IS NULL))
		     OR
		     (a.section_id IN (
		        SELECT e.section_id FROM enrollments e
		        JOIN guardian_students gs ON gs.student_id = e.student_id
		        JOIN students s ON s.id = e.student_id
		        WHERE gs.guardian_id = $1 AND s.deleted_at IS NULL))
		   )`

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM announcements a`+where, guardianID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+announcementColumns+`
		 FROM announcements a
		 JOIN staff st ON a.author_id = st.id`+where+`
		 ORDER BY a.published_at DESC
		 LIMIT $2 OFFSET $3`, guardianID, limit, offset,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var announcements []model.Announcement
	for rows.Next() {
		var a model.Announcement
		if err := scanAnnouncement(rows, &a); err != nil {
			return nil, 0, err
		}
		announcements = append(announcements, a)
	}
	return announcements, total, rows.Err()
}

// Create inserts a new announcement draft.
func (r *AnnouncementRepository) Create(ctx context.Context, a *model.Announcement) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO announcements (district_id, school_id, section_id, author_id, title, body)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, published, created_at, updated_at`,
		a.DistrictID, a.SchoolID, a.SectionID, a.AuthorID, a.Title, a.Body,
	).Scan(&a.ID, &a.Published, &a.CreatedAt, &a.UpdatedAt)
}

// Update modifies a draft's title and body. Published announcements
// are immutable.
func (r *AnnouncementRepository) Update(ctx context.Context, a *model.Announcement) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE announcements SET title = $1, body = $2, updated_at = CURRENT_TIMESTAMP
		 WHERE id = $3 AND district_id = $4 AND NOT published`,
		a.Title, a.Body, a.ID, a.DistrictID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAlreadyPublished
	}
	return nil
}

// Publish flips a draft to published exactly once.
func (r *AnnouncementRepository) Publish(ctx context.Context, scope model.TenantScope, id uuid.UUID) (*model.Announcement, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE announcements
		 SET published = TRUE, published_at = CURRENT_TIMESTAMP, updated_at = CURRENT_TIMESTAMP
		 WHERE district_id = $1 AND school_id = $2 AND id = $3 AND NOT published`,
		scope.DistrictID, scope.SchoolID, id,
	)
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrAlreadyPublished
	}
	return r.GetByID(ctx, scope, id)
}

// Delete removes an unpublished draft.
func (r *AnnouncementRepository) Delete(ctx context.Context, scope model.TenantScope, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM announcements
		 WHERE district_id = $1 AND school_id = $2 AND id = $3 AND NOT published`,
		scope.DistrictID, scope.SchoolID, id,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAlreadyPublished
	}
	return nil
}
