package repository

import (
	"context"
	"errors"
	"strconv"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/skillcore/skillcore-backend/internal/model"
)

var ErrNotificationNotDead = errors.New("notification is not in the dead state")

// NotificationRepository handles the outbound notification log. The
// delivery worker owns all status transitions after creation.
type NotificationRepository struct {
	pool *pgxpool.Pool
}

// NewNotificationRepository creates a new NotificationRepository.
func NewNotificationRepository(pool *pgxpool.Pool) *NotificationRepository {
	return &NotificationRepository{pool: pool}
}

const notificationColumns = `id, district_id, school_id, recipient_type, recipient_id, channel, subject, body,
	status, attempts, last_error, sent_at, created_at, updated_at`

func scanNotification(row interface{ Scan(dest ...any) error }, n *model.Notification) error {
	return row.Scan(&n.ID, &n.DistrictID, &n.SchoolID, &n.RecipientType, &n.RecipientID, &n.Channel, &n.Subject, &n.Body,
		&n.Status, &n.Attempts, &n.LastError, &n.SentAt, &n.CreatedAt, &n.UpdatedAt)
}

// GetByID retrieves a notification by ID.
func (r *NotificationRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Notification, error) {
	n := &model.Notification{}
	err := scanNotification(r.pool.QueryRow(ctx,
		`SELECT `+notificationColumns+` FROM notifications WHERE id = $1`, id,
	), n)
	if err != nil {
		return nil, err
	}
	return n, nil
}

// Create inserts one queued notification.
func (r *NotificationRepository) Create(ctx context.Context, n *model.Notification) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO notifications (district_id, school_id, recipient_type, recipient_id, channel, subject, body)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id, status, attempts, created_at, updated_at`,
		n.DistrictID, n.SchoolID, n.RecipientType, n.RecipientID, n.Channel, n.Subject, n.Body,
	).Scan(&n.ID, &n.Status, &n.Attempts, &n.CreatedAt, &n.UpdatedAt)
}

// MarkSent records a successful delivery.
func (r *NotificationRepository) MarkSent(ctx context.Context, id uuid.UUID, attempts int) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE notifications
		 SET status = 'sent', attempts = $1, last_error = '', sent_at = CURRENT_TIMESTAMP, updated_at = CURRENT_TIMESTAMP
		 WHERE id = $2`, attempts, id,
	)
	return err
}

// MarkFailed records a failed attempt that will be retried.
func (r *NotificationRepository) MarkFailed(ctx context.Context, id uuid.UUID, attempts int, lastError string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE notifications
		 SET status = 'failed', attempts = $1, last_error = $2, updated_at = CURRENT_TIMESTAMP
		 WHERE id = $3`, attempts, lastError, id,
	)
	return err
}

// MarkDead records that delivery attempts are exhausted.
func (r *NotificationRepository) MarkDead(ctx context.Context, id uuid.UUID, attempts int, lastError string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE notifications
		 SET status = 'dead', attempts = $1, last_error = $2, updated_at = CURRENT_TIMESTAMP
		 WHERE id = $3`, attempts, lastError, id,
	)
	return err
}

// ResetForRetry flips a dead notification back to queued for a manual
// re-enqueue and clears its attempt counter.
func (r *NotificationRepository) ResetForRetry(ctx context.Context, scope model.TenantScope, id uuid.UUID) (*model.Notification, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE notifications
		 SET status = 'queued', attempts = 0, last_error = '', updated_at = CURRENT_TIMESTAMP
		 WHERE district_id = $1 AND school_id = $2 AND id = $3 AND status = 'dead'`,
		scope.DistrictID, scope.SchoolID, id,
	)
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrNotificationNotDead
	}
	return r.GetByID(ctx, id)
}

// ListPaginated retrieves a school's notification log newest first
// with optional status and channel filters.
func (r *NotificationRepository) ListPaginated(ctx context.Context, scope model.TenantScope, status, channel string, limit, offset int) ([]model.Notification, int, error) {
	where := ` WHERE district_id = $1 AND school_id = $2`
	args := []any{scope.DistrictID, scope.SchoolID}

	if status != "" {
		args = append(args, status)
		where += ` AND status = $` + strconv.Itoa(len(args))
	}
	if channel != "" {
		args = append(args, channel)
		where += ` AND channel = $` + strconv.Itoa(len(args))
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM notifications`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + notificationColumns + ` FROM notifications` + where +
		` ORDER BY created_at DESC LIMIT $` + strconv.Itoa(len(args)+1) + ` OFFSET $` + strconv.Itoa(len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var notifications []model.Notification
	for rows.Next() {
		var n model.Notification
		if err := scanNotification(rows, &n); err != nil {
			return nil, 0, err
		}
		notifications = append(notifications, n)
	}
	return notifications, total, rows.Err()
}

// ListForGuardian retrieves a guardian's own notifications newest first.
func (r *NotificationRepository) ListForGuardian(ctx context.Context, guardianID, limit, offset int) ([]model.Notification, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM notifications WHERE recipient_type = 'guardian' AND recipient_id = $1`, guardianID,
	).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+notificationColumns+` FROM notifications
		 WHERE recipient_type = 'guardian' AND recipient_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2 OFFSET $3`, guardianID, limit, offset,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var notifications []model.Notification
	for rows.Next() {
		var n model.Notification
		if err := scanNotification(rows, &n); err != nil {
			return nil, 0, err
		}
		notifications = append(notifications, n)
	}
	return notifications, total, rows.Err()
}

// CountDead counts dead notifications for a school.
func (r *NotificationRepository) CountDead(ctx context.Context, scope model.TenantScope) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM notifications WHERE district_id = $1 AND school_id = $2 AND status = 'dead'`,
		scope.DistrictID, scope.SchoolID,
	).Scan(&count)
	return count, err
}
