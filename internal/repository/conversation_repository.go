package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/skillcore/skillcore-backend/internal/model"
)

// ConversationRepository handles message threads between staff and
// guardians.
type ConversationRepository struct {
	pool *pgxpool.Pool
}

// NewConversationRepository creates a new ConversationRepository.
func NewConversationRepository(pool *pgxpool.Pool) *ConversationRepository {
	return &ConversationRepository{pool: pool}
}

// Create inserts a conversation and its participant rows.
func (r *ConversationRepository) Create(ctx context.Context, c *model.Conversation, participants []model.Participant) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO conversations (district_id, school_id, student_id, subject, created_by, created_by_kind)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, created_at`,
		c.DistrictID, c.SchoolID, c.StudentID, c.Subject, c.CreatedBy, c.CreatedByKind,
	).Scan(&c.ID, &c.CreatedAt)
	if err != nil {
		return err
	}

	batch := &pgx.Batch{}
	for _, p := range participants {
		batch.Queue(
			`INSERT INTO conversation_participants (conversation_id, kind, member_id)
			 VALUES ($1, $2, $3)
			 ON CONFLICT (conversation_id, kind, member_id) DO NOTHING`,
			c.ID, p.Kind, p.MemberID,
		)
	}

	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()

	for range participants {
		if _, err := results.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// GetByID retrieves a conversation with its participants.
func (r *ConversationRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Conversation, error) {
	c := &model.Conversation{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, district_id, school_id, student_id, subject, created_by, created_by_kind, last_message_at, created_at
		 FROM conversations WHERE id = $1`, id,
	).Scan(&c.ID, &c.DistrictID, &c.SchoolID, &c.StudentID, &c.Subject, &c.CreatedBy, &c.CreatedByKind, &c.LastMessageAt, &c.CreatedAt)
	if err != nil {
		return nil, err
	}

	participants, err := r.Participants(ctx, id)
	if err != nil {
		return nil, err
	}
	c.Participants = participants
	return c, nil
}

// Participants retrieves conversation members with display names
// resolved from their account table.
func (r *ConversationRepository) Participants(ctx context.Context, conversationID uuid.UUID) ([]model.Participant, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT cp.conversation_id, cp.kind, cp.member_id, cp.last_read_at,
		        CASE cp.kind
		          WHEN 'staff' THEN (SELECT CONCAT(first_name, ' ', last_name) FROM staff WHERE id = cp.member_id)
		          ELSE (SELECT CONCAT(first_name, ' ', last_name) FROM guardians WHERE id = cp.member_id)
		        END
		 FROM conversation_participants cp
		 WHERE cp.conversation_id = $1
		 ORDER BY cp.kind, cp.member_id`, conversationID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var participants []model.Participant
	for rows.Next() {
		var p model.Participant
		if err := rows.Scan(&p.ConversationID, &p.Kind, &p.MemberID, &p.LastReadAt, &p.Name); err != nil {
			return nil, err
		}
		participants = append(participants, p)
	}
	return participants, rows.Err()
}

// IsParticipant reports whether the member belongs to the conversation.
func (r *ConversationRepository) IsParticipant(ctx context.Context, conversationID uuid.UUID, kind model.ParticipantKind, memberID int) (bool, error) {
	var ok bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (
		   SELECT 1 FROM conversation_participants
		   WHERE conversation_id = $1 AND kind = $2 AND member_id = $3
		 )`, conversationID, kind, memberID,
	).Scan(&ok)
	return ok, err
}

// ListForMember retrieves a member's conversations newest first, each
// with its unread message count.
func (r *ConversationRepository) ListForMember(ctx context.Context, kind model.ParticipantKind, memberID, limit, offset int) ([]model.Conversation, int, error) {
	var total int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM conversation_participants WHERE kind = $1 AND member_id = $2`,
		kind, memberID,
	).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT c.id, c.district_id, c.school_id, c.student_id, c.subject, c.created_by, c.created_by_kind,
		        c.last_message_at, c.created_at,
		        (SELECT COUNT(*) FROM messages m
		         WHERE m.conversation_id = c.id
		           AND (cp.last_read_at IS NULL OR m.sent_at > cp.last_read_at)
		           AND NOT (m.sender_kind = cp.kind AND m.sender_id = cp.member_id))
		 FROM conversations c
		 JOIN conversation_participants cp ON cp.conversation_id = c.id
		 WHERE cp.kind = $1 AND cp.member_id = $2
		 ORDER BY c.last_message_at DESC NULLS LAST, c.created_at DESC
		 LIMIT $3 OFFSET $4`, kind, memberID, limit, offset,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var conversations []model.Conversation
	for rows.Next() {
		var c model.Conversation
		if err := rows.Scan(&c.ID, &c.DistrictID, &c.SchoolID, &c.StudentID, &c.Subject, &c.CreatedBy, &c.CreatedByKind,
			&c.LastMessageAt, &c.CreatedAt, &c.UnreadCount); err != nil {
			return nil, 0, err
		}
		conversations = append(conversations, c)
	}
	return conversations, total, rows.Err()
}

// AddMessage inserts a message and bumps the thread's last activity.
func (r *ConversationRepository) AddMessage(ctx context.Context, m *model.Message) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO messages (conversation_id, sender_kind, sender_id, body, attachment_url)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, sent_at`,
		m.ConversationID, m.SenderKind, m.SenderID, m.Body, m.AttachmentURL,
	).Scan(&m.ID, &m.SentAt)
	if err != nil {
		return err
	}

	_, err = r.pool.Exec(ctx,
		`UPDATE conversations SET last_message_at = $1 WHERE id = $2`,
		m.SentAt, m.ConversationID,
	)
	return err
}

// ListMessages retrieves a conversation's messages newest first.
func (r *ConversationRepository) ListMessages(ctx context.Context, conversationID uuid.UUID, limit, offset int) ([]model.Message, int, error) {
	var total int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM messages WHERE conversation_id = $1`, conversationID,
	).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT m.id, m.conversation_id, m.sender_kind, m.sender_id, m.body, m.attachment_url, m.sent_at,
		        CASE m.sender_kind
		          WHEN 'staff' THEN (SELECT CONCAT(first_name, ' ', last_name) FROM staff WHERE id = m.sender_id)
		          ELSE (SELECT CONCAT(first_name, ' ', last_name) FROM guardians WHERE id = m.sender_id)
		        END
		 FROM messages m
		 WHERE m.conversation_id = $1
		 ORDER BY m.sent_at DESC
		 LIMIT $2 OFFSET $3`, conversationID, limit, offset,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var messages []model.Message
	for rows.Next() {
		var m model.Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.SenderKind, &m.SenderID, &m.Body, &m.AttachmentURL,
			&m.SentAt, &m.SenderName); err != nil {
			return nil, 0, err
		}
		messages = append(messages, m)
	}
	return messages, total, rows.Err()
}

// GetMessage retrieves one message by ID.
func (r *ConversationRepository) GetMessage(ctx context.Context, id uuid.UUID) (*model.Message, error) {
	m := &model.Message{}
	err := r.pool.QueryRow(ctx,
		`SELECT m.id, m.conversation_id, m.sender_kind, m.sender_id, m.body, m.attachment_url, m.sent_at,
		        CASE m.sender_kind
		          WHEN 'staff' THEN (SELECT CONCAT(first_name, ' ', last_name) FROM staff WHERE id = m.sender_id)
		          ELSE (SELECT CONCAT(first_name, ' ', last_name) FROM guardians WHERE id = m.sender_id)
		        END
		 FROM messages m WHERE m.id = $1`, id,
	).Scan(&m.ID, &m.ConversationID, &m.SenderKind, &m.SenderID, &m.Body, &m.AttachmentURL, &m.SentAt, &m.SenderName)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// MarkRead stamps the member's read position at now.
func (r *ConversationRepository) MarkRead(ctx context.Context, conversationID uuid.UUID, kind model.ParticipantKind, memberID int) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE conversation_participants SET last_read_at = CURRENT_TIMESTAMP
		 WHERE conversation_id = $1 AND kind = $2 AND member_id = $3`,
		conversationID, kind, memberID,
	)
	return err
}
