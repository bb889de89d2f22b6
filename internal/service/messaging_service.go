package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/skillcore/skillcore-backend/internal/config"
	"github.com/skillcore/skillcore-backend/internal/event"
	"github.com/skillcore/skillcore-backend/internal/model"
	"github.com/skillcore/skillcore-backend/internal/repository"
	ws "github.com/skillcore/skillcore-backend/internal/websocket"
)

// Sentinel errors for messaging.
var (
	ErrNotParticipant    = errors.New("not a participant in this conversation")
	ErrGuardianNotLinked = errors.New("guardian is not linked to this student")
)

// MessagingService runs staff-guardian conversations. New messages go
// three ways: the database row, the live socket channel, and the
// notification queue for offline participants.
type MessagingService struct {
	conversationRepo *repository.ConversationRepository
	guardianRepo     *repository.GuardianRepository
	studentRepo      *repository.StudentRepository
	staffRepo        *repository.StaffRepository
	publisher        *event.Publisher
	rdb              *redis.Client
	log              zerolog.Logger
}

func NewMessagingService(
	conversationRepo *repository.ConversationRepository,
	guardianRepo *repository.GuardianRepository,
	studentRepo *repository.StudentRepository,
	staffRepo *repository.StaffRepository,
	publisher *event.Publisher,
	rdb *redis.Client,
	log zerolog.Logger,
) *MessagingService {
	return &MessagingService{
		conversationRepo: conversationRepo,
		guardianRepo:     guardianRepo,
		studentRepo:      studentRepo,
		staffRepo:        staffRepo,
		publisher:        publisher,
		rdb:              rdb,
		log:              log.With().Str("component", "messaging_service").Logger(),
	}
}

// CreateConversation opens a thread and posts its first message. When
// the thread is about a student, every invited guardian must already
// be linked to that student.
func (s *MessagingService) CreateConversation(ctx context.Context, scope model.TenantScope, creatorID int, req *model.CreateConversationRequest) (*model.Conversation, error) {
	if req.StudentID != nil {
		if _, err := s.studentRepo.GetByID(ctx, scope, *req.StudentID); err != nil {
			return nil, err
		}
	}

	for _, guardianID := range req.GuardianIDs {
		guardian, err := s.guardianRepo.GetByID(ctx, scope.DistrictID, guardianID)
		if err != nil {
			return nil, err
		}
		if req.StudentID != nil {
			linked, err := s.guardianRepo.IsLinked(ctx, guardian.ID, *req.StudentID)
			if err != nil {
				return nil, err
			}
			if !linked {
				return nil, fmt.Errorf("guardian %d: %w", guardian.ID, ErrGuardianNotLinked)
			}
		}
	}
	for _, staffID := range req.StaffIDs {
		if _, err := s.staffRepo.GetByID(ctx, scope.DistrictID, staffID); err != nil {
			return nil, err
		}
	}

	conversation := &model.Conversation{
		ID:            uuid.New(),
		DistrictID:    scope.DistrictID,
		SchoolID:      scope.SchoolID,
		StudentID:     req.StudentID,
		Subject:       req.Subject,
		CreatedBy:     creatorID,
		CreatedByKind: string(model.ParticipantStaff),
	}

	participants := []model.Participant{
		{ConversationID: conversation.ID, Kind: model.ParticipantStaff, MemberID: creatorID},
	}
	for _, staffID := range req.StaffIDs {
		if staffID == creatorID {
			continue
		}
		participants = append(participants, model.Participant{ConversationID: conversation.ID, Kind: model.ParticipantStaff, MemberID: staffID})
	}
	for _, guardianID := range req.GuardianIDs {
		participants = append(participants, model.Participant{ConversationID: conversation.ID, Kind: model.ParticipantGuardian, MemberID: guardianID})
	}

	if err := s.conversationRepo.Create(ctx, conversation, participants); err != nil {
		return nil, err
	}

	if _, err := s.postMessage(ctx, scope, conversation, model.ParticipantStaff, creatorID, req.Body, ""); err != nil {
		return nil, fmt.Errorf("post opening message: %w", err)
	}
	return s.conversationRepo.GetByID(ctx, conversation.ID)
}

// CreateGuardianConversation opens a thread from the portal. The
// guardian must be linked to the student, and the thread lands in the
// student's school so that school's staff views pick it up.
func (s *MessagingService) CreateGuardianConversation(ctx context.Context, districtID, guardianID int, req *model.GuardianCreateConversationRequest) (*model.Conversation, error) {
	linked, err := s.guardianRepo.IsLinked(ctx, guardianID, req.StudentID)
	if err != nil {
		return nil, err
	}
	if !linked {
		return nil, ErrGuardianNotLinked
	}

	student, err := s.studentRepo.GetByIDInDistrict(ctx, districtID, req.StudentID)
	if err != nil {
		return nil, err
	}
	for _, staffID := range req.StaffIDs {
		if _, err := s.staffRepo.GetByID(ctx, districtID, staffID); err != nil {
			return nil, err
		}
	}

	scope := model.TenantScope{DistrictID: districtID, SchoolID: student.SchoolID}
	conversation := &model.Conversation{
		ID:            uuid.New(),
		DistrictID:    districtID,
		SchoolID:      student.SchoolID,
		StudentID:     &student.ID,
		Subject:       req.Subject,
		CreatedBy:     guardianID,
		CreatedByKind: string(model.ParticipantGuardian),
	}

	participants := []model.Participant{
		{ConversationID: conversation.ID, Kind: model.ParticipantGuardian, MemberID: guardianID},
	}
	for _, staffID := range req.StaffIDs {
		participants = append(participants, model.Participant{ConversationID: conversation.ID, Kind: model.ParticipantStaff, MemberID: staffID})
	}

	if err := s.conversationRepo.Create(ctx, conversation, participants); err != nil {
		return nil, err
	}

	if _, err := s.postMessage(ctx, scope, conversation, model.ParticipantGuardian, guardianID, req.Body, ""); err != nil {
		return nil, fmt.Errorf("post opening message: %w", err)
	}
	return s.conversationRepo.GetByID(ctx, conversation.ID)
}

// SendMessage posts into an existing conversation on behalf of a staff
// member or guardian.
func (s *MessagingService) SendMessage(ctx context.Context, scope model.TenantScope, conversationID uuid.UUID, kind model.ParticipantKind, memberID int, req *model.SendMessageRequest) (*model.Message, error) {
	conversation, err := s.authorizedConversation(ctx, scope, conversationID, kind, memberID)
	if err != nil {
		return nil, err
	}
	return s.postMessage(ctx, scope, conversation, kind, memberID, req.Body, req.AttachmentURL)
}

func (s *MessagingService) postMessage(ctx context.Context, scope model.TenantScope, conversation *model.Conversation, kind model.ParticipantKind, senderID int, body, attachmentURL string) (*model.Message, error) {
	message := &model.Message{
		ID:             uuid.New(),
		ConversationID: conversation.ID,
		SenderKind:     kind,
		SenderID:       senderID,
		Body:           body,
		AttachmentURL:  attachmentURL,
	}
	if err := s.conversationRepo.AddMessage(ctx, message); err != nil {
		return nil, err
	}

	// Senders have read their own message.
	if err := s.conversationRepo.MarkRead(ctx, conversation.ID, kind, senderID); err != nil {
		s.log.Warn().Err(err).Str("conversation_id", conversation.ID.String()).Msg("Failed to advance sender read marker")
	}

	stored, err := s.conversationRepo.GetMessage(ctx, message.ID)
	if err == nil {
		message = stored
	}

	s.broadcastToSockets(ctx, conversation.ID, ws.MessageEvent{Event: ws.EventMessage, Message: *message})

	env, err := event.NewEnvelope(event.TypeMessageSent, scope, event.MessageSentPayload{
		ConversationID: conversation.ID,
		MessageID:      message.ID,
		SenderKind:     string(kind),
		SenderID:       senderID,
	})
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to build message.sent event")
	} else if err := s.publisher.Publish(ctx, config.QueueKey.Notifications, env); err != nil {
		s.log.Error().Err(err).Msg("Failed to enqueue message notification")
	}

	return message, nil
}

// broadcastToSockets fans a socket event out to every replica holding
// an open connection on the conversation.
func (s *MessagingService) broadcastToSockets(ctx context.Context, conversationID uuid.UUID, payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to encode socket event")
		return
	}
	channel := config.CacheKey.ConversationChannel(conversationID.String())
	if err := s.rdb.Publish(ctx, channel, raw).Err(); err != nil {
		s.log.Warn().Err(err).Str("channel", channel).Msg("Socket broadcast failed")
	}
}

// BroadcastTyping relays a typing indicator without persisting anything.
func (s *MessagingService) BroadcastTyping(ctx context.Context, conversationID uuid.UUID, kind model.ParticipantKind, memberID int, name string) {
	s.broadcastToSockets(ctx, conversationID, ws.TypingEvent{
		Event:      ws.EventTyping,
		SenderKind: kind,
		SenderID:   memberID,
		SenderName: name,
	})
}

func (s *MessagingService) ListConversations(ctx context.Context, kind model.ParticipantKind, memberID, limit, offset int) ([]model.Conversation, int, error) {
	return s.conversationRepo.ListForMember(ctx, kind, memberID, limit, offset)
}

func (s *MessagingService) GetConversation(ctx context.Context, scope model.TenantScope, conversationID uuid.UUID, kind model.ParticipantKind, memberID int) (*model.Conversation, error) {
	return s.authorizedConversation(ctx, scope, conversationID, kind, memberID)
}

func (s *MessagingService) ListMessages(ctx context.Context, scope model.TenantScope, conversationID uuid.UUID, kind model.ParticipantKind, memberID, limit, offset int) ([]model.Message, int, error) {
	if _, err := s.authorizedConversation(ctx, scope, conversationID, kind, memberID); err != nil {
		return nil, 0, err
	}
	return s.conversationRepo.ListMessages(ctx, conversationID, limit, offset)
}

// MarkRead moves the member's read marker and tells open sockets so
// unread badges update live.
func (s *MessagingService) MarkRead(ctx context.Context, scope model.TenantScope, conversationID uuid.UUID, kind model.ParticipantKind, memberID int) error {
	if _, err := s.authorizedConversation(ctx, scope, conversationID, kind, memberID); err != nil {
		return err
	}
	if err := s.conversationRepo.MarkRead(ctx, conversationID, kind, memberID); err != nil {
		return err
	}
	s.broadcastToSockets(ctx, conversationID, ws.ReadEvent{Event: ws.EventRead, MemberKind: kind, MemberID: memberID})
	return nil
}

// IsParticipant is the socket handler's fast membership check.
func (s *MessagingService) IsParticipant(ctx context.Context, conversationID uuid.UUID, kind model.ParticipantKind, memberID int) (bool, error) {
	return s.conversationRepo.IsParticipant(ctx, conversationID, kind, memberID)
}

// MemberName resolves a participant's display name. Socket handlers
// look it up once at connect for typing indicators.
func (s *MessagingService) MemberName(ctx context.Context, districtID int, kind model.ParticipantKind, memberID int) (string, error) {
	if kind == model.ParticipantGuardian {
		guardian, err := s.guardianRepo.GetByID(ctx, districtID, memberID)
		if err != nil {
			return "", err
		}
		return guardian.FirstName + " " + guardian.LastName, nil
	}
	staff, err := s.staffRepo.GetByID(ctx, districtID, memberID)
	if err != nil {
		return "", err
	}
	return staff.FirstName + " " + staff.LastName, nil
}

// authorizedConversation loads the conversation and verifies both the
// tenant scope and the member's participation.
func (s *MessagingService) authorizedConversation(ctx context.Context, scope model.TenantScope, conversationID uuid.UUID, kind model.ParticipantKind, memberID int) (*model.Conversation, error) {
	conversation, err := s.conversationRepo.GetByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	// A conversation outside the caller's tenant reads as missing.
	if conversation.DistrictID != scope.DistrictID {
		return nil, pgx.ErrNoRows
	}
	// Guardians carry no school claim; staff must match the school.
	if kind == model.ParticipantStaff && conversation.SchoolID != scope.SchoolID {
		return nil, pgx.ErrNoRows
	}

	isMember, err := s.conversationRepo.IsParticipant(ctx, conversationID, kind, memberID)
	if err != nil {
		return nil, err
	}
	if !isMember {
		return nil, ErrNotParticipant
	}
	return conversation, nil
}
