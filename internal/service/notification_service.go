package service

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/skillcore/skillcore-backend/internal/config"
	"github.com/skillcore/skillcore-backend/internal/event"
	"github.com/skillcore/skillcore-backend/internal/model"
	"github.com/skillcore/skillcore-backend/internal/notify"
	"github.com/skillcore/skillcore-backend/internal/repository"
)

// ErrUnknownEventType is returned for envelopes the notification
// expander has no rule for. The worker logs and drops them since a
// retry cannot make the type known.
var ErrUnknownEventType = errors.New("no notification rule for event type")

// previewLimit bounds message bodies quoted inside notifications.
const previewLimit = 160

// NotificationService creates delivery rows, expands domain events
// into per-guardian per-channel notifications, and performs the actual
// sends on behalf of the notification worker.
type NotificationService struct {
	notificationRepo *repository.NotificationRepository
	guardianRepo     *repository.GuardianRepository
	studentRepo      *repository.StudentRepository
	staffRepo        *repository.StaffRepository
	conversationRepo *repository.ConversationRepository
	announcementRepo *repository.AnnouncementRepository
	dispatcher       *notify.Dispatcher
	publisher        *event.Publisher
	log              zerolog.Logger
}

func NewNotificationService(
	notificationRepo *repository.NotificationRepository,
	guardianRepo *repository.GuardianRepository,
	studentRepo *repository.StudentRepository,
	staffRepo *repository.StaffRepository,
	conversationRepo *repository.ConversationRepository,
	announcementRepo *repository.AnnouncementRepository,
	dispatcher *notify.Dispatcher,
	publisher *event.Publisher,
	log zerolog.Logger,
) *NotificationService {
	return &NotificationService{
		notificationRepo: notificationRepo,
		guardianRepo:     guardianRepo,
		studentRepo:      studentRepo,
		staffRepo:        staffRepo,
		conversationRepo: conversationRepo,
		announcementRepo: announcementRepo,
		dispatcher:       dispatcher,
		publisher:        publisher,
		log:              log.With().Str("component", "notification_service").Logger(),
	}
}

// ─────────────────────────── Fan-out ───────────────────────────

// enabledChannels returns the channels this guardian can actually
// receive on: preference on and destination present.
func enabledChannels(g *model.Guardian) []model.NotificationChannel {
	var channels []model.NotificationChannel
	if g.NotifyEmail && g.Email != "" {
		channels = append(channels, model.ChannelEmail)
	}
	if g.NotifySMS && g.Phone != "" {
		channels = append(channels, model.ChannelSMS)
	}
	if g.NotifyPush && g.PushToken != "" {
		channels = append(channels, model.ChannelPush)
	}
	return channels
}

// NotifyGuardians creates one queued notification row per guardian per
// enabled channel and enqueues a dispatch job for each. Unactivated
// guardians are skipped; they have never set preferences.
func (s *NotificationService) NotifyGuardians(ctx context.Context, scope model.TenantScope, guardians []model.Guardian, subject, body string) (int, error) {
	created := 0
	for i := range guardians {
		g := &guardians[i]
		if !g.IsActivated {
			continue
		}
		for _, channel := range enabledChannels(g) {
			n := &model.Notification{
				ID:            uuid.New(),
				DistrictID:    scope.DistrictID,
				SchoolID:      scope.SchoolID,
				RecipientType: model.RecipientGuardian,
				RecipientID:   g.ID,
				Channel:       channel,
				Subject:       subject,
				Body:          body,
				Status:        model.NotificationQueued,
			}
			if err := s.notificationRepo.Create(ctx, n); err != nil {
				return created, fmt.Errorf("create notification for guardian %d: %w", g.ID, err)
			}
			if err := s.enqueueDispatch(ctx, scope, n.ID); err != nil {
				return created, err
			}
			created++
		}
	}
	return created, nil
}

// NotifyStaff creates one queued email notification per staff member
// and enqueues its dispatch. Staff accounts hold no channel
// preferences; email is the only destination on file.
func (s *NotificationService) NotifyStaff(ctx context.Context, scope model.TenantScope, members []model.Staff, subject, body string) (int, error) {
	created := 0
	for i := range members {
		m := &members[i]
		if !m.IsActive || m.Email == "" {
			continue
		}
		n := &model.Notification{
			ID:            uuid.New(),
			DistrictID:    scope.DistrictID,
			SchoolID:      scope.SchoolID,
			RecipientType: model.RecipientStaff,
			RecipientID:   m.ID,
			Channel:       model.ChannelEmail,
			Subject:       subject,
			Body:          body,
			Status:        model.NotificationQueued,
		}
		if err := s.notificationRepo.Create(ctx, n); err != nil {
			return created, fmt.Errorf("create notification for staff %d: %w", m.ID, err)
		}
		if err := s.enqueueDispatch(ctx, scope, n.ID); err != nil {
			return created, err
		}
		created++
	}
	return created, nil
}

func (s *NotificationService) enqueueDispatch(ctx context.Context, scope model.TenantScope, notificationID uuid.UUID) error {
	env, err := event.NewEnvelope(event.TypeNotificationDispatch, scope, event.NotificationDispatchPayload{
		NotificationID: notificationID,
	})
	if err != nil {
		return err
	}
	return s.publisher.Publish(ctx, config.QueueKey.Notifications, env)
}

// ExpandEnvelope resolves a domain event into notification rows. The
// notification worker calls this for every fan-out event type.
func (s *NotificationService) ExpandEnvelope(ctx context.Context, env *event.Envelope) error {
	scope := model.TenantScope{DistrictID: env.DistrictID, SchoolID: env.SchoolID}

	switch env.Type {
	case event.TypeMessageSent:
		return s.expandMessageSent(ctx, scope, env)
	case event.TypeAnnouncementPublished:
		return s.expandAnnouncement(ctx, scope, env)
	case event.TypeInterventionOpened, event.TypeInterventionEscalated:
		return s.expandIntervention(ctx, scope, env)
	case event.TypeGuardianAlert:
		return s.expandGuardianAlert(ctx, scope, env)
	default:
		return fmt.Errorf("%w: %s", ErrUnknownEventType, env.Type)
	}
}

// expandMessageSent notifies every guardian participant except the
// sender. Staff participants see the thread in-app; no rows for them.
func (s *NotificationService) expandMessageSent(ctx context.Context, scope model.TenantScope, env *event.Envelope) error {
	var payload event.MessageSentPayload
	if err := env.Decode(&payload); err != nil {
		return err
	}

	conversation, err := s.conversationRepo.GetByID(ctx, payload.ConversationID)
	if err != nil {
		return err
	}
	message, err := s.conversationRepo.GetMessage(ctx, payload.MessageID)
	if err != nil {
		return err
	}
	participants, err := s.conversationRepo.Participants(ctx, payload.ConversationID)
	if err != nil {
		return err
	}

	subject := "New message: " + conversation.Subject
	body := fmt.Sprintf("%s wrote: %s", message.SenderName, preview(message.Body, previewLimit))

	var recipients []model.Guardian
	for _, p := range participants {
		if p.Kind != model.ParticipantGuardian {
			continue
		}
		if payload.SenderKind == string(model.ParticipantGuardian) && p.MemberID == payload.SenderID {
			continue
		}
		guardian, err := s.guardianRepo.GetByID(ctx, scope.DistrictID, p.MemberID)
		if err != nil {
			return err
		}
		recipients = append(recipients, *guardian)
	}

	_, err = s.NotifyGuardians(ctx, scope, recipients, subject, body)
	return err
}

// expandAnnouncement fans a published announcement out to the whole
// school's guardians, or just the section's when it is section scoped.
func (s *NotificationService) expandAnnouncement(ctx context.Context, scope model.TenantScope, env *event.Envelope) error {
	var payload event.AnnouncementPublishedPayload
	if err := env.Decode(&payload); err != nil {
		return err
	}

	announcement, err := s.announcementRepo.GetByID(ctx, scope, payload.AnnouncementID)
	if err != nil {
		return err
	}

	var recipients []model.Guardian
	if announcement.SectionID != nil {
		recipients, err = s.guardianRepo.ListForSection(ctx, *announcement.SectionID)
	} else {
		recipients, err = s.guardianRepo.ListForSchool(ctx, scope)
	}
	if err != nil {
		return err
	}

	subject := "Announcement: " + announcement.Title
	_, err = s.NotifyGuardians(ctx, scope, recipients, subject, preview(announcement.Body, previewLimit*2))
	return err
}

// expandIntervention tells the student's guardians a support plan was
// opened or stepped up, and copies the school's counselors so the plan
// gets an owner on the staff side.
func (s *NotificationService) expandIntervention(ctx context.Context, scope model.TenantScope, env *event.Envelope) error {
	var payload event.InterventionPayload
	if err := env.Decode(&payload); err != nil {
		return err
	}

	student, err := s.studentRepo.GetByID(ctx, scope, payload.StudentID)
	if err != nil {
		return err
	}
	recipients, err := s.guardianRepo.ListByStudent(ctx, payload.StudentID)
	if err != nil {
		return err
	}

	verb := "opened"
	if env.Type == event.TypeInterventionEscalated {
		verb = "moved to a higher support level"
	}
	subject := fmt.Sprintf("Support plan update for %s", student.FirstName)
	body := fmt.Sprintf("A tier %d support plan was %s for %s %s. Your school will reach out with next steps.",
		payload.Tier, verb, student.FirstName, student.LastName)

	if _, err := s.NotifyGuardians(ctx, scope, recipients, subject, body); err != nil {
		return err
	}

	counselors, err := s.staffRepo.ListWithPermission(ctx, scope, string(model.PermissionInterventionsWrite))
	if err != nil {
		return err
	}
	staffSubject := fmt.Sprintf("Intervention plan %s: %s %s", verb, student.FirstName, student.LastName)
	staffBody := fmt.Sprintf("A tier %d plan (%s) was %s for %s %s (student #%s). Review it in the interventions dashboard.",
		payload.Tier, payload.Trigger, verb, student.FirstName, student.LastName, student.StudentNumber)
	_, err = s.NotifyStaff(ctx, scope, counselors, staffSubject, staffBody)
	return err
}

// expandGuardianAlert carries a prebuilt subject and body to the
// student's guardians. Used for absence and low grade alerts.
func (s *NotificationService) expandGuardianAlert(ctx context.Context, scope model.TenantScope, env *event.Envelope) error {
	var payload event.GuardianAlertPayload
	if err := env.Decode(&payload); err != nil {
		return err
	}

	recipients, err := s.guardianRepo.ListByStudent(ctx, payload.StudentID)
	if err != nil {
		return err
	}
	_, err = s.NotifyGuardians(ctx, scope, recipients, payload.Subject, payload.Body)
	return err
}

// ─────────────────────────── Delivery ───────────────────────────

// Deliver sends one queued notification through its channel provider.
// attempt is the current envelope attempt and is recorded on the row.
// A returned error tells the consumer to schedule a retry.
func (s *NotificationService) Deliver(ctx context.Context, notificationID uuid.UUID, attempt int) error {
	n, err := s.notificationRepo.GetByID(ctx, notificationID)
	if err != nil {
		return err
	}
	if n.Status == model.NotificationSent {
		// Redelivered envelope after a successful send.
		return nil
	}

	var recipient *notify.Recipient
	switch n.RecipientType {
	case model.RecipientStaff:
		member, err := s.staffRepo.GetByID(ctx, n.DistrictID, n.RecipientID)
		if err != nil {
			return err
		}
		recipient = notify.StaffRecipient(member)
	default:
		guardian, err := s.guardianRepo.GetByID(ctx, n.DistrictID, n.RecipientID)
		if err != nil {
			return err
		}
		recipient = notify.GuardianRecipient(guardian)
	}

	if err := s.dispatcher.Dispatch(ctx, n, recipient); err != nil {
		if markErr := s.notificationRepo.MarkFailed(ctx, n.ID, attempt, err.Error()); markErr != nil {
			s.log.Error().Err(markErr).Str("notification_id", n.ID.String()).Msg("Failed to record delivery failure")
		}
		return err
	}

	return s.notificationRepo.MarkSent(ctx, n.ID, attempt)
}

// MarkDead stamps the row after its dispatch envelope exhausted every
// retry. Called from the consumer's dead-letter hook.
func (s *NotificationService) MarkDead(ctx context.Context, notificationID uuid.UUID, attempts int, lastError string) {
	if err := s.notificationRepo.MarkDead(ctx, notificationID, attempts, lastError); err != nil {
		s.log.Error().Err(err).Str("notification_id", notificationID.String()).Msg("Failed to mark notification dead")
	}
}

// ─────────────────────────── Log / retry ───────────────────────────

func (s *NotificationService) Get(ctx context.Context, scope model.TenantScope, id uuid.UUID) (*model.Notification, error) {
	n, err := s.notificationRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if n.DistrictID != scope.DistrictID || n.SchoolID != scope.SchoolID {
		return nil, pgx.ErrNoRows
	}
	return n, nil
}

func (s *NotificationService) List(ctx context.Context, scope model.TenantScope, status, channel string, limit, offset int) ([]model.Notification, int, error) {
	return s.notificationRepo.ListPaginated(ctx, scope, status, channel, limit, offset)
}

func (s *NotificationService) ListForGuardian(ctx context.Context, guardianID, limit, offset int) ([]model.Notification, int, error) {
	return s.notificationRepo.ListForGuardian(ctx, guardianID, limit, offset)
}

// Retry re-enqueues a dead notification. The row resets to queued with
// a fresh attempt budget.
func (s *NotificationService) Retry(ctx context.Context, scope model.TenantScope, id uuid.UUID) (*model.Notification, error) {
	n, err := s.notificationRepo.ResetForRetry(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	if err := s.enqueueDispatch(ctx, scope, n.ID); err != nil {
		return nil, err
	}
	return n, nil
}

// preview truncates s to at most n runes for inclusion in a
// notification body.
func preview(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n-1]) + "…"
}
