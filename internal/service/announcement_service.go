package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/skillcore/skillcore-backend/internal/config"
	"github.com/skillcore/skillcore-backend/internal/event"
	"github.com/skillcore/skillcore-backend/internal/model"
	"github.com/skillcore/skillcore-backend/internal/repository"
)

// AnnouncementService manages school and section announcements.
// Drafts are editable; publishing is one way and triggers guardian
// notification fan-out.
type AnnouncementService struct {
	announcementRepo *repository.AnnouncementRepository
	sectionRepo      *repository.SectionRepository
	publisher        *event.Publisher
	log              zerolog.Logger
}

func NewAnnouncementService(
	announcementRepo *repository.AnnouncementRepository,
	sectionRepo *repository.SectionRepository,
	publisher *event.Publisher,
	log zerolog.Logger,
) *AnnouncementService {
	return &AnnouncementService{
		announcementRepo: announcementRepo,
		sectionRepo:      sectionRepo,
		publisher:        publisher,
		log:              log.With().Str("component", "announcement_service").Logger(),
	}
}

func (s *AnnouncementService) Get(ctx context.Context, scope model.TenantScope, id uuid.UUID) (*model.Announcement, error) {
	return s.announcementRepo.GetByID(ctx, scope, id)
}

func (s *AnnouncementService) List(ctx context.Context, scope model.TenantScope, includeDrafts bool, limit, offset int) ([]model.Announcement, int, error) {
	return s.announcementRepo.ListBySchool(ctx, scope, includeDrafts, limit, offset)
}

func (s *AnnouncementService) Create(ctx context.Context, scope model.TenantScope, authorID int, req *model.CreateAnnouncementRequest) (*model.Announcement, error) {
	if req.SectionID != nil {
		if _, err := s.sectionRepo.GetByID(ctx, scope, *req.SectionID); err != nil {
			return nil, err
		}
	}

	announcement := &model.Announcement{
		ID:         uuid.New(),
		DistrictID: scope.DistrictID,
		SchoolID:   scope.SchoolID,
		SectionID:  req.SectionID,
		AuthorID:   authorID,
		Title:      req.Title,
		Body:       req.Body,
	}
	if err := s.announcementRepo.Create(ctx, announcement); err != nil {
		return nil, err
	}
	return announcement, nil
}

// Update edits a draft. Published announcements are immutable so
// guardians never see an alert whose text later changed.
func (s *AnnouncementService) Update(ctx context.Context, scope model.TenantScope, id uuid.UUID, req *model.UpdateAnnouncementRequest) (*model.Announcement, error) {
	announcement, err := s.announcementRepo.GetByID(ctx, scope, id)
	if err != nil {
		return nil, err
	}

	announcement.Title = req.Title
	announcement.Body = req.Body
	if err := s.announcementRepo.Update(ctx, announcement); err != nil {
		return nil, err
	}
	return announcement, nil
}

// Publish flips the draft live and enqueues the notification fan-out.
func (s *AnnouncementService) Publish(ctx context.Context, scope model.TenantScope, id uuid.UUID) (*model.Announcement, error) {
	announcement, err := s.announcementRepo.Publish(ctx, scope, id)
	if err != nil {
		return nil, err
	}

	env, err := event.NewEnvelope(event.TypeAnnouncementPublished, scope, event.AnnouncementPublishedPayload{
		AnnouncementID: announcement.ID,
	})
	if err != nil {
		s.log.Error().Err(err).Str("announcement_id", id.String()).Msg("Failed to build announcement event")
	} else if err := s.publisher.Publish(ctx, config.QueueKey.Notifications, env); err != nil {
		s.log.Error().Err(err).Str("announcement_id", id.String()).Msg("Failed to enqueue announcement fan-out")
	}

	return announcement, nil
}

func (s *AnnouncementService) Delete(ctx context.Context, scope model.TenantScope, id uuid.UUID) error {
	return s.announcementRepo.Delete(ctx, scope, id)
}

// ListForGuardian returns announcements visible to any of the
// guardian's children: school-wide posts plus their sections'.
func (s *AnnouncementService) ListForGuardian(ctx context.Context, guardianID, limit, offset int) ([]model.Announcement, int, error) {
	return s.announcementRepo.ListForGuardian(ctx, guardianID, limit, offset)
}
