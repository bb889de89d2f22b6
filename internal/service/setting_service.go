package service

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/skillcore/skillcore-backend/internal/repository"
)

// SettingService exposes per-district tuning knobs: grading scale
// cutoffs and intervention thresholds.
type SettingService struct {
	settingRepo *repository.SettingRepository
	log         zerolog.Logger
}

func NewSettingService(settingRepo *repository.SettingRepository, log zerolog.Logger) *SettingService {
	return &SettingService{
		settingRepo: settingRepo,
		log:         log.With().Str("component", "setting_service").Logger(),
	}
}

func (s *SettingService) GetAllSettings(ctx context.Context, districtID int) (map[string]string, error) {
	settingsList, err := s.settingRepo.GetAll(ctx, districtID)
	if err != nil {
		s.log.Error().Err(err).Int("district_id", districtID).Msg("failed to get all settings")
		return nil, err
	}

	settingsMap := make(map[string]string)
	for _, setting := range settingsList {
		settingsMap[setting.Key] = setting.Value
	}
	return settingsMap, nil
}

func (s *SettingService) UpdateSettings(ctx context.Context, districtID int, settingsMap map[string]string) error {
	// Simple iterative upsert since settings are low volume.
	for key, value := range settingsMap {
		if err := s.settingRepo.Upsert(ctx, districtID, key, value); err != nil {
			s.log.Error().Err(err).Str("key", key).Msg("failed to update setting")
			return err
		}
	}
	return nil
}

func (s *SettingService) GetSettingByKey(ctx context.Context, districtID int, key string) (string, error) {
	setting, err := s.settingRepo.GetByKey(ctx, districtID, key)
	if err != nil {
		return "", err
	}
	return setting.Value, nil
}

// GradeCutoffsFor resolves the district's letter grade scale.
func (s *SettingService) GradeCutoffsFor(ctx context.Context, districtID int) (GradeCutoffs, error) {
	settings, err := s.GetAllSettings(ctx, districtID)
	if err != nil {
		return DefaultCutoffs, err
	}
	return CutoffsFromSettings(settings), nil
}

// RulesFor resolves the district's intervention thresholds.
func (s *SettingService) RulesFor(ctx context.Context, districtID int) (RuleConfig, error) {
	settings, err := s.GetAllSettings(ctx, districtID)
	if err != nil {
		return DefaultRules, err
	}
	return RulesFromSettings(settings), nil
}
