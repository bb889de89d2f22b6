package service

import (
	"context"

	"github.com/skillcore/skillcore-backend/internal/model"
	"github.com/skillcore/skillcore-backend/internal/repository"
)

// SchoolService manages the campuses of a district.
type SchoolService struct {
	schoolRepo   *repository.SchoolRepository
	districtRepo *repository.DistrictRepository
}

func NewSchoolService(schoolRepo *repository.SchoolRepository, districtRepo *repository.DistrictRepository) *SchoolService {
	return &SchoolService{schoolRepo: schoolRepo, districtRepo: districtRepo}
}

func (s *SchoolService) GetDistrict(ctx context.Context, districtID int) (*model.District, error) {
	return s.districtRepo.GetByID(ctx, districtID)
}

func (s *SchoolService) Get(ctx context.Context, districtID, id int) (*model.School, error) {
	return s.schoolRepo.GetByID(ctx, districtID, id)
}

func (s *SchoolService) List(ctx context.Context, districtID int) ([]model.School, error) {
	return s.schoolRepo.ListByDistrict(ctx, districtID)
}

func (s *SchoolService) Create(ctx context.Context, districtID int, req *model.CreateSchoolRequest) (*model.School, error) {
	school := &model.School{
		DistrictID: districtID,
		Name:       req.Name,
		Code:       req.Code,
		Timezone:   req.Timezone,
	}
	if school.Timezone == "" {
		school.Timezone = "UTC"
	}
	if err := s.schoolRepo.Create(ctx, school); err != nil {
		return nil, err
	}
	return school, nil
}

func (s *SchoolService) Update(ctx context.Context, districtID, id int, req *model.CreateSchoolRequest) (*model.School, error) {
	school, err := s.schoolRepo.GetByID(ctx, districtID, id)
	if err != nil {
		return nil, err
	}

	school.Name = req.Name
	school.Code = req.Code
	if req.Timezone != "" {
		school.Timezone = req.Timezone
	}
	if err := s.schoolRepo.Update(ctx, school); err != nil {
		return nil, err
	}
	return school, nil
}
