package repository

import (
	"context"

	"hokenhub/internal/model"

	"gorm.io/gorm"
)

type FacilityRepository interface {
	Create(ctx context.Context, facility *model.Facility) error
	GetByName(ctx context.Context, name string) (*model.Facility, error)
	List(ctx context.Context) ([]model.Facility, error)
	// Missing returns the subset of names that have no facility row
	Missing(ctx context.Context, names []string) ([]string, error)
	Update(ctx context.Context, facility *model.Facility) error
}

type facilityRepository struct {
	db *gorm.DB
}

func NewFacilityRepository(db *gorm.DB) FacilityRepository {
	return &facilityRepository{db: db}
}

func (r *facilityRepository) Create(ctx context.Context, facility *model.Facility) error {
	return GetDB(ctx, r.db).Create(facility).Error
}

func (r *facilityRepository) GetByName(ctx context.Context, name string) (*model.Facility, error) {
	var f model.Facility
	if err := GetDB(ctx, r.db).First(&f, "name = ?", name).Error; err != nil {
		return nil, err
	}
	return &f, nil
}

func (r *facilityRepository) List(ctx context.Context) ([]model.Facility, error) {
	var facilities []model.Facility
	err := GetDB(ctx, r.db).Order("name").Find(&facilities).Error
	return facilities, err
}

func (r *facilityRepository) Missing(ctx context.Context, names []string) ([]string, error) {
	if len(names) == 0 {
		return nil, nil
	}
	var found []string
	if err := GetDB(ctx, r.db).Model(&model.Facility{}).Where("name IN ?", names).Pluck("name", &found).Error; err != nil {
		return nil, err
	}
	var missing []string
	for _, n := range names {
		if !model.ContainsFacility(found, n) {
			missing = append(missing, n)
		}
	}
	return missing, nil
}

func (r *facilityRepository) Update(ctx context.Context, facility *model.Facility) error {
	return GetDB(ctx, r.db).Save(facility).Error
}
