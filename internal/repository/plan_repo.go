package repository

import (
	"context"
	"strings"
	"time"

	"hokenhub/internal/model"

	"gorm.io/gorm"
)

// PlanFilter narrows a directory listing. PlanName is a case-insensitive
// substring match.
type PlanFilter struct {
	Facility string
	PlanName string
}

// FacilityPlanCount is one row of the per-facility plan tally
type FacilityPlanCount struct {
	FacilityName string
	Total        int64
}

type PlanRepository interface {
	Create(ctx context.Context, plan *model.InsurancePlan) error
	GetByID(ctx context.Context, id string) (*model.InsurancePlan, error)
	List(ctx context.Context, filter PlanFilter) ([]model.InsurancePlan, error)
	Update(ctx context.Context, plan *model.InsurancePlan) error
	Delete(ctx context.Context, id string) error
	CountByFacility(ctx context.Context) ([]FacilityPlanCount, error)
	CountCreatedBetween(ctx context.Context, start, end time.Time) (int64, error)
}

type planRepository struct {
	db *gorm.DB
}

func NewPlanRepository(db *gorm.DB) PlanRepository {
	return &planRepository{db: db}
}

func (r *planRepository) Create(ctx context.Context, plan *model.InsurancePlan) error {
	return GetDB(ctx, r.db).Create(plan).Error
}

func (r *planRepository) GetByID(ctx context.Context, id string) (*model.InsurancePlan, error) {
	var plan model.InsurancePlan
	if err := GetDB(ctx, r.db).First(&plan, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &plan, nil
}

func (r *planRepository) List(ctx context.Context, filter PlanFilter) ([]model.InsurancePlan, error) {
	var plans []model.InsurancePlan

	query := GetDB(ctx, r.db).Model(&model.InsurancePlan{})
	if filter.Facility != "" {
		query = query.Where("facility_name = ?", filter.Facility)
	}
	if name := strings.TrimSpace(filter.PlanName); name != "" {
		query = query.Where(`LOWER(plan_name) LIKE ? ESCAPE '\'`, "%"+escapeLike(strings.ToLower(name))+"%")
	}
	err := query.Order("descriptive_name ASC").Find(&plans).Error
	return plans, err
}

// Update persists every mutable column; facility_name is create-only on the model
func (r *planRepository) Update(ctx context.Context, plan *model.InsurancePlan) error {
	return GetDB(ctx, r.db).Save(plan).Error
}

func (r *planRepository) Delete(ctx context.Context, id string) error {
	res := GetDB(ctx, r.db).Where("id = ?", id).Delete(&model.InsurancePlan{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *planRepository) CountByFacility(ctx context.Context) ([]FacilityPlanCount, error) {
	var rows []FacilityPlanCount
	err := GetDB(ctx, r.db).Model(&model.InsurancePlan{}).
		Select("facility_name, COUNT(*) AS total").
		Group("facility_name").
		Order("facility_name").
		Scan(&rows).Error
	return rows, err
}

func (r *planRepository) CountCreatedBetween(ctx context.Context, start, end time.Time) (int64, error) {
	var n int64
	err := GetDB(ctx, r.db).Model(&model.InsurancePlan{}).
		Where("created_at >= ? AND created_at <= ?", start, end).
		Count(&n).Error
	return n, err
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
