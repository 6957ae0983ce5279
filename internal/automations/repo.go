package automations

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/zimmerhq/zimmer-admin-api/internal/repo"
	"github.com/zimmerhq/zimmer-admin-api/pkg/db/models"
	"github.com/zimmerhq/zimmer-admin-api/pkg/enums"
)

// Repository exposes persistence for resold automation products.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, automation *models.Automation) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Automation, error)
	List(ctx context.Context, query ListQuery) ([]models.Automation, int64, error)
	Update(ctx context.Context, automation *models.Automation) error
}

// ListQuery filters the paged automation listing.
type ListQuery struct {
	Status *enums.AutomationStatus
	Offset int
	Limit  int
}

type repository struct {
	base repo.Base
}

// NewRepository builds a gorm-backed automation repository.
func NewRepository(db *gorm.DB) Repository {
	return &repository{base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{base: repo.NewBase(tx)}
}

func (r *repository) Create(ctx context.Context, automation *models.Automation) error {
	return r.base.DB(ctx).Create(automation).Error
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Automation, error) {
	var automation models.Automation
	if err := r.base.DB(ctx).First(&automation, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &automation, nil
}

func (r *repository) List(ctx context.Context, query ListQuery) ([]models.Automation, int64, error) {
	tx := r.base.DB(ctx).Model(&models.Automation{})
	if query.Status != nil {
		tx = tx.Where("status = ?", *query.Status)
	}

	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var automations []models.Automation
	if err := tx.Order("created_at DESC").Offset(query.Offset).Limit(query.Limit).Find(&automations).Error; err != nil {
		return nil, 0, err
	}
	return automations, total, nil
}

func (r *repository) Update(ctx context.Context, automation *models.Automation) error {
	return r.base.DB(ctx).Save(automation).Error
}
