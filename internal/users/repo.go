package users

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/zimmerhq/zimmer-admin-api/internal/repo"
	"github.com/zimmerhq/zimmer-admin-api/pkg/db/models"
)

// Repository exposes persistence for panel users.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	List(ctx context.Context, query ListQuery) ([]models.User, int64, error)
	Update(ctx context.Context, user *models.User) error
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
}

// ListQuery filters the paged user listing.
type ListQuery struct {
	Search   string
	IsActive *bool
	Offset   int
	Limit    int
}

type repository struct {
	base repo.Base
}

// NewRepository builds a gorm-backed user repository.
func NewRepository(db *gorm.DB) Repository {
	return &repository{base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{base: repo.NewBase(tx)}
}

func (r *repository) Create(ctx context.Context, user *models.User) error {
	return r.base.DB(ctx).Create(user).Error
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := r.base.DB(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *repository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := r.base.DB(ctx).First(&user, "email = ?", email).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *repository) List(ctx context.Context, query ListQuery) ([]models.User, int64, error) {
	tx := r.base.DB(ctx).Model(&models.User{})
	if query.Search != "" {
		pattern := "%" + query.Search + "%"
		tx = tx.Where("name ILIKE ? OR email ILIKE ?", pattern, pattern)
	}
	if query.IsActive != nil {
		tx = tx.Where("is_active = ?", *query.IsActive)
	}

	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var users []models.User
	if err := tx.Order("created_at DESC").Offset(query.Offset).Limit(query.Limit).Find(&users).Error; err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

func (r *repository) Update(ctx context.Context, user *models.User) error {
	return r.base.DB(ctx).Save(user).Error
}

func (r *repository) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	result := r.base.DB(ctx).Model(&models.User{}).Where("id = ?", id).Update("is_active", active)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
