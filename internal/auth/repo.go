package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/zimmerhq/zimmer-admin-api/internal/repo"
	"github.com/zimmerhq/zimmer-admin-api/pkg/db/models"
)

// AdminRepository exposes persistence for staff accounts.
type AdminRepository interface {
	Create(ctx context.Context, admin *models.AdminUser) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.AdminUser, error)
	FindByEmail(ctx context.Context, email string) (*models.AdminUser, error)
	UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error
}

type adminRepository struct {
	base repo.Base
}

// NewAdminRepository builds a gorm-backed staff account repository.
func NewAdminRepository(db *gorm.DB) AdminRepository {
	return &adminRepository{base: repo.NewBase(db)}
}

func (r *adminRepository) Create(ctx context.Context, admin *models.AdminUser) error {
	return r.base.DB(ctx).Create(admin).Error
}

func (r *adminRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.AdminUser, error) {
	var admin models.AdminUser
	if err := r.base.DB(ctx).First(&admin, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &admin, nil
}

func (r *adminRepository) FindByEmail(ctx context.Context, email string) (*models.AdminUser, error) {
	var admin models.AdminUser
	if err := r.base.DB(ctx).First(&admin, "email = ?", email).Error; err != nil {
		return nil, err
	}
	return &admin, nil
}

func (r *adminRepository) UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.base.DB(ctx).Model(&models.AdminUser{}).Where("id = ?", id).Update("last_login_at", at).Error
}
