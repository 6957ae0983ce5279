package payments

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/zimmerhq/zimmer-admin-api/internal/repo"
	"github.com/zimmerhq/zimmer-admin-api/pkg/db/models"
	"github.com/zimmerhq/zimmer-admin-api/pkg/enums"
)

// Repository exposes persistence for gateway payments.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, payment *models.Payment) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Payment, error)
	List(ctx context.Context, query ListQuery) ([]models.Payment, int64, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status enums.PaymentStatus, paidAt *time.Time) error
	Settle(ctx context.Context, id uuid.UUID, refNumber string, paidAt time.Time) error
}

// ListQuery filters the paged payment listing.
type ListQuery struct {
	UserAutomationID *uuid.UUID
	Status           *enums.PaymentStatus
	StartDate        *time.Time
	EndDate          *time.Time
	Offset           int
	Limit            int
}

type repository struct {
	base repo.Base
}

// NewRepository builds a gorm-backed payment repository.
func NewRepository(db *gorm.DB) Repository {
	return &repository{base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{base: repo.NewBase(tx)}
}

func (r *repository) Create(ctx context.Context, payment *models.Payment) error {
	return r.base.DB(ctx).Create(payment).Error
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	if err := r.base.DB(ctx).First(&payment, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *repository) List(ctx context.Context, query ListQuery) ([]models.Payment, int64, error) {
	tx := r.base.DB(ctx).Model(&models.Payment{})
	if query.UserAutomationID != nil {
		tx = tx.Where("user_automation_id = ?", *query.UserAutomationID)
	}
	if query.Status != nil {
		tx = tx.Where("status = ?", *query.Status)
	}
	if query.StartDate != nil {
		tx = tx.Where("created_at >= ?", *query.StartDate)
	}
	if query.EndDate != nil {
		// inclusive end of day
		tx = tx.Where("created_at < ?", query.EndDate.AddDate(0, 0, 1))
	}

	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var payments []models.Payment
	if err := tx.Order("created_at DESC").Offset(query.Offset).Limit(query.Limit).Find(&payments).Error; err != nil {
		return nil, 0, err
	}
	return payments, total, nil
}

func (r *repository) UpdateStatus(ctx context.Context, id uuid.UUID, status enums.PaymentStatus, paidAt *time.Time) error {
	updates := map[string]any{"status": status}
	if paidAt != nil {
		updates["paid_at"] = *paidAt
	}
	result := r.base.DB(ctx).Model(&models.Payment{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *repository) Settle(ctx context.Context, id uuid.UUID, refNumber string, paidAt time.Time) error {
	result := r.base.DB(ctx).Model(&models.Payment{}).Where("id = ?", id).Updates(map[string]any{
		"status":     enums.PaymentStatusPaid,
		"ref_number": refNumber,
		"paid_at":    paidAt,
	})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
