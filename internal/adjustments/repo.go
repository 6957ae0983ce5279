package adjustments

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/zimmerhq/zimmer-admin-api/internal/repo"
	"github.com/zimmerhq/zimmer-admin-api/pkg/db/models"
	"github.com/zimmerhq/zimmer-admin-api/pkg/enums"
)

// ListQuery narrows the adjustment history read. Nil fields are ignored;
// populated fields combine with AND.
type ListQuery struct {
	UserID       *uuid.UUID
	AutomationID *uuid.UUID
	AdminID      *uuid.UUID
	Reason       *enums.AdjustmentReason
	StartDate    *time.Time
	EndDate      *time.Time
	Offset       int
	Limit        int
}

// Repository manages persistence for the token adjustment ledger. Rows are
// append-only: there is deliberately no update or delete surface.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, adjustment *models.TokenAdjustment) error
	GetByIdempotencyKey(ctx context.Context, key uuid.UUID) (*models.TokenAdjustment, error)
	List(ctx context.Context, query ListQuery) ([]models.TokenAdjustment, int64, error)
	SumDeltaBySubscription(ctx context.Context, userAutomationID uuid.UUID) (int64, error)
}

type repository struct {
	base repo.Base
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{base: repo.NewBase(tx)}
}

func (r *repository) Create(ctx context.Context, adjustment *models.TokenAdjustment) error {
	return r.base.DB(ctx).Create(adjustment).Error
}

func (r *repository) GetByIdempotencyKey(ctx context.Context, key uuid.UUID) (*models.TokenAdjustment, error) {
	var adjustment models.TokenAdjustment
	if err := r.base.DB(ctx).
		First(&adjustment, "idempotency_key = ?", key).Error; err != nil {
		return nil, err
	}
	return &adjustment, nil
}

func (r *repository) List(ctx context.Context, query ListQuery) ([]models.TokenAdjustment, int64, error) {
	scope := r.base.DB(ctx).Model(&models.TokenAdjustment{})

	if query.UserID != nil || query.AutomationID != nil {
		scope = scope.Joins("JOIN user_automations ON user_automations.id = token_adjustments.user_automation_id")
		if query.UserID != nil {
			scope = scope.Where("user_automations.user_id = ?", *query.UserID)
		}
		if query.AutomationID != nil {
			scope = scope.Where("user_automations.automation_id = ?", *query.AutomationID)
		}
	}
	if query.AdminID != nil {
		scope = scope.Where("token_adjustments.admin_id = ?", *query.AdminID)
	}
	if query.Reason != nil {
		scope = scope.Where("token_adjustments.reason = ?", *query.Reason)
	}
	if query.StartDate != nil {
		scope = scope.Where("token_adjustments.created_at >= ?", *query.StartDate)
	}
	if query.EndDate != nil {
		// inclusive end of day
		scope = scope.Where("token_adjustments.created_at < ?", query.EndDate.AddDate(0, 0, 1))
	}

	var total int64
	if err := scope.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var items []models.TokenAdjustment
	if err := scope.
		Order("token_adjustments.created_at DESC").
		Offset(query.Offset).
		Limit(query.Limit).
		Find(&items).Error; err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (r *repository) SumDeltaBySubscription(ctx context.Context, userAutomationID uuid.UUID) (int64, error) {
	var sum int64
	err := r.base.DB(ctx).
		Model(&models.TokenAdjustment{}).
		Where("user_automation_id = ?", userAutomationID).
		Select("COALESCE(SUM(delta_tokens), 0)").
		Scan(&sum).Error
	return sum, err
}
