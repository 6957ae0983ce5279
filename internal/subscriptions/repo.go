package subscriptions

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/zimmerhq/zimmer-admin-api/internal/repo"
	"github.com/zimmerhq/zimmer-admin-api/pkg/db/models"
)

// Repository manages persistence for user-automation subscriptions.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, sub *models.UserAutomation) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.UserAutomation, error)
	// GetByIDForUpdate locks the row for the duration of the surrounding
	// transaction so concurrent adjustments serialize per subscription.
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.UserAutomation, error)
	UpdateBalance(ctx context.Context, id uuid.UUID, tokensRemaining int) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.UserAutomation, error)
}

type repository struct {
	base repo.Base
	db   *gorm.DB
}

// NewRepository returns a subscription repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{base: repo.NewBase(db), db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{base: repo.NewBase(tx), db: tx}
}

func (r *repository) Create(ctx context.Context, sub *models.UserAutomation) error {
	return r.base.DB(ctx).Create(sub).Error
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*models.UserAutomation, error) {
	var sub models.UserAutomation
	if err := r.base.DB(ctx).First(&sub, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *repository) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.UserAutomation, error) {
	var sub models.UserAutomation
	if err := r.base.DB(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&sub, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *repository) UpdateBalance(ctx context.Context, id uuid.UUID, tokensRemaining int) error {
	return r.base.DB(ctx).
		Model(&models.UserAutomation{}).
		Where("id = ?", id).
		Update("tokens_remaining", tokensRemaining).Error
}

func (r *repository) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	return r.base.DB(ctx).
		Model(&models.UserAutomation{}).
		Where("id = ?", id).
		Update("status", status).Error
}

func (r *repository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.UserAutomation, error) {
	var subs []models.UserAutomation
	if err := r.base.DB(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&subs).Error; err != nil {
		return nil, err
	}
	return subs, nil
}
