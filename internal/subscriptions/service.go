package subscriptions

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/zimmerhq/zimmer-admin-api/pkg/db/models"
	"github.com/zimmerhq/zimmer-admin-api/pkg/enums"
	pkgerrors "github.com/zimmerhq/zimmer-admin-api/pkg/errors"
)

// Service defines operations on user-automation subscriptions.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*models.UserAutomation, error)
	Get(ctx context.Context, id uuid.UUID) (*models.UserAutomation, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.UserAutomation, error)
	SetStatus(ctx context.Context, id uuid.UUID, status enums.UserAutomationStatus) error
}

// CreateInput captures the data a new subscription requires.
type CreateInput struct {
	UserID       uuid.UUID
	AutomationID uuid.UUID
	DemoTokens   int
}

type service struct {
	repo Repository
}

// NewService wires a subscription service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("subscription repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*models.UserAutomation, error) {
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if input.AutomationID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "automation id is required")
	}
	if input.DemoTokens < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "demo tokens cannot be negative")
	}

	sub := &models.UserAutomation{
		UserID:       input.UserID,
		AutomationID: input.AutomationID,
		DemoTokens:   input.DemoTokens,
		Status:       enums.UserAutomationStatusActive,
	}
	if err := s.repo.Create(ctx, sub); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create subscription")
	}
	return sub, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.UserAutomation, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "subscription id is required")
	}
	sub, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "subscription not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load subscription")
	}
	return sub, nil
}

func (s *service) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.UserAutomation, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	subs, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list subscriptions")
	}
	return subs, nil
}

func (s *service) SetStatus(ctx context.Context, id uuid.UUID, status enums.UserAutomationStatus) error {
	if id == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "subscription id is required")
	}
	if !status.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid subscription status %q", status))
	}
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.repo.UpdateStatus(ctx, id, string(status)); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update subscription status")
	}
	return nil
}
