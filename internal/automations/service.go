package automations

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/zimmerhq/zimmer-admin-api/pkg/db/models"
	"github.com/zimmerhq/zimmer-admin-api/pkg/enums"
	pkgerrors "github.com/zimmerhq/zimmer-admin-api/pkg/errors"
	"github.com/zimmerhq/zimmer-admin-api/pkg/pagination"
)

// Service manages the automation catalog.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*models.Automation, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Automation, error)
	List(ctx context.Context, input ListInput) ([]models.Automation, int64, error)
	Update(ctx context.Context, id uuid.UUID, input UpdateInput) (*models.Automation, error)
}

// CreateInput carries a new automation product.
type CreateInput struct {
	Name          string
	Description   string
	PricePerToken decimal.Decimal
}

// UpdateInput carries editable automation fields; nil means unchanged.
type UpdateInput struct {
	Name          *string
	Description   *string
	PricePerToken *decimal.Decimal
	Status        *enums.AutomationStatus
}

// ListInput filters the paged automation listing.
type ListInput struct {
	Status   *enums.AutomationStatus
	Page     int
	PageSize int
}

type service struct {
	repo Repository
}

// NewService wires the automation catalog service.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("automation repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*models.Automation, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}
	if input.PricePerToken.IsNegative() || input.PricePerToken.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "price_per_token must be positive")
	}

	automation := &models.Automation{
		ID:            uuid.New(),
		Name:          name,
		Description:   strings.TrimSpace(input.Description),
		PricePerToken: input.PricePerToken,
		Status:        enums.AutomationStatusActive,
	}
	if err := s.repo.Create(ctx, automation); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create automation")
	}
	return automation, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Automation, error) {
	automation, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "automation not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load automation")
	}
	return automation, nil
}

func (s *service) List(ctx context.Context, input ListInput) ([]models.Automation, int64, error) {
	if input.Status != nil && !input.Status.IsValid() {
		return nil, 0, pkgerrors.New(pkgerrors.CodeValidation, "unknown automation status filter")
	}
	params := pagination.Params{Page: input.Page, PageSize: input.PageSize}.Normalize()
	automations, total, err := s.repo.List(ctx, ListQuery{
		Status: input.Status,
		Offset: params.Offset(),
		Limit:  params.PageSize,
	})
	if err != nil {
		return nil, 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list automations")
	}
	return automations, total, nil
}

func (s *service) Update(ctx context.Context, id uuid.UUID, input UpdateInput) (*models.Automation, error) {
	automation, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "name cannot be empty")
		}
		automation.Name = name
	}
	if input.Description != nil {
		automation.Description = strings.TrimSpace(*input.Description)
	}
	if input.PricePerToken != nil {
		if input.PricePerToken.IsNegative() || input.PricePerToken.IsZero() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "price_per_token must be positive")
		}
		automation.PricePerToken = *input.PricePerToken
	}
	if input.Status != nil {
		if !input.Status.IsValid() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown automation status")
		}
		automation.Status = *input.Status
	}
	if err := s.repo.Update(ctx, automation); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update automation")
	}
	return automation, nil
}
