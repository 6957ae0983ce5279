package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/zimmerhq/zimmer-admin-api/internal/subscriptions"
	"github.com/zimmerhq/zimmer-admin-api/pkg/db/models"
	"github.com/zimmerhq/zimmer-admin-api/pkg/enums"
	pkgerrors "github.com/zimmerhq/zimmer-admin-api/pkg/errors"
	"github.com/zimmerhq/zimmer-admin-api/pkg/pagination"
)

// TxRunner executes a function inside one database transaction.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service records gateway payments and settles them against subscriptions.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*models.Payment, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Payment, error)
	List(ctx context.Context, input ListInput) ([]models.Payment, int64, error)
	// MarkPaid settles a pending payment and credits its token purchase to
	// the subscription in the same transaction.
	MarkPaid(ctx context.Context, id uuid.UUID, refNumber string) (*models.Payment, error)
	MarkFailed(ctx context.Context, id uuid.UUID) (*models.Payment, error)
}

// CreateInput carries a new pending payment.
type CreateInput struct {
	UserAutomationID uuid.UUID
	Amount           decimal.Decimal
	Currency         string
	TokensPurchased  int
}

// ListInput filters the paged payment listing.
type ListInput struct {
	UserAutomationID *uuid.UUID
	Status           *enums.PaymentStatus
	StartDate        *time.Time
	EndDate          *time.Time
	Page             int
	PageSize         int
}

type service struct {
	repo Repository
	subs subscriptions.Repository
	tx   TxRunner
}

// NewService wires the payment service.
func NewService(repo Repository, subs subscriptions.Repository, tx TxRunner) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("payment repository required")
	}
	if subs == nil {
		return nil, fmt.Errorf("subscription repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{repo: repo, subs: subs, tx: tx}, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*models.Payment, error) {
	if input.UserAutomationID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user_automation_id is required")
	}
	if input.Amount.IsNegative() || input.Amount.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}
	if input.TokensPurchased <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tokens_purchased must be positive")
	}
	if _, err := s.subs.GetByID(ctx, input.UserAutomationID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "subscription not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load subscription")
	}

	currency := input.Currency
	if currency == "" {
		currency = "IRR"
	}
	payment := &models.Payment{
		ID:               uuid.New(),
		UserAutomationID: input.UserAutomationID,
		Amount:           input.Amount,
		Currency:         currency,
		TokensPurchased:  input.TokensPurchased,
		Status:           enums.PaymentStatusPending,
	}
	if err := s.repo.Create(ctx, payment); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payment")
	}
	return payment, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	payment, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
	}
	return payment, nil
}

func (s *service) List(ctx context.Context, input ListInput) ([]models.Payment, int64, error) {
	if input.Status != nil && !input.Status.IsValid() {
		return nil, 0, pkgerrors.New(pkgerrors.CodeValidation, "unknown payment status filter")
	}
	params := pagination.Params{Page: input.Page, PageSize: input.PageSize}.Normalize()
	payments, total, err := s.repo.List(ctx, ListQuery{
		UserAutomationID: input.UserAutomationID,
		Status:           input.Status,
		StartDate:        input.StartDate,
		EndDate:          input.EndDate,
		Offset:           params.Offset(),
		Limit:            params.PageSize,
	})
	if err != nil {
		return nil, 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list payments")
	}
	return payments, total, nil
}

func (s *service) MarkPaid(ctx context.Context, id uuid.UUID, refNumber string) (*models.Payment, error) {
	payment, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if payment.Status != enums.PaymentStatusPending {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "payment is not pending").
			WithDetails(map[string]any{"status": string(payment.Status)})
	}

	now := time.Now().UTC()
	txErr := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		subsRepo := s.subs.WithTx(tx)
		sub, err := subsRepo.GetByIDForUpdate(ctx, payment.UserAutomationID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock subscription")
		}
		if err := s.repo.WithTx(tx).Settle(ctx, payment.ID, refNumber, now); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "settle payment")
		}
		return subsRepo.UpdateBalance(ctx, sub.ID, sub.TokensRemaining+payment.TokensPurchased)
	})
	if txErr != nil {
		if typed := pkgerrors.As(txErr); typed != nil {
			return nil, typed
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, txErr, "mark payment paid")
	}

	payment.Status = enums.PaymentStatusPaid
	payment.PaidAt = &now
	payment.RefNumber = refNumber
	return payment, nil
}

func (s *service) MarkFailed(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	payment, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if payment.Status != enums.PaymentStatusPending {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "payment is not pending").
			WithDetails(map[string]any{"status": string(payment.Status)})
	}
	if err := s.repo.UpdateStatus(ctx, payment.ID, enums.PaymentStatusFailed, nil); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark payment failed")
	}
	payment.Status = enums.PaymentStatusFailed
	return payment, nil
}
