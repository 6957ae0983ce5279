package adjustments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/zimmerhq/zimmer-admin-api/internal/subscriptions"
	"github.com/zimmerhq/zimmer-admin-api/pkg/db"
	"github.com/zimmerhq/zimmer-admin-api/pkg/db/models"
	"github.com/zimmerhq/zimmer-admin-api/pkg/enums"
	pkgerrors "github.com/zimmerhq/zimmer-admin-api/pkg/errors"
	"github.com/zimmerhq/zimmer-admin-api/pkg/pagination"
)

const idempotencyConstraint = "ux_token_adjustments_idempotency_key"

// TxRunner executes a function inside one database transaction.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service is the authoritative write and read surface of the token ledger.
type Service interface {
	// Apply records one adjustment at most once per idempotency key. The
	// bool result reports whether the returned record is a replay of an
	// earlier application rather than a fresh mutation.
	Apply(ctx context.Context, input ApplyInput) (*models.TokenAdjustment, bool, error)
	List(ctx context.Context, input ListInput) ([]models.TokenAdjustment, int64, error)
	Balance(ctx context.Context, userAutomationID uuid.UUID) (*BalanceResult, error)
}

// ApplyInput carries one adjustment submission.
type ApplyInput struct {
	UserAutomationID uuid.UUID
	AdminID          uuid.UUID
	DeltaTokens      int
	Reason           enums.AdjustmentReason
	Note             string
	RelatedPaymentID *uuid.UUID
	IdempotencyKey   uuid.UUID
}

// ListInput mirrors the audit view's filters plus page-based pagination.
type ListInput struct {
	UserID       *uuid.UUID
	AutomationID *uuid.UUID
	AdminID      *uuid.UUID
	Reason       *enums.AdjustmentReason
	StartDate    *time.Time
	EndDate      *time.Time
	Page         int
	PageSize     int
}

// BalanceResult is the authoritative balance snapshot for one subscription.
type BalanceResult struct {
	UserAutomationID uuid.UUID
	TokensRemaining  int
}

type service struct {
	repo        Repository
	subs        subscriptions.Repository
	tx          TxRunner
	maxAbsDelta int
}

// NewService wires the ledger service.
func NewService(repo Repository, subs subscriptions.Repository, tx TxRunner, maxAbsDelta int) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("adjustment repository required")
	}
	if subs == nil {
		return nil, fmt.Errorf("subscription repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if maxAbsDelta <= 0 {
		return nil, fmt.Errorf("max abs delta must be positive")
	}
	return &service{repo: repo, subs: subs, tx: tx, maxAbsDelta: maxAbsDelta}, nil
}

func (s *service) Apply(ctx context.Context, input ApplyInput) (*models.TokenAdjustment, bool, error) {
	if err := s.validate(input); err != nil {
		return nil, false, err
	}

	// Fast path: the key has already been applied. Same payload replays the
	// original record; a different payload is a misused key.
	if existing, err := s.repo.GetByIdempotencyKey(ctx, input.IdempotencyKey); err == nil {
		return s.replay(existing, input)
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency key")
	}

	var adjustment *models.TokenAdjustment
	txErr := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		subsRepo := s.subs.WithTx(tx)
		sub, err := subsRepo.GetByIDForUpdate(ctx, input.UserAutomationID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "subscription not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock subscription")
		}
		if sub.Status != enums.UserAutomationStatusActive {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "subscription is not active").
				WithDetails(map[string]any{"status": string(sub.Status)})
		}

		balanceAfter := sub.TokensRemaining + input.DeltaTokens
		if balanceAfter < 0 {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "adjustment would drive balance negative").
				WithDetails(map[string]any{"tokens_remaining": sub.TokensRemaining, "delta_tokens": input.DeltaTokens})
		}

		adjustment = &models.TokenAdjustment{
			UserAutomationID: input.UserAutomationID,
			AdminID:          input.AdminID,
			DeltaTokens:      input.DeltaTokens,
			Reason:           input.Reason,
			Note:             input.Note,
			RelatedPaymentID: input.RelatedPaymentID,
			IdempotencyKey:   input.IdempotencyKey,
			BalanceAfter:     balanceAfter,
		}
		if err := s.repo.WithTx(tx).Create(ctx, adjustment); err != nil {
			return err
		}
		if err := subsRepo.UpdateBalance(ctx, sub.ID, balanceAfter); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update balance")
		}
		return nil
	})
	if txErr != nil {
		// A concurrent request with the same key won the insert race. The
		// unique index makes the loser read the winner's row back.
		if db.IsUniqueViolation(txErr, idempotencyConstraint) {
			existing, err := s.repo.GetByIdempotencyKey(ctx, input.IdempotencyKey)
			if err != nil {
				return nil, false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load replayed adjustment")
			}
			return s.replay(existing, input)
		}
		if typed := pkgerrors.As(txErr); typed != nil {
			return nil, false, typed
		}
		return nil, false, pkgerrors.Wrap(pkgerrors.CodeDependency, txErr, "apply adjustment")
	}

	return adjustment, false, nil
}

func (s *service) replay(existing *models.TokenAdjustment, input ApplyInput) (*models.TokenAdjustment, bool, error) {
	if !samePayload(existing, input) {
		return nil, false, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with a different payload")
	}
	return existing, true, nil
}

func samePayload(existing *models.TokenAdjustment, input ApplyInput) bool {
	if existing == nil {
		return false
	}
	if existing.UserAutomationID != input.UserAutomationID ||
		existing.DeltaTokens != input.DeltaTokens ||
		existing.Reason != input.Reason ||
		existing.Note != input.Note {
		return false
	}
	switch {
	case existing.RelatedPaymentID == nil && input.RelatedPaymentID == nil:
		return true
	case existing.RelatedPaymentID != nil && input.RelatedPaymentID != nil:
		return *existing.RelatedPaymentID == *input.RelatedPaymentID
	default:
		return false
	}
}

func (s *service) validate(input ApplyInput) error {
	var violations []string
	if input.DeltaTokens == 0 {
		violations = append(violations, "delta_tokens cannot be zero")
	}
	if input.DeltaTokens < -s.maxAbsDelta || input.DeltaTokens > s.maxAbsDelta {
		violations = append(violations, fmt.Sprintf("delta_tokens out of bounds (allowed range %d to %d)", -s.maxAbsDelta, s.maxAbsDelta))
	}
	if !input.Reason.IsValid() {
		violations = append(violations, "reason must be a known adjustment reason")
	}
	if input.UserAutomationID == uuid.Nil {
		violations = append(violations, "user_automation_id is required")
	}
	if input.IdempotencyKey == uuid.Nil {
		violations = append(violations, "idempotency_key is required")
	}
	if len(violations) > 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "adjustment rejected").
			WithDetails(map[string]any{"violations": violations})
	}
	if input.AdminID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "acting admin is required")
	}
	return nil
}

func (s *service) List(ctx context.Context, input ListInput) ([]models.TokenAdjustment, int64, error) {
	params := pagination.Params{Page: input.Page, PageSize: input.PageSize}.Normalize()

	query := ListQuery{
		UserID:       input.UserID,
		AutomationID: input.AutomationID,
		AdminID:      input.AdminID,
		Reason:       input.Reason,
		Offset:       params.Offset(),
		Limit:        params.PageSize,
	}
	query.StartDate = input.StartDate
	query.EndDate = input.EndDate
	if input.Reason != nil && !input.Reason.IsValid() {
		return nil, 0, pkgerrors.New(pkgerrors.CodeValidation, "unknown adjustment reason filter")
	}

	items, total, err := s.repo.List(ctx, query)
	if err != nil {
		return nil, 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list adjustments")
	}
	return items, total, nil
}

func (s *service) Balance(ctx context.Context, userAutomationID uuid.UUID) (*BalanceResult, error) {
	if userAutomationID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "subscription id is required")
	}
	sub, err := s.subs.GetByID(ctx, userAutomationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "subscription not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load subscription")
	}
	return &BalanceResult{UserAutomationID: sub.ID, TokensRemaining: sub.TokensRemaining}, nil
}
