package adjustments

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/zimmerhq/zimmer-admin-api/internal/subscriptions"
	"github.com/zimmerhq/zimmer-admin-api/pkg/db/models"
	"github.com/zimmerhq/zimmer-admin-api/pkg/enums"
	pkgerrors "github.com/zimmerhq/zimmer-admin-api/pkg/errors"
)

type fakeAdjustmentRepo struct {
	byKey     map[uuid.UUID]*models.TokenAdjustment
	created   []*models.TokenAdjustment
	failkey   uuid.UUID
	createErr error
}

func newFakeAdjustmentRepo() *fakeAdjustmentRepo {
	return &fakeAdjustmentRepo{byKey: map[uuid.UUID]*models.TokenAdjustment{}}
}

func (f *fakeAdjustmentRepo) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeAdjustmentRepo) Create(ctx context.Context, adjustment *models.TokenAdjustment) error {
	if f.createErr != nil {
		return f.createErr
	}
	if _, ok := f.byKey[adjustment.IdempotencyKey]; ok {
		return errDuplicateKey
	}
	adjustment.ID = uuid.New()
	adjustment.CreatedAt = time.Now().UTC()
	f.byKey[adjustment.IdempotencyKey] = adjustment
	f.created = append(f.created, adjustment)
	return nil
}

func (f *fakeAdjustmentRepo) GetByIdempotencyKey(ctx context.Context, key uuid.UUID) (*models.TokenAdjustment, error) {
	if found, ok := f.byKey[key]; ok {
		return found, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeAdjustmentRepo) List(ctx context.Context, query ListQuery) ([]models.TokenAdjustment, int64, error) {
	items := make([]models.TokenAdjustment, 0, len(f.created))
	for i := len(f.created) - 1; i >= 0; i-- {
		row := f.created[i]
		if query.Reason != nil && row.Reason != *query.Reason {
			continue
		}
		if query.AdminID != nil && row.AdminID != *query.AdminID {
			continue
		}
		items = append(items, *row)
	}
	return items, int64(len(items)), nil
}

func (f *fakeAdjustmentRepo) SumDeltaBySubscription(ctx context.Context, userAutomationID uuid.UUID) (int64, error) {
	var sum int64
	for _, row := range f.created {
		if row.UserAutomationID == userAutomationID {
			sum += int64(row.DeltaTokens)
		}
	}
	return sum, nil
}

type duplicateKeyError struct{}

func (duplicateKeyError) Error() string {
	return `duplicate key value violates unique constraint "ux_token_adjustments_idempotency_key"`
}

var errDuplicateKey = duplicateKeyError{}

type fakeSubscriptionRepo struct {
	byID map[uuid.UUID]*models.UserAutomation
}

func newFakeSubscriptionRepo(subs ...*models.UserAutomation) *fakeSubscriptionRepo {
	f := &fakeSubscriptionRepo{byID: map[uuid.UUID]*models.UserAutomation{}}
	for _, sub := range subs {
		f.byID[sub.ID] = sub
	}
	return f
}

func (f *fakeSubscriptionRepo) WithTx(tx *gorm.DB) subscriptions.Repository { return f }

func (f *fakeSubscriptionRepo) Create(ctx context.Context, sub *models.UserAutomation) error {
	f.byID[sub.ID] = sub
	return nil
}

func (f *fakeSubscriptionRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.UserAutomation, error) {
	if found, ok := f.byID[id]; ok {
		return found, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeSubscriptionRepo) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.UserAutomation, error) {
	return f.GetByID(ctx, id)
}

func (f *fakeSubscriptionRepo) UpdateBalance(ctx context.Context, id uuid.UUID, tokensRemaining int) error {
	sub, ok := f.byID[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	sub.TokensRemaining = tokensRemaining
	return nil
}

func (f *fakeSubscriptionRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	sub, ok := f.byID[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	sub.Status = enums.UserAutomationStatus(status)
	return nil
}

func (f *fakeSubscriptionRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.UserAutomation, error) {
	var out []models.UserAutomation
	for _, sub := range f.byID {
		if sub.UserID == userID {
			out = append(out, *sub)
		}
	}
	return out, nil
}

type fakeTxRunner struct{}

func (fakeTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

func activeSubscription(balance int) *models.UserAutomation {
	return &models.UserAutomation{
		ID:              uuid.New(),
		UserID:          uuid.New(),
		AutomationID:    uuid.New(),
		TokensRemaining: balance,
		Status:          enums.UserAutomationStatusActive,
	}
}

func newTestService(t *testing.T, repo *fakeAdjustmentRepo, subs *fakeSubscriptionRepo) Service {
	t.Helper()
	svc, err := NewService(repo, subs, fakeTxRunner{}, 10000)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func applyInput(sub *models.UserAutomation, delta int) ApplyInput {
	return ApplyInput{
		UserAutomationID: sub.ID,
		AdminID:          uuid.New(),
		DeltaTokens:      delta,
		Reason:           enums.AdjustmentReasonSupportFix,
		Note:             "missed renewal",
		IdempotencyKey:   uuid.New(),
	}
}

func TestApplyMutatesBalanceOnce(t *testing.T) {
	sub := activeSubscription(200)
	repo := newFakeAdjustmentRepo()
	svc := newTestService(t, repo, newFakeSubscriptionRepo(sub))

	input := applyInput(sub, -50)
	applied, replayed, err := svc.Apply(context.Background(), input)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if replayed {
		t.Fatal("first application reported as replay")
	}
	if applied.BalanceAfter != 150 {
		t.Fatalf("balance_after = %d, want 150", applied.BalanceAfter)
	}
	if sub.TokensRemaining != 150 {
		t.Fatalf("subscription balance = %d, want 150", sub.TokensRemaining)
	}

	again, replayed, err := svc.Apply(context.Background(), input)
	if err != nil {
		t.Fatalf("replay Apply: %v", err)
	}
	if !replayed {
		t.Fatal("second application with same key not reported as replay")
	}
	if again.ID != applied.ID {
		t.Fatal("replay returned a different record")
	}
	if sub.TokensRemaining != 150 {
		t.Fatalf("balance mutated twice: %d", sub.TokensRemaining)
	}
	if len(repo.created) != 1 {
		t.Fatalf("created %d rows, want 1", len(repo.created))
	}
}

func TestApplyRejectsKeyReuseWithDifferentPayload(t *testing.T) {
	sub := activeSubscription(200)
	svc := newTestService(t, newFakeAdjustmentRepo(), newFakeSubscriptionRepo(sub))

	input := applyInput(sub, -50)
	if _, _, err := svc.Apply(context.Background(), input); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	input.DeltaTokens = -60
	_, _, err := svc.Apply(context.Background(), input)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeIdempotency {
		t.Fatalf("err = %v, want %s", err, pkgerrors.CodeIdempotency)
	}
	if sub.TokensRemaining != 150 {
		t.Fatalf("balance = %d, want untouched 150", sub.TokensRemaining)
	}
}

func TestApplyRecoversFromInsertRace(t *testing.T) {
	sub := activeSubscription(500)
	repo := newFakeAdjustmentRepo()
	svc := newTestService(t, repo, newFakeSubscriptionRepo(sub))

	input := applyInput(sub, 100)
	winner := &models.TokenAdjustment{
		ID:               uuid.New(),
		UserAutomationID: input.UserAutomationID,
		AdminID:          input.AdminID,
		DeltaTokens:      input.DeltaTokens,
		Reason:           input.Reason,
		Note:             input.Note,
		IdempotencyKey:   input.IdempotencyKey,
		BalanceAfter:     600,
	}
	// The concurrent winner commits between our fast-path read and our
	// insert, so Create fails on the unique index.
	repo.createErr = errDuplicateKey
	repo.byKey[input.IdempotencyKey] = winner

	applied, replayed, err := svc.Apply(context.Background(), input)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if !replayed {
		t.Fatal("race loser did not replay the winner's row")
	}
	if applied.ID != winner.ID {
		t.Fatal("replay returned a different record")
	}
}

func TestApplyCollectsAllViolations(t *testing.T) {
	sub := activeSubscription(100)
	svc := newTestService(t, newFakeAdjustmentRepo(), newFakeSubscriptionRepo(sub))

	input := applyInput(sub, 0)
	input.Reason = enums.AdjustmentReason("typo")
	_, _, err := svc.Apply(context.Background(), input)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("err = %v, want %s", err, pkgerrors.CodeValidation)
	}
	details, ok := typed.Details().(map[string]any)
	if !ok {
		t.Fatalf("details = %T, want map", typed.Details())
	}
	violations, ok := details["violations"].([]string)
	if !ok || len(violations) != 2 {
		t.Fatalf("violations = %v, want zero-delta and unknown-reason", details["violations"])
	}
}

func TestApplyBoundIsConfigurable(t *testing.T) {
	sub := activeSubscription(100)
	svc, err := NewService(newFakeAdjustmentRepo(), newFakeSubscriptionRepo(sub), fakeTxRunner{}, 500)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	if _, _, err := svc.Apply(context.Background(), applyInput(sub, 500)); err != nil {
		t.Fatalf("Apply at bound: %v", err)
	}
	_, _, err = svc.Apply(context.Background(), applyInput(sub, 501))
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("err = %v, want %s", err, pkgerrors.CodeValidation)
	}
}

func TestApplyRefusesInactiveSubscription(t *testing.T) {
	sub := activeSubscription(100)
	sub.Status = enums.UserAutomationStatusSuspended
	svc := newTestService(t, newFakeAdjustmentRepo(), newFakeSubscriptionRepo(sub))

	_, _, err := svc.Apply(context.Background(), applyInput(sub, 10))
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("err = %v, want %s", err, pkgerrors.CodeStateConflict)
	}
}

func TestApplyRefusesNegativeResultingBalance(t *testing.T) {
	sub := activeSubscription(30)
	repo := newFakeAdjustmentRepo()
	svc := newTestService(t, repo, newFakeSubscriptionRepo(sub))

	_, _, err := svc.Apply(context.Background(), applyInput(sub, -31))
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("err = %v, want %s", err, pkgerrors.CodeStateConflict)
	}
	if sub.TokensRemaining != 30 {
		t.Fatalf("balance = %d, want untouched 30", sub.TokensRemaining)
	}
	if len(repo.created) != 0 {
		t.Fatal("rejected adjustment was recorded")
	}
}

func TestApplyUnknownSubscription(t *testing.T) {
	svc := newTestService(t, newFakeAdjustmentRepo(), newFakeSubscriptionRepo())

	input := applyInput(activeSubscription(0), 10)
	_, _, err := svc.Apply(context.Background(), input)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("err = %v, want %s", err, pkgerrors.CodeNotFound)
	}
}

func TestListNewestFirstWithFilters(t *testing.T) {
	sub := activeSubscription(1000)
	repo := newFakeAdjustmentRepo()
	svc := newTestService(t, repo, newFakeSubscriptionRepo(sub))

	promo := applyInput(sub, 100)
	promo.Reason = enums.AdjustmentReasonPromo
	if _, _, err := svc.Apply(context.Background(), promo); err != nil {
		t.Fatalf("Apply promo: %v", err)
	}
	fix := applyInput(sub, -40)
	if _, _, err := svc.Apply(context.Background(), fix); err != nil {
		t.Fatalf("Apply support fix: %v", err)
	}

	reason := enums.AdjustmentReasonPromo
	items, total, err := svc.List(context.Background(), ListInput{Reason: &reason, Page: 1, PageSize: 25})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if total != 1 || len(items) != 1 {
		t.Fatalf("total = %d, items = %d, want 1 promo row", total, len(items))
	}
	if items[0].DeltaTokens != 100 {
		t.Fatalf("filtered row delta = %d, want 100", items[0].DeltaTokens)
	}

	items, total, err = svc.List(context.Background(), ListInput{Page: 1, PageSize: 25})
	if err != nil {
		t.Fatalf("List all: %v", err)
	}
	if total != 2 {
		t.Fatalf("total = %d, want 2", total)
	}
	if items[0].DeltaTokens != -40 {
		t.Fatalf("first item delta = %d, want newest (-40) first", items[0].DeltaTokens)
	}
}

func TestBalanceReportsAuthoritativeValue(t *testing.T) {
	sub := activeSubscription(320)
	svc := newTestService(t, newFakeAdjustmentRepo(), newFakeSubscriptionRepo(sub))

	snapshot, err := svc.Balance(context.Background(), sub.ID)
	if err != nil {
		t.Fatalf("Balance: %v", err)
	}
	if snapshot.TokensRemaining != 320 {
		t.Fatalf("tokens_remaining = %d, want 320", snapshot.TokensRemaining)
	}

	if _, err := svc.Balance(context.Background(), uuid.New()); pkgerrors.As(err) == nil {
		t.Fatal("unknown subscription did not fail")
	}
}
