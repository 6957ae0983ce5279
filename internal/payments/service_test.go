package payments

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/zimmerhq/zimmer-admin-api/internal/subscriptions"
	"github.com/zimmerhq/zimmer-admin-api/pkg/db/models"
	"github.com/zimmerhq/zimmer-admin-api/pkg/enums"
	pkgerrors "github.com/zimmerhq/zimmer-admin-api/pkg/errors"
)

type fakePaymentRepo struct {
	byID map[uuid.UUID]*models.Payment
}

func newFakePaymentRepo() *fakePaymentRepo {
	return &fakePaymentRepo{byID: map[uuid.UUID]*models.Payment{}}
}

func (f *fakePaymentRepo) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakePaymentRepo) Create(ctx context.Context, payment *models.Payment) error {
	payment.CreatedAt = time.Now().UTC()
	f.byID[payment.ID] = payment
	return nil
}

func (f *fakePaymentRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	if found, ok := f.byID[id]; ok {
		copied := *found
		return &copied, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakePaymentRepo) List(ctx context.Context, query ListQuery) ([]models.Payment, int64, error) {
	var out []models.Payment
	for _, payment := range f.byID {
		if query.Status != nil && payment.Status != *query.Status {
			continue
		}
		out = append(out, *payment)
	}
	return out, int64(len(out)), nil
}

func (f *fakePaymentRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status enums.PaymentStatus, paidAt *time.Time) error {
	payment, ok := f.byID[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	payment.Status = status
	if paidAt != nil {
		payment.PaidAt = paidAt
	}
	return nil
}

func (f *fakePaymentRepo) Settle(ctx context.Context, id uuid.UUID, refNumber string, paidAt time.Time) error {
	payment, ok := f.byID[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	payment.Status = enums.PaymentStatusPaid
	payment.RefNumber = refNumber
	payment.PaidAt = &paidAt
	return nil
}

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
	return nil, nil
}

type fakeTxRunner struct{}

func (fakeTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

func newTestService(t *testing.T, repo *fakePaymentRepo, subs *fakeSubscriptionRepo) Service {
	t.Helper()
	svc, err := NewService(repo, subs, fakeTxRunner{})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func TestMarkPaidCreditsTokens(t *testing.T) {
	sub := &models.UserAutomation{ID: uuid.New(), TokensRemaining: 100, Status: enums.UserAutomationStatusActive}
	repo := newFakePaymentRepo()
	svc := newTestService(t, repo, newFakeSubscriptionRepo(sub))

	payment, err := svc.Create(context.Background(), CreateInput{
		UserAutomationID: sub.ID,
		Amount:           decimal.NewFromInt(250000),
		TokensPurchased:  500,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if payment.Status != enums.PaymentStatusPending {
		t.Fatalf("status = %s, want pending", payment.Status)
	}
	if payment.Currency != "IRR" {
		t.Fatalf("currency = %s, want default IRR", payment.Currency)
	}

	settled, err := svc.MarkPaid(context.Background(), payment.ID, "REF-42")
	if err != nil {
		t.Fatalf("MarkPaid: %v", err)
	}
	if settled.Status != enums.PaymentStatusPaid || settled.PaidAt == nil {
		t.Fatalf("settled = %+v, want paid with timestamp", settled)
	}
	if sub.TokensRemaining != 600 {
		t.Fatalf("balance = %d, want 600", sub.TokensRemaining)
	}
	if repo.byID[payment.ID].RefNumber != "REF-42" {
		t.Fatalf("ref_number = %q, want REF-42", repo.byID[payment.ID].RefNumber)
	}
}

func TestMarkPaidRefusesSettledPayment(t *testing.T) {
	sub := &models.UserAutomation{ID: uuid.New(), TokensRemaining: 100, Status: enums.UserAutomationStatusActive}
	repo := newFakePaymentRepo()
	svc := newTestService(t, repo, newFakeSubscriptionRepo(sub))

	payment, err := svc.Create(context.Background(), CreateInput{
		UserAutomationID: sub.ID,
		Amount:           decimal.NewFromInt(1000),
		TokensPurchased:  10,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := svc.MarkPaid(context.Background(), payment.ID, "REF-1"); err != nil {
		t.Fatalf("MarkPaid: %v", err)
	}

	_, err = svc.MarkPaid(context.Background(), payment.ID, "REF-2")
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("err = %v, want %s", err, pkgerrors.CodeStateConflict)
	}
	if sub.TokensRemaining != 110 {
		t.Fatalf("balance credited twice: %d", sub.TokensRemaining)
	}
}

func TestMarkFailed(t *testing.T) {
	sub := &models.UserAutomation{ID: uuid.New(), TokensRemaining: 100, Status: enums.UserAutomationStatusActive}
	svc := newTestService(t, newFakePaymentRepo(), newFakeSubscriptionRepo(sub))

	payment, err := svc.Create(context.Background(), CreateInput{
		UserAutomationID: sub.ID,
		Amount:           decimal.NewFromInt(1000),
		TokensPurchased:  10,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	failed, err := svc.MarkFailed(context.Background(), payment.ID)
	if err != nil {
		t.Fatalf("MarkFailed: %v", err)
	}
	if failed.Status != enums.PaymentStatusFailed {
		t.Fatalf("status = %s, want failed", failed.Status)
	}
	if sub.TokensRemaining != 100 {
		t.Fatalf("balance = %d, want untouched 100", sub.TokensRemaining)
	}
}

func TestCreateValidation(t *testing.T) {
	sub := &models.UserAutomation{ID: uuid.New(), Status: enums.UserAutomationStatusActive}
	svc := newTestService(t, newFakePaymentRepo(), newFakeSubscriptionRepo(sub))

	cases := []struct {
		name  string
		input CreateInput
	}{
		{"zero amount", CreateInput{UserAutomationID: sub.ID, Amount: decimal.Zero, TokensPurchased: 10}},
		{"zero tokens", CreateInput{UserAutomationID: sub.ID, Amount: decimal.NewFromInt(100), TokensPurchased: 0}},
		{"missing subscription id", CreateInput{Amount: decimal.NewFromInt(100), TokensPurchased: 10}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), tc.input)
			typed := pkgerrors.As(err)
			if typed == nil || typed.Code() != pkgerrors.CodeValidation {
				t.Fatalf("err = %v, want %s", err, pkgerrors.CodeValidation)
			}
		})
	}

	_, err := svc.Create(context.Background(), CreateInput{
		UserAutomationID: uuid.New(),
		Amount:           decimal.NewFromInt(100),
		TokensPurchased:  10,
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("err = %v, want %s", err, pkgerrors.CodeNotFound)
	}
}
