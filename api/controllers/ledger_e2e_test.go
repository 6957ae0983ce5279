package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/zimmerhq/zimmer-admin-api/api/middleware"
	"github.com/zimmerhq/zimmer-admin-api/internal/adjustments"
	"github.com/zimmerhq/zimmer-admin-api/internal/subscriptions"
	"github.com/zimmerhq/zimmer-admin-api/pkg/db/models"
	"github.com/zimmerhq/zimmer-admin-api/pkg/enums"
	"github.com/zimmerhq/zimmer-admin-api/pkg/ledgerclient"
)

// In-memory stores so the round trip exercises the real service logic and the
// real HTTP surface without a database.

type memLedgerRepo struct {
	mu   sync.Mutex
	rows []*models.TokenAdjustment
}

func (m *memLedgerRepo) WithTx(tx *gorm.DB) adjustments.Repository { return m }

func (m *memLedgerRepo) Create(_ context.Context, adjustment *models.TokenAdjustment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	adjustment.ID = uuid.New()
	clone := *adjustment
	m.rows = append(m.rows, &clone)
	return nil
}

func (m *memLedgerRepo) GetByIdempotencyKey(_ context.Context, key uuid.UUID) (*models.TokenAdjustment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range m.rows {
		if row.IdempotencyKey == key {
			clone := *row
			return &clone, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *memLedgerRepo) List(_ context.Context, query adjustments.ListQuery) ([]models.TokenAdjustment, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	matched := make([]models.TokenAdjustment, 0, len(m.rows))
	for i := len(m.rows) - 1; i >= 0; i-- {
		row := m.rows[i]
		if query.AdminID != nil && row.AdminID != *query.AdminID {
			continue
		}
		if query.Reason != nil && row.Reason != *query.Reason {
			continue
		}
		matched = append(matched, *row)
	}
	total := int64(len(matched))
	if query.Offset >= len(matched) {
		return nil, total, nil
	}
	matched = matched[query.Offset:]
	if query.Limit > 0 && len(matched) > query.Limit {
		matched = matched[:query.Limit]
	}
	return matched, total, nil
}

func (m *memLedgerRepo) SumDeltaBySubscription(_ context.Context, userAutomationID uuid.UUID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var sum int64
	for _, row := range m.rows {
		if row.UserAutomationID == userAutomationID {
			sum += int64(row.DeltaTokens)
		}
	}
	return sum, nil
}

type memSubsRepo struct {
	mu   sync.Mutex
	byID map[uuid.UUID]*models.UserAutomation
}

func (m *memSubsRepo) WithTx(tx *gorm.DB) subscriptions.Repository { return m }

func (m *memSubsRepo) Create(_ context.Context, sub *models.UserAutomation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[sub.ID] = sub
	return nil
}

func (m *memSubsRepo) GetByID(_ context.Context, id uuid.UUID) (*models.UserAutomation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sub, ok := m.byID[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	clone := *sub
	return &clone, nil
}

func (m *memSubsRepo) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.UserAutomation, error) {
	return m.GetByID(ctx, id)
}

func (m *memSubsRepo) UpdateBalance(_ context.Context, id uuid.UUID, tokensRemaining int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sub, ok := m.byID[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	sub.TokensRemaining = tokensRemaining
	return nil
}

func (m *memSubsRepo) UpdateStatus(_ context.Context, id uuid.UUID, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sub, ok := m.byID[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	sub.Status = enums.UserAutomationStatus(status)
	return nil
}

func (m *memSubsRepo) ListByUser(_ context.Context, userID uuid.UUID) ([]models.UserAutomation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.UserAutomation
	for _, sub := range m.byID {
		if sub.UserID == userID {
			out = append(out, *sub)
		}
	}
	return out, nil
}

type passthroughTx struct{}

func (passthroughTx) WithTx(_ context.Context, fn func(tx *gorm.DB) error) error { return fn(nil) }

func startLedgerServer(t *testing.T, adminID uuid.UUID, svc adjustments.Service) *httptest.Server {
	t.Helper()
	logg := testLogg()

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx := middleware.WithAdminID(req.Context(), adminID.String())
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	})
	r.Route("/api/admin/v1/tokens", func(r chi.Router) {
		r.Post("/adjust", TokensAdjust(svc, logg))
		r.Get("/adjustments", TokensList(svc, logg, 25))
		r.Get("/balance/{userAutomationID}", TokensBalance(svc, logg))
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

type recordingSink struct {
	kinds []ledgerclient.NotificationKind
}

func (s *recordingSink) Notify(kind ledgerclient.NotificationKind, _ string) {
	s.kinds = append(s.kinds, kind)
}

func TestLedgerClientRoundTrip(t *testing.T) {
	adminID := uuid.New()
	subID := uuid.New()
	subs := &memSubsRepo{byID: map[uuid.UUID]*models.UserAutomation{
		subID: {
			ID:              subID,
			UserID:          uuid.New(),
			AutomationID:    uuid.New(),
			TokensRemaining: 200,
			Status:          enums.UserAutomationStatusActive,
		},
	}}
	ledger := &memLedgerRepo{}

	svc, err := adjustments.NewService(ledger, subs, passthroughTx{}, 10000)
	if err != nil {
		t.Fatalf("build service: %v", err)
	}

	srv := startLedgerServer(t, adminID, svc)
	client, err := ledgerclient.NewClient(srv.URL+"/api/admin/v1", ledgerclient.StaticTokenSource("e2e-token"))
	if err != nil {
		t.Fatalf("build client: %v", err)
	}
	ctx := context.Background()

	sink := &recordingSink{}
	intent, err := ledgerclient.NewIntent(subID, 200, client, ledgerclient.DefaultPolicy(), sink)
	if err != nil {
		t.Fatalf("open intent: %v", err)
	}
	if err := intent.SetDelta(-50); err != nil {
		t.Fatalf("set delta: %v", err)
	}
	if err := intent.SetReason(enums.AdjustmentReasonSupportFix); err != nil {
		t.Fatalf("set reason: %v", err)
	}
	if got := intent.PreviewBalance(); got != 150 {
		t.Fatalf("expected preview 150, got %d", got)
	}

	key := intent.Key()
	applied, err := intent.Submit(ctx)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if applied.BalanceAfter != 150 {
		t.Fatalf("expected balance_after 150, got %d", applied.BalanceAfter)
	}
	if applied.IdempotencyKey != key {
		t.Fatalf("expected the intent key on the applied record")
	}
	if intent.State() != ledgerclient.StateApplied || intent.Key() != uuid.Nil {
		t.Fatalf("expected applied intent with retired key, got %s", intent.State())
	}
	if len(sink.kinds) != 1 || sink.kinds[0] != ledgerclient.NotifySuccess {
		t.Fatalf("expected one success notification, got %v", sink.kinds)
	}

	// A raw resubmission with the same key replays the original record and
	// leaves exactly one ledger row.
	replayed, err := client.Submit(ctx, ledgerclient.AdjustmentRequest{
		UserAutomationID: subID,
		DeltaTokens:      -50,
		Reason:           enums.AdjustmentReasonSupportFix,
		IdempotencyKey:   key,
	})
	if err != nil {
		t.Fatalf("replay submit: %v", err)
	}
	if replayed.ID != applied.ID {
		t.Fatalf("expected the original record on replay")
	}
	if len(ledger.rows) != 1 {
		t.Fatalf("expected exactly one ledger row, got %d", len(ledger.rows))
	}

	// Same key with a different payload must be rejected without mutation.
	_, err = client.Submit(ctx, ledgerclient.AdjustmentRequest{
		UserAutomationID: subID,
		DeltaTokens:      -60,
		Reason:           enums.AdjustmentReasonSupportFix,
		IdempotencyKey:   key,
	})
	if !ledgerclient.IsRejection(err) {
		t.Fatalf("expected rejection for payload mismatch, got %v", err)
	}
	if len(ledger.rows) != 1 {
		t.Fatalf("payload mismatch must not mutate the ledger")
	}

	snapshot, err := client.Balance(ctx, subID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if snapshot.TokensRemaining != 150 {
		t.Fatalf("expected authoritative balance 150, got %d", snapshot.TokensRemaining)
	}

	// Second intent gets a fresh key and stacks on the new balance.
	second, err := ledgerclient.NewIntent(subID, snapshot.TokensRemaining, client, ledgerclient.DefaultPolicy(), nil)
	if err != nil {
		t.Fatalf("open second intent: %v", err)
	}
	if second.Key() == key {
		t.Fatalf("expected a fresh idempotency key per intent")
	}
	if err := second.SetDelta(30); err != nil {
		t.Fatalf("set delta: %v", err)
	}
	if err := second.SetReason(enums.AdjustmentReasonPromo); err != nil {
		t.Fatalf("set reason: %v", err)
	}
	if _, err := second.Submit(ctx); err != nil {
		t.Fatalf("second submit: %v", err)
	}

	promo := enums.AdjustmentReasonPromo
	page, err := client.List(ctx, ledgerclient.ListFilter{Reason: &promo, Page: 1, PageSize: 10})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if page.Total != 1 || len(page.Items) != 1 || page.Items[0].DeltaTokens != 30 {
		t.Fatalf("unexpected filtered page: total=%d items=%d", page.Total, len(page.Items))
	}

	page, err = client.List(ctx, ledgerclient.ListFilter{Page: 1, PageSize: 10})
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if page.Total != 2 || page.Items[0].DeltaTokens != 30 {
		t.Fatalf("expected newest first across %d rows", page.Total)
	}
}

func TestLedgerClientSurfacesStateConflicts(t *testing.T) {
	adminID := uuid.New()
	subID := uuid.New()
	subs := &memSubsRepo{byID: map[uuid.UUID]*models.UserAutomation{
		subID: {
			ID:              subID,
			UserID:          uuid.New(),
			AutomationID:    uuid.New(),
			TokensRemaining: 10,
			Status:          enums.UserAutomationStatusActive,
		},
	}}
	svc, err := adjustments.NewService(&memLedgerRepo{}, subs, passthroughTx{}, 10000)
	if err != nil {
		t.Fatalf("build service: %v", err)
	}
	srv := startLedgerServer(t, adminID, svc)
	client, err := ledgerclient.NewClient(srv.URL+"/api/admin/v1", ledgerclient.StaticTokenSource("e2e-token"))
	if err != nil {
		t.Fatalf("build client: %v", err)
	}
	ctx := context.Background()

	// Overdraw: the server refuses and the intent stays editable with the
	// same key, so the operator can correct and retry.
	sink := &recordingSink{}
	intent, err := ledgerclient.NewIntent(subID, 10, client, ledgerclient.DefaultPolicy(), sink)
	if err != nil {
		t.Fatalf("open intent: %v", err)
	}
	if err := intent.SetDelta(-40); err != nil {
		t.Fatalf("set delta: %v", err)
	}
	if err := intent.SetReason(enums.AdjustmentReasonManual); err != nil {
		t.Fatalf("set reason: %v", err)
	}
	key := intent.Key()

	_, err = intent.Submit(ctx)
	if !ledgerclient.IsRejection(err) {
		t.Fatalf("expected rejection for overdraw, got %v", err)
	}
	if intent.State() != ledgerclient.StateEditing || intent.Key() != key {
		t.Fatalf("expected intent back in editing with the same key")
	}
	if len(sink.kinds) != 1 || sink.kinds[0] != ledgerclient.NotifyError {
		t.Fatalf("expected an error notification, got %v", sink.kinds)
	}

	// Corrected retry with the same key applies.
	if err := intent.SetDelta(-5); err != nil {
		t.Fatalf("correct delta: %v", err)
	}
	applied, err := intent.Submit(ctx)
	if err != nil {
		t.Fatalf("corrected submit: %v", err)
	}
	if applied.BalanceAfter != 5 || applied.IdempotencyKey != key {
		t.Fatalf("expected corrected apply under the original key, got %+v", applied)
	}
}
