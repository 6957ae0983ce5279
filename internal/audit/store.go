package audit

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/zimmerhq/zimmer-admin-api/internal/repo"
)

// BalanceMismatch reports a subscription whose stored balance disagrees with
// the value reconstructed from demo tokens, settled payments, and adjustments.
type BalanceMismatch struct {
	UserAutomationID uuid.UUID `gorm:"column:user_automation_id"`
	TokensRemaining  int       `gorm:"column:tokens_remaining"`
	Expected         int       `gorm:"column:expected"`
}

// NegativeBalance reports a subscription holding a negative token balance.
type NegativeBalance struct {
	UserAutomationID uuid.UUID `gorm:"column:user_automation_id"`
	TokensRemaining  int       `gorm:"column:tokens_remaining"`
}

// DuplicateKey reports an idempotency key appearing on more than one adjustment.
type DuplicateKey struct {
	IdempotencyKey uuid.UUID `gorm:"column:idempotency_key"`
	Count          int       `gorm:"column:count"`
}

// Store runs the integrity queries behind the ledger audit job.
type Store interface {
	ListNegativeBalances(ctx context.Context, limit int) ([]NegativeBalance, error)
	ListBalanceMismatches(ctx context.Context, limit int) ([]BalanceMismatch, error)
	ListDuplicateIdempotencyKeys(ctx context.Context, limit int) ([]DuplicateKey, error)
}

type store struct {
	base repo.Base
}

// NewStore builds a gorm-backed audit store.
func NewStore(db *gorm.DB) Store {
	return &store{base: repo.NewBase(db)}
}

func (s *store) ListNegativeBalances(ctx context.Context, limit int) ([]NegativeBalance, error) {
	var rows []NegativeBalance
	err := s.base.DB(ctx).Raw(`
		SELECT id AS user_automation_id, tokens_remaining
		FROM user_automations
		WHERE tokens_remaining < 0
		ORDER BY tokens_remaining ASC
		LIMIT ?`, limit).Scan(&rows).Error
	return rows, err
}

func (s *store) ListBalanceMismatches(ctx context.Context, limit int) ([]BalanceMismatch, error) {
	var rows []BalanceMismatch
	err := s.base.DB(ctx).Raw(`
		SELECT ua.id AS user_automation_id,
		       ua.tokens_remaining,
		       ua.demo_tokens + COALESCE(p.paid_tokens, 0) + COALESCE(a.adjusted, 0) AS expected
		FROM user_automations ua
		LEFT JOIN (
			SELECT user_automation_id, SUM(tokens_purchased) AS paid_tokens
			FROM payments
			WHERE status = 'paid'
			GROUP BY user_automation_id
		) p ON p.user_automation_id = ua.id
		LEFT JOIN (
			SELECT user_automation_id, SUM(delta_tokens) AS adjusted
			FROM token_adjustments
			GROUP BY user_automation_id
		) a ON a.user_automation_id = ua.id
		WHERE ua.tokens_remaining <> ua.demo_tokens + COALESCE(p.paid_tokens, 0) + COALESCE(a.adjusted, 0)
		LIMIT ?`, limit).Scan(&rows).Error
	return rows, err
}

func (s *store) ListDuplicateIdempotencyKeys(ctx context.Context, limit int) ([]DuplicateKey, error) {
	var rows []DuplicateKey
	err := s.base.DB(ctx).Raw(`
		SELECT idempotency_key, COUNT(*) AS count
		FROM token_adjustments
		GROUP BY idempotency_key
		HAVING COUNT(*) > 1
		LIMIT ?`, limit).Scan(&rows).Error
	return rows, err
}
