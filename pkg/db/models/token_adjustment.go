package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/zimmerhq/zimmer-admin-api/pkg/enums"
)

// TokenAdjustment records an immutable manual credit or debit against a
// subscription's token balance. Rows are append-only: they are never updated
// or deleted, and the unique idempotency key guarantees at most one balance
// mutation per submission intent.
type TokenAdjustment struct {
	ID               uuid.UUID              `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserAutomationID uuid.UUID              `gorm:"column:user_automation_id;type:uuid;not null;index"`
	AdminID          uuid.UUID              `gorm:"column:admin_id;type:uuid;not null;index"`
	DeltaTokens      int                    `gorm:"column:delta_tokens;not null"`
	Reason           enums.AdjustmentReason `gorm:"column:reason;type:adjustment_reason_enum;not null"`
	Note             string                 `gorm:"column:note"`
	RelatedPaymentID *uuid.UUID             `gorm:"column:related_payment_id;type:uuid"`
	IdempotencyKey   uuid.UUID              `gorm:"column:idempotency_key;type:uuid;not null;uniqueIndex:ux_token_adjustments_idempotency_key"`
	BalanceAfter     int                    `gorm:"column:balance_after;not null"`
	CreatedAt        time.Time              `gorm:"column:created_at;autoCreateTime;index"`
}
