package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/zimmerhq/zimmer-admin-api/pkg/enums"
)

// Payment is a gateway transaction that purchased tokens for a subscription.
// Adjustments may back-reference a payment when they correct it.
type Payment struct {
	ID               uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserAutomationID uuid.UUID           `gorm:"column:user_automation_id;type:uuid;not null;index"`
	Amount           decimal.Decimal     `gorm:"column:amount;type:numeric(14,2);not null"`
	Currency         string              `gorm:"column:currency;not null;default:'IRR'"`
	TokensPurchased  int                 `gorm:"column:tokens_purchased;not null"`
	Status           enums.PaymentStatus `gorm:"column:status;type:payment_status_enum;not null"`
	RefNumber        string              `gorm:"column:ref_number;index"`
	PaidAt           *time.Time          `gorm:"column:paid_at"`
	CreatedAt        time.Time           `gorm:"column:created_at;autoCreateTime;index"`
}
