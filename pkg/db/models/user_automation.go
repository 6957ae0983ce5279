package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/zimmerhq/zimmer-admin-api/pkg/enums"
)

// UserAutomation links one user to one automation and carries the
// authoritative token balance. The balance is only ever mutated through
// purchases, consumption, and ledgered adjustments.
type UserAutomation struct {
	ID              uuid.UUID                  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID          uuid.UUID                  `gorm:"column:user_id;type:uuid;not null;index"`
	AutomationID    uuid.UUID                  `gorm:"column:automation_id;type:uuid;not null;index"`
	TokensRemaining int                        `gorm:"column:tokens_remaining;not null;default:0"`
	DemoTokens      int                        `gorm:"column:demo_tokens;not null;default:0"`
	Status          enums.UserAutomationStatus `gorm:"column:status;type:user_automation_status_enum;not null"`
	CreatedAt       time.Time                  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time                  `gorm:"column:updated_at;autoUpdateTime"`
}
