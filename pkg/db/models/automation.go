package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/zimmerhq/zimmer-admin-api/pkg/enums"
)

// Automation is a resold AI integration product with metered token pricing.
type Automation struct {
	ID            uuid.UUID              `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name          string                 `gorm:"column:name;not null"`
	Description   string                 `gorm:"column:description"`
	PricePerToken decimal.Decimal        `gorm:"column:price_per_token;type:numeric(12,4);not null"`
	Status        enums.AutomationStatus `gorm:"column:status;type:automation_status_enum;not null"`
	CreatedAt     time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}
