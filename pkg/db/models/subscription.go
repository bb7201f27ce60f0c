package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/estatehubhq/estatehub-backend/pkg/enums"
)

// Subscription tracks a seller's paid plan as mirrored from the billing
// provider. All money movement happens at the provider; this row is the
// local read model.
type Subscription struct {
	ID                   uuid.UUID                `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	UserID               uuid.UUID                `gorm:"column:user_id;type:uuid;not null;uniqueIndex"`
	PlanCode             string                   `gorm:"column:plan_code;type:text;not null"`
	Amount               decimal.Decimal          `gorm:"type:numeric(10,2);not null"`
	Currency             string                   `gorm:"type:text;not null;default:'USD'"`
	Status               enums.SubscriptionStatus `gorm:"type:text;not null;default:'incomplete'"`
	StripeCustomerID     *string                  `gorm:"column:stripe_customer_id;type:text"`
	StripeSubscriptionID *string                  `gorm:"column:stripe_subscription_id;type:text"`
	CurrentPeriodEnd     *time.Time               `gorm:"column:current_period_end"`
	CreatedAt            time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time                `gorm:"column:updated_at;autoUpdateTime"`
}
