package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/estatehubhq/estatehub-backend/pkg/types"
)

// Property is a seller's listing. It exists here as the foreign-key target
// for leads, appointments, and transactions; listing management itself lives
// with the listings collaborator.
type Property struct {
	ID        uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	SellerID  uuid.UUID       `gorm:"column:seller_id;type:uuid;not null;index"`
	Title     string          `gorm:"type:text;not null"`
	Address   types.Address   `gorm:"column:address;type:address_t;not null"`
	Price     decimal.Decimal `gorm:"type:numeric(14,2);not null"`
	Currency  string          `gorm:"type:text;not null;default:'USD'"`
	Listed    bool            `gorm:"column:listed;not null;default:true"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
