package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/estatehubhq/estatehub-backend/pkg/enums"
)

// Lead records one buyer's interest in one property. Leads are never hard
// deleted; they transition status instead. Buyer contact fields are stored
// unredacted and masked at the API boundary until the linked transaction
// reaches DEPOSIT_PAID.
type Lead struct {
	ID         uuid.UUID        `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	PropertyID uuid.UUID        `gorm:"column:property_id;type:uuid;not null;index"`
	BuyerID    uuid.UUID        `gorm:"column:buyer_id;type:uuid;not null;index"`
	SellerID   uuid.UUID        `gorm:"column:seller_id;type:uuid;not null;index"`
	AgentID    *uuid.UUID       `gorm:"column:agent_id;type:uuid;index"`
	Status     enums.LeadStatus `gorm:"type:text;not null;default:'pending'"`
	BuyerName  string           `gorm:"column:buyer_name;type:text;not null"`
	BuyerEmail string           `gorm:"column:buyer_email;type:text;not null"`
	BuyerPhone string           `gorm:"column:buyer_phone;type:text;not null"`
	Message    *string          `gorm:"type:text"`
	Notes      *string          `gorm:"type:text"`
	CreatedAt  time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time        `gorm:"column:updated_at;autoUpdateTime"`

	Property    *Property    `gorm:"foreignKey:PropertyID"`
	Transaction *Transaction `gorm:"foreignKey:LeadID"`
}
