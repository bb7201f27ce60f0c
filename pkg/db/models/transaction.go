package models

import (
	"time"

	"github.com/google/uuid"
)

// Transaction statuses. Stage is the source of truth for the current phase;
// Status is derived on every write. INTERESTED survives only on rows written
// before the stage column became authoritative.
const (
	TransactionStatusInterested = "INTERESTED"
	TransactionStatusActive     = "ACTIVE"
	TransactionStatusCompleted  = "COMPLETED"
	TransactionStatusCancelled  = "CANCELLED"
)

// Transaction is the 1:1 companion of a lead once a formal purchase process
// starts. Stage moves monotonically forward along the fixed order, with
// CANCELLED as the absorbing alternative.
type Transaction struct {
	ID             uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	LeadID         uuid.UUID  `gorm:"column:lead_id;type:uuid;not null;uniqueIndex"`
	PropertyID     uuid.UUID  `gorm:"column:property_id;type:uuid;not null;index"`
	BuyerID        uuid.UUID  `gorm:"column:buyer_id;type:uuid;not null;index"`
	SellerID       uuid.UUID  `gorm:"column:seller_id;type:uuid;not null;index"`
	AgentID        *uuid.UUID `gorm:"column:agent_id;type:uuid;index"`
	Status         string     `gorm:"type:text;not null;default:'ACTIVE'"`
	Stage          string     `gorm:"type:text;not null;default:'PENDING'"`
	StageUpdatedAt time.Time  `gorm:"column:stage_updated_at;not null"`
	CreatedAt      time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time  `gorm:"column:updated_at;autoUpdateTime"`

	Notifications []ProgressNotification `gorm:"foreignKey:TransactionID"`
}
