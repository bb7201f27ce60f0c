package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/estatehubhq/estatehub-backend/pkg/enums"
)

// Appointment is a scheduled property viewing tied to a lead.
type Appointment struct {
	ID          uuid.UUID               `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	LeadID      uuid.UUID               `gorm:"column:lead_id;type:uuid;not null;index"`
	PropertyID  uuid.UUID               `gorm:"column:property_id;type:uuid;not null;index"`
	BuyerID     uuid.UUID               `gorm:"column:buyer_id;type:uuid;not null;index"`
	SellerID    uuid.UUID               `gorm:"column:seller_id;type:uuid;not null;index"`
	AgentID     *uuid.UUID              `gorm:"column:agent_id;type:uuid;index"`
	ScheduledAt time.Time               `gorm:"column:scheduled_at;not null"`
	Status      enums.AppointmentStatus `gorm:"type:text;not null;default:'scheduled'"`
	Notes       *string                 `gorm:"type:text"`
	CreatedAt   time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}
