package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/estatehubhq/estatehub-backend/pkg/enums"
)

// ProgressNotification is one timestamped entry in a transaction's progress
// history. Entries are append-only; only ReadAt changes after creation.
type ProgressNotification struct {
	ID            uuid.UUID              `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	TransactionID uuid.UUID              `gorm:"column:transaction_id;type:uuid;not null;index"`
	Message       string                 `gorm:"type:text;not null"`
	RecipientRole enums.ActorRole        `gorm:"column:recipient_role;type:text;not null"`
	Stage         string                 `gorm:"type:text;not null"`
	Category      enums.ProgressCategory `gorm:"type:text;not null;default:'general'"`
	ReadAt        *time.Time             `gorm:"column:read_at"`
	CreatedAt     time.Time              `gorm:"column:created_at;autoCreateTime"`
}

// IsUnread mirrors the wire-level flag the clients render.
func (p ProgressNotification) IsUnread() bool {
	return p.ReadAt == nil
}
