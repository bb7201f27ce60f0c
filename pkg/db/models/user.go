package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/estatehubhq/estatehub-backend/pkg/enums"
)

// User mirrors the identity record owned by the external auth provider.
// This service never writes credentials; it reads names and roles for
// display and scoping.
type User struct {
	ID        uuid.UUID       `gorm:"type:uuid;primaryKey"`
	Email     string          `gorm:"type:text;not null;uniqueIndex"`
	FullName  string          `gorm:"column:full_name;type:text;not null"`
	Phone     *string         `gorm:"column:phone"`
	Role      enums.ActorRole `gorm:"type:text;not null"`
	IsActive  bool            `gorm:"column:is_active;not null;default:true"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
