package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/estatehubhq/estatehub-backend/pkg/enums"
)

// SupportTicket is one conversation with the support desk. Status moves only
// through admin actions.
type SupportTicket struct {
	ID        uuid.UUID          `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	UserID    uuid.UUID          `gorm:"column:user_id;type:uuid;not null;index"`
	Subject   string             `gorm:"type:text;not null"`
	Status    enums.TicketStatus `gorm:"type:text;not null;default:'OPEN'"`
	CreatedAt time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time          `gorm:"column:updated_at;autoUpdateTime"`

	Messages []SupportMessage `gorm:"foreignKey:TicketID"`
}

// SupportMessage is one entry in a ticket's ordered message list. Admin
// messages may carry a multiple-choice prompt in Metadata.
type SupportMessage struct {
	ID         uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	TicketID   uuid.UUID       `gorm:"column:ticket_id;type:uuid;not null;index"`
	AuthorID   uuid.UUID       `gorm:"column:author_id;type:uuid;not null"`
	AuthorRole enums.ActorRole `gorm:"column:author_role;type:text;not null"`
	Body       string          `gorm:"type:text;not null"`
	Metadata   json.RawMessage `gorm:"type:jsonb"`
	CreatedAt  time.Time       `gorm:"column:created_at;autoCreateTime"`
}
