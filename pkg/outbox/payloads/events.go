package payloads

import (
	"time"

	"github.com/estatehubhq/estatehub-backend/pkg/enums"
	"github.com/google/uuid"
)

// LeadCreatedEvent signals a buyer registered interest in a property.
type LeadCreatedEvent struct {
	LeadID     uuid.UUID `json:"lead_id"`
	PropertyID uuid.UUID `json:"property_id"`
	BuyerID    uuid.UUID `json:"buyer_id"`
	SellerID   uuid.UUID `json:"seller_id"`
}

// LeadStatusChangedEvent is emitted when a seller or agent moves a lead.
type LeadStatusChangedEvent struct {
	LeadID     uuid.UUID        `json:"lead_id"`
	PropertyID uuid.UUID        `json:"property_id"`
	BuyerID    uuid.UUID        `json:"buyer_id"`
	FromStatus enums.LeadStatus `json:"from_status"`
	ToStatus   enums.LeadStatus `json:"to_status"`
}

// TransactionOpenedEvent is emitted once per lead when its transaction record is created.
type TransactionOpenedEvent struct {
	TransactionID uuid.UUID `json:"transaction_id"`
	LeadID        uuid.UUID `json:"lead_id"`
	PropertyID    uuid.UUID `json:"property_id"`
	BuyerID       uuid.UUID `json:"buyer_id"`
	SellerID      uuid.UUID `json:"seller_id"`
}

// TransactionStageAdvancedEvent carries a forward stage move.
type TransactionStageAdvancedEvent struct {
	TransactionID uuid.UUID `json:"transaction_id"`
	LeadID        uuid.UUID `json:"lead_id"`
	BuyerID       uuid.UUID `json:"buyer_id"`
	SellerID      uuid.UUID `json:"seller_id"`
	FromStage     string    `json:"from_stage"`
	ToStage       string    `json:"to_stage"`
	AdvancedAt    time.Time `json:"advanced_at"`
}

// TransactionCancelledEvent is emitted when a transaction terminates early.
type TransactionCancelledEvent struct {
	TransactionID uuid.UUID `json:"transaction_id"`
	LeadID        uuid.UUID `json:"lead_id"`
	FromStage     string    `json:"from_stage"`
	CancelledAt   time.Time `json:"cancelled_at"`
	Reason        string    `json:"reason,omitempty"`
}

// AppointmentStatusChangedEvent reports scheduling moves for a lead's
// viewing. ChangedBy is nil when the move came from a background sweep.
type AppointmentStatusChangedEvent struct {
	AppointmentID uuid.UUID               `json:"appointment_id"`
	LeadID        uuid.UUID               `json:"lead_id"`
	BuyerID       uuid.UUID               `json:"buyer_id"`
	SellerID      uuid.UUID               `json:"seller_id"`
	FromStatus    enums.AppointmentStatus `json:"from_status"`
	ToStatus      enums.AppointmentStatus `json:"to_status"`
	ScheduledAt   time.Time               `json:"scheduled_at"`
	ChangedBy     *uuid.UUID              `json:"changed_by,omitempty"`
}

// SupportMessagePostedEvent tells downstream systems a ticket thread grew.
type SupportMessagePostedEvent struct {
	TicketID      uuid.UUID `json:"ticket_id"`
	TicketOwnerID uuid.UUID `json:"ticket_owner_id"`
	MessageID     uuid.UUID `json:"message_id"`
	AuthorID      uuid.UUID `json:"author_id"`
	AuthorRole    string    `json:"author_role"`
	FromUser      bool      `json:"from_user"`
}

// SupportTicketStatusChangedEvent mirrors admin moves on a ticket.
type SupportTicketStatusChangedEvent struct {
	TicketID   uuid.UUID          `json:"ticket_id"`
	UserID     uuid.UUID          `json:"user_id"`
	FromStatus enums.TicketStatus `json:"from_status"`
	ToStatus   enums.TicketStatus `json:"to_status"`
}

// ReferralCompletedEvent is emitted when a referred signup converts and points are awarded.
type ReferralCompletedEvent struct {
	ReferralID    uuid.UUID `json:"referral_id"`
	ReferrerID    uuid.UUID `json:"referrer_id"`
	ReferredID    uuid.UUID `json:"referred_id"`
	PointsAwarded int       `json:"points_awarded"`
	TotalPoints   int       `json:"total_points"`
}

// NotificationRequestedEvent tells the worker to persist and fan out a notification.
type NotificationRequestedEvent struct {
	UserID uuid.UUID              `json:"user_id"`
	Type   enums.NotificationType `json:"type"`
	Title  string                 `json:"title"`
	Body   string                 `json:"body"`
	Ref    *uuid.UUID             `json:"ref,omitempty"`
}
