package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type enum in Postgres.
type OutboxAggregateType string

const (
	AggregateLead          OutboxAggregateType = "lead"
	AggregateTransaction   OutboxAggregateType = "transaction"
	AggregateAppointment   OutboxAggregateType = "appointment"
	AggregateSupportTicket OutboxAggregateType = "support_ticket"
	AggregateReferral      OutboxAggregateType = "referral"
	AggregateNotification  OutboxAggregateType = "notification"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateLead,
	AggregateTransaction,
	AggregateAppointment,
	AggregateSupportTicket,
	AggregateReferral,
	AggregateNotification,
}

// IsValid reports whether the value matches the canonical aggregate_type enum.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType maps to the event_type enum in Postgres.
type OutboxEventType string

const (
	EventLeadCreated             OutboxEventType = "lead_created"
	EventLeadStatusChanged       OutboxEventType = "lead_status_changed"
	EventTransactionOpened       OutboxEventType = "transaction_opened"
	EventStageAdvanced           OutboxEventType = "transaction_stage_advanced"
	EventTransactionCancelled    OutboxEventType = "transaction_cancelled"
	EventAppointmentStatusChange OutboxEventType = "appointment_status_changed"
	EventSupportMessagePosted    OutboxEventType = "support_message_posted"
	EventTicketStatusChanged     OutboxEventType = "support_ticket_status_changed"
	EventReferralCompleted       OutboxEventType = "referral_completed"
	EventNotificationRequested   OutboxEventType = "notification_requested"
)

var validOutboxEventTypes = []OutboxEventType{
	EventLeadCreated,
	EventLeadStatusChanged,
	EventTransactionOpened,
	EventStageAdvanced,
	EventTransactionCancelled,
	EventAppointmentStatusChange,
	EventSupportMessagePosted,
	EventTicketStatusChanged,
	EventReferralCompleted,
	EventNotificationRequested,
}

// IsValid reports whether the value matches the canonical event_type enum.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}
