package enums

import "fmt"

// NotificationType maps to the notification_type enum in Postgres.
type NotificationType string

const (
	NotificationTypeLeadInterest      NotificationType = "lead_interest"
	NotificationTypeAppointmentUpdate NotificationType = "appointment_update"
	NotificationTypeStageUpdate       NotificationType = "stage_update"
	NotificationTypeSupportReply      NotificationType = "support_reply"
	NotificationTypeReferralReward    NotificationType = "referral_reward"
	NotificationTypeSystem            NotificationType = "system_announcement"
)

var validNotificationTypes = []NotificationType{
	NotificationTypeLeadInterest,
	NotificationTypeAppointmentUpdate,
	NotificationTypeStageUpdate,
	NotificationTypeSupportReply,
	NotificationTypeReferralReward,
	NotificationTypeSystem,
}

// IsValid checks whether the given type matches the canonical enum.
func (n NotificationType) IsValid() bool {
	for _, candidate := range validNotificationTypes {
		if candidate == n {
			return true
		}
	}
	return false
}

// ParseNotificationType converts raw strings into NotificationType.
func ParseNotificationType(value string) (NotificationType, error) {
	for _, candidate := range validNotificationTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid notification type %q", value)
}
