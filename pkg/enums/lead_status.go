package enums

import "fmt"

// LeadStatus tracks the lifecycle of a buyer's recorded interest. Leads are
// never hard-deleted; they only transition status.
type LeadStatus string

const (
	LeadStatusPending          LeadStatus = "pending"
	LeadStatusContacted        LeadStatus = "contacted"
	LeadStatusViewingScheduled LeadStatus = "viewing_scheduled"
	LeadStatusOfferMade        LeadStatus = "offer_made"
	LeadStatusAccepted         LeadStatus = "accepted"
	LeadStatusCompleted        LeadStatus = "completed"
	LeadStatusRejected         LeadStatus = "rejected"
)

var validLeadStatuses = []LeadStatus{
	LeadStatusPending,
	LeadStatusContacted,
	LeadStatusViewingScheduled,
	LeadStatusOfferMade,
	LeadStatusAccepted,
	LeadStatusCompleted,
	LeadStatusRejected,
}

// String implements fmt.Stringer.
func (l LeadStatus) String() string {
	return string(l)
}

// IsValid reports whether the value is a known LeadStatus.
func (l LeadStatus) IsValid() bool {
	for _, candidate := range validLeadStatuses {
		if candidate == l {
			return true
		}
	}
	return false
}

// IsClosed reports whether the lead has reached a resting state.
func (l LeadStatus) IsClosed() bool {
	return l == LeadStatusCompleted || l == LeadStatusRejected
}

// ParseLeadStatus converts raw input into a LeadStatus.
func ParseLeadStatus(value string) (LeadStatus, error) {
	for _, candidate := range validLeadStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid lead status %q", value)
}
