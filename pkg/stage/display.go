package stage

// Badge classifies a stage for UI rendering (color/category tag).
type Badge string

const (
	BadgeNeutral  Badge = "neutral"
	BadgeInfo     Badge = "info"
	BadgeProgress Badge = "progress"
	BadgeSuccess  Badge = "success"
	BadgeDanger   Badge = "danger"
)

type display struct {
	label string
	badge Badge
}

// Single source of truth for stage presentation. Previously this table was
// copy-pasted across every dashboard surface; all consumers now read it here.
var displayByStage = map[Stage]display{
	Pending:          {label: "Pending", badge: BadgeNeutral},
	MeetingScheduled: {label: "Meeting Scheduled", badge: BadgeInfo},
	DepositPaid:      {label: "Deposit Paid", badge: BadgeProgress},
	FinalSigning:     {label: "Final Signing", badge: BadgeProgress},
	Completed:        {label: "Completed", badge: BadgeSuccess},
	Cancelled:        {label: "Cancelled", badge: BadgeDanger},
}

// Label returns the human-readable display label for the stage.
func (s Stage) Label() string {
	if d, ok := displayByStage[s]; ok {
		return d.label
	}
	return displayByStage[Pending].label
}

// Badge returns the UI badge classification for the stage.
func (s Stage) Badge() Badge {
	if d, ok := displayByStage[s]; ok {
		return d.badge
	}
	return displayByStage[Pending].badge
}
