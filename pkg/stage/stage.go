package stage

import (
	"fmt"
	"strings"
)

// Stage is one named step in the fixed progression a transaction moves
// through. CANCELLED is an absorbing alternative reachable from any
// non-terminal stage.
type Stage string

const (
	Pending          Stage = "PENDING"
	MeetingScheduled Stage = "MEETING_SCHEDULED"
	DepositPaid      Stage = "DEPOSIT_PAID"
	FinalSigning     Stage = "FINAL_SIGNING"
	Completed        Stage = "COMPLETED"
	Cancelled        Stage = "CANCELLED"
)

// StatusInterested is the legacy outer-status value that forces the displayed
// stage back to PENDING regardless of the stored stage field.
const StatusInterested = "INTERESTED"

var ordered = []Stage{
	Pending,
	MeetingScheduled,
	DepositPaid,
	FinalSigning,
	Completed,
	Cancelled,
}

// Legacy aliases kept from the previous lead status vocabulary. Matching is
// case-insensitive.
var aliases = map[string]Stage{
	"viewing_scheduled": MeetingScheduled,
	"offer_made":        FinalSigning,
	"accepted":          Completed,
	"rejected":          Cancelled,
}

var orderByStage = func() map[Stage]int {
	m := make(map[Stage]int, len(ordered))
	for i, s := range ordered {
		m[s] = i
	}
	return m
}()

// Parse normalizes raw input into a canonical Stage. Unrecognized input maps
// to Pending so that Order stays total.
func Parse(value string) Stage {
	normalized := strings.ToUpper(strings.TrimSpace(value))
	if _, ok := orderByStage[Stage(normalized)]; ok {
		return Stage(normalized)
	}
	if alias, ok := aliases[strings.ToLower(strings.TrimSpace(value))]; ok {
		return alias
	}
	return Pending
}

// ParseStrict converts raw input into a Stage, rejecting unknown values.
func ParseStrict(value string) (Stage, error) {
	normalized := strings.ToUpper(strings.TrimSpace(value))
	if _, ok := orderByStage[Stage(normalized)]; ok {
		return Stage(normalized), nil
	}
	if alias, ok := aliases[strings.ToLower(strings.TrimSpace(value))]; ok {
		return alias, nil
	}
	return "", fmt.Errorf("invalid stage %q", value)
}

// String implements fmt.Stringer.
func (s Stage) String() string {
	return string(s)
}

// IsValid reports whether the value is a canonical Stage.
func (s Stage) IsValid() bool {
	_, ok := orderByStage[s]
	return ok
}

// IsTerminal reports whether no further transitions are allowed.
func (s Stage) IsTerminal() bool {
	return s == Completed || s == Cancelled
}

// Order returns the comparison index for the given raw stage value.
// Unknown input sorts with PENDING at 0.
func Order(value string) int {
	return orderByStage[Parse(value)]
}

// ShouldBlur reports whether buyer contact fields must be masked for the
// given stage. Contact details open up once a deposit has been paid.
func ShouldBlur(value string) bool {
	return Order(value) < orderByStage[DepositPaid]
}

// Effective resolves the stage to display given the transaction's outer
// status. Rows written before the stage column became authoritative can carry
// status INTERESTED alongside a stale stage; those always present as PENDING.
// Idempotent: applying it to its own result is a no-op.
func Effective(status, stageValue string) Stage {
	if strings.EqualFold(strings.TrimSpace(status), StatusInterested) {
		return Pending
	}
	return Parse(stageValue)
}

// CanTransition reports whether a transaction may move from one stage to
// another: strictly forward along the fixed order, or to CANCELLED from any
// non-terminal stage.
func CanTransition(from, to Stage) bool {
	if from.IsTerminal() {
		return false
	}
	if to == Cancelled {
		return true
	}
	if !to.IsValid() || to == Pending {
		return false
	}
	return orderByStage[to] > orderByStage[from]
}
