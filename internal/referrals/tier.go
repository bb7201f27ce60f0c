package referrals

import "fmt"

// Tier is a referral-points classification used for seller rewards.
type Tier string

const (
	TierBronze   Tier = "Bronze"
	TierSilver   Tier = "Silver"
	TierGold     Tier = "Gold"
	TierPlatinum Tier = "Platinum"
)

// Tier thresholds in points. A tier covers [threshold, next threshold).
const (
	silverThreshold   = 1000
	goldThreshold     = 3000
	platinumThreshold = 7000
)

// TierInfo is the deterministic projection of one point total.
type TierInfo struct {
	Tier            Tier   `json:"tier"`
	ProgressPercent int    `json:"progressPercent"`
	PointsToNext    int    `json:"pointsToNext"`
	Message         string `json:"message"`
}

// TierFor classifies an accumulated point total. Pure function: same input,
// same output, negative totals clamp to zero.
func TierFor(points int) TierInfo {
	if points < 0 {
		points = 0
	}
	switch {
	case points >= platinumThreshold:
		return TierInfo{
			Tier:            TierPlatinum,
			ProgressPercent: 100,
			Message:         "Top tier reached",
		}
	case points >= goldThreshold:
		return tierInfo(TierGold, TierPlatinum, points, goldThreshold, platinumThreshold)
	case points >= silverThreshold:
		return tierInfo(TierSilver, TierGold, points, silverThreshold, goldThreshold)
	default:
		return tierInfo(TierBronze, TierSilver, points, 0, silverThreshold)
	}
}

func tierInfo(current, next Tier, points, lower, upper int) TierInfo {
	remaining := upper - points
	return TierInfo{
		Tier:            current,
		ProgressPercent: (points - lower) * 100 / (upper - lower),
		PointsToNext:    remaining,
		Message:         fmt.Sprintf("%d points to %s", remaining, next),
	}
}
