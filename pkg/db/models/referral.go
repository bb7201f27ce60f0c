package models

import (
	"time"

	"github.com/google/uuid"
)

// Referral statuses.
const (
	ReferralStatusPending   = "pending"
	ReferralStatusCompleted = "completed"
)

// Referral is one referred signup attributed to a referrer.
type Referral struct {
	ID             uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	ReferrerID     uuid.UUID  `gorm:"column:referrer_id;type:uuid;not null;index"`
	ReferredEmail  string     `gorm:"column:referred_email;type:text;not null"`
	ReferredUserID *uuid.UUID `gorm:"column:referred_user_id;type:uuid"`
	Status         string     `gorm:"type:text;not null;default:'pending'"`
	PointsAwarded  int        `gorm:"column:points_awarded;not null;default:0"`
	CompletedAt    *time.Time `gorm:"column:completed_at"`
	CreatedAt      time.Time  `gorm:"column:created_at;autoCreateTime"`
}

// ReferralAccount aggregates a user's referral activity. The leaderboard is a
// straight query over this table: total points desc, referral count desc.
type ReferralAccount struct {
	UserID        uuid.UUID `gorm:"column:user_id;type:uuid;primaryKey"`
	Code          string    `gorm:"type:text;not null;uniqueIndex"`
	TotalPoints   int       `gorm:"column:total_points;not null;default:0"`
	ReferralCount int       `gorm:"column:referral_count;not null;default:0"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
