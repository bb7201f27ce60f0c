package referrals

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/estatehubhq/estatehub-backend/pkg/db/models"
)

// Repository defines persistence operations for referral accounts and
// referred signups.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindAccount(ctx context.Context, userID uuid.UUID) (*models.ReferralAccount, error)
	FindAccountByCode(ctx context.Context, code string) (*models.ReferralAccount, error)
	UpsertAccount(ctx context.Context, account *models.ReferralAccount) error
	AddPoints(ctx context.Context, userID uuid.UUID, points int) error
	CreateReferral(ctx context.Context, referral *models.Referral) error
	FindReferral(ctx context.Context, referrerID uuid.UUID, referredEmail string) (*models.Referral, error)
	CompleteReferral(ctx context.Context, id uuid.UUID, referredUserID uuid.UUID, points int, at time.Time) error
	Leaderboard(ctx context.Context, limit int) ([]models.ReferralAccount, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a referrals repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindAccount(ctx context.Context, userID uuid.UUID) (*models.ReferralAccount, error) {
	var account models.ReferralAccount
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		First(&account).Error
	if err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *repository) FindAccountByCode(ctx context.Context, code string) (*models.ReferralAccount, error) {
	var account models.ReferralAccount
	err := r.db.WithContext(ctx).
		Where("code = ?", code).
		First(&account).Error
	if err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *repository) UpsertAccount(ctx context.Context, account *models.ReferralAccount) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoNothing: true,
		}).
		Create(account).Error
}

func (r *repository) AddPoints(ctx context.Context, userID uuid.UUID, points int) error {
	return r.db.WithContext(ctx).
		Model(&models.ReferralAccount{}).
		Where("user_id = ?", userID).
		Updates(map[string]any{
			"total_points":   gorm.Expr("total_points + ?", points),
			"referral_count": gorm.Expr("referral_count + 1"),
		}).Error
}

func (r *repository) CreateReferral(ctx context.Context, referral *models.Referral) error {
	return r.db.WithContext(ctx).Create(referral).Error
}

func (r *repository) FindReferral(ctx context.Context, referrerID uuid.UUID, referredEmail string) (*models.Referral, error) {
	var referral models.Referral
	err := r.db.WithContext(ctx).
		Where("referrer_id = ? AND referred_email = ?", referrerID, referredEmail).
		First(&referral).Error
	if err != nil {
		return nil, err
	}
	return &referral, nil
}

func (r *repository) CompleteReferral(ctx context.Context, id uuid.UUID, referredUserID uuid.UUID, points int, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.Referral{}).
		Where("id = ? AND status = ?", id, models.ReferralStatusPending).
		Updates(map[string]any{
			"status":           models.ReferralStatusCompleted,
			"referred_user_id": referredUserID,
			"points_awarded":   points,
			"completed_at":     at,
		}).Error
}

func (r *repository) Leaderboard(ctx context.Context, limit int) ([]models.ReferralAccount, error) {
	var accounts []models.ReferralAccount
	err := r.db.WithContext(ctx).
		Order("total_points DESC, referral_count DESC, user_id ASC").
		Limit(limit).
		Find(&accounts).Error
	if err != nil {
		return nil, err
	}
	return accounts, nil
}
