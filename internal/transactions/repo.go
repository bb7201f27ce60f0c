package transactions

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/estatehubhq/estatehub-backend/pkg/db/models"
)

// Repository defines persistence operations for transactions and their
// progress history.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, transaction *models.Transaction) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error)
	FindByLeadID(ctx context.Context, leadID uuid.UUID) (*models.Transaction, error)
	FindLead(ctx context.Context, id uuid.UUID) (*models.Lead, error)
	UpdateStage(ctx context.Context, id uuid.UUID, fromStage, stageValue, status string, at time.Time) (bool, error)
	CreateNotifications(ctx context.Context, notifications []models.ProgressNotification) error
	MarkNotificationRead(ctx context.Context, transactionID, notificationID uuid.UUID, at time.Time) (bool, error)
	FindByLeadIDWithTx(tx *gorm.DB, leadID uuid.UUID) (*models.Transaction, error)
	CreateNotificationsWithTx(tx *gorm.DB, notifications []models.ProgressNotification) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a transactions repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, transaction *models.Transaction) error {
	return r.db.WithContext(ctx).Create(transaction).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	var transaction models.Transaction
	err := r.db.WithContext(ctx).
		Preload("Notifications", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC")
		}).
		Where("id = ?", id).
		First(&transaction).Error
	if err != nil {
		return nil, err
	}
	return &transaction, nil
}

func (r *repository) FindByLeadID(ctx context.Context, leadID uuid.UUID) (*models.Transaction, error) {
	var transaction models.Transaction
	err := r.db.WithContext(ctx).
		Where("lead_id = ?", leadID).
		First(&transaction).Error
	if err != nil {
		return nil, err
	}
	return &transaction, nil
}

func (r *repository) FindLead(ctx context.Context, id uuid.UUID) (*models.Lead, error) {
	var lead models.Lead
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&lead).Error
	if err != nil {
		return nil, err
	}
	return &lead, nil
}

// UpdateStage moves a transaction to stageValue only while it still sits at
// fromStage. A false return means another writer advanced it first.
func (r *repository) UpdateStage(ctx context.Context, id uuid.UUID, fromStage, stageValue, status string, at time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Transaction{}).
		Where("id = ? AND stage = ?", id, fromStage).
		Updates(map[string]any{
			"stage":            stageValue,
			"status":           status,
			"stage_updated_at": at,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) CreateNotifications(ctx context.Context, notifications []models.ProgressNotification) error {
	if len(notifications) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&notifications).Error
}

func (r *repository) FindByLeadIDWithTx(tx *gorm.DB, leadID uuid.UUID) (*models.Transaction, error) {
	var transaction models.Transaction
	err := tx.
		Where("lead_id = ?", leadID).
		First(&transaction).Error
	if err != nil {
		return nil, err
	}
	return &transaction, nil
}

func (r *repository) CreateNotificationsWithTx(tx *gorm.DB, notifications []models.ProgressNotification) error {
	if len(notifications) == 0 {
		return nil
	}
	return tx.Create(&notifications).Error
}

func (r *repository) MarkNotificationRead(ctx context.Context, transactionID, notificationID uuid.UUID, at time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.ProgressNotification{}).
		Where("id = ? AND transaction_id = ? AND read_at IS NULL", notificationID, transactionID).
		Update("read_at", at)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
