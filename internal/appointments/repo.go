package appointments

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/estatehubhq/estatehub-backend/pkg/db/models"
	"github.com/estatehubhq/estatehub-backend/pkg/enums"
	"github.com/estatehubhq/estatehub-backend/pkg/pagination"
)

type listAppointmentsParams struct {
	ViewerID   uuid.UUID
	ViewerRole enums.ActorRole
	LeadID     *uuid.UUID
	Status     *enums.AppointmentStatus
	Limit      int
	Cursor     *pagination.Cursor
}

// Repository defines persistence operations for viewing appointments.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, appointment *models.Appointment) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Appointment, error)
	List(ctx context.Context, params listAppointmentsParams) ([]models.Appointment, *pagination.Cursor, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status enums.AppointmentStatus, notes *string) error
	FindLead(ctx context.Context, id uuid.UUID) (*models.Lead, error)
	FindScheduledBefore(ctx context.Context, cutoff time.Time) ([]models.Appointment, error)
	UpdateStatusWithTx(tx *gorm.DB, id uuid.UUID, status enums.AppointmentStatus, notes *string) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an appointments repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, appointment *models.Appointment) error {
	return r.db.WithContext(ctx).Create(appointment).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Appointment, error) {
	var appointment models.Appointment
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&appointment).Error
	if err != nil {
		return nil, err
	}
	return &appointment, nil
}

func (r *repository) List(ctx context.Context, params listAppointmentsParams) ([]models.Appointment, *pagination.Cursor, error) {
	limit := pagination.NormalizeLimit(params.Limit)
	query := r.db.WithContext(ctx).Model(&models.Appointment{})

	switch params.ViewerRole {
	case enums.ActorRoleAdmin:
	case enums.ActorRoleBuyer:
		query = query.Where("buyer_id = ?", params.ViewerID)
	case enums.ActorRoleSeller:
		query = query.Where("seller_id = ?", params.ViewerID)
	case enums.ActorRoleAgent:
		query = query.Where("agent_id = ?", params.ViewerID)
	default:
		return nil, nil, nil
	}

	if params.LeadID != nil {
		query = query.Where("lead_id = ?", *params.LeadID)
	}
	if params.Status != nil {
		query = query.Where("status = ?", *params.Status)
	}
	if params.Cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", params.Cursor.CreatedAt, params.Cursor.ID)
	}

	var rows []models.Appointment
	err := query.
		Order("created_at DESC, id DESC").
		Limit(pagination.LimitWithBuffer(limit)).
		Find(&rows).Error
	if err != nil {
		return nil, nil, err
	}

	var next *pagination.Cursor
	if len(rows) > limit {
		rows = rows[:limit]
		last := rows[len(rows)-1]
		next = &pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID}
	}
	return rows, next, nil
}

func (r *repository) UpdateStatus(ctx context.Context, id uuid.UUID, status enums.AppointmentStatus, notes *string) error {
	updates := map[string]any{"status": status}
	if notes != nil {
		updates["notes"] = *notes
	}
	return r.db.WithContext(ctx).
		Model(&models.Appointment{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *repository) FindScheduledBefore(ctx context.Context, cutoff time.Time) ([]models.Appointment, error) {
	var rows []models.Appointment
	err := r.db.WithContext(ctx).
		Where("status IN ?", []enums.AppointmentStatus{enums.AppointmentStatusScheduled, enums.AppointmentStatusConfirmed}).
		Where("scheduled_at < ?", cutoff).
		Order("scheduled_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) UpdateStatusWithTx(tx *gorm.DB, id uuid.UUID, status enums.AppointmentStatus, notes *string) error {
	updates := map[string]any{"status": status}
	if notes != nil {
		updates["notes"] = *notes
	}
	return tx.
		Model(&models.Appointment{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *repository) FindLead(ctx context.Context, id uuid.UUID) (*models.Lead, error) {
	var lead models.Lead
	err := r.db.WithContext(ctx).
		Preload("Transaction").
		Where("id = ?", id).
		First(&lead).Error
	if err != nil {
		return nil, err
	}
	return &lead, nil
}
