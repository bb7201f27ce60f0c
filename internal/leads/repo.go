package leads

import (
	"context"

	"github.com/estatehubhq/estatehub-backend/pkg/db/models"
	"github.com/estatehubhq/estatehub-backend/pkg/enums"
	"github.com/estatehubhq/estatehub-backend/pkg/pagination"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository exposes persistence helpers for leads.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, lead *models.Lead) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Lead, error)
	List(ctx context.Context, params listLeadsParams) ([]models.Lead, *pagination.Cursor, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status enums.LeadStatus, notes *string) error
	FindProperty(ctx context.Context, id uuid.UUID) (*models.Property, error)
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a leads repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

type listLeadsParams struct {
	ViewerID   uuid.UUID
	ViewerRole enums.ActorRole
	PropertyID *uuid.UUID
	Status     *enums.LeadStatus
	Limit      int
	Cursor     *pagination.Cursor
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

func (r *repositoryImpl) Create(ctx context.Context, lead *models.Lead) error {
	return r.db.WithContext(ctx).Create(lead).Error
}

func (r *repositoryImpl) FindByID(ctx context.Context, id uuid.UUID) (*models.Lead, error) {
	var lead models.Lead
	err := r.db.WithContext(ctx).
		Preload("Property").
		Preload("Transaction").
		First(&lead, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &lead, nil
}

func (r *repositoryImpl) List(ctx context.Context, params listLeadsParams) ([]models.Lead, *pagination.Cursor, error) {
	limit := pagination.LimitWithBuffer(params.Limit)
	normalized := pagination.NormalizeLimit(params.Limit)

	query := r.db.WithContext(ctx).Model(&models.Lead{}).
		Preload("Property").
		Preload("Transaction")

	switch params.ViewerRole {
	case enums.ActorRoleBuyer:
		query = query.Where("buyer_id = ?", params.ViewerID)
	case enums.ActorRoleSeller:
		query = query.Where("seller_id = ?", params.ViewerID)
	case enums.ActorRoleAgent:
		query = query.Where("agent_id = ?", params.ViewerID)
	case enums.ActorRoleAdmin:
		// unscoped
	}

	if params.PropertyID != nil {
		query = query.Where("property_id = ?", *params.PropertyID)
	}
	if params.Status != nil {
		query = query.Where("status = ?", *params.Status)
	}
	if params.Cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", params.Cursor.CreatedAt, params.Cursor.ID)
	}

	var rows []models.Lead
	if err := query.Order("created_at DESC, id DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, nil, err
	}

	if len(rows) > normalized {
		next := rows[normalized]
		rows = rows[:normalized]
		return rows, &pagination.Cursor{CreatedAt: next.CreatedAt, ID: next.ID}, nil
	}
	return rows, nil, nil
}

func (r *repositoryImpl) UpdateStatus(ctx context.Context, id uuid.UUID, status enums.LeadStatus, notes *string) error {
	updates := map[string]any{"status": status}
	if notes != nil {
		updates["notes"] = *notes
	}
	return r.db.WithContext(ctx).
		Model(&models.Lead{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *repositoryImpl) FindProperty(ctx context.Context, id uuid.UUID) (*models.Property, error) {
	var property models.Property
	if err := r.db.WithContext(ctx).First(&property, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &property, nil
}
