package support

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/estatehubhq/estatehub-backend/pkg/db/models"
	"github.com/estatehubhq/estatehub-backend/pkg/enums"
	"github.com/estatehubhq/estatehub-backend/pkg/pagination"
)

type listTicketsParams struct {
	UserID *uuid.UUID
	Status *enums.TicketStatus
	Limit  int
	Cursor *pagination.Cursor
}

// Repository defines persistence operations for support tickets and their
// messages.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateTicket(ctx context.Context, ticket *models.SupportTicket) error
	FindTicketByID(ctx context.Context, id uuid.UUID) (*models.SupportTicket, error)
	ListTickets(ctx context.Context, params listTicketsParams) ([]models.SupportTicket, *pagination.Cursor, error)
	UpdateTicketStatus(ctx context.Context, id uuid.UUID, status enums.TicketStatus) error
	CreateMessage(ctx context.Context, message *models.SupportMessage) error
	LastMessage(ctx context.Context, ticketID uuid.UUID) (*models.SupportMessage, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a support repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateTicket(ctx context.Context, ticket *models.SupportTicket) error {
	return r.db.WithContext(ctx).Create(ticket).Error
}

func (r *repository) FindTicketByID(ctx context.Context, id uuid.UUID) (*models.SupportTicket, error) {
	var ticket models.SupportTicket
	err := r.db.WithContext(ctx).
		Preload("Messages", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC")
		}).
		Where("id = ?", id).
		First(&ticket).Error
	if err != nil {
		return nil, err
	}
	return &ticket, nil
}

func (r *repository) ListTickets(ctx context.Context, params listTicketsParams) ([]models.SupportTicket, *pagination.Cursor, error) {
	limit := pagination.NormalizeLimit(params.Limit)
	query := r.db.WithContext(ctx).Model(&models.SupportTicket{})

	if params.UserID != nil {
		query = query.Where("user_id = ?", *params.UserID)
	}
	if params.Status != nil {
		query = query.Where("status = ?", *params.Status)
	}
	if params.Cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", params.Cursor.CreatedAt, params.Cursor.ID)
	}

	var rows []models.SupportTicket
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

func (r *repository) UpdateTicketStatus(ctx context.Context, id uuid.UUID, status enums.TicketStatus) error {
	return r.db.WithContext(ctx).
		Model(&models.SupportTicket{}).
		Where("id = ?", id).
		Update("status", status).Error
}

func (r *repository) CreateMessage(ctx context.Context, message *models.SupportMessage) error {
	return r.db.WithContext(ctx).Create(message).Error
}

func (r *repository) LastMessage(ctx context.Context, ticketID uuid.UUID) (*models.SupportMessage, error) {
	var message models.SupportMessage
	err := r.db.WithContext(ctx).
		Where("ticket_id = ?", ticketID).
		Order("created_at DESC, id DESC").
		First(&message).Error
	if err != nil {
		return nil, err
	}
	return &message, nil
}
