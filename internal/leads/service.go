package leads

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbpkg "github.com/estatehubhq/estatehub-backend/pkg/db"
	"github.com/estatehubhq/estatehub-backend/pkg/db/models"
	"github.com/estatehubhq/estatehub-backend/pkg/enums"
	pkgerrors "github.com/estatehubhq/estatehub-backend/pkg/errors"
	"github.com/estatehubhq/estatehub-backend/pkg/outbox"
	"github.com/estatehubhq/estatehub-backend/pkg/outbox/payloads"
	"github.com/estatehubhq/estatehub-backend/pkg/pagination"
	"github.com/estatehubhq/estatehub-backend/pkg/stage"
	"github.com/estatehubhq/estatehub-backend/pkg/visibility"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service defines lead lifecycle operations.
type Service interface {
	Create(ctx context.Context, params CreateParams) (*LeadView, error)
	Get(ctx context.Context, params GetParams) (*LeadView, error)
	List(ctx context.Context, params ListParams) (*ListResult, error)
	UpdateStatus(ctx context.Context, params UpdateStatusParams) (*LeadView, error)
}

type service struct {
	repo   Repository
	tx     txRunner
	outbox outboxPublisher
}

// CreateParams captures a buyer registering interest in a property.
type CreateParams struct {
	PropertyID uuid.UUID
	BuyerID    uuid.UUID
	BuyerName  string
	BuyerEmail string
	BuyerPhone string
	Message    *string
}

// GetParams scopes a single lead fetch to the caller.
type GetParams struct {
	LeadID     uuid.UUID
	ViewerID   uuid.UUID
	ViewerRole enums.ActorRole
}

// ListParams configures role-scoped lead listing.
type ListParams struct {
	ViewerID   uuid.UUID
	ViewerRole enums.ActorRole
	PropertyID *uuid.UUID
	Status     string
	Limit      int
	Cursor     string
}

// UpdateStatusParams captures a seller or agent moving a lead.
type UpdateStatusParams struct {
	LeadID     uuid.UUID
	ViewerID   uuid.UUID
	ViewerRole enums.ActorRole
	Status     string
	Notes      *string
}

// ContactView is the disclosure-gated projection of buyer contact fields.
type ContactView struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Redacted bool   `json:"redacted"`
}

// StageView surfaces the effective stage plus its display metadata.
type StageView struct {
	Stage     string      `json:"stage"`
	Order     int         `json:"order"`
	Label     string      `json:"label"`
	Badge     stage.Badge `json:"badge"`
	UpdatedAt *time.Time  `json:"updatedAt,omitempty"`
}

// LeadView is the API projection of a lead.
type LeadView struct {
	ID            uuid.UUID        `json:"id"`
	PropertyID    uuid.UUID        `json:"propertyId"`
	BuyerID       uuid.UUID        `json:"buyerId"`
	SellerID      uuid.UUID        `json:"sellerId"`
	AgentID       *uuid.UUID       `json:"agentId,omitempty"`
	Status        enums.LeadStatus `json:"status"`
	Contact       ContactView      `json:"contact"`
	Stage         StageView        `json:"stage"`
	TransactionID *uuid.UUID       `json:"transactionId,omitempty"`
	Message       *string          `json:"message,omitempty"`
	Notes         *string          `json:"notes,omitempty"`
	CreatedAt     time.Time        `json:"createdAt"`
	UpdatedAt     time.Time        `json:"updatedAt"`
}

// ListResult wraps returned leads and the cursor for the next page.
type ListResult struct {
	Items  []LeadView `json:"items"`
	Cursor string     `json:"cursor"`
}

// NewService wires lead dependencies.
func NewService(repo Repository, tx txRunner, outboxSvc outboxPublisher) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("leads repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outboxSvc == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{repo: repo, tx: tx, outbox: outboxSvc}, nil
}

func (s *service) Create(ctx context.Context, params CreateParams) (*LeadView, error) {
	if params.PropertyID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "property id required")
	}
	if params.BuyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if strings.TrimSpace(params.BuyerName) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "buyer name required")
	}
	if strings.TrimSpace(params.BuyerEmail) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "buyer email required")
	}
	if strings.TrimSpace(params.BuyerPhone) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "buyer phone required")
	}

	var created *models.Lead
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		property, err := repo.FindProperty(ctx, params.PropertyID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "property not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load property")
		}
		if !property.Listed {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "property is not listed")
		}
		if property.SellerID == params.BuyerID {
			return pkgerrors.New(pkgerrors.CodeValidation, "cannot register interest in own listing")
		}

		lead := &models.Lead{
			PropertyID: params.PropertyID,
			BuyerID:    params.BuyerID,
			SellerID:   property.SellerID,
			Status:     enums.LeadStatusPending,
			BuyerName:  strings.TrimSpace(params.BuyerName),
			BuyerEmail: strings.TrimSpace(params.BuyerEmail),
			BuyerPhone: strings.TrimSpace(params.BuyerPhone),
			Message:    params.Message,
		}
		if err := repo.Create(ctx, lead); err != nil {
			if dbpkg.IsUniqueViolation(err, "ux_leads_property_buyer") {
				return pkgerrors.New(pkgerrors.CodeConflict, "interest already registered for this property")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create lead")
		}
		created = lead
		created.Property = property

		event := outbox.DomainEvent{
			EventType:     enums.EventLeadCreated,
			AggregateType: enums.AggregateLead,
			AggregateID:   lead.ID,
			Actor:         &outbox.ActorRef{UserID: params.BuyerID, Role: enums.ActorRoleBuyer.String()},
			Version:       1,
			Data: payloads.LeadCreatedEvent{
				LeadID:     lead.ID,
				PropertyID: lead.PropertyID,
				BuyerID:    lead.BuyerID,
				SellerID:   lead.SellerID,
			},
		}
		return s.outbox.Emit(ctx, tx, event)
	})
	if err != nil {
		return nil, err
	}

	view := s.buildView(created, visibility.LeadAccessInput{
		Lead:       created,
		ViewerID:   params.BuyerID,
		ViewerRole: enums.ActorRoleBuyer,
	})
	return &view, nil
}

func (s *service) Get(ctx context.Context, params GetParams) (*LeadView, error) {
	if params.LeadID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "lead id required")
	}

	lead, err := s.repo.FindByID(ctx, params.LeadID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "lead not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load lead")
	}

	access := visibility.LeadAccessInput{
		Lead:       lead,
		ViewerID:   params.ViewerID,
		ViewerRole: params.ViewerRole,
	}
	if err := visibility.EnsureLeadVisible(access); err != nil {
		return nil, err
	}

	view := s.buildView(lead, access)
	return &view, nil
}

func (s *service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	if params.ViewerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if !params.ViewerRole.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "unknown actor role")
	}

	query := listLeadsParams{
		ViewerID:   params.ViewerID,
		ViewerRole: params.ViewerRole,
		PropertyID: params.PropertyID,
		Limit:      params.Limit,
	}
	if params.Status != "" {
		status, err := enums.ParseLeadStatus(params.Status)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status filter")
		}
		query.Status = &status
	}
	if params.Cursor != "" {
		cursor, err := pagination.ParseCursor(params.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		query.Cursor = cursor
	}

	rows, next, err := s.repo.List(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list leads")
	}

	items := make([]LeadView, 0, len(rows))
	for i := range rows {
		lead := rows[i]
		items = append(items, s.buildView(&lead, visibility.LeadAccessInput{
			Lead:       &lead,
			ViewerID:   params.ViewerID,
			ViewerRole: params.ViewerRole,
		}))
	}

	cursor := ""
	if next != nil {
		cursor = pagination.EncodeCursor(*next)
	}
	return &ListResult{Items: items, Cursor: cursor}, nil
}

func (s *service) UpdateStatus(ctx context.Context, params UpdateStatusParams) (*LeadView, error) {
	if params.LeadID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "lead id required")
	}
	switch params.ViewerRole {
	case enums.ActorRoleSeller, enums.ActorRoleAgent, enums.ActorRoleAdmin:
	default:
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only sellers and agents update leads")
	}
	status, err := enums.ParseLeadStatus(params.Status)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid lead status")
	}

	var updated *models.Lead
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		lead, err := repo.FindByID(ctx, params.LeadID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "lead not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load lead")
		}

		access := visibility.LeadAccessInput{
			Lead:       lead,
			ViewerID:   params.ViewerID,
			ViewerRole: params.ViewerRole,
		}
		if err := visibility.EnsureLeadVisible(access); err != nil {
			return err
		}

		if lead.Status == status && params.Notes == nil {
			updated = lead
			return nil
		}
		fromStatus := lead.Status

		if err := repo.UpdateStatus(ctx, lead.ID, status, params.Notes); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update lead status")
		}
		lead.Status = status
		if params.Notes != nil {
			lead.Notes = params.Notes
		}
		updated = lead

		if fromStatus == status {
			return nil
		}
		event := outbox.DomainEvent{
			EventType:     enums.EventLeadStatusChanged,
			AggregateType: enums.AggregateLead,
			AggregateID:   lead.ID,
			Actor:         &outbox.ActorRef{UserID: params.ViewerID, Role: params.ViewerRole.String()},
			Version:       1,
			Data: payloads.LeadStatusChangedEvent{
				LeadID:     lead.ID,
				PropertyID: lead.PropertyID,
				BuyerID:    lead.BuyerID,
				FromStatus: fromStatus,
				ToStatus:   status,
			},
		}
		return s.outbox.Emit(ctx, tx, event)
	})
	if err != nil {
		return nil, err
	}

	view := s.buildView(updated, visibility.LeadAccessInput{
		Lead:       updated,
		ViewerID:   params.ViewerID,
		ViewerRole: params.ViewerRole,
	})
	return &view, nil
}

func (s *service) buildView(lead *models.Lead, access visibility.LeadAccessInput) LeadView {
	view := LeadView{
		ID:         lead.ID,
		PropertyID: lead.PropertyID,
		BuyerID:    lead.BuyerID,
		SellerID:   lead.SellerID,
		AgentID:    lead.AgentID,
		Status:     lead.Status,
		Message:    lead.Message,
		Notes:      lead.Notes,
		CreatedAt:  lead.CreatedAt,
		UpdatedAt:  lead.UpdatedAt,
	}

	current := stage.Pending
	if lead.Transaction != nil {
		current = stage.Effective(lead.Transaction.Status, lead.Transaction.Stage)
		view.TransactionID = &lead.Transaction.ID
		view.Stage.UpdatedAt = &lead.Transaction.StageUpdatedAt
	}
	view.Stage.Stage = current.String()
	view.Stage.Order = stage.Order(current.String())
	view.Stage.Label = current.Label()
	view.Stage.Badge = current.Badge()

	contact := visibility.ContactFor(access, current)
	view.Contact = ContactView{
		Name:     contact.Name,
		Email:    contact.Email,
		Phone:    contact.Phone,
		Redacted: contact.Redacted,
	}
	return view
}
