package appointments

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/estatehubhq/estatehub-backend/internal/transactions"
	"github.com/estatehubhq/estatehub-backend/pkg/db/models"
	"github.com/estatehubhq/estatehub-backend/pkg/enums"
	pkgerrors "github.com/estatehubhq/estatehub-backend/pkg/errors"
	"github.com/estatehubhq/estatehub-backend/pkg/logger"
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

// transactionAdvancer moves the linked transaction forward when a viewing is
// confirmed before the transaction reached MEETING_SCHEDULED.
type transactionAdvancer interface {
	Advance(ctx context.Context, params transactions.AdvanceParams) (*transactions.TransactionView, error)
}

// Service defines viewing appointment operations.
type Service interface {
	Schedule(ctx context.Context, params ScheduleParams) (*AppointmentView, error)
	Get(ctx context.Context, params GetParams) (*AppointmentView, error)
	List(ctx context.Context, params ListParams) (*ListResult, error)
	UpdateStatus(ctx context.Context, params UpdateStatusParams) (*AppointmentView, error)
}

type service struct {
	repo        Repository
	tx          txRunner
	outbox      outboxPublisher
	transaction transactionAdvancer
	logg        *logger.Logger
}

// ScheduleParams books a property viewing against a lead.
type ScheduleParams struct {
	LeadID      uuid.UUID
	ViewerID    uuid.UUID
	ViewerRole  enums.ActorRole
	ScheduledAt time.Time
	Notes       *string
}

// GetParams scopes a single appointment fetch to the caller.
type GetParams struct {
	AppointmentID uuid.UUID
	ViewerID      uuid.UUID
	ViewerRole    enums.ActorRole
}

// ListParams configures role-scoped appointment listing.
type ListParams struct {
	ViewerID   uuid.UUID
	ViewerRole enums.ActorRole
	LeadID     *uuid.UUID
	Status     string
	Limit      int
	Cursor     string
}

// UpdateStatusParams moves an appointment through its lifecycle.
type UpdateStatusParams struct {
	AppointmentID uuid.UUID
	ViewerID      uuid.UUID
	ViewerRole    enums.ActorRole
	Status        string
	Notes         *string
}

// AppointmentView is the API projection of an appointment.
type AppointmentView struct {
	ID          uuid.UUID               `json:"id"`
	LeadID      uuid.UUID               `json:"leadId"`
	PropertyID  uuid.UUID               `json:"propertyId"`
	BuyerID     uuid.UUID               `json:"buyerId"`
	SellerID    uuid.UUID               `json:"sellerId"`
	AgentID     *uuid.UUID              `json:"agentId,omitempty"`
	ScheduledAt time.Time               `json:"scheduledAt"`
	Status      enums.AppointmentStatus `json:"status"`
	Notes       *string                 `json:"notes,omitempty"`
	CreatedAt   time.Time               `json:"createdAt"`
	UpdatedAt   time.Time               `json:"updatedAt"`
}

// ListResult wraps returned appointments and the cursor for the next page.
type ListResult struct {
	Items  []AppointmentView `json:"items"`
	Cursor string            `json:"cursor"`
}

// NewService wires appointment dependencies. The advancer is optional; a nil
// advancer skips the confirm-time transaction hook.
func NewService(repo Repository, tx txRunner, outboxSvc outboxPublisher, advancer transactionAdvancer, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("appointments repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outboxSvc == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, tx: tx, outbox: outboxSvc, transaction: advancer, logg: logg}, nil
}

func (s *service) Schedule(ctx context.Context, params ScheduleParams) (*AppointmentView, error) {
	if params.LeadID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "lead id required")
	}
	if params.ScheduledAt.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "scheduled time required")
	}
	if params.ScheduledAt.Before(time.Now()) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "scheduled time must be in the future")
	}

	var created *models.Appointment
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		lead, err := repo.FindLead(ctx, params.LeadID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "lead not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load lead")
		}
		if err := visibility.EnsureLeadVisible(visibility.LeadAccessInput{
			Lead:       lead,
			ViewerID:   params.ViewerID,
			ViewerRole: params.ViewerRole,
		}); err != nil {
			return err
		}
		if lead.Status.IsClosed() {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "lead is closed")
		}

		appointment := &models.Appointment{
			LeadID:      lead.ID,
			PropertyID:  lead.PropertyID,
			BuyerID:     lead.BuyerID,
			SellerID:    lead.SellerID,
			AgentID:     lead.AgentID,
			ScheduledAt: params.ScheduledAt,
			Status:      enums.AppointmentStatusScheduled,
			Notes:       params.Notes,
		}
		if err := repo.Create(ctx, appointment); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create appointment")
		}
		created = appointment

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventAppointmentStatusChange,
			AggregateType: enums.AggregateAppointment,
			AggregateID:   appointment.ID,
			Actor:         &outbox.ActorRef{UserID: params.ViewerID, Role: params.ViewerRole.String()},
			Version:       1,
			Data: payloads.AppointmentStatusChangedEvent{
				AppointmentID: appointment.ID,
				LeadID:        appointment.LeadID,
				BuyerID:       appointment.BuyerID,
				SellerID:      appointment.SellerID,
				ToStatus:      enums.AppointmentStatusScheduled,
				ScheduledAt:   appointment.ScheduledAt,
				ChangedBy:     &params.ViewerID,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	view := buildView(created)
	return &view, nil
}

func (s *service) Get(ctx context.Context, params GetParams) (*AppointmentView, error) {
	if params.AppointmentID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "appointment id required")
	}

	appointment, err := s.repo.FindByID(ctx, params.AppointmentID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "appointment not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load appointment")
	}
	if err := ensureVisible(appointment, params.ViewerID, params.ViewerRole); err != nil {
		return nil, err
	}

	view := buildView(appointment)
	return &view, nil
}

func (s *service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	if params.ViewerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if !params.ViewerRole.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "unknown actor role")
	}

	query := listAppointmentsParams{
		ViewerID:   params.ViewerID,
		ViewerRole: params.ViewerRole,
		LeadID:     params.LeadID,
		Limit:      params.Limit,
	}
	if params.Status != "" {
		status, err := enums.ParseAppointmentStatus(params.Status)
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
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list appointments")
	}

	items := make([]AppointmentView, 0, len(rows))
	for i := range rows {
		items = append(items, buildView(&rows[i]))
	}
	cursor := ""
	if next != nil {
		cursor = pagination.EncodeCursor(*next)
	}
	return &ListResult{Items: items, Cursor: cursor}, nil
}

func (s *service) UpdateStatus(ctx context.Context, params UpdateStatusParams) (*AppointmentView, error) {
	if params.AppointmentID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "appointment id required")
	}
	target, err := enums.ParseAppointmentStatus(params.Status)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid appointment status")
	}

	var updated *models.Appointment
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		appointment, err := repo.FindByID(ctx, params.AppointmentID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "appointment not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load appointment")
		}
		if err := ensureVisible(appointment, params.ViewerID, params.ViewerRole); err != nil {
			return err
		}
		if err := ensureRoleMayApply(params.ViewerRole, target); err != nil {
			return err
		}
		if !canTransition(appointment.Status, target) {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("cannot move appointment from %s to %s", appointment.Status, target))
		}
		fromStatus := appointment.Status

		if err := repo.UpdateStatus(ctx, appointment.ID, target, params.Notes); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update appointment status")
		}
		appointment.Status = target
		if params.Notes != nil {
			appointment.Notes = params.Notes
		}
		updated = appointment

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventAppointmentStatusChange,
			AggregateType: enums.AggregateAppointment,
			AggregateID:   appointment.ID,
			Actor:         &outbox.ActorRef{UserID: params.ViewerID, Role: params.ViewerRole.String()},
			Version:       1,
			Data: payloads.AppointmentStatusChangedEvent{
				AppointmentID: appointment.ID,
				LeadID:        appointment.LeadID,
				BuyerID:       appointment.BuyerID,
				SellerID:      appointment.SellerID,
				FromStatus:    fromStatus,
				ToStatus:      target,
				ScheduledAt:   appointment.ScheduledAt,
				ChangedBy:     &params.ViewerID,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	if target == enums.AppointmentStatusConfirmed {
		s.advanceLinkedTransaction(ctx, updated, params)
	}

	view := buildView(updated)
	return &view, nil
}

// advanceLinkedTransaction moves the lead's transaction to MEETING_SCHEDULED
// when a viewing is confirmed while the transaction sits behind that stage.
// Best effort: the appointment update has already committed.
func (s *service) advanceLinkedTransaction(ctx context.Context, appointment *models.Appointment, params UpdateStatusParams) {
	if s.transaction == nil {
		return
	}
	lead, err := s.repo.FindLead(ctx, appointment.LeadID)
	if err != nil || lead.Transaction == nil {
		return
	}
	current := stage.Effective(lead.Transaction.Status, lead.Transaction.Stage)
	if current.IsTerminal() || stage.Order(current.String()) >= stage.Order(stage.MeetingScheduled.String()) {
		return
	}
	if _, err := s.transaction.Advance(ctx, transactions.AdvanceParams{
		TransactionID: lead.Transaction.ID,
		ViewerID:      params.ViewerID,
		ViewerRole:    params.ViewerRole,
		Stage:         stage.MeetingScheduled.String(),
	}); err != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"appointment_id": appointment.ID,
			"transaction_id": lead.Transaction.ID,
		})
		logCtx = s.logg.WithField(logCtx, "error", err.Error())
		s.logg.Warn(logCtx, "confirm-time stage advance failed")
	}
}

func ensureVisible(appointment *models.Appointment, viewerID uuid.UUID, role enums.ActorRole) error {
	if appointment == nil {
		return pkgerrors.New(pkgerrors.CodeNotFound, "appointment not found")
	}
	if viewerID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "viewer is required")
	}
	switch role {
	case enums.ActorRoleAdmin:
		return nil
	case enums.ActorRoleBuyer:
		if appointment.BuyerID == viewerID {
			return nil
		}
	case enums.ActorRoleSeller:
		if appointment.SellerID == viewerID {
			return nil
		}
	case enums.ActorRoleAgent:
		if appointment.AgentID != nil && *appointment.AgentID == viewerID {
			return nil
		}
	}
	return pkgerrors.New(pkgerrors.CodeNotFound, "appointment not found")
}

// ensureRoleMayApply gates who may apply which status. Buyers can only cancel
// their own viewings; the rest of the lifecycle belongs to the selling side.
func ensureRoleMayApply(role enums.ActorRole, target enums.AppointmentStatus) error {
	switch role {
	case enums.ActorRoleSeller, enums.ActorRoleAgent, enums.ActorRoleAdmin:
		return nil
	case enums.ActorRoleBuyer:
		if target == enums.AppointmentStatusCancelled {
			return nil
		}
	}
	return pkgerrors.New(pkgerrors.CodeForbidden, "role cannot apply this status")
}

func canTransition(from, to enums.AppointmentStatus) bool {
	if from.IsTerminal() {
		return false
	}
	switch from {
	case enums.AppointmentStatusScheduled:
		return to == enums.AppointmentStatusConfirmed || to == enums.AppointmentStatusCancelled
	case enums.AppointmentStatusConfirmed:
		return to == enums.AppointmentStatusCompleted || to == enums.AppointmentStatusCancelled
	default:
		return false
	}
}

func buildView(appointment *models.Appointment) AppointmentView {
	return AppointmentView{
		ID:          appointment.ID,
		LeadID:      appointment.LeadID,
		PropertyID:  appointment.PropertyID,
		BuyerID:     appointment.BuyerID,
		SellerID:    appointment.SellerID,
		AgentID:     appointment.AgentID,
		ScheduledAt: appointment.ScheduledAt,
		Status:      appointment.Status,
		Notes:       appointment.Notes,
		CreatedAt:   appointment.CreatedAt,
		UpdatedAt:   appointment.UpdatedAt,
	}
}
