package transactions

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/estatehubhq/estatehub-backend/internal/stream"
	dbpkg "github.com/estatehubhq/estatehub-backend/pkg/db"
	"github.com/estatehubhq/estatehub-backend/pkg/db/models"
	"github.com/estatehubhq/estatehub-backend/pkg/enums"
	pkgerrors "github.com/estatehubhq/estatehub-backend/pkg/errors"
	"github.com/estatehubhq/estatehub-backend/pkg/outbox"
	"github.com/estatehubhq/estatehub-backend/pkg/outbox/payloads"
	"github.com/estatehubhq/estatehub-backend/pkg/stage"
	"github.com/estatehubhq/estatehub-backend/pkg/visibility"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type streamPublisher interface {
	PublishTransaction(update stream.TransactionUpdate) bool
}

// Service defines transaction lifecycle operations.
type Service interface {
	Open(ctx context.Context, params OpenParams) (*TransactionView, error)
	Get(ctx context.Context, params GetParams) (*TransactionView, error)
	Advance(ctx context.Context, params AdvanceParams) (*TransactionView, error)
	Cancel(ctx context.Context, params CancelParams) (*TransactionView, error)
	MarkNotificationRead(ctx context.Context, params MarkNotificationReadParams) error
}

type service struct {
	repo   Repository
	tx     txRunner
	outbox outboxPublisher
	hub    streamPublisher
}

// OpenParams attaches a transaction to an existing lead.
type OpenParams struct {
	LeadID     uuid.UUID
	ViewerID   uuid.UUID
	ViewerRole enums.ActorRole
}

// GetParams scopes a single transaction fetch to the caller.
type GetParams struct {
	TransactionID uuid.UUID
	ViewerID      uuid.UUID
	ViewerRole    enums.ActorRole
}

// AdvanceParams moves a transaction forward one or more stages.
type AdvanceParams struct {
	TransactionID uuid.UUID
	ViewerID      uuid.UUID
	ViewerRole    enums.ActorRole
	Stage         string
}

// CancelParams aborts a transaction from any non-terminal stage.
type CancelParams struct {
	TransactionID uuid.UUID
	ViewerID      uuid.UUID
	ViewerRole    enums.ActorRole
	Reason        *string
}

// MarkNotificationReadParams marks one progress entry as read.
type MarkNotificationReadParams struct {
	TransactionID  uuid.UUID
	NotificationID uuid.UUID
	ViewerID       uuid.UUID
	ViewerRole     enums.ActorRole
}

// NotificationView is the API projection of one progress entry.
type NotificationView struct {
	ID            uuid.UUID `json:"id"`
	Message       string    `json:"message"`
	RecipientRole string    `json:"recipientRole"`
	Stage         string    `json:"stage"`
	Category      string    `json:"category"`
	Read          bool      `json:"read"`
	CreatedAt     time.Time `json:"createdAt"`
}

// StageView surfaces the effective stage plus its display metadata.
type StageView struct {
	Stage     string      `json:"stage"`
	Order     int         `json:"order"`
	Label     string      `json:"label"`
	Badge     stage.Badge `json:"badge"`
	UpdatedAt time.Time   `json:"updatedAt"`
}

// TransactionView is the API projection of a transaction with its progress.
type TransactionView struct {
	ID            uuid.UUID          `json:"id"`
	LeadID        uuid.UUID          `json:"leadId"`
	PropertyID    uuid.UUID          `json:"propertyId"`
	BuyerID       uuid.UUID          `json:"buyerId"`
	SellerID      uuid.UUID          `json:"sellerId"`
	AgentID       *uuid.UUID         `json:"agentId,omitempty"`
	Status        string             `json:"status"`
	Stage         StageView          `json:"stage"`
	Notifications []NotificationView `json:"notifications"`
	CreatedAt     time.Time          `json:"createdAt"`
	UpdatedAt     time.Time          `json:"updatedAt"`
}

// NewService wires transaction dependencies. The hub is optional; a nil hub
// disables live stream publishing.
func NewService(repo Repository, tx txRunner, outboxSvc outboxPublisher, hub streamPublisher) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("transactions repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outboxSvc == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{repo: repo, tx: tx, outbox: outboxSvc, hub: hub}, nil
}

func (s *service) Open(ctx context.Context, params OpenParams) (*TransactionView, error) {
	if params.LeadID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "lead id required")
	}
	switch params.ViewerRole {
	case enums.ActorRoleSeller, enums.ActorRoleAgent, enums.ActorRoleAdmin:
	default:
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only sellers and agents open transactions")
	}

	var created *models.Transaction
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

		transaction := &models.Transaction{
			LeadID:         lead.ID,
			PropertyID:     lead.PropertyID,
			BuyerID:        lead.BuyerID,
			SellerID:       lead.SellerID,
			AgentID:        lead.AgentID,
			Status:         models.TransactionStatusActive,
			Stage:          stage.Pending.String(),
			StageUpdatedAt: time.Now(),
		}
		if err := repo.Create(ctx, transaction); err != nil {
			if dbpkg.IsUniqueViolation(err, "ux_transactions_lead") {
				return pkgerrors.New(pkgerrors.CodeConflict, "transaction already open for this lead")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create transaction")
		}
		created = transaction

		event := outbox.DomainEvent{
			EventType:     enums.EventTransactionOpened,
			AggregateType: enums.AggregateTransaction,
			AggregateID:   transaction.ID,
			Actor:         &outbox.ActorRef{UserID: params.ViewerID, Role: params.ViewerRole.String()},
			Version:       1,
			Data: payloads.TransactionOpenedEvent{
				TransactionID: transaction.ID,
				LeadID:        transaction.LeadID,
				PropertyID:    transaction.PropertyID,
				BuyerID:       transaction.BuyerID,
				SellerID:      transaction.SellerID,
			},
		}
		return s.outbox.EmitIfNotExists(ctx, tx, event)
	})
	if err != nil {
		return nil, err
	}

	view := buildView(created)
	return &view, nil
}

func (s *service) Get(ctx context.Context, params GetParams) (*TransactionView, error) {
	if params.TransactionID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transaction id required")
	}

	transaction, err := s.repo.FindByID(ctx, params.TransactionID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "transaction not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load transaction")
	}

	if err := visibility.EnsureTransactionVisible(visibility.TransactionAccessInput{
		Transaction: transaction,
		ViewerID:    params.ViewerID,
		ViewerRole:  params.ViewerRole,
	}); err != nil {
		return nil, err
	}

	view := buildView(transaction)
	return &view, nil
}

func (s *service) Advance(ctx context.Context, params AdvanceParams) (*TransactionView, error) {
	target, err := stage.ParseStrict(params.Stage)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid stage")
	}
	if target == stage.Cancelled {
		return s.Cancel(ctx, CancelParams{
			TransactionID: params.TransactionID,
			ViewerID:      params.ViewerID,
			ViewerRole:    params.ViewerRole,
		})
	}
	return s.move(ctx, moveParams{
		transactionID: params.TransactionID,
		viewerID:      params.ViewerID,
		viewerRole:    params.ViewerRole,
		target:        target,
	})
}

func (s *service) Cancel(ctx context.Context, params CancelParams) (*TransactionView, error) {
	return s.move(ctx, moveParams{
		transactionID: params.TransactionID,
		viewerID:      params.ViewerID,
		viewerRole:    params.ViewerRole,
		target:        stage.Cancelled,
		reason:        params.Reason,
	})
}

type moveParams struct {
	transactionID uuid.UUID
	viewerID      uuid.UUID
	viewerRole    enums.ActorRole
	target        stage.Stage
	reason        *string
}

func (s *service) move(ctx context.Context, params moveParams) (*TransactionView, error) {
	if params.transactionID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transaction id required")
	}
	switch params.viewerRole {
	case enums.ActorRoleSeller, enums.ActorRoleAgent, enums.ActorRoleAdmin:
	default:
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only sellers and agents move transactions")
	}

	var updated *models.Transaction
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		transaction, err := repo.FindByID(ctx, params.transactionID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "transaction not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load transaction")
		}
		if err := visibility.EnsureTransactionVisible(visibility.TransactionAccessInput{
			Transaction: transaction,
			ViewerID:    params.viewerID,
			ViewerRole:  params.viewerRole,
		}); err != nil {
			return err
		}

		current := stage.Effective(transaction.Status, transaction.Stage)
		if !stage.CanTransition(current, params.target) {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("cannot move from %s to %s", current, params.target)).
				WithDetails(map[string]any{"from": current.String(), "to": params.target.String()})
		}

		now := time.Now()
		status := statusForStage(params.target)
		moved, err := repo.UpdateStage(ctx, transaction.ID, transaction.Stage, params.target.String(), status, now)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update stage")
		}
		if !moved {
			// Another writer changed the stage between our read and this
			// update. Surface the conflict instead of committing a regression.
			return pkgerrors.New(pkgerrors.CodeStateConflict, "transaction stage changed concurrently").
				WithDetails(map[string]any{"from": current.String(), "to": params.target.String()})
		}

		notifications := progressEntries(transaction, params.target, now)
		if err := repo.CreateNotifications(ctx, notifications); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append progress notifications")
		}

		transaction.Stage = params.target.String()
		transaction.Status = status
		transaction.StageUpdatedAt = now
		transaction.Notifications = append(transaction.Notifications, notifications...)
		updated = transaction

		actor := &outbox.ActorRef{UserID: params.viewerID, Role: params.viewerRole.String()}
		if params.target == stage.Cancelled {
			reason := ""
			if params.reason != nil {
				reason = *params.reason
			}
			event := outbox.DomainEvent{
				EventType:     enums.EventTransactionCancelled,
				AggregateType: enums.AggregateTransaction,
				AggregateID:   transaction.ID,
				Actor:         actor,
				Version:       1,
				Data: payloads.TransactionCancelledEvent{
					TransactionID: transaction.ID,
					LeadID:        transaction.LeadID,
					FromStage:     current.String(),
					CancelledAt:   now,
					Reason:        reason,
				},
			}
			return s.outbox.EmitIfNotExists(ctx, tx, event)
		}
		event := outbox.DomainEvent{
			EventType:     enums.EventStageAdvanced,
			AggregateType: enums.AggregateTransaction,
			AggregateID:   transaction.ID,
			Actor:         actor,
			Version:       1,
			Data: payloads.TransactionStageAdvancedEvent{
				TransactionID: transaction.ID,
				LeadID:        transaction.LeadID,
				BuyerID:       transaction.BuyerID,
				SellerID:      transaction.SellerID,
				FromStage:     current.String(),
				ToStage:       params.target.String(),
				AdvancedAt:    now,
			},
		}
		return s.outbox.Emit(ctx, tx, event)
	})
	if err != nil {
		return nil, err
	}

	view := buildView(updated)
	s.publish(view)
	return &view, nil
}

func (s *service) MarkNotificationRead(ctx context.Context, params MarkNotificationReadParams) error {
	if params.TransactionID == uuid.Nil || params.NotificationID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "transaction and notification ids required")
	}

	transaction, err := s.repo.FindByID(ctx, params.TransactionID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return pkgerrors.New(pkgerrors.CodeNotFound, "transaction not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load transaction")
	}
	if err := visibility.EnsureTransactionVisible(visibility.TransactionAccessInput{
		Transaction: transaction,
		ViewerID:    params.ViewerID,
		ViewerRole:  params.ViewerRole,
	}); err != nil {
		return err
	}

	marked, err := s.repo.MarkNotificationRead(ctx, params.TransactionID, params.NotificationID, time.Now())
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark notification read")
	}
	if !marked {
		return pkgerrors.New(pkgerrors.CodeNotFound, "notification not found")
	}
	return nil
}

func (s *service) publish(view TransactionView) {
	if s.hub == nil {
		return
	}
	notifications := make([]stream.Notification, 0, len(view.Notifications))
	for _, n := range view.Notifications {
		notifications = append(notifications, stream.Notification{
			ID:            n.ID,
			Message:       n.Message,
			RecipientRole: n.RecipientRole,
			Stage:         n.Stage,
			Category:      n.Category,
			Read:          n.Read,
			CreatedAt:     n.CreatedAt,
		})
	}
	s.hub.PublishTransaction(stream.TransactionUpdate{
		ID: view.ID,
		Progress: stream.Progress{
			Stage:         view.Stage.Stage,
			UpdatedAt:     view.Stage.UpdatedAt,
			Notifications: notifications,
		},
		Property: stream.PropertyRef{ID: view.PropertyID},
	})
}

// statusForStage derives the outer status column from the stage.
func statusForStage(target stage.Stage) string {
	switch target {
	case stage.Completed:
		return models.TransactionStatusCompleted
	case stage.Cancelled:
		return models.TransactionStatusCancelled
	default:
		return models.TransactionStatusActive
	}
}

// categoryForStage maps the target stage to a progress entry category.
func categoryForStage(target stage.Stage) enums.ProgressCategory {
	switch target {
	case stage.MeetingScheduled:
		return enums.ProgressCategoryAppointment
	case stage.DepositPaid:
		return enums.ProgressCategoryPayment
	case stage.FinalSigning:
		return enums.ProgressCategoryContract
	case stage.Completed:
		return enums.ProgressCategoryCompletion
	default:
		return enums.ProgressCategoryGeneral
	}
}

func progressEntries(transaction *models.Transaction, target stage.Stage, at time.Time) []models.ProgressNotification {
	message := fmt.Sprintf("Transaction moved to %s", target.Label())
	if target == stage.Cancelled {
		message = "Transaction was cancelled"
	}
	category := categoryForStage(target)

	recipients := []enums.ActorRole{enums.ActorRoleBuyer, enums.ActorRoleSeller}
	if transaction.AgentID != nil {
		recipients = append(recipients, enums.ActorRoleAgent)
	}

	entries := make([]models.ProgressNotification, 0, len(recipients))
	for _, role := range recipients {
		entries = append(entries, models.ProgressNotification{
			ID:            uuid.New(),
			TransactionID: transaction.ID,
			Message:       message,
			RecipientRole: role,
			Stage:         target.String(),
			Category:      category,
			CreatedAt:     at,
		})
	}
	return entries
}

func buildView(transaction *models.Transaction) TransactionView {
	current := stage.Effective(transaction.Status, transaction.Stage)
	view := TransactionView{
		ID:         transaction.ID,
		LeadID:     transaction.LeadID,
		PropertyID: transaction.PropertyID,
		BuyerID:    transaction.BuyerID,
		SellerID:   transaction.SellerID,
		AgentID:    transaction.AgentID,
		Status:     transaction.Status,
		Stage: StageView{
			Stage:     current.String(),
			Order:     stage.Order(current.String()),
			Label:     current.Label(),
			Badge:     current.Badge(),
			UpdatedAt: transaction.StageUpdatedAt,
		},
		CreatedAt: transaction.CreatedAt,
		UpdatedAt: transaction.UpdatedAt,
	}

	view.Notifications = make([]NotificationView, 0, len(transaction.Notifications))
	for _, n := range transaction.Notifications {
		view.Notifications = append(view.Notifications, NotificationView{
			ID:            n.ID,
			Message:       n.Message,
			RecipientRole: n.RecipientRole.String(),
			Stage:         n.Stage,
			Category:      string(n.Category),
			Read:          !n.IsUnread(),
			CreatedAt:     n.CreatedAt,
		})
	}
	return view
}
