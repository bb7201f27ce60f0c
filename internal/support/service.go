package support

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/estatehubhq/estatehub-backend/pkg/db/models"
	"github.com/estatehubhq/estatehub-backend/pkg/enums"
	pkgerrors "github.com/estatehubhq/estatehub-backend/pkg/errors"
	"github.com/estatehubhq/estatehub-backend/pkg/outbox"
	"github.com/estatehubhq/estatehub-backend/pkg/outbox/payloads"
	"github.com/estatehubhq/estatehub-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service defines support desk operations.
type Service interface {
	CreateTicket(ctx context.Context, params CreateTicketParams) (*TicketView, error)
	GetTicket(ctx context.Context, params GetTicketParams) (*TicketView, error)
	ListTickets(ctx context.Context, params ListTicketsParams) (*ListResult, error)
	PostMessage(ctx context.Context, params PostMessageParams) (*MessageView, error)
	UpdateStatus(ctx context.Context, params UpdateStatusParams) (*TicketView, error)
}

type service struct {
	repo   Repository
	tx     txRunner
	outbox outboxPublisher
}

// MessageMetadata is the structured payload admins can attach to a message.
type MessageMetadata struct {
	IsMultipleChoice bool     `json:"isMultipleChoice,omitempty"`
	Options          []string `json:"options,omitempty"`
	SelectedOption   string   `json:"selectedOption,omitempty"`
}

// CreateTicketParams opens a ticket with its first message.
type CreateTicketParams struct {
	UserID  uuid.UUID
	Role    enums.ActorRole
	Subject string
	Body    string
}

// GetTicketParams scopes a single ticket fetch to the caller.
type GetTicketParams struct {
	TicketID   uuid.UUID
	ViewerID   uuid.UUID
	ViewerRole enums.ActorRole
}

// ListTicketsParams configures ticket listing. Non-admin callers only ever
// see their own tickets.
type ListTicketsParams struct {
	ViewerID   uuid.UUID
	ViewerRole enums.ActorRole
	UserID     *uuid.UUID
	Status     string
	Limit      int
	Cursor     string
}

// PostMessageParams appends a message to a ticket. Users answering a
// multiple-choice prompt set SelectedOption instead of free text.
type PostMessageParams struct {
	TicketID       uuid.UUID
	AuthorID       uuid.UUID
	AuthorRole     enums.ActorRole
	Body           string
	Options        []string
	SelectedOption string
}

// UpdateStatusParams moves a ticket through the admin-driven lifecycle.
type UpdateStatusParams struct {
	TicketID   uuid.UUID
	ViewerID   uuid.UUID
	ViewerRole enums.ActorRole
	Status     string
}

// MessageView is the API projection of one ticket message.
type MessageView struct {
	ID         uuid.UUID        `json:"id"`
	AuthorID   uuid.UUID        `json:"authorId"`
	AuthorRole string           `json:"authorRole"`
	Body       string           `json:"body"`
	Metadata   *MessageMetadata `json:"metadata,omitempty"`
	CreatedAt  time.Time        `json:"createdAt"`
}

// TicketView is the API projection of a ticket with its ordered messages.
type TicketView struct {
	ID             uuid.UUID          `json:"id"`
	UserID         uuid.UUID          `json:"userId"`
	Subject        string             `json:"subject"`
	Status         enums.TicketStatus `json:"status"`
	Messages       []MessageView      `json:"messages"`
	AwaitingChoice bool               `json:"awaitingChoice"`
	CreatedAt      time.Time          `json:"createdAt"`
	UpdatedAt      time.Time          `json:"updatedAt"`
}

// ListResult wraps returned tickets and the cursor for the next page.
type ListResult struct {
	Items  []TicketView `json:"items"`
	Cursor string       `json:"cursor"`
}

// NewService wires support desk dependencies.
func NewService(repo Repository, tx txRunner, outboxSvc outboxPublisher) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("support repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outboxSvc == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{repo: repo, tx: tx, outbox: outboxSvc}, nil
}

// AwaitingChoice reports whether the ticket's last message is an admin
// multiple-choice prompt with no user answer after it. While true, free-text
// replies from the user are rejected server-side.
func AwaitingChoice(messages []models.SupportMessage) bool {
	if len(messages) == 0 {
		return false
	}
	last := messages[len(messages)-1]
	if last.AuthorRole != enums.ActorRoleAdmin {
		return false
	}
	meta := decodeMetadata(last.Metadata)
	return meta != nil && meta.IsMultipleChoice
}

func (s *service) CreateTicket(ctx context.Context, params CreateTicketParams) (*TicketView, error) {
	if params.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	subject := strings.TrimSpace(params.Subject)
	body := strings.TrimSpace(params.Body)
	if subject == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "subject required")
	}
	if body == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "message body required")
	}
	role := params.Role
	if !role.IsValid() {
		role = enums.ActorRoleBuyer
	}

	var created *models.SupportTicket
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		ticket := &models.SupportTicket{
			UserID:  params.UserID,
			Subject: subject,
			Status:  enums.TicketStatusOpen,
		}
		if err := repo.CreateTicket(ctx, ticket); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create ticket")
		}

		message := &models.SupportMessage{
			TicketID:   ticket.ID,
			AuthorID:   params.UserID,
			AuthorRole: role,
			Body:       body,
		}
		if err := repo.CreateMessage(ctx, message); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create first message")
		}
		ticket.Messages = []models.SupportMessage{*message}
		created = ticket

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventSupportMessagePosted,
			AggregateType: enums.AggregateSupportTicket,
			AggregateID:   ticket.ID,
			Actor:         &outbox.ActorRef{UserID: params.UserID},
			Version:       1,
			Data: payloads.SupportMessagePostedEvent{
				TicketID:      ticket.ID,
				TicketOwnerID: ticket.UserID,
				MessageID:     message.ID,
				AuthorID:      params.UserID,
				FromUser:      true,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	view := buildTicketView(created)
	return &view, nil
}

func (s *service) GetTicket(ctx context.Context, params GetTicketParams) (*TicketView, error) {
	ticket, err := s.loadVisibleTicket(ctx, s.repo, params.TicketID, params.ViewerID, params.ViewerRole)
	if err != nil {
		return nil, err
	}
	view := buildTicketView(ticket)
	return &view, nil
}

func (s *service) ListTickets(ctx context.Context, params ListTicketsParams) (*ListResult, error) {
	if params.ViewerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}

	query := listTicketsParams{Limit: params.Limit}
	if params.ViewerRole == enums.ActorRoleAdmin {
		query.UserID = params.UserID
	} else {
		viewerID := params.ViewerID
		query.UserID = &viewerID
	}
	if params.Status != "" {
		status, err := enums.ParseTicketStatus(params.Status)
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

	rows, next, err := s.repo.ListTickets(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list tickets")
	}

	items := make([]TicketView, 0, len(rows))
	for i := range rows {
		items = append(items, buildTicketView(&rows[i]))
	}
	cursor := ""
	if next != nil {
		cursor = pagination.EncodeCursor(*next)
	}
	return &ListResult{Items: items, Cursor: cursor}, nil
}

func (s *service) PostMessage(ctx context.Context, params PostMessageParams) (*MessageView, error) {
	if params.TicketID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "ticket id required")
	}
	fromAdmin := params.AuthorRole == enums.ActorRoleAdmin
	if !fromAdmin && len(params.Options) > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only admins post multiple-choice prompts")
	}
	if fromAdmin && len(params.Options) == 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "multiple-choice prompts need at least two options")
	}

	var created *models.SupportMessage
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		ticket, err := s.loadVisibleTicket(ctx, repo, params.TicketID, params.AuthorID, params.AuthorRole)
		if err != nil {
			return err
		}
		if ticket.Status == enums.TicketStatusClosed {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "ticket is closed")
		}

		body := strings.TrimSpace(params.Body)
		var metadata *MessageMetadata

		if !fromAdmin && AwaitingChoice(ticket.Messages) {
			prompt := decodeMetadata(ticket.Messages[len(ticket.Messages)-1].Metadata)
			selected := strings.TrimSpace(params.SelectedOption)
			if selected == "" {
				return pkgerrors.New(pkgerrors.CodeStateConflict, "answer the pending prompt first")
			}
			if !containsOption(prompt.Options, selected) {
				return pkgerrors.New(pkgerrors.CodeValidation, "selected option is not part of the prompt")
			}
			body = selected
			metadata = &MessageMetadata{SelectedOption: selected}
		} else if fromAdmin && len(params.Options) > 0 {
			metadata = &MessageMetadata{IsMultipleChoice: true, Options: params.Options}
		}

		if body == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, "message body required")
		}

		message := &models.SupportMessage{
			TicketID:   ticket.ID,
			AuthorID:   params.AuthorID,
			AuthorRole: params.AuthorRole,
			Body:       body,
		}
		if metadata != nil {
			raw, err := json.Marshal(metadata)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode metadata")
			}
			message.Metadata = raw
		}
		if err := repo.CreateMessage(ctx, message); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create message")
		}
		created = message

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventSupportMessagePosted,
			AggregateType: enums.AggregateSupportTicket,
			AggregateID:   ticket.ID,
			Actor:         &outbox.ActorRef{UserID: params.AuthorID, Role: params.AuthorRole.String()},
			Version:       1,
			Data: payloads.SupportMessagePostedEvent{
				TicketID:      ticket.ID,
				TicketOwnerID: ticket.UserID,
				MessageID:     message.ID,
				AuthorID:      params.AuthorID,
				AuthorRole:    params.AuthorRole.String(),
				FromUser:      !fromAdmin,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	view := buildMessageView(*created)
	return &view, nil
}

func (s *service) UpdateStatus(ctx context.Context, params UpdateStatusParams) (*TicketView, error) {
	if params.ViewerRole != enums.ActorRoleAdmin {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only admins update ticket status")
	}
	target, err := enums.ParseTicketStatus(params.Status)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid ticket status")
	}

	var updated *models.SupportTicket
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		ticket, err := s.loadVisibleTicket(ctx, repo, params.TicketID, params.ViewerID, params.ViewerRole)
		if err != nil {
			return err
		}
		if !ticket.Status.CanTransitionTo(target) {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("cannot move ticket from %s to %s", ticket.Status, target))
		}
		fromStatus := ticket.Status

		if err := repo.UpdateTicketStatus(ctx, ticket.ID, target); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update ticket status")
		}
		ticket.Status = target
		updated = ticket

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventTicketStatusChanged,
			AggregateType: enums.AggregateSupportTicket,
			AggregateID:   ticket.ID,
			Actor:         &outbox.ActorRef{UserID: params.ViewerID, Role: params.ViewerRole.String()},
			Version:       1,
			Data: payloads.SupportTicketStatusChangedEvent{
				TicketID:   ticket.ID,
				UserID:     ticket.UserID,
				FromStatus: fromStatus,
				ToStatus:   target,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	view := buildTicketView(updated)
	return &view, nil
}

func (s *service) loadVisibleTicket(ctx context.Context, repo Repository, ticketID, viewerID uuid.UUID, role enums.ActorRole) (*models.SupportTicket, error) {
	if ticketID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "ticket id required")
	}
	if viewerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "viewer is required")
	}

	ticket, err := repo.FindTicketByID(ctx, ticketID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "ticket not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load ticket")
	}
	if role != enums.ActorRoleAdmin && ticket.UserID != viewerID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "ticket not found")
	}
	return ticket, nil
}

func decodeMetadata(raw json.RawMessage) *MessageMetadata {
	if len(raw) == 0 {
		return nil
	}
	var meta MessageMetadata
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil
	}
	return &meta
}

func containsOption(options []string, selected string) bool {
	for _, option := range options {
		if option == selected {
			return true
		}
	}
	return false
}

func buildMessageView(message models.SupportMessage) MessageView {
	return MessageView{
		ID:         message.ID,
		AuthorID:   message.AuthorID,
		AuthorRole: message.AuthorRole.String(),
		Body:       message.Body,
		Metadata:   decodeMetadata(message.Metadata),
		CreatedAt:  message.CreatedAt,
	}
}

func buildTicketView(ticket *models.SupportTicket) TicketView {
	view := TicketView{
		ID:             ticket.ID,
		UserID:         ticket.UserID,
		Subject:        ticket.Subject,
		Status:         ticket.Status,
		AwaitingChoice: AwaitingChoice(ticket.Messages),
		CreatedAt:      ticket.CreatedAt,
		UpdatedAt:      ticket.UpdatedAt,
	}
	view.Messages = make([]MessageView, 0, len(ticket.Messages))
	for _, message := range ticket.Messages {
		view.Messages = append(view.Messages, buildMessageView(message))
	}
	return view
}
