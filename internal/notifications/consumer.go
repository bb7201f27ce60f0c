package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/estatehubhq/estatehub-backend/pkg/db/models"
	"github.com/estatehubhq/estatehub-backend/pkg/enums"
	"github.com/estatehubhq/estatehub-backend/pkg/logger"
	"github.com/estatehubhq/estatehub-backend/pkg/outbox"
	"github.com/estatehubhq/estatehub-backend/pkg/outbox/idempotency"
	"github.com/estatehubhq/estatehub-backend/pkg/outbox/payloads"
	"github.com/estatehubhq/estatehub-backend/pkg/outbox/registry"
	"github.com/google/uuid"
)

const domainNotificationConsumer = "domain-notifications"

type repository interface {
	Create(ctx context.Context, notification *models.Notification) error
}

// Consumer watches domain events and turns them into in-app notifications.
type Consumer struct {
	repo         repository
	subscription *pubsub.Subscriber
	idempotency  *idempotency.Manager
	decoders     *registry.DecoderRegistry
	logg         *logger.Logger
}

func notificationDecoders() *registry.DecoderRegistry {
	reg := registry.NewDecoderRegistry()
	reg.Register(enums.EventLeadCreated, 1, func(data json.RawMessage) (interface{}, error) {
		var payload payloads.LeadCreatedEvent
		return &payload, json.Unmarshal(data, &payload)
	})
	reg.Register(enums.EventStageAdvanced, 1, func(data json.RawMessage) (interface{}, error) {
		var payload payloads.TransactionStageAdvancedEvent
		return &payload, json.Unmarshal(data, &payload)
	})
	reg.Register(enums.EventAppointmentStatusChange, 1, func(data json.RawMessage) (interface{}, error) {
		var payload payloads.AppointmentStatusChangedEvent
		return &payload, json.Unmarshal(data, &payload)
	})
	reg.Register(enums.EventSupportMessagePosted, 1, func(data json.RawMessage) (interface{}, error) {
		var payload payloads.SupportMessagePostedEvent
		return &payload, json.Unmarshal(data, &payload)
	})
	reg.Register(enums.EventTicketStatusChanged, 1, func(data json.RawMessage) (interface{}, error) {
		var payload payloads.SupportTicketStatusChangedEvent
		return &payload, json.Unmarshal(data, &payload)
	})
	reg.Register(enums.EventReferralCompleted, 1, func(data json.RawMessage) (interface{}, error) {
		var payload payloads.ReferralCompletedEvent
		return &payload, json.Unmarshal(data, &payload)
	})
	reg.Register(enums.EventNotificationRequested, 1, func(data json.RawMessage) (interface{}, error) {
		var payload payloads.NotificationRequestedEvent
		return &payload, json.Unmarshal(data, &payload)
	})
	return reg
}

// NewConsumer builds a domain notification consumer.
func NewConsumer(repo repository, subscription *pubsub.Subscriber, manager *idempotency.Manager, logg *logger.Logger) (*Consumer, error) {
	if repo == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	if subscription == nil {
		return nil, fmt.Errorf("domain subscription required")
	}
	if manager == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{
		repo:         repo,
		subscription: subscription,
		idempotency:  manager,
		decoders:     notificationDecoders(),
		logg:         logg,
	}, nil
}

// Run starts the consumer loop until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		result := c.process(ctx, msg)
		if result.nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type processResult struct {
	ack  bool
	nack bool
}

func (c *Consumer) process(ctx context.Context, msg *pubsub.Message) processResult {
	eventType := enums.OutboxEventType(msg.Attributes["event_type"])
	fields := map[string]any{
		"message_id": msg.ID,
		"event_type": eventType,
	}
	logCtx := c.logg.WithFields(ctx, fields)

	if !eventType.IsValid() {
		c.logg.Info(logCtx, "skipping unknown event")
		return processResult{ack: true}
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(msg.Data, &envelope); err != nil {
		c.logg.Error(logCtx, "failed to decode envelope", err)
		return processResult{ack: true}
	}

	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		c.logg.Error(logCtx, "invalid event id", err)
		return processResult{ack: true}
	}

	already, err := c.idempotency.CheckAndMarkProcessed(ctx, domainNotificationConsumer, eventID)
	if err != nil {
		c.logg.Error(logCtx, "idempotency check failed", err)
		return processResult{nack: true}
	}
	if already {
		c.logg.Info(logCtx, "event already processed")
		return processResult{ack: true}
	}

	version := envelope.Version
	if version <= 0 {
		version = 1
	}
	if !c.decoders.Registered(eventType, version) {
		c.logg.Info(logCtx, "event not handled")
		return processResult{ack: true}
	}

	if err := c.handleEvent(ctx, eventType, version, envelope.Data, logCtx); err != nil {
		c.logg.Error(logCtx, "notification handling failed", err)
		_ = c.idempotency.Delete(ctx, domainNotificationConsumer, eventID)
		return processResult{nack: true}
	}

	return processResult{ack: true}
}

func (c *Consumer) handleEvent(ctx context.Context, eventType enums.OutboxEventType, version int, data json.RawMessage, logCtx context.Context) error {
	decoded, err := c.decoders.Decode(eventType, version, data)
	if err != nil {
		return err
	}

	switch payload := decoded.(type) {
	case *payloads.LeadCreatedEvent:
		return c.notifyLeadInterest(ctx, *payload, logCtx)
	case *payloads.TransactionStageAdvancedEvent:
		return c.notifyStageAdvance(ctx, *payload, logCtx)
	case *payloads.AppointmentStatusChangedEvent:
		return c.notifyAppointmentChange(ctx, *payload, logCtx)
	case *payloads.SupportMessagePostedEvent:
		return c.notifySupportReply(ctx, *payload, logCtx)
	case *payloads.SupportTicketStatusChangedEvent:
		return c.notifyTicketStatus(ctx, *payload, logCtx)
	case *payloads.ReferralCompletedEvent:
		return c.notifyReferralReward(ctx, *payload, logCtx)
	case *payloads.NotificationRequestedEvent:
		return c.notifyRequested(ctx, *payload, logCtx)
	default:
		c.logg.Info(logCtx, "event not handled")
		return nil
	}
}

func (c *Consumer) notifyLeadInterest(ctx context.Context, payload payloads.LeadCreatedEvent, logCtx context.Context) error {
	if payload.SellerID == uuid.Nil {
		return fmt.Errorf("seller id missing")
	}
	link := fmt.Sprintf("/leads/%s", payload.LeadID)
	notification := &models.Notification{
		UserID:  payload.SellerID,
		Type:    enums.NotificationTypeLeadInterest,
		Title:   "New lead",
		Message: "A buyer registered interest in your listing.",
		Link:    stringPtr(link),
	}
	if err := c.repo.Create(ctx, notification); err != nil {
		return err
	}
	c.logg.Info(logCtx, "seller notified of new lead")
	return nil
}

func (c *Consumer) notifyStageAdvance(ctx context.Context, payload payloads.TransactionStageAdvancedEvent, logCtx context.Context) error {
	if payload.TransactionID == uuid.Nil {
		return fmt.Errorf("transaction id missing")
	}
	link := fmt.Sprintf("/transactions/%s", payload.TransactionID)
	message := fmt.Sprintf("Stage moved from %s to %s.", payload.FromStage, payload.ToStage)
	for _, userID := range []uuid.UUID{payload.BuyerID, payload.SellerID} {
		if userID == uuid.Nil {
			continue
		}
		notification := &models.Notification{
			UserID:  userID,
			Type:    enums.NotificationTypeStageUpdate,
			Title:   "Transaction updated",
			Message: message,
			Link:    stringPtr(link),
		}
		if err := c.repo.Create(ctx, notification); err != nil {
			return err
		}
	}
	c.logg.Info(logCtx, "parties notified of stage advance")
	return nil
}

func (c *Consumer) notifyAppointmentChange(ctx context.Context, payload payloads.AppointmentStatusChangedEvent, logCtx context.Context) error {
	if payload.AppointmentID == uuid.Nil {
		return fmt.Errorf("appointment id missing")
	}
	link := fmt.Sprintf("/appointments/%s", payload.AppointmentID)
	message := fmt.Sprintf("Viewing on %s is now %s.", payload.ScheduledAt.Format("Jan 2, 2006 15:04"), strings.ToLower(payload.ToStatus.String()))
	for _, userID := range []uuid.UUID{payload.BuyerID, payload.SellerID} {
		if userID == uuid.Nil {
			continue
		}
		// The party who made the change already knows about it.
		if payload.ChangedBy != nil && userID == *payload.ChangedBy {
			continue
		}
		notification := &models.Notification{
			UserID:  userID,
			Type:    enums.NotificationTypeAppointmentUpdate,
			Title:   "Appointment updated",
			Message: message,
			Link:    stringPtr(link),
		}
		if err := c.repo.Create(ctx, notification); err != nil {
			return err
		}
	}
	c.logg.Info(logCtx, "parties notified of appointment change")
	return nil
}

func (c *Consumer) notifySupportReply(ctx context.Context, payload payloads.SupportMessagePostedEvent, logCtx context.Context) error {
	if payload.TicketID == uuid.Nil {
		return fmt.Errorf("ticket id missing")
	}
	// Messages from the ticket owner land in the admin queue, not here.
	if payload.FromUser {
		return nil
	}
	if payload.TicketOwnerID == uuid.Nil {
		return fmt.Errorf("ticket owner id missing")
	}
	link := fmt.Sprintf("/support/tickets/%s", payload.TicketID)
	notification := &models.Notification{
		UserID:  payload.TicketOwnerID,
		Type:    enums.NotificationTypeSupportReply,
		Title:   "Support replied",
		Message: "Support replied to your ticket.",
		Link:    stringPtr(link),
	}
	if err := c.repo.Create(ctx, notification); err != nil {
		return err
	}
	c.logg.Info(logCtx, "ticket owner notified of reply")
	return nil
}

func (c *Consumer) notifyTicketStatus(ctx context.Context, payload payloads.SupportTicketStatusChangedEvent, logCtx context.Context) error {
	if payload.UserID == uuid.Nil {
		return fmt.Errorf("ticket user id missing")
	}
	link := fmt.Sprintf("/support/tickets/%s", payload.TicketID)
	notification := &models.Notification{
		UserID:  payload.UserID,
		Type:    enums.NotificationTypeSupportReply,
		Title:   "Ticket updated",
		Message: fmt.Sprintf("Your ticket moved from %s to %s.", payload.FromStatus, payload.ToStatus),
		Link:    stringPtr(link),
	}
	if err := c.repo.Create(ctx, notification); err != nil {
		return err
	}
	c.logg.Info(logCtx, "ticket owner notified of status change")
	return nil
}

func (c *Consumer) notifyReferralReward(ctx context.Context, payload payloads.ReferralCompletedEvent, logCtx context.Context) error {
	if payload.ReferrerID == uuid.Nil {
		return fmt.Errorf("referrer id missing")
	}
	notification := &models.Notification{
		UserID:  payload.ReferrerID,
		Type:    enums.NotificationTypeReferralReward,
		Title:   "Referral reward",
		Message: fmt.Sprintf("You earned %d points for a completed referral.", payload.PointsAwarded),
		Link:    stringPtr("/referrals"),
	}
	if err := c.repo.Create(ctx, notification); err != nil {
		return err
	}
	c.logg.Info(logCtx, "referrer notified of reward")
	return nil
}

func (c *Consumer) notifyRequested(ctx context.Context, payload payloads.NotificationRequestedEvent, logCtx context.Context) error {
	if payload.UserID == uuid.Nil {
		return fmt.Errorf("user id missing")
	}
	notificationType := payload.Type
	if !notificationType.IsValid() {
		notificationType = enums.NotificationTypeSystem
	}
	notification := &models.Notification{
		UserID:  payload.UserID,
		Type:    notificationType,
		Title:   strings.TrimSpace(payload.Title),
		Message: strings.TrimSpace(payload.Body),
	}
	if payload.Ref != nil {
		link := fmt.Sprintf("/notifications/%s", payload.Ref)
		notification.Link = stringPtr(link)
	}
	if err := c.repo.Create(ctx, notification); err != nil {
		return err
	}
	c.logg.Info(logCtx, "requested notification stored")
	return nil
}

func stringPtr(value string) *string {
	return &value
}
