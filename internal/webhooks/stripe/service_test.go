package stripewebhook

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"

	"github.com/estatehubhq/estatehub-backend/internal/billing"
)

type fakeBilling struct {
	billing.Service
	updates []billing.ProviderUpdateParams
	err     error
}

func (f *fakeBilling) ApplyProviderUpdate(ctx context.Context, params billing.ProviderUpdateParams) error {
	if f.err != nil {
		return f.err
	}
	f.updates = append(f.updates, params)
	return nil
}

type fakeFetcher struct {
	sub  *stripe.Subscription
	gets []string
}

func (f *fakeFetcher) Get(ctx context.Context, id string, params *stripe.SubscriptionParams) (*stripe.Subscription, error) {
	f.gets = append(f.gets, id)
	return f.sub, nil
}

func newTestWebhookService(t *testing.T, b *fakeBilling, fetcher *fakeFetcher) *Service {
	t.Helper()
	if fetcher == nil {
		fetcher = &fakeFetcher{}
	}
	svc, err := NewService(ServiceParams{Billing: b, Stripe: fetcher})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func subscriptionEvent(t *testing.T, eventType stripe.EventType, payload map[string]any) *stripe.Event {
	t.Helper()
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return &stripe.Event{
		ID:   "evt_" + uuid.NewString(),
		Type: eventType,
		Data: &stripe.EventData{Raw: raw},
	}
}

func TestService_SubscriptionUpdatedAppliesStatus(t *testing.T) {
	userID := uuid.New()
	b := &fakeBilling{}
	svc := newTestWebhookService(t, b, nil)

	periodEnd := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	event := subscriptionEvent(t, stripe.EventTypeCustomerSubscriptionUpdated, map[string]any{
		"id":       "sub_123",
		"status":   "past_due",
		"customer": map[string]any{"id": "cus_123"},
		"metadata": map[string]string{"user_id": userID.String()},
		"items": map[string]any{
			"data": []map[string]any{
				{"current_period_end": periodEnd.Unix()},
			},
		},
	})

	if err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}
	if len(b.updates) != 1 {
		t.Fatalf("expected one update, got %d", len(b.updates))
	}
	update := b.updates[0]
	if update.UserID != userID {
		t.Fatalf("expected user %s, got %s", userID, update.UserID)
	}
	if update.StripeSubscriptionID != "sub_123" || update.StripeCustomerID != "cus_123" {
		t.Fatalf("unexpected identifiers: %+v", update)
	}
	if update.Status != "past_due" {
		t.Fatalf("expected past_due, got %s", update.Status)
	}
	if update.CurrentPeriodEnd == nil || !update.CurrentPeriodEnd.Equal(periodEnd) {
		t.Fatalf("expected period end %s, got %v", periodEnd, update.CurrentPeriodEnd)
	}
}

func TestService_CheckoutSessionCompletedBindsUser(t *testing.T) {
	userID := uuid.New()
	b := &fakeBilling{}
	svc := newTestWebhookService(t, b, nil)

	event := subscriptionEvent(t, stripe.EventTypeCheckoutSessionCompleted, map[string]any{
		"id":                  "cs_123",
		"client_reference_id": userID.String(),
		"customer":            map[string]any{"id": "cus_456"},
		"subscription":        map[string]any{"id": "sub_456"},
	})

	if err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}
	if len(b.updates) != 1 {
		t.Fatalf("expected one update, got %d", len(b.updates))
	}
	update := b.updates[0]
	if update.UserID != userID || update.StripeSubscriptionID != "sub_456" {
		t.Fatalf("unexpected update: %+v", update)
	}
	if update.Status != string(stripe.SubscriptionStatusActive) {
		t.Fatalf("expected active, got %s", update.Status)
	}
}

func TestService_InvoiceEventFetchesSubscription(t *testing.T) {
	b := &fakeBilling{}
	fetcher := &fakeFetcher{sub: &stripe.Subscription{
		ID:     "sub_789",
		Status: stripe.SubscriptionStatusActive,
	}}
	svc := newTestWebhookService(t, b, fetcher)

	raw, _ := json.Marshal(map[string]any{"subscription": "sub_789"})
	event := &stripe.Event{
		ID:   "evt_invoice",
		Type: stripe.EventTypeInvoicePaid,
		Data: &stripe.EventData{Raw: raw},
	}

	if err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}
	if len(fetcher.gets) != 1 || fetcher.gets[0] != "sub_789" {
		t.Fatalf("expected fetch of sub_789, got %v", fetcher.gets)
	}
	if len(b.updates) != 1 || b.updates[0].StripeSubscriptionID != "sub_789" {
		t.Fatalf("unexpected updates: %+v", b.updates)
	}
}

func TestService_UnhandledEventIgnored(t *testing.T) {
	b := &fakeBilling{}
	svc := newTestWebhookService(t, b, nil)

	event := subscriptionEvent(t, "charge.succeeded", map[string]any{"id": "ch_1"})
	if err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}
	if len(b.updates) != 0 {
		t.Fatalf("expected no updates, got %d", len(b.updates))
	}
}
