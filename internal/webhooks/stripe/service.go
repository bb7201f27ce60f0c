package stripewebhook

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"
	stripesub "github.com/stripe/stripe-go/v84/subscription"

	"github.com/estatehubhq/estatehub-backend/internal/billing"
	pkgerrors "github.com/estatehubhq/estatehub-backend/pkg/errors"
	pkgstripe "github.com/estatehubhq/estatehub-backend/pkg/stripe"
)

// StripeSubscriptionFetcher exposes the lookup the webhook handler needs when
// an invoice event only carries a subscription id.
type StripeSubscriptionFetcher interface {
	Get(ctx context.Context, id string, params *stripe.SubscriptionParams) (*stripe.Subscription, error)
}

type stripeFetcherWrapper struct{}

// NewStripeFetcher wraps the configured Stripe client for subscription reads.
func NewStripeFetcher(api *pkgstripe.Client) StripeSubscriptionFetcher {
	if api == nil {
		return nil
	}
	return &stripeFetcherWrapper{}
}

func (w *stripeFetcherWrapper) Get(ctx context.Context, id string, params *stripe.SubscriptionParams) (*stripe.Subscription, error) {
	if params == nil {
		params = &stripe.SubscriptionParams{}
	}
	params.Context = ctx
	return stripesub.Get(id, params)
}

type ServiceParams struct {
	Billing billing.Service
	Stripe  StripeSubscriptionFetcher
}

// Service translates Stripe webhook events into local subscription updates.
type Service struct {
	billing billing.Service
	stripe  StripeSubscriptionFetcher
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Billing == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "billing service required")
	}
	if params.Stripe == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "stripe client required")
	}
	return &Service{billing: params.Billing, stripe: params.Stripe}, nil
}

func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) error {
	if event == nil || event.Data == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}

	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted:
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode checkout session event")
		}
		return s.applyCheckoutSession(ctx, &session)
	case stripe.EventTypeCustomerSubscriptionCreated,
		stripe.EventTypeCustomerSubscriptionUpdated,
		stripe.EventTypeCustomerSubscriptionDeleted:
		var stripeSub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &stripeSub); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode subscription event")
		}
		return s.applySubscription(ctx, &stripeSub)
	case stripe.EventTypeInvoicePaid, stripe.EventTypeInvoicePaymentFailed:
		subscriptionID := event.GetObjectValue("subscription")
		if subscriptionID == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, "subscription id missing")
		}
		stripeSub, err := s.stripe.Get(ctx, subscriptionID, &stripe.SubscriptionParams{})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "fetch stripe subscription")
		}
		return s.applySubscription(ctx, stripeSub)
	default:
		return nil
	}
}

func (s *Service) applyCheckoutSession(ctx context.Context, session *stripe.CheckoutSession) error {
	if session == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "checkout session required")
	}

	userID, err := uuid.Parse(session.ClientReferenceID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "client reference id is not a user id")
	}

	params := billing.ProviderUpdateParams{
		UserID: userID,
		Status: string(stripe.SubscriptionStatusActive),
	}
	if session.Customer != nil {
		params.StripeCustomerID = session.Customer.ID
	}
	if session.Subscription != nil {
		params.StripeSubscriptionID = session.Subscription.ID
	}
	return s.billing.ApplyProviderUpdate(ctx, params)
}

func (s *Service) applySubscription(ctx context.Context, stripeSub *stripe.Subscription) error {
	if stripeSub == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "subscription is required")
	}

	params := billing.ProviderUpdateParams{
		StripeSubscriptionID: stripeSub.ID,
		Status:               string(stripeSub.Status),
		CurrentPeriodEnd:     periodEnd(stripeSub),
	}
	if stripeSub.Customer != nil {
		params.StripeCustomerID = stripeSub.Customer.ID
	}
	if raw, ok := stripeSub.Metadata["user_id"]; ok {
		if userID, err := uuid.Parse(raw); err == nil {
			params.UserID = userID
		}
	}
	return s.billing.ApplyProviderUpdate(ctx, params)
}

func periodEnd(sub *stripe.Subscription) *time.Time {
	if sub == nil || sub.Items == nil || len(sub.Items.Data) == 0 {
		return nil
	}
	ts := sub.Items.Data[0].CurrentPeriodEnd
	if ts <= 0 {
		return nil
	}
	end := time.Unix(ts, 0).UTC()
	return &end
}
