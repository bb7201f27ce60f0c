package billing

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/estatehubhq/estatehub-backend/pkg/config"
	"github.com/estatehubhq/estatehub-backend/pkg/db/models"
	"github.com/estatehubhq/estatehub-backend/pkg/enums"
	pkgerrors "github.com/estatehubhq/estatehub-backend/pkg/errors"
)

// Service defines seller subscription billing operations. Money movement
// stays at Stripe; locally we keep a read model per user.
type Service interface {
	CreateCheckoutSession(ctx context.Context, params CreateCheckoutSessionParams) (*CheckoutSessionView, error)
	GetSubscription(ctx context.Context, userID uuid.UUID) (*SubscriptionView, error)
	ApplyProviderUpdate(ctx context.Context, params ProviderUpdateParams) error
}

type service struct {
	repo   Repository
	stripe StripeCheckoutClient
	cfg    config.StripeConfig
}

// CreateCheckoutSessionParams starts a hosted Stripe checkout for a plan.
type CreateCheckoutSessionParams struct {
	UserID   uuid.UUID
	Email    string
	PlanCode string
	Amount   decimal.Decimal
}

// CheckoutSessionView carries the redirect URL for the hosted checkout page.
type CheckoutSessionView struct {
	SessionID string `json:"sessionId"`
	URL       string `json:"url"`
}

// ProviderUpdateParams mirrors a Stripe subscription state change, normally
// delivered by webhook.
type ProviderUpdateParams struct {
	UserID               uuid.UUID
	StripeCustomerID     string
	StripeSubscriptionID string
	Status               string
	CurrentPeriodEnd     *time.Time
}

// SubscriptionView is the API projection of the local subscription row.
type SubscriptionView struct {
	PlanCode         string                   `json:"planCode"`
	Amount           decimal.Decimal          `json:"amount"`
	Currency         string                   `json:"currency"`
	Status           enums.SubscriptionStatus `json:"status"`
	Billable         bool                     `json:"billable"`
	CurrentPeriodEnd *time.Time               `json:"currentPeriodEnd,omitempty"`
}

// NewService wires billing dependencies.
func NewService(repo Repository, stripeClient StripeCheckoutClient, cfg config.StripeConfig) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("billing repository required")
	}
	if stripeClient == nil {
		return nil, fmt.Errorf("stripe client required")
	}
	if strings.TrimSpace(cfg.PriceID) == "" {
		return nil, fmt.Errorf("stripe price id required")
	}
	return &service{repo: repo, stripe: stripeClient, cfg: cfg}, nil
}

func (s *service) CreateCheckoutSession(ctx context.Context, params CreateCheckoutSessionParams) (*CheckoutSessionView, error) {
	if params.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	planCode := strings.TrimSpace(params.PlanCode)
	if planCode == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "plan code required")
	}
	if params.Amount.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount cannot be negative")
	}

	sessionParams := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		ClientReferenceID: stripe.String(params.UserID.String()),
		SuccessURL:        stripe.String(s.cfg.SuccessURL),
		CancelURL:         stripe.String(s.cfg.CancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(s.cfg.PriceID),
				Quantity: stripe.Int64(1),
			},
		},
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: map[string]string{"user_id": params.UserID.String()},
		},
	}
	if email := strings.TrimSpace(params.Email); email != "" {
		sessionParams.CustomerEmail = stripe.String(email)
	}

	session, err := s.stripe.CreateCheckoutSession(ctx, sessionParams)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create checkout session")
	}

	subscription := &models.Subscription{
		UserID:   params.UserID,
		PlanCode: planCode,
		Amount:   params.Amount,
		Currency: "USD",
		Status:   enums.SubscriptionStatusIncomplete,
	}
	if err := s.repo.Upsert(ctx, subscription); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record pending subscription")
	}

	return &CheckoutSessionView{SessionID: session.ID, URL: session.URL}, nil
}

func (s *service) GetSubscription(ctx context.Context, userID uuid.UUID) (*SubscriptionView, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}

	subscription, err := s.repo.FindByUserID(ctx, userID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no subscription")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load subscription")
	}

	return &SubscriptionView{
		PlanCode:         subscription.PlanCode,
		Amount:           subscription.Amount,
		Currency:         subscription.Currency,
		Status:           subscription.Status,
		Billable:         subscription.Status.IsBillable(),
		CurrentPeriodEnd: subscription.CurrentPeriodEnd,
	}, nil
}

func (s *service) ApplyProviderUpdate(ctx context.Context, params ProviderUpdateParams) error {
	status, err := enums.ParseSubscriptionStatus(mapStripeStatus(params.Status))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid provider status")
	}

	subscription, err := s.lookup(ctx, params)
	if err != nil {
		return err
	}

	updates := map[string]any{"status": status}
	if params.StripeCustomerID != "" {
		updates["stripe_customer_id"] = params.StripeCustomerID
	}
	if params.StripeSubscriptionID != "" {
		updates["stripe_subscription_id"] = params.StripeSubscriptionID
	}
	if params.CurrentPeriodEnd != nil {
		updates["current_period_end"] = *params.CurrentPeriodEnd
	}
	if err := s.repo.Update(ctx, subscription.ID, updates); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "apply provider update")
	}
	return nil
}

func (s *service) lookup(ctx context.Context, params ProviderUpdateParams) (*models.Subscription, error) {
	if params.UserID != uuid.Nil {
		subscription, err := s.repo.FindByUserID(ctx, params.UserID)
		if err == nil {
			return subscription, nil
		}
		if err != gorm.ErrRecordNotFound {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load subscription")
		}
	}
	if params.StripeSubscriptionID != "" {
		subscription, err := s.repo.FindByStripeSubscriptionID(ctx, params.StripeSubscriptionID)
		if err == nil {
			return subscription, nil
		}
		if err != gorm.ErrRecordNotFound {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load subscription")
		}
	}
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "subscription not found")
}

// mapStripeStatus collapses Stripe's status vocabulary onto the local enum.
func mapStripeStatus(status string) string {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "active":
		return string(enums.SubscriptionStatusActive)
	case "trialing":
		return string(enums.SubscriptionStatusTrialing)
	case "past_due", "unpaid":
		return string(enums.SubscriptionStatusPastDue)
	case "canceled", "incomplete_expired":
		return string(enums.SubscriptionStatusCanceled)
	case "incomplete":
		return string(enums.SubscriptionStatusIncomplete)
	default:
		return status
	}
}
