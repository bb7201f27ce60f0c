package controllers

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/estatehubhq/estatehub-backend/api/responses"
	"github.com/estatehubhq/estatehub-backend/api/validators"
	"github.com/estatehubhq/estatehub-backend/internal/billing"
	pkgerrors "github.com/estatehubhq/estatehub-backend/pkg/errors"
	"github.com/estatehubhq/estatehub-backend/pkg/logger"
)

type createCheckoutSessionRequest struct {
	PlanCode string `json:"planCode" validate:"required,min=1,max=64"`
	Amount   string `json:"amount,omitempty" validate:"omitempty,max=32"`
	Email    string `json:"email,omitempty" validate:"omitempty,email"`
}

// CreateCheckoutSession starts a hosted Stripe checkout for a subscription
// plan.
func CreateCheckoutSession(svc billing.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "billing service unavailable"))
			return
		}

		userID, err := authenticatedUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body createCheckoutSessionRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		amount := decimal.Zero
		if body.Amount != "" {
			amount, err = decimal.NewFromString(body.Amount)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid amount"))
				return
			}
		}

		view, err := svc.CreateCheckoutSession(r.Context(), billing.CreateCheckoutSessionParams{
			UserID:   userID,
			Email:    body.Email,
			PlanCode: body.PlanCode,
			Amount:   amount,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, view)
	}
}

// GetSubscription returns the caller's local subscription read model.
func GetSubscription(svc billing.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "billing service unavailable"))
			return
		}

		userID, err := authenticatedUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		view, err := svc.GetSubscription(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}
