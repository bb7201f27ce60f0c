package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/estatehubhq/estatehub-backend/api/responses"
	"github.com/estatehubhq/estatehub-backend/api/validators"
	"github.com/estatehubhq/estatehub-backend/internal/leads"
	pkgerrors "github.com/estatehubhq/estatehub-backend/pkg/errors"
	"github.com/estatehubhq/estatehub-backend/pkg/logger"
)

type createLeadRequest struct {
	PropertyID string  `json:"propertyId" validate:"required,uuid4"`
	BuyerName  string  `json:"buyerName" validate:"required,min=1,max=120"`
	BuyerEmail string  `json:"buyerEmail" validate:"required,email"`
	BuyerPhone string  `json:"buyerPhone" validate:"required,min=7,max=32"`
	Message    *string `json:"message,omitempty" validate:"omitempty,max=2000"`
}

type updateLeadStatusRequest struct {
	Status string  `json:"status" validate:"required"`
	Notes  *string `json:"notes,omitempty" validate:"omitempty,max=2000"`
}

// CreateLead registers buyer interest in a property.
func CreateLead(svc leads.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "leads service unavailable"))
			return
		}

		caller, err := viewerFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body createLeadRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		propertyID, err := uuid.Parse(body.PropertyID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid property id"))
			return
		}

		view, err := svc.Create(r.Context(), leads.CreateParams{
			PropertyID: propertyID,
			BuyerID:    caller.ID,
			BuyerName:  body.BuyerName,
			BuyerEmail: body.BuyerEmail,
			BuyerPhone: body.BuyerPhone,
			Message:    body.Message,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, view)
	}
}

// GetLead fetches one lead, with contact fields redacted per the caller's
// disclosure entitlement.
func GetLead(svc leads.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "leads service unavailable"))
			return
		}

		caller, err := viewerFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		leadID, err := uuid.Parse(chi.URLParam(r, "leadID"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid lead id"))
			return
		}

		view, err := svc.Get(r.Context(), leads.GetParams{
			LeadID:     leadID,
			ViewerID:   caller.ID,
			ViewerRole: caller.Role,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

// ListLeads returns the caller's role-scoped lead page.
func ListLeads(svc leads.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "leads service unavailable"))
			return
		}

		caller, err := viewerFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", 0, 1, 100)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		params := leads.ListParams{
			ViewerID:   caller.ID,
			ViewerRole: caller.Role,
			Status:     strings.TrimSpace(r.URL.Query().Get("status")),
			Limit:      limit,
			Cursor:     strings.TrimSpace(r.URL.Query().Get("cursor")),
		}

		if raw := strings.TrimSpace(r.URL.Query().Get("propertyId")); raw != "" {
			propertyID, err := uuid.Parse(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid property id"))
				return
			}
			params.PropertyID = &propertyID
		}

		result, err := svc.List(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// UpdateLeadStatus moves a lead to a new status.
func UpdateLeadStatus(svc leads.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "leads service unavailable"))
			return
		}

		caller, err := viewerFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		leadID, err := uuid.Parse(chi.URLParam(r, "leadID"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid lead id"))
			return
		}

		var body updateLeadStatusRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		view, err := svc.UpdateStatus(r.Context(), leads.UpdateStatusParams{
			LeadID:     leadID,
			ViewerID:   caller.ID,
			ViewerRole: caller.Role,
			Status:     body.Status,
			Notes:      body.Notes,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}
