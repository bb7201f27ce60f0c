package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/estatehubhq/estatehub-backend/api/middleware"
	"github.com/estatehubhq/estatehub-backend/pkg/enums"
	pkgerrors "github.com/estatehubhq/estatehub-backend/pkg/errors"
)

// viewer is the authenticated caller identity pulled from the request context.
type viewer struct {
	ID   uuid.UUID
	Role enums.ActorRole
}

func viewerFromRequest(r *http.Request) (viewer, error) {
	userID, err := authenticatedUserID(r)
	if err != nil {
		return viewer{}, err
	}
	role, err := enums.ParseActorRole(middleware.RoleFromContext(r.Context()))
	if err != nil {
		return viewer{}, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "unknown actor role")
	}
	return viewer{ID: userID, Role: role}, nil
}
