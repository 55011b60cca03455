package admin

import (
	"context"

	"github.com/google/uuid"
	"github.com/valyala/fasthttp"

	"github.com/nulpointcorp/llm-gateway/internal/auth"
	"github.com/nulpointcorp/llm-gateway/internal/cryptoutil"
	"github.com/nulpointcorp/llm-gateway/pkg/apierr"
)

// requireAdmin fails unless user holds project-admin rights on projectID
// (or is the master-key caller).
func (a *Admin) requireAdmin(ctx context.Context, user auth.UserContext, projectID uuid.UUID) error {
	return auth.RequireProjectAdmin(ctx, a.facade, user, projectID)
}

// requireDeveloper fails unless user holds at least project-developer
// rights on projectID (or is the master-key caller).
func (a *Admin) requireDeveloper(ctx context.Context, user auth.UserContext, projectID uuid.UUID) error {
	return auth.RequireProjectDeveloper(ctx, a.facade, user, projectID)
}

// sessionTokenID mirrors auth.Resolver's own derivation so a token minted
// here resolves on the very next request.
func (a *Admin) sessionTokenID(raw string) uuid.UUID {
	return cryptoutil.DeriveID(raw + ":" + a.applicationSecret)
}

func parseUUIDParam(ctx *fasthttp.RequestCtx, name string) (uuid.UUID, error) {
	return parseUUID(pathParam(ctx, name), name)
}

func parseUUID(raw, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.UUID{}, apierr.New(apierr.KindBadRequest, "invalid "+name)
	}
	return id, nil
}
