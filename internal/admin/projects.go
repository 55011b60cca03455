package admin

import (
	"github.com/google/uuid"
	"github.com/valyala/fasthttp"

	"github.com/nulpointcorp/llm-gateway/internal/auth"
	"github.com/nulpointcorp/llm-gateway/internal/data"
	"github.com/nulpointcorp/llm-gateway/pkg/apierr"
)

type projectRequest struct {
	Name    string `json:"name"`
	OwnerID string `json:"owner_id,omitempty"`
}

type projectResponse struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	OwnerID string `json:"owner_id"`
}

func toProjectResponse(p data.Project) projectResponse {
	return projectResponse{ID: p.ID.String(), Name: p.Name, OwnerID: p.OwnerID.String()}
}

// handleCreateProject accepts either caller: a web-app user becomes the
// project's owner and is granted an admin Membership immediately so they
// aren't locked out of their own project; the master key may create a
// project on behalf of any owner_id.
func (a *Admin) handleCreateProject(ctx *fasthttp.RequestCtx, user auth.UserContext) {
	var req projectRequest
	if err := readJSON(ctx, &req); err != nil {
		writeErr(ctx, apierr.New(apierr.KindBadRequest, "invalid request body"))
		return
	}
	if req.Name == "" {
		writeErr(ctx, apierr.New(apierr.KindBadRequest, "name is required"))
		return
	}

	var ownerID uuid.UUID
	switch {
	case user.IsMasterUser():
		id, err := uuid.Parse(req.OwnerID)
		if err != nil {
			writeErr(ctx, apierr.New(apierr.KindBadRequest, "invalid owner_id"))
			return
		}
		ownerID = id
	case user.User != nil:
		ownerID = user.User.ID
	default:
		writeErr(ctx, apierr.New(apierr.KindUnauthenticated, "authentication required"))
		return
	}

	created, err := a.facade.CreateProject(ctx, data.Project{Name: req.Name, OwnerID: ownerID})
	if err != nil {
		writeErr(ctx, apierr.New(apierr.KindInternalError, err.Error()))
		return
	}

	if user.User != nil {
		if _, err := a.facade.CreateMembership(ctx, data.Membership{
			ProjectID: created.ID,
			UserID:    user.User.ID,
			Role:      data.ProjectRoleAdmin,
		}); err != nil {
			writeErr(ctx, apierr.New(apierr.KindInternalError, err.Error()))
			return
		}
	}

	writeJSON(ctx, fasthttp.StatusCreated, toProjectResponse(*created))
}

func (a *Admin) handleListProjects(ctx *fasthttp.RequestCtx, user auth.UserContext) {
	if err := auth.RequireMasterUser(user); err != nil {
		writeErr(ctx, err)
		return
	}
	projects, err := a.facade.ListProjects(ctx)
	if err != nil {
		writeErr(ctx, apierr.New(apierr.KindInternalError, err.Error()))
		return
	}
	out := make([]projectResponse, 0, len(projects))
	for _, p := range projects {
		out = append(out, toProjectResponse(p))
	}
	writeJSON(ctx, fasthttp.StatusOK, out)
}

func (a *Admin) handleGetProject(ctx *fasthttp.RequestCtx, user auth.UserContext) {
	id, err := parseUUIDParam(ctx, "id")
	if err != nil {
		writeErr(ctx, err)
		return
	}
	if err := a.requireDeveloper(ctx, user, id); err != nil {
		writeErr(ctx, err)
		return
	}
	found, err := a.facade.GetProject(ctx, id)
	if err != nil {
		writeErr(ctx, apierr.New(apierr.KindInternalError, err.Error()))
		return
	}
	if found == nil {
		writeErr(ctx, apierr.New(apierr.KindResourceNotFound, "project not found"))
		return
	}
	writeJSON(ctx, fasthttp.StatusOK, toProjectResponse(*found))
}

func (a *Admin) handleUpdateProject(ctx *fasthttp.RequestCtx, user auth.UserContext) {
	id, err := parseUUIDParam(ctx, "id")
	if err != nil {
		writeErr(ctx, err)
		return
	}
	if err := a.requireAdmin(ctx, user, id); err != nil {
		writeErr(ctx, err)
		return
	}
	existing, err := a.facade.GetProject(ctx, id)
	if err != nil {
		writeErr(ctx, apierr.New(apierr.KindInternalError, err.Error()))
		return
	}
	if existing == nil {
		writeErr(ctx, apierr.New(apierr.KindResourceNotFound, "project not found"))
		return
	}

	var req projectRequest
	if err := readJSON(ctx, &req); err != nil {
		writeErr(ctx, apierr.New(apierr.KindBadRequest, "invalid request body"))
		return
	}
	if req.Name != "" {
		existing.Name = req.Name
	}

	updated, err := a.facade.UpdateProject(ctx, *existing)
	if err != nil {
		writeErr(ctx, apierr.New(apierr.KindInternalError, err.Error()))
		return
	}
	writeJSON(ctx, fasthttp.StatusOK, toProjectResponse(*updated))
}

func (a *Admin) handleDeleteProject(ctx *fasthttp.RequestCtx, user auth.UserContext) {
	id, err := parseUUIDParam(ctx, "id")
	if err != nil {
		writeErr(ctx, err)
		return
	}
	if err := a.requireAdmin(ctx, user, id); err != nil {
		writeErr(ctx, err)
		return
	}
	if err := a.facade.DeleteProject(ctx, id); err != nil {
		writeErr(ctx, apierr.New(apierr.KindInternalError, err.Error()))
		return
	}
	ctx.SetStatusCode(fasthttp.StatusNoContent)
}
