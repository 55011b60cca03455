package admin

import (
	"time"

	"github.com/valyala/fasthttp"

	"github.com/nulpointcorp/llm-gateway/internal/auth"
	"github.com/nulpointcorp/llm-gateway/internal/cryptoutil"
	"github.com/nulpointcorp/llm-gateway/internal/data"
	"github.com/nulpointcorp/llm-gateway/pkg/apierr"
)

type membershipRequest struct {
	UserID string          `json:"user_id"`
	Role   data.ProjectRole `json:"role"`
}

type membershipResponse struct {
	ProjectID string          `json:"project_id"`
	UserID    string          `json:"user_id"`
	Role      data.ProjectRole `json:"role"`
}

func toMembershipResponse(m data.Membership) membershipResponse {
	return membershipResponse{ProjectID: m.ProjectID.String(), UserID: m.UserID.String(), Role: m.Role}
}

func (a *Admin) handleCreateMembership(ctx *fasthttp.RequestCtx, user auth.UserContext) {
	projectID, err := parseUUIDParam(ctx, "project_id")
	if err != nil {
		writeErr(ctx, err)
		return
	}
	if err := a.requireAdmin(ctx, user, projectID); err != nil {
		writeErr(ctx, err)
		return
	}

	var req membershipRequest
	if err := readJSON(ctx, &req); err != nil {
		writeErr(ctx, apierr.New(apierr.KindBadRequest, "invalid request body"))
		return
	}
	userID, err := parseUUID(req.UserID, "user_id")
	if err != nil {
		writeErr(ctx, err)
		return
	}
	if req.Role == "" {
		req.Role = data.ProjectRoleDeveloper
	}

	created, err := a.facade.CreateMembership(ctx, data.Membership{ProjectID: projectID, UserID: userID, Role: req.Role})
	if err != nil {
		writeErr(ctx, apierr.New(apierr.KindInternalError, err.Error()))
		return
	}
	writeJSON(ctx, fasthttp.StatusCreated, toMembershipResponse(*created))
}

func (a *Admin) handleListMemberships(ctx *fasthttp.RequestCtx, user auth.UserContext) {
	projectID, err := parseUUIDParam(ctx, "project_id")
	if err != nil {
		writeErr(ctx, err)
		return
	}
	if err := a.requireDeveloper(ctx, user, projectID); err != nil {
		writeErr(ctx, err)
		return
	}
	memberships, err := a.facade.ListMembershipsByProject(ctx, projectID)
	if err != nil {
		writeErr(ctx, apierr.New(apierr.KindInternalError, err.Error()))
		return
	}
	out := make([]membershipResponse, 0, len(memberships))
	for _, m := range memberships {
		out = append(out, toMembershipResponse(m))
	}
	writeJSON(ctx, fasthttp.StatusOK, out)
}

func (a *Admin) handleUpdateMembership(ctx *fasthttp.RequestCtx, user auth.UserContext) {
	projectID, err := parseUUIDParam(ctx, "project_id")
	if err != nil {
		writeErr(ctx, err)
		return
	}
	userID, err := parseUUIDParam(ctx, "user_id")
	if err != nil {
		writeErr(ctx, err)
		return
	}
	if err := a.requireAdmin(ctx, user, projectID); err != nil {
		writeErr(ctx, err)
		return
	}

	var req membershipRequest
	if err := readJSON(ctx, &req); err != nil {
		writeErr(ctx, apierr.New(apierr.KindBadRequest, "invalid request body"))
		return
	}
	if req.Role == "" {
		writeErr(ctx, apierr.New(apierr.KindBadRequest, "role is required"))
		return
	}

	updated, err := a.facade.UpdateMembership(ctx, data.Membership{ProjectID: projectID, UserID: userID, Role: req.Role})
	if err != nil {
		writeErr(ctx, apierr.New(apierr.KindInternalError, err.Error()))
		return
	}
	writeJSON(ctx, fasthttp.StatusOK, toMembershipResponse(*updated))
}

func (a *Admin) handleDeleteMembership(ctx *fasthttp.RequestCtx, user auth.UserContext) {
	projectID, err := parseUUIDParam(ctx, "project_id")
	if err != nil {
		writeErr(ctx, err)
		return
	}
	userID, err := parseUUIDParam(ctx, "user_id")
	if err != nil {
		writeErr(ctx, err)
		return
	}
	if err := a.requireAdmin(ctx, user, projectID); err != nil {
		writeErr(ctx, err)
		return
	}
	if err := a.facade.DeleteMembership(ctx, projectID, userID); err != nil {
		writeErr(ctx, apierr.New(apierr.KindInternalError, err.Error()))
		return
	}
	ctx.SetStatusCode(fasthttp.StatusNoContent)
}

// ─── ProjectInviteCode ───

const defaultInviteTTL = "7d"

type inviteRequest struct {
	Role data.ProjectRole `json:"role"`
}

type inviteResponse struct {
	ID        string          `json:"id"`
	ProjectID string          `json:"project_id"`
	Role      data.ProjectRole `json:"role"`
	ExpiresAt time.Time       `json:"expires_at"`
}

func toInviteResponse(c data.ProjectInviteCode) inviteResponse {
	return inviteResponse{ID: c.ID.String(), ProjectID: c.ProjectID.String(), Role: c.Role, ExpiresAt: c.ExpiresAt}
}

func (a *Admin) handleCreateInvite(ctx *fasthttp.RequestCtx, user auth.UserContext) {
	projectID, err := parseUUIDParam(ctx, "project_id")
	if err != nil {
		writeErr(ctx, err)
		return
	}
	if err := a.requireAdmin(ctx, user, projectID); err != nil {
		writeErr(ctx, err)
		return
	}

	var req inviteRequest
	if err := readJSON(ctx, &req); err != nil {
		writeErr(ctx, apierr.New(apierr.KindBadRequest, "invalid request body"))
		return
	}
	if req.Role == "" {
		req.Role = data.ProjectRoleDeveloper
	}

	expiresAt, err := cryptoutil.ParseAndAddToCurrentTS(defaultInviteTTL, time.Now().UTC())
	if err != nil {
		writeErr(ctx, apierr.New(apierr.KindInternalError, err.Error()))
		return
	}

	created, err := a.facade.CreateProjectInviteCode(ctx, data.ProjectInviteCode{
		ProjectID: projectID,
		Role:      req.Role,
		ExpiresAt: expiresAt,
	})
	if err != nil {
		writeErr(ctx, apierr.New(apierr.KindInternalError, err.Error()))
		return
	}
	writeJSON(ctx, fasthttp.StatusCreated, toInviteResponse(*created))
}

func (a *Admin) handleDeleteInvite(ctx *fasthttp.RequestCtx, user auth.UserContext) {
	id, err := parseUUIDParam(ctx, "id")
	if err != nil {
		writeErr(ctx, err)
		return
	}
	invite, err := a.facade.GetProjectInviteCode(ctx, id)
	if err != nil {
		writeErr(ctx, apierr.New(apierr.KindInternalError, err.Error()))
		return
	}
	if invite == nil {
		writeErr(ctx, apierr.New(apierr.KindResourceNotFound, "invite not found"))
		return
	}
	if err := a.requireAdmin(ctx, user, invite.ProjectID); err != nil {
		writeErr(ctx, err)
		return
	}
	if err := a.facade.DeleteProjectInviteCode(ctx, id); err != nil {
		writeErr(ctx, apierr.New(apierr.KindInternalError, err.Error()))
		return
	}
	ctx.SetStatusCode(fasthttp.StatusNoContent)
}

// handleRedeemInvite requires an authenticated web-app user — redeeming an
// invite creates a Membership for whoever is calling, which only makes
// sense for a caller with a User identity of their own.
func (a *Admin) handleRedeemInvite(ctx *fasthttp.RequestCtx, user auth.UserContext) {
	if user.User == nil {
		writeErr(ctx, apierr.New(apierr.KindUnauthenticated, "a session token is required to redeem an invite"))
		return
	}
	id, err := parseUUIDParam(ctx, "code")
	if err != nil {
		writeErr(ctx, err)
		return
	}

	invite, err := a.facade.GetProjectInviteCode(ctx, id)
	if err != nil {
		writeErr(ctx, apierr.New(apierr.KindInternalError, err.Error()))
		return
	}
	if invite == nil {
		writeErr(ctx, apierr.New(apierr.KindResourceNotFound, "invite not found"))
		return
	}
	if invite.UsedAt != nil {
		writeErr(ctx, apierr.New(apierr.KindBadRequest, "invite already used"))
		return
	}
	if time.Now().UTC().After(invite.ExpiresAt) {
		writeErr(ctx, apierr.New(apierr.KindBadRequest, "invite expired"))
		return
	}

	redeemed, err := a.facade.RedeemProjectInviteCode(ctx, id)
	if err != nil {
		writeErr(ctx, apierr.New(apierr.KindInternalError, err.Error()))
		return
	}

	membership, err := a.facade.CreateMembership(ctx, data.Membership{
		ProjectID: redeemed.ProjectID,
		UserID:    user.User.ID,
		Role:      redeemed.Role,
	})
	if err != nil {
		writeErr(ctx, apierr.New(apierr.KindInternalError, err.Error()))
		return
	}
	writeJSON(ctx, fasthttp.StatusCreated, toMembershipResponse(*membership))
}
