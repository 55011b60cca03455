package admin

import (
	"github.com/valyala/fasthttp"
	"golang.org/x/crypto/bcrypt"

	"github.com/nulpointcorp/llm-gateway/internal/auth"
	"github.com/nulpointcorp/llm-gateway/internal/data"
	"github.com/nulpointcorp/llm-gateway/pkg/apierr"
)

type userRequest struct {
	Email    string       `json:"email"`
	Password string       `json:"password,omitempty"`
	Role     data.AppRole `json:"role"`
}

type userResponse struct {
	ID    string       `json:"id"`
	Email string       `json:"email"`
	Role  data.AppRole `json:"role"`
}

func toUserResponse(u data.User) userResponse {
	return userResponse{ID: u.ID.String(), Email: u.Email, Role: u.Role}
}

// handleCreateUser is master-key only — users are instance-wide identities,
// not scoped to a project.
func (a *Admin) handleCreateUser(ctx *fasthttp.RequestCtx, user auth.UserContext) {
	if err := auth.RequireMasterUser(user); err != nil {
		writeErr(ctx, err)
		return
	}
	var req userRequest
	if err := readJSON(ctx, &req); err != nil {
		writeErr(ctx, apierr.New(apierr.KindBadRequest, "invalid request body"))
		return
	}
	if req.Email == "" || req.Password == "" {
		writeErr(ctx, apierr.New(apierr.KindBadRequest, "email and password are required"))
		return
	}
	if req.Role == "" {
		req.Role = data.AppRoleMember
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		writeErr(ctx, apierr.New(apierr.KindInternalError, err.Error()))
		return
	}

	created, err := a.facade.CreateUser(ctx, data.User{Email: req.Email, PasswordHash: string(hash), Role: req.Role})
	if err != nil {
		writeErr(ctx, apierr.New(apierr.KindInternalError, err.Error()))
		return
	}
	writeJSON(ctx, fasthttp.StatusCreated, toUserResponse(*created))
}

func (a *Admin) handleListUsers(ctx *fasthttp.RequestCtx, user auth.UserContext) {
	if err := auth.RequireMasterUser(user); err != nil {
		writeErr(ctx, err)
		return
	}
	users, err := a.facade.ListUsers(ctx)
	if err != nil {
		writeErr(ctx, apierr.New(apierr.KindInternalError, err.Error()))
		return
	}
	out := make([]userResponse, 0, len(users))
	for _, u := range users {
		out = append(out, toUserResponse(u))
	}
	writeJSON(ctx, fasthttp.StatusOK, out)
}

// handleGetUser allows the master key or the user looking up their own
// record.
func (a *Admin) handleGetUser(ctx *fasthttp.RequestCtx, user auth.UserContext) {
	id, err := parseUUIDParam(ctx, "id")
	if err != nil {
		writeErr(ctx, err)
		return
	}
	if !user.IsMasterUser() && (user.User == nil || user.User.ID != id) {
		writeErr(ctx, apierr.New(apierr.KindAccessDenied, "cannot view another user"))
		return
	}
	found, err := a.facade.GetUser(ctx, id)
	if err != nil {
		writeErr(ctx, apierr.New(apierr.KindInternalError, err.Error()))
		return
	}
	if found == nil {
		writeErr(ctx, apierr.New(apierr.KindResourceNotFound, "user not found"))
		return
	}
	writeJSON(ctx, fasthttp.StatusOK, toUserResponse(*found))
}

func (a *Admin) handleUpdateUser(ctx *fasthttp.RequestCtx, user auth.UserContext) {
	if err := auth.RequireMasterUser(user); err != nil {
		writeErr(ctx, err)
		return
	}
	id, err := parseUUIDParam(ctx, "id")
	if err != nil {
		writeErr(ctx, err)
		return
	}
	existing, err := a.facade.GetUser(ctx, id)
	if err != nil {
		writeErr(ctx, apierr.New(apierr.KindInternalError, err.Error()))
		return
	}
	if existing == nil {
		writeErr(ctx, apierr.New(apierr.KindResourceNotFound, "user not found"))
		return
	}

	var req userRequest
	if err := readJSON(ctx, &req); err != nil {
		writeErr(ctx, apierr.New(apierr.KindBadRequest, "invalid request body"))
		return
	}
	if req.Email != "" {
		existing.Email = req.Email
	}
	if req.Role != "" {
		existing.Role = req.Role
	}
	if req.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			writeErr(ctx, apierr.New(apierr.KindInternalError, err.Error()))
			return
		}
		existing.PasswordHash = string(hash)
	}

	updated, err := a.facade.UpdateUser(ctx, *existing)
	if err != nil {
		writeErr(ctx, apierr.New(apierr.KindInternalError, err.Error()))
		return
	}
	writeJSON(ctx, fasthttp.StatusOK, toUserResponse(*updated))
}

func (a *Admin) handleDeleteUser(ctx *fasthttp.RequestCtx, user auth.UserContext) {
	if err := auth.RequireMasterUser(user); err != nil {
		writeErr(ctx, err)
		return
	}
	id, err := parseUUIDParam(ctx, "id")
	if err != nil {
		writeErr(ctx, err)
		return
	}
	if err := a.facade.DeleteUser(ctx, id); err != nil {
		writeErr(ctx, apierr.New(apierr.KindInternalError, err.Error()))
		return
	}
	ctx.SetStatusCode(fasthttp.StatusNoContent)
}
