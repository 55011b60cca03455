package admin

import (
	"github.com/valyala/fasthttp"

	"github.com/nulpointcorp/llm-gateway/internal/auth"
	"github.com/nulpointcorp/llm-gateway/internal/cryptoutil"
	"github.com/nulpointcorp/llm-gateway/internal/data"
	"github.com/nulpointcorp/llm-gateway/pkg/apierr"
)

const virtualKeySecretBytes = 24

type virtualKeyResponse struct {
	ID        string `json:"id"`
	ProjectID string `json:"project_id"`
	Blocked   bool   `json:"blocked"`
}

// createVirtualKeyResponse carries the plaintext secret, returned only
// once at creation time — it is never stored or served again.
type createVirtualKeyResponse struct {
	virtualKeyResponse
	Key string `json:"key"`
}

func toVirtualKeyResponse(v data.VirtualKey) virtualKeyResponse {
	return virtualKeyResponse{ID: v.ID.String(), ProjectID: v.ProjectID.String(), Blocked: v.Blocked}
}

func (a *Admin) handleCreateVirtualKey(ctx *fasthttp.RequestCtx, user auth.UserContext) {
	projectID, err := parseUUIDParam(ctx, "project_id")
	if err != nil {
		writeErr(ctx, err)
		return
	}
	if err := a.requireAdmin(ctx, user, projectID); err != nil {
		writeErr(ctx, err)
		return
	}

	key, err := cryptoutil.GenerateSecret("llmur-vk-", virtualKeySecretBytes)
	if err != nil {
		writeErr(ctx, apierr.New(apierr.KindInternalError, err.Error()))
		return
	}

	created, err := a.facade.CreateVirtualKey(ctx, data.VirtualKey{ProjectID: projectID}, key)
	if err != nil {
		writeErr(ctx, apierr.New(apierr.KindInternalError, err.Error()))
		return
	}
	writeJSON(ctx, fasthttp.StatusCreated, createVirtualKeyResponse{
		virtualKeyResponse: toVirtualKeyResponse(*created),
		Key:                key,
	})
}

func (a *Admin) handleListVirtualKeys(ctx *fasthttp.RequestCtx, user auth.UserContext) {
	projectID, err := parseUUIDParam(ctx, "project_id")
	if err != nil {
		writeErr(ctx, err)
		return
	}
	if err := a.requireDeveloper(ctx, user, projectID); err != nil {
		writeErr(ctx, err)
		return
	}
	keys, err := a.facade.ListVirtualKeysByProject(ctx, projectID)
	if err != nil {
		writeErr(ctx, apierr.New(apierr.KindInternalError, err.Error()))
		return
	}
	out := make([]virtualKeyResponse, 0, len(keys))
	for _, v := range keys {
		out = append(out, toVirtualKeyResponse(v))
	}
	writeJSON(ctx, fasthttp.StatusOK, out)
}

type blockVirtualKeyRequest struct {
	Blocked bool `json:"blocked"`
}

func (a *Admin) handleBlockVirtualKey(ctx *fasthttp.RequestCtx, user auth.UserContext) {
	id, err := parseUUIDParam(ctx, "id")
	if err != nil {
		writeErr(ctx, err)
		return
	}
	vk, err := a.facade.GetVirtualKey(ctx, id)
	if err != nil {
		writeErr(ctx, apierr.New(apierr.KindInternalError, err.Error()))
		return
	}
	if vk == nil {
		writeErr(ctx, apierr.New(apierr.KindResourceNotFound, "virtual key not found"))
		return
	}
	if err := a.requireAdmin(ctx, user, vk.ProjectID); err != nil {
		writeErr(ctx, err)
		return
	}

	req := blockVirtualKeyRequest{Blocked: true}
	_ = readJSON(ctx, &req)

	if err := a.facade.BlockVirtualKey(ctx, id, req.Blocked); err != nil {
		writeErr(ctx, apierr.New(apierr.KindInternalError, err.Error()))
		return
	}
	ctx.SetStatusCode(fasthttp.StatusNoContent)
}

func (a *Admin) handleDeleteVirtualKey(ctx *fasthttp.RequestCtx, user auth.UserContext) {
	id, err := parseUUIDParam(ctx, "id")
	if err != nil {
		writeErr(ctx, err)
		return
	}
	vk, err := a.facade.GetVirtualKey(ctx, id)
	if err != nil {
		writeErr(ctx, apierr.New(apierr.KindInternalError, err.Error()))
		return
	}
	if vk == nil {
		writeErr(ctx, apierr.New(apierr.KindResourceNotFound, "virtual key not found"))
		return
	}
	if err := a.requireAdmin(ctx, user, vk.ProjectID); err != nil {
		writeErr(ctx, err)
		return
	}
	if err := a.facade.DeleteVirtualKey(ctx, id); err != nil {
		writeErr(ctx, apierr.New(apierr.KindInternalError, err.Error()))
		return
	}
	ctx.SetStatusCode(fasthttp.StatusNoContent)
}

// ─── VirtualKeyDeployment ───

type virtualKeyDeploymentRequest struct {
	DeploymentID string `json:"deployment_id"`
	Allowed      bool   `json:"allowed"`
}

type virtualKeyDeploymentResponse struct {
	VirtualKeyID string `json:"virtual_key_id"`
	DeploymentID string `json:"deployment_id"`
	Allowed      bool   `json:"allowed"`
}

func toVirtualKeyDeploymentResponse(vkd data.VirtualKeyDeployment) virtualKeyDeploymentResponse {
	return virtualKeyDeploymentResponse{
		VirtualKeyID: vkd.VirtualKeyID.String(), DeploymentID: vkd.DeploymentID.String(), Allowed: vkd.Allowed,
	}
}

func (a *Admin) handleGrantVirtualKeyDeployment(ctx *fasthttp.RequestCtx, user auth.UserContext) {
	virtualKeyID, err := parseUUIDParam(ctx, "virtual_key_id")
	if err != nil {
		writeErr(ctx, err)
		return
	}
	vk, err := a.facade.GetVirtualKey(ctx, virtualKeyID)
	if err != nil {
		writeErr(ctx, apierr.New(apierr.KindInternalError, err.Error()))
		return
	}
	if vk == nil {
		writeErr(ctx, apierr.New(apierr.KindResourceNotFound, "virtual key not found"))
		return
	}
	if err := a.requireAdmin(ctx, user, vk.ProjectID); err != nil {
		writeErr(ctx, err)
		return
	}

	var req virtualKeyDeploymentRequest
	if err := readJSON(ctx, &req); err != nil {
		writeErr(ctx, apierr.New(apierr.KindBadRequest, "invalid request body"))
		return
	}
	deploymentID, err := parseUUID(req.DeploymentID, "deployment_id")
	if err != nil {
		writeErr(ctx, err)
		return
	}

	created, err := a.facade.CreateVirtualKeyDeployment(ctx, data.VirtualKeyDeployment{
		VirtualKeyID: virtualKeyID, DeploymentID: deploymentID, Allowed: req.Allowed,
	})
	if err != nil {
		writeErr(ctx, apierr.New(apierr.KindInternalError, err.Error()))
		return
	}
	writeJSON(ctx, fasthttp.StatusCreated, toVirtualKeyDeploymentResponse(*created))
}

func (a *Admin) handleRevokeVirtualKeyDeployment(ctx *fasthttp.RequestCtx, user auth.UserContext) {
	virtualKeyID, err := parseUUIDParam(ctx, "virtual_key_id")
	if err != nil {
		writeErr(ctx, err)
		return
	}
	deploymentID, err := parseUUIDParam(ctx, "deployment_id")
	if err != nil {
		writeErr(ctx, err)
		return
	}
	vk, err := a.facade.GetVirtualKey(ctx, virtualKeyID)
	if err != nil {
		writeErr(ctx, apierr.New(apierr.KindInternalError, err.Error()))
		return
	}
	if vk == nil {
		writeErr(ctx, apierr.New(apierr.KindResourceNotFound, "virtual key not found"))
		return
	}
	if err := a.requireAdmin(ctx, user, vk.ProjectID); err != nil {
		writeErr(ctx, err)
		return
	}
	if err := a.facade.DeleteVirtualKeyDeployment(ctx, virtualKeyID, deploymentID); err != nil {
		writeErr(ctx, apierr.New(apierr.KindInternalError, err.Error()))
		return
	}
	ctx.SetStatusCode(fasthttp.StatusNoContent)
}
