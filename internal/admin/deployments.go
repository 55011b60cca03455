package admin

import (
	"github.com/valyala/fasthttp"

	"github.com/nulpointcorp/llm-gateway/internal/auth"
	"github.com/nulpointcorp/llm-gateway/internal/data"
	"github.com/nulpointcorp/llm-gateway/pkg/apierr"
)

type deploymentRequest struct {
	ModelName             string                     `json:"model_name"`
	LoadBalancing         data.LoadBalancingStrategy `json:"load_balancing"`
	ProviderModelOverride *string                    `json:"provider_model_override,omitempty"`
	Request               data.RequestLimits         `json:"request"`
	Budget                data.BudgetLimits          `json:"budget"`
	Token                 data.TokenLimits           `json:"token"`
}

type deploymentResponse struct {
	ID                    string                     `json:"id"`
	ProjectID             string                     `json:"project_id"`
	ModelName             string                     `json:"model_name"`
	LoadBalancing         data.LoadBalancingStrategy `json:"load_balancing"`
	ProviderModelOverride *string                    `json:"provider_model_override,omitempty"`
	Request               data.RequestLimits         `json:"request"`
	Budget                data.BudgetLimits          `json:"budget"`
	Token                 data.TokenLimits           `json:"token"`
}

func toDeploymentResponse(d data.Deployment) deploymentResponse {
	return deploymentResponse{
		ID: d.ID.String(), ProjectID: d.ProjectID.String(), ModelName: d.ModelName,
		LoadBalancing: d.LoadBalancing, ProviderModelOverride: d.ProviderModelOverride,
		Request: d.Request, Budget: d.Budget, Token: d.Token,
	}
}

func (a *Admin) handleCreateDeployment(ctx *fasthttp.RequestCtx, user auth.UserContext) {
	projectID, err := parseUUIDParam(ctx, "project_id")
	if err != nil {
		writeErr(ctx, err)
		return
	}
	if err := a.requireAdmin(ctx, user, projectID); err != nil {
		writeErr(ctx, err)
		return
	}

	var req deploymentRequest
	if err := readJSON(ctx, &req); err != nil {
		writeErr(ctx, apierr.New(apierr.KindBadRequest, "invalid request body"))
		return
	}
	if req.ModelName == "" {
		writeErr(ctx, apierr.New(apierr.KindBadRequest, "model_name is required"))
		return
	}
	if req.LoadBalancing == "" {
		req.LoadBalancing = data.LBRoundRobin
	}

	created, err := a.facade.CreateDeployment(ctx, data.Deployment{
		ProjectID: projectID, ModelName: req.ModelName, LoadBalancing: req.LoadBalancing,
		ProviderModelOverride: req.ProviderModelOverride,
		Request:               req.Request, Budget: req.Budget, Token: req.Token,
	})
	if err != nil {
		writeErr(ctx, apierr.New(apierr.KindInternalError, err.Error()))
		return
	}
	writeJSON(ctx, fasthttp.StatusCreated, toDeploymentResponse(*created))
}

func (a *Admin) handleListDeployments(ctx *fasthttp.RequestCtx, user auth.UserContext) {
	projectID, err := parseUUIDParam(ctx, "project_id")
	if err != nil {
		writeErr(ctx, err)
		return
	}
	if err := a.requireDeveloper(ctx, user, projectID); err != nil {
		writeErr(ctx, err)
		return
	}
	deployments, err := a.facade.ListDeploymentsByProject(ctx, projectID)
	if err != nil {
		writeErr(ctx, apierr.New(apierr.KindInternalError, err.Error()))
		return
	}
	out := make([]deploymentResponse, 0, len(deployments))
	for _, d := range deployments {
		out = append(out, toDeploymentResponse(d))
	}
	writeJSON(ctx, fasthttp.StatusOK, out)
}

func (a *Admin) handleGetDeployment(ctx *fasthttp.RequestCtx, user auth.UserContext) {
	id, err := parseUUIDParam(ctx, "id")
	if err != nil {
		writeErr(ctx, err)
		return
	}
	found, err := a.facade.GetDeployment(ctx, id)
	if err != nil {
		writeErr(ctx, apierr.New(apierr.KindInternalError, err.Error()))
		return
	}
	if found == nil {
		writeErr(ctx, apierr.New(apierr.KindResourceNotFound, "deployment not found"))
		return
	}
	if err := a.requireDeveloper(ctx, user, found.ProjectID); err != nil {
		writeErr(ctx, err)
		return
	}
	writeJSON(ctx, fasthttp.StatusOK, toDeploymentResponse(*found))
}

func (a *Admin) handleUpdateDeployment(ctx *fasthttp.RequestCtx, user auth.UserContext) {
	id, err := parseUUIDParam(ctx, "id")
	if err != nil {
		writeErr(ctx, err)
		return
	}
	existing, err := a.facade.GetDeployment(ctx, id)
	if err != nil {
		writeErr(ctx, apierr.New(apierr.KindInternalError, err.Error()))
		return
	}
	if existing == nil {
		writeErr(ctx, apierr.New(apierr.KindResourceNotFound, "deployment not found"))
		return
	}
	if err := a.requireAdmin(ctx, user, existing.ProjectID); err != nil {
		writeErr(ctx, err)
		return
	}

	var req deploymentRequest
	if err := readJSON(ctx, &req); err != nil {
		writeErr(ctx, apierr.New(apierr.KindBadRequest, "invalid request body"))
		return
	}
	if req.ModelName != "" {
		existing.ModelName = req.ModelName
	}
	if req.LoadBalancing != "" {
		existing.LoadBalancing = req.LoadBalancing
	}
	existing.ProviderModelOverride = req.ProviderModelOverride
	existing.Request, existing.Budget, existing.Token = req.Request, req.Budget, req.Token

	updated, err := a.facade.UpdateDeployment(ctx, *existing)
	if err != nil {
		writeErr(ctx, apierr.New(apierr.KindInternalError, err.Error()))
		return
	}
	writeJSON(ctx, fasthttp.StatusOK, toDeploymentResponse(*updated))
}

func (a *Admin) handleDeleteDeployment(ctx *fasthttp.RequestCtx, user auth.UserContext) {
	id, err := parseUUIDParam(ctx, "id")
	if err != nil {
		writeErr(ctx, err)
		return
	}
	existing, err := a.facade.GetDeployment(ctx, id)
	if err != nil {
		writeErr(ctx, apierr.New(apierr.KindInternalError, err.Error()))
		return
	}
	if existing == nil {
		writeErr(ctx, apierr.New(apierr.KindResourceNotFound, "deployment not found"))
		return
	}
	if err := a.requireAdmin(ctx, user, existing.ProjectID); err != nil {
		writeErr(ctx, err)
		return
	}
	if err := a.facade.DeleteDeployment(ctx, id); err != nil {
		writeErr(ctx, apierr.New(apierr.KindInternalError, err.Error()))
		return
	}
	ctx.SetStatusCode(fasthttp.StatusNoContent)
}
