package admin

import (
	"github.com/valyala/fasthttp"

	"github.com/nulpointcorp/llm-gateway/internal/auth"
	"github.com/nulpointcorp/llm-gateway/internal/data"
	"github.com/nulpointcorp/llm-gateway/pkg/apierr"
)

type connectionRequest struct {
	Provider   data.ProviderKind `json:"provider"`
	Credential string            `json:"credential,omitempty"`
	EndpointURL string           `json:"endpoint_url"`
	APIVersion  string           `json:"api_version"`
}

// connectionResponse never carries the credential — only that it exists.
type connectionResponse struct {
	ID          string            `json:"id"`
	ProjectID   string            `json:"project_id"`
	Provider    data.ProviderKind `json:"provider"`
	EndpointURL string            `json:"endpoint_url"`
	APIVersion  string            `json:"api_version"`
}

func toConnectionResponse(c data.Connection) connectionResponse {
	return connectionResponse{
		ID: c.ID.String(), ProjectID: c.ProjectID.String(), Provider: c.Provider,
		EndpointURL: c.EndpointURL, APIVersion: c.APIVersion,
	}
}

func (a *Admin) handleCreateConnection(ctx *fasthttp.RequestCtx, user auth.UserContext) {
	projectID, err := parseUUIDParam(ctx, "project_id")
	if err != nil {
		writeErr(ctx, err)
		return
	}
	if err := a.requireAdmin(ctx, user, projectID); err != nil {
		writeErr(ctx, err)
		return
	}

	var req connectionRequest
	if err := readJSON(ctx, &req); err != nil {
		writeErr(ctx, apierr.New(apierr.KindBadRequest, "invalid request body"))
		return
	}
	if req.Provider == "" || req.Credential == "" {
		writeErr(ctx, apierr.New(apierr.KindBadRequest, "provider and credential are required"))
		return
	}

	created, err := a.facade.CreateConnection(ctx, data.Connection{
		ProjectID: projectID, Provider: req.Provider, EndpointURL: req.EndpointURL, APIVersion: req.APIVersion,
	}, req.Credential)
	if err != nil {
		writeErr(ctx, apierr.New(apierr.KindInternalError, err.Error()))
		return
	}
	writeJSON(ctx, fasthttp.StatusCreated, toConnectionResponse(*created))
}

func (a *Admin) handleListConnections(ctx *fasthttp.RequestCtx, user auth.UserContext) {
	projectID, err := parseUUIDParam(ctx, "project_id")
	if err != nil {
		writeErr(ctx, err)
		return
	}
	if err := a.requireDeveloper(ctx, user, projectID); err != nil {
		writeErr(ctx, err)
		return
	}
	connections, err := a.facade.ListConnectionsByProject(ctx, projectID)
	if err != nil {
		writeErr(ctx, apierr.New(apierr.KindInternalError, err.Error()))
		return
	}
	out := make([]connectionResponse, 0, len(connections))
	for _, c := range connections {
		out = append(out, toConnectionResponse(c))
	}
	writeJSON(ctx, fasthttp.StatusOK, out)
}

func (a *Admin) handleGetConnection(ctx *fasthttp.RequestCtx, user auth.UserContext) {
	id, err := parseUUIDParam(ctx, "id")
	if err != nil {
		writeErr(ctx, err)
		return
	}
	found, err := a.facade.GetConnection(ctx, id)
	if err != nil {
		writeErr(ctx, apierr.New(apierr.KindInternalError, err.Error()))
		return
	}
	if found == nil {
		writeErr(ctx, apierr.New(apierr.KindResourceNotFound, "connection not found"))
		return
	}
	if err := a.requireDeveloper(ctx, user, found.ProjectID); err != nil {
		writeErr(ctx, err)
		return
	}
	writeJSON(ctx, fasthttp.StatusOK, toConnectionResponse(*found))
}

func (a *Admin) handleUpdateConnection(ctx *fasthttp.RequestCtx, user auth.UserContext) {
	id, err := parseUUIDParam(ctx, "id")
	if err != nil {
		writeErr(ctx, err)
		return
	}
	existing, err := a.facade.GetConnection(ctx, id)
	if err != nil {
		writeErr(ctx, apierr.New(apierr.KindInternalError, err.Error()))
		return
	}
	if existing == nil {
		writeErr(ctx, apierr.New(apierr.KindResourceNotFound, "connection not found"))
		return
	}
	if err := a.requireAdmin(ctx, user, existing.ProjectID); err != nil {
		writeErr(ctx, err)
		return
	}

	var req connectionRequest
	if err := readJSON(ctx, &req); err != nil {
		writeErr(ctx, apierr.New(apierr.KindBadRequest, "invalid request body"))
		return
	}
	existing.EndpointURL = req.EndpointURL
	existing.APIVersion = req.APIVersion

	var plaintext *string
	if req.Credential != "" {
		plaintext = &req.Credential
	}

	updated, err := a.facade.UpdateConnection(ctx, *existing, plaintext)
	if err != nil {
		writeErr(ctx, apierr.New(apierr.KindInternalError, err.Error()))
		return
	}
	writeJSON(ctx, fasthttp.StatusOK, toConnectionResponse(*updated))
}

func (a *Admin) handleDeleteConnection(ctx *fasthttp.RequestCtx, user auth.UserContext) {
	id, err := parseUUIDParam(ctx, "id")
	if err != nil {
		writeErr(ctx, err)
		return
	}
	existing, err := a.facade.GetConnection(ctx, id)
	if err != nil {
		writeErr(ctx, apierr.New(apierr.KindInternalError, err.Error()))
		return
	}
	if existing == nil {
		writeErr(ctx, apierr.New(apierr.KindResourceNotFound, "connection not found"))
		return
	}
	if err := a.requireAdmin(ctx, user, existing.ProjectID); err != nil {
		writeErr(ctx, err)
		return
	}
	if err := a.facade.DeleteConnection(ctx, id); err != nil {
		writeErr(ctx, apierr.New(apierr.KindInternalError, err.Error()))
		return
	}
	ctx.SetStatusCode(fasthttp.StatusNoContent)
}

// ─── ConnectionDeployment ───

type connectionDeploymentRequest struct {
	ConnectionID string `json:"connection_id"`
	Weight       int    `json:"weight"`
	Enabled      bool   `json:"enabled"`
}

type connectionDeploymentResponse struct {
	DeploymentID string `json:"deployment_id"`
	ConnectionID string `json:"connection_id"`
	Weight       int    `json:"weight"`
	Enabled      bool   `json:"enabled"`
}

func toConnectionDeploymentResponse(cd data.ConnectionDeployment) connectionDeploymentResponse {
	return connectionDeploymentResponse{
		DeploymentID: cd.DeploymentID.String(), ConnectionID: cd.ConnectionID.String(),
		Weight: cd.Weight, Enabled: cd.Enabled,
	}
}

func (a *Admin) handleCreateConnectionDeployment(ctx *fasthttp.RequestCtx, user auth.UserContext) {
	deploymentID, err := parseUUIDParam(ctx, "deployment_id")
	if err != nil {
		writeErr(ctx, err)
		return
	}
	deployment, err := a.facade.GetDeployment(ctx, deploymentID)
	if err != nil {
		writeErr(ctx, apierr.New(apierr.KindInternalError, err.Error()))
		return
	}
	if deployment == nil {
		writeErr(ctx, apierr.New(apierr.KindResourceNotFound, "deployment not found"))
		return
	}
	if err := a.requireAdmin(ctx, user, deployment.ProjectID); err != nil {
		writeErr(ctx, err)
		return
	}

	var req connectionDeploymentRequest
	if err := readJSON(ctx, &req); err != nil {
		writeErr(ctx, apierr.New(apierr.KindBadRequest, "invalid request body"))
		return
	}
	connectionID, err := parseUUID(req.ConnectionID, "connection_id")
	if err != nil {
		writeErr(ctx, err)
		return
	}

	created, err := a.facade.CreateConnectionDeployment(ctx, data.ConnectionDeployment{
		DeploymentID: deploymentID, ConnectionID: connectionID, Weight: req.Weight, Enabled: req.Enabled,
	})
	if err != nil {
		writeErr(ctx, apierr.New(apierr.KindInternalError, err.Error()))
		return
	}
	writeJSON(ctx, fasthttp.StatusCreated, toConnectionDeploymentResponse(*created))
}

func (a *Admin) handleListConnectionDeployments(ctx *fasthttp.RequestCtx, user auth.UserContext) {
	deploymentID, err := parseUUIDParam(ctx, "deployment_id")
	if err != nil {
		writeErr(ctx, err)
		return
	}
	deployment, err := a.facade.GetDeployment(ctx, deploymentID)
	if err != nil {
		writeErr(ctx, apierr.New(apierr.KindInternalError, err.Error()))
		return
	}
	if deployment == nil {
		writeErr(ctx, apierr.New(apierr.KindResourceNotFound, "deployment not found"))
		return
	}
	if err := a.requireDeveloper(ctx, user, deployment.ProjectID); err != nil {
		writeErr(ctx, err)
		return
	}

	candidates, err := a.facade.ListConnectionDeployments(ctx, deploymentID)
	if err != nil {
		writeErr(ctx, apierr.New(apierr.KindInternalError, err.Error()))
		return
	}
	out := make([]connectionDeploymentResponse, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, toConnectionDeploymentResponse(c.ConnectionDeployment))
	}
	writeJSON(ctx, fasthttp.StatusOK, out)
}

func (a *Admin) handleUpdateConnectionDeployment(ctx *fasthttp.RequestCtx, user auth.UserContext) {
	deploymentID, err := parseUUIDParam(ctx, "deployment_id")
	if err != nil {
		writeErr(ctx, err)
		return
	}
	connectionID, err := parseUUIDParam(ctx, "connection_id")
	if err != nil {
		writeErr(ctx, err)
		return
	}
	deployment, err := a.facade.GetDeployment(ctx, deploymentID)
	if err != nil {
		writeErr(ctx, apierr.New(apierr.KindInternalError, err.Error()))
		return
	}
	if deployment == nil {
		writeErr(ctx, apierr.New(apierr.KindResourceNotFound, "deployment not found"))
		return
	}
	if err := a.requireAdmin(ctx, user, deployment.ProjectID); err != nil {
		writeErr(ctx, err)
		return
	}

	var req connectionDeploymentRequest
	if err := readJSON(ctx, &req); err != nil {
		writeErr(ctx, apierr.New(apierr.KindBadRequest, "invalid request body"))
		return
	}

	updated, err := a.facade.UpdateConnectionDeployment(ctx, data.ConnectionDeployment{
		DeploymentID: deploymentID, ConnectionID: connectionID, Weight: req.Weight, Enabled: req.Enabled,
	})
	if err != nil {
		writeErr(ctx, apierr.New(apierr.KindInternalError, err.Error()))
		return
	}
	writeJSON(ctx, fasthttp.StatusOK, toConnectionDeploymentResponse(*updated))
}

func (a *Admin) handleDeleteConnectionDeployment(ctx *fasthttp.RequestCtx, user auth.UserContext) {
	deploymentID, err := parseUUIDParam(ctx, "deployment_id")
	if err != nil {
		writeErr(ctx, err)
		return
	}
	connectionID, err := parseUUIDParam(ctx, "connection_id")
	if err != nil {
		writeErr(ctx, err)
		return
	}
	deployment, err := a.facade.GetDeployment(ctx, deploymentID)
	if err != nil {
		writeErr(ctx, apierr.New(apierr.KindInternalError, err.Error()))
		return
	}
	if deployment == nil {
		writeErr(ctx, apierr.New(apierr.KindResourceNotFound, "deployment not found"))
		return
	}
	if err := a.requireAdmin(ctx, user, deployment.ProjectID); err != nil {
		writeErr(ctx, err)
		return
	}
	if err := a.facade.DeleteConnectionDeployment(ctx, deploymentID, connectionID); err != nil {
		writeErr(ctx, apierr.New(apierr.KindInternalError, err.Error()))
		return
	}
	ctx.SetStatusCode(fasthttp.StatusNoContent)
}
