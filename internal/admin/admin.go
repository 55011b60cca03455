// Package admin implements the management HTTP surface: CRUD over every
// entity in internal/data, session-token issuance, and invite-code
// redemption. It sits behind the C5 admin auth flow (a master key or a
// project-scoped session token) and is mounted by internal/proxy under
// /admin without that package ever importing this one — see
// proxy.ManagementRoutes.Admin.
package admin

import (
	"log/slog"

	"github.com/fasthttp/router"
	"github.com/valyala/fasthttp"

	"github.com/nulpointcorp/llm-gateway/internal/auth"
	"github.com/nulpointcorp/llm-gateway/internal/data"
)

// Admin owns the data.Facade and the auth Resolver and builds the
// /admin/* route tree.
type Admin struct {
	facade            data.Facade
	resolver          *auth.Resolver
	applicationSecret string
	log               *slog.Logger
}

// New constructs an Admin surface. applicationSecret must match the one
// given to auth.NewResolver, since session-token IDs are derived with it.
func New(facade data.Facade, resolver *auth.Resolver, applicationSecret string, log *slog.Logger) *Admin {
	if log == nil {
		log = slog.Default()
	}
	return &Admin{facade: facade, resolver: resolver, applicationSecret: applicationSecret, log: log}
}

// Handler builds the fasthttp.RequestHandler mounted at /admin/{path:*} by
// internal/proxy.
func (a *Admin) Handler() fasthttp.RequestHandler {
	r := router.New()

	r.POST("/admin/sessions", a.withAuth(a.handleLogin))
	r.DELETE("/admin/sessions/{id}", a.withAuth(a.handleRevokeSession))

	r.POST("/admin/users", a.withAuth(a.handleCreateUser))
	r.GET("/admin/users", a.withAuth(a.handleListUsers))
	r.GET("/admin/users/{id}", a.withAuth(a.handleGetUser))
	r.PATCH("/admin/users/{id}", a.withAuth(a.handleUpdateUser))
	r.DELETE("/admin/users/{id}", a.withAuth(a.handleDeleteUser))

	r.POST("/admin/projects", a.withAuth(a.handleCreateProject))
	r.GET("/admin/projects", a.withAuth(a.handleListProjects))
	r.GET("/admin/projects/{id}", a.withAuth(a.handleGetProject))
	r.PATCH("/admin/projects/{id}", a.withAuth(a.handleUpdateProject))
	r.DELETE("/admin/projects/{id}", a.withAuth(a.handleDeleteProject))

	r.POST("/admin/projects/{project_id}/memberships", a.withAuth(a.handleCreateMembership))
	r.GET("/admin/projects/{project_id}/memberships", a.withAuth(a.handleListMemberships))
	r.PATCH("/admin/projects/{project_id}/memberships/{user_id}", a.withAuth(a.handleUpdateMembership))
	r.DELETE("/admin/projects/{project_id}/memberships/{user_id}", a.withAuth(a.handleDeleteMembership))

	r.POST("/admin/projects/{project_id}/invites", a.withAuth(a.handleCreateInvite))
	r.DELETE("/admin/invites/{id}", a.withAuth(a.handleDeleteInvite))
	r.POST("/admin/invites/{code}/redeem", a.withAuth(a.handleRedeemInvite))

	r.POST("/admin/projects/{project_id}/deployments", a.withAuth(a.handleCreateDeployment))
	r.GET("/admin/projects/{project_id}/deployments", a.withAuth(a.handleListDeployments))
	r.GET("/admin/deployments/{id}", a.withAuth(a.handleGetDeployment))
	r.PATCH("/admin/deployments/{id}", a.withAuth(a.handleUpdateDeployment))
	r.DELETE("/admin/deployments/{id}", a.withAuth(a.handleDeleteDeployment))

	r.POST("/admin/projects/{project_id}/connections", a.withAuth(a.handleCreateConnection))
	r.GET("/admin/projects/{project_id}/connections", a.withAuth(a.handleListConnections))
	r.GET("/admin/connections/{id}", a.withAuth(a.handleGetConnection))
	r.PATCH("/admin/connections/{id}", a.withAuth(a.handleUpdateConnection))
	r.DELETE("/admin/connections/{id}", a.withAuth(a.handleDeleteConnection))

	r.POST("/admin/deployments/{deployment_id}/connections", a.withAuth(a.handleCreateConnectionDeployment))
	r.GET("/admin/deployments/{deployment_id}/connections", a.withAuth(a.handleListConnectionDeployments))
	r.PATCH("/admin/deployments/{deployment_id}/connections/{connection_id}", a.withAuth(a.handleUpdateConnectionDeployment))
	r.DELETE("/admin/deployments/{deployment_id}/connections/{connection_id}", a.withAuth(a.handleDeleteConnectionDeployment))

	r.POST("/admin/projects/{project_id}/virtual-keys", a.withAuth(a.handleCreateVirtualKey))
	r.GET("/admin/projects/{project_id}/virtual-keys", a.withAuth(a.handleListVirtualKeys))
	r.POST("/admin/virtual-keys/{id}/block", a.withAuth(a.handleBlockVirtualKey))
	r.DELETE("/admin/virtual-keys/{id}", a.withAuth(a.handleDeleteVirtualKey))

	r.POST("/admin/virtual-keys/{virtual_key_id}/deployments", a.withAuth(a.handleGrantVirtualKeyDeployment))
	r.DELETE("/admin/virtual-keys/{virtual_key_id}/deployments/{deployment_id}", a.withAuth(a.handleRevokeVirtualKeyDeployment))

	return r.Handler
}
