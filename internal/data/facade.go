package data

import (
	"context"

	"github.com/google/uuid"
)

// Facade is the single data-access surface shared by the graph resolver,
// the proxy pipeline, and the admin HTTP handlers. It is handed around as
// a shared interface value — never a package-level singleton — so tests
// can substitute a fake without touching a real database.
type Facade interface {
	// Users
	CreateUser(ctx context.Context, u User) (*User, error)
	GetUser(ctx context.Context, id uuid.UUID) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	ListUsers(ctx context.Context) ([]User, error)
	UpdateUser(ctx context.Context, u User) (*User, error)
	DeleteUser(ctx context.Context, id uuid.UUID) error

	// Projects
	CreateProject(ctx context.Context, p Project) (*Project, error)
	GetProject(ctx context.Context, id uuid.UUID) (*Project, error)
	ListProjects(ctx context.Context) ([]Project, error)
	UpdateProject(ctx context.Context, p Project) (*Project, error)
	DeleteProject(ctx context.Context, id uuid.UUID) error

	// Memberships
	CreateMembership(ctx context.Context, m Membership) (*Membership, error)
	GetMembership(ctx context.Context, projectID, userID uuid.UUID) (*Membership, error)
	ListMembershipsByProject(ctx context.Context, projectID uuid.UUID) ([]Membership, error)
	ListMembershipsByUser(ctx context.Context, userID uuid.UUID) ([]Membership, error)
	UpdateMembership(ctx context.Context, m Membership) (*Membership, error)
	DeleteMembership(ctx context.Context, projectID, userID uuid.UUID) error

	// ProjectInviteCodes
	CreateProjectInviteCode(ctx context.Context, c ProjectInviteCode) (*ProjectInviteCode, error)
	GetProjectInviteCode(ctx context.Context, id uuid.UUID) (*ProjectInviteCode, error)
	RedeemProjectInviteCode(ctx context.Context, id uuid.UUID) (*ProjectInviteCode, error)
	DeleteProjectInviteCode(ctx context.Context, id uuid.UUID) error

	// SessionTokens
	CreateSessionToken(ctx context.Context, s SessionToken) (*SessionToken, error)
	GetSessionToken(ctx context.Context, id uuid.UUID) (*SessionToken, error)
	RevokeSessionToken(ctx context.Context, id uuid.UUID) error

	// Deployments
	CreateDeployment(ctx context.Context, d Deployment) (*Deployment, error)
	GetDeployment(ctx context.Context, id uuid.UUID) (*Deployment, error)
	GetDeploymentByModel(ctx context.Context, projectID uuid.UUID, modelName string) (*Deployment, error)
	ListDeploymentsByProject(ctx context.Context, projectID uuid.UUID) ([]Deployment, error)
	UpdateDeployment(ctx context.Context, d Deployment) (*Deployment, error)
	DeleteDeployment(ctx context.Context, id uuid.UUID) error

	// Connections
	CreateConnection(ctx context.Context, c Connection, plaintextCredential string) (*Connection, error)
	GetConnection(ctx context.Context, id uuid.UUID) (*Connection, error)
	ListConnectionsByProject(ctx context.Context, projectID uuid.UUID) ([]Connection, error)
	UpdateConnection(ctx context.Context, c Connection, plaintextCredential *string) (*Connection, error)
	DeleteConnection(ctx context.Context, id uuid.UUID) error
	DecryptConnectionCredential(ctx context.Context, c Connection) (string, error)

	// ConnectionDeployments
	CreateConnectionDeployment(ctx context.Context, cd ConnectionDeployment) (*ConnectionDeployment, error)
	ListConnectionDeployments(ctx context.Context, deploymentID uuid.UUID) ([]GraphCandidate, error)
	UpdateConnectionDeployment(ctx context.Context, cd ConnectionDeployment) (*ConnectionDeployment, error)
	DeleteConnectionDeployment(ctx context.Context, deploymentID, connectionID uuid.UUID) error

	// VirtualKeys
	CreateVirtualKey(ctx context.Context, v VirtualKey, plaintextKey string) (*VirtualKey, error)
	GetVirtualKey(ctx context.Context, id uuid.UUID) (*VirtualKey, error)
	ListVirtualKeysByProject(ctx context.Context, projectID uuid.UUID) ([]VirtualKey, error)
	BlockVirtualKey(ctx context.Context, id uuid.UUID, blocked bool) error
	DeleteVirtualKey(ctx context.Context, id uuid.UUID) error

	// VirtualKeyDeployments
	CreateVirtualKeyDeployment(ctx context.Context, vkd VirtualKeyDeployment) (*VirtualKeyDeployment, error)
	GetVirtualKeyDeployment(ctx context.Context, virtualKeyID, deploymentID uuid.UUID) (*VirtualKeyDeployment, error)
	DeleteVirtualKeyDeployment(ctx context.Context, virtualKeyID, deploymentID uuid.UUID) error

	Close() error
}
