// Package data defines the entity model served by the proxy and the admin
// surface, and the Facade interface that abstracts their storage.
package data

import (
	"time"

	"github.com/google/uuid"
)

// AppRole is a User's instance-wide role.
type AppRole string

const (
	AppRoleAdmin  AppRole = "admin"
	AppRoleMember AppRole = "member"
)

// ProjectRole is a Membership's role within one Project.
type ProjectRole string

const (
	ProjectRoleAdmin     ProjectRole = "admin"
	ProjectRoleDeveloper ProjectRole = "developer"
)

// LoadBalancingStrategy selects how Graph orders a deployment's candidate
// connections.
type LoadBalancingStrategy string

const (
	LBRoundRobin LoadBalancingStrategy = "round_robin"
	LBWeighted   LoadBalancingStrategy = "weighted"
)

// ProviderKind identifies which wire dialect a Connection speaks.
type ProviderKind string

const (
	ProviderOpenAI    ProviderKind = "openai"
	ProviderAzure     ProviderKind = "azure"
	ProviderGemini    ProviderKind = "gemini"
	ProviderAnthropic ProviderKind = "anthropic"
)

// User is an individual with instance-wide credentials and role.
type User struct {
	ID           uuid.UUID
	Email        string
	PasswordHash string
	Role         AppRole
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Project is the top-level grouping for deployments, connections and keys.
type Project struct {
	ID        uuid.UUID
	Name      string
	OwnerID   uuid.UUID
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Membership grants a User a ProjectRole within a Project.
type Membership struct {
	ProjectID uuid.UUID
	UserID    uuid.UUID
	Role      ProjectRole
	CreatedAt time.Time
}

// ProjectInviteCode is a single-use, expiring invitation to join a project
// at a given role.
type ProjectInviteCode struct {
	ID        uuid.UUID
	ProjectID uuid.UUID
	Role      ProjectRole
	ExpiresAt time.Time
	UsedAt    *time.Time
	CreatedAt time.Time
}

// SessionToken authenticates an admin-surface caller as a User. ID is
// derived deterministically as DeriveID(token + ":" + secret) so a presented
// token can be looked up without a table scan.
type SessionToken struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	ExpiresAt time.Time
	Revoked   bool
	CreatedAt time.Time
}

// RequestLimits, BudgetLimits and TokenLimits are recorded on a Deployment
// but not enforced by the proxy pipeline — see SPEC_FULL.md's supplemented
// features section.
type (
	RequestLimits struct {
		MaxPerMinute *int
		MaxPerDay    *int
	}
	BudgetLimits struct {
		MaxUSDPerDay   *float64
		MaxUSDPerMonth *float64
	}
	TokenLimits struct {
		MaxInputTokensPerRequest  *int
		MaxOutputTokensPerRequest *int
	}
)

// Deployment names a model as callable through a project's virtual keys,
// and picks how its candidate connections are ordered.
type Deployment struct {
	ID                 uuid.UUID
	ProjectID          uuid.UUID
	ModelName          string
	LoadBalancing      LoadBalancingStrategy
	ProviderModelOverride *string
	Request            RequestLimits
	Budget             BudgetLimits
	Token              TokenLimits
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Connection is one upstream provider credential set.
type Connection struct {
	ID                 uuid.UUID
	ProjectID          uuid.UUID
	Provider           ProviderKind
	EncryptedCredential string
	CredentialSalt     string
	EndpointURL        string
	APIVersion         string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// ConnectionDeployment links a Connection into a Deployment's candidate
// list with a priority weight and an enabled flag.
type ConnectionDeployment struct {
	DeploymentID uuid.UUID
	ConnectionID uuid.UUID
	Weight       int
	Enabled      bool
}

// VirtualKey is a client-presented secret scoped to a Project. ID is
// derived deterministically from the decrypted key material.
type VirtualKey struct {
	ID               uuid.UUID
	ProjectID        uuid.UUID
	EncryptedSecret  string
	CredentialSalt   string
	Blocked          bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// VirtualKeyDeployment grants (or denies) a VirtualKey access to a
// Deployment.
type VirtualKeyDeployment struct {
	VirtualKeyID uuid.UUID
	DeploymentID uuid.UUID
	Allowed      bool
}

// Graph is the flattened, value-typed materialization of everything needed
// to serve one (virtual key, model) pair. It carries no parent
// back-pointers: it is copied by value, cached, and handed to the pipeline
// as an immutable snapshot.
type Graph struct {
	VirtualKey     VirtualKey
	Deployment     Deployment
	Project        Project
	KeyDeployment  VirtualKeyDeployment
	Candidates     []GraphCandidate
}

// GraphCandidate pairs a ConnectionDeployment with its resolved Connection,
// in the order the failover loop should try them.
type GraphCandidate struct {
	ConnectionDeployment ConnectionDeployment
	Connection           Connection
}

// RequestLog is one row per upstream attempt.
type RequestLog struct {
	ID            uuid.UUID
	VirtualKeyID  uuid.UUID
	DeploymentID  uuid.UUID
	ConnectionID  *uuid.UUID
	AttemptNumber int
	Method        string
	Path          string
	Model         string
	InputTokens   int
	OutputTokens  int
	CostUSD       *float64
	HTTPStatus    int
	Error         string
	Cached        bool
	RequestTS     time.Time
	ResponseTS    time.Time
}
