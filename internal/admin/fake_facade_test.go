package admin

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nulpointcorp/llm-gateway/internal/cryptoutil"
	"github.com/nulpointcorp/llm-gateway/internal/data"
)

// fakeFacade is an in-memory data.Facade used to exercise the admin
// handlers without a real database, mirroring the fakeFacade pattern in
// internal/auth's own tests.
type fakeFacade struct {
	mu sync.Mutex

	users         map[uuid.UUID]data.User
	projects      map[uuid.UUID]data.Project
	memberships   map[[2]uuid.UUID]data.Membership
	invites       map[uuid.UUID]data.ProjectInviteCode
	sessions      map[uuid.UUID]data.SessionToken
	deployments   map[uuid.UUID]data.Deployment
	connections   map[uuid.UUID]data.Connection
	connDeploys   map[[2]uuid.UUID]data.ConnectionDeployment
	virtualKeys   map[uuid.UUID]data.VirtualKey
	vkDeploys     map[[2]uuid.UUID]data.VirtualKeyDeployment
}

func newFakeFacade() *fakeFacade {
	return &fakeFacade{
		users:       map[uuid.UUID]data.User{},
		projects:    map[uuid.UUID]data.Project{},
		memberships: map[[2]uuid.UUID]data.Membership{},
		invites:     map[uuid.UUID]data.ProjectInviteCode{},
		sessions:    map[uuid.UUID]data.SessionToken{},
		deployments: map[uuid.UUID]data.Deployment{},
		connections: map[uuid.UUID]data.Connection{},
		connDeploys: map[[2]uuid.UUID]data.ConnectionDeployment{},
		virtualKeys: map[uuid.UUID]data.VirtualKey{},
		vkDeploys:   map[[2]uuid.UUID]data.VirtualKeyDeployment{},
	}
}

func (f *fakeFacade) CreateUser(ctx context.Context, u data.User) (*data.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u.ID = uuid.New()
	f.users[u.ID] = u
	return &u, nil
}

func (f *fakeFacade) GetUser(ctx context.Context, id uuid.UUID) (*data.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.users[id]; ok {
		return &u, nil
	}
	return nil, nil
}

func (f *fakeFacade) GetUserByEmail(ctx context.Context, email string) (*data.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, nil
}

func (f *fakeFacade) ListUsers(ctx context.Context) ([]data.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]data.User, 0, len(f.users))
	for _, u := range f.users {
		out = append(out, u)
	}
	return out, nil
}

func (f *fakeFacade) UpdateUser(ctx context.Context, u data.User) (*data.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[u.ID] = u
	return &u, nil
}

func (f *fakeFacade) DeleteUser(ctx context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.users, id)
	return nil
}

func (f *fakeFacade) CreateProject(ctx context.Context, p data.Project) (*data.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p.ID = uuid.New()
	f.projects[p.ID] = p
	return &p, nil
}

func (f *fakeFacade) GetProject(ctx context.Context, id uuid.UUID) (*data.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.projects[id]; ok {
		return &p, nil
	}
	return nil, nil
}

func (f *fakeFacade) ListProjects(ctx context.Context) ([]data.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]data.Project, 0, len(f.projects))
	for _, p := range f.projects {
		out = append(out, p)
	}
	return out, nil
}

func (f *fakeFacade) UpdateProject(ctx context.Context, p data.Project) (*data.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.projects[p.ID] = p
	return &p, nil
}

func (f *fakeFacade) DeleteProject(ctx context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.projects, id)
	return nil
}

func (f *fakeFacade) CreateMembership(ctx context.Context, m data.Membership) (*data.Membership, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.memberships[[2]uuid.UUID{m.ProjectID, m.UserID}] = m
	return &m, nil
}

func (f *fakeFacade) GetMembership(ctx context.Context, projectID, userID uuid.UUID) (*data.Membership, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if m, ok := f.memberships[[2]uuid.UUID{projectID, userID}]; ok {
		return &m, nil
	}
	return nil, nil
}

func (f *fakeFacade) ListMembershipsByProject(ctx context.Context, projectID uuid.UUID) ([]data.Membership, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []data.Membership
	for k, m := range f.memberships {
		if k[0] == projectID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeFacade) ListMembershipsByUser(ctx context.Context, userID uuid.UUID) ([]data.Membership, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []data.Membership
	for k, m := range f.memberships {
		if k[1] == userID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeFacade) UpdateMembership(ctx context.Context, m data.Membership) (*data.Membership, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.memberships[[2]uuid.UUID{m.ProjectID, m.UserID}] = m
	return &m, nil
}

func (f *fakeFacade) DeleteMembership(ctx context.Context, projectID, userID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.memberships, [2]uuid.UUID{projectID, userID})
	return nil
}

func (f *fakeFacade) CreateProjectInviteCode(ctx context.Context, c data.ProjectInviteCode) (*data.ProjectInviteCode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c.ID = uuid.New()
	f.invites[c.ID] = c
	return &c, nil
}

func (f *fakeFacade) GetProjectInviteCode(ctx context.Context, id uuid.UUID) (*data.ProjectInviteCode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.invites[id]; ok {
		return &c, nil
	}
	return nil, nil
}

func (f *fakeFacade) RedeemProjectInviteCode(ctx context.Context, id uuid.UUID) (*data.ProjectInviteCode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.invites[id]
	if !ok {
		return nil, nil
	}
	now := time.Now().UTC()
	c.UsedAt = &now
	f.invites[id] = c
	return &c, nil
}

func (f *fakeFacade) DeleteProjectInviteCode(ctx context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.invites, id)
	return nil
}

func (f *fakeFacade) CreateSessionToken(ctx context.Context, s data.SessionToken) (*data.SessionToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions[s.ID] = s
	return &s, nil
}

func (f *fakeFacade) GetSessionToken(ctx context.Context, id uuid.UUID) (*data.SessionToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.sessions[id]; ok {
		return &s, nil
	}
	return nil, nil
}

func (f *fakeFacade) RevokeSessionToken(ctx context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok {
		return nil
	}
	s.Revoked = true
	f.sessions[id] = s
	return nil
}

func (f *fakeFacade) CreateDeployment(ctx context.Context, d data.Deployment) (*data.Deployment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d.ID = uuid.New()
	f.deployments[d.ID] = d
	return &d, nil
}

func (f *fakeFacade) GetDeployment(ctx context.Context, id uuid.UUID) (*data.Deployment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if d, ok := f.deployments[id]; ok {
		return &d, nil
	}
	return nil, nil
}

func (f *fakeFacade) GetDeploymentByModel(ctx context.Context, projectID uuid.UUID, modelName string) (*data.Deployment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, d := range f.deployments {
		if d.ProjectID == projectID && d.ModelName == modelName {
			return &d, nil
		}
	}
	return nil, nil
}

func (f *fakeFacade) ListDeploymentsByProject(ctx context.Context, projectID uuid.UUID) ([]data.Deployment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []data.Deployment
	for _, d := range f.deployments {
		if d.ProjectID == projectID {
			out = append(out, d)
		}
	}
	return out, nil
}

func (f *fakeFacade) UpdateDeployment(ctx context.Context, d data.Deployment) (*data.Deployment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deployments[d.ID] = d
	return &d, nil
}

func (f *fakeFacade) DeleteDeployment(ctx context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.deployments, id)
	return nil
}

func (f *fakeFacade) CreateConnection(ctx context.Context, c data.Connection, plaintextCredential string) (*data.Connection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c.ID = uuid.New()
	c.EncryptedCredential = plaintextCredential
	f.connections[c.ID] = c
	return &c, nil
}

func (f *fakeFacade) GetConnection(ctx context.Context, id uuid.UUID) (*data.Connection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.connections[id]; ok {
		return &c, nil
	}
	return nil, nil
}

func (f *fakeFacade) ListConnectionsByProject(ctx context.Context, projectID uuid.UUID) ([]data.Connection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []data.Connection
	for _, c := range f.connections {
		if c.ProjectID == projectID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeFacade) UpdateConnection(ctx context.Context, c data.Connection, plaintextCredential *string) (*data.Connection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if plaintextCredential != nil {
		c.EncryptedCredential = *plaintextCredential
	}
	f.connections[c.ID] = c
	return &c, nil
}

func (f *fakeFacade) DeleteConnection(ctx context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.connections, id)
	return nil
}

func (f *fakeFacade) DecryptConnectionCredential(ctx context.Context, c data.Connection) (string, error) {
	return c.EncryptedCredential, nil
}

func (f *fakeFacade) CreateConnectionDeployment(ctx context.Context, cd data.ConnectionDeployment) (*data.ConnectionDeployment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connDeploys[[2]uuid.UUID{cd.DeploymentID, cd.ConnectionID}] = cd
	return &cd, nil
}

func (f *fakeFacade) ListConnectionDeployments(ctx context.Context, deploymentID uuid.UUID) ([]data.GraphCandidate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []data.GraphCandidate
	for k, cd := range f.connDeploys {
		if k[0] == deploymentID {
			out = append(out, data.GraphCandidate{ConnectionDeployment: cd, Connection: f.connections[cd.ConnectionID]})
		}
	}
	return out, nil
}

func (f *fakeFacade) UpdateConnectionDeployment(ctx context.Context, cd data.ConnectionDeployment) (*data.ConnectionDeployment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connDeploys[[2]uuid.UUID{cd.DeploymentID, cd.ConnectionID}] = cd
	return &cd, nil
}

func (f *fakeFacade) DeleteConnectionDeployment(ctx context.Context, deploymentID, connectionID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.connDeploys, [2]uuid.UUID{deploymentID, connectionID})
	return nil
}

func (f *fakeFacade) CreateVirtualKey(ctx context.Context, v data.VirtualKey, plaintextKey string) (*data.VirtualKey, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v.ID = cryptoutil.DeriveID(plaintextKey)
	f.virtualKeys[v.ID] = v
	return &v, nil
}

func (f *fakeFacade) GetVirtualKey(ctx context.Context, id uuid.UUID) (*data.VirtualKey, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if v, ok := f.virtualKeys[id]; ok {
		return &v, nil
	}
	return nil, nil
}

func (f *fakeFacade) ListVirtualKeysByProject(ctx context.Context, projectID uuid.UUID) ([]data.VirtualKey, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []data.VirtualKey
	for _, v := range f.virtualKeys {
		if v.ProjectID == projectID {
			out = append(out, v)
		}
	}
	return out, nil
}

func (f *fakeFacade) BlockVirtualKey(ctx context.Context, id uuid.UUID, blocked bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.virtualKeys[id]
	if !ok {
		return nil
	}
	v.Blocked = blocked
	f.virtualKeys[id] = v
	return nil
}

func (f *fakeFacade) DeleteVirtualKey(ctx context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.virtualKeys, id)
	return nil
}

func (f *fakeFacade) CreateVirtualKeyDeployment(ctx context.Context, vkd data.VirtualKeyDeployment) (*data.VirtualKeyDeployment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.vkDeploys[[2]uuid.UUID{vkd.VirtualKeyID, vkd.DeploymentID}] = vkd
	return &vkd, nil
}

func (f *fakeFacade) GetVirtualKeyDeployment(ctx context.Context, virtualKeyID, deploymentID uuid.UUID) (*data.VirtualKeyDeployment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if vkd, ok := f.vkDeploys[[2]uuid.UUID{virtualKeyID, deploymentID}]; ok {
		return &vkd, nil
	}
	return nil, nil
}

func (f *fakeFacade) DeleteVirtualKeyDeployment(ctx context.Context, virtualKeyID, deploymentID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.vkDeploys, [2]uuid.UUID{virtualKeyID, deploymentID})
	return nil
}

func (f *fakeFacade) Close() error { return nil }
