package graph

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/nulpointcorp/llm-gateway/internal/cache"
	"github.com/nulpointcorp/llm-gateway/internal/cryptoutil"
	"github.com/nulpointcorp/llm-gateway/internal/data"
	"github.com/nulpointcorp/llm-gateway/pkg/apierr"
)

const testAPIKey = "sk-test-virtual-key"

type fakeFacade struct {
	virtualKey *data.VirtualKey
	project    *data.Project
	deployment *data.Deployment
	grant      *data.VirtualKeyDeployment
	candidates []data.GraphCandidate

	listConnectionDeploymentsCalls int
}

func (f *fakeFacade) GetVirtualKey(ctx context.Context, id uuid.UUID) (*data.VirtualKey, error) {
	return f.virtualKey, nil
}

func (f *fakeFacade) GetProject(ctx context.Context, id uuid.UUID) (*data.Project, error) {
	return f.project, nil
}

func (f *fakeFacade) GetDeploymentByModel(ctx context.Context, projectID uuid.UUID, modelName string) (*data.Deployment, error) {
	return f.deployment, nil
}

func (f *fakeFacade) GetVirtualKeyDeployment(ctx context.Context, virtualKeyID, deploymentID uuid.UUID) (*data.VirtualKeyDeployment, error) {
	return f.grant, nil
}

func (f *fakeFacade) ListConnectionDeployments(ctx context.Context, deploymentID uuid.UUID) ([]data.GraphCandidate, error) {
	f.listConnectionDeploymentsCalls++
	return f.candidates, nil
}

func newFixture() *fakeFacade {
	vkID := cryptoutil.DeriveID(testAPIKey)
	projectID := uuid.New()
	deploymentID := uuid.New()
	connID := uuid.New()

	return &fakeFacade{
		virtualKey: &data.VirtualKey{ID: vkID, ProjectID: projectID, Blocked: false},
		project:    &data.Project{ID: projectID, Name: "acme"},
		deployment: &data.Deployment{ID: deploymentID, ProjectID: projectID, ModelName: "gpt-4o", LoadBalancing: data.LBRoundRobin},
		grant:      &data.VirtualKeyDeployment{VirtualKeyID: vkID, DeploymentID: deploymentID, Allowed: true},
		candidates: []data.GraphCandidate{
			{
				ConnectionDeployment: data.ConnectionDeployment{DeploymentID: deploymentID, ConnectionID: connID, Weight: 1, Enabled: true},
				Connection:           data.Connection{ID: connID, ProjectID: projectID, Provider: data.ProviderOpenAI, EndpointURL: "https://api.openai.com"},
			},
		},
	}
}

func TestGetGraphHappyPath(t *testing.T) {
	f := newFixture()
	r := New(f, nil, nil)

	g, err := r.GetGraph(context.Background(), testAPIKey, "gpt-4o", false)
	if err != nil {
		t.Fatalf("GetGraph: %v", err)
	}
	if len(g.Candidates) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(g.Candidates))
	}
	if g.Deployment.ModelName != "gpt-4o" {
		t.Fatalf("unexpected deployment model %q", g.Deployment.ModelName)
	}
}

func TestGetGraphBlockedKey(t *testing.T) {
	f := newFixture()
	f.virtualKey.Blocked = true
	r := New(f, nil, nil)

	_, err := r.GetGraph(context.Background(), testAPIKey, "gpt-4o", false)
	apiErr, ok := err.(*apierr.Error)
	if !ok {
		t.Fatalf("expected *apierr.Error, got %T (%v)", err, err)
	}
	if apiErr.Kind != apierr.KindKeyBlocked {
		t.Fatalf("expected KindKeyBlocked, got %v", apiErr.Kind)
	}
}

func TestGetGraphModelNotAllowedWhenNoGrant(t *testing.T) {
	f := newFixture()
	f.grant = nil
	r := New(f, nil, nil)

	_, err := r.GetGraph(context.Background(), testAPIKey, "gpt-4o", false)
	apiErr, ok := err.(*apierr.Error)
	if !ok {
		t.Fatalf("expected *apierr.Error, got %T (%v)", err, err)
	}
	if apiErr.Kind != apierr.KindModelNotAllowed {
		t.Fatalf("expected KindModelNotAllowed, got %v", apiErr.Kind)
	}
}

func TestGetGraphCachesAcrossCalls(t *testing.T) {
	f := newFixture()
	local := cache.NewMemoryCache(context.Background())
	defer local.Close()

	r := New(f, local, nil)

	if _, err := r.GetGraph(context.Background(), testAPIKey, "gpt-4o", false); err != nil {
		t.Fatalf("GetGraph #1: %v", err)
	}
	if _, err := r.GetGraph(context.Background(), testAPIKey, "gpt-4o", false); err != nil {
		t.Fatalf("GetGraph #2: %v", err)
	}

	if f.listConnectionDeploymentsCalls != 1 {
		t.Fatalf("expected facade to be hit once (second call served from cache), got %d calls", f.listConnectionDeploymentsCalls)
	}
}

func TestGetGraphForceBypassesCache(t *testing.T) {
	f := newFixture()
	local := cache.NewMemoryCache(context.Background())
	defer local.Close()

	r := New(f, local, nil)

	if _, err := r.GetGraph(context.Background(), testAPIKey, "gpt-4o", false); err != nil {
		t.Fatalf("GetGraph #1: %v", err)
	}
	if _, err := r.GetGraph(context.Background(), testAPIKey, "gpt-4o", true); err != nil {
		t.Fatalf("GetGraph forced: %v", err)
	}

	if f.listConnectionDeploymentsCalls != 2 {
		t.Fatalf("expected force=true to bypass cache, got %d facade calls", f.listConnectionDeploymentsCalls)
	}
}

func TestUnsupportedLoadBalancingStrategyFailsClosed(t *testing.T) {
	f := newFixture()
	f.deployment.LoadBalancing = "unknown_strategy"
	r := New(f, nil, nil)

	_, err := r.GetGraph(context.Background(), testAPIKey, "gpt-4o", false)
	apiErr, ok := err.(*apierr.Error)
	if !ok {
		t.Fatalf("expected *apierr.Error, got %T (%v)", err, err)
	}
	if apiErr.Kind != apierr.KindInternalError {
		t.Fatalf("expected KindInternalError for an unknown strategy, got %v", apiErr.Kind)
	}
}
