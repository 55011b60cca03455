// Package graph resolves a (virtual key, model) pair down to an ordered
// list of candidate upstream connections, the flattened Graph the proxy
// pipeline drives its failover loop over.
package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/nulpointcorp/llm-gateway/internal/cache"
	"github.com/nulpointcorp/llm-gateway/internal/cryptoutil"
	"github.com/nulpointcorp/llm-gateway/internal/data"
	"github.com/nulpointcorp/llm-gateway/pkg/apierr"
)

// DefaultTTL is the cache lifetime applied to a freshly resolved Graph.
const DefaultTTL = 60 * time.Second

// facade is the narrow slice of data.Facade the resolver actually drives —
// any data.Facade implementation satisfies it automatically, and tests can
// substitute a minimal fake without stubbing the full CRUD surface.
type facade interface {
	GetVirtualKey(ctx context.Context, id uuid.UUID) (*data.VirtualKey, error)
	GetProject(ctx context.Context, id uuid.UUID) (*data.Project, error)
	GetDeploymentByModel(ctx context.Context, projectID uuid.UUID, modelName string) (*data.Deployment, error)
	GetVirtualKeyDeployment(ctx context.Context, virtualKeyID, deploymentID uuid.UUID) (*data.VirtualKeyDeployment, error)
	ListConnectionDeployments(ctx context.Context, deploymentID uuid.UUID) ([]data.GraphCandidate, error)
}

// CacheMetrics lets the resolver report hit/miss counts without importing
// the metrics package directly (avoids a dependency cycle: metrics has no
// need to know about graphs).
type CacheMetrics interface {
	IncGraphCacheHit()
	IncGraphCacheMiss()
}

type noopMetrics struct{}

func (noopMetrics) IncGraphCacheHit()  {}
func (noopMetrics) IncGraphCacheMiss() {}

// Resolver is the C3 Graph resolver. local is checked before remote; both
// are populated on a successful resolution.
type Resolver struct {
	facade  facade
	local   cache.Cache
	remote  cache.Cache
	sf      singleflight.Group
	ttl     time.Duration
	metrics CacheMetrics
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithTTL overrides DefaultTTL.
func WithTTL(ttl time.Duration) Option {
	return func(r *Resolver) { r.ttl = ttl }
}

// WithMetrics wires a CacheMetrics sink (normally *metrics.Registry).
func WithMetrics(m CacheMetrics) Option {
	return func(r *Resolver) { r.metrics = m }
}

// New constructs a Resolver over facade, with local as the process-local
// cache tier and remote (may be nil to disable the remote tier) as the
// shared Redis-backed tier.
func New(f facade, local, remote cache.Cache, opts ...Option) *Resolver {
	r := &Resolver{
		facade:  f,
		local:   local,
		remote:  remote,
		ttl:     DefaultTTL,
		metrics: noopMetrics{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func cacheKeyFor(apiKey, modelName string) string {
	return fmt.Sprintf("graph:%s:%s", cryptoutil.DeriveID(apiKey), modelName)
}

// GetGraph resolves apiKey + modelName to a Graph. force bypasses both
// cache tiers and always does a fresh Postgres resolution; the proxy
// pipeline always passes false.
func (r *Resolver) GetGraph(ctx context.Context, apiKey, modelName string, force bool) (*data.Graph, error) {
	key := cacheKeyFor(apiKey, modelName)

	if !force {
		if g, ok := r.cacheGet(ctx, key); ok {
			r.metrics.IncGraphCacheHit()
			return g, nil
		}
	}
	r.metrics.IncGraphCacheMiss()

	v, err, _ := r.sf.Do(key, func() (interface{}, error) {
		return r.resolve(ctx, apiKey, modelName)
	})
	if err != nil {
		return nil, err
	}
	g := v.(*data.Graph)

	r.cacheSet(ctx, key, g)
	return g, nil
}

func (r *Resolver) cacheGet(ctx context.Context, key string) (*data.Graph, bool) {
	if r.local != nil {
		if raw, ok := r.local.Get(ctx, key); ok {
			var g data.Graph
			if err := json.Unmarshal(raw, &g); err == nil {
				return &g, true
			}
		}
	}
	if r.remote != nil {
		if raw, ok := r.remote.Get(ctx, key); ok {
			var g data.Graph
			if err := json.Unmarshal(raw, &g); err == nil {
				if r.local != nil {
					_ = r.local.Set(ctx, key, raw, r.ttl)
				}
				return &g, true
			}
		}
	}
	return nil, false
}

func (r *Resolver) cacheSet(ctx context.Context, key string, g *data.Graph) {
	raw, err := json.Marshal(g)
	if err != nil {
		return
	}
	if r.local != nil {
		_ = r.local.Set(ctx, key, raw, r.ttl)
	}
	if r.remote != nil {
		_ = r.remote.Set(ctx, key, raw, r.ttl)
	}
}

// resolve performs the uncached, single-flighted Postgres resolution.
func (r *Resolver) resolve(ctx context.Context, apiKey, modelName string) (*data.Graph, error) {
	virtualKeyID := cryptoutil.DeriveID(apiKey)

	vk, err := r.facade.GetVirtualKey(ctx, virtualKeyID)
	if err != nil {
		return nil, apierr.New(apierr.KindInternalError, fmt.Sprintf("lookup virtual key: %v", err))
	}
	if vk == nil {
		return nil, apierr.New(apierr.KindResourceNotFound, "virtual key not found")
	}
	if vk.Blocked {
		return nil, apierr.New(apierr.KindKeyBlocked, "virtual key is blocked")
	}

	project, err := r.facade.GetProject(ctx, vk.ProjectID)
	if err != nil {
		return nil, apierr.New(apierr.KindInternalError, fmt.Sprintf("lookup project: %v", err))
	}
	if project == nil {
		return nil, apierr.New(apierr.KindInternalError, "virtual key references a missing project")
	}

	deployment, err := r.facade.GetDeploymentByModel(ctx, vk.ProjectID, modelName)
	if err != nil {
		return nil, apierr.New(apierr.KindInternalError, fmt.Sprintf("lookup deployment: %v", err))
	}
	if deployment == nil {
		return nil, apierr.New(apierr.KindModelNotAllowed, fmt.Sprintf("model %q is not deployed in this project", modelName))
	}

	grant, err := r.facade.GetVirtualKeyDeployment(ctx, vk.ID, deployment.ID)
	if err != nil {
		return nil, apierr.New(apierr.KindInternalError, fmt.Sprintf("lookup virtual key grant: %v", err))
	}
	if grant == nil || !grant.Allowed {
		return nil, apierr.New(apierr.KindModelNotAllowed, fmt.Sprintf("model %q is not allowed for this key", modelName))
	}

	candidates, err := r.facade.ListConnectionDeployments(ctx, deployment.ID)
	if err != nil {
		return nil, apierr.New(apierr.KindInternalError, fmt.Sprintf("list connections: %v", err))
	}
	if len(candidates) == 0 {
		return nil, apierr.New(apierr.KindUpstreamUnavailable, fmt.Sprintf("no enabled connections for model %q", modelName))
	}

	ordered, err := order(deployment.LoadBalancing, deployment.ID, vk.ID, time.Now(), candidates)
	if err != nil {
		return nil, err
	}

	return &data.Graph{
		VirtualKey:    *vk,
		Deployment:    *deployment,
		Project:       *project,
		KeyDeployment: *grant,
		Candidates:    ordered,
	}, nil
}

// InvalidateAll drops the cached Graph for (apiKey, modelName) from both
// tiers. Best-effort: a Delete error is ignored, and the entry still
// expires via TTL. The admin surface does not call it, so an admin
// mutation of VirtualKey, Deployment, Connection, ConnectionDeployment or
// VirtualKeyDeployment reaches the proxy only once the cached Graph
// expires.
func (r *Resolver) InvalidateAll(ctx context.Context, apiKey, modelName string) {
	key := cacheKeyFor(apiKey, modelName)
	if r.local != nil {
		_ = r.local.Delete(ctx, key)
	}
	if r.remote != nil {
		_ = r.remote.Delete(ctx, key)
	}
}
