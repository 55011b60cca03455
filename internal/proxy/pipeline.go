package proxy

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nulpointcorp/llm-gateway/internal/data"
	"github.com/nulpointcorp/llm-gateway/internal/graph"
	"github.com/nulpointcorp/llm-gateway/internal/metrics"
	"github.com/nulpointcorp/llm-gateway/internal/providers"
	"github.com/nulpointcorp/llm-gateway/internal/providers/registry"
	"github.com/nulpointcorp/llm-gateway/internal/requestlog"
	"github.com/nulpointcorp/llm-gateway/pkg/apierr"
)

// nonRetryableStatuses are exhausted immediately — no further connection
// in the candidate list is tried once one of these is seen.
var nonRetryableStatuses = map[int]bool{
	400: true, 401: true, 403: true, 404: true, 422: true,
}

// credentialFacade is the narrow slice of data.Facade the pipeline drives
// directly (Graph resolution itself goes through graph.Resolver, which
// has its own narrower facade).
type credentialFacade interface {
	DecryptConnectionCredential(ctx context.Context, c data.Connection) (string, error)
}

// Pipeline is the C6 proxy pipeline controller: it resolves a Graph for
// the inbound (virtual key, model) pair, then drives the
// Parsed → GraphResolved → Attempting(i) → Success|Failed(i) →
// Attempting(i+1) → UpstreamUnavailable state machine across the Graph's
// ordered candidate connections.
type Pipeline struct {
	facade  credentialFacade
	graph   *graph.Resolver
	cb      *CircuitBreaker
	metrics *metrics.Registry
	reqLog  *requestlog.Logger
	timeout time.Duration
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithProviderTimeout overrides the default per-attempt timeout (30s).
func WithProviderTimeout(d time.Duration) PipelineOption {
	return func(p *Pipeline) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// WithRequestLogger wires the C7 usage logger. Nil (the default) disables
// request logging entirely — used by tests that don't care about it.
func WithRequestLogger(l *requestlog.Logger) PipelineOption {
	return func(p *Pipeline) { p.reqLog = l }
}

// NewPipeline constructs a Pipeline over a graph Resolver, a circuit
// breaker, and the Facade slice needed to decrypt Connection credentials.
func NewPipeline(f credentialFacade, g *graph.Resolver, cb *CircuitBreaker, m *metrics.Registry, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		facade:  f,
		graph:   g,
		cb:      cb,
		metrics: m,
		timeout: 30 * time.Second,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// ChatResult is returned by Dispatch on success, carrying the canonical
// response alongside the Graph it was resolved against.
type ChatResult struct {
	Response *providers.ChatResponse
	Graph    *data.Graph
}

// EmbeddingResult mirrors ChatResult for the embeddings path.
type EmbeddingResult struct {
	Response *providers.EmbeddingResponse
	Graph    *data.Graph
}

// Dispatch resolves apiKey+req.Model to a Graph and drives the failover
// loop for a chat completion. path is the inbound HTTP path, recorded on
// every RequestLog row.
func (p *Pipeline) Dispatch(ctx context.Context, apiKey, path string, req providers.ChatRequest) (*ChatResult, error) {
	g, err := p.resolveGraph(ctx, apiKey, req.Model)
	if err != nil {
		return nil, err
	}

	canonicalModel := req.Model
	if g.Deployment.ProviderModelOverride != nil && *g.Deployment.ProviderModelOverride != "" {
		req.Model = *g.Deployment.ProviderModelOverride
	}

	var lastErr error
	for attempt, candidate := range g.Candidates {
		connID := candidate.Connection.ID.String()
		if !p.cb.Allow(connID) {
			lastErr = apierr.New(apierr.KindUpstreamUnavailable, fmt.Sprintf("connection %s circuit open", connID))
			continue
		}

		start := time.Now()
		resp, status, err := p.attemptChat(ctx, candidate.Connection, req)
		dur := time.Since(start)

		p.logAttempt(g, candidate.Connection.ID, attempt, path, canonicalModel, resp, status, err, start)
		p.observeAttempt(g, candidate.Connection, dur, resp, status, err)

		if err == nil {
			p.cb.RecordSuccess(connID)
			resp.Model = canonicalModel
			return &ChatResult{Response: resp, Graph: g}, nil
		}

		p.cb.RecordFailure(connID)
		lastErr = err

		if nonRetryableStatuses[status] {
			return nil, apierr.Upstream(status, err.Error())
		}
		if status != 0 && !providers.RetryableStatuses[status] {
			// Any status outside both lists also ends the loop: no further
			// connection is tried and the status is returned as an
			// upstream error (already counted as a breaker failure above).
			return nil, apierr.Upstream(status, err.Error())
		}
		// Retryable (or a network-level error, status == 0) — try the next candidate.
	}

	if lastErr == nil {
		lastErr = errors.New("no candidate connections available")
	}
	return nil, apierr.New(apierr.KindUpstreamUnavailable, lastErr.Error())
}

// DispatchEmbedding mirrors Dispatch for the embeddings path.
func (p *Pipeline) DispatchEmbedding(ctx context.Context, apiKey, path string, req providers.EmbeddingRequest) (*EmbeddingResult, error) {
	g, err := p.resolveGraph(ctx, apiKey, req.Model)
	if err != nil {
		return nil, err
	}

	canonicalModel := req.Model
	if g.Deployment.ProviderModelOverride != nil && *g.Deployment.ProviderModelOverride != "" {
		req.Model = *g.Deployment.ProviderModelOverride
	}

	var lastErr error
	for attempt, candidate := range g.Candidates {
		connID := candidate.Connection.ID.String()
		if !p.cb.Allow(connID) {
			lastErr = apierr.New(apierr.KindUpstreamUnavailable, fmt.Sprintf("connection %s circuit open", connID))
			continue
		}

		start := time.Now()
		resp, status, err := p.attemptEmbedding(ctx, candidate.Connection, req)
		dur := time.Since(start)

		p.logEmbeddingAttempt(g, candidate.Connection.ID, attempt, path, canonicalModel, resp, status, err, start)
		p.observeEmbeddingAttempt(g, candidate.Connection, dur, resp, status, err)

		if err == nil {
			p.cb.RecordSuccess(connID)
			resp.Model = canonicalModel
			return &EmbeddingResult{Response: resp, Graph: g}, nil
		}

		p.cb.RecordFailure(connID)
		lastErr = err

		if nonRetryableStatuses[status] {
			return nil, apierr.Upstream(status, err.Error())
		}
		if status != 0 && !providers.RetryableStatuses[status] {
			return nil, apierr.Upstream(status, err.Error())
		}
	}

	if lastErr == nil {
		lastErr = errors.New("no candidate connections available")
	}
	return nil, apierr.New(apierr.KindUpstreamUnavailable, lastErr.Error())
}

func (p *Pipeline) resolveGraph(ctx context.Context, apiKey, model string) (*data.Graph, error) {
	g, err := p.graph.GetGraph(ctx, apiKey, model, false)
	if err != nil {
		return nil, err
	}
	return g, nil
}

func (p *Pipeline) attemptChat(ctx context.Context, conn data.Connection, req providers.ChatRequest) (*providers.ChatResponse, int, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	credential, err := p.facade.DecryptConnectionCredential(attemptCtx, conn)
	if err != nil {
		return nil, 0, fmt.Errorf("decrypt connection credential: %w", err)
	}

	client, err := registry.Dial(attemptCtx, conn, credential)
	if err != nil {
		return nil, 0, err
	}

	resp, err := client.ChatCompletion(attemptCtx, req)
	if err != nil {
		return nil, statusOf(err), err
	}
	return resp, 200, nil
}

func (p *Pipeline) attemptEmbedding(ctx context.Context, conn data.Connection, req providers.EmbeddingRequest) (*providers.EmbeddingResponse, int, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	credential, err := p.facade.DecryptConnectionCredential(attemptCtx, conn)
	if err != nil {
		return nil, 0, fmt.Errorf("decrypt connection credential: %w", err)
	}

	ep, ok, err := registry.DialEmbedding(attemptCtx, conn, credential)
	if err != nil {
		return nil, 0, err
	}
	if !ok {
		return nil, 400, fmt.Errorf("connection provider %q does not support embeddings", conn.Provider)
	}

	resp, err := ep.Embed(attemptCtx, req)
	if err != nil {
		return nil, statusOf(err), err
	}
	return resp, 200, nil
}

// statusOf extracts the upstream HTTP status from a provider error, if it
// carries one (providers.StatusCoder) — a network-level error (dial,
// timeout, TLS) has no status and returns 0, which the caller treats as
// always-retryable.
func statusOf(err error) int {
	var sc providers.StatusCoder
	if errors.As(err, &sc) {
		return sc.HTTPStatus()
	}
	return 0
}

func (p *Pipeline) logAttempt(g *data.Graph, connID uuid.UUID, attempt int, path, model string, resp *providers.ChatResponse, status int, err error, start time.Time) {
	if p.reqLog == nil {
		return
	}
	rec := data.RequestLog{
		VirtualKeyID:  g.VirtualKey.ID,
		DeploymentID:  g.Deployment.ID,
		ConnectionID:  &connID,
		AttemptNumber: attempt,
		Method:        "POST",
		Path:          path,
		Model:         model,
		HTTPStatus:    status,
		RequestTS:     start,
		ResponseTS:    time.Now(),
	}
	if err != nil {
		rec.Error = err.Error()
	}
	if resp != nil {
		rec.InputTokens = resp.Usage.InputTokens
		rec.OutputTokens = resp.Usage.OutputTokens
	}
	p.reqLog.Log(rec)
}

func (p *Pipeline) logEmbeddingAttempt(g *data.Graph, connID uuid.UUID, attempt int, path, model string, resp *providers.EmbeddingResponse, status int, err error, start time.Time) {
	if p.reqLog == nil {
		return
	}
	rec := data.RequestLog{
		VirtualKeyID:  g.VirtualKey.ID,
		DeploymentID:  g.Deployment.ID,
		ConnectionID:  &connID,
		AttemptNumber: attempt,
		Method:        "POST",
		Path:          path,
		Model:         model,
		HTTPStatus:    status,
		RequestTS:     start,
		ResponseTS:    time.Now(),
	}
	if err != nil {
		rec.Error = err.Error()
	}
	if resp != nil {
		rec.InputTokens = resp.Usage.InputTokens
		rec.OutputTokens = resp.Usage.OutputTokens
	}
	p.reqLog.Log(rec)
}

func (p *Pipeline) observeAttempt(g *data.Graph, conn data.Connection, dur time.Duration, resp *providers.ChatResponse, status int, err error) {
	if p.metrics == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	var in, out int
	if resp != nil {
		in, out = resp.Usage.InputTokens, resp.Usage.OutputTokens
	}
	p.metrics.ObserveProxyAttempt(g.Deployment.ID.String(), conn.ID.String(), string(conn.Provider), outcome, dur, in, out)
	p.metrics.SetCircuitBreaker(conn.ID.String(), int64(p.cb.State(conn.ID.String())))
}

func (p *Pipeline) observeEmbeddingAttempt(g *data.Graph, conn data.Connection, dur time.Duration, resp *providers.EmbeddingResponse, status int, err error) {
	if p.metrics == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	var in int
	if resp != nil {
		in = resp.Usage.InputTokens
	}
	p.metrics.ObserveProxyAttempt(g.Deployment.ID.String(), conn.ID.String(), string(conn.Provider), outcome, dur, in, 0)
	p.metrics.SetCircuitBreaker(conn.ID.String(), int64(p.cb.State(conn.ID.String())))
}
