package proxy

import (
	"context"
	"encoding/json"
	"time"

	"github.com/fasthttp/router"
	"github.com/valyala/fasthttp"

	"github.com/nulpointcorp/llm-gateway/internal/auth"
	"github.com/nulpointcorp/llm-gateway/internal/providers/openai"
	"github.com/nulpointcorp/llm-gateway/pkg/apierr"
)

// RouteHandler is a fasthttp handler function.
type RouteHandler = fasthttp.RequestHandler

// ManagementRoutes holds optional management API handler functions
// that are registered alongside the proxy routes.
type ManagementRoutes struct {
	Metrics RouteHandler
	// Admin, when set, is mounted under /admin/{path:*} — built by the
	// internal/admin package, which this package does not import, to keep
	// the proxy-facing and admin-facing HTTP surfaces independently
	// testable.
	Admin RouteHandler
}

// Gateway is the proxy-facing HTTP surface (C9): it owns no business logic
// of its own, decoding inbound bodies and delegating to a Pipeline.
type Gateway struct {
	pipeline    *Pipeline
	health      *HealthChecker
	corsOrigins []string

	rateLimiter rpmLimiter
	rateMetrics rateLimitMetrics
}

// rpmLimiter is the narrow slice of ratelimit.RPMLimiter this package
// depends on — declared locally so proxy does not import
// internal/ratelimit at all.
type rpmLimiter interface {
	Allow(ctx context.Context) (bool, error)
}

// rateLimitMetrics is the narrow slice of metrics.Registry used to record
// rate-limit outcomes.
type rateLimitMetrics interface {
	RecordRateLimit(result string)
}

// NewGateway constructs a Gateway. health may be nil, in which case
// /healthz reports a static ok and /readiness always succeeds — used by
// tests that don't care about liveness wiring.
func NewGateway(pipeline *Pipeline, health *HealthChecker, corsOrigins []string) *Gateway {
	return &Gateway{pipeline: pipeline, health: health, corsOrigins: corsOrigins}
}

// SetRateLimiter enables the global requests-per-minute limiter. Pass nil
// to disable it (the default).
func (g *Gateway) SetRateLimiter(rl rpmLimiter, m rateLimitMetrics) {
	g.rateLimiter = rl
	g.rateMetrics = m
}

// Start starts the HTTP server on addr (e.g. ":8080").
// Pass nil for routes to start in proxy-only mode.
func (g *Gateway) Start(addr string) error {
	return g.StartWithRoutes(addr, nil)
}

// StartWithRoutes starts the HTTP server with optional management routes.
func (g *Gateway) StartWithRoutes(addr string, mgmt *ManagementRoutes) error {
	r := router.New()

	r.POST("/v1/chat/completions", g.handleChatCompletions)
	r.POST("/v1/embeddings", g.handleEmbeddings)
	r.POST("/v1/responses", g.handleResponses)
	r.GET("/healthz", g.handleHealth)
	r.GET("/readiness", g.handleReadiness)

	if mgmt != nil {
		if mgmt.Metrics != nil {
			r.GET("/metrics", mgmt.Metrics)
		}
		if mgmt.Admin != nil {
			r.ANY("/admin/{path:*}", mgmt.Admin)
		}
	}

	mws := []func(fasthttp.RequestHandler) fasthttp.RequestHandler{
		recovery,
		requestID,
		timing,
		corsHandler(g.corsOrigins),
		securityHeaders,
	}
	if g.rateLimiter != nil {
		mws = append(mws, rateLimit(g.rateLimiter, g.rateMetrics))
	}
	handler := applyMiddleware(r.Handler, mws...)

	srv := &fasthttp.Server{
		Handler:      handler,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	return srv.ListenAndServe(addr)
}

func (g *Gateway) handleChatCompletions(ctx *fasthttp.RequestCtx) {
	req, err := openai.ParseChatRequest(ctx.PostBody())
	if err != nil {
		apierr.Write(ctx, fasthttp.StatusBadRequest, err.Error(), apierr.TypeInvalidRequest, apierr.CodeInvalidRequest)
		return
	}

	apiKey, ok := bearerFromHeader(ctx)
	if !ok {
		apierr.WriteError(ctx, apierr.New(apierr.KindUnauthenticated, "missing or malformed Authorization header"))
		return
	}

	result, err := g.pipeline.Dispatch(ctx, apiKey, string(ctx.Path()), req)
	if err != nil {
		writePipelineError(ctx, err)
		return
	}
	writeJSON(ctx, result.Response)
}

func (g *Gateway) handleEmbeddings(ctx *fasthttp.RequestCtx) {
	req, err := openai.ParseEmbeddingRequest(ctx.PostBody())
	if err != nil {
		apierr.Write(ctx, fasthttp.StatusBadRequest, err.Error(), apierr.TypeInvalidRequest, apierr.CodeInvalidRequest)
		return
	}

	apiKey, ok := bearerFromHeader(ctx)
	if !ok {
		apierr.WriteError(ctx, apierr.New(apierr.KindUnauthenticated, "missing or malformed Authorization header"))
		return
	}

	result, err := g.pipeline.DispatchEmbedding(ctx, apiKey, string(ctx.Path()), req)
	if err != nil {
		writePipelineError(ctx, err)
		return
	}
	writeJSON(ctx, result.Response)
}

// handleResponses adapts the OpenAI Responses API onto the same chat
// pipeline. Only the common non-streaming subset (a single string or
// message-array `input`, a `model`, and text output) is translated — the
// full Responses wire format (background mode, reasoning items, tool-call
// streaming events, conversation state) is a second API surface of its own
// and out of scope for this build; see DESIGN.md.
func (g *Gateway) handleResponses(ctx *fasthttp.RequestCtx) {
	req, err := parseResponsesRequest(ctx.PostBody())
	if err != nil {
		apierr.Write(ctx, fasthttp.StatusBadRequest, err.Error(), apierr.TypeInvalidRequest, apierr.CodeInvalidRequest)
		return
	}

	apiKey, ok := bearerFromHeader(ctx)
	if !ok {
		apierr.WriteError(ctx, apierr.New(apierr.KindUnauthenticated, "missing or malformed Authorization header"))
		return
	}

	result, err := g.pipeline.Dispatch(ctx, apiKey, string(ctx.Path()), req)
	if err != nil {
		writePipelineError(ctx, err)
		return
	}
	writeJSON(ctx, responsesFromChatResponse(result.Response))
}

func (g *Gateway) handleHealth(ctx *fasthttp.RequestCtx) {
	if g.health == nil {
		writeJSON(ctx, map[string]any{"status": "ok"})
		return
	}
	writeJSON(ctx, g.health.Snapshot())
}

func (g *Gateway) handleReadiness(ctx *fasthttp.RequestCtx) {
	if g.health == nil || g.health.ReadinessOK() {
		writeJSON(ctx, map[string]string{"status": "ok"})
		return
	}
	ctx.SetStatusCode(fasthttp.StatusServiceUnavailable)
	writeJSON(ctx, map[string]string{"status": "unavailable"})
}

// bearerFromHeader extracts the virtual key from the Authorization header
// of a proxy-facing request.
func bearerFromHeader(ctx *fasthttp.RequestCtx) (string, bool) {
	return auth.ExtractBearerToken(string(ctx.Request.Header.Peek("Authorization")))
}

// writePipelineError renders a Pipeline error via the shared apierr
// envelope, preserving an upstream status when the error carries one.
func writePipelineError(ctx *fasthttp.RequestCtx, err error) {
	if apiErr, ok := err.(*apierr.Error); ok {
		apierr.WriteError(ctx, apiErr)
		return
	}
	apierr.WriteError(ctx, apierr.New(apierr.KindInternalError, err.Error()))
}

func writeJSON(ctx *fasthttp.RequestCtx, v any) {
	ctx.SetContentType("application/json")
	body, _ := json.Marshal(v)
	ctx.SetBody(body)
}
