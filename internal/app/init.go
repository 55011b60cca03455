package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nulpointcorp/llm-gateway/internal/admin"
	"github.com/nulpointcorp/llm-gateway/internal/auth"
	npCache "github.com/nulpointcorp/llm-gateway/internal/cache"
	"github.com/nulpointcorp/llm-gateway/internal/data/postgres"
	"github.com/nulpointcorp/llm-gateway/internal/graph"
	"github.com/nulpointcorp/llm-gateway/internal/metrics"
	"github.com/nulpointcorp/llm-gateway/internal/proxy"
	"github.com/nulpointcorp/llm-gateway/internal/ratelimit"
	"github.com/nulpointcorp/llm-gateway/internal/requestlog"
)

// initInfra opens the Postgres facade and, when configured, an optional
// Redis connection shared by the remote cache tier and the RPM limiter.
func (a *App) initInfra(ctx context.Context) error {
	facade, err := postgres.New(ctx, postgres.Config{
		Datasource:        a.cfg.Database.Postgres.Datasource,
		TablePrefix:       a.cfg.Database.Postgres.TablePrefix,
		ApplicationSecret: a.cfg.ApplicationSecret,
	})
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	a.facade = facade
	a.log.Info("postgres connected")

	if a.cfg.Cache.Redis.URL != "" {
		a.log.Info("connecting to redis", slog.String("url", redactURL(a.cfg.Cache.Redis.URL)))

		rdb, err := connectRedis(ctx, a.cfg.Cache.Redis.URL)
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		a.rdb = rdb
		a.log.Info("redis connected")
	}

	return nil
}

// initServices creates the cache tiers, the metrics registry, the circuit
// breaker, and the async request logger.
func (a *App) initServices(ctx context.Context) error {
	a.localCache = npCache.NewMemoryCache(ctx)

	if a.rdb != nil {
		a.remoteCache = npCache.NewExactCacheFromClient(a.rdb)
	}

	a.prom = metrics.New()
	a.prom.SetBuildInfo(a.version)

	a.cb = proxy.NewCircuitBreakerWithConfig(proxy.CBConfig{
		ErrorThreshold:  a.cfg.CircuitBreaker.ErrorThreshold,
		TimeWindow:      a.cfg.CircuitBreaker.TimeWindow,
		HalfOpenTimeout: a.cfg.CircuitBreaker.HalfOpenTimeout,
	})

	if a.cfg.Request.ClickHouse.DSN != "" {
		reqLogger, err := requestlog.New(ctx, a.cfg.Request.ClickHouse.DSN, a.cfg.Request.ChannelCapacity, a.log,
			requestlog.WithDropCounter(a.prom),
			requestlog.WithTablePrefix(a.cfg.Database.Postgres.TablePrefix),
		)
		if err != nil {
			return fmt.Errorf("request logger: %w", err)
		}
		a.reqLogger = reqLogger
		a.log.Info("request logger connected to clickhouse")
	} else {
		a.log.Warn("request_log.clickhouse.dsn not set — request logging disabled")
	}

	return nil
}

// initGateway wires together the graph resolver, the proxy pipeline, the
// health checker and the HTTP routes.
func (a *App) initGateway(ctx context.Context) error {
	a.resolver = graph.New(a.facade, a.localCache, a.remoteCache, graph.WithMetrics(a.prom))

	pipelineOpts := []proxy.PipelineOption{
		proxy.WithProviderTimeout(a.cfg.Failover.ProviderTimeout),
	}
	if a.reqLogger != nil {
		pipelineOpts = append(pipelineOpts, proxy.WithRequestLogger(a.reqLogger))
	}
	pipeline := proxy.NewPipeline(a.facade, a.resolver, a.cb, a.prom, pipelineOpts...)

	cacheReady := func() bool { return true }
	if a.remoteCache != nil {
		cacheReady = redisPinger(a.baseCtx, a.rdb)
	}
	dbReady := func() bool { return a.facade.Ping(a.baseCtx) == nil }

	a.health = proxy.NewHealthChecker(ctx, cacheReady, dbReady)

	gw := proxy.NewGateway(pipeline, a.health, a.cfg.CORSOrigins)

	if a.rdb != nil && a.cfg.RateLimit.RPMLimit > 0 {
		a.rpmLimiter = ratelimit.NewRPMLimiter(a.rdb, a.cfg.RateLimit.RPMLimit)
		gw.SetRateLimiter(a.rpmLimiter, a.prom)
		a.log.Info("rate limiting enabled", slog.Int("rpm_limit", a.cfg.RateLimit.RPMLimit))
	}

	a.gw = gw

	resolver := auth.NewResolver(a.facade, a.cfg.MasterKeys, a.cfg.ApplicationSecret)
	adminSurface := admin.New(a.facade, resolver, a.cfg.ApplicationSecret, a.log)

	a.mgmt = &proxy.ManagementRoutes{
		Metrics: a.prom.Handler(),
		Admin:   adminSurface.Handler(),
	}

	return nil
}
