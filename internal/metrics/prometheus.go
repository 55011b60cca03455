// Package metrics provides a Prometheus metrics registry for the gateway.
//
// All metrics are scoped to a private registry (not the global default) so
// they don't interfere with host-level metrics when embedded in other
// applications. The /metrics HTTP handler is exposed via Handler().
package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

// Registry holds all exported metrics.
type Registry struct {
	reg *prometheus.Registry

	// llmur_inflight_requests
	inFlight prometheus.Gauge

	// llmur_http_requests_total{path,method,status}
	httpRequestsTotal *prometheus.CounterVec

	// llmur_http_request_duration_seconds{path,method}
	httpDuration *prometheus.HistogramVec

	// llmur_proxy_requests_total{deployment_id,connection_id,provider,outcome}
	proxyRequestsTotal *prometheus.CounterVec

	// llmur_proxy_request_duration_seconds{deployment_id,connection_id,provider}
	proxyDuration *prometheus.HistogramVec

	// llmur_proxy_input_tokens{deployment_id,connection_id,provider}
	inputTokens *prometheus.CounterVec

	// llmur_proxy_output_tokens{deployment_id,connection_id,provider}
	outputTokens *prometheus.CounterVec

	// llmur_request_log_dropped_total
	requestLogDropped prometheus.Counter

	// llmur_graph_cache_hits_total / llmur_graph_cache_misses_total
	graphCacheHits   prometheus.Counter
	graphCacheMisses prometheus.Counter

	// llmur_circuit_breaker_state{connection_id} — 0 closed, 1 open, 2 half-open
	circuitBreakerState *prometheus.GaugeVec

	// llmur_circuit_breaker_rejections_total{connection_id}
	cbRejections *prometheus.CounterVec

	// llmur_failover_events_total{deployment_id,from_connection_id,to_connection_id,reason}
	failoverEvents *prometheus.CounterVec

	// llmur_connection_health{connection_id}
	connectionHealth *prometheus.GaugeVec

	// llmur_ratelimit_total{result}
	rateLimitTotal *prometheus.CounterVec

	// llmur_build_info{version}
	buildInfo *prometheus.GaugeVec

	cbMu        sync.Mutex
	lastCBState map[string]float64

	metricsHandler fasthttp.RequestHandler
}

func New() *Registry {
	reg := prometheus.NewRegistry()

	// Baseline runtime metrics even with a private registry.
	reg.MustRegister(prometheus.NewGoCollector())
	reg.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	r := &Registry{
		reg:         reg,
		lastCBState: make(map[string]float64),

		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "llmur_inflight_requests",
			Help: "Current number of in-flight HTTP requests handled by the gateway",
		}),

		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "llmur_http_requests_total",
				Help: "Total number of HTTP requests handled by the gateway",
			},
			[]string{"path", "method", "status"},
		),

		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "llmur_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds (end-to-end, includes cache + upstream)",
				Buckets: []float64{0.001, 0.002, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 30, 60},
			},
			[]string{"path", "method"},
		),

		proxyRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "llmur_proxy_requests_total",
				Help: "Total proxy attempts against one connection, by outcome",
			},
			[]string{"deployment_id", "connection_id", "provider", "outcome"},
		),

		proxyDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "llmur_proxy_request_duration_seconds",
				Help:    "Duration of one upstream connection attempt in seconds",
				Buckets: []float64{0.001, 0.002, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 30, 60},
			},
			[]string{"deployment_id", "connection_id", "provider"},
		),

		inputTokens: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "llmur_proxy_input_tokens",
				Help: "Total input tokens billed against one connection",
			},
			[]string{"deployment_id", "connection_id", "provider"},
		),

		outputTokens: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "llmur_proxy_output_tokens",
				Help: "Total output tokens billed against one connection",
			},
			[]string{"deployment_id", "connection_id", "provider"},
		),

		requestLogDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "llmur_request_log_dropped_total",
			Help: "Request log records dropped because the async logger's channel was full",
		}),

		graphCacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "llmur_graph_cache_hits_total",
			Help: "Graph resolver cache hits across both tiers",
		}),

		graphCacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "llmur_graph_cache_misses_total",
			Help: "Graph resolver cache misses requiring a Postgres resolution",
		}),

		circuitBreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "llmur_circuit_breaker_state",
				Help: "Circuit breaker state per connection (0=closed,1=open,2=half-open)",
			},
			[]string{"connection_id"},
		),

		cbRejections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "llmur_circuit_breaker_rejections_total",
				Help: "Connection attempts skipped because that connection's circuit breaker was open",
			},
			[]string{"connection_id"},
		),

		failoverEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "llmur_failover_events_total",
				Help: "Failover events between connections within one deployment's candidate list",
			},
			[]string{"deployment_id", "from_connection_id", "to_connection_id", "reason"},
		),

		connectionHealth: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "llmur_connection_health",
				Help: "Connection health status from the background health checker (1=ok, 0=degraded)",
			},
			[]string{"connection_id"},
		),

		rateLimitTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "llmur_ratelimit_total",
				Help: "Rate limit decisions",
			},
			[]string{"result"},
		),

		buildInfo: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "llmur_build_info",
				Help: "Build information",
			},
			[]string{"version"},
		),
	}

	reg.MustRegister(
		r.inFlight,
		r.httpRequestsTotal,
		r.httpDuration,
		r.proxyRequestsTotal,
		r.proxyDuration,
		r.inputTokens,
		r.outputTokens,
		r.requestLogDropped,
		r.graphCacheHits,
		r.graphCacheMisses,
		r.circuitBreakerState,
		r.cbRejections,
		r.failoverEvents,
		r.connectionHealth,
		r.rateLimitTotal,
		r.buildInfo,
	)

	h := promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	r.metricsHandler = fasthttpadaptor.NewFastHTTPHandler(h)

	return r
}

func (r *Registry) IncInFlight() { r.inFlight.Inc() }
func (r *Registry) DecInFlight() { r.inFlight.Dec() }

// ObserveHTTP records end-to-end HTTP metrics for one handled request.
func (r *Registry) ObserveHTTP(path, method string, statusCode int, dur time.Duration) {
	status := strconv.Itoa(statusCode)
	r.httpRequestsTotal.WithLabelValues(path, method, status).Inc()
	r.httpDuration.WithLabelValues(path, method).Observe(dur.Seconds())
}

// ObserveProxyAttempt records one upstream connection attempt: its outcome
// label, latency, and any token usage it returned.
func (r *Registry) ObserveProxyAttempt(deploymentID, connectionID, provider, outcome string, dur time.Duration, inputTok, outputTok int) {
	r.proxyRequestsTotal.WithLabelValues(deploymentID, connectionID, provider, outcome).Inc()
	r.proxyDuration.WithLabelValues(deploymentID, connectionID, provider).Observe(dur.Seconds())
	if inputTok > 0 {
		r.inputTokens.WithLabelValues(deploymentID, connectionID, provider).Add(float64(inputTok))
	}
	if outputTok > 0 {
		r.outputTokens.WithLabelValues(deploymentID, connectionID, provider).Add(float64(outputTok))
	}
}

// IncRequestLogDropped records one RequestLog record dropped by the
// non-blocking async logger because its channel was full.
func (r *Registry) IncRequestLogDropped() { r.requestLogDropped.Inc() }

// IncGraphCacheHit and IncGraphCacheMiss implement graph.CacheMetrics.
func (r *Registry) IncGraphCacheHit()  { r.graphCacheHits.Inc() }
func (r *Registry) IncGraphCacheMiss() { r.graphCacheMisses.Inc() }

// RecordFailover records a failover from one connection to the next within
// the same deployment's candidate list.
func (r *Registry) RecordFailover(deploymentID, fromConnectionID, toConnectionID, reason string) {
	r.failoverEvents.WithLabelValues(deploymentID, fromConnectionID, toConnectionID, reason).Inc()
}

func (r *Registry) RecordRateLimit(result string) {
	r.rateLimitTotal.WithLabelValues(result).Inc()
}

func (r *Registry) SetConnectionHealth(connectionID string, ok bool) {
	if ok {
		r.connectionHealth.WithLabelValues(connectionID).Set(1)
		return
	}
	r.connectionHealth.WithLabelValues(connectionID).Set(0)
}

func (r *Registry) SetBuildInfo(version string) {
	// Gauge is used so the time series always exists.
	r.buildInfo.WithLabelValues(version).Set(1)
}

// SetCircuitBreaker sets the circuit breaker state gauge for one connection.
func (r *Registry) SetCircuitBreaker(connectionID string, state int64) {
	r.circuitBreakerState.WithLabelValues(connectionID).Set(float64(state))
}

func (r *Registry) RecordCircuitBreakerRejection(connectionID string) {
	r.cbRejections.WithLabelValues(connectionID).Inc()
}

func (r *Registry) Handler() fasthttp.RequestHandler {
	return r.metricsHandler
}

func (r *Registry) PromRegistry() *prometheus.Registry { return r.reg }
