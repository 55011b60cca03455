package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveHTTPIncrementsCounterAndHistogram(t *testing.T) {
	r := New()
	r.ObserveHTTP("/v1/chat/completions", "POST", 200, 5*time.Millisecond)

	if got := testutil.ToFloat64(r.httpRequestsTotal.WithLabelValues("/v1/chat/completions", "POST", "200")); got != 1 {
		t.Fatalf("expected 1 request recorded, got %v", got)
	}
}

func TestObserveProxyAttemptRecordsTokens(t *testing.T) {
	r := New()
	r.ObserveProxyAttempt("dep-1", "conn-1", "openai", "success", 10*time.Millisecond, 100, 50)

	if got := testutil.ToFloat64(r.inputTokens.WithLabelValues("dep-1", "conn-1", "openai")); got != 100 {
		t.Fatalf("expected 100 input tokens, got %v", got)
	}
	if got := testutil.ToFloat64(r.outputTokens.WithLabelValues("dep-1", "conn-1", "openai")); got != 50 {
		t.Fatalf("expected 50 output tokens, got %v", got)
	}
}

func TestIncRequestLogDropped(t *testing.T) {
	r := New()
	r.IncRequestLogDropped()
	r.IncRequestLogDropped()
	if got := testutil.ToFloat64(r.requestLogDropped); got != 2 {
		t.Fatalf("expected 2 dropped records, got %v", got)
	}
}

func TestGraphCacheMetrics(t *testing.T) {
	r := New()
	r.IncGraphCacheHit()
	r.IncGraphCacheHit()
	r.IncGraphCacheMiss()
	if got := testutil.ToFloat64(r.graphCacheHits); got != 2 {
		t.Fatalf("expected 2 cache hits, got %v", got)
	}
	if got := testutil.ToFloat64(r.graphCacheMisses); got != 1 {
		t.Fatalf("expected 1 cache miss, got %v", got)
	}
}

func TestSetCircuitBreakerAndRejection(t *testing.T) {
	r := New()
	r.SetCircuitBreaker("conn-1", 1)
	r.RecordCircuitBreakerRejection("conn-1")
	if got := testutil.ToFloat64(r.circuitBreakerState.WithLabelValues("conn-1")); got != 1 {
		t.Fatalf("expected circuit breaker state 1, got %v", got)
	}
	if got := testutil.ToFloat64(r.cbRejections.WithLabelValues("conn-1")); got != 1 {
		t.Fatalf("expected 1 rejection, got %v", got)
	}
}
