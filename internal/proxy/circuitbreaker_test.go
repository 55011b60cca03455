package proxy

import (
	"testing"
	"time"
)

func TestCircuitBreakerAllowsUnknownConnectionClosed(t *testing.T) {
	cb := NewCircuitBreaker()
	if !cb.Allow("conn-unknown") {
		t.Fatal("expected a never-seen connection to start closed (allowed)")
	}
}

func TestCircuitBreakerTripsAfterThreshold(t *testing.T) {
	cb := NewCircuitBreakerWithConfig(CBConfig{ErrorThreshold: 3, TimeWindow: time.Minute, HalfOpenTimeout: time.Hour})
	for i := 0; i < 3; i++ {
		cb.RecordFailure("conn-1")
	}
	if cb.State("conn-1") != cbOpen {
		t.Fatalf("expected open after %d failures, got state %v", 3, cb.State("conn-1"))
	}
	if cb.Allow("conn-1") {
		t.Fatal("expected open breaker to reject")
	}
}

func TestCircuitBreakerHalfOpenAllowsOneProbe(t *testing.T) {
	cb := NewCircuitBreakerWithConfig(CBConfig{ErrorThreshold: 1, TimeWindow: time.Minute, HalfOpenTimeout: 1 * time.Millisecond})
	cb.RecordFailure("conn-1")
	time.Sleep(5 * time.Millisecond)

	if !cb.Allow("conn-1") {
		t.Fatal("expected half-open probe to be allowed")
	}
	if cb.Allow("conn-1") {
		t.Fatal("expected second concurrent request to be rejected while probe in flight")
	}
}

func TestCircuitBreakerRecordSuccessCloses(t *testing.T) {
	cb := NewCircuitBreakerWithConfig(CBConfig{ErrorThreshold: 1, TimeWindow: time.Minute, HalfOpenTimeout: time.Millisecond})
	cb.RecordFailure("conn-1")
	time.Sleep(5 * time.Millisecond)
	cb.Allow("conn-1") // move to half-open, consume probe slot
	cb.RecordSuccess("conn-1")

	if cb.State("conn-1") != cbClosed {
		t.Fatalf("expected closed after success, got %v", cb.State("conn-1"))
	}
	if !cb.Allow("conn-1") {
		t.Fatal("expected closed breaker to allow")
	}
}

func TestCircuitBreakerStateLabel(t *testing.T) {
	cb := NewCircuitBreakerWithConfig(CBConfig{ErrorThreshold: 1, TimeWindow: time.Minute, HalfOpenTimeout: time.Hour})
	if cb.StateLabel("conn-1") != "closed" {
		t.Fatalf("expected closed label, got %q", cb.StateLabel("conn-1"))
	}
	cb.RecordFailure("conn-1")
	if cb.StateLabel("conn-1") != "open" {
		t.Fatalf("expected open label, got %q", cb.StateLabel("conn-1"))
	}
}

func TestCircuitBreakerWindowResetsAfterTimeWindow(t *testing.T) {
	cb := NewCircuitBreakerWithConfig(CBConfig{ErrorThreshold: 3, TimeWindow: 5 * time.Millisecond, HalfOpenTimeout: time.Hour})
	cb.RecordFailure("conn-1")
	cb.RecordFailure("conn-1")
	time.Sleep(10 * time.Millisecond)
	cb.RecordFailure("conn-1")

	if cb.State("conn-1") != cbClosed {
		t.Fatalf("expected window reset to keep breaker closed, got %v", cb.State("conn-1"))
	}
}
