package graph

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/nulpointcorp/llm-gateway/internal/data"
)

func makeCandidates(n int) []data.GraphCandidate {
	out := make([]data.GraphCandidate, n)
	for i := range out {
		connID := uuid.New()
		out[i] = data.GraphCandidate{
			ConnectionDeployment: data.ConnectionDeployment{ConnectionID: connID, Weight: 1, Enabled: true},
			Connection:           data.Connection{ID: connID, Provider: data.ProviderOpenAI},
		}
	}
	return out
}

func TestRoundRobinOrderStableWithinQuantum(t *testing.T) {
	deploymentID := uuid.New()
	candidates := makeCandidates(4)
	now := time.Unix(1_700_000_000, 0)

	first := roundRobinOrder(deploymentID, candidates, now)
	for i := 0; i < 10; i++ {
		got := roundRobinOrder(deploymentID, candidates, now.Add(time.Duration(i)*time.Millisecond))
		if len(got) != len(first) {
			t.Fatalf("length mismatch")
		}
		for j := range got {
			if got[j].Connection.ID != first[j].Connection.ID {
				t.Fatalf("order changed within the same quantum at index %d", j)
			}
		}
	}
}

func TestRoundRobinOrderVariesAcrossQuanta(t *testing.T) {
	deploymentID := uuid.New()
	candidates := makeCandidates(4)

	seen := map[int]bool{}
	for i := 0; i < 20; i++ {
		now := time.Unix(1_700_000_000+int64(i), 0)
		got := roundRobinOrder(deploymentID, candidates, now)
		for j, c := range candidates {
			if got[0].Connection.ID == c.Connection.ID {
				seen[j] = true
			}
		}
	}
	if len(seen) < 2 {
		t.Fatalf("expected the starting candidate to vary across quanta, only saw %d distinct starts", len(seen))
	}
}

func TestRoundRobinOrderDifferentDeploymentsDiffer(t *testing.T) {
	candidates := makeCandidates(5)
	now := time.Unix(1_700_000_000, 0)

	a := roundRobinOrder(uuid.New(), candidates, now)
	b := roundRobinOrder(uuid.New(), candidates, now)

	same := true
	for i := range a {
		if a[i].Connection.ID != b[i].Connection.ID {
			same = false
			break
		}
	}
	if same {
		t.Skip("two random deployment ids happened to hash to the same rotation; not a failure")
	}
}

func TestWeightedOrderStableWithinQuantum(t *testing.T) {
	vkID := uuid.New()
	candidates := makeCandidates(5)
	now := time.Unix(1_700_000_000, 0)

	first := weightedOrder(candidates, vkID, now)
	for i := 0; i < 10; i++ {
		got := weightedOrder(candidates, vkID, now.Add(time.Duration(i)*time.Millisecond))
		for j := range got {
			if got[j].Connection.ID != first[j].Connection.ID {
				t.Fatalf("weighted order changed within the same quantum at index %d", j)
			}
		}
	}
}

func TestWeightedOrderVariesAcrossQuanta(t *testing.T) {
	vkID := uuid.New()
	candidates := makeCandidates(6)

	orders := map[string]bool{}
	for i := 0; i < 20; i++ {
		now := time.Unix(1_700_000_000+int64(i), 0)
		got := weightedOrder(candidates, vkID, now)
		key := ""
		for _, c := range got {
			key += c.Connection.ID.String()
		}
		orders[key] = true
	}
	if len(orders) < 2 {
		t.Fatalf("expected weighted order to vary across quanta, got a single order across 20 quanta")
	}
}

func TestWeightedOrderIncludesEveryCandidateExactlyOnce(t *testing.T) {
	vkID := uuid.New()
	candidates := makeCandidates(8)
	now := time.Unix(1_700_000_000, 0)

	got := weightedOrder(candidates, vkID, now)
	if len(got) != len(candidates) {
		t.Fatalf("expected %d candidates, got %d", len(candidates), len(got))
	}
	seen := map[uuid.UUID]bool{}
	for _, c := range got {
		if seen[c.Connection.ID] {
			t.Fatalf("candidate %s appeared twice", c.Connection.ID)
		}
		seen[c.Connection.ID] = true
	}
}

func TestOrderSingleCandidateIsNoop(t *testing.T) {
	candidates := makeCandidates(1)
	now := time.Unix(1_700_000_000, 0)

	if got := roundRobinOrder(uuid.New(), candidates, now); len(got) != 1 {
		t.Fatalf("expected 1 candidate back, got %d", len(got))
	}
	if got := weightedOrder(candidates, uuid.New(), now); len(got) != 1 {
		t.Fatalf("expected 1 candidate back, got %d", len(got))
	}
}
