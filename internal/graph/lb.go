package graph

import (
	"fmt"
	"hash/fnv"
	"math/rand"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/nulpointcorp/llm-gateway/internal/data"
	"github.com/nulpointcorp/llm-gateway/pkg/apierr"
)

// quantum is the width of the stability window RoundRobin and Weighted
// both anchor to: concurrent resolutions within the same quantum observe
// the same ordering, and the anchor only moves once the quantum rolls
// over.
const quantum = 1 * time.Second

// order returns candidates reordered per the deployment's load balancing
// strategy. An unrecognised strategy fails closed with InternalError
// rather than silently falling back to an arbitrary order (Open Question
// O2 — see DESIGN.md).
func order(strategy data.LoadBalancingStrategy, deploymentID, vkID uuid.UUID, now time.Time, candidates []data.GraphCandidate) ([]data.GraphCandidate, error) {
	switch strategy {
	case data.LBRoundRobin:
		return roundRobinOrder(deploymentID, candidates, now), nil
	case data.LBWeighted:
		return weightedOrder(candidates, vkID, now), nil
	default:
		return nil, apierr.New(apierr.KindInternalError, fmt.Sprintf("unsupported load balancing strategy %q", strategy))
	}
}

// quantumBucket divides now into quantum-wide windows, giving every
// resolution within the same window an identical anchor.
func quantumBucket(now time.Time) int64 {
	return now.UnixNano() / int64(quantum)
}

// hashSeed combines id with a quantum bucket into a stable uint64 — the
// same (id, bucket) pair always hashes to the same value, so every
// resolver process and every concurrent request within a quantum agrees
// on the anchor without any shared mutable state.
func hashSeed(id uuid.UUID, bucket int64) uint64 {
	h := fnv.New64a()
	h.Write(id[:])
	var buf [8]byte
	for i := range buf {
		buf[i] = byte(bucket >> (8 * i))
	}
	h.Write(buf[:])
	return h.Sum64()
}

// roundRobinOrder rotates the starting connection using a stable anchor
// derived from (deployment_id, now/quantum) rather than a mutable cursor
// — every request in the same quantum, on any instance, picks the same
// starting candidate; the anchor only advances once the quantum rolls
// over.
func roundRobinOrder(deploymentID uuid.UUID, candidates []data.GraphCandidate, now time.Time) []data.GraphCandidate {
	if len(candidates) <= 1 {
		return candidates
	}

	seed := hashSeed(deploymentID, quantumBucket(now))
	start := int(seed % uint64(len(candidates)))
	out := make([]data.GraphCandidate, len(candidates))
	for i := range candidates {
		out[i] = candidates[(start+i)%len(candidates)]
	}
	return out
}

// weightedOrder produces a weighted shuffle seeded from each candidate's
// ConnectionDeployment.Weight: repeatedly draws without replacement from
// the remaining pool, weighted by Weight (a non-positive weight is treated
// as 1 so a mis-configured row never excludes a connection outright). The
// draw sequence is deterministic within a quantum — the PRNG is seeded
// from (vk_id, now/quantum) instead of the global generator, so the same
// virtual key resolving twice in the same window gets the same order.
func weightedOrder(candidates []data.GraphCandidate, vkID uuid.UUID, now time.Time) []data.GraphCandidate {
	if len(candidates) <= 1 {
		return candidates
	}

	rng := rand.New(rand.NewSource(int64(hashSeed(vkID, quantumBucket(now)))))

	pool := make([]data.GraphCandidate, len(candidates))
	copy(pool, candidates)

	out := make([]data.GraphCandidate, 0, len(pool))
	for len(pool) > 0 {
		total := 0
		weights := make([]int, len(pool))
		for i, c := range pool {
			w := c.ConnectionDeployment.Weight
			if w <= 0 {
				w = 1
			}
			weights[i] = w
			total += w
		}

		pick := rng.Intn(total)
		idx := 0
		for acc := 0; idx < len(pool); idx++ {
			acc += weights[idx]
			if pick < acc {
				break
			}
		}
		if idx >= len(pool) {
			idx = len(pool) - 1
		}

		out = append(out, pool[idx])
		pool = append(pool[:idx], pool[idx+1:]...)
	}
	return out
}

// stableIDOrder returns candidates sorted by connection ID, a reproducible
// ordering independent of the quantum-keyed anchor. It has no caller.
func stableIDOrder(candidates []data.GraphCandidate) []data.GraphCandidate {
	out := make([]data.GraphCandidate, len(candidates))
	copy(out, candidates)
	sort.Slice(out, func(i, j int) bool {
		return out[i].Connection.ID.String() < out[j].Connection.ID.String()
	})
	return out
}
