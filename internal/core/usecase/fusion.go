package usecase

import (
	"math"
	"sort"

	"github.com/kirillkom/plc-fault-explainer/internal/core/domain"
)

const defaultRRFK = 60

// FusionOptions configures weighted reciprocal-rank fusion. A chunk at rank r in a list
// scores 1/(RRFK+r) for that list; absent chunks score 0.
type FusionOptions struct {
	Weights domain.FusionWeights
	RRFK    int
}

type fusedCandidate struct {
	chunk    domain.Chunk
	key      string
	score    float64
	bestRank int
}

// Fuse merges dense and sparse rankings into at most k chunks. When one list is empty
// the other passes through in its own order as the sole input. Weights are expected to
// pass FusionWeights.Validate; a negative, NaN or infinite weight counts as 0.
func Fuse(dense, sparse []domain.ScoredChunk, opts FusionOptions, k int) []domain.ScoredChunk {
	if k <= 0 || (len(dense) == 0 && len(sparse) == 0) {
		return []domain.ScoredChunk{}
	}

	rrfK := opts.RRFK
	if rrfK <= 0 {
		rrfK = defaultRRFK
	}
	weights := domain.FusionWeights{Dense: usableWeight(opts.Weights.Dense), Sparse: usableWeight(opts.Weights.Sparse)}
	switch {
	case len(sparse) == 0:
		weights = domain.FusionWeights{Dense: 1}
	case len(dense) == 0:
		weights = domain.FusionWeights{Sparse: 1}
	}

	acc := make(map[string]*fusedCandidate, len(dense)+len(sparse))
	addList := func(chunks []domain.ScoredChunk, weight float64) {
		seen := make(map[string]struct{}, len(chunks))
		for i, chunk := range chunks {
			key := chunk.Key()
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}

			rank := i + 1
			candidate, ok := acc[key]
			if !ok {
				candidate = &fusedCandidate{chunk: chunk.Chunk, key: key, bestRank: rank}
				acc[key] = candidate
			}
			if rank < candidate.bestRank {
				candidate.bestRank = rank
			}
			candidate.chunk = preferRicherChunk(candidate.chunk, chunk.Chunk)
			candidate.score += weight / float64(rrfK+rank)
		}
	}

	addList(dense, weights.Dense)
	addList(sparse, weights.Sparse)

	candidates := make([]*fusedCandidate, 0, len(acc))
	for _, c := range acc {
		candidates = append(candidates, c)
	}

	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.score != b.score {
			return a.score > b.score
		}
		if a.bestRank != b.bestRank {
			return a.bestRank < b.bestRank
		}
		if a.chunk.Seq != b.chunk.Seq {
			return a.chunk.Seq < b.chunk.Seq
		}
		return a.key < b.key
	})

	candidates = trimCandidates(candidates, k)
	out := make([]domain.ScoredChunk, 0, len(candidates))
	for i, c := range candidates {
		out = append(out, domain.ScoredChunk{Chunk: c.chunk, Score: c.score, Rank: i + 1})
	}
	return out
}

func trimCandidates[T any](items []T, limit int) []T {
	if limit <= 0 || len(items) <= limit {
		return items
	}
	return items[:limit]
}

// preferRicherChunk keeps whichever copy carries store identity. Dense hits from an
// external index may come back without Seq or ID.
func preferRicherChunk(current, candidate domain.Chunk) domain.Chunk {
	if current.ID == "" && candidate.ID != "" {
		current.ID = candidate.ID
	}
	if current.Seq == 0 && candidate.Seq != 0 {
		current.Seq = candidate.Seq
	}
	return current
}

func usableWeight(w float64) float64 {
	if math.IsNaN(w) || math.IsInf(w, 0) || w < 0 {
		return 0
	}
	return w
}
