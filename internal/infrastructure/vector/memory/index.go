// Package memory is an in-process cosine VectorIndex for STORE_BACKEND=memory and tests.
package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/kirillkom/plc-fault-explainer/internal/core/domain"
)

type entry struct {
	chunk  domain.Chunk
	vector []float32
	norm   float64
}

type Index struct {
	mu      sync.RWMutex
	entries []entry
	byID    map[string]int
}

func NewIndex() *Index {
	return &Index{byID: make(map[string]int)}
}

func (x *Index) Upsert(_ context.Context, chunks []domain.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("chunks/vectors mismatch")
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	for i, chunk := range chunks {
		vec := append([]float32(nil), vectors[i]...)
		e := entry{chunk: chunk, vector: vec, norm: norm(vec)}
		if pos, ok := x.byID[chunk.ID]; ok && chunk.ID != "" {
			x.entries[pos] = e
			continue
		}
		x.byID[chunk.ID] = len(x.entries)
		x.entries = append(x.entries, e)
	}
	return nil
}

func (x *Index) Search(_ context.Context, queryVector []float32, limit int) ([]domain.ScoredChunk, error) {
	if limit <= 0 {
		return []domain.ScoredChunk{}, nil
	}
	queryNorm := norm(queryVector)

	x.mu.RLock()
	scored := make([]domain.ScoredChunk, 0, len(x.entries))
	for _, e := range x.entries {
		if len(e.vector) != len(queryVector) {
			continue
		}
		scored = append(scored, domain.ScoredChunk{
			Chunk: e.chunk,
			Score: cosine(queryVector, queryNorm, e.vector, e.norm),
		})
	}
	x.mu.RUnlock()

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].Seq < scored[j].Seq
	})
	if len(scored) > limit {
		scored = scored[:limit]
	}
	for i := range scored {
		scored[i].Rank = i + 1
	}
	return scored, nil
}

func (x *Index) Reset(context.Context) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.entries = nil
	x.byID = make(map[string]int)
	return nil
}

func norm(v []float32) float64 {
	var sum float64
	for _, f := range v {
		sum += float64(f) * float64(f)
	}
	return math.Sqrt(sum)
}

func cosine(a []float32, normA float64, b []float32, normB float64) float64 {
	if normA == 0 || normB == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot / (normA * normB)
}
