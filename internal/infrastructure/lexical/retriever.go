package lexical

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/kirillkom/plc-fault-explainer/internal/core/domain"
	"github.com/kirillkom/plc-fault-explainer/internal/core/ports"
)

var errNotBuilt = errors.New("sparse index has not been built")

type snapshot struct {
	index *Index
	err   error
}

// Retriever serves BM25 searches from the last built snapshot. Searches never lock;
// Rebuild builds a fresh index and swaps it in.
type Retriever struct {
	mu      sync.Mutex
	current atomic.Pointer[snapshot]
}

func NewRetriever() *Retriever {
	return &Retriever{}
}

// Rebuild reads the whole store once. On failure the retriever stays unavailable
// until the next successful rebuild.
func (r *Retriever) Rebuild(ctx context.Context, source ports.ChunkSource) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	chunks, err := source.AllChunks(ctx)
	if err != nil {
		err = fmt.Errorf("load chunks: %w", err)
		r.current.Store(&snapshot{err: err})
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		r.current.Store(&snapshot{err: err})
		return 0, err
	}

	index := Build(chunks)
	r.current.Store(&snapshot{index: index})
	return index.Len(), nil
}

// Invalidate drops the snapshot. Searches fail until the next Rebuild.
func (r *Retriever) Invalidate() {
	r.current.Store(nil)
}

func (r *Retriever) SearchSparse(ctx context.Context, query string, k int) ([]domain.ScoredChunk, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	snap := r.current.Load()
	if snap == nil {
		return nil, domain.WrapError(domain.ErrRetrievalUnavailable, "search sparse", errNotBuilt)
	}
	if snap.err != nil {
		return nil, domain.WrapError(domain.ErrRetrievalUnavailable, "search sparse", snap.err)
	}
	return snap.index.Search(query, k), nil
}

// Size reports how many chunks the current snapshot holds.
func (r *Retriever) Size() int {
	snap := r.current.Load()
	if snap == nil || snap.index == nil {
		return 0
	}
	return snap.index.Len()
}
