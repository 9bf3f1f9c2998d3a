// Package docstore joins the chunk catalog and the vector index into one append-only store.
package docstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/kirillkom/plc-fault-explainer/internal/core/domain"
	"github.com/kirillkom/plc-fault-explainer/internal/core/ports"
)

type Store struct {
	catalog  ports.ChunkCatalog
	vectors  ports.VectorIndex
	embedder ports.Embedder
	closers  []io.Closer

	// mu serializes batches inside this process; the catalog serializes across processes.
	mu sync.Mutex
}

func New(catalog ports.ChunkCatalog, vectors ports.VectorIndex, embedder ports.Embedder, closers ...io.Closer) *Store {
	return &Store{
		catalog:  catalog,
		vectors:  vectors,
		embedder: embedder,
		closers:  closers,
	}
}

// AddChunks stores one batch atomically and returns how many chunks were kept.
// Blank chunks are dropped.
func (s *Store) AddChunks(ctx context.Context, chunks []domain.Chunk) (int, error) {
	kept := make([]domain.Chunk, 0, len(chunks))
	for _, chunk := range chunks {
		if strings.TrimSpace(chunk.Content) == "" {
			continue
		}
		if chunk.Metadata == nil {
			chunk.Metadata = domain.Metadata{}
		}
		kept = append(kept, chunk)
	}
	if len(kept) == 0 {
		return 0, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored, err := s.catalog.Append(ctx, kept, s.indexVectors)
	if err != nil {
		return 0, fmt.Errorf("append chunks: %w", err)
	}
	return len(stored), nil
}

func (s *Store) indexVectors(ctx context.Context, stored []domain.Chunk) error {
	texts := make([]string, 0, len(stored))
	for _, chunk := range stored {
		texts = append(texts, chunk.Content)
	}
	vectors, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed chunks: %w", err)
	}
	if len(vectors) != len(stored) {
		return fmt.Errorf("embed chunks: expected %d vectors, got %d", len(stored), len(vectors))
	}
	if err := s.vectors.Upsert(ctx, stored, vectors); err != nil {
		return fmt.Errorf("upsert vectors: %w", err)
	}
	return nil
}

// AllChunks returns every stored chunk in Seq order.
func (s *Store) AllChunks(ctx context.Context) ([]domain.Chunk, error) {
	chunks, err := s.catalog.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list chunks: %w", err)
	}
	return chunks, nil
}

func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.catalog.Truncate(ctx); err != nil {
		return fmt.Errorf("truncate catalog: %w", err)
	}
	if err := s.vectors.Reset(ctx); err != nil {
		return fmt.Errorf("reset vector index: %w", err)
	}
	return nil
}

// SearchDense embeds the query and ranks chunks by cosine similarity.
func (s *Store) SearchDense(ctx context.Context, query string, k int) ([]domain.ScoredChunk, error) {
	if k <= 0 {
		return []domain.ScoredChunk{}, nil
	}
	vector, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, domain.WrapError(domain.ErrRetrievalUnavailable, "embed query", err)
	}
	results, err := s.vectors.Search(ctx, vector, k)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, domain.WrapError(domain.ErrRetrievalUnavailable, "vector search", err)
	}
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

func (s *Store) Close() error {
	var errs []error
	for _, c := range s.closers {
		if c == nil {
			continue
		}
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
