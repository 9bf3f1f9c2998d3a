package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/kirillkom/plc-fault-explainer/internal/core/domain"
)

// ChunkCatalog keeps chunks in process memory. Used by STORE_BACKEND=memory and tests.
type ChunkCatalog struct {
	mu      sync.Mutex
	chunks  []domain.Chunk
	lastSeq int64
}

func NewChunkCatalog() *ChunkCatalog {
	return &ChunkCatalog{}
}

func (c *ChunkCatalog) Append(
	ctx context.Context,
	chunks []domain.Chunk,
	commit func(context.Context, []domain.Chunk) error,
) ([]domain.Chunk, error) {
	if len(chunks) == 0 {
		return nil, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	seq := c.lastSeq
	stored := make([]domain.Chunk, 0, len(chunks))
	for _, chunk := range chunks {
		seq++
		if chunk.ID == "" {
			chunk.ID = uuid.NewString()
		}
		chunk.Seq = seq
		chunk.Metadata = chunk.Metadata.Clone()
		stored = append(stored, chunk)
	}

	if commit != nil {
		if err := commit(ctx, stored); err != nil {
			return nil, err
		}
	}

	c.chunks = append(c.chunks, stored...)
	c.lastSeq = seq
	return stored, nil
}

func (c *ChunkCatalog) List(_ context.Context) ([]domain.Chunk, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]domain.Chunk, len(c.chunks))
	copy(out, c.chunks)
	return out, nil
}

func (c *ChunkCatalog) Truncate(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.chunks = nil
	return nil
}
