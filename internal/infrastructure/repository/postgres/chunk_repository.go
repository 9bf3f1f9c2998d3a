package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/kirillkom/plc-fault-explainer/internal/core/domain"
)

// ChunkRepository is the append-only chunk catalog. Seq comes from a BIGSERIAL,
// so catalog order is insertion order.
type ChunkRepository struct {
	db *sql.DB
}

func NewChunkRepository(db *sql.DB) *ChunkRepository {
	return &ChunkRepository{db: db}
}

// Append inserts one batch under a transaction-scoped advisory lock and runs commit
// before the transaction commits, so a failed vector upsert leaves no rows behind.
func (r *ChunkRepository) Append(
	ctx context.Context,
	chunks []domain.Chunk,
	commit func(context.Context, []domain.Chunk) error,
) ([]domain.Chunk, error) {
	if len(chunks) == 0 {
		return nil, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin append tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, chunkAppendLockKey); err != nil {
		return nil, fmt.Errorf("acquire append lock: %w", err)
	}

	stored := make([]domain.Chunk, 0, len(chunks))
	for _, chunk := range chunks {
		if chunk.ID == "" {
			chunk.ID = uuid.NewString()
		}
		if chunk.Metadata == nil {
			chunk.Metadata = domain.Metadata{}
		}
		metaJSON, err := json.Marshal(chunk.Metadata)
		if err != nil {
			return nil, fmt.Errorf("marshal chunk metadata: %w", err)
		}

		row := tx.QueryRowContext(ctx, `
INSERT INTO chunks (id, content, metadata)
VALUES ($1, $2, $3::jsonb)
RETURNING seq
`, chunk.ID, chunk.Content, string(metaJSON))
		if err := row.Scan(&chunk.Seq); err != nil {
			return nil, fmt.Errorf("insert chunk: %w", err)
		}
		stored = append(stored, chunk)
	}

	if commit != nil {
		if err := commit(ctx, stored); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit append tx: %w", err)
	}
	return stored, nil
}

func (r *ChunkRepository) List(ctx context.Context) ([]domain.Chunk, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, seq, content, metadata
FROM chunks
ORDER BY seq ASC
`)
	if err != nil {
		return nil, fmt.Errorf("list chunks: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Chunk, 0)
	for rows.Next() {
		var (
			chunk   domain.Chunk
			metaRaw []byte
		)
		if err := rows.Scan(&chunk.ID, &chunk.Seq, &chunk.Content, &metaRaw); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		chunk.Metadata = domain.Metadata{}
		if len(metaRaw) > 0 {
			if err := json.Unmarshal(metaRaw, &chunk.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshal chunk metadata: %w", err)
			}
		}
		out = append(out, chunk)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chunks: %w", err)
	}
	return out, nil
}

func (r *ChunkRepository) Truncate(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `TRUNCATE TABLE chunks`); err != nil {
		return fmt.Errorf("truncate chunks: %w", err)
	}
	return nil
}
