package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/kirillkom/plc-fault-explainer/internal/core/domain"
)

type HistoryRepository struct {
	db *sql.DB
}

func NewHistoryRepository(db *sql.DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

func (r *HistoryRepository) SaveHistory(ctx context.Context, entry *domain.HistoryEntry) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO query_history (id, filename, query, result, created_at)
VALUES ($1, $2, $3, $4::jsonb, $5)
`, entry.ID, entry.Filename, entry.Query, string(entry.Result), entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert history: %w", err)
	}
	return nil
}

func (r *HistoryRepository) ListHistory(ctx context.Context, filename string) ([]domain.HistoryEntry, error) {
	query := `
SELECT id, filename, query, result, created_at
FROM query_history
`
	args := []any{}
	if filename != "" {
		query += "WHERE filename = $1\n"
		args = append(args, filename)
	}
	query += "ORDER BY created_at ASC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	defer rows.Close()

	out := make([]domain.HistoryEntry, 0)
	for rows.Next() {
		var (
			entry  domain.HistoryEntry
			result []byte
		)
		if err := rows.Scan(&entry.ID, &entry.Filename, &entry.Query, &result, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		entry.Result = append([]byte(nil), result...)
		out = append(out, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}
	return out, nil
}

func (r *HistoryRepository) SaveFeedback(ctx context.Context, entry *domain.FeedbackEntry) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO feedback (id, query, response, rating, created_at)
VALUES ($1, $2, $3, $4, $5)
`, entry.ID, entry.Query, entry.Response, entry.Rating, entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert feedback: %w", err)
	}
	return nil
}
