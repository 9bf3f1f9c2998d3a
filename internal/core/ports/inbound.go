package ports

import (
	"context"
	"io"

	"github.com/kirillkom/plc-fault-explainer/internal/core/domain"
)

// FaultExplainer is the inbound contract for retrieval plus structured diagnosis.
type FaultExplainer interface {
	Explain(ctx context.Context, query string, topK int) (*domain.QueryResult, error)
}

// ChunkSearcher returns fused evidence without generation.
type ChunkSearcher interface {
	Retrieve(ctx context.Context, query string, k int) (domain.Retrieval, error)
}

// FileIngestor accepts uploads and turns stored files into chunks.
type FileIngestor interface {
	Upload(ctx context.Context, kind domain.IngestKind, filename string, body io.Reader) (*domain.IngestJob, error)
	ProcessStored(ctx context.Context, kind domain.IngestKind, filename string) (*domain.IngestReport, error)
	ProcessDirectory(ctx context.Context, dir string) (*domain.IngestReport, error)
	ListFiles(ctx context.Context, kind domain.IngestKind) ([]domain.StoredFile, error)
}

// IndexMaintainer rebuilds or clears the shared indexes.
type IndexMaintainer interface {
	Rebuild(ctx context.Context) (int, error)
	ClearAll(ctx context.Context) error
}

// HistoryService records query history and feedback.
type HistoryService interface {
	SaveHistory(ctx context.Context, filename, query string, result []byte) (*domain.HistoryEntry, error)
	ListHistory(ctx context.Context, filename string) ([]domain.HistoryEntry, error)
	SubmitFeedback(ctx context.Context, query, response, rating string) (*domain.FeedbackEntry, error)
}

// LogFileBrowser reads uploaded log files for previews and fault listings.
type LogFileBrowser interface {
	ListFiles(ctx context.Context) ([]domain.StoredFile, error)
	Faults(ctx context.Context, filename string) ([]string, error)
	Preview(ctx context.Context, filename string, maxRows int) ([][]string, error)
}
