package ports

import (
	"context"
	"io"
	"time"

	"github.com/kirillkom/plc-fault-explainer/internal/core/domain"
)

// ChunkCatalog is the ordered, append-only record of every stored chunk.
// Append assigns ID and Seq and runs commit before the batch becomes visible;
// a commit error discards the whole batch.
type ChunkCatalog interface {
	Append(ctx context.Context, chunks []domain.Chunk, commit func(context.Context, []domain.Chunk) error) ([]domain.Chunk, error)
	List(ctx context.Context) ([]domain.Chunk, error)
	Truncate(ctx context.Context) error
}

// VectorIndex stores chunk embeddings and answers similarity queries.
type VectorIndex interface {
	Upsert(ctx context.Context, chunks []domain.Chunk, vectors [][]float32) error
	Search(ctx context.Context, queryVector []float32, limit int) ([]domain.ScoredChunk, error)
	Reset(ctx context.Context) error
}

// Embedder builds vectors for chunks and query text.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Completer sends one prompt to a language model and returns its raw text.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// ChunkSource exposes a full snapshot of stored chunks.
type ChunkSource interface {
	AllChunks(ctx context.Context) ([]domain.Chunk, error)
}

// DocumentStore is the shared chunk store used by ingestion and retrieval.
type DocumentStore interface {
	ChunkSource
	AddChunks(ctx context.Context, chunks []domain.Chunk) (int, error)
	Clear(ctx context.Context) error
}

// DenseRetriever ranks chunks by embedding similarity.
type DenseRetriever interface {
	SearchDense(ctx context.Context, query string, k int) ([]domain.ScoredChunk, error)
}

// SparseRetriever ranks chunks by lexical match over a snapshot.
type SparseRetriever interface {
	SearchSparse(ctx context.Context, query string, k int) ([]domain.ScoredChunk, error)
}

// SparseIndex is a SparseRetriever whose snapshot is rebuilt explicitly.
type SparseIndex interface {
	SparseRetriever
	Rebuild(ctx context.Context, source ChunkSource) (int, error)
	Invalidate()
}

// IndexNotifier is told once per ingested batch that the store changed.
type IndexNotifier interface {
	NotifyIndexChanged(ctx context.Context) error
}

// ObjectStorage stores uploaded source files.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	List(ctx context.Context, dir string) ([]domain.StoredFile, error)
}

// MessageQueue carries ingest jobs to workers and index-refresh events back to API nodes.
type MessageQueue interface {
	PublishIngestJob(ctx context.Context, job domain.IngestJob) error
	SubscribeIngestJobs(ctx context.Context, handler func(context.Context, domain.IngestJob) error) error
	PublishIndexRefreshed(ctx context.Context) error
	SubscribeIndexRefreshed(ctx context.Context, handler func(context.Context) error) error
}

// ChunkExtractor turns one source file into chunks.
type ChunkExtractor interface {
	Extract(ctx context.Context, kind domain.IngestKind, filename string, body io.Reader) ([]domain.Chunk, error)
	Supports(kind domain.IngestKind, filename string) bool
}

// TableReader reads a CSV or JSON log file as a header plus string rows.
// maxRows <= 0 reads every row.
type TableReader interface {
	ReadTable(filename string, body io.Reader, maxRows int) (header []string, rows [][]string, err error)
}

// Chunker splits long chunks while keeping their metadata.
type Chunker interface {
	SplitChunks(chunks []domain.Chunk) []domain.Chunk
}

// HistoryStore persists query history and user feedback.
type HistoryStore interface {
	SaveHistory(ctx context.Context, entry *domain.HistoryEntry) error
	ListHistory(ctx context.Context, filename string) ([]domain.HistoryEntry, error)
	SaveFeedback(ctx context.Context, entry *domain.FeedbackEntry) error
}

// RAGObserver receives retrieval and generation events for monitoring.
type RAGObserver interface {
	ObserveRetrieval(r domain.Retrieval, duration time.Duration)
	ObserveParseTier(tier domain.ParseTier)
	ObserveSparseRebuild(chunks int, duration time.Duration, err error)
	ObserveGeneration(duration time.Duration, err error)
}
