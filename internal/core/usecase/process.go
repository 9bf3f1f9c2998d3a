package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/kirillkom/plc-fault-explainer/internal/core/domain"
	"github.com/kirillkom/plc-fault-explainer/internal/core/ports"
)

// ProcessUseCase turns source files into stored chunks, one batch per call.
type ProcessUseCase struct {
	storage   ports.ObjectStorage
	extractor ports.ChunkExtractor
	chunker   ports.Chunker
	store     ports.DocumentStore
	notifier  ports.IndexNotifier
}

func NewProcessUseCase(
	storage ports.ObjectStorage,
	extractor ports.ChunkExtractor,
	chunker ports.Chunker,
	store ports.DocumentStore,
	notifier ports.IndexNotifier,
) *ProcessUseCase {
	return &ProcessUseCase{
		storage:   storage,
		extractor: extractor,
		chunker:   chunker,
		store:     store,
		notifier:  notifier,
	}
}

// ProcessJob handles a queued ingest job.
func (uc *ProcessUseCase) ProcessJob(ctx context.Context, job domain.IngestJob) (*domain.IngestReport, error) {
	report, err := uc.ProcessStored(ctx, job.Kind, job.Filename, job.StorageKey)
	if err != nil {
		return nil, fmt.Errorf("process job %s: %w", job.ID, err)
	}
	slog.Info("ingest_job_done", "job_id", job.ID, "kind", string(job.Kind), "filename", job.Filename, "chunks", report.Chunks)
	return report, nil
}

func (uc *ProcessUseCase) ProcessStored(ctx context.Context, kind domain.IngestKind, filename, storageKey string) (*domain.IngestReport, error) {
	if !uc.extractor.Supports(kind, filename) {
		return nil, domain.WrapError(domain.ErrUnsupportedFormat, "process stored", fmt.Errorf("file %q", filename))
	}
	body, err := uc.storage.Open(ctx, storageKey)
	if err != nil {
		return nil, fmt.Errorf("open stored file: %w", err)
	}
	defer body.Close()

	return uc.ProcessReader(ctx, kind, filename, body)
}

func (uc *ProcessUseCase) ProcessReader(ctx context.Context, kind domain.IngestKind, filename string, body io.Reader) (*domain.IngestReport, error) {
	chunks, err := uc.extractor.Extract(ctx, kind, filename, body)
	if err != nil {
		return nil, fmt.Errorf("extract chunks: %w", err)
	}

	added, total, err := uc.addBatch(ctx, chunks)
	if err != nil {
		return nil, err
	}

	return &domain.IngestReport{
		Filename: filename,
		Chunks:   added,
		Skipped:  total - added,
		Message:  reportMessage(kind, added),
	}, nil
}

// ProcessDirectory indexes every supported knowledge-base file below dir as one batch.
func (uc *ProcessUseCase) ProcessDirectory(ctx context.Context, dir string) (*domain.IngestReport, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "process directory", errors.New("path is required"))
	}
	info, err := os.Stat(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, domain.WrapError(domain.ErrNotFound, "process directory", fmt.Errorf("path %s not found", dir))
		}
		return nil, fmt.Errorf("stat directory: %w", err)
	}
	if !info.IsDir() {
		return nil, domain.WrapError(domain.ErrInvalidInput, "process directory", fmt.Errorf("%s is not a directory", dir))
	}

	report, err := uc.ProcessFS(ctx, os.DirFS(dir), ".")
	if err != nil {
		return nil, err
	}
	report.Filename = dir
	return report, nil
}

// ProcessFiles indexes the given knowledge-base files as one batch. Unsupported or
// unreadable files are counted as skipped.
func (uc *ProcessUseCase) ProcessFiles(ctx context.Context, paths []string) (*domain.IngestReport, error) {
	var (
		batch   []domain.Chunk
		skipped int
	)
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		base := filepath.Base(p)
		if strings.HasPrefix(base, ".") || !uc.extractor.Supports(domain.IngestKnowledgeBase, base) {
			skipped++
			continue
		}
		chunks, err := uc.extractFile(ctx, os.DirFS(filepath.Dir(p)), base)
		if err != nil {
			slog.Warn("ingest_file_skipped", "file", p, "error", err.Error())
			skipped++
			continue
		}
		batch = append(batch, chunks...)
	}

	added, total, err := uc.addBatch(ctx, batch)
	if err != nil {
		return nil, err
	}
	return &domain.IngestReport{
		Chunks:  added,
		Skipped: skipped + total - added,
		Message: reportMessage(domain.IngestKnowledgeBase, added),
	}, nil
}

func (uc *ProcessUseCase) ProcessFS(ctx context.Context, fsys fs.FS, root string) (*domain.IngestReport, error) {
	var (
		batch   []domain.Chunk
		skipped int
	)

	err := fs.WalkDir(fsys, root, func(name string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		base := entry.Name()
		if entry.IsDir() {
			if name != root && strings.HasPrefix(base, ".") {
				return fs.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(base, ".") || !uc.extractor.Supports(domain.IngestKnowledgeBase, base) {
			skipped++
			return nil
		}

		chunks, err := uc.extractFile(ctx, fsys, name)
		if err != nil {
			slog.Warn("ingest_file_skipped", "file", name, "error", err.Error())
			skipped++
			return nil
		}
		batch = append(batch, chunks...)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk directory: %w", err)
	}

	added, total, err := uc.addBatch(ctx, batch)
	if err != nil {
		return nil, err
	}
	return &domain.IngestReport{
		Chunks:  added,
		Skipped: skipped + total - added,
		Message: reportMessage(domain.IngestKnowledgeBase, added),
	}, nil
}

func (uc *ProcessUseCase) extractFile(ctx context.Context, fsys fs.FS, name string) ([]domain.Chunk, error) {
	f, err := fsys.Open(name)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	defer f.Close()

	chunks, err := uc.extractor.Extract(ctx, domain.IngestKnowledgeBase, path.Base(name), f)
	if err != nil {
		return nil, err
	}
	return chunks, nil
}

// addBatch splits, stores and announces one batch. The index is notified once per batch.
// total is the chunk count after splitting.
func (uc *ProcessUseCase) addBatch(ctx context.Context, chunks []domain.Chunk) (added, total int, err error) {
	if uc.chunker != nil {
		chunks = uc.chunker.SplitChunks(chunks)
	}
	if len(chunks) == 0 {
		return 0, 0, nil
	}

	added, err = uc.store.AddChunks(ctx, chunks)
	if err != nil {
		return 0, len(chunks), fmt.Errorf("add chunks to store: %w", err)
	}
	if added > 0 && uc.notifier != nil {
		if err := uc.notifier.NotifyIndexChanged(ctx); err != nil {
			slog.Warn("index_notify_failed", "chunks", added, "error", err.Error())
		}
	}
	return added, len(chunks), nil
}

func reportMessage(kind domain.IngestKind, count int) string {
	switch kind {
	case domain.IngestLog:
		return fmt.Sprintf("Processed %d log entries", count)
	case domain.IngestManual:
		return fmt.Sprintf("Indexed %d manual entries", count)
	default:
		return fmt.Sprintf("Indexed %d segments", count)
	}
}
