package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/plc-fault-explainer/internal/core/domain"
	"github.com/kirillkom/plc-fault-explainer/internal/core/ports"
)

// IngestUseCase stores uploads and, when a queue is configured, hands them to a worker.
type IngestUseCase struct {
	storage   ports.ObjectStorage
	queue     ports.MessageQueue
	processor *ProcessUseCase
}

func NewIngestUseCase(
	storage ports.ObjectStorage,
	queue ports.MessageQueue,
	processor *ProcessUseCase,
) *IngestUseCase {
	return &IngestUseCase{
		storage:   storage,
		queue:     queue,
		processor: processor,
	}
}

func (uc *IngestUseCase) Upload(
	ctx context.Context,
	kind domain.IngestKind,
	filename string,
	body io.Reader,
) (*domain.IngestJob, error) {
	if err := validateKind(kind); err != nil {
		return nil, err
	}
	name := sanitizeFilename(filename)
	if strings.TrimSpace(filename) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "upload", errors.New("filename is required"))
	}

	job := domain.IngestJob{
		ID:         uuid.NewString(),
		Kind:       kind,
		Filename:   name,
		StorageKey: StorageKey(kind, name),
		CreatedAt:  time.Now().UTC(),
	}

	if err := uc.storage.Save(ctx, job.StorageKey, body); err != nil {
		return nil, fmt.Errorf("save to object storage: %w", err)
	}

	if uc.queue != nil {
		if err := uc.queue.PublishIngestJob(ctx, job); err != nil {
			return nil, fmt.Errorf("publish ingest job: %w", err)
		}
	}

	return &job, nil
}

func (uc *IngestUseCase) ProcessStored(ctx context.Context, kind domain.IngestKind, filename string) (*domain.IngestReport, error) {
	if err := validateKind(kind); err != nil {
		return nil, err
	}
	if strings.TrimSpace(filename) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "process stored", errors.New("filename is required"))
	}
	name := sanitizeFilename(filename)
	return uc.processor.ProcessStored(ctx, kind, name, StorageKey(kind, name))
}

func (uc *IngestUseCase) ProcessDirectory(ctx context.Context, dir string) (*domain.IngestReport, error) {
	return uc.processor.ProcessDirectory(ctx, dir)
}

func (uc *IngestUseCase) ListFiles(ctx context.Context, kind domain.IngestKind) ([]domain.StoredFile, error) {
	if err := validateKind(kind); err != nil {
		return nil, err
	}
	files, err := uc.storage.List(ctx, StorageDir(kind))
	if err != nil {
		return nil, fmt.Errorf("list stored files: %w", err)
	}
	if files == nil {
		files = []domain.StoredFile{}
	}
	return files, nil
}

// StorageKey is where an uploaded file of the given kind lives in object storage.
func StorageKey(kind domain.IngestKind, filename string) string {
	return path.Join(StorageDir(kind), filename)
}

func StorageDir(kind domain.IngestKind) string {
	switch kind {
	case domain.IngestManual:
		return "manuals"
	case domain.IngestKnowledgeBase:
		return "knowledge_base"
	default:
		return "logs"
	}
}

func validateKind(kind domain.IngestKind) error {
	switch kind {
	case domain.IngestLog, domain.IngestManual, domain.IngestKnowledgeBase:
		return nil
	default:
		return domain.WrapError(domain.ErrInvalidInput, "validate ingest kind", fmt.Errorf("unknown kind %q", kind))
	}
}

func sanitizeFilename(name string) string {
	base := filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" || base == "." || base == ".." {
		return "upload.bin"
	}
	return base
}
