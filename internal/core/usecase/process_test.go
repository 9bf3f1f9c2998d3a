package usecase

import (
	"context"
	"errors"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/kirillkom/plc-fault-explainer/internal/core/domain"
)

type extractorFake struct {
	err     error
	formats map[string]bool
	calls   []string
}

func (f *extractorFake) Extract(_ context.Context, kind domain.IngestKind, filename string, body io.Reader) ([]domain.Chunk, error) {
	f.calls = append(f.calls, filename)
	if f.err != nil {
		return nil, f.err
	}
	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}
	chunks := make([]domain.Chunk, 0)
	for _, line := range strings.Split(string(raw), "\n") {
		chunks = append(chunks, domain.Chunk{
			Content:  line,
			Metadata: domain.Metadata{"source": filename, "content_type": string(kind)},
		})
	}
	return chunks, nil
}

func (f *extractorFake) Supports(_ domain.IngestKind, filename string) bool {
	if f.formats == nil {
		return true
	}
	return f.formats[path.Ext(filename)]
}

type storeFake struct {
	batches [][]domain.Chunk
	err     error
	cleared bool
}

func (f *storeFake) AddChunks(_ context.Context, chunks []domain.Chunk) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	kept := 0
	for _, c := range chunks {
		if strings.TrimSpace(c.Content) != "" {
			kept++
		}
	}
	f.batches = append(f.batches, chunks)
	return kept, nil
}

func (f *storeFake) AllChunks(context.Context) ([]domain.Chunk, error) {
	out := make([]domain.Chunk, 0)
	for _, batch := range f.batches {
		out = append(out, batch...)
	}
	return out, nil
}

func (f *storeFake) Clear(context.Context) error {
	f.cleared = true
	f.batches = nil
	return nil
}

type notifierFake struct {
	calls int
	err   error
}

func (f *notifierFake) NotifyIndexChanged(context.Context) error {
	f.calls++
	return f.err
}

type splitterFake struct{}

func (splitterFake) SplitChunks(chunks []domain.Chunk) []domain.Chunk { return chunks }

func TestProcessStoredAddsOneBatch(t *testing.T) {
	storage := &ingestStorageFake{files: map[string]string{"logs/a.csv": "row one\n\nrow two"}}
	store := &storeFake{}
	notifier := &notifierFake{}
	uc := NewProcessUseCase(storage, &extractorFake{}, splitterFake{}, store, notifier)

	report, err := uc.ProcessStored(context.Background(), domain.IngestLog, "a.csv", "logs/a.csv")
	if err != nil {
		t.Fatalf("ProcessStored() error = %v", err)
	}
	if report.Chunks != 2 || report.Skipped != 1 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if report.Message != "Processed 2 log entries" {
		t.Fatalf("unexpected message %q", report.Message)
	}
	if len(store.batches) != 1 {
		t.Fatalf("expected one batch, got %d", len(store.batches))
	}
	if notifier.calls != 1 {
		t.Fatalf("expected one index notification, got %d", notifier.calls)
	}
}

func TestProcessStoredUnsupportedFormat(t *testing.T) {
	uc := NewProcessUseCase(&ingestStorageFake{}, &extractorFake{formats: map[string]bool{".csv": true}}, nil, &storeFake{}, nil)

	_, err := uc.ProcessStored(context.Background(), domain.IngestLog, "a.exe", "logs/a.exe")
	if !domain.IsKind(err, domain.ErrUnsupportedFormat) {
		t.Fatalf("expected unsupported format, got %v", err)
	}
}

func TestProcessStoredMissingFile(t *testing.T) {
	uc := NewProcessUseCase(&ingestStorageFake{}, &extractorFake{}, nil, &storeFake{}, nil)

	_, err := uc.ProcessStored(context.Background(), domain.IngestLog, "gone.csv", "logs/gone.csv")
	if !domain.IsKind(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestProcessStoredStoreErrorSkipsNotify(t *testing.T) {
	storage := &ingestStorageFake{files: map[string]string{"logs/a.csv": "row"}}
	notifier := &notifierFake{}
	uc := NewProcessUseCase(storage, &extractorFake{}, nil, &storeFake{err: errors.New("db down")}, notifier)

	if _, err := uc.ProcessStored(context.Background(), domain.IngestLog, "a.csv", "logs/a.csv"); err == nil {
		t.Fatalf("expected error")
	}
	if notifier.calls != 0 {
		t.Fatalf("expected no notification on failed batch")
	}
}

func TestProcessStoredNotifyFailureKeepsChunks(t *testing.T) {
	storage := &ingestStorageFake{files: map[string]string{"logs/a.csv": "row"}}
	uc := NewProcessUseCase(storage, &extractorFake{}, nil, &storeFake{}, &notifierFake{err: errors.New("rebuild failed")})

	report, err := uc.ProcessStored(context.Background(), domain.IngestLog, "a.csv", "logs/a.csv")
	if err != nil {
		t.Fatalf("ProcessStored() error = %v", err)
	}
	if report.Chunks != 1 {
		t.Fatalf("expected stored chunk, got %+v", report)
	}
}

func TestProcessFSWalksSupportedFiles(t *testing.T) {
	fsys := fstest.MapFS{
		"manual.pdf":          {Data: []byte("page one")},
		"sheets/codes.xlsx":   {Data: []byte("ALM_3021 vacuum")},
		"notes.exe":           {Data: []byte("binary")},
		".hidden/secret.pdf":  {Data: []byte("hidden")},
		"wiring.pdf":          {Data: []byte("x")},
		"sheets/.lock.xlsx":   {Data: []byte("lock")},
		"sheets/readme.xlsx~": {Data: []byte("backup")},
	}
	extractor := &extractorFake{formats: map[string]bool{".pdf": true, ".xlsx": true}}
	store := &storeFake{}
	notifier := &notifierFake{}
	uc := NewProcessUseCase(nil, extractor, nil, store, notifier)

	report, err := uc.ProcessFS(context.Background(), fsys, ".")
	if err != nil {
		t.Fatalf("ProcessFS() error = %v", err)
	}
	if report.Chunks != 3 {
		t.Fatalf("expected 3 chunks, got %+v", report)
	}
	if report.Skipped != 3 {
		t.Fatalf("expected 3 skipped files, got %+v", report)
	}
	if len(store.batches) != 1 || notifier.calls != 1 {
		t.Fatalf("expected a single batch and notification, got %d/%d", len(store.batches), notifier.calls)
	}
	for _, call := range extractor.calls {
		if call == "secret.pdf" {
			t.Fatalf("hidden directory should be skipped")
		}
	}
}

func TestProcessDirectoryMissingPath(t *testing.T) {
	uc := NewProcessUseCase(nil, &extractorFake{}, nil, &storeFake{}, nil)
	_, err := uc.ProcessDirectory(context.Background(), "/definitely/not/here")
	if !domain.IsKind(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestProcessFilesBatchesChangedFiles(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) string {
		p := filepath.Join(dir, name)
		if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
		return p
	}
	paths := []string{
		write("a.pdf", "ALM_3021 vacuum"),
		write("b.pdf", "ALM_1001 motor"),
		write("c.exe", "binary"),
		filepath.Join(dir, "gone.pdf"),
	}
	store := &storeFake{}
	notifier := &notifierFake{}
	uc := NewProcessUseCase(nil, &extractorFake{formats: map[string]bool{".pdf": true}}, nil, store, notifier)

	report, err := uc.ProcessFiles(context.Background(), paths)
	if err != nil {
		t.Fatalf("ProcessFiles() error = %v", err)
	}
	if report.Chunks != 2 || report.Skipped != 2 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if len(store.batches) != 1 || notifier.calls != 1 {
		t.Fatalf("expected a single batch and notification, got %d/%d", len(store.batches), notifier.calls)
	}
}

func TestProcessJobWrapsFailureWithJobID(t *testing.T) {
	uc := NewProcessUseCase(&ingestStorageFake{}, &extractorFake{}, nil, &storeFake{}, nil)

	_, err := uc.ProcessJob(context.Background(), domain.IngestJob{
		ID: "job-7", Kind: domain.IngestLog, Filename: "gone.csv", StorageKey: "logs/gone.csv",
	})
	if !domain.IsKind(err, domain.ErrNotFound) || !strings.Contains(err.Error(), "job-7") {
		t.Fatalf("expected not found naming the job, got %v", err)
	}
}
