package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/kirillkom/plc-fault-explainer/internal/core/domain"
	"github.com/kirillkom/plc-fault-explainer/internal/core/ports"
)

type sparseIndexFake struct {
	rebuilds    int
	invalidated int
	err         error
}

func (f *sparseIndexFake) SearchSparse(context.Context, string, int) ([]domain.ScoredChunk, error) {
	return nil, nil
}

func (f *sparseIndexFake) Rebuild(ctx context.Context, source ports.ChunkSource) (int, error) {
	f.rebuilds++
	if f.err != nil {
		return 0, f.err
	}
	chunks, err := source.AllChunks(ctx)
	if err != nil {
		return 0, err
	}
	return len(chunks), nil
}

func (f *sparseIndexFake) Invalidate() { f.invalidated++ }

func TestIndexRebuildObserves(t *testing.T) {
	store := &storeFake{batches: [][]domain.Chunk{{{Content: "a"}, {Content: "b"}}}}
	sparse := &sparseIndexFake{}
	svc := NewIndexService(store, sparse, nil)

	count, err := svc.Rebuild(context.Background())
	if err != nil {
		t.Fatalf("Rebuild() error = %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 indexed chunks, got %d", count)
	}
}

func TestIndexRebuildFailureIsRetrievalUnavailable(t *testing.T) {
	svc := NewIndexService(&storeFake{}, &sparseIndexFake{err: errors.New("oom")}, nil)
	_, err := svc.Rebuild(context.Background())
	if !domain.IsKind(err, domain.ErrRetrievalUnavailable) {
		t.Fatalf("expected retrieval unavailable, got %v", err)
	}
}

func TestIndexClearAllInvalidatesThenRebuilds(t *testing.T) {
	store := &storeFake{batches: [][]domain.Chunk{{{Content: "a"}}}}
	sparse := &sparseIndexFake{}
	svc := NewIndexService(store, sparse, nil)

	if err := svc.ClearAll(context.Background()); err != nil {
		t.Fatalf("ClearAll() error = %v", err)
	}
	if !store.cleared || sparse.invalidated != 1 || sparse.rebuilds != 1 {
		t.Fatalf("unexpected state cleared=%v invalidated=%d rebuilds=%d", store.cleared, sparse.invalidated, sparse.rebuilds)
	}
}

func TestBroadcastNotifierCallsAll(t *testing.T) {
	first := &notifierFake{err: errors.New("local failed")}
	queue := &ingestQueueFake{}
	notifier := BroadcastNotifier{first, nil, QueueNotifier{Queue: queue}}

	err := notifier.NotifyIndexChanged(context.Background())
	if err == nil || err.Error() != "local failed" {
		t.Fatalf("expected first error, got %v", err)
	}
	if first.calls != 1 || queue.refreshed != 1 {
		t.Fatalf("expected both notifiers called, got %d/%d", first.calls, queue.refreshed)
	}
}
