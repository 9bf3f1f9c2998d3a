package lexical

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/kirillkom/plc-fault-explainer/internal/core/domain"
)

type sourceFake struct {
	chunks []domain.Chunk
	err    error
}

func (f *sourceFake) AllChunks(context.Context) ([]domain.Chunk, error) {
	if f.err != nil {
		return nil, f.err
	}
	return append([]domain.Chunk(nil), f.chunks...), nil
}

func TestRetrieverUnavailableBeforeRebuild(t *testing.T) {
	r := NewRetriever()
	_, err := r.SearchSparse(context.Background(), "ALM_3021", 3)
	if !domain.IsKind(err, domain.ErrRetrievalUnavailable) {
		t.Fatalf("expected retrieval unavailable, got %v", err)
	}
}

func TestRetrieverSnapshotIsStaleUntilRebuild(t *testing.T) {
	source := &sourceFake{chunks: chunks("Fault Code: ALM_3021. Description: Vacuum alarm.")}
	r := NewRetriever()
	if _, err := r.Rebuild(context.Background(), source); err != nil {
		t.Fatalf("Rebuild() error = %v", err)
	}

	source.chunks = append(source.chunks, domain.Chunk{Seq: 2, Content: "Door open DOOR_7 on cell 4."})
	hits, err := r.SearchSparse(context.Background(), "DOOR_7", 3)
	if err != nil {
		t.Fatalf("SearchSparse() error = %v", err)
	}
	if len(hits) != 0 {
		t.Fatalf("expected stale snapshot, got %+v", hits)
	}

	if _, err := r.Rebuild(context.Background(), source); err != nil {
		t.Fatalf("Rebuild() error = %v", err)
	}
	hits, err = r.SearchSparse(context.Background(), "DOOR_7", 3)
	if err != nil || len(hits) != 1 || hits[0].Seq != 2 {
		t.Fatalf("expected hit after rebuild, got %+v err=%v", hits, err)
	}
}

func TestRetrieverFailedRebuildMakesUnavailable(t *testing.T) {
	r := NewRetriever()
	_, err := r.Rebuild(context.Background(), &sourceFake{err: errors.New("db down")})
	if err == nil {
		t.Fatalf("expected rebuild error")
	}
	if _, err := r.SearchSparse(context.Background(), "x", 3); !domain.IsKind(err, domain.ErrRetrievalUnavailable) {
		t.Fatalf("expected retrieval unavailable, got %v", err)
	}
}

func TestRetrieverEmptyStoreIsNoop(t *testing.T) {
	r := NewRetriever()
	count, err := r.Rebuild(context.Background(), &sourceFake{})
	if err != nil || count != 0 {
		t.Fatalf("expected empty rebuild, got %d err=%v", count, err)
	}
	hits, err := r.SearchSparse(context.Background(), "anything", 3)
	if err != nil || len(hits) != 0 {
		t.Fatalf("expected empty result, got %+v err=%v", hits, err)
	}
}

func TestRetrieverInvalidate(t *testing.T) {
	r := NewRetriever()
	if _, err := r.Rebuild(context.Background(), &sourceFake{chunks: chunks("a")}); err != nil {
		t.Fatalf("Rebuild() error = %v", err)
	}
	r.Invalidate()
	if r.Size() != 0 {
		t.Fatalf("expected empty size after invalidate")
	}
	if _, err := r.SearchSparse(context.Background(), "a", 1); !domain.IsKind(err, domain.ErrRetrievalUnavailable) {
		t.Fatalf("expected unavailable after invalidate, got %v", err)
	}
}

func TestRetrieverConcurrentSearchDuringRebuild(t *testing.T) {
	source := &sourceFake{chunks: chunks("vacuum alarm", "pump overload", "door open")}
	r := NewRetriever()
	if _, err := r.Rebuild(context.Background(), source); err != nil {
		t.Fatalf("Rebuild() error = %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			if _, err := r.SearchSparse(context.Background(), "vacuum", 2); err != nil {
				t.Errorf("SearchSparse() error = %v", err)
			}
		}()
		go func() {
			defer wg.Done()
			if _, err := r.Rebuild(context.Background(), source); err != nil {
				t.Errorf("Rebuild() error = %v", err)
			}
		}()
	}
	wg.Wait()
}
