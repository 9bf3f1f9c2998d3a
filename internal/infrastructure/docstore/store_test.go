package docstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/kirillkom/plc-fault-explainer/internal/core/domain"
	"github.com/kirillkom/plc-fault-explainer/internal/infrastructure/repository/memory"
	vectormemory "github.com/kirillkom/plc-fault-explainer/internal/infrastructure/vector/memory"
)

// letterEmbedder maps text to counts of a few letters so similarity is predictable.
type letterEmbedder struct {
	err error
}

func (e letterEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float32, 0, len(texts))
	for _, text := range texts {
		lower := strings.ToLower(text)
		out = append(out, []float32{
			float32(strings.Count(lower, "v")),
			float32(strings.Count(lower, "c")),
			float32(strings.Count(lower, "h")),
		})
	}
	return out, nil
}

func (e letterEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

type failingIndex struct {
	*vectormemory.Index
}

func (failingIndex) Upsert(context.Context, []domain.Chunk, [][]float32) error {
	return errors.New("qdrant down")
}

func TestAddChunksDropsBlankAndAssignsSeq(t *testing.T) {
	store := New(memory.NewChunkCatalog(), vectormemory.NewIndex(), letterEmbedder{})
	added, err := store.AddChunks(context.Background(), []domain.Chunk{
		{Content: "vacuum valve"},
		{Content: "   "},
		{Content: "conveyor", Metadata: domain.Metadata{"source": "manual"}},
	})
	if err != nil {
		t.Fatalf("AddChunks() error = %v", err)
	}
	if added != 2 {
		t.Fatalf("expected 2 chunks added, got %d", added)
	}

	all, err := store.AllChunks(context.Background())
	if err != nil {
		t.Fatalf("AllChunks() error = %v", err)
	}
	if len(all) != 2 || all[0].Seq >= all[1].Seq || all[0].ID == "" {
		t.Fatalf("unexpected stored chunks: %+v", all)
	}
	if all[0].Metadata == nil {
		t.Fatalf("expected metadata to be non-nil")
	}
}

func TestAddChunksEmptyIsNoop(t *testing.T) {
	store := New(memory.NewChunkCatalog(), vectormemory.NewIndex(), letterEmbedder{err: errors.New("never called")})
	added, err := store.AddChunks(context.Background(), nil)
	if err != nil || added != 0 {
		t.Fatalf("expected no-op, got %d, %v", added, err)
	}
}

func TestAddChunksVectorFailureDiscardsBatch(t *testing.T) {
	catalog := memory.NewChunkCatalog()
	store := New(catalog, failingIndex{vectormemory.NewIndex()}, letterEmbedder{})

	if _, err := store.AddChunks(context.Background(), []domain.Chunk{{Content: "vacuum"}}); err == nil {
		t.Fatalf("expected error")
	}
	all, _ := store.AllChunks(context.Background())
	if len(all) != 0 {
		t.Fatalf("expected batch discarded, got %+v", all)
	}
}

func TestSearchDenseRanksBySimilarity(t *testing.T) {
	store := New(memory.NewChunkCatalog(), vectormemory.NewIndex(), letterEmbedder{})
	_, err := store.AddChunks(context.Background(), []domain.Chunk{
		{Content: "conveyor clutch"},
		{Content: "vacuum valve vent"},
		{Content: "hydraulic hose"},
	})
	if err != nil {
		t.Fatalf("AddChunks() error = %v", err)
	}

	got, err := store.SearchDense(context.Background(), "vvv", 2)
	if err != nil {
		t.Fatalf("SearchDense() error = %v", err)
	}
	if len(got) != 2 || got[0].Content != "vacuum valve vent" || got[0].Rank != 1 {
		t.Fatalf("unexpected ranking: %+v", got)
	}
}

func TestSearchDenseEmbedFailureIsUnavailable(t *testing.T) {
	store := New(memory.NewChunkCatalog(), vectormemory.NewIndex(), letterEmbedder{err: errors.New("ollama down")})
	_, err := store.SearchDense(context.Background(), "ALM_3021", 3)
	if !domain.IsKind(err, domain.ErrRetrievalUnavailable) {
		t.Fatalf("expected retrieval unavailable, got %v", err)
	}
}

func TestClearEmptiesCatalogAndVectors(t *testing.T) {
	store := New(memory.NewChunkCatalog(), vectormemory.NewIndex(), letterEmbedder{})
	ctx := context.Background()
	if _, err := store.AddChunks(ctx, []domain.Chunk{{Content: "vacuum"}}); err != nil {
		t.Fatalf("AddChunks() error = %v", err)
	}
	if err := store.Clear(ctx); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	all, _ := store.AllChunks(ctx)
	dense, _ := store.SearchDense(ctx, "vacuum", 3)
	if len(all) != 0 || len(dense) != 0 {
		t.Fatalf("expected empty store, got %d chunks and %d hits", len(all), len(dense))
	}
}

func TestConcurrentAddChunksBatchesDoNotInterleave(t *testing.T) {
	const batches, perBatch = 16, 20
	store := New(memory.NewChunkCatalog(), vectormemory.NewIndex(), letterEmbedder{})

	var wg sync.WaitGroup
	errs := make(chan error, batches)
	for b := range batches {
		wg.Add(1)
		go func() {
			defer wg.Done()
			batch := make([]domain.Chunk, perBatch)
			for i := range batch {
				batch[i] = domain.Chunk{
					Content:  fmt.Sprintf("batch %02d chunk %02d", b, i),
					Metadata: domain.Metadata{"source": fmt.Sprintf("b%02d", b)},
				}
			}
			if _, err := store.AddChunks(context.Background(), batch); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("AddChunks() error = %v", err)
	}

	all, err := store.AllChunks(context.Background())
	if err != nil {
		t.Fatalf("AllChunks() error = %v", err)
	}
	if len(all) != batches*perBatch {
		t.Fatalf("expected %d chunks, got %d", batches*perBatch, len(all))
	}
	seen := make(map[string]bool, batches)
	for start := 0; start < len(all); start += perBatch {
		source := all[start].Metadata.Source()
		if seen[source] {
			t.Fatalf("batch %s appears in two runs", source)
		}
		seen[source] = true
		for i := start; i < start+perBatch; i++ {
			if all[i].Metadata.Source() != source {
				t.Fatalf("batch %s interleaved with %s at position %d", source, all[i].Metadata.Source(), i)
			}
			if want := fmt.Sprintf("chunk %02d", i-start); !strings.HasSuffix(all[i].Content, want) {
				t.Fatalf("batch %s out of order at %d: %q", source, i, all[i].Content)
			}
			if i > 0 && all[i].Seq <= all[i-1].Seq {
				t.Fatalf("seq not increasing at %d: %d after %d", i, all[i].Seq, all[i-1].Seq)
			}
		}
	}
}
