package config

import (
	"testing"
	"time"
)

func TestLoadIncludesRetrievalDefaults(t *testing.T) {
	t.Setenv("RAG_RETRIEVAL_MODE", "")
	t.Setenv("RAG_HYBRID_CANDIDATES", "")
	t.Setenv("RAG_FUSION_RRF_K", "")
	t.Setenv("RAG_RERANK_TOP_N", "")
	t.Setenv("RAG_TOP_K", "")
	t.Setenv("RAG_DENSE_WEIGHT", "")
	t.Setenv("RAG_SPARSE_WEIGHT", "")
	t.Setenv("CHUNK_SIZE", "")
	t.Setenv("CHUNK_OVERLAP", "")

	cfg := Load()
	if cfg.RAGRetrievalMode != "hybrid" {
		t.Fatalf("expected default retrieval mode hybrid, got %q", cfg.RAGRetrievalMode)
	}
	if cfg.RAGHybridCandidates != 20 {
		t.Fatalf("expected default hybrid candidates 20, got %d", cfg.RAGHybridCandidates)
	}
	if cfg.RAGFusionRRFK != 60 {
		t.Fatalf("expected default fusion rrf k 60, got %d", cfg.RAGFusionRRFK)
	}
	if cfg.RAGRerankTopN != 10 {
		t.Fatalf("expected default rerank top n 10, got %d", cfg.RAGRerankTopN)
	}
	if cfg.RAGTopK != 3 {
		t.Fatalf("expected default top k 3, got %d", cfg.RAGTopK)
	}
	if cfg.RAGDenseWeight != 0.5 || cfg.RAGSparseWeight != 0.5 {
		t.Fatalf("expected equal default weights, got %v/%v", cfg.RAGDenseWeight, cfg.RAGSparseWeight)
	}
	if cfg.ChunkSize != 1000 || cfg.ChunkOverlap != 100 {
		t.Fatalf("expected chunking 1000/100, got %d/%d", cfg.ChunkSize, cfg.ChunkOverlap)
	}
}

func TestLoadParsesRetrievalOverrides(t *testing.T) {
	t.Setenv("RAG_RETRIEVAL_MODE", "hybrid+rerank")
	t.Setenv("RAG_HYBRID_CANDIDATES", "40")
	t.Setenv("RAG_FUSION_RRF_K", "75")
	t.Setenv("RAG_RERANK_TOP_N", "12")
	t.Setenv("RAG_DENSE_WEIGHT", "0.7")
	t.Setenv("RAG_SPARSE_WEIGHT", "0.3")

	cfg := Load()
	if cfg.RAGRetrievalMode != "hybrid+rerank" {
		t.Fatalf("expected retrieval mode override, got %q", cfg.RAGRetrievalMode)
	}
	if cfg.RAGHybridCandidates != 40 {
		t.Fatalf("expected hybrid candidates 40, got %d", cfg.RAGHybridCandidates)
	}
	if cfg.RAGFusionRRFK != 75 {
		t.Fatalf("expected fusion rrf k 75, got %d", cfg.RAGFusionRRFK)
	}
	if cfg.RAGRerankTopN != 12 {
		t.Fatalf("expected rerank top n 12, got %d", cfg.RAGRerankTopN)
	}
	if cfg.RAGDenseWeight != 0.7 || cfg.RAGSparseWeight != 0.3 {
		t.Fatalf("expected weights 0.7/0.3, got %v/%v", cfg.RAGDenseWeight, cfg.RAGSparseWeight)
	}
}

func TestLoadFallsBackOnMalformedValues(t *testing.T) {
	t.Setenv("RAG_TOP_K", "three")
	t.Setenv("RAG_DENSE_WEIGHT", "heavy")
	t.Setenv("RESILIENCE_BREAKER_ENABLED", "maybe")

	cfg := Load()
	if cfg.RAGTopK != 3 {
		t.Fatalf("expected fallback top k, got %d", cfg.RAGTopK)
	}
	if cfg.RAGDenseWeight != 0.5 {
		t.Fatalf("expected fallback dense weight, got %v", cfg.RAGDenseWeight)
	}
	if !cfg.ResilienceBreakerEnabled {
		t.Fatalf("expected breaker enabled by default")
	}
}

func TestMustEnvDurationAcceptsSecondsAndDurations(t *testing.T) {
	t.Setenv("API_BACKPRESSURE_WAIT", "2s")
	t.Setenv("GENERATION_TIMEOUT", "45")

	cfg := Load()
	if cfg.APIBackpressureWait != 2*time.Second {
		t.Fatalf("expected 2s backpressure wait, got %v", cfg.APIBackpressureWait)
	}
	if cfg.GenerationTimeout != 45*time.Second {
		t.Fatalf("expected 45s generation timeout, got %v", cfg.GenerationTimeout)
	}
}
