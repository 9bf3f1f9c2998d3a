package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kirillkom/plc-fault-explainer/internal/core/domain"
	"github.com/kirillkom/plc-fault-explainer/internal/core/ports"
)

const (
	defaultTopK       = 3
	defaultCandidates = 20
	defaultRerankTopN = 10
)

type RetrievalConfig struct {
	Mode        domain.RetrievalMode
	DefaultTopK int
	Candidates  int
	RerankTopN  int
	Fusion      FusionOptions
}

// RetrievalService queries the dense and sparse retrievers and fuses their rankings.
// A failing side is logged and skipped; only context errors are returned.
type RetrievalService struct {
	dense    ports.DenseRetriever
	sparse   ports.SparseRetriever
	observer ports.RAGObserver
	cfg      RetrievalConfig
}

func NewRetrievalService(
	dense ports.DenseRetriever,
	sparse ports.SparseRetriever,
	observer ports.RAGObserver,
	cfg RetrievalConfig,
) *RetrievalService {
	if cfg.Mode == "" {
		cfg.Mode = domain.ModeHybrid
	}
	if cfg.DefaultTopK <= 0 {
		cfg.DefaultTopK = defaultTopK
	}
	if cfg.Candidates <= 0 {
		cfg.Candidates = defaultCandidates
	}
	if cfg.RerankTopN <= 0 {
		cfg.RerankTopN = defaultRerankTopN
	}
	if cfg.Fusion.Weights == (domain.FusionWeights{}) {
		cfg.Fusion.Weights = domain.DefaultFusionWeights()
	}
	if cfg.Fusion.RRFK <= 0 {
		cfg.Fusion.RRFK = defaultRRFK
	}
	return &RetrievalService{
		dense:    dense,
		sparse:   sparse,
		observer: observer,
		cfg:      cfg,
	}
}

func (s *RetrievalService) Mode() domain.RetrievalMode {
	return s.cfg.Mode
}

func (s *RetrievalService) Retrieve(ctx context.Context, query string, k int) (domain.Retrieval, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return domain.Retrieval{}, domain.WrapError(domain.ErrInvalidInput, "retrieve", errors.New("query is required"))
	}
	if k <= 0 {
		k = s.cfg.DefaultTopK
	}
	candidates := max(k, s.cfg.Candidates)
	start := time.Now()

	useDense := s.cfg.Mode != domain.ModeSparse
	useSparse := s.cfg.Mode != domain.ModeDense

	var (
		denseHits, sparseHits []domain.ScoredChunk
		denseErr, sparseErr   error
	)

	// Each branch keeps its own error so one failing backend never cancels the other.
	var g errgroup.Group
	if useDense {
		g.Go(func() error {
			denseHits, denseErr = s.searchDense(ctx, query, candidates)
			return nil
		})
	}
	if useSparse {
		g.Go(func() error {
			sparseHits, sparseErr = s.searchSparse(ctx, query, candidates)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return domain.Retrieval{}, err
	}

	result := domain.Retrieval{
		DenseFailed:  useDense && denseErr != nil,
		SparseFailed: useSparse && sparseErr != nil,
		DenseHits:    len(denseHits),
		SparseHits:   len(sparseHits),
	}
	if result.DenseFailed {
		denseHits = nil
		slog.Warn("retrieval_degraded", "side", "dense", "error", denseErr.Error())
	}
	if result.SparseFailed {
		sparseHits = nil
		slog.Warn("retrieval_degraded", "side", "sparse", "error", sparseErr.Error())
	}
	result.Mode = s.effectiveMode(useDense && !result.DenseFailed, useSparse && !result.SparseFailed)

	if result.Mode == domain.ModeNone {
		result.Chunks = []domain.ScoredChunk{}
	} else if s.cfg.Mode == domain.ModeHybridRerank {
		fused := Fuse(denseHits, sparseHits, s.cfg.Fusion, max(k, s.cfg.RerankTopN))
		result.Chunks = trimCandidates(rerankFusedCandidates(query, fused, s.cfg.RerankTopN), k)
	} else {
		result.Chunks = Fuse(denseHits, sparseHits, s.cfg.Fusion, k)
	}

	if s.observer != nil {
		s.observer.ObserveRetrieval(result, time.Since(start))
	}
	return result, nil
}

func (s *RetrievalService) searchDense(ctx context.Context, query string, k int) ([]domain.ScoredChunk, error) {
	if s.dense == nil {
		return nil, domain.WrapError(domain.ErrRetrievalUnavailable, "search dense", errors.New("dense retriever is not configured"))
	}
	return s.dense.SearchDense(ctx, query, k)
}

func (s *RetrievalService) searchSparse(ctx context.Context, query string, k int) ([]domain.ScoredChunk, error) {
	if s.sparse == nil {
		return nil, domain.WrapError(domain.ErrRetrievalUnavailable, "search sparse", errors.New("sparse retriever is not configured"))
	}
	return s.sparse.SearchSparse(ctx, query, k)
}

func (s *RetrievalService) effectiveMode(denseOK, sparseOK bool) domain.RetrievalMode {
	switch {
	case denseOK && sparseOK:
		return s.cfg.Mode
	case denseOK:
		return domain.ModeDense
	case sparseOK:
		return domain.ModeSparse
	default:
		return domain.ModeNone
	}
}
