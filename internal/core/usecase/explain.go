package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kirillkom/plc-fault-explainer/internal/core/domain"
	"github.com/kirillkom/plc-fault-explainer/internal/core/ports"
)

// DiagnosisGenerator asks the completion model once and parses whatever comes back.
type DiagnosisGenerator struct {
	completer ports.Completer
	observer  ports.RAGObserver
}

func NewDiagnosisGenerator(completer ports.Completer, observer ports.RAGObserver) *DiagnosisGenerator {
	return &DiagnosisGenerator{completer: completer, observer: observer}
}

// Explain returns a complete record or an error. A parse fallback is reported
// through the tier, never as an error.
func (g *DiagnosisGenerator) Explain(ctx context.Context, query string, contextChunks []string) (domain.DiagnosisRecord, domain.ParseTier, error) {
	prompt := buildDiagnosisPrompt(query, contextChunks)

	start := time.Now()
	raw, err := g.completer.Complete(ctx, prompt)
	if g.observer != nil {
		g.observer.ObserveGeneration(time.Since(start), err)
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return domain.DiagnosisRecord{}, "", ctxErr
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return domain.DiagnosisRecord{}, "", err
		}
		return domain.DiagnosisRecord{}, "", domain.WrapError(domain.ErrGenerationTransport, "complete diagnosis", err)
	}

	record, tier := ParseDiagnosis(raw)
	if g.observer != nil {
		g.observer.ObserveParseTier(tier)
	}
	if tier.Degraded() {
		slog.Warn("generation_parse_degraded", "tier", string(tier), "response_bytes", len(raw))
	}
	return record, tier, nil
}

// ExplainUseCase runs retrieval then generation for one query.
type ExplainUseCase struct {
	retriever ports.ChunkSearcher
	generator *DiagnosisGenerator
}

func NewExplainUseCase(retriever ports.ChunkSearcher, generator *DiagnosisGenerator) *ExplainUseCase {
	return &ExplainUseCase{retriever: retriever, generator: generator}
}

func (uc *ExplainUseCase) Explain(ctx context.Context, query string, topK int) (*domain.QueryResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "explain fault", errors.New("query is required"))
	}

	retrieval, err := uc.retriever.Retrieve(ctx, query, topK)
	if err != nil {
		return nil, fmt.Errorf("retrieve context: %w", err)
	}

	evidence := domain.Contents(retrieval.Chunks)
	record, tier, err := uc.generator.Explain(ctx, query, evidence)
	if err != nil {
		return nil, fmt.Errorf("generate diagnosis: %w", err)
	}

	return &domain.QueryResult{
		Query:         query,
		Structured:    record,
		Evidence:      evidence,
		Sources:       retrieval.Chunks,
		RetrievalMode: retrieval.Mode,
		ParseTier:     tier,
	}, nil
}
