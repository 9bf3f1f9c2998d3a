package bootstrap

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/kirillkom/plc-fault-explainer/internal/config"
	"github.com/kirillkom/plc-fault-explainer/internal/core/domain"
	"github.com/kirillkom/plc-fault-explainer/internal/core/ports"
	"github.com/kirillkom/plc-fault-explainer/internal/core/usecase"
	"github.com/kirillkom/plc-fault-explainer/internal/infrastructure/chunking"
	"github.com/kirillkom/plc-fault-explainer/internal/infrastructure/docstore"
	"github.com/kirillkom/plc-fault-explainer/internal/infrastructure/extractor"
	"github.com/kirillkom/plc-fault-explainer/internal/infrastructure/extractor/docx"
	"github.com/kirillkom/plc-fault-explainer/internal/infrastructure/extractor/logs"
	"github.com/kirillkom/plc-fault-explainer/internal/infrastructure/extractor/manuals"
	"github.com/kirillkom/plc-fault-explainer/internal/infrastructure/extractor/pdftext"
	"github.com/kirillkom/plc-fault-explainer/internal/infrastructure/extractor/plaintext"
	"github.com/kirillkom/plc-fault-explainer/internal/infrastructure/extractor/spreadsheet"
	"github.com/kirillkom/plc-fault-explainer/internal/infrastructure/lexical"
	"github.com/kirillkom/plc-fault-explainer/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/plc-fault-explainer/internal/infrastructure/llm/openaicompat"
	"github.com/kirillkom/plc-fault-explainer/internal/infrastructure/queue/nats"
	"github.com/kirillkom/plc-fault-explainer/internal/infrastructure/repository/memory"
	"github.com/kirillkom/plc-fault-explainer/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/plc-fault-explainer/internal/infrastructure/resilience"
	"github.com/kirillkom/plc-fault-explainer/internal/infrastructure/storage/localfs"
	vectormemory "github.com/kirillkom/plc-fault-explainer/internal/infrastructure/vector/memory"
	"github.com/kirillkom/plc-fault-explainer/internal/infrastructure/vector/qdrant"
	"github.com/kirillkom/plc-fault-explainer/internal/observability/metrics"
)

const (
	StoreBackendPostgres = "postgres"
	StoreBackendMemory   = "memory"

	LLMProviderOllama = "ollama"
	LLMProviderOpenAI = "openai"
)

type App struct {
	Config config.Config

	// Queue is nil when NATS_URL is empty; uploads are then processed inline.
	Queue ports.MessageQueue

	// Breakers reports circuit-breaker state per outbound operation.
	Breakers *resilience.Executor

	Storage   *localfs.Storage
	Store     *docstore.Store
	Sparse    *lexical.Retriever
	Retrieval *usecase.RetrievalService
	Index     *usecase.IndexService
	IngestUC  *usecase.IngestUseCase
	ProcessUC *usecase.ProcessUseCase
	ExplainUC *usecase.ExplainUseCase
	HistoryUC *usecase.HistoryUseCase
	LogFileUC *usecase.LogFileUseCase

	closers []io.Closer
}

type options struct {
	registerer prometheus.Registerer
	service    string
}

type Option func(*options)

// WithRegisterer publishes retrieval and generation metrics on the given registry.
func WithRegisterer(service string, registerer prometheus.Registerer) Option {
	return func(o *options) {
		o.service = service
		o.registerer = registerer
	}
}

func New(ctx context.Context, cfg config.Config, opts ...Option) (_ *App, err error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	app := &App{Config: cfg}
	defer func() {
		if err != nil {
			app.Close()
		}
	}()

	var (
		observer     ports.RAGObserver
		executorOpts []resilience.Option
	)
	if o.registerer != nil {
		ragMetrics := metrics.NewRAGMetrics(o.service, o.registerer)
		observer = ragMetrics
		executorOpts = append(executorOpts, resilience.WithStateListener(ragMetrics.ObserveBreakerState))
	}
	executor := resilience.NewExecutor(resilienceConfig(cfg), executorOpts...)
	app.Breakers = executor

	mode, err := domain.ParseRetrievalMode(cfg.RAGRetrievalMode)
	if err != nil {
		return nil, fmt.Errorf("retrieval config: %w", err)
	}
	weights := domain.FusionWeights{Dense: cfg.RAGDenseWeight, Sparse: cfg.RAGSparseWeight}
	if err := weights.Validate(); err != nil {
		return nil, fmt.Errorf("retrieval config: %w", err)
	}

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("init object storage: %w", err)
	}
	app.Storage = storage

	completer, embedder, err := newLLM(cfg, executor)
	if err != nil {
		return nil, err
	}

	catalog, vectors, history, err := app.newBackend(ctx, cfg, executor)
	if err != nil {
		return nil, err
	}

	store := docstore.New(catalog, vectors, embedder)
	app.Store = store
	app.Sparse = lexical.NewRetriever()
	app.Index = usecase.NewIndexService(store, app.Sparse, observer)

	if strings.TrimSpace(cfg.NATSURL) != "" {
		queue, err := nats.New(cfg.NATSURL, nats.Options{
			IngestSubject:      cfg.NATSIngestSubject,
			IndexSubject:       cfg.NATSIndexSubject,
			ResilienceExecutor: executor,
		})
		if err != nil {
			return nil, fmt.Errorf("init message queue: %w", err)
		}
		app.Queue = queue
		app.closers = append(app.closers, queue)
	}

	var notifier ports.IndexNotifier = app.Index
	if app.Queue != nil {
		notifier = usecase.BroadcastNotifier{app.Index, usecase.QueueNotifier{Queue: app.Queue}}
	}

	tables := logs.NewExtractor()
	registry := extractor.NewRegistry().
		Register(domain.IngestLog, tables).
		Register(domain.IngestManual, manuals.NewExtractor()).
		Register(domain.IngestKnowledgeBase, plaintext.NewExtractor()).
		Register(domain.IngestKnowledgeBase, pdftext.NewExtractor()).
		Register(domain.IngestKnowledgeBase, spreadsheet.NewExtractor()).
		Register(domain.IngestKnowledgeBase, docx.NewExtractor())
	chunker := chunking.NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap)

	app.ProcessUC = usecase.NewProcessUseCase(storage, registry, chunker, store, notifier)
	app.IngestUC = usecase.NewIngestUseCase(storage, app.Queue, app.ProcessUC)
	app.Retrieval = usecase.NewRetrievalService(store, app.Sparse, observer, usecase.RetrievalConfig{
		Mode:        mode,
		DefaultTopK: cfg.RAGTopK,
		Candidates:  cfg.RAGHybridCandidates,
		RerankTopN:  cfg.RAGRerankTopN,
		Fusion: usecase.FusionOptions{
			Weights: weights,
			RRFK:    cfg.RAGFusionRRFK,
		},
	})
	app.ExplainUC = usecase.NewExplainUseCase(app.Retrieval, usecase.NewDiagnosisGenerator(completer, observer))
	app.HistoryUC = usecase.NewHistoryUseCase(history)
	app.LogFileUC = usecase.NewLogFileUseCase(storage, tables)

	// Sparse search stays unavailable until the next rebuild if this fails.
	if _, err := app.Index.Rebuild(ctx); err != nil {
		slog.Warn("initial_sparse_rebuild_failed", "error", err.Error())
	}

	slog.Info("bootstrap_ready",
		"store_backend", cfg.StoreBackend,
		"llm_provider", cfg.LLMProvider,
		"retrieval_mode", string(mode),
		"queue", app.Queue != nil,
		"sparse_chunks", app.Sparse.Size(),
	)
	return app, nil
}

// RunIndexSync rebuilds the local sparse snapshot whenever another node reports an
// index change. It blocks until ctx is done and returns nil without a queue.
func (a *App) RunIndexSync(ctx context.Context) error {
	if a.Queue == nil {
		return nil
	}
	return a.Queue.SubscribeIndexRefreshed(ctx, func(ctx context.Context) error {
		_, err := a.Index.Rebuild(ctx)
		return err
	})
}

func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			slog.Warn("close_failed", "error", err.Error())
		}
	}
	a.closers = nil
}

func (a *App) newBackend(
	ctx context.Context,
	cfg config.Config,
	executor *resilience.Executor,
) (ports.ChunkCatalog, ports.VectorIndex, ports.HistoryStore, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.StoreBackend)) {
	case StoreBackendMemory:
		return memory.NewChunkCatalog(), vectormemory.NewIndex(), memory.NewHistoryStore(), nil
	case StoreBackendPostgres, "":
		db, err := postgres.OpenDB(cfg.PostgresDSN)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("open postgres: %w", err)
		}
		a.closers = append(a.closers, db)
		if err := waitReady(ctx, "postgres", cfg.StartupWaitTimeout, db.PingContext); err != nil {
			return nil, nil, nil, err
		}
		if err := postgres.EnsureSchema(ctx, db); err != nil {
			return nil, nil, nil, fmt.Errorf("ensure schema: %w", err)
		}

		vectors := qdrant.New(cfg.QdrantURL, cfg.QdrantCollection, executor)
		if err := waitReady(ctx, "qdrant", cfg.StartupWaitTimeout, vectors.Ping); err != nil {
			return nil, nil, nil, err
		}
		return postgres.NewChunkRepository(db), vectors, postgres.NewHistoryRepository(db), nil
	default:
		return nil, nil, nil, fmt.Errorf("unknown STORE_BACKEND %q", cfg.StoreBackend)
	}
}

func newLLM(cfg config.Config, executor *resilience.Executor) (ports.Completer, ports.Embedder, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.LLMProvider)) {
	case LLMProviderOllama, "":
		client := ollama.New(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel, executor)
		return ollama.NewCompleter(client), ollama.NewEmbedder(client), nil
	case LLMProviderOpenAI:
		if strings.TrimSpace(cfg.OpenAIAPIKey) == "" {
			return nil, nil, fmt.Errorf("LLM_PROVIDER=openai requires OPENAI_API_KEY")
		}
		client := openaicompat.New(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIGenModel, cfg.OpenAIEmbedModel, executor)
		return openaicompat.NewCompleter(client), openaicompat.NewEmbedder(client), nil
	default:
		return nil, nil, fmt.Errorf("unknown LLM_PROVIDER %q", cfg.LLMProvider)
	}
}

// waitReady pings a dependency with exponential backoff until it answers or timeout elapses.
func waitReady(ctx context.Context, name string, timeout time.Duration, ping func(context.Context) error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 250 * time.Millisecond
	b.MaxInterval = 5 * time.Second
	b.MaxElapsedTime = timeout

	attempt := 0
	operation := func() error {
		attempt++
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		err := ping(pingCtx)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			slog.Warn("dependency_not_ready", "dependency", name, "attempt", attempt, "error", err.Error())
		}
		return err
	}
	if err := backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
		return fmt.Errorf("wait for %s: %w", name, err)
	}
	return nil
}

func resilienceConfig(cfg config.Config) resilience.Config {
	out := resilience.DefaultConfig()
	out.RetryMaxAttempts = cfg.ResilienceRetryMaxAttempts
	out.RetryInitialBackoff = cfg.ResilienceRetryInitialBackoff
	out.RetryMaxBackoff = cfg.ResilienceRetryMaxBackoff
	out.BreakerEnabled = cfg.ResilienceBreakerEnabled
	out.BreakerMinRequests = uint32(max(cfg.ResilienceBreakerMinRequests, 0))
	out.BreakerFailureRatio = cfg.ResilienceBreakerFailureRatio
	out.BreakerOpenTimeout = cfg.ResilienceBreakerOpenTimeout
	return out
}
