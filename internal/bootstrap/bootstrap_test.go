package bootstrap

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kirillkom/plc-fault-explainer/internal/config"
	"github.com/kirillkom/plc-fault-explainer/internal/core/domain"
)

func memoryConfig(t *testing.T) config.Config {
	t.Helper()
	return config.Config{
		StoreBackend:       StoreBackendMemory,
		LLMProvider:        LLMProviderOllama,
		OllamaURL:          "http://127.0.0.1:1",
		StoragePath:        t.TempDir(),
		ChunkSize:          1000,
		ChunkOverlap:       100,
		RAGTopK:            3,
		RAGRetrievalMode:   "hybrid",
		RAGDenseWeight:     0.5,
		RAGSparseWeight:    0.5,
		RAGFusionRRFK:      60,
		RAGRerankTopN:      10,
		StartupWaitTimeout: time.Second,
	}
}

func TestNewMemoryBackend(t *testing.T) {
	app, err := New(context.Background(), memoryConfig(t), WithRegisterer("test", prometheus.NewRegistry()))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer app.Close()

	if app.Queue != nil {
		t.Fatalf("queue should be nil without NATS_URL")
	}
	if app.Retrieval.Mode() != domain.ModeHybrid {
		t.Fatalf("unexpected mode %q", app.Retrieval.Mode())
	}
	if err := app.RunIndexSync(context.Background()); err != nil {
		t.Fatalf("RunIndexSync without queue should return nil, got %v", err)
	}

	files, err := app.IngestUC.ListFiles(context.Background(), domain.IngestLog)
	if err != nil || len(files) != 0 {
		t.Fatalf("expected empty log listing, got %v/%v", files, err)
	}
}

func TestNewRejectsBadConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"unknown mode", func(c *config.Config) { c.RAGRetrievalMode = "graph" }, "retrieval config"},
		{"negative weight", func(c *config.Config) { c.RAGDenseWeight = -1 }, "retrieval config"},
		{"unknown backend", func(c *config.Config) { c.StoreBackend = "mongo" }, "STORE_BACKEND"},
		{"unknown provider", func(c *config.Config) { c.LLMProvider = "bard" }, "LLM_PROVIDER"},
		{"openai without key", func(c *config.Config) { c.LLMProvider = LLMProviderOpenAI }, "OPENAI_API_KEY"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := memoryConfig(t)
			tt.mutate(&cfg)
			_, err := New(context.Background(), cfg)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestWaitReadyRetriesUntilPingSucceeds(t *testing.T) {
	calls := 0
	err := waitReady(context.Background(), "postgres", 5*time.Second, func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("connection refused")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("waitReady() error = %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 pings, got %d", calls)
	}
}

func TestWaitReadyGivesUpAfterTimeout(t *testing.T) {
	err := waitReady(context.Background(), "qdrant", 300*time.Millisecond, func(context.Context) error {
		return errors.New("connection refused")
	})
	if err == nil || !strings.Contains(err.Error(), "wait for qdrant") {
		t.Fatalf("expected timeout error, got %v", err)
	}
}

func TestWaitReadyStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := waitReady(ctx, "postgres", time.Minute, func(context.Context) error {
		return errors.New("connection refused")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestResilienceConfigFromEnv(t *testing.T) {
	cfg := config.Config{
		ResilienceRetryMaxAttempts:    5,
		ResilienceBreakerMinRequests:  -3,
		ResilienceBreakerFailureRatio: 0.25,
	}
	got := resilienceConfig(cfg)
	if got.RetryMaxAttempts != 5 || got.BreakerFailureRatio != 0.25 {
		t.Fatalf("unexpected config %+v", got)
	}
	if got.BreakerMinRequests != 0 {
		t.Fatalf("negative min requests should clamp to 0, got %d", got.BreakerMinRequests)
	}
	if got.RetryMultiplier != 2.0 {
		t.Fatalf("multiplier should keep its default, got %v", got.RetryMultiplier)
	}
}
