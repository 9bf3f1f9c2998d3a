package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kirillkom/plc-fault-explainer/internal/core/domain"
	"github.com/kirillkom/plc-fault-explainer/internal/infrastructure/resilience"
)

func testExecutor() *resilience.Executor {
	return resilience.NewExecutor(resilience.Config{
		RetryMaxAttempts:    3,
		RetryInitialBackoff: time.Millisecond,
		RetryMaxBackoff:     2 * time.Millisecond,
		RetryMultiplier:     2,
		BreakerEnabled:      false,
	})
}

func TestCompleterRequestsJSONFormat(t *testing.T) {
	var payload map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			http.NotFound(w, r)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{"response":"  {\"summary\":\"s\"}\n"}`))
	}))
	defer server.Close()

	completer := NewCompleter(New(server.URL, "llama3", "nomic", testExecutor()))
	out, err := completer.Complete(context.Background(), "explain ALM_3021")
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if out != `{"summary":"s"}` {
		t.Fatalf("unexpected completion %q", out)
	}
	if payload["format"] != "json" || payload["model"] != "llama3" || payload["stream"] != false {
		t.Fatalf("unexpected payload: %v", payload)
	}
	if payload["prompt"] != "explain ALM_3021" {
		t.Fatalf("unexpected prompt: %v", payload["prompt"])
	}
}

func TestCompleterDoesNotRetry(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	completer := NewCompleter(New(server.URL, "gen", "embed", testExecutor()))
	_, err := completer.Complete(context.Background(), "prompt")
	if err == nil {
		t.Fatalf("expected error")
	}
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected temporary error, got %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("expected a single generate call, got %d", got)
	}
}

func TestEmbedRetriesTransientStatus(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			http.Error(w, "warming up", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"embeddings":[[0.1,0.2],[0.3,0.4]]}`))
	}))
	defer server.Close()

	embedder := NewEmbedder(New(server.URL, "gen", "embed", testExecutor()))
	vectors, err := embedder.Embed(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	if len(vectors) != 2 || atomic.LoadInt32(&calls) != 2 {
		t.Fatalf("expected 2 vectors after retry, got %d vectors in %d calls", len(vectors), calls)
	}
}

func TestEmbedIncludesHTTPBodyInError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model unavailable", http.StatusNotFound)
	}))
	defer server.Close()

	embedder := NewEmbedder(New(server.URL, "gen", "embed", testExecutor()))
	_, err := embedder.Embed(context.Background(), []string{"hello"})
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "model unavailable") {
		t.Fatalf("expected response body in error, got %v", err)
	}
}

func TestEmbedRejectsVectorCountMismatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"embeddings":[[0.1]]}`))
	}))
	defer server.Close()

	embedder := NewEmbedder(New(server.URL, "gen", "embed", testExecutor()))
	if _, err := embedder.Embed(context.Background(), []string{"a", "b"}); err == nil {
		t.Fatalf("expected mismatch error")
	}
}

func TestCompleterSurfacesOllamaErrorBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"model \"mistral\" not found, try pulling it first"}`))
	}))
	defer server.Close()

	_, err := NewCompleter(New(server.URL, "mistral", "nomic", testExecutor())).Complete(context.Background(), "p")
	if err == nil || !strings.Contains(err.Error(), `model "mistral" not found`) {
		t.Fatalf("expected model error in message, got %v", err)
	}
	if domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("404 must not be temporary: %v", err)
	}
}

func TestEmbedderRejectsErrorField(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"error":"model is loading"}`))
	}))
	defer server.Close()

	_, err := NewEmbedder(New(server.URL, "mistral", "nomic", testExecutor())).Embed(context.Background(), []string{"a"})
	if err == nil || !strings.Contains(err.Error(), "model is loading") {
		t.Fatalf("expected error field surfaced, got %v", err)
	}
}

func TestEmbedSplitsLargeInputIntoBatches(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		var req embedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if len(req.Input) > embedBatchSize {
			t.Errorf("batch of %d exceeds %d", len(req.Input), embedBatchSize)
		}
		vectors := make([][]float32, len(req.Input))
		for i := range vectors {
			vectors[i] = []float32{float32(i)}
		}
		_ = json.NewEncoder(w).Encode(embedResponse{Embeddings: vectors})
	}))
	defer server.Close()

	texts := make([]string, embedBatchSize*2+5)
	for i := range texts {
		texts[i] = "chunk"
	}
	embedder := NewEmbedder(New(server.URL, "gen", "embed", testExecutor()))
	vectors, err := embedder.Embed(context.Background(), texts)
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	if len(vectors) != len(texts) {
		t.Fatalf("expected %d vectors, got %d", len(texts), len(vectors))
	}
	if got := calls.Load(); got != 3 {
		t.Fatalf("expected 3 batches, got %d", got)
	}
}
