package ollama

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/kirillkom/plc-fault-explainer/internal/infrastructure/resilience"
)

const (
	generateOperation = "ollama.generate"
	embedOperation    = "ollama.embed"

	// embedBatchSize bounds one /api/embed call; a PDF manual can yield thousands of chunks.
	embedBatchSize = 64
)

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
	Format string `json:"format"`
}

type generateResponse struct {
	Response string `json:"response"`
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

type Client struct {
	baseURL    string
	genModel   string
	embedModel string
	httpClient *http.Client
	executor   *resilience.Executor
}

// New builds a client without a request timeout; generation is bounded by the caller context.
func New(baseURL, genModel, embedModel string, executor *resilience.Executor) *Client {
	if executor == nil {
		executor = resilience.NewExecutor(resilience.DefaultConfig())
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		genModel:   genModel,
		embedModel: embedModel,
		httpClient: &http.Client{},
		executor:   executor,
	}
}

// Completer implements ports.Completer over /api/generate in JSON mode.
type Completer struct {
	client *Client
}

func NewCompleter(client *Client) *Completer {
	return &Completer{client: client}
}

// Complete sends exactly one request. The breaker may reject it, but it is never retried.
func (c *Completer) Complete(ctx context.Context, prompt string) (string, error) {
	reqBody := generateRequest{Model: c.client.genModel, Prompt: prompt, Format: "json"}

	var response generateResponse
	err := c.client.executor.ExecuteOnce(ctx, generateOperation, func(callCtx context.Context) error {
		return c.client.postJSON(callCtx, "/api/generate", reqBody, &response, "generate")
	}, resilience.ClassifyHTTPError)
	if err != nil {
		return "", resilience.WrapTemporaryIfNeeded("ollama generate", err, resilience.ClassifyHTTPError)
	}
	return strings.TrimSpace(response.Response), nil
}

type Embedder struct {
	client *Client
}

func NewEmbedder(client *Client) *Embedder {
	return &Embedder{client: client}
}

// Embed sends texts in batches of embedBatchSize. Each batch is retried on its own.
func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += embedBatchSize {
		batch := texts[start:min(start+embedBatchSize, len(texts))]
		vectors, err := e.embedBatch(ctx, batch)
		if err != nil {
			return nil, err
		}
		out = append(out, vectors...)
	}
	return out, nil
}

func (e *Embedder) embedBatch(ctx context.Context, batch []string) ([][]float32, error) {
	request := embedRequest{Model: e.client.embedModel, Input: batch}

	var response embedResponse
	err := e.client.executor.Execute(ctx, embedOperation, func(callCtx context.Context) error {
		return e.client.postJSON(callCtx, "/api/embed", request, &response, "embed")
	}, resilience.ClassifyHTTPError)
	if err != nil {
		return nil, resilience.WrapTemporaryIfNeeded("ollama embed", err, resilience.ClassifyHTTPError)
	}
	if len(response.Embeddings) != len(batch) {
		return nil, fmt.Errorf("ollama embed: expected %d vectors, got %d", len(batch), len(response.Embeddings))
	}
	return response.Embeddings, nil
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("empty embedding result")
	}
	return vectors[0], nil
}
