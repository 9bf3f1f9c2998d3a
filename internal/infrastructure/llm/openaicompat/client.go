// Package openaicompat adapts any OpenAI-compatible endpoint to the completion and embedding ports.
package openaicompat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/kirillkom/plc-fault-explainer/internal/infrastructure/resilience"
)

const (
	generateOperation = "openai.generate"
	embedOperation    = "openai.embed"
)

type Client struct {
	api        openai.Client
	genModel   string
	embedModel string
	executor   *resilience.Executor
}

// New disables the SDK retry loop; retries go through the shared executor instead.
func New(apiKey, baseURL, genModel, embedModel string, executor *resilience.Executor) *Client {
	if executor == nil {
		executor = resilience.NewExecutor(resilience.DefaultConfig())
	}
	opts := []option.RequestOption{option.WithMaxRetries(0)}
	if strings.TrimSpace(apiKey) != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	if strings.TrimSpace(baseURL) != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimRight(baseURL, "/")+"/"))
	}
	return &Client{
		api:        openai.NewClient(opts...),
		genModel:   genModel,
		embedModel: embedModel,
		executor:   executor,
	}
}

type Completer struct {
	client *Client
}

func NewCompleter(client *Client) *Completer {
	return &Completer{client: client}
}

func (c *Completer) Complete(ctx context.Context, prompt string) (string, error) {
	var content string
	err := c.client.executor.ExecuteOnce(ctx, generateOperation, func(callCtx context.Context) error {
		resp, err := c.client.api.Chat.Completions.New(callCtx, openai.ChatCompletionNewParams{
			Messages: []openai.ChatCompletionMessageParamUnion{
				openai.UserMessage(prompt),
			},
			Model: openai.ChatModel(c.client.genModel),
			ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
				OfJSONObject: &openai.ResponseFormatJSONObjectParam{},
			},
		})
		if err != nil {
			return fmt.Errorf("openai chat completion: %w", err)
		}
		if len(resp.Choices) == 0 {
			return errors.New("openai chat completion: no choices returned")
		}
		content = resp.Choices[0].Message.Content
		return nil
	}, classifyOpenAIError)
	if err != nil {
		return "", resilience.WrapTemporaryIfNeeded("openai generate", err, classifyOpenAIError)
	}
	return strings.TrimSpace(content), nil
}

type Embedder struct {
	client *Client
}

func NewEmbedder(client *Client) *Embedder {
	return &Embedder{client: client}
}

func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	var vectors [][]float32
	err := e.client.executor.Execute(ctx, embedOperation, func(callCtx context.Context) error {
		resp, err := e.client.api.Embeddings.New(callCtx, openai.EmbeddingNewParams{
			Input: openai.EmbeddingNewParamsInputUnion{
				OfArrayOfStrings: texts,
			},
			Model: openai.EmbeddingModel(e.client.embedModel),
		})
		if err != nil {
			return fmt.Errorf("openai embeddings: %w", err)
		}
		if len(resp.Data) != len(texts) {
			return fmt.Errorf("openai embeddings: expected %d vectors, got %d", len(texts), len(resp.Data))
		}
		vectors = make([][]float32, len(resp.Data))
		for _, data := range resp.Data {
			if data.Index < 0 || int(data.Index) >= len(vectors) {
				return fmt.Errorf("openai embeddings: index %d out of range", data.Index)
			}
			vectors[data.Index] = toFloat32(data.Embedding)
		}
		return nil
	}, classifyOpenAIError)
	if err != nil {
		return nil, resilience.WrapTemporaryIfNeeded("openai embed", err, classifyOpenAIError)
	}
	return vectors, nil
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

func classifyOpenAIError(err error) resilience.ErrorClassification {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return resilience.ClassifyHTTPError(&resilience.HTTPStatusError{
			Service:    "openai",
			StatusCode: apiErr.StatusCode,
		})
	}
	return resilience.ClassifyHTTPError(err)
}

func toFloat32(f64 []float64) []float32 {
	f32 := make([]float32, len(f64))
	for i, v := range f64 {
		f32[i] = float32(v)
	}
	return f32
}
