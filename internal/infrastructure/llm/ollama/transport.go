package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/kirillkom/plc-fault-explainer/internal/infrastructure/resilience"
)

// maxResponseBytes bounds a decoded response; embedding batches are the largest bodies.
const maxResponseBytes = 64 << 20

// apiError is the body Ollama sends on failure, including 200 responses for some
// model-load problems.
type apiError struct {
	Error string `json:"error"`
}

func (c *Client) postJSON(ctx context.Context, path string, payload any, out any, operation string) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", operation, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create %s request: %w", operation, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ollama %s request: %w", operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		statusErr := resilience.NewHTTPStatusError("ollama", operation, resp)
		var apiErr apiError
		if json.Unmarshal([]byte(statusErr.Body), &apiErr) == nil && apiErr.Error != "" {
			statusErr.Body = apiErr.Error
		}
		return statusErr
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("read %s response: %w", operation, err)
	}
	var apiErr apiError
	if json.Unmarshal(raw, &apiErr) == nil && strings.TrimSpace(apiErr.Error) != "" {
		return fmt.Errorf("ollama %s: %w", operation, errors.New(apiErr.Error))
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s response: %w", operation, err)
	}
	return nil
}
