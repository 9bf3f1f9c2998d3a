// Package manuals reads fault-code manuals written as JSON or YAML lists.
package manuals

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kirillkom/plc-fault-explainer/internal/core/domain"
)

type Extractor struct{}

func NewExtractor() *Extractor {
	return &Extractor{}
}

func (e *Extractor) Extensions() []string {
	return []string{".json", ".yaml", ".yml"}
}

// Extract emits one chunk per manual entry:
// "Fault Code: X. Description: D. Diagnosis: G. Resolution: R."
func (e *Extractor) Extract(_ context.Context, filename string, body io.Reader) ([]domain.Chunk, error) {
	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("read manual: %w", err)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return []domain.Chunk{}, nil
	}

	var entries []map[string]any
	switch strings.ToLower(path.Ext(filename)) {
	case ".json":
		err = json.Unmarshal(raw, &entries)
	default:
		err = yaml.Unmarshal(raw, &entries)
	}
	if err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "decode manual", err)
	}

	chunks := make([]domain.Chunk, 0, len(entries))
	for _, entry := range entries {
		code := field(entry, "fault")
		content := fmt.Sprintf(
			"Fault Code: %s. Description: %s. Diagnosis: %s. Resolution: %s.",
			orDefault(code, "N/A"),
			field(entry, "description"),
			field(entry, "diagnosis"),
			field(entry, "resolution"),
		)
		chunks = append(chunks, domain.Chunk{
			Content: content,
			Metadata: domain.Metadata{
				domain.MetaSource: domain.SourceManual,
				domain.MetaCode:   orDefault(code, "unknown"),
			},
		})
	}
	return chunks, nil
}

func field(entry map[string]any, key string) string {
	v, ok := entry[key]
	if !ok || v == nil {
		return ""
	}
	switch typed := v.(type) {
	case string:
		return strings.TrimSpace(typed)
	case float64, int, int64, bool:
		return fmt.Sprintf("%v", typed)
	default:
		encoded, err := json.Marshal(typed)
		if err != nil {
			return fmt.Sprintf("%v", typed)
		}
		return string(encoded)
	}
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
