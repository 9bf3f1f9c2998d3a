package plaintext

import (
	"context"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/kirillkom/plc-fault-explainer/internal/core/domain"
)

type Extractor struct{}

func NewExtractor() *Extractor {
	return &Extractor{}
}

func (e *Extractor) Extensions() []string {
	return []string{".txt", ".md", ".log"}
}

// Extract returns the whole file as one chunk; splitting happens later.
func (e *Extractor) Extract(_ context.Context, filename string, body io.Reader) ([]domain.Chunk, error) {
	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("read source document: %w", err)
	}

	if !utf8.Valid(raw) {
		return nil, domain.WrapError(domain.ErrUnsupportedFormat, "extract text", fmt.Errorf("binary content in %s", filename))
	}

	text := strings.TrimSpace(string(raw))
	if text == "" {
		return []domain.Chunk{}, nil
	}
	return []domain.Chunk{{
		Content: text,
		Metadata: domain.Metadata{
			domain.MetaType: "text",
		},
	}}, nil
}
