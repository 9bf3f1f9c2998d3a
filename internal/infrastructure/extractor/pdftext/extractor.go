// Package pdftext extracts plain text page by page.
package pdftext

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/kirillkom/plc-fault-explainer/internal/core/domain"
)

type Extractor struct{}

func NewExtractor() *Extractor {
	return &Extractor{}
}

func (e *Extractor) Extensions() []string {
	return []string{".pdf"}
}

// Extract emits one chunk per page with text. Pages are numbered from 1.
func (e *Extractor) Extract(ctx context.Context, filename string, body io.Reader) (chunks []domain.Chunk, err error) {
	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("read pdf: %w", err)
	}

	// The parser panics on some malformed files.
	defer func() {
		if r := recover(); r != nil {
			chunks = nil
			err = domain.WrapError(domain.ErrInvalidInput, "parse pdf", fmt.Errorf("%v", r))
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "open pdf", err)
	}

	source := path.Base(filename)
	chunks = make([]domain.Chunk, 0, reader.NumPage())
	for i := 1; i <= reader.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("read pdf page %d: %w", i, err)
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		chunks = append(chunks, domain.Chunk{
			Content: text,
			Metadata: domain.Metadata{
				domain.MetaSource: source,
				domain.MetaPage:   i,
				domain.MetaType:   "pdf",
			},
		})
	}
	return chunks, nil
}
