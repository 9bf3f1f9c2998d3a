// Package extractor routes uploaded files to a format extractor by ingest kind and extension.
package extractor

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/kirillkom/plc-fault-explainer/internal/core/domain"
)

// Format turns one file of a known extension into chunks.
type Format interface {
	Extensions() []string
	Extract(ctx context.Context, filename string, body io.Reader) ([]domain.Chunk, error)
}

type Registry struct {
	formats map[domain.IngestKind]map[string]Format
}

func NewRegistry() *Registry {
	return &Registry{formats: make(map[domain.IngestKind]map[string]Format)}
}

func (r *Registry) Register(kind domain.IngestKind, format Format) *Registry {
	byExt, ok := r.formats[kind]
	if !ok {
		byExt = make(map[string]Format)
		r.formats[kind] = byExt
	}
	for _, ext := range format.Extensions() {
		byExt[strings.ToLower(ext)] = format
	}
	return r
}

func (r *Registry) Supports(kind domain.IngestKind, filename string) bool {
	_, ok := r.lookup(kind, filename)
	return ok
}

func (r *Registry) Extract(ctx context.Context, kind domain.IngestKind, filename string, body io.Reader) ([]domain.Chunk, error) {
	format, ok := r.lookup(kind, filename)
	if !ok {
		return nil, domain.WrapError(
			domain.ErrUnsupportedFormat,
			"extract",
			fmt.Errorf("%s files are not supported for %s ingestion", extension(filename), kind),
		)
	}

	chunks, err := format.Extract(ctx, filename, body)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", filename, err)
	}
	if kind == domain.IngestKnowledgeBase {
		base := path.Base(strings.ReplaceAll(filename, "\\", "/"))
		for i := range chunks {
			if chunks[i].Metadata == nil {
				chunks[i].Metadata = domain.Metadata{}
			}
			if chunks[i].Metadata.Source() == "" {
				chunks[i].Metadata[domain.MetaSource] = base
			}
			if chunks[i].Metadata.ContentType() == "" {
				chunks[i].Metadata[domain.MetaContentType] = domain.ContentTypeKnowledgeBase
			}
		}
	}
	return chunks, nil
}

func (r *Registry) lookup(kind domain.IngestKind, filename string) (Format, bool) {
	byExt, ok := r.formats[kind]
	if !ok {
		return nil, false
	}
	format, ok := byExt[extension(filename)]
	return format, ok
}

func extension(filename string) string {
	return strings.ToLower(path.Ext(strings.ReplaceAll(filename, "\\", "/")))
}
