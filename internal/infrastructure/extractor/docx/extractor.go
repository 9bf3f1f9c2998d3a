// Package docx reads paragraph text out of Word documents.
package docx

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/kirillkom/plc-fault-explainer/internal/core/domain"
)

const (
	documentPart = "word/document.xml"
	wordNS       = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"

	// maxDocumentBytes bounds the decompressed main part of one document.
	maxDocumentBytes = 32 << 20
)

type Extractor struct{}

func NewExtractor() *Extractor {
	return &Extractor{}
}

func (e *Extractor) Extensions() []string {
	return []string{".docx"}
}

// Extract returns the document body as one chunk with one line per paragraph.
// Tables contribute their cell paragraphs in reading order.
func (e *Extractor) Extract(ctx context.Context, filename string, body io.Reader) ([]domain.Chunk, error) {
	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("read docx: %w", err)
	}
	archive, err := zip.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "open docx", err)
	}

	var part *zip.File
	for _, f := range archive.File {
		if f.Name == documentPart {
			part = f
			break
		}
	}
	if part == nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "open docx", fmt.Errorf("%s has no %s", filename, documentPart))
	}

	rc, err := part.Open()
	if err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "open docx body", err)
	}
	defer rc.Close()

	paragraphs, err := readParagraphs(ctx, io.LimitReader(rc, maxDocumentBytes))
	if err != nil {
		return nil, err
	}

	text := strings.TrimSpace(strings.Join(paragraphs, "\n"))
	if text == "" {
		return []domain.Chunk{}, nil
	}
	return []domain.Chunk{{
		Content: text,
		Metadata: domain.Metadata{
			domain.MetaSource: path.Base(strings.ReplaceAll(filename, "\\", "/")),
			domain.MetaType:   "docx",
		},
	}}, nil
}

func readParagraphs(ctx context.Context, r io.Reader) ([]string, error) {
	decoder := xml.NewDecoder(r)
	var (
		paragraphs []string
		current    strings.Builder
		inText     bool
	)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		token, err := decoder.Token()
		if errors.Is(err, io.EOF) {
			return paragraphs, nil
		}
		if err != nil {
			return nil, domain.WrapError(domain.ErrInvalidInput, "parse docx body", err)
		}

		switch t := token.(type) {
		case xml.StartElement:
			if t.Name.Space != wordNS {
				continue
			}
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				current.WriteByte('\t')
			case "br", "cr":
				current.WriteByte('\n')
			}
		case xml.EndElement:
			if t.Name.Space != wordNS {
				continue
			}
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				paragraphs = append(paragraphs, current.String())
				current.Reset()
			}
		case xml.CharData:
			if inText {
				current.Write(t)
			}
		}
	}
}
