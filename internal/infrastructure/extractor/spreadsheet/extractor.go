// Package spreadsheet renders each XLSX sheet as a markdown table.
package spreadsheet

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/plc-fault-explainer/internal/core/domain"
)

type Extractor struct{}

func NewExtractor() *Extractor {
	return &Extractor{}
}

func (e *Extractor) Extensions() []string {
	return []string{".xlsx", ".xlsm"}
}

func (e *Extractor) Extract(_ context.Context, filename string, body io.Reader) ([]domain.Chunk, error) {
	book, err := excelize.OpenReader(body)
	if err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "open workbook", err)
	}
	defer book.Close()

	source := path.Base(filename)
	chunks := make([]domain.Chunk, 0)
	for _, sheet := range book.GetSheetList() {
		rows, err := book.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("read sheet %s: %w", sheet, err)
		}
		table := markdownTable(rows)
		if table == "" {
			continue
		}
		chunks = append(chunks, domain.Chunk{
			Content: fmt.Sprintf("Sheet: %s\n\n%s", sheet, table),
			Metadata: domain.Metadata{
				domain.MetaSource: source,
				domain.MetaSheet:  sheet,
				domain.MetaType:   "excel",
			},
		})
	}
	return chunks, nil
}

// markdownTable treats the first row as the header. Short rows are padded.
func markdownTable(rows [][]string) string {
	width := 0
	for _, row := range rows {
		if len(row) > width {
			width = len(row)
		}
	}
	if width == 0 {
		return ""
	}

	var b strings.Builder
	writeRow := func(cells []string) {
		b.WriteString("|")
		for i := 0; i < width; i++ {
			cell := ""
			if i < len(cells) {
				cell = strings.ReplaceAll(strings.TrimSpace(cells[i]), "|", `\|`)
				cell = strings.ReplaceAll(cell, "\n", " ")
			}
			b.WriteString(" ")
			b.WriteString(cell)
			b.WriteString(" |")
		}
		b.WriteString("\n")
	}

	writeRow(rows[0])
	separator := make([]string, width)
	for i := range separator {
		separator[i] = "---"
	}
	writeRow(separator)
	for _, row := range rows[1:] {
		writeRow(row)
	}
	return strings.TrimRight(b.String(), "\n")
}
