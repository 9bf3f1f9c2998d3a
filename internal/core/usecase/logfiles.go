package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/kirillkom/plc-fault-explainer/internal/core/domain"
	"github.com/kirillkom/plc-fault-explainer/internal/core/ports"
)

const defaultPreviewRows = 1001

// LogFileUseCase serves listings, previews and fault codes of uploaded log files.
type LogFileUseCase struct {
	storage ports.ObjectStorage
	tables  ports.TableReader
}

func NewLogFileUseCase(storage ports.ObjectStorage, tables ports.TableReader) *LogFileUseCase {
	return &LogFileUseCase{storage: storage, tables: tables}
}

func (uc *LogFileUseCase) ListFiles(ctx context.Context) ([]domain.StoredFile, error) {
	files, err := uc.storage.List(ctx, StorageDir(domain.IngestLog))
	if err != nil {
		return nil, fmt.Errorf("list log files: %w", err)
	}
	if files == nil {
		files = []domain.StoredFile{}
	}
	return files, nil
}

// Faults returns the sorted distinct values of the first alarm or fault column.
func (uc *LogFileUseCase) Faults(ctx context.Context, filename string) ([]string, error) {
	header, rows, err := uc.readTable(ctx, filename, 0)
	if err != nil {
		return nil, err
	}

	column := -1
	for i, name := range header {
		lower := strings.ToLower(name)
		if strings.Contains(lower, "alarm") || strings.Contains(lower, "fault") {
			column = i
			break
		}
	}
	if column < 0 {
		return []string{}, nil
	}

	seen := make(map[string]struct{})
	faults := make([]string, 0)
	for _, row := range rows {
		if column >= len(row) {
			continue
		}
		value := strings.TrimSpace(row[column])
		if value == "" {
			continue
		}
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		faults = append(faults, value)
	}
	sort.Strings(faults)
	return faults, nil
}

// Preview returns the header followed by rows, maxRows in total.
func (uc *LogFileUseCase) Preview(ctx context.Context, filename string, maxRows int) ([][]string, error) {
	if maxRows <= 0 {
		maxRows = defaultPreviewRows
	}
	header, rows, err := uc.readTable(ctx, filename, maxRows-1)
	if err != nil {
		return nil, err
	}
	out := make([][]string, 0, len(rows)+1)
	if len(header) > 0 {
		out = append(out, header)
	}
	out = append(out, rows...)
	return trimCandidates(out, maxRows), nil
}

func (uc *LogFileUseCase) readTable(ctx context.Context, filename string, maxRows int) ([]string, [][]string, error) {
	if strings.TrimSpace(filename) == "" {
		return nil, nil, domain.WrapError(domain.ErrInvalidInput, "read log file", errors.New("filename is required"))
	}
	key := StorageKey(domain.IngestLog, sanitizeFilename(filename))
	body, err := uc.storage.Open(ctx, key)
	if err != nil {
		return nil, nil, err
	}
	defer body.Close()

	header, rows, err := uc.tables.ReadTable(filename, body, maxRows)
	if err != nil {
		return nil, nil, fmt.Errorf("read log table: %w", err)
	}
	return header, rows, nil
}
