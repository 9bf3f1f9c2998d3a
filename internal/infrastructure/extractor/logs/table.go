// Package logs reads CSV and JSON machine logs and turns each row into a sentence.
package logs

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/kirillkom/plc-fault-explainer/internal/core/domain"
)

// ReadTable returns the header and up to maxRows data rows. JSON logs may be a list of
// objects or a single object; the header follows first-seen key order.
func (e *Extractor) ReadTable(filename string, body io.Reader, maxRows int) ([]string, [][]string, error) {
	switch strings.ToLower(path.Ext(filename)) {
	case ".csv":
		return readCSV(body, maxRows)
	case ".json":
		return readJSON(body, maxRows)
	default:
		return nil, nil, domain.WrapError(domain.ErrUnsupportedFormat, "read log table", fmt.Errorf("unsupported log file %s", filename))
	}
}

func readCSV(body io.Reader, maxRows int) ([]string, [][]string, error) {
	reader := csv.NewReader(body)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return []string{}, [][]string{}, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("read csv header: %w", err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	rows := make([][]string, 0)
	for maxRows <= 0 || len(rows) < maxRows {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("read csv row: %w", err)
		}
		row := make([]string, len(header))
		copy(row, record)
		rows = append(rows, row)
	}
	return header, rows, nil
}

type orderedRecord struct {
	keys   []string
	values map[string]string
}

func readJSON(body io.Reader, maxRows int) ([]string, [][]string, error) {
	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, nil, fmt.Errorf("read json log: %w", err)
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return []string{}, [][]string{}, nil
	}

	var records []orderedRecord
	switch raw[0] {
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, nil, fmt.Errorf("decode json log: %w", err)
		}
		for _, item := range items {
			if maxRows > 0 && len(records) >= maxRows {
				break
			}
			record, err := decodeOrdered(item)
			if err != nil {
				return nil, nil, err
			}
			records = append(records, record)
		}
	case '{':
		record, err := decodeOrdered(raw)
		if err != nil {
			return nil, nil, err
		}
		records = append(records, record)
	default:
		return nil, nil, domain.WrapError(domain.ErrInvalidInput, "decode json log", errors.New("expected an object or a list of objects"))
	}

	header := make([]string, 0)
	seen := make(map[string]struct{})
	for _, record := range records {
		for _, key := range record.keys {
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			header = append(header, key)
		}
	}

	rows := make([][]string, 0, len(records))
	for _, record := range records {
		row := make([]string, len(header))
		for i, key := range header {
			row[i] = record.values[key]
		}
		rows = append(rows, row)
	}
	return header, rows, nil
}

func decodeOrdered(raw json.RawMessage) (orderedRecord, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return orderedRecord{}, fmt.Errorf("decode json log row: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return orderedRecord{}, domain.WrapError(domain.ErrInvalidInput, "decode json log row", errors.New("row is not an object"))
	}

	record := orderedRecord{values: make(map[string]string)}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return orderedRecord{}, fmt.Errorf("decode json log key: %w", err)
		}
		key, _ := keyTok.(string)

		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return orderedRecord{}, fmt.Errorf("decode json log value: %w", err)
		}
		if _, ok := record.values[key]; !ok {
			record.keys = append(record.keys, key)
		}
		record.values[key] = cellText(value)
	}
	return record, nil
}

func cellText(value json.RawMessage) string {
	trimmed := bytes.TrimSpace(value)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return ""
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err == nil {
			return s
		}
	}
	var compact bytes.Buffer
	if err := json.Compact(&compact, trimmed); err != nil {
		return string(trimmed)
	}
	return compact.String()
}
