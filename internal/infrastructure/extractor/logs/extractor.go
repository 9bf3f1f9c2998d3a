package logs

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/kirillkom/plc-fault-explainer/internal/core/domain"
)

const (
	unknownTime    = "Unknown Time"
	unknownMachine = "Unknown Machine"
	unknownAlarm   = "Unknown Alarm"
)

var (
	timestampColumns = []string{"timestamp", "time"}
	machineColumns   = []string{"machine", "machine_id"}
	alarmColumns     = []string{"alarm", "alarm_code"}
)

type Extractor struct{}

func NewExtractor() *Extractor {
	return &Extractor{}
}

func (e *Extractor) Extensions() []string {
	return []string{".csv", ".json"}
}

// Extract emits one chunk per log row.
func (e *Extractor) Extract(_ context.Context, filename string, body io.Reader) ([]domain.Chunk, error) {
	header, rows, err := e.ReadTable(filename, body, 0)
	if err != nil {
		return nil, err
	}

	cols := newColumnIndex(header)
	file := path.Base(filename)
	chunks := make([]domain.Chunk, 0, len(rows))
	for _, row := range rows {
		meta := domain.Metadata{
			domain.MetaSource:      domain.SourceLogHistory,
			domain.MetaContentType: domain.ContentTypeLog,
			domain.MetaFile:        file,
		}
		if alarm := cols.value(row, alarmColumns...); alarm != "" {
			meta[domain.MetaCode] = alarm
		}
		chunks = append(chunks, domain.Chunk{
			Content:  textualize(cols, row),
			Metadata: meta,
		})
	}
	return chunks, nil
}

// textualize renders "At {timestamp}, {machine} triggered alarm {alarm}." and appends the
// machine state when the log has a state column.
func textualize(cols columnIndex, row []string) string {
	timestamp := orDefault(cols.value(row, timestampColumns...), unknownTime)
	machine := orDefault(cols.value(row, machineColumns...), unknownMachine)
	alarm := orDefault(cols.value(row, alarmColumns...), unknownAlarm)

	text := fmt.Sprintf("At %s, %s triggered alarm %s.", timestamp, machine, alarm)
	if cols.has("state") {
		text += fmt.Sprintf(" The machine state was recorded as '%s'.", cols.value(row, "state"))
	}
	return text
}

// columnIndex finds columns by case-insensitive name.
type columnIndex map[string]int

func newColumnIndex(header []string) columnIndex {
	cols := make(columnIndex, len(header))
	for i, name := range header {
		key := strings.ToLower(strings.TrimSpace(name))
		if _, ok := cols[key]; !ok {
			cols[key] = i
		}
	}
	return cols
}

func (c columnIndex) has(name string) bool {
	_, ok := c[name]
	return ok
}

// value returns the first non-blank cell among the candidate columns.
func (c columnIndex) value(row []string, names ...string) string {
	for _, name := range names {
		i, ok := c[name]
		if !ok || i >= len(row) {
			continue
		}
		if v := strings.TrimSpace(row[i]); v != "" {
			return v
		}
	}
	return ""
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
