package logs

import (
	"context"
	"strings"
	"testing"

	"github.com/kirillkom/plc-fault-explainer/internal/core/domain"
)

func TestExtractCSVRowsToSentences(t *testing.T) {
	body := "Timestamp,Machine,Alarm,State\n2024-01-01 10:00,press-1,ALM_3021,RUN\n2024-01-01 10:05,,ALM_1001,\n"
	chunks, err := NewExtractor().Extract(context.Background(), "uploads/line1.csv", strings.NewReader(body))
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	want := "At 2024-01-01 10:00, press-1 triggered alarm ALM_3021. The machine state was recorded as 'RUN'."
	if chunks[0].Content != want {
		t.Fatalf("unexpected sentence %q", chunks[0].Content)
	}
	if !strings.Contains(chunks[1].Content, "Unknown Machine triggered alarm ALM_1001") {
		t.Fatalf("expected machine fallback, got %q", chunks[1].Content)
	}
	meta := chunks[0].Metadata
	if meta.Source() != domain.SourceLogHistory || meta.ContentType() != domain.ContentTypeLog || meta.String(domain.MetaFile) != "line1.csv" {
		t.Fatalf("unexpected metadata %+v", meta)
	}
	if meta.String(domain.MetaCode) != "ALM_3021" {
		t.Fatalf("expected alarm code in metadata, got %+v", meta)
	}
}

func TestExtractWithoutStateColumn(t *testing.T) {
	body := "time,machine_id,alarm_code\n09:00,robot-7,ALM_42\n"
	chunks, err := NewExtractor().Extract(context.Background(), "a.csv", strings.NewReader(body))
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if chunks[0].Content != "At 09:00, robot-7 triggered alarm ALM_42." {
		t.Fatalf("unexpected sentence %q", chunks[0].Content)
	}
}

func TestReadTableJSONKeepsKeyOrder(t *testing.T) {
	body := `[{"timestamp":"t1","machine":"m1","alarm":"A1","count":3},{"timestamp":"t2","machine":"m2","alarm":null,"extra":{"x":1}}]`
	header, rows, err := NewExtractor().ReadTable("log.json", strings.NewReader(body), 0)
	if err != nil {
		t.Fatalf("ReadTable() error = %v", err)
	}
	wantHeader := []string{"timestamp", "machine", "alarm", "count", "extra"}
	if strings.Join(header, ",") != strings.Join(wantHeader, ",") {
		t.Fatalf("unexpected header %v", header)
	}
	if rows[0][3] != "3" || rows[1][2] != "" || rows[1][4] != `{"x":1}` {
		t.Fatalf("unexpected rows %q", rows)
	}
}

func TestReadTableSingleJSONObject(t *testing.T) {
	header, rows, err := NewExtractor().ReadTable("log.json", strings.NewReader(`{"alarm":"ALM_1"}`), 0)
	if err != nil {
		t.Fatalf("ReadTable() error = %v", err)
	}
	if len(header) != 1 || len(rows) != 1 || rows[0][0] != "ALM_1" {
		t.Fatalf("unexpected table %v %v", header, rows)
	}
}

func TestReadTableMaxRows(t *testing.T) {
	body := "alarm\nA\nB\nC\n"
	_, rows, err := NewExtractor().ReadTable("a.csv", strings.NewReader(body), 2)
	if err != nil {
		t.Fatalf("ReadTable() error = %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
}

func TestReadTableUnsupported(t *testing.T) {
	_, _, err := NewExtractor().ReadTable("a.xml", strings.NewReader("<a/>"), 0)
	if !domain.IsKind(err, domain.ErrUnsupportedFormat) {
		t.Fatalf("expected unsupported format, got %v", err)
	}
}
