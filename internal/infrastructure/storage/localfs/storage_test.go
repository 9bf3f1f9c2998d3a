package localfs

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kirillkom/plc-fault-explainer/internal/core/domain"
)

func TestSaveOpenRoundTrip(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	ctx := context.Background()
	if err := s.Save(ctx, "logs/line1.csv", strings.NewReader("alarm\nALM_3021\n")); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	rc, err := s.Open(ctx, "logs/line1.csv")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer rc.Close()
	raw, _ := io.ReadAll(rc)
	if string(raw) != "alarm\nALM_3021\n" {
		t.Fatalf("unexpected content %q", raw)
	}
}

func TestOpenMissingIsNotFound(t *testing.T) {
	s, _ := New(t.TempDir())
	_, err := s.Open(context.Background(), "logs/none.csv")
	if !domain.IsKind(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestRejectsEscapingKey(t *testing.T) {
	s, _ := New(t.TempDir())
	err := s.Save(context.Background(), "../outside.csv", strings.NewReader("x"))
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestListSkipsHiddenAndDirs(t *testing.T) {
	base := t.TempDir()
	s, _ := New(base)
	ctx := context.Background()
	_ = s.Save(ctx, "logs/b.csv", strings.NewReader("bb"))
	_ = s.Save(ctx, "logs/a.json", strings.NewReader("a"))
	_ = os.MkdirAll(filepath.Join(base, "logs", "nested"), 0o755)
	_ = os.WriteFile(filepath.Join(base, "logs", ".partial"), []byte("x"), 0o644)

	files, err := s.List(ctx, "logs")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(files) != 2 || files[0].Filename != "a.json" || files[1].Size != 2 {
		t.Fatalf("unexpected listing %+v", files)
	}
	if files[0].UploadedAt == nil {
		t.Fatalf("expected upload timestamp")
	}

	empty, err := s.List(ctx, "manuals")
	if err != nil || len(empty) != 0 {
		t.Fatalf("expected empty listing for missing dir, got %v, %v", empty, err)
	}
}
