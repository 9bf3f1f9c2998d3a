package chunking

import (
	"strings"
	"testing"

	"github.com/kirillkom/plc-fault-explainer/internal/core/domain"
)

func TestSplitShortTextIsOnePiece(t *testing.T) {
	s := NewSplitter(100, 10)
	got := s.Split("  ALM_3021 vacuum pressure low  ")
	if len(got) != 1 || got[0] != "ALM_3021 vacuum pressure low" {
		t.Fatalf("unexpected pieces: %q", got)
	}
}

func TestSplitRespectsSizeAndOverlap(t *testing.T) {
	s := NewSplitter(20, 5)
	text := strings.Repeat("abcdefghij", 6)
	got := s.Split(text)
	if len(got) < 3 {
		t.Fatalf("expected several pieces, got %q", got)
	}
	for _, piece := range got {
		if len([]rune(piece)) > 20 {
			t.Fatalf("piece too long: %q", piece)
		}
	}
	if !strings.HasPrefix(got[1], got[0][15:]) {
		t.Fatalf("expected 5 rune overlap between %q and %q", got[0], got[1])
	}
}

func TestSplitPrefersWordBreaks(t *testing.T) {
	s := NewSplitter(16, 0)
	got := s.Split("check vacuum pump seal and filter")
	want := []string{"check vacuum", "pump seal and", "filter"}
	if len(got) != len(want) {
		t.Fatalf("Split() = %q, want %q", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Split() = %q, want %q", got, want)
		}
	}
}

func TestSplitChunksKeepsMetadata(t *testing.T) {
	s := NewSplitter(10, 0)
	chunks := []domain.Chunk{
		{Content: "short", Metadata: domain.Metadata{"source": "a.pdf"}},
		{Content: "page one text that is long", Metadata: domain.Metadata{"source": "b.pdf", "page": 2}},
	}
	got := s.SplitChunks(chunks)
	if len(got) < 3 {
		t.Fatalf("expected the long chunk to be split, got %+v", got)
	}
	if got[0].Content != "short" {
		t.Fatalf("short chunk should pass through, got %q", got[0].Content)
	}
	for _, piece := range got[1:] {
		if piece.Metadata.Source() != "b.pdf" || piece.Metadata["page"] != 2 {
			t.Fatalf("metadata not copied: %+v", piece)
		}
	}
	got[1].Metadata["source"] = "changed"
	if chunks[1].Metadata.Source() != "b.pdf" {
		t.Fatalf("pieces must not share metadata with the input")
	}
}
