package chunking

import "strings"

const (
	DefaultChunkSize = 1000
	DefaultOverlap   = 100
)

var separators = []string{"\n\n", "\n", " "}

type Splitter struct {
	ChunkSize int
	Overlap   int
}

func NewSplitter(chunkSize, overlap int) *Splitter {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= chunkSize {
		overlap = chunkSize / 4
	}
	return &Splitter{
		ChunkSize: chunkSize,
		Overlap:   overlap,
	}
}

// Split cuts text into pieces of at most ChunkSize runes with Overlap runes repeated
// between neighbours. A cut prefers the last paragraph, line or word break in the window.
func (s *Splitter) Split(text string) []string {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}
	if len(runes) <= s.ChunkSize {
		if chunk := strings.TrimSpace(text); chunk != "" {
			return []string{chunk}
		}
		return nil
	}

	out := make([]string, 0, len(runes)/(s.ChunkSize-s.Overlap)+1)
	for start := 0; start < len(runes); {
		end := start + s.ChunkSize
		if end >= len(runes) {
			end = len(runes)
		} else {
			end = s.breakPoint(runes, start, end)
		}
		chunk := strings.TrimSpace(string(runes[start:end]))
		if chunk != "" {
			out = append(out, chunk)
		}
		if end == len(runes) {
			break
		}

		next := end - s.Overlap
		if next <= start {
			next = end
		}
		start = next
	}
	return out
}

// breakPoint looks for a separator in the second half of the window so pieces never
// shrink below half the chunk size.
func (s *Splitter) breakPoint(runes []rune, start, end int) int {
	window := string(runes[start:end])
	minCut := len(string(runes[start : start+s.ChunkSize/2]))
	for _, sep := range separators {
		if idx := strings.LastIndex(window, sep); idx >= minCut {
			return start + len([]rune(window[:idx+len(sep)]))
		}
	}
	return end
}
