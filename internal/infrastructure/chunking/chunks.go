package chunking

import "github.com/kirillkom/plc-fault-explainer/internal/core/domain"

// SplitChunks splits every long chunk and copies its metadata onto each piece.
func (s *Splitter) SplitChunks(chunks []domain.Chunk) []domain.Chunk {
	out := make([]domain.Chunk, 0, len(chunks))
	for _, chunk := range chunks {
		if len([]rune(chunk.Content)) <= s.ChunkSize {
			out = append(out, chunk)
			continue
		}
		for _, piece := range s.Split(chunk.Content) {
			out = append(out, domain.Chunk{
				Content:  piece,
				Metadata: chunk.Metadata.Clone(),
			})
		}
	}
	return out
}
