package lexical

import (
	"math"
	"sort"

	"github.com/kirillkom/plc-fault-explainer/internal/core/domain"
)

const (
	bm25K1 = 1.2
	bm25B  = 0.75
)

type posting struct {
	doc  int
	freq int
}

// Index is an immutable BM25 index over one snapshot of chunks.
type Index struct {
	chunks   []domain.Chunk
	docLen   []int
	avgLen   float64
	postings map[string][]posting
	idf      map[string]float64
}

// Build indexes chunks in the given order. That order breaks score ties.
func Build(chunks []domain.Chunk) *Index {
	idx := &Index{
		chunks:   chunks,
		docLen:   make([]int, len(chunks)),
		postings: make(map[string][]posting),
		idf:      make(map[string]float64),
	}
	if len(chunks) == 0 {
		return idx
	}

	total := 0
	for doc, chunk := range chunks {
		tokens := Tokenize(chunk.Content)
		idx.docLen[doc] = len(tokens)
		total += len(tokens)

		freq := make(map[string]int, len(tokens))
		for _, tok := range tokens {
			freq[tok]++
		}
		for tok, n := range freq {
			idx.postings[tok] = append(idx.postings[tok], posting{doc: doc, freq: n})
		}
	}
	idx.avgLen = float64(total) / float64(len(chunks))

	n := float64(len(chunks))
	for tok, list := range idx.postings {
		df := float64(len(list))
		idx.idf[tok] = math.Log(1 + (n-df+0.5)/(df+0.5))
	}
	return idx
}

func (idx *Index) Len() int {
	if idx == nil {
		return 0
	}
	return len(idx.chunks)
}

// Search returns at most k chunks with a positive BM25 score.
func (idx *Index) Search(query string, k int) []domain.ScoredChunk {
	if idx == nil || k <= 0 || len(idx.chunks) == 0 {
		return []domain.ScoredChunk{}
	}

	scores := make(map[int]float64)
	seen := make(map[string]struct{})
	for _, tok := range Tokenize(query) {
		if _, dup := seen[tok]; dup {
			continue
		}
		seen[tok] = struct{}{}

		idf, ok := idx.idf[tok]
		if !ok {
			continue
		}
		for _, p := range idx.postings[tok] {
			tf := float64(p.freq)
			norm := 1 - bm25B
			if idx.avgLen > 0 {
				norm += bm25B * float64(idx.docLen[p.doc]) / idx.avgLen
			}
			scores[p.doc] += idf * (tf * (bm25K1 + 1)) / (tf + bm25K1*norm)
		}
	}

	docs := make([]int, 0, len(scores))
	for doc, score := range scores {
		if score > 0 {
			docs = append(docs, doc)
		}
	}
	sort.Slice(docs, func(i, j int) bool {
		if scores[docs[i]] != scores[docs[j]] {
			return scores[docs[i]] > scores[docs[j]]
		}
		return docs[i] < docs[j]
	})
	if len(docs) > k {
		docs = docs[:k]
	}

	out := make([]domain.ScoredChunk, 0, len(docs))
	for i, doc := range docs {
		out = append(out, domain.ScoredChunk{Chunk: idx.chunks[doc], Score: scores[doc], Rank: i + 1})
	}
	return out
}
