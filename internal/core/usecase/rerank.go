package usecase

import (
	"slices"
	"strings"
	"unicode"

	"github.com/kirillkom/plc-fault-explainer/internal/core/domain"
)

// Blend of the hybrid+rerank mode. The head keeps its fused order as the strongest
// signal; overlap and a fault-code hit only reshuffle near-ties.
const (
	rerankFusedWeight   = 0.60
	rerankOverlapWeight = 0.30
	rerankCodeWeight    = 0.10
)

// rerankQuery is the query side of the blend, computed once per request.
type rerankQuery struct {
	terms  map[string]struct{}
	fields map[string]struct{} // whitespace-separated query words, upper-cased, e.g. "ALM_3021"
}

func newRerankQuery(query string) rerankQuery {
	q := rerankQuery{terms: termSet(query), fields: map[string]struct{}{}}
	for _, field := range strings.Fields(query) {
		field = strings.TrimFunc(field, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
		})
		if field != "" {
			q.fields[strings.ToUpper(field)] = struct{}{}
		}
	}
	return q
}

// overlap is the share of query terms present in content.
func (q rerankQuery) overlap(content string) float64 {
	if len(q.terms) == 0 {
		return 0
	}
	chunkTerms := termSet(content)
	matches := 0
	for term := range q.terms {
		if _, ok := chunkTerms[term]; ok {
			matches++
		}
	}
	return float64(matches) / float64(len(q.terms))
}

// codeHit is 1 when the query names the chunk's fault code, or shares a term with
// its source or sheet name.
func (q rerankQuery) codeHit(meta domain.Metadata) float64 {
	if code := strings.ToUpper(strings.TrimSpace(meta.String(domain.MetaCode))); code != "" {
		if _, ok := q.fields[code]; ok {
			return 1
		}
	}
	for _, key := range []string{domain.MetaSource, domain.MetaSheet} {
		for term := range termSet(meta.String(key)) {
			if _, ok := q.terms[term]; ok {
				return 1
			}
		}
	}
	return 0
}

// rerankFusedCandidates rescores the first topN fused results and leaves the tail
// in fused order. Ranks are renumbered over the whole list.
func rerankFusedCandidates(query string, fused []domain.ScoredChunk, topN int) []domain.ScoredChunk {
	if len(fused) == 0 {
		return fused
	}
	if topN <= 0 || topN > len(fused) {
		topN = len(fused)
	}

	out := slices.Clone(fused)
	head := out[:topN]
	q := newRerankQuery(query)

	lo, hi := head[0].Score, head[0].Score
	for _, c := range head[1:] {
		lo, hi = min(lo, c.Score), max(hi, c.Score)
	}
	for i := range head {
		norm := 0.0
		switch {
		case hi > lo:
			norm = (head[i].Score - lo) / (hi - lo)
		case head[i].Score > 0:
			norm = 1
		}
		head[i].Score = rerankFusedWeight*norm +
			rerankOverlapWeight*q.overlap(head[i].Content) +
			rerankCodeWeight*q.codeHit(head[i].Metadata)
	}

	slices.SortStableFunc(head, func(a, b domain.ScoredChunk) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		default:
			return a.Rank - b.Rank
		}
	})
	for i := range out {
		out[i].Rank = i + 1
	}
	return out
}

func termSet(s string) map[string]struct{} {
	terms := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := make(map[string]struct{}, len(terms))
	for _, term := range terms {
		out[term] = struct{}{}
	}
	return out
}
