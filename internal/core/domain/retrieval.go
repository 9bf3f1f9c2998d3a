package domain

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

type RetrievalMode string

const (
	ModeHybrid       RetrievalMode = "hybrid"
	ModeHybridRerank RetrievalMode = "hybrid+rerank"
	ModeDense        RetrievalMode = "dense"
	ModeSparse       RetrievalMode = "sparse"
	// ModeNone is reported when every backend was unavailable for a query.
	ModeNone RetrievalMode = "none"
)

func ParseRetrievalMode(raw string) (RetrievalMode, error) {
	switch mode := RetrievalMode(strings.ToLower(strings.TrimSpace(raw))); mode {
	case "":
		return ModeHybrid, nil
	case ModeHybrid, ModeHybridRerank, ModeDense, ModeSparse:
		return mode, nil
	default:
		return "", WrapError(ErrInvalidInput, "parse retrieval mode", fmt.Errorf("unknown mode %q", raw))
	}
}

// FusionWeights only matter relative to each other; they need not sum to 1.
type FusionWeights struct {
	Dense  float64 `json:"dense"`
	Sparse float64 `json:"sparse"`
}

func DefaultFusionWeights() FusionWeights {
	return FusionWeights{Dense: 0.5, Sparse: 0.5}
}

func (w FusionWeights) Validate() error {
	for _, v := range []float64{w.Dense, w.Sparse} {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return WrapError(ErrInvalidInput, "validate fusion weights", errors.New("weights must be finite and non-negative"))
		}
	}
	return nil
}

// Retrieval is the ordered evidence for one query plus how it was obtained.
type Retrieval struct {
	Chunks       []ScoredChunk `json:"chunks"`
	Mode         RetrievalMode `json:"mode"`
	DenseFailed  bool          `json:"dense_failed,omitempty"`
	SparseFailed bool          `json:"sparse_failed,omitempty"`
	DenseHits    int           `json:"dense_hits"`
	SparseHits   int           `json:"sparse_hits"`
}
