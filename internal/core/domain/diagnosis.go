package domain

// DiagnosisRecord is the structured generation output. It is always fully populated.
type DiagnosisRecord struct {
	Summary    string `json:"summary"`
	Evidence   string `json:"evidence"`
	RootCause  string `json:"root_cause"`
	Actions    string `json:"actions"`
	Confidence string `json:"confidence"`
}

// ParseTier records which fallback step produced a DiagnosisRecord.
type ParseTier string

const (
	ParseDirect         ParseTier = "direct"
	ParseFenceStripped  ParseTier = "fence_stripped"
	ParseBraceExtracted ParseTier = "brace_extracted"
	ParseSynthesized    ParseTier = "synthesized"
)

// Degraded reports whether the raw response needed any fallback.
func (t ParseTier) Degraded() bool {
	return t != ParseDirect
}

// QueryResult is what callers receive for one explained query.
type QueryResult struct {
	Query         string          `json:"query"`
	Structured    DiagnosisRecord `json:"structured"`
	Evidence      []string        `json:"evidence"`
	Sources       []ScoredChunk   `json:"sources"`
	RetrievalMode RetrievalMode   `json:"retrieval_mode"`
	ParseTier     ParseTier       `json:"parse_tier"`
}
