package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Recognized metadata keys. Anything else is carried through untouched.
const (
	MetaSource      = "source"
	MetaContentType = "content_type"
	MetaPage        = "page"
	MetaSheet       = "sheet"
	MetaCode        = "code"
	MetaType        = "type"
	MetaFile        = "file"
)

const (
	SourceLogHistory = "log_history"
	SourceManual     = "manual"

	ContentTypeLog           = "log"
	ContentTypeKnowledgeBase = "knowledge_base"
)

// Metadata holds string or numeric values keyed by name.
type Metadata map[string]any

func (m Metadata) String(key string) string {
	v, ok := m[key]
	if !ok || v == nil {
		return ""
	}
	switch typed := v.(type) {
	case string:
		return typed
	case float64:
		return strconv.FormatFloat(typed, 'f', -1, 64)
	case int:
		return strconv.Itoa(typed)
	default:
		return fmt.Sprintf("%v", typed)
	}
}

func (m Metadata) Source() string      { return m.String(MetaSource) }
func (m Metadata) ContentType() string { return m.String(MetaContentType) }

// Clone returns a shallow copy so callers can enrich metadata without touching stored chunks.
func (m Metadata) Clone() Metadata {
	out := make(Metadata, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Chunk is an immutable unit of indexed text. Seq is the store insertion order.
type Chunk struct {
	ID       string   `json:"id,omitempty"`
	Seq      int64    `json:"seq,omitempty"`
	Content  string   `json:"content"`
	Metadata Metadata `json:"metadata"`
}

// Key identifies a chunk by content and metadata. Two ingests of the same text from
// different sources produce different keys.
func (c Chunk) Key() string {
	meta := []byte("{}")
	if len(c.Metadata) > 0 {
		encoded, err := json.Marshal(c.Metadata)
		if err != nil {
			encoded = []byte(fmt.Sprintf("%v", c.Metadata))
		}
		meta = encoded
	}
	var b strings.Builder
	b.Grow(len(c.Content) + len(meta) + 1)
	b.WriteString(c.Content)
	b.WriteByte(0)
	b.Write(meta)
	return b.String()
}

// ScoredChunk is a chunk ranked by one retriever or by fusion. Rank starts at 1.
type ScoredChunk struct {
	Chunk
	Score float64 `json:"score"`
	Rank  int     `json:"rank"`
}

func Contents(chunks []ScoredChunk) []string {
	out := make([]string, 0, len(chunks))
	for _, c := range chunks {
		out = append(out, c.Content)
	}
	return out
}
