package usecase

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/kirillkom/plc-fault-explainer/internal/core/domain"
)

const (
	fieldNotProvided = "Not provided"

	synthesizedSummary    = "AI returned non-structured text"
	synthesizedEvidence   = "No valid JSON block found in the response"
	synthesizedActions    = "Please review raw output"
	synthesizedConfidence = "Low"
)

// ParseDiagnosis turns a raw model response into a fully populated record.
// It never fails: unparseable text ends up verbatim in RootCause.
func ParseDiagnosis(raw string) (domain.DiagnosisRecord, domain.ParseTier) {
	if record, ok := decodeDiagnosis(raw); ok {
		return record, domain.ParseDirect
	}

	if stripped, fenced := stripCodeFence(raw); fenced {
		if record, ok := decodeDiagnosis(stripped); ok {
			return record, domain.ParseFenceStripped
		}
	}

	if candidate, found := extractBraceBlock(raw); found {
		if record, ok := decodeDiagnosis(candidate); ok {
			return record, domain.ParseBraceExtracted
		}
	}

	rootCause := raw
	if strings.TrimSpace(rootCause) == "" {
		rootCause = fieldNotProvided
	}
	return domain.DiagnosisRecord{
		Summary:    synthesizedSummary,
		Evidence:   synthesizedEvidence,
		RootCause:  rootCause,
		Actions:    synthesizedActions,
		Confidence: synthesizedConfidence,
	}, domain.ParseSynthesized
}

func decodeDiagnosis(text string) (domain.DiagnosisRecord, bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "{") {
		return domain.DiagnosisRecord{}, false
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(text), &fields); err != nil || fields == nil {
		return domain.DiagnosisRecord{}, false
	}

	return domain.DiagnosisRecord{
		Summary:    fieldText(fields, "summary"),
		Evidence:   fieldText(fields, "evidence"),
		RootCause:  fieldText(fields, "root_cause"),
		Actions:    fieldText(fields, "actions"),
		Confidence: fieldText(fields, "confidence"),
	}, true
}

// fieldText renders one JSON value as text. Models often answer with a list of
// steps instead of a newline separated string.
func fieldText(fields map[string]json.RawMessage, key string) string {
	raw, ok := fields[key]
	if !ok {
		return fieldNotProvided
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return fieldNotProvided
	}

	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		if strings.TrimSpace(text) == "" {
			return fieldNotProvided
		}
		return text
	}

	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err == nil {
		lines := make([]string, 0, len(items))
		for _, item := range items {
			var s string
			if err := json.Unmarshal(item, &s); err == nil {
				lines = append(lines, s)
				continue
			}
			lines = append(lines, compactJSON(item))
		}
		if len(lines) == 0 {
			return fieldNotProvided
		}
		return strings.Join(lines, "\n")
	}

	return compactJSON(raw)
}

func compactJSON(raw json.RawMessage) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}

// stripCodeFence removes a surrounding ``` or ```json fence.
func stripCodeFence(raw string) (string, bool) {
	text := strings.TrimSpace(raw)
	if !strings.HasPrefix(text, "```") {
		return raw, false
	}
	text = strings.TrimPrefix(text, "```")
	if newline := strings.IndexByte(text, '\n'); newline >= 0 {
		text = text[newline+1:]
	} else {
		text = strings.TrimPrefix(strings.TrimSpace(text), "json")
	}
	text = strings.TrimSpace(text)
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text), true
}

func extractBraceBlock(raw string) (string, bool) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return "", false
	}
	return raw[start : end+1], true
}
