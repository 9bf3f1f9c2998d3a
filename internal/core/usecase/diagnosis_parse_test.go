package usecase

import (
	"testing"

	"github.com/kirillkom/plc-fault-explainer/internal/core/domain"
)

func TestParseDiagnosisTiers(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		tier domain.ParseTier
		want domain.DiagnosisRecord
	}{
		{
			name: "direct",
			raw:  `{"summary":"s","evidence":"e","root_cause":"r","actions":"a","confidence":"High"}`,
			tier: domain.ParseDirect,
			want: domain.DiagnosisRecord{Summary: "s", Evidence: "e", RootCause: "r", Actions: "a", Confidence: "High"},
		},
		{
			name: "fenced",
			raw:  "```json\n{\"summary\":\"s\",\"evidence\":\"e\",\"root_cause\":\"r\",\"actions\":\"a\",\"confidence\":\"Low\"}\n```",
			tier: domain.ParseFenceStripped,
			want: domain.DiagnosisRecord{Summary: "s", Evidence: "e", RootCause: "r", Actions: "a", Confidence: "Low"},
		},
		{
			name: "embedded in prose",
			raw:  `Here is my answer: {"summary":"s2","evidence":"e2","root_cause":"r2","actions":"a2","confidence":"Medium"}. Thanks!`,
			tier: domain.ParseBraceExtracted,
			want: domain.DiagnosisRecord{Summary: "s2", Evidence: "e2", RootCause: "r2", Actions: "a2", Confidence: "Medium"},
		},
		{
			name: "no json",
			raw:  "I cannot determine the fault.",
			tier: domain.ParseSynthesized,
			want: domain.DiagnosisRecord{
				Summary:    "AI returned non-structured text",
				Evidence:   "No valid JSON block found in the response",
				RootCause:  "I cannot determine the fault.",
				Actions:    "Please review raw output",
				Confidence: "Low",
			},
		},
		{
			name: "empty completion",
			raw:  "  \n ",
			tier: domain.ParseSynthesized,
			want: domain.DiagnosisRecord{
				Summary:    "AI returned non-structured text",
				Evidence:   "No valid JSON block found in the response",
				RootCause:  "Not provided",
				Actions:    "Please review raw output",
				Confidence: "Low",
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, tier := ParseDiagnosis(tc.raw)
			if tier != tc.tier {
				t.Fatalf("expected tier %s, got %s", tc.tier, tier)
			}
			if got != tc.want {
				t.Fatalf("unexpected record: %+v", got)
			}
		})
	}
}

func TestParseDiagnosisFillsMissingFields(t *testing.T) {
	got, tier := ParseDiagnosis(`{"summary":"only summary","confidence":""}`)
	if tier != domain.ParseDirect {
		t.Fatalf("expected direct tier, got %s", tier)
	}
	if got.Summary != "only summary" {
		t.Fatalf("unexpected summary %q", got.Summary)
	}
	for name, value := range map[string]string{
		"evidence":   got.Evidence,
		"root_cause": got.RootCause,
		"actions":    got.Actions,
		"confidence": got.Confidence,
	} {
		if value != "Not provided" {
			t.Fatalf("expected placeholder for %s, got %q", name, value)
		}
	}
}

func TestParseDiagnosisRendersNonStringFields(t *testing.T) {
	raw := `{"summary":"s","evidence":["log row 1","manual ALM_3021"],"root_cause":"r","actions":["check pump",{"step":2}],"confidence":0.8}`
	got, _ := ParseDiagnosis(raw)
	if got.Evidence != "log row 1\nmanual ALM_3021" {
		t.Fatalf("unexpected evidence %q", got.Evidence)
	}
	if got.Actions != "check pump\n{\"step\":2}" {
		t.Fatalf("unexpected actions %q", got.Actions)
	}
	if got.Confidence != "0.8" {
		t.Fatalf("unexpected confidence %q", got.Confidence)
	}
}

func TestParseDiagnosisRejectsNonObjectJSON(t *testing.T) {
	got, tier := ParseDiagnosis(`["summary"]`)
	if tier != domain.ParseSynthesized {
		t.Fatalf("expected synthesized tier, got %s", tier)
	}
	if got.RootCause != `["summary"]` {
		t.Fatalf("expected raw text preserved, got %q", got.RootCause)
	}
}

func TestParseDiagnosisBrokenBraceBlockIsSynthesized(t *testing.T) {
	raw := `answer: {"summary": "truncated`
	got, tier := ParseDiagnosis(raw)
	if tier != domain.ParseSynthesized || got.RootCause != raw {
		t.Fatalf("expected synthesized record with raw text, got %s %+v", tier, got)
	}
}
