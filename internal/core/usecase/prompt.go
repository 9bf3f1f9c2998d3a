package usecase

import (
	"fmt"
	"strings"
)

const noContextNotice = "(no context was retrieved for this alarm)"

func buildDiagnosisPrompt(query string, contextChunks []string) string {
	var contextBuilder strings.Builder
	for _, chunk := range contextChunks {
		contextBuilder.WriteString("- ")
		contextBuilder.WriteString(strings.TrimSpace(chunk))
		contextBuilder.WriteString("\n")
	}
	contextText := contextBuilder.String()
	if contextText == "" {
		contextText = noContextNotice + "\n"
	}

	return fmt.Sprintf(`You are an expert industrial automation assistant.
Explain PLC faults to maintenance technicians using only the provided context.

CONTEXT INFORMATION:
%s
USER ALARM/LOG:
%s

INSTRUCTIONS:
Return a JSON object with exactly these 5 string fields:
{
  "summary": "clear explanation of the fault for technical users (2-3 sentences)",
  "evidence": "which logs, manuals or data points support the diagnosis and why",
  "root_cause": "most likely technical causes (sensor failure modes, wiring, logic errors, environment)",
  "actions": "step-by-step maintenance procedure with tools, safety precautions and verification",
  "confidence": "High/Medium/Low with a brief justification"
}
Use newline characters for bullet points inside a field.
Do not hallucinate. If the context does not contain relevant information, say so explicitly in the summary.
Return ONLY the JSON object. No markdown code fences, no extra text.
`, contextText, strings.TrimSpace(query))
}
