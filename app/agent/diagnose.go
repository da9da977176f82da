package agent

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strings"

	"livestock/model"
	"livestock/types"
)

const (
	fieldDisease     = "DISEASE"
	fieldConfidence  = "CONFIDENCE"
	fieldExplanation = "EXPLANATION"
	fieldTreatment   = "TREATMENT"
)

// A label starts a line in any case (markdown bullets and bold allowed), or sits
// inline in the upper-case form the prompt asks for. Inline "the disease:" is prose.
var labelRe = regexp.MustCompile(`(?m)(?:^[ \t*#>-]*(?i:(disease|confidence|explanation|treatment))|\b(DISEASE|CONFIDENCE|EXPLANATION|TREATMENT))[ \t*]*:`)

// UnknownDiagnosis is returned when there is nothing to diagnose from.
func UnknownDiagnosis() *types.Diagnosis {
	return &types.Diagnosis{
		Disease:     "Unknown",
		Confidence:  types.ConfidenceLow,
		Explanation: "Insufficient information in knowledge base to diagnose based on these symptoms.",
		Treatment:   "General care",
	}
}

// Diagnose matches symptoms against the corpus and returns a structured diagnosis.
// Generation failures degrade to a synthesized low-confidence result.
func (e *Engine) Diagnose(ctx context.Context, symptoms []string, chunks []types.Chunk) (*types.Diagnosis, error) {
	clean := make([]string, 0, len(symptoms))
	for _, s := range symptoms {
		if s = strings.TrimSpace(s); s != "" {
			clean = append(clean, s)
		}
	}
	if len(clean) == 0 || len(chunks) == 0 {
		return UnknownDiagnosis(), nil
	}

	qvec, err := e.embedder.Embed(ctx, diagnosticQuery(clean))
	if err != nil {
		return nil, embedError(err)
	}

	relevant := FindSimilar(qvec, chunks, DefaultDiagnosisTopK)
	if len(relevant) == 0 {
		return UnknownDiagnosis(), nil
	}

	prompt := diagnosisPrompt(clean, relevant)
	e.logPromptSize(prompt)

	raw, err := runChain(ctx, e.generator, []strategy{
		{
			model:  e.models.Diagnosis,
			prompt: prompt,
			opts:   model.GenerateOptions{MaxTokens: 300, Temperature: 0.3, TopP: 0.9},
		},
		{
			model:  e.models.DiagnosisFallback,
			prompt: simpleDiagnosisPrompt(clean),
			opts:   model.GenerateOptions{MaxTokens: 100, Temperature: 0.7},
			shape:  wrapFallbackDiagnosis,
		},
	})
	if err != nil {
		log.Printf("[RAG] Diagnosis models failed, using synthesized response: %v", err)
		raw = synthesizedDiagnosis(clean)
	}

	return ParseDiagnosis(raw), nil
}

func wrapFallbackDiagnosis(text string) string {
	return fmt.Sprintf("DISEASE: %s\nCONFIDENCE: Low\nEXPLANATION: Based on the symptoms provided.\nTREATMENT: Consult veterinarian",
		strings.TrimSpace(text))
}

func synthesizedDiagnosis(symptoms []string) string {
	return fmt.Sprintf("DISEASE: Possible infection or parasitic condition\nCONFIDENCE: Low\n"+
		"EXPLANATION: Multiple symptoms detected: %s. Professional veterinary diagnosis recommended.\n"+
		"TREATMENT: Veterinary consultation required", strings.Join(symptoms, ", "))
}

// ParseDiagnosis extracts the four labelled fields from free model text.
// A field runs until the next label or the end of the text.
func ParseDiagnosis(raw string) *types.Diagnosis {
	fields := make(map[string]string, 4)
	matches := labelRe.FindAllStringSubmatchIndex(raw, -1)
	for i, m := range matches {
		name := m[2:4]
		if name[0] < 0 {
			name = m[4:6]
		}
		label := strings.ToUpper(raw[name[0]:name[1]])
		if _, seen := fields[label]; seen {
			continue
		}
		end := len(raw)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}
		fields[label] = strings.TrimSpace(raw[m[1]:end])
	}

	d := &types.Diagnosis{
		Disease:     "Unable to diagnose",
		Confidence:  types.ConfidenceLow,
		Explanation: strings.TrimSpace(raw),
		Treatment:   "Consult veterinarian",
		RawResponse: raw,
	}
	if v := fields[fieldDisease]; v != "" {
		d.Disease = v
	}
	if v := fields[fieldConfidence]; v != "" {
		d.Confidence = types.ParseConfidence(v)
	}
	if v := fields[fieldExplanation]; v != "" {
		d.Explanation = v
	}
	if v := fields[fieldTreatment]; v != "" {
		d.Treatment = v
	}
	return d
}
