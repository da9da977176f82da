package agent

import (
	"fmt"
	"strings"
)

func answerPrompt(question string, relevant []ScoredChunk) string {
	blocks := make([]string, len(relevant))
	for i, r := range relevant {
		blocks[i] = fmt.Sprintf("[Context %d]\n%s", i+1, r.Chunk.Content)
	}

	return fmt.Sprintf(`You are an expert assistant for livestock farmers and veterinary questions.

%s

User Question: %s

Instructions:
- Answer only from the context above.
- If the context does not contain enough information, say so clearly.
- Cite specific details from the context where possible.
- Keep the answer practical and easy for farmers to follow.
- For medications and treatments, always recommend consulting a veterinarian.

Answer:`, strings.Join(blocks, "\n\n"), question)
}

func simpleAnswerPrompt(question string, relevant []ScoredChunk) string {
	parts := make([]string, len(relevant))
	for i, r := range relevant {
		parts[i] = r.Chunk.Content
	}
	return fmt.Sprintf("Answer this question based on the context.\n\nContext: %s\n\nQuestion: %s\n\nAnswer:",
		strings.Join(parts, "\n\n"), question)
}

func diagnosticQuery(symptoms []string) string {
	return fmt.Sprintf("An animal is showing these symptoms:\n- %s\n\nWhat disease does it likely have?",
		strings.Join(symptoms, "\n- "))
}

func diagnosisPrompt(symptoms []string, relevant []ScoredChunk) string {
	blocks := make([]string, len(relevant))
	for i, r := range relevant {
		blocks[i] = fmt.Sprintf("[Medical Reference %d]\n%s", i+1, r.Chunk.Content)
	}

	return fmt.Sprintf(`You are a veterinary diagnostic assistant for livestock.

%s

Observed symptoms:
- %s

Using only the medical references above, identify the most likely disease.
Reply with exactly these four fields:
DISEASE: <name of the disease>
CONFIDENCE: <High, Medium or Low>
EXPLANATION: <why the symptoms match>
TREATMENT: <recommended treatment and care>`, strings.Join(blocks, "\n\n"), strings.Join(symptoms, "\n- "))
}

func simpleDiagnosisPrompt(symptoms []string) string {
	return fmt.Sprintf("Based on these livestock symptoms: %s\n\nDiagnose the disease and provide treatment.\n\nDISEASE:",
		strings.Join(symptoms, ", "))
}
