package agent

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"livestock/model"
	"livestock/types"

	"github.com/pkoukk/tiktoken-go"
)

const (
	DefaultAnswerTopK    = 3
	DefaultDiagnosisTopK = 5

	previewLen = 200

	NoDocumentsAnswer      = "I don't have any documents to reference yet. Please upload a PDF document first so I can help answer your questions."
	InsufficientInfoAnswer = "I don't have enough information in the uploaded documents to answer this question. Please make sure you've uploaded relevant documents."
)

// Models names the primary and fallback model for each task.
type Models struct {
	QA                string
	QAFallback        string
	Diagnosis         string
	DiagnosisFallback string
}

func ModelsFromConfig(cfg types.InferenceConfig) Models {
	return Models{
		QA:                cfg.QAModel,
		QAFallback:        cfg.QAFallbackModel,
		Diagnosis:         cfg.DiagnosisModel,
		DiagnosisFallback: cfg.DiagnosisFallbackModel,
	}
}

// Engine answers questions and diagnoses symptoms over a caller-supplied corpus.
// It holds no state between calls.
type Engine struct {
	embedder    model.EmbedderInterface
	generator   model.Generator
	models      Models
	countTokens func(string) (int, error)
	now         func() time.Time
}

func New(embedder model.EmbedderInterface, generator model.Generator, models Models) *Engine {
	return &Engine{
		embedder:    embedder,
		generator:   generator,
		models:      models,
		countTokens: CountTokens,
		now:         time.Now,
	}
}

// Answer runs retrieval over chunks and asks a model to answer from the best matches.
func (e *Engine) Answer(ctx context.Context, question string, chunks []types.Chunk, topK int) (*types.AnswerResponse, error) {
	start := time.Now()
	defer func() {
		log.Printf("[RAG] Answer took %v", time.Since(start))
	}()

	question = strings.TrimSpace(question)
	if question == "" {
		return nil, fmt.Errorf("%w: question is empty", types.ErrValidation)
	}
	if topK <= 0 {
		topK = DefaultAnswerTopK
	}

	if len(chunks) == 0 {
		return e.reply(NoDocumentsAnswer, nil), nil
	}

	log.Printf("[RAG] Embedding question against %d chunks", len(chunks))
	qvec, err := e.embedder.Embed(ctx, question)
	if err != nil {
		return nil, embedError(err)
	}

	relevant := FindSimilar(qvec, chunks, topK)
	if len(relevant) == 0 {
		return e.reply(InsufficientInfoAnswer, nil), nil
	}

	prompt := answerPrompt(question, relevant)
	e.logPromptSize(prompt)

	answer, err := runChain(ctx, e.generator, []strategy{
		{
			model:  e.models.QA,
			prompt: prompt,
			opts:   model.GenerateOptions{MaxTokens: 500, Temperature: 0.7, TopP: 0.95},
		},
		{
			model:  e.models.QAFallback,
			prompt: simpleAnswerPrompt(question, relevant),
			opts:   model.GenerateOptions{MaxTokens: 300, Temperature: 0.7},
		},
	})
	if err != nil {
		if errors.Is(err, types.ErrServiceUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: all answer models failed: %v", types.ErrGenerationFailed, err)
	}

	return e.reply(strings.TrimSpace(answer), sources(relevant)), nil
}

func (e *Engine) reply(answer string, src []types.Source) *types.AnswerResponse {
	if src == nil {
		src = []types.Source{}
	}
	return &types.AnswerResponse{
		Answer:    answer,
		Sources:   src,
		Timestamp: e.now(),
	}
}

func sources(relevant []ScoredChunk) []types.Source {
	out := make([]types.Source, len(relevant))
	for i, r := range relevant {
		out[i] = types.Source{
			ChunkID:    r.Chunk.ID.String(),
			Text:       preview(r.Chunk.Content),
			Similarity: r.Similarity,
		}
	}
	return out
}

func preview(s string) string {
	runes := []rune(s)
	if len(runes) > previewLen {
		runes = runes[:previewLen]
	}
	return string(runes) + "..."
}

func embedError(err error) error {
	if errors.Is(err, types.ErrServiceUnavailable) || errors.Is(err, types.ErrEmbeddingFailed) {
		return err
	}
	return fmt.Errorf("%w: %v", types.ErrEmbeddingFailed, err)
}

func (e *Engine) logPromptSize(prompt string) {
	if e.countTokens == nil {
		return
	}
	if n, err := e.countTokens(prompt); err == nil {
		log.Printf("[RAG] Prompt size: %d tokens, %d symbols", n, len(prompt))
	}
}

// CountTokens approximates prompt size with the cl100k tokenizer.
func CountTokens(text string) (int, error) {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return 0, err
	}
	return len(enc.Encode(text, nil, nil)), nil
}
