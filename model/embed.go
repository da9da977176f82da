package model

import (
	"context"
	"log"
	"time"
)

// EmbedderInterface определяет интерфейс для создания эмбеддингов
type EmbedderInterface interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Embedder добавляет к клиенту пакетную обработку с паузами между запросами
type Embedder struct {
	client EmbedderInterface
	wait   func(ctx context.Context, d time.Duration) error
}

func NewEmbedder(client EmbedderInterface) *Embedder {
	return &Embedder{
		client: client,
		wait:   sleepContext,
	}
}

// Embed создает эмбеддинг для текста
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return e.client.Embed(ctx, text)
}

// EmbedBatch embeds texts one by one, pausing delay between calls.
// The result always has len(texts) entries; a failed item is left nil.
// Calls are never issued concurrently: the inference quota is per key.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string, delay time.Duration) [][]float32 {
	embeddings := make([][]float32, len(texts))
	log.Printf("[EMBEDDER] Generating embeddings for %d chunks...", len(texts))

	ok := 0
	for i, text := range texts {
		vec, err := e.client.Embed(ctx, text)
		if err != nil {
			log.Printf("[EMBEDDER] Failed to generate embedding for chunk %d: %v", i, err)
		} else {
			embeddings[i] = vec
			ok++
		}

		if (i+1)%5 == 0 {
			log.Printf("[EMBEDDER] Progress: %d/%d embeddings processed", i+1, len(texts))
		}

		if i < len(texts)-1 && delay > 0 {
			if err := e.wait(ctx, delay); err != nil {
				log.Printf("[EMBEDDER] Batch interrupted after %d/%d: %v", i+1, len(texts), err)
				break
			}
		}
	}

	log.Printf("[EMBEDDER] Generated %d/%d embeddings", ok, len(texts))
	return embeddings
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
