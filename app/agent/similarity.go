package agent

import (
	"math"
	"sort"

	"livestock/types"
)

type ScoredChunk struct {
	Chunk      types.Chunk
	Similarity float64
}

// CosineSimilarity returns 0 for empty, mismatched or zero-norm vectors.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// FindSimilar ranks chunks that carry an embedding by similarity to query.
// Equal scores keep their input order.
func FindSimilar(query []float32, chunks []types.Chunk, topK int) []ScoredChunk {
	if topK <= 0 {
		return nil
	}

	scored := make([]ScoredChunk, 0, len(chunks))
	for _, c := range chunks {
		if !c.HasEmbedding() {
			continue
		}
		scored = append(scored, ScoredChunk{
			Chunk:      c,
			Similarity: CosineSimilarity(query, c.Embedding),
		})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Similarity > scored[j].Similarity
	})

	if len(scored) > topK {
		scored = scored[:topK]
	}
	return scored
}
