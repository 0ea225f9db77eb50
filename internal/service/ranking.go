package service

import (
	"math"
	"sort"

	"github.com/cloo-solutions/tubeqa/internal/domain"
)

// DefaultTopK is how many chunks ground an answer
const DefaultTopK = 3

// CosineSimilarity returns dot(a,b)/(|a||b|). It is 0 when the lengths differ
// or either vector has zero norm.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
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

// RankChunks scores every chunk against query and returns the k best, most similar first.
// Ties keep chunk order. k <= 0 or k > len(chunks) returns all chunks.
func RankChunks(query []float32, chunks []domain.Chunk, embeddings [][]float32, k int) []domain.ScoredChunk {
	n := min(len(chunks), len(embeddings))
	scored := make([]domain.ScoredChunk, 0, n)
	for i := 0; i < n; i++ {
		scored = append(scored, domain.ScoredChunk{
			Chunk:      chunks[i],
			Similarity: CosineSimilarity(query, embeddings[i]),
		})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Similarity > scored[j].Similarity
	})

	if k > 0 && k < len(scored) {
		scored = scored[:k]
	}
	return scored
}

// contextRefs cites ranked chunks in rank order
func contextRefs(ranked []domain.ScoredChunk) []domain.ContextRef {
	refs := make([]domain.ContextRef, 0, len(ranked))
	for _, sc := range ranked {
		refs = append(refs, domain.ContextRef{ChunkID: sc.Chunk.ID, Similarity: sc.Similarity})
	}
	return refs
}
