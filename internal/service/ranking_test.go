package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/cloo-solutions/tubeqa/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name     string
		a, b     []float32
		expected float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1},
		{"scaled", []float32{1, 2, 3}, []float32{2, 4, 6}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, 1}, []float32{-1, -1}, -1},
		{"zero vector", []float32{0, 0, 0}, []float32{1, 2, 3}, 0},
		{"length mismatch", []float32{1, 2}, []float32{1, 2, 3}, 0},
		{"empty", nil, nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, CosineSimilarity(tt.a, tt.b), 1e-6)
		})
	}
}

func TestCosineSimilarity_SelfAndSymmetry(t *testing.T) {
	e := NewDemoEmbedder(256)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		a, _ := e.Embed(ctx, fmt.Sprintf("text %d", i))
		b, _ := e.Embed(ctx, fmt.Sprintf("other %d", i))

		assert.InDelta(t, 1.0, CosineSimilarity(a, a), 1e-6)
		assert.InDelta(t, CosineSimilarity(a, b), CosineSimilarity(b, a), 1e-9)
	}
}

func TestRankChunks_OrderAndLimit(t *testing.T) {
	chunks := []domain.Chunk{{ID: 0, Text: "a"}, {ID: 1, Text: "b"}, {ID: 2, Text: "c"}, {ID: 3, Text: "d"}}
	embeddings := [][]float32{{0, 1}, {1, 0}, {1, 1}, {-1, 0}}
	query := []float32{1, 0}

	ranked := RankChunks(query, chunks, embeddings, 2)

	require.Len(t, ranked, 2)
	assert.Equal(t, 1, ranked[0].Chunk.ID)
	assert.InDelta(t, 1.0, ranked[0].Similarity, 1e-6)
	assert.Equal(t, 2, ranked[1].Chunk.ID)
}

func TestRankChunks_NonIncreasing(t *testing.T) {
	e := NewDemoEmbedder(32)
	ctx := context.Background()

	chunks := make([]domain.Chunk, 20)
	embeddings := make([][]float32, 20)
	for i := range chunks {
		chunks[i] = domain.Chunk{ID: i, Text: fmt.Sprintf("chunk %d", i)}
		embeddings[i], _ = e.Embed(ctx, chunks[i].Text)
	}
	query, _ := e.Embed(ctx, "query")

	ranked := RankChunks(query, chunks, embeddings, 0)

	require.Len(t, ranked, 20)
	for i := 1; i < len(ranked); i++ {
		assert.GreaterOrEqual(t, ranked[i-1].Similarity, ranked[i].Similarity)
	}
}

func TestRankChunks_KLargerThanChunks(t *testing.T) {
	chunks := []domain.Chunk{{ID: 0, Text: "a"}, {ID: 1, Text: "b"}}
	embeddings := [][]float32{{1, 0}, {0, 1}}

	ranked := RankChunks([]float32{1, 1}, chunks, embeddings, 5)

	assert.Len(t, ranked, 2)
}

func TestRankChunks_TiesKeepChunkOrder(t *testing.T) {
	chunks := []domain.Chunk{{ID: 0, Text: "a"}, {ID: 1, Text: "b"}, {ID: 2, Text: "c"}}
	embeddings := [][]float32{{1, 0}, {1, 0}, {1, 0}}

	ranked := RankChunks([]float32{1, 0}, chunks, embeddings, 3)

	require.Len(t, ranked, 3)
	assert.Equal(t, []int{0, 1, 2}, []int{ranked[0].Chunk.ID, ranked[1].Chunk.ID, ranked[2].Chunk.ID})
}

func TestRankChunks_Empty(t *testing.T) {
	ranked := RankChunks([]float32{1}, nil, nil, 3)
	assert.Empty(t, ranked)
}

func TestContextRefs(t *testing.T) {
	refs := contextRefs([]domain.ScoredChunk{
		{Chunk: domain.Chunk{ID: 4}, Similarity: 0.9},
		{Chunk: domain.Chunk{ID: 1}, Similarity: 0.5},
	})

	assert.Equal(t, []domain.ContextRef{{ChunkID: 4, Similarity: 0.9}, {ChunkID: 1, Similarity: 0.5}}, refs)
}
