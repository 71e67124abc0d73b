package rag

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shelfsense/shelfsense/internal/testutil"
)

// embedderFunc adapts a function to the embedding.Embedder interface.
type embedderFunc func(ctx context.Context, texts []string) ([][]float32, error)

func (f embedderFunc) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return f(ctx, texts)
}

func deterministicEmbedder() embedderFunc {
	return func(ctx context.Context, texts []string) ([][]float32, error) {
		vectors := make([][]float32, len(texts))
		for i, text := range texts {
			vectors[i] = testutil.DeterministicVector(text, 8)
		}
		return vectors, nil
	}
}

func testDocs() []Document {
	return []Document{
		{
			ID:       "trends",
			FileName: "trends.pdf",
			Pages: []Page{
				{Number: 1, Text: "plant based protein demand is growing in european markets"},
				{Number: 2, Text: "recyclable packaging influences purchase decisions strongly"},
			},
		},
		{
			ID:       "nutrition",
			FileName: "nutrition.pdf",
			Pages: []Page{
				{Number: 1, Text: "fiber intake above three grams per serving supports satiety"},
			},
		},
	}
}

func TestIndexBuildAndSearch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")
	ix, err := OpenIndex(path)
	require.NoError(t, err)
	defer ix.Close()

	err = ix.Build(context.Background(), testDocs(), ChunkerConfig{ChunkSize: 20, Overlap: 4}, deterministicEmbedder())
	require.NoError(t, err)
	assert.Equal(t, 3, ix.Len())

	// Searching with a chunk's own vector must rank that chunk first.
	query := testutil.DeterministicVector("recyclable packaging influences purchase decisions strongly", 8)
	matches := ix.Search(query, 2)
	require.Len(t, matches, 2)
	assert.Equal(t, "trends-0001", matches[0].Chunk.ChunkID)
	assert.InDelta(t, 1.0, matches[0].Score, 1e-9)
	assert.True(t, matches[0].Score >= matches[1].Score)
}

func TestIndexSearchDeterministic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")
	ix, err := OpenIndex(path)
	require.NoError(t, err)
	defer ix.Close()

	require.NoError(t, ix.Build(context.Background(), testDocs(), ChunkerConfig{ChunkSize: 20, Overlap: 4}, deterministicEmbedder()))

	query := testutil.DeterministicVector("packaging", 8)
	first := ix.Search(query, 3)
	for i := 0; i < 5; i++ {
		again := ix.Search(query, 3)
		require.Equal(t, first, again)
	}
}

func TestIndexTieBreakByChunkID(t *testing.T) {
	ix := &Index{}
	vec := []float32{1, 0, 0}
	ix.chunks = []Chunk{
		{ChunkID: "b-0000", Text: "same", Vector: vec},
		{ChunkID: "a-0000", Text: "same", Vector: vec},
	}

	matches := ix.Search(vec, 2)
	require.Len(t, matches, 2)
	assert.Equal(t, "a-0000", matches[0].Chunk.ChunkID)
	assert.Equal(t, "b-0000", matches[1].Chunk.ChunkID)
}

func TestIndexPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")

	ix, err := OpenIndex(path)
	require.NoError(t, err)
	require.NoError(t, ix.Build(context.Background(), testDocs(), ChunkerConfig{ChunkSize: 20, Overlap: 4}, deterministicEmbedder()))
	before := ix.Search(testutil.DeterministicVector("fiber", 8), 3)
	require.NoError(t, ix.Close())

	reopened, err := OpenIndex(path)
	require.NoError(t, err)
	defer reopened.Close()

	assert.Equal(t, 3, reopened.Len())
	after := reopened.Search(testutil.DeterministicVector("fiber", 8), 3)
	assert.Equal(t, before, after)
}

func TestIndexBuildEmptyDocs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")
	ix, err := OpenIndex(path)
	require.NoError(t, err)
	defer ix.Close()

	err = ix.Build(context.Background(), nil, ChunkerConfig{}, deterministicEmbedder())
	assert.Error(t, err)
}

func TestVectorRoundTrip(t *testing.T) {
	vec := []float32{0.25, -1.5, 3.14159, 0}
	assert.Equal(t, vec, decodeVector(encodeVector(vec)))
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, cosineSimilarity([]float32{1, 2, 3}, []float32{1, 2, 3}), 1e-9)
	assert.InDelta(t, 0.0, cosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.InDelta(t, -1.0, cosineSimilarity([]float32{1, 0}, []float32{-1, 0}), 1e-9)
	assert.Equal(t, 0.0, cosineSimilarity([]float32{1, 0}, []float32{1}))
	assert.Equal(t, 0.0, cosineSimilarity([]float32{0, 0}, []float32{1, 1}))
}
