package rag

import (
	"context"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shelfsense/shelfsense/internal/testutil"
)

func newTestEngine(t *testing.T, embedCalls *int64) (*Engine, *testutil.FakeLLM) {
	t.Helper()
	dir := t.TempDir()

	ix, err := OpenIndex(filepath.Join(dir, "index.db"))
	require.NoError(t, err)
	t.Cleanup(func() { ix.Close() })

	embedder := embedderFunc(func(ctx context.Context, texts []string) ([][]float32, error) {
		if embedCalls != nil {
			atomic.AddInt64(embedCalls, 1)
		}
		vectors := make([][]float32, len(texts))
		for i, text := range texts {
			vectors[i] = testutil.DeterministicVector(text, 8)
		}
		return vectors, nil
	})

	require.NoError(t, ix.Build(context.Background(), testDocs(), ChunkerConfig{ChunkSize: 20, Overlap: 4}, embedder))

	cache, err := OpenQueryCache(filepath.Join(dir, "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { cache.Close() })

	llm := &testutil.FakeLLM{
		GenerateFunc: func(ctx context.Context, prompt string) (string, error) {
			return "Recyclable packaging drives purchase intent [trends-0001].", nil
		},
	}

	return NewEngine(ix, cache, embedder, llm, 2), llm
}

func TestEngineQueryCitations(t *testing.T) {
	engine, llm := newTestEngine(t, nil)

	answer, err := engine.Query(context.Background(), "does packaging matter to shoppers")
	require.NoError(t, err)

	assert.False(t, answer.FromCache)
	assert.NotEmpty(t, answer.Text)
	require.Len(t, answer.Citations, 2)
	for _, c := range answer.Citations {
		assert.NotEmpty(t, c.SourceID)
		assert.NotEmpty(t, c.FileName)
		assert.NotEmpty(t, c.Excerpt)
	}
	// Relevance follows retrieval rank.
	assert.True(t, answer.Citations[0].RelevanceScore >= answer.Citations[1].RelevanceScore)

	// The synthesis prompt carries the retrieved excerpts and their IDs.
	require.Equal(t, 1, llm.PromptCount())
	assert.Contains(t, llm.Prompts[0], answer.Citations[0].SourceID)
	assert.Contains(t, llm.Prompts[0], "does packaging matter to shoppers")
}

func TestEngineQueryCacheIdempotent(t *testing.T) {
	var embedCalls int64
	engine, llm := newTestEngine(t, &embedCalls)

	buildCalls := atomic.LoadInt64(&embedCalls)

	first, err := engine.Query(context.Background(), "does packaging matter", WithCache("product:oat-bar"))
	require.NoError(t, err)
	assert.False(t, first.FromCache)
	assert.Equal(t, buildCalls+1, atomic.LoadInt64(&embedCalls))
	assert.Equal(t, 1, llm.PromptCount())

	second, err := engine.Query(context.Background(), "does packaging matter", WithCache("product:oat-bar"))
	require.NoError(t, err)

	// Identical answer, no additional provider traffic.
	assert.True(t, second.FromCache)
	assert.Equal(t, first.Text, second.Text)
	assert.Equal(t, first.Citations, second.Citations)
	assert.Equal(t, buildCalls+1, atomic.LoadInt64(&embedCalls))
	assert.Equal(t, 1, llm.PromptCount())
}

func TestEngineQueryCacheContextSeparation(t *testing.T) {
	engine, llm := newTestEngine(t, nil)

	_, err := engine.Query(context.Background(), "does packaging matter", WithCache("product:oat-bar"))
	require.NoError(t, err)

	// Same question about a different product is a distinct cache entry.
	answer, err := engine.Query(context.Background(), "does packaging matter", WithCache("product:kombucha"))
	require.NoError(t, err)
	assert.False(t, answer.FromCache)
	assert.Equal(t, 2, llm.PromptCount())
}

func TestEngineQueryNoCacheByDefault(t *testing.T) {
	engine, llm := newTestEngine(t, nil)

	_, err := engine.Query(context.Background(), "does packaging matter")
	require.NoError(t, err)
	_, err = engine.Query(context.Background(), "does packaging matter")
	require.NoError(t, err)

	assert.Equal(t, 2, llm.PromptCount())
}

func TestEngineQueryEmpty(t *testing.T) {
	engine, _ := newTestEngine(t, nil)

	_, err := engine.Query(context.Background(), "   ")
	assert.Error(t, err)
}

func TestCacheKeyNormalization(t *testing.T) {
	assert.Equal(t,
		CacheKey("Does  Packaging Matter", "ctx"),
		CacheKey("does packaging matter", "ctx"))
	assert.NotEqual(t,
		CacheKey("does packaging matter", "ctx-a"),
		CacheKey("does packaging matter", "ctx-b"))
	assert.NotEqual(t,
		CacheKey("does packaging matter", "ctx"),
		CacheKey("is packaging recyclable", "ctx"))
}

func TestQueryCachePutIsImmutable(t *testing.T) {
	cache, err := OpenQueryCache(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	defer cache.Close()

	ctx := context.Background()
	key := CacheKey("q", "c")

	first := &Answer{Text: "original answer"}
	require.NoError(t, cache.Put(ctx, key, "q", first))
	require.NoError(t, cache.Put(ctx, key, "q", &Answer{Text: "attempted overwrite"}))

	got, err := cache.Get(ctx, key)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "original answer", got.Text)
	assert.True(t, got.FromCache)
}

func TestExcerptTruncation(t *testing.T) {
	long := strings.Repeat("word ", 100)
	short := "short text"

	assert.Equal(t, short, excerpt(short, 200))
	got := excerpt(long, 50)
	assert.True(t, len(got) <= 54)
	assert.True(t, strings.HasSuffix(got, "..."))
}
