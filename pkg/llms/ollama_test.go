package llms

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shelfsense/shelfsense/pkg/errors"
)

func TestOllamaGenerate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)

		var req ollamaRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "llama3", req.Model)
		assert.False(t, req.Stream)

		json.NewEncoder(w).Encode(ollamaResponse{
			Model:    "llama3",
			Response: "generated text",
		})
	}))
	defer server.Close()

	llm, err := NewOllamaLLM(server.URL, "llama3", "")
	require.NoError(t, err)

	resp, err := llm.Generate(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, "generated text", resp.Content)
}

func TestOllamaGenerateWithJSONFallbacks(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(ollamaResponse{
			Response: "```json\n{\"score\": 80}\n```",
		})
	}))
	defer server.Close()

	llm, err := NewOllamaLLM(server.URL, "llama3", "")
	require.NoError(t, err)

	result, err := llm.GenerateWithJSON(context.Background(), "score it")
	require.NoError(t, err)
	assert.Equal(t, float64(80), result["score"])
}

func TestOllamaCreateEmbeddingsPreservesOrder(t *testing.T) {
	var prompts []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/embeddings", r.URL.Path)

		var req ollamaEmbeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		prompts = append(prompts, req.Prompt)

		json.NewEncoder(w).Encode(ollamaEmbeddingResponse{
			Embedding: []float32{float32(len(req.Prompt)), 1.0},
		})
	}))
	defer server.Close()

	llm, err := NewOllamaLLM(server.URL, "llama3", "nomic-embed-text")
	require.NoError(t, err)

	result, err := llm.CreateEmbeddings(context.Background(), []string{"a", "bb", "ccc"})
	require.NoError(t, err)
	require.Len(t, result.Embeddings, 3)
	assert.Equal(t, []string{"a", "bb", "ccc"}, prompts)
	assert.Equal(t, float32(1), result.Embeddings[0].Vector[0])
	assert.Equal(t, float32(2), result.Embeddings[1].Vector[0])
	assert.Equal(t, float32(3), result.Embeddings[2].Vector[0])
}

func TestOllamaRateLimitMapsToTransientError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	llm, err := NewOllamaLLM(server.URL, "llama3", "")
	require.NoError(t, err)

	_, err = llm.Generate(context.Background(), "hello")
	require.Error(t, err)
	assert.Equal(t, errors.RateLimitExceeded, errors.CodeOf(err))
	assert.True(t, errors.IsTransient(err))
}

func TestOllamaRequiresModel(t *testing.T) {
	_, err := NewOllamaLLM("", "", "")
	assert.Error(t, err)
}
