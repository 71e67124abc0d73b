package main

import (
	"context"

	"github.com/shelfsense/shelfsense/pkg/config"
	"github.com/shelfsense/shelfsense/pkg/core"
	"github.com/shelfsense/shelfsense/pkg/embedding"
	"github.com/shelfsense/shelfsense/pkg/llms"
	"github.com/shelfsense/shelfsense/pkg/rag"
)

// buildLLM constructs the completion provider the config names.
func buildLLM(ctx context.Context, cfg *config.Config) (core.LLM, error) {
	provider := core.ProviderConfig{
		Name:           cfg.LLM.Provider,
		APIKey:         cfg.LLM.APIKey,
		ModelID:        cfg.LLM.ModelID,
		EmbeddingModel: cfg.LLM.EmbeddingModel,
	}
	if cfg.LLM.BaseURL != "" {
		provider.Endpoint = &core.EndpointConfig{BaseURL: cfg.LLM.BaseURL}
	}
	return llms.NewLLMFromConfig(ctx, provider)
}

// buildEmbedder returns the rate-limited embedding client. Anthropic does
// not serve embeddings, so a separate Ollama instance covers that case.
func buildEmbedder(ctx context.Context, cfg *config.Config, llm core.LLM) (embedding.Embedder, error) {
	embeddingLLM := llm
	if cfg.LLM.Provider != "ollama" {
		ollama, err := llms.NewOllamaLLM(cfg.LLM.BaseURL, cfg.LLM.EmbeddingModel, cfg.LLM.EmbeddingModel)
		if err != nil {
			return nil, err
		}
		embeddingLLM = ollama
	}
	return embedding.NewRateLimited(embeddingLLM, cfg.Embedding.RateLimit())
}

// openRAG assembles the retrieval engine when an index path is configured.
// It returns nils when retrieval is not configured; callers degrade.
func openRAG(ctx context.Context, cfg *config.Config, llm core.LLM) (*rag.Engine, *rag.Index, error) {
	if cfg.RAG.IndexPath == "" {
		return nil, nil, nil
	}

	index, err := rag.OpenIndex(cfg.RAG.IndexPath)
	if err != nil {
		return nil, nil, err
	}

	var cache *rag.QueryCache
	if cfg.RAG.CachePath != "" {
		cache, err = rag.OpenQueryCache(cfg.RAG.CachePath)
		if err != nil {
			index.Close()
			return nil, nil, err
		}
	}

	embedder, err := buildEmbedder(ctx, cfg, llm)
	if err != nil {
		index.Close()
		return nil, nil, err
	}

	return rag.NewEngine(index, cache, embedder, llm, cfg.RAG.TopK), index, nil
}
