package llms

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/shelfsense/shelfsense/pkg/core"
)

// NewLLM creates a new LLM instance based on the provided model ID.
// Anthropic models are recognized by prefix; Ollama models use the
// "ollama:<model_name>" form.
func NewLLM(apiKey string, modelID core.ModelID) (core.LLM, error) {
	switch {
	case strings.HasPrefix(string(modelID), "claude-"):
		return NewAnthropicLLM(apiKey, anthropic.Model(modelID))
	case strings.HasPrefix(string(modelID), "ollama:"):
		parts := strings.SplitN(string(modelID), ":", 2)
		if len(parts) != 2 || parts[1] == "" {
			return nil, fmt.Errorf("invalid Ollama model ID format. Use 'ollama:<model_name>'")
		}
		return NewOllamaLLM("http://localhost:11434", parts[1], "")
	default:
		return nil, fmt.Errorf("unsupported model ID: %s", modelID)
	}
}

// NewLLMFromConfig creates an LLM from a full provider configuration block.
func NewLLMFromConfig(ctx context.Context, config core.ProviderConfig) (core.LLM, error) {
	switch strings.ToLower(config.Name) {
	case "anthropic":
		return NewAnthropicLLMFromConfig(ctx, config)
	case "ollama":
		endpoint := ""
		if config.Endpoint != nil {
			endpoint = config.Endpoint.BaseURL
		}
		return NewOllamaLLM(endpoint, config.ModelID, config.EmbeddingModel)
	default:
		return nil, fmt.Errorf("unsupported provider: %s", config.Name)
	}
}
