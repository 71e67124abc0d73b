package llms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/shelfsense/shelfsense/pkg/core"
	"github.com/shelfsense/shelfsense/pkg/errors"
	"github.com/shelfsense/shelfsense/pkg/utils"
)

// OllamaLLM implements the core.LLM interface for Ollama-hosted models.
// It is the embedding-capable provider in the default stack.
type OllamaLLM struct {
	*core.BaseLLM
	embeddingModel string
}

// NewOllamaLLM creates a new OllamaLLM instance.
func NewOllamaLLM(endpoint, model, embeddingModel string) (*OllamaLLM, error) {
	if endpoint == "" {
		endpoint = "http://localhost:11434" // Default Ollama endpoint
	}
	if model == "" && embeddingModel == "" {
		return nil, errors.New(errors.InvalidInput, "model name is required")
	}
	if embeddingModel == "" {
		embeddingModel = "nomic-embed-text"
	}

	capabilities := []core.Capability{
		core.CapabilityCompletion,
		core.CapabilityJSON,
		core.CapabilityEmbedding,
	}
	endpointCfg := &core.EndpointConfig{
		BaseURL: endpoint,
		Path:    "api/generate",
		Headers: map[string]string{
			"Content-Type": "application/json",
		},
		TimeoutSec: 10 * 60,
	}

	return &OllamaLLM{
		BaseLLM:        core.NewBaseLLM("ollama", core.ModelID(model), capabilities, endpointCfg),
		embeddingModel: embeddingModel,
	}, nil
}

type ollamaRequest struct {
	Model       string  `json:"model"`
	Prompt      string  `json:"prompt"`
	Stream      bool    `json:"stream"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
}

type ollamaResponse struct {
	Model     string `json:"model"`
	CreatedAt string `json:"created_at"`
	Response  string `json:"response"`
}

type ollamaEmbeddingRequest struct {
	Model   string                 `json:"model"`
	Prompt  string                 `json:"prompt"`
	Options map[string]interface{} `json:"options,omitempty"`
}

type ollamaEmbeddingResponse struct {
	Embedding []float32 `json:"embedding"`
}

// Generate implements the core.LLM interface.
func (o *OllamaLLM) Generate(ctx context.Context, prompt string, options ...core.GenerateOption) (*core.LLMResponse, error) {
	opts := core.NewGenerateOptions()
	for _, opt := range options {
		opt(opts)
	}

	reqBody := ollamaRequest{
		Model:       o.ModelID(),
		Prompt:      prompt,
		Stream:      false,
		MaxTokens:   opts.MaxTokens,
		Temperature: opts.Temperature,
	}

	body, err := o.post(ctx, "/api/generate", reqBody)
	if err != nil {
		return nil, err
	}

	var ollamaResp ollamaResponse
	if err := json.Unmarshal(body, &ollamaResp); err != nil {
		return nil, errors.WithFields(
			errors.Wrap(err, errors.InvalidResponse, "failed to unmarshal response"),
			errors.Fields{
				"model": o.ModelID(),
			})
	}

	return &core.LLMResponse{Content: ollamaResp.Response}, nil
}

// GenerateWithJSON implements the core.LLM interface.
func (o *OllamaLLM) GenerateWithJSON(ctx context.Context, prompt string, options ...core.GenerateOption) (map[string]interface{}, error) {
	response, err := o.Generate(ctx, prompt, options...)
	if err != nil {
		return nil, err
	}

	return utils.ParseJSONWithFallbacks(response.Content)
}

// CreateEmbeddings generates embeddings for multiple inputs, in input order.
// Ollama's embedding endpoint takes one prompt per call, so inputs are
// submitted one at a time; batching and pacing live in pkg/embedding.
func (o *OllamaLLM) CreateEmbeddings(ctx context.Context, inputs []string, options ...core.EmbeddingOption) (*core.BatchEmbeddingResult, error) {
	opts := &core.EmbeddingOptions{}
	for _, opt := range options {
		opt(opts)
	}

	model := opts.Model
	if model == "" {
		model = o.embeddingModel
	}

	result := &core.BatchEmbeddingResult{
		Embeddings: make([]core.EmbeddingResult, 0, len(inputs)),
		ErrorIndex: -1,
	}

	for i, input := range inputs {
		reqBody := ollamaEmbeddingRequest{
			Model:   model,
			Prompt:  input,
			Options: opts.Params,
		}

		body, err := o.post(ctx, "/api/embeddings", reqBody)
		if err != nil {
			result.Error = err
			result.ErrorIndex = i
			return result, err
		}

		var embResp ollamaEmbeddingResponse
		if err := json.Unmarshal(body, &embResp); err != nil {
			wrapped := errors.WithFields(
				errors.Wrap(err, errors.InvalidResponse, "failed to unmarshal embedding response"),
				errors.Fields{"model": model, "input_index": i})
			result.Error = wrapped
			result.ErrorIndex = i
			return result, wrapped
		}

		result.Embeddings = append(result.Embeddings, core.EmbeddingResult{
			Vector: embResp.Embedding,
		})
	}

	return result, nil
}

// post issues a JSON POST against the Ollama endpoint and returns the raw body.
func (o *OllamaLLM) post(ctx context.Context, path string, reqBody interface{}) ([]byte, error) {
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, errors.WithFields(
			errors.Wrap(err, errors.InvalidInput, "failed to marshal request body"),
			errors.Fields{
				"model": o.ModelID(),
			})
	}

	req, err := http.NewRequestWithContext(ctx, "POST", o.GetEndpointConfig().BaseURL+path, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, errors.WithFields(
			errors.Wrap(err, errors.InvalidInput, "failed to create request"),
			errors.Fields{
				"model": o.ModelID(),
			})
	}

	for key, value := range o.GetEndpointConfig().Headers {
		req.Header.Set(key, value)
	}

	resp, err := o.GetHTTPClient().Do(req)
	if err != nil {
		code := errors.LLMGenerationFailed
		if strings.Contains(err.Error(), "deadline exceeded") {
			code = errors.Timeout
		}
		return nil, errors.WithFields(
			errors.Wrap(err, code, "failed to send request"),
			errors.Fields{
				"model": o.ModelID(),
			})
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.WithFields(
			errors.Wrap(err, errors.LLMGenerationFailed, "failed to read response body"),
			errors.Fields{
				"model": o.ModelID(),
			})
	}

	if resp.StatusCode != http.StatusOK {
		code := errors.LLMGenerationFailed
		if resp.StatusCode == http.StatusTooManyRequests {
			code = errors.RateLimitExceeded
		}
		return nil, errors.WithFields(
			errors.New(code, fmt.Sprintf("API request failed with status code %d", resp.StatusCode)),
			errors.Fields{
				"model":         o.ModelID(),
				"status_code":   resp.StatusCode,
				"response_body": string(body),
			})
	}

	return body, nil
}
