package core

import (
	"context"
)

// ModelID identifies a concrete model from some provider.
type ModelID string

// TokenInfo tracks token usage for a single provider call.
type TokenInfo struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// LLMResponse is the result of a text generation call.
type LLMResponse struct {
	Content  string
	Usage    *TokenInfo
	Metadata map[string]interface{}
}

// Capability describes what a provider implementation can do.
type Capability string

const (
	CapabilityCompletion Capability = "completion"
	CapabilityJSON       Capability = "json"
	CapabilityEmbedding  Capability = "embedding"
)

// LLM is the single completion abstraction the rest of the system talks to.
// Each provider handles its own request/response format conversion; nothing
// outside pkg/llms branches on provider identity.
type LLM interface {
	// Generate produces a text completion for the given prompt.
	Generate(ctx context.Context, prompt string, options ...GenerateOption) (*LLMResponse, error)

	// GenerateWithJSON produces structured JSON output for the given prompt.
	GenerateWithJSON(ctx context.Context, prompt string, options ...GenerateOption) (map[string]interface{}, error)

	// CreateEmbeddings produces one embedding vector per input, in input order.
	CreateEmbeddings(ctx context.Context, inputs []string, options ...EmbeddingOption) (*BatchEmbeddingResult, error)

	ProviderName() string
	ModelID() string
	Capabilities() []Capability
}

// GenerateOption represents an option for text generation.
type GenerateOption func(*GenerateOptions)

// GenerateOptions holds configuration for text generation.
type GenerateOptions struct {
	MaxTokens   int
	Temperature float64
	TopP        float64
	Stop        []string
}

// NewGenerateOptions creates a new GenerateOptions with default values.
func NewGenerateOptions() *GenerateOptions {
	return &GenerateOptions{
		MaxTokens:   8192,
		Temperature: 0.5,
	}
}

// WithMaxTokens sets the maximum number of tokens to generate.
func WithMaxTokens(n int) GenerateOption {
	return func(o *GenerateOptions) {
		o.MaxTokens = n
	}
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) GenerateOption {
	return func(o *GenerateOptions) {
		o.Temperature = t
	}
}

// WithTopP sets the nucleus sampling probability.
func WithTopP(p float64) GenerateOption {
	return func(o *GenerateOptions) {
		o.TopP = p
	}
}

// WithStopSequences sets sequences that terminate generation.
func WithStopSequences(stop ...string) GenerateOption {
	return func(o *GenerateOptions) {
		o.Stop = stop
	}
}

// EmbeddingOptions holds model-specific options for embedding.
type EmbeddingOptions struct {
	Model  string
	Params map[string]interface{}
}

// EmbeddingOption allows for optional embedding parameters.
type EmbeddingOption func(*EmbeddingOptions)

// WithEmbeddingModel overrides the model used for embedding calls.
func WithEmbeddingModel(model string) EmbeddingOption {
	return func(o *EmbeddingOptions) {
		o.Model = model
	}
}

// EmbeddingResult represents the result of embedding a single input.
type EmbeddingResult struct {
	Vector     []float32
	TokenCount int
	Metadata   map[string]interface{}
}

// BatchEmbeddingResult represents results for multiple inputs.
type BatchEmbeddingResult struct {
	// Embeddings for each input, in input order
	Embeddings []EmbeddingResult
	// Any error that occurred during processing
	Error error
	// Input index that caused the error (if applicable)
	ErrorIndex int
}

// HasCapability reports whether the given capability is in the set.
func HasCapability(caps []Capability, want Capability) bool {
	for _, c := range caps {
		if c == want {
			return true
		}
	}
	return false
}
