package llms

import (
	"context"
	"os"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/shelfsense/shelfsense/pkg/core"
	"github.com/shelfsense/shelfsense/pkg/errors"
	"github.com/shelfsense/shelfsense/pkg/logging"
	"github.com/shelfsense/shelfsense/pkg/utils"
)

// AnthropicLLM implements the core.LLM interface for Anthropic's models.
type AnthropicLLM struct {
	client *anthropic.Client
	*core.BaseLLM
}

// NewAnthropicLLM creates a new AnthropicLLM instance.
func NewAnthropicLLM(apiKey string, model anthropic.Model) (*AnthropicLLM, error) {
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if apiKey == "" {
		return nil, errors.New(errors.ConfigurationError, "Anthropic API key is required")
	}

	client := anthropic.NewClient(
		option.WithAPIKey(apiKey),
	)

	capabilities := []core.Capability{
		core.CapabilityCompletion,
		core.CapabilityJSON,
	}

	return &AnthropicLLM{
		client:  &client,
		BaseLLM: core.NewBaseLLM("anthropic", core.ModelID(model), capabilities, nil),
	}, nil
}

// NewAnthropicLLMFromConfig creates a new AnthropicLLM instance from configuration.
func NewAnthropicLLMFromConfig(ctx context.Context, config core.ProviderConfig) (*AnthropicLLM, error) {
	apiKey := config.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if apiKey == "" {
		return nil, errors.New(errors.ConfigurationError, "Anthropic API key is required")
	}

	clientOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if config.Endpoint != nil && config.Endpoint.BaseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(config.Endpoint.BaseURL))
	}

	client := anthropic.NewClient(clientOpts...)

	capabilities := []core.Capability{
		core.CapabilityCompletion,
		core.CapabilityJSON,
	}

	return &AnthropicLLM{
		client:  &client,
		BaseLLM: core.NewBaseLLM("anthropic", core.ModelID(config.ModelID), capabilities, config.Endpoint),
	}, nil
}

// Generate implements the core.LLM interface.
func (a *AnthropicLLM) Generate(ctx context.Context, prompt string, options ...core.GenerateOption) (*core.LLMResponse, error) {
	logger := logging.GetLogger()
	opts := core.NewGenerateOptions()
	for _, opt := range options {
		opt(opts)
	}

	params := anthropic.MessageNewParams{
		Model: anthropic.Model(a.ModelID()),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(
				anthropic.NewTextBlock(prompt),
			),
		},
		MaxTokens:   int64(opts.MaxTokens),
		Temperature: anthropic.Float(opts.Temperature),
	}
	if len(opts.Stop) > 0 {
		params.StopSequences = opts.Stop
	}

	message, err := a.client.Messages.New(ctx, params)
	if err != nil {
		return nil, errors.WithFields(
			errors.Wrap(err, classifyProviderError(err), "failed to generate completion"),
			errors.Fields{"model": a.ModelID()})
	}

	if len(message.Content) == 0 {
		return nil, errors.WithFields(
			errors.New(errors.InvalidResponse, "empty response from Anthropic"),
			errors.Fields{"model": a.ModelID()})
	}

	var content strings.Builder
	for _, block := range message.Content {
		if block.Type == "text" {
			content.WriteString(block.Text)
		}
	}

	usage := &core.TokenInfo{
		PromptTokens:     int(message.Usage.InputTokens),
		CompletionTokens: int(message.Usage.OutputTokens),
		TotalTokens:      int(message.Usage.InputTokens + message.Usage.OutputTokens),
	}

	logger.PromptCompletion(ctx, prompt, content.String(), &logging.TokenInfo{
		PromptTokens:     usage.PromptTokens,
		CompletionTokens: usage.CompletionTokens,
		TotalTokens:      usage.TotalTokens,
	})

	return &core.LLMResponse{
		Content: content.String(),
		Usage:   usage,
	}, nil
}

// GenerateWithJSON implements the core.LLM interface.
func (a *AnthropicLLM) GenerateWithJSON(ctx context.Context, prompt string, options ...core.GenerateOption) (map[string]interface{}, error) {
	response, err := a.Generate(ctx, prompt, options...)
	if err != nil {
		return nil, err
	}

	return utils.ParseJSONWithFallbacks(response.Content)
}

// CreateEmbeddings implements the core.LLM interface. Anthropic does not
// expose an embedding endpoint; pair this provider with an embedding-capable
// one via the factory.
func (a *AnthropicLLM) CreateEmbeddings(ctx context.Context, inputs []string, options ...core.EmbeddingOption) (*core.BatchEmbeddingResult, error) {
	return nil, errors.WithFields(
		errors.New(errors.DependencyUnavailable, "Anthropic does not support embeddings"),
		errors.Fields{"model": a.ModelID()})
}

// classifyProviderError maps SDK transport failures onto the error taxonomy.
func classifyProviderError(err error) errors.ErrorCode {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "429") || strings.Contains(msg, "rate limit") || strings.Contains(msg, "overloaded"):
		return errors.RateLimitExceeded
	case strings.Contains(msg, "deadline exceeded") || strings.Contains(msg, "timeout"):
		return errors.Timeout
	case strings.Contains(msg, "401") || strings.Contains(msg, "403") || strings.Contains(msg, "authentication"):
		return errors.ConfigurationError
	default:
		return errors.LLMGenerationFailed
	}
}
