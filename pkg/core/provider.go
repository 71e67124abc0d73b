package core

import (
	"net/http"
	"time"
)

// EndpointConfig holds connection details for a provider endpoint.
type EndpointConfig struct {
	BaseURL    string            `yaml:"base_url"`
	Path       string            `yaml:"path"`
	Headers    map[string]string `yaml:"headers"`
	TimeoutSec int               `yaml:"timeout_sec"`
}

// ProviderConfig describes one concrete LLM/embedding provider.
type ProviderConfig struct {
	Name           string          `yaml:"name"`
	APIKey         string          `yaml:"api_key"`
	ModelID        string          `yaml:"model_id"`
	EmbeddingModel string          `yaml:"embedding_model"`
	Endpoint       *EndpointConfig `yaml:"endpoint,omitempty"`
}

// BaseLLM carries the identity shared by all provider implementations.
type BaseLLM struct {
	providerName string
	modelID      ModelID
	capabilities []Capability
	endpoint     *EndpointConfig
	client       *http.Client
}

// NewBaseLLM creates the common provider identity block.
func NewBaseLLM(providerName string, modelID ModelID, capabilities []Capability, endpoint *EndpointConfig) *BaseLLM {
	timeout := 5 * time.Minute
	if endpoint != nil && endpoint.TimeoutSec > 0 {
		timeout = time.Duration(endpoint.TimeoutSec) * time.Second
	}
	return &BaseLLM{
		providerName: providerName,
		modelID:      modelID,
		capabilities: capabilities,
		endpoint:     endpoint,
		client:       &http.Client{Timeout: timeout},
	}
}

func (b *BaseLLM) ProviderName() string {
	return b.providerName
}

func (b *BaseLLM) ModelID() string {
	return string(b.modelID)
}

func (b *BaseLLM) Capabilities() []Capability {
	return b.capabilities
}

// GetEndpointConfig returns the endpoint configuration, which may be nil for
// SDK-backed providers.
func (b *BaseLLM) GetEndpointConfig() *EndpointConfig {
	return b.endpoint
}

// GetHTTPClient returns the HTTP client used for endpoint-backed providers.
func (b *BaseLLM) GetHTTPClient() *http.Client {
	return b.client
}
