// Package config loads and validates the engine's configuration from a YAML
// file plus environment variables.
package config

import (
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/shelfsense/shelfsense/pkg/core"
	"github.com/shelfsense/shelfsense/pkg/embedding"
	"github.com/shelfsense/shelfsense/pkg/errors"
	"github.com/shelfsense/shelfsense/pkg/rag"
	"github.com/shelfsense/shelfsense/pkg/scoring"
)

// Config is the complete configuration for the engine.
type Config struct {
	LLM       LLMConfig       `yaml:"llm" validate:"required"`
	Embedding EmbeddingConfig `yaml:"embedding,omitempty"`
	RAG       RAGConfig       `yaml:"rag,omitempty"`
	Playbook  PlaybookConfig  `yaml:"playbook" validate:"required"`
	Retry     RetryConfig     `yaml:"retry,omitempty"`
	// Objectives extends or overrides the built-in objective catalog.
	Objectives []scoring.Objective `yaml:"objectives,omitempty" validate:"dive"`
}

// LLMConfig selects the completion and embedding providers.
type LLMConfig struct {
	// Provider is anthropic or ollama.
	Provider string `yaml:"provider" validate:"required,oneof=anthropic ollama"`
	ModelID  string `yaml:"model_id" validate:"required"`
	// APIKey falls back to the provider's environment variable.
	APIKey string `yaml:"api_key,omitempty"`
	// EmbeddingProvider defaults to an Ollama instance since the Anthropic
	// API does not serve embeddings.
	EmbeddingProvider string `yaml:"embedding_provider,omitempty"`
	EmbeddingModel    string `yaml:"embedding_model,omitempty"`
	BaseURL           string `yaml:"base_url,omitempty"`
}

// Duration is a time.Duration that also unmarshals from YAML strings such
// as "2s" or "500ms".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err == nil {
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return err
		}
		*d = Duration(parsed)
		return nil
	}
	var n int64
	if err := value.Decode(&n); err != nil {
		return err
	}
	*d = Duration(n)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// EmbeddingConfig paces outbound embedding calls.
type EmbeddingConfig struct {
	BatchSize   int      `yaml:"batch_size,omitempty" validate:"omitempty,min=1"`
	MinInterval Duration `yaml:"min_interval,omitempty"`
	Cooldown    Duration `yaml:"cooldown,omitempty"`
	MaxRetries  int      `yaml:"max_retries,omitempty" validate:"omitempty,min=1"`
}

// RateLimit converts the section into the embedding client's config.
func (c EmbeddingConfig) RateLimit() embedding.Config {
	return embedding.Config{
		BatchSize:   c.BatchSize,
		MinInterval: c.MinInterval.Std(),
		Cooldown:    c.Cooldown.Std(),
		MaxRetries:  c.MaxRetries,
	}
}

// RAGConfig locates the retrieval index and its query cache.
type RAGConfig struct {
	IndexPath string            `yaml:"index_path,omitempty"`
	CachePath string            `yaml:"cache_path,omitempty"`
	TopK      int               `yaml:"top_k,omitempty" validate:"omitempty,min=1"`
	Chunker   rag.ChunkerConfig `yaml:"chunker,omitempty"`
}

// PlaybookConfig locates the persistent playbook file.
type PlaybookConfig struct {
	Path string `yaml:"path" validate:"required"`
}

// RetryConfig bounds each generative stage.
type RetryConfig struct {
	MaxAttempts    int      `yaml:"max_attempts,omitempty" validate:"omitempty,min=1"`
	InitialBackoff Duration `yaml:"initial_backoff,omitempty"`
	Multiplier     float64  `yaml:"multiplier,omitempty" validate:"omitempty,gte=1"`
}

// Policy converts the section into a retry policy, falling back to defaults
// for unset fields.
func (c RetryConfig) Policy() core.RetryPolicy {
	policy := core.DefaultRetryPolicy()
	if c.MaxAttempts > 0 {
		policy.MaxAttempts = c.MaxAttempts
	}
	if c.InitialBackoff > 0 {
		policy.InitialBackoff = c.InitialBackoff.Std()
	}
	if c.Multiplier >= 1 {
		policy.Multiplier = c.Multiplier
	}
	return policy
}

var validate = validator.New()

// Load reads the configuration file, applies environment fallbacks, and
// validates the result. A .env file next to the process is honored when
// present.
func Load(path string) (*Config, error) {
	// Missing .env is fine; explicit configuration still wins.
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ConfigurationError, "failed to read config file")
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, errors.ConfigurationError, "failed to parse config file")
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyEnv fills credentials from the environment when the file omits them.
func (c *Config) applyEnv() {
	if c.LLM.APIKey == "" {
		c.LLM.APIKey = os.Getenv("ANTHROPIC_API_KEY")
	}
}

// Validate checks structure and cross-field rules, including that every
// configured objective's weights sum to 1.0.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, errors.ConfigurationError, "invalid configuration")
	}
	if c.LLM.Provider == "anthropic" && c.LLM.APIKey == "" {
		return errors.New(errors.ConfigurationError, "anthropic provider requires an API key")
	}
	for _, obj := range c.Objectives {
		if err := obj.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// ObjectiveCatalog merges the configured objectives over the built-in ones.
func (c *Config) ObjectiveCatalog() map[string]scoring.Objective {
	catalog := scoring.DefaultObjectives()
	for _, obj := range c.Objectives {
		catalog[obj.Key] = obj
	}
	return catalog
}
