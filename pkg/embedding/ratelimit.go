// Package embedding converts a bursty, concurrency-unsafe provider embedding
// API into a predictable, monotonic-rate consumer of quota.
package embedding

import (
	"context"
	"sync"
	"time"

	"github.com/shelfsense/shelfsense/pkg/core"
	"github.com/shelfsense/shelfsense/pkg/errors"
	"github.com/shelfsense/shelfsense/pkg/logging"
)

// Embedder produces one vector per input text, in input order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Config tunes the pacing of outbound embedding calls.
type Config struct {
	// BatchSize is the maximum number of texts per provider call.
	BatchSize int `yaml:"batch_size"`
	// MinInterval is the enforced wall-clock delay between successive
	// provider calls.
	MinInterval time.Duration `yaml:"min_interval"`
	// Cooldown is how long to sleep after a throttling error before
	// retrying the same batch.
	Cooldown time.Duration `yaml:"cooldown"`
	// MaxRetries bounds throttling retries per batch.
	MaxRetries int `yaml:"max_retries"`
}

// DefaultConfig returns conservative pacing defaults.
func DefaultConfig() Config {
	return Config{
		BatchSize:   8,
		MinInterval: time.Second,
		Cooldown:    15 * time.Second,
		MaxRetries:  3,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.BatchSize <= 0 {
		c.BatchSize = d.BatchSize
	}
	if c.MinInterval <= 0 {
		c.MinInterval = d.MinInterval
	}
	if c.Cooldown <= 0 {
		c.Cooldown = d.Cooldown
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = d.MaxRetries
	}
	return c
}

// RateLimited wraps an embedding-capable LLM with batching and strict
// sequential pacing. All calls, from any goroutine, share one pace clock.
type RateLimited struct {
	llm core.LLM
	cfg Config

	mu       sync.Mutex // serializes all provider calls
	lastCall time.Time
}

// NewRateLimited builds the pacing wrapper around an embedding-capable provider.
func NewRateLimited(llm core.LLM, cfg Config) (*RateLimited, error) {
	if !core.HasCapability(llm.Capabilities(), core.CapabilityEmbedding) {
		return nil, errors.WithFields(
			errors.New(errors.DependencyUnavailable, "provider does not support embeddings"),
			errors.Fields{"provider": llm.ProviderName()})
	}
	return &RateLimited{llm: llm, cfg: cfg.withDefaults()}, nil
}

// Embed returns one vector per input, in input order. Batches go out
// sequentially, each at least MinInterval after the previous provider call;
// a throttled batch sleeps for the cooldown and is retried up to MaxRetries
// times before the failure is surfaced.
func (r *RateLimited) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	// Holding the lock for the whole call keeps batches strictly
	// sequential even across concurrent callers.
	r.mu.Lock()
	defer r.mu.Unlock()

	logger := logging.GetLogger()
	vectors := make([][]float32, 0, len(texts))

	for start := 0; start < len(texts); start += r.cfg.BatchSize {
		end := start + r.cfg.BatchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch := texts[start:end]

		batchVectors, err := r.embedBatch(ctx, batch)
		if err != nil {
			return nil, errors.WithFields(err, errors.Fields{
				"batch_start": start,
				"batch_size":  len(batch),
			})
		}
		vectors = append(vectors, batchVectors...)
	}

	logger.Debug(ctx, "embedded %d texts in %d batches", len(texts), (len(texts)+r.cfg.BatchSize-1)/r.cfg.BatchSize)
	return vectors, nil
}

// embedBatch issues one provider call with pacing and throttling retries.
func (r *RateLimited) embedBatch(ctx context.Context, batch []string) ([][]float32, error) {
	logger := logging.GetLogger()

	for attempt := 0; ; attempt++ {
		if err := r.pace(ctx); err != nil {
			return nil, err
		}

		result, err := r.llm.CreateEmbeddings(ctx, batch)
		r.lastCall = time.Now()

		if err == nil {
			if len(result.Embeddings) != len(batch) {
				return nil, errors.WithFields(
					errors.New(errors.InvalidResponse, "embedding count does not match input count"),
					errors.Fields{"want": len(batch), "got": len(result.Embeddings)})
			}
			vectors := make([][]float32, len(batch))
			for i, emb := range result.Embeddings {
				vectors[i] = emb.Vector
			}
			return vectors, nil
		}

		if errors.CodeOf(err) != errors.RateLimitExceeded || attempt >= r.cfg.MaxRetries {
			return nil, errors.Wrap(err, errors.EmbeddingFailed, "embedding batch failed")
		}

		logger.Warn(ctx, "embedding provider throttled, cooling down %s (attempt %d/%d)",
			r.cfg.Cooldown, attempt+1, r.cfg.MaxRetries)
		select {
		case <-ctx.Done():
			return nil, errors.Wrap(ctx.Err(), errors.Canceled, "embedding canceled during cooldown")
		case <-time.After(r.cfg.Cooldown):
		}
	}
}

// pace blocks until MinInterval has elapsed since the previous provider call.
func (r *RateLimited) pace(ctx context.Context) error {
	if r.lastCall.IsZero() {
		return nil
	}
	wait := r.cfg.MinInterval - time.Since(r.lastCall)
	if wait <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), errors.Canceled, "embedding canceled while pacing")
	case <-time.After(wait):
		return nil
	}
}
