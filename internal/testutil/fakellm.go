// Package testutil provides deterministic fakes shared by package tests.
package testutil

import (
	"context"
	"encoding/json"
	"hash/fnv"
	"sync"

	"github.com/shelfsense/shelfsense/pkg/core"
	"github.com/shelfsense/shelfsense/pkg/errors"
)

// FakeLLM is a deterministic core.LLM implementation for tests.
// Behavior is driven by the optional hook functions; unset hooks fall back
// to queue-based or derived defaults.
type FakeLLM struct {
	mu sync.Mutex

	GenerateFunc func(ctx context.Context, prompt string) (string, error)
	JSONFunc     func(ctx context.Context, prompt string) (map[string]interface{}, error)
	EmbedFunc    func(ctx context.Context, inputs []string) (*core.BatchEmbeddingResult, error)

	// JSONQueue is popped front-first by GenerateWithJSON when JSONFunc is nil.
	JSONQueue []map[string]interface{}

	// ThrottleFirst makes the first N embedding calls fail with a
	// rate-limit error before succeeding.
	ThrottleFirst int

	// Recorded calls
	Prompts     []string
	EmbedBatches [][]string

	embedCalls int
}

var _ core.LLM = (*FakeLLM)(nil)

func (f *FakeLLM) Generate(ctx context.Context, prompt string, options ...core.GenerateOption) (*core.LLMResponse, error) {
	f.mu.Lock()
	f.Prompts = append(f.Prompts, prompt)
	fn := f.GenerateFunc
	f.mu.Unlock()

	if fn != nil {
		content, err := fn(ctx, prompt)
		if err != nil {
			return nil, err
		}
		return &core.LLMResponse{Content: content}, nil
	}
	return &core.LLMResponse{Content: "fake response"}, nil
}

func (f *FakeLLM) GenerateWithJSON(ctx context.Context, prompt string, options ...core.GenerateOption) (map[string]interface{}, error) {
	f.mu.Lock()
	f.Prompts = append(f.Prompts, prompt)
	fn := f.JSONFunc
	var queued map[string]interface{}
	if fn == nil && len(f.JSONQueue) > 0 {
		queued = f.JSONQueue[0]
		f.JSONQueue = f.JSONQueue[1:]
	}
	f.mu.Unlock()

	if fn != nil {
		return fn(ctx, prompt)
	}
	if queued != nil {
		return queued, nil
	}
	return nil, errors.New(errors.InvalidResponse, "fake LLM has no queued JSON response")
}

func (f *FakeLLM) CreateEmbeddings(ctx context.Context, inputs []string, options ...core.EmbeddingOption) (*core.BatchEmbeddingResult, error) {
	f.mu.Lock()
	f.EmbedBatches = append(f.EmbedBatches, append([]string(nil), inputs...))
	f.embedCalls++
	throttle := f.embedCalls <= f.ThrottleFirst
	fn := f.EmbedFunc
	f.mu.Unlock()

	if fn != nil {
		return fn(ctx, inputs)
	}
	if throttle {
		return nil, errors.New(errors.RateLimitExceeded, "fake throttling")
	}

	result := &core.BatchEmbeddingResult{ErrorIndex: -1}
	for _, input := range inputs {
		result.Embeddings = append(result.Embeddings, core.EmbeddingResult{
			Vector: DeterministicVector(input, 8),
		})
	}
	return result, nil
}

func (f *FakeLLM) ProviderName() string { return "fake" }
func (f *FakeLLM) ModelID() string     { return "fake-model" }

func (f *FakeLLM) Capabilities() []core.Capability {
	return []core.Capability{
		core.CapabilityCompletion,
		core.CapabilityJSON,
		core.CapabilityEmbedding,
	}
}

// EmbedCallCount returns how many embedding calls were issued.
func (f *FakeLLM) EmbedCallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.embedCalls
}

// PromptCount returns how many generation prompts were issued.
func (f *FakeLLM) PromptCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Prompts)
}

// DeterministicVector derives a stable pseudo-embedding from text. Equal
// texts always map to equal vectors, so similarity ordering is reproducible.
func DeterministicVector(text string, dim int) []float32 {
	vec := make([]float32, dim)
	for i := 0; i < dim; i++ {
		h := fnv.New32a()
		h.Write([]byte{byte(i)})
		h.Write([]byte(text))
		vec[i] = float32(h.Sum32()%1000)/1000.0 - 0.5
	}
	return vec
}

// MustJSON converts a value to a generic map the way a model response parser
// would produce it.
func MustJSON(v interface{}) map[string]interface{} {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	var out map[string]interface{}
	if err := json.Unmarshal(data, &out); err != nil {
		panic(err)
	}
	return out
}
