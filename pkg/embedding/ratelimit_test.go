package embedding

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shelfsense/shelfsense/internal/testutil"
	"github.com/shelfsense/shelfsense/pkg/core"
	"github.com/shelfsense/shelfsense/pkg/errors"
)

func TestEmbedPreservesLengthAndOrder(t *testing.T) {
	fake := &testutil.FakeLLM{}
	client, err := NewRateLimited(fake, Config{BatchSize: 2, MinInterval: time.Millisecond})
	require.NoError(t, err)

	texts := []string{"alpha", "beta", "gamma", "delta", "epsilon"}
	vectors, err := client.Embed(context.Background(), texts)
	require.NoError(t, err)
	require.Len(t, vectors, len(texts))

	for i, text := range texts {
		assert.Equal(t, testutil.DeterministicVector(text, 8), vectors[i])
	}
}

func TestEmbedBatchSizes(t *testing.T) {
	fake := &testutil.FakeLLM{}
	client, err := NewRateLimited(fake, Config{BatchSize: 2, MinInterval: time.Millisecond})
	require.NoError(t, err)

	_, err = client.Embed(context.Background(), []string{"a", "b", "c", "d", "e"})
	require.NoError(t, err)

	require.Len(t, fake.EmbedBatches, 3)
	assert.Equal(t, []string{"a", "b"}, fake.EmbedBatches[0])
	assert.Equal(t, []string{"c", "d"}, fake.EmbedBatches[1])
	assert.Equal(t, []string{"e"}, fake.EmbedBatches[2])
}

func TestEmbedEnforcesMinInterval(t *testing.T) {
	const minInterval = 40 * time.Millisecond

	var callTimes []time.Time
	fake := &testutil.FakeLLM{
		EmbedFunc: func(ctx context.Context, inputs []string) (*core.BatchEmbeddingResult, error) {
			callTimes = append(callTimes, time.Now())
			result := &core.BatchEmbeddingResult{ErrorIndex: -1}
			for range inputs {
				result.Embeddings = append(result.Embeddings, core.EmbeddingResult{Vector: []float32{1}})
			}
			return result, nil
		},
	}

	client, err := NewRateLimited(fake, Config{BatchSize: 1, MinInterval: minInterval})
	require.NoError(t, err)

	_, err = client.Embed(context.Background(), []string{"a", "b", "c", "d"})
	require.NoError(t, err)

	require.Len(t, callTimes, 4)
	for i := 1; i < len(callTimes); i++ {
		gap := callTimes[i].Sub(callTimes[i-1])
		assert.GreaterOrEqual(t, gap, minInterval, "gap between batches %d and %d", i-1, i)
	}
}

func TestEmbedRetriesThrottling(t *testing.T) {
	fake := &testutil.FakeLLM{ThrottleFirst: 2}
	client, err := NewRateLimited(fake, Config{
		BatchSize:   4,
		MinInterval: time.Millisecond,
		Cooldown:    time.Millisecond,
		MaxRetries:  3,
	})
	require.NoError(t, err)

	vectors, err := client.Embed(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Len(t, vectors, 2)
	assert.Equal(t, 3, fake.EmbedCallCount(), "two throttled attempts plus one success")
}

func TestEmbedSurfacesFatalAfterRetryBudget(t *testing.T) {
	fake := &testutil.FakeLLM{ThrottleFirst: 10}
	client, err := NewRateLimited(fake, Config{
		BatchSize:   4,
		MinInterval: time.Millisecond,
		Cooldown:    time.Millisecond,
		MaxRetries:  2,
	})
	require.NoError(t, err)

	_, err = client.Embed(context.Background(), []string{"a"})
	require.Error(t, err)
	assert.Equal(t, errors.EmbeddingFailed, errors.CodeOf(err))
	assert.Equal(t, 3, fake.EmbedCallCount(), "initial attempt plus two retries")
}

func TestEmbedRejectsNonEmbeddingProvider(t *testing.T) {
	fake := &testutil.FakeLLM{}
	completionOnly := &capabilityStripper{LLM: fake}

	_, err := NewRateLimited(completionOnly, Config{})
	require.Error(t, err)
	assert.Equal(t, errors.DependencyUnavailable, errors.CodeOf(err))
}

func TestEmbedEmptyInput(t *testing.T) {
	fake := &testutil.FakeLLM{}
	client, err := NewRateLimited(fake, Config{})
	require.NoError(t, err)

	vectors, err := client.Embed(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, vectors)
	assert.Equal(t, 0, fake.EmbedCallCount())
}

// capabilityStripper hides the embedding capability of the wrapped LLM.
type capabilityStripper struct {
	core.LLM
}

func (c *capabilityStripper) Capabilities() []core.Capability {
	return []core.Capability{core.CapabilityCompletion}
}
