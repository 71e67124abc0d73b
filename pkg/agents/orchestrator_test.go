package agents

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shelfsense/shelfsense/internal/testutil"
	"github.com/shelfsense/shelfsense/pkg/errors"
	"github.com/shelfsense/shelfsense/pkg/rag"
	"github.com/shelfsense/shelfsense/pkg/scoring"
)

type stubAgent struct {
	name   string
	output map[string]interface{}
	err    error
	seen   Context
}

func (s *stubAgent) Type() string { return s.name }

func (s *stubAgent) Run(ctx context.Context, in Context, task *AgentTask) (map[string]interface{}, error) {
	s.seen = in.Clone()
	task.Log("stub %s ran", s.name)
	if s.err != nil {
		return nil, s.err
	}
	return s.output, nil
}

func sampleProduct() scoring.Product {
	return scoring.Product{
		Name:   "High Protein Oat Bar",
		Brand:  "Novabar",
		Labels: []string{"vegan"},
	}
}

func TestOrchestratorCompletes(t *testing.T) {
	first := &stubAgent{name: "a", output: map[string]interface{}{"insight": "one"}}
	second := &stubAgent{name: "b", output: map[string]interface{}{"insight": "two"}}
	orch := NewOrchestrator(first, second)

	result, err := orch.Run(context.Background(), Context{"product": sampleProduct()})
	require.NoError(t, err)

	assert.Equal(t, WorkflowCompleted, result.Status)
	require.Len(t, result.Tasks, 2)
	assert.Equal(t, TaskCompleted, result.Tasks[0].CurrentStatus())
	assert.Equal(t, TaskCompleted, result.Tasks[1].CurrentStatus())

	// Step a's output is handed to step b as context.
	assert.Equal(t, map[string]interface{}{"insight": "one"}, second.seen["a"])

	status, step := orch.Status()
	assert.Equal(t, WorkflowCompleted, status)
	assert.Equal(t, 2, step)
}

func TestOrchestratorPartialFailure(t *testing.T) {
	failing := &stubAgent{name: "b", err: errors.New(errors.DependencyUnavailable, "index offline")}
	last := &stubAgent{name: "c", output: map[string]interface{}{"done": true}}
	orch := NewOrchestrator(
		&stubAgent{name: "a", output: map[string]interface{}{"ok": true}},
		failing,
		last,
	)

	result, err := orch.Run(context.Background(), Context{"product": sampleProduct()})
	require.NoError(t, err)

	assert.Equal(t, WorkflowPartiallyCompleted, result.Status)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, "b", result.Failures[0].AgentType)

	// The failed step's slot holds a labeled placeholder, and the next step
	// received it in context.
	placeholder := result.Outputs["b"]
	require.NotNil(t, placeholder)
	assert.Equal(t, true, placeholder["placeholder"])
	assert.Contains(t, placeholder["reason"], "index offline")
	assert.Equal(t, placeholder, last.seen["b"])

	assert.Equal(t, TaskFailed, result.Tasks[1].CurrentStatus())
	assert.Equal(t, TaskCompleted, result.Tasks[2].CurrentStatus())
}

func TestOrchestratorAllStepsFailed(t *testing.T) {
	orch := NewOrchestrator(
		&stubAgent{name: "a", err: errors.New(errors.Unknown, "boom")},
		&stubAgent{name: "b", err: errors.New(errors.Unknown, "boom")},
	)

	result, err := orch.Run(context.Background(), Context{})
	require.NoError(t, err)
	assert.Equal(t, WorkflowFailed, result.Status)
	assert.Len(t, result.Failures, 2)
}

func TestOrchestratorNoSteps(t *testing.T) {
	_, err := NewOrchestrator().Run(context.Background(), Context{})
	assert.Error(t, err)
}

func TestOrchestratorDoesNotMutateInitialContext(t *testing.T) {
	initial := Context{"product": sampleProduct()}
	orch := NewOrchestrator(&stubAgent{name: "a", output: map[string]interface{}{"x": 1}})

	_, err := orch.Run(context.Background(), initial)
	require.NoError(t, err)
	_, leaked := initial["a"]
	assert.False(t, leaked)
}

// Research-step degradation: a missing retrieval index must not abort the
// workflow; the research slot becomes a labeled placeholder and the strategy
// step still runs.
func TestWorkflowSurvivesMissingRetrievalIndex(t *testing.T) {
	llm := &testutil.FakeLLM{
		JSONFunc: func(ctx context.Context, prompt string) (map[string]interface{}, error) {
			return map[string]interface{}{"positioning_statement": "premium plant-based"}, nil
		},
	}

	orch := NewOrchestrator(
		NewResearchAgent(nil),
		NewStrategyAgent(llm),
	)

	result, err := orch.Run(context.Background(), Context{"product": sampleProduct()})
	require.NoError(t, err)

	assert.Equal(t, WorkflowPartiallyCompleted, result.Status)
	placeholder := result.Outputs[TypeResearch]
	require.NotNil(t, placeholder)
	assert.Equal(t, true, placeholder["placeholder"])

	strategy := result.Outputs[TypeStrategy]
	assert.Equal(t, "premium plant-based", strategy["positioning_statement"])
}

type recordingRetriever struct {
	queries  []string
	contexts []string
}

func (r *recordingRetriever) Query(ctx context.Context, query string, opts ...rag.QueryOption) (*rag.Answer, error) {
	r.queries = append(r.queries, query)
	return &rag.Answer{
		Text: "cited finding",
		Citations: []rag.Citation{
			{SourceID: "trends-0001", FileName: "trends.pdf", Page: 2, Excerpt: "recyclable packaging"},
		},
	}, nil
}

func TestResearchAgentGroundsFindings(t *testing.T) {
	retriever := &recordingRetriever{}
	agent := NewResearchAgent(retriever)

	task := NewTask(agent.Type())
	require.NoError(t, task.Start())

	in := Context{
		"product": sampleProduct(),
		TypeMarket: map[string]interface{}{
			"market_trends": []interface{}{"protein claims drive trial"},
		},
	}
	out, err := agent.Run(context.Background(), in, task)
	require.NoError(t, err)

	// The market step's top trend shapes a follow-up research question.
	require.Len(t, retriever.queries, 3)
	assert.Contains(t, retriever.queries[2], "protein claims drive trial")

	findings := out["findings"].([]interface{})
	assert.Len(t, findings, 3)
	citations := out["citations"].([]interface{})
	require.NotEmpty(t, citations)
	first := citations[0].(map[string]interface{})
	assert.Equal(t, "trends-0001", first["source_id"])
	assert.NotEmpty(t, task.Logs)
}

func TestMarketAgentRequiresProduct(t *testing.T) {
	agent := NewMarketAgent(&testutil.FakeLLM{})
	task := NewTask(agent.Type())
	require.NoError(t, task.Start())

	_, err := agent.Run(context.Background(), Context{}, task)
	require.Error(t, err)
	assert.Equal(t, errors.InvalidInput, errors.CodeOf(err))
}
