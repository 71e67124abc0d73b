package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shelfsense/shelfsense/pkg/core"
	"github.com/shelfsense/shelfsense/pkg/errors"
)

// StrategyAgent synthesizes a marketing strategy from the market and
// research steps. It runs last and consumes both of their outputs, including
// labeled placeholders when a step degraded.
type StrategyAgent struct {
	llm core.LLM
}

// NewStrategyAgent creates a marketing-strategy agent.
func NewStrategyAgent(llm core.LLM) *StrategyAgent {
	return &StrategyAgent{llm: llm}
}

func (a *StrategyAgent) Type() string { return TypeStrategy }

// Run synthesizes positioning, channel, and messaging recommendations.
func (a *StrategyAgent) Run(ctx context.Context, in Context, task *AgentTask) (map[string]interface{}, error) {
	product, err := productFrom(in)
	if err != nil {
		return nil, err
	}

	task.Log("synthesizing strategy for %q from upstream steps", product.Name)

	facts, _ := json.Marshal(product)
	var sb strings.Builder
	sb.WriteString("You are a go-to-market strategist for food products. ")
	sb.WriteString("Build a strategy from the inputs below. ")
	sb.WriteString("If an input is marked as a placeholder, note the gap instead of inventing data.\n\n")
	fmt.Fprintf(&sb, "Product facts:\n%s\n\n", facts)

	for _, key := range []string{TypeMarket, TypeResearch} {
		if out, ok := in[key].(map[string]interface{}); ok {
			encoded, _ := json.Marshal(out)
			fmt.Fprintf(&sb, "%s output:\n%s\n\n", key, encoded)
		}
	}

	sb.WriteString(`Respond with a single JSON object:
{
  "positioning_statement": "...",
  "target_segments": ["..."],
  "channel_plan": [{"channel": "...", "rationale": "..."}],
  "key_messages": ["..."],
  "launch_risks": ["..."],
  "data_gaps": ["..."]
}`)

	result, err := a.llm.GenerateWithJSON(ctx, sb.String())
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeOf(err), "strategy synthesis call failed")
	}

	task.Log("strategy produced with %d key messages", sliceLen(result["key_messages"]))
	return result, nil
}
