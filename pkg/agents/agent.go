package agents

import (
	"context"

	"github.com/shelfsense/shelfsense/pkg/rag"
)

// Context is the shared working state handed from step to step. Each
// completed step's output is stored under its agent type.
type Context map[string]interface{}

// Clone returns a shallow copy so a step cannot mutate earlier handoffs.
func (c Context) Clone() Context {
	out := make(Context, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// Agent is one specialist step. Run receives the accumulated workflow
// context and the task to log reasoning into.
type Agent interface {
	Type() string
	Run(ctx context.Context, in Context, task *AgentTask) (map[string]interface{}, error)
}

// Retriever is the retrieval surface research steps depend on. *rag.Engine
// satisfies it.
type Retriever interface {
	Query(ctx context.Context, query string, opts ...rag.QueryOption) (*rag.Answer, error)
}

// Agent type names, also the context keys their outputs land under.
const (
	TypeMarket   = "market_intelligence"
	TypeResearch = "research_insights"
	TypeStrategy = "marketing_strategy"
)
