package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shelfsense/shelfsense/pkg/core"
	"github.com/shelfsense/shelfsense/pkg/errors"
	"github.com/shelfsense/shelfsense/pkg/scoring"
)

// MarketAgent surveys the competitive landscape for a product category.
type MarketAgent struct {
	llm core.LLM
}

// NewMarketAgent creates a market-intelligence agent.
func NewMarketAgent(llm core.LLM) *MarketAgent {
	return &MarketAgent{llm: llm}
}

func (a *MarketAgent) Type() string { return TypeMarket }

// Run produces competitor, trend, and price-landscape intelligence from the
// product facts in the workflow context.
func (a *MarketAgent) Run(ctx context.Context, in Context, task *AgentTask) (map[string]interface{}, error) {
	product, err := productFrom(in)
	if err != nil {
		return nil, err
	}

	task.Log("surveying market for %q (%s)", product.Name, product.Brand)

	facts, _ := json.Marshal(product)
	var sb strings.Builder
	sb.WriteString("You are a market-intelligence analyst for food products.\n\n")
	fmt.Fprintf(&sb, "Product facts:\n%s\n\n", facts)
	sb.WriteString(`Respond with a single JSON object:
{
  "competitors": [{"name": "...", "positioning": "...", "notable_claims": []}],
  "market_trends": ["..."],
  "price_landscape": {"segment": "budget" | "mainstream" | "premium", "notes": "..."},
  "category_risks": ["..."]
}`)

	result, err := a.llm.GenerateWithJSON(ctx, sb.String())
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeOf(err), "market intelligence call failed")
	}

	task.Log("identified %d competitors, %d trends",
		sliceLen(result["competitors"]), sliceLen(result["market_trends"]))
	return result, nil
}

// productFrom extracts the product facts placed in the context by the caller.
func productFrom(in Context) (scoring.Product, error) {
	switch v := in["product"].(type) {
	case scoring.Product:
		return v, nil
	case *scoring.Product:
		if v != nil {
			return *v, nil
		}
	}
	return scoring.Product{}, errors.New(errors.InvalidInput, "workflow context is missing product facts")
}

func sliceLen(v interface{}) int {
	if s, ok := v.([]interface{}); ok {
		return len(s)
	}
	return 0
}
