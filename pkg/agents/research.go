package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/shelfsense/shelfsense/pkg/errors"
	"github.com/shelfsense/shelfsense/pkg/rag"
)

// ResearchAgent grounds the workflow in source documents: it asks the
// retrieval engine targeted questions about the product's category and
// returns cited findings.
type ResearchAgent struct {
	retriever Retriever
}

// NewResearchAgent creates a research agent backed by the given retrieval
// engine. A nil retriever makes every run fail with DependencyUnavailable,
// which the orchestrator degrades to a placeholder.
func NewResearchAgent(retriever Retriever) *ResearchAgent {
	return &ResearchAgent{retriever: retriever}
}

func (a *ResearchAgent) Type() string { return TypeResearch }

// Run queries the retrieval engine about category trends and, when market
// intelligence is available, the strongest competitor claims.
func (a *ResearchAgent) Run(ctx context.Context, in Context, task *AgentTask) (map[string]interface{}, error) {
	if a.retriever == nil {
		return nil, errors.New(errors.DependencyUnavailable, "retrieval index is not available")
	}

	product, err := productFrom(in)
	if err != nil {
		return nil, err
	}

	questions := []string{
		fmt.Sprintf("What consumer trends affect products like %s?", categoryHint(product.Labels)),
		"Which packaging attributes most influence purchase decisions?",
	}
	if trends := marketTrends(in); len(trends) > 0 {
		questions = append(questions,
			fmt.Sprintf("What evidence supports or contradicts the trend: %s?", trends[0]))
	}

	// Cache keyed per product so repeated analyses of the same product are
	// cheap while different products never share answers.
	cacheContext := "product:" + strings.ToLower(product.Name)

	findings := make([]interface{}, 0, len(questions))
	citations := make([]interface{}, 0)
	for _, q := range questions {
		task.Log("researching: %s", q)
		answer, err := a.retriever.Query(ctx, q, rag.WithCache(cacheContext))
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeOf(err), "research query failed")
		}
		findings = append(findings, map[string]interface{}{
			"question": q,
			"answer":   answer.Text,
		})
		for _, c := range answer.Citations {
			citations = append(citations, map[string]interface{}{
				"source_id": c.SourceID,
				"file_name": c.FileName,
				"page":      c.Page,
				"excerpt":   c.Excerpt,
			})
		}
	}

	task.Log("gathered %d findings with %d citations", len(findings), len(citations))
	return map[string]interface{}{
		"findings":  findings,
		"citations": citations,
	}, nil
}

func categoryHint(labels []string) string {
	if len(labels) == 0 {
		return "packaged food products"
	}
	return strings.Join(labels, " ") + " packaged food products"
}

func marketTrends(in Context) []string {
	market, ok := in[TypeMarket].(map[string]interface{})
	if !ok {
		return nil
	}
	raw, ok := market["market_trends"].([]interface{})
	if !ok {
		return nil
	}
	var trends []string
	for _, t := range raw {
		if s, ok := t.(string); ok {
			trends = append(trends, s)
		}
	}
	return trends
}
