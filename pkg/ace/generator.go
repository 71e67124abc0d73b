package ace

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shelfsense/shelfsense/pkg/core"
	"github.com/shelfsense/shelfsense/pkg/errors"
	"github.com/shelfsense/shelfsense/pkg/playbook"
	"github.com/shelfsense/shelfsense/pkg/scoring"
)

// Generator produces an AnalysisResult for one product. The LLM grades the
// qualitative criteria; all score arithmetic happens locally so identical
// grades always yield identical numbers.
type Generator struct {
	llm core.LLM
}

// NewGenerator creates a generator backed by the given completion provider.
func NewGenerator(llm core.LLM) *Generator {
	return &Generator{llm: llm}
}

// GenerateInput carries everything one analysis needs. The playbook snapshot
// is the immutable view taken at the start of the request.
type GenerateInput struct {
	Product          scoring.Product
	ImageDescription string
	Objective        scoring.Objective
	Playbook         *playbook.Snapshot
}

// generatorPayload is the schema the LLM must fill.
type generatorPayload struct {
	Criteria     map[string][]scoring.Criterion `json:"criteria"`
	Explanations map[string]string              `json:"explanations"`
	SWOT         SWOT                           `json:"swot"`
	Proposals    []Proposal                     `json:"proposals"`
	GTMStrategy  GTMStrategy                    `json:"gtm_strategy"`
}

// Analyze grades the product against the objective and returns the scored
// analysis. It has no side effects beyond the provider call.
func (g *Generator) Analyze(ctx context.Context, in GenerateInput) (*AnalysisResult, error) {
	if err := in.Objective.Validate(); err != nil {
		return nil, err
	}
	if err := in.Product.Validate(); err != nil {
		return nil, err
	}

	raw, err := g.llm.GenerateWithJSON(ctx, g.buildPrompt(in))
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeOf(err), "generator call failed")
	}

	payload, err := decodeGeneratorPayload(raw)
	if err != nil {
		return nil, err
	}

	criteria := make(map[scoring.Dimension][]scoring.Criterion, len(payload.Criteria))
	for name, crits := range payload.Criteria {
		dim := scoring.Dimension(name)
		if !validDimension(dim) {
			return nil, errors.WithFields(
				errors.New(errors.InvalidResponse, "generator returned unknown dimension"),
				errors.Fields{"dimension": name})
		}
		criteria[dim] = crits
	}

	scores, breakdown, err := scoring.ComputeScores(in.Product, in.Objective, criteria)
	if err != nil {
		if errors.CodeOf(err) == errors.ValidationFailed {
			// Bad grades come from the provider, so callers should retry.
			return nil, errors.Wrap(err, errors.InvalidResponse, "generator returned unusable criteria")
		}
		return nil, err
	}

	explanations := make(map[scoring.Dimension]string, len(payload.Explanations))
	var citedText strings.Builder
	for name, text := range payload.Explanations {
		explanations[scoring.Dimension(name)] = text
		citedText.WriteString(text)
		citedText.WriteString("\n")
	}

	return &AnalysisResult{
		Scores:       scores,
		Breakdown:    breakdown,
		Explanations: explanations,
		SWOT:         payload.SWOT,
		Proposals:    payload.Proposals,
		GTMStrategy:  payload.GTMStrategy,
		CitedBullets: filterKnown(DetectCitations(citedText.String()), in.Playbook),
	}, nil
}

func (g *Generator) buildPrompt(in GenerateInput) string {
	facts, _ := json.Marshal(in.Product)

	var sb strings.Builder
	sb.WriteString("You are a food-product go-to-market analyst. Grade the product below.\n\n")
	fmt.Fprintf(&sb, "Product facts:\n%s\n\n", facts)
	if in.ImageDescription != "" {
		fmt.Fprintf(&sb, "Packaging image description:\n%s\n\n", in.ImageDescription)
	}
	fmt.Fprintf(&sb, "Business objective: %s (%s)\n", in.Objective.Key, in.Objective.Description)
	fmt.Fprintf(&sb, "Score weights: attractiveness=%.2f utility=%.2f positioning=%.2f\n\n",
		in.Objective.Weights.Attractiveness, in.Objective.Weights.Utility, in.Objective.Weights.Positioning)

	if in.Playbook != nil && in.Playbook.Len() > 0 {
		sb.WriteString("Playbook rules learned from previous analyses. ")
		sb.WriteString("When a rule informs your reasoning, cite its id in square brackets.\n")
		sb.WriteString(in.Playbook.FormatForInjection())
		sb.WriteString("\n")
	}

	sb.WriteString(`Respond with a single JSON object:
{
  "criteria": {
    "attractiveness": [{"name": "...", "grade": 0 | 0.5 | 1, "rationale": "..."}],
    "utility": [...],
    "positioning": [...]
  },
  "explanations": {"attractiveness": "...", "utility": "...", "positioning": "..."},
  "swot": {"strengths": [], "weaknesses": [], "opportunities": [], "threats": []},
  "proposals": [{"title": "...", "rationale": "..."}],
  "gtm_strategy": {"target_segment": "...", "channels": [], "price_position": "...", "key_messages": []}
}
Provide 3 or 4 criteria per dimension. Grades must be exactly 0, 0.5, or 1.
Do not compute numeric scores yourself.`)
	return sb.String()
}

func decodeGeneratorPayload(raw map[string]interface{}) (*generatorPayload, error) {
	encoded, err := json.Marshal(raw)
	if err != nil {
		return nil, errors.Wrap(err, errors.InvalidResponse, "generator response not encodable")
	}
	var payload generatorPayload
	if err := json.Unmarshal(encoded, &payload); err != nil {
		return nil, errors.Wrap(err, errors.InvalidResponse, "generator response does not match schema")
	}
	if len(payload.Criteria) == 0 {
		return nil, errors.New(errors.InvalidResponse, "generator response missing criteria")
	}
	return &payload, nil
}

func validDimension(d scoring.Dimension) bool {
	for _, dim := range scoring.Dimensions() {
		if d == dim {
			return true
		}
	}
	return false
}

// filterKnown drops citations that do not resolve to a bullet in the
// snapshot the analysis was produced against.
func filterKnown(ids []string, snap *playbook.Snapshot) []string {
	if snap == nil {
		return nil
	}
	var known []string
	for _, id := range ids {
		if snap.Find(id) != nil {
			known = append(known, id)
		}
	}
	return known
}
