package ace

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shelfsense/shelfsense/pkg/core"
	"github.com/shelfsense/shelfsense/pkg/errors"
	"github.com/shelfsense/shelfsense/pkg/logging"
	"github.com/shelfsense/shelfsense/pkg/playbook"
	"github.com/shelfsense/shelfsense/pkg/rag"
)

// Evidence is the retrieval surface the Reflector may consult. *rag.Engine
// satisfies it.
type Evidence interface {
	Query(ctx context.Context, query string, opts ...rag.QueryOption) (*rag.Answer, error)
}

// Reflector critiques an AnalysisResult against the playbook snapshot that
// produced it. Its report is advisory: it feeds the Curator and never
// rewrites the analysis.
type Reflector struct {
	llm      core.LLM
	evidence Evidence
}

// NewReflector creates a reflector. evidence may be nil, in which case the
// critique runs without retrieval support.
func NewReflector(llm core.LLM, evidence Evidence) *Reflector {
	return &Reflector{llm: llm, evidence: evidence}
}

type reflectorPayload struct {
	Flaws          []string `json:"flaws"`
	BulletFeedback []struct {
		BulletID string `json:"bullet_id"`
		Verdict  string `json:"verdict"`
		Note     string `json:"note"`
	} `json:"bullet_feedback"`
	GeneralizableInsights []struct {
		Section string `json:"section"`
		Text    string `json:"text"`
	} `json:"generalizable_insights"`
}

// Reflect judges the analysis's claims and cited bullets and extracts
// generalizable insights for the Curator.
func (r *Reflector) Reflect(ctx context.Context, analysis *AnalysisResult, snap *playbook.Snapshot) (*ReflectionReport, error) {
	if analysis == nil {
		return nil, errors.New(errors.InvalidInput, "nil analysis")
	}

	logger := logging.GetLogger()

	var evidenceNote string
	if r.evidence != nil && len(analysis.Proposals) > 0 {
		question := fmt.Sprintf("What market evidence supports or contradicts: %s", analysis.Proposals[0].Title)
		answer, err := r.evidence.Query(ctx, question)
		if err != nil {
			logger.Warn(ctx, "reflection evidence lookup failed, critiquing without it: %v", err)
		} else if answer != nil {
			evidenceNote = answer.Text
		}
	}

	raw, err := r.llm.GenerateWithJSON(ctx, r.buildPrompt(analysis, snap, evidenceNote))
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeOf(err), "reflector call failed")
	}

	payload, err := decodeReflectorPayload(raw)
	if err != nil {
		return nil, err
	}

	report := &ReflectionReport{Flaws: payload.Flaws}

	for _, fb := range payload.BulletFeedback {
		verdict := Verdict(strings.ToLower(strings.TrimSpace(fb.Verdict)))
		if !validVerdict(verdict) {
			logger.Warn(ctx, "dropping bullet feedback with unknown verdict %q", fb.Verdict)
			continue
		}
		if snap == nil || snap.Find(fb.BulletID) == nil {
			logger.Warn(ctx, "dropping feedback for unknown bullet %q", fb.BulletID)
			continue
		}
		report.BulletFeedback = append(report.BulletFeedback, BulletFeedback{
			BulletID: fb.BulletID,
			Verdict:  verdict,
			Note:     fb.Note,
		})
	}

	for _, ins := range payload.GeneralizableInsights {
		section := playbook.Section(strings.ToLower(strings.TrimSpace(ins.Section)))
		if !playbook.ValidSection(section) {
			logger.Warn(ctx, "dropping insight with unknown section %q", ins.Section)
			continue
		}
		if strings.TrimSpace(ins.Text) == "" {
			continue
		}
		report.GeneralizableInsights = append(report.GeneralizableInsights, Insight{
			Section: section,
			Text:    strings.TrimSpace(ins.Text),
		})
	}

	return report, nil
}

func (r *Reflector) buildPrompt(analysis *AnalysisResult, snap *playbook.Snapshot, evidenceNote string) string {
	encoded, _ := json.Marshal(analysis)

	var sb strings.Builder
	sb.WriteString("You are a quality reviewer for food-product analyses. ")
	sb.WriteString("Judge each score claim against its stated evidence. ")
	sb.WriteString("Flag unsupported or internally inconsistent claims.\n\n")
	fmt.Fprintf(&sb, "Analysis under review:\n%s\n\n", encoded)

	if len(analysis.CitedBullets) > 0 && snap != nil {
		sb.WriteString("Playbook bullets the analysis cited:\n")
		for _, id := range analysis.CitedBullets {
			if b := snap.Find(id); b != nil {
				fmt.Fprintf(&sb, "[%s] %s\n", b.ID, b.Text)
			}
		}
		sb.WriteString("Label each cited bullet as helpful, misused, or irrelevant.\n\n")
	}

	if evidenceNote != "" {
		fmt.Fprintf(&sb, "Independent market evidence:\n%s\n\n", evidenceNote)
	}

	sb.WriteString(`Respond with a single JSON object:
{
  "flaws": ["..."],
  "bullet_feedback": [{"bullet_id": "...", "verdict": "helpful" | "misused" | "irrelevant", "note": "..."}],
  "generalizable_insights": [{"section": "scoring_rules" | "heuristics" | "pitfalls" | "packaging_patterns" | "gtm_rules", "text": "..."}]
}
Insights must be reusable rules. Never mention a specific product, brand, or SKU in an insight.`)
	return sb.String()
}

func decodeReflectorPayload(raw map[string]interface{}) (*reflectorPayload, error) {
	encoded, err := json.Marshal(raw)
	if err != nil {
		return nil, errors.Wrap(err, errors.InvalidResponse, "reflector response not encodable")
	}
	var payload reflectorPayload
	if err := json.Unmarshal(encoded, &payload); err != nil {
		return nil, errors.Wrap(err, errors.InvalidResponse, "reflector response does not match schema")
	}
	return &payload, nil
}
