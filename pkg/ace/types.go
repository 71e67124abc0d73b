// Package ace implements the Generator, Reflector, and Curator loop that
// produces product analyses and evolves the playbook from what it learns.
package ace

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shelfsense/shelfsense/pkg/playbook"
	"github.com/shelfsense/shelfsense/pkg/scoring"
)

// SWOT is the strengths/weaknesses/opportunities/threats assessment.
type SWOT struct {
	Strengths     []string `json:"strengths"`
	Weaknesses    []string `json:"weaknesses"`
	Opportunities []string `json:"opportunities"`
	Threats       []string `json:"threats"`
}

// Proposal is one suggested product or positioning improvement.
type Proposal struct {
	Title     string `json:"title"`
	Rationale string `json:"rationale"`
}

// GTMStrategy is the go-to-market recommendation attached to an analysis.
type GTMStrategy struct {
	TargetSegment string   `json:"target_segment"`
	Channels      []string `json:"channels,omitempty"`
	PricePosition string   `json:"price_position,omitempty"`
	KeyMessages   []string `json:"key_messages,omitempty"`
}

// AnalysisResult is the Generator's output. It is immutable after creation;
// the Reflector reads it but never rewrites its scores.
type AnalysisResult struct {
	Scores       scoring.Scores                  `json:"scores"`
	Breakdown    scoring.Breakdown               `json:"criteria_breakdown"`
	Explanations map[scoring.Dimension]string    `json:"explanations"`
	SWOT         SWOT                            `json:"swot"`
	Proposals    []Proposal                      `json:"proposals,omitempty"`
	GTMStrategy  GTMStrategy                     `json:"gtm_strategy"`
	// CitedBullets lists playbook bullet IDs referenced in the explanations.
	CitedBullets []string `json:"cited_bullets,omitempty"`
}

// Verdict labels how a cited playbook bullet was used in an analysis.
type Verdict string

const (
	VerdictHelpful    Verdict = "helpful"
	VerdictMisused    Verdict = "misused"
	VerdictIrrelevant Verdict = "irrelevant"
)

func validVerdict(v Verdict) bool {
	switch v {
	case VerdictHelpful, VerdictMisused, VerdictIrrelevant:
		return true
	}
	return false
}

// BulletFeedback is the Reflector's judgment of one cited bullet.
type BulletFeedback struct {
	BulletID string  `json:"bullet_id"`
	Verdict  Verdict `json:"verdict"`
	Note     string  `json:"note,omitempty"`
}

// Insight is a candidate playbook addition extracted by the Reflector.
type Insight struct {
	Section playbook.Section `json:"section"`
	Text    string           `json:"text"`
}

// ReflectionReport is the Reflector's critique of one AnalysisResult. It is
// advisory: it feeds the Curator and never changes the Generator's scores.
type ReflectionReport struct {
	Flaws                 []string         `json:"flaws,omitempty"`
	BulletFeedback        []BulletFeedback `json:"bullet_feedback,omitempty"`
	GeneralizableInsights []Insight        `json:"generalizable_insights,omitempty"`
}

// CurationSummary records what the Curator did with one reflection.
type CurationSummary struct {
	Added   []playbook.Bullet `json:"added,omitempty"`
	Skipped int               `json:"skipped"`
}

var bulletCitationRegex = buildCitationRegex()

func buildCitationRegex() *regexp.Regexp {
	names := make([]string, len(playbook.Sections()))
	for i, s := range playbook.Sections() {
		names[i] = regexp.QuoteMeta(string(s))
	}
	return regexp.MustCompile(fmt.Sprintf(`\[((?:%s)-\d{5})\]`, strings.Join(names, "|")))
}

// DetectCitations finds playbook bullet references in text, in first-seen
// order with duplicates removed.
func DetectCitations(text string) []string {
	matches := bulletCitationRegex.FindAllStringSubmatch(text, -1)
	var cited []string
	seen := make(map[string]bool)
	for _, m := range matches {
		if len(m) > 1 && !seen[m[1]] {
			cited = append(cited, m[1])
			seen[m[1]] = true
		}
	}
	return cited
}
