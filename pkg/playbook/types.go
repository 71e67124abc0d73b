// Package playbook implements the shared, append-only knowledge base of
// generalized analysis rules that the ACE loop reads and evolves.
package playbook

import (
	"fmt"
	"time"
)

// Section partitions the playbook by the kind of rule a bullet expresses.
type Section string

const (
	SectionScoringRules      Section = "scoring_rules"
	SectionHeuristics        Section = "heuristics"
	SectionPitfalls          Section = "pitfalls"
	SectionPackagingPatterns Section = "packaging_patterns"
	SectionGTMRules          Section = "gtm_rules"
)

// Sections lists all playbook sections in their canonical order.
func Sections() []Section {
	return []Section{
		SectionScoringRules,
		SectionHeuristics,
		SectionPitfalls,
		SectionPackagingPatterns,
		SectionGTMRules,
	}
}

// ValidSection reports whether s names a known playbook section.
func ValidSection(s Section) bool {
	for _, known := range Sections() {
		if s == known {
			return true
		}
	}
	return false
}

// Bullet is one generalizable rule. Bullets are never mutated after creation;
// the store only appends them or bumps their usage counter.
type Bullet struct {
	ID         string    `json:"id"`
	Section    Section   `json:"section"`
	Text       string    `json:"text"`
	CreatedAt  time.Time `json:"created_at"`
	UsageCount int       `json:"usage_count"`
}

// String formats the bullet for file storage.
func (b Bullet) String() string {
	return fmt.Sprintf("[%s] uses=%d created=%s :: %s",
		b.ID, b.UsageCount, b.CreatedAt.UTC().Format(time.RFC3339), b.Text)
}
