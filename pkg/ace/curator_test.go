package ace

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shelfsense/shelfsense/pkg/playbook"
)

func newCuratorFixture(t *testing.T, bannedTokens ...string) (*Curator, *playbook.Store) {
	t.Helper()
	store, err := playbook.Open(filepath.Join(t.TempDir(), "playbook.md"))
	require.NoError(t, err)
	return NewCurator(store, bannedTokens...), store
}

func TestCuratorAddsInsights(t *testing.T) {
	curator, store := newCuratorFixture(t)

	report := &ReflectionReport{
		GeneralizableInsights: []Insight{
			{Section: playbook.SectionPitfalls, Text: "do not credit fiber below three grams per serving"},
			{Section: playbook.SectionGTMRules, Text: "premium positioning needs a certification story"},
		},
	}

	summary, err := curator.Curate(context.Background(), report)
	require.NoError(t, err)
	assert.Len(t, summary.Added, 2)
	assert.Equal(t, 0, summary.Skipped)

	assert.Len(t, store.Bullets(playbook.SectionPitfalls), 1)
	assert.Len(t, store.Bullets(playbook.SectionGTMRules), 1)
}

func TestCuratorSkipsDuplicatesAndPolicyViolations(t *testing.T) {
	curator, store := newCuratorFixture(t, "novabar")

	_, added, err := store.Add(context.Background(), playbook.SectionHeuristics,
		"premium positioning needs a certification story")
	require.NoError(t, err)
	require.True(t, added)

	report := &ReflectionReport{
		GeneralizableInsights: []Insight{
			// Normalized duplicate of the existing bullet.
			{Section: playbook.SectionHeuristics, Text: "Premium  positioning needs a certification story."},
			// Mentions the product brand, rejected by policy.
			{Section: playbook.SectionHeuristics, Text: "Novabar shoppers respond to protein claims"},
		},
	}

	summary, err := curator.Curate(context.Background(), report)
	require.NoError(t, err)
	assert.Empty(t, summary.Added)
	assert.Equal(t, 2, summary.Skipped)
	assert.Len(t, store.Bullets(playbook.SectionHeuristics), 1)
}

func TestCuratorRecordsHelpfulUsage(t *testing.T) {
	curator, store := newCuratorFixture(t)

	bullet, added, err := store.Add(context.Background(), playbook.SectionHeuristics,
		"recyclable packaging strengthens premium positioning")
	require.NoError(t, err)
	require.True(t, added)

	report := &ReflectionReport{
		BulletFeedback: []BulletFeedback{
			{BulletID: bullet.ID, Verdict: VerdictHelpful},
		},
	}
	_, err = curator.Curate(context.Background(), report)
	require.NoError(t, err)

	got := store.Snapshot().Find(bullet.ID)
	require.NotNil(t, got)
	assert.Equal(t, 1, got.UsageCount)
}

func TestCuratorIgnoresNonHelpfulVerdicts(t *testing.T) {
	curator, store := newCuratorFixture(t)

	bullet, _, err := store.Add(context.Background(), playbook.SectionHeuristics,
		"recyclable packaging strengthens premium positioning")
	require.NoError(t, err)

	report := &ReflectionReport{
		BulletFeedback: []BulletFeedback{
			{BulletID: bullet.ID, Verdict: VerdictMisused},
			{BulletID: bullet.ID, Verdict: VerdictIrrelevant},
		},
	}
	_, err = curator.Curate(context.Background(), report)
	require.NoError(t, err)

	got := store.Snapshot().Find(bullet.ID)
	require.NotNil(t, got)
	assert.Equal(t, 0, got.UsageCount)
}

func TestCuratorNilReport(t *testing.T) {
	curator, _ := newCuratorFixture(t)
	_, err := curator.Curate(context.Background(), nil)
	assert.Error(t, err)
}
