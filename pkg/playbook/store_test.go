package playbook

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "playbook.md"))
	require.NoError(t, err)
	return store
}

func TestAddAndRetrieve(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	bullet, added, err := store.Add(ctx, SectionHeuristics, "Protein claims above 15g/100g justify a sports-nutrition angle")
	require.NoError(t, err)
	require.True(t, added)
	assert.Equal(t, "heuristics-00001", bullet.ID)

	bullets := store.Bullets(SectionHeuristics)
	require.Len(t, bullets, 1)
	assert.Equal(t, bullet.Text, bullets[0].Text)
}

func TestDedupWithinSection(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, added, err := store.Add(ctx, SectionPitfalls, "Do not trust front-of-pack claims without ingredient support")
	require.NoError(t, err)
	require.True(t, added)

	// Normalized-equal text in the same section is a no-op
	_, added, err = store.Add(ctx, SectionPitfalls, "  do NOT trust front-of-pack   claims without ingredient support. ")
	require.NoError(t, err)
	assert.False(t, added)
	assert.Len(t, store.Bullets(SectionPitfalls), 1)

	// Same text in a different section succeeds
	_, added, err = store.Add(ctx, SectionHeuristics, "Do not trust front-of-pack claims without ingredient support")
	require.NoError(t, err)
	assert.True(t, added)
}

func TestPolicyRejectsProductSpecificText(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		text   string
		banned []string
	}{
		{"trademark", "NutriCrunch™ scores well on shelf appeal", nil},
		{"barcode", "Product 40123456789 underperforms in organic segments", nil},
		{"price", "Price at $4.99 for premium positioning", nil},
		{"banned token", "ChocoBar packaging drives attractiveness", []string{"ChocoBar"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, added, err := store.Add(ctx, SectionGTMRules, tt.text, tt.banned...)
			require.NoError(t, err)
			assert.False(t, added, "policy violation should be dropped, not stored")
		})
	}
	assert.Empty(t, store.Bullets(SectionGTMRules))
}

func TestInsertionOrderPreserved(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	texts := []string{
		"First rule about packaging color",
		"Second rule about label hierarchy",
		"Third rule about claim density",
	}
	for _, text := range texts {
		_, added, err := store.Add(ctx, SectionPackagingPatterns, text)
		require.NoError(t, err)
		require.True(t, added)
	}

	bullets := store.Bullets(SectionPackagingPatterns)
	require.Len(t, bullets, 3)
	for i, b := range bullets {
		assert.Equal(t, texts[i], b.Text)
	}
}

func TestPersistenceAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "playbook.md")
	ctx := context.Background()

	store, err := Open(path)
	require.NoError(t, err)
	_, added, err := store.Add(ctx, SectionScoringRules, "Weight fiber claims by actual fiber grams")
	require.NoError(t, err)
	require.True(t, added)
	require.NoError(t, store.RecordUsage([]string{"scoring_rules-00001"}))

	reopened, err := Open(path)
	require.NoError(t, err)
	bullets := reopened.Bullets(SectionScoringRules)
	require.Len(t, bullets, 1)
	assert.Equal(t, "scoring_rules-00001", bullets[0].ID)
	assert.Equal(t, 1, bullets[0].UsageCount)

	// Sequence continues after reopen
	b, added, err := reopened.Add(ctx, SectionScoringRules, "Discount unverifiable origin claims")
	require.NoError(t, err)
	require.True(t, added)
	assert.Equal(t, "scoring_rules-00002", b.ID)
}

func TestSnapshotIsImmutableView(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, _, err := store.Add(ctx, SectionHeuristics, "Compare against category median sugar content")
	require.NoError(t, err)

	snap := store.Snapshot()
	assert.Equal(t, 1, snap.Len())

	_, _, err = store.Add(ctx, SectionHeuristics, "A rule added after the snapshot was taken")
	require.NoError(t, err)

	assert.Equal(t, 1, snap.Len(), "snapshot must not see later writes")
	assert.Equal(t, 2, len(store.Bullets(SectionHeuristics)))

	found := snap.Find("heuristics-00001")
	require.NotNil(t, found)
	assert.Nil(t, snap.Find("heuristics-00002"))
}

func TestSnapshotFormatForInjection(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, _, err := store.Add(ctx, SectionHeuristics, "Lead with certifications in crowded categories")
	require.NoError(t, err)

	text := store.Snapshot().FormatForInjection()
	assert.Contains(t, text, "[heuristics-00001]")
	assert.Contains(t, text, "Lead with certifications")

	empty := (&Snapshot{bullets: map[Section][]Bullet{}}).FormatForInjection()
	assert.Empty(t, empty)
}

func TestConcurrentReadsAndWrites(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func(n int) {
			defer wg.Done()
			_, _, err := store.Add(ctx, SectionHeuristics, "Concurrent rule variant number "+string(rune('a'+n)))
			assert.NoError(t, err)
		}(i)
		go func() {
			defer wg.Done()
			_ = store.Snapshot().All()
		}()
	}
	wg.Wait()

	assert.Len(t, store.Bullets(SectionHeuristics), 8)
}

func TestUnknownSectionRejected(t *testing.T) {
	store := newTestStore(t)
	_, _, err := store.Add(context.Background(), Section("made_up"), "some text")
	assert.Error(t, err)
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Hello World", "hello world"},
		{"  spaces  ", "spaces"},
		{"multiple   spaces", "multiple spaces"},
		{"Trailing punctuation.", "trailing punctuation"},
		{"\ttabs\nand\nnewlines", "tabs and newlines"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, Normalize(tt.input))
		})
	}
}
