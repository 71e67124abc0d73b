package ace

import (
	"context"

	"github.com/shelfsense/shelfsense/pkg/errors"
	"github.com/shelfsense/shelfsense/pkg/logging"
	"github.com/shelfsense/shelfsense/pkg/playbook"
)

// Curator is the sole writer to the playbook. It turns a reflection's
// insights into bullets, letting the store's policy and dedup checks decide
// what actually lands.
type Curator struct {
	store *playbook.Store

	// bannedTokens extends the product-specific policy check with names
	// from the current request (product name, brand).
	bannedTokens []string
}

// NewCurator creates a curator writing to the given store.
func NewCurator(store *playbook.Store, bannedTokens ...string) *Curator {
	return &Curator{store: store, bannedTokens: bannedTokens}
}

// Curate applies one reflection to the playbook: usage counts for bullets
// judged helpful, new bullets for accepted insights. Rejected insights are
// logged and skipped, never fatal.
func (c *Curator) Curate(ctx context.Context, report *ReflectionReport) (*CurationSummary, error) {
	if report == nil {
		return nil, errors.New(errors.InvalidInput, "nil reflection report")
	}

	logger := logging.GetLogger()
	summary := &CurationSummary{}

	var helpful []string
	for _, fb := range report.BulletFeedback {
		if fb.Verdict == VerdictHelpful {
			helpful = append(helpful, fb.BulletID)
		}
	}
	if len(helpful) > 0 {
		if err := c.store.RecordUsage(helpful); err != nil {
			return nil, err
		}
	}

	for _, insight := range report.GeneralizableInsights {
		bullet, added, err := c.store.Add(ctx, insight.Section, insight.Text, c.bannedTokens...)
		if err != nil {
			return nil, err
		}
		if !added {
			summary.Skipped++
			continue
		}
		logger.Info(ctx, "playbook learned %s: %s", bullet.ID, bullet.Text)
		summary.Added = append(summary.Added, *bullet)
	}

	return summary, nil
}
