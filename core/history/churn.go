package history

import (
	"context"
	"time"

	"github.com/huangsam/codepulse/internal/contract"
	"github.com/huangsam/codepulse/schema"
)

// ChurnKPI is the change activity of one path inside a window.
type ChurnKPI struct {
	Status       schema.HistoryStatus
	Commits      int
	Added        int
	Removed      int
	LinesChanged int
}

// KPIs converts the churn into its two file-level metrics.
func (k ChurnKPI) KPIs() []schema.KPI {
	churn := schema.NewKPI(schema.MetricChurn, float64(k.Commits), schema.SourceHistory)
	churn.Detail = &schema.ChurnDetail{Commits: k.Commits, Added: k.Added, Removed: k.Removed}
	lines := schema.NewKPI(schema.MetricLinesChanged, float64(k.LinesChanged), schema.SourceHistory)
	return []schema.KPI{churn, lines}
}

// ChurnCalculator counts commits and changed lines per path from the cache.
type ChurnCalculator struct {
	cache  *Cache
	anchor time.Time
}

// NewChurnCalculator measures windows that end at anchor.
func NewChurnCalculator(cache *Cache, anchor time.Time) *ChurnCalculator {
	return &ChurnCalculator{cache: cache, anchor: anchor}
}

// WindowStart returns the cache-aligned start of a window of the given days.
func (c *ChurnCalculator) WindowStart(windowDays int) time.Time {
	return c.anchor.AddDate(0, 0, -windowDays).Truncate(contract.CacheGranularity)
}

// Compute returns the churn of path over the last windowDays days.
// The boolean is false when history for the path is unavailable, and
// ChurnKPI.Status says why. Errors only come from a corrupt persistent cache.
func (c *ChurnCalculator) Compute(ctx context.Context, path string, windowDays int) (ChurnKPI, bool, error) {
	since := c.WindowStart(windowDays)
	log, err := c.cache.GetLog(ctx, path, since)
	if err != nil {
		return ChurnKPI{}, false, err
	}
	if !log.Status.Available() {
		return ChurnKPI{Status: log.Status}, false, nil
	}

	kpi := ChurnKPI{Status: log.Status}
	seen := make(map[string]bool, len(log.Commits))
	for _, commit := range log.Commits {
		if !seen[commit.Hash] {
			seen[commit.Hash] = true
			kpi.Commits++
		}
	}

	numstat, err := c.cache.GetNumstat(ctx, path, since)
	if err != nil {
		return ChurnKPI{}, false, err
	}
	kpi.Added, kpi.Removed = numstat.Added, numstat.Removed
	kpi.LinesChanged = numstat.Added + numstat.Removed
	return kpi, true, nil
}
