package history

import (
	"context"

	"github.com/huangsam/codepulse/schema"
)

// OwnershipKPI is the blame distribution of one path at HEAD.
type OwnershipKPI struct {
	Status           schema.HistoryStatus
	ByAuthor         map[string]float64
	DominantOwner    string
	SharedOwnerCount int
	OthersShare      float64
}

// Dominant returns the fraction held by the dominant owner.
func (k OwnershipKPI) Dominant() float64 {
	return k.ByAuthor[k.DominantOwner]
}

// KPIs converts the ownership into its two file-level metrics.
func (k OwnershipKPI) KPIs() []schema.KPI {
	ownership := schema.NewKPI(schema.MetricOwnership, k.Dominant(), schema.SourceHistory)
	ownership.Detail = &schema.OwnershipDetail{
		ByAuthor:         k.ByAuthor,
		DominantOwner:    k.DominantOwner,
		SharedOwnerCount: k.SharedOwnerCount,
		OthersShare:      k.OthersShare,
	}
	shared := schema.NewKPI(schema.MetricSharedOwners, float64(k.SharedOwnerCount), schema.SourceHistory)
	return []schema.KPI{ownership, shared}
}

// OwnershipCalculator derives authorship shares from blame.
type OwnershipCalculator struct {
	cache *Cache
	floor float64
}

// NewOwnershipCalculator counts authors above floor as significant owners.
func NewOwnershipCalculator(cache *Cache, floor float64) *OwnershipCalculator {
	return &OwnershipCalculator{cache: cache, floor: floor}
}

// Compute returns the ownership of path. The boolean is false when history is
// unavailable or no line could be blamed.
func (c *OwnershipCalculator) Compute(ctx context.Context, path string) (OwnershipKPI, bool, error) {
	blame, err := c.cache.GetBlame(ctx, path)
	if err != nil {
		return OwnershipKPI{}, false, err
	}
	if !blame.Status.Available() {
		return OwnershipKPI{Status: blame.Status}, false, nil
	}
	if blame.Total == 0 {
		return OwnershipKPI{Status: blame.Status}, false, nil
	}
	return ownershipFrom(blame, c.floor), true, nil
}

func ownershipFrom(blame BlameResult, floor float64) OwnershipKPI {
	kpi := OwnershipKPI{
		Status:   blame.Status,
		ByAuthor: make(map[string]float64, len(blame.Lines)),
	}
	total := float64(blame.Total)
	for author, lines := range blame.Lines {
		share := float64(lines) / total
		kpi.ByAuthor[author] = share

		// Ties go to the alphabetically first author.
		best := kpi.ByAuthor[kpi.DominantOwner]
		if kpi.DominantOwner == "" || share > best || (share == best && author < kpi.DominantOwner) {
			kpi.DominantOwner = author
		}
		if share > floor {
			kpi.SharedOwnerCount++
		} else {
			kpi.OthersShare += share
		}
	}
	return kpi
}
