// Package algo scores hotspots and ranks files by them.
package algo

import (
	"math"

	"github.com/huangsam/codepulse/internal/contract"
	"github.com/huangsam/codepulse/schema"
)

// Hotspot is a complexity-weighted churn score with its risk tier.
type Hotspot struct {
	Score float64
	Tier  schema.RiskTier
}

// KPI converts the hotspot into its file-level metric.
func (h Hotspot) KPI() schema.KPI {
	k := schema.NewKPI(schema.MetricHotspot, h.Score, schema.SourceHotspot)
	k.Detail = &schema.HotspotDetail{Tier: h.Tier}
	return k
}

// HotspotScorer multiplies complexity by churn and classifies the product.
type HotspotScorer struct {
	thresholds contract.Thresholds
}

// NewHotspotScorer creates a scorer with the given tier thresholds.
func NewHotspotScorer(thresholds contract.Thresholds) *HotspotScorer {
	return &HotspotScorer{thresholds: thresholds}
}

// Score returns complexity × churn. A missing or non-finite operand yields no
// score; it is never treated as zero.
func (s *HotspotScorer) Score(complexity, churn *float64) (Hotspot, bool) {
	if complexity == nil || churn == nil {
		return Hotspot{}, false
	}
	score := *complexity * *churn
	if math.IsNaN(score) || math.IsInf(score, 0) {
		return Hotspot{}, false
	}
	return Hotspot{Score: score, Tier: s.Tier(score)}, true
}

// Tier classifies a score. Each threshold is the inclusive lower bound of its tier.
func (s *HotspotScorer) Tier(score float64) schema.RiskTier {
	switch {
	case score >= s.thresholds.Critical:
		return schema.TierCritical
	case score >= s.thresholds.High:
		return schema.TierHigh
	case score >= s.thresholds.Medium:
		return schema.TierMedium
	default:
		return schema.TierLow
	}
}
