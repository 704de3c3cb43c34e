package algo

import (
	"cmp"
	"slices"

	"github.com/huangsam/codepulse/schema"
)

// RankedFile is a file paired with its hotspot for ranking.
type RankedFile struct {
	File    *schema.File
	Score   float64
	Tier    schema.RiskTier
	Present bool
}

// RankFiles sorts files by hotspot score in descending order and returns the
// top 'limit' entries. Files without a score sort last, ties by path.
// A non-positive limit returns every file.
func RankFiles(files []*schema.File, limit int) []RankedFile {
	ranked := make([]RankedFile, 0, len(files))
	for _, f := range files {
		r := RankedFile{File: f}
		if k, ok := f.KPI(schema.MetricHotspot); ok {
			r.Score, r.Present = k.Value, true
			if d, ok := k.Detail.(*schema.HotspotDetail); ok {
				r.Tier = d.Tier
			}
		}
		ranked = append(ranked, r)
	}
	slices.SortStableFunc(ranked, func(a, b RankedFile) int {
		if a.Present != b.Present {
			if a.Present {
				return -1
			}
			return 1
		}
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.File.Path, b.File.Path)
	})
	if limit > 0 && len(ranked) > limit {
		return ranked[:limit]
	}
	return ranked
}
