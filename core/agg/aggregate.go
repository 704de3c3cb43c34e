package agg

import (
	"fmt"
	"maps"
	"math"
	"slices"

	"github.com/huangsam/codepulse/schema"
)

// AggregationWarning reports a metric left absent on one directory.
type AggregationWarning struct {
	*schema.AggregationError
}

// Aggregator rolls child KPIs up into directory KPIs.
type Aggregator struct {
	funcs map[string]schema.AggregationFunc
}

// NewAggregator creates an aggregator. Entries in overrides replace the
// default function of their metric.
func NewAggregator(overrides map[string]schema.AggregationFunc) *Aggregator {
	funcs := maps.Clone(schema.DefaultAggregations)
	maps.Copy(funcs, overrides)
	return &Aggregator{funcs: funcs}
}

// FuncFor returns the aggregation function of a metric; unknown metrics use mean.
func (a *Aggregator) FuncFor(metric string) schema.AggregationFunc {
	if fn, ok := a.funcs[metric]; ok {
		return fn
	}
	return schema.AggMean
}

// Aggregate recomputes the KPIs of dir and all its descendants, children first.
// The directory maps are rebuilt from scratch, so running it again over
// unchanged children gives the same result.
func (a *Aggregator) Aggregate(dir *schema.ScanDir) []AggregationWarning {
	var warnings []AggregationWarning
	for _, sub := range dir.Dirs {
		warnings = append(warnings, a.Aggregate(sub)...)
	}

	byMetric := make(map[string][]schema.KPI)
	for _, sub := range dir.Dirs {
		for _, name := range sub.KPIs.Names() {
			byMetric[name] = append(byMetric[name], sub.KPIs[name])
		}
	}
	for _, f := range dir.Files {
		kpis := f.Snapshot()
		for _, name := range kpis.Names() {
			byMetric[name] = append(byMetric[name], kpis[name])
		}
	}

	dir.KPIs = schema.KPIMap{}
	dir.Degraded = nil
	for _, metric := range slices.Sorted(maps.Keys(byMetric)) {
		kpi, err := a.combine(dir.Path, metric, byMetric[metric])
		if err != nil {
			if dir.Degraded == nil {
				dir.Degraded = make(map[string]string)
			}
			dir.Degraded[metric] = err.Reason
			warnings = append(warnings, AggregationWarning{err})
			continue
		}
		dir.KPIs[metric] = kpi
	}
	return warnings
}

// combine applies the metric's function to the child values.
func (a *Aggregator) combine(dirPath, metric string, values []schema.KPI) (schema.KPI, *schema.AggregationError) {
	fail := func(format string, args ...any) *schema.AggregationError {
		return &schema.AggregationError{Dir: dirPath, Metric: metric, Reason: fmt.Sprintf(format, args...)}
	}

	unit := values[0].Unit
	for _, v := range values {
		if v.Unit != unit {
			return schema.KPI{}, fail("mixed units %q and %q", unit, v.Unit)
		}
		if math.IsNaN(v.Value) || math.IsInf(v.Value, 0) {
			return schema.KPI{}, fail("non-finite value %v", v.Value)
		}
	}

	fn := a.FuncFor(metric)
	out := schema.KPI{Name: metric, Unit: unit, Source: schema.SourceAggregate}
	switch fn {
	case schema.AggSum, schema.AggMean:
		for _, v := range values {
			out.Value += v.Value
		}
		if fn == schema.AggMean {
			out.Value /= float64(len(values))
		}
		out.Detail = mergeDetails(fn, values)
	case schema.AggMax, schema.AggMin:
		pick := 0
		for i, v := range values {
			if (fn == schema.AggMax && v.Value > values[pick].Value) ||
				(fn == schema.AggMin && v.Value < values[pick].Value) {
				pick = i
			}
		}
		out.Value = values[pick].Value
		out.Detail = values[pick].Detail
	default:
		return schema.KPI{}, fail("unknown aggregation function %q", fn)
	}
	return out, nil
}

// mergeDetails combines additive details. Details that describe a single node
// (ownership shares, a hotspot tier) do not survive a sum or mean.
func mergeDetails(fn schema.AggregationFunc, values []schema.KPI) schema.KPIDetail {
	var first schema.KPIDetail
	for _, v := range values {
		if v.Detail != nil {
			first = v.Detail
			break
		}
	}
	switch first.(type) {
	case *schema.ChurnDetail:
		if fn != schema.AggSum {
			return nil
		}
		merged := &schema.ChurnDetail{}
		for _, v := range values {
			if d, ok := v.Detail.(*schema.ChurnDetail); ok {
				merged.Commits += d.Commits
				merged.Added += d.Added
				merged.Removed += d.Removed
			}
		}
		return merged
	case *schema.StructureDetail:
		merged := &schema.StructureDetail{Constructs: map[schema.StructuralConstruct]int{}}
		for _, v := range values {
			if d, ok := v.Detail.(*schema.StructureDetail); ok {
				for c, n := range d.Constructs {
					merged.Constructs[c] += n
				}
				merged.MaxDepth = max(merged.MaxDepth, d.MaxDepth)
			}
		}
		return merged
	case *schema.OwnershipDetail, *schema.HotspotDetail, nil:
		return nil
	default:
		return nil
	}
}
