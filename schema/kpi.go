package schema

import (
	"fmt"
	"maps"
	"slices"
)

// Unit is the unit of measure of a KPI value.
type Unit string

// Units used by the built-in metrics.
const (
	UnitPaths   Unit = "paths"
	UnitPoints  Unit = "points"
	UnitCommits Unit = "commits"
	UnitLines   Unit = "lines"
	UnitRatio   Unit = "ratio"
	UnitAuthors Unit = "authors"
	UnitScore   Unit = "score"
	UnitCount   Unit = "count"
)

// KPISource identifies the calculator that owns a KPI key.
type KPISource string

// All KPI sources.
const (
	SourceStructure KPISource = "structure"
	SourceHistory   KPISource = "history"
	SourceHotspot   KPISource = "hotspot"
	SourceAggregate KPISource = "aggregate"
)

// Built-in metric names.
const (
	MetricCyclomatic   = "cyclomatic"
	MetricCognitive    = "cognitive"
	MetricChurn        = "churn"
	MetricLinesChanged = "lines_changed"
	MetricOwnership    = "ownership"
	MetricSharedOwners = "shared_owners"
	MetricHotspot      = "hotspot"
	MetricFunctions    = "functions"
)

// MetricUnits maps each built-in metric to its unit.
var MetricUnits = map[string]Unit{
	MetricCyclomatic:   UnitPaths,
	MetricCognitive:    UnitPoints,
	MetricChurn:        UnitCommits,
	MetricLinesChanged: UnitLines,
	MetricOwnership:    UnitRatio,
	MetricSharedOwners: UnitAuthors,
	MetricHotspot:      UnitScore,
	MetricFunctions:    UnitCount,
}

// KPIDetail is the closed set of structured payloads a KPI can carry.
type KPIDetail interface {
	kpiDetail()
}

// ChurnDetail breaks churn down into commits and line counts.
type ChurnDetail struct {
	Commits int `json:"commits"`
	Added   int `json:"added"`
	Removed int `json:"removed"`
}

// OwnershipDetail has the per-author blame fractions of a file.
type OwnershipDetail struct {
	ByAuthor         map[string]float64 `json:"by_author"`
	DominantOwner    string             `json:"dominant_owner"`
	SharedOwnerCount int                `json:"shared_owner_count"`
	OthersShare      float64            `json:"others_share"`
}

// HotspotDetail carries the risk tier of a hotspot score.
type HotspotDetail struct {
	Tier RiskTier `json:"tier"`
}

// StructureDetail has construct counts of a structural (non-procedural) document.
type StructureDetail struct {
	Constructs map[StructuralConstruct]int `json:"constructs"`
	MaxDepth   int                         `json:"max_depth"`
}

func (*ChurnDetail) kpiDetail()     {}
func (*OwnershipDetail) kpiDetail() {}
func (*HotspotDetail) kpiDetail()   {}
func (*StructureDetail) kpiDetail() {}

// KPI is a single named metric value attached to a node.
type KPI struct {
	Name   string    `json:"name"`
	Unit   Unit      `json:"unit"`
	Value  float64   `json:"value"`
	Source KPISource `json:"source"`
	Detail KPIDetail `json:"detail,omitempty"`
}

// NewKPI builds a KPI for a built-in metric, looking up its unit.
func NewKPI(name string, value float64, source KPISource) KPI {
	return KPI{Name: name, Unit: MetricUnits[name], Value: value, Source: source}
}

// KPIMap maps metric names to KPI values.
type KPIMap map[string]KPI

// Get returns the KPI with the given name.
func (m KPIMap) Get(name string) (KPI, bool) {
	k, ok := m[name]
	return k, ok
}

// Value returns a pointer to the KPI value, or nil when the metric is absent.
func (m KPIMap) Value(name string) *float64 {
	k, ok := m[name]
	if !ok {
		return nil
	}
	v := k.Value
	return &v
}

// Put stores a KPI. Overwriting a key owned by a different source is refused.
func (m KPIMap) Put(k KPI) error {
	if existing, ok := m[k.Name]; ok && existing.Source != k.Source {
		return fmt.Errorf("%w: %s is owned by %s, not %s", ErrKPIOwnership, k.Name, existing.Source, k.Source)
	}
	m[k.Name] = k
	return nil
}

// Names returns the metric names in sorted order.
func (m KPIMap) Names() []string {
	return slices.Sorted(maps.Keys(m))
}

// Clone returns a shallow copy of the map.
func (m KPIMap) Clone() KPIMap {
	out := make(KPIMap, len(m))
	maps.Copy(out, m)
	return out
}
