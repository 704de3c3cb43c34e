package schema

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKPIMapPut(t *testing.T) {
	m := KPIMap{}
	require.NoError(t, m.Put(NewKPI(MetricCyclomatic, 3, SourceStructure)))

	// Same source may overwrite its own key.
	require.NoError(t, m.Put(NewKPI(MetricCyclomatic, 4, SourceStructure)))
	assert.Equal(t, 4.0, m[MetricCyclomatic].Value)
	assert.Equal(t, UnitPaths, m[MetricCyclomatic].Unit)

	// A different source is refused.
	err := m.Put(NewKPI(MetricCyclomatic, 9, SourceHistory))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrKPIOwnership))
	assert.Equal(t, 4.0, m[MetricCyclomatic].Value)
}

func TestKPIMapValue(t *testing.T) {
	m := KPIMap{}
	assert.Nil(t, m.Value(MetricChurn))

	require.NoError(t, m.Put(NewKPI(MetricChurn, 5, SourceHistory)))
	v := m.Value(MetricChurn)
	require.NotNil(t, v)
	assert.Equal(t, 5.0, *v)

	require.NoError(t, m.Put(NewKPI(MetricHotspot, 1, SourceHotspot)))
	assert.Equal(t, []string{MetricChurn, MetricHotspot}, m.Names())
}

func TestScanDirSortedInsert(t *testing.T) {
	d := NewScanDir("")
	assert.Equal(t, ".", d.Name)
	for _, name := range []string{"c.go", "a.go", "b.go"} {
		d.InsertFile(NewFile(name, Go))
	}
	for _, name := range []string{"zeta", "alpha"} {
		d.InsertDir(NewScanDir(name))
	}

	var names []string
	for _, f := range d.Files {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{"a.go", "b.go", "c.go"}, names)
	assert.Equal(t, "alpha", d.Dirs[0].Name)

	f, ok := d.File("b.go")
	require.True(t, ok)
	assert.Equal(t, "b.go", f.Path)
	_, ok = d.File("missing.go")
	assert.False(t, ok)
	_, ok = d.Dir("zeta")
	assert.True(t, ok)
}

func TestWalk(t *testing.T) {
	root := NewScanDir("")
	sub := NewScanDir("pkg")
	root.InsertDir(sub)
	f := NewFile("pkg/x.go", Go)
	f.Functions = []Function{{Name: "Run", KPIs: KPIMap{}}}
	sub.InsertFile(f)

	var visited []string
	err := Walk(root, func(kind NodeKind, nodePath string, _ KPIMap) error {
		visited = append(visited, string(kind)+":"+nodePath)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"dir:", "dir:pkg", "file:pkg/x.go", "function:pkg/x.go#Run"}, visited)
	assert.Len(t, AllFiles(root), 1)
}

func TestTypedErrors(t *testing.T) {
	var pe error = &ParseError{Path: "a.py", Reason: "syntax error"}
	assert.True(t, errors.Is(pe, ErrParse))
	assert.Contains(t, pe.Error(), "a.py")

	var ae error = &AggregationError{Dir: "src", Metric: MetricChurn, Reason: "unit mismatch"}
	assert.True(t, errors.Is(ae, ErrAggregation))
	var target *AggregationError
	require.True(t, errors.As(ae, &target))
	assert.Equal(t, MetricChurn, target.Metric)
}

func TestRiskTierRank(t *testing.T) {
	assert.Less(t, TierLow.Rank(), TierMedium.Rank())
	assert.Less(t, TierHigh.Rank(), TierCritical.Rank())
	assert.Equal(t, 0, RiskTier("bogus").Rank())
}
