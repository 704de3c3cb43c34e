package agg

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"

	"github.com/huangsam/codepulse/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fileWith(t *testing.T, path string, kpis ...schema.KPI) *schema.File {
	t.Helper()
	f := schema.NewFile(path, schema.Python)
	for _, k := range kpis {
		require.NoError(t, f.SetKPI(k))
	}
	return f
}

func structure(name string, v float64) schema.KPI {
	return schema.NewKPI(name, v, schema.SourceStructure)
}

func history(name string, v float64) schema.KPI {
	return schema.NewKPI(name, v, schema.SourceHistory)
}

func TestAddFile(t *testing.T) {
	repo := schema.NewRepoInfo("demo", "/demo")
	b := NewHierarchyBuilder()

	f, added := b.AddFile(repo, "pkg/sub", schema.NewFile("pkg/sub/z.py", schema.Python))
	assert.True(t, added)
	assert.Equal(t, "z.py", f.Name)
	_, added = b.AddFile(repo, "pkg/sub", schema.NewFile("pkg/sub/a.py", schema.Python))
	assert.True(t, added)
	_, added = b.AddFile(repo, "", schema.NewFile("main.py", schema.Python))
	assert.True(t, added)
	_, added = b.AddFile(repo, "lib/", schema.NewFile("lib/x.py", schema.Python))
	assert.True(t, added)

	again, added := b.AddFile(repo, "pkg/sub", schema.NewFile("pkg/sub/z.py", schema.Go))
	assert.False(t, added)
	assert.Same(t, f, again)

	require.Len(t, repo.Tree.Dirs, 2)
	assert.Equal(t, "lib", repo.Tree.Dirs[0].Name)
	assert.Equal(t, "pkg", repo.Tree.Dirs[1].Name)
	sub, ok := repo.Tree.Dirs[1].Dir("sub")
	require.True(t, ok)
	assert.Equal(t, "pkg/sub", sub.Path)
	require.Len(t, sub.Files, 2)
	assert.Equal(t, "a.py", sub.Files[0].Name)
	assert.Equal(t, "z.py", sub.Files[1].Name)
	assert.Len(t, repo.Tree.Files, 1)
}

func TestAddFileConcurrent(t *testing.T) {
	repo := schema.NewRepoInfo("demo", "/demo")
	b := NewHierarchyBuilder()

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Go(func() {
			dir := fmt.Sprintf("d%d", i%5)
			b.AddFile(repo, dir, schema.NewFile(fmt.Sprintf("%s/f%02d.py", dir, i), schema.Python))
			b.AddFile(repo, dir, schema.NewFile(fmt.Sprintf("%s/shared.py", dir), schema.Python))
		})
	}
	wg.Wait()

	require.Len(t, repo.Tree.Dirs, 5)
	for _, d := range repo.Tree.Dirs {
		assert.Len(t, d.Files, 11)
		assert.IsIncreasing(t, names(d.Files))
	}
}

func names(files []*schema.File) []string {
	out := make([]string, len(files))
	for i, f := range files {
		out[i] = f.Name
	}
	return out
}

func buildTree(t *testing.T) *schema.RepoInfo {
	t.Helper()
	repo := schema.NewRepoInfo("demo", "/demo")
	b := NewHierarchyBuilder()

	churnA := history(schema.MetricChurn, 5)
	churnA.Detail = &schema.ChurnDetail{Commits: 5, Added: 40, Removed: 10}
	b.AddFile(repo, "src", fileWith(t, "src/a.py",
		structure(schema.MetricCyclomatic, 4),
		structure(schema.MetricCognitive, 6),
		churnA,
		schema.NewKPI(schema.MetricHotspot, 20, schema.SourceHotspot),
	))

	// No history for this file
	b.AddFile(repo, "src", fileWith(t, "src/b.py",
		structure(schema.MetricCyclomatic, 2),
		structure(schema.MetricCognitive, 0),
	))

	churnC := history(schema.MetricChurn, 3)
	churnC.Detail = &schema.ChurnDetail{Commits: 3, Added: 1, Removed: 2}
	b.AddFile(repo, "src/deep", fileWith(t, "src/deep/c.py",
		structure(schema.MetricCyclomatic, 9),
		churnC,
		schema.NewKPI(schema.MetricHotspot, 27, schema.SourceHotspot),
	))

	// Unparsed file, history only
	b.AddFile(repo, "", fileWith(t, "README.md", history(schema.MetricChurn, 1)))
	return repo
}

func TestAggregateDefaults(t *testing.T) {
	repo := buildTree(t)
	warnings := NewAggregator(nil).Aggregate(repo.Tree)
	assert.Empty(t, warnings)

	deep, _ := repo.Tree.Dirs[0].Dir("deep")
	assert.Equal(t, 9.0, *deep.KPIs.Value(schema.MetricCyclomatic))

	src := repo.Tree.Dirs[0]
	// mean over deep (9), a.py (4), b.py (2)
	assert.InDelta(t, 5.0, *src.KPIs.Value(schema.MetricCyclomatic), 1e-9)
	assert.InDelta(t, 3.0, *src.KPIs.Value(schema.MetricCognitive), 1e-9)
	assert.Equal(t, 8.0, *src.KPIs.Value(schema.MetricChurn))
	assert.Equal(t, 27.0, *src.KPIs.Value(schema.MetricHotspot))

	churn, ok := src.KPIs.Get(schema.MetricChurn)
	require.True(t, ok)
	assert.Equal(t, schema.SourceAggregate, churn.Source)
	assert.Equal(t, schema.UnitCommits, churn.Unit)
	assert.Equal(t, &schema.ChurnDetail{Commits: 8, Added: 41, Removed: 12}, churn.Detail)

	root := repo.Tree
	assert.Equal(t, 9.0, *root.KPIs.Value(schema.MetricChurn))
	assert.InDelta(t, 5.0, *root.KPIs.Value(schema.MetricCyclomatic), 1e-9)
	assert.Nil(t, root.KPIs.Value(schema.MetricOwnership))
}

func TestAggregateIdempotent(t *testing.T) {
	repo := buildTree(t)
	a := NewAggregator(nil)
	a.Aggregate(repo.Tree)
	first := snapshot(repo.Tree)
	a.Aggregate(repo.Tree)
	assert.Equal(t, first, snapshot(repo.Tree))
}

func snapshot(dir *schema.ScanDir) map[string]schema.KPIMap {
	out := map[string]schema.KPIMap{dir.Path: dir.KPIs.Clone()}
	for _, sub := range dir.Dirs {
		for k, v := range snapshot(sub) {
			out[k] = v
		}
	}
	return out
}

func TestAggregateOverrides(t *testing.T) {
	repo := buildTree(t)
	NewAggregator(map[string]schema.AggregationFunc{
		schema.MetricCyclomatic: schema.AggMax,
		schema.MetricChurn:      schema.AggMin,
	}).Aggregate(repo.Tree)

	src := repo.Tree.Dirs[0]
	assert.Equal(t, 9.0, *src.KPIs.Value(schema.MetricCyclomatic))
	assert.Equal(t, 3.0, *src.KPIs.Value(schema.MetricChurn))
}

func TestAggregateUnknownMetricUsesMean(t *testing.T) {
	repo := schema.NewRepoInfo("demo", "/demo")
	b := NewHierarchyBuilder()
	b.AddFile(repo, "", fileWith(t, "a.py", schema.KPI{Name: "custom", Unit: "u", Value: 2, Source: schema.SourceStructure}))
	b.AddFile(repo, "", fileWith(t, "b.py", schema.KPI{Name: "custom", Unit: "u", Value: 4, Source: schema.SourceStructure}))

	a := NewAggregator(nil)
	assert.Equal(t, schema.AggMean, a.FuncFor("custom"))
	a.Aggregate(repo.Tree)
	assert.Equal(t, 3.0, *repo.Tree.KPIs.Value("custom"))
}

func TestAggregateErrors(t *testing.T) {
	repo := schema.NewRepoInfo("demo", "/demo")
	b := NewHierarchyBuilder()
	b.AddFile(repo, "x", fileWith(t, "x/a.py",
		schema.KPI{Name: "size", Unit: "lines", Value: 10, Source: schema.SourceStructure},
		structure(schema.MetricCyclomatic, 3),
	))
	b.AddFile(repo, "x", fileWith(t, "x/b.py",
		schema.KPI{Name: "size", Unit: "bytes", Value: 100, Source: schema.SourceStructure},
		structure(schema.MetricCyclomatic, math.NaN()),
	))
	b.AddFile(repo, "y", fileWith(t, "y/c.py", structure(schema.MetricCyclomatic, 5)))

	warnings := NewAggregator(nil).Aggregate(repo.Tree)
	require.Len(t, warnings, 2)
	for _, w := range warnings {
		assert.True(t, errors.Is(w.AggregationError, schema.ErrAggregation))
		assert.Equal(t, "x", w.Dir)
	}

	x, _ := repo.Tree.Dir("x")
	assert.Nil(t, x.KPIs.Value("size"))
	assert.Nil(t, x.KPIs.Value(schema.MetricCyclomatic))
	assert.Contains(t, x.Degraded, "size")
	assert.Contains(t, x.Degraded, schema.MetricCyclomatic)

	// Siblings and parents still aggregate from what is available
	y, _ := repo.Tree.Dir("y")
	assert.Equal(t, 5.0, *y.KPIs.Value(schema.MetricCyclomatic))
	assert.Equal(t, 5.0, *repo.Tree.KPIs.Value(schema.MetricCyclomatic))
	assert.Empty(t, repo.Tree.Degraded)
}

func TestAggregateStructureDetail(t *testing.T) {
	repo := schema.NewRepoInfo("demo", "/demo")
	b := NewHierarchyBuilder()
	k1 := structure(schema.MetricCyclomatic, 5)
	k1.Detail = &schema.StructureDetail{Constructs: map[schema.StructuralConstruct]int{schema.ConstructKey: 3}, MaxDepth: 2}
	k2 := structure(schema.MetricCyclomatic, 3)
	k2.Detail = &schema.StructureDetail{Constructs: map[schema.StructuralConstruct]int{schema.ConstructKey: 1, schema.ConstructArray: 1}, MaxDepth: 4}
	b.AddFile(repo, "", fileWith(t, "a.json", k1))
	b.AddFile(repo, "", fileWith(t, "b.json", k2))
	b.AddFile(repo, "", fileWith(t, "c.py", structure(schema.MetricCyclomatic, 1)))

	NewAggregator(nil).Aggregate(repo.Tree)
	k, ok := repo.Tree.KPIs.Get(schema.MetricCyclomatic)
	require.True(t, ok)
	assert.InDelta(t, 3.0, k.Value, 1e-9)
	assert.Equal(t, &schema.StructureDetail{
		Constructs: map[schema.StructuralConstruct]int{schema.ConstructKey: 4, schema.ConstructArray: 1},
		MaxDepth:   4,
	}, k.Detail)
}
