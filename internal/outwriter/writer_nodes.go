package outwriter

import (
	"encoding/csv"
	"io"

	"github.com/huangsam/codepulse/schema"
)

// csvMetrics are the metric columns of the node CSV, in order.
var csvMetrics = []string{
	schema.MetricCyclomatic,
	schema.MetricCognitive,
	schema.MetricFunctions,
	schema.MetricChurn,
	schema.MetricLinesChanged,
	schema.MetricOwnership,
	schema.MetricSharedOwners,
	schema.MetricHotspot,
}

// writeNodesCSV writes one row per directory, file and function of the tree.
// Absent metrics are left empty.
func writeNodesCSV(w io.Writer, repo *schema.RepoInfo, fmtFloat func(float64) string) error {
	header := append([]string{"kind", "path"}, csvMetrics...)
	header = append(header, "tier", "degraded")

	degraded := map[string]bool{}
	for _, f := range schema.AllFiles(repo.Tree) {
		if f.Degraded {
			degraded[f.Path] = true
		}
	}

	return writeCSVWithHeader(w, header, func(cw *csv.Writer) error {
		return schema.Walk(repo.Tree, func(kind schema.NodeKind, nodePath string, kpis schema.KPIMap) error {
			row := []string{string(kind), nodePath}
			for _, metric := range csvMetrics {
				if v := kpis.Value(metric); v != nil {
					row = append(row, fmtFloat(*v))
				} else {
					row = append(row, "")
				}
			}
			isDegraded := "false"
			if kind == schema.FileNode && degraded[nodePath] {
				isDegraded = "true"
			}
			row = append(row, string(tierOf(kpis)), isDegraded)
			return cw.Write(row)
		})
	})
}
