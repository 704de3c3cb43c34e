package core

import (
	"time"

	"github.com/huangsam/codepulse/internal/contract"
	"github.com/huangsam/codepulse/schema"
)

// recordRun stores one row per node and metric, then closes the run.
// Tracking failures are logged and never fail the analysis.
func recordRun(store contract.RunStore, runID int64, repo *schema.RepoInfo, totalFiles int) {
	records := nodeMetricRecords(runID, repo.Tree)
	if err := store.RecordNodeMetrics(runID, records); err != nil {
		logTrackingError("RecordNodeMetrics", err)
	}
	if err := store.EndRun(runID, time.Now(), totalFiles); err != nil {
		logTrackingError("EndRun", err)
	}
}

// abortRun closes a run whose analysis failed. No node metrics are stored.
func abortRun(store contract.RunStore, runID int64) {
	if err := store.EndRun(runID, time.Now(), 0); err != nil {
		logTrackingError("EndRun", err)
	}
}

// nodeMetricRecords flattens the tree into run-store rows in walk order.
func nodeMetricRecords(runID int64, root *schema.ScanDir) []schema.NodeMetricRecord {
	var records []schema.NodeMetricRecord
	_ = schema.Walk(root, func(kind schema.NodeKind, nodePath string, kpis schema.KPIMap) error {
		for _, name := range kpis.Names() {
			k := kpis[name]
			rec := schema.NodeMetricRecord{
				RunID:    runID,
				NodeKind: string(kind),
				NodePath: nodePath,
				Metric:   k.Name,
				Unit:     string(k.Unit),
				Value:    k.Value,
			}
			if d, ok := k.Detail.(*schema.HotspotDetail); ok && d.Tier != "" {
				tier := string(d.Tier)
				rec.Tier = &tier
			}
			records = append(records, rec)
		}
		return nil
	})
	return records
}

// logTrackingError logs run-store errors to stderr without disrupting analysis.
func logTrackingError(operation string, err error) {
	contract.LogWarn("Run tracking failed for "+operation, err)
}
