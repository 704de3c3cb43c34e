package outwriter

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/huangsam/codepulse/core/algo"
	"github.com/huangsam/codepulse/internal/contract"
	"github.com/huangsam/codepulse/schema"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
)

// writeReport writes the ranked hotspot table, the directory tree and a summary.
func writeReport(w io.Writer, repo *schema.RepoInfo, cfg *contract.Config, fmtFloat func(float64) string, duration time.Duration) error {
	files := schema.AllFiles(repo.Tree)
	ranked := algo.RankFiles(files, cfg.ResultLimit)

	if _, err := fmt.Fprintf(w, "Top %d of %d files by hotspot score\n", len(ranked), len(files)); err != nil {
		return err
	}
	if err := writeHotspotTable(w, ranked, cfg, fmtFloat); err != nil {
		return err
	}
	if _, err := fmt.Fprintln(w, "\nDirectory tree"); err != nil {
		return err
	}
	if err := writeTreeTable(w, repo, cfg, fmtFloat); err != nil {
		return err
	}
	return writeSummary(w, repo, files, cfg, duration)
}

// writeHotspotTable renders one row per ranked file.
func writeHotspotTable(w io.Writer, ranked []algo.RankedFile, cfg *contract.Config, fmtFloat func(float64) string) error {
	table := tablewriter.NewWriter(w)
	table.Header([]string{"Rank", "Path", "Cyclo", "Cog", "Churn", "Owner", "Score", "Tier"})
	table.Configure(func(c *tablewriter.Config) {
		c.Row.Alignment.Global = tw.AlignRight
	})

	maxWidth := GetMaxTablePathWidth(cfg)
	data := make([][]string, 0, len(ranked))
	for i, r := range ranked {
		kpis := r.File.Snapshot()
		path := r.File.Path
		if r.File.Degraded {
			path += " (!)"
		}
		score := "-"
		if r.Present {
			score = fmtFloat(r.Score)
		}
		data = append(data, []string{
			strconv.Itoa(i + 1),
			contract.TruncatePath(path, maxWidth),
			formatValue(kpis.Value(schema.MetricCyclomatic), fmtFloat),
			formatValue(kpis.Value(schema.MetricCognitive), fmtFloat),
			formatValue(kpis.Value(schema.MetricChurn), fmtFloat),
			ownerLabel(kpis, cfg.SignificanceFloor),
			score,
			tierLabel(r.Tier, cfg.UseColors),
		})
	}
	if err := table.Bulk(data); err != nil {
		return err
	}
	return table.Render()
}

// writeTreeTable renders every directory indented by depth with its aggregated KPIs.
func writeTreeTable(w io.Writer, repo *schema.RepoInfo, cfg *contract.Config, fmtFloat func(float64) string) error {
	table := tablewriter.NewWriter(w)
	table.Header([]string{"Directory", "Files", "Cyclo", "Cog", "Churn", "Ownership", "Max Score", "Tier"})
	table.Configure(func(c *tablewriter.Config) {
		c.Row.Alignment.Global = tw.AlignRight
		c.Row.Alignment.PerColumn = []tw.Align{tw.AlignLeft}
	})

	maxWidth := GetMaxTablePathWidth(cfg)
	var data [][]string
	var visit func(dir *schema.ScanDir, depth int) int
	visit = func(dir *schema.ScanDir, depth int) int {
		name := dir.Name + "/"
		if depth == 0 {
			name = repo.Name + "/"
		}
		if len(dir.Degraded) > 0 {
			name += " (!)"
		}
		prefix := ""
		if depth > 0 {
			prefix = strings.Repeat("│ ", depth-1) + "└ "
		}
		row := []string{
			prefix + contract.TruncatePath(name, max(maxWidth-2*depth, 4)),
			"",
			formatValue(dir.KPIs.Value(schema.MetricCyclomatic), fmtFloat),
			formatValue(dir.KPIs.Value(schema.MetricCognitive), fmtFloat),
			formatValue(dir.KPIs.Value(schema.MetricChurn), fmtFloat),
			formatPercent(dir.KPIs.Value(schema.MetricOwnership), fmtFloat),
			formatValue(dir.KPIs.Value(schema.MetricHotspot), fmtFloat),
			tierLabel(tierOf(dir.KPIs), cfg.UseColors),
		}
		idx := len(data)
		data = append(data, row)

		count := len(dir.Files)
		for _, sub := range dir.Dirs {
			count += visit(sub, depth+1)
		}
		data[idx][1] = humanize.Comma(int64(count))
		return count
	}
	visit(repo.Tree, 0)

	if err := table.Bulk(data); err != nil {
		return err
	}
	return table.Render()
}

// writeSummary prints totals and run information after the tables.
func writeSummary(w io.Writer, repo *schema.RepoInfo, files []*schema.File, cfg *contract.Config, duration time.Duration) error {
	degraded := 0
	for _, f := range files {
		if f.Degraded {
			degraded++
		}
	}
	head := repo.Head
	if len(head) > 12 {
		head = head[:12]
	}
	if head == "" {
		head = "n/a"
	}

	if _, err := fmt.Fprintf(w, "Analyzed %s files (%s degraded) at %s\n",
		humanize.Comma(int64(len(files))), humanize.Comma(int64(degraded)), head); err != nil {
		return err
	}
	for _, warning := range repo.Warnings {
		if _, err := fmt.Fprintf(w, "Warning: %s\n", warning); err != nil {
			return err
		}
	}
	cacheBackend := string(cfg.CacheBackend)
	if cacheBackend == "" {
		cacheBackend = "none"
	}
	_, err := fmt.Fprintf(w, "Analysis completed in %v with %d workers. Cache backend: %s\n",
		duration.Round(time.Millisecond), cfg.Workers, cacheBackend)
	return err
}

// ownerLabel renders the significant owners of a file.
func ownerLabel(kpis schema.KPIMap, floor float64) string {
	k, ok := kpis.Get(schema.MetricOwnership)
	if !ok {
		return "-"
	}
	d, ok := k.Detail.(*schema.OwnershipDetail)
	if !ok {
		return "-"
	}
	if s := schema.FormatOwnership(d, floor); s != "" {
		return s
	}
	return "-"
}

// tierOf returns the tier carried by a hotspot KPI, or "" when there is none.
func tierOf(kpis schema.KPIMap) schema.RiskTier {
	k, ok := kpis.Get(schema.MetricHotspot)
	if !ok {
		return ""
	}
	if d, ok := k.Detail.(*schema.HotspotDetail); ok {
		return d.Tier
	}
	return ""
}

// tierLabel returns the colored or plain label of a tier.
func tierLabel(tier schema.RiskTier, useColors bool) string {
	if useColors {
		return contract.GetColorLabel(tier)
	}
	return contract.GetPlainLabel(tier)
}

// formatPercent renders a ratio as a percentage.
func formatPercent(v *float64, fmtFloat func(float64) string) string {
	if v == nil {
		return "-"
	}
	return fmtFloat(*v*100) + "%"
}
