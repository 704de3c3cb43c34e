package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/huangsam/codepulse/core"
	"github.com/huangsam/codepulse/core/algo"
	"github.com/huangsam/codepulse/internal/contract"
	"github.com/huangsam/codepulse/schema"
	"github.com/mark3labs/mcp-go/mcp"
)

// toolHandler holds common dependencies for MCP tool handlers.
type toolHandler struct {
	baseCfg *contract.Config
	mgr     contract.CacheManager
	client  contract.GitClient
}

// hotspotEntry is one ranked file in the get_hotspots response.
type hotspotEntry struct {
	Rank       int             `json:"rank"`
	Path       string          `json:"path"`
	Score      *float64        `json:"score"`
	Tier       schema.RiskTier `json:"tier,omitempty"`
	Cyclomatic *float64        `json:"cyclomatic"`
	Churn      *float64        `json:"churn"`
	Owner      string          `json:"owner,omitempty"`
	Degraded   bool            `json:"degraded,omitempty"`
}

// prepareConfig clones the base config and applies the common tool arguments.
func (h *toolHandler) prepareConfig(ctx context.Context, request mcp.CallToolRequest) (*contract.Config, error) {
	cfg := h.baseCfg.Clone()
	if f := request.GetString("filter", ""); f != "" {
		cfg.PathFilter = f
	}
	if p := request.GetString("repo_path", ""); p != "" {
		if err := contract.RevalidateRepoPath(ctx, cfg, h.client, p); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func (h *toolHandler) handleAnalyzeRepository(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cfg, err := h.prepareConfig(ctx, request)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid parameters: %v", err)), nil
	}
	if request.GetBool("no_history", false) {
		cfg.NoHistory = true
	}

	repo, err := core.Analyze(core.WithSuppressHeader(ctx), cfg, h.client, h.mgr)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("analysis failed: %v", err)), nil
	}

	jsonData, err := json.MarshalIndent(repo, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to encode result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(jsonData)), nil
}

func (h *toolHandler) handleGetHotspots(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cfg, err := h.prepareConfig(ctx, request)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid parameters: %v", err)), nil
	}
	if l := request.GetInt("limit", 0); l > 0 {
		cfg.ResultLimit = min(l, contract.MaxResultLimit)
	}

	repo, err := core.Analyze(core.WithSuppressHeader(ctx), cfg, h.client, h.mgr)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("analysis failed: %v", err)), nil
	}

	ranked := algo.RankFiles(schema.AllFiles(repo.Tree), cfg.ResultLimit)
	entries := make([]hotspotEntry, len(ranked))
	for i, r := range ranked {
		kpis := r.File.Snapshot()
		entry := hotspotEntry{
			Rank:       i + 1,
			Path:       r.File.Path,
			Tier:       r.Tier,
			Cyclomatic: kpis.Value(schema.MetricCyclomatic),
			Churn:      kpis.Value(schema.MetricChurn),
			Degraded:   r.File.Degraded,
		}
		if r.Present {
			score := r.Score
			entry.Score = &score
		}
		if k, ok := kpis.Get(schema.MetricOwnership); ok {
			if d, ok := k.Detail.(*schema.OwnershipDetail); ok {
				entry.Owner = d.DominantOwner
			}
		}
		entries[i] = entry
	}

	jsonData, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to encode result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(jsonData)), nil
}
