// Package mcp provides the Model Context Protocol (MCP) server implementation.
package mcp

import (
	"context"

	"github.com/huangsam/codepulse/internal/contract"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// NewMCPServer initializes and configures the codepulse MCP server without starting it.
// This is exposed for unit testing.
func NewMCPServer(baseCfg *contract.Config, mgr contract.CacheManager, client contract.GitClient) *server.MCPServer {
	s := server.NewMCPServer(
		"Codepulse Analysis Server",
		"1.0.0",
		server.WithLogging(),
	)

	h := &toolHandler{
		baseCfg: baseCfg,
		mgr:     mgr,
		client:  client,
	}

	// --- 1. Tool: analyze_repository ---
	s.AddTool(mcp.NewTool("analyze_repository",
		mcp.WithDescription("Analyze complexity, churn and ownership of a repository and return the full directory tree with KPIs."),
		mcp.WithString("repo_path", mcp.Description("Path to the repository or a directory inside it (defaults to the configured path).")),
		mcp.WithString("filter", mcp.Description("Only analyze files under this path prefix.")),
		mcp.WithBoolean("no_history", mcp.Description("Skip version-control history and compute complexity only.")),
	), h.handleAnalyzeRepository)

	// --- 2. Tool: get_hotspots ---
	s.AddTool(mcp.NewTool("get_hotspots",
		mcp.WithDescription("Rank files by hotspot score (complexity times churn) and return the top entries."),
		mcp.WithString("repo_path", mcp.Description("Path to the repository or a directory inside it.")),
		mcp.WithString("filter", mcp.Description("Only analyze files under this path prefix.")),
		mcp.WithNumber("limit", mcp.Description("Limit the number of results returned.")),
	), h.handleGetHotspots)

	return s
}

// StartMCPServer starts the codepulse MCP server on stdio.
func StartMCPServer(_ context.Context, baseCfg *contract.Config, mgr contract.CacheManager) error {
	s := NewMCPServer(baseCfg, mgr, contract.NewLocalGitClient())
	return server.ServeStdio(s)
}
