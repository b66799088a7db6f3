// Package mcp provides the Model Context Protocol (MCP) server implementation.
package mcp

import (
	"context"

	"github.com/huangsam/retest/internal/contract"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// NewMCPServer initializes and configures the Retest MCP server without starting it.
// This is exposed for unit testing.
func NewMCPServer(baseCfg *contract.Config, mgr contract.CacheManager) *server.MCPServer {
	s := server.NewMCPServer(
		"Retest Planning Server",
		"1.0.0",
		server.WithLogging(),
	)

	h := &toolHandler{
		baseCfg: baseCfg,
		mgr:     mgr,
	}

	// --- 1. Tool: plan_regression_suite ---
	s.AddTool(mcp.NewTool("plan_regression_suite",
		mcp.WithDescription("Plan the regression suite for a code change given as a unified diff."),
		mcp.WithString("diff", mcp.Description("Unified diff of the change."), mcp.Required()),
		mcp.WithString("change_id", mcp.Description("Identifier of the change (derived from the diff when omitted).")),
		mcp.WithString("catalog_path", mcp.Description("Path to the component and test catalog (defaults to the server catalog).")),
		mcp.WithNumber("coverage_target", mcp.Description("Fraction of impacted components and features the core tier must cover, in (0,1].")),
		mcp.WithString("time_budget", mcp.Description("Time budget of the suite (e.g., '15m'). Empty means unbounded.")),
		mcp.WithNumber("max_depth", mcp.Description("Maximum dependency depth followed from modified components.")),
	), h.handlePlanRegressionSuite)

	// --- 2. Tool: get_maintenance_report ---
	s.AddTool(mcp.NewTool("get_maintenance_report",
		mcp.WithDescription("Analyze the execution history to find obsolete, flaky and missing tests."),
		mcp.WithString("catalog_path", mcp.Description("Path to the component and test catalog.")),
		mcp.WithNumber("obsolete_threshold", mcp.Description("Executions without a defect before a test is an obsolete candidate.")),
		mcp.WithNumber("flaky_threshold", mcp.Description("False-positive rate above which a test is flagged as flaky, in [0,1].")),
	), h.handleGetMaintenanceReport)

	// --- 3. Tool: get_history_status ---
	s.AddTool(mcp.NewTool("get_history_status",
		mcp.WithDescription("Report the size and freshness of the execution history store."),
	), h.handleGetHistoryStatus)

	return s
}

// StartMCPServer starts the Retest MCP server on stdio.
func StartMCPServer(_ context.Context, baseCfg *contract.Config, mgr contract.CacheManager) error {
	s := NewMCPServer(baseCfg, mgr)
	return server.ServeStdio(s)
}
