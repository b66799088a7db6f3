package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/huangsam/retest/core"
	"github.com/huangsam/retest/internal/contract"
	"github.com/huangsam/retest/schema"
	"github.com/mark3labs/mcp-go/mcp"
)

// toolHandler holds common dependencies for MCP tool handlers.
type toolHandler struct {
	baseCfg *contract.Config
	mgr     contract.CacheManager
}

// requestConfig clones the base config for one request. Results always come back as JSON.
func (h *toolHandler) requestConfig(request mcp.CallToolRequest) *contract.Config {
	cfg := h.baseCfg.Clone()
	cfg.Output = schema.JSONOut
	cfg.OutputFile = ""
	if p := request.GetString("catalog_path", ""); p != "" {
		cfg.CatalogPath = p
	}
	return cfg
}

func jsonResult(data any) (*mcp.CallToolResult, error) {
	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to encode result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(jsonData)), nil
}

func (h *toolHandler) handlePlanRegressionSuite(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	diff := request.GetString("diff", "")
	if strings.TrimSpace(diff) == "" {
		return mcp.NewToolResultError("diff is required"), nil
	}

	cfg := h.requestConfig(request)
	cfg.ChangeID = request.GetString("change_id", "")
	cfg.DiffPath = ""
	cfg.BaseRef, cfg.TargetRef = "", ""

	coverage := request.GetFloat("coverage_target", 0)
	budget := request.GetString("time_budget", "")
	depth := request.GetInt("max_depth", -1)
	if err := contract.RevalidatePlan(cfg, coverage, budget, depth); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid planning parameters: %v", err)), nil
	}

	result, err := core.RunPlan(core.WithSuppressHeader(ctx), cfg, h.mgr, core.WithDiff([]byte(diff)))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("planning failed: %v", err)), nil
	}
	return jsonResult(result)
}

func (h *toolHandler) handleGetMaintenanceReport(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cfg := h.requestConfig(request)
	obsolete := request.GetInt("obsolete_threshold", -1)
	flaky := request.GetFloat("flaky_threshold", -1)
	if err := contract.RevalidateMaintenance(cfg, obsolete, flaky); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid maintenance parameters: %v", err)), nil
	}

	report, err := core.GetMaintenanceReport(ctx, cfg, h.mgr)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("maintenance analysis failed: %v", err)), nil
	}
	return jsonResult(report)
}

func (h *toolHandler) handleGetHistoryStatus(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if h.mgr == nil || h.mgr.GetHistoryStore() == nil {
		return mcp.NewToolResultError("history store is not configured"), nil
	}
	status, err := h.mgr.GetHistoryStore().GetStatus()
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to read history status: %v", err)), nil
	}
	return jsonResult(status)
}
