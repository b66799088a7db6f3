package cmd

import (
	"github.com/huangsam/retest/internal/mcp"
	"github.com/spf13/cobra"
)

// mcpCmd represents the mcp command.
var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the Retest MCP server",
	Long: `Launch an MCP server on stdio so that AI agents can plan regression suites,
read maintenance reports and inspect the execution history via standard tools.

Tools:
  plan_regression_suite  - plan a unified diff
  get_maintenance_report - obsolete, flaky and missing tests
  get_history_status     - history store statistics`,
	Args:    cobra.NoArgs,
	PreRunE: sharedSetupWrapper,
	RunE: func(_ *cobra.Command, _ []string) error {
		return mcp.StartMCPServer(rootCtx, cfg, cacheManager)
	},
}
