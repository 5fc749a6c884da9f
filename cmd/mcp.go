package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joescharf/crev/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP stdio server",
	Long: `Start an MCP (Model Context Protocol) server on stdio.

This lets MCP-capable editors and agents request reviews directly.
Configure it with:

  {
    "mcpServers": {
      "crev": { "command": "crev", "args": ["mcp"] }
    }
  }

Available tools: crev_review_file, crev_health`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		log := newLogger(cfg)
		rv, err := newReviewer(cfg, log)
		if err != nil {
			return fmt.Errorf("create reviewer: %w", err)
		}
		if rv == nil {
			log.Warn("no API key configured; review calls will fail", "provider", cfg.Provider)
		}
		return mcp.NewServer(rv, cfg, buildVersion).ServeStdio(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
