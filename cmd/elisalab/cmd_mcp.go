package main

import (
	"fmt"

	"github.com/nvandessel/elisalab/internal/mcp"
	"github.com/spf13/cobra"
)

func newMCPServerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp-server",
		Short: "Run the elisalab MCP server over stdio",
		Long: `Expose the simulator and analysis tools to MCP clients over stdio.

Tool calls are audited to ~/.elisalab/audit.jsonl. At debug or trace log
level, simulation runs are also appended to ~/.elisalab/runs.jsonl.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadSettings(cmd)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			dir, err := stateDir()
			if err != nil {
				return err
			}

			server, err := mcp.NewServer(&mcp.Config{
				Name:     "elisalab",
				Version:  version,
				Settings: cfg,
				Logger:   newLogger(cmd, cfg),
				StateDir: dir,
			})
			if err != nil {
				return fmt.Errorf("failed to create MCP server: %w", err)
			}

			return server.Run(cmd.Context())
		},
	}
}
