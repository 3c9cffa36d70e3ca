package main

import (
	"github.com/spf13/cobra"

	"github.com/dusk-indust/codelens/internal/mcptools"
)

var flagAddr string

var serveMCPCmd = &cobra.Command{
	Use:   "serve-mcp",
	Short: "Serve the analysis tools over MCP",
	Long:  "Exposes scan_files, diff_files and list_languages as MCP tools. Without --addr the server speaks over stdio; with --addr it serves streamable HTTP.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig(".")
		if err != nil {
			return err
		}
		svc := mcptools.NewService(cfg.Scan(), logger)
		if flagAddr == "" {
			return mcptools.RunMCPServerStdio(cmd.Context(), svc)
		}
		logger.WithField("addr", flagAddr).Info("serving MCP over HTTP")
		return mcptools.RunMCPServer(cmd.Context(), svc, flagAddr)
	},
}

func init() {
	serveMCPCmd.Flags().StringVar(&flagAddr, "addr", "", "listen address for streamable HTTP, e.g. :8080 (default: stdio)")
}
