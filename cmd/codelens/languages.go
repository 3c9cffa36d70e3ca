package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/dusk-indust/codelens/internal/scan"
)

var languagesCmd = &cobra.Command{
	Use:   "languages",
	Short: "List supported languages and rules",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig(".")
		if err != nil {
			return err
		}
		s := scan.New(cfg.Scan(), scan.WithLogger(logger))
		return writeLanguages(os.Stdout, s.Capabilities(), s.Engine().Rules())
	},
}
