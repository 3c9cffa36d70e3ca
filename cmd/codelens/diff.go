package main

import (
	"errors"
	"os"

	"github.com/spf13/cobra"

	"github.com/dusk-indust/codelens/internal/scan"
)

var (
	flagBefore string
	flagAfter  string
)

var diffCmd = &cobra.Command{
	Use:   "diff --before <dir> --after <dir>",
	Short: "Report structural changes between two trees",
	Long:  "Scans both trees, matches entities by qualified name, and reports each as added, removed, modified or unchanged. Findings cover the after tree; diagrams are annotated with the changes.",
	Args:  cobra.NoArgs,
	RunE:  runDiff,
}

func init() {
	diffCmd.Flags().StringVar(&flagBefore, "before", "", "directory holding the tree before the change")
	diffCmd.Flags().StringVar(&flagAfter, "after", "", "directory holding the tree after the change")
	_ = diffCmd.MarkFlagRequired("before")
	_ = diffCmd.MarkFlagRequired("after")
}

func runDiff(cmd *cobra.Command, _ []string) error {
	before, err := checkDir(flagBefore)
	if err != nil {
		return err
	}
	after, err := checkDir(flagAfter)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(after)
	if err != nil {
		return err
	}

	s, done := newScanner(cfg)
	defer done()

	afterFiles, err := collectFiles(after, cfg, s.Registry())
	if err != nil {
		return err
	}
	beforeFiles, err := collectFiles(before, cfg, s.Registry())
	if err != nil {
		return err
	}
	if beforeFiles == nil {
		beforeFiles = []scan.File{}
	}
	if len(afterFiles) == 0 && len(beforeFiles) == 0 {
		return errors.New("no supported source files in either tree")
	}

	res, scanErr := s.Scan(cmd.Context(), scan.Request{Files: afterFiles, Before: beforeFiles})
	if res == nil {
		return scanErr
	}
	if err := writeDiff(os.Stdout, res); err != nil {
		return err
	}
	return scanErr
}
