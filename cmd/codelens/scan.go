package main

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/dusk-indust/codelens/internal/config"
	"github.com/dusk-indust/codelens/internal/export"
	"github.com/dusk-indust/codelens/internal/rules"
	"github.com/dusk-indust/codelens/internal/scan"
)

var (
	flagEntries []string
	flagFailOn  string
	flagOut     string
)

var scanCmd = &cobra.Command{
	Use:   "scan [path]",
	Short: "Analyze a directory and report findings",
	Long:  "Parses every supported source file under path, runs the rule catalogue, and reports findings per file together with the capability report and diagrams.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runScan,
}

func init() {
	scanCmd.Flags().StringSliceVar(&flagEntries, "entry", nil, "sequence-diagram entry points (qualified, Owner.name or simple names)")
	scanCmd.Flags().StringVar(&flagOut, "out", "", "also write report.json and Mermaid .mmd files to this directory")
	scanCmd.Flags().StringVar(&flagFailOn, "fail-on", "", "exit non-zero when a finding has at least this severity: info|warning|error|critical")
}

func runScan(cmd *cobra.Command, args []string) error {
	var threshold rules.Severity
	if flagFailOn != "" {
		var err error
		if threshold, err = rules.ParseSeverity(flagFailOn); err != nil {
			return err
		}
	}

	root, err := resolveTargetDir(args)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(root)
	if err != nil {
		return err
	}

	res, scanErr := scanTree(cmd.Context(), cfg, root, scan.Request{EntryPoints: flagEntries})
	if res == nil {
		return scanErr
	}
	if err := writeScan(os.Stdout, res); err != nil {
		return err
	}
	if flagOut != "" {
		paths, err := export.Write(flagOut, export.NewReport(res, root, time.Now()))
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Wrote %d files to %s\n", len(paths), flagOut)
	}
	if scanErr != nil {
		return scanErr
	}

	if flagFailOn != "" {
		if n := countAtLeast(res, threshold); n > 0 {
			return fmt.Errorf("%d findings at or above %s", n, threshold)
		}
	}
	return nil
}

// scanTree collects the files under root into req.Files and runs the scan.
func scanTree(ctx context.Context, cfg *config.Config, root string, req scan.Request) (*scan.Result, error) {
	s, done := newScanner(cfg)
	defer done()

	files, err := collectFiles(root, cfg, s.Registry())
	if err != nil {
		return nil, err
	}
	req.Files = files
	return s.Scan(ctx, req)
}

// newScanner builds a scanner from cfg. With --verbose, per-file progress is
// printed to stderr until the returned func is called.
func newScanner(cfg *config.Config) (*scan.Scanner, func()) {
	opts := []scan.Option{scan.WithLogger(logger)}
	if !flagVerbose {
		return scan.New(cfg.Scan(), opts...), func() {}
	}

	pr := scan.NewProgressReporter()
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for ev := range pr.Subscribe() {
			if ev.Status != scan.ProgressPending {
				fmt.Fprintln(os.Stderr, scan.FormatProgress(ev))
			}
		}
	}()
	opts = append(opts, scan.WithProgress(pr.Emit))
	return scan.New(cfg.Scan(), opts...), func() {
		pr.Close()
		wg.Wait()
		fmt.Fprintln(os.Stderr, pr.Summary())
	}
}

func countAtLeast(res *scan.Result, min rules.Severity) int {
	n := 0
	for _, ff := range res.Findings {
		for _, f := range ff.Findings {
			if f.Severity >= min {
				n++
			}
		}
	}
	return n
}
