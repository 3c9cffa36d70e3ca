package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/dusk-indust/codelens/internal/config"
)

// version is set by goreleaser at build time.
var version = "dev"

var (
	flagConfig    string
	flagFormat    string
	flagVerbose   bool
	flagLogFormat string

	logger = logrus.New()
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "codelens",
	Short: "Multi-language structural analysis",
	Long: `codelens parses source files with tree-sitter, extracts classes, functions,
variables and imports, runs static analysis rules, and renders Mermaid class and
sequence diagrams. Given a before and an after tree it reports structural changes.`,
	Version:       version,
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := validateFormat(flagFormat); err != nil {
			return err
		}
		return setupLogger(flagVerbose, flagLogFormat)
	},
	// No Run; prints help by default.
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "config file (default: codelens.yml in the scanned directory)")
	rootCmd.PersistentFlags().StringVar(&flagFormat, "format", "text", "output format: json|text")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "debug logging and per-file progress on stderr")
	rootCmd.PersistentFlags().StringVar(&flagLogFormat, "log-format", "text", "log format: text|json")

	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(diffCmd)
	rootCmd.AddCommand(diagramCmd)
	rootCmd.AddCommand(languagesCmd)
	rootCmd.AddCommand(serveMCPCmd)
}

// setupLogger configures the process logger. Logs go to stderr so stdout
// carries only command output.
func setupLogger(verbose bool, format string) error {
	logger.SetOutput(os.Stderr)
	if verbose {
		logger.SetLevel(logrus.DebugLevel)
	} else {
		logger.SetLevel(logrus.WarnLevel)
	}
	switch format {
	case "text":
		logger.SetFormatter(&logrus.TextFormatter{})
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	default:
		return fmt.Errorf("invalid log format %q: must be text or json", format)
	}
	return nil
}

// loadConfig reads --config when given, otherwise codelens.yml in dir.
func loadConfig(dir string) (*config.Config, error) {
	if flagConfig != "" {
		return config.LoadFile(flagConfig)
	}
	cfg, err := config.Load(dir)
	if err != nil {
		return nil, err
	}
	if cfg.Path != "" {
		logger.WithField("path", cfg.Path).Debug("config loaded")
	}
	return cfg, nil
}
