package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dusk-indust/codelens/internal/diagram"
	"github.com/dusk-indust/codelens/internal/scan"
)

var (
	flagDiagramType    string
	flagDiagramEntries []string
)

var diagramCmd = &cobra.Command{
	Use:   "diagram [path]",
	Short: "Render a Mermaid class or sequence diagram",
	Long:  "Scans path and prints one diagram as Mermaid markup. Sequence diagrams start from the --entry functions or the entryPoints in codelens.yml.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runDiagram,
}

func init() {
	diagramCmd.Flags().StringVar(&flagDiagramType, "type", string(diagram.TypeClass), "diagram type: class|sequence")
	diagramCmd.Flags().StringSliceVar(&flagDiagramEntries, "entry", nil, "sequence-diagram entry points")
}

func runDiagram(cmd *cobra.Command, args []string) error {
	typ := diagram.Type(flagDiagramType)
	if typ != diagram.TypeClass && typ != diagram.TypeSequence {
		return fmt.Errorf("invalid diagram type %q: must be class or sequence", flagDiagramType)
	}

	root, err := resolveTargetDir(args)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(root)
	if err != nil {
		return err
	}
	if typ == diagram.TypeSequence && len(flagDiagramEntries) == 0 && len(cfg.EntryPoints) == 0 {
		return fmt.Errorf("sequence diagrams need --entry or entryPoints in codelens.yml")
	}

	res, err := scanTree(cmd.Context(), cfg, root, scan.Request{EntryPoints: flagDiagramEntries})
	if err != nil {
		return err
	}

	for _, d := range res.Diagrams {
		if d.Type == typ {
			return writeDiagram(os.Stdout, d)
		}
	}
	return fmt.Errorf("no %s diagram: nothing to draw under %s", typ, root)
}
