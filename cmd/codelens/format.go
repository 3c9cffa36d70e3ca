package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/dusk-indust/codelens/internal/diagram"
	"github.com/dusk-indust/codelens/internal/lang"
	"github.com/dusk-indust/codelens/internal/rules"
	"github.com/dusk-indust/codelens/internal/scan"
	"github.com/dusk-indust/codelens/internal/structure"
)

var validFormats = []string{"json", "text"}

func validateFormat(format string) error {
	for _, f := range validFormats {
		if format == f {
			return nil
		}
	}
	return fmt.Errorf("invalid format %q: must be %s", format, strings.Join(validFormats, " or "))
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// writeScan prints a scan result in the selected format.
func writeScan(w io.Writer, res *scan.Result) error {
	if flagFormat == "json" {
		return writeJSON(w, res)
	}
	formatFindingsText(w, res.Findings)
	formatSkippedText(w, res.Skipped)
	formatPartialText(w, res.Capabilities)
	for _, re := range res.RuleErrors {
		fmt.Fprintf(w, "rule error: %s\n", re.Error())
	}
	fmt.Fprintf(w, "%d findings in %d files, %d skipped (scan %s)\n",
		res.FindingCount(), len(res.Findings), len(res.Skipped), res.ScanID)
	return nil
}

// writeDiff prints a PR scan result in the selected format.
func writeDiff(w io.Writer, res *scan.Result) error {
	if flagFormat == "json" {
		return writeJSON(w, res)
	}
	if res.Changes != nil {
		formatChangesText(w, res.Changes.Changed())
		c := res.Changes.Counts()
		fmt.Fprintf(w, "%d added, %d modified, %d removed, %d unchanged\n",
			c[structure.StatusAdded], c[structure.StatusModified], c[structure.StatusRemoved], c[structure.StatusUnchanged])
	}
	formatSkippedText(w, res.Skipped)
	return nil
}

// writeDiagram prints the Mermaid source, or the whole document as JSON.
func writeDiagram(w io.Writer, d diagram.Document) error {
	if flagFormat == "json" {
		return writeJSON(w, d)
	}
	_, err := io.WriteString(w, d.Content)
	return err
}

func writeLanguages(w io.Writer, caps []lang.Capability, rs []rules.Rule) error {
	if flagFormat == "json" {
		type ruleJSON struct {
			ID          string          `json:"id"`
			Category    rules.Category  `json:"category"`
			Severity    rules.Severity  `json:"severity"`
			Description string          `json:"description"`
			Languages   []lang.Language `json:"languages,omitempty"`
		}
		out := struct {
			Capabilities []lang.Capability `json:"capabilityReport"`
			Rules        []ruleJSON        `json:"rules"`
		}{Capabilities: caps}
		for _, r := range rs {
			out.Rules = append(out.Rules, ruleJSON{r.ID, r.Category, r.Severity, r.Description, r.Languages})
		}
		return writeJSON(w, out)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "LANGUAGE\tGRAMMAR\tEXTRACTOR\tRULES")
	for _, c := range caps {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", c.Language, yesNo(c.GrammarAvailable), yesNo(c.ExtractorAvailable), yesNo(c.RulesAvailable))
	}
	tw.Flush()
	fmt.Fprintln(w)

	tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RULE\tSEVERITY\tCATEGORY\tLANGUAGES")
	for _, r := range rs {
		langs := "all"
		if len(r.Languages) > 0 {
			names := make([]string, len(r.Languages))
			for i, l := range r.Languages {
				names[i] = string(l)
			}
			langs = strings.Join(names, ",")
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.ID, r.Severity, r.Category, langs)
	}
	return tw.Flush()
}

// formatFindingsText lists findings grouped by file as file:line:col lines.
func formatFindingsText(w io.Writer, files []scan.FileFindings) {
	for _, ff := range files {
		if len(ff.Findings) == 0 {
			continue
		}
		fmt.Fprintf(w, "%s (%s)\n", ff.Path, ff.Language)
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		for _, f := range ff.Findings {
			fmt.Fprintf(tw, "  %d:%d\t%s\t%s\t%s\n", f.Line, f.Column, f.Severity, f.RuleID, f.Message)
		}
		tw.Flush()
	}
}

func formatSkippedText(w io.Writer, skipped []scan.Skip) {
	if len(skipped) == 0 {
		return
	}
	fmt.Fprintln(w, "Skipped:")
	for _, s := range skipped {
		fmt.Fprintf(w, "  %s: %s (%s)\n", s.Path, s.Reason, s.Detail)
	}
}

// formatPartialText names languages analyzed with reduced capability.
func formatPartialText(w io.Writer, caps []lang.Capability) {
	for _, c := range caps {
		if !c.Partial() {
			continue
		}
		var missing []string
		if !c.GrammarAvailable {
			missing = append(missing, "grammar")
		}
		if !c.ExtractorAvailable {
			missing = append(missing, "extractor")
		}
		if !c.RulesAvailable {
			missing = append(missing, "rules")
		}
		fmt.Fprintf(w, "partial analysis for %s: no %s\n", c.Language, strings.Join(missing, ", "))
	}
}

func formatChangesText(w io.Writer, changes []structure.Change) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "STATUS\tKIND\tENTITY")
	for _, c := range changes {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", c.Status, c.Kind, c.Key)
	}
	tw.Flush()
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
