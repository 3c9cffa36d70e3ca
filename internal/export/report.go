package export

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dusk-indust/codelens/internal/scan"
	"github.com/dusk-indust/codelens/internal/structure"
)

// ReportFile is the JSON report written by Write.
const ReportFile = "report.json"

// Report is the top-level JSON export structure.
type Report struct {
	ScanID     string       `json:"scanId"`
	Root       string       `json:"root"`
	ExportedAt string       `json:"exportedAt"`
	Summary    Summary      `json:"summary"`
	Result     *scan.Result `json:"result"`
}

// Summary tallies a scan for readers who do not want the full result.
type Summary struct {
	Files      int                      `json:"files"`
	Findings   int                      `json:"findings"`
	Skipped    int                      `json:"skipped"`
	RuleErrors int                      `json:"ruleErrors"`
	BySeverity map[string]int           `json:"bySeverity"`
	ByRule     map[string]int           `json:"byRule"`
	Changes    map[structure.Status]int `json:"changes,omitempty"`
	Canceled   bool                     `json:"canceled,omitempty"`
}

// NewReport builds a Report for a scan of root.
func NewReport(res *scan.Result, root string, now time.Time) *Report {
	s := Summary{
		Files:      len(res.Findings),
		Findings:   res.FindingCount(),
		Skipped:    len(res.Skipped),
		RuleErrors: len(res.RuleErrors),
		BySeverity: make(map[string]int),
		ByRule:     make(map[string]int),
		Canceled:   res.Canceled,
	}
	for _, ff := range res.Findings {
		for _, f := range ff.Findings {
			s.BySeverity[f.Severity.String()]++
			s.ByRule[f.RuleID]++
		}
	}
	if res.Changes != nil {
		s.Changes = res.Changes.Counts()
	}
	return &Report{
		ScanID:     res.ScanID,
		Root:       root,
		ExportedAt: now.UTC().Format(time.RFC3339),
		Summary:    s,
		Result:     res,
	}
}

// Write stores the report as report.json in dir, plus one <type>.mmd file
// per diagram. It returns the paths written.
func Write(dir string, r *Report) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating %s: %w", dir, err)
	}

	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode report: %w", err)
	}
	reportPath := filepath.Join(dir, ReportFile)
	if err := os.WriteFile(reportPath, append(data, '\n'), 0o644); err != nil {
		return nil, fmt.Errorf("write report: %w", err)
	}
	written := []string{reportPath}

	for _, d := range r.Result.Diagrams {
		path := filepath.Join(dir, string(d.Type)+".mmd")
		if err := os.WriteFile(path, []byte(d.Content), 0o644); err != nil {
			return written, fmt.Errorf("write %s diagram: %w", d.Type, err)
		}
		written = append(written, path)
	}
	return written, nil
}
