package mcptools

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/dusk-indust/codelens/internal/lang"
	"github.com/dusk-indust/codelens/internal/scan"
	"github.com/dusk-indust/codelens/internal/structure"
)

// Service holds the scanner used by MCP tool handlers. Files arrive inline;
// the service never touches the file system. Grammars load once in
// NewService; per-call overrides travel on the scan request.
type Service struct {
	cfg     scan.Config
	scanner *scan.Scanner
	logger  logrus.FieldLogger
}

// NewService creates a Service scanning with cfg. A nil logger discards.
func NewService(cfg scan.Config, logger logrus.FieldLogger, opts ...scan.Option) *Service {
	if logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		logger = l
	}
	opts = append([]scan.Option{scan.WithLogger(logger)}, opts...)
	return &Service{
		cfg:     cfg,
		scanner: scan.New(cfg, opts...),
		logger:  logger,
	}
}

// languages resolves per-call language names against the registry.
func (s *Service) languages(names []string) ([]lang.Language, error) {
	if len(names) == 0 {
		return nil, nil
	}
	known := make(map[lang.Language]bool)
	for _, c := range s.scanner.Capabilities() {
		known[c.Language] = true
	}
	out := make([]lang.Language, 0, len(names))
	for _, n := range names {
		id := lang.Language(strings.ToLower(strings.TrimSpace(n)))
		if !known[id] {
			return nil, fmt.Errorf("unknown language %q", n)
		}
		out = append(out, id)
	}
	return out, nil
}

// ScanFiles analyzes inline files and returns findings, diagrams and the
// capability report.
func (s *Service) ScanFiles(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ScanFilesInput,
) (*mcp.CallToolResult, ScanFilesOutput, error) {
	if len(input.Files) == 0 {
		return nil, ScanFilesOutput{}, fmt.Errorf("files is required")
	}
	langs, err := s.languages(input.Languages)
	if err != nil {
		return nil, ScanFilesOutput{}, err
	}

	res, err := s.scanner.Scan(ctx, scan.Request{
		Files:         toFiles(input.Files),
		EntryPoints:   input.EntryPoints,
		Languages:     langs,
		DisabledRules: input.DisabledRules,
	})
	if res == nil {
		return nil, ScanFilesOutput{}, fmt.Errorf("scan: %w", err)
	}
	if err != nil {
		s.logger.WithError(err).Warn("scan_files returning partial results")
	}

	out := ScanFilesOutput{
		ScanID:       res.ScanID,
		Findings:     toReports(res.Findings),
		Diagrams:     toDiagrams(res),
		Capabilities: res.Capabilities,
		Skipped:      toSkipped(res.Skipped),
		Canceled:     res.Canceled,
	}
	for _, re := range res.RuleErrors {
		out.RuleErrors = append(out.RuleErrors, re.Error())
	}
	return nil, out, nil
}

// DiffFiles compares before and after file sets and returns the change set
// with change-annotated diagrams.
func (s *Service) DiffFiles(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input DiffFilesInput,
) (*mcp.CallToolResult, DiffFilesOutput, error) {
	if len(input.Before) == 0 && len(input.After) == 0 {
		return nil, DiffFilesOutput{}, errors.New("before or after is required")
	}
	before := toFiles(input.Before)
	if before == nil {
		before = []scan.File{}
	}

	res, err := s.scanner.Scan(ctx, scan.Request{Files: toFiles(input.After), Before: before})
	if res == nil {
		return nil, DiffFilesOutput{}, fmt.Errorf("diff: %w", err)
	}
	if err != nil {
		s.logger.WithError(err).Warn("diff_files returning partial results")
	}

	out := DiffFilesOutput{
		ScanID:   res.ScanID,
		Changes:  []structure.Change{},
		Findings: toReports(res.Findings),
		Diagrams: toDiagrams(res),
		Skipped:  toSkipped(res.Skipped),
	}
	if res.Changes != nil {
		out.Changes = append(out.Changes, res.Changes.Changes...)
		counts := res.Changes.Counts()
		out.Summary = ChangeSummary{
			Added:     counts[structure.StatusAdded],
			Modified:  counts[structure.StatusModified],
			Removed:   counts[structure.StatusRemoved],
			Unchanged: counts[structure.StatusUnchanged],
		}
	}
	return nil, out, nil
}

// ListLanguages reports per-language capabilities and the rule catalogue.
func (s *Service) ListLanguages(
	_ context.Context,
	_ *mcp.CallToolRequest,
	_ ListLanguagesInput,
) (*mcp.CallToolResult, ListLanguagesOutput, error) {
	out := ListLanguagesOutput{Capabilities: s.scanner.Capabilities()}
	for _, r := range s.scanner.Engine().Rules() {
		info := RuleInfo{
			ID:          r.ID,
			Category:    string(r.Category),
			Severity:    r.Severity.String(),
			Description: r.Description,
		}
		for _, l := range r.Languages {
			info.Languages = append(info.Languages, string(l))
		}
		out.Rules = append(out.Rules, info)
	}
	return nil, out, nil
}

func toFiles(in []FileInput) []scan.File {
	if in == nil {
		return nil
	}
	out := make([]scan.File, len(in))
	for i, f := range in {
		out[i] = scan.File{Path: f.Path, Content: []byte(f.Content)}
	}
	return out
}

func toReports(in []scan.FileFindings) []FileReport {
	out := make([]FileReport, 0, len(in))
	for _, ff := range in {
		r := FileReport{
			Path:     ff.Path,
			Language: string(ff.Language),
			Findings: make([]FindingOutput, 0, len(ff.Findings)),
		}
		for _, f := range ff.Findings {
			r.Findings = append(r.Findings, FindingOutput{
				RuleID:     f.RuleID,
				Category:   string(f.Category),
				Severity:   f.Severity.String(),
				Line:       f.Line,
				Column:     f.Column,
				Message:    f.Message,
				Suggestion: f.Suggestion,
				Snippet:    f.Snippet,
			})
		}
		for _, c := range ff.Missing {
			r.Missing = append(r.Missing, string(c))
		}
		out = append(out, r)
	}
	return out
}

func toDiagrams(res *scan.Result) []DiagramOutput {
	out := make([]DiagramOutput, 0, len(res.Diagrams))
	for _, d := range res.Diagrams {
		out = append(out, DiagramOutput{
			Type:    string(d.Type),
			Format:  d.Format,
			Content: d.Content,
			Changes: d.Changes.Changes,
		})
	}
	return out
}

func toSkipped(in []scan.Skip) []SkippedFile {
	out := make([]SkippedFile, 0, len(in))
	for _, s := range in {
		out = append(out, SkippedFile{
			Path:     s.Path,
			Language: string(s.Language),
			Reason:   string(s.Reason),
			Detail:   s.Detail,
		})
	}
	return out
}
