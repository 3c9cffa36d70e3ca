// Package scan runs the analysis pipeline over a batch of in-memory files:
// a bounded parallel parse/extract/evaluate phase, a barrier, then the
// project-level index, diff and diagrams.
package scan

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/dusk-indust/codelens/internal/diagram"
	"github.com/dusk-indust/codelens/internal/lang"
	"github.com/dusk-indust/codelens/internal/rules"
	"github.com/dusk-indust/codelens/internal/structure"
	"github.com/dusk-indust/codelens/internal/syntax"
)

const (
	DefaultFileTimeout = 10 * time.Second
	DefaultScanTimeout = 5 * time.Minute
)

// File is one source file handed in by the caller.
type File struct {
	Path    string `json:"path"`
	Content []byte `json:"content"`
}

// Request is one scan. Before is set for a PR scan and holds the
// pre-change counterparts of Files; a file absent from Before was added.
type Request struct {
	Files  []File
	Before []File

	// EntryPoints name sequence-diagram entries by qualified or simple
	// name. A PR scan uses the changed callables instead.
	EntryPoints []string

	// Languages narrows the scanner's allow-list for this request.
	Languages []lang.Language

	// DisabledRules are switched off for this request on top of the
	// scanner's own disabled rules.
	DisabledRules []string
}

// PR reports whether the request is a before/after scan.
func (r Request) PR() bool {
	return r.Before != nil
}

// SkipReason classifies why a file produced no results.
type SkipReason string

const (
	SkipUnsupported SkipReason = "unsupported"
	SkipTooLarge    SkipReason = "too_large"
	SkipEncoding    SkipReason = "encoding"
	SkipTimeout     SkipReason = "timeout"
	SkipCanceled    SkipReason = "canceled"
	SkipParseFailed SkipReason = "parse_failed"
)

// Skip records a file that was not analyzed. Skips are warnings, not errors.
type Skip struct {
	Path     string        `json:"path"`
	Language lang.Language `json:"language,omitempty"`
	Reason   SkipReason    `json:"reason"`
	Detail   string        `json:"detail,omitempty"`
}

// FileFindings groups one file's findings.
type FileFindings struct {
	Path     string                 `json:"path"`
	Language lang.Language          `json:"language"`
	Findings []rules.Finding        `json:"findings"`
	Missing  []structure.Capability `json:"missingCapabilities,omitempty"`
}

// Result is the outcome of a scan. It is returned even when the scan is
// canceled; Canceled is then set and the files that did not finish are
// listed in Skipped.
type Result struct {
	ScanID       string               `json:"scanId"`
	Findings     []FileFindings       `json:"findings"`
	Diagrams     []diagram.Document   `json:"diagrams"`
	Capabilities []lang.Capability    `json:"capabilityReport"`
	Skipped      []Skip               `json:"skipped,omitempty"`
	RuleErrors   []rules.RuleError    `json:"ruleErrors,omitempty"`
	Changes      *structure.ChangeSet `json:"changes,omitempty"`
	Canceled     bool                 `json:"canceled,omitempty"`
	Duration     time.Duration        `json:"duration"`

	// Models are the structural models of the analyzed files in input order.
	Models []*structure.Model `json:"-"`

	// Index is the project index over Models.
	Index *structure.Index `json:"-"`
}

// FindingCount totals findings across files.
func (r *Result) FindingCount() int {
	n := 0
	for _, f := range r.Findings {
		n += len(f.Findings)
	}
	return n
}

// Config holds scan limits and rule settings.
type Config struct {
	Workers      int
	FileTimeout  time.Duration
	ScanTimeout  time.Duration
	MaxFileBytes int
	MaxTreeDepth int
	MaxCallDepth int

	// Languages is an allow-list; empty enables every registered language.
	Languages []lang.Language

	// EntryPoints are added to every request's entry points.
	EntryPoints []string

	Rules         rules.Config
	DisabledRules []string
}

func (c *Config) applyDefaults() {
	if c.Workers <= 0 {
		c.Workers = runtime.NumCPU()
	}
	if c.FileTimeout <= 0 {
		c.FileTimeout = DefaultFileTimeout
	}
	if c.ScanTimeout <= 0 {
		c.ScanTimeout = DefaultScanTimeout
	}
	if c.MaxCallDepth <= 0 {
		c.MaxCallDepth = diagram.DefaultMaxDepth
	}
}

// Scanner runs scans. It holds only read-only state after New returns, so
// one Scanner may serve concurrent scans.
type Scanner struct {
	cfg        Config
	specs      []lang.Spec
	ruleset    []rules.Rule
	extractors structure.Extractors
	registry   *lang.Registry
	parser     *syntax.Parser
	engine     *rules.Engine
	allowed    map[lang.Language]bool
	logger     logrus.FieldLogger
	onProgress func(ProgressEvent)
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithLogger sets the logger for skips, rule failures and the scan summary.
func WithLogger(l logrus.FieldLogger) Option {
	return func(s *Scanner) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithProgress registers a callback for progress events. It is called
// from worker goroutines and must be safe for concurrent use.
func WithProgress(fn func(ProgressEvent)) Option {
	return func(s *Scanner) { s.onProgress = fn }
}

// WithSpecs replaces the built-in language specs.
func WithSpecs(specs []lang.Spec) Option {
	return func(s *Scanner) { s.specs = specs }
}

// WithRules replaces the built-in rule catalogue.
func WithRules(rs []rules.Rule) Option {
	return func(s *Scanner) { s.ruleset = rs }
}

// WithExtractors replaces the built-in extractors.
func WithExtractors(x structure.Extractors) Option {
	return func(s *Scanner) { s.extractors = x }
}

// New builds a Scanner. Grammars are loaded here, once; extractor and rule
// availability are recorded in the registry's capability report.
func New(cfg Config, opts ...Option) *Scanner {
	cfg.applyDefaults()

	discard := logrus.New()
	discard.SetOutput(io.Discard)

	s := &Scanner{
		cfg:        cfg,
		specs:      lang.BuiltinSpecs(),
		ruleset:    rules.Builtin(),
		extractors: structure.DefaultExtractors(),
		logger:     discard,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.engine = rules.NewEngine(s.ruleset,
		rules.WithConfig(cfg.Rules),
		rules.WithDisabled(cfg.DisabledRules...),
		rules.WithLogger(s.logger),
	)

	ids := make([]lang.Language, 0, len(s.specs))
	for _, sp := range s.specs {
		ids = append(ids, sp.ID)
	}
	s.registry = lang.NewRegistry(s.specs,
		lang.WithExtractors(s.extractors.Languages()...),
		lang.WithRules(s.engine.Languages(ids)...),
	)
	for _, c := range s.registry.Capabilities() {
		if c.LoadError != "" {
			s.logger.WithFields(logrus.Fields{
				"language": c.Language,
				"error":    c.LoadError,
			}).Warn("grammar unavailable")
		}
	}
	s.parser = syntax.NewParser(s.registry,
		syntax.WithMaxBytes(cfg.MaxFileBytes),
		syntax.WithMaxDepth(cfg.MaxTreeDepth),
	)

	if len(cfg.Languages) > 0 {
		s.allowed = make(map[lang.Language]bool, len(cfg.Languages))
		for _, l := range cfg.Languages {
			s.allowed[l] = true
		}
	}
	return s
}

// Registry returns the scanner's language registry.
func (s *Scanner) Registry() *lang.Registry { return s.registry }

// Engine returns the scanner's rule engine.
func (s *Scanner) Engine() *rules.Engine { return s.engine }

// Capabilities returns the per-language capability report.
func (s *Scanner) Capabilities() []lang.Capability { return s.registry.Capabilities() }

// run is the per-request view of the scanner: the rule engine after
// request-level disables and the request's language allow-list.
type run struct {
	scanID  string
	engine  *rules.Engine
	allowed map[lang.Language]bool
}

func (s *Scanner) newRun(scanID string, req Request) *run {
	r := &run{scanID: scanID, engine: s.engine.Without(req.DisabledRules...)}
	if len(req.Languages) > 0 {
		r.allowed = make(map[lang.Language]bool, len(req.Languages))
		for _, l := range req.Languages {
			r.allowed[l] = true
		}
	}
	return r
}

// enabled reports whether files of l are analyzed in this run.
func (s *Scanner) enabled(r *run, l lang.Language) bool {
	if s.allowed != nil && !s.allowed[l] {
		return false
	}
	return r.allowed == nil || r.allowed[l]
}

// fileOutcome is the phase-one result for one file.
type fileOutcome struct {
	model      *structure.Model
	findings   *FileFindings
	ruleErrors []rules.RuleError
	skip       *Skip
}

// Scan analyzes the request. Files are processed in parallel on a bounded
// pool; one file failing never fails the scan. When ctx ends or the scan
// timeout elapses, results of completed files are kept, unfinished files
// are skipped as canceled, and the returned error wraps the context error
// alongside the non-nil Result.
func (s *Scanner) Scan(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	res := &Result{
		ScanID:       uuid.NewString(),
		Capabilities: s.registry.Capabilities(),
	}
	log := s.logger.WithField("scan_id", res.ScanID)

	ctx, cancel := context.WithTimeout(ctx, s.cfg.ScanTimeout)
	defer cancel()

	r := s.newRun(res.ScanID, req)
	after := s.analyze(ctx, r, req.Files, true)
	var before []fileOutcome
	if req.PR() {
		before = s.analyze(ctx, r, req.Before, false)
	}

	// Barrier: everything below needs the whole batch.
	for _, o := range after {
		if o.skip != nil {
			res.Skipped = append(res.Skipped, *o.skip)
			log.WithFields(logrus.Fields{
				"file":     o.skip.Path,
				"language": o.skip.Language,
				"reason":   o.skip.Reason,
			}).Warn("file skipped")
			continue
		}
		res.Models = append(res.Models, o.model)
		if o.findings != nil {
			res.Findings = append(res.Findings, *o.findings)
		}
		res.RuleErrors = append(res.RuleErrors, o.ruleErrors...)
	}
	res.Index = structure.NewIndex(res.Models)

	var changes *structure.ChangeSet
	if req.PR() {
		cs := s.diffOutcomes(log, before, after)
		changes = &cs
		res.Changes = changes
	}

	res.Diagrams = s.diagrams(res.Index, s.entries(res.Index, req, changes), changes)

	res.Duration = time.Since(start)
	log.WithFields(logrus.Fields{
		"files":    len(req.Files),
		"findings": res.FindingCount(),
		"skipped":  len(res.Skipped),
		"duration": res.Duration,
	}).Info("scan complete")

	if err := ctx.Err(); err != nil {
		res.Canceled = true
		log.WithError(err).Warn("scan canceled; returning partial results")
		return res, fmt.Errorf("scan %s: %w", res.ScanID, err)
	}
	return res, nil
}

// diffOutcomes diffs the analyzed before and after files. A path skipped on
// either side is left out of both, so a file that could not be read shows
// up as a skip rather than as every entity removed or added.
func (s *Scanner) diffOutcomes(log logrus.FieldLogger, before, after []fileOutcome) structure.ChangeSet {
	skippedPaths := make(map[string]bool)
	for _, o := range before {
		if o.skip != nil {
			skippedPaths[o.skip.Path] = true
			log.WithFields(logrus.Fields{
				"file":   o.skip.Path,
				"reason": o.skip.Reason,
			}).Debug("before file skipped")
		}
	}
	for _, o := range after {
		if o.skip != nil {
			skippedPaths[o.skip.Path] = true
		}
	}

	keep := func(outcomes []fileOutcome) []*structure.Model {
		var models []*structure.Model
		for _, o := range outcomes {
			if o.skip == nil && !skippedPaths[o.model.Path] {
				models = append(models, o.model)
			}
		}
		return models
	}
	old, cur := keep(before), keep(after)
	// Linking the before side keeps Go and Rust method sets comparable.
	structure.NewIndex(old)
	return structure.DiffModels(old, cur)
}

// analyze runs phase one over files. Results are indexed like files, so
// output order never depends on scheduling.
func (s *Scanner) analyze(ctx context.Context, r *run, files []File, evaluate bool) []fileOutcome {
	scanID := r.scanID
	outcomes := make([]fileOutcome, len(files))

	var g errgroup.Group
	g.SetLimit(s.cfg.Workers)
	for i, f := range files {
		if ctx.Err() != nil {
			for j := i; j < len(files); j++ {
				outcomes[j] = fileOutcome{skip: &Skip{Path: files[j].Path, Reason: SkipCanceled, Detail: ctx.Err().Error()}}
			}
			break
		}
		s.emit(ProgressEvent{ScanID: scanID, File: f.Path, Status: ProgressPending})

		g.Go(func() error {
			s.emit(ProgressEvent{ScanID: scanID, File: f.Path, Status: ProgressWorking})
			o := s.analyzeFile(ctx, r, f, evaluate)
			outcomes[i] = o
			if o.skip != nil {
				s.emit(ProgressEvent{ScanID: scanID, File: f.Path, Status: ProgressSkipped, Message: string(o.skip.Reason)})
				return nil
			}
			msg := ""
			if o.findings != nil {
				msg = fmt.Sprintf("%d findings", len(o.findings.Findings))
			}
			s.emit(ProgressEvent{ScanID: scanID, File: f.Path, Status: ProgressComplete, Message: msg})
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

// analyzeFile runs resolve, parse, extract and evaluate for one file. The
// CST is dropped when it returns.
func (s *Scanner) analyzeFile(ctx context.Context, r *run, f File, evaluate bool) (out fileOutcome) {
	l, err := s.registry.Resolve(f.Path)
	if err != nil {
		return skipped(f.Path, l, SkipUnsupported, err)
	}
	if !s.enabled(r, l) {
		return skipped(f.Path, l, SkipUnsupported, fmt.Errorf("%s not enabled", l))
	}
	if err := ctx.Err(); err != nil {
		return skipped(f.Path, l, SkipCanceled, err)
	}

	defer func() {
		if rec := recover(); rec != nil {
			out = skipped(f.Path, l, SkipParseFailed, fmt.Errorf("panic: %v", rec))
		}
	}()

	fctx, cancel := context.WithTimeout(ctx, s.cfg.FileTimeout)
	defer cancel()

	tree, err := s.parser.Parse(fctx, f.Path, f.Content, l)
	if err != nil {
		return skipped(f.Path, l, classify(ctx, err), err)
	}
	model := s.extractors.Extract(tree)
	out.model = model
	if !evaluate {
		return out
	}

	res, err := r.engine.Evaluate(fctx, tree, model)
	if err != nil {
		reason := SkipTimeout
		if ctx.Err() != nil {
			reason = SkipCanceled
		}
		return skipped(f.Path, l, reason, err)
	}
	out.findings = &FileFindings{
		Path:     f.Path,
		Language: l,
		Findings: res.Findings,
		Missing:  model.Missing,
	}
	out.ruleErrors = res.Errors
	return out
}

func skipped(path string, l lang.Language, reason SkipReason, err error) fileOutcome {
	return fileOutcome{skip: &Skip{Path: path, Language: l, Reason: reason, Detail: err.Error()}}
}

// classify maps a parse error to a skip reason. A canceled parse is a
// timeout unless the scan itself ended.
func classify(scanCtx context.Context, err error) SkipReason {
	switch {
	case errors.Is(err, syntax.ErrTooLarge):
		return SkipTooLarge
	case errors.Is(err, syntax.ErrEncoding):
		return SkipEncoding
	case errors.Is(err, syntax.ErrNoGrammar):
		return SkipUnsupported
	case errors.Is(err, syntax.ErrCanceled):
		if scanCtx.Err() != nil {
			return SkipCanceled
		}
		return SkipTimeout
	}
	return SkipParseFailed
}

// entries picks sequence-diagram entries: the added or modified callables
// of a PR scan, otherwise the configured and requested entry points.
func (s *Scanner) entries(idx *structure.Index, req Request, changes *structure.ChangeSet) []*structure.Entity {
	var out []*structure.Entity
	if changes != nil {
		for _, c := range changes.Changes {
			if c.Status != structure.StatusAdded && c.Status != structure.StatusModified {
				continue
			}
			if e := idx.Lookup(c.Key); e != nil && e.Kind.IsCallable() && !e.Local {
				out = append(out, e)
			}
		}
		return out
	}

	names := append(append([]string(nil), s.cfg.EntryPoints...), req.EntryPoints...)
	seen := make(map[string]bool)
	for _, name := range names {
		for _, e := range lookupCallables(idx, name) {
			if !seen[e.QualifiedName] {
				seen[e.QualifiedName] = true
				out = append(out, e)
			}
		}
	}
	return out
}

// lookupCallables resolves an entry point given as a qualified name, a
// "Owner.name" pair or a bare name.
func lookupCallables(idx *structure.Index, name string) []*structure.Entity {
	if e := idx.Lookup(name); e != nil {
		return []*structure.Entity{e}
	}
	owner, simple := "", name
	if i := strings.LastIndex(name, "."); i >= 0 {
		owner, simple = name[:i], name[i+1:]
	}
	var out []*structure.Entity
	for _, e := range idx.ByName(simple) {
		if !e.Kind.IsCallable() || e.Local {
			continue
		}
		if owner != "" && e.Owner() != owner {
			continue
		}
		out = append(out, e)
	}
	return out
}

func (s *Scanner) diagrams(idx *structure.Index, entries []*structure.Entity, changes *structure.ChangeSet) []diagram.Document {
	var docs []diagram.Document
	if cd := diagram.BuildClassDiagram(idx, changes); !cd.Empty() {
		docs = append(docs, diagram.ClassDocument(cd, changes))
	}
	if len(entries) > 0 {
		sd := diagram.BuildSequenceDiagram(idx, entries, s.cfg.MaxCallDepth, changes)
		if !sd.Empty() {
			docs = append(docs, diagram.SequenceDocument(sd, changes))
		}
	}
	return docs
}

// emit sends a progress event if a callback is registered.
func (s *Scanner) emit(ev ProgressEvent) {
	if s.onProgress != nil {
		s.onProgress(ev)
	}
}
