package rules

import (
	"context"
	"fmt"
	"io"
	"runtime"
	"runtime/debug"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/dusk-indust/codelens/internal/lang"
	"github.com/dusk-indust/codelens/internal/structure"
	"github.com/dusk-indust/codelens/internal/syntax"
)

// Needs declares which inputs a rule reads.
type Needs uint8

const (
	NeedsTree Needs = 1 << iota
	NeedsModel
)

// Config holds the thresholds used by structural rules.
type Config struct {
	MaxFunctionLines int
	MaxParameters    int
	MaxClassMembers  int
	MaxLoopNesting   int
}

// DefaultConfig returns the built-in thresholds.
func DefaultConfig() Config {
	return Config{
		MaxFunctionLines: 50,
		MaxParameters:    5,
		MaxClassMembers:  20,
		MaxLoopNesting:   3,
	}
}

// Input is what a rule sees for one file. Rules must treat it as read-only.
type Input struct {
	Tree   *syntax.Tree
	Model  *structure.Model
	Config Config
}

// Rule is a side-effect-free check. Severity and category are fixed by the
// definition; Check reports through a Reporter that stamps them.
type Rule struct {
	ID          string
	Category    Category
	Severity    Severity
	Description string

	// Languages restricts the rule; nil means every language.
	Languages []lang.Language

	Needs Needs
	Check func(in *Input, r *Reporter)
}

// AppliesTo reports whether the rule handles l.
func (r *Rule) AppliesTo(l lang.Language) bool {
	if len(r.Languages) == 0 {
		return true
	}
	for _, x := range r.Languages {
		if x == l {
			return true
		}
	}
	return false
}

// Result is the outcome of evaluating every applicable rule on one file.
type Result struct {
	Findings []Finding
	Errors   []RuleError
}

// Engine dispatches rules per file.
type Engine struct {
	rules  []*Rule
	cfg    Config
	limit  int
	logger logrus.FieldLogger
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithConfig sets the rule thresholds. Zero fields keep the defaults.
func WithConfig(cfg Config) EngineOption {
	return func(e *Engine) {
		def := DefaultConfig()
		if cfg.MaxFunctionLines <= 0 {
			cfg.MaxFunctionLines = def.MaxFunctionLines
		}
		if cfg.MaxParameters <= 0 {
			cfg.MaxParameters = def.MaxParameters
		}
		if cfg.MaxClassMembers <= 0 {
			cfg.MaxClassMembers = def.MaxClassMembers
		}
		if cfg.MaxLoopNesting <= 0 {
			cfg.MaxLoopNesting = def.MaxLoopNesting
		}
		e.cfg = cfg
	}
}

// WithDisabled removes rules by ID.
func WithDisabled(ids ...string) EngineOption {
	return func(e *Engine) {
		off := make(map[string]bool, len(ids))
		for _, id := range ids {
			off[strings.TrimSpace(id)] = true
		}
		kept := e.rules[:0]
		for _, r := range e.rules {
			if !off[r.ID] {
				kept = append(kept, r)
			}
		}
		e.rules = kept
	}
}

// WithConcurrency bounds how many rules run at once for one file.
func WithConcurrency(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.limit = n
		}
	}
}

// WithLogger sets the logger used for isolated rule failures.
func WithLogger(l logrus.FieldLogger) EngineOption {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewEngine creates an Engine over rules.
func NewEngine(rules []Rule, opts ...EngineOption) *Engine {
	discard := logrus.New()
	discard.SetOutput(io.Discard)

	e := &Engine{
		cfg:    DefaultConfig(),
		limit:  runtime.NumCPU(),
		logger: discard,
	}
	for i := range rules {
		r := rules[i]
		e.rules = append(e.rules, &r)
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Without returns an engine sharing e's rules and settings minus the given
// rule IDs. e is left untouched.
func (e *Engine) Without(ids ...string) *Engine {
	if len(ids) == 0 {
		return e
	}
	off := make(map[string]bool, len(ids))
	for _, id := range ids {
		off[strings.TrimSpace(id)] = true
	}
	cp := *e
	cp.rules = make([]*Rule, 0, len(e.rules))
	for _, r := range e.rules {
		if !off[r.ID] {
			cp.rules = append(cp.rules, r)
		}
	}
	return &cp
}

// Rules returns the rules the engine dispatches.
func (e *Engine) Rules() []Rule {
	out := make([]Rule, len(e.rules))
	for i, r := range e.rules {
		out[i] = *r
	}
	return out
}

// Covers reports whether at least one rule applies to l.
func (e *Engine) Covers(l lang.Language) bool {
	for _, r := range e.rules {
		if r.AppliesTo(l) {
			return true
		}
	}
	return false
}

// Languages returns which of langs have at least one applicable rule.
func (e *Engine) Languages(langs []lang.Language) []lang.Language {
	var out []lang.Language
	for _, l := range langs {
		if e.Covers(l) {
			out = append(out, l)
		}
	}
	return out
}

func (e *Engine) applicable(in *Input) []*Rule {
	var out []*Rule
	for _, r := range e.rules {
		if !r.AppliesTo(in.Tree.Language) {
			continue
		}
		if r.Needs&NeedsModel != 0 && in.Model == nil {
			continue
		}
		out = append(out, r)
	}
	return out
}

// Evaluate runs every applicable rule on one file. Rules run concurrently;
// each runs inside a recover boundary so a failing rule only loses its own
// findings. The context is checked before each rule starts; on
// cancellation the findings of rules that already finished are returned
// with the context's error.
func (e *Engine) Evaluate(ctx context.Context, tree *syntax.Tree, model *structure.Model) (Result, error) {
	in := &Input{Tree: tree, Model: model, Config: e.cfg}
	rules := e.applicable(in)

	type outcome struct {
		findings []Finding
		err      *RuleError
		ran      bool
	}
	outcomes := make([]outcome, len(rules))

	var g errgroup.Group
	g.SetLimit(e.limit)
	for i, r := range rules {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			findings, err := e.run(r, in)
			outcomes[i] = outcome{findings: findings, err: err, ran: true}
			return nil
		})
	}
	_ = g.Wait()

	var res Result
	for i, o := range outcomes {
		if !o.ran {
			continue
		}
		if o.err != nil {
			e.logger.WithFields(logrus.Fields{
				"rule":  rules[i].ID,
				"file":  tree.Path,
				"error": o.err.Message,
			}).Warn("rule failed; findings dropped")
			res.Errors = append(res.Errors, *o.err)
			continue
		}
		res.Findings = append(res.Findings, o.findings...)
	}
	SortFindings(res.Findings)
	return res, ctx.Err()
}

func (e *Engine) run(r *Rule, in *Input) (findings []Finding, ruleErr *RuleError) {
	defer func() {
		if rec := recover(); rec != nil {
			e.logger.WithField("rule", r.ID).Debugf("panic stack: %s", debug.Stack())
			findings = nil
			ruleErr = &RuleError{RuleID: r.ID, File: in.Tree.Path, Message: fmt.Sprint(rec)}
		}
	}()
	rep := &Reporter{rule: r, tree: in.Tree}
	r.Check(in, rep)
	return rep.findings, nil
}

// Reporter collects findings for one rule on one file, stamping the rule's
// fixed identity, category and severity.
type Reporter struct {
	rule     *Rule
	tree     *syntax.Tree
	findings []Finding
}

// Report records a finding at a 1-based line and column.
func (r *Reporter) Report(line, col int, message, suggestion string) {
	r.findings = append(r.findings, Finding{
		RuleID:     r.rule.ID,
		Category:   r.rule.Category,
		Severity:   r.rule.Severity,
		FilePath:   r.tree.Path,
		Line:       line,
		Column:     col,
		Message:    message,
		Suggestion: suggestion,
		Snippet:    sourceLine(r.tree.Source, line),
	})
}

// ReportNode records a finding at n's start position.
func (r *Reporter) ReportNode(n *syntax.Node, message, suggestion string) {
	r.Report(n.StartLine(), n.StartColumn(), message, suggestion)
}

const maxSnippet = 200

// sourceLine returns the trimmed text of a 1-based line.
func sourceLine(src []byte, line int) string {
	if line < 1 {
		return ""
	}
	cur := 1
	start := 0
	for i := 0; i < len(src) && cur < line; i++ {
		if src[i] == '\n' {
			cur++
			start = i + 1
		}
	}
	if cur != line {
		return ""
	}
	end := start
	for end < len(src) && src[end] != '\n' {
		end++
	}
	s := strings.TrimSpace(string(src[start:end]))
	if len(s) > maxSnippet {
		s = s[:maxSnippet] + "..."
	}
	return s
}
