package lang

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"unsafe"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
)

// Spec declares a language at registration time.
type Spec struct {
	ID         Language
	Extensions []string // with leading dot, matched case-insensitively
	Filenames  []string // exact base names, e.g. "BUCK"
	Grammar    func() unsafe.Pointer
}

// Option adjusts a Registry while it is being built.
type Option func(*Registry)

// WithExtractors marks the given languages as having a structural extractor.
func WithExtractors(langs ...Language) Option {
	return func(r *Registry) {
		for _, l := range langs {
			if c, ok := r.caps[l]; ok {
				c.ExtractorAvailable = true
			}
		}
	}
}

// WithRules marks the given languages as having at least one applicable rule.
func WithRules(langs ...Language) Option {
	return func(r *Registry) {
		for _, l := range langs {
			if c, ok := r.caps[l]; ok {
				c.RulesAvailable = true
			}
		}
	}
}

// Registry maps file names to languages and holds the loaded grammars.
// It is populated once by NewRegistry and read-only afterwards, so lookups
// need no locking.
type Registry struct {
	byExt    map[string]Language
	byName   map[string]Language
	grammars map[Language]*tree_sitter.Language
	caps     map[Language]*Capability
	order    []Language
}

// NewRegistry loads every spec's grammar. A grammar that panics, returns nil
// or has an incompatible ABI leaves its language registered but unavailable.
func NewRegistry(specs []Spec, opts ...Option) *Registry {
	r := &Registry{
		byExt:    make(map[string]Language),
		byName:   make(map[string]Language),
		grammars: make(map[Language]*tree_sitter.Language),
		caps:     make(map[Language]*Capability),
	}

	for _, s := range specs {
		if _, dup := r.caps[s.ID]; !dup {
			r.order = append(r.order, s.ID)
		}
		c := &Capability{Language: s.ID}
		r.caps[s.ID] = c

		for _, ext := range s.Extensions {
			r.byExt[strings.ToLower(ext)] = s.ID
		}
		for _, name := range s.Filenames {
			r.byName[name] = s.ID
		}

		g, err := loadGrammar(s)
		if err != nil {
			c.LoadError = err.Error()
			continue
		}
		r.grammars[s.ID] = g
		c.GrammarAvailable = true
	}

	for _, opt := range opts {
		opt(r)
	}
	return r
}

func loadGrammar(s Spec) (g *tree_sitter.Language, err error) {
	if s.Grammar == nil {
		return nil, fmt.Errorf("no grammar registered for %s", s.ID)
	}
	defer func() {
		if rec := recover(); rec != nil {
			g, err = nil, fmt.Errorf("load grammar %s: %v", s.ID, rec)
		}
	}()

	ptr := s.Grammar()
	if ptr == nil {
		return nil, fmt.Errorf("grammar %s returned nil", s.ID)
	}
	g = tree_sitter.NewLanguage(ptr)

	// SetLanguage is where an ABI mismatch surfaces.
	p := tree_sitter.NewParser()
	defer p.Close()
	if err := p.SetLanguage(g); err != nil {
		return nil, fmt.Errorf("grammar %s: %w", s.ID, err)
	}
	return g, nil
}

// Detect maps a path to its registered language regardless of grammar
// availability.
func (r *Registry) Detect(path string) (Language, bool) {
	if l, ok := r.byName[filepath.Base(path)]; ok {
		return l, true
	}
	l, ok := r.byExt[strings.ToLower(filepath.Ext(path))]
	return l, ok
}

// Resolve returns the language for path, or Unsupported with ErrUnsupported
// when the extension is unknown or its grammar is unavailable.
func (r *Registry) Resolve(path string) (Language, error) {
	l, ok := r.Detect(path)
	if !ok {
		return Unsupported, fmt.Errorf("%s: %w", path, ErrUnsupported)
	}
	if _, ok := r.grammars[l]; !ok {
		return Unsupported, fmt.Errorf("%s: grammar for %s unavailable: %w", path, l, ErrUnsupported)
	}
	return l, nil
}

// Grammar returns the loaded tree-sitter grammar for l.
func (r *Registry) Grammar(l Language) (*tree_sitter.Language, bool) {
	g, ok := r.grammars[l]
	return g, ok
}

// Capability returns the capability flags for l.
func (r *Registry) Capability(l Language) (Capability, bool) {
	c, ok := r.caps[l]
	if !ok {
		return Capability{}, false
	}
	return *c, true
}

// Capabilities returns a copy of every language's flags in registration order.
func (r *Registry) Capabilities() []Capability {
	out := make([]Capability, 0, len(r.order))
	for _, l := range r.order {
		out = append(out, *r.caps[l])
	}
	return out
}

// Languages returns the registered languages in registration order.
func (r *Registry) Languages() []Language {
	out := make([]Language, len(r.order))
	copy(out, r.order)
	return out
}

// Extensions returns the sorted extensions mapped to l.
func (r *Registry) Extensions(l Language) []string {
	var out []string
	for ext, id := range r.byExt {
		if id == l {
			out = append(out, ext)
		}
	}
	sort.Strings(out)
	return out
}
