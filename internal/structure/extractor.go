package structure

import (
	"sort"

	"github.com/dusk-indust/codelens/internal/lang"
	"github.com/dusk-indust/codelens/internal/syntax"
)

// Extractor builds entities for one language from its CST.
type Extractor interface {
	// Capabilities lists what the extractor produces.
	Capabilities() []Capability

	// Extract walks the tree and returns entities in source order.
	Extract(tree *syntax.Tree) []Entity
}

// Extractors maps languages to their extractor.
type Extractors map[lang.Language]Extractor

// DefaultExtractors returns the built-in extractor for every supported
// language.
func DefaultExtractors() Extractors {
	es := &esExtractor{}
	return Extractors{
		lang.Go:         &goExtractor{},
		lang.Python:     &pyExtractor{},
		lang.JavaScript: es,
		lang.TypeScript: es,
		lang.TSX:        es,
		lang.Rust:       &rsExtractor{},
		lang.Java:       &javaExtractor{},
	}
}

// Languages returns the languages with a built-in extractor, sorted.
func Languages() []lang.Language {
	return DefaultExtractors().Languages()
}

// Languages returns the languages in the set, sorted.
func (x Extractors) Languages() []lang.Language {
	out := make([]lang.Language, 0, len(x))
	for l := range x {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Extract builds the Model for tree. A language without an extractor yields
// an empty model with every capability marked missing.
func (x Extractors) Extract(tree *syntax.Tree) *Model {
	m := &Model{
		Path:      tree.Path,
		Language:  tree.Language,
		Entities:  []Entity{},
		Truncated: tree.Truncated,
	}
	ext, ok := x[tree.Language]
	if !ok {
		m.Missing = append([]Capability(nil), AllCapabilities...)
		return m
	}
	if tree.Root != nil {
		m.Entities = ext.Extract(tree)
	}
	m.Missing = missing(ext.Capabilities())
	return m
}

// Extract builds the Model for tree with the built-in extractors.
func Extract(tree *syntax.Tree) *Model {
	return DefaultExtractors().Extract(tree)
}

func missing(have []Capability) []Capability {
	var out []Capability
	for _, c := range AllCapabilities {
		found := false
		for _, h := range have {
			if h == c {
				found = true
				break
			}
		}
		if !found {
			out = append(out, c)
		}
	}
	return out
}
