package syntax

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"unicode/utf8"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/dusk-indust/codelens/internal/lang"
)

const (
	// DefaultMaxBytes rejects files the grammars handle pathologically.
	DefaultMaxBytes = 1 << 20

	// DefaultMaxDepth bounds CST nesting kept after conversion.
	DefaultMaxDepth = 512
)

var (
	// ErrTooLarge reports a source above the configured size limit.
	ErrTooLarge = errors.New("source exceeds size limit")

	// ErrEncoding reports a source that is not valid UTF-8.
	ErrEncoding = errors.New("source is not valid UTF-8")

	// ErrCanceled reports a parse abandoned because its context ended.
	ErrCanceled = errors.New("parse canceled")

	// ErrNoGrammar reports a language without a loaded grammar.
	ErrNoGrammar = errors.New("no grammar loaded")
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Parser turns source text into a Tree. Syntax errors never fail a parse;
// they show up as ERROR and MISSING nodes. Only oversized input, invalid
// encoding, cancellation and a missing grammar return an error.
//
// A new tree-sitter parser is created per Parse call, so one Parser may be
// shared by any number of goroutines.
type Parser struct {
	registry *lang.Registry
	maxBytes int
	maxDepth int
}

// ParserOption configures a Parser.
type ParserOption func(*Parser)

// WithMaxBytes sets the size limit. Values <= 0 keep the default.
func WithMaxBytes(n int) ParserOption {
	return func(p *Parser) {
		if n > 0 {
			p.maxBytes = n
		}
	}
}

// WithMaxDepth sets the CST depth limit. Values <= 0 keep the default.
func WithMaxDepth(n int) ParserOption {
	return func(p *Parser) {
		if n > 0 {
			p.maxDepth = n
		}
	}
}

// NewParser creates a Parser over the grammars loaded in registry.
func NewParser(registry *lang.Registry, opts ...ParserOption) *Parser {
	p := &Parser{
		registry: registry,
		maxBytes: DefaultMaxBytes,
		maxDepth: DefaultMaxDepth,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// MaxBytes returns the configured size limit.
func (p *Parser) MaxBytes() int { return p.maxBytes }

// Parse builds the CST for source. The tree-sitter tree is converted into
// an owned Tree and released before Parse returns.
func (p *Parser) Parse(ctx context.Context, path string, source []byte, l lang.Language) (*Tree, error) {
	if len(source) > p.maxBytes {
		return nil, fmt.Errorf("%s: %d bytes > %d: %w", path, len(source), p.maxBytes, ErrTooLarge)
	}
	source = bytes.TrimPrefix(source, utf8BOM)
	if !utf8.Valid(source) {
		return nil, fmt.Errorf("%s: %w", path, ErrEncoding)
	}

	grammar, ok := p.registry.Grammar(l)
	if !ok {
		return nil, fmt.Errorf("%s: %s: %w", path, l, ErrNoGrammar)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w: %w", path, ErrCanceled, err)
	}

	parser := tree_sitter.NewParser()
	defer parser.Close()

	if err := parser.SetLanguage(grammar); err != nil {
		return nil, fmt.Errorf("set language %s: %w", l, err)
	}

	length := len(source)
	tsTree := parser.ParseWithOptions(func(i int, _ tree_sitter.Point) []byte {
		if i < length {
			return source[i:]
		}
		return []byte{}
	}, nil, &tree_sitter.ParseOptions{
		ProgressCallback: func(tree_sitter.ParseState) bool {
			return ctx.Err() != nil
		},
	})
	if tsTree == nil {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%s: %w: %w", path, ErrCanceled, err)
		}
		return nil, fmt.Errorf("tree-sitter returned nil tree for %s", path)
	}
	defer tsTree.Close()

	cursor := tsTree.Walk()
	defer cursor.Close()

	b := &builder{maxDepth: p.maxDepth}
	root := b.build(cursor, nil, 0)

	return &Tree{
		Path:       path,
		Language:   l,
		Source:     source,
		Root:       root,
		ErrorCount: b.errors,
		Truncated:  b.truncated,
	}, nil
}

// builder copies a tree-sitter tree into Nodes.
type builder struct {
	maxDepth  int
	errors    int
	truncated bool
}

func (b *builder) build(cursor *tree_sitter.TreeCursor, parent *Node, depth int) *Node {
	tn := cursor.Node()
	start, end := tn.StartPosition(), tn.EndPosition()

	n := &Node{
		Kind:      tn.Kind(),
		Field:     cursor.FieldName(),
		Named:     tn.IsNamed(),
		IsError:   tn.IsError(),
		IsMissing: tn.IsMissing(),
		StartByte: uint32(tn.StartByte()),
		EndByte:   uint32(tn.EndByte()),
		Start:     Point{Row: uint32(start.Row), Column: uint32(start.Column)},
		End:       Point{Row: uint32(end.Row), Column: uint32(end.Column)},
		Parent:    parent,
	}
	if n.IsError || n.IsMissing {
		b.errors++
	}

	if depth >= b.maxDepth {
		if tn.ChildCount() > 0 {
			b.truncated = true
		}
		return n
	}

	if cursor.GotoFirstChild() {
		n.Children = make([]*Node, 0, tn.ChildCount())
		for {
			n.Children = append(n.Children, b.build(cursor, n, depth+1))
			if !cursor.GotoNextSibling() {
				break
			}
		}
		cursor.GotoParent()
	}
	return n
}
