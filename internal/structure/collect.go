package structure

import (
	"fmt"
	"strings"

	"github.com/minio/highwayhash"

	"github.com/dusk-indust/codelens/internal/syntax"
)

// maxWalkDepth bounds extractor recursion independently of the parser's
// own depth limit.
const maxWalkDepth = 256

var hashKey = []byte("codelens-structure-fingerprint-k")

// scopeModule marks a named scope that is not an entity, such as a Rust mod.
const scopeModule Kind = "module"

// frame is one enclosing scope during a walk.
type frame struct {
	name  string
	kind  Kind
	index int // entity index, -1 for scopes without an entity (Rust mod)
}

// collector accumulates entities for one file. The per-language extractors
// drive it; it owns naming, ranges and scope bookkeeping.
type collector struct {
	tree     *syntax.Tree
	entities []Entity
	frames   []frame
	seen     map[string]int
}

func newCollector(tree *syntax.Tree) *collector {
	return &collector{tree: tree, seen: make(map[string]int)}
}

func (c *collector) text(n *syntax.Node) string {
	return c.tree.Text(n)
}

func (c *collector) rangeOf(n *syntax.Node) Range {
	return Range{
		File:      c.tree.Path,
		StartLine: n.StartLine(),
		StartCol:  n.StartColumn(),
		EndLine:   n.EndLine(),
		EndCol:    int(n.End.Column) + 1,
	}
}

func (c *collector) scopeNames() []string {
	if len(c.frames) == 0 {
		return nil
	}
	out := make([]string, len(c.frames))
	for i, f := range c.frames {
		out[i] = f.name
	}
	return out
}

func (c *collector) push(name string, kind Kind, index int) {
	c.frames = append(c.frames, frame{name: name, kind: kind, index: index})
}

func (c *collector) pop() {
	c.frames = c.frames[:len(c.frames)-1]
}

// inClass returns the index of the innermost frame if it is a class.
func (c *collector) inClass() int {
	if len(c.frames) == 0 {
		return -1
	}
	f := c.frames[len(c.frames)-1]
	if f.kind != KindClass {
		return -1
	}
	return f.index
}

// inFunction reports whether any enclosing frame is a function or method.
func (c *collector) inFunction() bool {
	for _, f := range c.frames {
		if f.kind.IsCallable() {
			return true
		}
	}
	return false
}

// qualify builds <file>::<scope.path.>name, appending /arity for callables.
func (c *collector) qualify(name string, kind Kind, arity int) string {
	var b strings.Builder
	b.WriteString(c.tree.Path)
	b.WriteString("::")
	for _, f := range c.frames {
		b.WriteString(f.name)
		b.WriteByte('.')
	}
	b.WriteString(name)
	if kind.IsCallable() {
		fmt.Fprintf(&b, "/%d", arity)
	}
	return b.String()
}

// add appends e, filling scope and qualified name, and returns its index.
// Repeated declarations of one name (redefinition, shadowing in blocks)
// get a declaration ordinal, name#2, name#3, so identities stay unique and
// survive line shifts.
func (c *collector) add(e Entity) int {
	e.Scope = c.scopeNames()
	if e.QualifiedName == "" {
		switch e.Kind {
		case KindImport:
			e.QualifiedName = c.tree.Path + "::import:" + e.Source
		case KindExport:
			e.QualifiedName = c.tree.Path + "::export:" + e.Name
		default:
			e.QualifiedName = c.qualify(e.Name, e.Kind, len(e.Params))
		}
	}
	c.seen[e.QualifiedName]++
	if n := c.seen[e.QualifiedName]; n > 1 {
		e.QualifiedName = fmt.Sprintf("%s#%d", e.QualifiedName, n)
	}
	c.entities = append(c.entities, e)
	return len(c.entities) - 1
}

func (c *collector) addMember(classIdx int, m Member) {
	if classIdx < 0 || classIdx >= len(c.entities) {
		return
	}
	c.entities[classIdx].Members = append(c.entities[classIdx].Members, m)
}

func (c *collector) addBase(classIdx int, kind RelationKind, target string) {
	target = strings.TrimSpace(target)
	if classIdx < 0 || target == "" {
		return
	}
	c.entities[classIdx].Bases = append(c.entities[classIdx].Bases, Relation{Kind: kind, Target: target})
}

func (c *collector) hasMember(classIdx int, name string) bool {
	for _, m := range c.entities[classIdx].Members {
		if m.Name == name {
			return true
		}
	}
	return false
}

// findClass returns the index of the first class named name at file level.
func (c *collector) findClass(name string) int {
	for i := range c.entities {
		e := &c.entities[i]
		if e.Kind == KindClass && e.Name == name {
			return i
		}
	}
	return -1
}

// signature returns the declaration text up to the body, whitespace
// collapsed. Without a body the whole node is used.
func (c *collector) signature(n, body *syntax.Node) string {
	end := n.EndByte
	if body != nil && body.StartByte > n.StartByte {
		end = body.StartByte
	}
	src := c.tree.Source
	if int(end) > len(src) {
		end = uint32(len(src))
	}
	return collapse(string(src[n.StartByte:end]))
}

// calls records call sites under body in source order. Nested function
// bodies (kinds listed in nested) keep their own calls.
func (c *collector) calls(body *syntax.Node, callKinds, nested map[string]bool, callee func(*syntax.Node) string) []CallSite {
	if body == nil {
		return nil
	}
	var out []CallSite
	var rec func(n *syntax.Node, depth int)
	rec = func(n *syntax.Node, depth int) {
		if depth > maxWalkDepth {
			return
		}
		if depth > 0 && nested[n.Kind] {
			return
		}
		if callKinds[n.Kind] {
			if name := callee(n); name != "" {
				out = append(out, CallSite{Callee: name, Line: n.StartLine(), Column: n.StartColumn()})
			}
		}
		for _, ch := range n.Children {
			rec(ch, depth+1)
		}
	}
	rec(body, 0)
	return out
}

// fingerprint hashes the body's tokens, ignoring comments and whitespace, so
// formatting-only edits keep the same value.
func (c *collector) fingerprint(body *syntax.Node) uint64 {
	if body == nil {
		return 0
	}
	h, err := highwayhash.New64(hashKey)
	if err != nil {
		return 0
	}
	syntax.WalkNode(body, func(n *syntax.Node, depth int) bool {
		if depth > maxWalkDepth || isComment(n.Kind) {
			return false
		}
		if len(n.Children) == 0 {
			h.Write([]byte(c.text(n)))
			h.Write([]byte{0})
		}
		return true
	})
	return h.Sum64()
}

func isComment(kind string) bool {
	return kind == "comment" || kind == "line_comment" || kind == "block_comment"
}

func anonymousName(n *syntax.Node) string {
	return fmt.Sprintf("<anonymous>@%d:%d", n.StartLine(), n.StartColumn())
}

// collapse squeezes whitespace runs into single spaces.
func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// underscoreVisibility applies the leading-underscore privacy convention.
// Dunder names stay public.
func underscoreVisibility(name string) string {
	if strings.HasPrefix(name, "_") && !(strings.HasPrefix(name, "__") && strings.HasSuffix(name, "__")) {
		return ModPrivate
	}
	return ModPublic
}

// baseTypeName strips pointers, references, generics and package qualifiers
// from a type expression: "*pkg.Foo[T]" -> "Foo".
func baseTypeName(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimLeft(s, "*&")
	s = strings.TrimPrefix(s, "mut ")
	s = strings.TrimPrefix(s, "dyn ")
	if i := strings.IndexAny(s, "[<("); i >= 0 {
		s = s[:i]
	}
	for _, sep := range []string{"::", "."} {
		if i := strings.LastIndex(s, sep); i >= 0 {
			s = s[i+len(sep):]
		}
	}
	return strings.TrimSpace(s)
}

func set(kinds ...string) map[string]bool {
	m := make(map[string]bool, len(kinds))
	for _, k := range kinds {
		m[k] = true
	}
	return m
}
