package syntax

import (
	"github.com/dusk-indust/codelens/internal/lang"
)

// Point is a zero-based row/column position in the source.
type Point struct {
	Row    uint32 `json:"row"`
	Column uint32 `json:"column"`
}

// Node is one node of a concrete syntax tree. Nodes are built once by the
// Parser and never mutated afterwards, so a Tree may be read concurrently.
type Node struct {
	Kind      string
	Field     string // field name under the parent, "" when unnamed
	Named     bool
	IsError   bool
	IsMissing bool
	StartByte uint32
	EndByte   uint32
	Start     Point
	End       Point
	Parent    *Node
	Children  []*Node
}

// Text returns the node's source text.
func (n *Node) Text(source []byte) string {
	if n == nil {
		return ""
	}
	start, end := int(n.StartByte), int(n.EndByte)
	if end > len(source) {
		end = len(source)
	}
	if start > end {
		return ""
	}
	return string(source[start:end])
}

// StartLine is the 1-based line the node starts on.
func (n *Node) StartLine() int { return int(n.Start.Row) + 1 }

// EndLine is the 1-based line the node ends on.
func (n *Node) EndLine() int { return int(n.End.Row) + 1 }

// StartColumn is the 1-based column the node starts at.
func (n *Node) StartColumn() int { return int(n.Start.Column) + 1 }

// ChildByField returns the first child stored under field.
func (n *Node) ChildByField(field string) *Node {
	if n == nil {
		return nil
	}
	for _, c := range n.Children {
		if c.Field == field {
			return c
		}
	}
	return nil
}

// ChildrenByField returns every child stored under field.
func (n *Node) ChildrenByField(field string) []*Node {
	if n == nil {
		return nil
	}
	var out []*Node
	for _, c := range n.Children {
		if c.Field == field {
			out = append(out, c)
		}
	}
	return out
}

// NamedChildren returns the named children in order.
func (n *Node) NamedChildren() []*Node {
	if n == nil {
		return nil
	}
	out := make([]*Node, 0, len(n.Children))
	for _, c := range n.Children {
		if c.Named {
			out = append(out, c)
		}
	}
	return out
}

// ChildOfKind returns the first child whose kind is one of kinds.
func (n *Node) ChildOfKind(kinds ...string) *Node {
	if n == nil {
		return nil
	}
	for _, c := range n.Children {
		for _, k := range kinds {
			if c.Kind == k {
				return c
			}
		}
	}
	return nil
}

// HasChildKind reports whether any direct child has the given kind.
func (n *Node) HasChildKind(kind string) bool {
	return n.ChildOfKind(kind) != nil
}

// Ancestor returns the nearest ancestor whose kind is one of kinds.
func (n *Node) Ancestor(kinds ...string) *Node {
	for p := n.Parent; p != nil; p = p.Parent {
		for _, k := range kinds {
			if p.Kind == k {
				return p
			}
		}
	}
	return nil
}

// Contains reports whether other lies inside n's byte range.
func (n *Node) Contains(other *Node) bool {
	return other.StartByte >= n.StartByte && other.EndByte <= n.EndByte
}

// Tree is a parsed source file.
type Tree struct {
	Path     string
	Language lang.Language
	Source   []byte
	Root     *Node

	// ErrorCount counts ERROR and MISSING nodes produced by error recovery.
	ErrorCount int

	// Truncated is set when subtrees below the depth limit were dropped.
	Truncated bool
}

// HasErrors reports whether error recovery produced any ERROR or MISSING nodes.
func (t *Tree) HasErrors() bool {
	return t.ErrorCount > 0
}

// Text returns n's text within this tree's source.
func (t *Tree) Text(n *Node) string {
	return n.Text(t.Source)
}

// Walk visits nodes in pre-order. Returning false from fn skips the node's
// children.
func (t *Tree) Walk(fn func(n *Node, depth int) bool) {
	if t == nil || t.Root == nil {
		return
	}
	walk(t.Root, 0, fn)
}

// WalkNode visits n and its descendants in pre-order.
func WalkNode(n *Node, fn func(n *Node, depth int) bool) {
	if n == nil {
		return
	}
	walk(n, 0, fn)
}

func walk(n *Node, depth int, fn func(*Node, int) bool) {
	if !fn(n, depth) {
		return
	}
	for _, c := range n.Children {
		walk(c, depth+1, fn)
	}
}

// Errors returns the ERROR and MISSING nodes in source order.
func (t *Tree) Errors() []*Node {
	var out []*Node
	t.Walk(func(n *Node, _ int) bool {
		if n.IsError || n.IsMissing {
			out = append(out, n)
			// An ERROR node's own subtree is reported once.
			return !n.IsError
		}
		return true
	})
	return out
}

// Shape renders the tree as an S-expression of kinds. It is used to compare
// parses for determinism.
func (t *Tree) Shape() string {
	var b []byte
	var rec func(n *Node)
	rec = func(n *Node) {
		b = append(b, '(')
		b = append(b, n.Kind...)
		for _, c := range n.Children {
			if !c.Named {
				continue
			}
			b = append(b, ' ')
			rec(c)
		}
		b = append(b, ')')
	}
	if t.Root != nil {
		rec(t.Root)
	}
	return string(b)
}
