package rules

import (
	"fmt"
	"strings"

	"github.com/dusk-indust/codelens/internal/structure"
	"github.com/dusk-indust/codelens/internal/syntax"
)

var (
	identifierKinds = set("identifier", "shorthand_property_identifier")
	scopeKinds      = keys(functionKinds)
)

func checkLongFunction(in *Input, r *Reporter) {
	limit := in.Config.MaxFunctionLines
	for _, fn := range in.Model.Callables() {
		if n := fn.Range.Lines(); n > limit {
			r.Report(fn.Range.StartLine, fn.Range.StartCol,
				fmt.Sprintf("%s is %d lines long (limit %d)", fn.Name, n, limit),
				"Split it into smaller functions")
		}
	}
}

func checkTooManyParameters(in *Input, r *Reporter) {
	limit := in.Config.MaxParameters
	for _, fn := range in.Model.Callables() {
		if n := fn.Arity(); n > limit {
			r.Report(fn.Range.StartLine, fn.Range.StartCol,
				fmt.Sprintf("%s takes %d parameters (limit %d)", fn.Name, n, limit),
				"Group related parameters into a struct or object")
		}
	}
}

func checkLargeClass(in *Input, r *Reporter) {
	limit := in.Config.MaxClassMembers
	for _, c := range in.Model.Classes() {
		if n := len(c.Members); n > limit {
			r.Report(c.Range.StartLine, c.Range.StartCol,
				fmt.Sprintf("%s has %d members (limit %d)", c.Name, n, limit),
				"Split responsibilities across smaller types")
		}
	}
}

// checkUnusedVariable reports local variables whose name never appears as
// an identifier elsewhere in the enclosing function. The check is lexical:
// shadowing is not tracked, so a shadowed name counts as used.
func checkUnusedVariable(in *Input, r *Reporter) {
	t := in.Tree
	for _, v := range in.Model.OfKind(structure.KindVariable) {
		if !v.Local || v.Name == "" || strings.HasPrefix(v.Name, "_") {
			continue
		}
		decl := identifierAt(t, v.Range, v.Name)
		if decl == nil {
			continue
		}
		scope := decl.Ancestor(scopeKinds...)
		if scope == nil {
			scope = t.Root
		}
		if !referenced(t, scope, decl, v.Name) {
			r.ReportNode(decl, fmt.Sprintf("%s is declared but never used", v.Name),
				"Remove it or prefix the name with _")
		}
	}
}

// identifierAt finds the identifier node named name starting at the range's
// start or, failing that, anywhere inside the range.
func identifierAt(t *syntax.Tree, rg structure.Range, name string) *syntax.Node {
	var exact, inside *syntax.Node
	t.Walk(func(n *syntax.Node, _ int) bool {
		if exact != nil {
			return false
		}
		if n.EndLine() < rg.StartLine || n.StartLine() > rg.EndLine {
			return false
		}
		if !identifierKinds[n.Kind] || t.Text(n) != name {
			return true
		}
		if n.StartLine() == rg.StartLine && n.StartColumn() == rg.StartCol {
			exact = n
		} else if inside == nil && n.StartLine() >= rg.StartLine {
			inside = n
		}
		return true
	})
	if exact != nil {
		return exact
	}
	return inside
}

func referenced(t *syntax.Tree, scope, decl *syntax.Node, name string) bool {
	found := false
	syntax.WalkNode(scope, func(n *syntax.Node, _ int) bool {
		if found {
			return false
		}
		if n != decl && identifierKinds[n.Kind] && t.Text(n) == name {
			found = true
		}
		return !found
	})
	return found
}

func keys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
