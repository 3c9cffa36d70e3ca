package rules

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/dusk-indust/codelens/internal/lang"
	"github.com/dusk-indust/codelens/internal/syntax"
)

// maxSyntaxErrors caps syntax-error findings per file; a badly broken file
// otherwise produces one finding per recovered token.
const maxSyntaxErrors = 20

var (
	secretName  = regexp.MustCompile(`(?i)(passw(or)?d|secret|api[_-]?key|access[_-]?key|private[_-]?key|auth[_-]?token|token|credential)`)
	todoMarker  = regexp.MustCompile(`\b(TODO|FIXME|XXX|HACK)\b`)
	commentKind = set("comment", "line_comment", "block_comment")

	stringKinds = set("string", "interpreted_string_literal", "raw_string_literal", "string_literal")

	loopKinds = set(
		"for_statement", "for_in_statement", "enhanced_for_statement",
		"while_statement", "do_statement",
		"for_expression", "while_expression", "loop_expression",
	)
	functionKinds = set(
		"function_declaration", "method_declaration", "func_literal",
		"function_definition", "lambda",
		"function", "function_expression", "arrow_function", "method_definition",
		"generator_function", "generator_function_declaration",
		"function_item", "closure_expression",
		"constructor_declaration", "lambda_expression",
	)
)

// --- Calls ---

// callee returns the normalized callee text of a call node and whether n
// is a call at all.
func callee(t *syntax.Tree, n *syntax.Node) (string, bool) {
	switch n.Kind {
	case "call_expression", "call":
		return squash(t.Text(n.ChildByField("function"))), true
	case "method_invocation":
		name := t.Text(n.ChildByField("name"))
		if obj := n.ChildByField("object"); obj != nil {
			return squash(t.Text(obj)) + "." + name, true
		}
		return name, true
	case "macro_invocation":
		return squash(t.Text(n.ChildByField("macro"))) + "!", true
	}
	return "", false
}

func isDebugCall(l lang.Language, name string) bool {
	switch l {
	case lang.JavaScript, lang.TypeScript, lang.TSX:
		return strings.HasPrefix(name, "console.")
	case lang.Python:
		return name == "print" || name == "pprint" || name == "pprint.pprint"
	case lang.Go:
		switch name {
		case "fmt.Print", "fmt.Printf", "fmt.Println", "print", "println":
			return true
		}
	case lang.Rust:
		switch name {
		case "println!", "print!", "eprintln!", "eprint!", "dbg!":
			return true
		}
	case lang.Java:
		if strings.HasPrefix(name, "System.out.print") || strings.HasPrefix(name, "System.err.print") {
			return true
		}
		return name == "printStackTrace" || strings.HasSuffix(name, ".printStackTrace")
	}
	return false
}

func checkDebugPrint(in *Input, r *Reporter) {
	in.Tree.Walk(func(n *syntax.Node, _ int) bool {
		if name, ok := callee(in.Tree, n); ok && isDebugCall(in.Tree.Language, name) {
			r.ReportNode(n, fmt.Sprintf("debug output via %s", name), "Remove it or use a logger")
		}
		return true
	})
}

func checkEval(in *Input, r *Reporter) {
	in.Tree.Walk(func(n *syntax.Node, _ int) bool {
		if n.Kind == "new_expression" && in.Tree.Text(n.ChildByField("constructor")) == "Function" {
			r.ReportNode(n, "new Function compiles code from a string", "Avoid building code from strings")
			return true
		}
		name, ok := callee(in.Tree, n)
		if !ok {
			return true
		}
		switch {
		case name == "eval":
			r.ReportNode(n, "eval executes arbitrary code", "Parse the data instead of evaluating it")
		case name == "exec" && in.Tree.Language == lang.Python:
			r.ReportNode(n, "exec executes arbitrary code", "Avoid executing code built at runtime")
		}
		return true
	})
}

// --- ECMAScript ---

func checkLooseEquality(in *Input, r *Reporter) {
	in.Tree.Walk(func(n *syntax.Node, _ int) bool {
		if n.Kind != "binary_expression" {
			return true
		}
		op := n.ChildByField("operator")
		if op == nil {
			return true
		}
		switch op.Kind {
		case "==":
			r.ReportNode(op, "loose equality ==", "Use === instead")
		case "!=":
			r.ReportNode(op, "loose inequality !=", "Use !== instead")
		}
		return true
	})
}

func checkNoVar(in *Input, r *Reporter) {
	in.Tree.Walk(func(n *syntax.Node, _ int) bool {
		if n.Kind == "variable_declaration" {
			r.ReportNode(n, "var is function-scoped", "Use let or const")
		}
		return true
	})
}

// --- Secrets ---

// binding is a name bound to a value expression.
type binding struct {
	name  *syntax.Node
	value *syntax.Node
}

// bindings returns the name/value pairs a declaration or assignment node
// introduces.
func bindings(l lang.Language, n *syntax.Node) []binding {
	switch n.Kind {
	case "variable_declarator":
		// ECMAScript and Java share the node kind and field names.
		return []binding{{n.ChildByField("name"), n.ChildByField("value")}}
	case "public_field_definition", "field_definition":
		name := n.ChildByField("property")
		if name == nil {
			name = n.ChildByField("name")
		}
		return []binding{{name, n.ChildByField("value")}}
	case "assignment", "assignment_expression":
		left := n.ChildByField("left")
		if left != nil && (left.Kind == "member_expression" || left.Kind == "attribute" || left.Kind == "field_access") {
			left = lastNamed(left)
		}
		return []binding{{left, n.ChildByField("right")}}
	case "let_declaration":
		return []binding{{n.ChildByField("pattern"), n.ChildByField("value")}}
	case "const_item", "static_item":
		if l == lang.Rust {
			return []binding{{n.ChildByField("name"), n.ChildByField("value")}}
		}
	case "var_spec", "const_spec":
		return pairLists(n.ChildrenByField("name"), n.ChildByField("value").NamedChildren())
	case "short_var_declaration":
		return pairLists(n.ChildByField("left").NamedChildren(), n.ChildByField("right").NamedChildren())
	}
	return nil
}

func pairLists(names, values []*syntax.Node) []binding {
	var out []binding
	for i := 0; i < len(names) && i < len(values); i++ {
		out = append(out, binding{names[i], values[i]})
	}
	return out
}

func lastNamed(n *syntax.Node) *syntax.Node {
	kids := n.NamedChildren()
	if len(kids) == 0 {
		return n
	}
	return kids[len(kids)-1]
}

func checkHardcodedSecret(in *Input, r *Reporter) {
	t := in.Tree
	t.Walk(func(n *syntax.Node, _ int) bool {
		for _, b := range bindings(t.Language, n) {
			if b.name == nil || b.value == nil || !stringKinds[b.value.Kind] {
				continue
			}
			name := t.Text(b.name)
			if !secretName.MatchString(name) || literalEmpty(t.Text(b.value)) {
				continue
			}
			r.ReportNode(b.name, fmt.Sprintf("%s is assigned a string literal", name),
				"Load secrets from the environment or a secret store")
		}
		return true
	})
}

func literalEmpty(lit string) bool {
	s := strings.TrimLeft(lit, "rbuRBUfF#")
	return strings.Trim(s, "\"'`#") == ""
}

// --- Handlers ---

func checkEmptyCatch(in *Input, r *Reporter) {
	in.Tree.Walk(func(n *syntax.Node, _ int) bool {
		switch n.Kind {
		case "catch_clause":
			body := n.ChildByField("body")
			if body == nil {
				body = n.ChildOfKind("block", "statement_block")
			}
			if body != nil && len(body.NamedChildren()) == 0 {
				r.ReportNode(n, "empty catch block swallows the exception", "Handle, log or rethrow the exception")
			}
		case "except_clause":
			body := n.ChildOfKind("block")
			if body != nil && onlyPass(body) {
				r.ReportNode(n, "except block only passes", "Handle, log or re-raise the exception")
			}
		}
		return true
	})
}

func onlyPass(block *syntax.Node) bool {
	kids := block.NamedChildren()
	if len(kids) == 0 {
		return false
	}
	for _, k := range kids {
		if k.Kind != "pass_statement" {
			return false
		}
	}
	return true
}

// --- Comments ---

func checkTodoComment(in *Input, r *Reporter) {
	in.Tree.Walk(func(n *syntax.Node, _ int) bool {
		if !commentKind[n.Kind] {
			return true
		}
		if m := todoMarker.FindString(in.Tree.Text(n)); m != "" {
			r.ReportNode(n, fmt.Sprintf("%s comment", m), "Resolve it or track it in an issue")
		}
		return false
	})
}

// --- Loops ---

func checkNestedLoops(in *Input, r *Reporter) {
	limit := in.Config.MaxLoopNesting
	var visit func(n *syntax.Node, depth int)
	visit = func(n *syntax.Node, depth int) {
		for _, c := range n.Children {
			d := depth
			switch {
			case functionKinds[c.Kind]:
				d = 0
			case loopKinds[c.Kind]:
				d++
				if d == limit+1 {
					r.ReportNode(c, fmt.Sprintf("loop nested %d deep (limit %d)", d, limit),
						"Extract the inner loop or use a lookup table")
				}
			}
			visit(c, d)
		}
	}
	if in.Tree.Root != nil {
		visit(in.Tree.Root, 0)
	}
}

// --- Syntax ---

func checkSyntaxErrors(in *Input, r *Reporter) {
	for i, n := range in.Tree.Errors() {
		if i == maxSyntaxErrors {
			break
		}
		msg := "syntax error"
		if n.IsMissing {
			msg = fmt.Sprintf("missing %s", n.Kind)
		}
		r.ReportNode(n, msg, "")
	}
}

// --- Helpers ---

func squash(s string) string {
	return strings.Join(strings.Fields(s), "")
}

func set(items ...string) map[string]bool {
	m := make(map[string]bool, len(items))
	for _, it := range items {
		m[it] = true
	}
	return m
}
